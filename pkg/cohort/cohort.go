// Package cohort assigns a session to a rollout bucket.
//
// Cohorts partition the anonymous user population for staged feature rollout
// and A/B measurement. Assignment is derived from the hashed MAC address so a
// machine lands in the same bucket across sessions without any identifier
// leaving the host.
package cohort

import (
	"math/rand"
	"strconv"
	"strings"
)

// Assign maps a hashed MAC address to a bucket in [0, count).
//
// The last character of hashedMAC is parsed as a single hex digit and the
// bucket is digit % count. If hashedMAC is empty or its last character is not
// a hex digit, Fallback(millisecond, count) is used instead. count must be
// positive.
func Assign(hashedMAC string, millisecond, count int) int {
	if hashedMAC != "" {
		last := strings.ToLower(hashedMAC[len(hashedMAC)-1:])
		if digit, err := strconv.ParseUint(last, 16, 8); err == nil {
			return int(digit) % count
		}
	}

	return Fallback(millisecond, count)
}

// Fallback draws a pseudorandom bucket in [0, count) from a PRNG seeded with
// the wall-clock millisecond-of-second.
//
// This is intentionally low-entropy (~1000 distinct seeds) and time-correlated;
// sessions started within the same millisecond-of-second land in the same
// bucket. Downstream cohort statistics already account for it, so the seeding
// is kept as-is for compatibility. Callers count fallback occurrences in
// metrics to keep the skew observable.
func Fallback(millisecond, count int) int {
	r := rand.New(rand.NewSource(int64(millisecond)))
	return r.Int() % count
}
