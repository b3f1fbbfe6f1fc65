// Package hashing provides one-way identity hashing for privacy compliance.
// User and machine identifiers must be hashed before they leave the host.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Digest hashes an identifier using SHA256 for privacy compliance.
// The output format is stable: 64 lowercase hex characters, no separators.
//
// Empty or whitespace-only input returns "" rather than the digest of the
// empty string, so an absent identifier stays recognizably absent downstream.
//
// Example:
//
//	hashed := hashing.Digest("alice@example.com")
//	// Store hashed in the telemetry envelope, never the raw identifier
//
// Privacy Note:
//   - The raw identifier is NEVER emitted
//   - Hash is one-way: cannot reverse to get original identifier
//   - Same identifier always produces same hash (for correlation)
func Digest(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}

	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// NormalizeDigest strips hyphen/colon separators and lowercases a digest.
// The MAC address field is normalized with this before emission; the user id
// field is NOT — it carries Digest output byte-for-byte. Downstream consumers
// already depend on both formats, so the two call sites must stay asymmetric.
func NormalizeDigest(digest string) string {
	replacer := strings.NewReplacer("-", "", ":", "")
	return strings.ToLower(replacer.Replace(digest))
}

// ValidDigest checks if a digest has the correct format.
// Must be exactly 64 hex characters (SHA256 output).
func ValidDigest(digest string) bool {
	if len(digest) != 64 {
		return false
	}

	_, err := hex.DecodeString(digest)
	return err == nil
}
