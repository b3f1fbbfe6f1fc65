// Package version parses and orders dotted version strings reported by the
// host CLI and its installed extensions.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// A Version is up to four dot-separated components (major.minor.build.revision).
// Absent components are -1 and compare lower than any present component, so
// "1.2" < "1.2.0".
type Version struct {
	Major    int
	Minor    int
	Build    int
	Revision int
}

// Default is the fallback version used whenever no version information could
// be obtained or parsed.
var Default = Version{Major: 0, Minor: 0, Build: 0, Revision: 0}

// Parse parses a version-shaped string into a Version.
//
// Anything from the first '-' onward is a pre-release or build suffix and is
// ignored, so "1.2.3-preview" parses as 1.2.3. The remainder must be two to
// four dot-separated non-negative integers.
func Parse(raw string) (Version, error) {
	core := raw
	if idx := strings.Index(raw, "-"); idx >= 0 {
		core = raw[:idx]
	}

	parts := strings.Split(core, ".")
	if len(parts) < 2 || len(parts) > 4 {
		return Version{}, fmt.Errorf("invalid version %q: expected 2-4 components, got %d", raw, len(parts))
	}

	components := [4]int{-1, -1, -1, -1}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: component %q is not an integer", raw, part)
		}
		if n < 0 {
			return Version{}, fmt.Errorf("invalid version %q: component %q is negative", raw, part)
		}
		components[i] = n
	}

	return Version{
		Major:    components[0],
		Minor:    components[1],
		Build:    components[2],
		Revision: components[3],
	}, nil
}

// Compare returns -1, 0 or 1 comparing v to other component-wise left to
// right. An absent component (-1) sorts below any present one.
func (v Version) Compare(other Version) int {
	pairs := [4][2]int{
		{v.Major, other.Major},
		{v.Minor, other.Minor},
		{v.Build, other.Build},
		{v.Revision, other.Revision},
	}

	for _, p := range pairs {
		if p[0] < p[1] {
			return -1
		}
		if p[0] > p[1] {
			return 1
		}
	}

	return 0
}

// Less reports whether v orders before other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// String renders the present components, e.g. "1.10.0" for a triple.
func (v Version) String() string {
	parts := []string{strconv.Itoa(v.Major), strconv.Itoa(v.Minor)}
	if v.Build >= 0 {
		parts = append(parts, strconv.Itoa(v.Build))
		if v.Revision >= 0 {
			parts = append(parts, strconv.Itoa(v.Revision))
		}
	}

	return strings.Join(parts, ".")
}

// ResolveLatest returns the maximum version among candidates.
//
// Any candidate that fails to parse aborts the whole resolution: the result
// is Default, not the maximum of the parseable rest. A missing extension
// version signals a query that returned garbage, and a telemetry field must
// degrade to its default rather than report a half-scanned answer. An empty
// candidate list also yields Default.
func ResolveLatest(candidates []string) Version {
	if len(candidates) == 0 {
		return Default
	}

	latest := Version{Major: -1, Minor: -1, Build: -1, Revision: -1}
	for _, candidate := range candidates {
		v, err := Parse(candidate)
		if err != nil {
			return Default
		}
		if latest.Less(v) {
			latest = v
		}
	}

	return latest
}

// ResolveSingle parses one version-shaped string, falling back to Default on
// any parse failure.
func ResolveSingle(raw string) Version {
	v, err := Parse(raw)
	if err != nil {
		return Default
	}

	return v
}
