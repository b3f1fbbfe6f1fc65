package hashing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigestEmptyAndWhitespaceInputs(t *testing.T) {
	inputs := []string{"", " ", "\t", "\n", "   \t \n "}

	for _, input := range inputs {
		assert.Equal(t, "", Digest(input), "whitespace-only input %q must yield empty output, not a hash", input)
	}
}

func TestDigestKnownVector(t *testing.T) {
	// SHA256("abc"), lowercase unseparated hex
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		Digest("abc"))
}

func TestDigestIsDeterministic(t *testing.T) {
	first := Digest("alice@example.com")
	second := Digest("alice@example.com")

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.True(t, ValidDigest(first))
	assert.Equal(t, strings.ToLower(first), first, "digest must be lowercase")
}

func TestDigestDistinguishesInputs(t *testing.T) {
	assert.NotEqual(t, Digest("alice@example.com"), Digest("bob@example.com"))
}

func TestDigestPreservesInteriorWhitespace(t *testing.T) {
	// Interior whitespace is significant; only fully blank input short-circuits.
	assert.NotEqual(t, Digest("a b"), Digest("ab"))
}

func TestNormalizeDigest(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"hyphen separated", "AB-CD-EF", "abcdef"},
		{"colon separated", "00:11:22:33:44:55", "001122334455"},
		{"already normalized", "abcdef012345", "abcdef012345"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeDigest(tt.input))
		})
	}
}

func TestValidDigest(t *testing.T) {
	valid := Digest("some-machine-id")
	assert.True(t, ValidDigest(valid))

	assert.False(t, ValidDigest(""), "empty string is not a digest")
	assert.False(t, ValidDigest("abc123"), "too short")
	assert.False(t, ValidDigest(strings.Repeat("g", 64)), "non-hex characters")
	assert.False(t, ValidDigest(valid+"00"), "too long")
}
