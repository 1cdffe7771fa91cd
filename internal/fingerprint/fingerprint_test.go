package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Hello  World", "hello world"},
		{"  tabs\tand\nnewlines \r\n", "tabs and newlines"},
		{"", ""},
		{"   ", ""},
		{"ALREADY normal", "already normal"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "input %q", tt.in)
	}
}

func TestFingerprintIgnoresWhitespaceAndCase(t *testing.T) {
	t.Parallel()

	a := Fingerprint("Hello  World", "http://x/y")
	b := Fingerprint("hello world", "http://x/y")
	c := Fingerprint("Hello World", "http://x/z")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestFingerprintShape(t *testing.T) {
	t.Parallel()

	id := Fingerprint("Title", "https://example.org/a")
	assert.Len(t, id, 64)
	assert.Regexp(t, `^[0-9a-f]{64}$`, id)
	assert.Equal(t, id, Fingerprint(" title ", "HTTPS://EXAMPLE.ORG/A"))
}

func TestFingerprintSeparatesFields(t *testing.T) {
	t.Parallel()

	// Moving text between title and link must change the digest.
	assert.NotEqual(t, Fingerprint("a b", "c"), Fingerprint("a", "b c"))
	assert.NotEqual(t, Fingerprint("", "x"), Fingerprint("x", ""))
}
