// Package fingerprint derives stable identifiers for feed entries.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const separator = "|"

// Normalize collapses whitespace runs to a single space, trims and lowercases s.
func Normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Fingerprint returns the hex SHA-256 digest of the normalized title and link.
func Fingerprint(title, link string) string {
	sum := sha256.Sum256([]byte(Normalize(title) + separator + Normalize(link)))
	return hex.EncodeToString(sum[:])
}
