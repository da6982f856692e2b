package utils

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// GenerateID generates a random ID with prefix
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// SanitizeString strips control characters and surrounding whitespace.
// Camera names arrive from remote devices and end up in logs and
// terminal output.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// NormalizePinCode strips surrounding whitespace from a PIN entry
func NormalizePinCode(pin string) string {
	return strings.TrimSpace(pin)
}
