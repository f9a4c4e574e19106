package store

import "strings"

// SanitizeID restricts a credential id to the filename-safe alphabet
// [A-Za-z0-9_-], as required by spec §4.1, dropping any other rune.
func SanitizeID(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
