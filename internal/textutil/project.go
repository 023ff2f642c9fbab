package textutil

import (
	"fmt"
	"strings"
	"unicode"
)

const maxProjectIDLength = 128

// ValidateProjectID checks that id can be used verbatim as a directory name
// and database key: ASCII letters, digits, dot, dash, and underscore, not
// starting with a dot.
func ValidateProjectID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("project id is required")
	}
	if len(id) > maxProjectIDLength {
		return fmt.Errorf("project id exceeds %d characters", maxProjectIDLength)
	}
	if strings.HasPrefix(id, ".") {
		return fmt.Errorf("project id %q must not start with a dot", id)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return fmt.Errorf("project id %q contains invalid character %q", id, r)
		}
	}
	return nil
}

// Slug lowercases value and joins its letter and digit runs with single
// dashes, for use inside identifiers. Empty input yields "untitled".
func Slug(value string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(value) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	if b.Len() == 0 {
		return "untitled"
	}
	return b.String()
}
