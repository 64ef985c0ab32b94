// Package sipuri turns user-supplied phone numbers and extensions into
// request targets the add-ons understand.
package sipuri

import (
	"fmt"
	"strings"
)

const scheme = "sip:"

// Normalize returns the canonical request target for raw.
//
//   - "sip:..." is already fully qualified and is returned as is.
//   - digits plus the feature-code symbols '*' and '#' become sip:<raw>@<host>.
//   - anything else (e.g. an internal call id) passes through untouched.
//
// Surrounding whitespace is trimmed in every case. Normalize is idempotent.
func Normalize(raw, host string) string {
	n := strings.TrimSpace(raw)
	if strings.HasPrefix(n, scheme) {
		return n
	}
	if IsDialString(n) {
		return scheme + n + "@" + host
	}
	return n
}

// IsDialString reports whether s is a non-empty run of 0-9, '*' and '#'.
func IsDialString(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9', c == '*', c == '#':
		default:
			return false
		}
	}
	return true
}

// E164 keeps only digits and '+' and returns the result with exactly one
// leading '+'. Empty input yields "+".
func E164(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	return "+" + strings.TrimPrefix(b.String(), "+")
}

// WithPort builds sip:<user>@<host>:<port>.
func WithPort(user, host string, port int) string {
	return fmt.Sprintf("%s%s@%s:%d", scheme, user, host, port)
}
