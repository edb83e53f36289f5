// Package phone normalizes WhatsApp chat identifiers into client phone keys.
package phone

import (
	"fmt"
	"strings"
)

const countryCode = "55"

var groupSuffixes = []string{"@g.us", "@broadcast", "@newsletter"}

// Number is a normalized phone: Key is the digits-only search key, Display the human format.
type Number struct {
	Key     string
	Display string
}

// Normalize strips the JID domain and device suffix, keeps digits only and prefixes the
// country code onto 10/11-digit national numbers.
func Normalize(raw string) Number {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}

	digits := digitsOnly(s)
	if len(digits) == 10 || len(digits) == 11 {
		digits = countryCode + digits
	}

	return Number{Key: digits, Display: format(digits)}
}

// IsGroup reports whether the identifier addresses a group, broadcast list or newsletter.
func IsGroup(raw string) bool {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, suffix := range groupSuffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func format(digits string) string {
	switch {
	case digits == "":
		return ""
	case len(digits) == 13 && strings.HasPrefix(digits, countryCode):
		return fmt.Sprintf("+%s (%s) %s-%s", countryCode, digits[2:4], digits[4:9], digits[9:])
	case len(digits) == 12 && strings.HasPrefix(digits, countryCode):
		return fmt.Sprintf("+%s (%s) %s-%s", countryCode, digits[2:4], digits[4:8], digits[8:])
	default:
		return "+" + digits
	}
}
