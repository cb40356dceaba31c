// Package normalizers provides contact-field normalization so values from
// the two source systems compare and coalesce consistently.
package normalizers

import (
	"strings"
	"unicode"
)

// Email normalizes an email address (lowercase, trim).
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Phone removes all non-digit characters from a phone number.
func Phone(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Name collapses whitespace and trims a display name. Case is preserved;
// the unified view surfaces names to humans, not to matchers.
func Name(s string) string {
	var result strings.Builder
	prevSpace := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			if !prevSpace {
				result.WriteRune(' ')
				prevSpace = true
			}
			continue
		}
		result.WriteRune(r)
		prevSpace = false
	}
	return result.String()
}

// EmailPtr normalizes through a pointer, mapping empty results to nil.
func EmailPtr(s *string) *string {
	return normalizePtr(s, Email)
}

// PhonePtr normalizes through a pointer, mapping empty results to nil.
func PhonePtr(s *string) *string {
	return normalizePtr(s, Phone)
}

// NamePtr normalizes through a pointer, mapping empty results to nil.
func NamePtr(s *string) *string {
	return normalizePtr(s, Name)
}

func normalizePtr(s *string, fn func(string) string) *string {
	if s == nil {
		return nil
	}
	normalized := fn(*s)
	if normalized == "" {
		return nil
	}
	return &normalized
}
