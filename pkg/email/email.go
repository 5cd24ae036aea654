// Package email derives presentable names from email addresses. Patient
// portal signups often arrive with no display name at all; the profile sync
// step falls back to these helpers rather than storing an empty name.
package email

import (
	"strings"
	"unicode"
)

// DeriveNameFromEmail splits the local part of an address into a first and
// last name guess. "maria.santos@example.com" becomes ("Maria", "Santos").
func DeriveNameFromEmail(email string) (string, string) {
	localPart := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "User", "User"
	}

	first := capitalize(parts[0])
	last := "User"
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}

	return first, last
}

// DeriveDisplayName returns a single display-name string for an address.
func DeriveDisplayName(email string) string {
	first, last := DeriveNameFromEmail(email)
	if last == "User" && first != "User" {
		return first
	}
	return first + " " + last
}

// Normalize lowercases and trims an address for case-insensitive comparison.
// Profile and identity uniqueness checks always compare normalized addresses.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
