package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeRequesterID validates a requester identifier (a verified email
// address) and returns it lower-cased and trimmed, the form every ledger row
// and lookup uses.
func NormalizeRequesterID(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("requester id is required")
	}
	if len(email) > 254 {
		return "", fmt.Errorf("requester id must not exceed 254 characters")
	}
	if !emailPattern.MatchString(email) {
		return "", fmt.Errorf("requester id must be a valid email address")
	}
	return email, nil
}

// IsValidEmail reports whether s looks like an email address. Used by the
// consistency auditor, which flags rather than rejects.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}
