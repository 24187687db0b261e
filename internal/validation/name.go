// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// requesterNamePattern accepts "FirstName L" or "FirstName L." where the first
// name is at least two letters (apostrophes and hyphens allowed) and the last
// name is a single initial.
var requesterNamePattern = regexp.MustCompile(`^([A-Za-z][A-Za-z'-]{1,})\s+([A-Za-z])\.?$`)

// NormalizeRequesterName validates a display name against the required
// "First Name + Last Initial" format and returns its canonical form
// (capitalized first name, upper-cased initial, no trailing period).
func NormalizeRequesterName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)

	m := requesterNamePattern.FindStringSubmatch(trimmed)
	if m == nil {
		return "", fmt.Errorf(`name must be "FirstName + LastInitial" (ex: "Gavin N")`)
	}

	first := m[1]
	canonical := strings.ToUpper(first[:1]) + strings.ToLower(first[1:]) + " " + strings.ToUpper(m[2])
	return canonical, nil
}
