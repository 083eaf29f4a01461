package validation

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// EmailRegex validates email format
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// SlugRegex validates workspace slugs: lowercase alnum with hyphens
	slugRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

	// ProjectIdentifierRegex validates project codes like "PROJ"
	projectIdentifierRegex = regexp.MustCompile(`^[A-Z0-9]{2,6}$`)

	// TeamIdentifierRegex validates team identifiers
	teamIdentifierRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

	// UUIDRegex validates UUID format
	uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
)

// IsValidEmail checks if the string is a valid email format
func IsValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

// IsValidSlug checks if the string is a valid workspace slug
func IsValidSlug(slug string) bool {
	if len(slug) < 2 || len(slug) > 48 {
		return false
	}
	return slugRegex.MatchString(slug)
}

// IsValidProjectIdentifier checks a project code: 2-6 uppercase alphanumerics
func IsValidProjectIdentifier(id string) bool {
	return projectIdentifierRegex.MatchString(id)
}

// IsValidTeamIdentifier checks a team identifier
func IsValidTeamIdentifier(id string) bool {
	if len(id) < 2 || len(id) > 32 {
		return false
	}
	return teamIdentifierRegex.MatchString(id)
}

// IsValidUUID checks if the string is a valid UUID format
func IsValidUUID(id string) bool {
	return uuidRegex.MatchString(id)
}

// IsValidPassword checks password strength
func IsValidPassword(password string) (bool, string) {
	if len(password) < 8 {
		return false, "Password must be at least 8 characters"
	}
	if len(password) > 128 {
		return false, "Password must be at most 128 characters"
	}
	return true, ""
}

// NormalizeEmail trims and lowercases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SanitizeString removes potentially dangerous characters for display
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	// Remove control characters except newlines and tabs
	var result strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// TruncateString truncates a string to maxLen characters
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
