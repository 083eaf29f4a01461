package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		valid bool
	}{
		{"valid_simple", "user@example.com", true},
		{"valid_subdomain", "user@mail.example.com", true},
		{"valid_plus", "user+tag@example.com", true},
		{"valid_dash", "user-name@example.com", true},
		{"valid_dot", "user.name@example.com", true},
		{"valid_numbers", "user123@example456.com", true},
		{"invalid_no_at", "userexample.com", false},
		{"invalid_no_domain", "user@", false},
		{"invalid_no_user", "@example.com", false},
		{"invalid_double_at", "user@@example.com", false},
		{"invalid_spaces", "user @example.com", false},
		{"invalid_no_tld", "user@example", false},
		{"too_long", strings.Repeat("a", 250) + "@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidEmail(tt.email)
			assert.Equal(t, tt.valid, result, "Email: %s", tt.email)
		})
	}
}

func TestIsValidSlug(t *testing.T) {
	tests := []struct {
		name  string
		slug  string
		valid bool
	}{
		{"valid_simple", "acme", true},
		{"valid_hyphenated", "acme-corp", true},
		{"valid_numbers", "team-42", true},
		{"valid_min_length", "ab", true},
		{"invalid_too_short", "a", false},
		{"invalid_uppercase", "Acme", false},
		{"invalid_leading_hyphen", "-acme", false},
		{"invalid_trailing_hyphen", "acme-", false},
		{"invalid_double_hyphen", "acme--corp", false},
		{"invalid_underscore", "acme_corp", false},
		{"invalid_spaces", "acme corp", false},
		{"invalid_too_long", strings.Repeat("a", 49), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidSlug(tt.slug)
			assert.Equal(t, tt.valid, result, "Slug: %s", tt.slug)
		})
	}
}

func TestIsValidProjectIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"valid_short", "AB", true},
		{"valid_typical", "PROJ", true},
		{"valid_max", "TRACK1", true},
		{"valid_numeric", "42", true},
		{"invalid_too_short", "A", false},
		{"invalid_too_long", "PROJECT", false},
		{"invalid_lowercase", "proj", false},
		{"invalid_hyphen", "PR-OJ", false},
		{"invalid_empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidProjectIdentifier(tt.id)
			assert.Equal(t, tt.valid, result, "Identifier: %s", tt.id)
		})
	}
}

func TestIsValidTeamIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"valid_simple", "backend", true},
		{"valid_hyphenated", "platform-infra", true},
		{"valid_numbers", "team2", true},
		{"invalid_too_short", "a", false},
		{"invalid_uppercase", "Backend", false},
		{"invalid_trailing_hyphen", "backend-", false},
		{"invalid_too_long", strings.Repeat("a", 33), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidTeamIdentifier(tt.id)
			assert.Equal(t, tt.valid, result, "Identifier: %s", tt.id)
		})
	}
}

func TestIsValidUUID(t *testing.T) {
	tests := []struct {
		name  string
		uuid  string
		valid bool
	}{
		{"valid_uuid", "550e8400-e29b-41d4-a716-446655440000", true},
		{"valid_uppercase", "550E8400-E29B-41D4-A716-446655440000", true},
		{"valid_mixed", "550e8400-E29B-41d4-A716-446655440000", true},
		{"invalid_short", "550e8400-e29b-41d4-a716", false},
		{"invalid_long", "550e8400-e29b-41d4-a716-446655440000-extra", false},
		{"invalid_no_dashes", "550e8400e29b41d4a716446655440000", false},
		{"invalid_letters", "ggge8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidUUID(tt.uuid)
			assert.Equal(t, tt.valid, result, "UUID: %s", tt.uuid)
		})
	}
}

func TestIsValidPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
		errMsg   string
	}{
		{"valid_simple", "password123", true, ""},
		{"valid_min_length", "12345678", true, ""},
		{"too_short", "pass1", false, "at least 8 characters"},
		{"too_long", strings.Repeat("a", 129), false, "at most 128 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, msg := IsValidPassword(tt.password)
			assert.Equal(t, tt.valid, valid, "Password: %s", tt.password)
			if !valid {
				assert.Contains(t, msg, tt.errMsg)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase", "user@example.com", "user@example.com"},
		{"uppercase", "User@Example.COM", "user@example.com"},
		{"surrounding_spaces", "  user@example.com  ", "user@example.com"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeEmail(tt.input))
		})
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean_text", "Hello World", "Hello World"},
		{"null_bytes", "Hello\x00World", "HelloWorld"},
		{"control_chars", "Hello\x01\x02World", "HelloWorld"},
		{"keep_newlines", "Hello\nWorld", "Hello\nWorld"},
		{"keep_tabs", "Hello\tWorld", "Hello\tWorld"},
		{"keep_carriage_return", "Hello\rWorld", "Hello\rWorld"},
		{"mixed", "Hello\x00\x01\nWorld\t!", "Hello\nWorld\t!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeString(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"shorter_than_max", "Hello", 10, "Hello"},
		{"equal_to_max", "Hello", 5, "Hello"},
		{"longer_than_max", "Hello World", 5, "Hello"},
		{"empty", "", 10, ""},
		{"zero_max", "Hello", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TruncateString(tt.input, tt.maxLen)
			assert.Equal(t, tt.expected, result)
		})
	}
}
