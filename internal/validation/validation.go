// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Content length limits, matched by the database column sizes.
const (
	MaxPostLength    = 5000
	MaxCommentLength = 2000
	MaxMessageLength = 2000
)

var (
	displayNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	emailRegex       = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	digitRegex       = regexp.MustCompile(`[0-9]`)
	specialRegex     = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>\/?]`)
)

// Display names that collide with route segments or look official.
var reservedDisplayNames = map[string]struct{}{
	"admin":         {},
	"api":           {},
	"auth":          {},
	"feed":          {},
	"media":         {},
	"messages":      {},
	"conversations": {},
	"users":         {},
	"posts":         {},
	"comments":      {},
	"follows":       {},
	"ws":            {},
	"swagger":       {},
	"metrics":       {},
	"login":         {},
	"signup":        {},
	"settings":      {},
}

// ValidatePassword checks if a password meets security requirements
func ValidatePassword(password string) error {
	if len(password) < 12 {
		return fmt.Errorf("password must be at least 12 characters long")
	}
	if len(password) > 128 {
		return fmt.Errorf("password must not exceed 128 characters")
	}

	hasUpper := false
	hasLower := false
	for _, r := range password {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsLower(r) {
			hasLower = true
		}
	}
	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !digitRegex.MatchString(password) {
		return fmt.Errorf("password must contain at least one digit")
	}
	if !specialRegex.MatchString(password) {
		return fmt.Errorf("password must contain at least one special character (!@#$%%^&*)")
	}

	return nil
}

// ValidateDisplayName checks if a display name meets requirements.
// Display names are unique and appear in profile URLs.
func ValidateDisplayName(name string) error {
	if len(name) < 3 {
		return fmt.Errorf("display name must be at least 3 characters long")
	}
	if len(name) > 30 {
		return fmt.Errorf("display name must not exceed 30 characters")
	}

	// Only allow alphanumeric, underscores, and hyphens
	if !displayNameRegex.MatchString(name) {
		return fmt.Errorf("display name can only contain letters, numbers, underscores, and hyphens")
	}

	// Cannot start or end with underscore/hyphen
	if name[0] == '_' || name[0] == '-' || name[len(name)-1] == '_' || name[len(name)-1] == '-' {
		return fmt.Errorf("display name cannot start or end with underscore or hyphen")
	}

	if _, exists := reservedDisplayNames[strings.ToLower(name)]; exists {
		return fmt.Errorf("display name is reserved")
	}

	return nil
}

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	if len(email) > 254 {
		return fmt.Errorf("email must not exceed 254 characters")
	}
	return nil
}

// ValidateContent checks that user-written text is non-blank and within
// the size limit for its field.
func ValidateContent(field, content string, maxLength int) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if len(content) > maxLength {
		return fmt.Errorf("%s must not exceed %d characters", field, maxLength)
	}
	return nil
}
