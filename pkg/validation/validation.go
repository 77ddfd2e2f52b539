package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// TagRegex validates a hashtag after the leading '#' is stripped
	TagRegex = regexp.MustCompile(`^[\p{L}\p{N}_]+$`)

	// ProviderIDRegex validates provider identifiers
	ProviderIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ValidateTag validates a hashtag as accepted in query strings and requests.
// A leading '#' is tolerated since clients commonly include it.
func ValidateTag(tag string) error {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
	if tag == "" {
		return fmt.Errorf("tag is required")
	}
	if utf8.RuneCountInString(tag) > 100 {
		return fmt.Errorf("tag is too long (max 100 characters)")
	}
	if !TagRegex.MatchString(tag) {
		return fmt.Errorf("tag contains invalid characters")
	}
	return nil
}

// ValidateProviderID validates a provider identifier
func ValidateProviderID(providerID string) error {
	if providerID == "" {
		return fmt.Errorf("provider ID is required")
	}
	if len(providerID) > 50 {
		return fmt.Errorf("provider ID is too long (max 50 characters)")
	}
	if !ProviderIDRegex.MatchString(providerID) {
		return fmt.Errorf("invalid provider ID format")
	}
	return nil
}

// ValidateUserName validates an author name as used in block requests
func ValidateUserName(userName string) error {
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return fmt.Errorf("user name is required")
	}
	if utf8.RuneCountInString(userName) > 100 {
		return fmt.Errorf("user name is too long (max 100 characters)")
	}
	if !utf8.ValidString(userName) {
		return fmt.Errorf("user name contains invalid characters")
	}
	return nil
}

// ValidateNotes validates free-form moderator notes
func ValidateNotes(notes string) error {
	if utf8.RuneCountInString(notes) > 1000 {
		return fmt.Errorf("notes are too long (max 1000 characters)")
	}
	if !utf8.ValidString(notes) {
		return fmt.Errorf("notes contain invalid characters")
	}
	return nil
}

// ValidateURL validates URL format
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid URL scheme (must be http, https, ws, or wss)")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength validates string length
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
