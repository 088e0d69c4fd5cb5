package errors

import (
	"strings"
	"unicode"
)

// ValidateID validates a node or field identifier.
// It rejects names that could break path addressing or storage keys.
//
// The validation rules are intentionally conservative:
//   - No empty identifiers
//   - No control characters
//   - No whitespace
//   - Maximum length of 128 characters
func ValidateID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidNode, "id cannot be empty")
	}

	if len(id) > 128 {
		return New(ErrCodeInvalidNode, "id too long (max 128 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidNode, "id %q contains whitespace or control characters", id)
		}
	}

	return nil
}

// ValidateFieldKey validates a field key. Keys become JSON property names so
// they must be non-empty and free of control characters. Dots are rejected
// because they would make the key unreachable through a dotted key path.
func ValidateFieldKey(key string) error {
	if key == "" {
		return New(ErrCodeInvalidField, "field key cannot be empty")
	}

	if len(key) > 256 {
		return New(ErrCodeInvalidField, "field key too long (max 256 characters)")
	}

	for _, r := range key {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidField, "field key %q contains control characters", key)
		}
	}

	if strings.Contains(key, ".") {
		return New(ErrCodeInvalidField, "field key %q cannot contain '.'", key)
	}

	return nil
}

// ValidateKeyPath validates a dotted key path such as "user.address.city".
// An empty path is valid and means "the whole value".
func ValidateKeyPath(path string) error {
	if path == "" {
		return nil
	}

	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return New(ErrCodeInvalidPath, "key path %q contains an empty segment", path)
		}
	}

	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}

// ValidateEndpoint validates an external-fetch endpoint template. Absolute
// URLs must use http or https; relative endpoints are joined with the active
// environment's base URL at fetch time.
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return New(ErrCodeInvalidField, "endpoint cannot be empty")
	}

	for _, r := range endpoint {
		if unicode.IsControl(r) || r == ' ' {
			return New(ErrCodeInvalidField, "endpoint %q contains invalid characters", endpoint)
		}
	}

	if strings.Contains(endpoint, "://") {
		return ValidateURL(endpoint)
	}

	return nil
}
