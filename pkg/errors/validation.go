package errors

import (
	"strings"
	"unicode"
)

// ValidateVersionInput screens a raw version specifier before it reaches
// the classifier. It rejects strings that could not be a version under any
// scheme, keeping absurd input out of error messages and file paths derived
// from versions:
//   - No empty strings
//   - No control characters or null bytes
//   - No path separators or traversal sequences
//   - Maximum length of 64 characters
//
// Classification into specifier kinds is done separately by pkg/version.
func ValidateVersionInput(raw string) error {
	if raw == "" {
		return New(ErrCodeVersionFormat, "version specifier cannot be empty")
	}

	if len(raw) > 64 {
		return New(ErrCodeVersionFormat, "version specifier too long (max 64 characters): %q", raw[:64])
	}

	for _, r := range raw {
		if unicode.IsControl(r) {
			return New(ErrCodeVersionFormat, "version specifier contains control characters")
		}
	}

	// Versions become directory names under the install root.
	dangerousPatterns := []string{
		"..",   // Parent directory
		"/",    // Path separator
		"\\",   // Backslash (Windows path)
		"\x00", // Null byte
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(raw, pattern) {
			return New(ErrCodeVersionFormat, "version specifier contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidateOwner validates an owner identifier recorded in the install ledger.
// The empty string is allowed; it marks an unattributed legacy or user-direct
// install.
func ValidateOwner(owner string) error {
	if owner == "" {
		return nil
	}

	if len(owner) > 256 {
		return New(ErrCodeInvalidInput, "owner identifier too long (max 256 characters)")
	}

	for _, r := range owner {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "owner identifier contains invalid control characters")
		}
	}

	return nil
}

// ValidateInstallPath validates a filesystem path recorded for an install.
// It prevents obviously corrupt ledger entries from driving file operations.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
func ValidateInstallPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "install path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "install path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || (unicode.IsControl(r) && r != '\t') {
			return New(ErrCodeInvalidPath, "install path contains invalid characters")
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
