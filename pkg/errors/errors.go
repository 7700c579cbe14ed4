// Package errors provides structured error types for the dotnetup application.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the acquisition library
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - VERSION_*: Version specifier and resolution failures
//   - INSTALL_* / CONFLICTING_*: Acquisition and conflict failures
//   - LOCK_*: Ledger lock failures
//   - NETWORK_* / INTERNAL_*: Ambient failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeVersionFormat, "invalid version specifier: %s", raw)
//	if errors.Is(err, errors.ErrCodeVersionFormat) {
//	    // Handle format error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeOfflineResolution, origErr, "failed to fetch release index %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Version specifier and resolution errors
	ErrCodeVersionFormat       Code = "VERSION_FORMAT"
	ErrCodeVersionResolution   Code = "VERSION_RESOLUTION"
	ErrCodeFeatureBandNotFound Code = "FEATURE_BAND_NOT_FOUND"
	ErrCodeOfflineResolution   Code = "OFFLINE_RESOLUTION"
	ErrCodeInvalidManifest     Code = "INVALID_MANIFEST"

	// Ledger and locking errors
	ErrCodeLockAcquisition Code = "LOCK_ACQUISITION"

	// Acquisition and conflict errors
	ErrCodeConflictingGlobalInstall Code = "CONFLICTING_GLOBAL_INSTALL"
	ErrCodeConflictingInstallType   Code = "CONFLICTING_INSTALL_TYPE"
	ErrCodeInstallationValidation   Code = "INSTALLATION_VALIDATION"
	ErrCodeInstallFailed            Code = "INSTALL_FAILED"
	ErrCodeUninstallFailed          Code = "UNINSTALL_FAILED"
	ErrCodeDistroUnknown            Code = "DISTRO_UNKNOWN"

	// Informational: a partial install from a prior crash was wiped and retried.
	ErrCodePartialInstallRecovered Code = "PARTIAL_INSTALL_RECOVERED"

	// Input validation errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidPath  Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeNotFound Code = "NOT_FOUND"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// ConflictError reports a blocked global install and names the version
// already on the machine so callers can surface an actionable message.
type ConflictError struct {
	Requested string // Version the caller asked for
	Existing  string // Installed version that blocks it
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("requested %s conflicts with installed %s", e.Requested, e.Existing)
}

// Code returns the error code for this error type.
func (e *ConflictError) Code() Code {
	return ErrCodeConflictingGlobalInstall
}
