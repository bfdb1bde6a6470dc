// Package errors provides structured error types for the lockvendor tool.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and library packages
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages naming the offending package or source
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Every fatal condition the generator can hit maps to exactly one code,
// so a failed run always exits with a single, unambiguous diagnosis:
//
//	err := errors.New(errors.ErrCodeMissingChecksum, "registry package %s has no checksum", name)
//	if errors.Is(err, errors.ErrCodeMissingChecksum) {
//	    // Handle missing checksum
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeResolution, origErr, "resolving %s@%s", repo, commit)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Lockfile errors
	ErrCodeInvalidLockfile Code = "INVALID_LOCKFILE"

	// Source classification errors
	ErrCodeUnsupportedSource Code = "UNSUPPORTED_SOURCE"
	ErrCodeMissingChecksum   Code = "MISSING_CHECKSUM"
	ErrCodeMissingRevision   Code = "MISSING_REVISION"

	// Metadata resolution errors
	ErrCodeResolution       Code = "SOURCE_RESOLUTION"
	ErrCodeChecksumMismatch Code = "CHECKSUM_MISMATCH"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeInvalidPath Code = "INVALID_PATH"
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
