// Package errors provides the structured error type used at soyidx's host
// boundaries: filesystem access, configuration loading and watcher setup.
// The cache engine itself reports nothing through errors; ineligible files,
// unindexed modules and unreadable documents are silent by contract.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// IndexError is a structured error type with context.
type IndexError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	FilePath string
	Module   string
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Module != "" {
		parts = append(parts, "module:"+e.Module)
	}
	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}
	return result
}

// Unwrap returns the underlying cause error.
func (e *IndexError) Unwrap() error {
	return e.Cause
}

// Is matches another IndexError with the same type and code.
func (e *IndexError) Is(target error) bool {
	var t *IndexError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// WithFile adds the file the error concerns.
func (e *IndexError) WithFile(path string) *IndexError {
	e.FilePath = path
	return e
}

// WithModule adds the module the error concerns.
func (e *IndexError) WithModule(module string) *IndexError {
	e.Module = module
	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *IndexError {
	return &IndexError{Type: ErrorTypeValidation, Code: code, Message: message}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *IndexError {
	return &IndexError{Type: ErrorTypeIO, Code: code, Message: message, Cause: cause}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *IndexError {
	return &IndexError{Type: ErrorTypeConfig, Code: code, Message: message}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *IndexError {
	return &IndexError{Type: ErrorTypeInternal, Code: code, Message: message, Cause: cause}
}

// Wrap attaches a type and message to err. A nil err stays nil.
func Wrap(err error, errType ErrorType, message string) error {
	if err == nil {
		return nil
	}
	return &IndexError{Type: errType, Message: message, Cause: err}
}

// IsType reports whether err wraps an IndexError of the given type.
func IsType(err error, errType ErrorType) bool {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Type == errType
	}
	return false
}

// Error codes used across packages.
const (
	CodeReadFailed     = "READ_FAILED"
	CodeWalkFailed     = "WALK_FAILED"
	CodeWatchFailed    = "WATCH_FAILED"
	CodeInvalidConfig  = "INVALID_CONFIG"
	CodeUnknownModule  = "UNKNOWN_MODULE"
	CodeWatcherPanic   = "WATCHER_PANIC"
	CodeInvalidFormat  = "INVALID_FORMAT"
	CodeIndexCancelled = "INDEX_CANCELLED"
)
