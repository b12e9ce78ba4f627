// Package errors provides a lightweight structured error type (StateError)
// for category-based classification of launch-resolution failures.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory represents the category of a resolution error for classification
type ErrorCategory string

const (
	// User-facing input errors
	CategoryLink    ErrorCategory = "link"
	CategoryStorage ErrorCategory = "storage"

	// Filesystem and descriptor errors
	CategoryDescriptor ErrorCategory = "descriptor"
	CategoryFileSystem ErrorCategory = "filesystem"

	// Everything else
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal ErrorSeverity = "fatal" // Aborts state construction
	SeverityError ErrorSeverity = "error" // Error, but not fatal
)

// StateError is a structured error with category and context
type StateError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for StateError
type ContextFields map[string]any

// Error implements the error interface
func (e *StateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *StateError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *StateError) WithContext(key string, value any) *StateError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new StateError
func New(category ErrorCategory, severity ErrorSeverity, message string) *StateError {
	return &StateError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new StateError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *StateError {
	return &StateError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	var se *StateError
	if stderrors.As(err, &se) {
		return se.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a StateError
func GetCategory(err error) ErrorCategory {
	var se *StateError
	if stderrors.As(err, &se) {
		return se.Category
	}
	return CategoryInternal
}

// InvalidStorage creates the fatal error raised when an explicit application
// storage path sits inside the project directory.
func InvalidStorage(storage, dir string) *StateError {
	return New(CategoryStorage, SeverityFatal, "invalid application storage path").
		WithContext("storage", storage).
		WithContext("dir", dir)
}

// MalformedLink creates the fatal error raised when a link fails scheme or
// key validation.
func MalformedLink(link, reason string) *StateError {
	return New(CategoryLink, SeverityFatal, fmt.Sprintf("malformed link: %s", reason)).
		WithContext("link", link)
}
