// Package domain defines the core types and errors shared by the SQL debug panel.
package domain

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a resource already exists.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// NotAcceptableError indicates a request carried a token or statement the
// panel refuses to act on (bad signature, tampered payload, non-SELECT).
type NotAcceptableError struct {
	Message string
	Err     error
}

func (e *NotAcceptableError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *NotAcceptableError) Unwrap() error { return e.Err }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrNotAcceptable creates a NotAcceptableError wrapping the underlying cause.
func ErrNotAcceptable(err error, format string, args ...interface{}) *NotAcceptableError {
	return &NotAcceptableError{Message: fmt.Sprintf(format, args...), Err: err}
}
