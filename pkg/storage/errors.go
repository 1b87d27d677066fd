package storage

import (
	"errors"
	"fmt"
)

// Predefined errors emitted by backends.
var (
	// ErrNotFound indicates that a requested memory or edge does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied indicates that the access context cannot see or modify
	// the requested record.
	ErrAccessDenied = errors.New("access denied")

	// ErrValidation indicates that a memory or edge failed invariant checks.
	ErrValidation = errors.New("validation failed")
)

// ValidationError reports which field failed validation.
//
// It unwraps to ErrValidation so callers can test with errors.Is.
type ValidationError struct {
	// Field is the name of the offending field.
	Field string

	// Reason describes the violated constraint.
	Reason string
}

// Error returns a formatted message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrValidation for errors.Is matching.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
