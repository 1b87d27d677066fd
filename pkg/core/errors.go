// Package core provides the graph-mem client facade: the write pipeline, the
// recall pipeline, graph operations, and reflection.
package core

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInsufficientMemories indicates that reflection found fewer memories
	// than its minimum.
	ErrInsufficientMemories = errors.New("insufficient memories")

	// ErrEmbeddingUnavailable indicates that no embedding adapter is
	// configured for an operation that requires one.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
)

// MemoryError wraps errors with operation context.
//
// Error() returns "graphmem: <Op>: <Err>". The underlying error unwraps, so
// errors.Is works against the storage sentinels and the errors above.
type MemoryError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
func (e *MemoryError) Error() string {
	return fmt.Sprintf("graphmem: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// NewMemoryError creates a MemoryError wrapping the given error, or nil if
// err is nil.
func NewMemoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{Op: op, Err: err}
}
