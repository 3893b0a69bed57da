// Package errors provides structured error types for the pressroom service.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflicting write detected")
	ErrUnavailable  = errors.New("storage unavailable")
)

// StoreError represents a failure in a storage backend operation.
type StoreError struct {
	Backend   string // "file" or "sqlite"
	Op        string // e.g. "save_milestone"
	ProjectID string
	Err       error
}

func (e *StoreError) Error() string {
	if e.ProjectID != "" {
		return fmt.Sprintf("%s store: %s failed for project %s: %v", e.Backend, e.Op, e.ProjectID, e.Err)
	}
	return fmt.Sprintf("%s store: %s failed: %v", e.Backend, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps an underlying storage failure with operation context.
func NewStoreError(backend, op, projectID string, err error) *StoreError {
	return &StoreError{Backend: backend, Op: op, ProjectID: projectID, Err: err}
}

// IsNotFound reports whether the error chain contains ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput reports whether the error chain contains ErrInvalidInput.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
