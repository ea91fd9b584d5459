package store

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates a record lookup by id found nothing.
var ErrNotFound = errors.New("record not found")

// ErrClosed indicates the store has been closed.
var ErrClosed = errors.New("store is closed")

// NotFoundError wraps ErrNotFound with the record kind and id.
type NotFoundError struct {
	Kind string
	ID   string
}

// Error returns the error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Unwrap returns ErrNotFound so callers can test with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// StorageError wraps a backend failure with the backend name and operation.
type StorageError struct {
	Backend string
	Op      string
	Cause   error
}

// Error returns the error message.
func (e *StorageError) Error() string {
	return fmt.Sprintf("%s storage: %s: %v", e.Backend, e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Cause
}
