package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrPersistenceConflict is returned when an insert hits the unique key on
	// id despite application-level dedup. The whole batch was rolled back.
	ErrPersistenceConflict = errors.New("persistence conflict: record id already stored")

	// ErrClosed is returned by tables used after Close.
	ErrClosed = errors.New("table is closed")
)

// ConflictError names the record that triggered a persistence conflict.
type ConflictError struct {
	ID  string
	Err error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (id %s): %v", ErrPersistenceConflict, e.ID, e.Err)
	}
	return fmt.Sprintf("%s (id %s)", ErrPersistenceConflict, e.ID)
}

func (e *ConflictError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPersistenceConflict}
	}
	return []error{ErrPersistenceConflict, e.Err}
}

// NewConflictError wraps the driver error for id.
func NewConflictError(id string, err error) error {
	return &ConflictError{ID: id, Err: err}
}
