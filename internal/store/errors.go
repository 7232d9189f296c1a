package store

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by store operations.
var (
	ErrNotLoaded       = errors.New("portfolio data has not finished loading")
	ErrClosed          = errors.New("store is closed")
	ErrEntityNotFound  = errors.New("entity not found")
	ErrNotCollection   = errors.New("section is not a collection")
	ErrNotReorderable  = errors.New("section does not support reordering")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrInvalidSection  = errors.New("invalid section name")
	ErrInvalidEntity   = errors.New("collection items must be objects with an id")
	ErrDuplicateID     = errors.New("duplicate entity id in collection")
)

// ImportValidationError is returned when an imported snapshot is not a JSON
// object. The previous document is kept.
type ImportValidationError struct {
	Message string
	Cause   error
}

func (e *ImportValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid import: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid import: %s", e.Message)
}

func (e *ImportValidationError) Unwrap() error {
	return e.Cause
}

// PersistError is returned (or delivered as an event) when a durable write
// is rejected. The in-memory document is never rolled back.
type PersistError struct {
	Key   string
	Cause error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to persist %s: %v", e.Key, e.Cause)
}

func (e *PersistError) Unwrap() error {
	return e.Cause
}

// EntityError adds the section and id to an entity lookup failure.
type EntityError struct {
	Section string
	ID      string
	Err     error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s/%s: %v", e.Section, e.ID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}
