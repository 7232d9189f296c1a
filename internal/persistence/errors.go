package persistence

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed port.
var ErrClosed = errors.New("persistence port is closed")

// WriteError represents a rejected durable write.
type WriteError struct {
	Key     string
	Message string
	Cause   error
}

func (e *WriteError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("write error for %s: %s: %v", e.Key, e.Message, e.Cause)
	}
	return fmt.Sprintf("write error for %s: %s", e.Key, e.Message)
}

func (e *WriteError) Unwrap() error {
	return e.Cause
}

// QuotaExceededError indicates the backing store has no room for the value.
type QuotaExceededError struct {
	Limit     int
	Requested int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("storage quota exceeded: %d bytes requested, limit %d", e.Requested, e.Limit)
}

// ReadError represents a failed durable read.
type ReadError struct {
	Key   string
	Cause error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read error for %s: %v", e.Key, e.Cause)
}

func (e *ReadError) Unwrap() error {
	return e.Cause
}
