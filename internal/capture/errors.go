package capture

import (
	"errors"
	"fmt"
)

// ErrNotVisible is returned when the node has no rendered area.
var ErrNotVisible = errors.New("element is not visible or has no content")

// ErrNodeNotFound is returned when the selector matches nothing.
var ErrNodeNotFound = errors.New("element not found")

// CaptureError is returned when every strategy failed. Cause is the
// fallback failure; Primary is kept for diagnostics.
type CaptureError struct {
	Message string
	Primary error
	Cause   error
}

func (e *CaptureError) Error() string {
	if e.Primary != nil {
		return fmt.Sprintf("capture error: %s: %v (primary: %v)", e.Message, e.Cause, e.Primary)
	}
	return fmt.Sprintf("capture error: %s: %v", e.Message, e.Cause)
}

func (e *CaptureError) Unwrap() error {
	return e.Cause
}
