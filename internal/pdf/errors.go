package pdf

import "fmt"

// AssemblyError is returned when a raster cannot be turned into a PDF.
type AssemblyError struct {
	Message string
	Cause   error
}

func (e *AssemblyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("pdf assembly error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("pdf assembly error: %s", e.Message)
}

func (e *AssemblyError) Unwrap() error {
	return e.Cause
}
