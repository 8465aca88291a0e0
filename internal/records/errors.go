package records

import (
	"errors"
	"fmt"
)

// NotFoundError is returned when the upstream answers 404 for a record.
type NotFoundError struct {
	ID   int64
	Body []byte
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("arbitro %d not found", e.ID)
}

// StoreError reports any other upstream or transport failure. StatusCode is
// zero when no response was received.
type StoreError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *StoreError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("upstream %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// StatusCode extracts the upstream status carried by err, or 0.
func StatusCode(err error) int {
	var se *StoreError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
