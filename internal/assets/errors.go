package assets

import (
	"errors"
	"fmt"
)

// Op names the object store operation that failed.
type Op string

const (
	OpWrite   Op = "write"
	OpDelete  Op = "delete"
	OpList    Op = "list"
	OpPresign Op = "presign"
)

// StoreError reports a failed bucket operation. The Op field distinguishes
// write, delete and list failures for callers mapping errors to responses.
type StoreError struct {
	Op  Op
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("object store %s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("object store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsOp reports whether err is a StoreError for op.
func IsOp(err error, op Op) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Op == op
}
