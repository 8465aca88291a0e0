package core

import (
	"errors"
	"fmt"
	"net/http"

	"arbitros/internal/assets"
	"arbitros/internal/records"
)

// ValidationError rejects an upload before any store is contacted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NoAssetError is returned by Detach when the record has no image.
type NoAssetError struct {
	ID int64
}

func (e *NoAssetError) Error() string {
	return fmt.Sprintf("arbitro %d has no image", e.ID)
}

// RecordUpdateError reports that the image store was mutated but writing the
// new reference back to the record failed. OrphanURL names an uploaded object
// nothing references any more (attach); StaleURL names a reference that now
// points at a deleted object (detach).
type RecordUpdateError struct {
	ID        int64
	OrphanURL string
	StaleURL  string
	Err       error
}

func (e *RecordUpdateError) Error() string {
	return fmt.Sprintf("update arbitro %d: %v", e.ID, e.Err)
}

func (e *RecordUpdateError) Unwrap() error { return e.Err }

// StatusCode maps a coordinator error onto an HTTP status.
func StatusCode(err error) int {
	var (
		ve *ValidationError
		na *NoAssetError
		ue *RecordUpdateError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &na):
		return http.StatusNotFound
	case errors.As(err, &ue):
		return http.StatusInternalServerError
	case records.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Kind names the error category for logs and response bodies.
func Kind(err error) string {
	var (
		ve *ValidationError
		na *NoAssetError
		ue *RecordUpdateError
		se *records.StoreError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &na):
		return "no_asset"
	case errors.As(err, &ue):
		return "record_update"
	case records.IsNotFound(err):
		return "record_not_found"
	case errors.As(err, &se):
		return "record_store"
	case assets.IsOp(err, assets.OpWrite):
		return "store_write"
	case assets.IsOp(err, assets.OpDelete):
		return "store_delete"
	case assets.IsOp(err, assets.OpList):
		return "store_list"
	default:
		return "internal"
	}
}
