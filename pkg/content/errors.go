package content

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrUnauthorized    = errors.New("not authorized to act for this sharer")
	ErrValidation      = errors.New("invalid request")
	ErrNotFound        = errors.New("content not found")
	ErrConflict        = errors.New("conflicting content already exists")
	ErrAmbiguousOwner  = errors.New("identifier matches both content tables")
)

// ExternalServiceError is a failed call to the video service
type ExternalServiceError struct {
	Op         string // e.g. "create upload"
	StatusCode int    // HTTP status from the service, 0 on transport errors
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("video service %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("video service %s failed: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the call later could succeed
func (e *ExternalServiceError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// DataIntegrityError marks stored data that breaks an expectation of the pipeline.
// It is logged for follow-up and never fails a request
type DataIntegrityError struct {
	Ref    Ref
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity: %s %s: %s", e.Ref.Kind, e.Ref.ID, e.Reason)
}

// Validationf wraps ErrValidation with a message
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
