package linkvault

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrInvalidInput indicates a malformed or contradictory creation request
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates the handle is unknown
	ErrNotFound = errors.New("content not found")

	// ErrExpired indicates the content expired and has been removed
	ErrExpired = errors.New("content has expired")

	// ErrViewLimitExceeded indicates the maximum number of views was reached
	ErrViewLimitExceeded = errors.New("maximum view limit reached")

	// ErrPasswordRequired indicates the content is protected and no password was supplied
	ErrPasswordRequired = errors.New("password required")

	// ErrPasswordMismatch indicates the supplied password does not match
	ErrPasswordMismatch = errors.New("invalid password")

	// ErrStorageFailure indicates a blob or record I/O error
	ErrStorageFailure = errors.New("storage failure")

	// ErrPayloadTooLarge indicates the blob exceeds the configured maximum size
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrKindMismatch indicates the content is not of the kind the caller can serve
	ErrKindMismatch = errors.New("content kind mismatch")

	// ErrRecordNotFound is returned by repositories for unknown handles
	ErrRecordNotFound = errors.New("record not found")

	// ErrDuplicateHandle is returned by repositories when a handle already exists
	ErrDuplicateHandle = errors.New("duplicate handle")

	// ErrBlobNotFound is returned by blob stores for missing objects
	ErrBlobNotFound = errors.New("object not found")
)

// IsGateOutcome reports whether err is an expected read/delete gate result
// rather than a failure.
func IsGateOutcome(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrViewLimitExceeded) ||
		errors.Is(err, ErrPasswordRequired) ||
		errors.Is(err, ErrPasswordMismatch) ||
		errors.Is(err, ErrKindMismatch)
}

// RecordError represents a record store failure for a handle
type RecordError struct {
	Handle string
	Op     string
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record operation %s failed for %s: %v", e.Op, e.Handle, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Is makes every RecordError match ErrStorageFailure.
func (e *RecordError) Is(target error) bool {
	return target == ErrStorageFailure
}

// StorageError represents an error related to blob storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes every StorageError match ErrStorageFailure.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
