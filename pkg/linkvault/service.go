package linkvault

import (
	"context"
)

// Service defines the main interface of the ephemeral content store
type Service interface {
	// Create stores a text or blob payload and returns its handle
	Create(ctx context.Context, req CreateRequest) (*CreateResult, error)

	// Read evaluates the access gates for a handle and, on success, counts
	// one view and returns the payload. Gate failures are returned as
	// ErrNotFound, ErrExpired, ErrViewLimitExceeded, ErrPasswordRequired,
	// ErrPasswordMismatch or ErrKindMismatch.
	Read(ctx context.Context, req ReadRequest) (*ReadResult, error)

	// Delete removes a record and its blob after checking the password
	Delete(ctx context.Context, req DeleteRequest) error

	// Sweep removes every expired record and returns how many were removed
	Sweep(ctx context.Context) (int, error)

	// Stats returns aggregate counts over all records
	Stats(ctx context.Context) (*Stats, error)
}
