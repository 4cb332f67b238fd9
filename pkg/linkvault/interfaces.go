package linkvault

import (
	"context"
	"io"
)

// BlobStore defines the interface for blob storage backends.
// Exactly one implementation is active per service.
type BlobStore interface {
	// Put stores the bytes read from r under key and returns the locator
	// used for later Get and Delete calls
	Put(ctx context.Context, key string, r io.Reader, meta BlobMeta) (string, error)

	// Get opens the blob stored at locator. Missing blobs return ErrBlobNotFound
	Get(ctx context.Context, locator string) (io.ReadCloser, error)

	// Delete removes the blob at locator. Deleting a missing blob succeeds
	Delete(ctx context.Context, locator string) error
}

// Repository defines the interface for record persistence, keyed by handle.
//
// Implementations need not resolve conflicting writers: the service
// serializes all mutations of a handle.
type Repository interface {
	Create(ctx context.Context, record *Record) error
	Get(ctx context.Context, handle string) (*Record, error)
	Update(ctx context.Context, record *Record) error
	Delete(ctx context.Context, handle string) error
	List(ctx context.Context) ([]*Record, error)
}

// KeyGenerator derives the logical blob key for a new record.
type KeyGenerator interface {
	GenerateKey(handle string, meta BlobMeta) string
}
