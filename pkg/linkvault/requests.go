package linkvault

import (
	"context"
	"io"
	"sync"
	"time"
)

// Request/Response DTOs

// Policy contains the access gates chosen at creation time.
//
// A nil TTLMinutes selects the service default; zero creates a record that is
// already expired. MaxViews, when set, must be at least one.
type Policy struct {
	TTLMinutes  *int
	Password    string
	MaxViews    *int
	OneTimeView bool
}

// BlobUpload carries a binary payload and its declared metadata.
type BlobUpload struct {
	Reader   io.Reader
	FileName string
	MimeType string
	Size     int64
}

// CreateRequest contains parameters for depositing content. Exactly one of
// Text and Blob must be set.
type CreateRequest struct {
	Text   *string
	Blob   *BlobUpload
	Policy Policy
}

// CreateResult echoes what the caller needs to share the content.
type CreateResult struct {
	Handle    string
	Kind      Kind
	ExpiresAt time.Time
}

// ReadRequest contains parameters for a gated read.
type ReadRequest struct {
	Handle   string
	Password string

	// Kind restricts the read to one payload kind; empty accepts both.
	Kind Kind

	// SkipBlob returns blob metadata without opening the payload.
	SkipBlob bool
}

// DeleteRequest contains parameters for a manual delete.
type DeleteRequest struct {
	Handle   string
	Password string
}

// ReadResult is the outcome of a successful read.
//
// The caller must call Finish once the payload has been delivered (or the
// delivery was abandoned). Finish closes Body and runs any cleanup deferred
// by the read, such as removing the blob of a one-time view.
type ReadResult struct {
	// Record is a snapshot taken after the view was counted.
	Record *Record

	// Text is set for KindText.
	Text string

	// Body is set for KindBlob unless SkipBlob was requested.
	Body io.ReadCloser

	// Consumed reports that this read removed the record.
	Consumed bool

	once    sync.Once
	cleanup func(ctx context.Context)
}

// Finish releases the payload and runs deferred cleanup exactly once.
func (r *ReadResult) Finish(ctx context.Context) {
	if r == nil {
		return
	}
	r.once.Do(func() {
		if r.Body != nil {
			_ = r.Body.Close()
		}
		if r.cleanup != nil {
			r.cleanup(context.WithoutCancel(ctx))
		}
	})
}
