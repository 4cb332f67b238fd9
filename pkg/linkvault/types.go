package linkvault

import (
	"time"
)

// Kind is the domain type for the two payload variants.
type Kind string

// Kind constants (typed).
const (
	KindText Kind = "text"
	KindBlob Kind = "blob"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindText || k == KindBlob
}

// BlobMeta describes a binary payload as it was declared by the uploader.
type BlobMeta struct {
	FileName string `json:"file_name"`
	Size     int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
}

// Record is the unit of storage.
//
// For KindText, Payload holds the inline text. For KindBlob, Payload holds the
// locator returned by the BlobStore and Blob carries the declared metadata.
type Record struct {
	Handle       string    `json:"id"`
	Kind         Kind      `json:"type"`
	Payload      string    `json:"content"`
	Blob         *BlobMeta `json:"blob,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	PasswordHash string    `json:"password_hash,omitempty"`
	MaxViews     *int      `json:"max_views,omitempty"`
	ViewCount    int       `json:"view_count"`
	OneTimeView  bool      `json:"one_time_view"`
}

// IsExpired reports whether the record is logically dead at now.
func (r *Record) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// ViewsExhausted reports whether the view ceiling has been reached.
func (r *Record) ViewsExhausted() bool {
	return r.MaxViews != nil && r.ViewCount >= *r.MaxViews
}

// HasPassword reports whether reads must supply a password.
func (r *Record) HasPassword() bool {
	return r.PasswordHash != ""
}

// Clone returns a deep copy so that callers and stores never share pointers.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Blob != nil {
		b := *r.Blob
		c.Blob = &b
	}
	if r.MaxViews != nil {
		mv := *r.MaxViews
		c.MaxViews = &mv
	}
	return &c
}

// Stats contains aggregate counts over all stored records.
type Stats struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Expired int `json:"expired"`
	Text    int `json:"text_count"`
	Blob    int `json:"file_count"`
}
