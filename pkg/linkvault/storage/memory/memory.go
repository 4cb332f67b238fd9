package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/tendant/linkvault/pkg/linkvault"
)

// Backend is an in-memory implementation of the linkvault.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

type object struct {
	data []byte
	meta linkvault.BlobMeta
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string]object),
	}
}

// Put stores content under key; the key is also the locator
func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, meta linkvault.BlobMeta) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	meta.Size = int64(len(data))
	b.objects[key] = object{data: data, meta: meta}
	return key, nil
}

// Get opens stored content
func (b *Backend) Get(ctx context.Context, locator string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[locator]
	if !exists {
		return nil, linkvault.ErrBlobNotFound
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, locator string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, locator)
	return nil
}

// Meta returns the metadata stored with a blob
func (b *Backend) Meta(locator string) (linkvault.BlobMeta, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[locator]
	return obj.meta, exists
}

// Len returns the number of stored blobs
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
