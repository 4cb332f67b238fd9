package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tendant/linkvault/pkg/linkvault"
)

// Repository implements linkvault.Repository using in-memory storage.
// When a snapshot path is set, the whole record set is rewritten to that
// file after every mutation and loaded back on start.
type Repository struct {
	mu           sync.RWMutex
	records      map[string]*linkvault.Record
	snapshotPath string
}

// New creates a new in-memory repository without persistence
func New() *Repository {
	return &Repository{
		records: make(map[string]*linkvault.Record),
	}
}

// NewWithSnapshot creates a repository persisted to path. An existing
// snapshot is loaded; a missing one starts empty.
func NewWithSnapshot(path string) (*Repository, error) {
	r := New()
	r.snapshotPath = path

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	if len(data) == 0 {
		return r, nil
	}

	var records []*linkvault.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	for _, record := range records {
		if record == nil || record.Handle == "" {
			continue
		}
		r.records[record.Handle] = record
	}
	return r, nil
}

// Record operations

func (r *Repository) Create(ctx context.Context, record *linkvault.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.Handle]; exists {
		return linkvault.ErrDuplicateHandle
	}

	r.records[record.Handle] = record.Clone()
	if err := r.persist(); err != nil {
		delete(r.records, record.Handle)
		return err
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, handle string) (*linkvault.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[handle]
	if !exists {
		return nil, linkvault.ErrRecordNotFound
	}
	return record.Clone(), nil
}

func (r *Repository) Update(ctx context.Context, record *linkvault.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, exists := r.records[record.Handle]
	if !exists {
		return linkvault.ErrRecordNotFound
	}

	r.records[record.Handle] = record.Clone()
	if err := r.persist(); err != nil {
		r.records[record.Handle] = previous
		return err
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, handle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, exists := r.records[handle]
	if !exists {
		return linkvault.ErrRecordNotFound
	}

	delete(r.records, handle)
	if err := r.persist(); err != nil {
		r.records[handle] = previous
		return err
	}
	return nil
}

func (r *Repository) List(ctx context.Context) ([]*linkvault.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*linkvault.Record, 0, len(r.records))
	for _, record := range r.records {
		result = append(result, record.Clone())
	}

	// Sort by created_at ascending
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

// persist writes the snapshot. Caller holds the write lock.
func (r *Repository) persist() error {
	if r.snapshotPath == "" {
		return nil
	}

	records := make([]*linkvault.Record, 0, len(r.records))
	for _, record := range r.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Handle < records[j].Handle
	})

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return writeFileAtomic(r.snapshotPath, data)
}

// writeFileAtomic writes data to path via temp file, fsync and rename.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename snapshot: %w", err)
	}

	return nil
}
