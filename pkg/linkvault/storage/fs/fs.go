package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tendant/linkvault/pkg/linkvault"
)

// ErrInvalidKey is returned for keys that would resolve outside the base directory
var ErrInvalidKey = errors.New("invalid object key")

// Backend is a filesystem implementation of the linkvault.BlobStore interface
type Backend struct {
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing files
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	// Validate and create base directory if it doesn't exist
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	baseDir, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir: baseDir,
	}, nil
}

// BaseDir returns the absolute base directory
func (b *Backend) BaseDir() string {
	return b.baseDir
}

func (b *Backend) path(key string) (string, error) {
	if key == "" || !filepath.IsLocal(filepath.FromSlash(key)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(b.baseDir, filepath.FromSlash(key)), nil
}

// Put writes content to a temp file next to the target and renames it into
// place, so a reader never sees a partial blob. The key is the locator.
func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, meta linkvault.BlobMeta) (string, error) {
	filePath, err := b.path(key)
	if err != nil {
		return "", err
	}

	// Create directory structure if it doesn't exist
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, contextReader{ctx: ctx, r: reader}); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		b.cleanupEmptyDirectories(dir)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to sync file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to rename file: %w", err)
	}

	return key, nil
}

// Get opens content from the filesystem
func (b *Backend) Get(ctx context.Context, locator string) (io.ReadCloser, error) {
	filePath, err := b.path(locator)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return nil, linkvault.ErrBlobNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete deletes content from the filesystem. A missing file is not an error.
func (b *Backend) Delete(ctx context.Context, locator string) error {
	filePath, err := b.path(locator)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	// Clean up empty directories
	b.cleanupEmptyDirectories(filepath.Dir(filePath))

	return nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	// Don't remove the base directory
	if dir == b.baseDir || len(dir) <= len(b.baseDir) {
		return
	}

	// Check if directory is empty
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		// Remove empty directory
		if os.Remove(dir) == nil {
			// Recursively clean parent directory
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
