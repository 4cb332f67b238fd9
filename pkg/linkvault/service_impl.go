package linkvault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTTL      = 10 * time.Minute
	defaultMimeType = "application/octet-stream"
)

// service implements the Service interface
type service struct {
	repository  Repository
	blobStore   BlobStore
	backendName string
	keys        KeyGenerator
	logger      *slog.Logger
	locks       *handleLocks
	lockShards  int
	defaultTTL  time.Duration
	maxBlobSize int64
	bcryptCost  int
	now         func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the record store for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the active blob storage backend. The name is only used
// in errors and logs.
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		s.backendName = name
		s.blobStore = store
	}
}

// WithKeyGenerator sets the strategy used to derive blob keys from handles
func WithKeyGenerator(g KeyGenerator) Option {
	return func(s *service) {
		s.keys = g
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithDefaultTTL sets the lifetime used when a request does not specify one
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *service) {
		s.defaultTTL = ttl
	}
}

// WithMaxBlobSize caps accepted blob payloads. Zero disables the cap.
func WithMaxBlobSize(n int64) Option {
	return func(s *service) {
		s.maxBlobSize = n
	}
}

// WithBcryptCost sets the cost used to hash item passwords
func WithBcryptCost(cost int) Option {
	return func(s *service) {
		s.bcryptCost = cost
	}
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// WithLockShards sets the number of per-handle lock shards
func WithLockShards(n int) Option {
	return func(s *service) {
		s.lockShards = n
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		keys:       flatKeys{},
		defaultTTL: defaultTTL,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.defaultTTL <= 0 {
		return nil, fmt.Errorf("default TTL must be positive")
	}
	if s.bcryptCost < bcrypt.MinCost || s.bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With(slog.String("component", "linkvault"))
	s.locks = newHandleLocks(s.lockShards)

	return s, nil
}

// flatKeys stores a blob under its handle plus the original file extension.
// It mirrors objectkey.Flat, which cannot be the default because objectkey imports this package.
type flatKeys struct{}

func (flatKeys) GenerateKey(handle string, meta BlobMeta) string {
	return handle + filepath.Ext(meta.FileName)
}

// Create operations

func (s *service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	hasText := req.Text != nil && *req.Text != ""
	hasBlob := req.Blob != nil && req.Blob.Reader != nil
	if hasText && hasBlob {
		return nil, invalidInput("cannot upload both text and file simultaneously")
	}
	if !hasText && !hasBlob {
		return nil, invalidInput("either text or file must be provided")
	}

	ttl := s.defaultTTL
	if req.Policy.TTLMinutes != nil {
		if *req.Policy.TTLMinutes < 0 {
			return nil, invalidInput("expiry minutes must not be negative")
		}
		// zero yields a record that is already expired
		ttl = time.Duration(*req.Policy.TTLMinutes) * time.Minute
	}

	var maxViews *int
	if req.Policy.MaxViews != nil {
		if *req.Policy.MaxViews < 1 {
			return nil, invalidInput("max views must be a positive integer")
		}
		mv := *req.Policy.MaxViews
		maxViews = &mv
	}

	now := s.now().UTC()
	record := &Record{
		Handle:      uuid.NewString(),
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		MaxViews:    maxViews,
		OneTimeView: req.Policy.OneTimeView,
	}

	if req.Policy.Password != "" {
		hash, err := hashPassword(req.Policy.Password, s.bcryptCost)
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		record.PasswordHash = hash
	}

	if hasText {
		record.Kind = KindText
		record.Payload = *req.Text
	} else {
		record.Kind = KindBlob
		if err := s.storeBlob(ctx, record, req.Blob); err != nil {
			return nil, err
		}
	}

	// The blob is durable before the record becomes visible.
	if err := s.repository.Create(ctx, record); err != nil {
		if record.Kind == KindBlob {
			s.removeBlob(ctx, record.Handle, record.Payload)
		}
		return nil, &RecordError{Handle: record.Handle, Op: "create", Err: err}
	}

	recordsCreatedTotal.WithLabelValues(string(record.Kind)).Inc()
	s.logger.Debug("content created",
		slog.String("handle", record.Handle),
		slog.String("kind", string(record.Kind)),
		slog.Time("expires_at", record.ExpiresAt),
	)

	return &CreateResult{
		Handle:    record.Handle,
		Kind:      record.Kind,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// storeBlob writes the upload through the blob store and fills in the
// record's payload locator and metadata.
func (s *service) storeBlob(ctx context.Context, record *Record, upload *BlobUpload) error {
	if s.blobStore == nil {
		return &StorageError{Op: "put", Key: record.Handle, Err: errors.New("no blob store configured")}
	}

	meta := BlobMeta{
		FileName: upload.FileName,
		Size:     upload.Size,
		MimeType: upload.MimeType,
	}
	if meta.MimeType == "" {
		meta.MimeType = defaultMimeType
	}
	if s.maxBlobSize > 0 && meta.Size > s.maxBlobSize {
		return ErrPayloadTooLarge
	}

	key := s.keys.GenerateKey(record.Handle, meta)
	reader := &cappedReader{r: upload.Reader, limit: s.maxBlobSize}

	locator, err := s.blobStore.Put(ctx, key, reader, meta)
	if reader.exceeded {
		s.removeBlob(ctx, record.Handle, key)
		return ErrPayloadTooLarge
	}
	if err != nil {
		return &StorageError{Backend: s.backendName, Key: key, Op: "put", Err: err}
	}

	meta.Size = reader.n
	record.Payload = locator
	record.Blob = &meta
	return nil
}

// cappedReader counts bytes and fails once more than limit have been read.
type cappedReader struct {
	r        io.Reader
	limit    int64
	n        int64
	exceeded bool
}

func (c *cappedReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.limit > 0 && c.n > c.limit {
		c.exceeded = true
		return n, ErrPayloadTooLarge
	}
	return n, err
}

// Read operations

func (s *service) Read(ctx context.Context, req ReadRequest) (res *ReadResult, err error) {
	defer func() {
		readsTotal.WithLabelValues(readOutcome(err)).Inc()
	}()

	if req.Handle == "" {
		return nil, ErrNotFound
	}

	unlock := s.locks.lock(req.Handle)
	record, consumed, err := s.admit(ctx, req)
	unlock()
	if err != nil {
		if IsGateOutcome(err) {
			s.logger.Debug("read refused", slog.String("handle", req.Handle), slog.String("outcome", readOutcome(err)))
		}
		return nil, err
	}

	res = &ReadResult{Record: record, Consumed: consumed}
	if consumed && record.Kind == KindBlob {
		handle, locator := record.Handle, record.Payload
		res.cleanup = func(ctx context.Context) {
			s.removeBlob(ctx, handle, locator)
		}
	}

	switch record.Kind {
	case KindText:
		res.Text = record.Payload
	case KindBlob:
		if req.SkipBlob {
			break
		}
		if s.blobStore == nil {
			res.Finish(ctx)
			return nil, &StorageError{Key: record.Payload, Op: "get", Err: errors.New("no blob store configured")}
		}
		body, err := s.blobStore.Get(ctx, record.Payload)
		if err != nil {
			res.Finish(ctx)
			return nil, &StorageError{Backend: s.backendName, Key: record.Payload, Op: "get", Err: err}
		}
		res.Body = body
	}

	return res, nil
}

// admit runs the read gate and commits the view. The caller holds the
// handle lock.
func (s *service) admit(ctx context.Context, req ReadRequest) (*Record, bool, error) {
	record, err := s.repository.Get(ctx, req.Handle)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, false, ErrNotFound
	}
	if err != nil {
		return nil, false, &RecordError{Handle: req.Handle, Op: "get", Err: err}
	}

	if req.Kind != "" && record.Kind != req.Kind {
		return nil, false, ErrKindMismatch
	}

	if record.IsExpired(s.now()) {
		s.destroyQuietly(ctx, record, reasonExpired)
		return nil, false, ErrExpired
	}

	if record.ViewsExhausted() {
		s.destroyQuietly(ctx, record, reasonViewLimit)
		return nil, false, ErrViewLimitExceeded
	}

	if err := checkPassword(record, req.Password); err != nil {
		return nil, false, err
	}

	record.ViewCount++
	consumed := record.OneTimeView || record.ViewsExhausted()

	if consumed {
		// The record leaves the store now; its blob goes in ReadResult.Finish.
		if err := s.repository.Delete(ctx, record.Handle); err != nil && !errors.Is(err, ErrRecordNotFound) {
			return nil, false, &RecordError{Handle: record.Handle, Op: "delete", Err: err}
		}
		recordsRemovedTotal.WithLabelValues(reasonConsumed).Inc()
	} else if err := s.repository.Update(ctx, record); err != nil {
		return nil, false, &RecordError{Handle: record.Handle, Op: "update", Err: err}
	}

	return record, consumed, nil
}

// Delete operations

func (s *service) Delete(ctx context.Context, req DeleteRequest) error {
	if req.Handle == "" {
		return ErrNotFound
	}

	unlock := s.locks.lock(req.Handle)
	defer unlock()

	record, err := s.repository.Get(ctx, req.Handle)
	if errors.Is(err, ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return &RecordError{Handle: req.Handle, Op: "get", Err: err}
	}

	if err := checkPassword(record, req.Password); err != nil {
		return err
	}

	return s.destroy(ctx, record, reasonManual)
}

// destroy removes the blob (best-effort) and then the record. The caller
// holds the handle lock.
func (s *service) destroy(ctx context.Context, record *Record, reason string) error {
	if record.Kind == KindBlob {
		s.removeBlob(ctx, record.Handle, record.Payload)
	}
	if err := s.repository.Delete(ctx, record.Handle); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrNotFound
		}
		return &RecordError{Handle: record.Handle, Op: "delete", Err: err}
	}
	recordsRemovedTotal.WithLabelValues(reason).Inc()
	return nil
}

// destroyQuietly is destroy for gate paths, where the gate outcome is
// reported regardless of cleanup errors.
func (s *service) destroyQuietly(ctx context.Context, record *Record, reason string) {
	if err := s.destroy(ctx, record, reason); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Error("failed to remove record",
			slog.String("handle", record.Handle),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
	}
}

// removeBlob deletes a blob, logging failures instead of returning them.
func (s *service) removeBlob(ctx context.Context, handle, locator string) {
	if s.blobStore == nil || locator == "" {
		return
	}
	if err := s.blobStore.Delete(ctx, locator); err != nil {
		blobDeleteFailuresTotal.Inc()
		s.logger.Warn("failed to delete blob",
			slog.String("handle", handle),
			slog.String("locator", locator),
			slog.String("backend", s.backendName),
			slog.String("error", err.Error()),
		)
	}
}

// Sweep operations

func (s *service) Sweep(ctx context.Context) (int, error) {
	records, err := s.repository.List(ctx)
	if err != nil {
		return 0, &RecordError{Op: "list", Err: err}
	}

	now := s.now()
	removed := 0
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !record.IsExpired(now) {
			continue
		}
		ok, err := s.sweepOne(ctx, record.Handle, now)
		if err != nil {
			s.logger.Error("failed to sweep record",
				slog.String("handle", record.Handle),
				slog.String("error", err.Error()),
			)
			continue
		}
		if ok {
			removed++
		}
	}

	return removed, nil
}

// sweepOne re-checks a candidate under its lock so that a record deleted or
// consumed concurrently resolves to "already gone".
func (s *service) sweepOne(ctx context.Context, handle string, now time.Time) (bool, error) {
	unlock := s.locks.lock(handle)
	defer unlock()

	record, err := s.repository.Get(ctx, handle)
	if errors.Is(err, ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &RecordError{Handle: handle, Op: "get", Err: err}
	}
	if !record.IsExpired(now) {
		return false, nil
	}

	if err := s.destroy(ctx, record, reasonSweep); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Stats operations

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	records, err := s.repository.List(ctx)
	if err != nil {
		return nil, &RecordError{Op: "list", Err: err}
	}

	now := s.now()
	stats := &Stats{Total: len(records)}
	for _, record := range records {
		if record.IsExpired(now) {
			stats.Expired++
		} else {
			stats.Active++
		}
		switch record.Kind {
		case KindText:
			stats.Text++
		case KindBlob:
			stats.Blob++
		}
	}
	return stats, nil
}
