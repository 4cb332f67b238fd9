package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/tendant/linkvault/pkg/linkvault"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

func init() {
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

const schema = `
CREATE TABLE IF NOT EXISTS content_records (
	handle        TEXT PRIMARY KEY,
	kind          TEXT NOT NULL,
	payload       TEXT NOT NULL,
	file_name     TEXT,
	file_size     INTEGER,
	mime_type     TEXT,
	created_at    TEXT NOT NULL,
	expires_at    TEXT NOT NULL,
	password_hash TEXT NOT NULL DEFAULT '',
	max_views     INTEGER,
	view_count    INTEGER NOT NULL DEFAULT 0,
	one_time_view INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS content_records_expires_at_idx ON content_records (expires_at);`

const selectColumns = `
	handle, kind, payload, file_name, file_size, mime_type, created_at,
	expires_at, password_hash, max_views, view_count, one_time_view`

// Repository implements linkvault.Repository using SQLite.
type Repository struct {
	db *sqlx.DB
}

// Open opens (or creates) a SQLite-backed repository, creating the parent
// directory if needed. Use ":memory:" for an in-memory database.
func Open(path string) (*Repository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sqlx.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// a single connection keeps ":memory:" databases shared and avoids
	// SQLITE_BUSY between writers of the same process
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Create inserts a record. An existing handle is left untouched.
func (r *Repository) Create(ctx context.Context, record *linkvault.Record) error {
	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO content_records (`+selectColumns+`
		) VALUES (
			:handle, :kind, :payload, :file_name, :file_size, :mime_type, :created_at,
			:expires_at, :password_hash, :max_views, :view_count, :one_time_view
		)
		ON CONFLICT(handle) DO NOTHING`, toRow(record))
	if err != nil {
		return fmt.Errorf("create %q: %w", record.Handle, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create %q: %w", record.Handle, err)
	}
	if n == 0 {
		return linkvault.ErrDuplicateHandle
	}
	return nil
}

// Get retrieves a record by handle.
func (r *Repository) Get(ctx context.Context, handle string) (*linkvault.Record, error) {
	var row recordRow
	err := r.db.GetContext(ctx, &row,
		`SELECT`+selectColumns+` FROM content_records WHERE handle = ?`, handle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, linkvault.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", handle, err)
	}
	return row.toRecord()
}

// Update replaces the mutable fields of an existing record.
func (r *Repository) Update(ctx context.Context, record *linkvault.Record) error {
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE content_records SET
			kind = :kind, payload = :payload, file_name = :file_name,
			file_size = :file_size, mime_type = :mime_type, expires_at = :expires_at,
			password_hash = :password_hash, max_views = :max_views,
			view_count = :view_count, one_time_view = :one_time_view
		WHERE handle = :handle`, toRow(record))
	if err != nil {
		return fmt.Errorf("update %q: %w", record.Handle, err)
	}
	return requireRow(res, record.Handle)
}

// Delete removes a record by handle.
func (r *Repository) Delete(ctx context.Context, handle string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM content_records WHERE handle = ?`, handle)
	if err != nil {
		return fmt.Errorf("delete %q: %w", handle, err)
	}
	return requireRow(res, handle)
}

// List returns every record, oldest first.
func (r *Repository) List(ctx context.Context) ([]*linkvault.Record, error) {
	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT`+selectColumns+` FROM content_records ORDER BY created_at ASC`); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	records := make([]*linkvault.Record, 0, len(rows))
	for i := range rows {
		record, err := rows[i].toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func requireRow(res sql.Result, handle string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected %q: %w", handle, err)
	}
	if n == 0 {
		return linkvault.ErrRecordNotFound
	}
	return nil
}

// Timestamps are stored as fixed-width UTC text so that they sort correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// recordRow is the column mapping of content_records.
type recordRow struct {
	Handle       string         `db:"handle"`
	Kind         string         `db:"kind"`
	Payload      string         `db:"payload"`
	FileName     sql.NullString `db:"file_name"`
	FileSize     sql.NullInt64  `db:"file_size"`
	MimeType     sql.NullString `db:"mime_type"`
	CreatedAt    string         `db:"created_at"`
	ExpiresAt    string         `db:"expires_at"`
	PasswordHash string         `db:"password_hash"`
	MaxViews     sql.NullInt64  `db:"max_views"`
	ViewCount    int            `db:"view_count"`
	OneTimeView  bool           `db:"one_time_view"`
}

func toRow(record *linkvault.Record) recordRow {
	row := recordRow{
		Handle:       record.Handle,
		Kind:         string(record.Kind),
		Payload:      record.Payload,
		CreatedAt:    record.CreatedAt.UTC().Format(timeLayout),
		ExpiresAt:    record.ExpiresAt.UTC().Format(timeLayout),
		PasswordHash: record.PasswordHash,
		ViewCount:    record.ViewCount,
		OneTimeView:  record.OneTimeView,
	}
	if record.Blob != nil {
		row.FileName = sql.NullString{String: record.Blob.FileName, Valid: true}
		row.FileSize = sql.NullInt64{Int64: record.Blob.Size, Valid: true}
		row.MimeType = sql.NullString{String: record.Blob.MimeType, Valid: true}
	}
	if record.MaxViews != nil {
		row.MaxViews = sql.NullInt64{Int64: int64(*record.MaxViews), Valid: true}
	}
	return row
}

func (row *recordRow) toRecord() (*linkvault.Record, error) {
	createdAt, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at of %q: %w", row.Handle, err)
	}
	expiresAt, err := time.Parse(timeLayout, row.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at of %q: %w", row.Handle, err)
	}

	record := &linkvault.Record{
		Handle:       row.Handle,
		Kind:         linkvault.Kind(row.Kind),
		Payload:      row.Payload,
		CreatedAt:    createdAt,
		ExpiresAt:    expiresAt,
		PasswordHash: row.PasswordHash,
		ViewCount:    row.ViewCount,
		OneTimeView:  row.OneTimeView,
	}
	if row.FileName.Valid || row.FileSize.Valid || row.MimeType.Valid {
		record.Blob = &linkvault.BlobMeta{
			FileName: row.FileName.String,
			Size:     row.FileSize.Int64,
			MimeType: row.MimeType.String,
		}
	}
	if row.MaxViews.Valid {
		mv := int(row.MaxViews.Int64)
		record.MaxViews = &mv
	}
	return record, nil
}
