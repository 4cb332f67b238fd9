package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/linkvault/pkg/linkvault"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Schema creates the records table. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS content_records (
	handle        TEXT PRIMARY KEY,
	kind          VARCHAR(16) NOT NULL,
	payload       TEXT NOT NULL,
	file_name     TEXT,
	file_size     BIGINT,
	mime_type     VARCHAR(255),
	created_at    TIMESTAMPTZ NOT NULL,
	expires_at    TIMESTAMPTZ NOT NULL,
	password_hash TEXT NOT NULL DEFAULT '',
	max_views     INTEGER,
	view_count    INTEGER NOT NULL DEFAULT 0,
	one_time_view BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS content_records_expires_at_idx ON content_records (expires_at);
`

const selectColumns = `
	handle, kind, payload, file_name, file_size, mime_type, created_at,
	expires_at, password_hash, max_views, view_count, one_time_view`

// Repository implements linkvault.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// EnsureSchema creates the records table and its index when missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return r.handlePostgresError("ensure schema", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return linkvault.ErrDuplicateHandle
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return linkvault.ErrRecordNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Record operations

func (r *Repository) Create(ctx context.Context, record *linkvault.Record) error {
	query := `
		INSERT INTO content_records (
			handle, kind, payload, file_name, file_size, mime_type, created_at,
			expires_at, password_hash, max_views, view_count, one_time_view
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	fileName, fileSize, mimeType := blobColumns(record)
	_, err := r.db.Exec(ctx, query,
		record.Handle, string(record.Kind), record.Payload,
		fileName, fileSize, mimeType,
		record.CreatedAt, record.ExpiresAt, record.PasswordHash,
		record.MaxViews, record.ViewCount, record.OneTimeView)

	if err != nil {
		return r.handlePostgresError("create record", err)
	}

	return nil
}

func (r *Repository) Get(ctx context.Context, handle string) (*linkvault.Record, error) {
	query := `SELECT` + selectColumns + ` FROM content_records WHERE handle = $1`

	record, err := scanRecord(r.db.QueryRow(ctx, query, handle))
	if err != nil {
		return nil, r.handlePostgresError("get record", err)
	}

	return record, nil
}

func (r *Repository) Update(ctx context.Context, record *linkvault.Record) error {
	query := `
		UPDATE content_records SET
			kind = $2, payload = $3, file_name = $4, file_size = $5, mime_type = $6,
			expires_at = $7, password_hash = $8, max_views = $9, view_count = $10,
			one_time_view = $11
		WHERE handle = $1`

	fileName, fileSize, mimeType := blobColumns(record)
	tag, err := r.db.Exec(ctx, query,
		record.Handle, string(record.Kind), record.Payload,
		fileName, fileSize, mimeType,
		record.ExpiresAt, record.PasswordHash, record.MaxViews,
		record.ViewCount, record.OneTimeView)

	if err != nil {
		return r.handlePostgresError("update record", err)
	}
	if tag.RowsAffected() == 0 {
		return linkvault.ErrRecordNotFound
	}

	return nil
}

func (r *Repository) Delete(ctx context.Context, handle string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM content_records WHERE handle = $1`, handle)
	if err != nil {
		return r.handlePostgresError("delete record", err)
	}
	if tag.RowsAffected() == 0 {
		return linkvault.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context) ([]*linkvault.Record, error) {
	query := `SELECT` + selectColumns + ` FROM content_records ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, r.handlePostgresError("list records", err)
	}
	defer rows.Close()

	var records []*linkvault.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan record", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list records", err)
	}

	return records, nil
}

func blobColumns(record *linkvault.Record) (*string, *int64, *string) {
	if record.Blob == nil {
		return nil, nil, nil
	}
	return &record.Blob.FileName, &record.Blob.Size, &record.Blob.MimeType
}

func scanRecord(row pgx.Row) (*linkvault.Record, error) {
	var (
		record   linkvault.Record
		kind     string
		fileName *string
		fileSize *int64
		mimeType *string
		maxViews *int32
	)

	err := row.Scan(
		&record.Handle, &kind, &record.Payload, &fileName, &fileSize, &mimeType,
		&record.CreatedAt, &record.ExpiresAt, &record.PasswordHash, &maxViews,
		&record.ViewCount, &record.OneTimeView)
	if err != nil {
		return nil, err
	}

	record.Kind = linkvault.Kind(kind)
	record.CreatedAt = record.CreatedAt.UTC()
	record.ExpiresAt = record.ExpiresAt.UTC()
	if fileName != nil || fileSize != nil || mimeType != nil {
		record.Blob = &linkvault.BlobMeta{}
		if fileName != nil {
			record.Blob.FileName = *fileName
		}
		if fileSize != nil {
			record.Blob.Size = *fileSize
		}
		if mimeType != nil {
			record.Blob.MimeType = *mimeType
		}
	}
	if maxViews != nil {
		mv := int(*maxViews)
		record.MaxViews = &mv
	}

	return &record, nil
}
