package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/linkvault/pkg/linkvault"
	"github.com/tendant/linkvault/pkg/linkvault/objectkey"
	"github.com/tendant/linkvault/pkg/linkvault/repo/memory"
	repopg "github.com/tendant/linkvault/pkg/linkvault/repo/postgres"
	reposqlite "github.com/tendant/linkvault/pkg/linkvault/repo/sqlite"
	fsstorage "github.com/tendant/linkvault/pkg/linkvault/storage/fs"
	memorystorage "github.com/tendant/linkvault/pkg/linkvault/storage/memory"
	s3storage "github.com/tendant/linkvault/pkg/linkvault/storage/s3"
	"golang.org/x/crypto/bcrypt"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:        "8080",
		Environment: "development",
		FrontendURL: "http://localhost:3000",
		LogLevel:    "info",

		DatabaseType: "memory",
		DBSchema:     "public",

		Storage: StorageBackendConfig{
			Type:   "memory",
			Config: map[string]interface{}{},
		},
		ObjectKeys: objectkey.Sharded,

		DefaultExpiry:     10 * time.Minute,
		MaxFileSize:       10 << 20,
		SweepInterval:     linkvault.DefaultSweepInterval,
		SweepStartupDelay: linkvault.DefaultSweepStartupDelay,
		BcryptCost:        bcrypt.DefaultCost,
	}
}

// ServerConfig represents server configuration for the linkvault service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing
	FrontendURL string // base of share URLs and the allowed CORS origin
	LogLevel    string // debug, info, warn, error

	// Record store configuration
	DatabaseType string // "memory", "sqlite", "postgres"
	DatabaseURL  string // postgres connection string
	DatabasePath string // snapshot file for memory, database file for sqlite
	DBSchema     string // Postgres schema to use (default: public)

	// Blob storage configuration
	Storage    StorageBackendConfig
	ObjectKeys string // "flat", "sharded", "hashed"

	// Content policy
	DefaultExpiry time.Duration
	MaxFileSize   int64
	BcryptCost    int

	// Expiry sweep
	SweepInterval     time.Duration
	SweepStartupDelay time.Duration

	// JWTSecret signs upload tokens (HS256). Empty disables upload auth.
	JWTSecret string
}

// StorageBackendConfig represents configuration for the blob storage backend
type StorageBackendConfig struct {
	Type   string // "memory", "fs", "s3"
	Config map[string]interface{}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.Environment {
	case "development", "production", "testing":
	default:
		return fmt.Errorf("environment must be 'development', 'production' or 'testing', got: %s", c.Environment)
	}

	switch c.DatabaseType {
	case "memory":
	case "sqlite":
		if c.DatabasePath == "" {
			return errors.New("database path is required when using sqlite")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	default:
		return errors.New("database_type must be 'memory', 'sqlite' or 'postgres'")
	}

	switch c.Storage.Type {
	case "memory":
	case "fs":
		if getString(c.Storage.Config, "base_dir", "") == "" {
			return errors.New("base_dir is required for fs storage")
		}
	case "s3":
		if getString(c.Storage.Config, "bucket", "") == "" {
			return errors.New("bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}

	if _, err := objectkey.New(c.ObjectKeys); err != nil {
		return err
	}

	if c.DefaultExpiry <= 0 {
		return errors.New("default expiry must be positive")
	}
	if c.MaxFileSize < 0 {
		return errors.New("max file size cannot be negative")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.SweepInterval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	if c.SweepStartupDelay < 0 {
		return errors.New("sweep startup delay cannot be negative")
	}

	if c.Environment == "production" && c.JWTSecret == "" {
		return errors.New("jwt secret is required in production")
	}

	return nil
}

// BuildService creates a Service instance from the server configuration.
// The returned close function releases the record store.
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (linkvault.Service, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	repo, closeRepo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build repository: %w", err)
	}

	store, err := c.buildStorageBackend()
	if err != nil {
		closeRepo()
		return nil, nil, fmt.Errorf("failed to build storage backend %s: %w", c.Storage.Type, err)
	}

	keys, err := objectkey.New(c.ObjectKeys)
	if err != nil {
		closeRepo()
		return nil, nil, err
	}

	svc, err := linkvault.New(
		linkvault.WithRepository(repo),
		linkvault.WithBlobStore(c.Storage.Type, store),
		linkvault.WithKeyGenerator(keys),
		linkvault.WithLogger(logger),
		linkvault.WithDefaultTTL(c.DefaultExpiry),
		linkvault.WithMaxBlobSize(c.MaxFileSize),
		linkvault.WithBcryptCost(c.BcryptCost),
	)
	if err != nil {
		closeRepo()
		return nil, nil, err
	}

	logger.Info("linkvault service configured",
		"database", c.DatabaseType,
		"storage", c.Storage.Type,
		"object_keys", c.ObjectKeys,
		"default_expiry", c.DefaultExpiry.String(),
	)

	return svc, closeRepo, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context) (linkvault.Repository, func(), error) {
	noop := func() {}

	switch c.DatabaseType {
	case "memory":
		if c.DatabasePath == "" {
			return memory.New(), noop, nil
		}
		repo, err := memory.NewWithSnapshot(c.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		return repo, noop, nil

	case "sqlite":
		repo, err := reposqlite.Open(c.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil

	case "postgres":
		if c.DatabaseURL == "" {
			return nil, nil, errors.New("database_url is required for postgres")
		}
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		// Optionally set search_path for the connection
		schema := c.DBSchema
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if schema == "" {
				return nil
			}
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
			return err
		}
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		repo := repopg.NewWithPool(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repo, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// buildStorageBackend creates a BlobStore based on the backend configuration
func (c *ServerConfig) buildStorageBackend() (linkvault.BlobStore, error) {
	config := c.Storage

	switch config.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir: getString(config.Config, "base_dir", "./data/storage"),
		})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 getString(config.Config, "region", "us-east-1"),
			Bucket:                 getString(config.Config, "bucket", ""),
			Prefix:                 getString(config.Config, "prefix", ""),
			AccessKeyID:            getString(config.Config, "access_key_id", ""),
			SecretAccessKey:        getString(config.Config, "secret_access_key", ""),
			Endpoint:               getString(config.Config, "endpoint", ""),
			UsePathStyle:           getBool(config.Config, "use_path_style", false),
			EnableSSE:              getBool(config.Config, "enable_sse", false),
			SSEAlgorithm:           getString(config.Config, "sse_algorithm", ""),
			SSEKMSKeyID:            getString(config.Config, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(config.Config, "create_bucket_if_not_exist", false),
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", config.Type)
	}
}

// TokenAuth returns the HS256 verifier for upload tokens, or nil when no
// secret is configured.
func (c *ServerConfig) TokenAuth() *jwtauth.JWTAuth {
	if c.JWTSecret == "" {
		return nil
	}
	return jwtauth.New("HS256", []byte(c.JWTSecret), nil)
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c *ServerConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
		if str, ok := value.(string); ok {
			if b, err := strconv.ParseBool(str); err == nil {
				return b
			}
		}
	}
	return defaultValue
}
