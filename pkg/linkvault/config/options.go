package config

import (
	"fmt"
	"strings"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithFrontendURL sets the base URL used in share links
func WithFrontendURL(u string) Option {
	return func(c *ServerConfig) error {
		c.FrontendURL = strings.TrimRight(u, "/")
		return nil
	}
}

// WithDatabase configures the record store. For memory the location is an
// optional snapshot file, for sqlite the database file and for postgres the
// connection string.
func WithDatabase(dbType, location string) Option {
	return func(c *ServerConfig) error {
		switch dbType {
		case "memory":
			c.DatabasePath = location
			c.DatabaseURL = ""
		case "sqlite":
			if location == "" {
				return fmt.Errorf("sqlite requires a database path")
			}
			c.DatabasePath = location
			c.DatabaseURL = ""
		case "postgres":
			if location == "" {
				return fmt.Errorf("postgres requires a database URL")
			}
			c.DatabaseURL = location
			c.DatabasePath = ""
		default:
			return fmt.Errorf("database type must be 'memory', 'sqlite' or 'postgres', got: %s", dbType)
		}
		c.DatabaseType = dbType
		return nil
	}
}

// WithMemoryStorage selects the in-memory blob backend
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.Storage = StorageBackendConfig{Type: "memory", Config: map[string]interface{}{}}
		return nil
	}
}

// WithFilesystemStorage selects the filesystem blob backend rooted at baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("base directory cannot be empty")
		}
		c.Storage = StorageBackendConfig{
			Type:   "fs",
			Config: map[string]interface{}{"base_dir": baseDir},
		}
		return nil
	}
}

// WithS3Storage selects the S3 blob backend
func WithS3Storage(bucket, region, endpoint string, pathStyle bool) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("bucket cannot be empty")
		}
		config := map[string]interface{}{
			"bucket":         bucket,
			"region":         region,
			"use_path_style": pathStyle,
		}
		if endpoint != "" {
			config["endpoint"] = endpoint
		}
		c.Storage = StorageBackendConfig{Type: "s3", Config: config}
		return nil
	}
}

// WithObjectKeys selects the blob key layout (flat, sharded, hashed)
func WithObjectKeys(name string) Option {
	return func(c *ServerConfig) error {
		c.ObjectKeys = name
		return nil
	}
}

// WithDefaultExpiry sets the lifetime of content uploaded without an expiry
func WithDefaultExpiry(d time.Duration) Option {
	return func(c *ServerConfig) error {
		if d <= 0 {
			return fmt.Errorf("default expiry must be positive")
		}
		c.DefaultExpiry = d
		return nil
	}
}

// WithMaxFileSize sets the maximum upload size in bytes
func WithMaxFileSize(n int64) Option {
	return func(c *ServerConfig) error {
		c.MaxFileSize = n
		return nil
	}
}

// WithSweep sets the expiry sweep schedule
func WithSweep(interval, startupDelay time.Duration) Option {
	return func(c *ServerConfig) error {
		c.SweepInterval = interval
		c.SweepStartupDelay = startupDelay
		return nil
	}
}

// WithJWTSecret sets the HS256 secret for upload tokens
func WithJWTSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.JWTSecret = secret
		return nil
	}
}

// WithBcryptCost sets the cost used to hash item passwords
func WithBcryptCost(cost int) Option {
	return func(c *ServerConfig) error {
		c.BcryptCost = cost
		return nil
	}
}
