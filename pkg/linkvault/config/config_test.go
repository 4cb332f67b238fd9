package config

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/linkvault/pkg/linkvault"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "memory", cfg.DatabaseType)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, "sharded", cfg.ObjectKeys)
}

func TestOptions(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{"port", []Option{WithPort("9090")}, false},
		{"empty port", []Option{WithPort("")}, true},
		{"environment", []Option{WithEnvironment("testing")}, false},
		{"unknown environment", []Option{WithEnvironment("staging")}, true},
		{"sqlite", []Option{WithDatabase("sqlite", "/tmp/x.db")}, false},
		{"sqlite without path", []Option{WithDatabase("sqlite", "")}, true},
		{"postgres without url", []Option{WithDatabase("postgres", "")}, true},
		{"mysql", []Option{WithDatabase("mysql", "x")}, true},
		{"filesystem", []Option{WithFilesystemStorage("/tmp/blobs")}, false},
		{"filesystem without dir", []Option{WithFilesystemStorage("")}, true},
		{"s3 without bucket", []Option{WithS3Storage("", "us-east-1", "", false)}, true},
		{"unknown object keys", []Option{WithObjectKeys("random")}, true},
		{"negative max file size", []Option{WithMaxFileSize(-1)}, true},
		{"zero sweep interval", []Option{WithSweep(0, 0)}, true},
		{"bcrypt cost too high", []Option{WithBcryptCost(64)}, true},
		{"production with secret", []Option{WithEnvironment("production"), WithJWTSecret("s")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.opts...)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuildService(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name string
		opts []Option
	}{
		{"memory", nil},
		{"memory snapshot and filesystem", []Option{
			WithDatabase("memory", filepath.Join(dir, "records.json")),
			WithFilesystemStorage(filepath.Join(dir, "blobs")),
		}},
		{"sqlite", []Option{
			WithDatabase("sqlite", filepath.Join(dir, "linkvault.db")),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]Option{WithBcryptCost(4), WithFrontendURL("http://localhost:3000/")}, tt.opts...)
			cfg, err := Load(opts...)
			require.NoError(t, err)
			assert.Equal(t, "http://localhost:3000", cfg.FrontendURL)

			svc, closeFn, err := cfg.BuildService(ctx, nil)
			require.NoError(t, err)
			defer closeFn()

			text := "hello"
			res, err := svc.Create(ctx, linkvault.CreateRequest{Text: &text})
			require.NoError(t, err)

			out, err := svc.Read(ctx, linkvault.ReadRequest{Handle: res.Handle})
			require.NoError(t, err)
			assert.Equal(t, "hello", out.Text)

			blob, err := svc.Create(ctx, linkvault.CreateRequest{Blob: &linkvault.BlobUpload{
				Reader:   strings.NewReader("bytes"),
				FileName: "b.txt",
			}})
			require.NoError(t, err)
			require.NoError(t, svc.Delete(ctx, linkvault.DeleteRequest{Handle: blob.Handle}))
		})
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := &ServerConfig{LogLevel: "warn"}
	assert.Equal(t, "WARN", cfg.SlogLevel().String())

	cfg.LogLevel = "nonsense"
	assert.Equal(t, "INFO", cfg.SlogLevel().String())
}

func TestTokenAuth(t *testing.T) {
	cfg := &ServerConfig{}
	assert.Nil(t, cfg.TokenAuth())

	cfg.JWTSecret = "secret"
	ja := cfg.TokenAuth()
	require.NotNil(t, ja)

	_, token, err := ja.Encode(map[string]interface{}{"sub": "user-1"})
	require.NoError(t, err)

	decoded, err := ja.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", decoded.Subject())
}
