package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"http_addr":           ":9000",
		"base_url":            "https://portal.example/",
		"database_dsn":        "postgres://json",
		"jwt_secret":          "my_secret_key",
		"token_lifetime":      "48h",
		"attempts_backend":    "redis",
		"redis_addr":          "redis:6379",
		"redis_db":            2,
		"image_backend":       "s3",
		"s3_bucket":           "bucket",
		"s3_region":           "region",
		"s3_base_endpoint":    "base_endpoint",
		"smtp_host":           "smtp.example",
		"smtp_port":           465,
		"temp_image_base_url": "https://avatars.example",
		"log_backend":         "slog",
		"log_format":          "console",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, ":9000", cfg.HTTPAddr)
		assert.Equal(t, "https://portal.example/", cfg.BaseURL)
		assert.Equal(t, "postgres://json", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.JWTSecret)
		assert.Equal(t, 48*time.Hour, cfg.TokenLifetime)
		assert.Equal(t, BackendRedis, cfg.AttemptsBackend)
		assert.Equal(t, "redis:6379", cfg.RedisAddr)
		assert.Equal(t, 2, cfg.RedisDB)
		assert.Equal(t, BackendS3, cfg.ImageBackend)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "region", cfg.S3Region)
		assert.Equal(t, "base_endpoint", cfg.S3BaseEndpoint)
		assert.Equal(t, "smtp.example", cfg.SMTPHost)
		assert.Equal(t, 465, cfg.SMTPPort)
		assert.Equal(t, "https://avatars.example", cfg.TempImageBaseURL)
		assert.Equal(t, BackendSlog, cfg.LogBackend)
		assert.Equal(t, "console", cfg.LogFormat)
	})

	t.Run("keys missing from the file keep their value", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{"http_addr": ":1"})
		os.Args = []string{"testbin", "-c", partial}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, ":1", cfg.HTTPAddr)
		assert.Equal(t, 5*24*time.Hour, cfg.TokenLifetime)
		assert.Equal(t, BackendFS, cfg.ImageBackend)
	})

	t.Run("no config flag leaves config unchanged", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{HTTPAddr: "defaults:1234", JWTSecret: "key", TokenLifetime: 2 * time.Minute}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.HTTPAddr)
		assert.Equal(t, "key", cfg.JWTSecret)
		assert.Equal(t, 2*time.Minute, cfg.TokenLifetime)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		require.Panics(t, func() { parseJson(&Config{}) })
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(dir, "absent.json")}

		require.Panics(t, func() { parseJson(&Config{}) })
	})
}
