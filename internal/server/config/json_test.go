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

func Test_parseJson(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	full := writeTempJSON(t, dir, "full.json", map[string]any{
		"http_addr":                       "www.example:9000",
		"database_dsn":                    "postgres://json",
		"secret_key":                      "my_secret_key",
		"access_token_validity_duration":  "1m",
		"refresh_token_validity_duration": "3m",
		"storage_driver":                  "minio",
		"s3_bucket":                       "bucket",
		"s3_use_ssl":                      true,
		"photo_url_validity_duration":     "90s",
		"photo_max_side":                  640,
		"max_upload_bytes":                2048,
		"smtp_port":                       587,
		"redis_addr":                      "localhost:6379",
		"contact_window":                  "2h",
		"log_format":                      "zap",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", full}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.HTTPAddr)
		assert.Equal(t, "postgres://json", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 1*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 3*time.Minute, cfg.RefreshTokenValidityDuration)
		assert.Equal(t, "minio", cfg.StorageDriver)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.True(t, cfg.S3UseSSL)
		assert.Equal(t, 90*time.Second, cfg.PhotoURLValidityDuration)
		assert.Equal(t, 640, cfg.PhotoMaxSide)
		assert.Equal(t, int64(2048), cfg.MaxUploadBytes)
		assert.Equal(t, 587, cfg.SMTPPort)
		assert.Equal(t, "localhost:6379", cfg.RedisAddr)
		assert.Equal(t, 2*time.Hour, cfg.ContactWindow)
		assert.Equal(t, "zap", cfg.LogFormat)
	})

	t.Run("partial file leaves other fields", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{"s3_region": "eu-west-1"})
		os.Args = []string{"testbin", "-c", partial}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "eu-west-1", cfg.S3Region)
		assert.Equal(t, ":8001", cfg.HTTPAddr)
		assert.Equal(t, 750, cfg.PhotoMaxSide)
	})

	t.Run("no config flag means no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{HTTPAddr: "defaults:1234", S3Bucket: "s3bucket"}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.HTTPAddr)
		assert.Equal(t, "s3bucket", cfg.S3Bucket)
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", filepath.Join(dir, "absent.json")}
		assert.Panics(t, func() { parseJson(&Config{}) })
	})

	t.Run("invalid json panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
		os.Args = []string{"testbin", "-config", bad}
		assert.Panics(t, func() { parseJson(&Config{}) })
	})
}
