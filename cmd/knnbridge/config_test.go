package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, ValidateConfig(&cfg))

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"log format", func(c *Config) { c.LogFormat = "xml" }, ErrInvalidLogFormat},
		{"log level", func(c *Config) { c.LogLevel = "trace" }, ErrInvalidLogLevel},
		{"memory limit", func(c *Config) { c.MemoryLimit = -1 }, ErrInvalidMemoryLimit},
		{"io rate", func(c *Config) { c.IORateLimit = -1 }, ErrInvalidIORateLimit},
		{"batch size", func(c *Config) { c.BatchSize = 0 }, ErrInvalidBatchSize},
		{"workers", func(c *Config) { c.QueryWorkers = 0 }, ErrInvalidQueryWorkers},
		{"minio", func(c *Config) { c.MinioEndpoint = "localhost:9000" }, ErrMinioCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.ErrorIs(t, ValidateConfig(&cfg), tt.want)
		})
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("KNNBRIDGE_LOG_FORMAT", "json")
	t.Setenv("KNNBRIDGE_MEMORY_LIMIT", "1048576")
	t.Setenv("KNNBRIDGE_QUERY_WORKERS", "8")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, int64(1048576), cfg.MemoryLimit)
	assert.Equal(t, 8, cfg.QueryWorkers)
	assert.Equal(t, 10000, cfg.BatchSize)
	assert.True(t, cfg.MinioSecure)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("KNNBRIDGE_BATCH_SIZE=64\n"), 0o600))
	t.Setenv("KNNBRIDGE_BATCH_SIZE", "")
	os.Unsetenv("KNNBRIDGE_BATCH_SIZE")

	cfg, err := LoadConfig(envFile)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.BatchSize)

	t.Setenv("KNNBRIDGE_LOG_LEVEL", "loud")
	_, err = LoadConfig(envFile)
	assert.ErrorIs(t, err, ErrInvalidLogLevel)
}
