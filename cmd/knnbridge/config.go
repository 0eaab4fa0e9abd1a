package main

import (
	"errors"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "KNNBRIDGE"

// Config is read from KNNBRIDGE_* environment variables, optionally seeded
// from a .env file.
type Config struct {
	LogFormat    string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	MemoryLimit  int64  `envconfig:"MEMORY_LIMIT" default:"0"`
	IORateLimit  int64  `envconfig:"IO_RATE_LIMIT" default:"0"`
	BatchSize    int    `envconfig:"BATCH_SIZE" default:"10000"`
	QueryWorkers int    `envconfig:"QUERY_WORKERS" default:"4"`
	MetricsAddr  string `envconfig:"METRICS_ADDR"`

	S3Region string `envconfig:"S3_REGION"`

	MinioEndpoint  string `envconfig:"MINIO_ENDPOINT"`
	MinioAccessKey string `envconfig:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `envconfig:"MINIO_SECRET_KEY"`
	MinioSecure    bool   `envconfig:"MINIO_SECURE" default:"true"`
}

// Config validation errors
var (
	ErrInvalidLogFormat    = errors.New("log_format must be 'json' or 'text'")
	ErrInvalidLogLevel     = errors.New("log_level must be debug, info, warn, or error")
	ErrInvalidMemoryLimit  = errors.New("memory_limit cannot be negative")
	ErrInvalidIORateLimit  = errors.New("io_rate_limit cannot be negative")
	ErrInvalidBatchSize    = errors.New("batch_size must be positive")
	ErrInvalidQueryWorkers = errors.New("query_workers must be positive")
	ErrMinioCredentials    = errors.New("minio_access_key and minio_secret_key are required with minio_endpoint")
)

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		LogFormat:    "text",
		LogLevel:     "info",
		BatchSize:    10000,
		QueryWorkers: 4,
		MinioSecure:  true,
	}
}

// LoadConfig reads the configuration. A missing env file is not an error.
func LoadConfig(envFiles ...string) (Config, error) {
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, err
	}
	if err := ValidateConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return ErrInvalidLogFormat
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.MemoryLimit < 0 {
		return ErrInvalidMemoryLimit
	}
	if cfg.IORateLimit < 0 {
		return ErrInvalidIORateLimit
	}
	if cfg.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if cfg.QueryWorkers <= 0 {
		return ErrInvalidQueryWorkers
	}
	if cfg.MinioEndpoint != "" && (cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "") {
		return ErrMinioCredentials
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, ErrInvalidLogLevel
	}
}
