package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for core-go.
type Config struct {
	HTTPAddr    string
	LogLevel    string
	DatabaseURL string

	// SchemaURL wins over SchemaPath; with neither set the bundled schema
	// is used.
	SchemaURL      string
	SchemaPath     string
	SchemaCacheTTL time.Duration

	PreviewBaseURL     string
	PreviewTimeout     time.Duration
	PreviewConcurrency int
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a variable lookup.
func FromEnv(getenv func(string) string) (Config, error) {
	envOr := func(key, fallback string) string {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return fallback
		}
		return v
	}

	cfg := Config{
		HTTPAddr:       envOr("HTTP_ADDR", ":8081"),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		DatabaseURL:    envOr("DATABASE_URL", ""),
		SchemaURL:      envOr("SCHEMA_URL", ""),
		SchemaPath:     envOr("SCHEMA_PATH", ""),
		PreviewBaseURL: envOr("PREVIEW_BASE_URL", ""),
	}

	var err error
	if cfg.SchemaCacheTTL, err = parseDuration("SCHEMA_CACHE_TTL", envOr("SCHEMA_CACHE_TTL", "5m")); err != nil {
		return cfg, err
	}
	if cfg.PreviewTimeout, err = parseDuration("PREVIEW_TIMEOUT", envOr("PREVIEW_TIMEOUT", "10s")); err != nil {
		return cfg, err
	}
	if cfg.PreviewTimeout <= 0 {
		return cfg, fmt.Errorf("invalid PREVIEW_TIMEOUT: must be positive")
	}

	raw := envOr("PREVIEW_CONCURRENCY", "4")
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return cfg, fmt.Errorf("invalid PREVIEW_CONCURRENCY: %s", raw)
	}
	cfg.PreviewConcurrency = n

	return cfg, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %s", key, raw)
	}
	return d, nil
}
