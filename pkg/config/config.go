// Package config loads multisum configuration from a YAML file, MULTISUM_*
// environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/multisum/pkg/digest"
)

// Sentinel validation errors.
var (
	ErrNoAlgorithms      = errors.New("at least one algorithm must be configured")
	ErrInvalidChunkSize  = errors.New("chunk size must be a positive byte size")
	ErrInvalidWindow     = errors.New("buffer window must be positive")
	ErrInvalidLogLevel   = errors.New("unknown log level")
	ErrInvalidSampleRate = errors.New("sample ratio must be within [0, 1]")
)

// Config is the root configuration.
type Config struct {
	Hashing       HashingConfig       `mapstructure:"hashing"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
}

// HashingConfig controls the digest pipeline.
type HashingConfig struct {
	// Algorithms lists digest names, e.g. ["md5", "sha-256"].
	Algorithms []string `mapstructure:"algorithms"`

	// ChunkSize is a human-readable byte size such as "1MiB" or "64KB".
	ChunkSize string `mapstructure:"chunk_size"`

	// BufferWindow is the number of chunks the producer may run ahead of
	// the slowest worker.
	BufferWindow int `mapstructure:"buffer_window"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// ObservabilityConfig controls OpenTelemetry export.
type ObservabilityConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	Environment  string  `mapstructure:"environment"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	// Addr is the listen address; empty disables the endpoint.
	Addr string `mapstructure:"addr"`
}

// ParsedAlgorithms resolves the configured names, dropping duplicates.
func (h HashingConfig) ParsedAlgorithms() ([]digest.Algorithm, error) {
	if len(h.Algorithms) == 0 {
		return nil, ErrNoAlgorithms
	}

	algs, err := digest.ParseAlgorithms(h.Algorithms)
	if err != nil {
		return nil, fmt.Errorf("parse algorithms: %w", err)
	}

	return algs, nil
}

// ChunkSizeBytes parses ChunkSize.
func (h HashingConfig) ChunkSizeBytes() (int64, error) {
	n, err := humanize.ParseBytes(h.ChunkSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidChunkSize, h.ChunkSize, err)
	}

	if n == 0 || n > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidChunkSize, h.ChunkSize)
	}

	return int64(n), nil
}

// SlogLevel maps Level to a [slog.Level].
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level

	if err := level.UnmarshalText([]byte(strings.TrimSpace(l.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, l.Level)
	}

	return level, nil
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if _, err := c.Hashing.ParsedAlgorithms(); err != nil {
		return err
	}

	if _, err := c.Hashing.ChunkSizeBytes(); err != nil {
		return err
	}

	if c.Hashing.BufferWindow <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWindow, c.Hashing.BufferWindow)
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}

	if c.Observability.SampleRatio < 0 || c.Observability.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRate, c.Observability.SampleRatio)
	}

	return nil
}
