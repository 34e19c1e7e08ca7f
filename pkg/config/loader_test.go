package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/multisum/pkg/config"
	"github.com/Sumatoshi-tech/multisum/pkg/digest"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".multisum.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_EmptyFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.Default(), cfg)

	algs, err := cfg.Hashing.ParsedAlgorithms()
	require.NoError(t, err)
	assert.Equal(t, digest.All(), algs)

	size, err := cfg.Hashing.ChunkSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), size)
}

func TestLoadConfig_ValidFileUnmarshals(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `hashing:
  algorithms: [SHA-256, md5]
  chunk_size: 64KiB
  buffer_window: 4
logging:
  level: debug
  json: true
observability:
  otlp_endpoint: localhost:4317
  otlp_insecure: true
  sample_ratio: 0.5
  environment: staging
metrics:
  addr: 127.0.0.1:9464
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	algs, err := cfg.Hashing.ParsedAlgorithms()
	require.NoError(t, err)
	assert.Equal(t, []digest.Algorithm{digest.SHA256, digest.MD5}, algs)

	size, err := cfg.Hashing.ChunkSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(64*1024), size)
	assert.Equal(t, 4, cfg.Hashing.BufferWindow)

	level, err := cfg.Logging.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
	assert.True(t, cfg.Logging.JSON)

	assert.Equal(t, "localhost:4317", cfg.Observability.OTLPEndpoint)
	assert.True(t, cfg.Observability.OTLPInsecure)
	assert.InDelta(t, 0.5, cfg.Observability.SampleRatio, 0.0001)
	assert.Equal(t, "staging", cfg.Observability.Environment)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Addr)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("MULTISUM_HASHING_BUFFER_WINDOW", "32")
	t.Setenv("MULTISUM_HASHING_CHUNK_SIZE", "2MiB")

	cfg, err := config.LoadConfig(writeConfig(t, "hashing:\n  buffer_window: 8\n"))
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.Hashing.BufferWindow)

	size, err := cfg.Hashing.ChunkSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(2<<20), size)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "hashing: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "no algorithms", content: "hashing:\n  algorithms: []\n", wantErr: config.ErrNoAlgorithms},
		{name: "unknown algorithm", content: "hashing:\n  algorithms: [crc32]\n", wantErr: digest.ErrUnsupportedAlgorithm},
		{name: "zero chunk", content: "hashing:\n  chunk_size: \"0\"\n", wantErr: config.ErrInvalidChunkSize},
		{name: "garbage chunk", content: "hashing:\n  chunk_size: lots\n", wantErr: config.ErrInvalidChunkSize},
		{name: "zero window", content: "hashing:\n  buffer_window: 0\n", wantErr: config.ErrInvalidWindow},
		{name: "bad level", content: "logging:\n  level: loud\n", wantErr: config.ErrInvalidLogLevel},
		{name: "bad ratio", content: "observability:\n  sample_ratio: 2\n", wantErr: config.ErrInvalidSampleRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
