package session

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/multisum/pkg/chunk"
	"github.com/Sumatoshi-tech/multisum/pkg/digest"
	"github.com/Sumatoshi-tech/multisum/pkg/flow"
)

// Configuration errors.
var (
	ErrNoAlgorithms     = errors.New("no algorithms configured")
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	ErrInvalidWindow    = errors.New("buffer window must be positive")
)

// Config is the caller-chosen pipeline shape. It is fixed for the lifetime of a Supervisor.
type Config struct {
	// Algorithms are hashed in parallel, one worker each.
	Algorithms []digest.Algorithm

	// ChunkSize is the nominal byte length of one chunk.
	ChunkSize int64

	// Window is the number of chunks the producer may run ahead of the slowest worker.
	Window int
}

// DefaultConfig hashes with every algorithm using 1 MiB chunks and a 16-chunk window.
func DefaultConfig() Config {
	return Config{
		Algorithms: digest.All(),
		ChunkSize:  chunk.DefaultSize,
		Window:     flow.DefaultWindow,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if len(c.Algorithms) == 0 {
		return ErrNoAlgorithms
	}

	seen := make(map[digest.Algorithm]struct{}, len(c.Algorithms))

	for _, alg := range c.Algorithms {
		if !alg.Valid() {
			return fmt.Errorf("%w: %d", digest.ErrUnsupportedAlgorithm, int(alg))
		}

		if _, dup := seen[alg]; dup {
			return fmt.Errorf("duplicate algorithm %s", alg)
		}

		seen[alg] = struct{}{}
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, c.ChunkSize)
	}

	if c.Window <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWindow, c.Window)
	}

	return nil
}
