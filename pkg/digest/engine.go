package digest

import (
	"crypto/md5"  //nolint:gosec // MD5 is a user-selected checksum, not a security primitive.
	"crypto/sha1" //nolint:gosec // SHA1 is a user-selected checksum, not a security primitive.
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
)

// ErrInvalidState is returned when an engine operation is not valid in its current state.
// It signals a defect in the caller's sequencing, never a user error.
var ErrInvalidState = errors.New("digest engine: invalid state")

// State is the lifecycle state of an Engine.
type State int

// Engine states.
const (
	StateIdle State = iota
	StateAccumulating
	StateFinalized
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Engine is the incremental state machine for one digest algorithm.
// It is not safe for concurrent use; each worker owns exactly one.
type Engine struct {
	alg    Algorithm
	state  State
	h      hash.Hash
	digest string
	size   int64
}

// Factory creates engines. The worker pool takes one so tests can inject failures.
type Factory func(alg Algorithm) (*Engine, error)

// NewEngine returns an Idle engine for alg.
func NewEngine(alg Algorithm) (*Engine, error) {
	if !alg.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedAlgorithm, int(alg))
	}

	return &Engine{alg: alg}, nil
}

// Algorithm returns the engine's algorithm.
func (e *Engine) Algorithm() Algorithm { return e.alg }

// State returns the current lifecycle state.
func (e *Engine) State() State { return e.state }

// Size returns the number of bytes fed so far.
func (e *Engine) Size() int64 { return e.size }

// Digest returns the finalized hex digest, or "" before Finalize.
func (e *Engine) Digest() string { return e.digest }

// Init allocates the algorithm state. Idle -> Accumulating.
func (e *Engine) Init() error {
	if e.state != StateIdle {
		return fmt.Errorf("%w: init in %s", ErrInvalidState, e.state)
	}

	h, err := newHash(e.alg)
	if err != nil {
		return err
	}

	e.h = h
	e.state = StateAccumulating

	return nil
}

// Update feeds p into the running hash.
func (e *Engine) Update(p []byte) error {
	if e.state != StateAccumulating {
		return fmt.Errorf("%w: update in %s", ErrInvalidState, e.state)
	}

	// hash.Hash.Write never returns an error.
	_, _ = e.h.Write(p)
	e.size += int64(len(p))

	return nil
}

// Finalize computes the digest and moves to Finalized. It is one-way.
func (e *Engine) Finalize() (string, error) {
	if e.state != StateAccumulating {
		return "", fmt.Errorf("%w: finalize in %s", ErrInvalidState, e.state)
	}

	e.digest = hex.EncodeToString(e.h.Sum(nil))
	e.state = StateFinalized
	e.h = nil

	return e.digest, nil
}

// Sum computes the digest of data in one shot.
func Sum(alg Algorithm, data []byte) (string, error) {
	h, err := newHash(alg)
	if err != nil {
		return "", err
	}

	_, _ = h.Write(data)

	return hex.EncodeToString(h.Sum(nil)), nil
}

func newHash(alg Algorithm) (hash.Hash, error) {
	switch alg {
	case MD5:
		return md5.New(), nil //nolint:gosec // see import comment.
	case SHA1:
		return sha1.New(), nil //nolint:gosec // see import comment.
	case SHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedAlgorithm, int(alg))
	}
}
