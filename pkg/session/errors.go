package session

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/multisum/pkg/chunk"
	"github.com/Sumatoshi-tech/multisum/pkg/hashpool"
)

// errDigestsBeforeFinal means every worker finalized while the controller
// still held unreleased ranges.
var errDigestsBeforeFinal = errors.New("digests ready before the final range was released")

// ErrorKind classifies a generation failure.
type ErrorKind int

// Failure kinds.
const (
	// KindIORead means a range of the input could not be read.
	KindIORead ErrorKind = iota + 1
	// KindWorkerInit means a digest engine could not be initialized.
	KindWorkerInit
	// KindInvalidState means an engine was driven out of order. It is a defect.
	KindInvalidState
)

// String returns the snake_case kind name used in logs and metrics.
func (k ErrorKind) String() string {
	switch k {
	case KindIORead:
		return "io_read"
	case KindWorkerInit:
		return "worker_init"
	case KindInvalidState:
		return "invalid_state"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by Compute when a generation fails.
type Error struct {
	Kind       ErrorKind
	Generation uint64
	Err        error
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("generation %d: %s: %v", e.Generation, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// classify maps a pipeline error to its kind.
func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, chunk.ErrRead):
		return KindIORead
	case errors.Is(err, hashpool.ErrWorkerInit):
		return KindWorkerInit
	default:
		return KindInvalidState
	}
}
