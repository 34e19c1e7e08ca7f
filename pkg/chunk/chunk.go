// Package chunk turns hash inputs into ordered, contiguous byte ranges.
package chunk

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/multisum/pkg/units"
)

// DefaultSize is the default chunk size. Small enough for responsive progress,
// large enough that per-chunk overhead stays negligible.
const DefaultSize = 1 * units.MiB

// ErrInvalidSize is returned when a chunk size is not positive.
var ErrInvalidSize = errors.New("chunk size must be positive")

// ErrRead marks failures to realize a chunk's bytes.
var ErrRead = errors.New("chunk read failed")

// Descriptor is one immutable byte range of an input.
type Descriptor struct {
	Generation uint64
	Start      int64 // Inclusive offset.
	End        int64 // Exclusive offset.
	Final      bool
}

// Len returns the range length in bytes.
func (d Descriptor) Len() int64 { return d.End - d.Start }

// String formats the descriptor for logs.
func (d Descriptor) String() string {
	return fmt.Sprintf("gen=%d [%d, %d) final=%t", d.Generation, d.Start, d.End, d.Final)
}

// Source yields the descriptors of one input in ascending order and realizes their bytes.
// A Source is lazy, finite and not restartable.
type Source interface {
	// TotalSize returns the input length in bytes.
	TotalSize() int64

	// ChunkSize returns the nominal chunk size.
	ChunkSize() int64

	// Next returns the next descriptor. ok is false once the final descriptor was returned.
	Next() (desc Descriptor, ok bool)

	// Read returns the bytes to hash for desc.
	Read(ctx context.Context, desc Descriptor) ([]byte, error)

	// Sync reports whether Read is an in-memory operation that may run on the caller's goroutine.
	Sync() bool
}

// ReadError reports a failed range read.
type ReadError struct {
	Start int64
	End   int64
	Err   error
}

// Error implements error.
func (e *ReadError) Error() string {
	return fmt.Sprintf("read range [%d, %d): %v", e.Start, e.End, e.Err)
}

// Unwrap returns the underlying error.
func (e *ReadError) Unwrap() error { return e.Err }

// Is makes every ReadError match ErrRead.
func (e *ReadError) Is(target error) bool { return target == ErrRead }

// Count returns how many descriptors a byte source of totalSize bytes yields
// for chunkSize. A zero-length input has a single empty chunk.
func Count(totalSize, chunkSize int64) (int64, error) {
	if chunkSize <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSize, chunkSize)
	}

	if totalSize <= 0 {
		return 1, nil
	}

	return (totalSize + chunkSize - 1) / chunkSize, nil
}
