// Package flow paces chunk dispatch against the slowest digest worker.
//
// A Controller is owned by a single goroutine and is not safe for concurrent use.
package flow

import (
	"errors"
	"fmt"
	"math"

	"github.com/Sumatoshi-tech/multisum/pkg/chunk"
	"github.com/Sumatoshi-tech/multisum/pkg/digest"
)

// DefaultWindow is the default number of chunks allowed ahead of the slowest worker.
const DefaultWindow = 16

// percentScale converts a ratio to a percentage.
const percentScale = 100

// ErrInvalidWindow is returned when the buffer window is not positive.
var ErrInvalidWindow = errors.New("buffer window must be positive")

// Controller holds the not-yet-dispatched descriptors of one generation and
// the acknowledged offsets of its workers.
type Controller struct {
	src       chunk.Source
	window    int64
	chunkSize int64
	total     int64

	head    chunk.Descriptor
	hasHead bool

	acked    map[digest.Algorithm]int64
	released int
}

// New creates a controller over src for the given workers.
func New(src chunk.Source, algs []digest.Algorithm, window int) (*Controller, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, window)
	}

	acked := make(map[digest.Algorithm]int64, len(algs))
	for _, alg := range algs {
		acked[alg] = 0
	}

	c := &Controller{
		src:       src,
		window:    int64(window),
		chunkSize: src.ChunkSize(),
		total:     src.TotalSize(),
		acked:     acked,
	}

	c.advance()

	return c, nil
}

// advance pulls the next descriptor from the source into the queue head.
func (c *Controller) advance() {
	c.head, c.hasHead = c.src.Next()
}

// Pending reports whether descriptors remain to be released.
func (c *Controller) Pending() bool { return c.hasHead }

// Released returns the number of descriptors released so far.
func (c *Controller) Released() int { return c.released }

// TotalSize returns the input size.
func (c *Controller) TotalSize() int64 { return c.total }

// NextStart returns the start offset of the queue head, or the total size once drained.
func (c *Controller) NextStart() int64 {
	if !c.hasHead {
		return c.total
	}

	return c.head.Start
}

// Acknowledge records that alg has consumed the input up to offset.
// Offsets that do not advance are ignored. It reports whether progress moved.
func (c *Controller) Acknowledge(alg digest.Algorithm, offset int64) bool {
	prev, ok := c.acked[alg]
	if !ok || offset <= prev {
		return false
	}

	c.acked[alg] = min(offset, c.total)

	return true
}

// Acknowledged returns the offset acknowledged by alg.
func (c *Controller) Acknowledged(alg digest.Algorithm) int64 {
	return c.acked[alg]
}

// MinAcknowledged returns the offset every worker has reached.
func (c *Controller) MinAcknowledged() int64 {
	if len(c.acked) == 0 {
		return 0
	}

	lowest := int64(math.MaxInt64)
	for _, v := range c.acked {
		lowest = min(lowest, v)
	}

	return lowest
}

// Lag returns how far the queue head is ahead of the slowest worker.
func (c *Controller) Lag() int64 {
	return c.NextStart() - c.MinAcknowledged()
}

// Percent returns overall progress in [0, 100]. It is 100 only when every
// worker has acknowledged the whole input.
func (c *Controller) Percent() float64 {
	acked := c.MinAcknowledged()
	if acked >= c.total {
		return percentScale
	}

	pct := percentScale * float64(acked) / float64(c.total)
	if pct >= percentScale {
		// Rounding on very large inputs must not report completion early.
		pct = math.Nextafter(percentScale, 0)
	}

	return pct
}

// Release pops the descriptors that fit in the window, in ascending order.
func (c *Controller) Release() []chunk.Descriptor {
	if !c.hasHead {
		return nil
	}

	behind := (c.head.Start - c.MinAcknowledged()) / c.chunkSize

	n := c.window - behind
	if n <= 0 {
		return nil
	}

	out := make([]chunk.Descriptor, 0, n)

	for ; n > 0 && c.hasHead; n-- {
		out = append(out, c.head)
		c.advance()
	}

	c.released += len(out)

	return out
}
