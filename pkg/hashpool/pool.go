// Package hashpool runs one incremental digest worker per algorithm and
// broadcasts every chunk to all of them.
//
// It is a fan-out, not a work queue: each worker hashes the full input on its
// own goroutine and reports progress independently.
package hashpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Sumatoshi-tech/multisum/pkg/digest"
)

// ErrWorkerInit marks failures to initialize a worker's digest engine.
var ErrWorkerInit = errors.New("worker init failed")

// ErrClosed is returned when dispatching to a closed pool.
var ErrClosed = errors.New("worker pool closed")

// ErrNoAlgorithms is returned when a pool is created without algorithms.
var ErrNoAlgorithms = errors.New("no algorithms configured")

// InitError reports which algorithm failed to initialize.
type InitError struct {
	Algorithm digest.Algorithm
	Err       error
}

// Error implements error.
func (e *InitError) Error() string {
	return fmt.Sprintf("init %s worker: %v", e.Algorithm, e.Err)
}

// Unwrap returns the underlying error.
func (e *InitError) Unwrap() error { return e.Err }

// Is makes every InitError match ErrWorkerInit.
func (e *InitError) Is(target error) bool { return target == ErrWorkerInit }

// Chunk is a realized byte range delivered to every worker.
// Data is shared between workers and must not be modified.
type Chunk struct {
	Start int64
	End   int64
	Data  []byte
	Final bool
}

// EventKind distinguishes worker events.
type EventKind int

// Event kinds.
const (
	EventProgress EventKind = iota
	EventDigest
	EventFailed
)

// String returns the kind name.
func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventDigest:
		return "digest"
	case EventFailed:
		return "failed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is emitted by a worker. Generation is the pool's generation captured
// at creation; receivers drop events whose generation is no longer current.
type Event struct {
	Generation   uint64
	Algorithm    digest.Algorithm
	Kind         EventKind
	Acknowledged int64
	Digest       string
	Err          error
}

type options struct {
	factory digest.Factory
	logger  *slog.Logger
}

// Option configures a Pool.
type Option func(*options)

// WithFactory overrides the engine factory.
func WithFactory(f digest.Factory) Option {
	return func(o *options) {
		if f != nil {
			o.factory = f
		}
	}
}

// WithLogger sets the pool logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Pool owns the workers of one generation.
type Pool struct {
	gen     uint64
	ctx     context.Context
	cancel  context.CancelFunc
	workers []*worker
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// New initializes one worker per algorithm for generation gen and starts them.
// Events are sent to events. If any engine fails to initialize, no worker is
// started and an *InitError is returned.
func New(gen uint64, algs []digest.Algorithm, events chan<- Event, opts ...Option) (*Pool, error) {
	if len(algs) == 0 {
		return nil, ErrNoAlgorithms
	}

	o := options{factory: digest.NewEngine, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	workers := make([]*worker, 0, len(algs))

	for _, alg := range algs {
		eng, err := o.factory(alg)
		if err == nil {
			err = eng.Init()
		}

		if err != nil {
			return nil, &InitError{Algorithm: alg, Err: err}
		}

		workers = append(workers, newWorker(gen, eng, events))
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		gen:     gen,
		ctx:     ctx,
		cancel:  cancel,
		workers: workers,
		logger:  o.logger.With("generation", gen),
	}

	for _, w := range workers {
		p.wg.Add(1)

		go func() {
			defer p.wg.Done()

			w.run(ctx)
		}()
	}

	p.logger.Debug("worker pool started", "workers", len(workers))

	return p, nil
}

// Generation returns the generation the pool is bound to.
func (p *Pool) Generation() uint64 { return p.gen }

// Algorithms returns the workers' algorithms in creation order.
func (p *Pool) Algorithms() []digest.Algorithm {
	algs := make([]digest.Algorithm, len(p.workers))
	for i, w := range p.workers {
		algs[i] = w.alg
	}

	return algs
}

// Dispatch delivers c to every worker. It never blocks.
func (p *Pool) Dispatch(c Chunk) error {
	if p.ctx.Err() != nil {
		return ErrClosed
	}

	for _, w := range p.workers {
		w.box.put(c)
	}

	return nil
}

// States returns a snapshot of every worker's state.
func (p *Pool) States() []WorkerState {
	states := make([]WorkerState, len(p.workers))
	for i, w := range p.workers {
		states[i] = w.snapshot()
	}

	return states
}

// Backlog returns the largest number of chunks queued at any worker.
func (p *Pool) Backlog() int {
	deepest := 0
	for _, w := range p.workers {
		deepest = max(deepest, w.box.depth())
	}

	return deepest
}

// Close stops the workers. It does not wait: a worker in the middle of an
// update finishes it, then exits without emitting further events.
func (p *Pool) Close() {
	if p.ctx.Err() != nil {
		return
	}

	p.cancel()
	p.logger.Debug("worker pool closed")
}

// Wait blocks until every worker goroutine has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}
