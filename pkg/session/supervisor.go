// Package session drives one hashing generation at a time: it feeds chunks
// from the input through flow control into the worker pool, and delivers the
// results of the current generation to an Observer.
//
// Every submission gets a new generation id. Work tagged with an older id is
// dropped when it reaches the control loop, so a superseded input never
// produces callbacks.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sumatoshi-tech/multisum/pkg/chunk"
	"github.com/Sumatoshi-tech/multisum/pkg/hashpool"
)

// ErrAlreadyRunning is returned when Run is called on a running Supervisor.
var ErrAlreadyRunning = errors.New("supervisor already running")

// eventBuffer is the capacity of the shared worker event channel.
const eventBuffer = 64

type submission struct {
	gen       uint64
	input     Input
	submitted time.Time
}

type readResult struct {
	gen  uint64
	desc chunk.Descriptor
	data []byte
	err  error
}

// Supervisor owns the generation counter and the single control loop.
type Supervisor struct {
	cfg      Config
	observer Observer
	opts     options

	gen     atomic.Uint64
	running atomic.Bool

	mu      sync.Mutex
	pending *submission
	wake    chan struct{}

	events chan hashpool.Event
	reads  chan readResult
}

// New validates cfg and returns a Supervisor that reports to observer.
// Call Run to start processing submissions.
func New(cfg Config, observer Observer, opts ...Option) (*Supervisor, error) {
	if observer == nil {
		observer = ObserverFuncs{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Supervisor{
		cfg:      cfg,
		observer: observer,
		opts:     o,
		wake:     make(chan struct{}, 1),
		events:   make(chan hashpool.Event, eventBuffer),
		reads:    make(chan readResult, cfg.Window),
	}, nil
}

// Generation returns the id of the most recent submission, or 0 before the first.
func (s *Supervisor) Generation() uint64 { return s.gen.Load() }

// Submit replaces the current input with in and returns its generation id. It never
// blocks. Results of every earlier generation are discarded from this point
// on, including a submission that Run has not picked up yet.
func (s *Supervisor) Submit(in Input) uint64 {
	s.mu.Lock()

	gen := s.gen.Add(1)
	if s.pending != nil {
		s.opts.logger.Debug("pending submission superseded before start", "generation", s.pending.gen)
	}

	s.pending = &submission{gen: gen, input: in, submitted: time.Now()}

	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}

	return gen
}

func (s *Supervisor) takePending() *submission {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := s.pending
	s.pending = nil

	return sub
}

// current reports whether gen is still the latest submission.
func (s *Supervisor) current(gen uint64) bool {
	return gen == s.gen.Load()
}

// Run is the control loop. It returns nil when ctx is done, after closing the
// pool of the generation in progress.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	var cur *generation

	for {
		select {
		case <-ctx.Done():
			if cur != nil {
				cur.abandon("canceled")
			}

			return nil

		case <-s.wake:
			sub := s.takePending()
			if sub == nil {
				continue
			}

			if cur != nil {
				cur.abandon("superseded")
			}

			cur = s.start(ctx, sub)

		case ev := <-s.events:
			if cur == nil || ev.Generation != cur.gen || !s.current(ev.Generation) {
				s.opts.logger.Debug("dropped stale worker event",
					"generation", ev.Generation, "algorithm", ev.Algorithm, "kind", ev.Kind)

				continue
			}

			cur.handleEvent(ev)

		case rr := <-s.reads:
			if cur == nil || rr.gen != cur.gen || !s.current(rr.gen) {
				s.opts.logger.Debug("dropped stale read", "generation", rr.gen, "range", rr.desc.String())

				continue
			}

			cur.handleRead(rr)
		}

		if cur != nil && cur.done {
			cur = nil
		}
	}
}
