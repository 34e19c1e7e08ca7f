package hashpool

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sumatoshi-tech/multisum/pkg/digest"
)

// Status is the lifecycle state of a worker.
type Status int

// Worker statuses.
const (
	StatusIdle Status = iota
	StatusAccumulating
	StatusFinalized
	StatusFailed
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusAccumulating:
		return "accumulating"
	case StatusFinalized:
		return "finalized"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// WorkerState is a read-only snapshot of one worker.
type WorkerState struct {
	Algorithm         digest.Algorithm
	BytesAcknowledged int64
	Digest            string
	Status            Status
}

type worker struct {
	gen    uint64
	alg    digest.Algorithm
	engine *digest.Engine
	box    *mailbox
	events chan<- Event

	mu    sync.Mutex
	state WorkerState
}

func newWorker(gen uint64, eng *digest.Engine, events chan<- Event) *worker {
	return &worker{
		gen:    gen,
		alg:    eng.Algorithm(),
		engine: eng,
		box:    newMailbox(),
		events: events,
		state:  WorkerState{Algorithm: eng.Algorithm(), Status: StatusAccumulating},
	}
}

func (w *worker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.box.signal:
		}

		for _, c := range w.box.take() {
			if ctx.Err() != nil || !w.apply(ctx, c) {
				return
			}
		}
	}
}

// apply hashes one chunk and reports it. It returns false when the worker must stop.
func (w *worker) apply(ctx context.Context, c Chunk) bool {
	err := w.engine.Update(c.Data)
	if err != nil {
		return w.fail(ctx, fmt.Errorf("update [%d, %d): %w", c.Start, c.End, err))
	}

	if !c.Final {
		w.update(func(s *WorkerState) { s.BytesAcknowledged = c.End })

		return w.emit(ctx, Event{Kind: EventProgress, Acknowledged: c.End})
	}

	sum, err := w.engine.Finalize()
	if err != nil {
		return w.fail(ctx, err)
	}

	w.update(func(s *WorkerState) {
		s.BytesAcknowledged = c.End
		s.Digest = sum
		s.Status = StatusFinalized
	})

	// The worker keeps running: a chunk after the final one fails with ErrInvalidState.
	return w.emit(ctx, Event{Kind: EventDigest, Acknowledged: c.End, Digest: sum})
}

func (w *worker) fail(ctx context.Context, err error) bool {
	w.update(func(s *WorkerState) { s.Status = StatusFailed })
	w.emit(ctx, Event{Kind: EventFailed, Err: err})

	return false
}

func (w *worker) emit(ctx context.Context, ev Event) bool {
	ev.Generation = w.gen
	ev.Algorithm = w.alg

	select {
	case w.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *worker) update(fn func(*WorkerState)) {
	w.mu.Lock()
	fn(&w.state)
	w.mu.Unlock()
}

func (w *worker) snapshot() WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.state
}
