package hashpool

import "sync"

// mailbox is an unbounded FIFO with a one-slot wake-up signal.
// put never blocks, so the control loop is never held up by a slow worker.
type mailbox struct {
	mu     sync.Mutex
	queue  []Chunk
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (m *mailbox) put(c Chunk) {
	m.mu.Lock()
	m.queue = append(m.queue, c)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// take removes all queued chunks.
func (m *mailbox) take() []Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := m.queue
	m.queue = nil

	return batch
}

// depth returns the number of queued chunks.
func (m *mailbox) depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.queue)
}
