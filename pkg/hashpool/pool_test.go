package hashpool_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/multisum/pkg/digest"
	"github.com/Sumatoshi-tech/multisum/pkg/hashpool"
)

const eventTimeout = 5 * time.Second

var errNoEngine = errors.New("engine unavailable")

func recv(t *testing.T, events <-chan hashpool.Event) hashpool.Event {
	t.Helper()

	select {
	case ev := <-events:
		return ev
	case <-time.After(eventTimeout):
		require.FailNow(t, "timed out waiting for worker event")

		return hashpool.Event{}
	}
}

func newPool(t *testing.T, gen uint64, events chan hashpool.Event) *hashpool.Pool {
	t.Helper()

	p, err := hashpool.New(gen, digest.All(), events)
	require.NoError(t, err)

	t.Cleanup(func() {
		p.Close()
		p.Wait()
	})

	return p
}

func TestPool_BroadcastsToEveryWorker(t *testing.T) {
	t.Parallel()

	events := make(chan hashpool.Event, 16)
	p := newPool(t, 4, events)

	require.NoError(t, p.Dispatch(hashpool.Chunk{Start: 0, End: 2, Data: []byte("he")}))
	require.NoError(t, p.Dispatch(hashpool.Chunk{Start: 2, End: 5, Data: []byte("llo"), Final: true}))

	progress := map[digest.Algorithm]int64{}
	digests := map[digest.Algorithm]string{}

	for len(digests) < len(digest.All()) {
		ev := recv(t, events)
		assert.Equal(t, uint64(4), ev.Generation)

		switch ev.Kind {
		case hashpool.EventProgress:
			progress[ev.Algorithm] = ev.Acknowledged
		case hashpool.EventDigest:
			assert.Equal(t, int64(5), ev.Acknowledged)
			digests[ev.Algorithm] = ev.Digest
		case hashpool.EventFailed:
			require.FailNow(t, "unexpected failure", ev.Err)
		}
	}

	for _, alg := range digest.All() {
		assert.Equal(t, int64(2), progress[alg], "progress for %s", alg)
	}

	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", digests[digest.MD5])
	assert.Equal(t, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", digests[digest.SHA1])
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", digests[digest.SHA256])

	for _, st := range p.States() {
		assert.Equal(t, hashpool.StatusFinalized, st.Status)
		assert.Equal(t, int64(5), st.BytesAcknowledged)
		assert.Equal(t, digests[st.Algorithm], st.Digest)
	}
}

func TestPool_ChunkAfterFinalFailsWithInvalidState(t *testing.T) {
	t.Parallel()

	events := make(chan hashpool.Event, 16)

	p, err := hashpool.New(1, []digest.Algorithm{digest.SHA1}, events)
	require.NoError(t, err)

	defer p.Close()

	require.NoError(t, p.Dispatch(hashpool.Chunk{Final: true}))
	require.NoError(t, p.Dispatch(hashpool.Chunk{Start: 0, End: 1, Data: []byte("x")}))

	first := recv(t, events)
	require.Equal(t, hashpool.EventDigest, first.Kind)
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", first.Digest)

	second := recv(t, events)
	require.Equal(t, hashpool.EventFailed, second.Kind)
	require.ErrorIs(t, second.Err, digest.ErrInvalidState)

	p.Wait()

	states := p.States()
	require.Len(t, states, 1)
	assert.Equal(t, hashpool.StatusFailed, states[0].Status)
	assert.Equal(t, first.Digest, states[0].Digest, "failure must not alter the computed digest")
}

func TestPool_InitFailure(t *testing.T) {
	t.Parallel()

	factory := func(alg digest.Algorithm) (*digest.Engine, error) {
		if alg == digest.SHA1 {
			return nil, errNoEngine
		}

		return digest.NewEngine(alg)
	}

	_, err := hashpool.New(1, digest.All(), make(chan hashpool.Event), hashpool.WithFactory(factory))
	require.ErrorIs(t, err, hashpool.ErrWorkerInit)
	require.ErrorIs(t, err, errNoEngine)

	var initErr *hashpool.InitError

	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, digest.SHA1, initErr.Algorithm)
}

func TestPool_NoAlgorithms(t *testing.T) {
	t.Parallel()

	_, err := hashpool.New(1, nil, make(chan hashpool.Event))
	require.ErrorIs(t, err, hashpool.ErrNoAlgorithms)
}

func TestPool_CloseStopsWorkersWithoutDraining(t *testing.T) {
	t.Parallel()

	// Unbuffered and never read: workers block on their first event until Close.
	events := make(chan hashpool.Event)

	p, err := hashpool.New(9, digest.All(), events)
	require.NoError(t, err)

	require.NoError(t, p.Dispatch(hashpool.Chunk{Start: 0, End: 1, Data: []byte("a")}))

	p.Close()

	done := make(chan struct{})

	go func() {
		p.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(eventTimeout):
		require.FailNow(t, "workers did not exit after Close")
	}

	require.ErrorIs(t, p.Dispatch(hashpool.Chunk{}), hashpool.ErrClosed)
}

func TestPool_DispatchNeverBlocks(t *testing.T) {
	t.Parallel()

	events := make(chan hashpool.Event)
	p := newPool(t, 2, events)

	const chunks = 1000

	for i := range chunks {
		require.NoError(t, p.Dispatch(hashpool.Chunk{Start: int64(i), End: int64(i + 1), Data: []byte{byte(i)}}))
	}

	assert.LessOrEqual(t, p.Backlog(), chunks)
	assert.Equal(t, digest.All(), p.Algorithms())
	assert.Equal(t, uint64(2), p.Generation())
}
