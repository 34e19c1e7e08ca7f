package session

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/multisum/pkg/chunk"
	"github.com/Sumatoshi-tech/multisum/pkg/digest"
	"github.com/Sumatoshi-tech/multisum/pkg/flow"
	"github.com/Sumatoshi-tech/multisum/pkg/hashpool"
	"github.com/Sumatoshi-tech/multisum/pkg/observability"
	"github.com/Sumatoshi-tech/multisum/pkg/safeconv"
)

// generation is the loop-owned state of one submission.
type generation struct {
	s      *Supervisor
	gen    uint64
	input  Input
	start  time.Time
	ctx    context.Context
	span   trace.Span
	logger *slog.Logger

	src     chunk.Source
	ctl     *flow.Controller
	pool    *hashpool.Pool
	reorder *flow.Reorder

	// ends holds the end offsets of dispatched chunks not yet hashed by every worker.
	ends       []int64
	dispatched int
	planned    int
	lastPct    float64
	digests    map[digest.Algorithm]string
	done       bool
}

// start opens a generation for sub: a fresh pool and controller bound to its id.
func (s *Supervisor) start(runCtx context.Context, sub *submission) *generation {
	ctx, span := s.opts.tracer.Start(runCtx, "session.generation",
		trace.WithAttributes(
			attribute.Int64("multisum.generation", safeconv.MustUint64ToInt64(sub.gen)),
			attribute.String("multisum.input.source", sub.input.Source()),
			attribute.String("multisum.input.label", sub.input.Label),
			attribute.Int64("multisum.input.size", sub.input.Size()),
			attribute.Int64("multisum.chunk_size", s.cfg.ChunkSize),
			attribute.Int("multisum.window", s.cfg.Window),
		),
	)

	g := &generation{
		s:       s,
		gen:     sub.gen,
		input:   sub.input,
		start:   sub.submitted,
		ctx:     ctx,
		span:    span,
		logger:  s.opts.logger.With("generation", sub.gen, "source", sub.input.Source()),
		reorder: flow.NewReorder(),
		digests: make(map[digest.Algorithm]string, len(s.cfg.Algorithms)),
	}

	if sub.input.Label != "" {
		g.logger = g.logger.With("label", sub.input.Label)
	}

	src, err := sub.input.chunks(sub.gen, s.cfg.ChunkSize)
	if err != nil {
		g.fail(classify(err), err)

		return g
	}

	pool, err := hashpool.New(sub.gen, s.cfg.Algorithms, s.events,
		hashpool.WithFactory(s.opts.factory),
		hashpool.WithLogger(s.opts.logger),
	)
	if err != nil {
		g.fail(KindWorkerInit, err)

		return g
	}

	ctl, err := flow.New(src, s.cfg.Algorithms, s.cfg.Window)
	if err != nil {
		pool.Close()
		g.fail(KindInvalidState, err)

		return g
	}

	g.src, g.pool, g.ctl = src, pool, ctl

	if !src.Sync() {
		planned, countErr := chunk.Count(src.TotalSize(), src.ChunkSize())
		if countErr != nil {
			g.fail(KindInvalidState, countErr)

			return g
		}

		g.planned = int(planned)
		span.SetAttributes(attribute.Int64("multisum.chunks.planned", planned))
	}

	s.opts.metrics.RecordGeneration(ctx, sub.input.Source(), observability.OutcomeStarted)
	g.logger.DebugContext(ctx, "generation started",
		"size", src.TotalSize(), "algorithms", len(s.cfg.Algorithms), "planned_chunks", g.planned)

	g.pump()

	return g
}

// pump releases what the window allows and realizes it. In-memory sources are
// read inline; file ranges are read on their own goroutines.
func (g *generation) pump() {
	if !g.s.current(g.gen) {
		return
	}

	for _, desc := range g.ctl.Release() {
		if g.src.Sync() {
			data, err := g.src.Read(g.ctx, desc)
			if err != nil {
				g.fail(KindIORead, err)

				return
			}

			g.dispatch(desc, data)

			continue
		}

		g.reorder.Expect(desc)
		g.readAsync(desc)
	}
}

func (g *generation) readAsync(desc chunk.Descriptor) {
	src, reads, runCtx := g.src, g.s.reads, g.ctx

	go func() {
		data, err := src.Read(runCtx, desc)

		select {
		case reads <- readResult{gen: desc.Generation, desc: desc, data: data, err: err}:
		case <-runCtx.Done():
		}
	}()
}

func (g *generation) handleRead(rr readResult) {
	if g.done {
		return
	}

	if rr.err != nil {
		g.fail(KindIORead, rr.err)

		return
	}

	if err := g.reorder.Fill(rr.desc, rr.data); err != nil {
		g.fail(KindInvalidState, err)

		return
	}

	for _, r := range g.reorder.Ready() {
		g.dispatch(r.Desc, r.Data)
	}
}

func (g *generation) dispatch(desc chunk.Descriptor, data []byte) {
	err := g.pool.Dispatch(hashpool.Chunk{Start: desc.Start, End: desc.End, Data: data, Final: desc.Final})
	if err != nil {
		g.fail(KindInvalidState, err)

		return
	}

	g.ends = append(g.ends, desc.End)
	g.dispatched++
	g.s.opts.metrics.RecordDispatch(g.ctx, int64(len(data)))
}

func (g *generation) handleEvent(ev hashpool.Event) {
	if g.done {
		return
	}

	switch ev.Kind {
	case hashpool.EventProgress:
		if g.acknowledge(ev) {
			g.reportProgress()
			g.pump()
		}

	case hashpool.EventDigest:
		g.acknowledge(ev)
		g.digests[ev.Algorithm] = ev.Digest
		g.logger.DebugContext(g.ctx, "digest ready", "algorithm", ev.Algorithm.String())

		if len(g.digests) < len(g.s.cfg.Algorithms) {
			g.reportProgress()

			return
		}

		g.complete()

	case hashpool.EventFailed:
		g.logger.ErrorContext(g.ctx, "worker failed", "algorithm", ev.Algorithm.String(), "error", ev.Err)
		g.fail(classify(ev.Err), ev.Err)
	}
}

func (g *generation) acknowledge(ev hashpool.Event) bool {
	prev := g.ctl.Acknowledged(ev.Algorithm)
	if !g.ctl.Acknowledge(ev.Algorithm, ev.Acknowledged) {
		return false
	}

	g.s.opts.metrics.RecordHashed(g.ctx, ev.Algorithm.String(), g.ctl.Acknowledged(ev.Algorithm)-prev)

	floor := g.ctl.MinAcknowledged()

	var retired int64

	for len(g.ends) > 0 && g.ends[0] <= floor {
		g.ends = g.ends[1:]
		retired++
	}

	g.s.opts.metrics.RecordRetired(g.ctx, retired)

	return true
}

// reportProgress delivers a new, higher percentage. 100 is held back until
// every digest is in, which matters for empty inputs.
func (g *generation) reportProgress() {
	pct := g.ctl.Percent()
	if pct <= g.lastPct {
		return
	}

	if pct >= 100 && len(g.digests) < len(g.s.cfg.Algorithms) {
		return
	}

	g.lastPct = pct
	g.s.observer.Progress(pct)
}

// complete delivers every digest in configured order, then 100% and the
// Result. Delivery stops as soon as a callback submits a newer input.
func (g *generation) complete() {
	if g.ctl.Pending() {
		g.fail(KindInvalidState, errDigestsBeforeFinal)

		return
	}

	g.done = true
	g.pool.Close()

	elapsed := time.Since(g.start)

	res := Result{
		Generation: g.gen,
		Label:      g.input.Label,
		Source:     g.input.Source(),
		TotalSize:  g.ctl.TotalSize(),
		Chunks:     g.dispatched,
		Algorithms: append([]digest.Algorithm(nil), g.s.cfg.Algorithms...),
		Digests:    make(map[digest.Algorithm]string, len(g.digests)),
		Elapsed:    elapsed,
	}

	for alg, hex := range g.digests {
		res.Digests[alg] = hex
	}

	g.s.opts.metrics.RecordRetired(g.ctx, int64(len(g.ends)))
	g.s.opts.metrics.RecordCompletion(g.ctx, res.Source, elapsed)

	g.span.SetAttributes(attribute.Int("multisum.chunks", res.Chunks))
	if g.planned > 0 && g.planned != res.Chunks {
		g.logger.WarnContext(g.ctx, "chunk count differs from plan", "planned", g.planned, "chunks", res.Chunks)
	}

	g.span.SetStatus(codes.Ok, "")
	g.span.End()

	g.logger.DebugContext(g.ctx, "generation completed",
		"size", res.TotalSize, "chunks", res.Chunks, "elapsed", elapsed)

	for _, d := range res.Ordered() {
		if !g.s.current(g.gen) {
			return
		}

		g.s.observer.DigestReady(d.Algorithm, d.Hex)
	}

	if !g.s.current(g.gen) {
		return
	}

	g.reportProgress()

	if !g.s.current(g.gen) {
		return
	}

	if co, ok := g.s.observer.(CompletionObserver); ok {
		co.Completed(res)
	}
}

// fail stops the generation and reports err once.
func (g *generation) fail(kind ErrorKind, err error) {
	if g.done {
		return
	}

	g.done = true

	if g.pool != nil {
		g.pool.Close()
	}

	g.s.opts.metrics.RecordRetired(g.ctx, int64(len(g.ends)))
	g.s.opts.metrics.RecordFailure(g.ctx, g.input.Source(), kind.String())

	g.span.RecordError(err)
	g.span.SetStatus(codes.Error, kind.String())
	g.span.End()

	g.logger.ErrorContext(g.ctx, "generation failed", "kind", kind.String(), "error", err, "released", g.released())

	if !g.s.current(g.gen) {
		return
	}

	g.s.observer.Failed(kind, err)
}

// released returns how many descriptors the controller let out, 0 before it exists.
func (g *generation) released() int {
	if g.ctl == nil {
		return 0
	}

	return g.ctl.Released()
}

// abandon closes a generation that is no longer wanted, without callbacks.
func (g *generation) abandon(reason string) {
	if g.done {
		return
	}

	g.done = true

	if g.pool != nil {
		g.pool.Close()
	}

	g.s.opts.metrics.RecordRetired(g.ctx, int64(len(g.ends)))
	g.s.opts.metrics.RecordGeneration(g.ctx, g.input.Source(), observability.OutcomeSuperseded)

	g.span.AddEvent(reason)
	g.span.End()

	backlog := 0
	if g.pool != nil {
		backlog = g.pool.Backlog()
	}

	g.logger.DebugContext(g.ctx, "generation abandoned", "reason", reason,
		"released", g.released(), "dispatched", g.dispatched, "backlog", backlog)
}
