package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricGenerationsTotal   = "multisum.generations.total"
	metricGenerationDuration = "multisum.generation.duration.seconds"
	metricChunksDispatched   = "multisum.chunks.dispatched.total"
	metricBytesDispatched    = "multisum.bytes.dispatched.total"
	metricBytesHashed        = "multisum.bytes.hashed.total"
	metricChunksInflight     = "multisum.chunks.inflight"

	attrOutcome   = "outcome"
	attrSource    = "source"
	attrAlgorithm = "algorithm"
	attrKind      = "kind"

	// OutcomeStarted counts a generation when its workers are up.
	OutcomeStarted = "started"
	// OutcomeCompleted counts a generation whose digests were all delivered.
	OutcomeCompleted = "completed"
	// OutcomeSuperseded counts a generation replaced by a newer submission.
	OutcomeSuperseded = "superseded"
	// OutcomeFailed counts a generation that reported an error.
	OutcomeFailed = "failed"
)

// PipelineMetrics holds the hashing pipeline instruments. All methods are
// safe on a nil receiver.
type PipelineMetrics struct {
	generations      metric.Int64Counter
	duration         metric.Float64Histogram
	chunksDispatched metric.Int64Counter
	bytesDispatched  metric.Int64Counter
	bytesHashed      metric.Int64Counter
	chunksInflight   metric.Int64UpDownCounter
}

// NewPipelineMetrics creates pipeline instruments from mt.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	b := newMetricBuilder(mt)

	pm := &PipelineMetrics{
		generations: b.counter(metricGenerationsTotal, "Hashing generations by outcome", "{generation}"),
		duration: b.histogram(metricGenerationDuration,
			"Time from submission to the last digest", "s", durationBucketBoundaries...),
		chunksDispatched: b.counter(metricChunksDispatched, "Chunks broadcast to the worker pool", "{chunk}"),
		bytesDispatched:  b.counter(metricBytesDispatched, "Bytes broadcast to the worker pool", "By"),
		bytesHashed:      b.counter(metricBytesHashed, "Bytes acknowledged by each algorithm", "By"),
		chunksInflight: b.upDownCounter(metricChunksInflight,
			"Chunks released by flow control but not yet acknowledged by every worker", "{chunk}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return pm, nil
}

// RecordGeneration counts a generation outcome for the given input source.
func (pm *PipelineMetrics) RecordGeneration(ctx context.Context, source, outcome string) {
	if pm == nil {
		return
	}

	pm.generations.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrSource, source),
		attribute.String(attrOutcome, outcome),
	))
}

// RecordFailure counts a failed generation with its error kind.
func (pm *PipelineMetrics) RecordFailure(ctx context.Context, source, kind string) {
	if pm == nil {
		return
	}

	pm.generations.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrSource, source),
		attribute.String(attrOutcome, OutcomeFailed),
		attribute.String(attrKind, kind),
	))
}

// RecordCompletion records a completed generation and its wall time.
func (pm *PipelineMetrics) RecordCompletion(ctx context.Context, source string, elapsed time.Duration) {
	if pm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrSource, source))

	pm.RecordGeneration(ctx, source, OutcomeCompleted)
	pm.duration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordDispatch counts one chunk of n bytes broadcast to the pool.
func (pm *PipelineMetrics) RecordDispatch(ctx context.Context, n int64) {
	if pm == nil {
		return
	}

	pm.chunksDispatched.Add(ctx, 1)
	pm.bytesDispatched.Add(ctx, n)
	pm.chunksInflight.Add(ctx, 1)
}

// RecordRetired marks chunks acknowledged by every worker.
func (pm *PipelineMetrics) RecordRetired(ctx context.Context, chunks int64) {
	if pm == nil || chunks == 0 {
		return
	}

	pm.chunksInflight.Add(ctx, -chunks)
}

// RecordHashed counts n bytes acknowledged by the worker for algorithm.
func (pm *PipelineMetrics) RecordHashed(ctx context.Context, algorithm string, n int64) {
	if pm == nil || n <= 0 {
		return
	}

	pm.bytesHashed.Add(ctx, n, metric.WithAttributes(attribute.String(attrAlgorithm, algorithm)))
}
