package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/multisum/pkg/observability"
)

func newReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()

	reader := sdkmetric.NewManualReader()

	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumWhere(t *testing.T, m *metricdata.Metrics, key, value string) int64 {
	t.Helper()

	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)

	var total int64

	for _, dp := range sum.DataPoints {
		if key == "" {
			total += dp.Value

			continue
		}

		if v, found := dp.Attributes.Value(attribute.Key(key)); found && v.AsString() == value {
			total += dp.Value
		}
	}

	return total
}

func TestREDMetrics_RecordRequest(t *testing.T) {
	t.Parallel()

	reader, mp := newReader(t)

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	red.RecordRequest(ctx, "checksum_text", observability.StatusOK, 10*time.Millisecond)
	red.RecordRequest(ctx, "checksum_file", observability.StatusError, time.Second)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(2), sumWhere(t, findMetric(rm, "multisum.requests.total"), "", ""))
	assert.Equal(t, int64(1), sumWhere(t, findMetric(rm, "multisum.errors.total"), "op", "checksum_file"))
	require.NotNil(t, findMetric(rm, "multisum.request.duration.seconds"))
}

func TestREDMetrics_TrackInflight(t *testing.T) {
	t.Parallel()

	reader, mp := newReader(t)

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	done := red.TrackInflight(context.Background(), "sum")
	assert.Equal(t, int64(1), sumWhere(t, findMetric(collectMetrics(t, reader), "multisum.inflight.requests"), "", ""))

	done()
	assert.Equal(t, int64(0), sumWhere(t, findMetric(collectMetrics(t, reader), "multisum.inflight.requests"), "", ""))
}

func TestPipelineMetrics_Records(t *testing.T) {
	t.Parallel()

	reader, mp := newReader(t)

	pm, err := observability.NewPipelineMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	pm.RecordGeneration(ctx, "text", observability.OutcomeStarted)
	pm.RecordDispatch(ctx, 4)
	pm.RecordDispatch(ctx, 2)
	pm.RecordHashed(ctx, "sha256", 6)
	pm.RecordRetired(ctx, 2)
	pm.RecordCompletion(ctx, "text", 5*time.Millisecond)
	pm.RecordFailure(ctx, "file", "io_read")

	rm := collectMetrics(t, reader)

	generations := findMetric(rm, "multisum.generations.total")
	assert.Equal(t, int64(1), sumWhere(t, generations, "outcome", observability.OutcomeStarted))
	assert.Equal(t, int64(1), sumWhere(t, generations, "outcome", observability.OutcomeCompleted))
	assert.Equal(t, int64(1), sumWhere(t, generations, "kind", "io_read"))

	assert.Equal(t, int64(2), sumWhere(t, findMetric(rm, "multisum.chunks.dispatched.total"), "", ""))
	assert.Equal(t, int64(6), sumWhere(t, findMetric(rm, "multisum.bytes.dispatched.total"), "", ""))
	assert.Equal(t, int64(6), sumWhere(t, findMetric(rm, "multisum.bytes.hashed.total"), "algorithm", "sha256"))
	assert.Equal(t, int64(0), sumWhere(t, findMetric(rm, "multisum.chunks.inflight"), "", ""))
	require.NotNil(t, findMetric(rm, "multisum.generation.duration.seconds"))
}

func TestMetrics_NilReceiverSafe(t *testing.T) {
	t.Parallel()

	var (
		red *observability.REDMetrics
		pm  *observability.PipelineMetrics
	)

	ctx := context.Background()

	assert.NotPanics(t, func() {
		red.RecordRequest(ctx, "op", observability.StatusOK, time.Second)
		red.TrackInflight(ctx, "op")()
		pm.RecordGeneration(ctx, "text", observability.OutcomeStarted)
		pm.RecordFailure(ctx, "text", "io_read")
		pm.RecordCompletion(ctx, "text", time.Second)
		pm.RecordDispatch(ctx, 1)
		pm.RecordRetired(ctx, 1)
		pm.RecordHashed(ctx, "md5", 1)
	})
}
