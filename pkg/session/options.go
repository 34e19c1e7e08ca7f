package session

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/multisum/pkg/digest"
	"github.com/Sumatoshi-tech/multisum/pkg/observability"
)

// tracerName scopes the spans emitted by this package.
const tracerName = "multisum/session"

type options struct {
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *observability.PipelineMetrics
	factory  digest.Factory
	progress func(percent float64)
}

func defaultOptions() options {
	return options{
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
		factory: digest.NewEngine,
	}
}

// Option configures a Supervisor or a Compute call.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracer sets the tracer used for generation spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithMetrics records pipeline metrics. Nil disables recording.
func WithMetrics(m *observability.PipelineMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithEngineFactory overrides how digest engines are built for each generation.
func WithEngineFactory(f digest.Factory) Option {
	return func(o *options) {
		if f != nil {
			o.factory = f
		}
	}
}

// WithProgress receives progress updates from Compute.
func WithProgress(fn func(percent float64)) Option {
	return func(o *options) { o.progress = fn }
}
