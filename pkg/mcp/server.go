// Package mcp implements a Model Context Protocol server exposing multisum
// checksums as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/multisum/pkg/observability"
	"github.com/Sumatoshi-tech/multisum/pkg/session"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "multisum"

	// toolCount is the expected number of registered tools.
	toolCount = 2
)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Version is reported as the MCP implementation version.
	Version string

	// Session is the pipeline shape used by every tool call. The zero value
	// uses session.DefaultConfig.
	Session session.Config

	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool metrics.
	Metrics *observability.REDMetrics

	// Pipeline is an optional hashing pipeline recorder.
	Pipeline *observability.PipelineMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer
}

// Server wraps the MCP SDK server with multisum tool registrations.
type Server struct {
	inner   *mcpsdk.Server
	mu      sync.RWMutex
	tools   []string
	cfg     session.Config
	logger  *slog.Logger
	metrics *observability.REDMetrics
	tracer  trace.Tracer
	opts    []session.Option
}

// NewServer creates a new MCP server with all multisum tools registered.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	version := deps.Version
	if version == "" {
		version = "dev"
	}

	cfg := deps.Session
	if len(cfg.Algorithms) == 0 && cfg.ChunkSize == 0 && cfg.Window == 0 {
		cfg = session.DefaultConfig()
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: version,
		},
		&mcpsdk.ServerOptions{Logger: logger},
	)

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithTracer(deps.Tracer),
		session.WithMetrics(deps.Pipeline),
	}

	srv := &Server{
		inner:   inner,
		tools:   make([]string, 0, toolCount),
		cfg:     cfg,
		logger:  logger,
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
		opts:    opts,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameChecksumText,
		Description: checksumTextDescription,
	}, withMetrics(s.metrics, ToolNameChecksumText, withTracing(s.tracer, ToolNameChecksumText, s.handleChecksumText)))

	s.trackTool(ToolNameChecksumText)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameChecksumFile,
		Description: checksumFileDescription,
	}, withMetrics(s.metrics, ToolNameChecksumFile, withTracing(s.tracer, ToolNameChecksumFile, s.handleChecksumFile)))

	s.trackTool(ToolNameChecksumFile)
}

// mcpSpanPrefix is the prefix for MCP tool span and metric op names.
const mcpSpanPrefix = "mcp."

// traceIDMetaKey is the metadata key for trace_id in MCP tool responses.
const traceIDMetaKey = "trace_id"

type toolHandler[Input any] = func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error)

// withTracing wraps an MCP tool handler to create an OTel span per invocation
// and include trace_id in the response content when sampled.
func withTracing[Input any](tracer trace.Tracer, toolName string, handler toolHandler[Input]) toolHandler[Input] {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			traceContent := &mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())}
			result.Content = append(result.Content, traceContent)
		}

		return result, output, err
	}
}

// withMetrics wraps an MCP tool handler to record RED metrics per invocation.
func withMetrics[Input any](metrics *observability.REDMetrics, toolName string, handler toolHandler[Input]) toolHandler[Input] {
	if metrics == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		decInflight := metrics.TrackInflight(ctx, mcpSpanPrefix+toolName)
		defer decInflight()

		result, output, err := handler(ctx, req, input)

		status := observability.StatusOK
		if err != nil || (result != nil && result.IsError) {
			status = observability.StatusError
		}

		metrics.RecordRequest(ctx, mcpSpanPrefix+toolName, status, time.Since(start))

		return result, output, err
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

// Tool description constants.
const (
	checksumTextDescription = "Compute MD5, SHA-1 and SHA-256 digests of a text value. " +
		"The text is Unicode NFC-normalized and hashed as UTF-8. " +
		"Optionally restrict the algorithms."

	checksumFileDescription = "Compute MD5, SHA-1 and SHA-256 digests of a local file, streamed in chunks. " +
		"Accepts an absolute path. Optionally restrict the algorithms."
)
