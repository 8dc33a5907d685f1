// Package mcp serves dwellscope residency analysis over the Model Context
// Protocol, as stdio tools an MCP client can call.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dwellscope/dwellscope/internal/observability"
	"github.com/dwellscope/dwellscope/internal/pipeline"
	"github.com/dwellscope/dwellscope/internal/seriescache"
	"github.com/dwellscope/dwellscope/pkg/config"
)

// ServerDeps carries the server's injectable collaborators. Every field
// is optional; nil fields switch the corresponding concern off or fall
// back to a default.
type ServerDeps struct {
	// Logger defaults to slog.Default when nil.
	Logger *slog.Logger

	// Metrics enables per-tool RED recording when set.
	Metrics *observability.REDMetrics

	// PipelineMetrics is handed to the aggregator for per-analyzer recording.
	PipelineMetrics *observability.PipelineMetrics

	// Tracer enables per-tool-call spans when set.
	Tracer trace.Tracer

	// Cache holds resampled series across tool calls, so a client asking
	// about several systems in one dataset pays the resample cost once.
	Cache *seriescache.Cache

	// Defaults are the analysis knobs used when a call has no override.
	// The zero value means the package defaults.
	Defaults config.AnalysisConfig
}

// Server is the MCP server with the residency tools registered.
type Server struct {
	inner    *mcpsdk.Server
	logger   *slog.Logger
	metrics  *observability.REDMetrics
	tracer   trace.Tracer
	agg      *pipeline.Aggregator
	cache    *seriescache.Cache
	defaults config.AnalysisConfig

	mu    sync.RWMutex
	tools []string
}

// NewServer assembles the server and registers every tool.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	// The aggregator takes a tracer unconditionally. Leaving deps.Tracer
	// nil only skips the per-tool wrapper spans; the pipeline's own spans
	// become no-ops.
	aggTracer := deps.Tracer
	if aggTracer == nil {
		aggTracer = noop.NewTracerProvider().Tracer("dwellscope")
	}

	knobs := deps.Defaults
	if knobs == (config.AnalysisConfig{}) {
		knobs = config.DefaultAnalysis()
	}

	srv := &Server{
		inner:    mcpsdk.NewServer(&mcpsdk.Implementation{Name: "dwellscope", Version: "1.0.0"}, opts),
		logger:   logger,
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,
		agg:      pipeline.New(logger, aggTracer, deps.PipelineMetrics),
		cache:    deps.Cache,
		defaults: knobs,
	}

	registerTool(srv, ToolNameAnalyze, analyzeToolDescription, srv.handleAnalyze)
	registerTool(srv, ToolNameSystems, systemsToolDescription, srv.handleSystems)

	return srv
}

// registerTool adds one instrumented tool and records its name.
func registerTool[In any](
	s *Server,
	name, desc string,
	fn func(context.Context, *mcpsdk.CallToolRequest, In) (*mcpsdk.CallToolResult, ToolOutput, error),
) {
	mcpsdk.AddTool(s.inner,
		&mcpsdk.Tool{Name: name, Description: desc},
		measured(s.metrics, name, traced(s.tracer, name, fn)),
	)

	s.mu.Lock()
	s.tools = append(s.tools, name)
	s.mu.Unlock()
}

// ListToolNames returns the registered tool names in sorted order.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Sorted(slices.Values(s.tools))
}

// Run serves MCP over stdio until ctx ends or the peer disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport serves MCP over the given transport. It blocks until
// ctx ends or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	if err := s.inner.Run(ctx, transport); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// traced runs each invocation inside a span named "mcp.<tool>". Sampled
// calls get a trailing trace_id content block appended to the response, so
// a client can quote the exact trace when reporting a problem.
func traced[In any](
	tracer trace.Tracer,
	name string,
	fn func(context.Context, *mcpsdk.CallToolRequest, In) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, In) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return fn
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, "mcp."+name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", name)),
		)
		defer span.End()

		result, output, err := fn(ctx, req, in)

		if sc := span.SpanContext(); sc.IsSampled() && result != nil {
			result.Content = append(result.Content, &mcpsdk.TextContent{Text: "trace_id=" + sc.TraceID().String()})
		}

		return result, output, err
	}
}

// measured records RED metrics around each invocation. A tool-level
// failure surfaced through IsError counts as an error even though the
// protocol call itself succeeded.
func measured[In any](
	metrics *observability.REDMetrics,
	name string,
	fn func(context.Context, *mcpsdk.CallToolRequest, In) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, In) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return fn
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		op := "mcp." + name
		start := time.Now()

		release := metrics.TrackInflight(ctx, op)
		defer release()

		result, output, err := fn(ctx, req, in)

		status := "ok"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}

		metrics.RecordRequest(ctx, op, status, time.Since(start))

		return result, output, err
	}
}

const (
	analyzeToolDescription = "Analyze a system's residency series from an NDJSON dataset: " +
		"z-score and isolation-forest anomalies, dominant period, hourly profile, " +
		"and Aroon trend reversals. Accepts optional tuning overrides."

	systemsToolDescription = "List the systems present in an NDJSON residency dataset " +
		"with sample counts and time extents."
)
