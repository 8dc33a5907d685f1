package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// suppressedSpans are span names replaced with no-op spans to keep trace
// volume manageable. Prometheus scrapes and liveness probes hit the
// diagnostics endpoints every few seconds; exporting a span per poll
// drowns out the pipeline spans operators actually look at.
var suppressedSpans = map[string]bool{
	"GET /metrics": true,
	"GET /healthz": true,
	"GET /readyz":  true,
}

// filteringTracerProvider wraps a real TracerProvider and suppresses
// hot-path span names within otherwise-active tracers.
type filteringTracerProvider struct {
	embedded.TracerProvider

	delegate trace.TracerProvider
	noop     trace.TracerProvider
}

// NewFilteringTracerProvider wraps delegate so that diagnostics scrape and
// probe spans are replaced with no-op spans while analysis spans pass
// through. Init skips the wrapper when DebugTrace is set.
func NewFilteringTracerProvider(delegate trace.TracerProvider) trace.TracerProvider {
	return &filteringTracerProvider{
		delegate: delegate,
		noop:     nooptrace.NewTracerProvider(),
	}
}

// Tracer returns a tracer whose suppressed span names produce no-op spans.
func (f *filteringTracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return &filteringTracer{
		delegate: f.delegate.Tracer(name, opts...),
		noop:     f.noop.Tracer(name, opts...),
		suppress: suppressedSpans,
	}
}

// filteringTracer wraps a real Tracer and returns noop spans for
// suppressed span names while delegating everything else.
type filteringTracer struct {
	embedded.Tracer

	delegate trace.Tracer
	noop     trace.Tracer
	suppress map[string]bool
}

// Start creates a span, returning a noop span for suppressed names.
func (f *filteringTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if f.suppress[name] {
		return f.noop.Start(ctx, name, opts...)
	}

	return f.delegate.Start(ctx, name, opts...)
}
