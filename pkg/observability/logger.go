package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// TracingHandler decorates an [slog.Handler] so log lines correlate with
// traces: records emitted under an active span gain trace_id and span_id.
// The service identity (service, mode, optional env) is attached once at
// construction, directly on the wrapped handler, which keeps those keys at
// the record's top level no matter how callers group attributes later.
type TracingHandler struct {
	inner slog.Handler
}

// NewTracingHandler builds a TracingHandler around inner with the given
// service identity.
func NewTracingHandler(inner slog.Handler, service, env string, appMode AppMode) *TracingHandler {
	identity := []slog.Attr{
		slog.String("service", service),
		slog.String("mode", string(appMode)),
	}

	if env != "" {
		identity = append(identity, slog.String("env", env))
	}

	return &TracingHandler{inner: inner.WithAttrs(identity)}
}

// Enabled reports whether the wrapped handler accepts the level.
func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

// Handle stamps the record with the ambient span context, when one exists,
// before handing it to the wrapped handler.
func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	if err := th.inner.Handle(ctx, record); err != nil {
		return fmt.Errorf("tracing handler: %w", err)
	}

	return nil
}

// WithAttrs wraps the inner handler's WithAttrs, preserving tracing.
func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{inner: th.inner.WithAttrs(attrs)}
}

// WithGroup wraps the inner handler's WithGroup, preserving tracing.
func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: th.inner.WithGroup(name)}
}
