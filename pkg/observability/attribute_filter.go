package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Span attribute policy. Keys are kept only when they match the allow
// list, so new instrumentation has to opt in here before its attributes
// reach a collector. The deny entries guard against PII and unbounded
// payloads regardless of prefix.
var (
	keepPrefixes = []string{
		"dwellscope.",
		"error.",
		"http.",
		"mcp.",
		"analysis.",
		"analyzer.",
		"detector.",
		"pipeline.",
		"report.",
		"series.",
		"cache",
		"system",
		"samples",
		"cadence",
		"stack",
	}

	dropPrefixes = []string{"user."}

	dropKeys = map[string]bool{
		"email":         true,
		"request.body":  true,
		"response.body": true,
	}
)

// spanAttrFilter is a SpanProcessor that applies the attribute policy on
// span end, before the delegate (normally the batch processor) sees the
// span. With a non-nil logger every dropped key is warned about, which is
// how debug runs surface policy gaps.
type spanAttrFilter struct {
	delegate sdktrace.SpanProcessor
	logger   *slog.Logger
}

// NewAttributeFilter wraps delegate with the span attribute policy.
func NewAttributeFilter(delegate sdktrace.SpanProcessor, logger *slog.Logger) sdktrace.SpanProcessor {
	return &spanAttrFilter{delegate: delegate, logger: logger}
}

func (f *spanAttrFilter) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	f.delegate.OnStart(parent, s)
}

func (f *spanAttrFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	// Attributes on a ReadOnlySpan cannot be edited in place, so the
	// delegate gets a view that filters on read.
	f.delegate.OnEnd(&redactedSpan{ReadOnlySpan: s, filter: f})
}

func (f *spanAttrFilter) Shutdown(ctx context.Context) error {
	if err := f.delegate.Shutdown(ctx); err != nil {
		return fmt.Errorf("attribute filter shutdown: %w", err)
	}

	return nil
}

func (f *spanAttrFilter) ForceFlush(ctx context.Context) error {
	if err := f.delegate.ForceFlush(ctx); err != nil {
		return fmt.Errorf("attribute filter flush: %w", err)
	}

	return nil
}

// keep decides one key's fate: deny rules first, then the allow list,
// then a handful of bare OTel convention keys.
func (f *spanAttrFilter) keep(key string) bool {
	if dropKeys[key] {
		return f.dropped(key)
	}

	for _, prefix := range dropPrefixes {
		if strings.HasPrefix(key, prefix) {
			return f.dropped(key)
		}
	}

	for _, prefix := range keepPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}

	if key == "error" {
		return true
	}

	return f.dropped(key)
}

func (f *spanAttrFilter) dropped(key string) bool {
	if f.logger != nil {
		f.logger.Warn("attribute blocked by filter", "key", key)
	}

	return false
}

// redactedSpan presents its underlying span with the attribute policy
// applied.
type redactedSpan struct {
	sdktrace.ReadOnlySpan

	filter *spanAttrFilter
}

func (s *redactedSpan) Attributes() []attribute.KeyValue {
	all := s.ReadOnlySpan.Attributes()
	kept := make([]attribute.KeyValue, 0, len(all))

	for _, kv := range all {
		if s.filter.keep(string(kv.Key)) {
			kept = append(kept, kv)
		}
	}

	return kept
}
