package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/dwellscope/dwellscope/pkg/observability"
)

// filterSpan ends one span carrying attrs behind the attribute filter and
// returns what survived, keyed by attribute name.
func filterSpan(t *testing.T, logger *slog.Logger, attrs ...attribute.KeyValue) map[string]any {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(observability.NewAttributeFilter(sdktrace.NewSimpleSpanProcessor(exporter), logger)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.SetAttributes(attrs...)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	kept := make(map[string]any, len(spans[0].Attributes))
	for _, a := range spans[0].Attributes {
		kept[string(a.Key)] = a.Value.AsInterface()
	}

	return kept
}

func TestAttributeFilter_KeepsDomainKeys(t *testing.T) {
	t.Parallel()

	kept := filterSpan(t, nil,
		attribute.String("error.type", "timeout"),
		attribute.Int("samples", 1440),
		attribute.String("system", "web-01"),
		attribute.String("detector.name", "zscore"),
	)

	assert.Equal(t, "timeout", kept["error.type"])
	assert.Equal(t, int64(1440), kept["samples"])
	assert.Equal(t, "web-01", kept["system"])
	assert.Equal(t, "zscore", kept["detector.name"])
}

func TestAttributeFilter_StripsPII(t *testing.T) {
	t.Parallel()

	kept := filterSpan(t, nil,
		attribute.String("user.email", "alice@example.com"),
		attribute.String("email", "bob@example.com"),
		attribute.String("request.body", `{"password":"secret"}`),
		attribute.String("response.body", `{"token":"abc"}`),
		attribute.String("user.id", "12345"),
		attribute.String("error.type", "internal"),
	)

	for _, key := range []string{"user.email", "email", "request.body", "response.body", "user.id"} {
		assert.NotContains(t, kept, key)
	}

	// The allowed key next to them survives.
	assert.Equal(t, "internal", kept["error.type"])
}

func TestAttributeFilter_StripsUnlistedKeys(t *testing.T) {
	t.Parallel()

	kept := filterSpan(t, nil,
		attribute.String("favorite_color", "green"),
		attribute.String("cadence", "1m0s"),
	)

	assert.NotContains(t, kept, "favorite_color")
	assert.Equal(t, "1m0s", kept["cadence"])
}

func TestAttributeFilter_NewKeysUnderKnownPrefixesPass(t *testing.T) {
	t.Parallel()

	// The list names prefixes, not individual keys, so instrumentation
	// can grow without touching the policy.
	kept := filterSpan(t, nil,
		attribute.String("dwellscope.new_attr", "val"),
		attribute.String("http.method", "GET"),
		attribute.String("error.source", "client"),
	)

	assert.Equal(t, "val", kept["dwellscope.new_attr"])
	assert.Equal(t, "GET", kept["http.method"])
	assert.Equal(t, "client", kept["error.source"])
}

func TestAttributeFilter_LogsDrops(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	filterSpan(t, logger, attribute.String("user.secret", "val"))

	assert.Contains(t, buf.String(), "user.secret")
	assert.Contains(t, buf.String(), "blocked")
}
