package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/dwellscope/dwellscope/pkg/observability"
)

// serveTraced sends one request through HTTPMiddleware backed by an
// in-memory exporter and returns the recorded spans plus the response.
func serveTraced(t *testing.T, handler http.HandlerFunc, shape func(*http.Request)) ([]tracetest.SpanStub, *httptest.ResponseRecorder) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	if shape != nil {
		shape(req)
	}

	rec := httptest.NewRecorder()
	observability.HTTPMiddleware(tp.Tracer("test"), handler).ServeHTTP(rec, req)

	return exporter.GetSpans(), rec
}

func statusAttr(span tracetest.SpanStub) int64 {
	for _, attr := range span.Attributes {
		if string(attr.Key) == "http.response.status_code" {
			return attr.Value.AsInt64()
		}
	}

	return -1
}

func TestHTTPMiddleware_SpanPerRequest(t *testing.T) {
	t.Parallel()

	spans, _ := serveTraced(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, nil)

	require.Len(t, spans, 1)
	assert.Equal(t, "GET /metrics", spans[0].Name)
	assert.EqualValues(t, http.StatusOK, statusAttr(spans[0]))
}

func TestHTTPMiddleware_ImplicitOK(t *testing.T) {
	t.Parallel()

	// A handler that writes a body without calling WriteHeader still
	// counts as a 200 on the span.
	spans, rec := serveTraced(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}, nil)

	require.Len(t, spans, 1)
	assert.EqualValues(t, http.StatusOK, statusAttr(spans[0]))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPMiddleware_HandlerSeesSpanContext(t *testing.T) {
	t.Parallel()

	var sawSpan bool

	spans, _ := serveTraced(t, func(w http.ResponseWriter, req *http.Request) {
		sawSpan = trace.SpanContextFromContext(req.Context()).IsValid()

		w.WriteHeader(http.StatusOK)
	}, func(req *http.Request) {
		req.URL.Path = "/healthz"
	})

	require.True(t, sawSpan, "handler should run under the request span")
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /healthz", spans[0].Name)
}

func TestHTTPMiddleware_ExtractsTraceParent(t *testing.T) {
	t.Parallel()

	// Same propagator Init registers.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	parentTraceID := "0af7651916cd43dd8448eb211c80319c"
	parentSpanID := "00f067aa0ba902b7"

	spans, _ := serveTraced(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, func(req *http.Request) {
		req.Header.Set("Traceparent", "00-"+parentTraceID+"-"+parentSpanID+"-01")
	})

	require.Len(t, spans, 1)
	assert.Equal(t, parentTraceID, spans[0].SpanContext.TraceID().String())
	assert.Equal(t, parentSpanID, spans[0].Parent.SpanID().String())
}

func TestHTTPMiddleware_ServerErrorMarksSpan(t *testing.T) {
	t.Parallel()

	spans, rec := serveTraced(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, func(req *http.Request) {
		req.URL.Path = "/readyz"
	})

	require.Len(t, spans, 1)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.EqualValues(t, http.StatusServiceUnavailable, statusAttr(spans[0]))
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}
