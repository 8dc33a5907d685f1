package observability

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// recordingWriter remembers the first status code written so the span can
// carry it after the handler returns.
type recordingWriter struct {
	http.ResponseWriter

	status int
}

func (rw *recordingWriter) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}

	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recordingWriter) Write(buf []byte) (int, error) {
	// An implicit 200 when the handler writes without WriteHeader.
	if rw.status == 0 {
		rw.status = http.StatusOK
	}

	n, err := rw.ResponseWriter.Write(buf)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}

	return n, nil
}

// HTTPMiddleware wraps next so each request runs inside a server span named
// "METHOD /path". Incoming W3C trace headers become the span's parent, and
// 5xx responses mark the span as errored.
func HTTPMiddleware(tracer trace.Tracer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		parentCtx := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))

		ctx, span := tracer.Start(parentCtx, req.Method+" "+req.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(req.Method),
				attribute.String("http.target", req.URL.Path),
			),
		)
		defer span.End()

		recorder := &recordingWriter{ResponseWriter: w}
		next.ServeHTTP(recorder, req.WithContext(ctx))

		span.SetAttributes(semconv.HTTPResponseStatusCode(recorder.status))

		if recorder.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(recorder.status))
		}
	})
}
