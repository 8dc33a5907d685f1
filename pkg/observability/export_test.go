package observability

import (
	"context"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// ProbeResource exposes newResource for the external test package.
func ProbeResource(cfg Config) (*resource.Resource, error) {
	return newResource(cfg)
}

// ProbeSamplerSpan starts one span under the sampler chooseSampler resolves
// for cfg and reports whether it was recorded. Sampler selection stays
// unexported; the observable effect is enough for tests.
func ProbeSamplerSpan(cfg Config) (sampled bool) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(chooseSampler(cfg)),
	)

	_, span := tp.Tracer("test").Start(context.Background(), "probe")
	span.End()

	// Read before Shutdown, which clears the exporter.
	spans := exporter.GetSpans()

	if err := tp.Shutdown(context.Background()); err != nil {
		return false
	}

	return len(spans) > 0
}
