package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// scopeName names the tracer and meter handed back by Init. A single
// instrumentation scope is enough for this codebase.
const scopeName = "dwellscope"

// Providers bundles the handles produced by Init.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger *slog.Logger

	// Shutdown flushes buffered telemetry. Call it before the process
	// exits or the final batches are lost.
	Shutdown func(ctx context.Context) error
}

// Init stands up tracing, metrics, and logging from cfg and registers the
// resulting providers globally. Without an OTLPEndpoint the trace and
// metric sides are no-ops, so instrumentation costs nothing when no
// collector is configured.
func Init(cfg Config) (Providers, error) {
	ctx := context.Background()

	res, err := newResource(cfg)
	if err != nil {
		return Providers{}, err
	}

	tp, flushTraces, err := setupTracing(ctx, cfg, res)
	if err != nil {
		return Providers{}, fmt.Errorf("build tracer provider: %w", err)
	}

	mp, flushMetrics, err := setupMetrics(ctx, cfg, res)
	if err != nil {
		// Tracing already started; unwind it so nothing leaks.
		return Providers{}, errors.Join(fmt.Errorf("build meter provider: %w", err), flushTraces(ctx))
	}

	if cfg.OTLPEndpoint != "" && !cfg.DebugTrace {
		tp = NewFilteringTracerProvider(tp)
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return Providers{
		Tracer:   tp.Tracer(scopeName),
		Meter:    mp.Meter(scopeName),
		Logger:   newLogger(cfg),
		Shutdown: shutdownAll(cfg, flushTraces, flushMetrics),
	}, nil
}

// shutdownAll combines the per-signal flush functions under one deadline.
func shutdownAll(cfg Config, flushes ...flushFunc) func(ctx context.Context) error {
	grace := time.Duration(cfg.ShutdownTimeoutSec) * time.Second
	if grace <= 0 {
		grace = time.Duration(DefaultConfig().ShutdownTimeoutSec) * time.Second
	}

	return func(ctx context.Context) error {
		deadlineCtx, cancel := context.WithTimeout(ctx, grace)
		defer cancel()

		var errs []error
		for _, flush := range flushes {
			errs = append(errs, flush(deadlineCtx))
		}

		return errors.Join(errs...)
	}
}

func newResource(cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}

	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}

	if cfg.Mode != "" {
		attrs = append(attrs, attribute.String("app.mode", string(cfg.Mode)))
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	return res, nil
}

type flushFunc func(ctx context.Context) error

func flushNothing(_ context.Context) error { return nil }

func setupTracing(ctx context.Context, cfg Config, res *resource.Resource) (trace.TracerProvider, flushFunc, error) {
	if cfg.OTLPEndpoint == "" {
		return nooptrace.NewTracerProvider(), flushNothing, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if len(cfg.OTLPHeaders) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.OTLPHeaders))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create trace exporter: %w", err)
	}

	// Dropped-attribute warnings are only interesting while debugging;
	// in normal operation the filter works silently.
	var filterLogger *slog.Logger
	if cfg.DebugTrace {
		filterLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(NewAttributeFilter(sdktrace.NewBatchSpanProcessor(exporter), filterLogger)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(chooseSampler(cfg)),
	)

	return tp, tp.Shutdown, nil
}

// chooseSampler resolves the sampler in priority order: debug override,
// then the standard OTEL_TRACES_SAMPLER environment variable, then the
// configured ratio, then the SDK default.
func chooseSampler(cfg Config) sdktrace.Sampler {
	if cfg.DebugTrace {
		return sdktrace.AlwaysSample()
	}

	if name := os.Getenv("OTEL_TRACES_SAMPLER"); name != "" {
		return samplerByName(name, os.Getenv("OTEL_TRACES_SAMPLER_ARG"))
	}

	if cfg.SampleRatio > 0 {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	}

	return sdktrace.ParentBased(sdktrace.AlwaysSample())
}

// samplerByName maps the OTEL_TRACES_SAMPLER names to SDK samplers.
// Unknown names fall back to the parent-based always-on default.
func samplerByName(name, arg string) sdktrace.Sampler {
	switch name {
	case "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(ratioArg(arg))
	case "parentbased_always_on":
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case "parentbased_always_off":
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratioArg(arg)))
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
}

func ratioArg(s string) float64 {
	ratio, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 1.0
	}

	return ratio
}

func newLogger(cfg Config) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var inner slog.Handler
	if cfg.LogJSON {
		inner = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		inner = slog.NewTextHandler(os.Stderr, handlerOpts)
	}

	return slog.New(NewTracingHandler(inner, cfg.ServiceName, cfg.Environment, cfg.Mode))
}

func setupMetrics(ctx context.Context, cfg Config, res *resource.Resource) (metric.MeterProvider, flushFunc, error) {
	if cfg.OTLPEndpoint == "" {
		return noopmetric.NewMeterProvider(), flushNothing, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	if len(cfg.OTLPHeaders) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(cfg.OTLPHeaders))
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	return mp, mp.Shutdown, nil
}

// ParseOTLPHeaders turns the OTEL_EXPORTER_OTLP_HEADERS wire format
// ("k1=v1,k2=v2") into a map, dropping malformed pairs. Empty input and
// input with no valid pairs both yield nil.
func ParseOTLPHeaders(raw string) map[string]string {
	if raw == "" {
		return nil
	}

	headers := make(map[string]string)

	for pair := range strings.SplitSeq(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}

		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	if len(headers) == 0 {
		return nil
	}

	return headers
}
