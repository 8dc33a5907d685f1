package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// REDMetrics carries the rate, error, and duration instruments recorded
// around each served operation (MCP tool calls, primarily).
type REDMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	errors   metric.Int64Counter
	inflight metric.Int64UpDownCounter
}

// NewREDMetrics builds the RED instrument set on the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	set := instrumentsOn(mt)

	rm := &REDMetrics{
		requests: set.counter("dwellscope.requests.total", "Total number of requests", "{request}"),
		duration: set.histogram("dwellscope.request.duration.seconds", "Request duration in seconds", "s", durationBucketBoundaries...),
		errors:   set.counter("dwellscope.errors.total", "Total number of errors", "{error}"),
		inflight: set.upDownCounter("dwellscope.inflight.requests", "Number of in-flight requests", "{request}"),
	}

	if err := set.err(); err != nil {
		return nil, err
	}

	return rm, nil
}

// RecordRequest counts one finished request under its operation and
// status, recording its latency. Error statuses also feed the error
// counter, which backends alert on without status-label arithmetic.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requests.Add(ctx, 1, attrs)
	rm.duration.Record(ctx, duration.Seconds(), attrs)

	if status == statusError {
		rm.errors.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}

// TrackInflight bumps the in-flight gauge for op and returns the matching
// decrement, meant for a defer at the top of the operation.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflight.Add(ctx, 1, attrs)

	return func() {
		rm.inflight.Add(ctx, -1, attrs)
	}
}
