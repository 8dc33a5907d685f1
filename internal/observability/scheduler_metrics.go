package observability

import (
	"context"
	"fmt"
	"math"
	runtimemetrics "runtime/metrics"

	"go.opentelemetry.io/otel/metric"
)

// SchedulerMetrics mirrors the Go scheduler's view of the process as OTel
// instruments: live goroutines, OS threads, and cumulative goroutines
// created. Values are read from runtime/metrics at collection time, so an
// idle process costs nothing between scrapes.
type SchedulerMetrics struct {
	// bySample maps a runtime/metrics sample name to the instrument its
	// readings feed.
	bySample map[string]metric.Int64Observable
}

// NewSchedulerMetrics registers the scheduler instruments and their
// collection callback on mt.
func NewSchedulerMetrics(mt metric.Meter) (*SchedulerMetrics, error) {
	goroutines, err := mt.Int64ObservableGauge("dwellscope.runtime.goroutines",
		metric.WithDescription("Current number of live goroutines"),
		metric.WithUnit("{goroutine}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create goroutine gauge: %w", err)
	}

	threads, err := mt.Int64ObservableGauge("dwellscope.runtime.threads",
		metric.WithDescription("Current number of OS threads created by the Go runtime"),
		metric.WithUnit("{thread}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create thread gauge: %w", err)
	}

	created, err := mt.Int64ObservableCounter("dwellscope.runtime.goroutines.created",
		metric.WithDescription("Total goroutines created since process start"),
		metric.WithUnit("{goroutine}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create goroutines-created counter: %w", err)
	}

	sm := &SchedulerMetrics{bySample: map[string]metric.Int64Observable{
		"/sched/goroutines:goroutines":         goroutines,
		"/sched/threads:threads":               threads,
		"/sched/goroutines-created:goroutines": created,
	}}

	if _, err := mt.RegisterCallback(sm.observe, goroutines, threads, created); err != nil {
		return nil, fmt.Errorf("register scheduler metrics callback: %w", err)
	}

	return sm, nil
}

func (sm *SchedulerMetrics) observe(_ context.Context, obs metric.Observer) error {
	samples := make([]runtimemetrics.Sample, 0, len(sm.bySample))
	for name := range sm.bySample {
		samples = append(samples, runtimemetrics.Sample{Name: name})
	}

	runtimemetrics.Read(samples)

	for i := range samples {
		value, ok := asInt64(samples[i].Value)
		if !ok {
			continue
		}

		obs.ObserveInt64(sm.bySample[samples[i].Name], value)
	}

	return nil
}

// asInt64 converts a runtime/metrics value to int64, clamping oversized
// uint64 readings. Histogram and bad kinds report false.
func asInt64(val runtimemetrics.Value) (int64, bool) {
	switch val.Kind() {
	case runtimemetrics.KindUint64:
		u := val.Uint64()
		if u > uint64(math.MaxInt64) {
			return math.MaxInt64, true
		}

		return int64(u), true
	case runtimemetrics.KindFloat64:
		return int64(val.Float64()), true
	case runtimemetrics.KindBad, runtimemetrics.KindFloat64Histogram:
		return 0, false
	default:
		return 0, false
	}
}
