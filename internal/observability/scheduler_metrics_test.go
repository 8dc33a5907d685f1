package observability_test

import (
	"testing"

	"github.com/dwellscope/dwellscope/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewSchedulerMetrics_NoopMeter(t *testing.T) {
	t.Parallel()

	mt := noopmetric.NewMeterProvider().Meter("test")
	sm, err := observability.NewSchedulerMetrics(mt)

	require.NoError(t, err)
	require.NotNil(t, sm)
}

func TestSchedulerMetrics_ObservesRuntimeValues(t *testing.T) {
	t.Parallel()

	meter, reader := setupTestMeter()

	_, err := observability.NewSchedulerMetrics(meter)
	require.NoError(t, err)

	rm := collectMetrics(t, reader)

	goroutines := findMetric(rm, "dwellscope.runtime.goroutines")
	require.NotNil(t, goroutines)

	gauge, ok := goroutines.Data.(metricdata.Gauge[int64])
	require.True(t, ok, "goroutine count should be an int64 gauge")
	require.NotEmpty(t, gauge.DataPoints)
	assert.Positive(t, gauge.DataPoints[0].Value, "a running test has live goroutines")

	assert.NotNil(t, findMetric(rm, "dwellscope.runtime.threads"))
	assert.NotNil(t, findMetric(rm, "dwellscope.runtime.goroutines.created"))
}
