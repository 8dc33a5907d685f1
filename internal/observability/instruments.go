package observability

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Attribute keys and status values shared across instrument sets.
const (
	attrOp     = "op"
	attrStatus = "status"

	statusError = "error"
)

// durationBucketBoundaries covers 10ms to 600s, spanning sub-second
// single-system analyses up to multi-minute batch runs over many systems.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// instrumentSet creates instruments against one meter and collects every
// creation failure, so constructors build all instruments first and make
// a single error check at the end.
type instrumentSet struct {
	meter metric.Meter
	errs  []error
}

func instrumentsOn(meter metric.Meter) *instrumentSet {
	return &instrumentSet{meter: meter}
}

func (s *instrumentSet) counter(name, desc, unit string) metric.Int64Counter {
	counter, err := s.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	s.fail(name, err)

	return counter
}

func (s *instrumentSet) histogram(name, desc, unit string, bounds ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	}

	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}

	histogram, err := s.meter.Float64Histogram(name, opts...)
	s.fail(name, err)

	return histogram
}

func (s *instrumentSet) upDownCounter(name, desc, unit string) metric.Int64UpDownCounter {
	counter, err := s.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	s.fail(name, err)

	return counter
}

func (s *instrumentSet) fail(name string, err error) {
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("create %s: %w", name, err))
	}
}

// err joins the collected failures; nil when every instrument built.
func (s *instrumentSet) err() error {
	return errors.Join(s.errs...)
}
