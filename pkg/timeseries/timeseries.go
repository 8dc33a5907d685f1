// Package timeseries provides the sample and series types shared by the
// residency analyzers, plus resampling onto a uniform grid and trailing
// window smoothing.
package timeseries

import "time"

// Sample is a single raw observation: a residency value at a point in time.
type Sample struct {
	// Time is the observation timestamp. The hour-of-day component is
	// interpreted in the timestamp's own location, without conversion.
	Time time.Time

	// Value is the observed residency percentage.
	Value float64
}

// Series is a uniformly sampled series. Values[i] is the value at
// Start.Add(Step * i); there are no missing steps. A Series is immutable
// once produced: analyzers read it concurrently and must never write to it.
type Series struct {
	// Start is the timestamp of Values[0].
	Start time.Time

	// Step is the fixed spacing between consecutive values.
	Step time.Duration

	// Values holds one value per grid point.
	Values []float64
}

// Len returns the number of samples in the series.
func (s *Series) Len() int {
	return len(s.Values)
}

// TimeAt returns the timestamp of the i-th value.
func (s *Series) TimeAt(i int) time.Time {
	return s.Start.Add(time.Duration(i) * s.Step)
}

// End returns the timestamp of the last value. For an empty series it
// returns Start.
func (s *Series) End() time.Time {
	if len(s.Values) == 0 {
		return s.Start
	}

	return s.TimeAt(len(s.Values) - 1)
}

// Span returns the duration covered by the series.
func (s *Series) Span() time.Duration {
	return s.End().Sub(s.Start)
}

// Clone returns a deep copy of the series with its own values slice.
func (s *Series) Clone() *Series {
	values := make([]float64, len(s.Values))
	copy(values, s.Values)

	return &Series{Start: s.Start, Step: s.Step, Values: values}
}
