package timeseries

import (
	"errors"
	"slices"
	"time"
)

// Sentinel errors for series construction.
var (
	// ErrEmptyInput is returned when there are no samples to resample.
	ErrEmptyInput = errors.New("no samples for the selected system")

	// ErrNonPositiveStep is returned for a zero or negative resample step.
	ErrNonPositiveStep = errors.New("resample step must be positive")

	// ErrDegenerateSeries marks a zero-variance series, on which some
	// analyses are undefined.
	ErrDegenerateSeries = errors.New("series has zero variance")
)

// Resample projects raw samples onto a uniform grid of the given step. The
// grid is anchored at the earliest sample and extends to the last grid point
// not after the latest sample, so it never leaves the raw time extent and no
// extrapolation takes place. Grid points between raw samples are filled by
// linear interpolation in time between the nearest raw sample on each side.
//
// The input may be unsorted; it is not modified. When several samples share
// one timestamp the last occurrence wins. Resample returns [ErrEmptyInput]
// when samples is empty and [ErrNonPositiveStep] when step is not positive.
func Resample(samples []Sample, step time.Duration) (*Series, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyInput
	}

	if step <= 0 {
		return nil, ErrNonPositiveStep
	}

	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	slices.SortStableFunc(sorted, func(a, b Sample) int {
		return a.Time.Compare(b.Time)
	})

	sorted = dedupeByTime(sorted)

	first := sorted[0].Time
	span := sorted[len(sorted)-1].Time.Sub(first)
	count := int(span/step) + 1

	values := make([]float64, count)
	next := 0

	for i := range count {
		at := first.Add(time.Duration(i) * step)

		for next < len(sorted) && sorted[next].Time.Before(at) {
			next++
		}

		if sorted[next].Time.Equal(at) {
			values[i] = sorted[next].Value

			continue
		}

		values[i] = lerp(sorted[next-1], sorted[next], at)
	}

	return &Series{Start: first, Step: step, Values: values}, nil
}

// dedupeByTime collapses runs of equal timestamps in a sorted slice, keeping
// the last sample of each run.
func dedupeByTime(sorted []Sample) []Sample {
	out := sorted[:0]

	for _, s := range sorted {
		if len(out) > 0 && out[len(out)-1].Time.Equal(s.Time) {
			out[len(out)-1] = s

			continue
		}

		out = append(out, s)
	}

	return out
}

// lerp interpolates linearly in time between two samples. at must lie
// strictly between a.Time and b.Time.
func lerp(a, b Sample, at time.Time) float64 {
	frac := float64(at.Sub(a.Time)) / float64(b.Time.Sub(a.Time))

	return a.Value + frac*(b.Value-a.Value)
}
