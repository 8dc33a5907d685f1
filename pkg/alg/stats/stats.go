// Package stats provides the statistical primitives shared by the residency
// analyzers. Standard deviations are population ones (dividing by n, not
// n-1), which is the contract the z-score detector relies on.
package stats

import (
	"math"
	"slices"
)

// Mean returns the arithmetic mean of values, or 0 when the slice is empty.
func Mean(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	var total float64

	for _, v := range values {
		total += v
	}

	return total / float64(n)
}

// MeanStdDev returns the arithmetic mean and population standard deviation
// of values. A constant series reports exactly zero deviation; otherwise the
// squared deviations are corrected by their residual sum, so series riding
// on a large common offset keep their precision. Returns (0, 0) for an
// empty slice.
func MeanStdDev(values []float64) (mean, stddev float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}

	// Summation noise must not defeat the zero-variance guards downstream:
	// a flat series has zero spread by definition, whatever its value.
	if lo, hi := MinMax(values); lo == hi {
		return lo, 0
	}

	mean = Mean(values)

	var ss, residual float64

	for _, v := range values {
		d := v - mean
		ss += d * d
		residual += d
	}

	// Rounding in the correction can land a hair below zero.
	sq := ss - residual*residual/n
	if sq < 0 {
		sq = 0
	}

	return mean, math.Sqrt(sq / n)
}

// Demean returns a copy of values with the arithmetic mean subtracted from
// every element. Returns nil for an empty slice.
func Demean(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}

	mean := Mean(values)
	out := make([]float64, len(values))

	for i, v := range values {
		out[i] = v - mean
	}

	return out
}

// PercentileMedian is the quantile of the median.
const PercentileMedian = 0.5

// Percentile returns the p-th quantile of values, p in [0, 1], interpolating
// linearly between the two nearest ranks. The input slice is left untouched;
// a sorted copy is used. Returns 0 for an empty slice.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	rank := p * float64(len(sorted)-1)
	below := int(rank)
	w := rank - float64(below)

	if above := below + 1; w > 0 && above < len(sorted) {
		return sorted[below]*(1-w) + sorted[above]*w
	}

	return sorted[below]
}

// Median returns the middle of values, halfway between the two central
// elements at even lengths. Returns 0 for an empty slice.
func Median(values []float64) float64 {
	return Percentile(values, PercentileMedian)
}

// MinMax returns the smallest and largest elements of values in one pass.
// Returns (0, 0) for an empty slice.
func MinMax(values []float64) (lo, hi float64) {
	if len(values) == 0 {
		return 0, 0
	}

	lo, hi = values[0], values[0]

	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}

		if v > hi {
			hi = v
		}
	}

	return lo, hi
}
