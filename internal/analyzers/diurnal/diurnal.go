// Package diurnal aggregates residency by hour of day, independent of
// calendar date. Hours are taken from each sample's own timestamp zone, so
// a series recorded at +05:30 profiles in that offset, not UTC.
package diurnal

import (
	"github.com/dwellscope/dwellscope/pkg/timeseries"
)

// Name identifies this analyzer in reports and metrics.
const Name = "diurnal"

// HourStat is the aggregate for one hour of day with at least one sample.
type HourStat struct {
	Hour  int     `json:"hour"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// Result lists observed hours in ascending order plus the peak and trough
// hours. Ties resolve to the lowest-numbered hour; hours with no samples
// never win.
type Result struct {
	Hours      []HourStat `json:"hours"`
	PeakHour   int        `json:"peak_hour"`
	PeakMean   float64    `json:"peak_mean"`
	TroughHour int        `json:"trough_hour"`
	TroughMean float64    `json:"trough_mean"`
}

// Profile computes per-hour means over the series.
func Profile(series *timeseries.Series) (Result, error) {
	if series.Len() == 0 {
		return Result{}, timeseries.ErrEmptyInput
	}

	var (
		sums   [24]float64
		counts [24]int
	)

	for i, v := range series.Values {
		h := series.TimeAt(i).Hour()
		sums[h] += v
		counts[h]++
	}

	res := Result{PeakHour: -1, TroughHour: -1}

	for h := range 24 {
		if counts[h] == 0 {
			continue
		}

		mean := sums[h] / float64(counts[h])
		res.Hours = append(res.Hours, HourStat{Hour: h, Mean: mean, Count: counts[h]})

		if res.PeakHour < 0 || mean > res.PeakMean {
			res.PeakHour, res.PeakMean = h, mean
		}

		if res.TroughHour < 0 || mean < res.TroughMean {
			res.TroughHour, res.TroughMean = h, mean
		}
	}

	return res, nil
}
