// Package zscore implements the statistical anomaly detector. It flags
// samples whose standardized deviation from the global series mean exceeds
// a threshold, using population mean and stddev over the entire series.
package zscore

import (
	"math"

	"github.com/dwellscope/dwellscope/pkg/alg/stats"
	"github.com/dwellscope/dwellscope/pkg/timeseries"
)

// Name identifies the detector in reports, spans and metrics.
const Name = "zscore"

// Result holds the detector's output for one series. Flags aligns with the
// series index axis.
type Result struct {
	// Flags marks each sample: true when |x−μ|/σ exceeds the threshold.
	Flags []bool `json:"flags"`

	// Count is the number of flagged samples.
	Count int `json:"count"`

	// Rate is Count divided by the series length.
	Rate float64 `json:"rate"`

	// Mean and StdDev are the global estimates the scores derive from.
	// They include any flagged samples; estimation is deliberately
	// non-robust so reported counts stay comparable across runs.
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`

	// Scores holds each sample's z-score. Nil for a degenerate series.
	Scores []float64 `json:"scores,omitempty"`

	// Degenerate reports that the series has zero variance, in which case
	// standardization is undefined and nothing is flagged.
	Degenerate bool `json:"degenerate,omitempty"`
}

// Detect computes the z-score of every sample against the global mean and
// flags those whose absolute score exceeds threshold. A zero-variance
// series yields zero anomalies with Degenerate set; no division happens.
func Detect(series *timeseries.Series, threshold float64) Result {
	values := series.Values
	count := len(values)

	mean, stddev := stats.MeanStdDev(values)

	result := Result{
		Flags:  make([]bool, count),
		Mean:   mean,
		StdDev: stddev,
	}

	if stddev == 0 {
		result.Degenerate = true

		return result
	}

	result.Scores = make([]float64, count)

	for i, v := range values {
		score := (v - mean) / stddev
		result.Scores[i] = score

		if math.Abs(score) > threshold {
			result.Flags[i] = true
			result.Count++
		}
	}

	if count > 0 {
		result.Rate = float64(result.Count) / float64(count)
	}

	return result
}
