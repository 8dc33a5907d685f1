// Package isoforest flags anomalous residency samples with an isolation
// forest. Anomalies isolate after few random splits, so their expected path
// length through the ensemble is short and their score high. A sample is
// flagged when its score strictly exceeds the (1 - contamination) quantile
// of all scores, mirroring the contamination convention of
// [sklearn.ensemble.IsolationForest].
package isoforest

import (
	"context"

	"github.com/dwellscope/dwellscope/pkg/alg/stats"
	"github.com/dwellscope/dwellscope/pkg/timeseries"
)

// Name identifies this analyzer in reports and metrics.
const Name = "isoforest"

// Config carries the tunable forest parameters.
type Config struct {
	// Contamination is the expected anomaly fraction in (0, 0.5]. It sets
	// the score quantile used as the flagging threshold.
	Contamination float64

	// Seed initializes the PRNG so repeated runs over the same series
	// produce identical forests and identical flags.
	Seed int64
}

// Result holds per-sample flags plus the score distribution summary.
type Result struct {
	Flags     []bool    `json:"flags"`
	Count     int       `json:"count"`
	Rate      float64   `json:"rate"`
	Threshold float64   `json:"threshold"`
	Scores    []float64 `json:"scores,omitempty"`
}

// Detect trains a forest on the series values, scores every sample, and
// flags those whose score strictly exceeds the contamination quantile. A
// series with no spread yields a uniform score of 0.5 and zero flags.
func Detect(ctx context.Context, series *timeseries.Series, cfg Config) (Result, error) {
	n := series.Len()
	if n == 0 {
		return Result{}, nil
	}

	f, err := growForest(ctx, series.Values, cfg.Seed)
	if err != nil {
		return Result{}, err
	}

	scores := make([]float64, n)
	for i, v := range series.Values {
		scores[i] = f.score(v)
	}

	threshold := stats.Percentile(scores, 1-cfg.Contamination)
	flags := make([]bool, n)
	count := 0

	for i, s := range scores {
		if s > threshold {
			flags[i] = true
			count++
		}
	}

	return Result{
		Flags:     flags,
		Count:     count,
		Rate:      float64(count) / float64(n),
		Threshold: threshold,
		Scores:    scores,
	}, nil
}
