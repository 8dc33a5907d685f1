// Package pipeline resamples a per-system residency series and fans it out
// to the anomaly, periodicity, diurnal, and trend analyzers. The analyzers
// are pure functions of the same immutable series with no data dependency
// on one another, so they run concurrently and join before aggregation. A
// failed analyzer leaves its section absent and its error recorded; only a
// failed resample aborts the run.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/dwellscope/dwellscope/internal/analyzers/aroon"
	"github.com/dwellscope/dwellscope/internal/analyzers/diurnal"
	"github.com/dwellscope/dwellscope/internal/analyzers/isoforest"
	"github.com/dwellscope/dwellscope/internal/analyzers/spectral"
	"github.com/dwellscope/dwellscope/internal/analyzers/zscore"
	"github.com/dwellscope/dwellscope/internal/observability"
	"github.com/dwellscope/dwellscope/pkg/alg/stats"
	"github.com/dwellscope/dwellscope/pkg/timeseries"
)

// rollingWindow is the trailing-mean window in samples.
const rollingWindow = 60

const (
	statusOK    = "ok"
	statusError = "error"
)

// Params carries the analyzer tuning for one run. Values are threaded
// explicitly so concurrent runs with different settings cannot interfere.
type Params struct {
	Cadence       time.Duration
	ZScore        float64
	Contamination float64
	Seed          int64
	AroonWindow   int
}

// SeriesSection is the resampled series as it appears in a report.
type SeriesSection struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Step   string    `json:"step"`
	Values []float64 `json:"values"`
}

// Report is the aggregated result of one pipeline run. Analyzer sections
// are nil when that analyzer failed; Errors carries the failure messages.
type Report struct {
	System        string        `json:"system"`
	GeneratedAt   time.Time     `json:"generated_at"`
	Samples       int           `json:"samples"`
	MeanResidency float64       `json:"mean_residency"`
	Series        SeriesSection `json:"series"`
	RollingMean   []float64     `json:"rolling_mean,omitempty"`

	ZScore    *zscore.Result    `json:"zscore,omitempty"`
	IsoForest *isoforest.Result `json:"isoforest,omitempty"`
	Spectral  *spectral.Result  `json:"spectral,omitempty"`
	Diurnal   *diurnal.Result   `json:"diurnal,omitempty"`
	Aroon     *aroon.Result     `json:"aroon,omitempty"`

	// Overlap counts samples flagged by both anomaly detectors.
	Overlap int `json:"overlap"`

	Errors map[string]string `json:"errors,omitempty"`
}

// ReversalCount returns the number of bullish Aroon crossovers, zero when
// the trend section is absent.
func (r *Report) ReversalCount() int {
	if r.Aroon == nil {
		return 0
	}

	return len(r.Aroon.Crossovers)
}

// Aggregator runs the analyzer fan-out and assembles reports.
type Aggregator struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.PipelineMetrics
}

// New creates an Aggregator. The metrics may be nil when no meter is
// configured.
func New(logger *slog.Logger, tracer trace.Tracer, metrics *observability.PipelineMetrics) *Aggregator {
	return &Aggregator{logger: logger, tracer: tracer, metrics: metrics}
}

// Run resamples the raw samples onto the cadence grid and analyzes the
// result. Resampling failures (no samples, bad cadence) are fatal and
// produce no report.
func (agg *Aggregator) Run(ctx context.Context, system string, samples []timeseries.Sample, params Params) (*Report, error) {
	ctx, span := agg.tracer.Start(ctx, "dwellscope.pipeline.run")
	defer span.End()

	series, err := timeseries.Resample(samples, params.Cadence)
	if err != nil {
		return nil, err
	}

	return agg.Analyze(ctx, system, series, params)
}

// Analyze fans the already-resampled series out to all five analyzers and
// aggregates their results. The series must not be mutated afterwards;
// cached callers share it across runs.
func (agg *Aggregator) Analyze(ctx context.Context, system string, series *timeseries.Series, params Params) (*Report, error) {
	report := &Report{
		System:        system,
		GeneratedAt:   time.Now().UTC(),
		Samples:       series.Len(),
		MeanResidency: stats.Mean(series.Values),
		RollingMean:   timeseries.RollingMean(series.Values, rollingWindow),
		Series: SeriesSection{
			Start:  series.Start,
			End:    series.End(),
			Step:   series.Step.String(),
			Values: series.Values,
		},
		Errors: make(map[string]string),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	run := func(name string, fn func(ctx context.Context) error) {
		wg.Add(1)

		go func() {
			defer wg.Done()

			spanCtx, span := agg.tracer.Start(ctx, "dwellscope.analyzer."+name)
			defer span.End()

			start := time.Now()
			err := fn(spanCtx)
			elapsed := time.Since(start)

			if err != nil {
				agg.metrics.RecordAnalyzer(spanCtx, name, statusError, elapsed)
				agg.logger.WarnContext(spanCtx, "analyzer failed",
					"analyzer", name, "system", system, "error", err)

				mu.Lock()
				report.Errors[name] = err.Error()
				mu.Unlock()

				return
			}

			agg.metrics.RecordAnalyzer(spanCtx, name, statusOK, elapsed)
			agg.logger.DebugContext(spanCtx, "analyzer done",
				"analyzer", name, "system", system, "elapsed", elapsed)
		}()
	}

	run(zscore.Name, func(context.Context) error {
		res := zscore.Detect(series, params.ZScore)

		mu.Lock()
		report.ZScore = &res
		mu.Unlock()

		return nil
	})

	run(isoforest.Name, func(runCtx context.Context) error {
		res, err := isoforest.Detect(runCtx, series, isoforest.Config{
			Contamination: params.Contamination,
			Seed:          params.Seed,
		})
		if err != nil {
			return err
		}

		mu.Lock()
		report.IsoForest = &res
		mu.Unlock()

		return nil
	})

	run(spectral.Name, func(context.Context) error {
		res, err := spectral.Analyze(series)
		if err != nil {
			return err
		}

		mu.Lock()
		report.Spectral = &res
		mu.Unlock()

		return nil
	})

	run(diurnal.Name, func(context.Context) error {
		res, err := diurnal.Profile(series)
		if err != nil {
			return err
		}

		mu.Lock()
		report.Diurnal = &res
		mu.Unlock()

		return nil
	})

	run(aroon.Name, func(context.Context) error {
		res := aroon.Compute(series, params.AroonWindow)

		mu.Lock()
		report.Aroon = &res
		mu.Unlock()

		return nil
	})

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report.Overlap = overlapCount(report.ZScore, report.IsoForest)

	agg.metrics.RecordRun(ctx, report.Samples)
	agg.recordAnomalyCounts(ctx, report)

	if len(report.Errors) == 0 {
		report.Errors = nil
	}

	return report, nil
}

// overlapCount intersects the two detector flag sets positionally.
func overlapCount(z *zscore.Result, f *isoforest.Result) int {
	if z == nil || f == nil {
		return 0
	}

	n := min(len(z.Flags), len(f.Flags))
	count := 0

	for i := range n {
		if z.Flags[i] && f.Flags[i] {
			count++
		}
	}

	return count
}

func (agg *Aggregator) recordAnomalyCounts(ctx context.Context, report *Report) {
	if report.ZScore != nil {
		agg.metrics.RecordAnomalies(ctx, zscore.Name, report.ZScore.Count)
	}

	if report.IsoForest != nil {
		agg.metrics.RecordAnomalies(ctx, isoforest.Name, report.IsoForest.Count)
	}
}
