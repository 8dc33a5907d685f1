package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRunsTotal        = "dwellscope.analysis.runs.total"
	metricSamplesTotal     = "dwellscope.analysis.samples.total"
	metricAnalyzerDuration = "dwellscope.analysis.analyzer.duration.seconds"
	metricAnomaliesTotal   = "dwellscope.analysis.anomalies.total"
	metricCacheHitsTotal   = "dwellscope.analysis.cache.hits.total"
	metricCacheMissesTotal = "dwellscope.analysis.cache.misses.total"

	attrAnalyzer = "analyzer"
	attrDetector = "detector"
	attrCache    = "cache"
)

// PipelineMetrics holds OTel instruments for the analysis pipeline.
type PipelineMetrics struct {
	runsTotal        metric.Int64Counter
	samplesTotal     metric.Int64Counter
	analyzerDuration metric.Float64Histogram
	anomaliesTotal   metric.Int64Counter
	cacheHits        metric.Int64Counter
	cacheMisses      metric.Int64Counter
}

// NewPipelineMetrics creates pipeline metric instruments from the given meter.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	set := instrumentsOn(mt)

	pm := &PipelineMetrics{
		runsTotal:        set.counter(metricRunsTotal, "Total analysis runs", "{run}"),
		samplesTotal:     set.counter(metricSamplesTotal, "Total resampled points analyzed", "{sample}"),
		analyzerDuration: set.histogram(metricAnalyzerDuration, "Per-analyzer duration in seconds", "s", durationBucketBoundaries...),
		anomaliesTotal:   set.counter(metricAnomaliesTotal, "Anomalous samples flagged by detector", "{sample}"),
		cacheHits:        set.counter(metricCacheHitsTotal, "Cache hits by type", "{hit}"),
		cacheMisses:      set.counter(metricCacheMissesTotal, "Cache misses by type", "{miss}"),
	}

	if err := set.err(); err != nil {
		return nil, err
	}

	return pm, nil
}

// RecordRun records one completed pipeline run over the given sample count.
// Safe to call on a nil receiver (no-op).
func (pm *PipelineMetrics) RecordRun(ctx context.Context, samples int) {
	if pm == nil {
		return
	}

	pm.runsTotal.Add(ctx, 1)
	pm.samplesTotal.Add(ctx, int64(samples))
}

// RecordAnalyzer records one analyzer completion with its status and duration.
// Safe to call on a nil receiver (no-op).
func (pm *PipelineMetrics) RecordAnalyzer(ctx context.Context, name, status string, duration time.Duration) {
	if pm == nil {
		return
	}

	pm.analyzerDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(attrAnalyzer, name),
		attribute.String(attrStatus, status),
	))
}

// RecordAnomalies records flagged-sample counts for one detector.
// Safe to call on a nil receiver (no-op).
func (pm *PipelineMetrics) RecordAnomalies(ctx context.Context, detector string, count int) {
	if pm == nil {
		return
	}

	pm.anomaliesTotal.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String(attrDetector, detector),
	))
}

// RecordCache records hit and miss counts for a named cache.
// Safe to call on a nil receiver (no-op).
func (pm *PipelineMetrics) RecordCache(ctx context.Context, cache string, hits, misses int64) {
	if pm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrCache, cache))
	pm.cacheHits.Add(ctx, hits, attrs)
	pm.cacheMisses.Add(ctx, misses, attrs)
}
