package config

import "time"

// Analysis default values. CLI flags and the MCP tools reference these so
// every surface agrees on the defaults.
const (
	// DefaultCadence is the uniform resample step.
	DefaultCadence = time.Minute

	// DefaultZScoreThreshold is the statistical detector's deviation
	// threshold in standard deviations.
	DefaultZScoreThreshold = 3.0

	// DefaultContamination is the isolation forest's expected anomaly
	// fraction.
	DefaultContamination = 0.01

	// DefaultSeed feeds the isolation forest's random source so repeated
	// runs over the same series flag the same samples.
	DefaultSeed int64 = 42

	// DefaultAroonWindow of zero derives one day of samples from the
	// cadence (1440 at one minute).
	DefaultAroonWindow = 0
)

// DefaultCacheCapacity is the resampled-series cache size in entries.
const DefaultCacheCapacity = 64

// DefaultAnalysis returns the analysis knobs at their default values,
// without going through a config file.
func DefaultAnalysis() AnalysisConfig {
	return AnalysisConfig{
		Cadence:         DefaultCadence,
		ZScoreThreshold: DefaultZScoreThreshold,
		Contamination:   DefaultContamination,
		Seed:            DefaultSeed,
		AroonWindow:     DefaultAroonWindow,
	}
}
