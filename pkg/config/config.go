// Package config provides file, environment and default configuration for
// dwellscope.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Validation failures wrap one of these so callers can match with errors.Is.
var (
	ErrInvalidCadence       = errors.New("resample cadence must be positive")
	ErrInvalidThreshold     = errors.New("z-score threshold must be positive")
	ErrInvalidContamination = errors.New("contamination must be in (0, 0.5]")
	ErrInvalidWindow        = errors.New("aroon window must not be negative")
	ErrInvalidCacheCapacity = errors.New("cache capacity must be positive when the cache is enabled")
)

// maxContamination bounds the expected-anomaly fraction; flagging more than
// half the samples as outliers is never meaningful.
const maxContamination = 0.5

// Config holds all configuration for the dwellscope pipeline and its surfaces.
type Config struct {
	Analysis      AnalysisConfig      `mapstructure:"analysis"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Store         StoreConfig         `mapstructure:"store"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AnalysisConfig holds the analyzer knobs. Every value is threaded
// explicitly into the pipeline; nothing is read ambiently, so concurrent
// evaluations with different settings never interfere.
type AnalysisConfig struct {
	// Cadence is the uniform resample step.
	Cadence time.Duration `mapstructure:"cadence"`

	// ZScoreThreshold is the deviation threshold k for the statistical
	// detector.
	ZScoreThreshold float64 `mapstructure:"zscore_threshold"`

	// Contamination is the expected anomaly fraction for the isolation
	// forest.
	Contamination float64 `mapstructure:"contamination"`

	// Seed feeds the isolation forest's random source.
	Seed int64 `mapstructure:"seed"`

	// AroonWindow is the trend-reversal window in samples. Zero derives
	// one day's worth of samples from the cadence.
	AroonWindow int `mapstructure:"aroon_window"`
}

// ResolveAroonWindow returns the effective Aroon window: the configured
// value when positive, otherwise one day of samples at the cadence.
func (a AnalysisConfig) ResolveAroonWindow() int {
	if a.AroonWindow > 0 {
		return a.AroonWindow
	}

	if a.Cadence <= 0 {
		return 0
	}

	return int(24 * time.Hour / a.Cadence)
}

// Validate checks the analysis knobs against their allowed ranges. Every
// surface that accepts overrides (flags, MCP tool inputs) funnels through
// this before running the pipeline.
func (a AnalysisConfig) Validate() error {
	if a.Cadence <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidCadence, a.Cadence)
	}

	if a.ZScoreThreshold <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, a.ZScoreThreshold)
	}

	if a.Contamination <= 0 || a.Contamination > maxContamination {
		return fmt.Errorf("%w: %v", ErrInvalidContamination, a.Contamination)
	}

	if a.AroonWindow < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWindow, a.AroonWindow)
	}

	return nil
}

// CacheConfig holds the resampled-series cache settings.
type CacheConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Capacity int  `mapstructure:"capacity"`
}

// StoreConfig holds the run-history store settings.
type StoreConfig struct {
	// Path is the SQLite database file. Empty disables storing runs.
	Path string `mapstructure:"path"`
}

// LoggingConfig selects the CLI log level and output format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig holds tracing and metrics export settings.
type ObservabilityConfig struct {
	// OTLPEndpoint is the OTLP gRPC collector address. Empty disables export.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// OTLPInsecure disables TLS for the OTLP connection.
	OTLPInsecure bool `mapstructure:"otlp_insecure"`

	// MetricsAddr serves Prometheus metrics and health endpoints on this
	// address for the duration of a run. Empty disables the listener.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// defaults seed every key before file and environment values are applied.
var defaults = map[string]any{
	"analysis.cadence":          DefaultCadence.String(),
	"analysis.zscore_threshold": DefaultZScoreThreshold,
	"analysis.contamination":    DefaultContamination,
	"analysis.seed":             DefaultSeed,
	"analysis.aroon_window":     DefaultAroonWindow,

	"cache.enabled":  true,
	"cache.capacity": DefaultCacheCapacity,

	"store.path": "",

	"logging.level":  "info",
	"logging.format": "text",

	"observability.otlp_endpoint": "",
	"observability.otlp_insecure": false,
	"observability.metrics_addr":  "",
}

// LoadConfig resolves the effective configuration: defaults first, then an
// optional YAML file, then DWELLSCOPE_* environment variables. An explicit
// path must exist; with path == "" the usual locations are searched and a
// missing file is fine.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dwellscope")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/dwellscope")
	}

	v.SetEnvPrefix("DWELLSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var missing viper.ConfigFileNotFoundError
		if !errors.As(err, &missing) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.check(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) check() error {
	if err := c.Analysis.Validate(); err != nil {
		return err
	}

	if c.Cache.Enabled && c.Cache.Capacity <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheCapacity, c.Cache.Capacity)
	}

	return nil
}
