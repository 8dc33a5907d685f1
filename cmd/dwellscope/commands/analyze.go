// Package commands implements CLI command handlers for dwellscope.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwellscope/dwellscope/internal/ingest"
	"github.com/dwellscope/dwellscope/internal/observability"
	"github.com/dwellscope/dwellscope/internal/pipeline"
	"github.com/dwellscope/dwellscope/internal/render"
	"github.com/dwellscope/dwellscope/internal/reportstore"
	"github.com/dwellscope/dwellscope/pkg/config"
	pkgobs "github.com/dwellscope/dwellscope/pkg/observability"
	"github.com/dwellscope/dwellscope/pkg/version"
)

// AnalyzeCommand holds the flags of the analyze command.
type AnalyzeCommand struct {
	system      string
	format      string
	outPath     string
	storePath   string
	strict      bool
	metricsAddr string

	cadence       time.Duration
	threshold     float64
	contamination float64
	seed          int64
	window        int
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	ac := &AnalyzeCommand{}

	cmd := &cobra.Command{
		Use:   "analyze <data.ndjson>",
		Short: "Run the detector pipeline on one system's residency series",
		Long: `Analyze one system's residency series from an NDJSON dataset:
z-score and isolation-forest anomalies, dominant period, hourly profile,
and Aroon trend reversals.`,
		Args: cobra.ExactArgs(1),
		RunE: ac.run,
	}

	cmd.Flags().StringVarP(&ac.system, "system", "s", "", "System to analyze (default: the only system in the dataset)")
	cmd.Flags().StringVar(&ac.format, "format", render.FormatTable, "Output format: table, json, yaml")
	cmd.Flags().StringVarP(&ac.outPath, "out", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().StringVar(&ac.storePath, "store", "", "Append the run to this SQLite history database")
	cmd.Flags().BoolVar(&ac.strict, "strict", false, "Validate every record against the embedded schema")
	cmd.Flags().StringVar(&ac.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics and health endpoints on this address for the run")

	cmd.Flags().DurationVar(&ac.cadence, "cadence", config.DefaultCadence, "Resample cadence")
	cmd.Flags().Float64Var(&ac.threshold, "threshold", config.DefaultZScoreThreshold, "Z-score anomaly threshold")
	cmd.Flags().Float64Var(&ac.contamination, "contamination", config.DefaultContamination, "Expected anomaly fraction for the isolation forest")
	cmd.Flags().Int64Var(&ac.seed, "seed", config.DefaultSeed, "Random seed for the isolation forest")
	cmd.Flags().IntVar(&ac.window, "window", config.DefaultAroonWindow, "Aroon window in samples (0 = one day at the cadence)")

	return cmd
}

func (ac *AnalyzeCommand) run(cmd *cobra.Command, args []string) error {
	dataPath := args[0]
	silent := isSilent(cmd)
	progressWriter := cmd.ErrOrStderr()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	knobs, err := ac.resolveKnobs(cmd, cfg.Analysis)
	if err != nil {
		return err
	}

	providers, err := initCLIObservability(cmd, cfg)
	if err != nil {
		return err
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	pipelineMetrics, err := observability.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return err
	}

	addr := ac.metricsAddr
	if addr == "" {
		addr = cfg.Observability.MetricsAddr
	}

	if addr != "" {
		diag, diagErr := observability.NewDiagnosticsServer(addr, providers.Tracer)
		if diagErr != nil {
			return diagErr
		}

		defer func() {
			closeErr := diag.Close()
			if closeErr != nil {
				providers.Logger.Warn("diagnostics server close failed", "error", closeErr)
			}
		}()

		progressf(silent, progressWriter, "diagnostics listening on %s", diag.Addr())
	}

	progressf(silent, progressWriter, "loading dataset path=%s strict=%v", dataPath, ac.strict)

	dataset, err := ingest.ReadFile(dataPath, ac.strict)
	if err != nil {
		return err
	}

	system, err := dataset.Select(ac.system)
	if err != nil {
		return err
	}

	samples, err := dataset.Samples(system)
	if err != nil {
		return err
	}

	progressf(silent, progressWriter, "analyzing system=%s samples=%s cadence=%s",
		system, humanize.Comma(int64(len(samples))), knobs.Cadence)

	agg := pipeline.New(providers.Logger, providers.Tracer, pipelineMetrics)

	report, err := agg.Run(cmd.Context(), system, samples, pipeline.Params{
		Cadence:       knobs.Cadence,
		ZScore:        knobs.ZScoreThreshold,
		Contamination: knobs.Contamination,
		Seed:          knobs.Seed,
		AroonWindow:   knobs.ResolveAroonWindow(),
	})
	if err != nil {
		return err
	}

	storePath := ac.storePath
	if storePath == "" {
		storePath = cfg.Store.Path
	}

	if storePath != "" {
		id, storeErr := storeRun(cmd.Context(), storePath, dataPath, report)
		if storeErr != nil {
			return storeErr
		}

		progressf(silent, progressWriter, "stored run id=%d store=%s", id, storePath)
	}

	out, cleanup, err := ac.openOutput(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	return render.RenderReport(out, report, ac.format)
}

// resolveKnobs merges flag overrides over the configured analysis knobs.
// Only flags the user actually set override the config file and env values.
func (ac *AnalyzeCommand) resolveKnobs(cmd *cobra.Command, base config.AnalysisConfig) (config.AnalysisConfig, error) {
	knobs := base

	if cmd.Flags().Changed("cadence") {
		knobs.Cadence = ac.cadence
	}

	if cmd.Flags().Changed("threshold") {
		knobs.ZScoreThreshold = ac.threshold
	}

	if cmd.Flags().Changed("contamination") {
		knobs.Contamination = ac.contamination
	}

	if cmd.Flags().Changed("seed") {
		knobs.Seed = ac.seed
	}

	if cmd.Flags().Changed("window") {
		knobs.AroonWindow = ac.window
	}

	if err := knobs.Validate(); err != nil {
		return config.AnalysisConfig{}, err
	}

	return knobs, nil
}

// openOutput returns the report destination and its cleanup. File output
// disables color codes for the duration of the write.
func (ac *AnalyzeCommand) openOutput(cmd *cobra.Command) (io.Writer, func(), error) {
	if ac.outPath == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}

	f, err := os.Create(ac.outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}

	previous := color.NoColor
	color.NoColor = true //nolint:reassign // intentional override of library global

	cleanup := func() {
		color.NoColor = previous //nolint:reassign // restore for in-process callers

		_ = f.Close()
	}

	return f, cleanup, nil
}

// storeRun appends one run row to the history database at storePath.
func storeRun(ctx context.Context, storePath, source string, report *pipeline.Report) (int64, error) {
	store, err := reportstore.Open(reportstore.DefaultConfig(storePath))
	if err != nil {
		return 0, err
	}

	defer func() { _ = store.Close() }()

	return store.SaveRun(ctx, source, report)
}

// initCLIObservability starts observability for one CLI run. Without an
// OTLP endpoint the providers are noop and only logging is live.
func initCLIObservability(cmd *cobra.Command, cfg *config.Config) (pkgobs.Providers, error) {
	obsCfg := pkgobs.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = pkgobs.ModeCLI
	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Observability.OTLPInsecure
	obsCfg.LogJSON = cfg.Logging.Format == "json"

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err == nil {
		obsCfg.LogLevel = level
	}

	if isVerbose(cmd) {
		obsCfg.LogLevel = slog.LevelDebug
		obsCfg.DebugTrace = true
	}

	return pkgobs.Init(obsCfg)
}

// loadConfig loads the typed config, honoring the root --config flag when
// the command is wired under the real root.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		path = ""
	}

	return config.LoadConfig(path)
}

func isSilent(cmd *cobra.Command) bool {
	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return false
	}

	return quiet
}

func isVerbose(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return false
	}

	return verbose
}

func progressf(silent bool, writer io.Writer, format string, args ...any) {
	if silent {
		return
	}

	_, _ = fmt.Fprintf(writer, "progress: "+format+"\n", args...)
}
