package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwellscope/dwellscope/internal/mcp"
	"github.com/dwellscope/dwellscope/internal/observability"
	"github.com/dwellscope/dwellscope/internal/seriescache"
	"github.com/dwellscope/dwellscope/pkg/config"
	pkgobs "github.com/dwellscope/dwellscope/pkg/observability"
	"github.com/dwellscope/dwellscope/pkg/version"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes residency analysis as tools that AI agents can
discover and invoke:
  - residency_analyze: full detector pipeline over one system's series
  - residency_systems: dataset overview with sample counts and extents`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cobraCmd)
			if err != nil {
				return err
			}

			providers, err := initMCPObservability(cfg, debug)
			if err != nil {
				return err
			}

			defer func() {
				shutdownErr := providers.Shutdown(context.Background())
				if shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			red, redErr := observability.NewREDMetrics(providers.Meter)
			if redErr != nil {
				return redErr
			}

			pipelineMetrics, pmErr := observability.NewPipelineMetrics(providers.Meter)
			if pmErr != nil {
				return pmErr
			}

			deps := mcp.ServerDeps{
				Logger:          providers.Logger,
				Metrics:         red,
				PipelineMetrics: pipelineMetrics,
				Tracer:          providers.Tracer,
				Defaults:        cfg.Analysis,
			}

			if cfg.Cache.Enabled {
				deps.Cache = seriescache.New(cfg.Cache.Capacity, pipelineMetrics)
			}

			srv := mcp.NewServer(deps)

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")

	return cmd
}

// initMCPObservability configures observability for stdio serving: JSON
// logs on stderr, OTLP export from config with the standard OTel
// environment variables taking precedence.
func initMCPObservability(cfg *config.Config, debug bool) (pkgobs.Providers, error) {
	obsCfg := pkgobs.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = pkgobs.ModeMCP
	obsCfg.LogJSON = true

	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		obsCfg.OTLPEndpoint = endpoint
	}

	obsCfg.OTLPHeaders = pkgobs.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	obsCfg.OTLPInsecure = cfg.Observability.OTLPInsecure || os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"

	if debug {
		obsCfg.LogLevel = slog.LevelDebug
		obsCfg.DebugTrace = true
	}

	return pkgobs.Init(obsCfg)
}
