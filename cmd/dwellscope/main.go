// Package main provides the entry point for the dwellscope CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwellscope/dwellscope/cmd/dwellscope/commands"
	"github.com/dwellscope/dwellscope/pkg/version"
)

var (
	configPath string
	verbose    bool
	quiet      bool
)

func main() {
	version.InitFromBuildInfo()

	rootCmd := &cobra.Command{
		Use:   "dwellscope",
		Short: "Dwellscope Residency Analytics - telemetry anomaly and rhythm detection",
		Long: `Dwellscope analyzes per-minute residency telemetry for anomalies,
periodicity, daily rhythm, and trend reversals.

Commands:
  analyze   Run the detector pipeline on an NDJSON dataset`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./dwellscope.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")

	// Add commands.
	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewSystemsCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewMCPCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "dwellscope %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
