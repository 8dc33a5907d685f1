package commands

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dwellscope/dwellscope/internal/reportstore"
)

// defaultHistoryLimit bounds the listing when --limit is not set.
const defaultHistoryLimit = 20

// ErrNoStorePath is returned when no history database is configured.
var ErrNoStorePath = errors.New("no run store configured: pass --store or set store.path")

// HistoryCommand holds the flags of the history command.
type HistoryCommand struct {
	storePath string
	limit     int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	hc := &HistoryCommand{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent analysis runs from the history database",
		Args:  cobra.NoArgs,
		RunE:  hc.run,
	}

	cmd.Flags().StringVar(&hc.storePath, "store", "", "SQLite history database (default: store.path from config)")
	cmd.Flags().IntVar(&hc.limit, "limit", defaultHistoryLimit, "Maximum number of runs to list")

	return cmd
}

func (hc *HistoryCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	storePath := hc.storePath
	if storePath == "" {
		storePath = cfg.Store.Path
	}

	if storePath == "" {
		return ErrNoStorePath
	}

	store, err := reportstore.Open(reportstore.DefaultConfig(storePath))
	if err != nil {
		return err
	}

	defer func() { _ = store.Close() }()

	runs, err := store.RecentRuns(cmd.Context(), hc.limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")

		return nil
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(cmd.OutOrStdout())
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	tbl.AppendHeader(table.Row{"ID", "When", "System", "Samples", "Mean", "Z", "IF", "Both", "Period", "Reversals"})

	for _, run := range runs {
		tbl.AppendRow(table.Row{
			run.ID,
			humanize.Time(run.CreatedAt),
			run.System,
			humanize.Comma(int64(run.Samples)),
			fmt.Sprintf("%.1f%%", run.MeanResidency),
			run.ZScoreCount,
			run.IsoForestCount,
			run.Overlap,
			formatPeriod(run.PeriodHours),
			run.Reversals,
		})
	}

	tbl.Render()

	return nil
}

// formatPeriod renders the dominant period, or a dash when the spectral
// section was absent from the stored run.
func formatPeriod(hours float64) string {
	if hours == 0 {
		return "-"
	}

	return fmt.Sprintf("%.1f h", hours)
}
