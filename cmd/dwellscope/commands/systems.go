package commands

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dwellscope/dwellscope/internal/ingest"
)

// SystemsCommand holds the flags of the systems command.
type SystemsCommand struct {
	strict bool
}

// NewSystemsCommand creates the systems command.
func NewSystemsCommand() *cobra.Command {
	sc := &SystemsCommand{}

	cmd := &cobra.Command{
		Use:   "systems <data.ndjson>",
		Short: "List the systems present in an NDJSON dataset",
		Args:  cobra.ExactArgs(1),
		RunE:  sc.run,
	}

	cmd.Flags().BoolVar(&sc.strict, "strict", false, "Validate every record against the embedded schema")

	return cmd
}

func (sc *SystemsCommand) run(cmd *cobra.Command, args []string) error {
	dataset, err := ingest.ReadFile(args[0], sc.strict)
	if err != nil {
		return err
	}

	infos := dataset.Systems()

	tbl := table.NewWriter()
	tbl.SetOutputMirror(cmd.OutOrStdout())
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	tbl.AppendHeader(table.Row{"System", "Samples", "First", "Last", "Span"})

	for _, info := range infos {
		tbl.AppendRow(table.Row{
			info.Name,
			humanize.Comma(int64(info.Samples)),
			info.First.Format(time.RFC3339),
			info.Last.Format(time.RFC3339),
			info.Last.Sub(info.First).Round(time.Second),
		})
	}

	tbl.Render()

	fmt.Fprintf(cmd.OutOrStdout(), "\n%s records across %d systems\n",
		humanize.Comma(int64(dataset.Len())), len(infos))

	return nil
}
