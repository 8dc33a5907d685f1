// Package render presents pipeline reports as JSON, YAML, or a terminal
// summary table. Spectra and indicator arrays stay numeric; this package
// only formats what the pipeline computed.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/dwellscope/dwellscope/internal/pipeline"
)

// Output format identifiers accepted by the CLI.
const (
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatTable = "table"
)

// ErrNilMetricsOutput is returned when nil is passed to render functions.
var ErrNilMetricsOutput = errors.New("metrics output is nil")

// ErrUnsupportedFormat reports an unknown output format name.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// MetricsOutput is implemented by report wrappers to provide serializable
// output for the JSON and YAML renderers.
type MetricsOutput interface {
	// AnalyzerName returns the report family identifier.
	AnalyzerName() string

	// ToJSON returns a value suitable for json.Marshal.
	ToJSON() any

	// ToYAML returns a value suitable for yaml.Marshal.
	ToYAML() any
}

// ReportOutput adapts a pipeline report to the MetricsOutput contract.
type ReportOutput struct {
	Report *pipeline.Report
}

// AnalyzerName identifies the residency report family.
func (ro ReportOutput) AnalyzerName() string { return "residency" }

// ToJSON returns the typed report for JSON marshaling.
func (ro ReportOutput) ToJSON() any { return ro.Report }

// ToYAML round-trips the report through its JSON form so the YAML document
// uses the same field names as the JSON one. yaml.v3 does not read json
// struct tags.
func (ro ReportOutput) ToYAML() any {
	data, err := json.Marshal(ro.Report)
	if err != nil {
		return ro.Report
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return ro.Report
	}

	return doc
}

// RenderJSON serializes metrics output to indented JSON bytes.
func RenderJSON(m MetricsOutput) ([]byte, error) {
	if m == nil {
		return nil, ErrNilMetricsOutput
	}

	data, err := json.MarshalIndent(m.ToJSON(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal metrics to JSON: %w", err)
	}

	return data, nil
}

// RenderYAML serializes metrics output to YAML bytes.
func RenderYAML(m MetricsOutput) ([]byte, error) {
	if m == nil {
		return nil, ErrNilMetricsOutput
	}

	data, err := yaml.Marshal(m.ToYAML())
	if err != nil {
		return nil, fmt.Errorf("marshal metrics to YAML: %w", err)
	}

	return data, nil
}

// RenderReport writes the report to w in the requested format.
func RenderReport(w io.Writer, report *pipeline.Report, format string) error {
	switch format {
	case FormatJSON:
		data, err := RenderJSON(ReportOutput{Report: report})
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(w, string(data))

		return err
	case FormatYAML:
		data, err := RenderYAML(ReportOutput{Report: report})
		if err != nil {
			return err
		}

		_, err = w.Write(data)

		return err
	case FormatTable:
		return RenderTable(w, report)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// RenderTable writes a colored terminal summary of one report.
func RenderTable(w io.Writer, report *pipeline.Report) error {
	if report == nil {
		return ErrNilMetricsOutput
	}

	fmt.Fprintf(w, "System   %s\n", color.New(color.Bold).Sprint(report.System))
	fmt.Fprintf(w, "Window   %s to %s (%s samples @ %s)\n",
		report.Series.Start.Format("2006-01-02 15:04 MST"),
		report.Series.End.Format("2006-01-02 15:04 MST"),
		humanize.Comma(int64(report.Samples)),
		report.Series.Step,
	)
	fmt.Fprintf(w, "Mean     %.2f%%\n\n", report.MeanResidency)

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	tbl.AppendHeader(table.Row{"Analyzer", "Metric", "Value"})
	appendDetectorRows(tbl, report)
	appendProfileRows(tbl, report)
	tbl.Render()

	renderErrors(w, report.Errors)

	return nil
}

func appendDetectorRows(tbl table.Writer, report *pipeline.Report) {
	if report.ZScore != nil {
		value := anomalyCount(report.ZScore.Count, report.ZScore.Rate)
		if report.ZScore.Degenerate {
			value = "0 (zero-variance series)"
		}

		tbl.AppendRow(table.Row{"zscore", "anomalies", value})
	}

	if report.IsoForest != nil {
		tbl.AppendRow(table.Row{
			"isoforest", "anomalies",
			anomalyCount(report.IsoForest.Count, report.IsoForest.Rate),
		})
	}

	if report.ZScore != nil && report.IsoForest != nil {
		tbl.AppendRow(table.Row{"overlap", "flagged by both", humanize.Comma(int64(report.Overlap))})
	}
}

func appendProfileRows(tbl table.Writer, report *pipeline.Report) {
	if report.Spectral != nil {
		tbl.AppendRow(table.Row{
			"spectral", "dominant period",
			fmt.Sprintf("%.1f h", report.Spectral.PeriodHours),
		})
	}

	if report.Diurnal != nil {
		tbl.AppendRow(table.Row{
			"diurnal", "peak / trough hour",
			fmt.Sprintf("%02d:00 (%.1f%%) / %02d:00 (%.1f%%)",
				report.Diurnal.PeakHour, report.Diurnal.PeakMean,
				report.Diurnal.TroughHour, report.Diurnal.TroughMean),
		})
	}

	if report.Aroon != nil {
		tbl.AppendRow(table.Row{
			"aroon", "bullish reversals",
			humanize.Comma(int64(len(report.Aroon.Crossovers))),
		})
	}
}

// anomalyCount renders a flagged-sample count, red when nonzero.
func anomalyCount(count int, rate float64) string {
	text := fmt.Sprintf("%s (%.2f%%)", humanize.Comma(int64(count)), rate*100)
	if count > 0 {
		return color.New(color.FgRed).Sprint(text)
	}

	return color.New(color.FgGreen).Sprint(text)
}

func renderErrors(w io.Writer, errs map[string]string) {
	if len(errs) == 0 {
		return
	}

	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}

	sort.Strings(names)

	fmt.Fprintln(w)

	for _, name := range names {
		color.New(color.FgYellow).Fprintf(w, "%s failed: %s\n", name, errs[name])
	}
}
