package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dwellscope/dwellscope/internal/ingest"
	"github.com/dwellscope/dwellscope/internal/pipeline"
	"github.com/dwellscope/dwellscope/pkg/timeseries"
)

// handleAnalyze processes residency_analyze tool calls.
func (s *Server) handleAnalyze(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input AnalyzeInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Path == "" {
		return errorResult(ErrEmptyPath)
	}

	knobs, err := analysisOverrides(s.defaults, input)
	if err != nil {
		return errorResult(err)
	}

	dataset, err := ingest.ReadFile(input.Path, false)
	if err != nil {
		return errorResult(err)
	}

	system, err := dataset.Select(input.System)
	if err != nil {
		return errorResult(err)
	}

	// The resampled series is cached per (path, system, cadence); repeated
	// calls with different detector knobs reuse it.
	series, err := s.cache.GetOrCompute(ctx, input.Path, system, knobs.Cadence, func() (*timeseries.Series, error) {
		samples, err := dataset.Samples(system)
		if err != nil {
			return nil, err
		}

		return timeseries.Resample(samples, knobs.Cadence)
	})
	if err != nil {
		return errorResult(fmt.Errorf("resample %s: %w", system, err))
	}

	params := pipeline.Params{
		Cadence:       knobs.Cadence,
		ZScore:        knobs.ZScoreThreshold,
		Contamination: knobs.Contamination,
		Seed:          knobs.Seed,
		AroonWindow:   knobs.ResolveAroonWindow(),
	}

	report, err := s.agg.Analyze(ctx, system, series, params)
	if err != nil {
		return errorResult(fmt.Errorf("analyze %s: %w", system, err))
	}

	return jsonResult(report)
}
