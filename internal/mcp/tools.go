package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dwellscope/dwellscope/pkg/config"
)

// Tool name constants.
const (
	ToolNameAnalyze = "residency_analyze"
	ToolNameSystems = "residency_systems"
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyPath indicates the path parameter is empty.
	ErrEmptyPath = errors.New("path parameter is required and must not be empty")

	// ErrBadCadence indicates the cadence override is not a valid duration.
	ErrBadCadence = errors.New("cadence must be a positive Go duration (e.g. 1m, 30s)")
)

// Input types (auto-generate JSON schemas via struct tags).

// AnalyzeInput is the input schema for the residency_analyze tool.
type AnalyzeInput struct {
	Path          string  `json:"path"                    jsonschema:"path to an NDJSON residency dataset"`
	System        string  `json:"system,omitempty"        jsonschema:"system to analyze (optional when the dataset holds exactly one)"`
	Cadence       string  `json:"cadence,omitempty"       jsonschema:"resample cadence as a Go duration (default 1m)"`
	Threshold     float64 `json:"threshold,omitempty"     jsonschema:"z-score anomaly threshold in standard deviations (default 3)"`
	Contamination float64 `json:"contamination,omitempty" jsonschema:"isolation forest expected anomaly fraction in (0, 0.5] (default 0.01)"`
	Seed          int64   `json:"seed,omitempty"          jsonschema:"isolation forest random seed (default 42)"`
	Window        int     `json:"window,omitempty"        jsonschema:"aroon window in samples (default: one day at the cadence)"`
}

// SystemsInput is the input schema for the residency_systems tool.
type SystemsInput struct {
	Path string `json:"path" jsonschema:"path to an NDJSON residency dataset"`
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// analysisOverrides applies the tool-call overrides to the server defaults
// and validates the result.
func analysisOverrides(defaults config.AnalysisConfig, input AnalyzeInput) (config.AnalysisConfig, error) {
	knobs := defaults

	if input.Cadence != "" {
		cadence, err := time.ParseDuration(input.Cadence)
		if err != nil || cadence <= 0 {
			return knobs, fmt.Errorf("%w: %q", ErrBadCadence, input.Cadence)
		}

		knobs.Cadence = cadence
	}

	if input.Threshold != 0 {
		knobs.ZScoreThreshold = input.Threshold
	}

	if input.Contamination != 0 {
		knobs.Contamination = input.Contamination
	}

	if input.Seed != 0 {
		knobs.Seed = input.Seed
	}

	if input.Window != 0 {
		knobs.AroonWindow = input.Window
	}

	if err := knobs.Validate(); err != nil {
		return knobs, err
	}

	return knobs, nil
}
