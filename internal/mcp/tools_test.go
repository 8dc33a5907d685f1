package mcp

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dwellscope/dwellscope/internal/seriescache"
	"github.com/dwellscope/dwellscope/pkg/config"
)

// writeDataset writes one NDJSON file with minute-cadence samples per system.
func writeDataset(t *testing.T, systems map[string][]float64) string {
	t.Helper()

	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	var b strings.Builder

	for system, values := range systems {
		for i, v := range values {
			fmt.Fprintf(&b, `{"ts":%q,"system":%q,"residency":%g}`+"\n",
				base.Add(time.Duration(i)*time.Minute).Format(time.RFC3339), system, v)
		}
	}

	path := filepath.Join(t.TempDir(), "data.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))

	return path
}

// wavyValues builds n samples oscillating around 50 so no analyzer sees a
// degenerate series.
func wavyValues(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = 50 + 10*math.Sin(2*math.Pi*float64(i)/60)
	}

	return values
}

func errorText(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()

	require.True(t, result.IsError)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)

	return text.Text
}

func TestHandleAnalyze_EmptyPath(t *testing.T) {
	t.Parallel()

	srv := NewServer(ServerDeps{})

	result, _, err := srv.handleAnalyze(t.Context(), &mcpsdk.CallToolRequest{}, AnalyzeInput{})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Contains(t, errorText(t, result), "path parameter is required")
}

func TestHandleAnalyze_AmbiguousSystemListsCandidates(t *testing.T) {
	t.Parallel()

	srv := NewServer(ServerDeps{})
	path := writeDataset(t, map[string][]float64{
		"web-01": wavyValues(120),
		"web-02": wavyValues(120),
	})

	result, _, err := srv.handleAnalyze(t.Context(), &mcpsdk.CallToolRequest{}, AnalyzeInput{Path: path})
	require.NoError(t, err)

	text := errorText(t, result)
	assert.Contains(t, text, "web-01")
	assert.Contains(t, text, "web-02")
}

func TestHandleAnalyze_BadCadence(t *testing.T) {
	t.Parallel()

	srv := NewServer(ServerDeps{})

	result, _, err := srv.handleAnalyze(t.Context(), &mcpsdk.CallToolRequest{}, AnalyzeInput{
		Path:    "irrelevant.ndjson",
		Cadence: "yearly",
	})
	require.NoError(t, err)
	assert.Contains(t, errorText(t, result), "cadence")
}

func TestHandleAnalyze_ReportRoundTrip(t *testing.T) {
	t.Parallel()

	srv := NewServer(ServerDeps{})
	path := writeDataset(t, map[string][]float64{"web-01": wavyValues(180)})

	result, output, err := srv.handleAnalyze(t.Context(), &mcpsdk.CallToolRequest{}, AnalyzeInput{
		Path:   path,
		Window: 30,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)
	require.NotNil(t, output.Data)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, `"system": "web-01"`)
	assert.Contains(t, text.Text, `"zscore"`)
	assert.Contains(t, text.Text, `"spectral"`)
}

func TestHandleAnalyze_SharesSeriesCacheAcrossCalls(t *testing.T) {
	t.Parallel()

	cache := seriescache.New(4, nil)
	srv := NewServer(ServerDeps{Cache: cache})
	path := writeDataset(t, map[string][]float64{"web-01": wavyValues(120)})

	input := AnalyzeInput{Path: path, Window: 30}

	_, _, err := srv.handleAnalyze(t.Context(), &mcpsdk.CallToolRequest{}, input)
	require.NoError(t, err)

	// Different detector knobs, same (path, system, cadence): one resample.
	input.Threshold = 2.5

	_, _, err = srv.handleAnalyze(t.Context(), &mcpsdk.CallToolRequest{}, input)
	require.NoError(t, err)

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestHandleAnalyze_NoCacheStillAnalyzes(t *testing.T) {
	t.Parallel()

	srv := NewServer(ServerDeps{})
	path := writeDataset(t, map[string][]float64{"web-01": wavyValues(120)})

	input := AnalyzeInput{Path: path, Window: 30}

	for range 2 {
		result, _, err := srv.handleAnalyze(t.Context(), &mcpsdk.CallToolRequest{}, input)
		require.NoError(t, err)
		assert.False(t, result.IsError)
	}
}

func TestHandleSystems_ListsDataset(t *testing.T) {
	t.Parallel()

	srv := NewServer(ServerDeps{})
	path := writeDataset(t, map[string][]float64{
		"db-01":  wavyValues(60),
		"web-01": wavyValues(120),
	})

	result, _, err := srv.handleSystems(t.Context(), &mcpsdk.CallToolRequest{}, SystemsInput{Path: path})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, `"db-01"`)
	assert.Contains(t, text.Text, `"web-01"`)
	assert.Contains(t, text.Text, `"samples": 120`)
}

func TestHandleSystems_MissingFile(t *testing.T) {
	t.Parallel()

	srv := NewServer(ServerDeps{})

	result, _, err := srv.handleSystems(t.Context(), &mcpsdk.CallToolRequest{}, SystemsInput{
		Path: filepath.Join(t.TempDir(), "absent.ndjson"),
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestAnalysisOverrides(t *testing.T) {
	t.Parallel()

	defaults := config.DefaultAnalysis()

	knobs, err := analysisOverrides(defaults, AnalyzeInput{})
	require.NoError(t, err)
	assert.Equal(t, defaults, knobs)

	knobs, err = analysisOverrides(defaults, AnalyzeInput{
		Cadence:       "5m",
		Threshold:     2.0,
		Contamination: 0.05,
		Seed:          7,
		Window:        288,
	})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, knobs.Cadence)
	assert.InDelta(t, 2.0, knobs.ZScoreThreshold, 1e-12)
	assert.InDelta(t, 0.05, knobs.Contamination, 1e-12)
	assert.Equal(t, int64(7), knobs.Seed)
	assert.Equal(t, 288, knobs.AroonWindow)
}

func TestAnalysisOverrides_Invalid(t *testing.T) {
	t.Parallel()

	defaults := config.DefaultAnalysis()

	_, err := analysisOverrides(defaults, AnalyzeInput{Cadence: "0s"})
	require.ErrorIs(t, err, ErrBadCadence)

	_, err = analysisOverrides(defaults, AnalyzeInput{Threshold: -1})
	require.ErrorIs(t, err, config.ErrInvalidThreshold)

	_, err = analysisOverrides(defaults, AnalyzeInput{Contamination: 0.9})
	require.ErrorIs(t, err, config.ErrInvalidContamination)

	_, err = analysisOverrides(defaults, AnalyzeInput{Window: -5})
	require.ErrorIs(t, err, config.ErrInvalidWindow)
}
