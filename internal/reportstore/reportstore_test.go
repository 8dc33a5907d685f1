package reportstore_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwellscope/dwellscope/internal/analyzers/aroon"
	"github.com/dwellscope/dwellscope/internal/analyzers/diurnal"
	"github.com/dwellscope/dwellscope/internal/analyzers/isoforest"
	"github.com/dwellscope/dwellscope/internal/analyzers/spectral"
	"github.com/dwellscope/dwellscope/internal/analyzers/zscore"
	"github.com/dwellscope/dwellscope/internal/pipeline"
	"github.com/dwellscope/dwellscope/internal/reportstore"
)

func openTestStore(t *testing.T) *reportstore.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "runs.db")

	store, err := reportstore.Open(reportstore.DefaultConfig(path))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

// sampleReport builds a report with every analyzer section populated.
func sampleReport(system string, generatedAt time.Time) *pipeline.Report {
	return &pipeline.Report{
		System:        system,
		GeneratedAt:   generatedAt,
		Samples:       2880,
		MeanResidency: 51.3,
		Series: pipeline.SeriesSection{
			Start:  generatedAt.Add(-48 * time.Hour),
			End:    generatedAt,
			Step:   time.Minute.String(),
			Values: []float64{50, 51, 52},
		},
		ZScore:    &zscore.Result{Count: 3, Flags: []bool{false, true, true, true}},
		IsoForest: &isoforest.Result{Count: 29, Flags: []bool{true, false, true}},
		Spectral:  &spectral.Result{PeriodHours: 24.0},
		Diurnal:   &diurnal.Result{PeakHour: 23, TroughHour: 4},
		Aroon:     &aroon.Result{Window: 1440, Crossovers: []int{1500, 2100}},
		Overlap:   2,
	}
}

func TestStore_SaveAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	generated := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	want := sampleReport("web-01", generated)

	id, err := store.SaveRun(t.Context(), "data.ndjson", want)
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := store.LoadReport(t.Context(), id)
	require.NoError(t, err)

	assert.Equal(t, want.System, got.System)
	assert.True(t, want.GeneratedAt.Equal(got.GeneratedAt))
	assert.Equal(t, want.Samples, got.Samples)
	assert.InDelta(t, want.MeanResidency, got.MeanResidency, 1e-9)
	assert.Equal(t, want.ZScore.Flags, got.ZScore.Flags)
	assert.Equal(t, want.IsoForest.Count, got.IsoForest.Count)
	assert.InDelta(t, want.Spectral.PeriodHours, got.Spectral.PeriodHours, 1e-9)
	assert.Equal(t, want.Diurnal.PeakHour, got.Diurnal.PeakHour)
	assert.Equal(t, want.Aroon.Crossovers, got.Aroon.Crossovers)
	assert.Equal(t, want.Overlap, got.Overlap)
}

func TestStore_RecentRunsNewestFirst(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	base := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	for i, system := range []string{"web-01", "web-02", "db-01"} {
		report := sampleReport(system, base.Add(time.Duration(i)*time.Hour))

		_, err := store.SaveRun(t.Context(), "data.ndjson", report)
		require.NoError(t, err)
	}

	runs, err := store.RecentRuns(t.Context(), 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "db-01", runs[0].System)
	assert.Equal(t, "web-02", runs[1].System)
	assert.True(t, runs[0].CreatedAt.After(runs[1].CreatedAt))

	assert.Equal(t, 3, runs[0].ZScoreCount)
	assert.Equal(t, 29, runs[0].IsoForestCount)
	assert.Equal(t, 2, runs[0].Overlap)
	assert.InDelta(t, 24.0, runs[0].PeriodHours, 1e-9)
	assert.Equal(t, 23, runs[0].PeakHour)
	assert.Equal(t, 4, runs[0].TroughHour)
	assert.Equal(t, 2, runs[0].Reversals)
}

func TestStore_AbsentSectionsUseSentinelColumns(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	report := &pipeline.Report{
		System:      "web-01",
		GeneratedAt: time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC),
		Samples:     10,
		Errors:      map[string]string{"spectral": "degenerate series"},
	}

	id, err := store.SaveRun(t.Context(), "data.ndjson", report)
	require.NoError(t, err)

	runs, err := store.RecentRuns(t.Context(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	assert.Zero(t, runs[0].ZScoreCount)
	assert.Zero(t, runs[0].PeriodHours)
	assert.Equal(t, -1, runs[0].PeakHour)
	assert.Equal(t, -1, runs[0].TroughHour)

	got, err := store.LoadReport(t.Context(), id)
	require.NoError(t, err)
	assert.Nil(t, got.Spectral)
	assert.Equal(t, "degenerate series", got.Errors["spectral"])
}

func TestStore_LoadReportUnknownID(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	_, err := store.LoadReport(t.Context(), 999)
	require.ErrorIs(t, err, reportstore.ErrRunNotFound)
}

func TestStore_ClosedStoreRejectsOperations(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "close must be idempotent")

	_, err := store.SaveRun(t.Context(), "data.ndjson", sampleReport("web-01", time.Now()))
	require.ErrorIs(t, err, reportstore.ErrStoreClosed)

	_, err = store.RecentRuns(t.Context(), 5)
	require.ErrorIs(t, err, reportstore.ErrStoreClosed)

	_, err = store.LoadReport(t.Context(), 1)
	require.ErrorIs(t, err, reportstore.ErrStoreClosed)
}

func TestStore_ReopenSeesExistingRuns(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "runs.db")

	store, err := reportstore.Open(reportstore.DefaultConfig(path))
	require.NoError(t, err)

	report := sampleReport("web-01", time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC))

	_, err = store.SaveRun(t.Context(), "data.ndjson", report)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := reportstore.Open(reportstore.DefaultConfig(path))
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	runs, err := reopened.RecentRuns(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "web-01", runs[0].System)
}

func TestOpen_RequiresPath(t *testing.T) {
	t.Parallel()

	_, err := reportstore.Open(reportstore.Config{})
	require.Error(t, err)
}
