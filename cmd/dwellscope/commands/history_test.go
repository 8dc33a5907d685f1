package commands

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwellscope/dwellscope/internal/pipeline"
	"github.com/dwellscope/dwellscope/internal/reportstore"
)

// seedStore creates a history database at path holding the given reports.
func seedStore(t *testing.T, path string, reports ...*pipeline.Report) {
	t.Helper()

	store, err := reportstore.Open(reportstore.DefaultConfig(path))
	require.NoError(t, err)

	defer func() { require.NoError(t, store.Close()) }()

	for _, report := range reports {
		_, err = store.SaveRun(t.Context(), "data.ndjson", report)
		require.NoError(t, err)
	}
}

func historyReport(system string, samples int) *pipeline.Report {
	return &pipeline.Report{
		System:        system,
		GeneratedAt:   time.Now().UTC(),
		Samples:       samples,
		MeanResidency: 51.5,
	}
}

func TestHistoryCommand_RequiresStore(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, NewHistoryCommand())
	require.ErrorIs(t, err, ErrNoStorePath)
}

func TestHistoryCommand_ListsRuns(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	seedStore(t, dbPath,
		historyReport("web-01", 120),
		historyReport("db-01", 60),
	)

	stdout, _, err := execute(t, NewHistoryCommand(), "--store", dbPath)
	require.NoError(t, err)

	assert.Contains(t, stdout, "ID")
	assert.Contains(t, stdout, "web-01")
	assert.Contains(t, stdout, "db-01")
	assert.Contains(t, stdout, "51.5%")
}

func TestHistoryCommand_LimitBoundsRows(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	seedStore(t, dbPath,
		historyReport("web-01", 120),
		historyReport("web-01", 120),
		historyReport("web-01", 120),
	)

	stdout, _, err := execute(t, NewHistoryCommand(), "--store", dbPath, "--limit", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(stdout, "web-01"))
}

func TestHistoryCommand_EmptyStore(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	seedStore(t, dbPath)

	stdout, _, err := execute(t, NewHistoryCommand(), "--store", dbPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "no runs recorded")
}
