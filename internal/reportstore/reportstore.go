// Package reportstore persists completed analysis reports to a SQLite
// database, one row per pipeline run. The summary columns make run history
// queryable with plain SQL; the full report travels alongside as an
// LZ4-compressed JSON blob.
package reportstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	// Pure Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/dwellscope/dwellscope/internal/pipeline"
)

var (
	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("reportstore: store is closed")

	// ErrRunNotFound is returned when no run exists for the requested id.
	ErrRunNotFound = errors.New("reportstore: run not found")
)

const (
	// defaultCacheSizeKB is the SQLite page cache size in KB.
	defaultCacheSizeKB = 2000

	// defaultBusyTimeoutMS is the lock acquisition timeout in milliseconds.
	defaultBusyTimeoutMS = 5000

	// defaultMaxConnections caps open database connections.
	defaultMaxConnections = 4
)

// Config configures the SQLite report store.
type Config struct {
	// Path is the database file path.
	Path string

	// CacheSize is the SQLite page cache size in KB.
	CacheSize int

	// JournalMode sets the SQLite journal mode (WAL, DELETE, TRUNCATE).
	JournalMode string

	// Synchronous sets the synchronous pragma (OFF, NORMAL, FULL).
	Synchronous string

	// BusyTimeout is the lock acquisition timeout in milliseconds.
	BusyTimeout int

	// MaxConnections caps open database connections.
	MaxConnections int
}

// DefaultConfig returns the store configuration for path with WAL
// journaling and a busy timeout suitable for concurrent CLI runs.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		CacheSize:      defaultCacheSizeKB,
		JournalMode:    "WAL",
		Synchronous:    "NORMAL",
		BusyTimeout:    defaultBusyTimeoutMS,
		MaxConnections: defaultMaxConnections,
	}
}

// RunSummary is one row of run history without the report blob.
type RunSummary struct {
	ID             int64
	CreatedAt      time.Time
	Source         string
	System         string
	Samples        int
	MeanResidency  float64
	ZScoreCount    int
	IsoForestCount int
	Overlap        int

	// PeriodHours is zero when the spectral section was absent.
	PeriodHours float64

	// PeakHour and TroughHour are -1 when the diurnal section was absent.
	PeakHour   int
	TroughHour int

	Reversals int
}

// Store is a SQLite-backed run-history store. Safe for concurrent use.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool

	insertRun    *sql.Stmt
	selectRecent *sql.Stmt
	selectReport *sql.Stmt
}

// Open opens or creates the store at cfg.Path, applying the configured
// pragmas and preparing the run statements.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("reportstore: path is required")
	}

	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSizeKB
	}

	if cfg.JournalMode == "" {
		cfg.JournalMode = "WAL"
	}

	if cfg.Synchronous == "" {
		cfg.Synchronous = "NORMAL"
	}

	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = defaultBusyTimeoutMS
	}

	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = defaultMaxConnections
	}

	// The driver executes each _pragma on every pooled connection it
	// opens. A negative cache_size is in KB rather than pages.
	dsn := fmt.Sprintf("%s?_pragma=cache_size(-%d)&_pragma=journal_mode(%s)&_pragma=synchronous(%s)&_pragma=busy_timeout(%d)",
		cfg.Path, cfg.CacheSize, cfg.JournalMode, cfg.Synchronous, cfg.BusyTimeout)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections / 2)

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()

		return nil, fmt.Errorf("init report store schema: %w", err)
	}

	if err := store.prepareStatements(); err != nil {
		db.Close()

		return nil, fmt.Errorf("prepare report store statements: %w", err)
	}

	return store, nil
}

// initSchema creates the runs table and its indexes.
func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at INTEGER NOT NULL,
			source TEXT NOT NULL,
			system TEXT NOT NULL,
			samples INTEGER NOT NULL,
			mean_residency REAL NOT NULL,
			zscore_count INTEGER NOT NULL,
			isoforest_count INTEGER NOT NULL,
			overlap INTEGER NOT NULL,
			period_hours REAL NOT NULL,
			peak_hour INTEGER NOT NULL,
			trough_hour INTEGER NOT NULL,
			reversals INTEGER NOT NULL,
			report BLOB NOT NULL,
			report_raw_len INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
		CREATE INDEX IF NOT EXISTS idx_runs_system ON runs(system);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	return nil
}

// prepareStatements prepares the hot-path statements once.
func (s *Store) prepareStatements() error {
	var err error

	s.insertRun, err = s.db.Prepare(`
		INSERT INTO runs (
			created_at, source, system, samples, mean_residency,
			zscore_count, isoforest_count, overlap,
			period_hours, peak_hour, trough_hour, reversals,
			report, report_raw_len
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}

	s.selectRecent, err = s.db.Prepare(`
		SELECT id, created_at, source, system, samples, mean_residency,
			zscore_count, isoforest_count, overlap,
			period_hours, peak_hour, trough_hour, reversals
		FROM runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`)
	if err != nil {
		return fmt.Errorf("prepare select recent: %w", err)
	}

	s.selectReport, err = s.db.Prepare(`SELECT report, report_raw_len FROM runs WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("prepare select report: %w", err)
	}

	return nil
}

// SaveRun appends one completed run and returns its row id. The report is
// stored both as summary columns and as a compressed JSON blob.
func (s *Store) SaveRun(ctx context.Context, source string, report *pipeline.Report) (int64, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()

		return 0, ErrStoreClosed
	}
	s.mu.RUnlock()

	raw, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("encode report: %w", err)
	}

	blob := compressBlob(raw)

	periodHours := 0.0
	if report.Spectral != nil {
		periodHours = report.Spectral.PeriodHours
	}

	peakHour, troughHour := -1, -1
	if report.Diurnal != nil {
		peakHour = report.Diurnal.PeakHour
		troughHour = report.Diurnal.TroughHour
	}

	zscoreCount := 0
	if report.ZScore != nil {
		zscoreCount = report.ZScore.Count
	}

	isoforestCount := 0
	if report.IsoForest != nil {
		isoforestCount = report.IsoForest.Count
	}

	res, err := s.insertRun.ExecContext(ctx,
		report.GeneratedAt.UnixNano(), source, report.System,
		report.Samples, report.MeanResidency,
		zscoreCount, isoforestCount, report.Overlap,
		periodHours, peakHour, troughHour, report.ReversalCount(),
		blob, len(raw),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read run id: %w", err)
	}

	return id, nil
}

// RecentRuns returns up to limit run summaries, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()

		return nil, ErrStoreClosed
	}
	s.mu.RUnlock()

	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.selectRecent.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary

	for rows.Next() {
		var (
			run       RunSummary
			createdNS int64
		)

		err := rows.Scan(&run.ID, &createdNS, &run.Source, &run.System,
			&run.Samples, &run.MeanResidency,
			&run.ZScoreCount, &run.IsoForestCount, &run.Overlap,
			&run.PeriodHours, &run.PeakHour, &run.TroughHour, &run.Reversals)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}

		run.CreatedAt = time.Unix(0, createdNS).UTC()
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// LoadReport returns the full report stored for the given run id.
func (s *Store) LoadReport(ctx context.Context, id int64) (*pipeline.Report, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()

		return nil, ErrStoreClosed
	}
	s.mu.RUnlock()

	var (
		blob   []byte
		rawLen int
	)

	err := s.selectReport.QueryRowContext(ctx, id).Scan(&blob, &rawLen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrRunNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}

	raw, err := decompressBlob(blob, rawLen)
	if err != nil {
		return nil, err
	}

	var report pipeline.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}

	return &report, nil
}

// Close closes the prepared statements and the database. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	for _, stmt := range []*sql.Stmt{s.insertRun, s.selectRecent, s.selectReport} {
		if stmt != nil {
			stmt.Close()
		}
	}

	return s.db.Close()
}
