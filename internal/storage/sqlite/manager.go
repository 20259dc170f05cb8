// Package sqlite implements all datalake stores on a single embedded
// database file. Writers use short-lived transactions so readers are
// never locked out for long; the worker is the only writer for its own
// job id.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tradepop/datalake/internal/common"
	"github.com/tradepop/datalake/internal/interfaces"
)

// Manager owns the database handle and hands out the stores.
type Manager struct {
	db     *sql.DB
	path   string
	logger *common.Logger

	barStore      *BarStore
	universeStore *UniverseStore
	queueStore    *QueueStore
	jobStore      *JobStore
}

var _ interfaces.StorageManager = (*Manager)(nil)

// NewManager opens (creating if needed) the database file at path and
// runs schema migration.
func NewManager(path string, logger *common.Logger) (*Manager, error) {
	if logger == nil {
		logger = common.NewDefaultLogger()
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// A single writer at a time keeps SQLITE_BUSY out of the worker loop.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", path, err)
	}

	m := &Manager{
		db:     db,
		path:   path,
		logger: logger,
	}

	if err := m.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	m.barStore = &BarStore{db: db, logger: logger}
	m.universeStore = &UniverseStore{db: db, logger: logger}
	m.queueStore = &QueueStore{db: db, logger: logger}
	m.jobStore = &JobStore{db: db, logger: logger}

	logger.Info().Str("path", path).Msg("Storage opened")
	return m, nil
}

// migrate creates the schema if it does not exist.
func (m *Manager) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS daily_bars (
			symbol      TEXT NOT NULL,
			trade_date  TEXT NOT NULL,
			open        REAL NOT NULL,
			high        REAL NOT NULL,
			low         REAL NOT NULL,
			close       REAL NOT NULL,
			volume      INTEGER NOT NULL,
			vwap        REAL,
			turnover    REAL,
			change_pct  REAL,
			adj_open    REAL,
			adj_high    REAL,
			adj_low     REAL,
			adj_close   REAL,
			PRIMARY KEY (symbol, trade_date)
		)`,
		`CREATE TABLE IF NOT EXISTS daily_bars_archive (
			symbol      TEXT NOT NULL,
			trade_date  TEXT NOT NULL,
			open        REAL NOT NULL,
			high        REAL NOT NULL,
			low         REAL NOT NULL,
			close       REAL NOT NULL,
			volume      INTEGER NOT NULL,
			vwap        REAL,
			turnover    REAL,
			change_pct  REAL,
			adj_open    REAL,
			adj_high    REAL,
			adj_low     REAL,
			adj_close   REAL,
			PRIMARY KEY (symbol, trade_date)
		)`,
		`CREATE TABLE IF NOT EXISTS symbol_universe (
			symbol              TEXT PRIMARY KEY,
			name                TEXT,
			exchange            TEXT,
			sector              TEXT,
			industry            TEXT,
			market_cap          REAL,
			price               REAL,
			is_etf              INTEGER,
			is_fund             INTEGER,
			is_actively_trading INTEGER,
			updated_at          TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ingest_jobs (
			id                          TEXT PRIMARY KEY,
			created_at                  TEXT NOT NULL,
			started_at                  TEXT NOT NULL,
			finished_at                 TEXT,
			state                       TEXT NOT NULL,
			requested_start             TEXT NOT NULL,
			requested_end               TEXT NOT NULL,
			universe_symbols_considered INTEGER NOT NULL DEFAULT 0,
			symbols_attempted           INTEGER NOT NULL DEFAULT 0,
			symbols_succeeded           INTEGER NOT NULL DEFAULT 0,
			symbols_failed              INTEGER NOT NULL DEFAULT 0,
			last_error                  TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS ingest_queue (
			job_id          TEXT NOT NULL,
			symbol          TEXT NOT NULL,
			window_start    TEXT NOT NULL,
			window_end      TEXT NOT NULL,
			state           TEXT NOT NULL DEFAULT 'pending',
			attempts        INTEGER NOT NULL DEFAULT 0,
			created_at      TEXT NOT NULL,
			last_attempt_at TEXT,
			last_error      TEXT,
			PRIMARY KEY (job_id, symbol, window_start, window_end)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ingest_queue_job_state ON ingest_queue (job_id, state)`,
		`CREATE INDEX IF NOT EXISTS idx_ingest_jobs_created ON ingest_jobs (created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_universe_market_cap ON symbol_universe (market_cap)`,
	}

	for _, stmt := range statements {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

// BarStore returns the daily-bar store.
func (m *Manager) BarStore() interfaces.BarStore { return m.barStore }

// UniverseStore returns the symbol-universe store.
func (m *Manager) UniverseStore() interfaces.UniverseStore { return m.universeStore }

// QueueStore returns the ingest work-item store.
func (m *Manager) QueueStore() interfaces.QueueStore { return m.queueStore }

// JobStore returns the ingest job-record store.
func (m *Manager) JobStore() interfaces.JobStore { return m.jobStore }

// DBPath returns the database file path.
func (m *Manager) DBPath() string { return m.path }

// Close closes the database handle.
func (m *Manager) Close() error {
	return m.db.Close()
}

// Timestamps are stored as RFC3339 in UTC: fixed width, so they sort
// correctly as text.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
