// Package interfaces defines service contracts for the datalake service.
package interfaces

import (
	"context"
	"time"

	"github.com/tradepop/datalake/internal/models"
)

// StorageManager coordinates all stores over the single embedded database file.
type StorageManager interface {
	BarStore() BarStore
	UniverseStore() UniverseStore
	QueueStore() QueueStore
	JobStore() JobStore

	// DBPath returns the path of the database file on disk.
	DBPath() string

	Close() error
}

// BarStore persists daily OHLCV bars with upsert-on-primary-key semantics
// plus the archive tier.
type BarStore interface {
	// Upsert atomically writes a batch of bars, replacing any existing
	// row with the same (symbol, trade_date). Returns the count written.
	// Empty input is a no-op.
	Upsert(ctx context.Context, symbol string, bars []models.DailyBar) (int, error)

	// ReadRange returns bars for symbol with trade_date in [start, end],
	// ascending by date. The result may be empty.
	ReadRange(ctx context.Context, symbol, start, end string) ([]models.DailyBar, error)

	// ArchiveBefore copies rows with trade_date < cutoff into the archive
	// table and deletes them from the live table, in one transaction.
	// Idempotent across re-runs.
	ArchiveBefore(ctx context.Context, cutoff string) (*models.ArchiveResult, error)
}

// UniverseStore holds the tradable-symbol universe.
type UniverseStore interface {
	// SelectSymbols returns up to filter.MaxSymbols symbols matching the
	// filter, ordered market-cap descending then symbol ascending. Funds
	// are always excluded.
	SelectSymbols(ctx context.Context, filter models.UniverseFilter) ([]string, error)

	// ReplaceAll wholesale-upserts the given symbols. Returns rows upserted.
	ReplaceAll(ctx context.Context, symbols []models.UniverseSymbol) (int, error)

	// Stats aggregates the table for the stats endpoint.
	Stats(ctx context.Context) (*models.UniverseStats, error)

	// Browse returns one page of the universe, sortable by
	// symbol | market_cap | exchange.
	Browse(ctx context.Context, page, pageSize int, sortBy, sortDir string) (*models.UniversePage, error)
}

// QueueStore is the durable work-item table and its state machine.
type QueueStore interface {
	// Enqueue bulk-inserts items in pending state, ignoring primary-key
	// duplicates. Returns the count of rows actually inserted.
	Enqueue(ctx context.Context, jobID string, items []models.QueueItem) (int, error)

	// ClaimNext transactionally picks one eligible row (pending or failed
	// with attempts < maxAttempts; pending first, then attempts ascending,
	// then symbol ascending), marks it running, increments attempts, and
	// stamps last_attempt_at. Returns nil when the job's queue is drained
	// of eligible items.
	ClaimNext(ctx context.Context, jobID string, maxAttempts int) (*models.QueueItem, error)

	MarkSucceeded(ctx context.Context, jobID, symbol, windowStart, windowEnd string) error
	MarkFailed(ctx context.Context, jobID, symbol, windowStart, windowEnd, errMsg string) error

	// ResetStaleRunning flips running rows whose last_attempt_at is null
	// or older than threshold back to pending. Returns rows reset.
	ResetStaleRunning(ctx context.Context, jobID string, threshold time.Duration) (int, error)

	// Counts aggregates the job's items by state.
	Counts(ctx context.Context, jobID string) (*models.QueueCounts, error)
}

// JobStore is the durable job-record table.
type JobStore interface {
	// Create inserts a fresh running job and returns its id.
	Create(ctx context.Context, requestedStart, requestedEnd string, universeSymbolsConsidered int) (string, error)

	// UpdateProgress partially updates counters and state. It never
	// touches finished_at.
	UpdateProgress(ctx context.Context, jobID, state string, attempted, succeeded, failed int, lastError string) error

	// Finalize writes the terminal state and counters, setting
	// finished_at when state is terminal.
	Finalize(ctx context.Context, jobID, state string, attempted, succeeded, failed int, lastError string) error

	Get(ctx context.Context, jobID string) (*models.IngestJob, error)
	GetLatest(ctx context.Context) (*models.IngestJob, error)
}
