package interfaces

import (
	"context"

	"github.com/tradepop/datalake/internal/models"
)

// IngestService is the resumable bulk-ingest scheduler.
type IngestService interface {
	// Start validates the request, expands it into queue items, creates
	// the job, and schedules the background worker. It returns as soon as
	// the worker is scheduled.
	Start(ctx context.Context, req models.IngestRequest) (*models.StartResult, error)

	// Resume re-launches the worker loop for an existing job id.
	// Idempotent: completed jobs pop nothing and stay terminal.
	Resume(ctx context.Context, jobID string) error

	// Progress returns queue-truth counts plus the job state.
	Progress(ctx context.Context, jobID string) (*models.JobProgress, error)

	// LatestJob returns the most recently created job record.
	LatestJob(ctx context.Context) (*models.IngestJob, error)

	// Archive moves bars older than today minus keepDays into the
	// archive table.
	Archive(ctx context.Context, keepDays int) (*models.ArchiveResult, error)

	// Stop cancels all running workers and waits for them to exit.
	Stop()
}

// UniverseService maintains and reads the symbol universe.
type UniverseService interface {
	// Refresh pulls the screener and wholesale-upserts the universe
	// table. Returns symbols received and rows upserted.
	Refresh(ctx context.Context, filter models.UniverseFilter) (received int, upserted int, err error)

	Stats(ctx context.Context) (*models.UniverseStats, error)
	Browse(ctx context.Context, page, pageSize int, sortBy, sortDir string) (*models.UniversePage, error)
}

// ChartService renders price charts from stored bars.
type ChartService interface {
	// ClosePNG renders a close-price line chart for the symbol over
	// [start, end] and returns the encoded PNG.
	ClosePNG(ctx context.Context, symbol, start, end string) ([]byte, error)
}
