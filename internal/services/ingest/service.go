// Package ingest implements the resumable bulk-ingest scheduler: it
// expands an ingest request into durable (symbol, window) queue items
// and drains them with one background worker per job.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tradepop/datalake/internal/common"
	"github.com/tradepop/datalake/internal/interfaces"
	"github.com/tradepop/datalake/internal/models"
)

// Input errors, surfaced synchronously before any job is created.
var (
	ErrBadRange        = errors.New("requested start is after requested end")
	ErrBadWindow       = errors.New("window days must be at least 1")
	ErrBadInput        = errors.New("invalid input")
	ErrNoUniverseMatch = errors.New("no universe symbols match the filter")
	ErrJobNotFound     = errors.New("job not found")
)

// Options are the scheduler knobs, sourced from config.
type Options struct {
	MaxAttempts        int
	StaleThreshold     time.Duration
	DefaultWindowDays  int
	MinArchiveKeepDays int
	VendorTimeout      time.Duration
}

// Service owns the job/queue subsystem and the worker registry.
type Service struct {
	storage interfaces.StorageManager
	fetcher interfaces.BarFetcher
	logger  *common.Logger
	opts    Options

	// rootCtx parents every worker; Stop cancels it.
	rootCtx    context.Context
	cancelRoot context.CancelFunc
	wg         sync.WaitGroup

	mu      sync.Mutex
	running map[string]bool // job ids with a live worker
}

var _ interfaces.IngestService = (*Service)(nil)

// NewService creates the ingest service.
func NewService(storage interfaces.StorageManager, fetcher interfaces.BarFetcher, logger *common.Logger, opts Options) *Service {
	if logger == nil {
		logger = common.NewDefaultLogger()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.StaleThreshold <= 0 {
		opts.StaleThreshold = 10 * time.Minute
	}
	if opts.DefaultWindowDays <= 0 {
		opts.DefaultWindowDays = 365
	}
	if opts.MinArchiveKeepDays <= 0 {
		opts.MinArchiveKeepDays = 30
	}
	if opts.VendorTimeout <= 0 {
		opts.VendorTimeout = 20 * time.Second
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	return &Service{
		storage:    storage,
		fetcher:    fetcher,
		logger:     logger,
		opts:       opts,
		rootCtx:    rootCtx,
		cancelRoot: cancel,
		running:    map[string]bool{},
	}
}

// Start validates the request, creates the job, enqueues the
// (symbol x window) product, and schedules the worker. It returns once
// the worker is scheduled, never waiting for completion.
func (s *Service) Start(ctx context.Context, req models.IngestRequest) (*models.StartResult, error) {
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	if startDate.After(endDate) {
		return nil, ErrBadRange
	}

	windowDays := req.WindowDays
	if windowDays == 0 {
		windowDays = s.opts.DefaultWindowDays
	}
	if windowDays < 1 {
		return nil, ErrBadWindow
	}

	if req.ArchiveOnFinish && req.ArchiveKeepDays < s.opts.MinArchiveKeepDays {
		return nil, fmt.Errorf("%w: archive_keep_days must be >= %d", ErrBadInput, s.opts.MinArchiveKeepDays)
	}

	symbols, err := s.storage.UniverseStore().SelectSymbols(ctx, req.Universe)
	if err != nil {
		return nil, fmt.Errorf("failed to select universe: %w", err)
	}
	if len(symbols) == 0 {
		return nil, ErrNoUniverseMatch
	}

	windows, err := partitionWindows(req.StartDate, req.EndDate, windowDays)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
	}

	jobID, err := s.storage.JobStore().Create(ctx, req.StartDate, req.EndDate, len(symbols))
	if err != nil {
		return nil, err
	}

	items := make([]models.QueueItem, 0, len(symbols)*len(windows))
	for _, symbol := range symbols {
		for _, w := range windows {
			items = append(items, models.QueueItem{
				Symbol:      symbol,
				WindowStart: w.Start,
				WindowEnd:   w.End,
			})
		}
	}
	queued, err := s.storage.QueueStore().Enqueue(ctx, jobID, items)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("job_id", jobID).
		Int("symbols", len(symbols)).
		Int("windows", len(windows)).
		Int("queued_items", queued).
		Msg("Scheduled ingest job")

	s.launchWorker(jobID, req.ArchiveOnFinish, req.ArchiveKeepDays)

	return &models.StartResult{
		JobID:          jobID,
		RequestedStart: req.StartDate,
		RequestedEnd:   req.EndDate,
		WindowDays:     windowDays,
		QueuedItems:    queued,
	}, nil
}

// Resume re-launches the worker for an existing job. Safe to call on a
// completed job: the worker pops nothing and the terminal state stands.
func (s *Service) Resume(ctx context.Context, jobID string) error {
	job, err := s.storage.JobStore().Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return ErrJobNotFound
	}

	s.launchWorker(jobID, false, 0)
	return nil
}

// Progress returns queue-truth counts plus the job state.
func (s *Service) Progress(ctx context.Context, jobID string) (*models.JobProgress, error) {
	job, err := s.storage.JobStore().Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}

	counts, err := s.storage.QueueStore().Counts(ctx, jobID)
	if err != nil {
		return nil, err
	}

	total := counts.Total
	if total < 1 {
		total = 1
	}
	return &models.JobProgress{
		JobID:       jobID,
		State:       job.State,
		Counts:      *counts,
		PctComplete: float64(counts.Succeeded+counts.Failed) / float64(total) * 100,
		LastError:   job.LastError,
	}, nil
}

// LatestJob returns the most recently created job record.
func (s *Service) LatestJob(ctx context.Context) (*models.IngestJob, error) {
	job, err := s.storage.JobStore().GetLatest(ctx)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Archive moves bars older than today minus keepDays into the archive
// table.
func (s *Service) Archive(ctx context.Context, keepDays int) (*models.ArchiveResult, error) {
	if keepDays < s.opts.MinArchiveKeepDays {
		return nil, fmt.Errorf("%w: keep_days must be >= %d", ErrBadInput, s.opts.MinArchiveKeepDays)
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -keepDays).Format(dateLayout)
	return s.storage.BarStore().ArchiveBefore(ctx, cutoff)
}

// Stop cancels all workers and waits for them to exit. Jobs stay
// running in the store and are resumable.
func (s *Service) Stop() {
	s.cancelRoot()
	s.wg.Wait()
}

// launchWorker starts the worker goroutine for jobID unless one is
// already live. At most one worker per job id.
func (s *Service) launchWorker(jobID string, archiveOnFinish bool, archiveKeepDays int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[jobID] {
		s.logger.Debug().Str("job_id", jobID).Msg("Worker already running")
		return
	}
	s.running[jobID] = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, jobID)
			s.mu.Unlock()
		}()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().
					Str("job_id", jobID).
					Interface("panic", r).
					Msg("Worker panicked; job left resumable")
			}
		}()

		s.runWorker(s.rootCtx, jobID, archiveOnFinish, archiveKeepDays)
	}()
}
