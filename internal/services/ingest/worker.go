package ingest

import (
	"context"
	"time"

	"github.com/tradepop/datalake/internal/models"
)

// runWorker executes the drain loop for one job: crash recovery,
// counter reconciliation, item execution, finalization, and optional
// best-effort archival. Store failures abort the loop; the job stays
// running and resumable.
func (s *Service) runWorker(ctx context.Context, jobID string, archiveOnFinish bool, archiveKeepDays int) {
	queue := s.storage.QueueStore()
	jobs := s.storage.JobStore()
	logger := s.logger.With().Str("job_id", jobID).Logger()

	// 1. Crash recovery: reclaim items orphaned in running by a prior
	// process kill.
	if _, err := queue.ResetStaleRunning(ctx, jobID, s.opts.StaleThreshold); err != nil {
		logger.Error().Err(err).Msg("Failed to reset stale items; worker exiting")
		return
	}

	// 2. Reconciliation: job counters restart from queue truth, so lost
	// progress writes never skew them.
	counts, err := queue.Counts(ctx, jobID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read queue counts; worker exiting")
		return
	}
	succeeded := counts.Succeeded
	failed := counts.Failed
	if err := jobs.UpdateProgress(ctx, jobID, models.JobStateRunning,
		succeeded+failed, succeeded, failed, ""); err != nil {
		logger.Error().Err(err).Msg("Failed to reconcile job counters; worker exiting")
		return
	}

	// 3. Drain.
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Worker cancelled; job left resumable")
			s.pauseJob(jobID, succeeded, failed)
			return
		default:
		}

		item, err := queue.ClaimNext(ctx, jobID, s.opts.MaxAttempts)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info().Msg("Worker cancelled; job left resumable")
				s.pauseJob(jobID, succeeded, failed)
				return
			}
			logger.Error().Err(err).Msg("Failed to claim next item; worker exiting")
			return
		}
		if item == nil {
			break
		}

		if execErr := s.executeItem(ctx, item); execErr != nil {
			if ctx.Err() != nil {
				// Cancelled mid-fetch. The claimed item stays running and
				// the stale reset reclaims it on resume; the interruption
				// is not a vendor failure.
				logger.Info().Msg("Worker cancelled; job left resumable")
				s.pauseJob(jobID, succeeded, failed)
				return
			}
			if err := queue.MarkFailed(ctx, jobID, item.Symbol,
				item.WindowStart, item.WindowEnd, execErr.Error()); err != nil {
				logger.Error().Err(err).Msg("Failed to mark item failed; worker exiting")
				return
			}
			failed++
			logger.Warn().
				Str("symbol", item.Symbol).
				Str("window_start", item.WindowStart).
				Str("window_end", item.WindowEnd).
				Int("attempt", item.Attempts).
				Err(execErr).
				Msg("Item failed")
		} else {
			if err := queue.MarkSucceeded(ctx, jobID, item.Symbol,
				item.WindowStart, item.WindowEnd); err != nil {
				logger.Error().Err(err).Msg("Failed to mark item succeeded; worker exiting")
				return
			}
			succeeded++
		}

		if err := jobs.UpdateProgress(ctx, jobID, models.JobStateRunning,
			succeeded+failed, succeeded, failed, ""); err != nil {
			logger.Error().Err(err).Msg("Failed to update job progress; worker exiting")
			return
		}
	}

	// 4. Finalization from queue truth.
	counts, err = queue.Counts(ctx, jobID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read final counts; worker exiting")
		return
	}
	if counts.Pending > 0 || counts.Running > 0 {
		// Items remain but none are eligible: shutting down, or a
		// concurrent writer. Leave the job resumable.
		s.pauseJob(jobID, counts.Succeeded, counts.Failed)
		return
	}

	state := models.JobStateSucceeded
	lastError := ""
	if counts.Failed > 0 {
		state = models.JobStateFailed
		lastError = "one or more items exhausted retries"
	}
	if err := jobs.Finalize(ctx, jobID, state,
		counts.Succeeded+counts.Failed, counts.Succeeded, counts.Failed, lastError); err != nil {
		logger.Error().Err(err).Msg("Failed to finalize job")
		return
	}

	logger.Info().
		Str("state", state).
		Int("succeeded", counts.Succeeded).
		Int("failed", counts.Failed).
		Msg("Ingest job finished")

	// 5. Best-effort archive; errors are logged and swallowed.
	if archiveOnFinish && archiveKeepDays >= s.opts.MinArchiveKeepDays {
		cutoff := time.Now().UTC().AddDate(0, 0, -archiveKeepDays).Format(dateLayout)
		if _, err := s.storage.BarStore().ArchiveBefore(ctx, cutoff); err != nil {
			logger.Warn().Err(err).Str("cutoff", cutoff).Msg("Post-ingest archive failed")
		}
	}
}

// executeItem fetches one (symbol, window) and writes the bars through
// to the bar store. Any failure is an item failure, never fatal to the
// job.
func (s *Service) executeItem(ctx context.Context, item *models.QueueItem) error {
	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.VendorTimeout)
	defer cancel()

	start := time.Now()
	bars, err := s.fetcher.Fetch(fetchCtx, item.Symbol, item.WindowStart, item.WindowEnd)
	if err != nil {
		return err
	}

	written, err := s.storage.BarStore().Upsert(ctx, item.Symbol, bars)
	if err != nil {
		return err
	}

	s.logger.Debug().
		Str("job_id", item.JobID).
		Str("symbol", item.Symbol).
		Str("window_start", item.WindowStart).
		Str("window_end", item.WindowEnd).
		Int("bars", written).
		Dur("duration", time.Since(start)).
		Msg("Ingested window")
	return nil
}

// pauseJob records that the worker exited with work left. Uses a fresh
// context: the worker's own context may already be cancelled.
func (s *Service) pauseJob(jobID string, succeeded, failed int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.storage.JobStore().UpdateProgress(ctx, jobID, models.JobStateRunning,
		succeeded+failed, succeeded, failed, "paused with remaining items"); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to record pause")
	}
}
