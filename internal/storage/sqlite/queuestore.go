package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tradepop/datalake/internal/common"
	"github.com/tradepop/datalake/internal/interfaces"
	"github.com/tradepop/datalake/internal/models"
)

// maxErrorLen caps the stored last_error message.
const maxErrorLen = 500

// QueueStore is the durable work-item table backing the ingest worker.
type QueueStore struct {
	db     *sql.DB
	logger *common.Logger
}

var _ interfaces.QueueStore = (*QueueStore)(nil)

// Enqueue bulk-inserts items in pending state. Duplicate primary keys
// are ignored, so re-enqueueing the same items reports 0 new rows.
func (s *QueueStore) Enqueue(ctx context.Context, jobID string, items []models.QueueItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin enqueue: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO ingest_queue
		(job_id, symbol, window_start, window_end, state, attempts, created_at)
		VALUES (?, ?, ?, ?, 'pending', 0, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare enqueue: %w", err)
	}
	defer stmt.Close()

	now := formatTime(time.Now())
	inserted := 0
	for _, item := range items {
		res, err := stmt.ExecContext(ctx, jobID,
			strings.ToUpper(strings.TrimSpace(item.Symbol)),
			item.WindowStart, item.WindowEnd, now)
		if err != nil {
			return 0, fmt.Errorf("failed to enqueue item %s [%s..%s]: %w",
				item.Symbol, item.WindowStart, item.WindowEnd, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit enqueue: %w", err)
	}
	return inserted, nil
}

// ClaimNext picks one eligible item and atomically marks it running.
// Eligible: pending or failed with attempts below the cap. Ordering is
// part of the contract: pending before failed, then attempts ascending,
// then symbol ascending, then window start. The select and update share
// one transaction so a second worker could not claim the same row.
func (s *QueueStore) ClaimNext(ctx context.Context, jobID string, maxAttempts int) (*models.QueueItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim: %w", err)
	}
	defer tx.Rollback()

	item := &models.QueueItem{}
	var createdAt string
	err = tx.QueryRowContext(ctx, `SELECT job_id, symbol, window_start, window_end, attempts, created_at
		FROM ingest_queue
		WHERE job_id = ? AND state IN ('pending', 'failed') AND attempts < ?
		ORDER BY CASE state WHEN 'pending' THEN 0 ELSE 1 END, attempts ASC, symbol ASC, window_start ASC
		LIMIT 1`, jobID, maxAttempts).Scan(
		&item.JobID, &item.Symbol, &item.WindowStart, &item.WindowEnd,
		&item.Attempts, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select next item: %w", err)
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `UPDATE ingest_queue
		SET state = 'running', attempts = attempts + 1, last_attempt_at = ?, last_error = NULL
		WHERE job_id = ? AND symbol = ? AND window_start = ? AND window_end = ?`,
		formatTime(now), item.JobID, item.Symbol, item.WindowStart, item.WindowEnd); err != nil {
		return nil, fmt.Errorf("failed to claim item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	item.State = models.ItemStateRunning
	item.Attempts++
	item.CreatedAt = parseTime(createdAt)
	attemptAt := now.UTC()
	item.LastAttemptAt = &attemptAt
	return item, nil
}

// MarkSucceeded moves the item to succeeded and clears last_error.
func (s *QueueStore) MarkSucceeded(ctx context.Context, jobID, symbol, windowStart, windowEnd string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE ingest_queue
		SET state = 'succeeded', last_error = NULL
		WHERE job_id = ? AND symbol = ? AND window_start = ? AND window_end = ?`,
		jobID, symbol, windowStart, windowEnd)
	if err != nil {
		return fmt.Errorf("failed to mark item succeeded: %w", err)
	}
	return nil
}

// MarkFailed moves the item to failed and records the error, truncated
// to the storage cap.
func (s *QueueStore) MarkFailed(ctx context.Context, jobID, symbol, windowStart, windowEnd, errMsg string) error {
	if len(errMsg) > maxErrorLen {
		errMsg = errMsg[:maxErrorLen]
	}
	_, err := s.db.ExecContext(ctx, `UPDATE ingest_queue
		SET state = 'failed', last_error = ?
		WHERE job_id = ? AND symbol = ? AND window_start = ? AND window_end = ?`,
		errMsg, jobID, symbol, windowStart, windowEnd)
	if err != nil {
		return fmt.Errorf("failed to mark item failed: %w", err)
	}
	return nil
}

// ResetStaleRunning reclaims items orphaned by a crash: running rows
// whose last_attempt_at is null or older than threshold go back to
// pending. Attempt counts are kept.
func (s *QueueStore) ResetStaleRunning(ctx context.Context, jobID string, threshold time.Duration) (int, error) {
	cutoff := formatTime(time.Now().Add(-threshold))
	res, err := s.db.ExecContext(ctx, `UPDATE ingest_queue
		SET state = 'pending'
		WHERE job_id = ? AND state = 'running'
		AND (last_attempt_at IS NULL OR last_attempt_at < ?)`,
		jobID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale running items: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Warn().Str("job_id", jobID).Int64("reset", n).Msg("Reclaimed stale running items")
	}
	return int(n), nil
}

// Counts aggregates the job's items by state.
func (s *QueueStore) Counts(ctx context.Context, jobID string) (*models.QueueCounts, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*)
		FROM ingest_queue WHERE job_id = ? GROUP BY state`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to count queue items: %w", err)
	}
	defer rows.Close()

	counts := &models.QueueCounts{}
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("failed to scan queue counts: %w", err)
		}
		switch state {
		case models.ItemStatePending:
			counts.Pending = n
		case models.ItemStateRunning:
			counts.Running = n
		case models.ItemStateSucceeded:
			counts.Succeeded = n
		case models.ItemStateFailed:
			counts.Failed = n
		}
		counts.Total += n
	}
	return counts, rows.Err()
}
