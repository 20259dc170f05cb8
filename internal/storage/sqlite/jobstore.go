package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tradepop/datalake/internal/common"
	"github.com/tradepop/datalake/internal/interfaces"
	"github.com/tradepop/datalake/internal/models"
)

// JobStore is the durable job-record table.
type JobStore struct {
	db     *sql.DB
	logger *common.Logger
}

var _ interfaces.JobStore = (*JobStore)(nil)

const jobColumns = `id, created_at, started_at, finished_at, state,
	requested_start, requested_end, universe_symbols_considered,
	symbols_attempted, symbols_succeeded, symbols_failed, last_error`

// Create inserts a fresh running job and returns its id. Ids are 32-hex
// with dashes stripped.
func (s *JobStore) Create(ctx context.Context, requestedStart, requestedEnd string, universeSymbolsConsidered int) (string, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	now := formatTime(time.Now())

	_, err := s.db.ExecContext(ctx, `INSERT INTO ingest_jobs
		(id, created_at, started_at, state, requested_start, requested_end,
		 universe_symbols_considered, symbols_attempted, symbols_succeeded, symbols_failed)
		VALUES (?, ?, ?, 'running', ?, ?, ?, 0, 0, 0)`,
		id, now, now, requestedStart, requestedEnd, universeSymbolsConsidered)
	if err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info().
		Str("job_id", id).
		Str("requested_start", requestedStart).
		Str("requested_end", requestedEnd).
		Int("universe_symbols", universeSymbolsConsidered).
		Msg("Created ingest job")
	return id, nil
}

// UpdateProgress writes counters and state without touching finished_at.
func (s *JobStore) UpdateProgress(ctx context.Context, jobID, state string, attempted, succeeded, failed int, lastError string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE ingest_jobs
		SET state = ?, symbols_attempted = ?, symbols_succeeded = ?, symbols_failed = ?,
		    last_error = NULLIF(?, '')
		WHERE id = ?`,
		state, attempted, succeeded, failed, truncateError(lastError), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s not found", jobID)
	}
	return nil
}

// Finalize writes the terminal counters, setting finished_at only when
// the state is terminal. Called with state running it degrades to a
// progress update.
func (s *JobStore) Finalize(ctx context.Context, jobID, state string, attempted, succeeded, failed int, lastError string) error {
	if state == models.JobStateRunning {
		return s.UpdateProgress(ctx, jobID, state, attempted, succeeded, failed, lastError)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE ingest_jobs
		SET state = ?, symbols_attempted = ?, symbols_succeeded = ?, symbols_failed = ?,
		    last_error = NULLIF(?, ''), finished_at = ?
		WHERE id = ?`,
		state, attempted, succeeded, failed, truncateError(lastError),
		formatTime(time.Now()), jobID)
	if err != nil {
		return fmt.Errorf("failed to finalize job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s not found", jobID)
	}

	s.logger.Info().
		Str("job_id", jobID).
		Str("state", state).
		Int("attempted", attempted).
		Int("succeeded", succeeded).
		Int("failed", failed).
		Msg("Finalized ingest job")
	return nil
}

// Get returns the job or nil when the id is unknown.
func (s *JobStore) Get(ctx context.Context, jobID string) (*models.IngestJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM ingest_jobs WHERE id = ?`, jobID)
	return scanJob(row)
}

// GetLatest returns the most recently created job, or nil when no jobs
// exist.
func (s *JobStore) GetLatest(ctx context.Context) (*models.IngestJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM ingest_jobs
		ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	return scanJob(row)
}

func scanJob(row *sql.Row) (*models.IngestJob, error) {
	job := &models.IngestJob{}
	var createdAt, startedAt string
	var finishedAt, lastError sql.NullString
	err := row.Scan(
		&job.ID, &createdAt, &startedAt, &finishedAt, &job.State,
		&job.RequestedStart, &job.RequestedEnd, &job.UniverseSymbolsConsidered,
		&job.SymbolsAttempted, &job.SymbolsSucceeded, &job.SymbolsFailed,
		&lastError)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job row: %w", err)
	}

	job.CreatedAt = parseTime(createdAt)
	job.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		job.FinishedAt = &t
	}
	if lastError.Valid {
		job.LastError = lastError.String
	}
	return job, nil
}

func truncateError(msg string) string {
	if len(msg) > maxErrorLen {
		return msg[:maxErrorLen]
	}
	return msg
}
