package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradepop/datalake/internal/models"
)

func TestJobStore_CreateAndGet(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	store := m.JobStore()

	id, err := store.Create(ctx, "2024-01-01", "2024-06-30", 42)
	require.NoError(t, err)
	assert.Len(t, id, 32, "32-hex id, dashes stripped")

	job, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, models.JobStateRunning, job.State)
	assert.Equal(t, "2024-01-01", job.RequestedStart)
	assert.Equal(t, "2024-06-30", job.RequestedEnd)
	assert.Equal(t, 42, job.UniverseSymbolsConsidered)
	assert.Zero(t, job.SymbolsAttempted)
	assert.Nil(t, job.FinishedAt)
	assert.False(t, job.CreatedAt.IsZero())
}

func TestJobStore_GetUnknownReturnsNil(t *testing.T) {
	m := newTestManager(t)
	job, err := m.JobStore().Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestJobStore_UpdateProgressNeverSetsFinishedAt(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	store := m.JobStore()

	id, err := store.Create(ctx, "2024-01-01", "2024-06-30", 2)
	require.NoError(t, err)

	err = store.UpdateProgress(ctx, id, models.JobStateRunning, 3, 2, 1, "")
	require.NoError(t, err)

	job, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, job.SymbolsAttempted)
	assert.Equal(t, 2, job.SymbolsSucceeded)
	assert.Equal(t, 1, job.SymbolsFailed)
	assert.Nil(t, job.FinishedAt)
}

func TestJobStore_FinalizeSetsFinishedAt(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	store := m.JobStore()

	id, err := store.Create(ctx, "2024-01-01", "2024-06-30", 2)
	require.NoError(t, err)

	err = store.Finalize(ctx, id, models.JobStateSucceeded, 6, 6, 0, "")
	require.NoError(t, err)

	job, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateSucceeded, job.State)
	require.NotNil(t, job.FinishedAt)
	assert.Equal(t, job.SymbolsAttempted, job.SymbolsSucceeded+job.SymbolsFailed)
}

func TestJobStore_FinalizeRunningBehavesAsProgress(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	store := m.JobStore()

	id, err := store.Create(ctx, "2024-01-01", "2024-06-30", 2)
	require.NoError(t, err)

	err = store.Finalize(ctx, id, models.JobStateRunning, 1, 1, 0, "paused with remaining items")
	require.NoError(t, err)

	job, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateRunning, job.State)
	assert.Nil(t, job.FinishedAt)
	assert.Equal(t, "paused with remaining items", job.LastError)
}

func TestJobStore_UpdateUnknownJob(t *testing.T) {
	m := newTestManager(t)
	err := m.JobStore().UpdateProgress(context.Background(), "nope", models.JobStateRunning, 0, 0, 0, "")
	assert.Error(t, err)
}

func TestJobStore_GetLatest(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	store := m.JobStore()

	latest, err := store.GetLatest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	_, err = store.Create(ctx, "2024-01-01", "2024-03-31", 1)
	require.NoError(t, err)
	second, err := store.Create(ctx, "2024-04-01", "2024-06-30", 1)
	require.NoError(t, err)

	latest, err = store.GetLatest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second, latest.ID)
}
