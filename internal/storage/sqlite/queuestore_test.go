package sqlite

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradepop/datalake/internal/models"
)

func queueItems(pairs ...[2]string) []models.QueueItem {
	items := make([]models.QueueItem, 0, len(pairs))
	for _, p := range pairs {
		items = append(items, models.QueueItem{
			Symbol:      p[0],
			WindowStart: p[1],
			WindowEnd:   p[1],
		})
	}
	return items
}

func TestQueueStore_EnqueueDedup(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	store := m.QueueStore()

	items := queueItems([2]string{"AAPL", "2024-01-01"}, [2]string{"MSFT", "2024-01-01"})
	n, err := store.Enqueue(ctx, "job1", items)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// second enqueue of the same items inserts nothing
	n, err = store.Enqueue(ctx, "job1", items)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	counts, err := store.Counts(ctx, "job1")
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Total)
	assert.Equal(t, 2, counts.Pending)
}

func TestQueueStore_ClaimOrdering(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	store := m.QueueStore()

	_, err := store.Enqueue(ctx, "job1", queueItems(
		[2]string{"ZZZ", "2024-01-01"},
		[2]string{"AAA", "2024-01-01"},
	))
	require.NoError(t, err)

	// fail AAA once; a fresh pending item must beat it on the next claim
	item, err := store.ClaimNext(ctx, "job1", 5)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "AAA", item.Symbol)
	assert.Equal(t, 1, item.Attempts)
	require.NotNil(t, item.LastAttemptAt)

	require.NoError(t, store.MarkFailed(ctx, "job1", "AAA", "2024-01-01", "2024-01-01", "boom"))

	item, err = store.ClaimNext(ctx, "job1", 5)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "ZZZ", item.Symbol, "pending beats failed")

	require.NoError(t, store.MarkSucceeded(ctx, "job1", "ZZZ", "2024-01-01", "2024-01-01"))

	// now the failed item is retried
	item, err = store.ClaimNext(ctx, "job1", 5)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "AAA", item.Symbol)
	assert.Equal(t, 2, item.Attempts)
}

func TestQueueStore_ClaimRespectsAttemptCap(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	store := m.QueueStore()

	_, err := store.Enqueue(ctx, "job1", queueItems([2]string{"X", "2024-01-01"}))
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		item, err := store.ClaimNext(ctx, "job1", 3)
		require.NoError(t, err)
		require.NotNil(t, item)
		assert.Equal(t, i, item.Attempts)
		require.NoError(t, store.MarkFailed(ctx, "job1", "X", "2024-01-01", "2024-01-01", "always fails"))
	}

	item, err := store.ClaimNext(ctx, "job1", 3)
	require.NoError(t, err)
	assert.Nil(t, item, "attempt cap exhausted")

	counts, err := store.Counts(ctx, "job1")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Failed)
}

func TestQueueStore_ClaimScopedToJob(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	store := m.QueueStore()

	_, err := store.Enqueue(ctx, "job1", queueItems([2]string{"AAPL", "2024-01-01"}))
	require.NoError(t, err)

	item, err := store.ClaimNext(ctx, "job2", 5)
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestQueueStore_MarkFailedTruncatesError(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	store := m.QueueStore()

	_, err := store.Enqueue(ctx, "job1", queueItems([2]string{"X", "2024-01-01"}))
	require.NoError(t, err)
	_, err = store.ClaimNext(ctx, "job1", 5)
	require.NoError(t, err)

	long := strings.Repeat("e", 2000)
	require.NoError(t, store.MarkFailed(ctx, "job1", "X", "2024-01-01", "2024-01-01", long))

	var stored string
	err = m.db.QueryRowContext(ctx, `SELECT last_error FROM ingest_queue
		WHERE job_id = 'job1' AND symbol = 'X'`).Scan(&stored)
	require.NoError(t, err)
	assert.Len(t, stored, 500)
}

func TestQueueStore_ResetStaleRunning(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	store := m.QueueStore()

	_, err := store.Enqueue(ctx, "job1", queueItems(
		[2]string{"OLD", "2024-01-01"},
		[2]string{"FRESH", "2024-01-01"},
	))
	require.NoError(t, err)

	// claim both, then age one past the threshold
	for i := 0; i < 2; i++ {
		item, err := store.ClaimNext(ctx, "job1", 5)
		require.NoError(t, err)
		require.NotNil(t, item)
	}
	stale := formatTime(time.Now().Add(-time.Hour))
	_, err = m.db.ExecContext(ctx, `UPDATE ingest_queue SET last_attempt_at = ?
		WHERE job_id = 'job1' AND symbol = 'OLD'`, stale)
	require.NoError(t, err)

	reset, err := store.ResetStaleRunning(ctx, "job1", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, reset)

	counts, err := store.Counts(ctx, "job1")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Pending)
	assert.Equal(t, 1, counts.Running)

	// reclaimed item keeps its attempt count
	item, err := store.ClaimNext(ctx, "job1", 5)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "OLD", item.Symbol)
	assert.Equal(t, 2, item.Attempts)
}

func TestQueueStore_CountsEmpty(t *testing.T) {
	m := newTestManager(t)
	counts, err := m.QueueStore().Counts(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Total)
}
