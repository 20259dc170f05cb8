package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradepop/datalake/internal/models"
)

func testBars(dates ...string) []models.DailyBar {
	bars := make([]models.DailyBar, 0, len(dates))
	for i, d := range dates {
		bars = append(bars, models.DailyBar{
			TradeDate: d,
			Open:      100 + float64(i),
			High:      105 + float64(i),
			Low:       99 + float64(i),
			Close:     102 + float64(i),
			Volume:    1000,
			AdjClose:  floatPtr(101.5 + float64(i)),
		})
	}
	return bars
}

func TestBarStore_UpsertAndReadRange(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	store := m.BarStore()

	n, err := store.Upsert(ctx, "aapl", testBars("2024-01-02", "2024-01-03", "2024-01-04"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	bars, err := store.ReadRange(ctx, "AAPL", "2024-01-02", "2024-01-03")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	// ascending, symbol normalized uppercase
	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.Equal(t, "2024-01-02", bars[0].TradeDate)
	assert.Equal(t, "2024-01-03", bars[1].TradeDate)
	require.NotNil(t, bars[0].AdjClose)
	assert.InDelta(t, 101.5, *bars[0].AdjClose, 1e-9)
	assert.Nil(t, bars[0].VWAP)
}

func TestBarStore_UpsertIdempotent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	store := m.BarStore()

	bars := testBars("2024-01-02", "2024-01-03")
	_, err := store.Upsert(ctx, "MSFT", bars)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, "MSFT", bars)
	require.NoError(t, err)

	got, err := store.ReadRange(ctx, "MSFT", "2024-01-01", "2024-12-31")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestBarStore_UpsertEmptyIsNoop(t *testing.T) {
	m := newTestManager(t)
	n, err := m.BarStore().Upsert(context.Background(), "AAPL", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBarStore_ReadRangeEmpty(t *testing.T) {
	m := newTestManager(t)
	bars, err := m.BarStore().ReadRange(context.Background(), "NOPE", "2024-01-01", "2024-12-31")
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestBarStore_ArchiveRoundTrip(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	store := m.BarStore()

	// 10 days of bars, archive everything before day 6
	var dates []string
	for i := 1; i <= 10; i++ {
		dates = append(dates, fmt.Sprintf("2024-03-%02d", i))
	}
	_, err := store.Upsert(ctx, "AAPL", testBars(dates...))
	require.NoError(t, err)

	result, err := store.ArchiveBefore(ctx, "2024-03-06")
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Archived)
	assert.Equal(t, int64(5), result.DeletedFromLive)
	assert.Equal(t, "2024-03-06", result.CutoffDate)

	live, err := store.ReadRange(ctx, "AAPL", "2024-01-01", "2024-12-31")
	require.NoError(t, err)
	require.Len(t, live, 5)
	assert.Equal(t, "2024-03-06", live[0].TradeDate)

	// re-running with the same cutoff is a no-op
	again, err := store.ArchiveBefore(ctx, "2024-03-06")
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.Archived)
	assert.Equal(t, int64(0), again.DeletedFromLive)
}
