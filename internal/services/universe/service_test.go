package universe

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradepop/datalake/internal/common"
	"github.com/tradepop/datalake/internal/models"
	"github.com/tradepop/datalake/internal/storage/sqlite"
)

type mockScreener struct {
	symbols []models.UniverseSymbol
	err     error
}

func (m *mockScreener) Screen(ctx context.Context, filter models.UniverseFilter) ([]models.UniverseSymbol, error) {
	return m.symbols, m.err
}

func newTestService(t *testing.T, screener *mockScreener) *Service {
	t.Helper()
	m, err := sqlite.NewManager(filepath.Join(t.TempDir(), "test.db"), common.NewSilentLogger())
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return NewService(m, screener, common.NewSilentLogger())
}

func TestRefresh(t *testing.T) {
	mc := 1e12
	svc := newTestService(t, &mockScreener{symbols: []models.UniverseSymbol{
		{Symbol: "AAPL", Name: "Apple", Exchange: "NASDAQ", MarketCap: &mc, IsActivelyTrading: true},
		{Symbol: "JPM", Name: "JPMorgan", Exchange: "NYSE", MarketCap: &mc, IsActivelyTrading: true},
	}})

	received, upserted, err := svc.Refresh(context.Background(), models.UniverseFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, received)
	assert.Equal(t, 2, upserted)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
}

func TestRefresh_ScreenerError(t *testing.T) {
	svc := newTestService(t, &mockScreener{err: errors.New("quota exceeded")})

	_, _, err := svc.Refresh(context.Background(), models.UniverseFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestBrowse_DefaultsSortBy(t *testing.T) {
	svc := newTestService(t, &mockScreener{})
	page, err := svc.Browse(context.Background(), 1, 10, "", "asc")
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}
