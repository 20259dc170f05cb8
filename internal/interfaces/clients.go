package interfaces

import (
	"context"

	"github.com/tradepop/datalake/internal/models"
)

// BarFetcher retrieves end-of-day OHLCV bars from the vendor API.
// Fetch must be idempotent across retries; an empty result is legal
// (holiday or weekend windows).
type BarFetcher interface {
	Fetch(ctx context.Context, symbol, start, end string) ([]models.DailyBar, error)
}

// SymbolScreener retrieves the tradable-symbol universe from the
// remote company screener.
type SymbolScreener interface {
	Screen(ctx context.Context, filter models.UniverseFilter) ([]models.UniverseSymbol, error)
}
