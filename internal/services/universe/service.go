// Package universe maintains the tradable-symbol universe: screener
// refresh plus the stats and browse read paths.
package universe

import (
	"context"
	"fmt"

	"github.com/tradepop/datalake/internal/common"
	"github.com/tradepop/datalake/internal/interfaces"
	"github.com/tradepop/datalake/internal/models"
)

// Service wires the screener client to the universe store.
type Service struct {
	storage  interfaces.StorageManager
	screener interfaces.SymbolScreener
	logger   *common.Logger
}

var _ interfaces.UniverseService = (*Service)(nil)

// NewService creates the universe service.
func NewService(storage interfaces.StorageManager, screener interfaces.SymbolScreener, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewDefaultLogger()
	}
	return &Service{storage: storage, screener: screener, logger: logger}
}

// Refresh pulls the company screener and wholesale-upserts the universe
// table.
func (s *Service) Refresh(ctx context.Context, filter models.UniverseFilter) (int, int, error) {
	symbols, err := s.screener.Screen(ctx, filter)
	if err != nil {
		return 0, 0, fmt.Errorf("screener failed: %w", err)
	}

	upserted, err := s.storage.UniverseStore().ReplaceAll(ctx, symbols)
	if err != nil {
		return len(symbols), 0, err
	}

	s.logger.Info().
		Int("symbols_received", len(symbols)).
		Int("rows_upserted", upserted).
		Msg("Refreshed symbol universe")
	return len(symbols), upserted, nil
}

// Stats aggregates the universe table.
func (s *Service) Stats(ctx context.Context) (*models.UniverseStats, error) {
	return s.storage.UniverseStore().Stats(ctx)
}

// Browse returns one page of the universe.
func (s *Service) Browse(ctx context.Context, page, pageSize int, sortBy, sortDir string) (*models.UniversePage, error) {
	if sortBy == "" {
		sortBy = "symbol"
	}
	return s.storage.UniverseStore().Browse(ctx, page, pageSize, sortBy, sortDir)
}
