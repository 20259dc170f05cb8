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

// UniverseStore holds the tradable-symbol universe table.
type UniverseStore struct {
	db     *sql.DB
	logger *common.Logger
}

var _ interfaces.UniverseStore = (*UniverseStore)(nil)

// SelectSymbols returns up to filter.MaxSymbols symbols ordered by
// market cap descending, then symbol ascending. Funds are always
// excluded; null flags count as false.
func (s *UniverseStore) SelectSymbols(ctx context.Context, filter models.UniverseFilter) ([]string, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT symbol FROM symbol_universe
		WHERE market_cap IS NOT NULL AND market_cap >= ?
		AND COALESCE(is_fund, 0) = 0`)
	args := []any{filter.MinCap}

	if filter.MaxCap != nil {
		sb.WriteString(` AND market_cap <= ?`)
		args = append(args, *filter.MaxCap)
	}
	if len(filter.Exchanges) > 0 {
		sb.WriteString(` AND exchange IN (?` + strings.Repeat(", ?", len(filter.Exchanges)-1) + `)`)
		for _, ex := range filter.Exchanges {
			args = append(args, ex)
		}
	}
	if !filter.IncludeETFs {
		sb.WriteString(` AND COALESCE(is_etf, 0) = 0`)
	}
	if filter.ActiveOnly {
		sb.WriteString(` AND COALESCE(is_actively_trading, 0) = 1`)
	}

	sb.WriteString(` ORDER BY market_cap DESC, symbol ASC`)
	if filter.MaxSymbols > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, filter.MaxSymbols)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select universe symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan universe symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	return symbols, rows.Err()
}

// ReplaceAll wholesale-upserts the given symbols in one transaction.
func (s *UniverseStore) ReplaceAll(ctx context.Context, symbols []models.UniverseSymbol) (int, error) {
	if len(symbols) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin universe replace: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO symbol_universe
		(symbol, name, exchange, sector, industry, market_cap, price,
		 is_etf, is_fund, is_actively_trading, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare universe upsert: %w", err)
	}
	defer stmt.Close()

	now := formatTime(time.Now())
	upserted := 0
	for _, sym := range symbols {
		symbol := strings.ToUpper(strings.TrimSpace(sym.Symbol))
		if symbol == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			symbol, sym.Name, sym.Exchange, sym.Sector, sym.Industry,
			sym.MarketCap, sym.Price,
			boolToInt(sym.IsETF), boolToInt(sym.IsFund), boolToInt(sym.IsActivelyTrading),
			now,
		); err != nil {
			return 0, fmt.Errorf("failed to upsert universe symbol %s: %w", symbol, err)
		}
		upserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit universe replace: %w", err)
	}
	return upserted, nil
}

// Stats aggregates the universe by exchange, type, sector, and market-cap
// bucket (penny < $5 price, small < 2e9, mid < 10e9, large otherwise).
func (s *UniverseStore) Stats(ctx context.Context) (*models.UniverseStats, error) {
	stats := &models.UniverseStats{
		ByExchange:  map[string]int{},
		ByType:      map[string]int{},
		BySector:    map[string]int{},
		ByCapBucket: map[string]int{},
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM symbol_universe`).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("failed to count universe: %w", err)
	}

	if err := s.groupCount(ctx, `SELECT COALESCE(exchange, ''), COUNT(*)
		FROM symbol_universe GROUP BY exchange`, stats.ByExchange); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, `SELECT CASE WHEN COALESCE(is_etf, 0) = 1 THEN 'ETF' ELSE 'EQUITY' END, COUNT(*)
		FROM symbol_universe GROUP BY 1`, stats.ByType); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, `SELECT COALESCE(NULLIF(sector, ''), 'Unknown'), COUNT(*)
		FROM symbol_universe GROUP BY 1`, stats.BySector); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, `SELECT CASE
			WHEN price IS NOT NULL AND price < 5 THEN 'penny'
			WHEN COALESCE(market_cap, 0) < 2e9 THEN 'small'
			WHEN COALESCE(market_cap, 0) < 10e9 THEN 'mid'
			ELSE 'large' END, COUNT(*)
		FROM symbol_universe GROUP BY 1`, stats.ByCapBucket); err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *UniverseStore) groupCount(ctx context.Context, query string, out map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to aggregate universe: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan universe aggregate: %w", err)
		}
		out[key] = count
	}
	return rows.Err()
}

// Browse returns one page of the universe. sortBy must be one of
// symbol, market_cap, exchange; sortDir asc or desc.
func (s *UniverseStore) Browse(ctx context.Context, page, pageSize int, sortBy, sortDir string) (*models.UniversePage, error) {
	switch sortBy {
	case "symbol", "market_cap", "exchange":
	default:
		return nil, fmt.Errorf("invalid sort_by %q", sortBy)
	}
	dir := "ASC"
	switch strings.ToLower(sortDir) {
	case "", "asc":
	case "desc":
		dir = "DESC"
	default:
		return nil, fmt.Errorf("invalid sort_dir %q", sortDir)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	result := &models.UniversePage{Page: page, PageSize: pageSize}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM symbol_universe`).Scan(&result.Total); err != nil {
		return nil, fmt.Errorf("failed to count universe: %w", err)
	}

	// sortBy is validated against the allow-list above.
	query := fmt.Sprintf(`SELECT symbol, COALESCE(name, ''), COALESCE(exchange, ''),
			COALESCE(sector, ''), COALESCE(industry, ''), market_cap, price,
			COALESCE(is_etf, 0), COALESCE(is_fund, 0), COALESCE(is_actively_trading, 0),
			updated_at
		FROM symbol_universe
		ORDER BY %s %s, symbol ASC
		LIMIT ? OFFSET ?`, sortBy, dir)

	rows, err := s.db.QueryContext(ctx, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to browse universe: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sym models.UniverseSymbol
		var isETF, isFund, isActive int
		var updatedAt string
		if err := rows.Scan(
			&sym.Symbol, &sym.Name, &sym.Exchange, &sym.Sector, &sym.Industry,
			&sym.MarketCap, &sym.Price, &isETF, &isFund, &isActive, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan universe row: %w", err)
		}
		sym.IsETF = isETF == 1
		sym.IsFund = isFund == 1
		sym.IsActivelyTrading = isActive == 1
		sym.UpdatedAt = parseTime(updatedAt)
		result.Symbols = append(result.Symbols, sym)
	}
	return result, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
