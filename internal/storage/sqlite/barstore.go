package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tradepop/datalake/internal/common"
	"github.com/tradepop/datalake/internal/interfaces"
	"github.com/tradepop/datalake/internal/models"
)

// BarStore persists daily OHLCV bars in the live and archive tables.
type BarStore struct {
	db     *sql.DB
	logger *common.Logger
}

var _ interfaces.BarStore = (*BarStore)(nil)

const barColumns = `symbol, trade_date, open, high, low, close, volume,
	vwap, turnover, change_pct, adj_open, adj_high, adj_low, adj_close`

// Upsert writes bars in a single transaction, replacing rows with the
// same (symbol, trade_date). Symbols are normalized uppercase on write.
func (s *BarStore) Upsert(ctx context.Context, symbol string, bars []models.DailyBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin bar upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO daily_bars (`+barColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare bar upsert: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, bar := range bars {
		if _, err := stmt.ExecContext(ctx,
			symbol, bar.TradeDate,
			bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
			bar.VWAP, bar.Turnover, bar.ChangePct,
			bar.AdjOpen, bar.AdjHigh, bar.AdjLow, bar.AdjClose,
		); err != nil {
			return 0, fmt.Errorf("failed to upsert bar %s %s: %w", symbol, bar.TradeDate, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bar upsert: %w", err)
	}
	return written, nil
}

// ReadRange returns bars for symbol in [start, end] ascending by date.
func (s *BarStore) ReadRange(ctx context.Context, symbol, start, end string) ([]models.DailyBar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	rows, err := s.db.QueryContext(ctx, `SELECT `+barColumns+` FROM daily_bars
		WHERE symbol = ? AND trade_date >= ? AND trade_date <= ?
		ORDER BY trade_date ASC`, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to read bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []models.DailyBar
	for rows.Next() {
		var bar models.DailyBar
		if err := rows.Scan(
			&bar.Symbol, &bar.TradeDate,
			&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume,
			&bar.VWAP, &bar.Turnover, &bar.ChangePct,
			&bar.AdjOpen, &bar.AdjHigh, &bar.AdjLow, &bar.AdjClose,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bar row: %w", err)
		}
		bars = append(bars, bar)
	}
	return bars, rows.Err()
}

// ArchiveBefore moves rows older than cutoff into the archive table.
// Copy then delete run in one transaction, so a row is never visible in
// both tables.
func (s *BarStore) ArchiveBefore(ctx context.Context, cutoff string) (*models.ArchiveResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin archive: %w", err)
	}
	defer tx.Rollback()

	copied, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO daily_bars_archive (`+barColumns+`)
		SELECT `+barColumns+` FROM daily_bars WHERE trade_date < ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to copy bars to archive: %w", err)
	}
	archived, _ := copied.RowsAffected()

	deleted, err := tx.ExecContext(ctx, `DELETE FROM daily_bars WHERE trade_date < ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to delete archived bars: %w", err)
	}
	removed, _ := deleted.RowsAffected()

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit archive: %w", err)
	}

	s.logger.Info().
		Str("cutoff", cutoff).
		Int64("archived", archived).
		Int64("deleted", removed).
		Msg("Archived bars")

	return &models.ArchiveResult{
		CutoffDate:      cutoff,
		Archived:        archived,
		DeletedFromLive: removed,
	}, nil
}
