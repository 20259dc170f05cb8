// Package chart renders PNG price charts from stored bars.
package chart

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/tradepop/datalake/internal/common"
	"github.com/tradepop/datalake/internal/interfaces"
)

// Service renders charts from the bar store.
type Service struct {
	storage interfaces.StorageManager
	logger  *common.Logger
}

var _ interfaces.ChartService = (*Service)(nil)

// NewService creates the chart service.
func NewService(storage interfaces.StorageManager, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewDefaultLogger()
	}
	return &Service{storage: storage, logger: logger}
}

// ClosePNG renders a close-price line chart for the symbol over the
// inclusive date range. Needs at least two bars.
func (s *Service) ClosePNG(ctx context.Context, symbol, start, end string) ([]byte, error) {
	bars, err := s.storage.BarStore().ReadRange(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if len(bars) < 2 {
		return nil, fmt.Errorf("need at least 2 bars to chart %s, got %d", symbol, len(bars))
	}

	xValues := make([]time.Time, len(bars))
	yValues := make([]float64, len(bars))
	for i, bar := range bars {
		date, err := time.Parse("2006-01-02", bar.TradeDate)
		if err != nil {
			return nil, fmt.Errorf("bad trade date %q for %s: %w", bar.TradeDate, symbol, err)
		}
		xValues[i] = date
		yValues[i] = bar.Close
	}

	series := chart.TimeSeries{
		Name: symbol,
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"),
			StrokeWidth: 2.0,
		},
		XValues: xValues,
		YValues: yValues,
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s Close", symbol),
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 06")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("$%.2f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{series},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}
