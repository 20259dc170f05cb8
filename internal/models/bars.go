package models

// DailyBar represents one symbol's OHLCV record for a trading day.
// Dates are ISO "YYYY-MM-DD" strings throughout; they sort correctly
// as text, which the range and archive queries rely on.
type DailyBar struct {
	Symbol    string   `json:"symbol"`
	TradeDate string   `json:"trade_date"`
	Open      float64  `json:"open"`
	High      float64  `json:"high"`
	Low       float64  `json:"low"`
	Close     float64  `json:"close"`
	Volume    int64    `json:"volume"`
	VWAP      *float64 `json:"vwap,omitempty"`
	Turnover  *float64 `json:"turnover,omitempty"`
	ChangePct *float64 `json:"change_pct,omitempty"`
	AdjOpen   *float64 `json:"adj_open,omitempty"`
	AdjHigh   *float64 `json:"adj_high,omitempty"`
	AdjLow    *float64 `json:"adj_low,omitempty"`
	AdjClose  *float64 `json:"adj_close,omitempty"`
}

// ArchiveResult reports the outcome of moving bars older than a cutoff
// from the live table into the archive table.
type ArchiveResult struct {
	CutoffDate      string `json:"cutoff_date"`
	Archived        int64  `json:"archived"`
	DeletedFromLive int64  `json:"deleted_from_live"`
}
