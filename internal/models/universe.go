package models

import "time"

// UniverseSymbol is one row of the tradable-symbol universe. The table
// is replaced wholesale by the universe refresh; the ingest scheduler
// only reads it.
type UniverseSymbol struct {
	Symbol            string    `json:"symbol"`
	Name              string    `json:"name"`
	Exchange          string    `json:"exchange"`
	Sector            string    `json:"sector,omitempty"`
	Industry          string    `json:"industry,omitempty"`
	MarketCap         *float64  `json:"market_cap,omitempty"`
	Price             *float64  `json:"price,omitempty"`
	IsETF             bool      `json:"is_etf"`
	IsFund            bool      `json:"is_fund"`
	IsActivelyTrading bool      `json:"is_actively_trading"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// UniverseFilter narrows the universe for symbol selection.
// Zero MinCap means no lower bound; nil MaxCap means no upper bound.
type UniverseFilter struct {
	MinCap      float64  `json:"min_cap"`
	MaxCap      *float64 `json:"max_cap,omitempty"`
	Exchanges   []string `json:"exchanges,omitempty"`
	IncludeETFs bool     `json:"include_etfs"`
	ActiveOnly  bool     `json:"active_only"`
	MaxSymbols  int      `json:"max_symbols"`
}

// UniverseStats aggregates the universe table for the stats endpoint.
type UniverseStats struct {
	Total       int            `json:"total"`
	ByExchange  map[string]int `json:"by_exchange"`
	ByType      map[string]int `json:"by_type"`
	BySector    map[string]int `json:"by_sector"`
	ByCapBucket map[string]int `json:"by_cap_bucket"`
}

// UniversePage is one page of the universe browse endpoint.
type UniversePage struct {
	Symbols  []UniverseSymbol `json:"symbols"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Total    int              `json:"total"`
}
