// Package fmp provides the Financial Modeling Prep company-screener
// client used by the universe refresh.
package fmp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tradepop/datalake/internal/common"
	"github.com/tradepop/datalake/internal/interfaces"
	"github.com/tradepop/datalake/internal/models"
)

const (
	DefaultBaseURL   = "https://financialmodelingprep.com/stable"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second
	DefaultLimit     = 10000
)

// allowedExchanges is the screener exchange allow-list; anything else
// in a filter is dropped before the request.
var allowedExchanges = map[string]bool{
	"NYSE":   true,
	"NASDAQ": true,
}

// Client calls the FMP company screener.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

var _ interfaces.SymbolScreener = (*Client)(nil)

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new FMP client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// screenerRow is the vendor wire format for one screener result.
type screenerRow struct {
	Symbol            string   `json:"symbol"`
	CompanyName       string   `json:"companyName"`
	Exchange          string   `json:"exchangeShortName"`
	Sector            string   `json:"sector"`
	Industry          string   `json:"industry"`
	MarketCap         *float64 `json:"marketCap"`
	Price             *float64 `json:"price"`
	IsETF             bool     `json:"isEtf"`
	IsFund            bool     `json:"isFund"`
	IsActivelyTrading bool     `json:"isActivelyTrading"`
}

// Screen queries the company screener with the given universe filter.
func (c *Client) Screen(ctx context.Context, filter models.UniverseFilter) ([]models.UniverseSymbol, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("limit", strconv.Itoa(DefaultLimit))
	if filter.MinCap > 0 {
		params.Set("marketCapMoreThan", strconv.FormatFloat(filter.MinCap, 'f', 0, 64))
	}
	if filter.MaxCap != nil {
		params.Set("marketCapLowerThan", strconv.FormatFloat(*filter.MaxCap, 'f', 0, 64))
	}
	if exchanges := allowed(filter.Exchanges); len(exchanges) > 0 {
		params.Set("exchange", strings.Join(exchanges, ","))
	}
	if !filter.IncludeETFs {
		params.Set("isEtf", "false")
	}
	if filter.ActiveOnly {
		params.Set("isActivelyTrading", "true")
	}

	reqURL := fmt.Sprintf("%s/company-screener?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Int("limit", DefaultLimit).Msg("FMP screener request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("FMP screener error (status %d): %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rows []screenerRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode screener response: %w", err)
	}

	now := time.Now().UTC()
	symbols := make([]models.UniverseSymbol, 0, len(rows))
	for _, row := range rows {
		symbol := strings.ToUpper(strings.TrimSpace(row.Symbol))
		if symbol == "" {
			continue
		}
		symbols = append(symbols, models.UniverseSymbol{
			Symbol:            symbol,
			Name:              row.CompanyName,
			Exchange:          row.Exchange,
			Sector:            row.Sector,
			Industry:          row.Industry,
			MarketCap:         row.MarketCap,
			Price:             row.Price,
			IsETF:             row.IsETF,
			IsFund:            row.IsFund,
			IsActivelyTrading: row.IsActivelyTrading,
			UpdatedAt:         now,
		})
	}
	return symbols, nil
}

func allowed(exchanges []string) []string {
	var out []string
	for _, ex := range exchanges {
		ex = strings.ToUpper(strings.TrimSpace(ex))
		if allowedExchanges[ex] {
			out = append(out, ex)
		}
	}
	return out
}
