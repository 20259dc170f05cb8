// Package eodhd provides the EODHD end-of-day bar client.
package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tradepop/datalake/internal/common"
	"github.com/tradepop/datalake/internal/interfaces"
	"github.com/tradepop/datalake/internal/models"
)

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 20 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// Client fetches daily OHLCV bars from EODHD. Fetches are idempotent
// GETs, safe across queue retries.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time
}

var _ interfaces.BarFetcher = (*Client)(nil)

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

// WithTimeout sets the per-fetch HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new EODHD client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a vendor API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// eodBar is the vendor wire format for one bar. The optional fields are
// pointers so absent values stay null instead of becoming zeros. The
// vendor names percent change change_p (older payloads use change) and
// adjusted close is sometimes adj_close.
type eodBar struct {
	Date          string   `json:"date"`
	Open          float64  `json:"open"`
	High          float64  `json:"high"`
	Low           float64  `json:"low"`
	Close         float64  `json:"close"`
	Volume        int64    `json:"volume"`
	VWAP          *float64 `json:"vwap"`
	Turnover      *float64 `json:"turnover"`
	ChangeP       *float64 `json:"change_p"`
	Change        *float64 `json:"change"`
	AdjustedOpen  *float64 `json:"adjusted_open"`
	AdjustedHigh  *float64 `json:"adjusted_high"`
	AdjustedLow   *float64 `json:"adjusted_low"`
	AdjustedClose *float64 `json:"adjusted_close"`
	AdjClose      *float64 `json:"adj_close"`
}

// Fetch retrieves bars for symbol in [start, end]. The end date is
// clamped to today; a window entirely in the future returns no bars.
// Empty results are legal (holiday and weekend windows).
func (c *Client) Fetch(ctx context.Context, symbol, start, end string) ([]models.DailyBar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	today := c.now().UTC().Format("2006-01-02")
	if end > today {
		end = today
	}
	if start > end {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")
	params.Set("period", "d")
	params.Set("order", "a")
	params.Set("from", start)
	params.Set("to", end)

	path := "/eod/" + url.PathEscape(symbol)
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().
		Str("symbol", symbol).
		Str("from", start).
		Str("to", end).
		Msg("EODHD bar request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	// No trading days in the window comes back as an empty body or "[]".
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "[]" {
		return nil, nil
	}

	var wire []eodBar
	if err := json.Unmarshal(body, &wire); err != nil {
		// the vendor reports some errors as a 200 with a JSON object
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    trimmed,
			Endpoint:   path,
		}
	}

	bars := make([]models.DailyBar, 0, len(wire))
	for _, w := range wire {
		if w.Date == "" {
			continue
		}
		bar := models.DailyBar{
			Symbol:    symbol,
			TradeDate: w.Date,
			Open:      w.Open,
			High:      w.High,
			Low:       w.Low,
			Close:     w.Close,
			Volume:    w.Volume,
			VWAP:      w.VWAP,
			Turnover:  w.Turnover,
			ChangePct: w.ChangeP,
			AdjOpen:   w.AdjustedOpen,
			AdjHigh:   w.AdjustedHigh,
			AdjLow:    w.AdjustedLow,
			AdjClose:  w.AdjustedClose,
		}
		if bar.ChangePct == nil {
			bar.ChangePct = w.Change
		}
		if bar.AdjClose == nil {
			bar.AdjClose = w.AdjClose
		}
		bars = append(bars, bar)
	}
	return bars, nil
}
