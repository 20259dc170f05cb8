package eodhd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c := NewClient("test-key", WithBaseURL(server.URL), WithRateLimit(1000))
	c.now = fixedNow
	return c
}

func TestClient_FetchMapsFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/eod/AAPL", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_token"))
		assert.Equal(t, "2024-01-02", r.URL.Query().Get("from"))
		assert.Equal(t, "2024-01-05", r.URL.Query().Get("to"))
		w.Write([]byte(`[
			{"date":"2024-01-02","open":100,"high":110,"low":95,"close":105,"volume":12345,
			 "vwap":101.5,"turnover":1253302.5,"change_p":1.25,
			 "adjusted_open":51,"adjusted_high":55,"adjusted_low":47.5,"adjusted_close":52.5},
			{"date":"2024-01-03","open":105,"high":106,"low":101,"close":102,"volume":9999}
		]`))
	})

	bars, err := client.Fetch(context.Background(), "aapl", "2024-01-02", "2024-01-05")
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.Equal(t, "2024-01-02", bars[0].TradeDate)
	assert.Equal(t, 105.0, bars[0].Close)
	assert.Equal(t, int64(12345), bars[0].Volume)
	require.NotNil(t, bars[0].VWAP)
	assert.InDelta(t, 101.5, *bars[0].VWAP, 1e-9)
	require.NotNil(t, bars[0].Turnover)
	assert.InDelta(t, 1253302.5, *bars[0].Turnover, 1e-9)
	require.NotNil(t, bars[0].ChangePct)
	assert.InDelta(t, 1.25, *bars[0].ChangePct, 1e-9)
	require.NotNil(t, bars[0].AdjClose)
	assert.InDelta(t, 52.5, *bars[0].AdjClose, 1e-9)
	// adjusted OHLC is the vendor's value, never derived here
	require.NotNil(t, bars[0].AdjOpen)
	assert.InDelta(t, 51.0, *bars[0].AdjOpen, 1e-9)
	require.NotNil(t, bars[0].AdjHigh)
	assert.InDelta(t, 55.0, *bars[0].AdjHigh, 1e-9)
	require.NotNil(t, bars[0].AdjLow)
	assert.InDelta(t, 47.5, *bars[0].AdjLow, 1e-9)

	// absent optional fields stay null
	assert.Nil(t, bars[1].VWAP)
	assert.Nil(t, bars[1].Turnover)
	assert.Nil(t, bars[1].ChangePct)
	assert.Nil(t, bars[1].AdjOpen)
	assert.Nil(t, bars[1].AdjClose)
}

func TestClient_FetchAlternateFieldNames(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"date":"2024-01-02","open":100,"high":110,"low":95,"close":105,"volume":12345,
			 "change":0.75,"adj_close":52.5}
		]`))
	})

	bars, err := client.Fetch(context.Background(), "AAPL", "2024-01-02", "2024-01-05")
	require.NoError(t, err)
	require.Len(t, bars, 1)

	require.NotNil(t, bars[0].ChangePct)
	assert.InDelta(t, 0.75, *bars[0].ChangePct, 1e-9)
	require.NotNil(t, bars[0].AdjClose)
	assert.InDelta(t, 52.5, *bars[0].AdjClose, 1e-9)
}

func TestClient_FetchEmptyWindow(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	bars, err := client.Fetch(context.Background(), "AAPL", "2024-01-06", "2024-01-07")
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestClient_FetchClampsFutureEnd(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-06-15", r.URL.Query().Get("to"))
		w.Write([]byte(`[]`))
	})

	_, err := client.Fetch(context.Background(), "AAPL", "2024-06-01", "2030-01-01")
	require.NoError(t, err)
}

func TestClient_FetchFutureWindowSkipsRequest(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	bars, err := client.Fetch(context.Background(), "AAPL", "2030-01-01", "2030-12-31")
	require.NoError(t, err)
	assert.Empty(t, bars)
	assert.False(t, called, "window entirely in the future needs no request")
}

func TestClient_FetchAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"message":"exceeded daily limit"}`))
	})

	_, err := client.Fetch(context.Background(), "AAPL", "2024-01-02", "2024-01-05")
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusPaymentRequired, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "exceeded daily limit")
}

func TestClient_FetchErrorObjectWith200(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"unknown symbol"}`))
	})

	_, err := client.Fetch(context.Background(), "BOGUS", "2024-01-02", "2024-01-05")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown symbol")
}
