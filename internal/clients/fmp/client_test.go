package fmp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradepop/datalake/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient("test-key", WithBaseURL(server.URL), WithRateLimit(1000))
}

func TestClient_ScreenBuildsParams(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/company-screener", r.URL.Path)
		assert.Equal(t, "test-key", q.Get("apikey"))
		assert.Equal(t, "1000000000", q.Get("marketCapMoreThan"))
		assert.Equal(t, "NYSE,NASDAQ", q.Get("exchange"))
		assert.Equal(t, "false", q.Get("isEtf"))
		assert.Equal(t, "true", q.Get("isActivelyTrading"))
		w.Write([]byte(`[
			{"symbol":"aapl","companyName":"Apple Inc.","exchangeShortName":"NASDAQ",
			 "sector":"Technology","industry":"Consumer Electronics",
			 "marketCap":3000000000000,"price":190.5,"isEtf":false,"isFund":false,"isActivelyTrading":true},
			{"symbol":"","companyName":"Blank"}
		]`))
	})

	symbols, err := client.Screen(context.Background(), models.UniverseFilter{
		MinCap:     1e9,
		Exchanges:  []string{"nyse", "NASDAQ", "LSE"},
		ActiveOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, symbols, 1, "blank symbols dropped")

	assert.Equal(t, "AAPL", symbols[0].Symbol)
	assert.Equal(t, "Apple Inc.", symbols[0].Name)
	assert.Equal(t, "NASDAQ", symbols[0].Exchange)
	require.NotNil(t, symbols[0].MarketCap)
	assert.InDelta(t, 3e12, *symbols[0].MarketCap, 1)
	assert.True(t, symbols[0].IsActivelyTrading)
	assert.False(t, symbols[0].UpdatedAt.IsZero())
}

func TestClient_ScreenDropsDisallowedExchanges(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("exchange"))
		w.Write([]byte(`[]`))
	})

	_, err := client.Screen(context.Background(), models.UniverseFilter{
		Exchanges: []string{"LSE", "ASX"},
	})
	require.NoError(t, err)
}

func TestClient_ScreenErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"Error Message":"Invalid API KEY"}`))
	})

	_, err := client.Screen(context.Background(), models.UniverseFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API KEY")
}
