package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/pkg/config"
	"github.com/indexlab/backend/pkg/logger"
)

func TestFetchPrices(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		symbol := r.URL.Query().Get("symbol")
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))

		json.NewEncoder(w).Encode(apiResponse{
			Symbol: symbol,
			Bars: []apiBar{
				{Date: "2023-01-02", Open: 99, High: 101, Low: 98, Close: 100, Volume: 1000},
				{Date: "2023-01-03", Close: 102},
				{Date: "bad-date", Close: 50}, // dropped
				{Date: "2023-01-04", Close: 0}, // dropped
			},
		})
	}))
	defer server.Close()

	securities := &fakeSecurities{bySymbol: map[string]*domain.Security{
		"AAPL": {ID: 1, Symbol: "AAPL"},
		"MSFT": {ID: 2, Symbol: "MSFT"},
	}}
	prices := &fakePrices{}

	ingestor := NewAPIIngestor(
		testHTTPClient(t),
		securities,
		prices,
		config.MarketDataConfig{BaseURL: server.URL, APIKey: "test-key", Workers: 2},
		logger.NewNop(),
	)

	from, _ := time.Parse(domain.DateFormat, "2023-01-01")
	to, _ := time.Parse(domain.DateFormat, "2023-01-06")

	report, err := ingestor.FetchPrices(context.Background(), []string{"AAPL", "MSFT"}, from, to)
	require.NoError(t, err)

	assert.NotEmpty(t, report.JobID)
	assert.Equal(t, 2, report.Symbols)
	assert.Equal(t, 4, report.Written) // 2 valid bars per symbol
	assert.Zero(t, report.Failed)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
	assert.Len(t, prices.saved, 4)
}

func TestFetchPrices_UnknownSymbolReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{Bars: []apiBar{{Date: "2023-01-02", Close: 100}}})
	}))
	defer server.Close()

	securities := &fakeSecurities{bySymbol: map[string]*domain.Security{
		"AAPL": {ID: 1, Symbol: "AAPL"},
	}}

	ingestor := NewAPIIngestor(
		testHTTPClient(t),
		securities,
		&fakePrices{},
		config.MarketDataConfig{BaseURL: server.URL, Workers: 1},
		logger.NewNop(),
	)

	from, _ := time.Parse(domain.DateFormat, "2023-01-01")
	to, _ := time.Parse(domain.DateFormat, "2023-01-06")

	report, err := ingestor.FetchPrices(context.Background(), []string{"AAPL", "NOPE"}, from, to)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Written)
}

func TestFetchPrices_NoSymbols(t *testing.T) {
	ingestor := NewAPIIngestor(
		testHTTPClient(t),
		&fakeSecurities{bySymbol: map[string]*domain.Security{}},
		&fakePrices{},
		config.MarketDataConfig{},
		logger.NewNop(),
	)

	_, err := ingestor.FetchPrices(context.Background(), nil, time.Now(), time.Now())
	assert.ErrorContains(t, err, "no symbols")
}
