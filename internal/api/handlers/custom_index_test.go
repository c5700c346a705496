package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexlab/backend/internal/backtest"
	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/pkg/logger"
)

type fakeSecurities struct {
	domain.SecurityRepository
	universe []domain.Security
}

func (f *fakeSecurities) Universe(_ context.Context, _ domain.ConstituentFilters) ([]domain.Security, error) {
	return f.universe, nil
}

type fakePrices struct {
	domain.PriceRepository
	bars []domain.PricePoint
}

func (f *fakePrices) Range(_ context.Context, _ []int64, _, _ time.Time) ([]domain.PricePoint, error) {
	return f.bars, nil
}

func testBacktestEngine() *backtest.Engine {
	var bars []domain.PricePoint
	start, _ := time.Parse(domain.DateFormat, "2023-01-02")
	for i, c := range []float64{100, 102, 104, 106, 108} {
		bars = append(bars, domain.PricePoint{SecurityID: 1, Date: start.AddDate(0, 0, i), Close: c})
	}

	return backtest.NewEngine(
		&fakeSecurities{universe: []domain.Security{{ID: 1, Symbol: "AAPL", IsActive: true}}},
		&fakePrices{bars: bars},
		logger.NewNop(),
		nil,
	)
}

func postCustomIndex(t *testing.T, handler *CustomIndexHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/indices/custom-index", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.Backtest(rec, req)
	return rec
}

func TestCustomIndexBacktest(t *testing.T) {
	handler := NewCustomIndexHandler(testBacktestEngine(), nil, logger.NewNop())

	rec := postCustomIndex(t, handler, `{
		"name": "Tech Leaders",
		"weighting_method": "equal_weight",
		"start_date": "2023-01-02",
		"end_date": "2023-01-06"
	}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		RunID  string `json:"run_id"`
		Series []struct {
			Date       string  `json:"date"`
			IndexValue float64 `json:"index_value"`
		} `json:"index_series"`
		Metrics     map[string]float64 `json:"performance_metrics"`
		TradingDays int                `json:"trading_days"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 5, result.TradingDays)
	require.Len(t, result.Series, 5)
	assert.InDelta(t, 100.0, result.Series[0].IndexValue, 1e-9)
	assert.Contains(t, result.Metrics, "total_return")
	assert.Contains(t, result.Metrics, "sharpe_ratio")
	assert.Contains(t, result.Metrics, "max_drawdown")
	assert.InDelta(t, 0.08, result.Metrics["total_return"], 1e-9)
}

func TestCustomIndexBacktest_ValidationErrors(t *testing.T) {
	handler := NewCustomIndexHandler(testBacktestEngine(), nil, logger.NewNop())

	rec := postCustomIndex(t, handler, `{
		"name": "",
		"weighting_method": "volume_weight",
		"start_date": "2023-06-01",
		"end_date": "2023-01-01"
	}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var payload struct {
		Error   string             `json:"error"`
		Details []domain.FieldError `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))

	assert.Equal(t, "validation failed", payload.Error)
	fields := make([]string, 0, len(payload.Details))
	for _, fe := range payload.Details {
		fields = append(fields, fe.Field)
	}
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "weighting_method")
	assert.Contains(t, fields, "start_date")
}

func TestCustomIndexBacktest_BadBody(t *testing.T) {
	handler := NewCustomIndexHandler(testBacktestEngine(), nil, logger.NewNop())

	rec := postCustomIndex(t, handler, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCustomIndexBacktest_EmptyUniverse(t *testing.T) {
	engine := backtest.NewEngine(&fakeSecurities{}, &fakePrices{}, logger.NewNop(), nil)
	handler := NewCustomIndexHandler(engine, nil, logger.NewNop())

	rec := postCustomIndex(t, handler, `{
		"name": "Empty",
		"weighting_method": "equal_weight",
		"start_date": "2023-01-02",
		"end_date": "2023-01-06"
	}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
