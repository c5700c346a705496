package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/pkg/logger"
)

type fakeSecurities struct {
	domain.SecurityRepository
	securities []domain.Security
	err        error
}

func (f *fakeSecurities) Universe(_ context.Context, _ domain.ConstituentFilters) ([]domain.Security, error) {
	return f.securities, f.err
}

type fakePrices struct {
	domain.PriceRepository
	bars []domain.PricePoint
	err  error
}

func (f *fakePrices) Range(_ context.Context, _ []int64, _, _ time.Time) ([]domain.PricePoint, error) {
	return f.bars, f.err
}

func validConfig() *domain.IndexConfiguration {
	return &domain.IndexConfiguration{
		Name:            "Tech Leaders",
		WeightingMethod: domain.EqualWeight,
		StartDate:       "2023-01-02",
		EndDate:         "2023-01-06",
	}
}

func day(s string) time.Time {
	d, _ := time.Parse(domain.DateFormat, s)
	return d
}

func testBars() []domain.PricePoint {
	var bars []domain.PricePoint
	for i, c := range []float64{100, 102, 104, 106, 108} {
		bars = append(bars, domain.PricePoint{
			SecurityID: 1,
			Date:       day("2023-01-02").AddDate(0, 0, i),
			Close:      c,
		})
	}
	return bars
}

func TestRun(t *testing.T) {
	engine := NewEngine(
		&fakeSecurities{securities: []domain.Security{
			{ID: 1, Symbol: "AAPL", IsActive: true, MarketCap: 3000},
		}},
		&fakePrices{bars: testBars()},
		logger.NewNop(),
		nil,
	)

	result, err := engine.Run(context.Background(), validConfig())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "Tech Leaders", result.Name)
	assert.Equal(t, 5, result.TradingDays)
	require.Len(t, result.IndexSeries, 5)
	assert.InDelta(t, 100.0, result.IndexSeries[0].IndexValue, 1e-9)
	assert.InDelta(t, 108.0, result.IndexSeries[4].IndexValue, 1e-9)
	assert.InDelta(t, 0.08, result.Metrics.TotalReturn, 1e-9)
	assert.InDelta(t, 1.0, result.Metrics.WinRate, 1e-9)
}

func TestRun_InvalidConfig(t *testing.T) {
	engine := NewEngine(&fakeSecurities{}, &fakePrices{}, logger.NewNop(), nil)

	config := validConfig()
	config.Name = ""
	config.StartDate = "not-a-date"

	_, err := engine.Run(context.Background(), config)
	require.Error(t, err)

	var verrs domain.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
}

func TestRun_EmptyUniverse(t *testing.T) {
	engine := NewEngine(&fakeSecurities{}, &fakePrices{}, logger.NewNop(), nil)

	_, err := engine.Run(context.Background(), validConfig())
	assert.ErrorContains(t, err, "no securities match")
}

func TestRun_NoPriceData(t *testing.T) {
	engine := NewEngine(
		&fakeSecurities{securities: []domain.Security{{ID: 1, Symbol: "AAPL", IsActive: true}}},
		&fakePrices{},
		logger.NewNop(),
		nil,
	)

	_, err := engine.Run(context.Background(), validConfig())
	assert.ErrorContains(t, err, "no price data")
}

func TestRun_RevenueWeightRequiresData(t *testing.T) {
	// No revenue on any constituent: the run must fail the same way a
	// single-date valuation of this configuration does.
	engine := NewEngine(
		&fakeSecurities{securities: []domain.Security{
			{ID: 1, Symbol: "AAPL", IsActive: true, MarketCap: 3000},
		}},
		&fakePrices{bars: testBars()},
		logger.NewNop(),
		nil,
	)

	config := validConfig()
	config.WeightingMethod = domain.RevenueWeight

	_, err := engine.Run(context.Background(), config)
	assert.ErrorContains(t, err, "revenue data required")
}

func TestRun_FiltersApplied(t *testing.T) {
	n := 1
	config := validConfig()
	config.Filters = domain.ConstituentFilters{MaxConstituents: &n}

	// Universe ordered by market cap descending, as the repository returns it
	engine := NewEngine(
		&fakeSecurities{securities: []domain.Security{
			{ID: 1, Symbol: "AAPL", IsActive: true, MarketCap: 3000},
			{ID: 2, Symbol: "XOM", IsActive: true, MarketCap: 500},
		}},
		&fakePrices{bars: testBars()},
		logger.NewNop(),
		nil,
	)

	result, err := engine.Run(context.Background(), config)
	require.NoError(t, err)

	for _, p := range result.IndexSeries {
		assert.Equal(t, 1, p.Constituents)
	}
}
