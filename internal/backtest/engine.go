package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/internal/index"
	"github.com/indexlab/backend/pkg/logger"
	"github.com/indexlab/backend/pkg/metrics"
)

// Engine simulates ad-hoc index configurations over historical prices.
type Engine struct {
	securities domain.SecurityRepository
	prices     domain.PriceRepository
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

// NewEngine creates a new backtest engine. metrics may be nil.
func NewEngine(
	securities domain.SecurityRepository,
	prices domain.PriceRepository,
	log *logger.Logger,
	m *metrics.Metrics,
) *Engine {
	return &Engine{
		securities: securities,
		prices:     prices,
		logger:     log,
		metrics:    m,
	}
}

// lookback covers exchange holidays around the backtest start so the
// first business day has closes to carry forward.
const priceLookbackDays = 30

// Run validates the configuration, simulates the index over its date
// range and derives performance metrics. Validation failures return a
// domain.ValidationErrors value.
func (e *Engine) Run(ctx context.Context, config *domain.IndexConfiguration) (*domain.BacktestResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	start, end, err := config.Period()
	if err != nil {
		return nil, err
	}

	began := time.Now()

	universe, err := e.universe(ctx, config.Filters)
	if err != nil {
		e.observe("error")
		return nil, err
	}
	if len(universe) == 0 {
		e.observe("empty_universe")
		return nil, fmt.Errorf("no securities match the configured filters")
	}

	bars, err := e.prices.Range(ctx, securityIDs(universe), start.AddDate(0, 0, -priceLookbackDays), end)
	if err != nil {
		e.observe("error")
		return nil, fmt.Errorf("load prices: %w", err)
	}

	series, err := index.BuildSeries(universe, bars, start, end, config.WeightingMethod)
	if err != nil {
		e.observe("error")
		return nil, err
	}
	if len(series) == 0 {
		e.observe("no_data")
		return nil, fmt.Errorf("no price data available between %s and %s", config.StartDate, config.EndDate)
	}

	result := &domain.BacktestResult{
		RunID:       uuid.NewString(),
		Name:        config.Name,
		StartDate:   start,
		EndDate:     end,
		IndexSeries: series,
		Metrics:     index.ComputeMetrics(series),
		TradingDays: len(series),
		Elapsed:     time.Since(began),
	}

	e.observe("success")
	e.logger.WithFields(map[string]interface{}{
		"run_id":       result.RunID,
		"name":         config.Name,
		"method":       string(config.WeightingMethod),
		"trading_days": result.TradingDays,
		"elapsed_ms":   result.Elapsed.Milliseconds(),
	}).Info("Backtest completed")

	return result, nil
}

// universe loads the filtered security set as unpriced members
func (e *Engine) universe(ctx context.Context, filters domain.ConstituentFilters) ([]index.Member, error) {
	securities, err := e.securities.Universe(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}

	members := make([]index.Member, 0, len(securities))
	for _, s := range securities {
		members = append(members, index.Member{
			SecurityID: s.ID,
			Symbol:     s.Symbol,
			Sector:     s.Sector,
			Country:    s.Country,
			MarketCap:  s.MarketCap,
			Revenue:    s.Revenue,
			ESGScore:   s.ESGScore,
		})
	}
	return index.ApplyFilters(members, filters), nil
}

func (e *Engine) observe(status string) {
	if e.metrics != nil {
		e.metrics.BacktestsTotal.WithLabelValues(status).Inc()
	}
}

func securityIDs(members []index.Member) []int64 {
	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.SecurityID
	}
	return ids
}
