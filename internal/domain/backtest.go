package domain

import "time"

// SeriesPoint is one observation in a computed index series.
type SeriesPoint struct {
	Date         time.Time `json:"date"`
	IndexValue   float64   `json:"index_value"`
	Constituents int       `json:"constituents_count,omitempty"`
}

// PerformanceMetrics are the risk/return statistics of a backtest.
// Returns and drawdown are fractions (0.10 = 10%), annualized over
// 252 trading days.
type PerformanceMetrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	WinRate          float64 `json:"win_rate"`
}

// BacktestResult is the outcome of simulating an index configuration
// over a historical date range.
type BacktestResult struct {
	RunID       string             `json:"run_id"`
	Name        string             `json:"name"`
	StartDate   time.Time          `json:"start_date"`
	EndDate     time.Time          `json:"end_date"`
	IndexSeries []SeriesPoint      `json:"index_series"`
	Metrics     PerformanceMetrics `json:"performance_metrics"`
	TradingDays int                `json:"trading_days"`
	Elapsed     time.Duration      `json:"-"`
}
