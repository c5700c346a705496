package index

import (
	"math"

	"github.com/indexlab/backend/internal/domain"
)

const (
	// TradingDaysPerYear is the annualization factor for daily series.
	TradingDaysPerYear = 252

	// RiskFreeRate is the annual risk-free rate assumed for Sharpe ratios.
	RiskFreeRate = 0.02
)

// ComputeMetrics derives risk/return statistics from an index series.
// Fewer than two observations yield zero metrics.
func ComputeMetrics(series []domain.SeriesPoint) domain.PerformanceMetrics {
	var m domain.PerformanceMetrics
	if len(series) < 2 {
		return m
	}

	returns := dailyReturns(series)

	m.TotalReturn = series[len(series)-1].IndexValue/series[0].IndexValue - 1
	m.AnnualizedReturn = math.Pow(1+mean(returns), TradingDaysPerYear) - 1
	m.Volatility = stddev(returns) * math.Sqrt(TradingDaysPerYear)
	m.SharpeRatio = sharpeRatio(returns)
	m.MaxDrawdown = maxDrawdown(returns)
	m.WinRate = winRate(returns)

	return m
}

// dailyReturns computes period-over-period fractional changes,
// skipping observations with a non-positive previous value.
func dailyReturns(series []domain.SeriesPoint) []float64 {
	returns := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		prev := series[i-1].IndexValue
		if prev <= 0 {
			continue
		}
		returns = append(returns, series[i].IndexValue/prev-1)
	}
	return returns
}

// sharpeRatio computes the annualized Sharpe ratio against the
// risk-free rate.
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	sd := stddev(returns)
	if sd == 0 {
		return 0
	}

	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - RiskFreeRate/TradingDaysPerYear
	}

	return mean(excess) / sd * math.Sqrt(TradingDaysPerYear)
}

// maxDrawdown computes the deepest peak-to-trough decline of the
// cumulative return curve. The result is negative or zero.
func maxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	cumulative := 1.0
	peak := 1.0
	worst := 0.0

	for _, r := range returns {
		cumulative *= 1 + r
		if cumulative > peak {
			peak = cumulative
		}
		dd := (cumulative - peak) / peak
		if dd < worst {
			worst = dd
		}
	}

	return worst
}

// winRate is the fraction of positive daily returns
func winRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns))
}

// TrailingSummary derives window returns from historical index values
// ordered by date ascending. Windows shorter than the available history
// report zero.
func TrailingSummary(values []domain.IndexValue) domain.PerformanceSummary {
	var s domain.PerformanceSummary
	if len(values) < 2 {
		return s
	}

	series := make([]domain.SeriesPoint, len(values))
	for i, v := range values {
		series[i] = domain.SeriesPoint{Date: v.Date, IndexValue: v.Value}
	}
	returns := dailyReturns(series)

	s.CurrentValue = values[len(values)-1].Value
	s.Return1D = tailSum(returns, 1)
	s.Return1W = tailSum(returns, 5)
	s.Return1M = tailSum(returns, 20)
	s.Return3M = tailSum(returns, 60)
	s.Return1Y = tailSum(returns, TradingDaysPerYear)
	s.Volatility = stddev(returns) * math.Sqrt(TradingDaysPerYear)
	s.SharpeRatio = sharpeRatio(returns)
	s.MaxDrawdown = maxDrawdown(returns)

	return s
}

// tailSum sums the last n returns; zero when history is shorter than n
func tailSum(returns []float64, n int) float64 {
	if len(returns) < n {
		return 0
	}

	var sum float64
	for _, r := range returns[len(returns)-n:] {
		sum += r
	}
	return sum
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the sample standard deviation
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	m := mean(values)
	var variance float64
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)

	return math.Sqrt(variance)
}
