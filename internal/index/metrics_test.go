package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/indexlab/backend/internal/domain"
)

func seriesFrom(values ...float64) []domain.SeriesPoint {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	series := make([]domain.SeriesPoint, len(values))
	for i, v := range values {
		series[i] = domain.SeriesPoint{Date: start.AddDate(0, 0, i), IndexValue: v}
	}
	return series
}

func TestComputeMetrics_TotalReturn(t *testing.T) {
	m := ComputeMetrics(seriesFrom(100, 102, 105, 110))
	assert.InDelta(t, 0.10, m.TotalReturn, 1e-9)
}

func TestComputeMetrics_ShortSeries(t *testing.T) {
	assert.Zero(t, ComputeMetrics(nil))
	assert.Zero(t, ComputeMetrics(seriesFrom(100)))
}

func TestComputeMetrics_FlatSeriesHasNoVolatility(t *testing.T) {
	m := ComputeMetrics(seriesFrom(100, 100, 100, 100))

	assert.Zero(t, m.TotalReturn)
	assert.Zero(t, m.Volatility)
	assert.Zero(t, m.SharpeRatio)
	assert.Zero(t, m.MaxDrawdown)
	assert.Zero(t, m.WinRate)
}

func TestComputeMetrics_WinRate(t *testing.T) {
	// up, down, up, up -> 3 of 4 positive
	m := ComputeMetrics(seriesFrom(100, 110, 105, 108, 112))
	assert.InDelta(t, 0.75, m.WinRate, 1e-9)
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name    string
		returns []float64
		want    float64
	}{
		{
			name:    "no drawdown",
			returns: []float64{0.01, 0.02, 0.01},
			want:    0,
		},
		{
			name:    "single drop",
			returns: []float64{0.10, -0.20},
			want:    -0.20,
		},
		{
			name:    "recovered drop still counts",
			returns: []float64{-0.10, 0.50},
			want:    -0.10,
		},
		{
			name:    "empty",
			returns: nil,
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, maxDrawdown(tt.returns), 1e-9)
		})
	}
}

func TestComputeMetrics_DrawdownIsNegative(t *testing.T) {
	m := ComputeMetrics(seriesFrom(100, 120, 90, 95))
	assert.Less(t, m.MaxDrawdown, 0.0)
	assert.InDelta(t, (90.0-120.0)/120.0, m.MaxDrawdown, 1e-9)
}

func TestStddev(t *testing.T) {
	assert.Zero(t, stddev(nil))
	assert.Zero(t, stddev([]float64{0.5}))

	// Sample stddev of {1,2,3,4} is sqrt(5/3)
	assert.InDelta(t, 1.29099, stddev([]float64{1, 2, 3, 4}), 1e-4)
}

func TestTrailingSummary(t *testing.T) {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	values := make([]domain.IndexValue, 0, 30)
	level := 100.0
	for i := 0; i < 30; i++ {
		level *= 1.01
		values = append(values, domain.IndexValue{
			Date:  start.AddDate(0, 0, i),
			Value: level,
		})
	}

	s := TrailingSummary(values)

	assert.InDelta(t, values[len(values)-1].Value, s.CurrentValue, 1e-9)
	assert.InDelta(t, 0.01, s.Return1D, 1e-9)
	assert.InDelta(t, 0.05, s.Return1W, 1e-9)
	assert.InDelta(t, 0.20, s.Return1M, 1e-9)
	// Windows longer than history report zero
	assert.Zero(t, s.Return3M)
	assert.Zero(t, s.Return1Y)
	assert.GreaterOrEqual(t, s.MaxDrawdown, -1e-9)
}

func TestTrailingSummary_ShortHistory(t *testing.T) {
	assert.Zero(t, TrailingSummary(nil))
	assert.Zero(t, TrailingSummary([]domain.IndexValue{{Value: 100}}))
}
