package domain

import (
	"fmt"
	"time"
)

// WeightingMethod determines each constituent's contribution to the index value.
type WeightingMethod string

const (
	EqualWeight     WeightingMethod = "equal_weight"
	MarketCapWeight WeightingMethod = "market_cap_weight"
	PriceWeight     WeightingMethod = "price_weight"
	RevenueWeight   WeightingMethod = "revenue_weight"
	ESGWeight       WeightingMethod = "esg_weight"
)

// ParseWeightingMethod validates and converts a string to a WeightingMethod
func ParseWeightingMethod(s string) (WeightingMethod, error) {
	switch WeightingMethod(s) {
	case EqualWeight, MarketCapWeight, PriceWeight, RevenueWeight, ESGWeight:
		return WeightingMethod(s), nil
	default:
		return "", fmt.Errorf("unknown weighting method: %q", s)
	}
}

// Valid reports whether the method is one of the supported values
func (m WeightingMethod) Valid() bool {
	_, err := ParseWeightingMethod(string(m))
	return err == nil
}

// RebalanceFrequency is the cadence at which constituent weights are recomputed.
type RebalanceFrequency string

const (
	RebalanceDaily     RebalanceFrequency = "daily"
	RebalanceWeekly    RebalanceFrequency = "weekly"
	RebalanceMonthly   RebalanceFrequency = "monthly"
	RebalanceQuarterly RebalanceFrequency = "quarterly"
)

// Valid reports whether the frequency is one of the supported values
func (f RebalanceFrequency) Valid() bool {
	switch f {
	case RebalanceDaily, RebalanceWeekly, RebalanceMonthly, RebalanceQuarterly:
		return true
	}
	return false
}

// Days returns the approximate rebalancing interval in calendar days
func (f RebalanceFrequency) Days() int {
	switch f {
	case RebalanceDaily:
		return 1
	case RebalanceWeekly:
		return 7
	case RebalanceQuarterly:
		return 91
	default:
		return 30
	}
}

// IndexDefinition holds the rules of a managed index.
type IndexDefinition struct {
	ID                 int64              `json:"id"`
	Name               string             `json:"name"`
	Description        string             `json:"description,omitempty"`
	WeightingMethod    WeightingMethod    `json:"weighting_method"`
	RebalanceFrequency RebalanceFrequency `json:"rebalance_frequency"`
	Filters            ConstituentFilters `json:"filters"`
	IsActive           bool               `json:"is_active"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Validate checks definition invariants before persisting
func (d *IndexDefinition) Validate() error {
	var errs ValidationErrors

	if d.Name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name must not be empty"})
	}
	if !d.WeightingMethod.Valid() {
		errs = append(errs, FieldError{Field: "weighting_method", Message: "unknown weighting method"})
	}
	if d.RebalanceFrequency != "" && !d.RebalanceFrequency.Valid() {
		errs = append(errs, FieldError{Field: "rebalance_frequency", Message: "unknown rebalance frequency"})
	}
	errs = append(errs, d.Filters.validate()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// IndexDefinitionUpdate carries a partial update; nil fields are left untouched.
type IndexDefinitionUpdate struct {
	Description        *string             `json:"description,omitempty"`
	WeightingMethod    *WeightingMethod    `json:"weighting_method,omitempty"`
	RebalanceFrequency *RebalanceFrequency `json:"rebalance_frequency,omitempty"`
	Filters            *ConstituentFilters `json:"filters,omitempty"`
	IsActive           *bool               `json:"is_active,omitempty"`
}

// IndexValue is a computed index level for a specific date.
type IndexValue struct {
	ID          int64     `json:"id"`
	IndexID     int64     `json:"index_id"`
	Date        time.Time `json:"date"`
	Value       float64   `json:"index_value"`
	TotalReturn float64   `json:"total_return,omitempty"`
	Volatility  float64   `json:"volatility,omitempty"`
	SharpeRatio float64   `json:"sharpe_ratio,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Constituent is a security's membership in an index as of a date.
type Constituent struct {
	ID            int64     `json:"id"`
	IndexID       int64     `json:"index_id"`
	SecurityID    int64     `json:"security_id"`
	Symbol        string    `json:"symbol"`
	Date          time.Time `json:"date"`
	Weight        float64   `json:"weight"`
	MarketCap     float64   `json:"market_cap,omitempty"`
	IsNewAddition bool      `json:"is_new_addition,omitempty"`
	IsRemoval     bool      `json:"is_removal,omitempty"`
}

// RebalanceReport describes the constituent changes produced by a rebalance.
type RebalanceReport struct {
	IndexID   int64     `json:"index_id"`
	Date      time.Time `json:"date"`
	Additions []string  `json:"additions"`
	Removals  []string  `json:"removals"`
	Count     int       `json:"new_constituents_count"`
}

// PerformanceSummary holds trailing-window performance for an index.
type PerformanceSummary struct {
	IndexID      int64   `json:"index_id"`
	IndexName    string  `json:"index_name"`
	CurrentValue float64 `json:"current_value"`
	Return1D     float64 `json:"total_return_1d"`
	Return1W     float64 `json:"total_return_1w"`
	Return1M     float64 `json:"total_return_1m"`
	Return3M     float64 `json:"total_return_3m"`
	Return1Y     float64 `json:"total_return_1y"`
	Volatility   float64 `json:"volatility"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	MaxDrawdown  float64 `json:"max_drawdown"`
}
