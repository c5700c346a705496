package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateFormat is the wire format for all dates in the API.
const DateFormat = "2006-01-02"

// FieldError describes a single invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors aggregates field errors into a single error value.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(parts, "; ")
}

// ConstituentFilters narrows the security universe for an index.
type ConstituentFilters struct {
	Sectors         []string `json:"sectors,omitempty"`
	Countries       []string `json:"countries,omitempty"`
	MinMarketCap    *float64 `json:"min_market_cap,omitempty"`
	MaxMarketCap    *float64 `json:"max_market_cap,omitempty"`
	MaxConstituents *int     `json:"max_constituents,omitempty"`
}

func (f ConstituentFilters) validate() ValidationErrors {
	var errs ValidationErrors

	if f.MinMarketCap != nil && *f.MinMarketCap <= 0 {
		errs = append(errs, FieldError{Field: "filters.min_market_cap", Message: "must be positive"})
	}
	if f.MaxMarketCap != nil && *f.MaxMarketCap <= 0 {
		errs = append(errs, FieldError{Field: "filters.max_market_cap", Message: "must be positive"})
	}
	if f.MinMarketCap != nil && f.MaxMarketCap != nil && *f.MinMarketCap > *f.MaxMarketCap {
		errs = append(errs, FieldError{Field: "filters.min_market_cap", Message: "must not exceed max_market_cap"})
	}
	if f.MaxConstituents != nil && *f.MaxConstituents <= 0 {
		errs = append(errs, FieldError{Field: "filters.max_constituents", Message: "must be a positive integer"})
	}

	return errs
}

// IndexConfiguration is the ad-hoc index built by the Index Builder wizard.
// It is submitted once per backtest and never partially persisted.
type IndexConfiguration struct {
	Name            string             `json:"name"`
	Description     string             `json:"description,omitempty"`
	Filters         ConstituentFilters `json:"filters"`
	WeightingMethod WeightingMethod    `json:"weighting_method"`
	StartDate       string             `json:"start_date"`
	EndDate         string             `json:"end_date"`
}

// Validate checks all configuration invariants. It returns a
// ValidationErrors value listing every violated field.
func (c *IndexConfiguration) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name must not be empty"})
	}
	if !c.WeightingMethod.Valid() {
		errs = append(errs, FieldError{Field: "weighting_method", Message: "unknown weighting method"})
	}

	start, startErr := time.Parse(DateFormat, c.StartDate)
	if startErr != nil {
		errs = append(errs, FieldError{Field: "start_date", Message: "must be an ISO date (YYYY-MM-DD)"})
	}
	end, endErr := time.Parse(DateFormat, c.EndDate)
	if endErr != nil {
		errs = append(errs, FieldError{Field: "end_date", Message: "must be an ISO date (YYYY-MM-DD)"})
	}
	if startErr == nil && endErr == nil && start.After(end) {
		errs = append(errs, FieldError{Field: "start_date", Message: "must not be after end_date"})
	}

	errs = append(errs, c.Filters.validate()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Period returns the parsed backtest date range. Validate must pass first.
func (c *IndexConfiguration) Period() (time.Time, time.Time, error) {
	start, err := time.Parse(DateFormat, c.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date: %w", err)
	}
	end, err := time.Parse(DateFormat, c.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date: %w", err)
	}
	return start, end, nil
}

// CustomIndex is a persisted, user-owned index configuration.
type CustomIndex struct {
	ID        int64              `json:"id"`
	UserID    int64              `json:"user_id"`
	Config    IndexConfiguration `json:"config"`
	IsPublic  bool               `json:"is_public"`
	CreatedAt time.Time          `json:"created_at"`
}
