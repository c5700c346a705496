package domain

import "time"

// Security is the master record for a listed instrument.
type Security struct {
	ID        int64     `json:"id"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Exchange  string    `json:"exchange,omitempty"`
	Currency  string    `json:"currency"`
	Sector    string    `json:"sector,omitempty"`
	Industry  string    `json:"industry,omitempty"`
	Country   string    `json:"country,omitempty"`
	MarketCap float64   `json:"market_cap,omitempty"`
	Revenue   float64   `json:"revenue,omitempty"`
	ESGScore  float64   `json:"esg_score,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SecurityUpdate carries a partial update; nil fields are left untouched.
type SecurityUpdate struct {
	Name      *string  `json:"name,omitempty"`
	Exchange  *string  `json:"exchange,omitempty"`
	Currency  *string  `json:"currency,omitempty"`
	Sector    *string  `json:"sector,omitempty"`
	Industry  *string  `json:"industry,omitempty"`
	Country   *string  `json:"country,omitempty"`
	MarketCap *float64 `json:"market_cap,omitempty"`
	Revenue   *float64 `json:"revenue,omitempty"`
	ESGScore  *float64 `json:"esg_score,omitempty"`
	IsActive  *bool    `json:"is_active,omitempty"`
}

// SecurityFilter holds list query parameters for securities.
type SecurityFilter struct {
	Search   string // matches symbol or name, case-insensitive
	Sector   string
	Country  string
	IsActive *bool
	Offset   int
	Limit    int
}
