package domain

import "time"

// PricePoint is a single daily OHLCV bar for a security.
type PricePoint struct {
	ID            int64     `json:"id"`
	SecurityID    int64     `json:"security_id"`
	Date          time.Time `json:"date"`
	Open          float64   `json:"open_price,omitempty"`
	High          float64   `json:"high_price,omitempty"`
	Low           float64   `json:"low_price,omitempty"`
	Close         float64   `json:"close_price"`
	Volume        float64   `json:"volume,omitempty"`
	AdjustedClose float64   `json:"adjusted_close,omitempty"`
	Dividend      float64   `json:"dividend,omitempty"`
	SplitRatio    float64   `json:"split_ratio,omitempty"`
}

// PriceFilter holds list query parameters for price data.
type PriceFilter struct {
	Symbol string
	From   *time.Time
	To     *time.Time
	Offset int
	Limit  int
}

// Quote is the latest price snapshot for a symbol.
type Quote struct {
	Symbol       string    `json:"symbol"`
	SecurityName string    `json:"security_name"`
	LatestPrice  float64   `json:"latest_price"`
	Date         time.Time `json:"date"`
	Volume       float64   `json:"volume,omitempty"`
}
