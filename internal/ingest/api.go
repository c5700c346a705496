package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/pkg/config"
	"github.com/indexlab/backend/pkg/httputil"
	"github.com/indexlab/backend/pkg/logger"
)

// APIIngestor pulls daily bars from the external market data API.
// Symbols are fetched concurrently; the shared HTTP client enforces
// the provider rate limit.
type APIIngestor struct {
	client     *httputil.Client
	securities domain.SecurityRepository
	prices     domain.PriceRepository
	cfg        config.MarketDataConfig
	logger     *logger.Logger
}

// NewAPIIngestor creates a new market data API ingestor
func NewAPIIngestor(
	client *httputil.Client,
	securities domain.SecurityRepository,
	prices domain.PriceRepository,
	cfg config.MarketDataConfig,
	log *logger.Logger,
) *APIIngestor {
	return &APIIngestor{
		client:     client,
		securities: securities,
		prices:     prices,
		cfg:        cfg,
		logger:     log,
	}
}

// SymbolResult is the per-symbol outcome of a fetch job.
type SymbolResult struct {
	Symbol  string `json:"symbol"`
	Written int    `json:"written"`
	Error   string `json:"error,omitempty"`
}

// JobReport summarizes one fetch job across all symbols.
type JobReport struct {
	JobID   string         `json:"job_id"`
	Symbols int            `json:"symbols"`
	Written int            `json:"written"`
	Failed  int            `json:"failed"`
	Results []SymbolResult `json:"results"`
}

// apiBar matches the provider's daily bar payload
type apiBar struct {
	Date          string  `json:"date"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	Volume        float64 `json:"volume"`
	AdjustedClose float64 `json:"adjusted_close"`
}

type apiResponse struct {
	Symbol string   `json:"symbol"`
	Bars   []apiBar `json:"bars"`
}

// FetchPrices downloads and stores daily bars for the given symbols.
// An empty symbol list means every active security.
func (i *APIIngestor) FetchPrices(ctx context.Context, symbols []string, from, to time.Time) (*JobReport, error) {
	if len(symbols) == 0 {
		active := true
		securities, err := i.securities.List(ctx, domain.SecurityFilter{IsActive: &active})
		if err != nil {
			return nil, fmt.Errorf("load securities: %w", err)
		}
		for _, s := range securities {
			symbols = append(symbols, s.Symbol)
		}
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols to fetch")
	}

	report := &JobReport{
		JobID:   uuid.NewString(),
		Symbols: len(symbols),
	}

	i.logger.WithFields(map[string]interface{}{
		"job_id":  report.JobID,
		"symbols": len(symbols),
		"from":    from.Format(domain.DateFormat),
		"to":      to.Format(domain.DateFormat),
	}).Info("Price fetch job started")

	workers := i.cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			result := SymbolResult{Symbol: symbol}

			written, err := i.fetchSymbol(gctx, symbol, from, to)
			if err != nil {
				result.Error = err.Error()
				i.logger.WithError(err).WithField("symbol", symbol).Warn("Symbol fetch failed")
			} else {
				result.Written = written
			}

			mu.Lock()
			report.Results = append(report.Results, result)
			if err != nil {
				report.Failed++
			} else {
				report.Written += written
			}
			mu.Unlock()

			// Failures are reported per symbol, not fatal to the job
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	i.logger.WithFields(map[string]interface{}{
		"job_id":  report.JobID,
		"written": report.Written,
		"failed":  report.Failed,
	}).Info("Price fetch job completed")

	return report, nil
}

func (i *APIIngestor) fetchSymbol(ctx context.Context, symbol string, from, to time.Time) (int, error) {
	security, err := i.securities.GetBySymbol(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("unknown symbol: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/daily?%s", i.cfg.BaseURL, url.Values{
		"symbol":  {symbol},
		"from":    {from.Format(domain.DateFormat)},
		"to":      {to.Format(domain.DateFormat)},
		"api_key": {i.cfg.APIKey},
	}.Encode())

	resp, err := i.client.Get(ctx, endpoint)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return 0, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}

	points := make([]domain.PricePoint, 0, len(payload.Bars))
	for _, bar := range payload.Bars {
		date, err := time.Parse(domain.DateFormat, bar.Date)
		if err != nil || bar.Close <= 0 {
			continue
		}
		points = append(points, domain.PricePoint{
			SecurityID:    security.ID,
			Date:          date,
			Open:          bar.Open,
			High:          bar.High,
			Low:           bar.Low,
			Close:         bar.Close,
			Volume:        bar.Volume,
			AdjustedClose: bar.AdjustedClose,
		})
	}

	return i.prices.SaveBatch(ctx, points)
}
