package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/pkg/logger"
)

// RowError records a single rejected CSV row.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Report summarizes a CSV ingestion run.
type Report struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Errors  []RowError `json:"errors,omitempty"`
}

// CSVIngestor loads securities and price bars from CSV files. Rows
// that fail to parse are collected in the report instead of aborting
// the run.
type CSVIngestor struct {
	securities domain.SecurityRepository
	prices     domain.PriceRepository
	logger     *logger.Logger
}

// NewCSVIngestor creates a new CSV ingestor
func NewCSVIngestor(securities domain.SecurityRepository, prices domain.PriceRepository, log *logger.Logger) *CSVIngestor {
	return &CSVIngestor{
		securities: securities,
		prices:     prices,
		logger:     log,
	}
}

// IngestSecurities upserts securities from a CSV stream. Expected
// header: symbol,name,exchange,currency,sector,industry,country,
// market_cap,revenue,esg_score (extra columns ignored, order free).
func (i *CSVIngestor) IngestSecurities(ctx context.Context, r io.Reader) (*Report, error) {
	reader, header, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if _, ok := header["symbol"]; !ok {
		return nil, fmt.Errorf("missing required column %q", "symbol")
	}

	report := &Report{}
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.fail(row, "malformed row")
			continue
		}

		security, err := parseSecurity(record, header)
		if err != nil {
			report.fail(row, err.Error())
			continue
		}

		created, err := i.securities.Upsert(ctx, security)
		if err != nil {
			report.fail(row, fmt.Sprintf("save: %v", err))
			continue
		}
		if created {
			report.Created++
		} else {
			report.Updated++
		}
	}

	i.logger.WithFields(map[string]interface{}{
		"created": report.Created,
		"updated": report.Updated,
		"errors":  len(report.Errors),
	}).Info("Securities CSV ingested")

	return report, nil
}

// IngestPrices upserts price bars from a CSV stream. Expected header:
// symbol,date,open,high,low,close,volume (adjusted_close optional).
func (i *CSVIngestor) IngestPrices(ctx context.Context, r io.Reader) (*Report, error) {
	reader, header, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	for _, required := range []string{"symbol", "date", "close"} {
		if _, ok := header[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	report := &Report{}

	// Resolve symbols once per file
	ids := make(map[string]int64)
	var batch []domain.PricePoint

	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.fail(row, "malformed row")
			continue
		}

		symbol := strings.ToUpper(strings.TrimSpace(field(record, header, "symbol")))
		if symbol == "" {
			report.fail(row, "symbol must not be empty")
			continue
		}

		id, ok := ids[symbol]
		if !ok {
			security, err := i.securities.GetBySymbol(ctx, symbol)
			if err != nil {
				report.fail(row, fmt.Sprintf("unknown symbol %s", symbol))
				continue
			}
			id = security.ID
			ids[symbol] = id
		}

		point, err := parsePrice(record, header)
		if err != nil {
			report.fail(row, err.Error())
			continue
		}
		point.SecurityID = id
		batch = append(batch, *point)
	}

	written, err := i.prices.SaveBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("save prices: %w", err)
	}
	report.Created = written

	i.logger.WithFields(map[string]interface{}{
		"written": written,
		"errors":  len(report.Errors),
	}).Info("Prices CSV ingested")

	return report, nil
}

func (r *Report) fail(row int, message string) {
	r.Errors = append(r.Errors, RowError{Row: row, Message: message})
}

// readHeader builds a column index from the first record, detecting
// semicolon-separated files.
func readHeader(r io.Reader) (*csv.Reader, map[string]int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	record, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	if len(record) == 1 && strings.Contains(record[0], ";") {
		record = strings.Split(record[0], ";")
		reader.Comma = ';'
	}

	header := make(map[string]int, len(record))
	for idx, name := range record {
		header[strings.ToLower(strings.TrimSpace(name))] = idx
	}
	return reader, header, nil
}

func field(record []string, header map[string]int, name string) string {
	idx, ok := header[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func floatField(record []string, header map[string]int, name string) (float64, error) {
	raw := field(record, header, name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func parseSecurity(record []string, header map[string]int) (*domain.Security, error) {
	symbol := strings.ToUpper(field(record, header, "symbol"))
	if symbol == "" {
		return nil, fmt.Errorf("symbol must not be empty")
	}

	s := &domain.Security{
		Symbol:   symbol,
		Name:     field(record, header, "name"),
		Exchange: field(record, header, "exchange"),
		Currency: field(record, header, "currency"),
		Sector:   field(record, header, "sector"),
		Industry: field(record, header, "industry"),
		Country:  field(record, header, "country"),
		IsActive: true,
	}
	if s.Currency == "" {
		s.Currency = "USD"
	}

	var err error
	if s.MarketCap, err = floatField(record, header, "market_cap"); err != nil {
		return nil, err
	}
	if s.Revenue, err = floatField(record, header, "revenue"); err != nil {
		return nil, err
	}
	if s.ESGScore, err = floatField(record, header, "esg_score"); err != nil {
		return nil, err
	}
	return s, nil
}

func parsePrice(record []string, header map[string]int) (*domain.PricePoint, error) {
	date, err := time.Parse(domain.DateFormat, field(record, header, "date"))
	if err != nil {
		return nil, fmt.Errorf("invalid date: %q", field(record, header, "date"))
	}

	p := &domain.PricePoint{Date: date}
	if p.Open, err = floatField(record, header, "open"); err != nil {
		return nil, err
	}
	if p.High, err = floatField(record, header, "high"); err != nil {
		return nil, err
	}
	if p.Low, err = floatField(record, header, "low"); err != nil {
		return nil, err
	}
	if p.Close, err = floatField(record, header, "close"); err != nil {
		return nil, err
	}
	if p.Close <= 0 {
		return nil, fmt.Errorf("close must be positive")
	}
	if p.Volume, err = floatField(record, header, "volume"); err != nil {
		return nil, err
	}
	if p.AdjustedClose, err = floatField(record, header, "adjusted_close"); err != nil {
		return nil, err
	}
	return p, nil
}
