package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/pkg/logger"
)

type fakeSecurities struct {
	domain.SecurityRepository
	bySymbol map[string]*domain.Security
	upserted []*domain.Security
}

func (f *fakeSecurities) List(_ context.Context, _ domain.SecurityFilter) ([]domain.Security, error) {
	var securities []domain.Security
	for _, s := range f.bySymbol {
		securities = append(securities, *s)
	}
	return securities, nil
}

func (f *fakeSecurities) GetBySymbol(_ context.Context, symbol string) (*domain.Security, error) {
	s, ok := f.bySymbol[symbol]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeSecurities) Upsert(_ context.Context, s *domain.Security) (bool, error) {
	f.upserted = append(f.upserted, s)
	_, exists := f.bySymbol[s.Symbol]
	return !exists, nil
}

type fakePrices struct {
	domain.PriceRepository
	saved []domain.PricePoint
}

func (f *fakePrices) SaveBatch(_ context.Context, points []domain.PricePoint) (int, error) {
	f.saved = append(f.saved, points...)
	return len(points), nil
}

func TestIngestSecurities(t *testing.T) {
	securities := &fakeSecurities{bySymbol: map[string]*domain.Security{
		"MSFT": {ID: 2, Symbol: "MSFT"},
	}}
	ingestor := NewCSVIngestor(securities, &fakePrices{}, logger.NewNop())

	csv := strings.Join([]string{
		"symbol,name,sector,country,market_cap",
		"aapl,Apple Inc.,Technology,USA,3000",
		"MSFT,Microsoft,Technology,USA,2000",
		",Nameless,,,100",
		"BAD,Bad Cap,Energy,USA,not-a-number",
	}, "\n")

	report, err := ingestor.IngestSecurities(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Created) // AAPL
	assert.Equal(t, 1, report.Updated) // MSFT
	require.Len(t, report.Errors, 2)
	assert.Equal(t, 4, report.Errors[0].Row)
	assert.Equal(t, 5, report.Errors[1].Row)

	require.Len(t, securities.upserted, 2)
	assert.Equal(t, "AAPL", securities.upserted[0].Symbol)
	assert.Equal(t, "USD", securities.upserted[0].Currency)
	assert.InDelta(t, 3000.0, securities.upserted[0].MarketCap, 1e-9)
}

func TestIngestSecurities_SemicolonSeparator(t *testing.T) {
	securities := &fakeSecurities{bySymbol: map[string]*domain.Security{}}
	ingestor := NewCSVIngestor(securities, &fakePrices{}, logger.NewNop())

	csv := "symbol;name;sector\nAAPL;Apple Inc.;Technology\n"

	report, err := ingestor.IngestSecurities(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Created)
	require.Len(t, securities.upserted, 1)
	assert.Equal(t, "Apple Inc.", securities.upserted[0].Name)
}

func TestIngestSecurities_MissingSymbolColumn(t *testing.T) {
	ingestor := NewCSVIngestor(&fakeSecurities{}, &fakePrices{}, logger.NewNop())

	_, err := ingestor.IngestSecurities(context.Background(), strings.NewReader("name,sector\nApple,Technology\n"))
	assert.ErrorContains(t, err, "symbol")
}

func TestIngestPrices(t *testing.T) {
	securities := &fakeSecurities{bySymbol: map[string]*domain.Security{
		"AAPL": {ID: 1, Symbol: "AAPL"},
	}}
	prices := &fakePrices{}
	ingestor := NewCSVIngestor(securities, prices, logger.NewNop())

	csv := strings.Join([]string{
		"symbol,date,open,high,low,close,volume",
		"AAPL,2023-01-02,99,101,98,100,1000",
		"AAPL,2023-01-03,100,103,100,102,1100",
		"UNKNOWN,2023-01-02,1,1,1,1,1",
		"AAPL,bad-date,1,1,1,1,1",
		"AAPL,2023-01-04,1,1,1,0,1",
	}, "\n")

	report, err := ingestor.IngestPrices(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Created)
	require.Len(t, report.Errors, 3)

	require.Len(t, prices.saved, 2)
	assert.Equal(t, int64(1), prices.saved[0].SecurityID)
	assert.InDelta(t, 100.0, prices.saved[0].Close, 1e-9)
	assert.Equal(t, "2023-01-03", prices.saved[1].Date.Format(domain.DateFormat))
}
