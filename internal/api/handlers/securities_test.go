package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/pkg/config"
	"github.com/indexlab/backend/pkg/logger"
	"github.com/indexlab/backend/pkg/redis"
)

func (f *fakeSecurities) DistinctSectors(_ context.Context) ([]string, error) {
	return []string{"Energy", "Technology"}, nil
}

func (f *fakeSecurities) DistinctCountries(_ context.Context) ([]string, error) {
	return []string{"DEU", "USA"}, nil
}

func (f *fakeSecurities) GetByID(_ context.Context, id int64) (*domain.Security, error) {
	for i := range f.universe {
		if f.universe[i].ID == id {
			return &f.universe[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeSecurities) Create(_ context.Context, s *domain.Security) error {
	for _, existing := range f.universe {
		if existing.Symbol == s.Symbol {
			return domain.ErrDuplicate
		}
	}
	s.ID = int64(len(f.universe) + 1)
	f.universe = append(f.universe, *s)
	return nil
}

// noopCache builds a cache over a disabled Redis client
func noopCache(t *testing.T) *redis.Cache {
	t.Helper()
	client, err := redis.New(&config.Config{})
	require.NoError(t, err)
	return redis.NewCache(client, "test")
}

func testSecuritiesHandler(t *testing.T) (*SecuritiesHandler, *fakeSecurities) {
	t.Helper()
	securities := &fakeSecurities{universe: []domain.Security{
		{ID: 1, Symbol: "AAPL", Name: "Apple Inc.", Sector: "Technology", IsActive: true},
	}}
	return NewSecuritiesHandler(securities, &fakePrices{}, noopCache(t), logger.NewNop()), securities
}

func TestSectors(t *testing.T) {
	handler, _ := testSecuritiesHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/securities/sectors", nil)
	rec := httptest.NewRecorder()
	handler.Sectors(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, []string{"Energy", "Technology"}, payload["sectors"])
}

func TestCountries(t *testing.T) {
	handler, _ := testSecuritiesHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/securities/countries", nil)
	rec := httptest.NewRecorder()
	handler.Countries(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, []string{"DEU", "USA"}, payload["countries"])
}

func TestGetSecurity(t *testing.T) {
	handler, _ := testSecuritiesHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/securities/1", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "1"})
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var security domain.Security
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &security))
	assert.Equal(t, "AAPL", security.Symbol)
}

func TestGetSecurity_NotFound(t *testing.T) {
	handler, _ := testSecuritiesHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/securities/99", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "99"})
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSecurity(t *testing.T) {
	handler, securities := testSecuritiesHandler(t)

	body := `{"symbol":"msft","name":"Microsoft","sector":"Technology"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/securities", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, securities.universe, 2)
	assert.Equal(t, "MSFT", securities.universe[1].Symbol)
	assert.Equal(t, "USD", securities.universe[1].Currency)
}

func TestCreateSecurity_DuplicateSymbol(t *testing.T) {
	handler, _ := testSecuritiesHandler(t)

	body := `{"symbol":"AAPL","name":"Apple again"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/securities", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateSecurity_EmptySymbol(t *testing.T) {
	handler, _ := testSecuritiesHandler(t)

	body := `{"name":"No Symbol"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/securities", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
