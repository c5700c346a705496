package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexlab/backend/internal/api/handlers"
	"github.com/indexlab/backend/internal/auth"
	"github.com/indexlab/backend/internal/backtest"
	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/pkg/config"
	"github.com/indexlab/backend/pkg/logger"
)

type routerSecurities struct {
	domain.SecurityRepository
	universe []domain.Security
}

func (f *routerSecurities) Universe(_ context.Context, _ domain.ConstituentFilters) ([]domain.Security, error) {
	return f.universe, nil
}

type routerPrices struct {
	domain.PriceRepository
	bars []domain.PricePoint
}

func (f *routerPrices) Range(_ context.Context, _ []int64, _, _ time.Time) ([]domain.PricePoint, error) {
	return f.bars, nil
}

type routerUsers struct {
	domain.UserRepository
	byUsername map[string]*domain.User
}

func (f *routerUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	if u, ok := f.byUsername[username]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

type routerCustoms struct {
	saved []*domain.CustomIndex
}

func (f *routerCustoms) Save(_ context.Context, ci *domain.CustomIndex) error {
	ci.ID = int64(len(f.saved) + 1)
	f.saved = append(f.saved, ci)
	return nil
}

func (f *routerCustoms) SaveBacktest(_ context.Context, _ int64, _ *domain.BacktestResult) error {
	return nil
}

func customIndexRouter(t *testing.T, customs *routerCustoms) (http.Handler, *auth.TokenIssuer) {
	t.Helper()

	var bars []domain.PricePoint
	start, _ := time.Parse(domain.DateFormat, "2023-01-02")
	for i, c := range []float64{100, 102, 104, 106, 108} {
		bars = append(bars, domain.PricePoint{SecurityID: 1, Date: start.AddDate(0, 0, i), Close: c})
	}

	engine := backtest.NewEngine(
		&routerSecurities{universe: []domain.Security{{ID: 1, Symbol: "AAPL", IsActive: true}}},
		&routerPrices{bars: bars},
		logger.NewNop(),
		nil,
	)

	issuer := auth.NewTokenIssuer(config.AuthConfig{
		Secret:      "router-test-secret",
		Issuer:      "indexlab",
		TokenExpiry: time.Hour,
	})
	users := &routerUsers{byUsername: map[string]*domain.User{
		"analyst": {ID: 7, Username: "analyst", IsActive: true},
	}}

	router := NewRouter(RouterDeps{
		CustomIndex: handlers.NewCustomIndexHandler(engine, customs, logger.NewNop()),
		TokenIssuer: issuer,
		Users:       users,
		Logger:      logger.NewNop(),
	})
	return router, issuer
}

const customIndexBody = `{
	"name": "Tech Leaders",
	"weighting_method": "equal_weight",
	"start_date": "2023-01-02",
	"end_date": "2023-01-06",
	"save": true
}`

func TestCustomIndexRouteRequiresToken(t *testing.T) {
	customs := &routerCustoms{}
	router, _ := customIndexRouter(t, customs)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/indices/custom-index", strings.NewReader(customIndexBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	assert.Empty(t, customs.saved)
}

func TestCustomIndexRouteAttributesSaveToUser(t *testing.T) {
	customs := &routerCustoms{}
	router, issuer := customIndexRouter(t, customs)

	token, err := issuer.Issue("analyst")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/indices/custom-index", strings.NewReader(customIndexBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.RunID)

	require.Len(t, customs.saved, 1)
	assert.Equal(t, int64(7), customs.saved[0].UserID)
}
