package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/pkg/logger"
	"github.com/indexlab/backend/pkg/redis"
)

// SecuritiesHandler handles security master data endpoints.
type SecuritiesHandler struct {
	securities domain.SecurityRepository
	prices     domain.PriceRepository
	cache      *redis.Cache
	logger     *logger.Logger
}

// NewSecuritiesHandler creates a new securities handler
func NewSecuritiesHandler(
	securities domain.SecurityRepository,
	prices domain.PriceRepository,
	cache *redis.Cache,
	log *logger.Logger,
) *SecuritiesHandler {
	return &SecuritiesHandler{
		securities: securities,
		prices:     prices,
		cache:      cache,
		logger:     log,
	}
}

// List returns securities matching the query filters
// GET /api/v1/securities
func (h *SecuritiesHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.SecurityFilter{
		Search:  r.URL.Query().Get("search"),
		Sector:  r.URL.Query().Get("sector"),
		Country: r.URL.Query().Get("country"),
		Offset:  queryInt(r, "offset", 0),
		Limit:   queryInt(r, "limit", 100),
	}
	if raw := r.URL.Query().Get("is_active"); raw != "" {
		active := raw == "true"
		filter.IsActive = &active
	}

	securities, err := h.securities.List(r.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list securities")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve securities")
		return
	}
	if securities == nil {
		securities = []domain.Security{}
	}

	respondJSON(w, http.StatusOK, securities)
}

// Get returns one security by id
// GET /api/v1/securities/{id}
func (h *SecuritiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid security id")
		return
	}

	security, err := h.securities.GetByID(r.Context(), id)
	if err != nil {
		respondRepoError(w, err, "Security not found")
		return
	}

	respondJSON(w, http.StatusOK, security)
}

// GetBySymbol returns one security by ticker symbol
// GET /api/v1/securities/symbol/{symbol}
func (h *SecuritiesHandler) GetBySymbol(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	security, err := h.securities.GetBySymbol(r.Context(), symbol)
	if err != nil {
		respondRepoError(w, err, "Security not found")
		return
	}

	respondJSON(w, http.StatusOK, security)
}

// Create registers a new security
// POST /api/v1/securities
func (h *SecuritiesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var security domain.Security
	if err := json.NewDecoder(r.Body).Decode(&security); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	security.Symbol = strings.ToUpper(strings.TrimSpace(security.Symbol))
	if security.Symbol == "" {
		respondValidationErrors(w, domain.ValidationErrors{
			{Field: "symbol", Message: "symbol must not be empty"},
		})
		return
	}
	if security.Currency == "" {
		security.Currency = "USD"
	}
	security.IsActive = true

	if err := h.securities.Create(r.Context(), &security); err != nil {
		if err == domain.ErrDuplicate {
			respondError(w, http.StatusConflict, "Symbol already registered")
			return
		}
		h.logger.WithError(err).Error("Failed to create security")
		respondError(w, http.StatusInternalServerError, "Failed to create security")
		return
	}

	respondJSON(w, http.StatusCreated, security)
}

// Update applies a partial update to a security
// PUT /api/v1/securities/{id}
func (h *SecuritiesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid security id")
		return
	}

	var update domain.SecurityUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	security, err := h.securities.Update(r.Context(), id, update)
	if err != nil {
		respondRepoError(w, err, "Security not found")
		return
	}

	respondJSON(w, http.StatusOK, security)
}

// Delete removes a security
// DELETE /api/v1/securities/{id}
func (h *SecuritiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid security id")
		return
	}

	if err := h.securities.Delete(r.Context(), id); err != nil {
		respondRepoError(w, err, "Security not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// History returns the price history for one security
// GET /api/v1/securities/{id}/prices
func (h *SecuritiesHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid security id")
		return
	}

	from, err := queryDate(r, "from")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'from' date (expected YYYY-MM-DD)")
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'to' date (expected YYYY-MM-DD)")
		return
	}

	if _, err := h.securities.GetByID(r.Context(), id); err != nil {
		respondRepoError(w, err, "Security not found")
		return
	}

	history, err := h.prices.HistoryBySecurityID(r.Context(), id, from, to, queryInt(r, "limit", 500))
	if err != nil {
		h.logger.WithError(err).Error("Failed to load price history")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve price history")
		return
	}
	if history == nil {
		history = []domain.PricePoint{}
	}

	respondJSON(w, http.StatusOK, history)
}

// Sectors returns the distinct sectors of active securities
// GET /api/v1/securities/sectors
func (h *SecuritiesHandler) Sectors(w http.ResponseWriter, r *http.Request) {
	var sectors []string
	err := h.cache.GetOrSet(r.Context(), redis.SectorsKey(), &sectors, redis.TTLLong,
		func() (interface{}, error) {
			return h.securities.DistinctSectors(r.Context())
		})
	if err != nil {
		h.logger.WithError(err).Error("Failed to list sectors")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve sectors")
		return
	}
	if sectors == nil {
		sectors = []string{}
	}

	respondJSON(w, http.StatusOK, map[string][]string{"sectors": sectors})
}

// Countries returns the distinct countries of active securities
// GET /api/v1/securities/countries
func (h *SecuritiesHandler) Countries(w http.ResponseWriter, r *http.Request) {
	var countries []string
	err := h.cache.GetOrSet(r.Context(), redis.CountriesKey(), &countries, redis.TTLLong,
		func() (interface{}, error) {
			return h.securities.DistinctCountries(r.Context())
		})
	if err != nil {
		h.logger.WithError(err).Error("Failed to list countries")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve countries")
		return
	}
	if countries == nil {
		countries = []string{}
	}

	respondJSON(w, http.StatusOK, map[string][]string{"countries": countries})
}
