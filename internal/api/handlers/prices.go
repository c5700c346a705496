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

// PricesHandler handles daily price bar endpoints.
type PricesHandler struct {
	prices     domain.PriceRepository
	securities domain.SecurityRepository
	cache      *redis.Cache
	logger     *logger.Logger
}

// NewPricesHandler creates a new prices handler
func NewPricesHandler(
	prices domain.PriceRepository,
	securities domain.SecurityRepository,
	cache *redis.Cache,
	log *logger.Logger,
) *PricesHandler {
	return &PricesHandler{
		prices:     prices,
		securities: securities,
		cache:      cache,
		logger:     log,
	}
}

// List returns price bars matching the query filters
// GET /api/v1/prices
func (h *PricesHandler) List(w http.ResponseWriter, r *http.Request) {
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

	filter := domain.PriceFilter{
		Symbol: strings.ToUpper(r.URL.Query().Get("symbol")),
		From:   from,
		To:     to,
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 500),
	}

	points, err := h.prices.List(r.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list prices")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve prices")
		return
	}
	if points == nil {
		points = []domain.PricePoint{}
	}

	respondJSON(w, http.StatusOK, points)
}

// Create inserts a single price bar
// POST /api/v1/prices
func (h *PricesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var point domain.PricePoint
	if err := json.NewDecoder(r.Body).Decode(&point); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var verrs domain.ValidationErrors
	if point.SecurityID <= 0 {
		verrs = append(verrs, domain.FieldError{Field: "security_id", Message: "must be a positive integer"})
	}
	if point.Close <= 0 {
		verrs = append(verrs, domain.FieldError{Field: "close_price", Message: "must be positive"})
	}
	if point.Date.IsZero() {
		verrs = append(verrs, domain.FieldError{Field: "date", Message: "must be set"})
	}
	if len(verrs) > 0 {
		respondValidationErrors(w, verrs)
		return
	}

	if err := h.prices.Create(r.Context(), &point); err != nil {
		if err == domain.ErrDuplicate {
			respondError(w, http.StatusConflict, "Price bar already exists for this date")
			return
		}
		h.logger.WithError(err).Error("Failed to create price")
		respondError(w, http.StatusInternalServerError, "Failed to create price")
		return
	}

	respondJSON(w, http.StatusCreated, point)
}

// BulkCreate upserts a batch of price bars
// POST /api/v1/prices/bulk
func (h *PricesHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var points []domain.PricePoint
	if err := json.NewDecoder(r.Body).Decode(&points); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(points) == 0 {
		respondError(w, http.StatusBadRequest, "Empty batch")
		return
	}

	written, err := h.prices.SaveBatch(r.Context(), points)
	if err != nil {
		h.logger.WithError(err).Error("Failed to save price batch")
		respondError(w, http.StatusInternalServerError, "Failed to save price batch")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{"written": written})
}

// Latest returns the most recent quote for a symbol
// GET /api/v1/prices/{symbol}/latest
func (h *PricesHandler) Latest(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	var quote domain.Quote
	err := h.cache.GetOrSet(r.Context(), redis.LatestPriceKey(symbol), &quote, redis.TTLShort,
		func() (interface{}, error) {
			return h.prices.LatestBySymbol(r.Context(), symbol)
		})
	if err != nil {
		respondRepoError(w, err, "No prices for symbol")
		return
	}

	respondJSON(w, http.StatusOK, quote)
}
