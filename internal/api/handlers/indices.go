package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/internal/index"
	"github.com/indexlab/backend/internal/realtime"
	"github.com/indexlab/backend/pkg/logger"
	"github.com/indexlab/backend/pkg/metrics"
)

// IndicesHandler handles managed index definition endpoints.
type IndicesHandler struct {
	indexes domain.IndexRepository
	engine  *index.Engine
	hub     *realtime.Hub
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewIndicesHandler creates a new indices handler. hub and m may be nil.
func NewIndicesHandler(
	indexes domain.IndexRepository,
	engine *index.Engine,
	hub *realtime.Hub,
	m *metrics.Metrics,
	log *logger.Logger,
) *IndicesHandler {
	return &IndicesHandler{
		indexes: indexes,
		engine:  engine,
		hub:     hub,
		metrics: m,
		logger:  log,
	}
}

// List returns index definitions
// GET /api/v1/indices
func (h *IndicesHandler) List(w http.ResponseWriter, r *http.Request) {
	var isActive *bool
	if raw := r.URL.Query().Get("is_active"); raw != "" {
		active := raw == "true"
		isActive = &active
	}

	defs, err := h.indexes.List(r.Context(), isActive, queryInt(r, "offset", 0), queryInt(r, "limit", 100))
	if err != nil {
		h.logger.WithError(err).Error("Failed to list indices")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve indices")
		return
	}
	if defs == nil {
		defs = []domain.IndexDefinition{}
	}

	respondJSON(w, http.StatusOK, defs)
}

// Get returns one index definition
// GET /api/v1/indices/{id}
func (h *IndicesHandler) Get(w http.ResponseWriter, r *http.Request) {
	def, ok := h.definition(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, def)
}

// Create registers a new index definition
// POST /api/v1/indices
func (h *IndicesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var def domain.IndexDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if def.RebalanceFrequency == "" {
		def.RebalanceFrequency = domain.RebalanceMonthly
	}
	def.IsActive = true

	if err := def.Validate(); err != nil {
		var verrs domain.ValidationErrors
		if errors.As(err, &verrs) {
			respondValidationErrors(w, verrs)
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.indexes.Create(r.Context(), &def); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			respondError(w, http.StatusConflict, "Index name already in use")
			return
		}
		h.logger.WithError(err).Error("Failed to create index")
		respondError(w, http.StatusInternalServerError, "Failed to create index")
		return
	}

	respondJSON(w, http.StatusCreated, def)
}

// Update applies a partial update to an index definition
// PUT /api/v1/indices/{id}
func (h *IndicesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid index id")
		return
	}

	var update domain.IndexDefinitionUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if update.WeightingMethod != nil && !update.WeightingMethod.Valid() {
		respondValidationErrors(w, domain.ValidationErrors{
			{Field: "weighting_method", Message: "unknown weighting method"},
		})
		return
	}
	if update.RebalanceFrequency != nil && !update.RebalanceFrequency.Valid() {
		respondValidationErrors(w, domain.ValidationErrors{
			{Field: "rebalance_frequency", Message: "unknown rebalance frequency"},
		})
		return
	}

	def, err := h.indexes.Update(r.Context(), id, update)
	if err != nil {
		respondRepoError(w, err, "Index not found")
		return
	}

	respondJSON(w, http.StatusOK, def)
}

// Delete removes an index definition
// DELETE /api/v1/indices/{id}
func (h *IndicesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid index id")
		return
	}

	if err := h.indexes.Delete(r.Context(), id); err != nil {
		respondRepoError(w, err, "Index not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Values returns computed index levels for a date range
// GET /api/v1/indices/{id}/values
func (h *IndicesHandler) Values(w http.ResponseWriter, r *http.Request) {
	def, ok := h.definition(w, r)
	if !ok {
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

	values, err := h.indexes.Values(r.Context(), def.ID, from, to, queryInt(r, "limit", 0))
	if err != nil {
		h.logger.WithError(err).Error("Failed to load index values")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve index values")
		return
	}
	if values == nil {
		values = []domain.IndexValue{}
	}

	respondJSON(w, http.StatusOK, values)
}

// Constituents returns the membership snapshot as of a date
// GET /api/v1/indices/{id}/constituents
func (h *IndicesHandler) Constituents(w http.ResponseWriter, r *http.Request) {
	def, ok := h.definition(w, r)
	if !ok {
		return
	}

	date, err := h.dateOrToday(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'date' (expected YYYY-MM-DD)")
		return
	}

	constituents, err := h.indexes.ConstituentsAsOf(r.Context(), def.ID, date)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load constituents")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve constituents")
		return
	}
	if constituents == nil {
		constituents = []domain.Constituent{}
	}

	respondJSON(w, http.StatusOK, constituents)
}

// Calculate computes and stores the index value for a date
// POST /api/v1/indices/{id}/calculate
func (h *IndicesHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	def, ok := h.definition(w, r)
	if !ok {
		return
	}

	date, err := h.dateOrToday(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'date' (expected YYYY-MM-DD)")
		return
	}

	began := time.Now()
	valuation, err := h.engine.ValueAt(r.Context(), def, date)
	if err != nil {
		h.logger.WithError(err).WithField("index_id", def.ID).Error("Index calculation failed")
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.observeCalculation(def.WeightingMethod, time.Since(began))

	value := &domain.IndexValue{
		IndexID: def.ID,
		Date:    valuation.Date,
		Value:   valuation.IndexValue,
	}
	if err := h.indexes.SaveValue(r.Context(), value); err != nil {
		h.logger.WithError(err).Error("Failed to save index value")
		respondError(w, http.StatusInternalServerError, "Failed to save index value")
		return
	}

	if h.hub != nil {
		h.hub.Publish(realtime.IndexTick{
			IndexID:    def.ID,
			Name:       def.Name,
			Date:       valuation.Date,
			IndexValue: valuation.IndexValue,
		})
	}

	respondJSON(w, http.StatusOK, valuation)
}

// Rebalance recomputes the constituent set for a date
// POST /api/v1/indices/{id}/rebalance
func (h *IndicesHandler) Rebalance(w http.ResponseWriter, r *http.Request) {
	def, ok := h.definition(w, r)
	if !ok {
		return
	}

	date, err := h.dateOrToday(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'date' (expected YYYY-MM-DD)")
		return
	}

	report, err := h.engine.Rebalance(r.Context(), def, date)
	if err != nil {
		h.logger.WithError(err).WithField("index_id", def.ID).Error("Rebalance failed")
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// Performance returns trailing-window performance for an index
// GET /api/v1/indices/{id}/performance
func (h *IndicesHandler) Performance(w http.ResponseWriter, r *http.Request) {
	def, ok := h.definition(w, r)
	if !ok {
		return
	}

	values, err := h.indexes.Values(r.Context(), def.ID, nil, nil, 0)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load index values")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve index values")
		return
	}
	if len(values) < 2 {
		respondError(w, http.StatusUnprocessableEntity, "Not enough history for performance metrics")
		return
	}

	summary := index.TrailingSummary(values)
	summary.IndexID = def.ID
	summary.IndexName = def.Name

	respondJSON(w, http.StatusOK, summary)
}

// backtestRequest is the date range for backtesting a saved definition
type backtestRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Backtest simulates a saved definition over a historical range
// POST /api/v1/indices/{id}/backtest
func (h *IndicesHandler) Backtest(w http.ResponseWriter, r *http.Request) {
	def, ok := h.definition(w, r)
	if !ok {
		return
	}

	var req backtestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	start, err := time.Parse(domain.DateFormat, req.StartDate)
	if err != nil {
		respondValidationErrors(w, domain.ValidationErrors{
			{Field: "start_date", Message: "must be an ISO date (YYYY-MM-DD)"},
		})
		return
	}
	end, err := time.Parse(domain.DateFormat, req.EndDate)
	if err != nil {
		respondValidationErrors(w, domain.ValidationErrors{
			{Field: "end_date", Message: "must be an ISO date (YYYY-MM-DD)"},
		})
		return
	}
	if start.After(end) {
		respondValidationErrors(w, domain.ValidationErrors{
			{Field: "start_date", Message: "must not be after end_date"},
		})
		return
	}

	series, err := h.engine.Series(r.Context(), def, start, end)
	if err != nil {
		h.logger.WithError(err).WithField("index_id", def.ID).Error("Backtest failed")
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if len(series) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "No price data in the requested range")
		return
	}

	respondJSON(w, http.StatusOK, domain.BacktestResult{
		Name:        def.Name,
		StartDate:   start,
		EndDate:     end,
		IndexSeries: series,
		Metrics:     index.ComputeMetrics(series),
		TradingDays: len(series),
	})
}

// definition loads the index definition for the {id} path variable
func (h *IndicesHandler) definition(w http.ResponseWriter, r *http.Request) (*domain.IndexDefinition, bool) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid index id")
		return nil, false
	}

	def, err := h.indexes.GetByID(r.Context(), id)
	if err != nil {
		respondRepoError(w, err, "Index not found")
		return nil, false
	}
	return def, true
}

// dateOrToday parses the 'date' query parameter, defaulting to today
func (h *IndicesHandler) dateOrToday(r *http.Request) (time.Time, error) {
	date, err := queryDate(r, "date")
	if err != nil {
		return time.Time{}, err
	}
	if date == nil {
		now := time.Now().UTC().Truncate(24 * time.Hour)
		return now, nil
	}
	return *date, nil
}

func (h *IndicesHandler) observeCalculation(method domain.WeightingMethod, elapsed time.Duration) {
	if h.metrics == nil {
		return
	}
	h.metrics.IndexCalculationsTotal.WithLabelValues(string(method)).Inc()
	h.metrics.IndexCalculationDuration.WithLabelValues(string(method)).Observe(elapsed.Seconds())
}
