package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/indexlab/backend/internal/backtest"
	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/pkg/logger"
)

// CustomIndexHandler handles ad-hoc index construction and backtesting.
type CustomIndexHandler struct {
	engine  *backtest.Engine
	customs domain.CustomIndexRepository
	logger  *logger.Logger
}

// NewCustomIndexHandler creates a new custom index handler.
// customs may be nil when persistence is disabled.
func NewCustomIndexHandler(engine *backtest.Engine, customs domain.CustomIndexRepository, log *logger.Logger) *CustomIndexHandler {
	return &CustomIndexHandler{
		engine:  engine,
		customs: customs,
		logger:  log,
	}
}

// customIndexRequest wraps the configuration with persistence options
type customIndexRequest struct {
	domain.IndexConfiguration
	Save     bool `json:"save,omitempty"`
	IsPublic bool `json:"is_public,omitempty"`
}

// Backtest validates an index configuration, simulates it over the
// requested range and returns the equity series with metrics.
// POST /api/v1/indices/custom-index
func (h *CustomIndexHandler) Backtest(w http.ResponseWriter, r *http.Request) {
	var req customIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.engine.Run(r.Context(), &req.IndexConfiguration)
	if err != nil {
		var verrs domain.ValidationErrors
		if errors.As(err, &verrs) {
			respondValidationErrors(w, verrs)
			return
		}
		h.logger.WithError(err).Error("Custom index backtest failed")
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if req.Save && h.customs != nil {
		custom := &domain.CustomIndex{
			UserID:   userID(r),
			Config:   req.IndexConfiguration,
			IsPublic: req.IsPublic,
		}
		if err := h.customs.Save(r.Context(), custom); err != nil {
			h.logger.WithError(err).Warn("Failed to save custom index")
		} else if err := h.customs.SaveBacktest(r.Context(), custom.ID, result); err != nil {
			h.logger.WithError(err).Warn("Failed to save backtest result")
		}
	}

	respondJSON(w, http.StatusOK, result)
}
