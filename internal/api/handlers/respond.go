package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/indexlab/backend/internal/domain"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondValidationErrors renders field-level validation failures
func respondValidationErrors(w http.ResponseWriter, verrs domain.ValidationErrors) {
	respondJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":   "validation failed",
		"details": verrs,
	})
}

// respondRepoError maps repository sentinel errors to status codes
func respondRepoError(w http.ResponseWriter, err error, notFoundMessage string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, notFoundMessage)
	case errors.Is(err, domain.ErrDuplicate):
		respondError(w, http.StatusConflict, "Resource already exists")
	default:
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// pathID extracts the numeric {id} path variable
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// queryInt parses an integer query parameter with a default
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

// queryDate parses an optional YYYY-MM-DD query parameter
func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse(domain.DateFormat, raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
