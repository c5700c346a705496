package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/internal/ingest"
	"github.com/indexlab/backend/pkg/logger"
)

// maxCSVUpload caps CSV upload size at 20 MiB
const maxCSVUpload = 20 << 20

// IngestionHandler handles data loading endpoints.
type IngestionHandler struct {
	csv      *ingest.CSVIngestor
	api      *ingest.APIIngestor
	scraper  *ingest.ReferenceScraper
	logger   *logger.Logger
}

// NewIngestionHandler creates a new ingestion handler.
// api and scraper may be nil when no provider is configured.
func NewIngestionHandler(
	csvIngestor *ingest.CSVIngestor,
	apiIngestor *ingest.APIIngestor,
	scraper *ingest.ReferenceScraper,
	log *logger.Logger,
) *IngestionHandler {
	return &IngestionHandler{
		csv:     csvIngestor,
		api:     apiIngestor,
		scraper: scraper,
		logger:  log,
	}
}

// SecuritiesCSV ingests a securities CSV upload
// POST /api/v1/ingestion/securities/csv
func (h *IngestionHandler) SecuritiesCSV(w http.ResponseWriter, r *http.Request) {
	report, err := h.csv.IngestSecurities(r.Context(), http.MaxBytesReader(w, r.Body, maxCSVUpload))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// PricesCSV ingests a prices CSV upload
// POST /api/v1/ingestion/prices/csv
func (h *IngestionHandler) PricesCSV(w http.ResponseWriter, r *http.Request) {
	report, err := h.csv.IngestPrices(r.Context(), http.MaxBytesReader(w, r.Body, maxCSVUpload))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// fetchRequest selects symbols and a date range for an API fetch
type fetchRequest struct {
	Symbols []string `json:"symbols,omitempty"`
	From    string   `json:"from"`
	To      string   `json:"to"`
}

// FetchPrices pulls bars from the market data provider
// POST /api/v1/ingestion/prices/fetch
func (h *IngestionHandler) FetchPrices(w http.ResponseWriter, r *http.Request) {
	if h.api == nil {
		respondError(w, http.StatusServiceUnavailable, "Market data provider not configured")
		return
	}

	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	var err error
	if req.From != "" {
		if from, err = time.Parse(domain.DateFormat, req.From); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'from' date (expected YYYY-MM-DD)")
			return
		}
	}
	if req.To != "" {
		if to, err = time.Parse(domain.DateFormat, req.To); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'to' date (expected YYYY-MM-DD)")
			return
		}
	}

	report, err := h.api.FetchPrices(r.Context(), req.Symbols, from, to)
	if err != nil {
		h.logger.WithError(err).Error("Price fetch failed")
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// Enrich scrapes reference data for securities missing classification
// POST /api/v1/ingestion/reference/enrich
func (h *IngestionHandler) Enrich(w http.ResponseWriter, r *http.Request) {
	if h.scraper == nil {
		respondError(w, http.StatusServiceUnavailable, "Reference data source not configured")
		return
	}

	enriched, err := h.scraper.EnrichSecurities(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Reference enrichment failed")
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{"enriched": enriched})
}
