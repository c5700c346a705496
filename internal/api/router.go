package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/indexlab/backend/internal/api/handlers"
	"github.com/indexlab/backend/internal/auth"
	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/internal/realtime"
	"github.com/indexlab/backend/pkg/logger"
	"github.com/indexlab/backend/pkg/metrics"
)

// RouterDeps bundles everything the router needs.
type RouterDeps struct {
	Securities  *handlers.SecuritiesHandler
	Prices      *handlers.PricesHandler
	Indices     *handlers.IndicesHandler
	CustomIndex *handlers.CustomIndexHandler
	Auth        *handlers.AuthHandler
	Ingestion   *handlers.IngestionHandler

	TokenIssuer *auth.TokenIssuer
	Users       domain.UserRepository
	Hub         *realtime.Hub
	Metrics     *metrics.Metrics
	CORSOrigins []string
	Logger      *logger.Logger
}

// NewRouter creates and configures the HTTP router
func NewRouter(deps RouterDeps) http.Handler {
	r := mux.NewRouter()

	// Health check and metrics
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")
	}

	// Realtime index stream
	if deps.Hub != nil {
		upgrader := websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		}
		r.HandleFunc("/ws/indices", realtime.ServeWS(deps.Hub, upgrader, deps.Logger)).Methods("GET")
	}

	api := r.PathPrefix("/api/v1").Subrouter()

	// Auth
	api.HandleFunc("/auth/token", deps.Auth.Token).Methods("POST")
	api.HandleFunc("/auth/register", deps.Auth.Register).Methods("POST")

	// Public read endpoints
	api.HandleFunc("/securities", deps.Securities.List).Methods("GET")
	api.HandleFunc("/securities/sectors", deps.Securities.Sectors).Methods("GET")
	api.HandleFunc("/securities/countries", deps.Securities.Countries).Methods("GET")
	api.HandleFunc("/securities/symbol/{symbol}", deps.Securities.GetBySymbol).Methods("GET")
	api.HandleFunc("/securities/{id:[0-9]+}", deps.Securities.Get).Methods("GET")
	api.HandleFunc("/securities/{id:[0-9]+}/prices", deps.Securities.History).Methods("GET")

	api.HandleFunc("/prices", deps.Prices.List).Methods("GET")
	api.HandleFunc("/prices/{symbol}/latest", deps.Prices.Latest).Methods("GET")

	api.HandleFunc("/indices", deps.Indices.List).Methods("GET")
	api.HandleFunc("/indices/{id:[0-9]+}", deps.Indices.Get).Methods("GET")
	api.HandleFunc("/indices/{id:[0-9]+}/values", deps.Indices.Values).Methods("GET")
	api.HandleFunc("/indices/{id:[0-9]+}/constituents", deps.Indices.Constituents).Methods("GET")
	api.HandleFunc("/indices/{id:[0-9]+}/performance", deps.Indices.Performance).Methods("GET")

	// Mutating endpoints require a valid token
	protected := api.NewRoute().Subrouter()
	protected.Use(authMiddleware(deps.TokenIssuer, deps.Users, deps.Logger))

	// Custom index construction and backtest
	protected.HandleFunc("/indices/custom-index", deps.CustomIndex.Backtest).Methods("POST")

	protected.HandleFunc("/securities", deps.Securities.Create).Methods("POST")
	protected.HandleFunc("/securities/{id:[0-9]+}", deps.Securities.Update).Methods("PUT")
	protected.HandleFunc("/securities/{id:[0-9]+}", deps.Securities.Delete).Methods("DELETE")

	protected.HandleFunc("/prices", deps.Prices.Create).Methods("POST")
	protected.HandleFunc("/prices/bulk", deps.Prices.BulkCreate).Methods("POST")

	protected.HandleFunc("/indices", deps.Indices.Create).Methods("POST")
	protected.HandleFunc("/indices/{id:[0-9]+}", deps.Indices.Update).Methods("PUT")
	protected.HandleFunc("/indices/{id:[0-9]+}", deps.Indices.Delete).Methods("DELETE")
	protected.HandleFunc("/indices/{id:[0-9]+}/calculate", deps.Indices.Calculate).Methods("POST")
	protected.HandleFunc("/indices/{id:[0-9]+}/rebalance", deps.Indices.Rebalance).Methods("POST")
	protected.HandleFunc("/indices/{id:[0-9]+}/backtest", deps.Indices.Backtest).Methods("POST")

	protected.HandleFunc("/ingestion/securities/csv", deps.Ingestion.SecuritiesCSV).Methods("POST")
	protected.HandleFunc("/ingestion/prices/csv", deps.Ingestion.PricesCSV).Methods("POST")
	protected.HandleFunc("/ingestion/prices/fetch", deps.Ingestion.FetchPrices).Methods("POST")
	protected.HandleFunc("/ingestion/reference/enrich", deps.Ingestion.Enrich).Methods("POST")

	// Apply middleware
	r.Use(loggingMiddleware(deps.Logger))
	r.Use(recoveryMiddleware(deps.Logger))
	r.Use(corsMiddleware(deps.CORSOrigins))
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "indexlab-api",
	})
}
