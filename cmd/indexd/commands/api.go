package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/indexlab/backend/internal/api"
	"github.com/indexlab/backend/internal/api/handlers"
	"github.com/indexlab/backend/internal/auth"
	"github.com/indexlab/backend/internal/backtest"
	"github.com/indexlab/backend/internal/index"
	"github.com/indexlab/backend/internal/ingest"
	"github.com/indexlab/backend/internal/realtime"
	"github.com/indexlab/backend/internal/store"
	"github.com/indexlab/backend/pkg/config"
	"github.com/indexlab/backend/pkg/database"
	"github.com/indexlab/backend/pkg/httputil"
	"github.com/indexlab/backend/pkg/logger"
	"github.com/indexlab/backend/pkg/metrics"
	"github.com/indexlab/backend/pkg/redis"
)

// apiCmd starts the REST API server
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Start the REST API server.

Serves the securities, prices and index endpoints, the custom index
backtest endpoint and the realtime WebSocket stream.

Example:
  indexd api
  indexd api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Connected to database")

	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, "indexlab")

	// Repositories
	securities := store.NewSecurityRepository(db.Pool)
	prices := store.NewPriceRepository(db.Pool)
	indexes := store.NewIndexRepository(db.Pool)
	users := store.NewUserRepository(db.Pool)
	customs := store.NewCustomIndexRepository(db.Pool)

	// Engines and services
	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}
	calcEngine := index.NewEngine(securities, prices, indexes, log)
	backtestEngine := backtest.NewEngine(securities, prices, log, m)
	issuer := auth.NewTokenIssuer(cfg.Auth)

	hub := realtime.NewHub(log)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	// Ingestion
	httpClient := httputil.New(cfg, log).WithLocalRateLimit(cfg.MarketData.RequestsPerSec)
	csvIngestor := ingest.NewCSVIngestor(securities, prices, log)
	apiIngestor := ingest.NewAPIIngestor(httpClient, securities, prices, cfg.MarketData, log)
	scraper := ingest.NewReferenceScraper(httpClient, securities, cfg.MarketData.ReferenceBaseURL, log)

	router := api.NewRouter(api.RouterDeps{
		Securities:  handlers.NewSecuritiesHandler(securities, prices, cache, log),
		Prices:      handlers.NewPricesHandler(prices, securities, cache, log),
		Indices:     handlers.NewIndicesHandler(indexes, calcEngine, hub, m, log),
		CustomIndex: handlers.NewCustomIndexHandler(backtestEngine, customs, log),
		Auth:        handlers.NewAuthHandler(users, issuer, log),
		Ingestion:   handlers.NewIngestionHandler(csvIngestor, apiIngestor, scraper, log),
		TokenIssuer: issuer,
		Users:       users,
		Hub:         hub,
		Metrics:     m,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      log,
	})

	server := api.New(cfg, log, router)
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
