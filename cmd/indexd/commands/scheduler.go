package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/indexlab/backend/internal/index"
	"github.com/indexlab/backend/internal/ingest"
	"github.com/indexlab/backend/internal/realtime"
	"github.com/indexlab/backend/internal/scheduler"
	"github.com/indexlab/backend/internal/scheduler/jobs"
	"github.com/indexlab/backend/internal/store"
	"github.com/indexlab/backend/pkg/config"
	"github.com/indexlab/backend/pkg/database"
	"github.com/indexlab/backend/pkg/httputil"
	"github.com/indexlab/backend/pkg/logger"
	"github.com/indexlab/backend/pkg/metrics"
	"github.com/indexlab/backend/pkg/redis"
)

// schedulerCmd runs the cron job scheduler
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the scheduled jobs",
	Long: `Run the job scheduler.

Jobs:
  nightly_price_refresh    - refresh recent bars from the provider
  daily_index_calculation  - compute values for active definitions
  index_rebalance          - rebalance definitions on their cadence

Example:
  indexd scheduler`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	securities := store.NewSecurityRepository(db.Pool)
	prices := store.NewPriceRepository(db.Pool)
	indexes := store.NewIndexRepository(db.Pool)

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}
	calcEngine := index.NewEngine(securities, prices, indexes, log)

	hub := realtime.NewHub(log)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	httpClient := httputil.New(cfg, log).WithLocalRateLimit(cfg.MarketData.RequestsPerSec)
	if redisClient.Enabled() {
		// Shared limit across scheduler and API processes
		limiter := redis.NewRateLimiter(redisClient, "indexlab")
		httpClient = httpClient.WithRateLimiter(limiter, redis.MarketDataRateLimit)
	}
	apiIngestor := ingest.NewAPIIngestor(httpClient, securities, prices, cfg.MarketData, log)

	sched := scheduler.New(log)
	for _, job := range []scheduler.Job{
		jobs.NewIngestionJob(apiIngestor, m, log),
		jobs.NewCalculationJob(indexes, calcEngine, hub, log),
		jobs.NewRebalanceJob(indexes, calcEngine, log),
	} {
		if err := sched.AddJob(job); err != nil {
			return fmt.Errorf("register job: %w", err)
		}
	}

	sched.Start()

	// Health and job stats for operators
	statsServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      sched.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := statsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Stats server failed")
		}
	}()

	fmt.Printf("Scheduler running, stats on http://localhost:%s/stats, press Ctrl+C to stop\n", cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := statsServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Stats server shutdown failed")
	}

	sched.Stop()
	return nil
}
