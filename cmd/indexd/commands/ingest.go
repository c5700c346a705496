package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/internal/ingest"
	"github.com/indexlab/backend/internal/store"
	"github.com/indexlab/backend/pkg/config"
	"github.com/indexlab/backend/pkg/database"
	"github.com/indexlab/backend/pkg/httputil"
	"github.com/indexlab/backend/pkg/logger"
)

// ingestCmd groups the data loading subcommands
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load securities and prices",
}

var ingestSecuritiesCmd = &cobra.Command{
	Use:   "securities",
	Short: "Ingest securities from a CSV file",
	Long: `Ingest securities master data from a CSV file.

Expected columns: symbol,name,exchange,currency,sector,industry,country,
market_cap,revenue,esg_score. Extra columns are ignored.

Example:
  indexd ingest securities --file securities.csv`,
	RunE: runIngestSecurities,
}

var ingestPricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Ingest prices from a CSV file or the provider API",
	Long: `Ingest daily price bars.

With --file, reads a CSV (columns: symbol,date,open,high,low,close,volume).
Without --file, fetches the date range from the market data provider.

Examples:
  indexd ingest prices --file prices.csv
  indexd ingest prices --from 2023-01-01 --to 2023-12-31
  indexd ingest prices --symbols AAPL,MSFT --from 2023-01-01`,
	RunE: runIngestPrices,
}

var (
	ingestFile    string
	ingestFrom    string
	ingestTo      string
	ingestSymbols []string
)

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.AddCommand(ingestSecuritiesCmd)
	ingestCmd.AddCommand(ingestPricesCmd)

	ingestSecuritiesCmd.Flags().StringVar(&ingestFile, "file", "", "CSV file path (required)")
	ingestPricesCmd.Flags().StringVar(&ingestFile, "file", "", "CSV file path")
	ingestPricesCmd.Flags().StringVar(&ingestFrom, "from", "", "range start (YYYY-MM-DD)")
	ingestPricesCmd.Flags().StringVar(&ingestTo, "to", "", "range end (YYYY-MM-DD)")
	ingestPricesCmd.Flags().StringSliceVar(&ingestSymbols, "symbols", nil, "symbols to fetch (default: all active)")
}

func runIngestSecurities(cmd *cobra.Command, args []string) error {
	if ingestFile == "" {
		return fmt.Errorf("--file is required")
	}

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

	securities := store.NewSecurityRepository(db.Pool)
	prices := store.NewPriceRepository(db.Pool)
	ingestor := ingest.NewCSVIngestor(securities, prices, log)

	f, err := os.Open(ingestFile)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	report, err := ingestor.IngestSecurities(context.Background(), f)
	if err != nil {
		return err
	}

	fmt.Printf("Created %d, updated %d, %d errors\n", report.Created, report.Updated, len(report.Errors))
	for _, rowErr := range report.Errors {
		fmt.Printf("  row %d: %s\n", rowErr.Row, rowErr.Message)
	}
	return nil
}

func runIngestPrices(cmd *cobra.Command, args []string) error {
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

	securities := store.NewSecurityRepository(db.Pool)
	prices := store.NewPriceRepository(db.Pool)

	if ingestFile != "" {
		ingestor := ingest.NewCSVIngestor(securities, prices, log)

		f, err := os.Open(ingestFile)
		if err != nil {
			return fmt.Errorf("open file: %w", err)
		}
		defer f.Close()

		report, err := ingestor.IngestPrices(context.Background(), f)
		if err != nil {
			return err
		}

		fmt.Printf("Wrote %d bars, %d errors\n", report.Created, len(report.Errors))
		for _, rowErr := range report.Errors {
			fmt.Printf("  row %d: %s\n", rowErr.Row, rowErr.Message)
		}
		return nil
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if ingestFrom != "" {
		if from, err = time.Parse(domain.DateFormat, ingestFrom); err != nil {
			return fmt.Errorf("invalid --from date")
		}
	}
	if ingestTo != "" {
		if to, err = time.Parse(domain.DateFormat, ingestTo); err != nil {
			return fmt.Errorf("invalid --to date")
		}
	}

	httpClient := httputil.New(cfg, log).WithLocalRateLimit(cfg.MarketData.RequestsPerSec)
	ingestor := ingest.NewAPIIngestor(httpClient, securities, prices, cfg.MarketData, log)

	report, err := ingestor.FetchPrices(context.Background(), ingestSymbols, from, to)
	if err != nil {
		return err
	}

	fmt.Printf("Job %s: wrote %d bars across %d symbols, %d failed\n",
		report.JobID, report.Written, report.Symbols, report.Failed)
	return nil
}
