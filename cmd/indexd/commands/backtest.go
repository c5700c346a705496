package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/indexlab/backend/internal/backtest"
	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/internal/store"
	"github.com/indexlab/backend/pkg/config"
	"github.com/indexlab/backend/pkg/database"
	"github.com/indexlab/backend/pkg/logger"
)

// backtestCmd runs an ad-hoc index backtest from the command line
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest an ad-hoc index configuration",
	Long: `Simulate a custom index over a historical date range.

Example:
  indexd backtest --name "Tech Leaders" --method market_cap_weight \
    --sectors Technology --top 50 --start 2020-01-01 --end 2023-12-31`,
	RunE: runBacktest,
}

var (
	btName      string
	btMethod    string
	btStart     string
	btEnd       string
	btSectors   []string
	btCountries []string
	btMinCap    float64
	btMaxCap    float64
	btTop       int
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&btName, "name", "cli-backtest", "index name")
	backtestCmd.Flags().StringVar(&btMethod, "method", "equal_weight", "weighting method")
	backtestCmd.Flags().StringVar(&btStart, "start", "", "start date (YYYY-MM-DD, required)")
	backtestCmd.Flags().StringVar(&btEnd, "end", "", "end date (YYYY-MM-DD, required)")
	backtestCmd.Flags().StringSliceVar(&btSectors, "sectors", nil, "sector allow-list")
	backtestCmd.Flags().StringSliceVar(&btCountries, "countries", nil, "country allow-list")
	backtestCmd.Flags().Float64Var(&btMinCap, "min-cap", 0, "minimum market cap")
	backtestCmd.Flags().Float64Var(&btMaxCap, "max-cap", 0, "maximum market cap")
	backtestCmd.Flags().IntVar(&btTop, "top", 0, "keep only the N largest constituents")
}

func runBacktest(cmd *cobra.Command, args []string) error {
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
	engine := backtest.NewEngine(securities, prices, log, nil)

	configuration := &domain.IndexConfiguration{
		Name:            btName,
		WeightingMethod: domain.WeightingMethod(btMethod),
		StartDate:       btStart,
		EndDate:         btEnd,
		Filters: domain.ConstituentFilters{
			Sectors:   btSectors,
			Countries: btCountries,
		},
	}
	if btMinCap > 0 {
		configuration.Filters.MinMarketCap = &btMinCap
	}
	if btMaxCap > 0 {
		configuration.Filters.MaxMarketCap = &btMaxCap
	}
	if btTop > 0 {
		configuration.Filters.MaxConstituents = &btTop
	}

	result, err := engine.Run(context.Background(), configuration)
	if err != nil {
		return err
	}

	fmt.Printf("Backtest %s (%s)\n", result.RunID, result.Name)
	fmt.Printf("  Period:        %s to %s (%d trading days)\n",
		result.StartDate.Format(domain.DateFormat), result.EndDate.Format(domain.DateFormat), result.TradingDays)
	fmt.Println(strings.Repeat("-", 48))
	fmt.Printf("  Total return:      %8.2f%%\n", result.Metrics.TotalReturn*100)
	fmt.Printf("  Annualized return: %8.2f%%\n", result.Metrics.AnnualizedReturn*100)
	fmt.Printf("  Volatility:        %8.2f%%\n", result.Metrics.Volatility*100)
	fmt.Printf("  Sharpe ratio:      %8.2f\n", result.Metrics.SharpeRatio)
	fmt.Printf("  Max drawdown:      %8.2f%%\n", result.Metrics.MaxDrawdown*100)
	fmt.Printf("  Win rate:          %8.2f%%\n", result.Metrics.WinRate*100)
	fmt.Printf("  Elapsed:           %s\n", result.Elapsed)
	return nil
}
