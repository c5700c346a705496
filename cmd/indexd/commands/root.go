package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "indexd",
	Short: "Index platform backend",
	Long: `indexd - custom index construction and backtest platform

Serves the REST API, runs the scheduled index calculation jobs and
provides data ingestion utilities.

Examples:
  indexd api
  indexd scheduler
  indexd ingest securities --file securities.csv
  indexd backtest --name "Tech Leaders" --method equal_weight --start 2020-01-01 --end 2023-12-31`,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
