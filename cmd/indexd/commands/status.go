package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/indexlab/backend/pkg/config"
	"github.com/indexlab/backend/pkg/database"
	"github.com/indexlab/backend/pkg/redis"
)

// statusCmd reports connectivity and pool health
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check database and cache connectivity",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Printf("Environment: %s\n", cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.New(cfg)
	if err != nil {
		fmt.Printf("Database:    unreachable (%v)\n", err)
		return err
	}
	defer db.Close()

	health, err := db.HealthCheck(ctx)
	if err != nil {
		fmt.Printf("Database:    unhealthy (%s)\n", health.Error)
		return err
	}
	fmt.Printf("Database:    healthy (%s, %d/%d conns)\n",
		health.ResponseTime.Round(time.Millisecond), health.Stats.TotalConns, health.Stats.MaxConns)

	redisClient, err := redis.New(cfg)
	if err != nil {
		fmt.Printf("Redis:       unreachable (%v)\n", err)
		return err
	}
	defer redisClient.Close()

	if redisClient.Enabled() {
		fmt.Println("Redis:       connected")
	} else {
		fmt.Println("Redis:       disabled")
	}
	return nil
}
