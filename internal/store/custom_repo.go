package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/indexlab/backend/internal/domain"
)

// CustomIndexRepository implements domain.CustomIndexRepository over
// Postgres. Configurations and backtest results are stored as JSONB
// documents since their shape follows the API payloads.
type CustomIndexRepository struct {
	pool *pgxpool.Pool
}

// NewCustomIndexRepository creates a new custom index repository
func NewCustomIndexRepository(pool *pgxpool.Pool) *CustomIndexRepository {
	return &CustomIndexRepository{pool: pool}
}

// Save persists a user-built index configuration
func (r *CustomIndexRepository) Save(ctx context.Context, ci *domain.CustomIndex) error {
	config, err := json.Marshal(ci.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	query := `
		INSERT INTO custom_indices (user_id, name, config, is_public)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	return r.pool.QueryRow(ctx, query,
		ci.UserID, ci.Config.Name, config, ci.IsPublic,
	).Scan(&ci.ID, &ci.CreatedAt)
}

// SaveBacktest records a completed backtest run for a custom index
func (r *CustomIndexRepository) SaveBacktest(ctx context.Context, customIndexID int64, result *domain.BacktestResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	query := `
		INSERT INTO custom_index_backtests (custom_index_id, run_id, start_date, end_date, result)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.pool.Exec(ctx, query,
		customIndexID, result.RunID, result.StartDate, result.EndDate, payload,
	)
	return err
}
