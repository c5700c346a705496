package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/indexlab/backend/internal/domain"
)

const indexColumns = `
	id, name, description, weighting_method, rebalance_frequency, filters,
	is_active, created_at, updated_at`

// IndexRepository implements domain.IndexRepository over Postgres.
// Constituent filters are stored as a JSONB column.
type IndexRepository struct {
	pool *pgxpool.Pool
}

// NewIndexRepository creates a new index repository
func NewIndexRepository(pool *pgxpool.Pool) *IndexRepository {
	return &IndexRepository{pool: pool}
}

func scanIndexDefinition(row pgx.Row) (*domain.IndexDefinition, error) {
	var (
		def     domain.IndexDefinition
		filters []byte
	)
	err := row.Scan(
		&def.ID, &def.Name, &def.Description, &def.WeightingMethod,
		&def.RebalanceFrequency, &filters, &def.IsActive,
		&def.CreatedAt, &def.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(filters) > 0 {
		if err := json.Unmarshal(filters, &def.Filters); err != nil {
			return nil, fmt.Errorf("decode filters: %w", err)
		}
	}
	return &def, nil
}

// List retrieves index definitions, newest first
func (r *IndexRepository) List(ctx context.Context, isActive *bool, offset, limit int) ([]domain.IndexDefinition, error) {
	var (
		conditions []string
		args       []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if isActive != nil {
		conditions = append(conditions, "is_active = "+arg(*isActive))
	}

	query := "SELECT " + indexColumns + " FROM index_definitions"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT " + arg(limit)
	}
	if offset > 0 {
		query += " OFFSET " + arg(offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []domain.IndexDefinition
	for rows.Next() {
		def, err := scanIndexDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *def)
	}
	return defs, rows.Err()
}

// GetByID retrieves an index definition by its primary key
func (r *IndexRepository) GetByID(ctx context.Context, id int64) (*domain.IndexDefinition, error) {
	query := "SELECT " + indexColumns + " FROM index_definitions WHERE id = $1"
	return scanIndexDefinition(r.pool.QueryRow(ctx, query, id))
}

// GetByName retrieves an index definition by its unique name
func (r *IndexRepository) GetByName(ctx context.Context, name string) (*domain.IndexDefinition, error) {
	query := "SELECT " + indexColumns + " FROM index_definitions WHERE name = $1"
	return scanIndexDefinition(r.pool.QueryRow(ctx, query, name))
}

// Create inserts a new index definition and fills the generated fields
func (r *IndexRepository) Create(ctx context.Context, def *domain.IndexDefinition) error {
	filters, err := json.Marshal(def.Filters)
	if err != nil {
		return fmt.Errorf("encode filters: %w", err)
	}

	query := `
		INSERT INTO index_definitions (name, description, weighting_method,
			rebalance_frequency, filters, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err = r.pool.QueryRow(ctx, query,
		def.Name, def.Description, def.WeightingMethod,
		def.RebalanceFrequency, filters, def.IsActive,
	).Scan(&def.ID, &def.CreatedAt, &def.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	return err
}

// Update applies a partial update and returns the refreshed record
func (r *IndexRepository) Update(ctx context.Context, id int64, update domain.IndexDefinitionUpdate) (*domain.IndexDefinition, error) {
	var (
		sets []string
		args []interface{}
	)
	set := func(column string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Description != nil {
		set("description", *update.Description)
	}
	if update.WeightingMethod != nil {
		set("weighting_method", *update.WeightingMethod)
	}
	if update.RebalanceFrequency != nil {
		set("rebalance_frequency", *update.RebalanceFrequency)
	}
	if update.Filters != nil {
		filters, err := json.Marshal(*update.Filters)
		if err != nil {
			return nil, fmt.Errorf("encode filters: %w", err)
		}
		set("filters", filters)
	}
	if update.IsActive != nil {
		set("is_active", *update.IsActive)
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE index_definitions SET %s WHERE id = $%d RETURNING "+indexColumns,
		strings.Join(sets, ", "), len(args),
	)

	return scanIndexDefinition(r.pool.QueryRow(ctx, query, args...))
}

// Delete removes an index definition and its dependent rows
func (r *IndexRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM index_definitions WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SaveValue upserts a computed index level keyed on (index_id, date)
func (r *IndexRepository) SaveValue(ctx context.Context, v *domain.IndexValue) error {
	query := `
		INSERT INTO index_values (index_id, date, value, total_return, volatility, sharpe_ratio)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (index_id, date) DO UPDATE SET
			value = EXCLUDED.value,
			total_return = EXCLUDED.total_return,
			volatility = EXCLUDED.volatility,
			sharpe_ratio = EXCLUDED.sharpe_ratio
		RETURNING id, created_at
	`
	return r.pool.QueryRow(ctx, query,
		v.IndexID, v.Date, v.Value, v.TotalReturn, v.Volatility, v.SharpeRatio,
	).Scan(&v.ID, &v.CreatedAt)
}

// Values retrieves index levels ordered by date ascending
func (r *IndexRepository) Values(ctx context.Context, indexID int64, from, to *time.Time, limit int) ([]domain.IndexValue, error) {
	conditions := []string{"index_id = $1"}
	args := []interface{}{indexID}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if from != nil {
		conditions = append(conditions, "date >= "+arg(*from))
	}
	if to != nil {
		conditions = append(conditions, "date <= "+arg(*to))
	}

	query := `SELECT id, index_id, date, value, total_return, volatility, sharpe_ratio, created_at
		FROM index_values WHERE ` + strings.Join(conditions, " AND ") + " ORDER BY date ASC"
	if limit > 0 {
		query += " LIMIT " + arg(limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []domain.IndexValue
	for rows.Next() {
		var v domain.IndexValue
		if err := rows.Scan(
			&v.ID, &v.IndexID, &v.Date, &v.Value, &v.TotalReturn,
			&v.Volatility, &v.SharpeRatio, &v.CreatedAt,
		); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// ConstituentsAsOf retrieves the membership snapshot effective on a date
func (r *IndexRepository) ConstituentsAsOf(ctx context.Context, indexID int64, date time.Time) ([]domain.Constituent, error) {
	query := `
		SELECT c.id, c.index_id, c.security_id, s.symbol, c.date, c.weight,
			c.market_cap, c.is_new_addition, c.is_removal
		FROM index_constituents c
		JOIN securities s ON s.id = c.security_id
		WHERE c.index_id = $1
			AND c.date = (
				SELECT MAX(date) FROM index_constituents
				WHERE index_id = $1 AND date <= $2
			)
			AND NOT c.is_removal
		ORDER BY c.weight DESC
	`

	rows, err := r.pool.Query(ctx, query, indexID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var constituents []domain.Constituent
	for rows.Next() {
		var c domain.Constituent
		if err := rows.Scan(
			&c.ID, &c.IndexID, &c.SecurityID, &c.Symbol, &c.Date, &c.Weight,
			&c.MarketCap, &c.IsNewAddition, &c.IsRemoval,
		); err != nil {
			return nil, err
		}
		constituents = append(constituents, c)
	}
	return constituents, rows.Err()
}

// ReplaceConstituents writes a rebalance snapshot: the new membership
// set plus removal markers for dropped symbols, atomically.
func (r *IndexRepository) ReplaceConstituents(ctx context.Context, indexID int64, date time.Time, constituents []domain.Constituent, removals []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"DELETE FROM index_constituents WHERE index_id = $1 AND date = $2",
		indexID, date,
	); err != nil {
		return err
	}

	insert := `
		INSERT INTO index_constituents (index_id, security_id, date, weight,
			market_cap, is_new_addition, is_removal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, c := range constituents {
		if _, err := tx.Exec(ctx, insert,
			indexID, c.SecurityID, date, c.Weight, c.MarketCap, c.IsNewAddition, false,
		); err != nil {
			return err
		}
	}

	removal := `
		INSERT INTO index_constituents (index_id, security_id, date, weight,
			market_cap, is_new_addition, is_removal)
		SELECT $1, id, $2, 0, market_cap, FALSE, TRUE
		FROM securities WHERE symbol = $3
	`
	for _, symbol := range removals {
		if _, err := tx.Exec(ctx, removal, indexID, date, symbol); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
