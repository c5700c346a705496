package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/indexlab/backend/internal/domain"
)

const priceColumns = `
	id, security_id, date, open_price, high_price, low_price, close_price,
	volume, adjusted_close, dividend, split_ratio`

// PriceRepository implements domain.PriceRepository over Postgres.
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

func scanPrice(row pgx.Row) (*domain.PricePoint, error) {
	var p domain.PricePoint
	err := row.Scan(
		&p.ID, &p.SecurityID, &p.Date, &p.Open, &p.High, &p.Low, &p.Close,
		&p.Volume, &p.AdjustedClose, &p.Dividend, &p.SplitRatio,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// List retrieves price bars matching the filter, newest first
func (r *PriceRepository) List(ctx context.Context, filter domain.PriceFilter) ([]domain.PricePoint, error) {
	var (
		conditions []string
		args       []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Symbol != "" {
		conditions = append(conditions,
			"security_id = (SELECT id FROM securities WHERE symbol = "+arg(filter.Symbol)+")")
	}
	if filter.From != nil {
		conditions = append(conditions, "date >= "+arg(*filter.From))
	}
	if filter.To != nil {
		conditions = append(conditions, "date <= "+arg(*filter.To))
	}

	query := "SELECT " + priceColumns + " FROM prices"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	return r.queryPrices(ctx, query, args...)
}

// Create inserts a single price bar
func (r *PriceRepository) Create(ctx context.Context, p *domain.PricePoint) error {
	query := `
		INSERT INTO prices (security_id, date, open_price, high_price, low_price,
			close_price, volume, adjusted_close, dividend, split_ratio)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		p.SecurityID, p.Date, p.Open, p.High, p.Low, p.Close,
		p.Volume, p.AdjustedClose, p.Dividend, p.SplitRatio,
	).Scan(&p.ID)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	return err
}

// SaveBatch upserts price bars keyed on (security_id, date) inside a
// single transaction. It returns the number of rows written.
func (r *PriceRepository) SaveBatch(ctx context.Context, points []domain.PricePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO prices (security_id, date, open_price, high_price, low_price,
			close_price, volume, adjusted_close, dividend, split_ratio)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (security_id, date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume,
			adjusted_close = EXCLUDED.adjusted_close,
			dividend = EXCLUDED.dividend,
			split_ratio = EXCLUDED.split_ratio
	`

	written := 0
	for _, p := range points {
		if _, err := tx.Exec(ctx, query,
			p.SecurityID, p.Date, p.Open, p.High, p.Low, p.Close,
			p.Volume, p.AdjustedClose, p.Dividend, p.SplitRatio,
		); err != nil {
			return 0, err
		}
		written++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return written, nil
}

// Range retrieves bars for the given securities ordered by date ascending
func (r *PriceRepository) Range(ctx context.Context, securityIDs []int64, from, to time.Time) ([]domain.PricePoint, error) {
	if len(securityIDs) == 0 {
		return nil, nil
	}

	query := "SELECT " + priceColumns + ` FROM prices
		WHERE security_id = ANY($1) AND date BETWEEN $2 AND $3
		ORDER BY date ASC`

	return r.queryPrices(ctx, query, securityIDs, from, to)
}

// HistoryBySecurityID retrieves bars for one security, newest first
func (r *PriceRepository) HistoryBySecurityID(ctx context.Context, securityID int64, from, to *time.Time, limit int) ([]domain.PricePoint, error) {
	conditions := []string{"security_id = $1"}
	args := []interface{}{securityID}
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

	query := "SELECT " + priceColumns + " FROM prices WHERE " +
		strings.Join(conditions, " AND ") + " ORDER BY date DESC"
	if limit > 0 {
		query += " LIMIT " + arg(limit)
	}

	return r.queryPrices(ctx, query, args...)
}

// LatestBySymbol retrieves the most recent quote for a symbol
func (r *PriceRepository) LatestBySymbol(ctx context.Context, symbol string) (*domain.Quote, error) {
	query := `
		SELECT s.symbol, s.name, p.close_price, p.date, p.volume
		FROM prices p
		JOIN securities s ON s.id = p.security_id
		WHERE s.symbol = $1
		ORDER BY p.date DESC
		LIMIT 1
	`

	var q domain.Quote
	err := r.pool.QueryRow(ctx, query, symbol).Scan(
		&q.Symbol, &q.SecurityName, &q.LatestPrice, &q.Date, &q.Volume,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

func (r *PriceRepository) queryPrices(ctx context.Context, query string, args ...interface{}) ([]domain.PricePoint, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []domain.PricePoint
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		points = append(points, *p)
	}
	return points, rows.Err()
}
