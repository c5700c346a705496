package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/indexlab/backend/internal/domain"
)

const securityColumns = `
	id, symbol, name, exchange, currency, sector, industry, country,
	market_cap, revenue, esg_score, is_active, created_at, updated_at`

// SecurityRepository implements domain.SecurityRepository over Postgres.
type SecurityRepository struct {
	pool *pgxpool.Pool
}

// NewSecurityRepository creates a new security repository
func NewSecurityRepository(pool *pgxpool.Pool) *SecurityRepository {
	return &SecurityRepository{pool: pool}
}

func scanSecurity(row pgx.Row) (*domain.Security, error) {
	var s domain.Security
	err := row.Scan(
		&s.ID, &s.Symbol, &s.Name, &s.Exchange, &s.Currency, &s.Sector,
		&s.Industry, &s.Country, &s.MarketCap, &s.Revenue, &s.ESGScore,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// List retrieves securities matching the filter, ordered by symbol
func (r *SecurityRepository) List(ctx context.Context, filter domain.SecurityFilter) ([]domain.Security, error) {
	var (
		conditions []string
		args       []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conditions = append(conditions, fmt.Sprintf("(symbol ILIKE %s OR name ILIKE %s)", p, p))
	}
	if filter.Sector != "" {
		conditions = append(conditions, "sector = "+arg(filter.Sector))
	}
	if filter.Country != "" {
		conditions = append(conditions, "country = "+arg(filter.Country))
	}
	if filter.IsActive != nil {
		conditions = append(conditions, "is_active = "+arg(*filter.IsActive))
	}

	query := "SELECT " + securityColumns + " FROM securities"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY symbol ASC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var securities []domain.Security
	for rows.Next() {
		s, err := scanSecurity(rows)
		if err != nil {
			return nil, err
		}
		securities = append(securities, *s)
	}
	return securities, rows.Err()
}

// GetByID retrieves a security by its primary key
func (r *SecurityRepository) GetByID(ctx context.Context, id int64) (*domain.Security, error) {
	query := "SELECT " + securityColumns + " FROM securities WHERE id = $1"
	return scanSecurity(r.pool.QueryRow(ctx, query, id))
}

// GetBySymbol retrieves a security by ticker symbol
func (r *SecurityRepository) GetBySymbol(ctx context.Context, symbol string) (*domain.Security, error) {
	query := "SELECT " + securityColumns + " FROM securities WHERE symbol = $1"
	return scanSecurity(r.pool.QueryRow(ctx, query, symbol))
}

// Create inserts a new security and fills the generated fields
func (r *SecurityRepository) Create(ctx context.Context, s *domain.Security) error {
	query := `
		INSERT INTO securities (symbol, name, exchange, currency, sector, industry, country,
			market_cap, revenue, esg_score, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		s.Symbol, s.Name, s.Exchange, s.Currency, s.Sector, s.Industry, s.Country,
		s.MarketCap, s.Revenue, s.ESGScore, s.IsActive,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	return err
}

// Update applies a partial update and returns the refreshed record
func (r *SecurityRepository) Update(ctx context.Context, id int64, update domain.SecurityUpdate) (*domain.Security, error) {
	var (
		sets []string
		args []interface{}
	)
	set := func(column string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Name != nil {
		set("name", *update.Name)
	}
	if update.Exchange != nil {
		set("exchange", *update.Exchange)
	}
	if update.Currency != nil {
		set("currency", *update.Currency)
	}
	if update.Sector != nil {
		set("sector", *update.Sector)
	}
	if update.Industry != nil {
		set("industry", *update.Industry)
	}
	if update.Country != nil {
		set("country", *update.Country)
	}
	if update.MarketCap != nil {
		set("market_cap", *update.MarketCap)
	}
	if update.Revenue != nil {
		set("revenue", *update.Revenue)
	}
	if update.ESGScore != nil {
		set("esg_score", *update.ESGScore)
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
		"UPDATE securities SET %s WHERE id = $%d RETURNING "+securityColumns,
		strings.Join(sets, ", "), len(args),
	)

	return scanSecurity(r.pool.QueryRow(ctx, query, args...))
}

// Delete removes a security by id
func (r *SecurityRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM securities WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Upsert inserts or updates a security keyed on symbol. It reports
// whether a new row was created.
func (r *SecurityRepository) Upsert(ctx context.Context, s *domain.Security) (bool, error) {
	query := `
		INSERT INTO securities (symbol, name, exchange, currency, sector, industry, country,
			market_cap, revenue, esg_score, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name,
			exchange = EXCLUDED.exchange,
			currency = EXCLUDED.currency,
			sector = EXCLUDED.sector,
			industry = EXCLUDED.industry,
			country = EXCLUDED.country,
			market_cap = EXCLUDED.market_cap,
			revenue = EXCLUDED.revenue,
			esg_score = EXCLUDED.esg_score,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted
	`
	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		s.Symbol, s.Name, s.Exchange, s.Currency, s.Sector, s.Industry, s.Country,
		s.MarketCap, s.Revenue, s.ESGScore, s.IsActive,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt, &inserted)
	return inserted, err
}

// Universe retrieves active securities matching constituent filters,
// ordered by market cap descending.
func (r *SecurityRepository) Universe(ctx context.Context, filters domain.ConstituentFilters) ([]domain.Security, error) {
	conditions := []string{"is_active = TRUE"}
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filters.Sectors) > 0 {
		conditions = append(conditions, "sector = ANY("+arg(filters.Sectors)+")")
	}
	if len(filters.Countries) > 0 {
		conditions = append(conditions, "country = ANY("+arg(filters.Countries)+")")
	}
	if filters.MinMarketCap != nil {
		conditions = append(conditions, "market_cap >= "+arg(*filters.MinMarketCap))
	}
	if filters.MaxMarketCap != nil {
		conditions = append(conditions, "market_cap <= "+arg(*filters.MaxMarketCap))
	}

	query := "SELECT " + securityColumns + " FROM securities WHERE " +
		strings.Join(conditions, " AND ") + " ORDER BY market_cap DESC"
	if filters.MaxConstituents != nil {
		query += " LIMIT " + arg(*filters.MaxConstituents)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var securities []domain.Security
	for rows.Next() {
		s, err := scanSecurity(rows)
		if err != nil {
			return nil, err
		}
		securities = append(securities, *s)
	}
	return securities, rows.Err()
}

// DistinctSectors lists sectors present on active securities
func (r *SecurityRepository) DistinctSectors(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "sector")
}

// DistinctCountries lists countries present on active securities
func (r *SecurityRepository) DistinctCountries(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "country")
}

func (r *SecurityRepository) distinct(ctx context.Context, column string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT %s FROM securities
		WHERE is_active = TRUE AND %s <> ''
		ORDER BY %s ASC
	`, column, column, column)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// isUniqueViolation reports whether err is a Postgres unique constraint error
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
