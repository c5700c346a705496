package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint would be violated.
var ErrDuplicate = errors.New("already exists")

// SecurityRepository is the persistence contract for security master data.
type SecurityRepository interface {
	List(ctx context.Context, filter SecurityFilter) ([]Security, error)
	GetByID(ctx context.Context, id int64) (*Security, error)
	GetBySymbol(ctx context.Context, symbol string) (*Security, error)
	Create(ctx context.Context, s *Security) error
	Update(ctx context.Context, id int64, update SecurityUpdate) (*Security, error)
	Delete(ctx context.Context, id int64) error
	// Upsert inserts or updates by symbol; reports whether a row was created.
	Upsert(ctx context.Context, s *Security) (bool, error)
	// Universe returns active securities matching constituent filters,
	// ordered by market cap descending.
	Universe(ctx context.Context, filters ConstituentFilters) ([]Security, error)
	DistinctSectors(ctx context.Context) ([]string, error)
	DistinctCountries(ctx context.Context) ([]string, error)
}

// PriceRepository is the persistence contract for daily price bars.
type PriceRepository interface {
	List(ctx context.Context, filter PriceFilter) ([]PricePoint, error)
	Create(ctx context.Context, p *PricePoint) error
	// SaveBatch upserts bars keyed on (security_id, date); returns rows written.
	SaveBatch(ctx context.Context, points []PricePoint) (int, error)
	// Range returns bars for the given securities ordered by date ascending.
	Range(ctx context.Context, securityIDs []int64, from, to time.Time) ([]PricePoint, error)
	HistoryBySecurityID(ctx context.Context, securityID int64, from, to *time.Time, limit int) ([]PricePoint, error)
	LatestBySymbol(ctx context.Context, symbol string) (*Quote, error)
}

// IndexRepository is the persistence contract for index definitions,
// computed values and constituent membership.
type IndexRepository interface {
	List(ctx context.Context, isActive *bool, offset, limit int) ([]IndexDefinition, error)
	GetByID(ctx context.Context, id int64) (*IndexDefinition, error)
	GetByName(ctx context.Context, name string) (*IndexDefinition, error)
	Create(ctx context.Context, def *IndexDefinition) error
	Update(ctx context.Context, id int64, update IndexDefinitionUpdate) (*IndexDefinition, error)
	Delete(ctx context.Context, id int64) error

	SaveValue(ctx context.Context, v *IndexValue) error
	Values(ctx context.Context, indexID int64, from, to *time.Time, limit int) ([]IndexValue, error)

	ConstituentsAsOf(ctx context.Context, indexID int64, date time.Time) ([]Constituent, error)
	// ReplaceConstituents marks removals and records the new membership set.
	ReplaceConstituents(ctx context.Context, indexID int64, date time.Time, constituents []Constituent, removals []string) error
}

// UserRepository is the persistence contract for platform accounts.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User) error
}

// CustomIndexRepository persists user-built indices and their backtests.
type CustomIndexRepository interface {
	Save(ctx context.Context, ci *CustomIndex) error
	SaveBacktest(ctx context.Context, customIndexID int64, result *BacktestResult) error
}
