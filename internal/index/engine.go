package index

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/pkg/logger"
)

// Engine computes index values, series and rebalances for managed
// index definitions.
type Engine struct {
	securities domain.SecurityRepository
	prices     domain.PriceRepository
	indexes    domain.IndexRepository
	logger     *logger.Logger
}

// NewEngine creates a new calculation engine
func NewEngine(
	securities domain.SecurityRepository,
	prices domain.PriceRepository,
	indexes domain.IndexRepository,
	log *logger.Logger,
) *Engine {
	return &Engine{
		securities: securities,
		prices:     prices,
		indexes:    indexes,
		logger:     log,
	}
}

// Valuation is the result of computing an index level for one date.
type Valuation struct {
	IndexID      int64                  `json:"index_id,omitempty"`
	Date         time.Time              `json:"date"`
	IndexValue   float64                `json:"index_value"`
	Method       domain.WeightingMethod `json:"weighting_method"`
	Constituents []Member               `json:"constituents"`
}

// lookback covers exchange holidays when resolving the most recent
// close at or before a valuation date.
const priceLookbackDays = 30

// ValueAt computes the index level for a definition on a specific date
// using the most recent close at or before that date.
func (e *Engine) ValueAt(ctx context.Context, def *domain.IndexDefinition, date time.Time) (*Valuation, error) {
	universe, err := e.universe(ctx, def.Filters)
	if err != nil {
		return nil, err
	}
	if len(universe) == 0 {
		return nil, fmt.Errorf("no constituents match the index filters")
	}

	ids := securityIDs(universe)
	bars, err := e.prices.Range(ctx, ids, date.AddDate(0, 0, -priceLookbackDays), date)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}

	members := priceMembers(universe, latestCloses(bars))
	if len(members) == 0 {
		return nil, fmt.Errorf("no price data available on %s", date.Format(domain.DateFormat))
	}

	weighter, err := WeighterFor(def.WeightingMethod)
	if err != nil {
		return nil, err
	}
	members, err = weighter.Assign(members)
	if err != nil {
		return nil, err
	}

	return &Valuation{
		IndexID:      def.ID,
		Date:         date,
		IndexValue:   ComputeValue(members, def.WeightingMethod),
		Method:       def.WeightingMethod,
		Constituents: members,
	}, nil
}

// Series computes index levels for each business day in [from, to].
func (e *Engine) Series(ctx context.Context, def *domain.IndexDefinition, from, to time.Time) ([]domain.SeriesPoint, error) {
	universe, err := e.universe(ctx, def.Filters)
	if err != nil {
		return nil, err
	}
	if len(universe) == 0 {
		return nil, fmt.Errorf("no constituents match the index filters")
	}

	bars, err := e.prices.Range(ctx, securityIDs(universe), from.AddDate(0, 0, -priceLookbackDays), to)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}

	return BuildSeries(universe, bars, from, to, def.WeightingMethod)
}

// Rebalance recomputes the constituent set and weights for a definition
// and persists the membership changes.
func (e *Engine) Rebalance(ctx context.Context, def *domain.IndexDefinition, date time.Time) (*domain.RebalanceReport, error) {
	valuation, err := e.ValueAt(ctx, def, date)
	if err != nil {
		return nil, err
	}

	current, err := e.indexes.ConstituentsAsOf(ctx, def.ID, date)
	if err != nil {
		return nil, fmt.Errorf("load current constituents: %w", err)
	}

	currentSymbols := make(map[string]struct{}, len(current))
	for _, c := range current {
		currentSymbols[c.Symbol] = struct{}{}
	}
	newSymbols := make(map[string]struct{}, len(valuation.Constituents))
	for _, m := range valuation.Constituents {
		newSymbols[m.Symbol] = struct{}{}
	}

	var additions, removals []string
	for sym := range newSymbols {
		if _, ok := currentSymbols[sym]; !ok {
			additions = append(additions, sym)
		}
	}
	for sym := range currentSymbols {
		if _, ok := newSymbols[sym]; !ok {
			removals = append(removals, sym)
		}
	}
	sort.Strings(additions)
	sort.Strings(removals)

	constituents := make([]domain.Constituent, 0, len(valuation.Constituents))
	for _, m := range valuation.Constituents {
		_, existing := currentSymbols[m.Symbol]
		constituents = append(constituents, domain.Constituent{
			IndexID:       def.ID,
			SecurityID:    m.SecurityID,
			Symbol:        m.Symbol,
			Date:          date,
			Weight:        m.Weight,
			MarketCap:     m.MarketCap,
			IsNewAddition: !existing,
		})
	}

	if err := e.indexes.ReplaceConstituents(ctx, def.ID, date, constituents, removals); err != nil {
		return nil, fmt.Errorf("save constituents: %w", err)
	}

	e.logger.WithFields(map[string]interface{}{
		"index_id":  def.ID,
		"date":      date.Format(domain.DateFormat),
		"additions": len(additions),
		"removals":  len(removals),
	}).Info("Index rebalanced")

	return &domain.RebalanceReport{
		IndexID:   def.ID,
		Date:      date,
		Additions: additions,
		Removals:  removals,
		Count:     len(constituents),
	}, nil
}

// universe loads the filtered security universe as unpriced members
func (e *Engine) universe(ctx context.Context, filters domain.ConstituentFilters) ([]Member, error) {
	securities, err := e.securities.Universe(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}

	members := make([]Member, 0, len(securities))
	for _, s := range securities {
		members = append(members, Member{
			SecurityID: s.ID,
			Symbol:     s.Symbol,
			Sector:     s.Sector,
			Country:    s.Country,
			MarketCap:  s.MarketCap,
			Revenue:    s.Revenue,
			ESGScore:   s.ESGScore,
		})
	}
	return ApplyFilters(members, filters), nil
}

// BuildSeries computes business-day index levels from a fixed universe
// and a set of price bars. Closes are carried forward over days without
// trades; days before the first available close for every member are
// skipped. The weighter's data requirements are enforced on every
// valued day, matching single-date valuation.
func BuildSeries(universe []Member, bars []domain.PricePoint, from, to time.Time, method domain.WeightingMethod) ([]domain.SeriesPoint, error) {
	weighter, err := WeighterFor(method)
	if err != nil {
		return nil, err
	}

	table := priceTable(bars)

	// Position per security into its sorted bar list
	cursor := make(map[int64]int, len(table))
	lastClose := make(map[int64]float64, len(universe))

	var series []domain.SeriesPoint
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}

		// Roll closes forward to this day
		for id, points := range table {
			i := cursor[id]
			for i < len(points) && !points[i].Date.After(day) {
				lastClose[id] = points[i].Close
				i++
			}
			cursor[id] = i
		}

		members := priceMembers(universe, lastClose)
		if len(members) == 0 {
			continue
		}
		if _, err := weighter.Assign(members); err != nil {
			return nil, err
		}

		series = append(series, domain.SeriesPoint{
			Date:         day,
			IndexValue:   ComputeValue(members, method),
			Constituents: len(members),
		})
	}

	return series, nil
}

// priceTable groups bars by security, ordered by date ascending
func priceTable(bars []domain.PricePoint) map[int64][]domain.PricePoint {
	table := make(map[int64][]domain.PricePoint)
	for _, b := range bars {
		table[b.SecurityID] = append(table[b.SecurityID], b)
	}
	for id := range table {
		points := table[id]
		sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
		table[id] = points
	}
	return table
}

// latestCloses keeps the most recent close per security
func latestCloses(bars []domain.PricePoint) map[int64]float64 {
	latest := make(map[int64]time.Time, len(bars))
	closes := make(map[int64]float64, len(bars))
	for _, b := range bars {
		if seen, ok := latest[b.SecurityID]; !ok || b.Date.After(seen) {
			latest[b.SecurityID] = b.Date
			closes[b.SecurityID] = b.Close
		}
	}
	return closes
}

// priceMembers attaches closes to universe members, dropping members
// without any price.
func priceMembers(universe []Member, closes map[int64]float64) []Member {
	members := make([]Member, 0, len(universe))
	for _, m := range universe {
		close, ok := closes[m.SecurityID]
		if !ok || close <= 0 {
			continue
		}
		m.Close = close
		members = append(members, m)
	}
	return members
}

func securityIDs(members []Member) []int64 {
	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.SecurityID
	}
	return ids
}
