package index

import (
	"sort"

	"github.com/indexlab/backend/internal/domain"
)

// ApplyFilters narrows the member set according to the configured
// constituent filters. Market cap bounds and sector/country allow-lists
// are applied first; max_constituents keeps the largest names by
// market cap.
func ApplyFilters(members []Member, filters domain.ConstituentFilters) []Member {
	sectors := toSet(filters.Sectors)
	countries := toSet(filters.Countries)

	out := make([]Member, 0, len(members))
	for _, m := range members {
		if filters.MinMarketCap != nil && m.MarketCap < *filters.MinMarketCap {
			continue
		}
		if filters.MaxMarketCap != nil && m.MarketCap > *filters.MaxMarketCap {
			continue
		}
		if len(sectors) > 0 {
			if _, ok := sectors[m.Sector]; !ok {
				continue
			}
		}
		if len(countries) > 0 {
			if _, ok := countries[m.Country]; !ok {
				continue
			}
		}
		out = append(out, m)
	}

	if filters.MaxConstituents != nil && len(out) > *filters.MaxConstituents {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].MarketCap > out[j].MarketCap
		})
		out = out[:*filters.MaxConstituents]
	}

	return out
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
