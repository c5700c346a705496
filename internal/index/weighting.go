package index

import (
	"fmt"

	"github.com/indexlab/backend/internal/domain"
)

// Member is a security participating in an index calculation, carrying
// the reference data and the close price used for weighting.
type Member struct {
	SecurityID int64   `json:"security_id"`
	Symbol     string  `json:"symbol"`
	Sector     string  `json:"sector,omitempty"`
	Country    string  `json:"country,omitempty"`
	MarketCap  float64 `json:"market_cap,omitempty"`
	Revenue    float64 `json:"revenue,omitempty"`
	ESGScore   float64 `json:"esg_score,omitempty"`
	Close      float64 `json:"close_price"`
	Weight     float64 `json:"weight"`
}

// Weighter assigns constituent weights according to a weighting method.
type Weighter interface {
	Name() domain.WeightingMethod
	Assign(members []Member) ([]Member, error)
}

// WeighterFor returns the Weighter implementing the given method
func WeighterFor(method domain.WeightingMethod) (Weighter, error) {
	switch method {
	case domain.EqualWeight:
		return equalWeighter{}, nil
	case domain.MarketCapWeight:
		return marketCapWeighter{}, nil
	case domain.PriceWeight:
		return priceWeighter{}, nil
	case domain.RevenueWeight:
		return revenueWeighter{}, nil
	case domain.ESGWeight:
		return esgWeighter{}, nil
	default:
		return nil, fmt.Errorf("unknown weighting method: %q", method)
	}
}

type equalWeighter struct{}

func (equalWeighter) Name() domain.WeightingMethod { return domain.EqualWeight }

func (equalWeighter) Assign(members []Member) ([]Member, error) {
	return assignEqual(members), nil
}

func assignEqual(members []Member) []Member {
	if len(members) == 0 {
		return members
	}
	w := 1.0 / float64(len(members))
	for i := range members {
		members[i].Weight = w
	}
	return members
}

type marketCapWeighter struct{}

func (marketCapWeighter) Name() domain.WeightingMethod { return domain.MarketCapWeight }

// Assign weights proportionally to market cap. Falls back to equal
// weighting when no market cap data is available.
func (marketCapWeighter) Assign(members []Member) ([]Member, error) {
	var total float64
	for _, m := range members {
		total += m.MarketCap
	}
	if total <= 0 {
		return assignEqual(members), nil
	}

	for i := range members {
		members[i].Weight = members[i].MarketCap / total
	}
	return members, nil
}

type priceWeighter struct{}

func (priceWeighter) Name() domain.WeightingMethod { return domain.PriceWeight }

// Assign weights proportionally to price, Dow style. Price data is
// mandatory for this method.
func (priceWeighter) Assign(members []Member) ([]Member, error) {
	var total float64
	for _, m := range members {
		total += m.Close
	}
	if total <= 0 {
		return nil, fmt.Errorf("price data required for price weighting")
	}

	for i := range members {
		members[i].Weight = members[i].Close / total
	}
	return members, nil
}

type revenueWeighter struct{}

func (revenueWeighter) Name() domain.WeightingMethod { return domain.RevenueWeight }

func (revenueWeighter) Assign(members []Member) ([]Member, error) {
	var total float64
	for _, m := range members {
		total += m.Revenue
	}
	if total <= 0 {
		return nil, fmt.Errorf("revenue data required for revenue weighting")
	}

	for i := range members {
		members[i].Weight = members[i].Revenue / total
	}
	return members, nil
}

type esgWeighter struct{}

func (esgWeighter) Name() domain.WeightingMethod { return domain.ESGWeight }

// Assign weights proportionally to normalized ESG score (0-100 scale).
// Falls back to equal weighting when no scores are available.
func (esgWeighter) Assign(members []Member) ([]Member, error) {
	var total float64
	for _, m := range members {
		total += m.ESGScore / 100.0
	}
	if total <= 0 {
		return assignEqual(members), nil
	}

	for i := range members {
		members[i].Weight = (members[i].ESGScore / 100.0) / total
	}
	return members, nil
}

// ComputeValue calculates the index level from priced members.
// Equal weight averages closes; market cap weight is a cap-weighted
// average close; price weight concentrates on higher-priced names.
func ComputeValue(members []Member, method domain.WeightingMethod) float64 {
	if len(members) == 0 {
		return 0
	}

	switch method {
	case domain.MarketCapWeight:
		var totalCap, weighted float64
		for _, m := range members {
			totalCap += m.MarketCap
			weighted += m.Close * m.MarketCap
		}
		if totalCap <= 0 {
			return meanClose(members)
		}
		return weighted / totalCap

	case domain.PriceWeight:
		var totalPrice, squared float64
		for _, m := range members {
			totalPrice += m.Close
			squared += m.Close * m.Close
		}
		if totalPrice <= 0 {
			return 0
		}
		return squared / totalPrice

	default:
		return meanClose(members)
	}
}

func meanClose(members []Member) float64 {
	var sum float64
	for _, m := range members {
		sum += m.Close
	}
	return sum / float64(len(members))
}
