// Package valuation combines already-loaded holdings into portfolio
// totals, allocation breakdowns and profit/loss figures. It performs no
// I/O and is deterministic over its inputs.
package valuation

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/vporoshin/folio/internal/entity"
)

var hundred = decimal.NewFromInt(100)

// Totals sums current value and invested cost over the holdings.
// Holdings without a current value contribute zero to totalValue.
// profitLossPct is zero when nothing is invested.
func Totals(holdings []entity.Holding) (totalValue, totalInvested, profitLoss, profitLossPct decimal.Decimal) {
	for _, h := range holdings {
		if h.CurrentValue != nil {
			totalValue = totalValue.Add(*h.CurrentValue)
		}
		totalInvested = totalInvested.Add(h.AcquisitionCost)
	}
	profitLoss = totalValue.Sub(totalInvested)
	if totalInvested.IsPositive() {
		profitLossPct = profitLoss.Div(totalInvested).Mul(hundred)
	}
	return totalValue, totalInvested, profitLoss, profitLossPct
}

// Allocation groups holdings by type tag and reports each group's share
// of the total current value, ordered by value descending. A zero total
// yields 0% for every group rather than NaN.
func Allocation(holdings []entity.Holding) []entity.Allocation {
	groups := make(map[string]*entity.Allocation)
	var total decimal.Decimal
	for _, h := range holdings {
		g, ok := groups[h.Type]
		if !ok {
			g = &entity.Allocation{Type: h.Type}
			groups[h.Type] = g
		}
		g.HoldingCount++
		if h.CurrentValue != nil {
			g.TotalValue = g.TotalValue.Add(*h.CurrentValue)
			total = total.Add(*h.CurrentValue)
		}
	}

	out := make([]entity.Allocation, 0, len(groups))
	for _, g := range groups {
		if total.IsPositive() {
			g.Percentage = g.TotalValue.Div(total).Mul(hundred)
		}
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalValue.Equal(out[j].TotalValue) {
			return out[i].Type < out[j].Type
		}
		return out[i].TotalValue.GreaterThan(out[j].TotalValue)
	})
	return out
}

// Summaries applies the totals formula to each portfolio's own holdings.
func Summaries(portfolios []entity.Portfolio, holdings []entity.Holding) []entity.PortfolioSummary {
	byPortfolio := make(map[uint64][]entity.Holding)
	for _, h := range holdings {
		byPortfolio[h.PortfolioID] = append(byPortfolio[h.PortfolioID], h)
	}

	out := make([]entity.PortfolioSummary, 0, len(portfolios))
	for _, p := range portfolios {
		own := byPortfolio[p.ID]
		totalValue, totalInvested, profitLoss, profitLossPct := Totals(own)
		out = append(out, entity.PortfolioSummary{
			ID:            p.ID,
			Name:          p.Name,
			BaseCurrency:  p.BaseCurrency,
			TotalValue:    totalValue,
			TotalInvested: totalInvested,
			ProfitLoss:    profitLoss,
			ProfitLossPct: profitLossPct,
			HoldingCount:  len(own),
			LastUpdated:   p.LastUpdated,
		})
	}
	return out
}

// Aggregate builds the full dashboard snapshot: global totals, allocation
// by type and per-portfolio summaries. Holdings are ordered by current
// value (falling back to acquisition cost) descending.
func Aggregate(portfolios []entity.Portfolio, holdings []entity.Holding) entity.Dashboard {
	totalValue, totalInvested, profitLoss, profitLossPct := Totals(holdings)

	ordered := make([]entity.Holding, len(holdings))
	copy(ordered, holdings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return displayValue(ordered[i]).GreaterThan(displayValue(ordered[j]))
	})

	return entity.Dashboard{
		TotalValue:    totalValue,
		TotalInvested: totalInvested,
		ProfitLoss:    profitLoss,
		ProfitLossPct: profitLossPct,
		Holdings:      ordered,
		Allocation:    Allocation(holdings),
		Portfolios:    Summaries(portfolios, holdings),
	}
}

func displayValue(h entity.Holding) decimal.Decimal {
	if h.CurrentValue != nil {
		return *h.CurrentValue
	}
	return h.AcquisitionCost
}
