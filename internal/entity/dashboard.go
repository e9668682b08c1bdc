package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dashboard is the combined valuation of every active holding in scope.
type Dashboard struct {
	TotalValue    decimal.Decimal    `json:"total_value"`
	TotalInvested decimal.Decimal    `json:"total_invested"`
	ProfitLoss    decimal.Decimal    `json:"profit_loss"`
	ProfitLossPct decimal.Decimal    `json:"profit_loss_pct"`
	Holdings      []Holding          `json:"holdings"`
	Allocation    []Allocation       `json:"allocation"`
	Portfolios    []PortfolioSummary `json:"portfolios"`
}

// Allocation is one holding-type slice of the total value.
type Allocation struct {
	Type         string          `json:"type"`
	TotalValue   decimal.Decimal `json:"total_value"`
	HoldingCount int             `json:"holding_count"`
	Percentage   decimal.Decimal `json:"percentage"`
}

// PortfolioSummary applies the dashboard totals to one portfolio's holdings.
type PortfolioSummary struct {
	ID            uint64          `json:"id"`
	Name          string          `json:"name"`
	BaseCurrency  string          `json:"base_currency"`
	TotalValue    decimal.Decimal `json:"total_value"`
	TotalInvested decimal.Decimal `json:"total_invested"`
	ProfitLoss    decimal.Decimal `json:"profit_loss"`
	ProfitLossPct decimal.Decimal `json:"profit_loss_pct"`
	HoldingCount  int             `json:"holding_count"`
	LastUpdated   time.Time       `json:"last_updated"`
}
