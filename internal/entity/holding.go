package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is a single owned item (crypto, stock, real estate) whose
// Quantity, AcquisitionCost and CurrentValue are derived state: they are
// only ever written by replaying the holding's transaction ledger, never
// set directly by callers.
type Holding struct {
	ID          uint64 `json:"id"`
	PortfolioID uint64 `json:"portfolio_id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol,omitempty"`
	Notes       string `json:"notes,omitempty"`

	Quantity        decimal.Decimal  `json:"quantity"`
	AcquisitionCost decimal.Decimal  `json:"acquisition_cost"`
	CurrentValue    *decimal.Decimal `json:"current_value,omitempty"`

	Currency           string           `json:"currency"`
	AcquisitionCostUSD *decimal.Decimal `json:"acquisition_cost_usd,omitempty"`
	CurrentValueUSD    *decimal.Decimal `json:"current_value_usd,omitempty"`
	RateToUSD          *decimal.Decimal `json:"rate_to_usd,omitempty"`
	RateFetchedAt      *time.Time       `json:"rate_fetched_at,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
	Active      bool      `json:"active"`
}

// IsCrypto reports whether the holding tracks a cryptocurrency and can be
// priced through a market quote source.
func (h Holding) IsCrypto() bool {
	return h.Type == TypeCryptocurrency && h.Symbol != ""
}

// Well-known holding type tags. Free-form strings are accepted too; these
// are the ones the pricing pipeline cares about.
const (
	TypeCryptocurrency = "Cryptocurrency"
	TypeStock          = "Stock"
	TypeRealEstate     = "RealEstate"
	TypeCash           = "Cash"
)
