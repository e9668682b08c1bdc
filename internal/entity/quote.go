package entity

import "github.com/shopspring/decimal"

// Quote is a point-in-time market quote for one symbol. ChangePct is the
// percentage change over the quote source's window.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name,omitempty"`
	Price     decimal.Decimal `json:"price"`
	ChangePct decimal.Decimal `json:"change_pct"`
}

// Alert is a quote whose move crossed the caller's threshold.
type Alert struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name,omitempty"`
	Price     decimal.Decimal `json:"price"`
	ChangePct decimal.Decimal `json:"change_pct"`
}
