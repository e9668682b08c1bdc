package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TxKind is the closed set of transaction kinds a ledger can carry.
type TxKind int

const (
	TxBuy TxKind = iota + 1
	TxSell
	TxDeposit
	TxWithdrawal
	TxFee
	TxDividend
	TxMaintenance
	TxImprovement
	TxValuation
)

func (k TxKind) String() string {
	switch k {
	case TxBuy:
		return "buy"
	case TxSell:
		return "sell"
	case TxDeposit:
		return "deposit"
	case TxWithdrawal:
		return "withdrawal"
	case TxFee:
		return "fee"
	case TxDividend:
		return "dividend"
	case TxMaintenance:
		return "maintenance"
	case TxImprovement:
		return "improvement"
	case TxValuation:
		return "valuation"
	}
	return fmt.Sprintf("TxKind(%d)", int(k))
}

// AllowsZeroAmount reports whether the kind carries no quantity delta,
// so a zero amount is legitimate rather than a validation error.
func (k TxKind) AllowsZeroAmount() bool {
	switch k {
	case TxFee, TxDividend, TxMaintenance, TxImprovement, TxValuation:
		return true
	}
	return false
}

// Transaction is a single immutable ledger record. It belongs to exactly
// one holding and one portfolio. Seq is the insertion order assigned by
// the ledger store and breaks ties between equal timestamps during replay.
type Transaction struct {
	ID          uint64           `json:"id"`
	HoldingID   uint64           `json:"holding_id"`
	PortfolioID uint64           `json:"portfolio_id"`
	Kind        TxKind           `json:"kind"`
	Amount      decimal.Decimal  `json:"amount"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	TotalValue  decimal.Decimal  `json:"total_value"`
	Currency    string           `json:"currency"`
	Timestamp   time.Time        `json:"timestamp"`
	Notes       string           `json:"notes,omitempty"`
	Seq         uint64           `json:"seq"`
}

// Validate rejects malformed input before it enters the ledger.
// now is injected so callers control the clock.
func (t Transaction) Validate(now time.Time) error {
	if t.Kind < TxBuy || t.Kind > TxValuation {
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown transaction kind %d", int(t.Kind))}
	}
	if t.HoldingID == 0 {
		return &ValidationError{Field: "holding_id", Reason: "holding id is required"}
	}
	if t.PortfolioID == 0 {
		return &ValidationError{Field: "portfolio_id", Reason: "portfolio id is required"}
	}
	if t.Timestamp.After(now) {
		return &ValidationError{Field: "timestamp", Reason: "timestamp must not be in the future"}
	}
	if t.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Reason: "amount must not be negative"}
	}
	if t.Amount.IsZero() && !t.Kind.AllowsZeroAmount() {
		return &ValidationError{Field: "amount", Reason: fmt.Sprintf("amount must be positive for %s transactions", t.Kind)}
	}
	if !t.TotalValue.IsPositive() {
		return &ValidationError{Field: "total_value", Reason: "total value must be positive"}
	}
	if t.UnitPrice != nil && !t.UnitPrice.IsPositive() {
		return &ValidationError{Field: "unit_price", Reason: "unit price must be positive when present"}
	}
	if len(t.Currency) < 3 || len(t.Currency) > 10 {
		return &ValidationError{Field: "currency", Reason: "currency code must be 3-10 characters"}
	}
	return nil
}

// ValidationError describes a rejected transaction field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
