// Package events defines the outbound event surface. Publishing is
// optional plumbing: a nil publisher means events are dropped.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Publisher delivers an event to an external sink.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// TransactionAppended is emitted after a transaction has been recorded
// and the owning holding's derived state recommitted.
type TransactionAppended struct {
	TransactionID uint64          `json:"transaction_id"`
	HoldingID     uint64          `json:"holding_id"`
	PortfolioID   uint64          `json:"portfolio_id"`
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	TotalValue    decimal.Decimal `json:"total_value"`
	Currency      string          `json:"currency"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
