// Package quotes fetches market quotes for crypto symbols from exchange
// public APIs.
package quotes

import (
	"context"

	"github.com/vporoshin/folio/internal/entity"
)

// Quoter provides a current market quote for a symbol. windowDays hints
// the change window; sources that only publish 24h statistics apply a
// one-day window regardless.
type Quoter interface {
	Quote(ctx context.Context, symbol string, windowDays int) (entity.Quote, error)
}
