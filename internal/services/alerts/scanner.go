// Package alerts surfaces holdings whose market price moved past a
// caller-supplied threshold.
package alerts

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vporoshin/folio/internal/entity"
	"github.com/vporoshin/folio/internal/services/quotes"
)

// Scan filters quotes to those whose percentage change meets or exceeds
// thresholdPct. Pure filter, no state, no I/O.
func Scan(qs []entity.Quote, thresholdPct decimal.Decimal) []entity.Alert {
	out := make([]entity.Alert, 0, len(qs))
	for _, q := range qs {
		if q.ChangePct.GreaterThanOrEqual(thresholdPct) {
			out = append(out, entity.Alert{
				Symbol:    q.Symbol,
				Name:      q.Name,
				Price:     q.Price,
				ChangePct: q.ChangePct,
			})
		}
	}
	return out
}

// Scanner fetches live quotes for a symbol set and applies Scan.
type Scanner struct {
	quoter quotes.Quoter
	logger *zap.Logger
}

func NewScanner(quoter quotes.Quoter, logger *zap.Logger) *Scanner {
	return &Scanner{quoter: quoter, logger: logger}
}

// Movers returns alerts for every symbol whose change over windowDays
// meets or exceeds thresholdPct. Symbols that fail to quote are logged
// and skipped rather than failing the scan.
func (s *Scanner) Movers(ctx context.Context, symbols []string, thresholdPct decimal.Decimal, windowDays int) ([]entity.Alert, error) {
	qs := make([]entity.Quote, 0, len(symbols))
	for _, symbol := range symbols {
		q, err := s.quoter.Quote(ctx, symbol, windowDays)
		if err != nil {
			s.logger.Warn("quote failed, skipping symbol",
				zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		qs = append(qs, q)
	}
	return Scan(qs, thresholdPct), nil
}
