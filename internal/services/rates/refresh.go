package rates

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vporoshin/folio/internal/entity"
)

// HoldingBook is the slice of the storage layer the batch refresh needs:
// enumeration of active non-USD holdings and an atomic commit of all four
// USD-normalized fields.
type HoldingBook interface {
	ActiveNonUSD(ctx context.Context) ([]entity.Holding, error)
	CommitRates(ctx context.Context, holdingID uint64, rateToUSD decimal.Decimal, fetchedAt time.Time,
		acquisitionCostUSD decimal.Decimal, currentValueUSD *decimal.Decimal) error
}

// RefreshAll re-fetches the rate for every active non-USD holding and
// persists the recomputed USD-normalized cost and value. Failures on
// individual holdings are logged and skipped; the batch itself only fails
// when the holdings cannot be enumerated at all.
func (p *Provider) RefreshAll(ctx context.Context, book HoldingBook) error {
	runID := uuid.NewString()
	log := p.logger.With(zap.String("refresh_run", runID))

	holdings, err := book.ActiveNonUSD(ctx)
	if err != nil {
		return err
	}
	log.Info("refreshing exchange rates", zap.Int("holdings", len(holdings)))

	refreshed := 0
	for _, h := range holdings {
		rate := p.RateToUSD(ctx, h.Currency)
		fetchedAt := time.Now().UTC()

		costUSD := ToUSD(h.AcquisitionCost, h.Currency, rate)
		var valueUSD *decimal.Decimal
		if h.CurrentValue != nil {
			v := ToUSD(*h.CurrentValue, h.Currency, rate)
			valueUSD = &v
		}

		if err := book.CommitRates(ctx, h.ID, rate, fetchedAt, costUSD, valueUSD); err != nil {
			log.Warn("skipping holding, rate commit failed",
				zap.Uint64("holding_id", h.ID),
				zap.String("currency", h.Currency),
				zap.Error(err))
			continue
		}
		refreshed++
		log.Debug("holding rate refreshed",
			zap.Uint64("holding_id", h.ID),
			zap.String("currency", h.Currency),
			zap.String("rate", rate.String()))
	}

	log.Info("exchange rate refresh complete",
		zap.Int("refreshed", refreshed), zap.Int("skipped", len(holdings)-refreshed))
	return nil
}
