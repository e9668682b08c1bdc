package internal

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vporoshin/folio/config"
)

// RunRefresher periodically refreshes exchange rates and crypto prices
// and logs notable movers. It blocks until ctx is cancelled. Individual
// refresh failures are logged, not fatal: external source degradation
// must never take the tracker down.
func RunRefresher(ctx context.Context, tracker *Tracker, cfg config.Config, logger *zap.Logger) error {
	refresh := func() {
		if err := tracker.RefreshRates(ctx); err != nil {
			logger.Error("exchange rate refresh failed", zap.Error(err))
		}
		if err := tracker.RefreshPrices(ctx); err != nil {
			logger.Error("price refresh failed", zap.Error(err))
		}
		movers, err := tracker.Movers(ctx, cfg.AlertThresholdPct, cfg.AlertWindowDays)
		if err != nil {
			logger.Error("mover scan failed", zap.Error(err))
			return
		}
		for _, alert := range movers {
			logger.Info("mover alert",
				zap.String("symbol", alert.Symbol),
				zap.String("price", alert.Price.String()),
				zap.String("change_pct", alert.ChangePct.String()))
		}
	}

	refresh()

	ticker := time.NewTicker(cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			refresh()
		}
	}
}
