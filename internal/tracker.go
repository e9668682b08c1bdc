package internal

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vporoshin/folio/internal/entity"
	"github.com/vporoshin/folio/internal/events"
	"github.com/vporoshin/folio/internal/services/alerts"
	"github.com/vporoshin/folio/internal/services/quotes"
	"github.com/vporoshin/folio/internal/services/rates"
	"github.com/vporoshin/folio/internal/services/replay"
	"github.com/vporoshin/folio/internal/services/valuation"
	"github.com/vporoshin/folio/internal/storage/book"
	"github.com/vporoshin/folio/internal/storage/ledger"
)

// Tracker ties the ledger, the holdings book and the market-facing
// services together. Every mutation of a holding's derived state goes
// through a full replay of its transaction ledger; the per-holding lock
// from the book serializes append + recompute + commit so concurrent
// writers on one holding cannot interleave.
type Tracker struct {
	book    *book.Book
	ledger  *ledger.WALStore
	rates   *rates.Provider
	quoter  quotes.Quoter
	scanner *alerts.Scanner
	pub     events.Publisher // nil means events are dropped
	logger  *zap.Logger
	now     func() time.Time
}

func NewTracker(b *book.Book, l *ledger.WALStore, r *rates.Provider, q quotes.Quoter, pub events.Publisher, logger *zap.Logger) *Tracker {
	return &Tracker{
		book:    b,
		ledger:  l,
		rates:   r,
		quoter:  q,
		scanner: alerts.NewScanner(q, logger),
		pub:     pub,
		logger:  logger,
		now:     time.Now,
	}
}

// CreatePortfolio registers a new active portfolio.
func (t *Tracker) CreatePortfolio(p entity.Portfolio) entity.Portfolio {
	return t.book.CreatePortfolio(p)
}

// DeletePortfolio soft-deletes the portfolio and all holdings it owns.
func (t *Tracker) DeletePortfolio(id uint64) error {
	return t.book.DeletePortfolio(id)
}

// Portfolios lists active portfolios, optionally scoped to one owner.
func (t *Tracker) Portfolios(ownerID *uint64) []entity.Portfolio {
	return t.book.Portfolios(ownerID)
}

// CreateHolding registers a holding under its portfolio. Derived state
// starts at zero and follows only from transactions. USD normalization is
// attempted immediately but a rate failure never aborts the creation.
func (t *Tracker) CreateHolding(ctx context.Context, h entity.Holding) (entity.Holding, error) {
	created, err := t.book.CreateHolding(h)
	if err != nil {
		return entity.Holding{}, err
	}
	t.normalizeUSD(ctx, created.ID)
	return t.book.Holding(created.ID)
}

// Holding returns one holding snapshot by id.
func (t *Tracker) Holding(id uint64) (entity.Holding, error) {
	return t.book.Holding(id)
}

// UpdateHolding changes descriptive fields; derived state is untouched.
func (t *Tracker) UpdateHolding(ctx context.Context, id uint64, name, symbol, typeTag, currency, notes string) (entity.Holding, error) {
	if err := t.book.UpdateMetadata(id, name, symbol, typeTag, currency, notes); err != nil {
		return entity.Holding{}, err
	}
	t.normalizeUSD(ctx, id)
	return t.book.Holding(id)
}

// DeleteHolding soft-deletes the holding; its ledger stays intact.
func (t *Tracker) DeleteHolding(id uint64) error {
	return t.book.SoftDeleteHolding(id)
}

// HoldingsByPortfolio lists a portfolio's active holdings.
func (t *Tracker) HoldingsByPortfolio(portfolioID uint64) []entity.Holding {
	return t.book.HoldingsByPortfolio(portfolioID)
}

// HoldingsByType lists active holdings of one type tag.
func (t *Tracker) HoldingsByType(typeTag string) []entity.Holding {
	return t.book.HoldingsByType(typeTag)
}

// AddTransaction validates and appends a transaction, then replays the
// holding's full ledger and commits the derived state. If the commit
// fails the appended record is tombstoned so ledger and holding never
// diverge.
func (t *Tracker) AddTransaction(ctx context.Context, tx entity.Transaction) (entity.Transaction, error) {
	if err := tx.Validate(t.now().UTC()); err != nil {
		return entity.Transaction{}, err
	}

	h, err := t.book.Holding(tx.HoldingID)
	if err != nil {
		return entity.Transaction{}, err
	}
	if !h.Active || h.PortfolioID != tx.PortfolioID {
		return entity.Transaction{}, errors.Wrapf(book.ErrHoldingNotFound,
			"holding %d not found in portfolio %d", tx.HoldingID, tx.PortfolioID)
	}

	lock := t.book.Lock(tx.HoldingID)
	lock.Lock()
	defer lock.Unlock()

	stored, err := t.ledger.Append(tx)
	if err != nil {
		return entity.Transaction{}, errors.Wrap(err, "append transaction")
	}

	res := replay.Recompute(t.ledger.ByHolding(tx.HoldingID))
	if err := t.book.CommitDerived(ctx, tx.HoldingID, res.Quantity, res.AcquisitionCost, res.CurrentValue); err != nil {
		if rbErr := t.ledger.Delete(stored.ID); rbErr != nil {
			t.logger.Error("rollback of appended transaction failed",
				zap.Uint64("transaction_id", stored.ID), zap.Error(rbErr))
		}
		return entity.Transaction{}, errors.Wrap(err, "commit recomputed holding")
	}

	t.normalizeUSD(ctx, tx.HoldingID)
	t.publish(ctx, stored)
	return stored, nil
}

// DeleteTransaction tombstones the transaction and recommits the owning
// holding's replayed state.
func (t *Tracker) DeleteTransaction(ctx context.Context, txID uint64) error {
	tx, err := t.ledger.Get(txID)
	if err != nil {
		return err
	}

	lock := t.book.Lock(tx.HoldingID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := t.book.Holding(tx.HoldingID); err != nil {
		return err
	}
	if err := t.ledger.Delete(txID); err != nil {
		return err
	}

	res := replay.Recompute(t.ledger.ByHolding(tx.HoldingID))
	if err := t.book.CommitDerived(ctx, tx.HoldingID, res.Quantity, res.AcquisitionCost, res.CurrentValue); err != nil {
		return errors.Wrap(err, "commit recomputed holding")
	}

	t.normalizeUSD(ctx, tx.HoldingID)
	return nil
}

// AveragePrice returns the lifetime average unit acquisition price for
// the holding, over buys and deposits only.
func (t *Tracker) AveragePrice(holdingID uint64) (decimal.Decimal, error) {
	if _, err := t.book.Holding(holdingID); err != nil {
		return decimal.Zero, err
	}
	return replay.AveragePrice(t.ledger.ByHolding(holdingID)), nil
}

// History lists the holding's transactions newest first.
func (t *Tracker) History(holdingID uint64) ([]entity.Transaction, error) {
	if _, err := t.book.Holding(holdingID); err != nil {
		return nil, err
	}
	return t.ledger.History(holdingID), nil
}

// Transactions lists live transactions, optionally scoped to a portfolio.
func (t *Tracker) Transactions(portfolioID *uint64) []entity.Transaction {
	if portfolioID != nil {
		return t.ledger.ByPortfolio(*portfolioID)
	}
	return t.ledger.All()
}

// OverrideValue sets the holding's current value directly, bypassing the
// ledger. This is the one sanctioned write to derived state outside
// replay.
func (t *Tracker) OverrideValue(ctx context.Context, holdingID uint64, value decimal.Decimal) error {
	if err := t.book.SetCurrentValue(holdingID, value); err != nil {
		return err
	}
	t.normalizeUSD(ctx, holdingID)
	return nil
}

// Dashboard aggregates every active holding in scope into totals,
// allocation and per-portfolio summaries.
func (t *Tracker) Dashboard(ownerID *uint64) entity.Dashboard {
	holdings := t.book.ActiveHoldings(ownerID)
	portfolios := t.book.Portfolios(ownerID)
	return valuation.Aggregate(portfolios, holdings)
}

// AllocationReport groups holdings by type, optionally for one portfolio.
func (t *Tracker) AllocationReport(portfolioID *uint64) []entity.Allocation {
	var holdings []entity.Holding
	if portfolioID != nil {
		holdings = t.book.HoldingsByPortfolio(*portfolioID)
	} else {
		holdings = t.book.ActiveHoldings(nil)
	}
	return valuation.Allocation(holdings)
}

// RefreshRates re-fetches exchange rates for all active non-USD holdings.
func (t *Tracker) RefreshRates(ctx context.Context) error {
	return t.rates.RefreshAll(ctx, t.book)
}

// RefreshPrices re-quotes every active crypto holding with a symbol and
// marks its current value to quantity times the live price. Per-holding
// failures are logged and skipped.
func (t *Tracker) RefreshPrices(ctx context.Context) error {
	if t.quoter == nil {
		return errors.New("no quote source configured")
	}
	runID := uuid.NewString()
	log := t.logger.With(zap.String("price_run", runID))

	updated := 0
	holdings := t.book.HoldingsByType(entity.TypeCryptocurrency)
	for _, h := range holdings {
		if h.Symbol == "" {
			continue
		}
		q, err := t.quoter.Quote(ctx, h.Symbol, 1)
		if err != nil {
			log.Warn("price update failed, skipping holding",
				zap.Uint64("holding_id", h.ID), zap.String("symbol", h.Symbol), zap.Error(err))
			continue
		}
		value := h.Quantity.Mul(q.Price)
		if err := t.book.SetCurrentValue(h.ID, value); err != nil {
			log.Warn("price commit failed, skipping holding",
				zap.Uint64("holding_id", h.ID), zap.Error(err))
			continue
		}
		t.normalizeUSD(ctx, h.ID)
		updated++
	}
	log.Info("price refresh complete", zap.Int("updated", updated), zap.Int("holdings", len(holdings)))
	return nil
}

// Movers scans live quotes for the tracked crypto symbols against the
// threshold.
func (t *Tracker) Movers(ctx context.Context, thresholdPct decimal.Decimal, windowDays int) ([]entity.Alert, error) {
	seen := make(map[string]struct{})
	var symbols []string
	for _, h := range t.book.HoldingsByType(entity.TypeCryptocurrency) {
		if h.Symbol == "" {
			continue
		}
		if _, ok := seen[h.Symbol]; ok {
			continue
		}
		seen[h.Symbol] = struct{}{}
		symbols = append(symbols, h.Symbol)
	}
	return t.scanner.Movers(ctx, symbols, thresholdPct, windowDays)
}

// normalizeUSD refreshes the holding's USD-normalized fields. A fresh
// cached rate is reused; a stale or missing one triggers a fetch through
// the provider, which itself degrades instead of failing. Nothing on this
// path aborts the caller.
func (t *Tracker) normalizeUSD(ctx context.Context, holdingID uint64) {
	h, err := t.book.Holding(holdingID)
	if err != nil {
		t.logger.Warn("usd normalization skipped", zap.Uint64("holding_id", holdingID), zap.Error(err))
		return
	}
	if h.Currency == "" || equalsUSD(h.Currency) {
		return
	}

	var rateToUSD decimal.Decimal
	fetchedAt := h.RateFetchedAt
	if !rates.IsStale(h.RateFetchedAt) && h.RateToUSD != nil {
		rateToUSD = *h.RateToUSD
	} else {
		rateToUSD = t.rates.RateToUSD(ctx, h.Currency)
		now := t.now().UTC()
		fetchedAt = &now
	}

	costUSD := rates.ToUSD(h.AcquisitionCost, h.Currency, rateToUSD)
	var valueUSD *decimal.Decimal
	if h.CurrentValue != nil {
		v := rates.ToUSD(*h.CurrentValue, h.Currency, rateToUSD)
		valueUSD = &v
	}
	if err := t.book.CommitRates(ctx, holdingID, rateToUSD, *fetchedAt, costUSD, valueUSD); err != nil {
		t.logger.Warn("usd normalization commit failed",
			zap.Uint64("holding_id", holdingID), zap.Error(err))
	}
}

func (t *Tracker) publish(ctx context.Context, tx entity.Transaction) {
	if t.pub == nil {
		return
	}
	event := events.TransactionAppended{
		TransactionID: tx.ID,
		HoldingID:     tx.HoldingID,
		PortfolioID:   tx.PortfolioID,
		Kind:          tx.Kind.String(),
		Amount:        tx.Amount,
		TotalValue:    tx.TotalValue,
		Currency:      tx.Currency,
		OccurredAt:    tx.Timestamp,
	}
	if err := t.pub.Publish(ctx, event); err != nil {
		t.logger.Warn("event publish failed", zap.Uint64("transaction_id", tx.ID), zap.Error(err))
	}
}

func equalsUSD(code string) bool {
	return strings.EqualFold(code, "USD")
}
