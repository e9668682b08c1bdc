// Package book holds the in-memory collection of portfolios and holdings.
// References between them are plain integer ids, not object pointers, so
// the ownership graph stays acyclic: a portfolio owns its holdings, a
// holding owns its ledger (kept separately in the transaction store).
package book

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vporoshin/folio/internal/entity"
)

var (
	ErrPortfolioNotFound = errors.New("portfolio not found")
	ErrHoldingNotFound   = errors.New("holding not found")
)

// Book is safe for concurrent use. Besides the collection lock it hands
// out one mutex per holding: the serialization point for the
// append-transaction + recompute + commit sequence, so two writers on the
// same holding cannot interleave their replays.
type Book struct {
	mu         sync.RWMutex
	portfolios map[uint64]*entity.Portfolio
	holdings   map[uint64]*entity.Holding

	nextPortfolioID uint64
	nextHoldingID   uint64

	lockMu sync.Mutex
	locks  map[uint64]*sync.Mutex
}

func New() *Book {
	return &Book{
		portfolios: make(map[uint64]*entity.Portfolio),
		holdings:   make(map[uint64]*entity.Holding),
		locks:      make(map[uint64]*sync.Mutex),
	}
}

// Lock returns the per-holding mutex, creating it on first use.
func (b *Book) Lock(holdingID uint64) *sync.Mutex {
	b.lockMu.Lock()
	defer b.lockMu.Unlock()
	if _, ok := b.locks[holdingID]; !ok {
		b.locks[holdingID] = &sync.Mutex{}
	}
	return b.locks[holdingID]
}

// CreatePortfolio assigns an id and stores the portfolio as active.
func (b *Book) CreatePortfolio(p entity.Portfolio) entity.Portfolio {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextPortfolioID++
	p.ID = b.nextPortfolioID
	now := time.Now().UTC()
	p.CreatedAt = now
	p.LastUpdated = now
	p.Active = true
	if p.BaseCurrency == "" {
		p.BaseCurrency = "USD"
	}

	stored := p
	b.portfolios[p.ID] = &stored
	return p
}

func (b *Book) Portfolio(id uint64) (entity.Portfolio, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p, ok := b.portfolios[id]
	if !ok || !p.Active {
		return entity.Portfolio{}, ErrPortfolioNotFound
	}
	return *p, nil
}

// Portfolios lists active portfolios, optionally filtered to one owner.
func (b *Book) Portfolios(ownerID *uint64) []entity.Portfolio {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]entity.Portfolio, 0, len(b.portfolios))
	for _, p := range b.portfolios {
		if !p.Active {
			continue
		}
		if ownerID != nil && p.OwnerID != *ownerID {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DeletePortfolio soft-deletes the portfolio and cascades the flag flip
// to every holding it owns. Rows are never removed.
func (b *Book) DeletePortfolio(id uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.portfolios[id]
	if !ok || !p.Active {
		return ErrPortfolioNotFound
	}
	now := time.Now().UTC()
	p.Active = false
	p.LastUpdated = now
	for _, h := range b.holdings {
		if h.PortfolioID == id && h.Active {
			h.Active = false
			h.LastUpdated = now
		}
	}
	return nil
}

// CreateHolding stores a new active holding under its portfolio. Derived
// fields start at zero regardless of what the caller passed in.
func (b *Book) CreateHolding(h entity.Holding) (entity.Holding, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.portfolios[h.PortfolioID]
	if !ok || !p.Active {
		return entity.Holding{}, ErrPortfolioNotFound
	}

	b.nextHoldingID++
	h.ID = b.nextHoldingID
	now := time.Now().UTC()
	h.CreatedAt = now
	h.LastUpdated = now
	h.Active = true
	h.Quantity = decimal.Zero
	h.AcquisitionCost = decimal.Zero
	h.CurrentValue = nil
	if h.Currency == "" {
		h.Currency = "USD"
	}

	stored := h
	b.holdings[h.ID] = &stored
	return h, nil
}

func (b *Book) Holding(id uint64) (entity.Holding, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	h, ok := b.holdings[id]
	if !ok {
		return entity.Holding{}, ErrHoldingNotFound
	}
	return *h, nil
}

// UpdateMetadata changes descriptive fields only; derived state stays
// exactly as replay left it. Changing the currency invalidates the
// cached exchange rate and the USD-normalized fields, which belong to
// the old denomination.
func (b *Book) UpdateMetadata(id uint64, name, symbol, typeTag, currency, notes string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.holdings[id]
	if !ok || !h.Active {
		return ErrHoldingNotFound
	}
	if !strings.EqualFold(h.Currency, currency) {
		h.RateToUSD = nil
		h.RateFetchedAt = nil
		h.AcquisitionCostUSD = nil
		h.CurrentValueUSD = nil
	}
	h.Name = name
	h.Symbol = symbol
	h.Type = typeTag
	h.Currency = currency
	h.Notes = notes
	h.LastUpdated = time.Now().UTC()
	return nil
}

// SoftDeleteHolding flips the active flag; the ledger stays intact.
func (b *Book) SoftDeleteHolding(id uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.holdings[id]
	if !ok || !h.Active {
		return ErrHoldingNotFound
	}
	h.Active = false
	h.LastUpdated = time.Now().UTC()
	return nil
}

// HoldingsByPortfolio lists the portfolio's active holdings ordered by
// type then name.
func (b *Book) HoldingsByPortfolio(portfolioID uint64) []entity.Holding {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]entity.Holding, 0)
	for _, h := range b.holdings {
		if h.PortfolioID == portfolioID && h.Active {
			out = append(out, *h)
		}
	}
	sortHoldings(out)
	return out
}

// HoldingsByType lists active holdings with the given type tag.
func (b *Book) HoldingsByType(typeTag string) []entity.Holding {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]entity.Holding, 0)
	for _, h := range b.holdings {
		if h.Active && h.Type == typeTag {
			out = append(out, *h)
		}
	}
	sortHoldings(out)
	return out
}

// ActiveHoldings lists every active holding, optionally scoped to the
// portfolios of one owner.
func (b *Book) ActiveHoldings(ownerID *uint64) []entity.Holding {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]entity.Holding, 0, len(b.holdings))
	for _, h := range b.holdings {
		if !h.Active {
			continue
		}
		if ownerID != nil {
			p, ok := b.portfolios[h.PortfolioID]
			if !ok || p.OwnerID != *ownerID {
				continue
			}
		}
		out = append(out, *h)
	}
	sortHoldings(out)
	return out
}

// ActiveNonUSD lists active holdings whose currency is not USD; the input
// set for the batch rate refresh.
func (b *Book) ActiveNonUSD(_ context.Context) ([]entity.Holding, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]entity.Holding, 0)
	for _, h := range b.holdings {
		if h.Active && !strings.EqualFold(h.Currency, "USD") {
			out = append(out, *h)
		}
	}
	sortHoldings(out)
	return out, nil
}

// CommitDerived atomically replaces the replay-derived fields. A nil
// currentValue leaves the existing mark untouched, matching the fold
// semantics where only a valuation transaction overwrites it.
func (b *Book) CommitDerived(_ context.Context, id uint64, quantity, acquisitionCost decimal.Decimal, currentValue *decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.holdings[id]
	if !ok {
		return ErrHoldingNotFound
	}
	h.Quantity = quantity
	h.AcquisitionCost = acquisitionCost
	if currentValue != nil {
		v := *currentValue
		h.CurrentValue = &v
	}
	h.LastUpdated = time.Now().UTC()
	return nil
}

// SetCurrentValue is the explicit value-override path, bypassing replay.
func (b *Book) SetCurrentValue(id uint64, value decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.holdings[id]
	if !ok || !h.Active {
		return ErrHoldingNotFound
	}
	h.CurrentValue = &value
	h.LastUpdated = time.Now().UTC()
	return nil
}

// CommitRates writes the exchange rate and all USD-normalized fields in
// one step so readers never observe a half-refreshed holding.
func (b *Book) CommitRates(_ context.Context, id uint64, rateToUSD decimal.Decimal, fetchedAt time.Time,
	acquisitionCostUSD decimal.Decimal, currentValueUSD *decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.holdings[id]
	if !ok || !h.Active {
		return ErrHoldingNotFound
	}
	rate := rateToUSD
	cost := acquisitionCostUSD
	h.RateToUSD = &rate
	h.RateFetchedAt = &fetchedAt
	h.AcquisitionCostUSD = &cost
	if currentValueUSD != nil {
		v := *currentValueUSD
		h.CurrentValueUSD = &v
	} else {
		h.CurrentValueUSD = nil
	}
	h.LastUpdated = time.Now().UTC()
	return nil
}

// LastKnownRate returns the most recently fetched rate recorded for the
// currency among all holdings, active or not. Nil when none carries one.
func (b *Book) LastKnownRate(_ context.Context, currency string) (*decimal.Decimal, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var best *entity.Holding
	for _, h := range b.holdings {
		if !strings.EqualFold(h.Currency, currency) || h.RateToUSD == nil || h.RateFetchedAt == nil {
			continue
		}
		if best == nil || h.RateFetchedAt.After(*best.RateFetchedAt) {
			best = h
		}
	}
	if best == nil {
		return nil, nil
	}
	rate := *best.RateToUSD
	return &rate, nil
}

func sortHoldings(hs []entity.Holding) {
	sort.Slice(hs, func(i, j int) bool {
		if hs[i].Type != hs[j].Type {
			return hs[i].Type < hs[j].Type
		}
		if hs[i].Name != hs[j].Name {
			return hs[i].Name < hs[j].Name
		}
		return hs[i].ID < hs[j].ID
	})
}
