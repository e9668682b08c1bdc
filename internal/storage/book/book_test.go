package book

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vporoshin/folio/internal/entity"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newFixture(t *testing.T) (*Book, entity.Portfolio, entity.Holding) {
	t.Helper()
	b := New()
	p := b.CreatePortfolio(entity.Portfolio{Name: "main", OwnerID: 7})
	h, err := b.CreateHolding(entity.Holding{
		PortfolioID: p.ID,
		Type:        entity.TypeCryptocurrency,
		Name:        "Bitcoin",
		Symbol:      "BTC",
		Currency:    "USD",
	})
	require.NoError(t, err)
	return b, p, h
}

func TestCreateHoldingStartsWithZeroDerivedState(t *testing.T) {
	b := New()
	p := b.CreatePortfolio(entity.Portfolio{Name: "main"})

	someValue := dec("9999")
	h, err := b.CreateHolding(entity.Holding{
		PortfolioID:     p.ID,
		Type:            entity.TypeStock,
		Name:            "ACME",
		Quantity:        dec("42"),
		AcquisitionCost: dec("42"),
		CurrentValue:    &someValue,
	})
	require.NoError(t, err)

	// derived fields follow only from replay, whatever the caller passed
	assert.True(t, h.Quantity.IsZero())
	assert.True(t, h.AcquisitionCost.IsZero())
	assert.Nil(t, h.CurrentValue)
	assert.True(t, h.Active)
	assert.Equal(t, "USD", h.Currency)
}

func TestCreateHoldingUnknownPortfolio(t *testing.T) {
	b := New()
	_, err := b.CreateHolding(entity.Holding{PortfolioID: 99, Name: "ghost"})
	assert.ErrorIs(t, err, ErrPortfolioNotFound)
}

func TestCommitDerivedKeepsValueWhenNil(t *testing.T) {
	b, _, h := newFixture(t)
	ctx := context.Background()

	require.NoError(t, b.SetCurrentValue(h.ID, dec("500")))
	require.NoError(t, b.CommitDerived(ctx, h.ID, dec("2"), dec("200"), nil))

	got, err := b.Holding(h.ID)
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(dec("2")))
	assert.True(t, got.AcquisitionCost.Equal(dec("200")))
	require.NotNil(t, got.CurrentValue)
	assert.True(t, got.CurrentValue.Equal(dec("500")), "existing mark must survive a nil commit")

	mark := dec("300")
	require.NoError(t, b.CommitDerived(ctx, h.ID, dec("2"), dec("200"), &mark))
	got, err = b.Holding(h.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentValue.Equal(dec("300")))
}

func TestDeletePortfolioCascadesToHoldings(t *testing.T) {
	b, p, h := newFixture(t)

	require.NoError(t, b.DeletePortfolio(p.ID))

	_, err := b.Portfolio(p.ID)
	assert.ErrorIs(t, err, ErrPortfolioNotFound)

	// soft delete: the row survives, the active flag flips
	got, err := b.Holding(h.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Empty(t, b.HoldingsByPortfolio(p.ID))
}

func TestSoftDeleteHoldingKeepsRecord(t *testing.T) {
	b, p, h := newFixture(t)

	require.NoError(t, b.SoftDeleteHolding(h.ID))
	assert.ErrorIs(t, b.SoftDeleteHolding(h.ID), ErrHoldingNotFound)

	got, err := b.Holding(h.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Empty(t, b.HoldingsByPortfolio(p.ID))
}

func TestHoldingsByPortfolioOrderedByTypeThenName(t *testing.T) {
	b, p, _ := newFixture(t)

	_, err := b.CreateHolding(entity.Holding{PortfolioID: p.ID, Type: entity.TypeStock, Name: "Zeta"})
	require.NoError(t, err)
	_, err = b.CreateHolding(entity.Holding{PortfolioID: p.ID, Type: entity.TypeStock, Name: "Alpha"})
	require.NoError(t, err)

	got := b.HoldingsByPortfolio(p.ID)
	require.Len(t, got, 3)
	assert.Equal(t, "Bitcoin", got[0].Name)
	assert.Equal(t, "Alpha", got[1].Name)
	assert.Equal(t, "Zeta", got[2].Name)
}

func TestActiveHoldingsScopedToOwner(t *testing.T) {
	b, _, _ := newFixture(t)

	other := b.CreatePortfolio(entity.Portfolio{Name: "other", OwnerID: 8})
	_, err := b.CreateHolding(entity.Holding{PortfolioID: other.ID, Type: entity.TypeStock, Name: "ACME"})
	require.NoError(t, err)

	owner := uint64(7)
	got := b.ActiveHoldings(&owner)
	require.Len(t, got, 1)
	assert.Equal(t, "Bitcoin", got[0].Name)

	assert.Len(t, b.ActiveHoldings(nil), 2)
}

func TestActiveNonUSD(t *testing.T) {
	b, p, _ := newFixture(t)

	brl, err := b.CreateHolding(entity.Holding{PortfolioID: p.ID, Type: entity.TypeRealEstate, Name: "Apartment", Currency: "BRL"})
	require.NoError(t, err)

	got, err := b.ActiveNonUSD(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, brl.ID, got[0].ID)
}

func TestCommitRatesWritesAllUSDFieldsTogether(t *testing.T) {
	b, p, _ := newFixture(t)
	ctx := context.Background()

	h, err := b.CreateHolding(entity.Holding{PortfolioID: p.ID, Type: entity.TypeRealEstate, Name: "Apartment", Currency: "BRL"})
	require.NoError(t, err)
	require.NoError(t, b.CommitDerived(ctx, h.ID, dec("1"), dec("500000"), nil))

	fetchedAt := time.Now().UTC()
	valueUSD := dec("120000")
	require.NoError(t, b.CommitRates(ctx, h.ID, dec("0.2"), fetchedAt, dec("100000"), &valueUSD))

	got, err := b.Holding(h.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RateToUSD)
	assert.True(t, got.RateToUSD.Equal(dec("0.2")))
	require.NotNil(t, got.RateFetchedAt)
	require.NotNil(t, got.AcquisitionCostUSD)
	assert.True(t, got.AcquisitionCostUSD.Equal(dec("100000")))
	require.NotNil(t, got.CurrentValueUSD)
	assert.True(t, got.CurrentValueUSD.Equal(dec("120000")))
}

func TestLastKnownRatePrefersNewestFetch(t *testing.T) {
	b, p, _ := newFixture(t)
	ctx := context.Background()

	old, err := b.CreateHolding(entity.Holding{PortfolioID: p.ID, Type: entity.TypeRealEstate, Name: "Old", Currency: "BRL"})
	require.NoError(t, err)
	fresh, err := b.CreateHolding(entity.Holding{PortfolioID: p.ID, Type: entity.TypeRealEstate, Name: "Fresh", Currency: "BRL"})
	require.NoError(t, err)

	earlier := time.Now().Add(-48 * time.Hour)
	later := time.Now().Add(-1 * time.Hour)
	require.NoError(t, b.CommitRates(ctx, old.ID, dec("0.22"), earlier, dec("0"), nil))
	require.NoError(t, b.CommitRates(ctx, fresh.ID, dec("0.18"), later, dec("0"), nil))

	rate, err := b.LastKnownRate(ctx, "brl")
	require.NoError(t, err)
	require.NotNil(t, rate)
	assert.True(t, rate.Equal(dec("0.18")))

	none, err := b.LastKnownRate(ctx, "JPY")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestUpdateMetadataLeavesDerivedStateAlone(t *testing.T) {
	b, _, h := newFixture(t)
	ctx := context.Background()

	require.NoError(t, b.CommitDerived(ctx, h.ID, dec("3"), dec("900"), nil))
	require.NoError(t, b.UpdateMetadata(h.ID, "Bitcoin Cold Wallet", "BTC", entity.TypeCryptocurrency, "USD", "ledger nano"))

	got, err := b.Holding(h.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bitcoin Cold Wallet", got.Name)
	assert.True(t, got.Quantity.Equal(dec("3")))
	assert.True(t, got.AcquisitionCost.Equal(dec("900")))
}

func TestUpdateMetadataCurrencyChangeInvalidatesRate(t *testing.T) {
	b, _, h := newFixture(t)
	ctx := context.Background()

	require.NoError(t, b.CommitRates(ctx, h.ID, dec("0.2"), time.Now().UTC(), dec("20"), nil))

	// case-only change is the same denomination, cache stays
	require.NoError(t, b.UpdateMetadata(h.ID, h.Name, h.Symbol, h.Type, "usd", ""))
	got, err := b.Holding(h.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RateToUSD)
	require.NotNil(t, got.RateFetchedAt)

	// a real re-denomination drops the old currency's rate and USD fields
	require.NoError(t, b.UpdateMetadata(h.ID, h.Name, h.Symbol, h.Type, "EUR", ""))
	got, err = b.Holding(h.ID)
	require.NoError(t, err)
	assert.Nil(t, got.RateToUSD)
	assert.Nil(t, got.RateFetchedAt)
	assert.Nil(t, got.AcquisitionCostUSD)
	assert.Nil(t, got.CurrentValueUSD)
}

func TestLockReturnsSameMutexPerHolding(t *testing.T) {
	b := New()
	assert.Same(t, b.Lock(1), b.Lock(1))
	assert.NotSame(t, b.Lock(1), b.Lock(2))
}
