package ledger

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/gowal"

	"github.com/vporoshin/folio/internal/entity"
)

func newTx(holdingID uint64, kind entity.TxKind, amount string, ts time.Time) entity.Transaction {
	return entity.Transaction{
		HoldingID:   holdingID,
		PortfolioID: 1,
		Kind:        kind,
		Amount:      decimal.RequireFromString(amount),
		TotalValue:  decimal.RequireFromString(amount),
		Currency:    "USD",
		Timestamp:   ts,
	}
}

func TestAppendAssignsSequentialIDs(t *testing.T) {
	s, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	now := time.Now().UTC()
	first, err := s.Append(newTx(1, entity.TxBuy, "10", now))
	require.NoError(t, err)
	second, err := s.Append(newTx(1, entity.TxSell, "4", now))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.ID)
	assert.Equal(t, uint64(2), second.ID)
	assert.Equal(t, second.ID, second.Seq)
}

func TestByHoldingPreservesInsertionOrder(t *testing.T) {
	s, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	now := time.Now().UTC()
	// same timestamp on purpose: insertion order is the tie-break
	for _, amount := range []string{"1", "2", "3"} {
		_, err := s.Append(newTx(7, entity.TxBuy, amount, now))
		require.NoError(t, err)
	}
	_, err = s.Append(newTx(8, entity.TxBuy, "99", now))
	require.NoError(t, err)

	got := s.ByHolding(7)
	require.Len(t, got, 3)
	for i, amount := range []string{"1", "2", "3"} {
		assert.True(t, got[i].Amount.Equal(decimal.RequireFromString(amount)))
	}
}

func TestDeleteTombstonesRecord(t *testing.T) {
	s, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	now := time.Now().UTC()
	tx, err := s.Append(newTx(1, entity.TxBuy, "10", now))
	require.NoError(t, err)

	require.NoError(t, s.Delete(tx.ID))
	assert.ErrorIs(t, s.Delete(tx.ID), ErrTxNotFound)

	_, err = s.Get(tx.ID)
	assert.ErrorIs(t, err, ErrTxNotFound)
	assert.Empty(t, s.ByHolding(1))
}

func TestReopenRecoversLiveSet(t *testing.T) {
	dir := t.TempDir()

	s, err := NewWALStore(dir)
	require.NoError(t, err)

	now := time.Now().UTC()
	kept, err := s.Append(newTx(1, entity.TxBuy, "10", now))
	require.NoError(t, err)
	doomed, err := s.Append(newTx(1, entity.TxBuy, "20", now))
	require.NoError(t, err)
	require.NoError(t, s.Delete(doomed.ID))
	require.NoError(t, s.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got := reopened.ByHolding(1)
	require.Len(t, got, 1)
	assert.Equal(t, kept.ID, got[0].ID)
	assert.True(t, got[0].Amount.Equal(decimal.RequireFromString("10")))

	// id assignment continues past the tombstoned record
	next, err := reopened.Append(newTx(1, entity.TxBuy, "30", now))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), next.ID)
}

// seedSegments writes count transaction records straight through gowal
// with tiny segments, so rotation behavior can be exercised without
// millions of appends.
func seedSegments(t *testing.T, dir string, maxSegs, count int) {
	t.Helper()

	w, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "ledger_",
		SegmentThreshold: 3,
		MaxSegments:      maxSegs,
		IsInSyncDiskMode: true,
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	for i := 1; i <= count; i++ {
		tx := newTx(1, entity.TxBuy, "1", now)
		tx.ID = uint64(i)
		tx.Seq = tx.ID
		payload, err := json.Marshal(tx)
		require.NoError(t, err)
		require.NoError(t, w.Write(uint64(i), fmt.Sprintf("tx_%d", tx.ID), payload))
	}
	require.NoError(t, w.Close())
}

func TestReplaySpansSegments(t *testing.T) {
	dir := t.TempDir()
	seedSegments(t, dir, 100, 10)

	s, err := NewWALStore(dir)
	require.NoError(t, err)
	defer s.Close()

	assert.Len(t, s.All(), 10)

	// appends continue past the seeded history
	next, err := s.Append(newTx(1, entity.TxBuy, "2", time.Now().UTC()))
	require.NoError(t, err)
	assert.Equal(t, uint64(11), next.ID)
}

func TestOpenRefusesTruncatedLedger(t *testing.T) {
	dir := t.TempDir()
	// small cap forces rotation to drop the oldest segments
	seedSegments(t, dir, 2, 12)

	_, err := NewWALStore(dir)
	assert.ErrorIs(t, err, ErrLedgerTruncated)
}

func TestHistoryNewestFirst(t *testing.T) {
	s, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = s.Append(newTx(1, entity.TxBuy, "1", base))
	require.NoError(t, err)
	_, err = s.Append(newTx(1, entity.TxBuy, "2", base.Add(time.Hour)))
	require.NoError(t, err)

	got := s.History(1)
	require.Len(t, got, 2)
	assert.True(t, got[0].Amount.Equal(decimal.RequireFromString("2")))
	assert.True(t, got[1].Amount.Equal(decimal.RequireFromString("1")))
}

func TestByPortfolioAndAll(t *testing.T) {
	s, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	now := time.Now().UTC()
	a := newTx(1, entity.TxBuy, "1", now)
	a.PortfolioID = 1
	b := newTx(2, entity.TxBuy, "2", now)
	b.PortfolioID = 2

	_, err = s.Append(a)
	require.NoError(t, err)
	_, err = s.Append(b)
	require.NoError(t, err)

	assert.Len(t, s.ByPortfolio(1), 1)
	assert.Len(t, s.ByPortfolio(2), 1)
	assert.Len(t, s.All(), 2)
}
