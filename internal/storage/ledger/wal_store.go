// Package ledger persists the append-only transaction log in a WAL.
// Records are never rewritten: a delete is a tombstone appended after the
// original record, and the live set is rebuilt by replaying all segments
// at open.
package ledger

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vporoshin/folio/internal/entity"
)

const (
	DefaultDir   = "./wal/transactions"
	segmentLimit = 1000

	// The WAL drops its oldest segment once this cap is exceeded, which
	// would truncate transaction history. Replay is only correct over
	// the full ledger, so capacity must outlast any realistic record
	// count; segmentLimit still keeps individual files small.
	maxSegments = 1 << 20

	txKeyPrefix        = "tx_"
	tombstoneKeyPrefix = "txdel_"
)

var (
	ErrTxNotFound = errors.New("transaction not found")

	// ErrLedgerTruncated means the oldest WAL segments are gone and the
	// surviving records no longer start at index 1. Derived state folded
	// from a partial ledger is silently wrong, so opening must fail
	// instead.
	ErrLedgerTruncated = errors.New("transaction ledger truncated: oldest records missing")
)

// WALStore is a WAL-backed transaction ledger with an in-memory index.
type WALStore struct {
	mu  sync.RWMutex
	wal *gowal.Wal

	txs      map[uint64]entity.Transaction
	order    []uint64 // insertion order of live transaction ids
	nextTxID uint64
}

// NewWALStore opens (or creates) the ledger at dir and replays existing
// segments to rebuild the live transaction set.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "ledger_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init transaction WAL")
	}

	s := &WALStore{
		wal: wal,
		txs: make(map[uint64]entity.Transaction),
	}
	if err := s.replay(); err != nil {
		_ = wal.Close()
		return nil, err
	}
	return s, nil
}

func (s *WALStore) replay() error {
	var minIndex uint64
	for msg := range s.wal.Iterator() {
		if minIndex == 0 || msg.Index < minIndex {
			minIndex = msg.Index
		}
		switch {
		case strings.HasPrefix(msg.Key, txKeyPrefix):
			var tx entity.Transaction
			if err := json.Unmarshal(msg.Value, &tx); err != nil {
				return errors.Wrapf(err, "decode ledger record %s", msg.Key)
			}
			s.txs[tx.ID] = tx
			s.order = append(s.order, tx.ID)
			if tx.ID > s.nextTxID {
				s.nextTxID = tx.ID
			}
		case strings.HasPrefix(msg.Key, tombstoneKeyPrefix):
			id, err := strconv.ParseUint(strings.TrimPrefix(msg.Key, tombstoneKeyPrefix), 10, 64)
			if err != nil {
				return errors.Wrapf(err, "decode tombstone key %s", msg.Key)
			}
			s.remove(id)
		}
	}
	if minIndex > 1 {
		return errors.Wrapf(ErrLedgerTruncated, "oldest surviving record has index %d", minIndex)
	}
	return nil
}

func (s *WALStore) remove(id uint64) {
	delete(s.txs, id)
	for i, txID := range s.order {
		if txID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Append assigns an id and insertion sequence, writes the record and
// returns the stored transaction.
func (s *WALStore) Append(tx entity.Transaction) (entity.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTxID++
	tx.ID = s.nextTxID
	tx.Seq = tx.ID

	payload, err := json.Marshal(tx)
	if err != nil {
		return entity.Transaction{}, errors.Wrap(err, "marshal transaction")
	}

	key := fmt.Sprintf("%s%d", txKeyPrefix, tx.ID)
	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, key, payload); err != nil {
		s.nextTxID--
		return entity.Transaction{}, errors.Wrap(err, "write transaction record")
	}

	s.txs[tx.ID] = tx
	s.order = append(s.order, tx.ID)
	return tx, nil
}

// Get returns one live transaction by id.
func (s *WALStore) Get(id uint64) (entity.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.txs[id]
	if !ok {
		return entity.Transaction{}, ErrTxNotFound
	}
	return tx, nil
}

// Delete appends a tombstone for the transaction and drops it from the
// live set.
func (s *WALStore) Delete(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.txs[id]; !ok {
		return ErrTxNotFound
	}

	key := fmt.Sprintf("%s%d", tombstoneKeyPrefix, id)
	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, key, nil); err != nil {
		return errors.Wrap(err, "write tombstone record")
	}

	s.remove(id)
	return nil
}

// ByHolding returns the holding's live transactions in insertion order,
// the sequence Recompute expects.
func (s *WALStore) ByHolding(holdingID uint64) []entity.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Transaction, 0)
	for _, id := range s.order {
		if tx := s.txs[id]; tx.HoldingID == holdingID {
			out = append(out, tx)
		}
	}
	return out
}

// ByPortfolio returns the portfolio's live transactions in insertion order.
func (s *WALStore) ByPortfolio(portfolioID uint64) []entity.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Transaction, 0)
	for _, id := range s.order {
		if tx := s.txs[id]; tx.PortfolioID == portfolioID {
			out = append(out, tx)
		}
	}
	return out
}

// All returns every live transaction in insertion order.
func (s *WALStore) All() []entity.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Transaction, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.txs[id])
	}
	return out
}

// History returns the holding's transactions newest first, for display.
func (s *WALStore) History(holdingID uint64) []entity.Transaction {
	out := s.ByHolding(holdingID)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Seq > out[j].Seq
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wal.Close()
}
