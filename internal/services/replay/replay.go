// Package replay reconstructs a holding's derived state by folding its
// transaction ledger in timestamp order.
package replay

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/vporoshin/folio/internal/entity"
)

// Result is the outcome of folding one holding's ledger.
// CurrentValue is nil unless a valuation transaction with a unit price
// appeared in the sequence.
type Result struct {
	Quantity        decimal.Decimal
	AcquisitionCost decimal.Decimal
	CurrentValue    *decimal.Decimal
}

// Recompute folds the given transactions into quantity, acquisition cost
// and an optional mark-to-market value. The input is sorted ascending by
// timestamp with insertion sequence as the tie-break, so replaying the
// same set always yields the same result regardless of input order.
//
// Cost basis is never reduced on a sell: the model is lifetime average
// cost, not lot tracking. Quantity may go negative on over-selling; that
// is permitted, not clamped.
func Recompute(txs []entity.Transaction) Result {
	ordered := make([]entity.Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Seq < ordered[j].Seq
		}
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	var res Result
	for _, tx := range ordered {
		switch tx.Kind {
		case entity.TxBuy, entity.TxDeposit:
			res.Quantity = res.Quantity.Add(tx.Amount)
			res.AcquisitionCost = res.AcquisitionCost.Add(tx.TotalValue)
		case entity.TxSell, entity.TxWithdrawal:
			res.Quantity = res.Quantity.Sub(tx.Amount)
		case entity.TxFee, entity.TxMaintenance, entity.TxImprovement:
			res.AcquisitionCost = res.AcquisitionCost.Add(tx.TotalValue)
		case entity.TxDividend:
			// dividends change neither quantity nor cost basis
		case entity.TxValuation:
			// manual mark-to-market: applies the running quantity as of
			// this point in the ledger, not the final quantity
			if tx.UnitPrice != nil {
				v := res.Quantity.Mul(*tx.UnitPrice)
				res.CurrentValue = &v
			}
		default:
			panic(fmt.Sprintf("replay: unhandled transaction kind %s", tx.Kind))
		}
	}
	return res
}

// AveragePrice returns the average unit acquisition price over buy and
// deposit transactions only: total value paid divided by total amount
// bought. Zero when there are no buys or the bought amount is zero.
func AveragePrice(txs []entity.Transaction) decimal.Decimal {
	var amount, value decimal.Decimal
	for _, tx := range txs {
		if tx.Kind != entity.TxBuy && tx.Kind != entity.TxDeposit {
			continue
		}
		amount = amount.Add(tx.Amount)
		value = value.Add(tx.TotalValue)
	}
	if !amount.IsPositive() {
		return decimal.Zero
	}
	return value.Div(amount)
}
