package quotes

import (
	"context"
	"fmt"
	"strings"

	"github.com/hirokisan/bybit/v2"
	"github.com/shopspring/decimal"

	"github.com/vporoshin/folio/internal/entity"
)

var bybitHundred = decimal.NewFromInt(100)

// BybitQuoter reads spot quotes from the Bybit V5 market API.
type BybitQuoter struct {
	client *bybit.Client
}

func NewBybitQuoter(client *bybit.Client) *BybitQuoter {
	return &BybitQuoter{client: client}
}

// Quote returns the last price and 24h change for symbol, quoted in USDT.
func (q *BybitQuoter) Quote(ctx context.Context, symbol string, _ int) (entity.Quote, error) {
	pair := bybit.SymbolV5(strings.ToUpper(symbol) + "USDT")

	result, err := q.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
		Symbol:   &pair,
	})
	if err != nil {
		return entity.Quote{}, err
	}
	if len(result.Result.Spot.List) == 0 {
		return entity.Quote{}, fmt.Errorf("bybit API returned no tickers for %s", pair)
	}

	ticker := result.Result.Spot.List[0]
	price, err := decimal.NewFromString(ticker.LastPrice)
	if err != nil {
		return entity.Quote{}, fmt.Errorf("parse bybit price %q: %w", ticker.LastPrice, err)
	}
	// bybit reports the 24h change as a fraction, e.g. "0.0345"
	changeFrac, err := decimal.NewFromString(ticker.Price24HPcnt)
	if err != nil {
		return entity.Quote{}, fmt.Errorf("parse bybit change %q: %w", ticker.Price24HPcnt, err)
	}

	return entity.Quote{
		Symbol:    strings.ToUpper(symbol),
		Price:     price,
		ChangePct: changeFrac.Mul(bybitHundred),
	}, nil
}
