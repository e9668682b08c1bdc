package quotes

import (
	"context"
	"fmt"
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/vporoshin/folio/internal/entity"
)

// BinanceQuoter reads spot quotes from the Binance public API. No API key
// is required for ticker statistics.
type BinanceQuoter struct {
	client *binance.Client
}

func NewBinanceQuoter(client *binance.Client) *BinanceQuoter {
	return &BinanceQuoter{client: client}
}

// Quote returns the last price and 24h change for symbol, quoted in USDT.
func (q *BinanceQuoter) Quote(ctx context.Context, symbol string, _ int) (entity.Quote, error) {
	pair := strings.ToUpper(symbol) + "USDT"
	stats, err := q.client.NewListPriceChangeStatsService().Symbol(pair).Do(ctx)
	if err != nil {
		return entity.Quote{}, err
	}
	if len(stats) == 0 {
		return entity.Quote{}, fmt.Errorf("binance API returned no stats for %s", pair)
	}

	price, err := decimal.NewFromString(stats[0].LastPrice)
	if err != nil {
		return entity.Quote{}, fmt.Errorf("parse binance price %q: %w", stats[0].LastPrice, err)
	}
	changePct, err := decimal.NewFromString(stats[0].PriceChangePercent)
	if err != nil {
		return entity.Quote{}, fmt.Errorf("parse binance change %q: %w", stats[0].PriceChangePercent, err)
	}

	return entity.Quote{
		Symbol:    strings.ToUpper(symbol),
		Price:     price,
		ChangePct: changePct,
	}, nil
}
