// Package rates converts non-USD costs and values into a common USD basis
// using externally fetched exchange rates with a layered fallback policy.
package rates

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StaleAfter is the freshness window for a cached exchange rate.
const StaleAfter = 24 * time.Hour

var one = decimal.NewFromInt(1)

// Approximate fallback constants for currencies we have seen before.
// Two tables on purpose: a code missing from a healthy response gets a
// slightly different constant than a failed fetch.
var (
	approxWhenMissing = map[string]decimal.Decimal{
		"BRL": decimal.NewFromFloat(0.18),
	}
	approxOnError = map[string]decimal.Decimal{
		"BRL": decimal.NewFromFloat(0.20),
	}
)

// KnownRateLookup resolves the most recently recorded rate for a currency
// among any holding in the system. Nil result means no holding carries one.
type KnownRateLookup interface {
	LastKnownRate(ctx context.Context, currency string) (*decimal.Decimal, error)
}

// Provider resolves currency-to-USD rates. Lookup failures never surface
// to the caller: the provider degrades through the last known rate, then
// an approximate constant, then 1.0.
type Provider struct {
	src    Source
	known  KnownRateLookup
	logger *zap.Logger
}

func NewProvider(src Source, known KnownRateLookup, logger *zap.Logger) *Provider {
	return &Provider{src: src, known: known, logger: logger}
}

// RateToUSD returns the rate converting one unit of code into USD.
// USD itself is always exactly 1 and never touches the network.
func (p *Provider) RateToUSD(ctx context.Context, code string) decimal.Decimal {
	if strings.EqualFold(code, "USD") {
		return one
	}

	table, err := p.src.Latest(ctx)
	if err != nil {
		p.logger.Warn("rate fetch failed, falling back",
			zap.String("currency", code), zap.Error(err))
		return p.fallbackOnError(ctx, code)
	}

	// upstream expresses rates FROM USD, so invert; match case-insensitively
	for k, fromUSD := range table.Rates {
		if strings.EqualFold(k, code) {
			if !fromUSD.IsPositive() {
				break
			}
			return one.Div(fromUSD)
		}
	}

	p.logger.Warn("currency absent from rate table",
		zap.String("currency", code), zap.Int("rates", len(table.Rates)))
	if approx, ok := approxWhenMissing[strings.ToUpper(code)]; ok {
		return approx
	}
	return one
}

func (p *Provider) fallbackOnError(ctx context.Context, code string) decimal.Decimal {
	if p.known != nil {
		last, err := p.known.LastKnownRate(ctx, code)
		if err != nil {
			p.logger.Warn("last known rate lookup failed",
				zap.String("currency", code), zap.Error(err))
		} else if last != nil {
			p.logger.Info("using last known rate",
				zap.String("currency", code), zap.String("rate", last.String()))
			return *last
		}
	}
	if approx, ok := approxOnError[strings.ToUpper(code)]; ok {
		p.logger.Warn("using approximate fallback rate",
			zap.String("currency", code), zap.String("rate", approx.String()))
		return approx
	}
	return one
}

// IsStale reports whether a cached rate needs refreshing: true when the
// timestamp is absent or older than the freshness window.
func IsStale(lastUpdated *time.Time) bool {
	if lastUpdated == nil {
		return true
	}
	return time.Since(*lastUpdated) > StaleAfter
}

// ToUSD is a pure conversion by an already-resolved rate; it never fetches.
func ToUSD(amount decimal.Decimal, currency string, rateToUSD decimal.Decimal) decimal.Decimal {
	if strings.EqualFold(currency, "USD") {
		return amount
	}
	return amount.Mul(rateToUSD)
}

// FromUSD converts a USD amount back into currency using the same rate.
// A non-positive rate degrades to the amount unchanged.
func FromUSD(amountUSD decimal.Decimal, currency string, rateToUSD decimal.Decimal) decimal.Decimal {
	if strings.EqualFold(currency, "USD") {
		return amountUSD
	}
	if !rateToUSD.IsPositive() {
		return amountUSD
	}
	return amountUSD.Div(rateToUSD)
}
