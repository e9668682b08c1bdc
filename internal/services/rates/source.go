package rates

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/vporoshin/folio/pkg/retrier"
)

// Table is the upstream rate document: rates are expressed FROM the base
// currency (USD) to each listed code.
type Table struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date,omitempty"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// Source yields the latest rate table.
type Source interface {
	Latest(ctx context.Context) (Table, error)
}

const (
	requestTimeout = 10 * time.Second
	// free tiers are tight; one request per second is plenty since the
	// whole table arrives in one call
	requestsPerSecond = 1
)

// HTTPSource fetches the rate table from a JSON endpoint such as
// exchangerate-api.com. Outbound calls are rate limited and transient
// failures retried with backoff.
type HTTPSource struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	backoff *retrier.Backoff
}

func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		url:     url,
		client:  &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		backoff: retrier.New(3, 500*time.Millisecond, 5*time.Second),
	}
}

func (s *HTTPSource) Latest(ctx context.Context) (Table, error) {
	return retrier.Fetch(ctx, s.backoff, s.fetch)
}

func (s *HTTPSource) fetch(ctx context.Context) (Table, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Table{}, errors.Wrap(err, "rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Table{}, errors.Wrap(err, "build rate request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Table{}, errors.Wrap(err, "fetch rate table")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Table{}, errors.Errorf("rate source returned status %d", resp.StatusCode)
	}

	var table Table
	if err := json.NewDecoder(resp.Body).Decode(&table); err != nil {
		return Table{}, errors.Wrap(err, "decode rate table")
	}
	return table, nil
}
