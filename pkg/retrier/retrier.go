// Package retrier provides exponential backoff with jitter for flaky
// upstream calls.
package retrier

import (
	"context"
	"math/rand"
	"time"
)

// Backoff retries an operation with exponentially growing pauses. The
// zero value is not usable; construct with New.
type Backoff struct {
	first      time.Duration
	cap        time.Duration
	factor     float64
	attempts   int
	jitterFrac float64
}

// New returns a Backoff making attempts tries in total, starting at
// first and doubling up to cap, with ±10% jitter on every pause.
func New(attempts int, first, cap time.Duration) *Backoff {
	return &Backoff{
		first:      first,
		cap:        cap,
		factor:     2.0,
		attempts:   attempts,
		jitterFrac: 0.1,
	}
}

// Do runs fn until it succeeds, attempts are exhausted, or ctx is done.
// The last error from fn is returned when all attempts fail.
func (b *Backoff) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	pause := b.first

	var err error
	for try := 0; try < b.attempts; try++ {
		if try > 0 {
			jitter := time.Duration((rand.Float64()*2 - 1) * b.jitterFrac * float64(pause))
			wait := pause + jitter
			if wait < 0 {
				wait = 0
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			pause = time.Duration(float64(pause) * b.factor)
			if pause > b.cap {
				pause = b.cap
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return err
}

// Fetch runs fn with the backoff policy and returns its value.
func Fetch[T any](ctx context.Context, b *Backoff, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := b.Do(ctx, func(ctx context.Context) error {
		var ferr error
		out, ferr = fn(ctx)
		return ferr
	})
	return out, err
}
