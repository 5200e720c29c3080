// internal/rates/bounded.go
package rates

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"finflow-ledger/internal/util"
)

// DefaultTimeout bounds a single rate lookup when none is configured.
const DefaultTimeout = 3 * time.Second

type bounded struct {
	next    Provider
	timeout time.Duration
}

// Bounded wraps next so that identical currencies price at 1.0 without a call,
// every call is limited to timeout, and anything outside the provider contract
// is reported as util.ErrRateUnavailable.
func Bounded(next Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &bounded{next: next, timeout: timeout}
}

func (b *bounded) GetRate(ctx context.Context, from, to string) (float64, error) {
	if from == to {
		return 1.0, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	rate, err := b.next.GetRate(callCtx, from, to)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrUnsupportedCurrency), errors.Is(err, util.ErrRateUnavailable):
			return 0, fmt.Errorf("rate %s/%s: %w", from, to, err)
		case errors.Is(err, context.DeadlineExceeded), errors.Is(callCtx.Err(), context.DeadlineExceeded):
			return 0, fmt.Errorf("rate %s/%s: lookup timed out after %s: %w", from, to, b.timeout, util.ErrRateUnavailable)
		default:
			return 0, fmt.Errorf("rate %s/%s: %v: %w", from, to, err, util.ErrRateUnavailable)
		}
	}
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, fmt.Errorf("rate %s/%s: provider returned unusable rate %v: %w", from, to, rate, util.ErrRateUnavailable)
	}
	return rate, nil
}
