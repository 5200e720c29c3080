// internal/rates/quotes.go
package rates

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"finflow-ledger/internal/domain"
)

// QuoteBook memoizes the rates one operation uses. Each pair reaches the
// provider at most once per book, so every conversion inside an operation is
// priced at the same rate. Safe for concurrent use.
type QuoteBook struct {
	provider Provider

	mu     sync.Mutex
	quotes map[string]decimal.Decimal
}

// NewQuoteBook starts an empty book backed by provider.
func NewQuoteBook(provider Provider) *QuoteBook {
	return &QuoteBook{provider: provider, quotes: make(map[string]decimal.Decimal)}
}

// Rate returns the from->to rate, fetching it on first use.
func (q *QuoteBook) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	key := from + ":" + to

	q.mu.Lock()
	if r, ok := q.quotes[key]; ok {
		q.mu.Unlock()
		return r, nil
	}
	q.mu.Unlock()

	raw, err := q.provider.GetRate(ctx, from, to)
	if err != nil {
		return decimal.Decimal{}, err
	}
	rate := domain.RateDecimal(raw)

	q.mu.Lock()
	defer q.mu.Unlock()
	// A concurrent caller may have won; keep the first quote.
	if r, ok := q.quotes[key]; ok {
		return r, nil
	}
	q.quotes[key] = rate
	return rate, nil
}
