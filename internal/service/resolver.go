// internal/service/resolver.go
package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/util"
)

// Quoter prices one currency pair. *rates.QuoteBook is the production
// implementation.
type Quoter interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// Selection is the concrete wallet and amount an operation settles against.
type Selection struct {
	Wallet   *domain.Wallet // nil means a wallet in Currency must be created
	Currency string
	Amount   int64
	Rate     decimal.NullDecimal // set only when a conversion happened
}

// Converted reports whether the selection settles in another currency than
// the one requested.
func (s Selection) Converted() bool {
	return s.Rate.Valid
}

// ResolveDebit picks the wallet to take amount of currency from. A wallet in
// the requested currency that can cover the amount wins. Otherwise the other
// wallets are tried in ascending currency order and the first one whose
// balance covers the converted amount is chosen.
func ResolveDebit(ctx context.Context, wallets []domain.Wallet, currency string, amount int64, quotes Quoter) (Selection, error) {
	if len(wallets) == 0 {
		return Selection{}, util.ErrWalletNotFound
	}

	for i := range wallets {
		if wallets[i].Currency == currency && wallets[i].CanCover(amount) {
			w := wallets[i]
			return Selection{Wallet: &w, Currency: currency, Amount: amount}, nil
		}
	}

	for _, w := range alternates(wallets, currency) {
		rate, err := quotes.Rate(ctx, currency, w.Currency)
		if err != nil {
			return Selection{}, err
		}
		converted, err := domain.Convert(amount, rate)
		if err != nil {
			return Selection{}, err
		}
		if w.CanCover(converted) {
			return Selection{
				Wallet:   &w,
				Currency: w.Currency,
				Amount:   converted,
				Rate:     decimal.NullDecimal{Decimal: rate, Valid: true},
			}, nil
		}
	}

	return Selection{}, fmt.Errorf("%d %s: %w", amount, currency, util.ErrInsufficientFunds)
}

// ResolveCredit picks the wallet that receives amount of currency. A wallet
// in that currency is credited as is, otherwise the first wallet by currency
// code receives the converted amount. A user with no wallets gets a new one
// in the requested currency.
func ResolveCredit(ctx context.Context, wallets []domain.Wallet, currency string, amount int64, quotes Quoter) (Selection, error) {
	for i := range wallets {
		if wallets[i].Currency == currency {
			w := wallets[i]
			return Selection{Wallet: &w, Currency: currency, Amount: amount}, nil
		}
	}

	others := alternates(wallets, currency)
	if len(others) == 0 {
		return Selection{Currency: currency, Amount: amount}, nil
	}

	w := others[0]
	rate, err := quotes.Rate(ctx, currency, w.Currency)
	if err != nil {
		return Selection{}, err
	}
	converted, err := domain.Convert(amount, rate)
	if err != nil {
		return Selection{}, err
	}
	return Selection{
		Wallet:   &w,
		Currency: w.Currency,
		Amount:   converted,
		Rate:     decimal.NullDecimal{Decimal: rate, Valid: true},
	}, nil
}

// alternates returns copies of the wallets not in currency, sorted by code.
func alternates(wallets []domain.Wallet, currency string) []domain.Wallet {
	out := make([]domain.Wallet, 0, len(wallets))
	for _, w := range wallets {
		if w.Currency != currency {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

// walletsOf filters the wallets belonging to userID.
func walletsOf(wallets []domain.Wallet, userID string) []domain.Wallet {
	out := make([]domain.Wallet, 0, len(wallets))
	for _, w := range wallets {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out
}
