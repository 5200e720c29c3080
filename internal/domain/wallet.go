// internal/domain/wallet.go
package domain

import "time"

// Wallet is one user's balance in one currency.
type Wallet struct {
	ID        int64     `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Currency  string    `db:"currency" json:"currency"`
	Balance   int64     `db:"balance" json:"balance"` // minor units, never negative
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewWallet creates a new empty Wallet instance.
func NewWallet(userID, currency string) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		UserID:    userID,
		Currency:  currency,
		Balance:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanCover reports whether the wallet holds at least amount.
func (w *Wallet) CanCover(amount int64) bool {
	return w != nil && w.Balance >= amount
}
