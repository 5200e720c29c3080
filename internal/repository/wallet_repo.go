// internal/repository/wallet_repo.go
package repository

import (
	"context"

	"finflow-ledger/internal/domain"
)

// WalletRepository defines the interface for wallet data operations.
type WalletRepository interface {
	// GetWallet returns the (user, currency) wallet or util.ErrWalletNotFound.
	GetWallet(ctx context.Context, q DBExecutor, userID, currency string) (*domain.Wallet, error)
	// GetWallets returns every wallet of userID ordered by currency code.
	GetWallets(ctx context.Context, q DBExecutor, userID string) ([]domain.Wallet, error)
	// LockWallets row-locks every wallet of the given users until the
	// surrounding transaction ends, ordered by user then currency.
	LockWallets(ctx context.Context, q DBExecutor, userIDs ...string) ([]domain.Wallet, error)
	// EnsureWallet returns the locked (user, currency) wallet, creating an
	// empty one first when it does not exist.
	EnsureWallet(ctx context.Context, q DBExecutor, userID, currency string) (*domain.Wallet, error)
	// AdjustBalance adds delta to the wallet balance and returns the new
	// balance. A change that would go negative fails with util.ErrInsufficientFunds.
	AdjustBalance(ctx context.Context, q DBExecutor, walletID int64, delta int64) (int64, error)
}
