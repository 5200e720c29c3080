// internal/repository/postgres/wallet_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/repository"
	"finflow-ledger/internal/util"
	"finflow-ledger/pkg/db"
)

const walletColumns = `id, user_id, currency, balance, created_at, updated_at`

// WalletRepository implements repository.WalletRepository for PostgreSQL.
type WalletRepository struct{}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository() repository.WalletRepository {
	return &WalletRepository{}
}

// GetWallet retrieves a wallet by user ID and currency.
func (r *WalletRepository) GetWallet(ctx context.Context, q repository.DBExecutor, userID, currency string) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 AND currency = $2`
	err := q.GetContext(ctx, &wallet, query, userID, currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet for user %s and currency %s: %w", userID, currency, err)
	}
	return &wallet, nil
}

// GetWallets retrieves all wallets of a user ordered by currency.
func (r *WalletRepository) GetWallets(ctx context.Context, q repository.DBExecutor, userID string) ([]domain.Wallet, error) {
	wallets := []domain.Wallet{}
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 ORDER BY currency`
	if err := q.SelectContext(ctx, &wallets, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get wallets for user %s: %w", userID, err)
	}
	return wallets, nil
}

// LockWallets selects the wallets of all given users FOR UPDATE in one
// statement. Locks are acquired in (user_id, currency) order, so two
// transfers running in opposite directions cannot deadlock each other.
func (r *WalletRepository) LockWallets(ctx context.Context, q repository.DBExecutor, userIDs ...string) ([]domain.Wallet, error) {
	wallets := []domain.Wallet{}
	if len(userIDs) == 0 {
		return wallets, nil
	}

	placeholders := make([]string, len(userIDs))
	args := make([]interface{}, len(userIDs))
	for i, id := range userIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY user_id, currency
		FOR UPDATE`
	if err := q.SelectContext(ctx, &wallets, query, args...); err != nil {
		return nil, fmt.Errorf("failed to lock wallets for users %v: %w", userIDs, err)
	}
	return wallets, nil
}

// EnsureWallet creates the (user, currency) wallet if missing and returns it
// locked. Concurrent creators converge on the same row through the unique key.
func (r *WalletRepository) EnsureWallet(ctx context.Context, q repository.DBExecutor, userID, currency string) (*domain.Wallet, error) {
	now := time.Now().UTC()
	insert := `INSERT INTO wallets (user_id, currency, balance, created_at, updated_at)
              VALUES ($1, $2, 0, $3, $3)
              ON CONFLICT (user_id, currency) DO NOTHING`
	if _, err := q.ExecContext(ctx, insert, userID, currency, now); err != nil {
		return nil, fmt.Errorf("failed to create wallet for user %s and currency %s: %w", userID, currency, err)
	}

	var wallet domain.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 AND currency = $2 FOR UPDATE`
	if err := q.GetContext(ctx, &wallet, query, userID, currency); err != nil {
		return nil, fmt.Errorf("failed to lock wallet for user %s and currency %s: %w", userID, currency, err)
	}
	return &wallet, nil
}

// AdjustBalance applies delta only if the result stays non-negative. The
// guard in the WHERE clause backs up the row lock taken before the check.
func (r *WalletRepository) AdjustBalance(ctx context.Context, q repository.DBExecutor, walletID int64, delta int64) (int64, error) {
	query := `UPDATE wallets SET balance = balance + $1, updated_at = $2
              WHERE id = $3 AND balance + $1 >= 0
              RETURNING balance`
	var balance int64
	err := q.GetContext(ctx, &balance, query, delta, time.Now().UTC(), walletID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("wallet %d cannot absorb %d: %w", walletID, delta, util.ErrInsufficientFunds)
		}
		if db.IsNumericOverflow(err) {
			return 0, util.Invalidf("wallet %d balance would overflow: %v", walletID, err)
		}
		return 0, fmt.Errorf("failed to update wallet balance for ID %d: %w", walletID, err)
	}
	return balance, nil
}
