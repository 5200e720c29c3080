// internal/repository/memory/repositories.go
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/repository"
	"finflow-ledger/internal/util"
)

var (
	errForeignExecutor = errors.New("executor does not belong to this memory store")
	errReadOnly        = errors.New("write attempted outside a unit of work")
)

// WalletRepository implements repository.WalletRepository on a Store.
type WalletRepository struct {
	store *Store
}

// NewWalletRepository creates a WalletRepository backed by store.
func NewWalletRepository(store *Store) repository.WalletRepository {
	return &WalletRepository{store: store}
}

// TransactionRepository implements repository.TransactionRepository on a Store.
type TransactionRepository struct {
	store *Store
}

// NewTransactionRepository creates a TransactionRepository backed by store.
func NewTransactionRepository(store *Store) repository.TransactionRepository {
	return &TransactionRepository{store: store}
}

// read runs fn with at least a read lock on the store.
func read(s *Store, q repository.DBExecutor, fn func() error) error {
	e, ok := q.(*executor)
	if !ok || e.store != s {
		return errForeignExecutor
	}
	if !e.inTx {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	return fn()
}

// write runs fn only inside Do, where the write lock is held.
func write(s *Store, q repository.DBExecutor, fn func() error) error {
	e, ok := q.(*executor)
	if !ok || e.store != s {
		return errForeignExecutor
	}
	if !e.writable {
		return errReadOnly
	}
	return fn()
}

func (r *WalletRepository) GetWallet(_ context.Context, q repository.DBExecutor, userID, currency string) (*domain.Wallet, error) {
	var out *domain.Wallet
	err := read(r.store, q, func() error {
		id, ok := r.store.index[walletKey(userID, currency)]
		if !ok {
			return util.ErrWalletNotFound
		}
		w := r.store.wallets[id]
		out = &w
		return nil
	})
	return out, err
}

func (r *WalletRepository) GetWallets(_ context.Context, q repository.DBExecutor, userID string) ([]domain.Wallet, error) {
	var out []domain.Wallet
	err := read(r.store, q, func() error {
		out = r.store.walletsOf(userID)
		return nil
	})
	return out, err
}

// LockWallets returns the users' wallets. Row locks are implied by the
// store-wide lock Do already holds.
func (r *WalletRepository) LockWallets(_ context.Context, q repository.DBExecutor, userIDs ...string) ([]domain.Wallet, error) {
	out := []domain.Wallet{}
	err := write(r.store, q, func() error {
		users := append([]string(nil), userIDs...)
		sort.Strings(users)
		for i, u := range users {
			if i > 0 && users[i-1] == u {
				continue
			}
			out = append(out, r.store.walletsOf(u)...)
		}
		return nil
	})
	return out, err
}

func (r *WalletRepository) EnsureWallet(_ context.Context, q repository.DBExecutor, userID, currency string) (*domain.Wallet, error) {
	var out *domain.Wallet
	err := write(r.store, q, func() error {
		key := walletKey(userID, currency)
		if id, ok := r.store.index[key]; ok {
			w := r.store.wallets[id]
			out = &w
			return nil
		}
		r.store.nextWalletID++
		w := *domain.NewWallet(userID, currency)
		w.ID = r.store.nextWalletID
		r.store.wallets[w.ID] = w
		r.store.index[key] = w.ID
		out = &w
		return nil
	})
	return out, err
}

func (r *WalletRepository) AdjustBalance(_ context.Context, q repository.DBExecutor, walletID int64, delta int64) (int64, error) {
	var balance int64
	err := write(r.store, q, func() error {
		w, ok := r.store.wallets[walletID]
		if ok && delta > 0 && w.Balance > math.MaxInt64-delta {
			return util.Invalidf("wallet %d balance would overflow", walletID)
		}
		if !ok || w.Balance+delta < 0 {
			return fmt.Errorf("wallet %d cannot absorb %d: %w", walletID, delta, util.ErrInsufficientFunds)
		}
		w.Balance += delta
		w.UpdatedAt = time.Now().UTC()
		r.store.wallets[walletID] = w
		balance = w.Balance
		return nil
	})
	return balance, err
}

func (r *TransactionRepository) CreateTransaction(_ context.Context, q repository.DBExecutor, transaction *domain.Transaction) error {
	return write(r.store, q, func() error {
		r.store.nextTxID++
		transaction.ID = r.store.nextTxID
		r.store.transactions = append(r.store.transactions, *transaction)
		return nil
	})
}

func (r *TransactionRepository) GetTransactionsByUserID(_ context.Context, q repository.DBExecutor, userID string, limit, offset int) ([]domain.Transaction, error) {
	out := []domain.Transaction{}
	err := read(r.store, q, func() error {
		skipped := 0
		for i := len(r.store.transactions) - 1; i >= 0; i-- {
			t := r.store.transactions[i]
			if t.UserID != userID {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			out = append(out, t)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// walletsOf returns copies of userID's wallets sorted by currency. Callers
// hold the lock.
func (s *Store) walletsOf(userID string) []domain.Wallet {
	out := []domain.Wallet{}
	for _, w := range s.wallets {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}
