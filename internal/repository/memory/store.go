// internal/repository/memory/store.go
package memory

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/repository"
)

var errNotSQL = errors.New("memory store does not execute SQL")

// Store is a process-local ledger store. Do holds the store-wide write lock
// for the whole unit and rolls back by restoring a snapshot, which gives the
// same all-or-nothing and serialization guarantees as the PostgreSQL backend.
type Store struct {
	mu sync.RWMutex

	nextWalletID int64
	nextTxID     int64
	wallets      map[int64]domain.Wallet
	index        map[string]int64 // user_id + "\x00" + currency -> wallet id
	transactions []domain.Transaction
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		wallets: make(map[int64]domain.Wallet),
		index:   make(map[string]int64),
	}
}

type snapshot struct {
	nextWalletID int64
	nextTxID     int64
	wallets      map[int64]domain.Wallet
	index        map[string]int64
	txLen        int
}

func (s *Store) snapshot() snapshot {
	wallets := make(map[int64]domain.Wallet, len(s.wallets))
	for id, w := range s.wallets {
		wallets[id] = w
	}
	index := make(map[string]int64, len(s.index))
	for k, v := range s.index {
		index[k] = v
	}
	return snapshot{
		nextWalletID: s.nextWalletID,
		nextTxID:     s.nextTxID,
		wallets:      wallets,
		index:        index,
		txLen:        len(s.transactions),
	}
}

func (s *Store) restore(snap snapshot) {
	s.nextWalletID = snap.nextWalletID
	s.nextTxID = snap.nextTxID
	s.wallets = snap.wallets
	s.index = snap.index
	s.transactions = s.transactions[:snap.txLen]
}

// Do implements repository.UnitOfWork.
func (s *Store) Do(ctx context.Context, fn func(q repository.DBExecutor) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	committed := false
	defer func() {
		if !committed {
			s.restore(snap)
		}
	}()

	if err := fn(&executor{store: s, inTx: true, writable: true}); err != nil {
		return err
	}
	committed = true
	return nil
}

// View implements repository.UnitOfWork.
func (s *Store) View(ctx context.Context, fn func(q repository.DBExecutor) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&executor{store: s, inTx: true})
}

// Reader implements repository.UnitOfWork.
func (s *Store) Reader() repository.DBExecutor {
	return &executor{store: s}
}

// Close is a no-op kept for symmetry with *sqlx.DB.
func (s *Store) Close() error { return nil }

var _ repository.UnitOfWork = (*Store)(nil)

// executor is the handle repositories receive. It satisfies
// repository.DBExecutor so the same interfaces serve both backends, but it
// refuses raw SQL.
type executor struct {
	store    *Store
	inTx     bool // the store lock is already held by Do or View
	writable bool
}

func (e *executor) GetContext(context.Context, interface{}, string, ...interface{}) error {
	return errNotSQL
}

func (e *executor) SelectContext(context.Context, interface{}, string, ...interface{}) error {
	return errNotSQL
}

func (e *executor) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNotSQL
}

func (e *executor) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}

func walletKey(userID, currency string) string {
	return userID + "\x00" + currency
}
