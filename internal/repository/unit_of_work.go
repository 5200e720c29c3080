// internal/repository/unit_of_work.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"finflow-ledger/internal/util"
	"finflow-ledger/pkg/db"
)

// UnitOfWork is the ledger's atomic unit. Every write an operation makes goes
// through one Do call: all of it commits or none of it does.
type UnitOfWork interface {
	// Do runs fn in a read-committed transaction. Rows locked inside stay
	// locked until commit or rollback.
	Do(ctx context.Context, fn func(q DBExecutor) error) error
	// View runs fn in a read-only repeatable-read transaction so multi-row
	// reads see one snapshot.
	View(ctx context.Context, fn func(q DBExecutor) error) error
	// Reader is for single-statement reads outside any transaction.
	Reader() DBExecutor
}

type sqlUnitOfWork struct {
	dbBeginner db.DBTxBeginner
	dbExecutor DBExecutor
	beginTx    db.BeginTxFunc
	commitTx   db.CommitTxFunc
	rollbackTx db.RollbackTxFunc
}

// NewUnitOfWork builds a UnitOfWork over a database handle. The lifecycle
// functions are injected so tests can substitute them.
func NewUnitOfWork(
	dbBeginner db.DBTxBeginner,
	dbExecutor DBExecutor,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
) UnitOfWork {
	return &sqlUnitOfWork{
		dbBeginner: dbBeginner,
		dbExecutor: dbExecutor,
		beginTx:    beginTx,
		commitTx:   commitTx,
		rollbackTx: rollbackTx,
	}
}

func (u *sqlUnitOfWork) Do(ctx context.Context, fn func(q DBExecutor) error) error {
	return u.run(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, fn)
}

func (u *sqlUnitOfWork) View(ctx context.Context, fn func(q DBExecutor) error) error {
	return u.run(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, fn)
}

func (u *sqlUnitOfWork) Reader() DBExecutor {
	return u.dbExecutor
}

func (u *sqlUnitOfWork) run(ctx context.Context, opts *sql.TxOptions, fn func(q DBExecutor) error) error {
	txController, err := u.beginTx(ctx, u.dbBeginner, opts)
	if err != nil {
		return classify(fmt.Errorf("failed to begin transaction: %w", err))
	}
	// Runs on every exit path, panics included; a no-op after commit.
	defer u.rollbackTx(txController)

	txExecutor, ok := txController.(DBExecutor)
	if !ok {
		return fmt.Errorf("transaction controller does not implement DBExecutor")
	}

	if err := fn(txExecutor); err != nil {
		return classify(err)
	}

	if err := u.commitTx(txController); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// classify maps driver errors onto the taxonomy: concurrency conflicts become
// util.ErrStorageConflict and numeric overflow becomes a validation failure.
func classify(err error) error {
	switch {
	case db.IsConflict(err):
		return fmt.Errorf("%w: %w", util.ErrStorageConflict, err)
	case db.IsNumericOverflow(err) && !errors.Is(err, util.ErrInvalidInput):
		return fmt.Errorf("%w: %w", util.ErrInvalidInput, err)
	}
	return err
}
