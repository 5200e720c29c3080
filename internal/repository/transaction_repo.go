// internal/repository/transaction_repo.go
package repository

import (
	"context"

	"finflow-ledger/internal/domain"
)

// TransactionRepository defines the interface for the append-only transaction log.
type TransactionRepository interface {
	// CreateTransaction appends a record and sets its ID.
	CreateTransaction(ctx context.Context, q DBExecutor, transaction *domain.Transaction) error
	// GetTransactionsByUserID returns the user's records newest first.
	// A limit of zero returns everything from offset on.
	GetTransactionsByUserID(ctx context.Context, q DBExecutor, userID string, limit, offset int) ([]domain.Transaction, error)
}
