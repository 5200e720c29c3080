// internal/repository/postgres/transaction_pg.go
package postgres

import (
	"context"
	"fmt"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/repository"
)

// TransactionRepository implements repository.TransactionRepository for PostgreSQL.
type TransactionRepository struct{}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository() repository.TransactionRepository {
	return &TransactionRepository{}
}

// CreateTransaction inserts a new transaction record into the database using the provided DBExecutor.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, q repository.DBExecutor, transaction *domain.Transaction) error {
	query := `INSERT INTO transactions (reference, user_id, kind, amount, currency, related_user_id, description, exchange_rate, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`

	err := q.QueryRowContext(ctx, query,
		transaction.Reference,
		transaction.UserID,
		transaction.Kind,
		transaction.Amount,
		transaction.Currency,
		transaction.RelatedUserID,
		transaction.Description,
		transaction.ExchangeRate,
		transaction.CreatedAt,
	).Scan(&transaction.ID)

	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransactionsByUserID retrieves the user's transactions, newest first.
func (r *TransactionRepository) GetTransactionsByUserID(ctx context.Context, q repository.DBExecutor, userID string, limit, offset int) ([]domain.Transaction, error) {
	transactions := []domain.Transaction{}

	query := `
		SELECT id, reference, user_id, kind, amount, currency, related_user_id, description, exchange_rate, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY id DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	} else if offset > 0 {
		query += ` OFFSET $2`
		args = append(args, offset)
	}

	if err := q.SelectContext(ctx, &transactions, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch transactions for user %s: %w", userID, err)
	}
	return transactions, nil
}
