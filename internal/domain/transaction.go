// internal/domain/transaction.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind defines what a ledger record did to its wallet.
type TransactionKind string

const (
	TransactionKindDeposit           TransactionKind = "DEPOSIT"
	TransactionKindWithdrawal        TransactionKind = "WITHDRAWAL"
	TransactionKindWithdrawConverted TransactionKind = "WITHDRAW_CONVERTED"
	TransactionKindTransferOut       TransactionKind = "TRANSFER_OUT"
	TransactionKindTransferIn        TransactionKind = "TRANSFER_IN"
)

// Transaction is an immutable ledger record of one balance change.
type Transaction struct {
	ID            int64               `db:"id" json:"id"`
	Reference     string              `db:"reference" json:"reference"` // shared by all records of one operation
	UserID        string              `db:"user_id" json:"user_id"`
	Kind          TransactionKind     `db:"kind" json:"kind"`
	Amount        int64               `db:"amount" json:"amount"`     // minor units, always positive
	Currency      string              `db:"currency" json:"currency"` // settlement currency
	RelatedUserID *string             `db:"related_user_id" json:"related_user_id,omitempty"`
	Description   *string             `db:"description" json:"description,omitempty"`
	ExchangeRate  decimal.NullDecimal `db:"exchange_rate" json:"exchange_rate"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
}

// NewTransaction creates a new Transaction instance.
func NewTransaction(
	reference string,
	userID string,
	kind TransactionKind,
	amount int64,
	currency string,
	relatedUserID *string,
	createdAt time.Time,
) *Transaction {
	return &Transaction{
		Reference:     reference,
		UserID:        userID,
		Kind:          kind,
		Amount:        amount,
		Currency:      currency,
		RelatedUserID: relatedUserID,
		CreatedAt:     createdAt,
	}
}

// WithConversion records the rate and a human-readable note on the record.
func (t *Transaction) WithConversion(rate decimal.Decimal, description string) *Transaction {
	t.ExchangeRate = decimal.NullDecimal{Decimal: rate, Valid: true}
	t.Description = &description
	return t
}
