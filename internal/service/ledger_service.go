// internal/service/ledger_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/rates"
	"finflow-ledger/internal/repository"
	"finflow-ledger/internal/util"
)

// DepositResult is the outcome of a successful Deposit.
type DepositResult struct {
	NewBalance  int64               `json:"new_balance"`
	Currency    string              `json:"currency"`
	Transaction *domain.Transaction `json:"transaction"`
}

// WithdrawResult is the outcome of a successful Withdraw. RateApplied is nil
// when the requested currency was debited directly.
type WithdrawResult struct {
	SettledCurrency string   `json:"settled_currency"`
	SettledAmount   int64    `json:"settled_amount"`
	RateApplied     *float64 `json:"rate_applied,omitempty"`
}

// TransferResult is the outcome of a successful Transfer.
type TransferResult struct {
	SentAmount       int64  `json:"sent_amount"`
	SentCurrency     string `json:"sent_currency"`
	ReceivedAmount   int64  `json:"received_amount"`
	ReceivedCurrency string `json:"received_currency"`
}

// LedgerService defines the balance-mutating operations of the ledger.
type LedgerService interface {
	Deposit(ctx context.Context, userID string, amount int64, currency string) (*DepositResult, error)
	Withdraw(ctx context.Context, userID string, amount int64, currency string) (*WithdrawResult, error)
	Transfer(ctx context.Context, senderID, receiverID string, amount int64, currency string) (*TransferResult, error)
}

// ledgerService implements the LedgerService interface.
type ledgerService struct {
	uow             repository.UnitOfWork
	walletRepo      repository.WalletRepository
	transactionRepo repository.TransactionRepository
	rates           rates.Provider
	logger          *slog.Logger
	now             func() time.Time
}

// NewLedgerService creates a new instance of LedgerService. The provider
// should already be bounded by a timeout, see rates.Bounded.
func NewLedgerService(
	uow repository.UnitOfWork,
	walletRepo repository.WalletRepository,
	transactionRepo repository.TransactionRepository,
	provider rates.Provider,
	logger *slog.Logger,
) LedgerService {
	if logger == nil {
		logger = util.DiscardLogger()
	}
	return &ledgerService{
		uow:             uow,
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		rates:           provider,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Deposit adds money to the user's wallet in currency, creating it first if needed.
func (s *ledgerService) Deposit(ctx context.Context, userID string, amount int64, currency string) (*DepositResult, error) {
	currency, err := validateRequest(amount, currency, userID)
	if err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}

	result := &DepositResult{Currency: currency}
	err = s.uow.Do(ctx, func(q repository.DBExecutor) error {
		wallet, err := s.walletRepo.EnsureWallet(ctx, q, userID, currency)
		if err != nil {
			return fmt.Errorf("failed to get wallet: %w", err)
		}
		balance, err := s.walletRepo.AdjustBalance(ctx, q, wallet.ID, amount)
		if err != nil {
			return fmt.Errorf("failed to update wallet balance: %w", err)
		}

		transaction := domain.NewTransaction(uuid.NewString(), userID, domain.TransactionKindDeposit, amount, currency, nil, s.now())
		if err := s.transactionRepo.CreateTransaction(ctx, q, transaction); err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}

		result.NewBalance = balance
		result.Transaction = transaction
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}

	s.logger.Info("deposit applied", "user_id", userID, "amount", amount, "currency", currency, "balance", result.NewBalance)
	return result, nil
}

// Withdraw takes money from the user's wallet in currency or, when that
// wallet cannot cover it, from the first other wallet that can cover the
// converted amount.
func (s *ledgerService) Withdraw(ctx context.Context, userID string, amount int64, currency string) (*WithdrawResult, error) {
	currency, err := validateRequest(amount, currency, userID)
	if err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}

	quotes := rates.NewQuoteBook(s.rates)
	if err := s.planDebit(ctx, quotes, userID, currency, amount); err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}

	result := &WithdrawResult{}
	err = s.uow.Do(ctx, func(q repository.DBExecutor) error {
		locked, err := s.walletRepo.LockWallets(ctx, q, userID)
		if err != nil {
			return fmt.Errorf("failed to lock wallets: %w", err)
		}
		debit, err := ResolveDebit(ctx, locked, currency, amount, quotes)
		if err != nil {
			return err
		}
		if _, err := s.walletRepo.AdjustBalance(ctx, q, debit.Wallet.ID, -debit.Amount); err != nil {
			return fmt.Errorf("failed to update wallet balance: %w", err)
		}

		kind := domain.TransactionKindWithdrawal
		if debit.Converted() {
			kind = domain.TransactionKindWithdrawConverted
		}
		transaction := domain.NewTransaction(uuid.NewString(), userID, kind, debit.Amount, debit.Currency, nil, s.now())
		if debit.Converted() {
			transaction.WithConversion(debit.Rate.Decimal,
				fmt.Sprintf("withdrawal of %d %s converted at %s", amount, currency, debit.Rate.Decimal))
			rate := debit.Rate.Decimal.InexactFloat64()
			result.RateApplied = &rate
		}
		if err := s.transactionRepo.CreateTransaction(ctx, q, transaction); err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}

		result.SettledCurrency = debit.Currency
		result.SettledAmount = debit.Amount
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}

	s.logger.Info("withdrawal applied", "user_id", userID, "requested", amount, "currency", currency,
		"settled_amount", result.SettledAmount, "settled_currency", result.SettledCurrency)
	return result, nil
}

// Transfer moves money from sender to receiver. The sender side resolves as
// Withdraw does; the receiver is credited in currency, in its first wallet
// after conversion, or in a new wallet, in that order.
func (s *ledgerService) Transfer(ctx context.Context, senderID, receiverID string, amount int64, currency string) (*TransferResult, error) {
	currency, err := validateRequest(amount, currency, senderID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("transfer: %w", err)
	}
	if senderID == receiverID {
		return nil, fmt.Errorf("transfer: %w", util.ErrSameWalletTransfer)
	}

	quotes := rates.NewQuoteBook(s.rates)
	if err := s.planDebit(ctx, quotes, senderID, currency, amount); err != nil {
		return nil, fmt.Errorf("transfer: %w", err)
	}
	if err := s.planCredit(ctx, quotes, receiverID, currency, amount); err != nil {
		return nil, fmt.Errorf("transfer: %w", err)
	}

	result := &TransferResult{}
	err = s.uow.Do(ctx, func(q repository.DBExecutor) error {
		locked, err := s.walletRepo.LockWallets(ctx, q, senderID, receiverID)
		if err != nil {
			return fmt.Errorf("failed to lock wallets: %w", err)
		}

		debit, err := ResolveDebit(ctx, walletsOf(locked, senderID), currency, amount, quotes)
		if err != nil {
			return err
		}
		credit, err := ResolveCredit(ctx, walletsOf(locked, receiverID), currency, amount, quotes)
		if err != nil {
			return err
		}
		if credit.Wallet == nil {
			credit.Wallet, err = s.walletRepo.EnsureWallet(ctx, q, receiverID, credit.Currency)
			if err != nil {
				return fmt.Errorf("failed to create receiver wallet: %w", err)
			}
		}

		if _, err := s.walletRepo.AdjustBalance(ctx, q, debit.Wallet.ID, -debit.Amount); err != nil {
			return fmt.Errorf("failed to debit sender wallet: %w", err)
		}
		if _, err := s.walletRepo.AdjustBalance(ctx, q, credit.Wallet.ID, credit.Amount); err != nil {
			return fmt.Errorf("failed to credit receiver wallet: %w", err)
		}

		reference := uuid.NewString()
		createdAt := s.now()
		out := domain.NewTransaction(reference, senderID, domain.TransactionKindTransferOut, debit.Amount, debit.Currency, &receiverID, createdAt)
		in := domain.NewTransaction(reference, receiverID, domain.TransactionKindTransferIn, credit.Amount, credit.Currency, &senderID, createdAt)
		if debit.Converted() {
			out.WithConversion(debit.Rate.Decimal,
				fmt.Sprintf("transfer of %d %s to %s converted at %s", amount, currency, receiverID, debit.Rate.Decimal))
		}
		if credit.Converted() {
			in.WithConversion(credit.Rate.Decimal,
				fmt.Sprintf("transfer of %d %s from %s converted at %s", amount, currency, senderID, credit.Rate.Decimal))
		}
		for _, t := range []*domain.Transaction{out, in} {
			if err := s.transactionRepo.CreateTransaction(ctx, q, t); err != nil {
				return fmt.Errorf("failed to create transaction: %w", err)
			}
		}

		result.SentAmount = debit.Amount
		result.SentCurrency = debit.Currency
		result.ReceivedAmount = credit.Amount
		result.ReceivedCurrency = credit.Currency
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("transfer: %w", err)
	}

	s.logger.Info("transfer applied", "sender_id", senderID, "receiver_id", receiverID,
		"sent_amount", result.SentAmount, "sent_currency", result.SentCurrency,
		"received_amount", result.ReceivedAmount, "received_currency", result.ReceivedCurrency)
	return result, nil
}

// planDebit replays debit resolution on an unlocked read so the rates it
// needs are quoted before any row is locked.
func (s *ledgerService) planDebit(ctx context.Context, quotes *rates.QuoteBook, userID, currency string, amount int64) error {
	wallets, err := s.walletRepo.GetWallets(ctx, s.uow.Reader(), userID)
	if err != nil {
		return fmt.Errorf("failed to read wallets: %w", err)
	}
	_, err = ResolveDebit(ctx, wallets, currency, amount, quotes)
	return planFailure(err)
}

func (s *ledgerService) planCredit(ctx context.Context, quotes *rates.QuoteBook, userID, currency string, amount int64) error {
	wallets, err := s.walletRepo.GetWallets(ctx, s.uow.Reader(), userID)
	if err != nil {
		return fmt.Errorf("failed to read wallets: %w", err)
	}
	_, err = ResolveCredit(ctx, wallets, currency, amount, quotes)
	return planFailure(err)
}

// planFailure keeps the failures a locked re-read cannot change. Missing
// wallets and short balances are decided again inside the unit.
func planFailure(err error) error {
	switch util.KindOf(err) {
	case util.KindValidation, util.KindRateUnavailable, util.KindUnsupportedCurrency:
		return err
	}
	return nil
}

// validateRequest checks the amount and user ids and returns the normalized
// currency code.
func validateRequest(amount int64, currency string, userIDs ...string) (string, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return "", err
	}
	for _, id := range userIDs {
		if err := domain.ValidateUserID(id); err != nil {
			return "", err
		}
	}
	return domain.NormalizeCurrency(currency)
}
