// internal/service/balance_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/rates"
	"finflow-ledger/internal/repository"
	"finflow-ledger/internal/util"
)

// maxConcurrentQuotes caps the rate lookups one TotalBalance runs at once.
const maxConcurrentQuotes = 4

// TotalBalanceResult is a user's holdings priced in one currency.
type TotalBalanceResult struct {
	UserID   string `json:"user_id"`
	Currency string `json:"currency"`
	Total    int64  `json:"total"`
}

// BalanceService defines the read side of the ledger.
type BalanceService interface {
	TotalBalance(ctx context.Context, userID, currency string) (*TotalBalanceResult, error)
	WalletBalance(ctx context.Context, userID, currency string) (*domain.Wallet, error)
	Wallets(ctx context.Context, userID string) ([]domain.Wallet, error)
	History(ctx context.Context, userID string, limit, offset int) ([]domain.Transaction, error)
}

type balanceService struct {
	uow             repository.UnitOfWork
	walletRepo      repository.WalletRepository
	transactionRepo repository.TransactionRepository
	rates           rates.Provider
	logger          *slog.Logger
}

// NewBalanceService creates a new instance of BalanceService.
func NewBalanceService(
	uow repository.UnitOfWork,
	walletRepo repository.WalletRepository,
	transactionRepo repository.TransactionRepository,
	provider rates.Provider,
	logger *slog.Logger,
) BalanceService {
	if logger == nil {
		logger = util.DiscardLogger()
	}
	return &balanceService{
		uow:             uow,
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		rates:           provider,
		logger:          logger,
	}
}

// TotalBalance converts every wallet of the user into currency, rounding each
// contribution half-up before summing. Any wallet that cannot be priced fails
// the whole call.
func (s *balanceService) TotalBalance(ctx context.Context, userID, currency string) (*TotalBalanceResult, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, fmt.Errorf("total balance: %w", err)
	}
	currency, err := domain.NormalizeCurrency(currency)
	if err != nil {
		return nil, fmt.Errorf("total balance: %w", err)
	}

	var wallets []domain.Wallet
	err = s.uow.View(ctx, func(q repository.DBExecutor) error {
		var err error
		wallets, err = s.walletRepo.GetWallets(ctx, q, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("total balance: failed to read wallets: %w", err)
	}
	if len(wallets) == 0 {
		return nil, fmt.Errorf("total balance: user %s: %w", userID, util.ErrWalletNotFound)
	}

	quotes := rates.NewQuoteBook(s.rates)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQuotes)
	seen := make(map[string]bool, len(wallets))
	for _, w := range wallets {
		if seen[w.Currency] {
			continue
		}
		seen[w.Currency] = true
		from := w.Currency
		g.Go(func() error {
			_, err := quotes.Rate(gctx, from, currency)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("total balance: %w", err)
	}

	var total int64
	for _, w := range wallets {
		rate, err := quotes.Rate(ctx, w.Currency, currency)
		if err != nil {
			return nil, fmt.Errorf("total balance: %w", err)
		}
		contribution, err := domain.ConvertBalance(w.Balance, rate)
		if err != nil {
			return nil, fmt.Errorf("total balance: %w", err)
		}
		if total > math.MaxInt64-contribution {
			return nil, fmt.Errorf("total balance: %w", util.Invalidf("total overflows"))
		}
		total += contribution
	}

	s.logger.Debug("total balance computed", "user_id", userID, "currency", currency, "wallets", len(wallets), "total", total)
	return &TotalBalanceResult{UserID: userID, Currency: currency, Total: total}, nil
}

// WalletBalance returns the user's wallet in currency.
func (s *balanceService) WalletBalance(ctx context.Context, userID, currency string) (*domain.Wallet, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, fmt.Errorf("wallet balance: %w", err)
	}
	currency, err := domain.NormalizeCurrency(currency)
	if err != nil {
		return nil, fmt.Errorf("wallet balance: %w", err)
	}
	wallet, err := s.walletRepo.GetWallet(ctx, s.uow.Reader(), userID, currency)
	if err != nil {
		return nil, fmt.Errorf("wallet balance: %w", err)
	}
	return wallet, nil
}

// Wallets lists the user's wallets ordered by currency code.
func (s *balanceService) Wallets(ctx context.Context, userID string) ([]domain.Wallet, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, fmt.Errorf("wallets: %w", err)
	}
	wallets, err := s.walletRepo.GetWallets(ctx, s.uow.Reader(), userID)
	if err != nil {
		return nil, fmt.Errorf("wallets: %w", err)
	}
	return wallets, nil
}

// History returns the user's transaction records newest first.
func (s *balanceService) History(ctx context.Context, userID string, limit, offset int) ([]domain.Transaction, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("history: %w", util.Invalidf("limit and offset must not be negative"))
	}
	transactions, err := s.transactionRepo.GetTransactionsByUserID(ctx, s.uow.Reader(), userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return transactions, nil
}
