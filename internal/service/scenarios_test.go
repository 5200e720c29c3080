package service

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/rates"
	"finflow-ledger/internal/repository"
	"finflow-ledger/internal/repository/memory"
	"finflow-ledger/internal/util"
)

type ledgerFixture struct {
	store    *memory.Store
	wallets  repository.WalletRepository
	ledger   LedgerService
	balances BalanceService
	table    rates.Static
	calls    atomic.Int64
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{store: memory.NewStore(), table: rates.Static{}}
	f.wallets = memory.NewWalletRepository(f.store)
	transactions := memory.NewTransactionRepository(f.store)
	provider := rates.Bounded(rates.ProviderFunc(func(ctx context.Context, from, to string) (float64, error) {
		f.calls.Add(1)
		return f.table.GetRate(ctx, from, to)
	}), time.Second)
	f.ledger = NewLedgerService(f.store, f.wallets, transactions, provider, util.DiscardLogger())
	f.balances = NewBalanceService(f.store, f.wallets, transactions, provider, util.DiscardLogger())
	return f
}

func (f *ledgerFixture) fund(t *testing.T, userID string, amount int64, currency string) {
	t.Helper()
	_, err := f.ledger.Deposit(context.Background(), userID, amount, currency)
	require.NoError(t, err)
}

func (f *ledgerFixture) balance(t *testing.T, userID, currency string) int64 {
	t.Helper()
	w, err := f.balances.WalletBalance(context.Background(), userID, currency)
	require.NoError(t, err)
	return w.Balance
}

func (f *ledgerFixture) history(t *testing.T, userID string) []domain.Transaction {
	t.Helper()
	h, err := f.balances.History(context.Background(), userID, 0, 0)
	require.NoError(t, err)
	return h
}

func TestDepositOnEmptyStore(t *testing.T) {
	f := newLedgerFixture(t)

	result, err := f.ledger.Deposit(context.Background(), "A", 500, "USD")

	require.NoError(t, err)
	assert.Equal(t, int64(500), result.NewBalance)
	assert.Equal(t, int64(500), f.balance(t, "A", "USD"))
	h := f.history(t, "A")
	require.Len(t, h, 1)
	assert.Equal(t, domain.TransactionKindDeposit, h[0].Kind)
	assert.Equal(t, int64(500), h[0].Amount)
}

func TestWithdrawExactCurrency(t *testing.T) {
	f := newLedgerFixture(t)
	f.fund(t, "A", 500, "USD")

	result, err := f.ledger.Withdraw(context.Background(), "A", 200, "USD")

	require.NoError(t, err)
	assert.Equal(t, "USD", result.SettledCurrency)
	assert.Equal(t, int64(200), result.SettledAmount)
	assert.Nil(t, result.RateApplied)
	assert.Equal(t, int64(300), f.balance(t, "A", "USD"))
	assert.Equal(t, domain.TransactionKindWithdrawal, f.history(t, "A")[0].Kind)
}

func TestWithdrawFallsBackToConvertedWallet(t *testing.T) {
	f := newLedgerFixture(t)
	f.table.Set("USD", "EUR", 0.9)
	f.fund(t, "A", 300, "USD")
	f.fund(t, "A", 2000, "EUR")

	result, err := f.ledger.Withdraw(context.Background(), "A", 1000, "USD")

	require.NoError(t, err)
	assert.Equal(t, "EUR", result.SettledCurrency)
	assert.Equal(t, int64(900), result.SettledAmount)
	require.NotNil(t, result.RateApplied)
	assert.Equal(t, 0.9, *result.RateApplied)
	assert.Equal(t, int64(1100), f.balance(t, "A", "EUR"))
	assert.Equal(t, int64(300), f.balance(t, "A", "USD"))

	last := f.history(t, "A")[0]
	assert.Equal(t, domain.TransactionKindWithdrawConverted, last.Kind)
	assert.Equal(t, "EUR", last.Currency)
	assert.Equal(t, int64(900), last.Amount)
	require.True(t, last.ExchangeRate.Valid)
	assert.Equal(t, "0.9", last.ExchangeRate.Decimal.String())
	require.NotNil(t, last.Description)
	assert.Equal(t, "withdrawal of 1000 USD converted at 0.9", *last.Description)
}

func TestTransferCreatesReceiverWallet(t *testing.T) {
	f := newLedgerFixture(t)
	f.fund(t, "A", 300, "USD")

	result, err := f.ledger.Transfer(context.Background(), "A", "B", 100, "USD")

	require.NoError(t, err)
	assert.Equal(t, TransferResult{SentAmount: 100, SentCurrency: "USD", ReceivedAmount: 100, ReceivedCurrency: "USD"}, *result)
	assert.Equal(t, int64(200), f.balance(t, "A", "USD"))
	assert.Equal(t, int64(100), f.balance(t, "B", "USD"))

	out := f.history(t, "A")[0]
	in := f.history(t, "B")
	require.Len(t, in, 1)
	assert.Equal(t, domain.TransactionKindTransferOut, out.Kind)
	assert.Equal(t, domain.TransactionKindTransferIn, in[0].Kind)
	require.NotNil(t, out.RelatedUserID)
	require.NotNil(t, in[0].RelatedUserID)
	assert.Equal(t, "B", *out.RelatedUserID)
	assert.Equal(t, "A", *in[0].RelatedUserID)
	assert.Equal(t, out.Reference, in[0].Reference)
	assert.False(t, out.ExchangeRate.Valid)
}

func TestWithdrawWithoutWallets(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.ledger.Withdraw(context.Background(), "C", 50, "GBP")

	assert.ErrorIs(t, err, util.ErrWalletNotFound)
}

func TestTotalBalanceRoundsEachContribution(t *testing.T) {
	f := newLedgerFixture(t)
	f.table.Set("EUR", "USD", 1.11)
	f.fund(t, "A", 200, "USD")
	f.fund(t, "A", 1100, "EUR")

	result, err := f.balances.TotalBalance(context.Background(), "A", "USD")

	require.NoError(t, err)
	assert.Equal(t, int64(1421), result.Total)
	assert.Equal(t, "USD", result.Currency)
}

func TestTotalBalanceFailures(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.balances.TotalBalance(context.Background(), "nobody", "USD")
	assert.ErrorIs(t, err, util.ErrWalletNotFound)

	f.fund(t, "A", 200, "USD")
	f.fund(t, "A", 100, "JPY")
	_, err = f.balances.TotalBalance(context.Background(), "A", "USD")
	assert.ErrorIs(t, err, util.ErrUnsupportedCurrency)
}

func TestCreditPastMaxBalanceIsValidationError(t *testing.T) {
	f := newLedgerFixture(t)
	f.fund(t, "A", math.MaxInt64, "USD")
	f.fund(t, "B", 10, "USD")

	_, err := f.ledger.Deposit(context.Background(), "A", 1, "USD")
	assert.ErrorIs(t, err, util.ErrInvalidInput)
	assert.Equal(t, util.KindValidation, util.KindOf(err))

	_, err = f.ledger.Transfer(context.Background(), "B", "A", 5, "USD")
	assert.Equal(t, util.KindValidation, util.KindOf(err))

	assert.Equal(t, int64(math.MaxInt64), f.balance(t, "A", "USD"))
	assert.Equal(t, int64(10), f.balance(t, "B", "USD"))
	assert.Len(t, f.history(t, "A"), 1)
	assert.Len(t, f.history(t, "B"), 1)
}

func TestWithdrawPrefersExactCurrency(t *testing.T) {
	f := newLedgerFixture(t)
	f.table.Set("USD", "EUR", 0.9)
	f.fund(t, "A", 5000, "EUR")
	f.fund(t, "A", 500, "USD")

	result, err := f.ledger.Withdraw(context.Background(), "A", 100, "USD")

	require.NoError(t, err)
	assert.Equal(t, "USD", result.SettledCurrency)
	assert.Equal(t, int64(5000), f.balance(t, "A", "EUR"))
	assert.Zero(t, f.calls.Load())
}

func TestWithdrawFallbackOrderIsByCurrencyCode(t *testing.T) {
	f := newLedgerFixture(t)
	f.table.Set("USD", "EUR", 0.9)
	f.table.Set("USD", "GBP", 0.8)
	f.fund(t, "A", 10, "USD")
	f.fund(t, "A", 1000, "GBP")
	f.fund(t, "A", 50, "EUR")

	// EUR comes first but cannot cover 90, GBP covers 80.
	result, err := f.ledger.Withdraw(context.Background(), "A", 100, "USD")
	require.NoError(t, err)
	assert.Equal(t, "GBP", result.SettledCurrency)
	assert.Equal(t, int64(80), result.SettledAmount)

	f.fund(t, "A", 1000, "EUR")
	result, err = f.ledger.Withdraw(context.Background(), "A", 100, "USD")
	require.NoError(t, err)
	assert.Equal(t, "EUR", result.SettledCurrency)
	assert.Equal(t, int64(90), result.SettledAmount)
}

func TestWithdrawInsufficientFundsLeavesLedgerUntouched(t *testing.T) {
	f := newLedgerFixture(t)
	f.table.Set("USD", "EUR", 0.9)
	f.fund(t, "A", 10, "USD")
	f.fund(t, "A", 20, "EUR")

	_, err := f.ledger.Withdraw(context.Background(), "A", 100, "USD")

	assert.ErrorIs(t, err, util.ErrInsufficientFunds)
	assert.Equal(t, int64(10), f.balance(t, "A", "USD"))
	assert.Equal(t, int64(20), f.balance(t, "A", "EUR"))
	assert.Len(t, f.history(t, "A"), 2)
}

func TestWithdrawConversionRoundingToZeroIsRejected(t *testing.T) {
	f := newLedgerFixture(t)
	f.table.Set("USD", "JPY", 0.001)
	f.fund(t, "A", 1000, "JPY")

	_, err := f.ledger.Withdraw(context.Background(), "A", 1, "USD")

	assert.ErrorIs(t, err, util.ErrInvalidInput)
	assert.Equal(t, int64(1000), f.balance(t, "A", "JPY"))
}

func TestWithdrawUnsupportedPairAborts(t *testing.T) {
	f := newLedgerFixture(t)
	f.fund(t, "A", 1000, "EUR")

	_, err := f.ledger.Withdraw(context.Background(), "A", 100, "USD")

	assert.ErrorIs(t, err, util.ErrUnsupportedCurrency)
	assert.Equal(t, int64(1000), f.balance(t, "A", "EUR"))
}

func TestTransferConvertsIntoReceiverWallet(t *testing.T) {
	f := newLedgerFixture(t)
	f.table.Set("USD", "EUR", 0.9)
	f.table.Set("USD", "GBP", 0.8)
	f.fund(t, "A", 1000, "USD")
	f.fund(t, "B", 5, "GBP")
	f.fund(t, "B", 5, "EUR")

	result, err := f.ledger.Transfer(context.Background(), "A", "B", 100, "USD")

	require.NoError(t, err)
	assert.Equal(t, "EUR", result.ReceivedCurrency)
	assert.Equal(t, int64(90), result.ReceivedAmount)
	assert.Equal(t, int64(95), f.balance(t, "B", "EUR"))
	assert.Equal(t, int64(5), f.balance(t, "B", "GBP"))
	_, err = f.balances.WalletBalance(context.Background(), "B", "USD")
	assert.ErrorIs(t, err, util.ErrWalletNotFound)

	in := f.history(t, "B")[0]
	assert.Equal(t, domain.TransactionKindTransferIn, in.Kind)
	require.True(t, in.ExchangeRate.Valid)
	assert.Equal(t, "0.9", in.ExchangeRate.Decimal.String())
	require.NotNil(t, in.Description)
}

func TestTransferConservesValue(t *testing.T) {
	f := newLedgerFixture(t)
	f.table.Set("USD", "EUR", 0.9)
	f.fund(t, "A", 1000, "USD")
	f.fund(t, "B", 1, "EUR")

	result, err := f.ledger.Transfer(context.Background(), "A", "B", 333, "USD")

	require.NoError(t, err)
	expected := float64(result.SentAmount) * 0.9
	assert.InDelta(t, expected, float64(result.ReceivedAmount), 1)
	assert.Equal(t, int64(1000-333), f.balance(t, "A", "USD"))
	assert.Equal(t, int64(1)+result.ReceivedAmount, f.balance(t, "B", "EUR"))
}

func TestTransferQuotesEachPairOnce(t *testing.T) {
	f := newLedgerFixture(t)
	f.table.Set("USD", "EUR", 0.9)
	f.fund(t, "A", 10, "USD")
	f.fund(t, "A", 1000, "EUR")
	f.fund(t, "B", 1, "EUR")

	_, err := f.ledger.Transfer(context.Background(), "A", "B", 100, "USD")

	require.NoError(t, err)
	assert.Equal(t, int64(1), f.calls.Load())
}

func TestTransferInsufficientFundsCreatesNothing(t *testing.T) {
	f := newLedgerFixture(t)
	f.fund(t, "A", 50, "USD")

	_, err := f.ledger.Transfer(context.Background(), "A", "B", 100, "USD")

	assert.ErrorIs(t, err, util.ErrInsufficientFunds)
	wallets, err := f.balances.Wallets(context.Background(), "B")
	require.NoError(t, err)
	assert.Empty(t, wallets)
	assert.Empty(t, f.history(t, "B"))
}

func TestHistoryIsNewestFirstWithDocumentedRecordCounts(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	f.fund(t, "A", 500, "USD")
	_, err := f.ledger.Withdraw(ctx, "A", 100, "USD")
	require.NoError(t, err)
	_, err = f.ledger.Transfer(ctx, "A", "B", 50, "USD")
	require.NoError(t, err)

	h := f.history(t, "A")
	require.Len(t, h, 3)
	assert.Equal(t, domain.TransactionKindTransferOut, h[0].Kind)
	assert.Equal(t, domain.TransactionKindWithdrawal, h[1].Kind)
	assert.Equal(t, domain.TransactionKindDeposit, h[2].Kind)
	assert.True(t, h[0].ID > h[1].ID && h[1].ID > h[2].ID)
	assert.Len(t, f.history(t, "B"), 1)

	page, err := f.balances.History(ctx, "A", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, domain.TransactionKindWithdrawal, page[0].Kind)

	_, err = f.balances.History(ctx, "A", -1, 0)
	assert.ErrorIs(t, err, util.ErrInvalidInput)
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	f := newLedgerFixture(t)
	f.fund(t, "A", 1000, "USD")

	var wg sync.WaitGroup
	var succeeded, refused atomic.Int64
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Withdraw(context.Background(), "A", 100, "USD")
			switch {
			case err == nil:
				succeeded.Add(1)
			case util.KindOf(err) == util.KindInsufficientFunds:
				refused.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), succeeded.Load())
	assert.Equal(t, int64(15), refused.Load())
	assert.Equal(t, int64(0), f.balance(t, "A", "USD"))
	assert.Len(t, f.history(t, "A"), 11)
}

func TestConcurrentOppositeTransfersConserveTotal(t *testing.T) {
	f := newLedgerFixture(t)
	f.fund(t, "A", 1000, "USD")
	f.fund(t, "B", 1000, "USD")

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Transfer(context.Background(), "A", "B", 10, "USD")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := f.ledger.Transfer(context.Background(), "B", "A", 10, "USD")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(2000), f.balance(t, "A", "USD")+f.balance(t, "B", "USD"))
	assert.Len(t, f.history(t, "A"), 81)
}

func TestWalletsAreListedByCurrency(t *testing.T) {
	f := newLedgerFixture(t)
	f.fund(t, "A", 1, "USD")
	f.fund(t, "A", 1, "CHF")
	f.fund(t, "A", 1, "EUR")

	wallets, err := f.balances.Wallets(context.Background(), "A")

	require.NoError(t, err)
	require.Len(t, wallets, 3)
	assert.Equal(t, "CHF", wallets[0].Currency)
	assert.Equal(t, "EUR", wallets[1].Currency)
	assert.Equal(t, "USD", wallets[2].Currency)
}
