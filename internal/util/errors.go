// internal/util/errors.go
package util

import (
	"errors"
	"fmt"
)

// Common application-specific errors.
var (
	ErrInvalidInput        = errors.New("invalid input provided")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrRateUnavailable     = errors.New("exchange rate unavailable")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrStorageConflict     = errors.New("storage conflict, retry the operation")

	// ErrSameWalletTransfer is a validation failure: sender and receiver are the same user.
	ErrSameWalletTransfer = fmt.Errorf("%w: cannot transfer to the same user", ErrInvalidInput)
)

// ErrorKind names the failure class an operation reports to its caller.
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindValidation          ErrorKind = "VALIDATION_ERROR"
	KindWalletNotFound      ErrorKind = "WALLET_NOT_FOUND"
	KindInsufficientFunds   ErrorKind = "INSUFFICIENT_FUNDS"
	KindRateUnavailable     ErrorKind = "RATE_UNAVAILABLE"
	KindUnsupportedCurrency ErrorKind = "UNSUPPORTED_CURRENCY"
	KindStorageConflict     ErrorKind = "STORAGE_CONFLICT"
	KindInternal            ErrorKind = "INTERNAL"
)

// KindOf classifies err. A nil error has KindNone; anything outside the
// taxonomy is KindInternal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidInput):
		return KindValidation
	case errors.Is(err, ErrWalletNotFound):
		return KindWalletNotFound
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrUnsupportedCurrency):
		return KindUnsupportedCurrency
	case errors.Is(err, ErrRateUnavailable):
		return KindRateUnavailable
	case errors.Is(err, ErrStorageConflict):
		return KindStorageConflict
	default:
		return KindInternal
	}
}

// Invalidf builds a validation error carrying a specific message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
