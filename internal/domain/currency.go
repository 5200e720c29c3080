// internal/domain/currency.go
package domain

import (
	"regexp"
	"strings"

	"finflow-ledger/internal/util"
)

var currencyCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// NormalizeCurrency upper-cases and trims code and checks it is a three-letter
// ISO-4217-like code.
func NormalizeCurrency(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if !currencyCodePattern.MatchString(c) {
		return "", util.Invalidf("malformed currency code %q", code)
	}
	return c, nil
}

// ValidateAmount rejects non-positive minor-unit amounts.
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return util.Invalidf("amount must be positive, got %d", amount)
	}
	return nil
}

// ValidateUserID rejects blank user identifiers.
func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return util.Invalidf("user id is required")
	}
	return nil
}
