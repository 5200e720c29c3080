// internal/domain/money.go
package domain

import (
	"math"

	"github.com/shopspring/decimal"

	"finflow-ledger/internal/util"
)

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// RateDecimal turns a provider rate into its shortest exact decimal form, so
// 0.9 is 0.9 and not 0.900000000000000022.
func RateDecimal(rate float64) decimal.Decimal {
	return decimal.NewFromFloat(rate)
}

// Convert prices amount minor units at rate and rounds half-up to whole minor
// units. Amounts that round to zero or overflow are rejected.
func Convert(amount int64, rate decimal.Decimal) (int64, error) {
	converted := decimal.NewFromInt(amount).Mul(rate).Round(0)
	if converted.GreaterThan(maxMinorUnits) {
		return 0, util.Invalidf("converted amount overflows")
	}
	if amount > 0 && converted.Sign() <= 0 {
		return 0, util.Invalidf("amount %d is too small to convert at rate %s", amount, rate)
	}
	return converted.IntPart(), nil
}

// ConvertBalance prices a balance for aggregation. Unlike Convert a zero
// balance or a sub-unit result is allowed.
func ConvertBalance(balance int64, rate decimal.Decimal) (int64, error) {
	converted := decimal.NewFromInt(balance).Mul(rate).Round(0)
	if converted.GreaterThan(maxMinorUnits) {
		return 0, util.Invalidf("converted balance overflows")
	}
	return converted.IntPart(), nil
}
