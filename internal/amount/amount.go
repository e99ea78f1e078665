// Package amount converts between exact integer amounts and the decimal
// strings users read and type.
package amount

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxDecimalPlaces bounds the number of fractional digits shown.
const MaxDecimalPlaces = 20

// ErrInvalidAmount is returned for input that is not a decimal number.
var ErrInvalidAmount = errors.New("invalid amount")

var (
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
)

// StringToAmount converts a decimal string in display units into an exact
// amount: s * amountDivisor, rounded half away from zero and clamped to the
// int64 range.
func StringToAmount(s string, amountDivisor float64) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if !(amountDivisor > 0) || math.IsInf(amountDivisor, 0) {
		return 0, fmt.Errorf("%w: amount divisor %v", ErrInvalidAmount, amountDivisor)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	v := d.Mul(decimal.NewFromFloat(amountDivisor)).Round(0)
	switch {
	case v.GreaterThan(maxInt64):
		return math.MaxInt64, nil
	case v.LessThan(minInt64):
		return math.MinInt64, nil
	}
	return v.IntPart(), nil
}

// AmountToString renders amount / amountDivisor with exactly decimalPlaces
// fractional digits. A non-positive divisor is treated as 1.
func AmountToString(amount int64, amountDivisor float64, decimalPlaces int64) string {
	if !(amountDivisor > 0) || math.IsInf(amountDivisor, 0) {
		amountDivisor = 1
	}
	places := min(max(decimalPlaces, 0), MaxDecimalPlaces)
	v := decimal.NewFromInt(amount).Div(decimal.NewFromFloat(amountDivisor))
	return v.StringFixed(int32(places))
}
