// Package money holds the integer minor-unit arithmetic used by the ledger.
// Nothing in here touches floating point; decimal conversion exists only for
// the HTTP boundary.
package money

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
)

// Amount is a value in the deployment currency's minor unit (e.g. cents).
type Amount int64

func (a Amount) Int64() int64 { return int64(a) }

func (a Amount) IsPositive() bool { return a > 0 }

// Add returns a+b. Overflow is reported as an invalid amount rather than
// wrapping silently.
func Add(a, b Amount) (Amount, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, fmt.Errorf("Add: overflow: %w", domain.ErrInvalidAmount)
	}
	return a + b, nil
}

// Subtract returns a-b and fails with domain.ErrInsufficientFunds when the
// result would be negative.
func Subtract(a, b Amount) (Amount, error) {
	if b < 0 {
		return 0, fmt.Errorf("Subtract: negative operand: %w", domain.ErrInvalidAmount)
	}
	if a < b {
		return 0, fmt.Errorf("Subtract: %d < %d: %w", a, b, domain.ErrInsufficientFunds)
	}
	return a - b, nil
}

// Multiply returns a*n, used for the pooled payout (contribution × slots).
func Multiply(a Amount, n int) (Amount, error) {
	if n < 0 || a < 0 {
		return 0, fmt.Errorf("Multiply: %w", domain.ErrInvalidAmount)
	}
	if n != 0 && int64(a) > math.MaxInt64/int64(n) {
		return 0, fmt.Errorf("Multiply: overflow: %w", domain.ErrInvalidAmount)
	}
	return a * Amount(n), nil
}

// Sum folds Add over amounts.
func Sum(amounts ...Amount) (Amount, error) {
	var total Amount
	for _, a := range amounts {
		var err error
		total, err = Add(total, a)
		if err != nil {
			return 0, fmt.Errorf("Sum: %w", err)
		}
	}
	return total, nil
}

// Format converts between minor units and the decimal display form.
type Format struct {
	MinorDigits int32
}

func NewFormat(minorDigits int) Format {
	return Format{MinorDigits: int32(minorDigits)}
}

// ParseMajor turns a display string such as "12.50" into minor units. Inputs
// with more fractional digits than the currency allows are rejected rather
// than rounded.
func (f Format) ParseMajor(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("ParseMajor: %q: %w", s, domain.ErrInvalidAmount)
	}

	minor := d.Shift(f.MinorDigits)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("ParseMajor: %q has more than %d fractional digits: %w", s, f.MinorDigits, domain.ErrInvalidAmount)
	}
	if !minor.IsInteger() || minor.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || minor.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, fmt.Errorf("ParseMajor: %q out of range: %w", s, domain.ErrInvalidAmount)
	}
	return Amount(minor.IntPart()), nil
}

// Major renders minor units with exactly MinorDigits fractional digits.
func (f Format) Major(a Amount) string {
	return decimal.New(int64(a), -f.MinorDigits).StringFixed(f.MinorDigits)
}
