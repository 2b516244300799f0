// Package money is the single place monetary and rate arithmetic happens.
// Values are exact decimals; binary floating point never touches money.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// MoneyScale is the currency minor-unit precision for final amounts.
	MoneyScale = 2
	// RateScale is the minimum precision carried by intermediate rate math.
	RateScale = 4
)

// ParseError reports a field whose value is not a valid non-negative decimal literal.
type ParseError struct {
	Field string
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid_amount: field %q value %q is not a non-negative decimal", e.Field, e.Value)
}

// Parse converts a canonical decimal-string literal into a decimal value.
// Negative values and malformed literals are rejected.
func Parse(field, value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Zero, &ParseError{Field: field, Value: value}
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, &ParseError{Field: field, Value: value}
	}
	if d.IsNegative() {
		return decimal.Zero, &ParseError{Field: field, Value: value}
	}
	return d, nil
}

// ParseOptional is Parse for fields that may be absent; empty input is zero.
func ParseOptional(field, value string) (decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return decimal.Zero, nil
	}
	return Parse(field, value)
}

func Add(a, b decimal.Decimal) decimal.Decimal { return a.Add(b) }

func Subtract(a, b decimal.Decimal) decimal.Decimal { return a.Sub(b) }

func Multiply(a, b decimal.Decimal) decimal.Decimal { return a.Mul(b) }

// Divide returns a/b at rate precision. Division by zero yields zero with an error.
func Divide(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, fmt.Errorf("division_by_zero")
	}
	return a.DivRound(b, RateScale+2), nil
}

// CalculateTax applies a fractional rate to a base and rounds the result to a
// final monetary amount. This is the only rounding point for a tax amount.
func CalculateTax(base, rate decimal.Decimal) decimal.Decimal {
	return RoundMoney(base.Mul(rate))
}

// ApplyCap returns value bounded above by cap.
func ApplyCap(value, cap decimal.Decimal) decimal.Decimal {
	if value.GreaterThan(cap) {
		return cap
	}
	return value
}

// ApplyPercent scales value by a fractional percentage without rounding, so
// intermediate results keep full precision until breakdown assembly.
func ApplyPercent(value, pct decimal.Decimal) decimal.Decimal {
	return value.Mul(pct)
}

// RoundMoney rounds half-up to the currency minor unit.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// ToMoneyString formats a final monetary amount as a canonical two-decimal literal.
func ToMoneyString(d decimal.Decimal) string {
	return RoundMoney(d).StringFixed(MoneyScale)
}

// ToPercentString renders a fractional rate for display, e.g. 0.0735 -> "7.35%".
func ToPercentString(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

func Zero() decimal.Decimal { return decimal.Zero }

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
