/*
Package ledger provides the core balance and transaction engine.

PURPOSE:
  This package contains the domain-agnostic primitives for managing
  beneficiary funds: a decimal-backed money type, balance tracking with
  invariant enforcement, an auditable transaction record with a strict
  status lifecycle, fee calculation, and secure code generation.

KEY CONCEPTS IN THIS FILE (money.go):
  - Money: A ZAR currency amount backed by decimal.Decimal

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors.
     No monetary value is ever represented as a float in domain logic.
  2. Half-up rounding: All displayed/charged amounts round half-up to
     two decimal places, matching banking conventions.
  3. Immutability: Money values are never mutated; operations return
     new values.

USAGE:
  amount := ledger.MustMoney("96.50")
  total := amount.Add(ledger.MustMoney("3.50"))

SEE ALSO:
  - balance.go: Balance tracking using Money
  - fees.go: Fee and bounds calculation
*/
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency amount (ZAR)
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

// Zero is the zero money value.
var Zero = Money{Value: decimal.Zero}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func NewMoneyFromInt(value int) Money {
	return Money{Value: decimal.NewFromInt(int64(value))}
}

// ParseMoney parses a decimal string like "350.00".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid money value %q: %w", s, err)
	}
	return Money{Value: d}, nil
}

// MustMoney parses a decimal string and returns zero on failure.
// Use only for trusted constants.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero
	}
	return Money{Value: d}
}

func (m Money) Add(o Money) Money                  { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money                  { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Mul(s decimal.Decimal) Money        { return Money{Value: m.Value.Mul(s)} }
func (m Money) Div(s decimal.Decimal) Money        { return Money{Value: m.Value.Div(s)} }
func (m Money) Neg() Money                         { return Money{Value: m.Value.Neg()} }
func (m Money) IsZero() bool                       { return m.Value.IsZero() }
func (m Money) IsNegative() bool                   { return m.Value.IsNegative() }
func (m Money) IsPositive() bool                   { return m.Value.IsPositive() }
func (m Money) Equal(o Money) bool                 { return m.Value.Equal(o.Value) }
func (m Money) GreaterThan(o Money) bool           { return m.Value.GreaterThan(o.Value) }
func (m Money) GreaterThanOrEqual(o Money) bool    { return m.Value.GreaterThanOrEqual(o.Value) }
func (m Money) LessThan(o Money) bool              { return m.Value.LessThan(o.Value) }
func (m Money) LessThanOrEqual(o Money) bool       { return m.Value.LessThanOrEqual(o.Value) }

// Round2 rounds half-up to two decimal places.
func (m Money) Round2() Money {
	return Money{Value: m.Value.Round(2)}
}

// String renders with two decimal places and a rand prefix: "R 96.50".
func (m Money) String() string {
	return "R " + m.Value.StringFixed(2)
}
