/*
fees.go - Fee and bounds calculation

PURPOSE:
  FeeSchedule is the single place where per-operation pricing lives:
  flat fees, percentage fees, unit rates, and [min, max] bounds.
  It is pure and stateless - quotes can be computed for display
  without touching any balance.

PRICING (defaults):
  Cash-send:    flat R 3.50 fee, total = amount + fee, bounds [10, 3000]
  Withdrawal:   2% fee (half-up, 2dp), net = amount - fee, bounds [25, 5000]
  Electricity:  R 2.50 per kWh, units = amount / rate (half-up, 2dp),
                no separate fee, bounds [5, 5000]

BOUNDS:
  Min and max are inclusive. A non-positive amount is ErrInvalidAmount;
  anything else outside bounds is AmountOutOfRangeError.

SEE ALSO:
  - payments: Applies quotes before debiting
*/
package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// FEE SCHEDULE
// =============================================================================

type FeeSchedule struct {
	CashSendFee Money
	CashSendMin Money
	CashSendMax Money

	WithdrawalFeeRate decimal.Decimal // fraction, e.g. 0.02
	WithdrawalMin     Money
	WithdrawalMax     Money

	ElectricityRate Money // rand per kWh
	ElectricityMin  Money
	ElectricityMax  Money
}

// DefaultFeeSchedule returns the standard pricing.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		CashSendFee: MustMoney("3.50"),
		CashSendMin: MustMoney("10.00"),
		CashSendMax: MustMoney("3000.00"),

		WithdrawalFeeRate: decimal.RequireFromString("0.02"),
		WithdrawalMin:     MustMoney("25.00"),
		WithdrawalMax:     MustMoney("5000.00"),

		ElectricityRate: MustMoney("2.50"),
		ElectricityMin:  MustMoney("5.00"),
		ElectricityMax:  MustMoney("5000.00"),
	}
}

// Quote is the priced breakdown of an operation.
type Quote struct {
	Amount Money // what the caller asked for
	Fee    Money // charge on top of (or out of) the amount
	Total  Money // what leaves the balance
	Net    Money // what the recipient gets
}

// CashSendQuote prices a voucher purchase. The fee is charged on top:
// total deduction = amount + fee, the recipient gets the full amount.
func (f FeeSchedule) CashSendQuote(amount Money) (Quote, error) {
	if err := checkBounds(amount, f.CashSendMin, f.CashSendMax); err != nil {
		return Quote{}, err
	}
	return Quote{
		Amount: amount,
		Fee:    f.CashSendFee,
		Total:  amount.Add(f.CashSendFee),
		Net:    amount,
	}, nil
}

// WithdrawalQuote prices a cash-out. The fee comes out of the payout:
// total deduction = amount, the recipient gets amount - fee.
func (f FeeSchedule) WithdrawalQuote(amount Money) (Quote, error) {
	if err := checkBounds(amount, f.WithdrawalMin, f.WithdrawalMax); err != nil {
		return Quote{}, err
	}
	fee := amount.Mul(f.WithdrawalFeeRate).Round2()
	return Quote{
		Amount: amount,
		Fee:    fee,
		Total:  amount,
		Net:    amount.Sub(fee),
	}, nil
}

// ElectricityQuote prices a token purchase. No separate fee; the full
// amount converts to units at the configured rate.
func (f FeeSchedule) ElectricityQuote(amount Money) (Quote, error) {
	if err := checkBounds(amount, f.ElectricityMin, f.ElectricityMax); err != nil {
		return Quote{}, err
	}
	return Quote{
		Amount: amount,
		Fee:    Zero,
		Total:  amount,
		Net:    amount,
	}, nil
}

// ElectricityUnits converts an amount to kWh, rounded half-up to 2dp.
func (f FeeSchedule) ElectricityUnits(amount Money) (decimal.Decimal, error) {
	if _, err := f.ElectricityQuote(amount); err != nil {
		return decimal.Zero, err
	}
	return amount.Value.Div(f.ElectricityRate.Value).Round(2), nil
}

func checkBounds(amount, min, max Money) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.LessThan(min) || amount.GreaterThan(max) {
		return &AmountOutOfRangeError{Amount: amount, Min: min, Max: max}
	}
	return nil
}
