package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefhub/grant-engine/ledger"
)

// =============================================================================
// CASH SEND PRICING
// =============================================================================

func TestFeeSchedule_CashSendQuote_FlatFeeOnTop(t *testing.T) {
	// GIVEN: The default flat fee of R 3.50
	// WHEN: Quoting a 100.00 cash send
	// THEN: 103.50 leaves the balance, the recipient gets the full 100.00

	fees := ledger.DefaultFeeSchedule()

	quote, err := fees.CashSendQuote(ledger.NewMoney(100))
	require.NoError(t, err)

	assert.True(t, quote.Fee.Equal(ledger.MustMoney("3.50")))
	assert.True(t, quote.Total.Equal(ledger.MustMoney("103.50")))
	assert.True(t, quote.Net.Equal(ledger.NewMoney(100)))
}

func TestFeeSchedule_CashSendQuote_BoundsInclusive(t *testing.T) {
	fees := ledger.DefaultFeeSchedule()

	_, err := fees.CashSendQuote(ledger.NewMoney(10))
	assert.NoError(t, err, "minimum is inclusive")

	_, err = fees.CashSendQuote(ledger.NewMoney(3000))
	assert.NoError(t, err, "maximum is inclusive")

	_, err = fees.CashSendQuote(ledger.NewMoney(9.99))
	assert.ErrorIs(t, err, ledger.ErrAmountOutOfRange)

	_, err = fees.CashSendQuote(ledger.NewMoney(3000.01))
	assert.ErrorIs(t, err, ledger.ErrAmountOutOfRange)
}

// =============================================================================
// WITHDRAWAL PRICING
// =============================================================================

func TestFeeSchedule_WithdrawalQuote_PercentageFromPayout(t *testing.T) {
	// GIVEN: The default 2% withdrawal fee
	// WHEN: Quoting a 100.00 withdrawal
	// THEN: The full 100.00 leaves the balance and 98.00 is paid out

	fees := ledger.DefaultFeeSchedule()

	quote, err := fees.WithdrawalQuote(ledger.NewMoney(100))
	require.NoError(t, err)

	assert.True(t, quote.Fee.Equal(ledger.MustMoney("2.00")))
	assert.True(t, quote.Total.Equal(ledger.NewMoney(100)), "fee comes out of the payout, not on top")
	assert.True(t, quote.Net.Equal(ledger.MustMoney("98.00")))
}

func TestFeeSchedule_WithdrawalQuote_FeeRoundsHalfUp(t *testing.T) {
	// 33.33 * 0.02 = 0.6666 -> 0.67
	fees := ledger.DefaultFeeSchedule()

	quote, err := fees.WithdrawalQuote(ledger.MustMoney("33.33"))
	require.NoError(t, err)

	assert.True(t, quote.Fee.Equal(ledger.MustMoney("0.67")), "fee was %s", quote.Fee)
	assert.True(t, quote.Net.Equal(ledger.MustMoney("32.66")))
}

func TestFeeSchedule_WithdrawalQuote_Bounds(t *testing.T) {
	fees := ledger.DefaultFeeSchedule()

	_, err := fees.WithdrawalQuote(ledger.NewMoney(25))
	assert.NoError(t, err)

	_, err = fees.WithdrawalQuote(ledger.NewMoney(5000))
	assert.NoError(t, err)

	_, err = fees.WithdrawalQuote(ledger.NewMoney(24.99))
	assert.ErrorIs(t, err, ledger.ErrAmountOutOfRange)

	var rangeErr *ledger.AmountOutOfRangeError
	_, err = fees.WithdrawalQuote(ledger.NewMoney(5001))
	require.ErrorAs(t, err, &rangeErr)
	assert.True(t, rangeErr.Max.Equal(ledger.NewMoney(5000)))
}

// =============================================================================
// ELECTRICITY PRICING
// =============================================================================

func TestFeeSchedule_ElectricityUnits_RatePerKWh(t *testing.T) {
	// GIVEN: The default rate of R 2.50 per kWh
	// WHEN: Converting 50.00
	// THEN: Exactly 20.00 kWh

	fees := ledger.DefaultFeeSchedule()

	units, err := fees.ElectricityUnits(ledger.NewMoney(50))
	require.NoError(t, err)
	assert.Equal(t, "20.00", units.StringFixed(2))
}

func TestFeeSchedule_ElectricityUnits_RoundsHalfUp(t *testing.T) {
	// 51 / 2.50 = 20.4
	fees := ledger.DefaultFeeSchedule()

	units, err := fees.ElectricityUnits(ledger.NewMoney(51))
	require.NoError(t, err)
	assert.Equal(t, "20.40", units.StringFixed(2))
}

func TestFeeSchedule_ElectricityQuote_NoSeparateFee(t *testing.T) {
	fees := ledger.DefaultFeeSchedule()

	quote, err := fees.ElectricityQuote(ledger.NewMoney(80))
	require.NoError(t, err)

	assert.True(t, quote.Fee.IsZero())
	assert.True(t, quote.Total.Equal(ledger.NewMoney(80)))
}

func TestFeeSchedule_ElectricityQuote_Bounds(t *testing.T) {
	fees := ledger.DefaultFeeSchedule()

	_, err := fees.ElectricityQuote(ledger.NewMoney(5))
	assert.NoError(t, err)

	_, err = fees.ElectricityQuote(ledger.NewMoney(4.99))
	assert.ErrorIs(t, err, ledger.ErrAmountOutOfRange)
}

// =============================================================================
// INVALID INPUT
// =============================================================================

func TestFeeSchedule_NonPositiveAmounts_Rejected(t *testing.T) {
	fees := ledger.DefaultFeeSchedule()

	_, err := fees.CashSendQuote(ledger.Zero)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = fees.WithdrawalQuote(ledger.NewMoney(-50))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = fees.ElectricityQuote(ledger.Zero)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}
