package payments_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefhub/grant-engine/ledger"
	"github.com/reliefhub/grant-engine/payments"
)

// =============================================================================
// PURCHASE TESTS
// =============================================================================

func TestElectricityService_Purchase_IssuesTokenAndSettlesImmediately(t *testing.T) {
	// GIVEN: An account holding 200.00
	// WHEN: Buying 50.00 of electricity for a meter
	// THEN: 50.00 is debited with no fee, the token is 20 digits for
	//       20.00 kWh, and the transaction is already COMPLETED

	l, _ := newTestLedger(t)
	svc := payments.NewElectricityService(l)
	ctx := context.Background()

	seedAccount(t, l, "acc-1", 200)

	tok, err := svc.Purchase(ctx, "acc-1", ledger.NewMoney(50), "01234567890")
	require.NoError(t, err)

	assert.Equal(t, payments.TokenCompleted, tok.Status)
	assert.True(t, tok.Amount.Equal(ledger.NewMoney(50)))
	assert.Equal(t, "20.00", tok.Units.StringFixed(2))
	assert.Regexp(t, `^\d{4}-\d{4}-\d{4}-\d{4}-\d{4}$`, tok.Token)
	assert.Regexp(t, `^EL-\d{8}-\d{6}$`, tok.Reference)
	assert.Equal(t, "01234567890", tok.MeterNumber)
	assert.Equal(t, tok.IssuedAt.Add(payments.DefaultTokenExpiry), tok.ExpiresAt)

	assert.True(t, availableBalance(t, l, "acc-1").Equal(ledger.NewMoney(150)))

	tx, err := l.Store().GetTransaction(ctx, tok.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, ledger.TxPayment, tx.Type)
	assert.Equal(t, ledger.StatusCompleted, tx.Status)
	assert.True(t, tx.Fee.IsZero())
}

func TestElectricityService_Purchase_RoundsUnitsHalfUp(t *testing.T) {
	l, _ := newTestLedger(t)
	svc := payments.NewElectricityService(l)

	seedAccount(t, l, "acc-1", 200)

	tok, err := svc.Purchase(context.Background(), "acc-1", ledger.NewMoney(51), "01234567890")
	require.NoError(t, err)
	assert.Equal(t, "20.40", tok.Units.StringFixed(2))
}

func TestElectricityService_Purchase_BelowMinimum_Rejected(t *testing.T) {
	l, _ := newTestLedger(t)
	svc := payments.NewElectricityService(l)

	seedAccount(t, l, "acc-1", 200)

	_, err := svc.Purchase(context.Background(), "acc-1", ledger.NewMoney(4.99), "01234567890")
	assert.ErrorIs(t, err, ledger.ErrAmountOutOfRange)
}

func TestElectricityService_Purchase_InsufficientBalance_Rejected(t *testing.T) {
	l, _ := newTestLedger(t)
	svc := payments.NewElectricityService(l)
	ctx := context.Background()

	seedAccount(t, l, "acc-1", 20)

	_, err := svc.Purchase(ctx, "acc-1", ledger.NewMoney(50), "01234567890")
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	assert.True(t, availableBalance(t, l, "acc-1").Equal(ledger.NewMoney(20)))

	tokens, err := svc.ListByAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

// =============================================================================
// FAILURE AND REFUND TESTS
// =============================================================================

func TestElectricityService_FailThenRefund_RestoresBalance(t *testing.T) {
	// GIVEN: A settled 50.00 purchase the vendor later reports as failed
	// WHEN: Marking it failed and refunding
	// THEN: The token moves COMPLETED -> FAILED -> REFUNDED and the
	//       full amount comes back

	l, _ := newTestLedger(t)
	svc := payments.NewElectricityService(l)
	ctx := context.Background()

	seedAccount(t, l, "acc-1", 200)
	tok, err := svc.Purchase(ctx, "acc-1", ledger.NewMoney(50), "01234567890")
	require.NoError(t, err)

	require.NoError(t, svc.Fail(ctx, tok.ID, "vendor timeout"))

	tokens, err := svc.ListByAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, payments.TokenFailed, tokens[0].Status)
	assert.Equal(t, "vendor timeout", tokens[0].FailureReason)

	require.NoError(t, svc.Refund(ctx, tok.ID))

	tokens, err = svc.ListByAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, payments.TokenRefunded, tokens[0].Status)

	assert.True(t, availableBalance(t, l, "acc-1").Equal(ledger.NewMoney(200)))

	txs, err := l.Store().ListTransactions(ctx, "acc-1", 1)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, ledger.TxRefund, txs[0].Type)
	assert.Equal(t, tok.Reference+"-R", txs[0].Reference)
}

func TestElectricityService_Refund_CompletedToken_Rejected(t *testing.T) {
	l, _ := newTestLedger(t)
	svc := payments.NewElectricityService(l)
	ctx := context.Background()

	seedAccount(t, l, "acc-1", 200)
	tok, err := svc.Purchase(ctx, "acc-1", ledger.NewMoney(50), "01234567890")
	require.NoError(t, err)

	err = svc.Refund(ctx, tok.ID)
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)
	assert.True(t, availableBalance(t, l, "acc-1").Equal(ledger.NewMoney(150)),
		"a delivered token is never refundable")
}

func TestElectricityService_Fail_AlreadyFailed_Rejected(t *testing.T) {
	l, _ := newTestLedger(t)
	svc := payments.NewElectricityService(l)
	ctx := context.Background()

	seedAccount(t, l, "acc-1", 200)
	tok, err := svc.Purchase(ctx, "acc-1", ledger.NewMoney(50), "01234567890")
	require.NoError(t, err)
	require.NoError(t, svc.Fail(ctx, tok.ID, "vendor timeout"))

	err = svc.Fail(ctx, tok.ID, "again")
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)
}

func TestElectricityService_Refund_Twice_Rejected(t *testing.T) {
	l, _ := newTestLedger(t)
	svc := payments.NewElectricityService(l)
	ctx := context.Background()

	seedAccount(t, l, "acc-1", 200)
	tok, err := svc.Purchase(ctx, "acc-1", ledger.NewMoney(50), "01234567890")
	require.NoError(t, err)
	require.NoError(t, svc.Fail(ctx, tok.ID, "vendor timeout"))
	require.NoError(t, svc.Refund(ctx, tok.ID))

	err = svc.Refund(ctx, tok.ID)
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)
	assert.True(t, availableBalance(t, l, "acc-1").Equal(ledger.NewMoney(200)),
		"the refund must not double-credit")
}

func TestElectricityService_Fail_UnknownToken_ReturnsNotFound(t *testing.T) {
	l, _ := newTestLedger(t)
	svc := payments.NewElectricityService(l)

	err := svc.Fail(context.Background(), "elt-does-not-exist", "whatever")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestElectricityService_Purchase_TokenTTLHonorsOverride(t *testing.T) {
	l, _ := newTestLedger(t)
	svc := payments.NewElectricityService(l)
	svc.TokenTTL = 48 * time.Hour

	seedAccount(t, l, "acc-1", 200)

	tok, err := svc.Purchase(context.Background(), "acc-1", ledger.NewMoney(50), "01234567890")
	require.NoError(t, err)
	assert.Equal(t, tok.IssuedAt.Add(48*time.Hour), tok.ExpiresAt)
}
