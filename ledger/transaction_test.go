package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefhub/grant-engine/ledger"
)

func newTestTransaction() *ledger.Transaction {
	return ledger.NewTransaction("acc-1", ledger.TxWithdrawal,
		ledger.NewMoney(100), ledger.NewMoney(250), ledger.NewMoney(150),
		"WD-20260829-123456", "test withdrawal")
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestTransaction_New_StartsPending(t *testing.T) {
	tx := newTestTransaction()

	assert.Equal(t, ledger.StatusPending, tx.Status)
	assert.Nil(t, tx.CompletedAt)
	assert.True(t, tx.Fee.IsZero())
	assert.NotEmpty(t, tx.ID)
}

func TestTransaction_Complete_FromPending(t *testing.T) {
	tx := newTestTransaction()

	require.NoError(t, tx.Complete())

	assert.Equal(t, ledger.StatusCompleted, tx.Status)
	require.NotNil(t, tx.CompletedAt)
}

func TestTransaction_Complete_Idempotent(t *testing.T) {
	// GIVEN: A completed transaction
	// WHEN: Complete is called again
	// THEN: No error, and the original completion time is preserved

	tx := newTestTransaction()
	require.NoError(t, tx.Complete())
	firstCompleted := *tx.CompletedAt

	err := tx.Complete()

	assert.NoError(t, err, "repeated Complete must be a no-op")
	assert.Equal(t, firstCompleted, *tx.CompletedAt)
}

func TestTransaction_Complete_FromFailed_Rejected(t *testing.T) {
	tx := newTestTransaction()
	require.NoError(t, tx.Fail("provider timeout"))

	err := tx.Complete()

	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)
	var transErr *ledger.InvalidTransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, ledger.StatusFailed, transErr.From)
	assert.Equal(t, ledger.StatusCompleted, transErr.To)
}

func TestTransaction_Complete_FromCancelled_Rejected(t *testing.T) {
	tx := newTestTransaction()
	require.NoError(t, tx.Cancel())

	assert.ErrorIs(t, tx.Complete(), ledger.ErrInvalidTransition)
}

func TestTransaction_StartProcessing_OnlyFromPending(t *testing.T) {
	tx := newTestTransaction()
	require.NoError(t, tx.StartProcessing())
	assert.Equal(t, ledger.StatusProcessing, tx.Status)

	// A second attempt from PROCESSING is rejected
	assert.ErrorIs(t, tx.StartProcessing(), ledger.ErrInvalidTransition)
}

func TestTransaction_Fail_RecordsReasonAndBumpsRetryCount(t *testing.T) {
	tx := newTestTransaction()

	require.NoError(t, tx.Fail("insufficient provider float"))

	assert.Equal(t, ledger.StatusFailed, tx.Status)
	assert.Equal(t, "insufficient provider float", tx.FailureReason)
	assert.Equal(t, 1, tx.RetryCount)
}

func TestTransaction_Cancel_FromTerminal_Rejected(t *testing.T) {
	tx := newTestTransaction()
	require.NoError(t, tx.Complete())

	assert.ErrorIs(t, tx.Cancel(), ledger.ErrInvalidTransition)
}

// =============================================================================
// RETRY TESTS
// =============================================================================

func TestTransaction_Retry_WithinLimit(t *testing.T) {
	// GIVEN: A failed transaction with one failure recorded
	// WHEN: Retrying with a limit of 3
	// THEN: The transaction moves back to PROCESSING with the reason cleared

	tx := newTestTransaction()
	require.NoError(t, tx.Fail("provider timeout"))
	require.True(t, tx.CanRetry(3))

	require.NoError(t, tx.Retry(3))

	assert.Equal(t, ledger.StatusProcessing, tx.Status)
	assert.Empty(t, tx.FailureReason)
}

func TestTransaction_Retry_ExhaustedLimit_Rejected(t *testing.T) {
	tx := newTestTransaction()
	for i := 0; i < 3; i++ {
		require.NoError(t, tx.Fail("provider timeout"))
		if i < 2 {
			require.NoError(t, tx.Retry(3))
		}
	}

	assert.False(t, tx.CanRetry(3))
	assert.ErrorIs(t, tx.Retry(3), ledger.ErrInvalidTransition)
}

// =============================================================================
// TYPE CLASSIFICATION
// =============================================================================

func TestTransactionType_IsCredit(t *testing.T) {
	assert.True(t, ledger.TxDeposit.IsCredit())
	assert.True(t, ledger.TxRefund.IsCredit())
	assert.False(t, ledger.TxWithdrawal.IsCredit())
	assert.False(t, ledger.TxPayment.IsCredit())
}

func TestTransactionStatus_IsTerminal(t *testing.T) {
	assert.True(t, ledger.StatusCompleted.IsTerminal())
	assert.True(t, ledger.StatusFailed.IsTerminal())
	assert.True(t, ledger.StatusCancelled.IsTerminal())
	assert.False(t, ledger.StatusPending.IsTerminal())
	assert.False(t, ledger.StatusProcessing.IsTerminal())
}
