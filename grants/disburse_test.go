package grants_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefhub/grant-engine/grants"
	"github.com/reliefhub/grant-engine/ledger"
	"github.com/reliefhub/grant-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestDisburser(t *testing.T, now time.Time) (*grants.Disburser, *ledger.Ledger, *store.TxMemory) {
	t.Helper()
	mem := store.NewTxMemory()
	l := ledger.NewLedger(mem)
	d := grants.NewDisburser(l, mem)
	d.Now = func() time.Time { return now }
	return d, l, mem
}

func enroll(t *testing.T, gs grants.GrantStore, accountID string, grantType grants.GrantType, enrolled time.Time, activate bool) *grants.GrantAccount {
	t.Helper()
	ga, err := grants.NewGrantAccount(accountID, grantType, enrolled)
	require.NoError(t, err)
	if activate {
		require.NoError(t, ga.Activate())
	}
	require.NoError(t, gs.SaveGrantAccount(context.Background(), *ga))
	return ga
}

// =============================================================================
// PAYMENT TESTS
// =============================================================================

func TestDisburser_PayDue_CreditsDueGrant(t *testing.T) {
	// GIVEN: An active SRD grant scheduled for August 5, and it's August 5
	// WHEN: Running the payment sweep
	// THEN: The beneficiary is credited 350.00 and the schedule advances
	//       to September 5

	now := date(2026, time.August, 5)
	d, l, mem := newTestDisburser(t, now)
	ctx := context.Background()

	ga := enroll(t, mem, "acc-1", grants.GrantSRD, date(2026, time.August, 2), true)

	paid, err := d.PayDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, paid)

	bal, err := l.Balance(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, bal.Available.Equal(ledger.MustMoney("350.00")))

	updated, err := mem.GetGrantAccount(ctx, ga.ID)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, date(2026, time.September, 5), updated.NextPaymentDate)

	txs, err := l.Store().ListTransactions(ctx, "acc-1", 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, ledger.TxDeposit, txs[0].Type)
	assert.Regexp(t, `^GP-\d{8}-\d{6}$`, txs[0].Reference)
}

func TestDisburser_PayDue_NotYetDue_PaysNothing(t *testing.T) {
	now := date(2026, time.August, 4)
	d, l, mem := newTestDisburser(t, now)
	ctx := context.Background()

	enroll(t, mem, "acc-1", grants.GrantSRD, date(2026, time.August, 2), true)

	paid, err := d.PayDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, paid)

	bal, err := l.Balance(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, bal.Available.IsZero())
}

func TestDisburser_PayDue_SkipsUnverifiedAndSuspended(t *testing.T) {
	// GIVEN: One pending-verification and one suspended enrollment, both due
	// WHEN: Running the payment sweep
	// THEN: Neither is paid

	now := date(2026, time.August, 5)
	d, l, mem := newTestDisburser(t, now)
	ctx := context.Background()

	enroll(t, mem, "acc-1", grants.GrantSRD, date(2026, time.August, 2), false)

	suspended := enroll(t, mem, "acc-2", grants.GrantSRD, date(2026, time.August, 2), true)
	require.NoError(t, suspended.Suspend())
	require.NoError(t, mem.SaveGrantAccount(ctx, *suspended))

	paid, err := d.PayDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, paid)

	for _, accountID := range []string{"acc-1", "acc-2"} {
		bal, err := l.Balance(ctx, accountID)
		require.NoError(t, err)
		assert.True(t, bal.Available.IsZero(), "account %s must not be paid", accountID)
	}
}

func TestDisburser_PayDue_SecondSweepSameDay_NoDoublePay(t *testing.T) {
	// GIVEN: A grant already paid this morning
	// WHEN: The sweep runs again the same day
	// THEN: The schedule has advanced, so nothing more is paid

	now := date(2026, time.August, 5)
	d, l, mem := newTestDisburser(t, now)
	ctx := context.Background()

	enroll(t, mem, "acc-1", grants.GrantSRD, date(2026, time.August, 2), true)

	paid, err := d.PayDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, paid)

	paid, err = d.PayDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, paid)

	bal, err := l.Balance(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, bal.Available.Equal(ledger.MustMoney("350.00")), "exactly one month's payment")
}

func TestDisburser_PayDue_MultipleGrantTypes(t *testing.T) {
	// Different grant types for different accounts, all due on the 10th
	// or earlier.
	now := date(2026, time.August, 10)
	d, l, mem := newTestDisburser(t, now)
	ctx := context.Background()

	enroll(t, mem, "acc-1", grants.GrantSRD, date(2026, time.August, 1), true)        // due the 5th
	enroll(t, mem, "acc-2", grants.GrantFosterCare, date(2026, time.August, 1), true) // due the 10th

	paid, err := d.PayDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, paid)

	bal1, err := l.Balance(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, bal1.Available.Equal(ledger.MustMoney("350.00")))

	bal2, err := l.Balance(ctx, "acc-2")
	require.NoError(t, err)
	assert.True(t, bal2.Available.Equal(ledger.MustMoney("1050.00")))
}

// =============================================================================
// SCHEDULE MAINTENANCE TESTS
// =============================================================================

func TestDisburser_UpdateSchedules_AdvancesStaleDates(t *testing.T) {
	// GIVEN: An active enrollment whose stored date is months behind
	// WHEN: Updating schedules as of August 20
	// THEN: The date moves to the next occurrence, September 5

	now := date(2026, time.August, 20)
	d, _, mem := newTestDisburser(t, now)
	ctx := context.Background()

	ga := enroll(t, mem, "acc-1", grants.GrantSRD, date(2026, time.March, 1), true)

	updated, err := d.UpdateSchedules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	current, err := mem.GetGrantAccount(ctx, ga.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, date(2026, time.September, 5), current.NextPaymentDate)
}

func TestDisburser_UpdateSchedules_CurrentDates_Untouched(t *testing.T) {
	now := date(2026, time.August, 2)
	d, _, mem := newTestDisburser(t, now)

	enroll(t, mem, "acc-1", grants.GrantSRD, date(2026, time.August, 1), true) // already August 5

	updated, err := d.UpdateSchedules(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
}
