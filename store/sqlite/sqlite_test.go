package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefhub/grant-engine/grants"
	"github.com/reliefhub/grant-engine/ledger"
	"github.com/reliefhub/grant-engine/payments"
	"github.com/reliefhub/grant-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Timestamps are stored as RFC3339, so fixtures use whole seconds.
func testTime() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func testAccount(id string) ledger.Account {
	return ledger.Account{
		ID:            id,
		Name:          "Thandi Mokoena",
		Email:         id + "@example.com",
		Phone:         "+27821234567",
		EmailVerified: true,
		PhoneVerified: true,
		Active:        true,
		CreatedAt:     testTime(),
	}
}

// =============================================================================
// ACCOUNT TESTS
// =============================================================================

func TestStore_Account_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := testAccount("acc-1")
	require.NoError(t, s.SaveAccount(ctx, want))

	got, err := s.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Email, got.Email)
	assert.True(t, got.Verified())
	assert.True(t, got.Active)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
}

func TestStore_GetAccount_Unknown_ReturnsNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetAccount(context.Background(), "acc-missing")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestStore_SaveAccount_Twice_Updates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testAccount("acc-1")
	require.NoError(t, s.SaveAccount(ctx, a))

	a.Active = false
	a.PhoneVerified = false
	require.NoError(t, s.SaveAccount(ctx, a))

	got, err := s.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.False(t, got.Verified())

	all, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "the second save must not create a duplicate row")
}

// =============================================================================
// BALANCE TESTS
// =============================================================================

func TestStore_GetBalance_Unknown_ReturnsNil(t *testing.T) {
	s := newTestStore(t)

	bal, err := s.GetBalance(context.Background(), "acc-missing")
	require.NoError(t, err)
	assert.Nil(t, bal, "a missing balance is nil, not an error")
}

func TestStore_Balance_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := ledger.Balance{
		AccountID:      "acc-1",
		Available:      ledger.MustMoney("123.45"),
		Pending:        ledger.MustMoney("10.00"),
		TotalReceived:  ledger.MustMoney("350.00"),
		TotalWithdrawn: ledger.MustMoney("216.55"),
		LastUpdated:    testTime(),
	}
	require.NoError(t, s.SaveBalance(ctx, b))

	got, err := s.GetBalance(ctx, "acc-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Available.Equal(ledger.MustMoney("123.45")))
	assert.True(t, got.Pending.Equal(ledger.MustMoney("10.00")))
	assert.True(t, got.TotalReceived.Equal(ledger.MustMoney("350.00")))
	assert.True(t, got.TotalWithdrawn.Equal(ledger.MustMoney("216.55")))

	// Upsert keeps a single row per account
	b.Available = ledger.MustMoney("23.45")
	require.NoError(t, s.SaveBalance(ctx, b))

	got, err = s.GetBalance(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, got.Available.Equal(ledger.MustMoney("23.45")))
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestStore_Transaction_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx := ledger.NewTransaction("acc-1", ledger.TxWithdrawal,
		ledger.NewMoney(100), ledger.NewMoney(500), ledger.NewMoney(400),
		"WD-20260829-000001", "Withdrawal to FNB ****1234")
	tx.Fee = ledger.MustMoney("2.00")
	require.NoError(t, s.AppendTransaction(ctx, *tx))

	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ledger.TxWithdrawal, got.Type)
	assert.Equal(t, ledger.StatusPending, got.Status)
	assert.True(t, got.Amount.Equal(ledger.NewMoney(100)))
	assert.True(t, got.Fee.Equal(ledger.MustMoney("2.00")))
	assert.True(t, got.BalanceBefore.Equal(ledger.NewMoney(500)))
	assert.True(t, got.BalanceAfter.Equal(ledger.NewMoney(400)))
	assert.Equal(t, "WD-20260829-000001", got.Reference)
	assert.Nil(t, got.CompletedAt)
}

func TestStore_AppendTransaction_DuplicateReference_Rejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := ledger.NewTransaction("acc-1", ledger.TxDeposit,
		ledger.NewMoney(350), ledger.Zero, ledger.NewMoney(350), "GP-20260829-000001", "August payment")
	require.NoError(t, s.AppendTransaction(ctx, *first))

	dup := ledger.NewTransaction("acc-2", ledger.TxDeposit,
		ledger.NewMoney(350), ledger.Zero, ledger.NewMoney(350), "GP-20260829-000001", "August payment")
	err := s.AppendTransaction(ctx, *dup)
	assert.ErrorIs(t, err, ledger.ErrDuplicateReference)

	exists, err := s.ReferenceExists(ctx, "GP-20260829-000001")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_AppendTransaction_EmptyReferences_Allowed(t *testing.T) {
	// Only non-empty references are unique; ad-hoc credits carry none
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		tx := ledger.NewTransaction("acc-1", ledger.TxAdjustment,
			ledger.NewMoney(5), ledger.Zero, ledger.NewMoney(5), "", "manual correction")
		require.NoError(t, s.AppendTransaction(ctx, *tx))
	}

	txs, err := s.ListTransactions(ctx, "acc-1", 0)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestStore_UpdateTransaction_PersistsLifecycleFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx := ledger.NewTransaction("acc-1", ledger.TxWithdrawal,
		ledger.NewMoney(100), ledger.NewMoney(500), ledger.NewMoney(400), "WD-20260829-000002", "")
	require.NoError(t, s.AppendTransaction(ctx, *tx))

	require.NoError(t, tx.Complete())
	require.NoError(t, s.UpdateTransaction(ctx, *tx))

	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.WithinDuration(t, *tx.CompletedAt, *got.CompletedAt, time.Second)
}

func TestStore_UpdateTransaction_Unknown_ReturnsNotFound(t *testing.T) {
	s := newTestStore(t)

	tx := ledger.NewTransaction("acc-1", ledger.TxDeposit,
		ledger.NewMoney(10), ledger.Zero, ledger.NewMoney(10), "", "")
	err := s.UpdateTransaction(context.Background(), *tx)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestStore_ListTransactions_NewestFirstWithLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, desc := range []string{"first", "second", "third"} {
		tx := ledger.NewTransaction("acc-1", ledger.TxDeposit,
			ledger.NewMoney(10), ledger.Zero, ledger.NewMoney(10), "", desc)
		tx.CreatedAt = testTime().Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.AppendTransaction(ctx, *tx))
	}

	txs, err := s.ListTransactions(ctx, "acc-1", 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "third", txs[0].Description)
	assert.Equal(t, "second", txs[1].Description)
}

// =============================================================================
// WITHDRAWAL REQUEST TESTS
// =============================================================================

func TestStore_WithdrawalRequest_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := testTime()
	req := payments.WithdrawalRequest{
		ID:            "wdr-1",
		AccountID:     "acc-1",
		Amount:        ledger.NewMoney(100),
		Fee:           ledger.MustMoney("2.00"),
		Net:           ledger.MustMoney("98.00"),
		Destination:   "FNB ****1234",
		Status:        payments.WithdrawalPending,
		Reference:     "WD-20260829-000003",
		TransactionID: "txn-abc123",
		RequestedAt:   now,
		ExpiresAt:     now.Add(24 * time.Hour),
	}
	require.NoError(t, s.SaveWithdrawalRequest(ctx, req))

	got, err := s.GetWithdrawalRequest(ctx, "wdr-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, payments.WithdrawalPending, got.Status)
	assert.True(t, got.Net.Equal(ledger.MustMoney("98.00")))
	assert.True(t, req.ExpiresAt.Equal(got.ExpiresAt))

	// Status moves persist through the same upsert
	got.Status = payments.WithdrawalApproved
	got.DecisionNote = "identity confirmed"
	require.NoError(t, s.SaveWithdrawalRequest(ctx, *got))

	byStatus, err := s.ListWithdrawalRequestsByStatus(ctx, payments.WithdrawalApproved)
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "identity confirmed", byStatus[0].DecisionNote)

	byAccount, err := s.ListWithdrawalRequestsByAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, byAccount, 1)
}

func TestStore_GetWithdrawalRequest_Unknown_ReturnsNil(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetWithdrawalRequest(context.Background(), "wdr-missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// =============================================================================
// VOUCHER TESTS
// =============================================================================

func TestStore_Voucher_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := testTime()
	v := payments.Voucher{
		ID:             "vch-1",
		AccountID:      "acc-1",
		Amount:         ledger.NewMoney(100),
		Fee:            ledger.MustMoney("3.50"),
		Code:           "1111-2222-3333-4444",
		PIN:            "123456",
		RecipientPhone: "+27829999999",
		Status:         payments.VoucherActive,
		Reference:      "CS-20260829-000001",
		TransactionID:  "txn-def456",
		IssuedAt:       now,
		ExpiresAt:      now.Add(30 * 24 * time.Hour),
	}
	require.NoError(t, s.SaveVoucher(ctx, v))

	got, err := s.GetVoucherByCode(ctx, "1111-2222-3333-4444")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "vch-1", got.ID)
	assert.Equal(t, "123456", got.PIN)
	assert.Nil(t, got.RedeemedAt)

	exists, err := s.VoucherCodeExists(ctx, "1111-2222-3333-4444")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.VoucherCodeExists(ctx, "9999-9999-9999-9999")
	require.NoError(t, err)
	assert.False(t, exists)

	redeemed := now.Add(time.Hour)
	got.Status = payments.VoucherRedeemed
	got.RedeemedAt = &redeemed
	require.NoError(t, s.SaveVoucher(ctx, *got))

	again, err := s.GetVoucher(ctx, "vch-1")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, payments.VoucherRedeemed, again.Status)
	require.NotNil(t, again.RedeemedAt)
	assert.True(t, redeemed.Equal(*again.RedeemedAt))

	active, err := s.ListVouchersByStatus(ctx, payments.VoucherActive)
	require.NoError(t, err)
	assert.Empty(t, active)
}

// =============================================================================
// ELECTRICITY TOKEN TESTS
// =============================================================================

func TestStore_Token_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := testTime()
	tok := payments.ElectricityToken{
		ID:            "elt-1",
		AccountID:     "acc-1",
		Amount:        ledger.NewMoney(50),
		Units:         ledger.MustMoney("20.00").Value,
		Token:         "1111-2222-3333-4444-5555",
		MeterNumber:   "01234567890",
		Status:        payments.TokenCompleted,
		Reference:     "EL-20260829-000001",
		TransactionID: "txn-ghi789",
		IssuedAt:      now,
		ExpiresAt:     now.Add(7 * 24 * time.Hour),
	}
	require.NoError(t, s.SaveToken(ctx, tok))

	list, err := s.ListTokensByAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "01234567890", list[0].MeterNumber)
	assert.Equal(t, "20.00", list[0].Units.StringFixed(2))

	exists, err := s.TokenExists(ctx, "1111-2222-3333-4444-5555")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := s.GetToken(ctx, "elt-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	got.Status = payments.TokenFailed
	got.FailureReason = "vendor timeout"
	require.NoError(t, s.SaveToken(ctx, *got))

	got, err = s.GetToken(ctx, "elt-1")
	require.NoError(t, err)
	assert.Equal(t, payments.TokenFailed, got.Status)
	assert.Equal(t, "vendor timeout", got.FailureReason)
}

// =============================================================================
// GRANT ACCOUNT TESTS
// =============================================================================

func TestStore_GrantAccount_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ga, err := grants.NewGrantAccount("acc-1", grants.GrantSRD, testTime())
	require.NoError(t, err)
	require.NoError(t, s.SaveGrantAccount(ctx, *ga))

	got, err := s.GetGrantAccount(ctx, ga.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, grants.GrantSRD, got.GrantType)
	assert.Equal(t, ga.Status, got.Status)
	assert.True(t, ga.NextPaymentDate.Equal(got.NextPaymentDate))

	require.NoError(t, got.Activate())
	require.NoError(t, s.SaveGrantAccount(ctx, *got))

	active, err := s.ListGrantAccountsByStatus(ctx, grants.GrantActive)
	require.NoError(t, err)
	require.Len(t, active, 1)

	byAccount, err := s.GetGrantAccountsByAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, byAccount, 1)
}

// =============================================================================
// TRANSACTION SCOPE TESTS
// =============================================================================

func TestStore_WithTx_CommitsOnSuccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(st ledger.Store) error {
		if err := st.SaveAccount(ctx, testAccount("acc-1")); err != nil {
			return err
		}
		return st.SaveBalance(ctx, *ledger.NewBalance("acc-1"))
	})
	require.NoError(t, err)

	got, err := s.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", got.ID)

	bal, err := s.GetBalance(ctx, "acc-1")
	require.NoError(t, err)
	assert.NotNil(t, bal)
}

func TestStore_WithTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(st ledger.Store) error {
		if err := st.SaveAccount(ctx, testAccount("acc-1")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetAccount(ctx, "acc-1")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound,
		"nothing written inside a failed transaction may remain")
}

func TestStore_WithTx_WritesVisibleInsideBeforeCommit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(st ledger.Store) error {
		if err := st.SaveAccount(ctx, testAccount("acc-1")); err != nil {
			return err
		}
		got, err := st.GetAccount(ctx, "acc-1")
		if err != nil {
			return err
		}
		if got.ID != "acc-1" {
			return errors.New("saved account not readable in the same transaction")
		}
		return nil
	})
	require.NoError(t, err)
}
