package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefhub/grant-engine/api"
	"github.com/reliefhub/grant-engine/ledger"
	"github.com/reliefhub/grant-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	mem := store.NewTxMemory()
	l := ledger.NewLedger(mem)
	return api.NewRouter(api.NewHandler(l, mem))
}

func doJSON(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

// registerAccount creates a verified, funded beneficiary through the API
// and returns its ID.
func registerAccount(t *testing.T, srv http.Handler, funds float64) string {
	t.Helper()

	rec := doJSON(t, srv, http.MethodPost, "/api/accounts", api.CreateAccountRequest{
		Name:          "Thandi Mokoena",
		Email:         "thandi@example.com",
		Phone:         "+27821234567",
		EmailVerified: true,
		PhoneVerified: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	account := decode[api.AccountDTO](t, rec)

	if funds > 0 {
		rec = doJSON(t, srv, http.MethodPost, "/api/admin/deposit", api.DepositRequest{
			AccountID:   account.ID,
			Amount:      funds,
			Description: "test funding",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	return account.ID
}

// enrollActiveGrant enrolls the account in SRD and activates it, the
// state withdrawals require.
func enrollActiveGrant(t *testing.T, srv http.Handler, accountID string) {
	t.Helper()

	rec := doJSON(t, srv, http.MethodPost, "/api/grants", api.EnrollGrantRequest{
		AccountID: accountID,
		GrantType: "SRD",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	ga := decode[api.GrantAccountDTO](t, rec)

	rec = doJSON(t, srv, http.MethodPost, "/api/grants/"+ga.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// ACCOUNT ENDPOINT TESTS
// =============================================================================

func TestAPI_CreateAccount_ReturnsCreatedAccount(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/accounts", api.CreateAccountRequest{
		Name:  "Sipho Dlamini",
		Email: "sipho@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	account := decode[api.AccountDTO](t, rec)
	assert.NotEmpty(t, account.ID)
	assert.Equal(t, "Sipho Dlamini", account.Name)
	assert.True(t, account.Active)
}

func TestAPI_CreateAccount_MissingName_Rejected(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/accounts", api.CreateAccountRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_GetAccount_Unknown_Returns404(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/accounts/acc-missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_DepositThenBalance_ReflectsCredit(t *testing.T) {
	srv := newTestServer(t)
	accountID := registerAccount(t, srv, 350)

	rec := doJSON(t, srv, http.MethodGet, "/api/accounts/"+accountID+"/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	balance := decode[api.BalanceDTO](t, rec)
	assert.Equal(t, "350.00", balance.Available)
	assert.Equal(t, "350.00", balance.TotalReceived)
	assert.True(t, balance.CanWithdraw)
	assert.Equal(t, "25.00", balance.WithdrawalMin)
}

func TestAPI_GetTransactions_ReturnsHistory(t *testing.T) {
	srv := newTestServer(t)
	accountID := registerAccount(t, srv, 350)

	rec := doJSON(t, srv, http.MethodGet, "/api/accounts/"+accountID+"/transactions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	txs := decode[[]api.TransactionDTO](t, rec)
	require.Len(t, txs, 1)
	assert.Equal(t, "DEPOSIT", txs[0].Type)
	assert.Equal(t, "COMPLETED", txs[0].Status)
	assert.Equal(t, "350.00", txs[0].Amount)
}

// =============================================================================
// WITHDRAWAL ENDPOINT TESTS
// =============================================================================

func TestAPI_WithdrawalLifecycle_RequestApproveProcess(t *testing.T) {
	srv := newTestServer(t)
	accountID := registerAccount(t, srv, 500)
	enrollActiveGrant(t, srv, accountID)

	rec := doJSON(t, srv, http.MethodPost, "/api/withdrawals", api.CreateWithdrawalRequest{
		AccountID:   accountID,
		Amount:      100,
		Destination: "FNB ****1234",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	wd := decode[api.WithdrawalRequestDTO](t, rec)
	assert.Equal(t, "PENDING", wd.Status)
	assert.Equal(t, "2.00", wd.Fee)
	assert.Equal(t, "98.00", wd.Net)
	assert.Regexp(t, `^WD-\d{8}-\d{6}$`, wd.Reference)

	rec = doJSON(t, srv, http.MethodPost, "/api/withdrawals/"+wd.ID+"/approve", api.DecisionRequest{Note: "ok"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/withdrawals/"+wd.ID+"/process", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PROCESSED", decode[api.WithdrawalRequestDTO](t, rec).Status)

	rec = doJSON(t, srv, http.MethodGet, "/api/accounts/"+accountID+"/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "400.00", decode[api.BalanceDTO](t, rec).Available)
}

func TestAPI_CreateWithdrawal_NoActiveGrant_Returns422(t *testing.T) {
	srv := newTestServer(t)
	accountID := registerAccount(t, srv, 500) // funded but not enrolled

	rec := doJSON(t, srv, http.MethodPost, "/api/withdrawals", api.CreateWithdrawalRequest{
		AccountID: accountID,
		Amount:    100,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAPI_CreateWithdrawal_InsufficientBalance_Returns422(t *testing.T) {
	srv := newTestServer(t)
	accountID := registerAccount(t, srv, 50)
	enrollActiveGrant(t, srv, accountID)

	rec := doJSON(t, srv, http.MethodPost, "/api/withdrawals", api.CreateWithdrawalRequest{
		AccountID: accountID,
		Amount:    100,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAPI_WithdrawalQuote_ReturnsFeeBreakdown(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/withdrawals/quote?amount=100", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	quote := decode[api.QuoteDTO](t, rec)
	assert.Equal(t, "100.00", quote.Amount)
	assert.Equal(t, "2.00", quote.Fee)
	assert.Equal(t, "98.00", quote.Net)
}

// =============================================================================
// CASH SEND ENDPOINT TESTS
// =============================================================================

func TestAPI_CashSendLifecycle_IssueAndRedeem(t *testing.T) {
	srv := newTestServer(t)
	accountID := registerAccount(t, srv, 200)

	rec := doJSON(t, srv, http.MethodPost, "/api/cash-send", api.CashSendRequest{
		AccountID:      accountID,
		Amount:         100,
		RecipientPhone: "+27829999999",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	issued := decode[api.VoucherDTO](t, rec)
	assert.Equal(t, "ACTIVE", issued.Status)
	assert.NotEmpty(t, issued.PIN, "the PIN is only revealed on issue")

	// Status lookups never expose the PIN
	rec = doJSON(t, srv, http.MethodGet, "/api/cash-send/"+issued.Code, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[api.VoucherDTO](t, rec).PIN)

	rec = doJSON(t, srv, http.MethodPost, "/api/cash-send/redeem", api.RedeemRequest{
		Code: issued.Code,
		PIN:  issued.PIN,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "REDEEMED", decode[api.VoucherDTO](t, rec).Status)
}

func TestAPI_RedeemVoucher_WrongPIN_Returns409(t *testing.T) {
	srv := newTestServer(t)
	accountID := registerAccount(t, srv, 200)

	rec := doJSON(t, srv, http.MethodPost, "/api/cash-send", api.CashSendRequest{
		AccountID:      accountID,
		Amount:         100,
		RecipientPhone: "+27829999999",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	issued := decode[api.VoucherDTO](t, rec)

	rec = doJSON(t, srv, http.MethodPost, "/api/cash-send/redeem", api.RedeemRequest{
		Code: issued.Code,
		PIN:  "000000",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// ELECTRICITY ENDPOINT TESTS
// =============================================================================

func TestAPI_PurchaseElectricity_ReturnsToken(t *testing.T) {
	srv := newTestServer(t)
	accountID := registerAccount(t, srv, 200)

	rec := doJSON(t, srv, http.MethodPost, "/api/electricity", api.ElectricityPurchaseRequest{
		AccountID:   accountID,
		Amount:      50,
		MeterNumber: "01234567890",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	tok := decode[api.TokenDTO](t, rec)
	assert.Equal(t, "COMPLETED", tok.Status)
	assert.Equal(t, "20.00", tok.Units)
	assert.Regexp(t, `^\d{4}-\d{4}-\d{4}-\d{4}-\d{4}$`, tok.Token)
}

func TestAPI_ElectricityQuote_IncludesUnits(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/electricity/quote?amount=50", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	quote := decode[api.QuoteDTO](t, rec)
	assert.Equal(t, "20.00", quote.Units)
}

// =============================================================================
// GRANT ENDPOINT TESTS
// =============================================================================

func TestAPI_EnrollGrant_UnknownType_Rejected(t *testing.T) {
	srv := newTestServer(t)
	accountID := registerAccount(t, srv, 0)

	rec := doJSON(t, srv, http.MethodPost, "/api/grants", api.EnrollGrantRequest{
		AccountID: accountID,
		GrantType: "LOTTERY",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_ListAccountGrants_ReturnsEnrollments(t *testing.T) {
	srv := newTestServer(t)
	accountID := registerAccount(t, srv, 0)
	enrollActiveGrant(t, srv, accountID)

	rec := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/accounts/%s/grants", accountID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	enrollments := decode[[]api.GrantAccountDTO](t, rec)
	require.Len(t, enrollments, 1)
	assert.Equal(t, "SRD", enrollments[0].GrantType)
	assert.Equal(t, "ACTIVE", enrollments[0].Status)
	assert.Equal(t, "350.00", enrollments[0].MonthlyAmount)
}

// =============================================================================
// ADMIN ENDPOINT TESTS
// =============================================================================

func TestAPI_RunSweep_ReturnsCounts(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/admin/sweep", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	result := decode[api.SweepResultDTO](t, rec)
	assert.Zero(t, result.ExpiredWithdrawals)
	assert.Zero(t, result.ExpiredVouchers)
	assert.Zero(t, result.GrantsPaid)
}
