/*
handlers.go - HTTP API handlers for the grant balance engine

PURPOSE:
  Exposes the balance engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Accounts:
    GET    /api/accounts                     List all accounts
    POST   /api/accounts                     Register account
    GET    /api/accounts/{id}                Get account details
    GET    /api/accounts/{id}/balance        Get balance
    GET    /api/accounts/{id}/transactions   Transaction history
    GET    /api/accounts/{id}/withdrawals    Withdrawal history
    GET    /api/accounts/{id}/vouchers       Issued vouchers
    GET    /api/accounts/{id}/tokens         Electricity purchases
    GET    /api/accounts/{id}/grants         Grant enrollments

  Withdrawals:
    POST   /api/withdrawals                  Request a withdrawal
    GET    /api/withdrawals/quote            Fee preview
    GET    /api/withdrawals/{id}             Get request
    POST   /api/withdrawals/{id}/approve     Approve (back office)
    POST   /api/withdrawals/{id}/process     Mark paid out
    POST   /api/withdrawals/{id}/reject      Reject with refund
    POST   /api/withdrawals/{id}/cancel      Beneficiary cancel with refund

  Cash send:
    POST   /api/cash-send                    Issue voucher
    GET    /api/cash-send/quote              Fee preview
    POST   /api/cash-send/redeem             Redeem code + PIN
    GET    /api/cash-send/{code}             Voucher status (no PIN)
    POST   /api/cash-send/{id}/cancel        Cancel unredeemed voucher

  Electricity:
    POST   /api/electricity                  Buy token
    GET    /api/electricity/quote            Units preview
    POST   /api/electricity/{id}/fail        Record delivery failure
    POST   /api/electricity/{id}/refund      Refund a failed token

  Grants:
    POST   /api/grants                       Enroll in a grant program
    POST   /api/grants/{id}/activate         Verification passed
    POST   /api/grants/{id}/suspend          Suspend payments
    POST   /api/grants/{id}/close            Close enrollment

  Admin:
    POST   /api/admin/deposit                Direct credit
    POST   /api/admin/sweep                  Run maintenance sweep now

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (state transitions, duplicates, bad PIN)
  - 422: Business-rule rejections (bounds, insufficient balance)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.
  Front it with an authenticating gateway before any real deployment.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - sweeper.go: Background maintenance
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reliefhub/grant-engine/grants"
	"github.com/reliefhub/grant-engine/ledger"
	"github.com/reliefhub/grant-engine/payments"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger      *ledger.Ledger
	Withdrawals *payments.WithdrawalService
	CashSend    *payments.CashSendService
	Electricity *payments.ElectricityService
	Disburser   *grants.Disburser
	Fees        ledger.FeeSchedule
}

// NewHandler creates a handler with services built on the given ledger.
func NewHandler(l *ledger.Ledger, grantStore grants.GrantStore) *Handler {
	return &Handler{
		Ledger:      l,
		Withdrawals: payments.NewWithdrawalService(l),
		CashSend:    payments.NewCashSendService(l),
		Electricity: payments.NewElectricityService(l),
		Disburser:   grants.NewDisburser(l, grantStore),
		Fees:        ledger.DefaultFeeSchedule(),
	}
}

func (h *Handler) grantStore() (grants.GrantStore, bool) {
	gs, ok := h.Ledger.Store().(grants.GrantStore)
	return gs, ok
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns all accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Ledger.Store().ListAccounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAccount returns a single account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	account, err := h.Ledger.Store().GetAccount(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(*account))
}

// CreateAccount registers a new beneficiary account.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	account := ledger.Account{
		ID:            req.ID,
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		EmailVerified: req.EmailVerified,
		PhoneVerified: req.PhoneVerified,
		Active:        true,
	}
	if account.ID == "" {
		account.ID = ledger.NewID("acc")
	}

	if err := h.Ledger.Store().SaveAccount(r.Context(), account); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create account", err)
		return
	}

	saved, err := h.Ledger.Store().GetAccount(r.Context(), account.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load account", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(*saved))
}

// GetBalance returns the balance for an account, creating an empty one
// if the account has never transacted.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	balance, err := h.Ledger.Balance(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(balance, h.Fees))
}

// GetTransactions returns transaction history, newest first.
// Supports ?limit=N.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	txs, err := h.Ledger.Store().ListTransactions(r.Context(), id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// =============================================================================
// WITHDRAWAL HANDLERS
// =============================================================================

// CreateWithdrawal starts the withdrawal workflow.
func (h *Handler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req CreateWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	request, err := h.Withdrawals.Request(r.Context(), req.AccountID, ledger.NewMoney(req.Amount), req.Destination)
	if err != nil {
		writeDomainError(w, "Withdrawal rejected", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWithdrawalDTO(*request))
}

// WithdrawalQuote previews the fee for an amount (?amount=).
func (h *Handler) WithdrawalQuote(w http.ResponseWriter, r *http.Request) {
	amount, ok := amountParam(w, r)
	if !ok {
		return
	}

	quote, err := h.Fees.WithdrawalQuote(amount)
	if err != nil {
		writeDomainError(w, "Quote rejected", err)
		return
	}
	writeJSON(w, http.StatusOK, QuoteDTO{
		Amount: fixed(quote.Amount),
		Fee:    fixed(quote.Fee),
		Total:  fixed(quote.Total),
		Net:    fixed(quote.Net),
	})
}

// GetWithdrawal returns a single withdrawal request.
func (h *Handler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	request, err := h.Withdrawals.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get withdrawal", err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalDTO(*request))
}

// ListAccountWithdrawals returns withdrawal history for an account.
func (h *Handler) ListAccountWithdrawals(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	requests, err := h.Withdrawals.ListByAccount(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list withdrawals", err)
		return
	}

	dtos := make([]WithdrawalRequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toWithdrawalDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ApproveWithdrawal moves a pending request to APPROVED.
func (h *Handler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.decideWithdrawal(w, r, h.Withdrawals.Approve)
}

// RejectWithdrawal rejects a request and refunds the debit.
func (h *Handler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.decideWithdrawal(w, r, h.Withdrawals.Reject)
}

func (h *Handler) decideWithdrawal(w http.ResponseWriter, r *http.Request, decide func(ctx context.Context, id, note string) error) {
	id := chi.URLParam(r, "id")

	var req DecisionRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // note is optional
	}

	if err := decide(r.Context(), id, req.Note); err != nil {
		writeDomainError(w, "Decision rejected", err)
		return
	}
	h.respondWithdrawal(w, r, id)
}

// ProcessWithdrawal marks an approved request as paid out.
func (h *Handler) ProcessWithdrawal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Withdrawals.Process(r.Context(), id); err != nil {
		writeDomainError(w, "Process rejected", err)
		return
	}
	h.respondWithdrawal(w, r, id)
}

// CancelWithdrawal cancels a request on the beneficiary's behalf and
// refunds the debit.
func (h *Handler) CancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Withdrawals.Cancel(r.Context(), id); err != nil {
		writeDomainError(w, "Cancel rejected", err)
		return
	}
	h.respondWithdrawal(w, r, id)
}

func (h *Handler) respondWithdrawal(w http.ResponseWriter, r *http.Request, id string) {
	request, err := h.Withdrawals.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load withdrawal", err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalDTO(*request))
}

// =============================================================================
// CASH SEND HANDLERS
// =============================================================================

// CreateCashSend issues a voucher. The PIN appears only in this response.
func (h *Handler) CreateCashSend(w http.ResponseWriter, r *http.Request) {
	var req CashSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	voucher, err := h.CashSend.Send(r.Context(), req.AccountID, ledger.NewMoney(req.Amount), req.RecipientPhone)
	if err != nil {
		writeDomainError(w, "Cash send rejected", err)
		return
	}
	writeJSON(w, http.StatusCreated, toVoucherDTO(*voucher, true))
}

// CashSendQuote previews the fee for an amount (?amount=).
func (h *Handler) CashSendQuote(w http.ResponseWriter, r *http.Request) {
	amount, ok := amountParam(w, r)
	if !ok {
		return
	}

	quote, err := h.Fees.CashSendQuote(amount)
	if err != nil {
		writeDomainError(w, "Quote rejected", err)
		return
	}
	writeJSON(w, http.StatusOK, QuoteDTO{
		Amount: fixed(quote.Amount),
		Fee:    fixed(quote.Fee),
		Total:  fixed(quote.Total),
		Net:    fixed(quote.Net),
	})
}

// RedeemVoucher cashes a voucher with its code and PIN.
func (h *Handler) RedeemVoucher(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	voucher, err := h.CashSend.Redeem(r.Context(), req.Code, req.PIN)
	if err != nil {
		writeDomainError(w, "Redemption rejected", err)
		return
	}
	writeJSON(w, http.StatusOK, toVoucherDTO(*voucher, false))
}

// VoucherStatus looks up a voucher by code. The PIN is never returned.
func (h *Handler) VoucherStatus(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	voucher, err := h.CashSend.Status(r.Context(), code)
	if err != nil {
		writeDomainError(w, "Failed to get voucher", err)
		return
	}
	writeJSON(w, http.StatusOK, toVoucherDTO(*voucher, false))
}

// CancelVoucher cancels an unredeemed voucher and refunds amount + fee.
func (h *Handler) CancelVoucher(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.CashSend.Cancel(r.Context(), id); err != nil {
		writeDomainError(w, "Cancel rejected", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAccountVouchers returns vouchers issued by an account.
func (h *Handler) ListAccountVouchers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	vouchers, err := h.CashSend.ListByAccount(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list vouchers", err)
		return
	}

	dtos := make([]VoucherDTO, len(vouchers))
	for i, v := range vouchers {
		dtos[i] = toVoucherDTO(v, false)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ELECTRICITY HANDLERS
// =============================================================================

// PurchaseElectricity buys a prepaid token.
func (h *Handler) PurchaseElectricity(w http.ResponseWriter, r *http.Request) {
	var req ElectricityPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.MeterNumber == "" {
		writeError(w, http.StatusBadRequest, "meter_number is required", nil)
		return
	}

	token, err := h.Electricity.Purchase(r.Context(), req.AccountID, ledger.NewMoney(req.Amount), req.MeterNumber)
	if err != nil {
		writeDomainError(w, "Purchase rejected", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTokenDTO(*token))
}

// ElectricityQuote previews the kWh for an amount (?amount=).
func (h *Handler) ElectricityQuote(w http.ResponseWriter, r *http.Request) {
	amount, ok := amountParam(w, r)
	if !ok {
		return
	}

	quote, err := h.Fees.ElectricityQuote(amount)
	if err != nil {
		writeDomainError(w, "Quote rejected", err)
		return
	}
	units, err := h.Fees.ElectricityUnits(amount)
	if err != nil {
		writeDomainError(w, "Quote rejected", err)
		return
	}
	writeJSON(w, http.StatusOK, QuoteDTO{
		Amount: fixed(quote.Amount),
		Fee:    fixed(quote.Fee),
		Total:  fixed(quote.Total),
		Net:    fixed(quote.Net),
		Units:  units.StringFixed(2),
	})
}

// FailToken records a delivery failure for a token.
func (h *Handler) FailToken(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req FailTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Electricity.Fail(r.Context(), id, req.Reason); err != nil {
		writeDomainError(w, "Fail rejected", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefundToken refunds a failed token purchase.
func (h *Handler) RefundToken(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Electricity.Refund(r.Context(), id); err != nil {
		writeDomainError(w, "Refund rejected", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAccountTokens returns electricity purchases for an account.
func (h *Handler) ListAccountTokens(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tokens, err := h.Electricity.ListByAccount(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list tokens", err)
		return
	}

	dtos := make([]TokenDTO, len(tokens))
	for i, t := range tokens {
		dtos[i] = toTokenDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// GRANT HANDLERS
// =============================================================================

// EnrollGrant enrolls an account in a grant program. The enrollment
// starts in PENDING_VERIFICATION and pays nothing until activated.
func (h *Handler) EnrollGrant(w http.ResponseWriter, r *http.Request) {
	var req EnrollGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	grantType, err := grants.ParseGrantType(req.GrantType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown grant type", err)
		return
	}

	gs, ok := h.grantStore()
	if !ok {
		writeError(w, http.StatusInternalServerError, "Grant storage unavailable", ledger.ErrStoreRequired)
		return
	}

	// Account must exist before enrollment.
	if _, err := h.Ledger.Store().GetAccount(r.Context(), req.AccountID); err != nil {
		writeDomainError(w, "Failed to get account", err)
		return
	}

	ga, err := grants.NewGrantAccount(req.AccountID, grantType, time.Now().UTC())
	if err != nil {
		writeDomainError(w, "Enrollment rejected", err)
		return
	}
	if err := gs.SaveGrantAccount(r.Context(), *ga); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save enrollment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toGrantAccountDTO(*ga))
}

// ListAccountGrants returns grant enrollments for an account.
func (h *Handler) ListAccountGrants(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	gs, ok := h.grantStore()
	if !ok {
		writeError(w, http.StatusInternalServerError, "Grant storage unavailable", ledger.ErrStoreRequired)
		return
	}

	gas, err := gs.GetGrantAccountsByAccount(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list enrollments", err)
		return
	}

	dtos := make([]GrantAccountDTO, len(gas))
	for i, ga := range gas {
		dtos[i] = toGrantAccountDTO(ga)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ActivateGrant marks an enrollment verified and eligible for payment.
func (h *Handler) ActivateGrant(w http.ResponseWriter, r *http.Request) {
	h.updateGrant(w, r, func(ga *grants.GrantAccount) error { return ga.Activate() })
}

// SuspendGrant pauses payments for an enrollment.
func (h *Handler) SuspendGrant(w http.ResponseWriter, r *http.Request) {
	h.updateGrant(w, r, func(ga *grants.GrantAccount) error { return ga.Suspend() })
}

// CloseGrant permanently closes an enrollment.
func (h *Handler) CloseGrant(w http.ResponseWriter, r *http.Request) {
	h.updateGrant(w, r, func(ga *grants.GrantAccount) error {
		ga.Close()
		return nil
	})
}

func (h *Handler) updateGrant(w http.ResponseWriter, r *http.Request, fn func(*grants.GrantAccount) error) {
	id := chi.URLParam(r, "id")

	gs, ok := h.grantStore()
	if !ok {
		writeError(w, http.StatusInternalServerError, "Grant storage unavailable", ledger.ErrStoreRequired)
		return
	}

	ga, err := gs.GetGrantAccount(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get enrollment", err)
		return
	}
	if ga == nil {
		writeError(w, http.StatusNotFound, "Enrollment not found", nil)
		return
	}

	if err := fn(ga); err != nil {
		writeDomainError(w, "Transition rejected", err)
		return
	}
	if err := gs.SaveGrantAccount(r.Context(), *ga); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save enrollment", err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantAccountDTO(*ga))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// Deposit credits an account directly. Used for top-ups and manual
// corrections outside the grant schedule.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tx, err := h.Ledger.Credit(r.Context(), req.AccountID, ledger.NewMoney(req.Amount),
		ledger.TxDeposit, "", req.Description)
	if err != nil {
		writeDomainError(w, "Deposit rejected", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(*tx))
}

// RunSweep runs the maintenance sweep immediately and reports what it did.
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var result SweepResultDTO
	var err error

	if result.ExpiredWithdrawals, err = h.Withdrawals.ExpireStale(ctx); err != nil {
		log.Printf("[API] Withdrawal sweep error: %v", err)
	}
	if result.ExpiredVouchers, err = h.CashSend.ExpireStale(ctx); err != nil {
		log.Printf("[API] Voucher sweep error: %v", err)
	}
	if result.SchedulesUpdated, err = h.Disburser.UpdateSchedules(ctx); err != nil {
		log.Printf("[API] Schedule sweep error: %v", err)
	}
	if result.GrantsPaid, err = h.Disburser.PayDue(ctx); err != nil {
		log.Printf("[API] Disbursement sweep error: %v", err)
	}

	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, payments.ErrInvalidPIN),
		errors.Is(err, payments.ErrVoucherNotActive),
		errors.Is(err, payments.ErrVoucherExpired),
		errors.Is(err, ledger.ErrInvalidTransition),
		errors.Is(err, ledger.ErrDuplicateReference):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrAmountOutOfRange),
		errors.Is(err, ledger.ErrIneligibleAccount):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// amountParam parses the ?amount= query parameter for quote endpoints.
func amountParam(w http.ResponseWriter, r *http.Request) (ledger.Money, bool) {
	raw := r.URL.Query().Get("amount")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "amount query parameter is required", nil)
		return ledger.Zero, false
	}
	amount, err := ledger.ParseMoney(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return ledger.Zero, false
	}
	return amount, true
}
