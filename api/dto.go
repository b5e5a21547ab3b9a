/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Account:
    AccountDTO, CreateAccountRequest

  Balance:
    BalanceDTO

  Transactions:
    TransactionDTO

  Withdrawals:
    WithdrawalRequestDTO, CreateWithdrawalRequest, DecisionRequest

  Cash send:
    VoucherDTO, CashSendRequest, RedeemRequest

  Electricity:
    TokenDTO, ElectricityPurchaseRequest

  Grants:
    GrantAccountDTO, EnrollGrantRequest

MONEY FORMAT:
  Monetary values are serialized as fixed two-decimal strings ("350.00")
  so clients never see binary-float artifacts.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/reliefhub/grant-engine/grants"
	"github.com/reliefhub/grant-engine/ledger"
	"github.com/reliefhub/grant-engine/payments"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// AccountDTO represents a beneficiary account in API responses.
type AccountDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	PhoneVerified bool   `json:"phone_verified"`
	Active        bool   `json:"active"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// CreateAccountRequest is the request to register a beneficiary.
type CreateAccountRequest struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	EmailVerified bool   `json:"email_verified"`
	PhoneVerified bool   `json:"phone_verified"`
}

// DepositRequest is the request to credit an account directly
// (admin top-ups and corrections).
type DepositRequest struct {
	AccountID   string  `json:"account_id"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// BalanceDTO represents an account balance. CanWithdraw and the bounds
// let clients enable or disable the withdraw action without a quote call.
type BalanceDTO struct {
	AccountID      string `json:"account_id"`
	Available      string `json:"available"`
	Pending        string `json:"pending"`
	Net            string `json:"net"`
	TotalReceived  string `json:"total_received"`
	TotalWithdrawn string `json:"total_withdrawn"`
	CanWithdraw    bool   `json:"can_withdraw"`
	WithdrawalMin  string `json:"withdrawal_min"`
	WithdrawalMax  string `json:"withdrawal_max"`
	LastUpdated    string `json:"last_updated"`
}

// TransactionDTO represents a ledger transaction.
type TransactionDTO struct {
	ID            string `json:"id"`
	AccountID     string `json:"account_id"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	Fee           string `json:"fee"`
	BalanceBefore string `json:"balance_before"`
	BalanceAfter  string `json:"balance_after"`
	Reference     string `json:"reference,omitempty"`
	Description   string `json:"description,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
	CreatedAt     string `json:"created_at"`
	CompletedAt   string `json:"completed_at,omitempty"`
}

// QuoteDTO is a fee preview for an operation.
type QuoteDTO struct {
	Amount string `json:"amount"`
	Fee    string `json:"fee"`
	Total  string `json:"total"`
	Net    string `json:"net"`
	Units  string `json:"units,omitempty"` // electricity only, kWh
}

// WithdrawalRequestDTO represents a withdrawal request.
type WithdrawalRequestDTO struct {
	ID            string `json:"id"`
	AccountID     string `json:"account_id"`
	Amount        string `json:"amount"`
	Fee           string `json:"fee"`
	Net           string `json:"net"`
	Destination   string `json:"destination,omitempty"`
	Status        string `json:"status"`
	Reference     string `json:"reference"`
	TransactionID string `json:"transaction_id"`
	RequestedAt   string `json:"requested_at"`
	ExpiresAt     string `json:"expires_at"`
	DecidedAt     string `json:"decided_at,omitempty"`
	DecisionNote  string `json:"decision_note,omitempty"`
}

// CreateWithdrawalRequest is the request to start a withdrawal.
type CreateWithdrawalRequest struct {
	AccountID   string  `json:"account_id"`
	Amount      float64 `json:"amount"`
	Destination string  `json:"destination"`
}

// DecisionRequest carries an optional note for approve/reject/cancel.
type DecisionRequest struct {
	Note string `json:"note"`
}

// VoucherDTO represents a cash-send voucher. The PIN is only included
// on issue; status lookups omit it.
type VoucherDTO struct {
	ID             string `json:"id"`
	AccountID      string `json:"account_id"`
	Amount         string `json:"amount"`
	Fee            string `json:"fee"`
	Code           string `json:"code"`
	PIN            string `json:"pin,omitempty"`
	RecipientPhone string `json:"recipient_phone,omitempty"`
	Status         string `json:"status"`
	Reference      string `json:"reference"`
	IssuedAt       string `json:"issued_at"`
	ExpiresAt      string `json:"expires_at"`
	RedeemedAt     string `json:"redeemed_at,omitempty"`
}

// CashSendRequest is the request to issue a voucher.
type CashSendRequest struct {
	AccountID      string  `json:"account_id"`
	Amount         float64 `json:"amount"`
	RecipientPhone string  `json:"recipient_phone"`
}

// RedeemRequest is the request to cash a voucher.
type RedeemRequest struct {
	Code string `json:"code"`
	PIN  string `json:"pin"`
}

// TokenDTO represents a prepaid electricity token.
type TokenDTO struct {
	ID            string `json:"id"`
	AccountID     string `json:"account_id"`
	Amount        string `json:"amount"`
	Units         string `json:"units"`
	Token         string `json:"token"`
	MeterNumber   string `json:"meter_number,omitempty"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	Reference     string `json:"reference"`
	IssuedAt      string `json:"issued_at"`
	ExpiresAt     string `json:"expires_at"`
}

// ElectricityPurchaseRequest is the request to buy electricity.
type ElectricityPurchaseRequest struct {
	AccountID   string  `json:"account_id"`
	Amount      float64 `json:"amount"`
	MeterNumber string  `json:"meter_number"`
}

// FailTokenRequest records why a token delivery failed.
type FailTokenRequest struct {
	Reason string `json:"reason"`
}

// GrantAccountDTO represents a grant program enrollment.
type GrantAccountDTO struct {
	ID              string `json:"id"`
	AccountID       string `json:"account_id"`
	GrantType       string `json:"grant_type"`
	MonthlyAmount   string `json:"monthly_amount"`
	Status          string `json:"status"`
	NextPaymentDate string `json:"next_payment_date"`
	CreatedAt       string `json:"created_at,omitempty"`
}

// EnrollGrantRequest is the request to enroll an account in a grant.
type EnrollGrantRequest struct {
	AccountID string `json:"account_id"`
	GrantType string `json:"grant_type"`
}

// SweepResultDTO reports what a maintenance sweep did.
type SweepResultDTO struct {
	ExpiredWithdrawals int `json:"expired_withdrawals"`
	ExpiredVouchers    int `json:"expired_vouchers"`
	SchedulesUpdated   int `json:"schedules_updated"`
	GrantsPaid         int `json:"grants_paid"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func fixed(m ledger.Money) string {
	return m.Value.StringFixed(2)
}

func toAccountDTO(a ledger.Account) AccountDTO {
	return AccountDTO{
		ID:            a.ID,
		Name:          a.Name,
		Email:         a.Email,
		Phone:         a.Phone,
		EmailVerified: a.EmailVerified,
		PhoneVerified: a.PhoneVerified,
		Active:        a.Active,
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
}

func toBalanceDTO(b *ledger.Balance, fees ledger.FeeSchedule) BalanceDTO {
	return BalanceDTO{
		AccountID:      b.AccountID,
		Available:      fixed(b.Available),
		Pending:        fixed(b.Pending),
		Net:            fixed(b.Net()),
		TotalReceived:  fixed(b.TotalReceived),
		TotalWithdrawn: fixed(b.TotalWithdrawn),
		CanWithdraw:    b.CanWithdraw(fees.WithdrawalMin),
		WithdrawalMin:  fixed(fees.WithdrawalMin),
		WithdrawalMax:  fixed(fees.WithdrawalMax),
		LastUpdated:    b.LastUpdated.Format(time.RFC3339),
	}
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:            tx.ID,
		AccountID:     tx.AccountID,
		Type:          string(tx.Type),
		Status:        string(tx.Status),
		Amount:        fixed(tx.Amount),
		Fee:           fixed(tx.Fee),
		BalanceBefore: fixed(tx.BalanceBefore),
		BalanceAfter:  fixed(tx.BalanceAfter),
		Reference:     tx.Reference,
		Description:   tx.Description,
		FailureReason: tx.FailureReason,
		CreatedAt:     tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.CompletedAt != nil {
		dto.CompletedAt = tx.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

func toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

func toWithdrawalDTO(r payments.WithdrawalRequest) WithdrawalRequestDTO {
	dto := WithdrawalRequestDTO{
		ID:            r.ID,
		AccountID:     r.AccountID,
		Amount:        fixed(r.Amount),
		Fee:           fixed(r.Fee),
		Net:           fixed(r.Net),
		Destination:   r.Destination,
		Status:        string(r.Status),
		Reference:     r.Reference,
		TransactionID: r.TransactionID,
		RequestedAt:   r.RequestedAt.Format(time.RFC3339),
		ExpiresAt:     r.ExpiresAt.Format(time.RFC3339),
		DecisionNote:  r.DecisionNote,
	}
	if r.DecidedAt != nil {
		dto.DecidedAt = r.DecidedAt.Format(time.RFC3339)
	}
	return dto
}

func toVoucherDTO(v payments.Voucher, includePIN bool) VoucherDTO {
	dto := VoucherDTO{
		ID:             v.ID,
		AccountID:      v.AccountID,
		Amount:         fixed(v.Amount),
		Fee:            fixed(v.Fee),
		Code:           v.Code,
		RecipientPhone: v.RecipientPhone,
		Status:         string(v.Status),
		Reference:      v.Reference,
		IssuedAt:       v.IssuedAt.Format(time.RFC3339),
		ExpiresAt:      v.ExpiresAt.Format(time.RFC3339),
	}
	if includePIN {
		dto.PIN = v.PIN
	}
	if v.RedeemedAt != nil {
		dto.RedeemedAt = v.RedeemedAt.Format(time.RFC3339)
	}
	return dto
}

func toTokenDTO(t payments.ElectricityToken) TokenDTO {
	return TokenDTO{
		ID:            t.ID,
		AccountID:     t.AccountID,
		Amount:        fixed(t.Amount),
		Units:         t.Units.StringFixed(2),
		Token:         t.Token,
		MeterNumber:   t.MeterNumber,
		Status:        string(t.Status),
		FailureReason: t.FailureReason,
		Reference:     t.Reference,
		IssuedAt:      t.IssuedAt.Format(time.RFC3339),
		ExpiresAt:     t.ExpiresAt.Format(time.RFC3339),
	}
}

func toGrantAccountDTO(ga grants.GrantAccount) GrantAccountDTO {
	return GrantAccountDTO{
		ID:              ga.ID,
		AccountID:       ga.AccountID,
		GrantType:       string(ga.GrantType),
		MonthlyAmount:   fixed(ga.MonthlyAmount),
		Status:          string(ga.Status),
		NextPaymentDate: ga.NextPaymentDate.Format("2006-01-02"),
		CreatedAt:       ga.CreatedAt.Format(time.RFC3339),
	}
}
