/*
Package payments provides the money-moving workflows: withdrawal
requests with their approval lifecycle, cash-send vouchers, and
prepaid electricity tokens.

errors.go - Workflow-level error types

These wrap or sit alongside the ledger package's error taxonomy.
Classification helpers there (IsClientError, IsNotFound) still apply
to errors produced here because everything unwraps to ledger
sentinels where one fits.
*/
package payments

import (
	"errors"
	"fmt"

	"github.com/reliefhub/grant-engine/ledger"
)

var (
	// ErrRequestNotFound is returned for an unknown withdrawal request.
	ErrRequestNotFound = fmt.Errorf("withdrawal request: %w", ledger.ErrNotFound)

	// ErrVoucherNotFound is returned for an unknown voucher code or ID.
	ErrVoucherNotFound = fmt.Errorf("voucher: %w", ledger.ErrNotFound)

	// ErrTokenNotFound is returned for an unknown electricity token.
	ErrTokenNotFound = fmt.Errorf("electricity token: %w", ledger.ErrNotFound)

	// ErrVoucherNotActive is returned when redeeming a voucher that is
	// already redeemed, cancelled, or expired.
	ErrVoucherNotActive = errors.New("voucher not active")

	// ErrVoucherExpired is returned when redeeming past the expiry date.
	ErrVoucherExpired = errors.New("voucher expired")

	// ErrInvalidPIN is returned on a PIN mismatch during redemption.
	ErrInvalidPIN = errors.New("invalid voucher pin")
)

// RequestStateError records a withdrawal request operation attempted
// in the wrong state.
type RequestStateError struct {
	RequestID string
	Status    WithdrawalStatus
	Attempted string
}

func (e *RequestStateError) Error() string {
	return fmt.Sprintf("cannot %s withdrawal request %s in status %s", e.Attempted, e.RequestID, e.Status)
}

func (e *RequestStateError) Unwrap() error {
	return ledger.ErrInvalidTransition
}
