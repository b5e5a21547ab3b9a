/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Workflow packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Validation errors - Bad amounts, bounds violations, ineligibility
  2. Balance errors - Insufficient or inconsistent funds
  3. Lifecycle errors - Invalid transaction status transitions
  4. Store errors - Missing records, capability mismatches

USAGE:
  Callers classify with errors.Is/errors.As:

    if errors.Is(err, ledger.ErrInsufficientBalance) {
        // reject with 422, balance untouched
    }

SEE ALSO:
  - balance.go, transaction.go, fees.go: Producers of these errors
  - payments: Wraps these with workflow context
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when an operation receives a zero or
	// negative amount. Amounts must always be strictly positive.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrAmountOutOfRange is returned when an amount falls outside the
	// configured [min, max] bounds for an operation.
	ErrAmountOutOfRange = errors.New("amount out of range")

	// ErrInsufficientBalance is returned when a debit exceeds available funds.
	// The balance is never mutated when this is returned.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientPending is returned when releasing more than is reserved.
	ErrInsufficientPending = errors.New("insufficient pending funds")

	// ErrIneligibleAccount is returned when an account fails a workflow's
	// eligibility preconditions.
	ErrIneligibleAccount = errors.New("account not eligible")

	// ErrInvalidTransition is returned on a disallowed status change.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrCodeGenerationExhausted is returned when unique code generation
	// fails after the maximum number of attempts.
	ErrCodeGenerationExhausted = errors.New("code generation attempts exhausted")

	// ErrDuplicateReference is returned when a reference number collides.
	ErrDuplicateReference = errors.New("duplicate reference")

	// ErrAccountNotFound is returned when a referenced account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("record not found")

	// ErrStoreRequired is returned when an operation requires a store
	// capability the supplied implementation doesn't provide.
	ErrStoreRequired = errors.New("operation requires extended store interface")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	AccountID string
	Available Money
	Required  Money
	Shortfall Money
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s, required %s, shortfall %s",
		e.Available, e.Required, e.Shortfall)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// NewInsufficientBalanceError computes the shortfall from available/required.
func NewInsufficientBalanceError(accountID string, available, required Money) *InsufficientBalanceError {
	return &InsufficientBalanceError{
		AccountID: accountID,
		Available: available,
		Required:  required,
		Shortfall: required.Sub(available),
	}
}

// AmountOutOfRangeError provides the violated bounds.
type AmountOutOfRangeError struct {
	Amount Money
	Min    Money
	Max    Money
}

func (e *AmountOutOfRangeError) Error() string {
	return fmt.Sprintf("amount %s out of range [%s, %s]", e.Amount, e.Min, e.Max)
}

func (e *AmountOutOfRangeError) Unwrap() error {
	return ErrAmountOutOfRange
}

// IneligibleAccountError names the failed precondition.
type IneligibleAccountError struct {
	AccountID string
	Reason    string
}

func (e *IneligibleAccountError) Error() string {
	return fmt.Sprintf("account %s not eligible: %s", e.AccountID, e.Reason)
}

func (e *IneligibleAccountError) Unwrap() error {
	return ErrIneligibleAccount
}

// InvalidTransitionError records the rejected status change.
type InvalidTransitionError struct {
	From TransactionStatus
	To   TransactionStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// or a business-rule rejection (map to 4xx, not 5xx).
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrAmountOutOfRange) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInsufficientPending) ||
		errors.Is(err, ErrIneligibleAccount) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAccountNotFound)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDuplicateReference)
}
