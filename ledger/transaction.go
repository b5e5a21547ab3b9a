/*
transaction.go - Auditable record of every balance mutation

PURPOSE:
  Every credit and debit produces a Transaction capturing the amount,
  fee, and the balance immediately before and after. The record carries
  a status lifecycle so asynchronous operations (withdrawals) can move
  through PENDING -> PROCESSING -> COMPLETED/FAILED while the money has
  already moved.

STATUS LIFECYCLE:
  PENDING ----> PROCESSING ----> COMPLETED
     |              |                ^
     |              +--> FAILED      | (Complete is idempotent)
     +--> CANCELLED |                |
     +--------------+----> COMPLETED +

  - Complete() on an already-COMPLETED transaction is a no-op (safe retry)
  - Complete() from FAILED or CANCELLED returns InvalidTransitionError
  - Cancel() is only valid from PENDING or PROCESSING
  - BalanceBefore/After are captured at creation and never recomputed

CORRECTIONS:
  A completed transaction is never edited. A mistaken or reversed
  operation gets a compensating TxRefund transaction; both records
  remain, preserving the audit trail.

SEE ALSO:
  - ledger.go: Creates transactions alongside balance mutations
  - payments: Drives the lifecycle for withdrawals and purchases
*/
package ledger

import "time"

// =============================================================================
// TRANSACTION TYPES AND STATUSES
// =============================================================================

type TransactionType string

const (
	TxDeposit    TransactionType = "DEPOSIT"    // Grant disbursement or other inflow
	TxWithdrawal TransactionType = "WITHDRAWAL" // Cash-out to an external destination
	TxPayment    TransactionType = "PAYMENT"    // Purchase (voucher, electricity)
	TxRefund     TransactionType = "REFUND"     // Compensating credit for a reversed debit
	TxTransfer   TransactionType = "TRANSFER"   // Account-to-account movement
	TxAdjustment TransactionType = "ADJUSTMENT" // Manual admin correction
)

// IsCredit reports whether this type increases the balance.
func (t TransactionType) IsCredit() bool {
	switch t {
	case TxDeposit, TxRefund:
		return true
	}
	return false
}

type TransactionStatus string

const (
	StatusPending    TransactionStatus = "PENDING"
	StatusProcessing TransactionStatus = "PROCESSING"
	StatusCompleted  TransactionStatus = "COMPLETED"
	StatusFailed     TransactionStatus = "FAILED"
	StatusCancelled  TransactionStatus = "CANCELLED"
)

// IsTerminal reports whether no further transitions are allowed
// (COMPLETED still accepts idempotent Complete calls).
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// =============================================================================
// TRANSACTION
// =============================================================================

type Transaction struct {
	ID            string
	AccountID     string
	Type          TransactionType
	Status        TransactionStatus
	Amount        Money
	Fee           Money
	BalanceBefore Money
	BalanceAfter  Money
	Reference     string
	Description   string
	FailureReason string
	RetryCount    int
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// NewTransaction creates a PENDING transaction with balances captured now.
// All defaults are set here; saving a transaction never mutates it.
func NewTransaction(accountID string, txType TransactionType, amount, before, after Money, reference, description string) *Transaction {
	return &Transaction{
		ID:            NewID("txn"),
		AccountID:     accountID,
		Type:          txType,
		Status:        StatusPending,
		Amount:        amount,
		Fee:           Zero,
		BalanceBefore: before,
		BalanceAfter:  after,
		Reference:     reference,
		Description:   description,
		CreatedAt:     time.Now().UTC(),
	}
}

// StartProcessing moves PENDING -> PROCESSING.
func (t *Transaction) StartProcessing() error {
	if t.Status != StatusPending {
		return &InvalidTransitionError{From: t.Status, To: StatusProcessing}
	}
	t.Status = StatusProcessing
	return nil
}

// Complete moves the transaction to COMPLETED and stamps CompletedAt.
// Calling Complete on an already-completed transaction is a no-op:
// CompletedAt keeps its original value.
func (t *Transaction) Complete() error {
	switch t.Status {
	case StatusCompleted:
		return nil
	case StatusPending, StatusProcessing:
		now := time.Now().UTC()
		t.Status = StatusCompleted
		t.CompletedAt = &now
		return nil
	}
	return &InvalidTransitionError{From: t.Status, To: StatusCompleted}
}

// Fail moves PENDING/PROCESSING -> FAILED with a reason and bumps RetryCount.
func (t *Transaction) Fail(reason string) error {
	if t.Status != StatusPending && t.Status != StatusProcessing {
		return &InvalidTransitionError{From: t.Status, To: StatusFailed}
	}
	t.Status = StatusFailed
	t.FailureReason = reason
	t.RetryCount++
	return nil
}

// Cancel moves PENDING/PROCESSING -> CANCELLED.
func (t *Transaction) Cancel() error {
	if t.Status != StatusPending && t.Status != StatusProcessing {
		return &InvalidTransitionError{From: t.Status, To: StatusCancelled}
	}
	t.Status = StatusCancelled
	return nil
}

// CanRetry reports whether a FAILED transaction may be retried.
func (t *Transaction) CanRetry(maxRetries int) bool {
	return t.Status == StatusFailed && t.RetryCount < maxRetries
}

// Retry moves FAILED back to PROCESSING for another attempt.
func (t *Transaction) Retry(maxRetries int) error {
	if !t.CanRetry(maxRetries) {
		return &InvalidTransitionError{From: t.Status, To: StatusProcessing}
	}
	t.Status = StatusProcessing
	t.FailureReason = ""
	return nil
}
