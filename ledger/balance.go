/*
balance.go - Per-account fund tracking

PURPOSE:
  Balance is the authoritative view of an account's funds. It tracks
  spendable funds (Available), funds reserved for in-flight operations
  (Pending), and lifetime totals for auditability.

CRITICAL INVARIANTS:
  1. Available is never negative
  2. Pending is never negative
  3. TotalReceived and TotalWithdrawn only ever grow
  4. A failed mutation leaves the balance completely untouched

DEBIT SEMANTICS:
  Debit returns (false, nil) when funds are insufficient - this is a
  normal business outcome, not an error. An error is returned only for
  invalid input (non-positive amount). Callers wanting details use the
  Ledger, which wraps the false case in InsufficientBalanceError.

PENDING FUNDS:
  ReservePending moves Available -> Pending (holds funds for an
  operation whose outcome isn't known yet). ReleasePending moves the
  funds back. Neither touches the lifetime totals.

SEE ALSO:
  - ledger.go: Serialized read-check-mutate-record around Balance
  - transaction.go: The audit record written alongside each mutation
*/
package ledger

import "time"

// =============================================================================
// BALANCE
// =============================================================================

type Balance struct {
	AccountID      string
	Available      Money
	Pending        Money
	TotalReceived  Money
	TotalWithdrawn Money
	LastUpdated    time.Time
}

// NewBalance creates an empty balance for an account.
func NewBalance(accountID string) *Balance {
	return &Balance{
		AccountID:      accountID,
		Available:      Zero,
		Pending:        Zero,
		TotalReceived:  Zero,
		TotalWithdrawn: Zero,
		LastUpdated:    time.Now().UTC(),
	}
}

// Credit adds funds to Available and TotalReceived.
func (b *Balance) Credit(amount Money) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	b.Available = b.Available.Add(amount)
	b.TotalReceived = b.TotalReceived.Add(amount)
	b.touch()
	return nil
}

// Debit removes funds from Available and adds to TotalWithdrawn.
// Returns (false, nil) without mutating when Available < amount.
func (b *Balance) Debit(amount Money) (bool, error) {
	if !amount.IsPositive() {
		return false, ErrInvalidAmount
	}
	if b.Available.LessThan(amount) {
		return false, nil
	}
	b.Available = b.Available.Sub(amount)
	b.TotalWithdrawn = b.TotalWithdrawn.Add(amount)
	b.touch()
	return true, nil
}

// ReservePending moves funds from Available to Pending.
// Returns (false, nil) without mutating when Available < amount.
func (b *Balance) ReservePending(amount Money) (bool, error) {
	if !amount.IsPositive() {
		return false, ErrInvalidAmount
	}
	if b.Available.LessThan(amount) {
		return false, nil
	}
	b.Available = b.Available.Sub(amount)
	b.Pending = b.Pending.Add(amount)
	b.touch()
	return true, nil
}

// ReleasePending moves reserved funds back to Available.
// Fails when Pending < amount.
func (b *Balance) ReleasePending(amount Money) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if b.Pending.LessThan(amount) {
		return ErrInsufficientPending
	}
	b.Pending = b.Pending.Sub(amount)
	b.Available = b.Available.Add(amount)
	b.touch()
	return nil
}

// Net returns lifetime inflow minus lifetime outflow.
func (b *Balance) Net() Money {
	return b.TotalReceived.Sub(b.TotalWithdrawn)
}

// CanWithdraw reports whether Available covers at least min.
func (b *Balance) CanWithdraw(min Money) bool {
	return b.Available.GreaterThanOrEqual(min)
}

// HasFunds reports whether any spendable balance exists.
func (b *Balance) HasFunds() bool {
	return b.Available.IsPositive()
}

func (b *Balance) touch() {
	b.LastUpdated = time.Now().UTC()
}
