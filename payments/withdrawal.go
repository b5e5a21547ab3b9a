/*
withdrawal.go - Cash withdrawal request workflow

PURPOSE:
  Turns "I want my money out" into a vetted, funded, auditable request:

    1. Eligibility:  account active, contact details verified, has an
                     active grant account, has funds at all
    2. Bounds:       amount within [min, max]
    3. Fees:         2% of the amount, taken out of the payout
    4. Balance:      available must cover the requested amount
    5. Atomically:   debit balance + WITHDRAWAL transaction (PENDING)
                     + request record (PENDING), one store transaction
    6. Reference:    unique "WD-yyyymmdd-DDDDDD"

REQUEST LIFECYCLE:
  PENDING -> APPROVED -> PROCESSED
     |          |
     +----------+--> REJECTED / CANCELLED / EXPIRED

  Funds leave the balance at request time. Every terminal outcome
  except PROCESSED issues a compensating REFUND credit of the full
  requested amount - the original debit is never edited in place.

EXPIRY:
  Requests expire 24 hours after creation. ExpireStale sweeps
  PENDING/APPROVED requests past their deadline; each expiry refunds
  in its own atomic unit, and one failure doesn't stop the sweep.

SEE ALSO:
  - ledger/fees.go: Pricing and bounds
  - cashsend.go, electricity.go: The synchronous purchase workflows
*/
package payments

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/reliefhub/grant-engine/grants"
	"github.com/reliefhub/grant-engine/ledger"
)

// =============================================================================
// WITHDRAWAL REQUEST
// =============================================================================

type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "PENDING"
	WithdrawalApproved  WithdrawalStatus = "APPROVED"
	WithdrawalProcessed WithdrawalStatus = "PROCESSED"
	WithdrawalRejected  WithdrawalStatus = "REJECTED"
	WithdrawalCancelled WithdrawalStatus = "CANCELLED"
	WithdrawalExpired   WithdrawalStatus = "EXPIRED"
)

// IsTerminal reports whether no further transitions are allowed.
func (s WithdrawalStatus) IsTerminal() bool {
	switch s {
	case WithdrawalProcessed, WithdrawalRejected, WithdrawalCancelled, WithdrawalExpired:
		return true
	}
	return false
}

type WithdrawalRequest struct {
	ID            string
	AccountID     string
	Amount        ledger.Money // debited from the balance
	Fee           ledger.Money // taken out of the payout
	Net           ledger.Money // what reaches the destination
	Destination   string
	Status        WithdrawalStatus
	Reference     string
	TransactionID string
	RequestedAt   time.Time
	ExpiresAt     time.Time
	DecidedAt     *time.Time
	DecisionNote  string
}

// IsExpired reports whether the deadline has passed for a request
// still awaiting an outcome.
func (r *WithdrawalRequest) IsExpired(now time.Time) bool {
	return !r.Status.IsTerminal() && now.After(r.ExpiresAt)
}

// RequestStore persists withdrawal requests.
type RequestStore interface {
	SaveWithdrawalRequest(ctx context.Context, r WithdrawalRequest) error
	GetWithdrawalRequest(ctx context.Context, id string) (*WithdrawalRequest, error)
	ListWithdrawalRequestsByAccount(ctx context.Context, accountID string) ([]WithdrawalRequest, error)
	ListWithdrawalRequestsByStatus(ctx context.Context, status WithdrawalStatus) ([]WithdrawalRequest, error)
}

// =============================================================================
// WITHDRAWAL SERVICE
// =============================================================================

const DefaultWithdrawalExpiry = 24 * time.Hour

type WithdrawalService struct {
	Ledger   *ledger.Ledger
	Fees     ledger.FeeSchedule
	Codes    *ledger.CodeGenerator
	Notifier ledger.Notifier
	Expiry   time.Duration

	// Now allows tests to control time. Defaults to time.Now.
	Now func() time.Time
}

func NewWithdrawalService(l *ledger.Ledger) *WithdrawalService {
	return &WithdrawalService{
		Ledger:   l,
		Fees:     ledger.DefaultFeeSchedule(),
		Codes:    ledger.NewCodeGenerator(),
		Notifier: ledger.NopNotifier{},
		Expiry:   DefaultWithdrawalExpiry,
		Now:      time.Now,
	}
}

// Request creates a funded withdrawal request.
func (s *WithdrawalService) Request(ctx context.Context, accountID string, amount ledger.Money, destination string) (*WithdrawalRequest, error) {
	now := s.Now().UTC()
	var result *WithdrawalRequest

	err := s.Ledger.WithAccount(ctx, accountID, func(st ledger.Store) error {
		rs, ok := st.(RequestStore)
		if !ok {
			return ledger.ErrStoreRequired
		}

		// Eligibility is checked before pricing: an ineligible account
		// is told so even when the amount is also out of bounds.
		if err := s.checkEligibility(ctx, st, accountID); err != nil {
			return err
		}

		quote, err := s.Fees.WithdrawalQuote(amount)
		if err != nil {
			return err
		}

		ref, err := s.Codes.UniqueReference(ctx, "WD", now, st.ReferenceExists)
		if err != nil {
			return err
		}

		desc := fmt.Sprintf("Withdrawal to %s", destination)
		tx, err := ledger.DebitAndRecord(ctx, st, accountID, quote.Total, quote.Fee, ledger.TxWithdrawal, ref, desc)
		if err != nil {
			return err
		}

		req := &WithdrawalRequest{
			ID:            ledger.NewID("wdr"),
			AccountID:     accountID,
			Amount:        quote.Amount,
			Fee:           quote.Fee,
			Net:           quote.Net,
			Destination:   destination,
			Status:        WithdrawalPending,
			Reference:     ref,
			TransactionID: tx.ID,
			RequestedAt:   now,
			ExpiresAt:     now.Add(s.Expiry),
		}
		if err := rs.SaveWithdrawalRequest(ctx, *req); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Notify(ctx, ledger.Event{
		Type:      "withdrawal_requested",
		AccountID: accountID,
		Amount:    result.Amount,
		Reference: result.Reference,
	})
	return result, nil
}

// checkEligibility verifies the withdrawal preconditions inside the
// caller's store transaction.
func (s *WithdrawalService) checkEligibility(ctx context.Context, st ledger.Store, accountID string) error {
	account, err := st.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.Active {
		return &ledger.IneligibleAccountError{AccountID: accountID, Reason: "account is not active"}
	}
	if !account.Verified() {
		return &ledger.IneligibleAccountError{AccountID: accountID, Reason: "contact details not verified"}
	}

	gs, ok := st.(grants.GrantStore)
	if !ok {
		return ledger.ErrStoreRequired
	}
	grantAccounts, err := gs.GetGrantAccountsByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	hasActive := false
	for _, ga := range grantAccounts {
		if ga.IsActive() {
			hasActive = true
			break
		}
	}
	if !hasActive {
		return &ledger.IneligibleAccountError{AccountID: accountID, Reason: "no active grant account"}
	}

	bal, err := ledger.LoadOrCreateBalance(ctx, st, accountID)
	if err != nil {
		return err
	}
	if !bal.HasFunds() {
		return &ledger.IneligibleAccountError{AccountID: accountID, Reason: "no available balance"}
	}
	return nil
}

// Eligibility runs the precondition checks without creating anything.
// Returns nil when the account could withdraw.
func (s *WithdrawalService) Eligibility(ctx context.Context, accountID string) error {
	return s.Ledger.WithAccount(ctx, accountID, func(st ledger.Store) error {
		return s.checkEligibility(ctx, st, accountID)
	})
}

// Approve moves PENDING -> APPROVED and the ledger transaction to
// PROCESSING.
func (s *WithdrawalService) Approve(ctx context.Context, requestID, note string) error {
	return s.transition(ctx, requestID, func(req *WithdrawalRequest, tx *ledger.Transaction, now time.Time) error {
		if req.Status != WithdrawalPending {
			return &RequestStateError{RequestID: req.ID, Status: req.Status, Attempted: "approve"}
		}
		if err := tx.StartProcessing(); err != nil {
			return err
		}
		req.Status = WithdrawalApproved
		req.DecidedAt = &now
		req.DecisionNote = note
		return nil
	})
}

// Process moves APPROVED -> PROCESSED: the payout went through, the
// ledger transaction completes.
func (s *WithdrawalService) Process(ctx context.Context, requestID string) error {
	err := s.transition(ctx, requestID, func(req *WithdrawalRequest, tx *ledger.Transaction, now time.Time) error {
		if req.Status != WithdrawalApproved {
			return &RequestStateError{RequestID: req.ID, Status: req.Status, Attempted: "process"}
		}
		if err := tx.Complete(); err != nil {
			return err
		}
		req.Status = WithdrawalProcessed
		req.DecidedAt = &now
		return nil
	})
	if err != nil {
		return err
	}

	s.notifyOutcome(ctx, requestID, "withdrawal_processed")
	return nil
}

// Reject moves PENDING/APPROVED -> REJECTED and refunds the debit.
func (s *WithdrawalService) Reject(ctx context.Context, requestID, reason string) error {
	return s.terminate(ctx, requestID, WithdrawalRejected, "reject", reason)
}

// Cancel moves PENDING/APPROVED -> CANCELLED and refunds the debit.
// Beneficiary-initiated; no note required.
func (s *WithdrawalService) Cancel(ctx context.Context, requestID string) error {
	return s.terminate(ctx, requestID, WithdrawalCancelled, "cancel", "cancelled by account holder")
}

// ExpireStale expires every PENDING/APPROVED request past its
// deadline, refunding each in its own atomic unit. Returns how many
// were expired.
func (s *WithdrawalService) ExpireStale(ctx context.Context) (int, error) {
	now := s.Now()
	store := s.Ledger.Store()

	rs, ok := store.(RequestStore)
	if !ok {
		return 0, ledger.ErrStoreRequired
	}

	var stale []WithdrawalRequest
	for _, status := range []WithdrawalStatus{WithdrawalPending, WithdrawalApproved} {
		reqs, err := rs.ListWithdrawalRequestsByStatus(ctx, status)
		if err != nil {
			return 0, fmt.Errorf("failed to list %s requests: %w", status, err)
		}
		for _, r := range reqs {
			if r.IsExpired(now) {
				stale = append(stale, r)
			}
		}
	}

	expired := 0
	for _, r := range stale {
		if err := s.terminate(ctx, r.ID, WithdrawalExpired, "expire", "request expired"); err != nil {
			log.Printf("[Withdrawals] Error expiring request %s: %v", r.ID, err)
			continue
		}
		expired++
	}

	if expired > 0 {
		log.Printf("[Withdrawals] Expired %d stale requests", expired)
	}
	return expired, nil
}

// Get returns a withdrawal request by ID.
func (s *WithdrawalService) Get(ctx context.Context, requestID string) (*WithdrawalRequest, error) {
	rs, ok := s.Ledger.Store().(RequestStore)
	if !ok {
		return nil, ledger.ErrStoreRequired
	}
	req, err := rs.GetWithdrawalRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

// ListByAccount returns an account's withdrawal requests.
func (s *WithdrawalService) ListByAccount(ctx context.Context, accountID string) ([]WithdrawalRequest, error) {
	rs, ok := s.Ledger.Store().(RequestStore)
	if !ok {
		return nil, ledger.ErrStoreRequired
	}
	return rs.ListWithdrawalRequestsByAccount(ctx, accountID)
}

// transition loads the request and its ledger transaction, applies fn,
// and saves both atomically.
func (s *WithdrawalService) transition(ctx context.Context, requestID string, fn func(*WithdrawalRequest, *ledger.Transaction, time.Time) error) error {
	// Look up the account first so the right lock is held.
	req, err := s.Get(ctx, requestID)
	if err != nil {
		return err
	}

	now := s.Now().UTC()
	return s.Ledger.WithAccount(ctx, req.AccountID, func(st ledger.Store) error {
		rs, ok := st.(RequestStore)
		if !ok {
			return ledger.ErrStoreRequired
		}

		current, err := rs.GetWithdrawalRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrRequestNotFound
		}

		tx, err := st.GetTransaction(ctx, current.TransactionID)
		if err != nil {
			return err
		}
		if tx == nil {
			return fmt.Errorf("transaction %s for request %s: %w", current.TransactionID, requestID, ledger.ErrNotFound)
		}

		if err := fn(current, tx, now); err != nil {
			return err
		}

		if err := st.UpdateTransaction(ctx, *tx); err != nil {
			return err
		}
		return rs.SaveWithdrawalRequest(ctx, *current)
	})
}

// terminate applies a refunding terminal transition.
func (s *WithdrawalService) terminate(ctx context.Context, requestID string, to WithdrawalStatus, attempted, note string) error {
	var refunded ledger.Money
	var accountID string

	err := s.transitionWithStore(ctx, requestID, func(st ledger.Store, req *WithdrawalRequest, tx *ledger.Transaction, now time.Time) error {
		if req.Status != WithdrawalPending && req.Status != WithdrawalApproved {
			return &RequestStateError{RequestID: req.ID, Status: req.Status, Attempted: attempted}
		}

		switch to {
		case WithdrawalExpired, WithdrawalRejected:
			if err := tx.Fail(note); err != nil {
				return err
			}
		default:
			if err := tx.Cancel(); err != nil {
				return err
			}
		}

		refundRef := req.Reference + "-R"
		desc := fmt.Sprintf("Refund of withdrawal %s: %s", req.Reference, note)
		if _, err := ledger.CreditAndRecord(ctx, st, req.AccountID, req.Amount, ledger.TxRefund, refundRef, desc); err != nil {
			return err
		}

		req.Status = to
		req.DecidedAt = &now
		req.DecisionNote = note
		refunded = req.Amount
		accountID = req.AccountID
		return nil
	})
	if err != nil {
		return err
	}

	s.Notifier.Notify(ctx, ledger.Event{
		Type:      "withdrawal_" + string(to),
		AccountID: accountID,
		Amount:    refunded,
		Detail:    note,
	})
	return nil
}

// transitionWithStore is transition with store access in the callback,
// for transitions that also move money.
func (s *WithdrawalService) transitionWithStore(ctx context.Context, requestID string, fn func(ledger.Store, *WithdrawalRequest, *ledger.Transaction, time.Time) error) error {
	req, err := s.Get(ctx, requestID)
	if err != nil {
		return err
	}

	now := s.Now().UTC()
	return s.Ledger.WithAccount(ctx, req.AccountID, func(st ledger.Store) error {
		rs, ok := st.(RequestStore)
		if !ok {
			return ledger.ErrStoreRequired
		}

		current, err := rs.GetWithdrawalRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrRequestNotFound
		}

		tx, err := st.GetTransaction(ctx, current.TransactionID)
		if err != nil {
			return err
		}
		if tx == nil {
			return fmt.Errorf("transaction %s for request %s: %w", current.TransactionID, requestID, ledger.ErrNotFound)
		}

		if err := fn(st, current, tx, now); err != nil {
			return err
		}

		if err := st.UpdateTransaction(ctx, *tx); err != nil {
			return err
		}
		return rs.SaveWithdrawalRequest(ctx, *current)
	})
}

func (s *WithdrawalService) notifyOutcome(ctx context.Context, requestID, eventType string) {
	req, err := s.Get(ctx, requestID)
	if err != nil {
		return
	}
	s.Notifier.Notify(ctx, ledger.Event{
		Type:      eventType,
		AccountID: req.AccountID,
		Amount:    req.Net,
		Reference: req.Reference,
	})
}
