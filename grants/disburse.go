/*
disburse.go - Monthly grant payment runner

PURPOSE:
  Walks active grant accounts and pays the ones whose scheduled date
  has arrived: credits the monthly amount, records a DEPOSIT
  transaction, and advances the schedule - all in one atomic unit per
  grant account.

BATCH SEMANTICS:
  A failure on one grant account is logged and the batch continues.
  A sweep that pays nobody is a normal outcome, not an error.

SEE ALSO:
  - schedule.go: Due-date logic
  - api/sweeper.go: Runs this on a timer
*/
package grants

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/reliefhub/grant-engine/ledger"
)

// =============================================================================
// DISBURSER
// =============================================================================

type Disburser struct {
	Ledger   *ledger.Ledger
	Grants   GrantStore
	Codes    *ledger.CodeGenerator
	Notifier ledger.Notifier

	// Now allows tests to control time. Defaults to time.Now.
	Now func() time.Time
}

func NewDisburser(l *ledger.Ledger, gs GrantStore) *Disburser {
	return &Disburser{
		Ledger:   l,
		Grants:   gs,
		Codes:    ledger.NewCodeGenerator(),
		Notifier: ledger.NopNotifier{},
		Now:      time.Now,
	}
}

// UpdateSchedules recomputes NextPaymentDate for every active grant
// account whose stored date has fallen behind. Returns how many were
// updated.
func (d *Disburser) UpdateSchedules(ctx context.Context) (int, error) {
	now := d.Now()

	active, err := d.Grants.ListGrantAccountsByStatus(ctx, GrantActive)
	if err != nil {
		return 0, fmt.Errorf("failed to list active grant accounts: %w", err)
	}

	updated := 0
	for _, ga := range active {
		next := NextPaymentDate(ga.GrantType, now)
		if ga.NextPaymentDate.Equal(next) {
			continue
		}
		ga.NextPaymentDate = next
		if err := d.Grants.SaveGrantAccount(ctx, ga); err != nil {
			log.Printf("[Disburser] Error updating schedule for %s: %v", ga.ID, err)
			continue
		}
		updated++
	}
	return updated, nil
}

// PayDue credits the monthly amount for every active grant account
// whose scheduled date has arrived, then advances its schedule.
// Returns how many payments were made.
func (d *Disburser) PayDue(ctx context.Context) (int, error) {
	now := d.Now()

	active, err := d.Grants.ListGrantAccountsByStatus(ctx, GrantActive)
	if err != nil {
		return 0, fmt.Errorf("failed to list active grant accounts: %w", err)
	}

	paid := 0
	for _, ga := range active {
		if !IsDue(ga.NextPaymentDate, now) {
			continue
		}
		if err := d.payOne(ctx, ga, now); err != nil {
			log.Printf("[Disburser] Error paying grant account %s: %v", ga.ID, err)
			continue
		}
		paid++
	}

	if paid > 0 {
		log.Printf("[Disburser] Completed: %d grant payments", paid)
	}
	return paid, nil
}

// payOne credits one grant account and advances its schedule in one
// atomic unit.
func (d *Disburser) payOne(ctx context.Context, ga GrantAccount, now time.Time) error {
	var amount ledger.Money

	err := d.Ledger.WithAccount(ctx, ga.AccountID, func(s ledger.Store) error {
		gs, ok := s.(GrantStore)
		if !ok {
			return ledger.ErrStoreRequired
		}

		// Re-read inside the transaction; the sweep list may be stale.
		current, err := gs.GetGrantAccount(ctx, ga.ID)
		if err != nil {
			return err
		}
		if current == nil || !current.IsActive() || !IsDue(current.NextPaymentDate, now) {
			return nil
		}

		ref, err := d.Codes.UniqueReference(ctx, "GP", now, s.ReferenceExists)
		if err != nil {
			return err
		}

		desc := fmt.Sprintf("%s grant payment", current.GrantType)
		if _, err := ledger.CreditAndRecord(ctx, s, current.AccountID, current.MonthlyAmount, ledger.TxDeposit, ref, desc); err != nil {
			return err
		}

		// Next occurrence strictly after the date just paid.
		current.NextPaymentDate = NextPaymentDate(current.GrantType, current.NextPaymentDate.AddDate(0, 0, 1))
		if err := gs.SaveGrantAccount(ctx, *current); err != nil {
			return err
		}

		amount = current.MonthlyAmount
		return nil
	})
	if err != nil {
		return err
	}

	if amount.IsPositive() {
		d.Notifier.Notify(ctx, ledger.Event{
			Type:      "grant_paid",
			AccountID: ga.AccountID,
			Amount:    amount,
			Detail:    string(ga.GrantType),
		})
	}
	return nil
}
