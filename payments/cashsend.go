/*
cashsend.go - Cash-send voucher workflow

PURPOSE:
  Lets a beneficiary send cash to anyone with a phone: the sender's
  balance is debited (amount + flat fee) and a voucher is issued that
  the recipient redeems with a code and PIN at a till point.

FLOW:
  Send:    validate -> quote (flat R 3.50 fee) -> atomic debit of
           amount+fee + PAYMENT transaction (COMPLETED) + ACTIVE
           voucher with unique 16-digit code and 6-digit PIN.
  Redeem:  code+PIN must match an ACTIVE, unexpired voucher.
  Cancel:  an unredeemed ACTIVE voucher can be cancelled by the
           sender; amount and fee are refunded as a REFUND credit.
  Expiry:  vouchers live 30 days. Expired vouchers are swept to
           EXPIRED; the purchase stands, no refund.

SEE ALSO:
  - ledger/codes.go: Code and PIN generation
  - ledger/fees.go: Pricing
*/
package payments

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/reliefhub/grant-engine/ledger"
)

// =============================================================================
// VOUCHER
// =============================================================================

type VoucherStatus string

const (
	VoucherActive    VoucherStatus = "ACTIVE"
	VoucherRedeemed  VoucherStatus = "REDEEMED"
	VoucherExpired   VoucherStatus = "EXPIRED"
	VoucherCancelled VoucherStatus = "CANCELLED"
)

type Voucher struct {
	ID             string
	AccountID      string
	Amount         ledger.Money
	Fee            ledger.Money
	Code           string
	PIN            string
	RecipientPhone string
	Status         VoucherStatus
	Reference      string
	TransactionID  string
	IssuedAt       time.Time
	ExpiresAt      time.Time
	RedeemedAt     *time.Time
}

// IsRedeemable reports whether the voucher can be cashed right now.
func (v *Voucher) IsRedeemable(now time.Time) bool {
	return v.Status == VoucherActive && now.Before(v.ExpiresAt)
}

// VoucherStore persists vouchers.
type VoucherStore interface {
	SaveVoucher(ctx context.Context, v Voucher) error
	GetVoucher(ctx context.Context, id string) (*Voucher, error)
	GetVoucherByCode(ctx context.Context, code string) (*Voucher, error)
	ListVouchersByAccount(ctx context.Context, accountID string) ([]Voucher, error)
	ListVouchersByStatus(ctx context.Context, status VoucherStatus) ([]Voucher, error)
	VoucherCodeExists(ctx context.Context, code string) (bool, error)
}

// =============================================================================
// CASH-SEND SERVICE
// =============================================================================

const DefaultVoucherExpiry = 30 * 24 * time.Hour

type CashSendService struct {
	Ledger   *ledger.Ledger
	Fees     ledger.FeeSchedule
	Codes    *ledger.CodeGenerator
	Notifier ledger.Notifier
	Expiry   time.Duration

	// Now allows tests to control time. Defaults to time.Now.
	Now func() time.Time
}

func NewCashSendService(l *ledger.Ledger) *CashSendService {
	return &CashSendService{
		Ledger:   l,
		Fees:     ledger.DefaultFeeSchedule(),
		Codes:    ledger.NewCodeGenerator(),
		Notifier: ledger.NopNotifier{},
		Expiry:   DefaultVoucherExpiry,
		Now:      time.Now,
	}
}

// Quote prices a cash-send without moving money.
func (s *CashSendService) Quote(amount ledger.Money) (ledger.Quote, error) {
	return s.Fees.CashSendQuote(amount)
}

// Send debits amount + fee and issues an active voucher, atomically.
func (s *CashSendService) Send(ctx context.Context, accountID string, amount ledger.Money, recipientPhone string) (*Voucher, error) {
	quote, err := s.Fees.CashSendQuote(amount)
	if err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	var result *Voucher

	err = s.Ledger.WithAccount(ctx, accountID, func(st ledger.Store) error {
		vs, ok := st.(VoucherStore)
		if !ok {
			return ledger.ErrStoreRequired
		}

		ref, err := s.Codes.UniqueReference(ctx, "CS", now, st.ReferenceExists)
		if err != nil {
			return err
		}
		code, err := s.Codes.UniqueVoucherCode(ctx, vs.VoucherCodeExists)
		if err != nil {
			return err
		}
		pin, err := s.Codes.PIN(ledger.DefaultPINLength)
		if err != nil {
			return err
		}

		desc := fmt.Sprintf("Cash send to %s", recipientPhone)
		tx, err := ledger.DebitAndRecord(ctx, st, accountID, quote.Total, quote.Fee, ledger.TxPayment, ref, desc)
		if err != nil {
			return err
		}
		if err := tx.Complete(); err != nil {
			return err
		}
		if err := st.UpdateTransaction(ctx, *tx); err != nil {
			return err
		}

		v := &Voucher{
			ID:             ledger.NewID("vch"),
			AccountID:      accountID,
			Amount:         quote.Amount,
			Fee:            quote.Fee,
			Code:           code,
			PIN:            pin,
			RecipientPhone: recipientPhone,
			Status:         VoucherActive,
			Reference:      ref,
			TransactionID:  tx.ID,
			IssuedAt:       now,
			ExpiresAt:      now.Add(s.Expiry),
		}
		if err := vs.SaveVoucher(ctx, *v); err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Notify(ctx, ledger.Event{
		Type:      "voucher_issued",
		AccountID: accountID,
		Amount:    result.Amount,
		Reference: result.Reference,
		Detail:    recipientPhone,
	})
	return result, nil
}

// Redeem cashes an active, unexpired voucher. The PIN must match.
func (s *CashSendService) Redeem(ctx context.Context, code, pin string) (*Voucher, error) {
	vs, ok := s.Ledger.Store().(VoucherStore)
	if !ok {
		return nil, ledger.ErrStoreRequired
	}

	v, err := vs.GetVoucherByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrVoucherNotFound
	}

	now := s.Now().UTC()
	var result *Voucher

	err = s.Ledger.WithAccount(ctx, v.AccountID, func(st ledger.Store) error {
		txvs, ok := st.(VoucherStore)
		if !ok {
			return ledger.ErrStoreRequired
		}

		current, err := txvs.GetVoucher(ctx, v.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrVoucherNotFound
		}
		if current.Status != VoucherActive {
			return ErrVoucherNotActive
		}
		if !now.Before(current.ExpiresAt) {
			return ErrVoucherExpired
		}
		if current.PIN != pin {
			return ErrInvalidPIN
		}

		current.Status = VoucherRedeemed
		current.RedeemedAt = &now
		if err := txvs.SaveVoucher(ctx, *current); err != nil {
			return err
		}
		result = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Notify(ctx, ledger.Event{
		Type:      "voucher_redeemed",
		AccountID: result.AccountID,
		Amount:    result.Amount,
		Reference: result.Reference,
	})
	return result, nil
}

// Cancel voids an unredeemed active voucher and refunds amount + fee.
func (s *CashSendService) Cancel(ctx context.Context, voucherID string) error {
	vs, ok := s.Ledger.Store().(VoucherStore)
	if !ok {
		return ledger.ErrStoreRequired
	}

	v, err := vs.GetVoucher(ctx, voucherID)
	if err != nil {
		return err
	}
	if v == nil {
		return ErrVoucherNotFound
	}

	var refunded ledger.Money
	err = s.Ledger.WithAccount(ctx, v.AccountID, func(st ledger.Store) error {
		txvs, ok := st.(VoucherStore)
		if !ok {
			return ledger.ErrStoreRequired
		}

		current, err := txvs.GetVoucher(ctx, v.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrVoucherNotFound
		}
		if current.Status != VoucherActive {
			return ErrVoucherNotActive
		}

		refund := current.Amount.Add(current.Fee)
		desc := fmt.Sprintf("Refund of cancelled cash send %s", current.Reference)
		if _, err := ledger.CreditAndRecord(ctx, st, current.AccountID, refund, ledger.TxRefund, current.Reference+"-R", desc); err != nil {
			return err
		}

		current.Status = VoucherCancelled
		if err := txvs.SaveVoucher(ctx, *current); err != nil {
			return err
		}
		refunded = refund
		return nil
	})
	if err != nil {
		return err
	}

	s.Notifier.Notify(ctx, ledger.Event{
		Type:      "voucher_cancelled",
		AccountID: v.AccountID,
		Amount:    refunded,
		Reference: v.Reference,
	})
	return nil
}

// Status returns a voucher by code without redeeming it.
func (s *CashSendService) Status(ctx context.Context, code string) (*Voucher, error) {
	vs, ok := s.Ledger.Store().(VoucherStore)
	if !ok {
		return nil, ledger.ErrStoreRequired
	}
	v, err := vs.GetVoucherByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrVoucherNotFound
	}
	return v, nil
}

// ListByAccount returns an account's vouchers.
func (s *CashSendService) ListByAccount(ctx context.Context, accountID string) ([]Voucher, error) {
	vs, ok := s.Ledger.Store().(VoucherStore)
	if !ok {
		return nil, ledger.ErrStoreRequired
	}
	return vs.ListVouchersByAccount(ctx, accountID)
}

// ExpireStale marks active vouchers past their expiry as EXPIRED.
// The original purchase stands; no refund is issued.
func (s *CashSendService) ExpireStale(ctx context.Context) (int, error) {
	now := s.Now().UTC()

	vs, ok := s.Ledger.Store().(VoucherStore)
	if !ok {
		return 0, ledger.ErrStoreRequired
	}

	active, err := vs.ListVouchersByStatus(ctx, VoucherActive)
	if err != nil {
		return 0, fmt.Errorf("failed to list active vouchers: %w", err)
	}

	expired := 0
	for _, v := range active {
		if now.Before(v.ExpiresAt) {
			continue
		}
		v.Status = VoucherExpired
		if err := vs.SaveVoucher(ctx, v); err != nil {
			log.Printf("[CashSend] Error expiring voucher %s: %v", v.ID, err)
			continue
		}
		expired++
	}

	if expired > 0 {
		log.Printf("[CashSend] Expired %d vouchers", expired)
	}
	return expired, nil
}
