/*
electricity.go - Prepaid electricity token workflow

PURPOSE:
  Converts balance into prepaid electricity: the amount buys kWh at a
  fixed rate and produces a 20-digit token the beneficiary keys into
  their meter.

FLOW:
  Purchase:  validate -> units = amount / rate (half-up, 2dp) ->
             atomic debit of the amount + PAYMENT transaction
             (COMPLETED) + token record. Purchases settle immediately;
             there is no approval step.
  Fail:      a vendor-side failure after the purchase marks the token
             FAILED so it becomes refundable.
  Refund:    a FAILED token refunds the full amount as a REFUND
             credit and moves to REFUNDED.

TOKEN EXPIRY:
  Tokens must be keyed in within 7 days. Expiry only affects
  redeemability at the meter; the ledger is untouched.

SEE ALSO:
  - ledger/fees.go: Rate and unit rounding
  - cashsend.go: The sibling voucher workflow
*/
package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/reliefhub/grant-engine/ledger"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ELECTRICITY TOKEN
// =============================================================================

type TokenStatus string

// Purchases settle synchronously, so tokens are born COMPLETED and
// there is no PENDING status.
const (
	TokenCompleted TokenStatus = "COMPLETED"
	TokenFailed    TokenStatus = "FAILED"
	TokenRefunded  TokenStatus = "REFUNDED"
)

type ElectricityToken struct {
	ID            string
	AccountID     string
	Amount        ledger.Money
	Units         decimal.Decimal // kWh
	Token         string
	MeterNumber   string
	Status        TokenStatus
	FailureReason string
	Reference     string
	TransactionID string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// TokenStore persists electricity tokens.
type TokenStore interface {
	SaveToken(ctx context.Context, t ElectricityToken) error
	GetToken(ctx context.Context, id string) (*ElectricityToken, error)
	ListTokensByAccount(ctx context.Context, accountID string) ([]ElectricityToken, error)
	TokenExists(ctx context.Context, token string) (bool, error)
}

// =============================================================================
// ELECTRICITY SERVICE
// =============================================================================

const DefaultTokenExpiry = 7 * 24 * time.Hour

type ElectricityService struct {
	Ledger   *ledger.Ledger
	Fees     ledger.FeeSchedule
	Codes    *ledger.CodeGenerator
	Notifier ledger.Notifier
	TokenTTL time.Duration

	// Now allows tests to control time. Defaults to time.Now.
	Now func() time.Time
}

func NewElectricityService(l *ledger.Ledger) *ElectricityService {
	return &ElectricityService{
		Ledger:   l,
		Fees:     ledger.DefaultFeeSchedule(),
		Codes:    ledger.NewCodeGenerator(),
		Notifier: ledger.NopNotifier{},
		TokenTTL: DefaultTokenExpiry,
		Now:      time.Now,
	}
}

// QuoteUnits returns the kWh an amount buys, without moving money.
func (s *ElectricityService) QuoteUnits(amount ledger.Money) (decimal.Decimal, error) {
	return s.Fees.ElectricityUnits(amount)
}

// Purchase debits the amount and issues a token, atomically.
func (s *ElectricityService) Purchase(ctx context.Context, accountID string, amount ledger.Money, meterNumber string) (*ElectricityToken, error) {
	units, err := s.Fees.ElectricityUnits(amount)
	if err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	var result *ElectricityToken

	err = s.Ledger.WithAccount(ctx, accountID, func(st ledger.Store) error {
		ts, ok := st.(TokenStore)
		if !ok {
			return ledger.ErrStoreRequired
		}

		ref, err := s.Codes.UniqueReference(ctx, "EL", now, st.ReferenceExists)
		if err != nil {
			return err
		}
		token, err := s.Codes.UniqueToken(ctx, ts.TokenExists)
		if err != nil {
			return err
		}

		desc := fmt.Sprintf("Electricity for meter %s (%s kWh)", meterNumber, units)
		tx, err := ledger.DebitAndRecord(ctx, st, accountID, amount, ledger.Zero, ledger.TxPayment, ref, desc)
		if err != nil {
			return err
		}
		if err := tx.Complete(); err != nil {
			return err
		}
		if err := st.UpdateTransaction(ctx, *tx); err != nil {
			return err
		}

		rec := &ElectricityToken{
			ID:            ledger.NewID("elt"),
			AccountID:     accountID,
			Amount:        amount,
			Units:         units,
			Token:         token,
			MeterNumber:   meterNumber,
			Status:        TokenCompleted,
			Reference:     ref,
			TransactionID: tx.ID,
			IssuedAt:      now,
			ExpiresAt:     now.Add(s.TokenTTL),
		}
		if err := ts.SaveToken(ctx, *rec); err != nil {
			return err
		}
		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Notify(ctx, ledger.Event{
		Type:      "token_issued",
		AccountID: accountID,
		Amount:    amount,
		Reference: result.Reference,
		Detail:    meterNumber,
	})
	return result, nil
}

// Fail marks a token FAILED after a vendor-side failure, making it
// refundable.
func (s *ElectricityService) Fail(ctx context.Context, tokenID, reason string) error {
	ts, ok := s.Ledger.Store().(TokenStore)
	if !ok {
		return ledger.ErrStoreRequired
	}

	t, err := ts.GetToken(ctx, tokenID)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrTokenNotFound
	}
	if t.Status != TokenCompleted {
		return fmt.Errorf("%w: token %s is %s", ledger.ErrInvalidTransition, tokenID, t.Status)
	}

	t.Status = TokenFailed
	t.FailureReason = reason
	return ts.SaveToken(ctx, *t)
}

// Refund credits back the full amount of a FAILED token.
func (s *ElectricityService) Refund(ctx context.Context, tokenID string) error {
	ts, ok := s.Ledger.Store().(TokenStore)
	if !ok {
		return ledger.ErrStoreRequired
	}

	t, err := ts.GetToken(ctx, tokenID)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrTokenNotFound
	}

	var refunded ledger.Money
	err = s.Ledger.WithAccount(ctx, t.AccountID, func(st ledger.Store) error {
		txts, ok := st.(TokenStore)
		if !ok {
			return ledger.ErrStoreRequired
		}

		current, err := txts.GetToken(ctx, t.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrTokenNotFound
		}
		if current.Status != TokenFailed {
			return fmt.Errorf("%w: only failed tokens are refundable, token %s is %s",
				ledger.ErrInvalidTransition, tokenID, current.Status)
		}

		desc := fmt.Sprintf("Refund of failed electricity purchase %s", current.Reference)
		if _, err := ledger.CreditAndRecord(ctx, st, current.AccountID, current.Amount, ledger.TxRefund, current.Reference+"-R", desc); err != nil {
			return err
		}

		current.Status = TokenRefunded
		if err := txts.SaveToken(ctx, *current); err != nil {
			return err
		}
		refunded = current.Amount
		return nil
	})
	if err != nil {
		return err
	}

	s.Notifier.Notify(ctx, ledger.Event{
		Type:      "token_refunded",
		AccountID: t.AccountID,
		Amount:    refunded,
		Reference: t.Reference,
	})
	return nil
}

// ListByAccount returns an account's electricity purchases.
func (s *ElectricityService) ListByAccount(ctx context.Context, accountID string) ([]ElectricityToken, error) {
	ts, ok := s.Ledger.Store().(TokenStore)
	if !ok {
		return nil, ledger.ErrStoreRequired
	}
	return ts.ListTokensByAccount(ctx, accountID)
}
