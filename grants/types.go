/*
Package grants provides the grant-program domain: grant types with
their statutory amounts and pay days, beneficiary grant accounts, the
payment schedule calculator, and the monthly disbursement runner.

KEY CONCEPTS IN THIS FILE (types.go):
  - GrantType: Which social grant an account receives, with its default
    monthly amount and the day of the month it pays out
  - GrantAccount: The link between a beneficiary and a grant program,
    with its verification lifecycle

LIFECYCLE:
  PENDING_VERIFICATION -> ACTIVE -> SUSPENDED -> ACTIVE
                                 -> CLOSED

  New grant accounts start unverified. Only ACTIVE grant accounts
  receive disbursements or satisfy withdrawal eligibility.

SEE ALSO:
  - schedule.go: Pay-day arithmetic
  - disburse.go: Monthly payment runner
*/
package grants

import (
	"context"
	"fmt"
	"time"

	"github.com/reliefhub/grant-engine/ledger"
)

// =============================================================================
// GRANT TYPES
// =============================================================================

type GrantType string

const (
	GrantSRD            GrantType = "SRD"
	GrantChildSupport   GrantType = "CHILD_SUPPORT"
	GrantFosterCare     GrantType = "FOSTER_CARE"
	GrantDisability     GrantType = "DISABILITY"
	GrantOldAge         GrantType = "OLD_AGE"
	GrantCareDependency GrantType = "CARE_DEPENDENCY"
	GrantWarVeterans    GrantType = "WAR_VETERANS"
)

// AllGrantTypes lists every supported grant type.
var AllGrantTypes = []GrantType{
	GrantSRD, GrantChildSupport, GrantFosterCare, GrantDisability,
	GrantOldAge, GrantCareDependency, GrantWarVeterans,
}

// PayDay returns the day of the month this grant type pays out.
// Days are staggered to spread load on payout channels.
func (g GrantType) PayDay() int {
	switch g {
	case GrantSRD:
		return 5
	case GrantChildSupport:
		return 3
	case GrantFosterCare:
		return 10
	default:
		return 1
	}
}

// DefaultAmount returns the statutory monthly amount.
func (g GrantType) DefaultAmount() ledger.Money {
	switch g {
	case GrantSRD:
		return ledger.MustMoney("350.00")
	case GrantChildSupport:
		return ledger.MustMoney("480.00")
	case GrantFosterCare:
		return ledger.MustMoney("1050.00")
	case GrantDisability, GrantOldAge, GrantCareDependency, GrantWarVeterans:
		return ledger.MustMoney("1986.00")
	}
	return ledger.Zero
}

// Valid reports whether g is a known grant type.
func (g GrantType) Valid() bool {
	switch g {
	case GrantSRD, GrantChildSupport, GrantFosterCare, GrantDisability,
		GrantOldAge, GrantCareDependency, GrantWarVeterans:
		return true
	}
	return false
}

// ParseGrantType validates a string grant type.
func ParseGrantType(s string) (GrantType, error) {
	g := GrantType(s)
	if !g.Valid() {
		return "", fmt.Errorf("unknown grant type %q", s)
	}
	return g, nil
}

// =============================================================================
// GRANT ACCOUNT
// =============================================================================

type GrantStatus string

const (
	GrantPendingVerification GrantStatus = "PENDING_VERIFICATION"
	GrantActive              GrantStatus = "ACTIVE"
	GrantSuspended           GrantStatus = "SUSPENDED"
	GrantClosed              GrantStatus = "CLOSED"
)

type GrantAccount struct {
	ID              string
	AccountID       string
	GrantType       GrantType
	MonthlyAmount   ledger.Money
	Status          GrantStatus
	NextPaymentDate time.Time
	CreatedAt       time.Time
}

// NewGrantAccount creates a grant account awaiting verification, with
// the statutory amount and the next pay date already computed.
func NewGrantAccount(accountID string, grantType GrantType, now time.Time) (*GrantAccount, error) {
	if !grantType.Valid() {
		return nil, fmt.Errorf("unknown grant type %q", grantType)
	}
	return &GrantAccount{
		ID:              ledger.NewID("grant"),
		AccountID:       accountID,
		GrantType:       grantType,
		MonthlyAmount:   grantType.DefaultAmount(),
		Status:          GrantPendingVerification,
		NextPaymentDate: NextPaymentDate(grantType, now),
		CreatedAt:       now.UTC(),
	}, nil
}

func (ga *GrantAccount) IsActive() bool {
	return ga.Status == GrantActive
}

// Activate marks the grant account verified and payable.
func (ga *GrantAccount) Activate() error {
	if ga.Status == GrantClosed {
		return fmt.Errorf("%w: grant account is closed", ledger.ErrInvalidTransition)
	}
	ga.Status = GrantActive
	return nil
}

// Suspend pauses disbursements without closing the account.
func (ga *GrantAccount) Suspend() error {
	if ga.Status != GrantActive {
		return fmt.Errorf("%w: only active grant accounts can be suspended", ledger.ErrInvalidTransition)
	}
	ga.Status = GrantSuspended
	return nil
}

// Close permanently ends the grant.
func (ga *GrantAccount) Close() {
	ga.Status = GrantClosed
}

// =============================================================================
// STORE
// =============================================================================

// GrantStore persists grant accounts. Implemented by store/sqlite and
// ledger/store (memory).
type GrantStore interface {
	SaveGrantAccount(ctx context.Context, ga GrantAccount) error
	GetGrantAccount(ctx context.Context, id string) (*GrantAccount, error)
	GetGrantAccountsByAccount(ctx context.Context, accountID string) ([]GrantAccount, error)
	ListGrantAccountsByStatus(ctx context.Context, status GrantStatus) ([]GrantAccount, error)
}
