/*
store.go - Persistence interfaces for accounts, balances, and transactions

PURPOSE:
  Defines the interface between domain logic and the database.
  Different implementations can use SQLite, PostgreSQL, or in-memory
  storage.

KEY INTERFACES:
  Store:   Account/balance/transaction persistence
  TxStore: Transactional operations (atomic multi-table writes)

ATOMIC UNITS:
  WithTx() ensures all-or-nothing semantics. A withdrawal writes a
  balance update, a transaction record, and a request record; either
  all three land or none do. This is what keeps BalanceBefore/After
  on transaction records truthful.

EXTENDED CAPABILITIES:
  Workflow packages define their own store interfaces (withdrawal
  requests, vouchers, tokens, grant accounts). Inside WithTx, they
  type-assert the Store they receive to those interfaces and return
  ErrStoreRequired when the capability is missing. The SQLite and
  memory stores implement everything.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - ledger/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level service using Store
  - payments: Extended store interfaces
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// ACCOUNT - Beneficiary identity and verification state
// =============================================================================

type Account struct {
	ID            string
	Name          string
	Email         string
	Phone         string
	EmailVerified bool
	PhoneVerified bool
	Active        bool
	CreatedAt     time.Time
}

// Verified reports whether both contact channels are confirmed.
func (a *Account) Verified() bool {
	return a.EmailVerified && a.PhoneVerified
}

// =============================================================================
// STORE
// =============================================================================

// Store handles persistence of accounts, balances, and transactions.
// Transactions are append-then-update: the row is created once and only
// its status fields change afterwards; amounts and captured balances
// are immutable.
type Store interface {
	// GetAccount returns the account or ErrAccountNotFound.
	GetAccount(ctx context.Context, id string) (*Account, error)

	// SaveAccount inserts or updates an account.
	SaveAccount(ctx context.Context, a Account) error

	// ListAccounts returns all accounts.
	ListAccounts(ctx context.Context) ([]Account, error)

	// GetBalance returns the balance for an account, or nil if none
	// has been created yet.
	GetBalance(ctx context.Context, accountID string) (*Balance, error)

	// SaveBalance inserts or updates a balance row.
	SaveBalance(ctx context.Context, b Balance) error

	// AppendTransaction inserts a new transaction record.
	// Fails with ErrDuplicateReference on a reference collision.
	AppendTransaction(ctx context.Context, tx Transaction) error

	// UpdateTransaction persists status-field changes for an existing record.
	UpdateTransaction(ctx context.Context, tx Transaction) error

	// GetTransaction returns the transaction or ErrNotFound.
	GetTransaction(ctx context.Context, id string) (*Transaction, error)

	// ListTransactions returns an account's transactions, newest first.
	// limit <= 0 means no limit.
	ListTransactions(ctx context.Context, accountID string, limit int) ([]Transaction, error)

	// ReferenceExists checks if a reference number is already in use.
	ReferenceExists(ctx context.Context, reference string) (bool, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a database transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// NOTIFICATIONS - Fire-and-forget event hook
// =============================================================================

// Event describes a completed ledger operation for delivery to a
// beneficiary (SMS, email, push). Notification failures never affect
// the operation that raised them.
type Event struct {
	Type      string // e.g. "withdrawal_requested", "voucher_issued"
	AccountID string
	Amount    Money
	Reference string
	Detail    string
}

type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// NopNotifier discards all events. The default wiring.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) {}
