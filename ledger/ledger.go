/*
ledger.go - Serialized balance mutation service

PURPOSE:
  The Ledger is the only path through which balances change. It pairs
  every mutation with a transaction record inside one atomic store
  transaction, and serializes operations per account so concurrent
  requests can never both pass a balance check.

CONCURRENCY MODEL:
  A striped mutex keyed by account ID guards each account's
  read-check-mutate-record sequence. Two operations on the same
  account run one after the other; operations on different accounts
  proceed in parallel (modulo stripe collisions, which only cost
  throughput, never correctness).

WHY PAIR MUTATION AND RECORD?
  BalanceBefore/After on each transaction must reflect the exact state
  at mutation time. Doing both in one store transaction under the
  account lock makes the captured values trustworthy and the history
  replayable.

SEE ALSO:
  - balance.go: The invariant-enforcing mutation methods
  - store.go: TxStore providing the atomic unit
*/
package ledger

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
)

// =============================================================================
// LEDGER
// =============================================================================

const lockStripes = 64

type Ledger struct {
	store TxStore
	locks [lockStripes]sync.Mutex
}

func NewLedger(store TxStore) *Ledger {
	return &Ledger{store: store}
}

// Store exposes the underlying store for read-only queries.
func (l *Ledger) Store() TxStore {
	return l.store
}

func (l *Ledger) lockFor(accountID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(accountID))
	return &l.locks[h.Sum32()%lockStripes]
}

// WithAccount runs fn inside a store transaction while holding the
// account's lock. All multi-step operations on one account go through
// here.
func (l *Ledger) WithAccount(ctx context.Context, accountID string, fn func(Store) error) error {
	mu := l.lockFor(accountID)
	mu.Lock()
	defer mu.Unlock()

	return l.store.WithTx(ctx, fn)
}

// Credit adds funds and records the matching transaction, atomically.
// The returned transaction is already COMPLETED.
func (l *Ledger) Credit(ctx context.Context, accountID string, amount Money, txType TransactionType, reference, description string) (*Transaction, error) {
	if !txType.IsCredit() {
		return nil, fmt.Errorf("%w: %s is not a credit type", ErrInvalidTransition, txType)
	}

	var result *Transaction
	err := l.WithAccount(ctx, accountID, func(s Store) error {
		bal, err := loadOrCreateBalance(ctx, s, accountID)
		if err != nil {
			return err
		}

		before := bal.Available
		if err := bal.Credit(amount); err != nil {
			return err
		}

		tx := NewTransaction(accountID, txType, amount, before, bal.Available, reference, description)
		if err := tx.Complete(); err != nil {
			return err
		}

		if err := s.SaveBalance(ctx, *bal); err != nil {
			return err
		}
		if err := s.AppendTransaction(ctx, *tx); err != nil {
			return err
		}
		result = tx
		return nil
	})
	return result, err
}

// Debit removes funds and records the matching transaction, atomically.
// Returns InsufficientBalanceError (no mutation) when funds don't cover
// the amount. The returned transaction is already COMPLETED.
func (l *Ledger) Debit(ctx context.Context, accountID string, amount Money, txType TransactionType, reference, description string) (*Transaction, error) {
	var result *Transaction
	err := l.WithAccount(ctx, accountID, func(s Store) error {
		tx, err := debitAndRecord(ctx, s, accountID, amount, Zero, txType, reference, description)
		if err != nil {
			return err
		}
		if err := tx.Complete(); err != nil {
			return err
		}
		if err := s.UpdateTransaction(ctx, *tx); err != nil {
			return err
		}
		result = tx
		return nil
	})
	return result, err
}

// Balance returns the current balance, creating an empty one for
// accounts that have never transacted.
func (l *Ledger) Balance(ctx context.Context, accountID string) (*Balance, error) {
	bal, err := l.store.GetBalance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return NewBalance(accountID), nil
	}
	return bal, nil
}

// =============================================================================
// SHARED HELPERS - Used by workflow packages inside WithAccount
// =============================================================================

// loadOrCreateBalance fetches the balance row, creating an empty one
// when the account has never transacted.
func loadOrCreateBalance(ctx context.Context, s Store, accountID string) (*Balance, error) {
	bal, err := s.GetBalance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		bal = NewBalance(accountID)
	}
	return bal, nil
}

// LoadOrCreateBalance is the exported form for workflow packages.
func LoadOrCreateBalance(ctx context.Context, s Store, accountID string) (*Balance, error) {
	return loadOrCreateBalance(ctx, s, accountID)
}

// DebitAndRecord debits the balance and appends a PENDING transaction
// capturing BalanceBefore/After, inside the caller's store transaction.
// The caller decides the transaction's eventual status.
func DebitAndRecord(ctx context.Context, s Store, accountID string, amount, fee Money, txType TransactionType, reference, description string) (*Transaction, error) {
	return debitAndRecord(ctx, s, accountID, amount, fee, txType, reference, description)
}

func debitAndRecord(ctx context.Context, s Store, accountID string, amount, fee Money, txType TransactionType, reference, description string) (*Transaction, error) {
	bal, err := loadOrCreateBalance(ctx, s, accountID)
	if err != nil {
		return nil, err
	}

	before := bal.Available
	ok, err := bal.Debit(amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewInsufficientBalanceError(accountID, bal.Available, amount)
	}

	tx := NewTransaction(accountID, txType, amount, before, bal.Available, reference, description)
	tx.Fee = fee

	if err := s.SaveBalance(ctx, *bal); err != nil {
		return nil, err
	}
	if err := s.AppendTransaction(ctx, *tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// CreditAndRecord credits the balance and appends a COMPLETED
// transaction, inside the caller's store transaction. Used for refunds
// issued alongside a request status change.
func CreditAndRecord(ctx context.Context, s Store, accountID string, amount Money, txType TransactionType, reference, description string) (*Transaction, error) {
	if !txType.IsCredit() {
		return nil, fmt.Errorf("%w: %s is not a credit type", ErrInvalidTransition, txType)
	}

	bal, err := loadOrCreateBalance(ctx, s, accountID)
	if err != nil {
		return nil, err
	}

	before := bal.Available
	if err := bal.Credit(amount); err != nil {
		return nil, err
	}

	tx := NewTransaction(accountID, txType, amount, before, bal.Available, reference, description)
	if err := tx.Complete(); err != nil {
		return nil, err
	}

	if err := s.SaveBalance(ctx, *bal); err != nil {
		return nil, err
	}
	if err := s.AppendTransaction(ctx, *tx); err != nil {
		return nil, err
	}
	return tx, nil
}
