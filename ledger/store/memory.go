// Package store provides an in-memory implementation of every
// persistence interface, for tests and development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/reliefhub/grant-engine/grants"
	"github.com/reliefhub/grant-engine/ledger"
	"github.com/reliefhub/grant-engine/payments"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	accounts      map[string]ledger.Account
	balances      map[string]ledger.Balance
	transactions  map[string]ledger.Transaction
	txOrder       []string // insertion order for listing
	requests      map[string]payments.WithdrawalRequest
	vouchers      map[string]payments.Voucher
	tokens        map[string]payments.ElectricityToken
	grantAccounts map[string]grants.GrantAccount
	references    map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		accounts:      make(map[string]ledger.Account),
		balances:      make(map[string]ledger.Balance),
		transactions:  make(map[string]ledger.Transaction),
		requests:      make(map[string]payments.WithdrawalRequest),
		vouchers:      make(map[string]payments.Voucher),
		tokens:        make(map[string]payments.ElectricityToken),
		grantAccounts: make(map[string]grants.GrantAccount),
		references:    make(map[string]bool),
	}
}

// =============================================================================
// ledger.Store
// =============================================================================

func (m *Memory) GetAccount(_ context.Context, id string) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAccountLocked(id)
}

func (m *Memory) getAccountLocked(id string) (*ledger.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	return &a, nil
}

func (m *Memory) SaveAccount(_ context.Context, a ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = a
	return nil
}

func (m *Memory) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ledger.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetBalance(_ context.Context, accountID string) (*ledger.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getBalanceLocked(accountID)
}

func (m *Memory) getBalanceLocked(accountID string) (*ledger.Balance, error) {
	b, ok := m.balances[accountID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *Memory) SaveBalance(_ context.Context, b ledger.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[b.AccountID] = b
	return nil
}

func (m *Memory) AppendTransaction(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendTransactionLocked(tx)
}

func (m *Memory) appendTransactionLocked(tx ledger.Transaction) error {
	if tx.Reference != "" && m.references[tx.Reference] {
		return ledger.ErrDuplicateReference
	}
	m.transactions[tx.ID] = tx
	m.txOrder = append(m.txOrder, tx.ID)
	if tx.Reference != "" {
		m.references[tx.Reference] = true
	}
	return nil
}

func (m *Memory) UpdateTransaction(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateTransactionLocked(tx)
}

func (m *Memory) updateTransactionLocked(tx ledger.Transaction) error {
	if _, ok := m.transactions[tx.ID]; !ok {
		return ledger.ErrNotFound
	}
	m.transactions[tx.ID] = tx
	return nil
}

func (m *Memory) GetTransaction(_ context.Context, id string) (*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getTransactionLocked(id)
}

func (m *Memory) getTransactionLocked(id string) (*ledger.Transaction, error) {
	tx, ok := m.transactions[id]
	if !ok {
		return nil, nil
	}
	return &tx, nil
}

func (m *Memory) ListTransactions(_ context.Context, accountID string, limit int) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Transaction
	// Walk newest-first.
	for i := len(m.txOrder) - 1; i >= 0; i-- {
		tx := m.transactions[m.txOrder[i]]
		if tx.AccountID != accountID {
			continue
		}
		out = append(out, tx)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) ReferenceExists(_ context.Context, reference string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.references[reference], nil
}

// =============================================================================
// payments.RequestStore
// =============================================================================

func (m *Memory) SaveWithdrawalRequest(_ context.Context, r payments.WithdrawalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = r
	return nil
}

func (m *Memory) GetWithdrawalRequest(_ context.Context, id string) (*payments.WithdrawalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) ListWithdrawalRequestsByAccount(_ context.Context, accountID string) ([]payments.WithdrawalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []payments.WithdrawalRequest
	for _, r := range m.requests {
		if r.AccountID == accountID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (m *Memory) ListWithdrawalRequestsByStatus(_ context.Context, status payments.WithdrawalStatus) ([]payments.WithdrawalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []payments.WithdrawalRequest
	for _, r := range m.requests {
		if r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

// =============================================================================
// payments.VoucherStore
// =============================================================================

func (m *Memory) SaveVoucher(_ context.Context, v payments.Voucher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vouchers[v.ID] = v
	return nil
}

func (m *Memory) GetVoucher(_ context.Context, id string) (*payments.Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vouchers[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *Memory) GetVoucherByCode(_ context.Context, code string) (*payments.Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.vouchers {
		if v.Code == code {
			v := v
			return &v, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListVouchersByAccount(_ context.Context, accountID string) ([]payments.Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []payments.Voucher
	for _, v := range m.vouchers {
		if v.AccountID == accountID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

func (m *Memory) ListVouchersByStatus(_ context.Context, status payments.VoucherStatus) ([]payments.Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []payments.Voucher
	for _, v := range m.vouchers {
		if v.Status == status {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

func (m *Memory) VoucherCodeExists(_ context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.vouchers {
		if v.Code == code {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// payments.TokenStore
// =============================================================================

func (m *Memory) SaveToken(_ context.Context, t payments.ElectricityToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.ID] = t
	return nil
}

func (m *Memory) GetToken(_ context.Context, id string) (*payments.ElectricityToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *Memory) ListTokensByAccount(_ context.Context, accountID string) ([]payments.ElectricityToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []payments.ElectricityToken
	for _, t := range m.tokens {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

func (m *Memory) TokenExists(_ context.Context, token string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tokens {
		if t.Token == token {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// grants.GrantStore
// =============================================================================

func (m *Memory) SaveGrantAccount(_ context.Context, ga grants.GrantAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grantAccounts[ga.ID] = ga
	return nil
}

func (m *Memory) GetGrantAccount(_ context.Context, id string) (*grants.GrantAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ga, ok := m.grantAccounts[id]
	if !ok {
		return nil, nil
	}
	return &ga, nil
}

func (m *Memory) GetGrantAccountsByAccount(_ context.Context, accountID string) ([]grants.GrantAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []grants.GrantAccount
	for _, ga := range m.grantAccounts {
		if ga.AccountID == accountID {
			out = append(out, ga)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListGrantAccountsByStatus(_ context.Context, status grants.GrantStatus) ([]grants.GrantAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []grants.GrantAccount
	for _, ga := range m.grantAccounts {
		if ga.Status == status {
			out = append(out, ga)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against a transactional view. For the memory
// store this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snap := tm.snapshot()
	view := &txMemoryView{parent: tm.Memory}

	if err := fn(view); err != nil {
		tm.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	accounts      map[string]ledger.Account
	balances      map[string]ledger.Balance
	transactions  map[string]ledger.Transaction
	txOrder       []string
	requests      map[string]payments.WithdrawalRequest
	vouchers      map[string]payments.Voucher
	tokens        map[string]payments.ElectricityToken
	grantAccounts map[string]grants.GrantAccount
	references    map[string]bool
}

func (tm *TxMemory) snapshot() memorySnapshot {
	return memorySnapshot{
		accounts:      copyMap(tm.accounts),
		balances:      copyMap(tm.balances),
		transactions:  copyMap(tm.transactions),
		txOrder:       append([]string{}, tm.txOrder...),
		requests:      copyMap(tm.requests),
		vouchers:      copyMap(tm.vouchers),
		tokens:        copyMap(tm.tokens),
		grantAccounts: copyMap(tm.grantAccounts),
		references:    copyMap(tm.references),
	}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.accounts = s.accounts
	tm.balances = s.balances
	tm.transactions = s.transactions
	tm.txOrder = s.txOrder
	tm.requests = s.requests
	tm.vouchers = s.vouchers
	tm.tokens = s.tokens
	tm.grantAccounts = s.grantAccounts
	tm.references = s.references
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// txMemoryView operates on the parent's maps directly while the
// parent's lock is held by WithTx. Rollback is the snapshot restore.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) GetAccount(_ context.Context, id string) (*ledger.Account, error) {
	return tv.parent.getAccountLocked(id)
}

func (tv *txMemoryView) SaveAccount(_ context.Context, a ledger.Account) error {
	tv.parent.accounts[a.ID] = a
	return nil
}

func (tv *txMemoryView) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	out := make([]ledger.Account, 0, len(tv.parent.accounts))
	for _, a := range tv.parent.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tv *txMemoryView) GetBalance(_ context.Context, accountID string) (*ledger.Balance, error) {
	return tv.parent.getBalanceLocked(accountID)
}

func (tv *txMemoryView) SaveBalance(_ context.Context, b ledger.Balance) error {
	tv.parent.balances[b.AccountID] = b
	return nil
}

func (tv *txMemoryView) AppendTransaction(_ context.Context, tx ledger.Transaction) error {
	return tv.parent.appendTransactionLocked(tx)
}

func (tv *txMemoryView) UpdateTransaction(_ context.Context, tx ledger.Transaction) error {
	return tv.parent.updateTransactionLocked(tx)
}

func (tv *txMemoryView) GetTransaction(_ context.Context, id string) (*ledger.Transaction, error) {
	return tv.parent.getTransactionLocked(id)
}

func (tv *txMemoryView) ListTransactions(_ context.Context, accountID string, limit int) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for i := len(tv.parent.txOrder) - 1; i >= 0; i-- {
		tx := tv.parent.transactions[tv.parent.txOrder[i]]
		if tx.AccountID != accountID {
			continue
		}
		out = append(out, tx)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (tv *txMemoryView) ReferenceExists(_ context.Context, reference string) (bool, error) {
	return tv.parent.references[reference], nil
}

func (tv *txMemoryView) SaveWithdrawalRequest(_ context.Context, r payments.WithdrawalRequest) error {
	tv.parent.requests[r.ID] = r
	return nil
}

func (tv *txMemoryView) GetWithdrawalRequest(_ context.Context, id string) (*payments.WithdrawalRequest, error) {
	r, ok := tv.parent.requests[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (tv *txMemoryView) ListWithdrawalRequestsByAccount(_ context.Context, accountID string) ([]payments.WithdrawalRequest, error) {
	var out []payments.WithdrawalRequest
	for _, r := range tv.parent.requests {
		if r.AccountID == accountID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (tv *txMemoryView) ListWithdrawalRequestsByStatus(_ context.Context, status payments.WithdrawalStatus) ([]payments.WithdrawalRequest, error) {
	var out []payments.WithdrawalRequest
	for _, r := range tv.parent.requests {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (tv *txMemoryView) SaveVoucher(_ context.Context, v payments.Voucher) error {
	tv.parent.vouchers[v.ID] = v
	return nil
}

func (tv *txMemoryView) GetVoucher(_ context.Context, id string) (*payments.Voucher, error) {
	v, ok := tv.parent.vouchers[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (tv *txMemoryView) GetVoucherByCode(_ context.Context, code string) (*payments.Voucher, error) {
	for _, v := range tv.parent.vouchers {
		if v.Code == code {
			v := v
			return &v, nil
		}
	}
	return nil, nil
}

func (tv *txMemoryView) ListVouchersByAccount(_ context.Context, accountID string) ([]payments.Voucher, error) {
	var out []payments.Voucher
	for _, v := range tv.parent.vouchers {
		if v.AccountID == accountID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (tv *txMemoryView) ListVouchersByStatus(_ context.Context, status payments.VoucherStatus) ([]payments.Voucher, error) {
	var out []payments.Voucher
	for _, v := range tv.parent.vouchers {
		if v.Status == status {
			out = append(out, v)
		}
	}
	return out, nil
}

func (tv *txMemoryView) VoucherCodeExists(_ context.Context, code string) (bool, error) {
	for _, v := range tv.parent.vouchers {
		if v.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (tv *txMemoryView) SaveToken(_ context.Context, t payments.ElectricityToken) error {
	tv.parent.tokens[t.ID] = t
	return nil
}

func (tv *txMemoryView) GetToken(_ context.Context, id string) (*payments.ElectricityToken, error) {
	t, ok := tv.parent.tokens[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (tv *txMemoryView) ListTokensByAccount(_ context.Context, accountID string) ([]payments.ElectricityToken, error) {
	var out []payments.ElectricityToken
	for _, t := range tv.parent.tokens {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (tv *txMemoryView) TokenExists(_ context.Context, token string) (bool, error) {
	for _, t := range tv.parent.tokens {
		if t.Token == token {
			return true, nil
		}
	}
	return false, nil
}

func (tv *txMemoryView) SaveGrantAccount(_ context.Context, ga grants.GrantAccount) error {
	tv.parent.grantAccounts[ga.ID] = ga
	return nil
}

func (tv *txMemoryView) GetGrantAccount(_ context.Context, id string) (*grants.GrantAccount, error) {
	ga, ok := tv.parent.grantAccounts[id]
	if !ok {
		return nil, nil
	}
	return &ga, nil
}

func (tv *txMemoryView) GetGrantAccountsByAccount(_ context.Context, accountID string) ([]grants.GrantAccount, error) {
	var out []grants.GrantAccount
	for _, ga := range tv.parent.grantAccounts {
		if ga.AccountID == accountID {
			out = append(out, ga)
		}
	}
	return out, nil
}

func (tv *txMemoryView) ListGrantAccountsByStatus(_ context.Context, status grants.GrantStatus) ([]grants.GrantAccount, error) {
	var out []grants.GrantAccount
	for _, ga := range tv.parent.grantAccounts {
		if ga.Status == status {
			out = append(out, ga)
		}
	}
	return out, nil
}
