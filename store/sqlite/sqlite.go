/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements every persistence interface (ledger.TxStore,
  payments.RequestStore, payments.VoucherStore, payments.TokenStore,
  grants.GrantStore) using SQLite. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  accounts:            Beneficiary identity and verification flags
  balances:            One row per account, mutated under WithTx
  transactions:        Audit records with captured before/after balances
  withdrawal_requests: Async withdrawal workflow state
  vouchers:            Cash-send vouchers (code + PIN)
  electricity_tokens:  Prepaid electricity purchases
  grant_accounts:      Grant program links and payment schedules

CONCURRENCY:
  Uses sync.RWMutex for thread-safety around the single SQLite writer.
  WithTx holds the write lock for the whole transaction; the tx view
  runs its statements against the open *sql.Tx without re-locking.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better
  concurrency: multiple readers don't block, single writer at a time,
  better crash recovery.

UNIQUENESS:
  Reference numbers and voucher codes carry UNIQUE indexes; violations
  map to ledger.ErrDuplicateReference.

USAGE:
  store, err := sqlite.New("./data/grants.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  l := ledger.NewLedger(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/reliefhub/grant-engine/grants"
	"github.com/reliefhub/grant-engine/ledger"
	"github.com/reliefhub/grant-engine/payments"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// dbtx abstracts *sql.DB and *sql.Tx so the same statement helpers
// serve both paths.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Accounts (beneficiaries)
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		email_verified BOOLEAN DEFAULT FALSE,
		phone_verified BOOLEAN DEFAULT FALSE,
		active BOOLEAN DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	-- Balances (one row per account)
	CREATE TABLE IF NOT EXISTS balances (
		account_id TEXT PRIMARY KEY,
		available TEXT NOT NULL,
		pending TEXT NOT NULL,
		total_received TEXT NOT NULL,
		total_withdrawn TEXT NOT NULL,
		last_updated TEXT NOT NULL
	);

	-- Transactions (audit records; amounts and captured balances are
	-- immutable, only status fields change after insert)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		status TEXT NOT NULL,
		amount TEXT NOT NULL,
		fee TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		reference TEXT,
		description TEXT,
		failure_reason TEXT,
		retry_count INTEGER DEFAULT 0,
		created_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_account
		ON transactions(account_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_status
		ON transactions(status);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_reference
		ON transactions(reference) WHERE reference IS NOT NULL;

	-- Withdrawal requests
	CREATE TABLE IF NOT EXISTS withdrawal_requests (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		fee TEXT NOT NULL,
		net TEXT NOT NULL,
		destination TEXT,
		status TEXT NOT NULL,
		reference TEXT NOT NULL,
		transaction_id TEXT NOT NULL,
		requested_at TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		decided_at TEXT,
		decision_note TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_withdrawals_account
		ON withdrawal_requests(account_id, requested_at DESC);
	CREATE INDEX IF NOT EXISTS idx_withdrawals_status
		ON withdrawal_requests(status);

	-- Cash-send vouchers
	CREATE TABLE IF NOT EXISTS vouchers (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		fee TEXT NOT NULL,
		code TEXT NOT NULL UNIQUE,
		pin TEXT NOT NULL,
		recipient_phone TEXT,
		status TEXT NOT NULL,
		reference TEXT NOT NULL,
		transaction_id TEXT NOT NULL,
		issued_at TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		redeemed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_vouchers_account
		ON vouchers(account_id, issued_at DESC);
	CREATE INDEX IF NOT EXISTS idx_vouchers_status
		ON vouchers(status);

	-- Electricity tokens
	CREATE TABLE IF NOT EXISTS electricity_tokens (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		units TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		meter_number TEXT,
		status TEXT NOT NULL,
		failure_reason TEXT,
		reference TEXT NOT NULL,
		transaction_id TEXT NOT NULL,
		issued_at TEXT NOT NULL,
		expires_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tokens_account
		ON electricity_tokens(account_id, issued_at DESC);

	-- Grant accounts
	CREATE TABLE IF NOT EXISTS grant_accounts (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		grant_type TEXT NOT NULL,
		monthly_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		next_payment_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_grant_accounts_account
		ON grant_accounts(account_id);
	CREATE INDEX IF NOT EXISTS idx_grant_accounts_status
		ON grant_accounts(status, next_payment_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ACCOUNTS (ledger.Store)
// =============================================================================

func (s *Store) GetAccount(ctx context.Context, id string) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccount(ctx, s.db, id)
}

func getAccount(ctx context.Context, db dbtx, id string) (*ledger.Account, error) {
	var a ledger.Account
	var createdAt string

	err := db.QueryRowContext(ctx,
		`SELECT id, name, email, phone, email_verified, phone_verified, active, created_at
		 FROM accounts WHERE id = ?`, id,
	).Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.EmailVerified, &a.PhoneVerified, &a.Active, &createdAt)

	if err == sql.ErrNoRows {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &a, nil
}

func (s *Store) SaveAccount(ctx context.Context, a ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveAccount(ctx, s.db, a)
}

func saveAccount(ctx context.Context, db dbtx, a ledger.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO accounts (id, name, email, phone, email_verified, phone_verified, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			email_verified = excluded.email_verified,
			phone_verified = excluded.phone_verified,
			active = excluded.active
	`

	_, err := db.ExecContext(ctx, query,
		a.ID, a.Name, a.Email, a.Phone, a.EmailVerified, a.PhoneVerified, a.Active,
		a.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAccounts(ctx, s.db)
}

func listAccounts(ctx context.Context, db dbtx) ([]ledger.Account, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, email, phone, email_verified, phone_verified, active, created_at
		 FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		var a ledger.Account
		var createdAt string
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.EmailVerified, &a.PhoneVerified, &a.Active, &createdAt); err != nil {
			return nil, err
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// =============================================================================
// BALANCES (ledger.Store)
// =============================================================================

func (s *Store) GetBalance(ctx context.Context, accountID string) (*ledger.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBalance(ctx, s.db, accountID)
}

func getBalance(ctx context.Context, db dbtx, accountID string) (*ledger.Balance, error) {
	var b ledger.Balance
	var available, pending, received, withdrawn, lastUpdated string

	err := db.QueryRowContext(ctx,
		`SELECT account_id, available, pending, total_received, total_withdrawn, last_updated
		 FROM balances WHERE account_id = ?`, accountID,
	).Scan(&b.AccountID, &available, &pending, &received, &withdrawn, &lastUpdated)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	b.Available = ledger.MustMoney(available)
	b.Pending = ledger.MustMoney(pending)
	b.TotalReceived = ledger.MustMoney(received)
	b.TotalWithdrawn = ledger.MustMoney(withdrawn)
	b.LastUpdated, _ = time.Parse(time.RFC3339, lastUpdated)
	return &b, nil
}

func (s *Store) SaveBalance(ctx context.Context, b ledger.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveBalance(ctx, s.db, b)
}

func saveBalance(ctx context.Context, db dbtx, b ledger.Balance) error {
	query := `
		INSERT INTO balances (account_id, available, pending, total_received, total_withdrawn, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			available = excluded.available,
			pending = excluded.pending,
			total_received = excluded.total_received,
			total_withdrawn = excluded.total_withdrawn,
			last_updated = excluded.last_updated
	`

	_, err := db.ExecContext(ctx, query,
		b.AccountID,
		b.Available.Value.String(),
		b.Pending.Value.String(),
		b.TotalReceived.Value.String(),
		b.TotalWithdrawn.Value.String(),
		b.LastUpdated.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONS (ledger.Store)
// =============================================================================

func (s *Store) AppendTransaction(ctx context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendTransaction(ctx, s.db, tx)
}

func appendTransaction(ctx context.Context, db dbtx, tx ledger.Transaction) error {
	query := `
		INSERT INTO transactions
		(id, account_id, tx_type, status, amount, fee, balance_before, balance_after,
		 reference, description, failure_reason, retry_count, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		tx.ID, tx.AccountID, tx.Type, tx.Status,
		tx.Amount.Value.String(),
		tx.Fee.Value.String(),
		tx.BalanceBefore.Value.String(),
		tx.BalanceAfter.Value.String(),
		nullString(tx.Reference),
		tx.Description,
		tx.FailureReason,
		tx.RetryCount,
		tx.CreatedAt.UTC().Format(time.RFC3339),
		nullTime(tx.CompletedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateReference
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateTransaction(ctx, s.db, tx)
}

func updateTransaction(ctx context.Context, db dbtx, tx ledger.Transaction) error {
	// Only status fields; amounts and captured balances never change.
	query := `
		UPDATE transactions
		SET status = ?, failure_reason = ?, retry_count = ?, completed_at = ?
		WHERE id = ?
	`

	res, err := db.ExecContext(ctx, query,
		tx.Status, tx.FailureReason, tx.RetryCount, nullTime(tx.CompletedAt), tx.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

const transactionColumns = `id, account_id, tx_type, status, amount, fee, balance_before, balance_after,
	reference, description, failure_reason, retry_count, created_at, completed_at`

func (s *Store) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTransaction(ctx, s.db, id)
}

func getTransaction(ctx context.Context, db dbtx, id string) (*ledger.Transaction, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	tx, err := scanTransaction(rows)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID string, limit int) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listTransactions(ctx, s.db, accountID, limit)
}

func listTransactions(ctx context.Context, db dbtx, accountID string, limit int) ([]ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions WHERE account_id = ?
		ORDER BY created_at DESC, id DESC`
	args := []any{accountID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func scanTransaction(rows *sql.Rows) (ledger.Transaction, error) {
	var (
		tx            ledger.Transaction
		amount        string
		fee           string
		before, after string
		reference     sql.NullString
		createdAt     string
		completedAt   sql.NullString
	)

	err := rows.Scan(
		&tx.ID, &tx.AccountID, &tx.Type, &tx.Status,
		&amount, &fee, &before, &after,
		&reference, &tx.Description, &tx.FailureReason, &tx.RetryCount,
		&createdAt, &completedAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Amount = ledger.MustMoney(amount)
	tx.Fee = ledger.MustMoney(fee)
	tx.BalanceBefore = ledger.MustMoney(before)
	tx.BalanceAfter = ledger.MustMoney(after)
	tx.Reference = reference.String
	tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if completedAt.Valid {
		t, _ := time.Parse(time.RFC3339, completedAt.String)
		tx.CompletedAt = &t
	}
	return tx, nil
}

func (s *Store) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return referenceExists(ctx, s.db, reference)
}

func referenceExists(ctx context.Context, db dbtx, reference string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE reference = ?", reference,
	).Scan(&count)
	return count > 0, err
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore)
// =============================================================================

// WithTx executes a function within a database transaction. The write
// lock is held for the duration; the tx view runs its statements on
// the open *sql.Tx without re-locking.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes every operation through the open transaction.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetAccount(ctx context.Context, id string) (*ledger.Account, error) {
	return getAccount(ctx, ts.tx, id)
}

func (ts *txStore) SaveAccount(ctx context.Context, a ledger.Account) error {
	return saveAccount(ctx, ts.tx, a)
}

func (ts *txStore) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	return listAccounts(ctx, ts.tx)
}

func (ts *txStore) GetBalance(ctx context.Context, accountID string) (*ledger.Balance, error) {
	return getBalance(ctx, ts.tx, accountID)
}

func (ts *txStore) SaveBalance(ctx context.Context, b ledger.Balance) error {
	return saveBalance(ctx, ts.tx, b)
}

func (ts *txStore) AppendTransaction(ctx context.Context, tx ledger.Transaction) error {
	return appendTransaction(ctx, ts.tx, tx)
}

func (ts *txStore) UpdateTransaction(ctx context.Context, tx ledger.Transaction) error {
	return updateTransaction(ctx, ts.tx, tx)
}

func (ts *txStore) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	return getTransaction(ctx, ts.tx, id)
}

func (ts *txStore) ListTransactions(ctx context.Context, accountID string, limit int) ([]ledger.Transaction, error) {
	return listTransactions(ctx, ts.tx, accountID, limit)
}

func (ts *txStore) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	return referenceExists(ctx, ts.tx, reference)
}

func (ts *txStore) SaveWithdrawalRequest(ctx context.Context, r payments.WithdrawalRequest) error {
	return saveWithdrawalRequest(ctx, ts.tx, r)
}

func (ts *txStore) GetWithdrawalRequest(ctx context.Context, id string) (*payments.WithdrawalRequest, error) {
	return getWithdrawalRequest(ctx, ts.tx, id)
}

func (ts *txStore) ListWithdrawalRequestsByAccount(ctx context.Context, accountID string) ([]payments.WithdrawalRequest, error) {
	return listWithdrawalRequests(ctx, ts.tx, "account_id", accountID)
}

func (ts *txStore) ListWithdrawalRequestsByStatus(ctx context.Context, status payments.WithdrawalStatus) ([]payments.WithdrawalRequest, error) {
	return listWithdrawalRequests(ctx, ts.tx, "status", string(status))
}

func (ts *txStore) SaveVoucher(ctx context.Context, v payments.Voucher) error {
	return saveVoucher(ctx, ts.tx, v)
}

func (ts *txStore) GetVoucher(ctx context.Context, id string) (*payments.Voucher, error) {
	return getVoucher(ctx, ts.tx, "id", id)
}

func (ts *txStore) GetVoucherByCode(ctx context.Context, code string) (*payments.Voucher, error) {
	return getVoucher(ctx, ts.tx, "code", code)
}

func (ts *txStore) ListVouchersByAccount(ctx context.Context, accountID string) ([]payments.Voucher, error) {
	return listVouchers(ctx, ts.tx, "account_id", accountID)
}

func (ts *txStore) ListVouchersByStatus(ctx context.Context, status payments.VoucherStatus) ([]payments.Voucher, error) {
	return listVouchers(ctx, ts.tx, "status", string(status))
}

func (ts *txStore) VoucherCodeExists(ctx context.Context, code string) (bool, error) {
	return voucherCodeExists(ctx, ts.tx, code)
}

func (ts *txStore) SaveToken(ctx context.Context, t payments.ElectricityToken) error {
	return saveToken(ctx, ts.tx, t)
}

func (ts *txStore) GetToken(ctx context.Context, id string) (*payments.ElectricityToken, error) {
	return getToken(ctx, ts.tx, id)
}

func (ts *txStore) ListTokensByAccount(ctx context.Context, accountID string) ([]payments.ElectricityToken, error) {
	return listTokens(ctx, ts.tx, accountID)
}

func (ts *txStore) TokenExists(ctx context.Context, token string) (bool, error) {
	return tokenExists(ctx, ts.tx, token)
}

func (ts *txStore) SaveGrantAccount(ctx context.Context, ga grants.GrantAccount) error {
	return saveGrantAccount(ctx, ts.tx, ga)
}

func (ts *txStore) GetGrantAccount(ctx context.Context, id string) (*grants.GrantAccount, error) {
	return getGrantAccount(ctx, ts.tx, id)
}

func (ts *txStore) GetGrantAccountsByAccount(ctx context.Context, accountID string) ([]grants.GrantAccount, error) {
	return listGrantAccounts(ctx, ts.tx, "account_id", accountID)
}

func (ts *txStore) ListGrantAccountsByStatus(ctx context.Context, status grants.GrantStatus) ([]grants.GrantAccount, error) {
	return listGrantAccounts(ctx, ts.tx, "status", string(status))
}

// =============================================================================
// WITHDRAWAL REQUESTS (payments.RequestStore)
// =============================================================================

func (s *Store) SaveWithdrawalRequest(ctx context.Context, r payments.WithdrawalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveWithdrawalRequest(ctx, s.db, r)
}

func saveWithdrawalRequest(ctx context.Context, db dbtx, r payments.WithdrawalRequest) error {
	query := `
		INSERT INTO withdrawal_requests
		(id, account_id, amount, fee, net, destination, status, reference,
		 transaction_id, requested_at, expires_at, decided_at, decision_note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			decided_at = excluded.decided_at,
			decision_note = excluded.decision_note
	`

	_, err := db.ExecContext(ctx, query,
		r.ID, r.AccountID,
		r.Amount.Value.String(), r.Fee.Value.String(), r.Net.Value.String(),
		r.Destination, r.Status, r.Reference, r.TransactionID,
		r.RequestedAt.UTC().Format(time.RFC3339),
		r.ExpiresAt.UTC().Format(time.RFC3339),
		nullTime(r.DecidedAt),
		r.DecisionNote,
	)
	if err != nil {
		return fmt.Errorf("failed to save withdrawal request: %w", err)
	}
	return nil
}

func (s *Store) GetWithdrawalRequest(ctx context.Context, id string) (*payments.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getWithdrawalRequest(ctx, s.db, id)
}

const withdrawalColumns = `id, account_id, amount, fee, net, destination, status, reference,
	transaction_id, requested_at, expires_at, decided_at, decision_note`

func getWithdrawalRequest(ctx context.Context, db dbtx, id string) (*payments.WithdrawalRequest, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal request: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	r, err := scanWithdrawalRequest(rows)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListWithdrawalRequestsByAccount(ctx context.Context, accountID string) ([]payments.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listWithdrawalRequests(ctx, s.db, "account_id", accountID)
}

func (s *Store) ListWithdrawalRequestsByStatus(ctx context.Context, status payments.WithdrawalStatus) ([]payments.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listWithdrawalRequests(ctx, s.db, "status", string(status))
}

func listWithdrawalRequests(ctx context.Context, db dbtx, column, value string) ([]payments.WithdrawalRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM withdrawal_requests WHERE %s = ? ORDER BY requested_at DESC`,
		withdrawalColumns, column)

	rows, err := db.QueryContext(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawal requests: %w", err)
	}
	defer rows.Close()

	var out []payments.WithdrawalRequest
	for rows.Next() {
		r, err := scanWithdrawalRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanWithdrawalRequest(rows *sql.Rows) (payments.WithdrawalRequest, error) {
	var (
		r                      payments.WithdrawalRequest
		amount, fee, net       string
		requestedAt, expiresAt string
		decidedAt              sql.NullString
	)

	err := rows.Scan(
		&r.ID, &r.AccountID, &amount, &fee, &net, &r.Destination, &r.Status,
		&r.Reference, &r.TransactionID, &requestedAt, &expiresAt, &decidedAt, &r.DecisionNote,
	)
	if err != nil {
		return r, fmt.Errorf("failed to scan withdrawal request: %w", err)
	}

	r.Amount = ledger.MustMoney(amount)
	r.Fee = ledger.MustMoney(fee)
	r.Net = ledger.MustMoney(net)
	r.RequestedAt, _ = time.Parse(time.RFC3339, requestedAt)
	r.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)
	if decidedAt.Valid {
		t, _ := time.Parse(time.RFC3339, decidedAt.String)
		r.DecidedAt = &t
	}
	return r, nil
}

// =============================================================================
// VOUCHERS (payments.VoucherStore)
// =============================================================================

func (s *Store) SaveVoucher(ctx context.Context, v payments.Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveVoucher(ctx, s.db, v)
}

func saveVoucher(ctx context.Context, db dbtx, v payments.Voucher) error {
	query := `
		INSERT INTO vouchers
		(id, account_id, amount, fee, code, pin, recipient_phone, status,
		 reference, transaction_id, issued_at, expires_at, redeemed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			redeemed_at = excluded.redeemed_at
	`

	_, err := db.ExecContext(ctx, query,
		v.ID, v.AccountID,
		v.Amount.Value.String(), v.Fee.Value.String(),
		v.Code, v.PIN, v.RecipientPhone, v.Status,
		v.Reference, v.TransactionID,
		v.IssuedAt.UTC().Format(time.RFC3339),
		v.ExpiresAt.UTC().Format(time.RFC3339),
		nullTime(v.RedeemedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateReference
		}
		return fmt.Errorf("failed to save voucher: %w", err)
	}
	return nil
}

func (s *Store) GetVoucher(ctx context.Context, id string) (*payments.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getVoucher(ctx, s.db, "id", id)
}

func (s *Store) GetVoucherByCode(ctx context.Context, code string) (*payments.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getVoucher(ctx, s.db, "code", code)
}

const voucherColumns = `id, account_id, amount, fee, code, pin, recipient_phone, status,
	reference, transaction_id, issued_at, expires_at, redeemed_at`

func getVoucher(ctx context.Context, db dbtx, column, value string) (*payments.Voucher, error) {
	query := fmt.Sprintf(`SELECT %s FROM vouchers WHERE %s = ?`, voucherColumns, column)

	rows, err := db.QueryContext(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	v, err := scanVoucher(rows)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) ListVouchersByAccount(ctx context.Context, accountID string) ([]payments.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listVouchers(ctx, s.db, "account_id", accountID)
}

func (s *Store) ListVouchersByStatus(ctx context.Context, status payments.VoucherStatus) ([]payments.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listVouchers(ctx, s.db, "status", string(status))
}

func listVouchers(ctx context.Context, db dbtx, column, value string) ([]payments.Voucher, error) {
	query := fmt.Sprintf(`SELECT %s FROM vouchers WHERE %s = ? ORDER BY issued_at DESC`,
		voucherColumns, column)

	rows, err := db.QueryContext(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("failed to list vouchers: %w", err)
	}
	defer rows.Close()

	var out []payments.Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanVoucher(rows *sql.Rows) (payments.Voucher, error) {
	var (
		v                   payments.Voucher
		amount, fee         string
		issuedAt, expiresAt string
		redeemedAt          sql.NullString
	)

	err := rows.Scan(
		&v.ID, &v.AccountID, &amount, &fee, &v.Code, &v.PIN, &v.RecipientPhone, &v.Status,
		&v.Reference, &v.TransactionID, &issuedAt, &expiresAt, &redeemedAt,
	)
	if err != nil {
		return v, fmt.Errorf("failed to scan voucher: %w", err)
	}

	v.Amount = ledger.MustMoney(amount)
	v.Fee = ledger.MustMoney(fee)
	v.IssuedAt, _ = time.Parse(time.RFC3339, issuedAt)
	v.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)
	if redeemedAt.Valid {
		t, _ := time.Parse(time.RFC3339, redeemedAt.String)
		v.RedeemedAt = &t
	}
	return v, nil
}

func (s *Store) VoucherCodeExists(ctx context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return voucherCodeExists(ctx, s.db, code)
}

func voucherCodeExists(ctx context.Context, db dbtx, code string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vouchers WHERE code = ?", code,
	).Scan(&count)
	return count > 0, err
}

// =============================================================================
// ELECTRICITY TOKENS (payments.TokenStore)
// =============================================================================

func (s *Store) SaveToken(ctx context.Context, t payments.ElectricityToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveToken(ctx, s.db, t)
}

func saveToken(ctx context.Context, db dbtx, t payments.ElectricityToken) error {
	query := `
		INSERT INTO electricity_tokens
		(id, account_id, amount, units, token, meter_number, status, failure_reason,
		 reference, transaction_id, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			failure_reason = excluded.failure_reason
	`

	_, err := db.ExecContext(ctx, query,
		t.ID, t.AccountID,
		t.Amount.Value.String(), t.Units.String(),
		t.Token, t.MeterNumber, t.Status, t.FailureReason,
		t.Reference, t.TransactionID,
		t.IssuedAt.UTC().Format(time.RFC3339),
		t.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateReference
		}
		return fmt.Errorf("failed to save electricity token: %w", err)
	}
	return nil
}

func (s *Store) GetToken(ctx context.Context, id string) (*payments.ElectricityToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getToken(ctx, s.db, id)
}

const tokenColumns = `id, account_id, amount, units, token, meter_number, status, failure_reason,
	reference, transaction_id, issued_at, expires_at`

func getToken(ctx context.Context, db dbtx, id string) (*payments.ElectricityToken, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM electricity_tokens WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get electricity token: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	t, err := scanToken(rows)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListTokensByAccount(ctx context.Context, accountID string) ([]payments.ElectricityToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listTokens(ctx, s.db, accountID)
}

func listTokens(ctx context.Context, db dbtx, accountID string) ([]payments.ElectricityToken, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM electricity_tokens
		 WHERE account_id = ? ORDER BY issued_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list electricity tokens: %w", err)
	}
	defer rows.Close()

	var out []payments.ElectricityToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanToken(rows *sql.Rows) (payments.ElectricityToken, error) {
	var (
		t                   payments.ElectricityToken
		amount, units       string
		issuedAt, expiresAt string
	)

	err := rows.Scan(
		&t.ID, &t.AccountID, &amount, &units, &t.Token, &t.MeterNumber,
		&t.Status, &t.FailureReason, &t.Reference, &t.TransactionID,
		&issuedAt, &expiresAt,
	)
	if err != nil {
		return t, fmt.Errorf("failed to scan electricity token: %w", err)
	}

	t.Amount = ledger.MustMoney(amount)
	t.Units = ledger.MustMoney(units).Value
	t.IssuedAt, _ = time.Parse(time.RFC3339, issuedAt)
	t.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)
	return t, nil
}

func (s *Store) TokenExists(ctx context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tokenExists(ctx, s.db, token)
}

func tokenExists(ctx context.Context, db dbtx, token string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM electricity_tokens WHERE token = ?", token,
	).Scan(&count)
	return count > 0, err
}

// =============================================================================
// GRANT ACCOUNTS (grants.GrantStore)
// =============================================================================

func (s *Store) SaveGrantAccount(ctx context.Context, ga grants.GrantAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveGrantAccount(ctx, s.db, ga)
}

func saveGrantAccount(ctx context.Context, db dbtx, ga grants.GrantAccount) error {
	if ga.CreatedAt.IsZero() {
		ga.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO grant_accounts
		(id, account_id, grant_type, monthly_amount, status, next_payment_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			monthly_amount = excluded.monthly_amount,
			status = excluded.status,
			next_payment_date = excluded.next_payment_date
	`

	_, err := db.ExecContext(ctx, query,
		ga.ID, ga.AccountID, ga.GrantType,
		ga.MonthlyAmount.Value.String(),
		ga.Status,
		ga.NextPaymentDate.Format(time.RFC3339),
		ga.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save grant account: %w", err)
	}
	return nil
}

func (s *Store) GetGrantAccount(ctx context.Context, id string) (*grants.GrantAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getGrantAccount(ctx, s.db, id)
}

const grantAccountColumns = `id, account_id, grant_type, monthly_amount, status, next_payment_date, created_at`

func getGrantAccount(ctx context.Context, db dbtx, id string) (*grants.GrantAccount, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+grantAccountColumns+` FROM grant_accounts WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get grant account: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	ga, err := scanGrantAccount(rows)
	if err != nil {
		return nil, err
	}
	return &ga, nil
}

func (s *Store) GetGrantAccountsByAccount(ctx context.Context, accountID string) ([]grants.GrantAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listGrantAccounts(ctx, s.db, "account_id", accountID)
}

func (s *Store) ListGrantAccountsByStatus(ctx context.Context, status grants.GrantStatus) ([]grants.GrantAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listGrantAccounts(ctx, s.db, "status", string(status))
}

func listGrantAccounts(ctx context.Context, db dbtx, column, value string) ([]grants.GrantAccount, error) {
	query := fmt.Sprintf(`SELECT %s FROM grant_accounts WHERE %s = ? ORDER BY next_payment_date`,
		grantAccountColumns, column)

	rows, err := db.QueryContext(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("failed to list grant accounts: %w", err)
	}
	defer rows.Close()

	var out []grants.GrantAccount
	for rows.Next() {
		ga, err := scanGrantAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ga)
	}
	return out, rows.Err()
}

func scanGrantAccount(rows *sql.Rows) (grants.GrantAccount, error) {
	var (
		ga                         grants.GrantAccount
		monthlyAmount              string
		nextPaymentDate, createdAt string
	)

	err := rows.Scan(
		&ga.ID, &ga.AccountID, &ga.GrantType, &monthlyAmount,
		&ga.Status, &nextPaymentDate, &createdAt,
	)
	if err != nil {
		return ga, fmt.Errorf("failed to scan grant account: %w", err)
	}

	ga.MonthlyAmount = ledger.MustMoney(monthlyAmount)
	ga.NextPaymentDate, _ = time.Parse(time.RFC3339, nextPaymentDate)
	ga.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return ga, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
