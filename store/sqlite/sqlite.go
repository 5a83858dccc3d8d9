/*
sqlite.go - SQLite implementation of ledger.TxStore and ledger.SnapshotStore

PURPOSE:
  Durable storage for the ledger core. One file per deployment, WAL mode,
  no external server.

CONCURRENCY:
  A RWMutex serializes writers at the Go level; WithTx holds the write
  lock for the whole unit and wraps it in a SQL transaction. UNIQUE
  indexes are the second line of defense: even if two processes share the
  database file, duplicate source documents and duplicate sequence
  numbers are rejected by the schema.

SCHEMA NOTES:
  - journal entries carry a partial unique index on the source document
    pair restricted to un-reversed rows, so a reversed entry releases
    its idempotency key.
  - tax entry numbers are unique per (tenant, kind, year, quarter).
  - entry_date is stored as RFC3339 UTC text; lexicographic order equals
    chronological order.
  - amounts are stored as decimal text, never floats.

SEE ALSO:
  - ledger/store.go: The contract this file implements
  - ledger/store/memory.go: The in-memory twin used by most tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/corvetik19-lab/finapp-sub014/ledger"
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id          TEXT NOT NULL,
	tenant_id   TEXT NOT NULL,
	code        TEXT NOT NULL,
	name        TEXT NOT NULL,
	type        TEXT NOT NULL,
	parent_id   TEXT NOT NULL DEFAULT '',
	dimensions  TEXT NOT NULL DEFAULT '',
	is_active   INTEGER NOT NULL DEFAULT 1,
	created_at  TEXT NOT NULL,
	PRIMARY KEY (tenant_id, id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_code
	ON accounts(tenant_id, code);

CREATE TABLE IF NOT EXISTS journal_entries (
	id               TEXT NOT NULL,
	tenant_id        TEXT NOT NULL,
	entry_date       TEXT NOT NULL,
	entry_number     INTEGER NOT NULL,
	kind             TEXT NOT NULL,
	debit_account    TEXT NOT NULL,
	credit_account   TEXT NOT NULL,
	amount           TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	source_type      TEXT NOT NULL DEFAULT '',
	source_id        TEXT NOT NULL DEFAULT '',
	counterparty_id  TEXT NOT NULL DEFAULT '',
	project_id       TEXT NOT NULL DEFAULT '',
	is_auto          INTEGER NOT NULL DEFAULT 0,
	is_reversed      INTEGER NOT NULL DEFAULT 0,
	reversed_entry   TEXT NOT NULL DEFAULT '',
	created_at       TEXT NOT NULL,
	PRIMARY KEY (tenant_id, id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_number
	ON journal_entries(tenant_id, entry_number);
CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_source
	ON journal_entries(tenant_id, source_type, source_id)
	WHERE source_type != '' AND is_reversed = 0;
CREATE INDEX IF NOT EXISTS idx_entries_date
	ON journal_entries(tenant_id, entry_date, entry_number);
CREATE INDEX IF NOT EXISTS idx_entries_debit
	ON journal_entries(tenant_id, debit_account);
CREATE INDEX IF NOT EXISTS idx_entries_credit
	ON journal_entries(tenant_id, credit_account);

CREATE TABLE IF NOT EXISTS tax_entries (
	id                 TEXT NOT NULL,
	tenant_id          TEXT NOT NULL,
	kind               TEXT NOT NULL,
	period_year        INTEGER NOT NULL,
	period_quarter     INTEGER NOT NULL,
	entry_number       INTEGER NOT NULL,
	counterparty_name   TEXT NOT NULL,
	counterparty_tax_id TEXT NOT NULL DEFAULT '',
	document_type      TEXT NOT NULL DEFAULT '',
	document_id        TEXT NOT NULL DEFAULT '',
	document_number    TEXT NOT NULL DEFAULT '',
	document_date      TEXT NOT NULL DEFAULT '',
	total_amount       TEXT NOT NULL,
	vat_amount         TEXT NOT NULL,
	vat_rate           TEXT NOT NULL DEFAULT '',
	operation_code     TEXT NOT NULL DEFAULT '',
	is_included        INTEGER NOT NULL DEFAULT 1,
	created_at         TEXT NOT NULL,
	PRIMARY KEY (tenant_id, id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_tax_number
	ON tax_entries(tenant_id, kind, period_year, period_quarter, entry_number);
CREATE INDEX IF NOT EXISTS idx_tax_bucket
	ON tax_entries(tenant_id, kind, period_year, period_quarter);

CREATE TABLE IF NOT EXISTS balance_snapshots (
	tenant_id   TEXT NOT NULL,
	account_id  TEXT NOT NULL,
	as_of       TEXT NOT NULL,
	debit       TEXT NOT NULL,
	credit      TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	PRIMARY KEY (tenant_id, account_id, as_of)
);
`

// =============================================================================
// STORE
// =============================================================================

// dbtx is the common surface of *sql.DB and *sql.Tx. Internal helpers take
// it so the same code serves both direct calls and WithTx units.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a SQLite-backed ledger.TxStore and ledger.SnapshotStore.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// New opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral database.
func New(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The mutex does the serializing; a second pooled connection would
	// bypass it (and would see an empty database when path is ":memory:").
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func isConstraintErr(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint
}

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseDecimal(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *Store) SaveAccount(ctx context.Context, a ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveAccount(ctx, s.db, a)
}

func saveAccount(ctx context.Context, q dbtx, a ledger.Account) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO accounts (id, tenant_id, code, name, type, parent_id, dimensions, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(a.ID), string(a.TenantID), a.Code, a.Name, string(a.Type),
		string(a.ParentID), encodeDimensions(a.Dimensions), boolToInt(a.IsActive), fmtTime(a.CreatedAt))
	if isConstraintErr(err) {
		return &ledger.ConflictError{Reason: "account code " + a.Code + " already exists"}
	}
	return err
}

const accountColumns = `id, code, name, type, parent_id, dimensions, is_active, created_at`

func scanAccount(row interface{ Scan(...any) error }, tenant ledger.TenantID) (*ledger.Account, error) {
	var (
		a       ledger.Account
		id      string
		parent  string
		typ     string
		dims    string
		active  int
		created string
	)
	err := row.Scan(&id, &a.Code, &a.Name, &typ, &parent, &dims, &active, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.ID = ledger.AccountID(id)
	a.TenantID = tenant
	a.Type = ledger.AccountType(typ)
	a.ParentID = ledger.AccountID(parent)
	a.Dimensions = decodeDimensions(dims)
	a.IsActive = active != 0
	a.CreatedAt = parseTime(created)
	return &a, nil
}

func (s *Store) Account(ctx context.Context, tenant ledger.TenantID, id ledger.AccountID) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccount(ctx, s.db, tenant, id)
}

func getAccount(ctx context.Context, q dbtx, tenant ledger.TenantID, id ledger.AccountID) (*ledger.Account, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE tenant_id = ? AND id = ?`,
		string(tenant), string(id))
	return scanAccount(row, tenant)
}

func (s *Store) AccountByCode(ctx context.Context, tenant ledger.TenantID, code string) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccountByCode(ctx, s.db, tenant, code)
}

func getAccountByCode(ctx context.Context, q dbtx, tenant ledger.TenantID, code string) (*ledger.Account, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE tenant_id = ? AND code = ?`,
		string(tenant), code)
	return scanAccount(row, tenant)
}

func (s *Store) Accounts(ctx context.Context, tenant ledger.TenantID) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAccounts(ctx, s.db, tenant)
}

func listAccounts(ctx context.Context, q dbtx, tenant ledger.TenantID) ([]ledger.Account, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE tenant_id = ? ORDER BY code`,
		string(tenant))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows, tenant)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (s *Store) SetAccountActive(ctx context.Context, tenant ledger.TenantID, id ledger.AccountID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setAccountActive(ctx, s.db, tenant, id, active)
}

func setAccountActive(ctx context.Context, q dbtx, tenant ledger.TenantID, id ledger.AccountID, active bool) error {
	res, err := q.ExecContext(ctx,
		`UPDATE accounts SET is_active = ? WHERE tenant_id = ? AND id = ?`,
		boolToInt(active), string(tenant), string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &ledger.NotFoundError{Kind: "account", ID: string(id)}
	}
	return nil
}

// =============================================================================
// JOURNAL
// =============================================================================

func (s *Store) AppendEntry(ctx context.Context, e ledger.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendEntry(ctx, s.db, e)
}

func appendEntry(ctx context.Context, q dbtx, e ledger.JournalEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO journal_entries (
			id, tenant_id, entry_date, entry_number, kind,
			debit_account, credit_account, amount, description,
			source_type, source_id, counterparty_id, project_id,
			is_auto, is_reversed, reversed_entry, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.ID), string(e.TenantID), fmtTime(e.EntryDate), e.EntryNumber, string(e.Kind),
		string(e.DebitAccountID), string(e.CreditAccountID), e.Amount.String(), e.Description,
		e.SourceDocumentType, e.SourceDocumentID, e.CounterpartyID, e.ProjectID,
		boolToInt(e.IsAuto), boolToInt(e.IsReversed), string(e.ReversedEntryID), fmtTime(e.CreatedAt))
	if isConstraintErr(err) {
		return &ledger.ConflictError{Reason: "source document already posted"}
	}
	if err != nil {
		return err
	}

	// Snapshots dated at or after the posting date are stale now.
	for _, account := range []ledger.AccountID{e.DebitAccountID, e.CreditAccountID} {
		if _, err := q.ExecContext(ctx,
			`DELETE FROM balance_snapshots WHERE tenant_id = ? AND account_id = ? AND as_of >= ?`,
			string(e.TenantID), string(account), fmtTime(e.EntryDate)); err != nil {
			return err
		}
	}
	return nil
}

const entryColumns = `id, entry_date, entry_number, kind, debit_account, credit_account,
	amount, description, source_type, source_id, counterparty_id, project_id,
	is_auto, is_reversed, reversed_entry, created_at`

func scanEntry(row interface{ Scan(...any) error }, tenant ledger.TenantID) (*ledger.JournalEntry, error) {
	var (
		e          ledger.JournalEntry
		id         string
		date       string
		kind       string
		debit      string
		credit     string
		amount     string
		reversedID string
		created    string
		isAuto     int
		isReversed int
	)
	err := row.Scan(&id, &date, &e.EntryNumber, &kind, &debit, &credit,
		&amount, &e.Description, &e.SourceDocumentType, &e.SourceDocumentID,
		&e.CounterpartyID, &e.ProjectID, &isAuto, &isReversed, &reversedID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.ID = ledger.EntryID(id)
	e.TenantID = tenant
	e.EntryDate = parseTime(date)
	e.Kind = ledger.EntryKind(kind)
	e.DebitAccountID = ledger.AccountID(debit)
	e.CreditAccountID = ledger.AccountID(credit)
	e.Amount = parseDecimal(amount)
	e.IsAuto = isAuto != 0
	e.IsReversed = isReversed != 0
	e.ReversedEntryID = ledger.EntryID(reversedID)
	e.CreatedAt = parseTime(created)
	return &e, nil
}

func (s *Store) Entry(ctx context.Context, tenant ledger.TenantID, id ledger.EntryID) (*ledger.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEntry(ctx, s.db, tenant, id)
}

func getEntry(ctx context.Context, q dbtx, tenant ledger.TenantID, id ledger.EntryID) (*ledger.JournalEntry, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM journal_entries WHERE tenant_id = ? AND id = ?`,
		string(tenant), string(id))
	return scanEntry(row, tenant)
}

func (s *Store) EntryBySource(ctx context.Context, tenant ledger.TenantID, docType, docID string) (*ledger.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEntryBySource(ctx, s.db, tenant, docType, docID)
}

func getEntryBySource(ctx context.Context, q dbtx, tenant ledger.TenantID, docType, docID string) (*ledger.JournalEntry, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM journal_entries
		 WHERE tenant_id = ? AND source_type = ? AND source_id = ? AND is_reversed = 0`,
		string(tenant), docType, docID)
	return scanEntry(row, tenant)
}

func (s *Store) MarkEntryReversed(ctx context.Context, tenant ledger.TenantID, id ledger.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markEntryReversed(ctx, s.db, tenant, id)
}

func markEntryReversed(ctx context.Context, q dbtx, tenant ledger.TenantID, id ledger.EntryID) error {
	res, err := q.ExecContext(ctx,
		`UPDATE journal_entries SET is_reversed = 1 WHERE tenant_id = ? AND id = ?`,
		string(tenant), string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &ledger.NotFoundError{Kind: "entry", ID: string(id)}
	}
	return nil
}

func (s *Store) NextEntryNumber(ctx context.Context, tenant ledger.TenantID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nextEntryNumber(ctx, s.db, tenant)
}

func nextEntryNumber(ctx context.Context, q dbtx, tenant ledger.TenantID) (int64, error) {
	var next int64
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(entry_number), 0) + 1 FROM journal_entries WHERE tenant_id = ?`,
		string(tenant)).Scan(&next)
	return next, err
}

func (s *Store) Entries(ctx context.Context, tenant ledger.TenantID, f ledger.EntryFilter) ([]ledger.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEntries(ctx, s.db, tenant, f)
}

func listEntries(ctx context.Context, q dbtx, tenant ledger.TenantID, f ledger.EntryFilter) ([]ledger.JournalEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE tenant_id = ?`
	args := []any{string(tenant)}
	if f.AccountID != "" {
		query += ` AND (debit_account = ? OR credit_account = ?)`
		args = append(args, string(f.AccountID), string(f.AccountID))
	}
	if f.CounterpartyID != "" {
		query += ` AND counterparty_id = ?`
		args = append(args, f.CounterpartyID)
	}
	if !f.From.IsZero() {
		query += ` AND entry_date >= ?`
		args = append(args, fmtTime(ledger.Day(f.From)))
	}
	if !f.To.IsZero() {
		query += ` AND entry_date <= ?`
		args = append(args, fmtTime(ledger.Day(f.To)))
	}
	query += ` ORDER BY entry_date, entry_number`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows, tenant)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

func (s *Store) HasEntries(ctx context.Context, tenant ledger.TenantID, account ledger.AccountID, from, to time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return hasEntries(ctx, s.db, tenant, account, from, to)
}

func hasEntries(ctx context.Context, q dbtx, tenant ledger.TenantID, account ledger.AccountID, from, to time.Time) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM journal_entries
		 WHERE tenant_id = ? AND (debit_account = ? OR credit_account = ?)
		   AND entry_date >= ? AND entry_date <= ?
		 LIMIT 1`,
		string(tenant), string(account), string(account),
		fmtTime(ledger.Day(from)), fmtTime(ledger.Day(to))).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// =============================================================================
// TAX LEDGERS
// =============================================================================

func (s *Store) AppendTaxEntry(ctx context.Context, e ledger.TaxLedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendTaxEntry(ctx, s.db, e)
}

func appendTaxEntry(ctx context.Context, q dbtx, e ledger.TaxLedgerEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO tax_entries (
			id, tenant_id, kind, period_year, period_quarter, entry_number,
			counterparty_name, counterparty_tax_id,
			document_type, document_id, document_number, document_date,
			total_amount, vat_amount, vat_rate, operation_code,
			is_included, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.ID), string(e.TenantID), string(e.Kind), e.PeriodYear, e.PeriodQuarter, e.EntryNumber,
		e.CounterpartyName, e.CounterpartyTaxID,
		e.DocumentType, e.DocumentID, e.DocumentNumber, fmtTime(e.DocumentDate),
		e.TotalAmount.String(), e.VATAmount.String(), e.VATRate.String(), e.OperationCode,
		boolToInt(e.IsIncluded), fmtTime(e.CreatedAt))
	if isConstraintErr(err) {
		return &ledger.ConflictError{Reason: "tax entry number already taken"}
	}
	return err
}

const taxColumns = `id, kind, period_year, period_quarter, entry_number,
	counterparty_name, counterparty_tax_id,
	document_type, document_id, document_number, document_date,
	total_amount, vat_amount, vat_rate, operation_code, is_included, created_at`

func scanTaxEntry(row interface{ Scan(...any) error }, tenant ledger.TenantID) (*ledger.TaxLedgerEntry, error) {
	var (
		e        ledger.TaxLedgerEntry
		id       string
		kind     string
		docDate  string
		created  string
		total    string
		vat      string
		rate     string
		included int
	)
	err := row.Scan(&id, &kind, &e.PeriodYear, &e.PeriodQuarter, &e.EntryNumber,
		&e.CounterpartyName, &e.CounterpartyTaxID,
		&e.DocumentType, &e.DocumentID, &e.DocumentNumber, &docDate,
		&total, &vat, &rate, &e.OperationCode, &included, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.ID = ledger.TaxEntryID(id)
	e.TenantID = tenant
	e.Kind = ledger.LedgerKind(kind)
	e.DocumentDate = parseTime(docDate)
	e.TotalAmount = parseDecimal(total)
	e.VATAmount = parseDecimal(vat)
	e.VATRate = parseDecimal(rate)
	e.IsIncluded = included != 0
	e.CreatedAt = parseTime(created)
	return &e, nil
}

func (s *Store) TaxEntry(ctx context.Context, tenant ledger.TenantID, id ledger.TaxEntryID) (*ledger.TaxLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTaxEntry(ctx, s.db, tenant, id)
}

func getTaxEntry(ctx context.Context, q dbtx, tenant ledger.TenantID, id ledger.TaxEntryID) (*ledger.TaxLedgerEntry, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+taxColumns+` FROM tax_entries WHERE tenant_id = ? AND id = ?`,
		string(tenant), string(id))
	return scanTaxEntry(row, tenant)
}

func (s *Store) TaxEntryByDocument(ctx context.Context, tenant ledger.TenantID, kind ledger.LedgerKind, year, quarter int, docType, docID string) (*ledger.TaxLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTaxEntryByDocument(ctx, s.db, tenant, kind, year, quarter, docType, docID)
}

func getTaxEntryByDocument(ctx context.Context, q dbtx, tenant ledger.TenantID, kind ledger.LedgerKind, year, quarter int, docType, docID string) (*ledger.TaxLedgerEntry, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+taxColumns+` FROM tax_entries
		 WHERE tenant_id = ? AND kind = ? AND period_year = ? AND period_quarter = ?
		   AND document_type = ? AND document_id = ? AND is_included = 1`,
		string(tenant), string(kind), year, quarter, docType, docID)
	return scanTaxEntry(row, tenant)
}

func (s *Store) NextTaxEntryNumber(ctx context.Context, tenant ledger.TenantID, kind ledger.LedgerKind, year, quarter int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nextTaxEntryNumber(ctx, s.db, tenant, kind, year, quarter)
}

func nextTaxEntryNumber(ctx context.Context, q dbtx, tenant ledger.TenantID, kind ledger.LedgerKind, year, quarter int) (int64, error) {
	var next int64
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(entry_number), 0) + 1 FROM tax_entries
		 WHERE tenant_id = ? AND kind = ? AND period_year = ? AND period_quarter = ?`,
		string(tenant), string(kind), year, quarter).Scan(&next)
	return next, err
}

func (s *Store) SetTaxEntryIncluded(ctx context.Context, tenant ledger.TenantID, id ledger.TaxEntryID, included bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setTaxEntryIncluded(ctx, s.db, tenant, id, included)
}

func setTaxEntryIncluded(ctx context.Context, q dbtx, tenant ledger.TenantID, id ledger.TaxEntryID, included bool) error {
	res, err := q.ExecContext(ctx,
		`UPDATE tax_entries SET is_included = ? WHERE tenant_id = ? AND id = ?`,
		boolToInt(included), string(tenant), string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &ledger.NotFoundError{Kind: "tax_entry", ID: string(id)}
	}
	return nil
}

func (s *Store) TaxEntries(ctx context.Context, tenant ledger.TenantID, kind ledger.LedgerKind, year, quarter int) ([]ledger.TaxLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listTaxEntries(ctx, s.db, tenant, kind, year, quarter)
}

func listTaxEntries(ctx context.Context, q dbtx, tenant ledger.TenantID, kind ledger.LedgerKind, year, quarter int) ([]ledger.TaxLedgerEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+taxColumns+` FROM tax_entries
		 WHERE tenant_id = ? AND kind = ? AND period_year = ? AND period_quarter = ?
		 ORDER BY entry_number`,
		string(tenant), string(kind), year, quarter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.TaxLedgerEntry
	for rows.Next() {
		e, err := scanTaxEntry(rows, tenant)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

func (s *Store) SaveSnapshot(ctx context.Context, snap ledger.BalanceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO balance_snapshots (tenant_id, account_id, as_of, debit, credit, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, account_id, as_of) DO UPDATE
		SET debit = excluded.debit, credit = excluded.credit, created_at = excluded.created_at`,
		string(snap.TenantID), string(snap.AccountID), fmtTime(snap.AsOf),
		snap.Debit.String(), snap.Credit.String(), fmtTime(snap.CreatedAt))
	return err
}

func (s *Store) LatestSnapshotBefore(ctx context.Context, tenant ledger.TenantID, account ledger.AccountID, before time.Time) (*ledger.BalanceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var asOf, debit, credit, created string
	err := s.db.QueryRowContext(ctx,
		`SELECT as_of, debit, credit, created_at FROM balance_snapshots
		 WHERE tenant_id = ? AND account_id = ? AND as_of < ?
		 ORDER BY as_of DESC LIMIT 1`,
		string(tenant), string(account), fmtTime(before)).Scan(&asOf, &debit, &credit, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ledger.BalanceSnapshot{
		TenantID:  tenant,
		AccountID: account,
		AsOf:      parseTime(asOf),
		Debit:     parseDecimal(debit),
		Credit:    parseDecimal(credit),
		CreatedAt: parseTime(created),
	}, nil
}

// =============================================================================
// TRANSACTIONAL UNIT
// =============================================================================

// WithTx runs fn inside one SQL transaction while holding the write lock,
// so check-then-act sequences see a stable view and commit atomically.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&txStore{q: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// txStore exposes a transaction as a ledger.Store without re-locking.
type txStore struct {
	q dbtx
}

func (t *txStore) SaveAccount(ctx context.Context, a ledger.Account) error {
	return saveAccount(ctx, t.q, a)
}

func (t *txStore) Account(ctx context.Context, tenant ledger.TenantID, id ledger.AccountID) (*ledger.Account, error) {
	return getAccount(ctx, t.q, tenant, id)
}

func (t *txStore) AccountByCode(ctx context.Context, tenant ledger.TenantID, code string) (*ledger.Account, error) {
	return getAccountByCode(ctx, t.q, tenant, code)
}

func (t *txStore) Accounts(ctx context.Context, tenant ledger.TenantID) ([]ledger.Account, error) {
	return listAccounts(ctx, t.q, tenant)
}

func (t *txStore) SetAccountActive(ctx context.Context, tenant ledger.TenantID, id ledger.AccountID, active bool) error {
	return setAccountActive(ctx, t.q, tenant, id, active)
}

func (t *txStore) AppendEntry(ctx context.Context, e ledger.JournalEntry) error {
	return appendEntry(ctx, t.q, e)
}

func (t *txStore) Entry(ctx context.Context, tenant ledger.TenantID, id ledger.EntryID) (*ledger.JournalEntry, error) {
	return getEntry(ctx, t.q, tenant, id)
}

func (t *txStore) EntryBySource(ctx context.Context, tenant ledger.TenantID, docType, docID string) (*ledger.JournalEntry, error) {
	return getEntryBySource(ctx, t.q, tenant, docType, docID)
}

func (t *txStore) MarkEntryReversed(ctx context.Context, tenant ledger.TenantID, id ledger.EntryID) error {
	return markEntryReversed(ctx, t.q, tenant, id)
}

func (t *txStore) NextEntryNumber(ctx context.Context, tenant ledger.TenantID) (int64, error) {
	return nextEntryNumber(ctx, t.q, tenant)
}

func (t *txStore) Entries(ctx context.Context, tenant ledger.TenantID, f ledger.EntryFilter) ([]ledger.JournalEntry, error) {
	return listEntries(ctx, t.q, tenant, f)
}

func (t *txStore) HasEntries(ctx context.Context, tenant ledger.TenantID, account ledger.AccountID, from, to time.Time) (bool, error) {
	return hasEntries(ctx, t.q, tenant, account, from, to)
}

func (t *txStore) AppendTaxEntry(ctx context.Context, e ledger.TaxLedgerEntry) error {
	return appendTaxEntry(ctx, t.q, e)
}

func (t *txStore) TaxEntry(ctx context.Context, tenant ledger.TenantID, id ledger.TaxEntryID) (*ledger.TaxLedgerEntry, error) {
	return getTaxEntry(ctx, t.q, tenant, id)
}

func (t *txStore) TaxEntryByDocument(ctx context.Context, tenant ledger.TenantID, kind ledger.LedgerKind, year, quarter int, docType, docID string) (*ledger.TaxLedgerEntry, error) {
	return getTaxEntryByDocument(ctx, t.q, tenant, kind, year, quarter, docType, docID)
}

func (t *txStore) NextTaxEntryNumber(ctx context.Context, tenant ledger.TenantID, kind ledger.LedgerKind, year, quarter int) (int64, error) {
	return nextTaxEntryNumber(ctx, t.q, tenant, kind, year, quarter)
}

func (t *txStore) SetTaxEntryIncluded(ctx context.Context, tenant ledger.TenantID, id ledger.TaxEntryID, included bool) error {
	return setTaxEntryIncluded(ctx, t.q, tenant, id, included)
}

func (t *txStore) TaxEntries(ctx context.Context, tenant ledger.TenantID, kind ledger.LedgerKind, year, quarter int) ([]ledger.TaxLedgerEntry, error) {
	return listTaxEntries(ctx, t.q, tenant, kind, year, quarter)
}
