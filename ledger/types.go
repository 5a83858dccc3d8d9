/*
Package ledger provides the general-ledger core engine.

PURPOSE:
  This package contains the domain types and algorithms for double-entry
  bookkeeping: the chart of accounts, the append-only journal, period-based
  trial-balance (OSV) aggregation, per-account movement cards, and the VAT
  purchase/sales books.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: A chart-of-accounts node with a type and normal balance side
  - JournalEntry: An immutable double-entry record (one debit, one credit)
  - PeriodBalance: Derived opening/turnover/closing figures for one account
  - TaxLedgerEntry: A purchase/sales book row with gap-free numbering

DESIGN PRINCIPLES:
  1. Immutability: Journal entries are never edited, only reversed
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for tenant/account/entry identifiers
  4. Auditability: Every entry carries its source document reference

SEE ALSO:
  - journal.go: Posting, reversal, idempotency
  - osv.go: Trial balance aggregation
  - store.go: Persistence interfaces
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type AccountID string
type EntryID string
type TaxEntryID string

// =============================================================================
// ACCOUNT - Chart of accounts node
// =============================================================================

type AccountType string

const (
	AccountAsset      AccountType = "asset"
	AccountLiability  AccountType = "liability"
	AccountEquity     AccountType = "equity"
	AccountIncome     AccountType = "income"
	AccountExpense    AccountType = "expense"
	AccountOffBalance AccountType = "off_balance"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountAsset, AccountLiability, AccountEquity, AccountIncome, AccountExpense, AccountOffBalance:
		return true
	}
	return false
}

// BalanceSide is the side on which an account normally carries its balance.
type BalanceSide string

const (
	SideDebit  BalanceSide = "debit"
	SideCredit BalanceSide = "credit"
)

// NormalSide returns the normal balance side for an account type.
// Pure function: asset/expense/off_balance are debit-normal,
// liability/equity/income are credit-normal.
func NormalSide(t AccountType) BalanceSide {
	switch t {
	case AccountLiability, AccountEquity, AccountIncome:
		return SideCredit
	default:
		return SideDebit
	}
}

// Account is a node in a tenant's chart of accounts.
// Accounts are rarely mutated; once referenced by journal entries they are
// deactivated rather than deleted.
type Account struct {
	ID       AccountID
	TenantID TenantID
	Code     string // unique within tenant, e.g. "62.01"
	Name     string
	Type     AccountType
	ParentID AccountID // empty for top-level accounts

	// Dimensions carries arbitrary analytic tags (counterparty, project, ...).
	Dimensions map[string]string

	IsActive  bool
	CreatedAt time.Time
}

// NormalSide returns the account's normal balance side.
func (a Account) NormalSide() BalanceSide { return NormalSide(a.Type) }

// =============================================================================
// JOURNAL ENTRY - Immutable double-entry record
// =============================================================================

// EntryKind distinguishes ordinary postings from reversal mirrors.
type EntryKind string

const (
	EntryNormal   EntryKind = "normal"
	EntryReversal EntryKind = "reversal"
)

// JournalEntry records one double-entry posting: Amount moves from the
// credit account to the debit account on EntryDate.
//
// INVARIANTS:
//   - Amount > 0
//   - DebitAccountID != CreditAccountID
//   - Immutable once posted; IsReversed is the single sanctioned mutation,
//     set atomically with the insertion of the reversal mirror
type JournalEntry struct {
	ID          EntryID
	TenantID    TenantID
	EntryDate   time.Time // day granularity, UTC
	EntryNumber int64     // per-tenant monotonic sequence
	Kind        EntryKind

	DebitAccountID  AccountID
	CreditAccountID AccountID
	Amount          decimal.Decimal
	Description     string

	// Source document reference; the pair (type, id) is the idempotency key
	// for producer retries. Empty type means no idempotency guard.
	SourceDocumentType string
	SourceDocumentID   string

	CounterpartyID string
	ProjectID      string

	IsAuto          bool
	IsReversed      bool
	ReversedEntryID EntryID // on the mirror: points back at the original

	CreatedAt time.Time
}

// Touches reports whether the entry moves value through the account.
func (e JournalEntry) Touches(id AccountID) bool {
	return e.DebitAccountID == id || e.CreditAccountID == id
}

// =============================================================================
// PERIOD BALANCE - Derived trial-balance row (pure read model)
// =============================================================================

// PeriodBalance holds the OSV figures for one account over one period.
// Always derivable from the journal: opening from entries dated before the
// period, turnover from entries inside it.
type PeriodBalance struct {
	AccountID   AccountID
	AccountCode string
	AccountName string
	AccountType AccountType

	PeriodStart time.Time
	PeriodEnd   time.Time

	OpeningDebit  decimal.Decimal
	OpeningCredit decimal.Decimal

	TurnoverDebit  decimal.Decimal
	TurnoverCredit decimal.Decimal

	ClosingDebit  decimal.Decimal
	ClosingCredit decimal.Decimal
}

// TrialBalance is the full OSV report for a tenant and period.
type TrialBalance struct {
	TenantID TenantID
	Period   Period
	Rows     []PeriodBalance
	Totals   PeriodBalance // account fields empty, sums of all rows
}

// =============================================================================
// ACCOUNT CARD - Chronological movement list with running balance
// =============================================================================

// CardRow is one movement on an account card.
type CardRow struct {
	Date        time.Time
	EntryID     EntryID
	EntryNumber int64
	Description string

	CounterpartyID string
	// CorrespondentAccount is the code of the other leg's account.
	CorrespondentAccount string

	DebitAmount  decimal.Decimal
	CreditAmount decimal.Decimal

	// RunningBalance is signed on the account's normal side.
	RunningBalance decimal.Decimal
}

// AccountCard is the movement history for one account over a period.
// Balances are signed on the account's normal side; a negative value means
// the account has flipped to its opposite side.
type AccountCard struct {
	Account        Account
	Period         Period
	OpeningBalance decimal.Decimal
	Rows           []CardRow
	ClosingBalance decimal.Decimal
}

// =============================================================================
// TAX LEDGER ENTRY - Purchase/sales book row
// =============================================================================

// LedgerKind selects the VAT register.
type LedgerKind string

const (
	LedgerPurchase LedgerKind = "purchase"
	LedgerSale     LedgerKind = "sale"
)

// Valid reports whether k is a known ledger kind.
func (k LedgerKind) Valid() bool { return k == LedgerPurchase || k == LedgerSale }

// TaxLedgerEntry is a row in a purchase or sales book.
//
// INVARIANT: EntryNumber is contiguous starting at 1 within each
// (tenant, year, quarter, kind) bucket. Excluded rows keep their number so
// previously issued numbering stays stable.
type TaxLedgerEntry struct {
	ID       TaxEntryID
	TenantID TenantID
	Kind     LedgerKind

	PeriodYear    int
	PeriodQuarter int // 1..4
	EntryNumber   int64

	// Counterparty snapshot: frozen at registration time so later edits to
	// the counterparty record do not rewrite filed books.
	CounterpartyName  string
	CounterpartyTaxID string

	DocumentType   string
	DocumentID     string
	DocumentNumber string
	DocumentDate   time.Time

	TotalAmount   decimal.Decimal
	VATAmount     decimal.Decimal
	VATRate       decimal.Decimal // e.g. 0.20
	OperationCode string

	IsIncluded bool
	CreatedAt  time.Time
}

// =============================================================================
// BALANCE SNAPSHOT - Materialized cumulative totals (pure optimization)
// =============================================================================

// BalanceSnapshot caches the cumulative debit/credit turnover of one account
// over all entries dated on or before AsOf. Never authoritative: the journal
// can always reproduce it, and stores invalidate it when an entry is posted
// at or before AsOf.
type BalanceSnapshot struct {
	TenantID  TenantID
	AccountID AccountID
	AsOf      time.Time
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	CreatedAt time.Time
}
