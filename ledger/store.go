/*
store.go - Persistence interfaces for the ledger core

PURPOSE:
  Defines the boundary between the domain services and the database.
  Different implementations can use SQLite, PostgreSQL, or in-memory
  storage behind the same contract.

APPEND-ONLY CONTRACT:
  Journal entries have no Update or Delete. The two sanctioned mutations
  are MarkEntryReversed (set atomically with the mirror insert) and
  SetTaxEntryIncluded (exclusion never renumbers or deletes).

CHECK-THEN-ACT:
  Idempotency lookup-then-insert and sequence-number claims are
  check-then-act sequences. Services run them inside WithTx; every Store
  implementation must make WithTx a serializing, atomic unit (memory store:
  mutex + snapshot rollback; SQLite: mutex + SQL transaction + UNIQUE
  indexes as a second line of defense).

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go: SQLite with schema migration

SEE ALSO:
  - journal.go, taxbook.go: Services that drive these interfaces
*/
package ledger

import (
	"context"
	"time"
)

// EntryFilter narrows ListEntries.
// Zero values mean "no constraint" (except Tenant, which is required).
type EntryFilter struct {
	AccountID      AccountID
	CounterpartyID string
	From           time.Time // inclusive, day granularity
	To             time.Time // inclusive
}

// Store handles persistence for accounts, the journal, tax ledgers and
// balance snapshots.
type Store interface {
	// --- Chart of accounts ---

	// SaveAccount inserts a new account. Returns ErrConflict if the
	// tenant already has an account with the same code.
	SaveAccount(ctx context.Context, a Account) error

	// Account returns nil (no error) when absent.
	Account(ctx context.Context, tenant TenantID, id AccountID) (*Account, error)

	// AccountByCode returns nil (no error) when absent.
	AccountByCode(ctx context.Context, tenant TenantID, code string) (*Account, error)

	// Accounts returns the tenant's chart ordered by code.
	Accounts(ctx context.Context, tenant TenantID) ([]Account, error)

	// SetAccountActive toggles the active flag. Chart structure is
	// otherwise immutable once referenced by entries.
	SetAccountActive(ctx context.Context, tenant TenantID, id AccountID, active bool) error

	// --- Journal (append-only) ---

	// AppendEntry persists a journal entry. The entry is immutable from
	// this point on.
	AppendEntry(ctx context.Context, e JournalEntry) error

	// Entry returns nil (no error) when absent.
	Entry(ctx context.Context, tenant TenantID, id EntryID) (*JournalEntry, error)

	// EntryBySource returns the un-reversed entry carrying the source
	// document pair, or nil. Reversed entries release their key.
	EntryBySource(ctx context.Context, tenant TenantID, docType, docID string) (*JournalEntry, error)

	// MarkEntryReversed flips IsReversed on the original entry.
	MarkEntryReversed(ctx context.Context, tenant TenantID, id EntryID) error

	// NextEntryNumber claims the next per-tenant sequence number.
	// Must be called inside WithTx.
	NextEntryNumber(ctx context.Context, tenant TenantID) (int64, error)

	// Entries returns matching entries ordered by (entry_date, entry_number).
	Entries(ctx context.Context, tenant TenantID, f EntryFilter) ([]JournalEntry, error)

	// HasEntries reports whether the account has any postings in [from, to].
	HasEntries(ctx context.Context, tenant TenantID, account AccountID, from, to time.Time) (bool, error)

	// --- Tax ledgers (append-mostly) ---

	AppendTaxEntry(ctx context.Context, e TaxLedgerEntry) error

	// TaxEntry returns nil (no error) when absent.
	TaxEntry(ctx context.Context, tenant TenantID, id TaxEntryID) (*TaxLedgerEntry, error)

	// TaxEntryByDocument returns the included entry referencing the
	// document within the bucket, or nil.
	TaxEntryByDocument(ctx context.Context, tenant TenantID, kind LedgerKind, year, quarter int, docType, docID string) (*TaxLedgerEntry, error)

	// NextTaxEntryNumber claims max(bucket)+1, starting at 1.
	// Must be called inside WithTx.
	NextTaxEntryNumber(ctx context.Context, tenant TenantID, kind LedgerKind, year, quarter int) (int64, error)

	// SetTaxEntryIncluded flips the inclusion flag without renumbering.
	SetTaxEntryIncluded(ctx context.Context, tenant TenantID, id TaxEntryID, included bool) error

	// TaxEntries returns the bucket ordered by entry number.
	TaxEntries(ctx context.Context, tenant TenantID, kind LedgerKind, year, quarter int) ([]TaxLedgerEntry, error)
}

// TxStore wraps Store with an atomic, serialized unit of work.
// If fn returns an error the whole unit rolls back; otherwise it commits.
// Two concurrent WithTx calls never interleave their check-then-act steps.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// SnapshotStore is an optional Store capability: materialized cumulative
// balances used by the aggregator to avoid O(history) opening scans.
// Implementations must invalidate snapshots made stale by backdated
// postings (AppendEntry removes snapshots with AsOf >= entry date for the
// touched accounts), keeping the cache always re-derivable and never
// authoritative.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, s BalanceSnapshot) error

	// LatestSnapshotBefore returns the newest snapshot with AsOf < before,
	// or nil.
	LatestSnapshotBefore(ctx context.Context, tenant TenantID, account AccountID, before time.Time) (*BalanceSnapshot, error)
}
