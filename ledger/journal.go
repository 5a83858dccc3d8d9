/*
journal.go - Append-only double-entry journal

PURPOSE:
  The journal is the immutable source of truth for every balance in the
  system. Every invoice, payroll run, warehouse movement and bank match
  ends up here as a debit/credit pair. Balances are always computed by
  replaying entries - there is no balance column that can drift.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once posted, an entry never changes (IsReversed excepted,
     set atomically with its mirror).
  3. BALANCED: Every entry debits one account and credits another for the
     same positive amount, so total debit turnover always equals total
     credit turnover, by construction.
  4. IDEMPOTENT: Same source document key = same entry (retries absorbed).

CORRECTIONS:
  A wrong entry is never edited. Reverse creates a mirror entry with the
  legs swapped, dated at reversal time; both stay in the journal and the
  net effect on every account is zero.

IDEMPOTENCY:
  Producers retry on transient failures (webhook replays from bank
  reconciliation are the canonical case). When Post sees a non-empty
  source document pair that an un-reversed entry already carries, it
  returns that entry instead of inserting a duplicate. This is NOT an
  error. Reversing an entry releases its key so a corrected document can
  be re-posted.

SEE ALSO:
  - registry.go: Account validation used by Post
  - osv.go: Trial balance computed from this log
  - store.go: Persistence contract
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// reversalDocType is the synthetic source document type carried by reversal
// mirrors; paired with the original entry id it makes Reverse idempotent
// under the same guard as ordinary postings.
const reversalDocType = "reversal"

// Journal posts and reverses double-entry records.
type Journal struct {
	store    TxStore
	registry *Registry
	now      func() time.Time
}

// NewJournal creates a Journal backed by store; registry validates the
// referenced accounts.
func NewJournal(store TxStore, registry *Registry) *Journal {
	return &Journal{store: store, registry: registry, now: time.Now}
}

// WithClock overrides the time source. Reversal mirrors are dated from it.
func (j *Journal) WithClock(now func() time.Time) *Journal {
	j.now = now
	return j
}

// PostInput holds parameters for Post.
type PostInput struct {
	TenantID        TenantID
	EntryDate       time.Time
	DebitAccountID  AccountID
	CreditAccountID AccountID
	Amount          decimal.Decimal
	Description     string

	// Optional idempotency key: producers set both or neither.
	SourceDocumentType string
	SourceDocumentID   string

	CounterpartyID string
	ProjectID      string
	IsAuto         bool
}

// Post validates and appends a journal entry.
//
// Returns the existing entry (no error) when the source document pair is
// already carried by an un-reversed entry. Assigns the per-tenant entry
// number inside the same atomic unit as the insert, so concurrent posts
// cannot collide or leave gaps.
func (j *Journal) Post(ctx context.Context, input PostInput) (*JournalEntry, error) {
	if err := j.validate(ctx, input); err != nil {
		return nil, err
	}

	var result *JournalEntry
	err := j.store.WithTx(ctx, func(s Store) error {
		if input.SourceDocumentType != "" {
			existing, err := s.EntryBySource(ctx, input.TenantID, input.SourceDocumentType, input.SourceDocumentID)
			if err != nil {
				return err
			}
			if existing != nil {
				result = existing
				return nil
			}
		}

		number, err := s.NextEntryNumber(ctx, input.TenantID)
		if err != nil {
			return err
		}

		entry := JournalEntry{
			ID:                 EntryID(uuid.NewString()),
			TenantID:           input.TenantID,
			EntryDate:          Day(input.EntryDate),
			EntryNumber:        number,
			Kind:               EntryNormal,
			DebitAccountID:     input.DebitAccountID,
			CreditAccountID:    input.CreditAccountID,
			Amount:             input.Amount,
			Description:        input.Description,
			SourceDocumentType: input.SourceDocumentType,
			SourceDocumentID:   input.SourceDocumentID,
			CounterpartyID:     input.CounterpartyID,
			ProjectID:          input.ProjectID,
			IsAuto:             input.IsAuto,
			CreatedAt:          j.now().UTC(),
		}
		if err := s.AppendEntry(ctx, entry); err != nil {
			return err
		}
		result = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (j *Journal) validate(ctx context.Context, input PostInput) error {
	if input.TenantID == "" {
		return &ValidationError{Field: "tenant_id", Reason: "required"}
	}
	if input.EntryDate.IsZero() {
		return &ValidationError{Field: "entry_date", Reason: "required"}
	}
	if !input.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: fmt.Sprintf("must be positive, got %s", input.Amount)}
	}
	if input.DebitAccountID == input.CreditAccountID {
		return &ValidationError{Field: "credit_account_id", Reason: "debit and credit accounts must differ"}
	}
	if input.SourceDocumentType != "" && input.SourceDocumentID == "" {
		return &ValidationError{Field: "source_document_id", Reason: "required when source_document_type is set"}
	}

	for _, id := range []AccountID{input.DebitAccountID, input.CreditAccountID} {
		account, err := j.registry.Resolve(ctx, input.TenantID, id)
		if err != nil {
			return err
		}
		if !account.IsActive {
			return &ValidationError{Field: "account", Reason: "account " + account.Code + " is deactivated"}
		}
	}
	return nil
}

// Reverse creates the mirror of an entry and flags the original.
//
// The mirror is an ordinary immutable entry dated at reversal time with the
// debit and credit legs swapped; ReversedEntryID points back at the
// original. Fails with NotFoundError when the entry is unknown and
// ConflictError when it is already reversed. The flag and the mirror insert
// happen in one atomic unit, so a half-reversed entry is never visible.
func (j *Journal) Reverse(ctx context.Context, tenant TenantID, id EntryID) (*JournalEntry, error) {
	var result *JournalEntry
	err := j.store.WithTx(ctx, func(s Store) error {
		original, err := s.Entry(ctx, tenant, id)
		if err != nil {
			return err
		}
		if original == nil {
			return &NotFoundError{Kind: "entry", ID: string(id)}
		}
		if original.IsReversed {
			return &ConflictError{Reason: "entry " + string(id) + " is already reversed"}
		}
		if original.Kind == EntryReversal {
			return &ConflictError{Reason: "entry " + string(id) + " is itself a reversal"}
		}

		number, err := s.NextEntryNumber(ctx, tenant)
		if err != nil {
			return err
		}

		mirror := JournalEntry{
			ID:                 EntryID(uuid.NewString()),
			TenantID:           tenant,
			EntryDate:          Day(j.now()),
			EntryNumber:        number,
			Kind:               EntryReversal,
			DebitAccountID:     original.CreditAccountID,
			CreditAccountID:    original.DebitAccountID,
			Amount:             original.Amount,
			Description:        "Reversal of entry " + string(original.ID) + ": " + original.Description,
			SourceDocumentType: reversalDocType,
			SourceDocumentID:   string(original.ID),
			CounterpartyID:     original.CounterpartyID,
			ProjectID:          original.ProjectID,
			IsAuto:             original.IsAuto,
			ReversedEntryID:    original.ID,
			CreatedAt:          j.now().UTC(),
		}
		if err := s.AppendEntry(ctx, mirror); err != nil {
			return err
		}
		if err := s.MarkEntryReversed(ctx, tenant, original.ID); err != nil {
			return err
		}
		result = &mirror
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns the entry or NotFoundError.
func (j *Journal) Get(ctx context.Context, tenant TenantID, id EntryID) (*JournalEntry, error) {
	entry, err := j.store.Entry(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, &NotFoundError{Kind: "entry", ID: string(id)}
	}
	return entry, nil
}

// ListEntries returns entries matching the filter, ordered by
// (entry_date, entry_number). A pure, restartable read.
func (j *Journal) ListEntries(ctx context.Context, tenant TenantID, f EntryFilter) ([]JournalEntry, error) {
	if tenant == "" {
		return nil, &ValidationError{Field: "tenant_id", Reason: "required"}
	}
	if !f.From.IsZero() && !f.To.IsZero() && Day(f.To).Before(Day(f.From)) {
		return nil, &ValidationError{Field: "date_range", Reason: "end before start"}
	}
	return j.store.Entries(ctx, tenant, f)
}
