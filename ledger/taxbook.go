/*
taxbook.go - VAT purchase/sales books

PURPOSE:
  Independent append-mostly registers used for regulatory filing. Not part
  of double-entry, but they share the posting discipline: entries are
  immutable, retries are absorbed via the document reference, and the
  per-bucket sequence number is claimed inside the same atomic unit as
  the insert.

NUMBERING:
  entry_number is contiguous from 1 within each
  (tenant, year, quarter, kind) bucket. Excluded entries keep their
  number - renumbering a filed book would invalidate issued documents -
  so exclusion only flips a flag.
*/
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaxBook manages the purchase and sales registers.
type TaxBook struct {
	store TxStore
	now   func() time.Time
}

// NewTaxBook creates a TaxBook backed by store.
func NewTaxBook(store TxStore) *TaxBook {
	return &TaxBook{store: store, now: time.Now}
}

// TaxEntryInput holds parameters for AddEntry.
type TaxEntryInput struct {
	TenantID TenantID
	Kind     LedgerKind

	PeriodYear    int
	PeriodQuarter int

	CounterpartyName  string
	CounterpartyTaxID string

	DocumentType   string
	DocumentID     string
	DocumentNumber string
	DocumentDate   time.Time

	TotalAmount   decimal.Decimal
	VATAmount     decimal.Decimal
	VATRate       decimal.Decimal
	OperationCode string
}

// AddEntry registers a row in the bucket, assigning max(bucket)+1 within
// one atomic unit so concurrent inserts produce the contiguous numbers
// 1..N with no gaps or duplicates.
//
// When the document reference is non-empty and the bucket already holds an
// included entry for the same document, that entry is returned instead of
// a duplicate (producer retry, same discipline as Journal.Post).
func (t *TaxBook) AddEntry(ctx context.Context, input TaxEntryInput) (*TaxLedgerEntry, error) {
	if err := validateTaxEntry(input); err != nil {
		return nil, err
	}

	var result *TaxLedgerEntry
	err := t.store.WithTx(ctx, func(s Store) error {
		if input.DocumentType != "" {
			existing, err := s.TaxEntryByDocument(ctx, input.TenantID, input.Kind, input.PeriodYear, input.PeriodQuarter, input.DocumentType, input.DocumentID)
			if err != nil {
				return err
			}
			if existing != nil {
				result = existing
				return nil
			}
		}

		number, err := s.NextTaxEntryNumber(ctx, input.TenantID, input.Kind, input.PeriodYear, input.PeriodQuarter)
		if err != nil {
			return err
		}

		entry := TaxLedgerEntry{
			ID:                TaxEntryID(uuid.NewString()),
			TenantID:          input.TenantID,
			Kind:              input.Kind,
			PeriodYear:        input.PeriodYear,
			PeriodQuarter:     input.PeriodQuarter,
			EntryNumber:       number,
			CounterpartyName:  strings.TrimSpace(input.CounterpartyName),
			CounterpartyTaxID: strings.TrimSpace(input.CounterpartyTaxID),
			DocumentType:      input.DocumentType,
			DocumentID:        input.DocumentID,
			DocumentNumber:    input.DocumentNumber,
			DocumentDate:      Day(input.DocumentDate),
			TotalAmount:       input.TotalAmount,
			VATAmount:         input.VATAmount,
			VATRate:           input.VATRate,
			OperationCode:     input.OperationCode,
			IsIncluded:        true,
			CreatedAt:         t.now().UTC(),
		}
		if err := s.AppendTaxEntry(ctx, entry); err != nil {
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

func validateTaxEntry(input TaxEntryInput) error {
	if input.TenantID == "" {
		return &ValidationError{Field: "tenant_id", Reason: "required"}
	}
	if !input.Kind.Valid() {
		return &ValidationError{Field: "ledger_kind", Reason: "must be purchase or sale"}
	}
	if input.PeriodQuarter < 1 || input.PeriodQuarter > 4 {
		return &ValidationError{Field: "period_quarter", Reason: fmt.Sprintf("must be 1..4, got %d", input.PeriodQuarter)}
	}
	if input.PeriodYear < 2000 {
		return &ValidationError{Field: "period_year", Reason: fmt.Sprintf("implausible year %d", input.PeriodYear)}
	}
	if strings.TrimSpace(input.CounterpartyName) == "" {
		return &ValidationError{Field: "counterparty_name", Reason: "required"}
	}
	if input.TotalAmount.IsNegative() {
		return &ValidationError{Field: "total_amount", Reason: "must not be negative"}
	}
	if input.VATAmount.IsNegative() {
		return &ValidationError{Field: "vat_amount", Reason: "must not be negative"}
	}
	if input.VATAmount.GreaterThan(input.TotalAmount) {
		return &ValidationError{Field: "vat_amount", Reason: "exceeds total amount"}
	}
	if input.DocumentType != "" && input.DocumentID == "" {
		return &ValidationError{Field: "document_id", Reason: "required when document_type is set"}
	}
	return nil
}

// ExcludeEntry flips the inclusion flag. Numbering and history stay put.
// Fails with NotFoundError for an unknown entry; excluding an already
// excluded entry is a no-op.
func (t *TaxBook) ExcludeEntry(ctx context.Context, tenant TenantID, id TaxEntryID) error {
	return t.store.WithTx(ctx, func(s Store) error {
		entry, err := s.TaxEntry(ctx, tenant, id)
		if err != nil {
			return err
		}
		if entry == nil {
			return &NotFoundError{Kind: "tax_entry", ID: string(id)}
		}
		if !entry.IsIncluded {
			return nil
		}
		return s.SetTaxEntryIncluded(ctx, tenant, id, false)
	})
}

// ListForPeriod returns the bucket ordered by entry number, excluded rows
// included (report generation decides how to render them).
func (t *TaxBook) ListForPeriod(ctx context.Context, tenant TenantID, year, quarter int, kind LedgerKind) ([]TaxLedgerEntry, error) {
	if !kind.Valid() {
		return nil, &ValidationError{Field: "ledger_kind", Reason: "must be purchase or sale"}
	}
	if quarter < 1 || quarter > 4 {
		return nil, &ValidationError{Field: "period_quarter", Reason: fmt.Sprintf("must be 1..4, got %d", quarter)}
	}
	return t.store.TaxEntries(ctx, tenant, kind, year, quarter)
}
