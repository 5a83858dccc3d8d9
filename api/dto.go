/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  domain model from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

CONVENTIONS:
  - Amounts travel as decimal strings, never floats.
  - Entry dates use "2006-01-02"; timestamps use RFC3339.
  - Validation happens in handlers; DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/corvetik19-lab/finapp-sub014/ledger"
)

const dateLayout = "2006-01-02"

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// AccountDTO represents a chart-of-accounts node in API responses.
type AccountDTO struct {
	ID         string            `json:"id"`
	Code       string            `json:"code"`
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	ParentID   string            `json:"parent_id,omitempty"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
	IsActive   bool              `json:"is_active"`
	CreatedAt  string            `json:"created_at,omitempty"`
}

func toAccountDTO(a ledger.Account) AccountDTO {
	return AccountDTO{
		ID:         string(a.ID),
		Code:       a.Code,
		Name:       a.Name,
		Type:       string(a.Type),
		ParentID:   string(a.ParentID),
		Dimensions: a.Dimensions,
		IsActive:   a.IsActive,
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
	}
}

// CreateAccountRequest is the request to add an account.
type CreateAccountRequest struct {
	Code       string            `json:"code"`
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	ParentID   string            `json:"parent_id,omitempty"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
}

// ReparentRequest moves an account under a new parent.
type ReparentRequest struct {
	ParentID string `json:"parent_id"`
}

// ImportResultDTO reports the outcome of a chart import.
type ImportResultDTO struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// =============================================================================
// JOURNAL
// =============================================================================

// EntryDTO represents a journal entry in API responses.
type EntryDTO struct {
	ID              string `json:"id"`
	EntryDate       string `json:"entry_date"`
	EntryNumber     int64  `json:"entry_number"`
	Kind            string `json:"kind"`
	DebitAccountID  string `json:"debit_account_id"`
	CreditAccountID string `json:"credit_account_id"`
	Amount          string `json:"amount"`
	Description     string `json:"description,omitempty"`

	SourceDocumentType string `json:"source_document_type,omitempty"`
	SourceDocumentID   string `json:"source_document_id,omitempty"`
	CounterpartyID     string `json:"counterparty_id,omitempty"`
	ProjectID          string `json:"project_id,omitempty"`

	IsAuto          bool   `json:"is_auto"`
	IsReversed      bool   `json:"is_reversed"`
	ReversedEntryID string `json:"reversed_entry_id,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
}

func toEntryDTO(e ledger.JournalEntry) EntryDTO {
	return EntryDTO{
		ID:                 string(e.ID),
		EntryDate:          e.EntryDate.Format(dateLayout),
		EntryNumber:        e.EntryNumber,
		Kind:               string(e.Kind),
		DebitAccountID:     string(e.DebitAccountID),
		CreditAccountID:    string(e.CreditAccountID),
		Amount:             e.Amount.String(),
		Description:        e.Description,
		SourceDocumentType: e.SourceDocumentType,
		SourceDocumentID:   e.SourceDocumentID,
		CounterpartyID:     e.CounterpartyID,
		ProjectID:          e.ProjectID,
		IsAuto:             e.IsAuto,
		IsReversed:         e.IsReversed,
		ReversedEntryID:    string(e.ReversedEntryID),
		CreatedAt:          e.CreatedAt.Format(time.RFC3339),
	}
}

// PostEntryRequest is the request to post a journal entry.
type PostEntryRequest struct {
	EntryDate       string `json:"entry_date"`
	DebitAccountID  string `json:"debit_account_id"`
	CreditAccountID string `json:"credit_account_id"`
	Amount          string `json:"amount"`
	Description     string `json:"description,omitempty"`

	SourceDocumentType string `json:"source_document_type,omitempty"`
	SourceDocumentID   string `json:"source_document_id,omitempty"`
	CounterpartyID     string `json:"counterparty_id,omitempty"`
	ProjectID          string `json:"project_id,omitempty"`
	IsAuto             bool   `json:"is_auto,omitempty"`
}

// =============================================================================
// REPORTS
// =============================================================================

// PeriodBalanceDTO is one row of a trial balance.
type PeriodBalanceDTO struct {
	AccountID   string `json:"account_id,omitempty"`
	AccountCode string `json:"account_code,omitempty"`
	AccountName string `json:"account_name,omitempty"`
	AccountType string `json:"account_type,omitempty"`

	OpeningDebit  string `json:"opening_debit"`
	OpeningCredit string `json:"opening_credit"`

	TurnoverDebit  string `json:"turnover_debit"`
	TurnoverCredit string `json:"turnover_credit"`

	ClosingDebit  string `json:"closing_debit"`
	ClosingCredit string `json:"closing_credit"`
}

func toPeriodBalanceDTO(b ledger.PeriodBalance) PeriodBalanceDTO {
	return PeriodBalanceDTO{
		AccountID:      string(b.AccountID),
		AccountCode:    b.AccountCode,
		AccountName:    b.AccountName,
		AccountType:    string(b.AccountType),
		OpeningDebit:   b.OpeningDebit.String(),
		OpeningCredit:  b.OpeningCredit.String(),
		TurnoverDebit:  b.TurnoverDebit.String(),
		TurnoverCredit: b.TurnoverCredit.String(),
		ClosingDebit:   b.ClosingDebit.String(),
		ClosingCredit:  b.ClosingCredit.String(),
	}
}

// TrialBalanceDTO is the whole turnover sheet for a period.
type TrialBalanceDTO struct {
	From   string             `json:"from"`
	To     string             `json:"to"`
	Rows   []PeriodBalanceDTO `json:"rows"`
	Totals PeriodBalanceDTO   `json:"totals"`
}

// CardRowDTO is one movement on an account card.
type CardRowDTO struct {
	Date                 string `json:"date"`
	EntryID              string `json:"entry_id"`
	EntryNumber          int64  `json:"entry_number"`
	Description          string `json:"description,omitempty"`
	CounterpartyID       string `json:"counterparty_id,omitempty"`
	CorrespondentAccount string `json:"correspondent_account,omitempty"`
	DebitAmount          string `json:"debit_amount"`
	CreditAmount         string `json:"credit_amount"`
	RunningBalance       string `json:"running_balance"`
}

// AccountCardDTO is the movement card for one account and period.
type AccountCardDTO struct {
	Account        AccountDTO   `json:"account"`
	From           string       `json:"from"`
	To             string       `json:"to"`
	OpeningBalance string       `json:"opening_balance"`
	Rows           []CardRowDTO `json:"rows"`
	ClosingBalance string       `json:"closing_balance"`
}

// =============================================================================
// TAX LEDGERS
// =============================================================================

// TaxEntryDTO represents a purchase/sales book row.
type TaxEntryDTO struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	PeriodYear    int    `json:"period_year"`
	PeriodQuarter int    `json:"period_quarter"`
	EntryNumber   int64  `json:"entry_number"`

	CounterpartyName  string `json:"counterparty_name"`
	CounterpartyTaxID string `json:"counterparty_tax_id,omitempty"`

	DocumentType   string `json:"document_type,omitempty"`
	DocumentID     string `json:"document_id,omitempty"`
	DocumentNumber string `json:"document_number,omitempty"`
	DocumentDate   string `json:"document_date,omitempty"`

	TotalAmount   string `json:"total_amount"`
	VATAmount     string `json:"vat_amount"`
	VATRate       string `json:"vat_rate,omitempty"`
	OperationCode string `json:"operation_code,omitempty"`

	IsIncluded bool   `json:"is_included"`
	CreatedAt  string `json:"created_at,omitempty"`
}

func toTaxEntryDTO(e ledger.TaxLedgerEntry) TaxEntryDTO {
	dto := TaxEntryDTO{
		ID:                string(e.ID),
		Kind:              string(e.Kind),
		PeriodYear:        e.PeriodYear,
		PeriodQuarter:     e.PeriodQuarter,
		EntryNumber:       e.EntryNumber,
		CounterpartyName:  e.CounterpartyName,
		CounterpartyTaxID: e.CounterpartyTaxID,
		DocumentType:      e.DocumentType,
		DocumentID:        e.DocumentID,
		DocumentNumber:    e.DocumentNumber,
		TotalAmount:       e.TotalAmount.String(),
		VATAmount:         e.VATAmount.String(),
		VATRate:           e.VATRate.String(),
		OperationCode:     e.OperationCode,
		IsIncluded:        e.IsIncluded,
		CreatedAt:         e.CreatedAt.Format(time.RFC3339),
	}
	if !e.DocumentDate.IsZero() {
		dto.DocumentDate = e.DocumentDate.Format(dateLayout)
	}
	return dto
}

// AddTaxEntryRequest registers a row in a purchase or sales book.
type AddTaxEntryRequest struct {
	CounterpartyName  string `json:"counterparty_name"`
	CounterpartyTaxID string `json:"counterparty_tax_id,omitempty"`

	DocumentType   string `json:"document_type,omitempty"`
	DocumentID     string `json:"document_id,omitempty"`
	DocumentNumber string `json:"document_number,omitempty"`
	DocumentDate   string `json:"document_date,omitempty"`

	TotalAmount   string `json:"total_amount"`
	VATAmount     string `json:"vat_amount"`
	VATRate       string `json:"vat_rate,omitempty"`
	OperationCode string `json:"operation_code,omitempty"`
}

// SnapshotRequest asks the aggregator to materialize balances.
type SnapshotRequest struct {
	AsOf string `json:"as_of"`
}
