/*
handlers.go - HTTP API handlers for the ledger core

PURPOSE:
  Exposes the ledger services via REST. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Accounts:
    GET    /api/accounts                    List the chart
    POST   /api/accounts                    Create account
    GET    /api/accounts/{id}               Get account
    POST   /api/accounts/{id}/deactivate    Deactivate account
    POST   /api/accounts/{id}/reparent      Move under a new parent
    POST   /api/accounts/import             Import chart from CSV body
    POST   /api/accounts/import/default     Import the standard chart

  Journal:
    POST   /api/entries                     Post entry (idempotent by source doc)
    GET    /api/entries                     List entries (filters via query)
    GET    /api/entries/{id}                Get entry
    POST   /api/entries/{id}/reverse        Reverse entry

  Reports:
    GET    /api/reports/trial-balance       Turnover sheet for a period
    GET    /api/reports/accounts/{id}/card  Account movement card

  Tax ledgers:
    GET    /api/tax/{kind}/{year}/{quarter}            List book
    POST   /api/tax/{kind}/{year}/{quarter}            Add row
    POST   /api/tax/entries/{id}/exclude               Exclude row

  Admin:
    POST   /api/admin/snapshots             Materialize balance snapshots

TENANCY:
  Every request carries the tenant in the X-Tenant-ID header. Handlers
  never cross tenants; the services scope every query by it.

ERROR HANDLING:
  Errors map to JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate code, reversal of a reversal)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/corvetik19-lab/finapp-sub014/chart"
	"github.com/corvetik19-lab/finapp-sub014/ledger"
)

// TenantHeader carries the tenant on every request.
const TenantHeader = "X-Tenant-ID"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Registry   *ledger.Registry
	Journal    *ledger.Journal
	Aggregator *ledger.Aggregator
	Cards      *ledger.CardService
	TaxBook    *ledger.TaxBook
	Importer   *chart.Importer

	Log *logrus.Logger
}

// NewHandler wires the handler over one TxStore.
func NewHandler(store ledger.TxStore, log *logrus.Logger) *Handler {
	registry := ledger.NewRegistry(store)
	return &Handler{
		Registry:   registry,
		Journal:    ledger.NewJournal(store, registry),
		Aggregator: ledger.NewAggregator(store),
		Cards:      ledger.NewCardService(store),
		TaxBook:    ledger.NewTaxBook(store),
		Importer:   chart.NewImporter(registry),
		Log:        log,
	}
}

func (h *Handler) tenant(w http.ResponseWriter, r *http.Request) (ledger.TenantID, bool) {
	tenant := ledger.TenantID(r.Header.Get(TenantHeader))
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "missing "+TenantHeader+" header", nil)
		return "", false
	}
	return tenant, true
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns the tenant's chart ordered by code.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	accounts, err := h.Registry.List(r.Context(), tenant)
	if err != nil {
		h.writeDomainError(w, "list accounts", err)
		return
	}
	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount adds an account to the chart.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	account, err := h.Registry.CreateAccount(r.Context(), ledger.CreateAccountInput{
		TenantID:   tenant,
		Code:       req.Code,
		Name:       req.Name,
		Type:       ledger.AccountType(req.Type),
		ParentID:   ledger.AccountID(req.ParentID),
		Dimensions: req.Dimensions,
	})
	if err != nil {
		h.writeDomainError(w, "create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(*account))
}

// GetAccount returns one account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	account, err := h.Registry.Resolve(r.Context(), tenant, ledger.AccountID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "get account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(*account))
}

// DeactivateAccount marks an account inactive.
func (h *Handler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	id := ledger.AccountID(chi.URLParam(r, "id"))
	if err := h.Registry.Deactivate(r.Context(), tenant, id); err != nil {
		h.writeDomainError(w, "deactivate account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReparentAccount moves an account under a new parent.
func (h *Handler) ReparentAccount(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req ReparentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	id := ledger.AccountID(chi.URLParam(r, "id"))
	if err := h.Registry.Reparent(r.Context(), tenant, id, ledger.AccountID(req.ParentID)); err != nil {
		h.writeDomainError(w, "reparent account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportChart loads a chart from a CSV request body.
func (h *Handler) ImportChart(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	defs, err := chart.ReadDefinitions(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chart CSV", err)
		return
	}
	result, err := h.Importer.Import(r.Context(), tenant, defs)
	if err != nil {
		h.writeDomainError(w, "import chart", err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResultDTO{Created: result.Created, Skipped: result.Skipped})
}

// ImportDefaultChart loads the standard chart for an empty tenant.
func (h *Handler) ImportDefaultChart(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	result, err := h.Importer.ImportDefault(r.Context(), tenant)
	if err != nil {
		h.writeDomainError(w, "import default chart", err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResultDTO{Created: result.Created, Skipped: result.Skipped})
}

// =============================================================================
// JOURNAL HANDLERS
// =============================================================================

// PostEntry posts a journal entry. Re-posting the same source document
// returns the already-stored entry.
func (h *Handler) PostEntry(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req PostEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	entryDate, err := time.Parse(dateLayout, req.EntryDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry_date, want YYYY-MM-DD", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err)
		return
	}

	entry, err := h.Journal.Post(r.Context(), ledger.PostInput{
		TenantID:           tenant,
		EntryDate:          entryDate,
		DebitAccountID:     ledger.AccountID(req.DebitAccountID),
		CreditAccountID:    ledger.AccountID(req.CreditAccountID),
		Amount:             amount,
		Description:        req.Description,
		SourceDocumentType: req.SourceDocumentType,
		SourceDocumentID:   req.SourceDocumentID,
		CounterpartyID:     req.CounterpartyID,
		ProjectID:          req.ProjectID,
		IsAuto:             req.IsAuto,
	})
	if err != nil {
		h.writeDomainError(w, "post entry", err)
		return
	}

	// A re-posted source document returns the already-stored entry; the
	// client sees the same body either way.
	writeJSON(w, http.StatusCreated, toEntryDTO(*entry))
}

// GetEntry returns one journal entry.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	entry, err := h.Journal.Get(r.Context(), tenant, ledger.EntryID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "get entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*entry))
}

// ListEntries returns entries matching query filters.
// Query params: account_id, counterparty_id, from, to (YYYY-MM-DD).
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	filter := ledger.EntryFilter{
		AccountID:      ledger.AccountID(r.URL.Query().Get("account_id")),
		CounterpartyID: r.URL.Query().Get("counterparty_id"),
	}
	var err error
	if filter.From, err = parseOptionalDate(r.URL.Query().Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date", err)
		return
	}
	if filter.To, err = parseOptionalDate(r.URL.Query().Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date", err)
		return
	}

	entries, err := h.Journal.ListEntries(r.Context(), tenant, filter)
	if err != nil {
		h.writeDomainError(w, "list entries", err)
		return
	}
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ReverseEntry creates the mirror of an existing entry.
func (h *Handler) ReverseEntry(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	mirror, err := h.Journal.Reverse(r.Context(), tenant, ledger.EntryID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "reverse entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(*mirror))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetTrialBalance returns the turnover sheet for ?from=...&to=...
func (h *Handler) GetTrialBalance(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	period, ok := h.parsePeriod(w, r)
	if !ok {
		return
	}
	tb, err := h.Aggregator.ComputeTrialBalance(r.Context(), tenant, period)
	if err != nil {
		h.writeDomainError(w, "trial balance", err)
		return
	}

	dto := TrialBalanceDTO{
		From:   tb.Period.Start.Format(dateLayout),
		To:     tb.Period.End.Format(dateLayout),
		Rows:   make([]PeriodBalanceDTO, len(tb.Rows)),
		Totals: toPeriodBalanceDTO(tb.Totals),
	}
	for i, row := range tb.Rows {
		dto.Rows[i] = toPeriodBalanceDTO(row)
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetAccountCard returns the movement card for one account.
func (h *Handler) GetAccountCard(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	period, ok := h.parsePeriod(w, r)
	if !ok {
		return
	}
	card, err := h.Cards.GetAccountCard(r.Context(), tenant, ledger.AccountID(chi.URLParam(r, "id")), period)
	if err != nil {
		h.writeDomainError(w, "account card", err)
		return
	}

	dto := AccountCardDTO{
		Account:        toAccountDTO(card.Account),
		From:           card.Period.Start.Format(dateLayout),
		To:             card.Period.End.Format(dateLayout),
		OpeningBalance: card.OpeningBalance.String(),
		Rows:           make([]CardRowDTO, len(card.Rows)),
		ClosingBalance: card.ClosingBalance.String(),
	}
	for i, row := range card.Rows {
		dto.Rows[i] = CardRowDTO{
			Date:                 row.Date.Format(dateLayout),
			EntryID:              string(row.EntryID),
			EntryNumber:          row.EntryNumber,
			Description:          row.Description,
			CounterpartyID:       row.CounterpartyID,
			CorrespondentAccount: row.CorrespondentAccount,
			DebitAmount:          row.DebitAmount.String(),
			CreditAmount:         row.CreditAmount.String(),
			RunningBalance:       row.RunningBalance.String(),
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// CreateSnapshots materializes cumulative balances as of a date.
func (h *Handler) CreateSnapshots(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	asOf, err := time.Parse(dateLayout, req.AsOf)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of, want YYYY-MM-DD", err)
		return
	}
	if err := h.Aggregator.Snapshot(r.Context(), tenant, asOf); err != nil {
		h.writeDomainError(w, "create snapshots", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TAX LEDGER HANDLERS
// =============================================================================

func taxBucketParams(w http.ResponseWriter, r *http.Request) (ledger.LedgerKind, int, int, bool) {
	kind := ledger.LedgerKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, "unknown ledger kind, want purchase or sale", nil)
		return "", 0, 0, false
	}
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err)
		return "", 0, 0, false
	}
	quarter, err := strconv.Atoi(chi.URLParam(r, "quarter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid quarter", err)
		return "", 0, 0, false
	}
	return kind, year, quarter, true
}

// ListTaxEntries returns a book's rows ordered by entry number.
// Excluded rows stay in the listing with is_included=false.
func (h *Handler) ListTaxEntries(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	kind, year, quarter, ok := taxBucketParams(w, r)
	if !ok {
		return
	}
	entries, err := h.TaxBook.ListForPeriod(r.Context(), tenant, year, quarter, kind)
	if err != nil {
		h.writeDomainError(w, "list tax entries", err)
		return
	}
	dtos := make([]TaxEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toTaxEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddTaxEntry registers a row in the purchase or sales book.
func (h *Handler) AddTaxEntry(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	kind, year, quarter, ok := taxBucketParams(w, r)
	if !ok {
		return
	}
	var req AddTaxEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	total, err := decimal.NewFromString(req.TotalAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid total_amount", err)
		return
	}
	vat, err := decimal.NewFromString(req.VATAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid vat_amount", err)
		return
	}
	var rate decimal.Decimal
	if req.VATRate != "" {
		if rate, err = decimal.NewFromString(req.VATRate); err != nil {
			writeError(w, http.StatusBadRequest, "invalid vat_rate", err)
			return
		}
	}
	var docDate time.Time
	if req.DocumentDate != "" {
		if docDate, err = time.Parse(dateLayout, req.DocumentDate); err != nil {
			writeError(w, http.StatusBadRequest, "invalid document_date, want YYYY-MM-DD", err)
			return
		}
	}

	entry, err := h.TaxBook.AddEntry(r.Context(), ledger.TaxEntryInput{
		TenantID:          tenant,
		Kind:              kind,
		PeriodYear:        year,
		PeriodQuarter:     quarter,
		CounterpartyName:  req.CounterpartyName,
		CounterpartyTaxID: req.CounterpartyTaxID,
		DocumentType:      req.DocumentType,
		DocumentID:        req.DocumentID,
		DocumentNumber:    req.DocumentNumber,
		DocumentDate:      docDate,
		TotalAmount:       total,
		VATAmount:         vat,
		VATRate:           rate,
		OperationCode:     req.OperationCode,
	})
	if err != nil {
		h.writeDomainError(w, "add tax entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaxEntryDTO(*entry))
}

// ExcludeTaxEntry flips the inclusion flag; the number stays claimed.
func (h *Handler) ExcludeTaxEntry(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	id := ledger.TaxEntryID(chi.URLParam(r, "id"))
	if err := h.TaxBook.ExcludeEntry(r.Context(), tenant, id); err != nil {
		h.writeDomainError(w, "exclude tax entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) parsePeriod(w http.ResponseWriter, r *http.Request) (ledger.Period, bool) {
	from, err := time.Parse(dateLayout, r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date, want YYYY-MM-DD", err)
		return ledger.Period{}, false
	}
	to, err := time.Parse(dateLayout, r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date, want YYYY-MM-DD", err)
		return ledger.Period{}, false
	}
	period, perr := ledger.NewPeriod(from, to)
	if perr != nil {
		writeError(w, http.StatusBadRequest, "invalid period", perr)
		return ledger.Period{}, false
	}
	return period, true
}

func parseOptionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

// writeDomainError maps domain errors to HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case ledger.IsValidation(err):
		writeError(w, http.StatusBadRequest, op+" failed", err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, op+" failed", err)
	case ledger.IsConflict(err):
		writeError(w, http.StatusConflict, op+" failed", err)
	default:
		h.Log.WithError(err).Error(op + " failed")
		writeError(w, http.StatusInternalServerError, op+" failed", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
