// Package store provides the in-memory Store implementation (tests/dev).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/corvetik19-lab/finapp-sub014/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation of ledger.TxStore
// =============================================================================

// Memory keeps everything in maps under one RWMutex. WithTx serializes by
// holding the write lock for the whole unit and rolling back to a deep copy
// on error, so check-then-act sequences (idempotency lookups, sequence
// claims) never interleave.
type Memory struct {
	mu    sync.RWMutex
	state *memoryState
}

type taxBucket struct {
	Tenant  ledger.TenantID
	Kind    ledger.LedgerKind
	Year    int
	Quarter int
}

type sourceKey struct {
	Tenant  ledger.TenantID
	DocType string
	DocID   string
}

type snapKey struct {
	Tenant  ledger.TenantID
	Account ledger.AccountID
}

type memoryState struct {
	accounts     map[ledger.TenantID]map[ledger.AccountID]ledger.Account
	accountCodes map[ledger.TenantID]map[string]ledger.AccountID

	entries  map[ledger.TenantID][]ledger.JournalEntry // sorted by (date, number)
	bySource map[sourceKey]ledger.EntryID              // un-reversed entries only
	entrySeq map[ledger.TenantID]int64

	taxEntries map[taxBucket][]ledger.TaxLedgerEntry // sorted by number

	snapshots map[snapKey][]ledger.BalanceSnapshot // sorted by AsOf
}

func newState() *memoryState {
	return &memoryState{
		accounts:     make(map[ledger.TenantID]map[ledger.AccountID]ledger.Account),
		accountCodes: make(map[ledger.TenantID]map[string]ledger.AccountID),
		entries:      make(map[ledger.TenantID][]ledger.JournalEntry),
		bySource:     make(map[sourceKey]ledger.EntryID),
		entrySeq:     make(map[ledger.TenantID]int64),
		taxEntries:   make(map[taxBucket][]ledger.TaxLedgerEntry),
		snapshots:    make(map[snapKey][]ledger.BalanceSnapshot),
	}
}

func NewMemory() *Memory {
	return &Memory{state: newState()}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (m *Memory) SaveAccount(_ context.Context, a ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.saveAccount(a)
}

func (s *memoryState) saveAccount(a ledger.Account) error {
	if s.accounts[a.TenantID] == nil {
		s.accounts[a.TenantID] = make(map[ledger.AccountID]ledger.Account)
		s.accountCodes[a.TenantID] = make(map[string]ledger.AccountID)
	}
	if existingID, ok := s.accountCodes[a.TenantID][a.Code]; ok && existingID != a.ID {
		return &ledger.ConflictError{Reason: "account code " + a.Code + " already exists"}
	}
	s.accounts[a.TenantID][a.ID] = a
	s.accountCodes[a.TenantID][a.Code] = a.ID
	return nil
}

func (m *Memory) Account(_ context.Context, tenant ledger.TenantID, id ledger.AccountID) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.account(tenant, id), nil
}

func (s *memoryState) account(tenant ledger.TenantID, id ledger.AccountID) *ledger.Account {
	if a, ok := s.accounts[tenant][id]; ok {
		copy := a
		return &copy
	}
	return nil
}

func (m *Memory) AccountByCode(_ context.Context, tenant ledger.TenantID, code string) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.accountByCode(tenant, code), nil
}

func (s *memoryState) accountByCode(tenant ledger.TenantID, code string) *ledger.Account {
	if id, ok := s.accountCodes[tenant][code]; ok {
		return s.account(tenant, id)
	}
	return nil
}

func (m *Memory) Accounts(_ context.Context, tenant ledger.TenantID) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.accountList(tenant), nil
}

func (s *memoryState) accountList(tenant ledger.TenantID) []ledger.Account {
	result := make([]ledger.Account, 0, len(s.accounts[tenant]))
	for _, a := range s.accounts[tenant] {
		result = append(result, a)
	}
	sort.Slice(result, func(i, k int) bool { return result[i].Code < result[k].Code })
	return result
}

func (m *Memory) SetAccountActive(_ context.Context, tenant ledger.TenantID, id ledger.AccountID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.setAccountActive(tenant, id, active)
}

func (s *memoryState) setAccountActive(tenant ledger.TenantID, id ledger.AccountID, active bool) error {
	a, ok := s.accounts[tenant][id]
	if !ok {
		return &ledger.NotFoundError{Kind: "account", ID: string(id)}
	}
	a.IsActive = active
	s.accounts[tenant][id] = a
	return nil
}

// =============================================================================
// JOURNAL
// =============================================================================

func (m *Memory) AppendEntry(_ context.Context, e ledger.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.appendEntry(e)
}

func (s *memoryState) appendEntry(e ledger.JournalEntry) error {
	if e.SourceDocumentType != "" {
		k := sourceKey{Tenant: e.TenantID, DocType: e.SourceDocumentType, DocID: e.SourceDocumentID}
		if _, exists := s.bySource[k]; exists {
			return &ledger.ConflictError{Reason: "source document already posted"}
		}
		s.bySource[k] = e.ID
	}

	list := s.entries[e.TenantID]
	// Binary search for the insertion point keeps the slice ordered by
	// (entry_date, entry_number).
	i := sort.Search(len(list), func(i int) bool {
		if !list[i].EntryDate.Equal(e.EntryDate) {
			return list[i].EntryDate.After(e.EntryDate)
		}
		return list[i].EntryNumber > e.EntryNumber
	})
	list = append(list, ledger.JournalEntry{})
	copy(list[i+1:], list[i:])
	list[i] = e
	s.entries[e.TenantID] = list

	// A posting dated at or before a snapshot's AsOf makes it stale.
	s.invalidateSnapshots(e.TenantID, e.DebitAccountID, e.EntryDate)
	s.invalidateSnapshots(e.TenantID, e.CreditAccountID, e.EntryDate)
	return nil
}

func (s *memoryState) invalidateSnapshots(tenant ledger.TenantID, account ledger.AccountID, entryDate time.Time) {
	k := snapKey{Tenant: tenant, Account: account}
	snaps := s.snapshots[k]
	kept := snaps[:0]
	for _, snap := range snaps {
		if snap.AsOf.Before(entryDate) {
			kept = append(kept, snap)
		}
	}
	s.snapshots[k] = kept
}

func (m *Memory) Entry(_ context.Context, tenant ledger.TenantID, id ledger.EntryID) (*ledger.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.entry(tenant, id), nil
}

func (s *memoryState) entry(tenant ledger.TenantID, id ledger.EntryID) *ledger.JournalEntry {
	for i := range s.entries[tenant] {
		if s.entries[tenant][i].ID == id {
			copy := s.entries[tenant][i]
			return &copy
		}
	}
	return nil
}

func (m *Memory) EntryBySource(_ context.Context, tenant ledger.TenantID, docType, docID string) (*ledger.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.entryBySource(tenant, docType, docID), nil
}

func (s *memoryState) entryBySource(tenant ledger.TenantID, docType, docID string) *ledger.JournalEntry {
	id, ok := s.bySource[sourceKey{Tenant: tenant, DocType: docType, DocID: docID}]
	if !ok {
		return nil
	}
	return s.entry(tenant, id)
}

func (m *Memory) MarkEntryReversed(_ context.Context, tenant ledger.TenantID, id ledger.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.markEntryReversed(tenant, id)
}

func (s *memoryState) markEntryReversed(tenant ledger.TenantID, id ledger.EntryID) error {
	for i := range s.entries[tenant] {
		e := &s.entries[tenant][i]
		if e.ID != id {
			continue
		}
		e.IsReversed = true
		if e.SourceDocumentType != "" {
			// The key is released: a corrected document may be re-posted.
			delete(s.bySource, sourceKey{Tenant: tenant, DocType: e.SourceDocumentType, DocID: e.SourceDocumentID})
		}
		return nil
	}
	return &ledger.NotFoundError{Kind: "entry", ID: string(id)}
}

func (m *Memory) NextEntryNumber(_ context.Context, tenant ledger.TenantID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.nextEntryNumber(tenant), nil
}

func (s *memoryState) nextEntryNumber(tenant ledger.TenantID) int64 {
	s.entrySeq[tenant]++
	return s.entrySeq[tenant]
}

func (m *Memory) Entries(_ context.Context, tenant ledger.TenantID, f ledger.EntryFilter) ([]ledger.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.entryList(tenant, f), nil
}

func (s *memoryState) entryList(tenant ledger.TenantID, f ledger.EntryFilter) []ledger.JournalEntry {
	var result []ledger.JournalEntry
	for _, e := range s.entries[tenant] {
		if f.AccountID != "" && !e.Touches(f.AccountID) {
			continue
		}
		if f.CounterpartyID != "" && e.CounterpartyID != f.CounterpartyID {
			continue
		}
		if !f.From.IsZero() && e.EntryDate.Before(ledger.Day(f.From)) {
			continue
		}
		if !f.To.IsZero() && e.EntryDate.After(ledger.Day(f.To)) {
			continue
		}
		result = append(result, e)
	}
	return result
}

func (m *Memory) HasEntries(_ context.Context, tenant ledger.TenantID, account ledger.AccountID, from, to time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.state.entryList(tenant, ledger.EntryFilter{AccountID: account, From: from, To: to})) > 0, nil
}

// =============================================================================
// TAX LEDGERS
// =============================================================================

func (m *Memory) AppendTaxEntry(_ context.Context, e ledger.TaxLedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.appendTaxEntry(e)
}

func (s *memoryState) appendTaxEntry(e ledger.TaxLedgerEntry) error {
	k := taxBucket{Tenant: e.TenantID, Kind: e.Kind, Year: e.PeriodYear, Quarter: e.PeriodQuarter}
	for _, existing := range s.taxEntries[k] {
		if existing.EntryNumber == e.EntryNumber {
			return &ledger.ConflictError{Reason: "tax entry number already taken"}
		}
	}
	list := append(s.taxEntries[k], e)
	sort.Slice(list, func(i, j int) bool { return list[i].EntryNumber < list[j].EntryNumber })
	s.taxEntries[k] = list
	return nil
}

func (m *Memory) TaxEntry(_ context.Context, tenant ledger.TenantID, id ledger.TaxEntryID) (*ledger.TaxLedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.taxEntry(tenant, id), nil
}

func (s *memoryState) taxEntry(tenant ledger.TenantID, id ledger.TaxEntryID) *ledger.TaxLedgerEntry {
	for bucket, list := range s.taxEntries {
		if bucket.Tenant != tenant {
			continue
		}
		for i := range list {
			if list[i].ID == id {
				copy := list[i]
				return &copy
			}
		}
	}
	return nil
}

func (m *Memory) TaxEntryByDocument(_ context.Context, tenant ledger.TenantID, kind ledger.LedgerKind, year, quarter int, docType, docID string) (*ledger.TaxLedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.taxEntryByDocument(tenant, kind, year, quarter, docType, docID), nil
}

func (s *memoryState) taxEntryByDocument(tenant ledger.TenantID, kind ledger.LedgerKind, year, quarter int, docType, docID string) *ledger.TaxLedgerEntry {
	k := taxBucket{Tenant: tenant, Kind: kind, Year: year, Quarter: quarter}
	for i := range s.taxEntries[k] {
		e := s.taxEntries[k][i]
		if e.IsIncluded && e.DocumentType == docType && e.DocumentID == docID {
			copy := e
			return &copy
		}
	}
	return nil
}

func (m *Memory) NextTaxEntryNumber(_ context.Context, tenant ledger.TenantID, kind ledger.LedgerKind, year, quarter int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.nextTaxEntryNumber(tenant, kind, year, quarter), nil
}

func (s *memoryState) nextTaxEntryNumber(tenant ledger.TenantID, kind ledger.LedgerKind, year, quarter int) int64 {
	k := taxBucket{Tenant: tenant, Kind: kind, Year: year, Quarter: quarter}
	var max int64
	for _, e := range s.taxEntries[k] {
		if e.EntryNumber > max {
			max = e.EntryNumber
		}
	}
	return max + 1
}

func (m *Memory) SetTaxEntryIncluded(_ context.Context, tenant ledger.TenantID, id ledger.TaxEntryID, included bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.setTaxEntryIncluded(tenant, id, included)
}

func (s *memoryState) setTaxEntryIncluded(tenant ledger.TenantID, id ledger.TaxEntryID, included bool) error {
	for bucket, list := range s.taxEntries {
		if bucket.Tenant != tenant {
			continue
		}
		for i := range list {
			if list[i].ID == id {
				list[i].IsIncluded = included
				return nil
			}
		}
	}
	return &ledger.NotFoundError{Kind: "tax_entry", ID: string(id)}
}

func (m *Memory) TaxEntries(_ context.Context, tenant ledger.TenantID, kind ledger.LedgerKind, year, quarter int) ([]ledger.TaxLedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.taxEntryList(tenant, kind, year, quarter), nil
}

func (s *memoryState) taxEntryList(tenant ledger.TenantID, kind ledger.LedgerKind, year, quarter int) []ledger.TaxLedgerEntry {
	k := taxBucket{Tenant: tenant, Kind: kind, Year: year, Quarter: quarter}
	result := make([]ledger.TaxLedgerEntry, len(s.taxEntries[k]))
	copy(result, s.taxEntries[k])
	return result
}

// =============================================================================
// SNAPSHOTS (ledger.SnapshotStore)
// =============================================================================

func (m *Memory) SaveSnapshot(_ context.Context, snap ledger.BalanceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.saveSnapshot(snap)
}

func (s *memoryState) saveSnapshot(snap ledger.BalanceSnapshot) error {
	k := snapKey{Tenant: snap.TenantID, Account: snap.AccountID}
	list := s.snapshots[k]
	for i := range list {
		if list[i].AsOf.Equal(snap.AsOf) {
			list[i] = snap
			return nil
		}
	}
	list = append(list, snap)
	sort.Slice(list, func(i, j int) bool { return list[i].AsOf.Before(list[j].AsOf) })
	s.snapshots[k] = list
	return nil
}

func (m *Memory) LatestSnapshotBefore(_ context.Context, tenant ledger.TenantID, account ledger.AccountID, before time.Time) (*ledger.BalanceSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.latestSnapshotBefore(tenant, account, before), nil
}

func (s *memoryState) latestSnapshotBefore(tenant ledger.TenantID, account ledger.AccountID, before time.Time) *ledger.BalanceSnapshot {
	list := s.snapshots[snapKey{Tenant: tenant, Account: account}]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].AsOf.Before(before) {
			copy := list[i]
			return &copy
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL UNIT (ledger.TxStore)
// =============================================================================

// WithTx holds the write lock for the whole unit of work. On error the
// state is rolled back to a deep copy taken at the start.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := m.state.deepCopy()
	if err := fn(&txView{state: m.state}); err != nil {
		m.state = saved
		return err
	}
	return nil
}

func (s *memoryState) deepCopy() *memoryState {
	c := newState()
	for tenant, accounts := range s.accounts {
		c.accounts[tenant] = make(map[ledger.AccountID]ledger.Account, len(accounts))
		for id, a := range accounts {
			c.accounts[tenant][id] = a
		}
	}
	for tenant, codes := range s.accountCodes {
		c.accountCodes[tenant] = make(map[string]ledger.AccountID, len(codes))
		for code, id := range codes {
			c.accountCodes[tenant][code] = id
		}
	}
	for tenant, list := range s.entries {
		c.entries[tenant] = append([]ledger.JournalEntry(nil), list...)
	}
	for k, v := range s.bySource {
		c.bySource[k] = v
	}
	for k, v := range s.entrySeq {
		c.entrySeq[k] = v
	}
	for k, list := range s.taxEntries {
		c.taxEntries[k] = append([]ledger.TaxLedgerEntry(nil), list...)
	}
	for k, list := range s.snapshots {
		c.snapshots[k] = append([]ledger.BalanceSnapshot(nil), list...)
	}
	return c
}

// txView exposes the locked state as a ledger.Store without re-locking.
type txView struct {
	state *memoryState
}

func (v *txView) SaveAccount(_ context.Context, a ledger.Account) error { return v.state.saveAccount(a) }

func (v *txView) Account(_ context.Context, tenant ledger.TenantID, id ledger.AccountID) (*ledger.Account, error) {
	return v.state.account(tenant, id), nil
}

func (v *txView) AccountByCode(_ context.Context, tenant ledger.TenantID, code string) (*ledger.Account, error) {
	return v.state.accountByCode(tenant, code), nil
}

func (v *txView) Accounts(_ context.Context, tenant ledger.TenantID) ([]ledger.Account, error) {
	return v.state.accountList(tenant), nil
}

func (v *txView) SetAccountActive(_ context.Context, tenant ledger.TenantID, id ledger.AccountID, active bool) error {
	return v.state.setAccountActive(tenant, id, active)
}

func (v *txView) AppendEntry(_ context.Context, e ledger.JournalEntry) error {
	return v.state.appendEntry(e)
}

func (v *txView) Entry(_ context.Context, tenant ledger.TenantID, id ledger.EntryID) (*ledger.JournalEntry, error) {
	return v.state.entry(tenant, id), nil
}

func (v *txView) EntryBySource(_ context.Context, tenant ledger.TenantID, docType, docID string) (*ledger.JournalEntry, error) {
	return v.state.entryBySource(tenant, docType, docID), nil
}

func (v *txView) MarkEntryReversed(_ context.Context, tenant ledger.TenantID, id ledger.EntryID) error {
	return v.state.markEntryReversed(tenant, id)
}

func (v *txView) NextEntryNumber(_ context.Context, tenant ledger.TenantID) (int64, error) {
	return v.state.nextEntryNumber(tenant), nil
}

func (v *txView) Entries(_ context.Context, tenant ledger.TenantID, f ledger.EntryFilter) ([]ledger.JournalEntry, error) {
	return v.state.entryList(tenant, f), nil
}

func (v *txView) HasEntries(_ context.Context, tenant ledger.TenantID, account ledger.AccountID, from, to time.Time) (bool, error) {
	return len(v.state.entryList(tenant, ledger.EntryFilter{AccountID: account, From: from, To: to})) > 0, nil
}

func (v *txView) AppendTaxEntry(_ context.Context, e ledger.TaxLedgerEntry) error {
	return v.state.appendTaxEntry(e)
}

func (v *txView) TaxEntry(_ context.Context, tenant ledger.TenantID, id ledger.TaxEntryID) (*ledger.TaxLedgerEntry, error) {
	return v.state.taxEntry(tenant, id), nil
}

func (v *txView) TaxEntryByDocument(_ context.Context, tenant ledger.TenantID, kind ledger.LedgerKind, year, quarter int, docType, docID string) (*ledger.TaxLedgerEntry, error) {
	return v.state.taxEntryByDocument(tenant, kind, year, quarter, docType, docID), nil
}

func (v *txView) NextTaxEntryNumber(_ context.Context, tenant ledger.TenantID, kind ledger.LedgerKind, year, quarter int) (int64, error) {
	return v.state.nextTaxEntryNumber(tenant, kind, year, quarter), nil
}

func (v *txView) SetTaxEntryIncluded(_ context.Context, tenant ledger.TenantID, id ledger.TaxEntryID, included bool) error {
	return v.state.setTaxEntryIncluded(tenant, id, included)
}

func (v *txView) TaxEntries(_ context.Context, tenant ledger.TenantID, kind ledger.LedgerKind, year, quarter int) ([]ledger.TaxLedgerEntry, error) {
	return v.state.taxEntryList(tenant, kind, year, quarter), nil
}
