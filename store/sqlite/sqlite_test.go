package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvetik19-lab/finapp-sub014/ledger"
	"github.com/corvetik19-lab/finapp-sub014/store/sqlite"
)

const testTenant = ledger.TenantID("tenant-1")

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testAccount(code string, typ ledger.AccountType) ledger.Account {
	return ledger.Account{
		ID:        ledger.AccountID(uuid.NewString()),
		TenantID:  testTenant,
		Code:      code,
		Name:      "Account " + code,
		Type:      typ,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
}

func testEntry(number int64, day time.Time, debit, credit ledger.AccountID) ledger.JournalEntry {
	return ledger.JournalEntry{
		ID:              ledger.EntryID(uuid.NewString()),
		TenantID:        testTenant,
		EntryDate:       ledger.Day(day),
		EntryNumber:     number,
		Kind:            ledger.EntryNormal,
		DebitAccountID:  debit,
		CreditAccountID: credit,
		Amount:          decimal.NewFromInt(100),
		CreatedAt:       time.Now().UTC(),
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestSQLite_AccountRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testAccount("51", ledger.AccountAsset)
	a.ParentID = "parent-1"
	a.Dimensions = map[string]string{"department": "sales"}
	require.NoError(t, s.SaveAccount(ctx, a))

	got, err := s.Account(ctx, testTenant, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.Code, got.Code)
	assert.Equal(t, a.Type, got.Type)
	assert.Equal(t, a.ParentID, got.ParentID)
	assert.Equal(t, a.Dimensions, got.Dimensions)
	assert.True(t, got.IsActive)

	byCode, err := s.AccountByCode(ctx, testTenant, "51")
	require.NoError(t, err)
	require.NotNil(t, byCode)
	assert.Equal(t, a.ID, byCode.ID)
}

func TestSQLite_AccountCodeUniquePerTenant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAccount(ctx, testAccount("51", ledger.AccountAsset)))

	err := s.SaveAccount(ctx, testAccount("51", ledger.AccountAsset))
	require.Error(t, err)
	assert.True(t, ledger.IsConflict(err))

	// Another tenant may reuse the code.
	other := testAccount("51", ledger.AccountAsset)
	other.TenantID = "tenant-2"
	require.NoError(t, s.SaveAccount(ctx, other))
}

func TestSQLite_AccountsOrderedByCode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, code := range []string{"90", "10", "51"} {
		require.NoError(t, s.SaveAccount(ctx, testAccount(code, ledger.AccountAsset)))
	}

	accounts, err := s.Accounts(ctx, testTenant)
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, "10", accounts[0].Code)
	assert.Equal(t, "51", accounts[1].Code)
	assert.Equal(t, "90", accounts[2].Code)
}

func TestSQLite_SetAccountActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := testAccount("51", ledger.AccountAsset)
	require.NoError(t, s.SaveAccount(ctx, a))

	require.NoError(t, s.SetAccountActive(ctx, testTenant, a.ID, false))
	got, err := s.Account(ctx, testTenant, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	err = s.SetAccountActive(ctx, testTenant, "missing", false)
	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// JOURNAL
// =============================================================================

func TestSQLite_EntryRoundTripAndOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := testAccount("51", ledger.AccountAsset)
	b := testAccount("90", ledger.AccountIncome)
	require.NoError(t, s.SaveAccount(ctx, a))
	require.NoError(t, s.SaveAccount(ctx, b))

	// Inserted out of chronological order.
	require.NoError(t, s.AppendEntry(ctx, testEntry(1, date(2024, time.March, 10), a.ID, b.ID)))
	require.NoError(t, s.AppendEntry(ctx, testEntry(2, date(2024, time.March, 5), a.ID, b.ID)))
	require.NoError(t, s.AppendEntry(ctx, testEntry(3, date(2024, time.March, 5), a.ID, b.ID)))

	entries, err := s.Entries(ctx, testTenant, ledger.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(2), entries[0].EntryNumber)
	assert.Equal(t, int64(3), entries[1].EntryNumber)
	assert.Equal(t, int64(1), entries[2].EntryNumber)

	// Amount survives as an exact decimal.
	assert.True(t, entries[0].Amount.Equal(decimal.NewFromInt(100)))
}

func TestSQLite_NextEntryNumber(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := testAccount("51", ledger.AccountAsset)
	b := testAccount("90", ledger.AccountIncome)
	require.NoError(t, s.SaveAccount(ctx, a))
	require.NoError(t, s.SaveAccount(ctx, b))

	n, err := s.NextEntryNumber(ctx, testTenant)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.AppendEntry(ctx, testEntry(1, date(2024, time.March, 1), a.ID, b.ID)))
	n, err = s.NextEntryNumber(ctx, testTenant)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSQLite_SourceIndexRejectsDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := testAccount("51", ledger.AccountAsset)
	b := testAccount("90", ledger.AccountIncome)
	require.NoError(t, s.SaveAccount(ctx, a))
	require.NoError(t, s.SaveAccount(ctx, b))

	first := testEntry(1, date(2024, time.March, 1), a.ID, b.ID)
	first.SourceDocumentType = "invoice"
	first.SourceDocumentID = "42"
	require.NoError(t, s.AppendEntry(ctx, first))

	dup := testEntry(2, date(2024, time.March, 2), a.ID, b.ID)
	dup.SourceDocumentType = "invoice"
	dup.SourceDocumentID = "42"
	err := s.AppendEntry(ctx, dup)
	require.Error(t, err)
	assert.True(t, ledger.IsConflict(err))

	// Reversing the holder releases the key.
	require.NoError(t, s.MarkEntryReversed(ctx, testTenant, first.ID))
	require.NoError(t, s.AppendEntry(ctx, dup))

	// The lookup only sees un-reversed holders.
	got, err := s.EntryBySource(ctx, testTenant, "invoice", "42")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, dup.ID, got.ID)
}

func TestSQLite_WithTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := testAccount("51", ledger.AccountAsset)
	b := testAccount("90", ledger.AccountIncome)
	require.NoError(t, s.SaveAccount(ctx, a))
	require.NoError(t, s.SaveAccount(ctx, b))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.AppendEntry(ctx, testEntry(1, date(2024, time.March, 1), a.ID, b.ID)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	entries, err := s.Entries(ctx, testTenant, ledger.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// =============================================================================
// TAX LEDGERS
// =============================================================================

func TestSQLite_TaxEntryNumbering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.NextTaxEntryNumber(ctx, testTenant, ledger.LedgerSale, 2024, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entry := ledger.TaxLedgerEntry{
		ID:               ledger.TaxEntryID(uuid.NewString()),
		TenantID:         testTenant,
		Kind:             ledger.LedgerSale,
		PeriodYear:       2024,
		PeriodQuarter:    1,
		EntryNumber:      1,
		CounterpartyName: "OOO Buyer",
		DocumentType:     "invoice",
		DocumentID:       "doc-1",
		TotalAmount:      decimal.NewFromInt(120),
		VATAmount:        decimal.NewFromInt(20),
		VATRate:          decimal.RequireFromString("0.20"),
		IsIncluded:       true,
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, s.AppendTaxEntry(ctx, entry))

	// The bucket number is unique.
	dup := entry
	dup.ID = ledger.TaxEntryID(uuid.NewString())
	dup.DocumentID = "doc-2"
	err = s.AppendTaxEntry(ctx, dup)
	require.Error(t, err)
	assert.True(t, ledger.IsConflict(err))

	// Another bucket starts over.
	n, err = s.NextTaxEntryNumber(ctx, testTenant, ledger.LedgerPurchase, 2024, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLite_TaxEntryExclusionAndDocumentLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := ledger.TaxLedgerEntry{
		ID:               ledger.TaxEntryID(uuid.NewString()),
		TenantID:         testTenant,
		Kind:             ledger.LedgerPurchase,
		PeriodYear:       2024,
		PeriodQuarter:    2,
		EntryNumber:      1,
		CounterpartyName: "OOO Seller",
		DocumentType:     "invoice",
		DocumentID:       "p-1",
		TotalAmount:      decimal.NewFromInt(60),
		VATAmount:        decimal.NewFromInt(10),
		IsIncluded:       true,
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, s.AppendTaxEntry(ctx, entry))

	got, err := s.TaxEntryByDocument(ctx, testTenant, ledger.LedgerPurchase, 2024, 2, "invoice", "p-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.ID, got.ID)

	require.NoError(t, s.SetTaxEntryIncluded(ctx, testTenant, entry.ID, false))

	// Excluded rows stop matching document lookups but stay listed.
	got, err = s.TaxEntryByDocument(ctx, testTenant, ledger.LedgerPurchase, 2024, 2, "invoice", "p-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	listed, err := s.TaxEntries(ctx, testTenant, ledger.LedgerPurchase, 2024, 2)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.False(t, listed[0].IsIncluded)
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

func TestSQLite_SnapshotLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := testAccount("51", ledger.AccountAsset)
	b := testAccount("90", ledger.AccountIncome)
	require.NoError(t, s.SaveAccount(ctx, a))
	require.NoError(t, s.SaveAccount(ctx, b))

	snap := ledger.BalanceSnapshot{
		TenantID:  testTenant,
		AccountID: a.ID,
		AsOf:      date(2024, time.February, 29),
		Debit:     decimal.NewFromInt(700),
		Credit:    decimal.NewFromInt(200),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.SaveSnapshot(ctx, snap))

	got, err := s.LatestSnapshotBefore(ctx, testTenant, a.ID, date(2024, time.March, 1))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Debit.Equal(decimal.NewFromInt(700)))

	// Not visible for periods at or before its date.
	got, err = s.LatestSnapshotBefore(ctx, testTenant, a.ID, date(2024, time.February, 29))
	require.NoError(t, err)
	assert.Nil(t, got)

	// A posting dated before AsOf invalidates the snapshot.
	require.NoError(t, s.AppendEntry(ctx, testEntry(1, date(2024, time.February, 1), a.ID, b.ID)))
	got, err = s.LatestSnapshotBefore(ctx, testTenant, a.ID, date(2024, time.March, 1))
	require.NoError(t, err)
	assert.Nil(t, got)
}

// =============================================================================
// SERVICES OVER SQLITE
// =============================================================================

func TestSQLite_JournalServiceEndToEnd(t *testing.T) {
	// The same posting/reversal flow the memory store runs in the ledger
	// package tests, against the durable store.
	s := newTestStore(t)
	ctx := context.Background()

	registry := ledger.NewRegistry(s)
	journal := ledger.NewJournal(s, registry)

	cash, err := registry.CreateAccount(ctx, ledger.CreateAccountInput{
		TenantID: testTenant, Code: "51", Name: "Settlement accounts", Type: ledger.AccountAsset,
	})
	require.NoError(t, err)
	revenue, err := registry.CreateAccount(ctx, ledger.CreateAccountInput{
		TenantID: testTenant, Code: "90.01", Name: "Revenue", Type: ledger.AccountIncome,
	})
	require.NoError(t, err)

	input := ledger.PostInput{
		TenantID:           testTenant,
		EntryDate:          date(2024, time.March, 1),
		DebitAccountID:     cash.ID,
		CreditAccountID:    revenue.ID,
		Amount:             decimal.NewFromInt(100000),
		SourceDocumentType: "invoice",
		SourceDocumentID:   "42",
	}
	first, err := journal.Post(ctx, input)
	require.NoError(t, err)

	// Duplicate absorbed.
	second, err := journal.Post(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// Reversal mirrors and flags.
	mirror, err := journal.Reverse(ctx, testTenant, first.ID)
	require.NoError(t, err)
	assert.Equal(t, revenue.ID, mirror.DebitAccountID)

	agg := ledger.NewAggregator(s)
	tb, err := agg.ComputeTrialBalance(ctx, testTenant,
		ledger.MonthPeriod(2024, time.March))
	require.NoError(t, err)
	assert.True(t, tb.Totals.TurnoverDebit.Equal(tb.Totals.TurnoverCredit))
}
