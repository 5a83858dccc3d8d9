package ledger_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvetik19-lab/finapp-sub014/ledger"
)

func march2024(t *testing.T) ledger.Period {
	t.Helper()
	return ledger.MonthPeriod(2024, time.March)
}

func rowByCode(tb *ledger.TrialBalance, code string) *ledger.PeriodBalance {
	for i := range tb.Rows {
		if tb.Rows[i].AccountCode == code {
			return &tb.Rows[i]
		}
	}
	return nil
}

// =============================================================================
// END-TO-END: SALE THEN REVERSAL
// =============================================================================

func TestTrialBalance_SaleShowsOnBothSides(t *testing.T) {
	// GIVEN: A sale of 100000 posted on 2024-03-01 (Dr 62.01, Cr 90.01)
	rig := newTestRig()
	ctx := context.Background()
	receivable := rig.mustAccount(t, "62.01", "Customer settlements", ledger.AccountAsset)
	revenue := rig.mustAccount(t, "90.01", "Revenue", ledger.AccountIncome)
	rig.mustPost(t, date(2024, time.March, 1), receivable, revenue, "100000")

	// WHEN: Computing the March 2024 trial balance
	agg := ledger.NewAggregator(rig.store)
	tb, err := agg.ComputeTrialBalance(ctx, testTenant, march2024(t))
	require.NoError(t, err)

	// THEN: Each account shows 100000 turnover and closing on its side
	require.Len(t, tb.Rows, 2)

	rcv := rowByCode(tb, "62.01")
	require.NotNil(t, rcv)
	assert.True(t, rcv.OpeningDebit.IsZero())
	assert.True(t, rcv.TurnoverDebit.Equal(amt("100000")))
	assert.True(t, rcv.TurnoverCredit.IsZero())
	assert.True(t, rcv.ClosingDebit.Equal(amt("100000")))

	rev := rowByCode(tb, "90.01")
	require.NotNil(t, rev)
	assert.True(t, rev.TurnoverCredit.Equal(amt("100000")))
	assert.True(t, rev.TurnoverDebit.IsZero())
	assert.True(t, rev.ClosingCredit.Equal(amt("100000")))

	assert.True(t, tb.Totals.TurnoverDebit.Equal(tb.Totals.TurnoverCredit))
}

func TestTrialBalance_ReversalInPeriodZeroesClosings(t *testing.T) {
	// GIVEN: The sale above, reversed the next day
	rig := newTestRig()
	ctx := context.Background()
	receivable := rig.mustAccount(t, "62.01", "Customer settlements", ledger.AccountAsset)
	revenue := rig.mustAccount(t, "90.01", "Revenue", ledger.AccountIncome)
	sale := rig.mustPost(t, date(2024, time.March, 1), receivable, revenue, "100000")

	rig.journal.WithClock(func() time.Time { return date(2024, time.March, 2) })
	_, err := rig.journal.Reverse(ctx, testTenant, sale.ID)
	require.NoError(t, err)

	// WHEN: Computing the March 2024 trial balance
	agg := ledger.NewAggregator(rig.store)
	tb, err := agg.ComputeTrialBalance(ctx, testTenant, march2024(t))
	require.NoError(t, err)

	// THEN: Turnover doubles (gross), closings net to zero
	rcv := rowByCode(tb, "62.01")
	require.NotNil(t, rcv)
	assert.True(t, rcv.TurnoverDebit.Equal(amt("100000")))
	assert.True(t, rcv.TurnoverCredit.Equal(amt("100000")))
	assert.True(t, rcv.ClosingDebit.IsZero())
	assert.True(t, rcv.ClosingCredit.IsZero())

	rev := rowByCode(tb, "90.01")
	require.NotNil(t, rev)
	assert.True(t, rev.ClosingDebit.IsZero())
	assert.True(t, rev.ClosingCredit.IsZero())

	assert.True(t, tb.Totals.TurnoverDebit.Equal(tb.Totals.TurnoverCredit))
}

// =============================================================================
// OPENING AND SIGN HANDLING
// =============================================================================

func TestTrialBalance_OpeningFromEarlierEntries(t *testing.T) {
	// GIVEN: A February posting and a March posting
	rig := newTestRig()
	ctx := context.Background()
	cash := rig.mustAccount(t, "51", "Settlement accounts", ledger.AccountAsset)
	revenue := rig.mustAccount(t, "90.01", "Revenue", ledger.AccountIncome)
	rig.mustPost(t, date(2024, time.February, 10), cash, revenue, "500")
	rig.mustPost(t, date(2024, time.March, 5), cash, revenue, "300")

	// WHEN: Computing the March trial balance
	agg := ledger.NewAggregator(rig.store)
	tb, err := agg.ComputeTrialBalance(ctx, testTenant, march2024(t))
	require.NoError(t, err)

	// THEN: February nets into the opening, March into the turnover
	row := rowByCode(tb, "51")
	require.NotNil(t, row)
	assert.True(t, row.OpeningDebit.Equal(amt("500")))
	assert.True(t, row.TurnoverDebit.Equal(amt("300")))
	assert.True(t, row.ClosingDebit.Equal(amt("800")))
}

func TestTrialBalance_SignFlipMovesToOtherColumn(t *testing.T) {
	// GIVEN: An asset account credited more than it was debited
	rig := newTestRig()
	ctx := context.Background()
	cash := rig.mustAccount(t, "51", "Settlement accounts", ledger.AccountAsset)
	suppliers := rig.mustAccount(t, "60", "Suppliers", ledger.AccountLiability)
	rig.mustPost(t, date(2024, time.March, 1), cash, suppliers, "100")
	rig.mustPost(t, date(2024, time.March, 2), suppliers, cash, "250")

	// WHEN: Computing the trial balance
	agg := ledger.NewAggregator(rig.store)
	tb, err := agg.ComputeTrialBalance(ctx, testTenant, march2024(t))
	require.NoError(t, err)

	// THEN: The overdrawn cash closing lands in the credit column
	row := rowByCode(tb, "51")
	require.NotNil(t, row)
	assert.True(t, row.ClosingDebit.IsZero())
	assert.True(t, row.ClosingCredit.Equal(amt("150")))
}

func TestTrialBalance_OmitsSilentAccounts(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	rig.mustAccount(t, "84", "Retained earnings", ledger.AccountEquity)
	cash := rig.mustAccount(t, "51", "Settlement accounts", ledger.AccountAsset)
	revenue := rig.mustAccount(t, "90.01", "Revenue", ledger.AccountIncome)
	rig.mustPost(t, date(2024, time.March, 1), cash, revenue, "50")

	agg := ledger.NewAggregator(rig.store)
	tb, err := agg.ComputeTrialBalance(ctx, testTenant, march2024(t))
	require.NoError(t, err)

	assert.Nil(t, rowByCode(tb, "84"))
	assert.Len(t, tb.Rows, 2)
}

// =============================================================================
// GLOBAL INVARIANT
// =============================================================================

func TestTrialBalance_TurnoverTotalsAlwaysBalance(t *testing.T) {
	// GIVEN: A burst of random postings across several accounts, some reversed
	rig := newTestRig()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	ids := []ledger.AccountID{
		rig.mustAccount(t, "51", "Settlement accounts", ledger.AccountAsset),
		rig.mustAccount(t, "60", "Suppliers", ledger.AccountLiability),
		rig.mustAccount(t, "62.01", "Customer settlements", ledger.AccountAsset),
		rig.mustAccount(t, "90.01", "Revenue", ledger.AccountIncome),
		rig.mustAccount(t, "91.02", "Other expenses", ledger.AccountExpense),
	}

	rig.journal.WithClock(func() time.Time { return date(2024, time.March, 20) })
	var posted []*ledger.JournalEntry
	for i := 0; i < 60; i++ {
		di, ci := rng.Intn(len(ids)), rng.Intn(len(ids))
		if di == ci {
			continue
		}
		day := 1 + rng.Intn(28)
		entry := rig.mustPost(t, date(2024, time.March, day), ids[di], ids[ci], "10")
		posted = append(posted, entry)
	}
	for i, entry := range posted {
		if i%3 == 0 {
			_, err := rig.journal.Reverse(ctx, testTenant, entry.ID)
			require.NoError(t, err)
		}
	}

	// WHEN: Computing the trial balance for any covering period
	agg := ledger.NewAggregator(rig.store)
	tb, err := agg.ComputeTrialBalance(ctx, testTenant, march2024(t))
	require.NoError(t, err)

	// THEN: Total debit turnover equals total credit turnover
	assert.True(t, tb.Totals.TurnoverDebit.Equal(tb.Totals.TurnoverCredit),
		"debit %s != credit %s", tb.Totals.TurnoverDebit, tb.Totals.TurnoverCredit)
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

func TestSnapshot_PathMatchesFullReplay(t *testing.T) {
	// GIVEN: History in February and March, snapshots taken at February end
	rig := newTestRig()
	ctx := context.Background()
	cash := rig.mustAccount(t, "51", "Settlement accounts", ledger.AccountAsset)
	revenue := rig.mustAccount(t, "90.01", "Revenue", ledger.AccountIncome)
	suppliers := rig.mustAccount(t, "60", "Suppliers", ledger.AccountLiability)
	rig.mustPost(t, date(2024, time.January, 15), cash, revenue, "700")
	rig.mustPost(t, date(2024, time.February, 10), suppliers, cash, "200")
	rig.mustPost(t, date(2024, time.March, 3), cash, revenue, "50")

	agg := ledger.NewAggregator(rig.store)

	replay, err := agg.ComputeTrialBalance(ctx, testTenant, march2024(t))
	require.NoError(t, err)

	// WHEN: Materializing snapshots and recomputing
	require.NoError(t, agg.Snapshot(ctx, testTenant, date(2024, time.February, 29)))
	cached, err := agg.ComputeTrialBalance(ctx, testTenant, march2024(t))
	require.NoError(t, err)

	// THEN: Both paths report identical numbers
	require.Equal(t, len(replay.Rows), len(cached.Rows))
	for i := range replay.Rows {
		r, c := replay.Rows[i], cached.Rows[i]
		assert.Equal(t, r.AccountCode, c.AccountCode)
		assert.True(t, r.OpeningDebit.Equal(c.OpeningDebit), "%s opening debit", r.AccountCode)
		assert.True(t, r.OpeningCredit.Equal(c.OpeningCredit), "%s opening credit", r.AccountCode)
		assert.True(t, r.TurnoverDebit.Equal(c.TurnoverDebit), "%s turnover debit", r.AccountCode)
		assert.True(t, r.TurnoverCredit.Equal(c.TurnoverCredit), "%s turnover credit", r.AccountCode)
		assert.True(t, r.ClosingDebit.Equal(c.ClosingDebit), "%s closing debit", r.AccountCode)
		assert.True(t, r.ClosingCredit.Equal(c.ClosingCredit), "%s closing credit", r.AccountCode)
	}
}

func TestSnapshot_InvalidatedByBackdatedPosting(t *testing.T) {
	// GIVEN: Snapshots taken at February end
	rig := newTestRig()
	ctx := context.Background()
	cash := rig.mustAccount(t, "51", "Settlement accounts", ledger.AccountAsset)
	revenue := rig.mustAccount(t, "90.01", "Revenue", ledger.AccountIncome)
	rig.mustPost(t, date(2024, time.January, 15), cash, revenue, "700")

	agg := ledger.NewAggregator(rig.store)
	require.NoError(t, agg.Snapshot(ctx, testTenant, date(2024, time.February, 29)))

	// WHEN: A backdated entry lands before the snapshot date
	rig.mustPost(t, date(2024, time.February, 1), cash, revenue, "300")

	// THEN: The trial balance reflects the late entry, not the stale cache
	tb, err := agg.ComputeTrialBalance(ctx, testTenant, march2024(t))
	require.NoError(t, err)
	row := rowByCode(tb, "51")
	require.NotNil(t, row)
	assert.True(t, row.OpeningDebit.Equal(amt("1000")))
}
