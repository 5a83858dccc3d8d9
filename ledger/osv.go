/*
osv.go - Trial balance (OSV) aggregation

PURPOSE:
  Computes the oborotno-saldovaya vedomost: per-account opening balance,
  period turnover and closing balance. This is a pure read model - every
  figure is a deterministic function of the journal, so the report is
  trivially correct as long as the journal is.

ALGORITHM:
  opening  = net of all entries dated before the period start
  turnover = gross debit/credit sums of entries inside the period
  closing  = opening net +/- turnover, placed on whichever side the net
             lands on (a debit-normal account flipping to credit is
             reported with the sign moved, never an error)

GLOBAL INVARIANT (checked by tests, holds by construction):
  Sum of turnover_debit over all accounts == sum of turnover_credit,
  for any period, including after reversals - every entry contributes the
  same amount to exactly one debit and one credit leg.

SNAPSHOTS:
  When the store materializes balance snapshots, opening balances read
  the newest snapshot before the period and replay only the tail. The
  cache is a pure optimization: stores invalidate snapshots on backdated
  postings, and the full-replay path always produces the same numbers.

SEE ALSO:
  - journal.go: The entry log this reads
  - card.go: Per-account view sharing the same sign convention
*/
package ledger

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ErrSnapshotsUnsupported is returned by Snapshot when the underlying store
// does not materialize balance snapshots.
var ErrSnapshotsUnsupported = errors.New("store does not support balance snapshots")

// Aggregator computes trial balances over the journal.
type Aggregator struct {
	store Store
}

// NewAggregator creates an Aggregator reading from store.
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// accountSums accumulates gross debit/credit totals for one account.
type accountSums struct {
	openingDebit   decimal.Decimal
	openingCredit  decimal.Decimal
	turnoverDebit  decimal.Decimal
	turnoverCredit decimal.Decimal
}

// ComputeTrialBalance builds the OSV report for the tenant and period.
// Accounts with no opening balance and no movement are omitted.
func (a *Aggregator) ComputeTrialBalance(ctx context.Context, tenant TenantID, period Period) (*TrialBalance, error) {
	if tenant == "" {
		return nil, &ValidationError{Field: "tenant_id", Reason: "required"}
	}

	accounts, err := a.store.Accounts(ctx, tenant)
	if err != nil {
		return nil, err
	}

	sums := make(map[AccountID]*accountSums, len(accounts))
	for _, acc := range accounts {
		sums[acc.ID] = &accountSums{}
	}

	// Seed openings from snapshots when the store has them; snapEpoch marks
	// the date through which each account is already covered.
	snapEpoch := make(map[AccountID]time.Time)
	fetchFrom := time.Time{}
	if snaps, ok := a.store.(SnapshotStore); ok {
		fetchFrom = a.seedFromSnapshots(ctx, snaps, tenant, accounts, period.Start, sums, snapEpoch)
	}

	entries, err := a.store.Entries(ctx, tenant, EntryFilter{From: fetchFrom, To: period.End})
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		if e.EntryDate.Before(period.Start) {
			if epoch, ok := snapEpoch[e.DebitAccountID]; !ok || e.EntryDate.After(epoch) {
				add(sums, e.DebitAccountID, e.Amount, decimal.Zero, true)
			}
			if epoch, ok := snapEpoch[e.CreditAccountID]; !ok || e.EntryDate.After(epoch) {
				add(sums, e.CreditAccountID, decimal.Zero, e.Amount, true)
			}
			continue
		}
		add(sums, e.DebitAccountID, e.Amount, decimal.Zero, false)
		add(sums, e.CreditAccountID, decimal.Zero, e.Amount, false)
	}

	report := &TrialBalance{TenantID: tenant, Period: period}
	report.Totals = PeriodBalance{PeriodStart: period.Start, PeriodEnd: period.End}

	for _, acc := range accounts {
		s := sums[acc.ID]
		row := buildRow(acc, period, s)
		if isZeroRow(row) {
			continue
		}
		report.Rows = append(report.Rows, row)

		report.Totals.OpeningDebit = report.Totals.OpeningDebit.Add(row.OpeningDebit)
		report.Totals.OpeningCredit = report.Totals.OpeningCredit.Add(row.OpeningCredit)
		report.Totals.TurnoverDebit = report.Totals.TurnoverDebit.Add(row.TurnoverDebit)
		report.Totals.TurnoverCredit = report.Totals.TurnoverCredit.Add(row.TurnoverCredit)
		report.Totals.ClosingDebit = report.Totals.ClosingDebit.Add(row.ClosingDebit)
		report.Totals.ClosingCredit = report.Totals.ClosingCredit.Add(row.ClosingCredit)
	}

	sort.Slice(report.Rows, func(i, k int) bool { return report.Rows[i].AccountCode < report.Rows[k].AccountCode })
	return report, nil
}

// seedFromSnapshots loads the newest pre-period snapshot per account and
// returns the earliest date from which entries still need replaying
// (zero when some account has no snapshot at all).
func (a *Aggregator) seedFromSnapshots(ctx context.Context, snaps SnapshotStore, tenant TenantID, accounts []Account, before time.Time, sums map[AccountID]*accountSums, snapEpoch map[AccountID]time.Time) time.Time {
	fetchFrom := time.Time{}
	first := true
	for _, acc := range accounts {
		snap, err := snaps.LatestSnapshotBefore(ctx, tenant, acc.ID, before)
		if err != nil || snap == nil {
			// No snapshot: this account needs the full history.
			return time.Time{}
		}
		sums[acc.ID].openingDebit = snap.Debit
		sums[acc.ID].openingCredit = snap.Credit
		snapEpoch[acc.ID] = snap.AsOf
		if first || snap.AsOf.Before(fetchFrom) {
			fetchFrom = snap.AsOf
			first = false
		}
	}
	if first {
		return time.Time{}
	}
	// Entries dated on the earliest AsOf are already covered by that
	// account's snapshot; replay starts the next day. Per-account epochs
	// filter the overlap for accounts snapshotted later.
	return fetchFrom.AddDate(0, 0, 1)
}

func add(sums map[AccountID]*accountSums, id AccountID, debit, credit decimal.Decimal, opening bool) {
	s, ok := sums[id]
	if !ok {
		// Entry referencing an account missing from the chart: tolerated on
		// read, the row simply cannot be labeled. Skipped.
		return
	}
	if opening {
		s.openingDebit = s.openingDebit.Add(debit)
		s.openingCredit = s.openingCredit.Add(credit)
	} else {
		s.turnoverDebit = s.turnoverDebit.Add(debit)
		s.turnoverCredit = s.turnoverCredit.Add(credit)
	}
}

func buildRow(acc Account, period Period, s *accountSums) PeriodBalance {
	openingNet := s.openingDebit.Sub(s.openingCredit)
	closingNet := openingNet.Add(s.turnoverDebit).Sub(s.turnoverCredit)

	openingDebit, openingCredit := splitNet(openingNet)
	closingDebit, closingCredit := splitNet(closingNet)

	return PeriodBalance{
		AccountID:      acc.ID,
		AccountCode:    acc.Code,
		AccountName:    acc.Name,
		AccountType:    acc.Type,
		PeriodStart:    period.Start,
		PeriodEnd:      period.End,
		OpeningDebit:   openingDebit,
		OpeningCredit:  openingCredit,
		TurnoverDebit:  s.turnoverDebit,
		TurnoverCredit: s.turnoverCredit,
		ClosingDebit:   closingDebit,
		ClosingCredit:  closingCredit,
	}
}

// splitNet places a debit-positive net onto one side. The math is symmetric
// in the normal side: a credit-normal account simply accrues a negative net
// and lands in the credit column; a sign flip lands in the other column.
func splitNet(net decimal.Decimal) (debit, credit decimal.Decimal) {
	if net.Sign() >= 0 {
		return net, decimal.Zero
	}
	return decimal.Zero, net.Neg()
}

func isZeroRow(row PeriodBalance) bool {
	return row.OpeningDebit.IsZero() && row.OpeningCredit.IsZero() &&
		row.TurnoverDebit.IsZero() && row.TurnoverCredit.IsZero() &&
		row.ClosingDebit.IsZero() && row.ClosingCredit.IsZero()
}

// Snapshot materializes cumulative per-account totals through asOf.
// Subsequent trial balances for periods starting after asOf replay only
// the tail of the journal. Returns ErrSnapshotsUnsupported when the store
// has no snapshot capability.
func (a *Aggregator) Snapshot(ctx context.Context, tenant TenantID, asOf time.Time) error {
	snaps, ok := a.store.(SnapshotStore)
	if !ok {
		return ErrSnapshotsUnsupported
	}
	asOf = Day(asOf)

	accounts, err := a.store.Accounts(ctx, tenant)
	if err != nil {
		return err
	}
	entries, err := a.store.Entries(ctx, tenant, EntryFilter{To: asOf})
	if err != nil {
		return err
	}

	sums := make(map[AccountID]*accountSums, len(accounts))
	for _, acc := range accounts {
		sums[acc.ID] = &accountSums{}
	}
	for _, e := range entries {
		add(sums, e.DebitAccountID, e.Amount, decimal.Zero, true)
		add(sums, e.CreditAccountID, decimal.Zero, e.Amount, true)
	}

	now := time.Now().UTC()
	for _, acc := range accounts {
		s := sums[acc.ID]
		err := snaps.SaveSnapshot(ctx, BalanceSnapshot{
			TenantID:  tenant,
			AccountID: acc.ID,
			AsOf:      asOf,
			Debit:     s.openingDebit,
			Credit:    s.openingCredit,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
