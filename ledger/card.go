/*
card.go - Account card (per-account movement history)

PURPOSE:
  Produces the chronological movement list for one account over a period:
  every entry touching the account in (entry_date, entry_number) order,
  each with the correspondent account and a running balance folded from
  the opening balance using the account's normal-side sign rule.

SIGN CONVENTION:
  Balances are signed on the account's normal side. For a debit-normal
  account each row adds (debit - credit); for a credit-normal account
  (credit - debit). A negative running balance means the account is
  carrying its balance on the opposite side.
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// CardService builds account cards from the journal.
type CardService struct {
	store Store
}

// NewCardService creates a CardService reading from store.
func NewCardService(store Store) *CardService {
	return &CardService{store: store}
}

// GetAccountCard returns the movement history for the account over the
// period. Fails with NotFoundError for an unknown account.
func (c *CardService) GetAccountCard(ctx context.Context, tenant TenantID, id AccountID, period Period) (*AccountCard, error) {
	account, err := c.store.Account(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, &NotFoundError{Kind: "account", ID: string(id)}
	}

	// One scan covers both the opening fold and the period rows.
	entries, err := c.store.Entries(ctx, tenant, EntryFilter{AccountID: id, To: period.End})
	if err != nil {
		return nil, err
	}

	side := account.NormalSide()
	opening := decimal.Zero
	card := &AccountCard{Account: *account, Period: period}

	// Correspondent codes resolve lazily; a card usually touches few
	// distinct accounts.
	codes := map[AccountID]string{}

	balance := decimal.Zero
	for _, e := range entries {
		var debit, credit decimal.Decimal
		if e.DebitAccountID == id {
			debit = e.Amount
		} else {
			credit = e.Amount
		}

		if e.EntryDate.Before(period.Start) {
			opening = opening.Add(signed(side, debit, credit))
			continue
		}

		if len(card.Rows) == 0 {
			balance = opening
		}
		balance = balance.Add(signed(side, debit, credit))

		correspondent := e.CreditAccountID
		if e.CreditAccountID == id {
			correspondent = e.DebitAccountID
		}

		card.Rows = append(card.Rows, CardRow{
			Date:                 e.EntryDate,
			EntryID:              e.ID,
			EntryNumber:          e.EntryNumber,
			Description:          e.Description,
			CounterpartyID:       e.CounterpartyID,
			CorrespondentAccount: c.codeOf(ctx, tenant, correspondent, codes),
			DebitAmount:          debit,
			CreditAmount:         credit,
			RunningBalance:       balance,
		})
	}

	card.OpeningBalance = opening
	if len(card.Rows) == 0 {
		card.ClosingBalance = opening
	} else {
		card.ClosingBalance = card.Rows[len(card.Rows)-1].RunningBalance
	}
	return card, nil
}

func (c *CardService) codeOf(ctx context.Context, tenant TenantID, id AccountID, cache map[AccountID]string) string {
	if code, ok := cache[id]; ok {
		return code
	}
	code := string(id)
	if acc, err := c.store.Account(ctx, tenant, id); err == nil && acc != nil {
		code = acc.Code
	}
	cache[id] = code
	return code
}

// signed folds one movement onto a normal-side balance.
func signed(side BalanceSide, debit, credit decimal.Decimal) decimal.Decimal {
	if side == SideCredit {
		return credit.Sub(debit)
	}
	return debit.Sub(credit)
}
