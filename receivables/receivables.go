/*
Package receivables tracks money lent to debtors.

PURPOSE:
  The shop lends money to customers and acquaintances and records what has
  been returned. The amount returned can never exceed the amount given, and
  a loan past its expected return date with money still outstanding is
  overdue.

INVARIANTS:
  - returned <= given
  - balance == given - returned
  - expected return date, when set, is not before the lending date

SEE ALSO:
  - generic/aggregate.go: Overdue query
  - api/scheduler.go: Periodic overdue notifications
*/
package receivables

import (
	"context"

	"github.com/warp/shop-ledger/generic"
)

var MaxLoan = generic.NewMoney(10_000_000)

func Rules() generic.Rules {
	return generic.Rules{
		Kind:         generic.KindReceivable,
		MaxPrincipal: MaxLoan,
		Cap:          generic.CapPrincipal,
		PartyKinds:   []generic.PartyKind{generic.PartyDebtor},
	}
}

type Ledger struct {
	*generic.Ledger
}

func NewLedger(store generic.TxStore, parties generic.PartyDirectory) *Ledger {
	return &Ledger{Ledger: generic.NewLedger(store, parties, Rules())}
}

type Loan struct {
	DebtorID       generic.PartyID
	Amount         generic.Money
	Returned       generic.Money
	DateLent       generic.Date
	ExpectedReturn *generic.Date
	Description    string
	Actor          generic.Actor
}

// Lend records money given to a debtor.
func (l *Ledger) Lend(ctx context.Context, loan Loan) (*generic.Entry, error) {
	return l.Create(ctx, generic.CreateInput{
		PartyID:            loan.DebtorID,
		Principal:          loan.Amount,
		Counter:            loan.Returned,
		TransactionDate:    loan.DateLent,
		ExpectedReturnDate: loan.ExpectedReturn,
		Description:        loan.Description,
		Actor:              loan.Actor,
	})
}

// RecordReturn books money returned by the debtor and returns what is still owed.
func (l *Ledger) RecordReturn(ctx context.Context, id generic.EntryID, amount generic.Money, actor generic.Actor) (generic.Money, error) {
	return l.RecordCounterPayment(ctx, id, amount, actor)
}

// Outstanding is the debtor's total unreturned balance.
func (l *Ledger) Outstanding(ctx context.Context, debtorID generic.PartyID) (generic.Money, error) {
	t, err := l.TotalsByParty(ctx, debtorID, nil)
	if err != nil {
		return generic.ZeroMoney, err
	}
	return t.Balance, nil
}
