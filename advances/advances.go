/*
Package advances implements salary advances given to labor.

PURPOSE:
  Tailors and helpers draw advances against their monthly salary. The sum of
  a worker's active advances in one calendar month may never exceed the
  salary on record, and a single advance is capped at a fixed ceiling.

INVARIANT:
  sum(active advances for party in month) <= party.MonthlySalary

  Checked on create, on principal update and on restore, under a per-party
  lock so two clerks cannot both spend the last of a worker's headroom.

EXAMPLE:
  ledger := advances.NewLedger(store, store)
  entry, err := ledger.Give(ctx, advances.Advance{
      LaborID: "labor-7",
      Amount:  generic.NewMoney(10000),
      Date:    generic.NewDate(2024, time.January, 5),
  })
  var limitErr *generic.LimitExceededError
  if errors.As(err, &limitErr) {
      fmt.Println("only", limitErr.Headroom, "left this month")
  }

SEE ALSO:
  - generic/ledger.go: Shared write path
*/
package advances

import (
	"context"

	"github.com/warp/shop-ledger/generic"
)

// MaxAdvance is the ceiling on a single advance.
var MaxAdvance = generic.NewMoney(1_000_000)

// Rules returns the advance ledger configuration.
func Rules() generic.Rules {
	return generic.Rules{
		Kind:         generic.KindAdvance,
		MaxPrincipal: MaxAdvance,
		Cap:          generic.CapMonthlySalary,
		PartyKinds:   []generic.PartyKind{generic.PartyLabor},
	}
}

// Ledger wraps the generic ledger with advance vocabulary.
type Ledger struct {
	*generic.Ledger
}

func NewLedger(store generic.TxStore, parties generic.PartyDirectory) *Ledger {
	return &Ledger{Ledger: generic.NewLedger(store, parties, Rules())}
}

// Advance is the input for Give.
type Advance struct {
	LaborID     generic.PartyID
	Amount      generic.Money
	Date        generic.Date
	Description string
	ReceiptPath string
	Actor       generic.Actor
}

// Give records a new advance.
func (l *Ledger) Give(ctx context.Context, a Advance) (*generic.Entry, error) {
	return l.Create(ctx, generic.CreateInput{
		PartyID:         a.LaborID,
		Principal:       a.Amount,
		TransactionDate: a.Date,
		Description:     a.Description,
		ReceiptPath:     a.ReceiptPath,
		Actor:           a.Actor,
	})
}

// Deduct records part of an advance as recovered from salary.
func (l *Ledger) Deduct(ctx context.Context, id generic.EntryID, amount generic.Money, actor generic.Actor) (generic.Money, error) {
	return l.RecordCounterPayment(ctx, id, amount, actor)
}

// MonthlyHeadroom is the salary left for further advances in month.
func (l *Ledger) MonthlyHeadroom(ctx context.Context, laborID generic.PartyID, month generic.Month) (generic.Money, error) {
	return l.Headroom(ctx, laborID, month)
}

// MonthlyTotal is the sum of the worker's active advances in month.
func (l *Ledger) MonthlyTotal(ctx context.Context, laborID generic.PartyID, month generic.Month) (generic.Money, error) {
	t, err := l.TotalsByParty(ctx, laborID, &month)
	if err != nil {
		return generic.ZeroMoney, err
	}
	return t.Principal, nil
}
