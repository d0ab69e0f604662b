/*
Package payments records money the shop owes and pays out.

PURPOSE:
  A payment is owed to exactly one payee: a worker, a vendor, an order or a
  sale. The payee is a tagged generic.Payee, validated on create. Partial
  payments reduce the balance; paying more than is owed is rejected.

HARD DELETE:
  Unlike advances and receivables, a payment recorded by mistake may be
  removed permanently, by an administrator only.

SEE ALSO:
  - generic/payee.go: Payee variant
*/
package payments

import (
	"context"

	"github.com/warp/shop-ledger/generic"
)

var MaxPayment = generic.NewMoney(10_000_000)

func Rules() generic.Rules {
	return generic.Rules{
		Kind:            generic.KindPayment,
		MaxPrincipal:    MaxPayment,
		Cap:             generic.CapPrincipal,
		RequirePayee:    true,
		AllowHardDelete: true,
		PartyKinds: []generic.PartyKind{
			generic.PartyLabor, generic.PartyVendor, generic.PartyOrder, generic.PartySale,
		},
	}
}

type Ledger struct {
	*generic.Ledger
}

func NewLedger(store generic.TxStore, parties generic.PartyDirectory) *Ledger {
	return &Ledger{Ledger: generic.NewLedger(store, parties, Rules())}
}

type Payment struct {
	Payee       generic.Payee
	AmountOwed  generic.Money
	AmountPaid  generic.Money
	Date        generic.Date
	Description string
	ReceiptPath string
	Actor       generic.Actor
}

// Record books an amount owed to the payee, optionally already part paid.
func (l *Ledger) Record(ctx context.Context, p Payment) (*generic.Entry, error) {
	return l.Create(ctx, generic.CreateInput{
		Payee:           p.Payee,
		Principal:       p.AmountOwed,
		Counter:         p.AmountPaid,
		TransactionDate: p.Date,
		Description:     p.Description,
		ReceiptPath:     p.ReceiptPath,
		Actor:           p.Actor,
	})
}

// Pay books a partial or final payment and returns what is still owed.
func (l *Ledger) Pay(ctx context.Context, id generic.EntryID, amount generic.Money, actor generic.Actor) (generic.Money, error) {
	return l.RecordCounterPayment(ctx, id, amount, actor)
}

// Delete removes a payment permanently. actor must be an administrator.
func (l *Ledger) Delete(ctx context.Context, actor generic.Actor, id generic.EntryID) error {
	return l.HardDelete(ctx, actor, id)
}

// Settle pays whatever is still owed on the payment.
func (l *Ledger) Settle(ctx context.Context, id generic.EntryID, actor generic.Actor) (*generic.Entry, error) {
	e, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.IsSettled() {
		return nil, &generic.ValidationError{Field: "amount", Message: "payment is already settled"}
	}
	if _, err := l.RecordCounterPayment(ctx, id, e.Balance, actor); err != nil {
		return nil, err
	}
	return l.Get(ctx, id)
}
