package receivables_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shop-ledger/generic"
	"github.com/warp/shop-ledger/generic/store"
	"github.com/warp/shop-ledger/receivables"
)

func date(day int) generic.Date { return generic.NewDate(2024, time.January, day) }

func newLedger() *receivables.Ledger {
	parties := store.NewParties(
		generic.Party{ID: "debtor-1", Kind: generic.PartyDebtor, Name: "Anil", IsActive: true},
	)
	l := receivables.NewLedger(store.NewTxMemory(), parties)
	l.Clock = generic.FixedClock{At: time.Date(2024, time.January, 31, 9, 0, 0, 0, time.UTC)}
	return l
}

func TestLend_RecordReturn(t *testing.T) {
	// GIVEN: 10000 lent
	// WHEN: 3000 returned, then 8000
	// THEN: 7000 outstanding; the over-return is rejected
	ctx := context.Background()
	l := newLedger()

	e, err := l.Lend(ctx, receivables.Loan{DebtorID: "debtor-1", Amount: generic.NewMoney(10000), DateLent: date(5)})
	require.NoError(t, err)

	balance, err := l.RecordReturn(ctx, e.ID, generic.NewMoney(3000), generic.Actor{})
	require.NoError(t, err)
	assert.Equal(t, "7000.00", balance.String())

	_, err = l.RecordReturn(ctx, e.ID, generic.NewMoney(8000), generic.Actor{})
	assert.ErrorIs(t, err, generic.ErrValidation)

	outstanding, err := l.Outstanding(ctx, "debtor-1")
	require.NoError(t, err)
	assert.Equal(t, "7000.00", outstanding.String())
}

func TestLend_ExpectedReturnBeforeLent_Rejected(t *testing.T) {
	l := newLedger()
	expected := date(9)
	_, err := l.Lend(context.Background(), receivables.Loan{
		DebtorID:       "debtor-1",
		Amount:         generic.NewMoney(500),
		DateLent:       date(10),
		ExpectedReturn: &expected,
	})

	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "expected_return_date", verr.Field)
}

func TestLend_ReturnedAtCreate(t *testing.T) {
	l := newLedger()
	e, err := l.Lend(context.Background(), receivables.Loan{
		DebtorID: "debtor-1",
		Amount:   generic.NewMoney(500),
		Returned: generic.NewMoney(200),
		DateLent: date(10),
	})
	require.NoError(t, err)
	assert.Equal(t, "300.00", e.Balance.String())
}

func TestOverdue(t *testing.T) {
	ctx := context.Background()
	l := newLedger()

	expected := date(15)
	e, err := l.Lend(ctx, receivables.Loan{DebtorID: "debtor-1", Amount: generic.NewMoney(500), DateLent: date(10), ExpectedReturn: &expected})
	require.NoError(t, err)

	overdue, err := l.Overdue(ctx, date(16))
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, e.ID, overdue[0].ID)

	_, err = l.RecordReturn(ctx, e.ID, generic.NewMoney(500), generic.Actor{})
	require.NoError(t, err)
	overdue, err = l.Overdue(ctx, date(16))
	require.NoError(t, err)
	assert.Empty(t, overdue, "settled loans are not overdue")
}
