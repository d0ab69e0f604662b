package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shop-ledger/generic"
)

func testEntry(id generic.EntryID, day int) generic.Entry {
	return generic.Entry{
		ID:              id,
		Kind:            generic.KindReceivable,
		PartyID:         "debtor-1",
		Snapshot:        generic.Snapshot{Name: "Anil"},
		Principal:       generic.NewMoney(100),
		Balance:         generic.NewMoney(100),
		TransactionDate: generic.NewDate(2024, time.January, day),
		IsActive:        true,
		Version:         1,
	}
}

func TestMemory_InsertGetUpdate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Insert(ctx, testEntry("e-1", 5)))
	assert.Error(t, m.Insert(ctx, testEntry("e-1", 5)), "duplicate ID")

	e, err := m.Get(ctx, "e-1")
	require.NoError(t, err)

	e.Counter = generic.NewMoney(40)
	e.Balance = generic.NewMoney(60)
	e.Snapshot.Name = "changed"
	e.Version = 2
	require.NoError(t, m.Update(ctx, *e, 1))
	assert.ErrorIs(t, m.Update(ctx, *e, 1), generic.ErrConcurrentModification)

	got, err := m.Get(ctx, "e-1")
	require.NoError(t, err)
	assert.Equal(t, "60.00", got.Balance.String())
	assert.Equal(t, "Anil", got.Snapshot.Name, "snapshot is not a mutable column")

	_, err = m.Get(ctx, "e-2")
	assert.ErrorIs(t, err, generic.ErrEntryNotFound)
}

func TestMemory_List_SortedByDateThenID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, e := range []generic.Entry{testEntry("b", 5), testEntry("c", 1), testEntry("a", 5)} {
		require.NoError(t, m.Insert(ctx, e))
	}

	entries, err := m.List(ctx, generic.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, generic.EntryID("c"), entries[0].ID)
	assert.Equal(t, generic.EntryID("a"), entries[1].ID)
	assert.Equal(t, generic.EntryID("b"), entries[2].ID)
}

func TestTxMemory_Rollback(t *testing.T) {
	ctx := context.Background()
	tm := NewTxMemory()
	require.NoError(t, tm.Insert(ctx, testEntry("keep", 1)))

	err := tm.WithTx(ctx, func(s generic.Store) error {
		require.NoError(t, s.Insert(ctx, testEntry("discard", 2)))
		require.NoError(t, s.Delete(ctx, "keep"))
		return errors.New("abort")
	})
	require.Error(t, err)

	_, err = tm.Get(ctx, "keep")
	assert.NoError(t, err)
	_, err = tm.Get(ctx, "discard")
	assert.ErrorIs(t, err, generic.ErrEntryNotFound)
}

func TestParties_Resolve(t *testing.T) {
	p := NewParties(generic.Party{ID: "v-1", Kind: generic.PartyVendor, Name: "Cloth House", IsActive: true})

	got, err := p.Resolve(context.Background(), "v-1")
	require.NoError(t, err)
	assert.Equal(t, "Cloth House", got.Name)

	_, err = p.Resolve(context.Background(), "v-2")
	assert.ErrorIs(t, err, generic.ErrPartyNotFound)
}
