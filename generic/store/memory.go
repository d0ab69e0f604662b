// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/shop-ledger/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	entries map[generic.EntryID]generic.Entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[generic.EntryID]generic.Entry)}
}

func (m *Memory) Insert(_ context.Context, e generic.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(e)
}

func (m *Memory) Get(_ context.Context, id generic.EntryID) (*generic.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(id)
}

func (m *Memory) Update(_ context.Context, e generic.Entry, prevVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(e, prevVersion)
}

func (m *Memory) Delete(_ context.Context, id generic.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(id)
}

func (m *Memory) List(_ context.Context, f generic.Filter) ([]generic.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(f), nil
}

func (m *Memory) insertLocked(e generic.Entry) error {
	if _, ok := m.entries[e.ID]; ok {
		return fmt.Errorf("entry %s already exists", e.ID)
	}
	m.entries[e.ID] = e
	return nil
}

func (m *Memory) getLocked(id generic.EntryID) (*generic.Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, generic.ErrEntryNotFound
	}
	return &e, nil
}

func (m *Memory) updateLocked(e generic.Entry, prevVersion int64) error {
	stored, ok := m.entries[e.ID]
	if !ok {
		return generic.ErrEntryNotFound
	}
	if stored.Version != prevVersion {
		return generic.ErrConcurrentModification
	}
	// Only the mutable columns change; the snapshot and creation audit stay.
	stored.Principal = e.Principal
	stored.Counter = e.Counter
	stored.Balance = e.Balance
	stored.IsActive = e.IsActive
	stored.UpdatedAt = e.UpdatedAt
	stored.Version = e.Version
	m.entries[e.ID] = stored
	return nil
}

func (m *Memory) deleteLocked(id generic.EntryID) error {
	if _, ok := m.entries[id]; !ok {
		return generic.ErrEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *Memory) listLocked(f generic.Filter) []generic.Entry {
	var result []generic.Entry
	for _, e := range m.entries {
		if f.Matches(e) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.TransactionDate.Equal(b.TransactionDate) {
			return a.TransactionDate.Before(b.TransactionDate)
		}
		return a.ID < b.ID
	})
	return result
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := make(map[generic.EntryID]generic.Entry, len(tm.entries))
	for k, v := range tm.entries {
		snapshot[k] = v
	}

	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.entries = snapshot
		return err
	}
	return nil
}

// txMemoryView operates on the parent without locking; WithTx holds the lock.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) Insert(_ context.Context, e generic.Entry) error {
	return tv.parent.insertLocked(e)
}

func (tv *txMemoryView) Get(_ context.Context, id generic.EntryID) (*generic.Entry, error) {
	return tv.parent.getLocked(id)
}

func (tv *txMemoryView) Update(_ context.Context, e generic.Entry, prevVersion int64) error {
	return tv.parent.updateLocked(e, prevVersion)
}

func (tv *txMemoryView) Delete(_ context.Context, id generic.EntryID) error {
	return tv.parent.deleteLocked(id)
}

func (tv *txMemoryView) List(_ context.Context, f generic.Filter) ([]generic.Entry, error) {
	return tv.parent.listLocked(f), nil
}

// =============================================================================
// MEMORY PARTY DIRECTORY
// =============================================================================

// Parties is an in-memory generic.PartyDirectory.
type Parties struct {
	mu      sync.RWMutex
	parties map[generic.PartyID]generic.Party
}

func NewParties(parties ...generic.Party) *Parties {
	p := &Parties{parties: make(map[generic.PartyID]generic.Party)}
	for _, party := range parties {
		p.parties[party.ID] = party
	}
	return p
}

// Put inserts or replaces a party.
func (p *Parties) Put(party generic.Party) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parties[party.ID] = party
}

func (p *Parties) Resolve(_ context.Context, id generic.PartyID) (*generic.Party, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	party, ok := p.parties[id]
	if !ok {
		return nil, generic.ErrPartyNotFound
	}
	return &party, nil
}
