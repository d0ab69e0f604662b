/*
store.go - Persistence interface for ledger entries

PURPOSE:
  Defines the interface between the ledger rules and the database.
  Different implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  Store:   Entry persistence (insert, get, conditional update, list)
  TxStore: Transactional wrapper (all-or-nothing read-modify-write)

CONDITIONAL UPDATES:
  Update only succeeds when the stored version equals the version the caller
  read. Otherwise ErrConcurrentModification is returned and nothing changes.
  This closes the read-balance / write-balance race between two concurrent
  counter payments on the same entry.

HARD DELETE:
  Delete exists for the admin-only payment removal path. The ledger refuses
  to call it for any other kind.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: The only writer
*/
package generic

import "context"

// =============================================================================
// STORE - Interface for entry persistence
// =============================================================================

type Store interface {
	// Insert persists a new entry. The ID must be unique.
	Insert(ctx context.Context, e Entry) error

	// Get returns the entry or ErrEntryNotFound.
	Get(ctx context.Context, id EntryID) (*Entry, error)

	// Update overwrites the mutable fields of e (counter, principal, balance,
	// is_active, updated_at, version) when the stored version equals prevVersion.
	Update(ctx context.Context, e Entry, prevVersion int64) error

	// Delete removes the entry permanently.
	Delete(ctx context.Context, id EntryID) error

	// List returns entries matching f, ordered by transaction date then ID.
	List(ctx context.Context, f Filter) ([]Entry, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
