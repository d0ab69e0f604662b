package generic

import (
	"time"
)

// =============================================================================
// ENTRY - Balance-tracking transaction record
// =============================================================================

// Entry is a single ledger entry. Balance is always Principal - Counter and
// is recomputed by the ledger on every write.
type Entry struct {
	ID      EntryID
	Kind    Kind
	PartyID PartyID
	Payee   Payee // payments only

	// Snapshot of the party at TransactionDate. Never re-synced.
	Snapshot Snapshot

	Principal Money // advance given / money lent / amount owed
	Counter   Money // returned / deducted / paid
	Balance   Money // derived

	TransactionDate    Date
	ExpectedReturnDate *Date // receivables only

	Description string
	ReceiptPath string // reference to an externally stored image

	IsActive bool

	// Version increments on every update. Updates are conditional on it.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy string
}

// recompute derives Balance from Principal and Counter.
func (e *Entry) recompute() {
	e.Balance = e.Principal.Sub(e.Counter)
}

// IsSettled returns true when nothing is outstanding.
func (e Entry) IsSettled() bool { return !e.Balance.IsPositive() }

// IsOverdue returns true for an outstanding receivable past its expected
// return date.
func (e Entry) IsOverdue(asOf Date) bool {
	return e.Kind == KindReceivable &&
		e.IsActive &&
		e.ExpectedReturnDate != nil &&
		e.ExpectedReturnDate.Before(asOf) &&
		e.Balance.IsPositive()
}

// =============================================================================
// FILTER - Canned query parameters
// =============================================================================

type Status string

const (
	StatusAny         Status = ""
	StatusOutstanding Status = "outstanding"
	StatusSettled     Status = "settled"
)

// Filter selects entries. Zero fields match everything; inactive entries are
// excluded unless IncludeInactive is set.
type Filter struct {
	Kind            Kind
	PartyID         PartyID
	From            *Date
	To              *Date
	Status          Status
	OverdueAsOf     *Date
	IncludeInactive bool
}

// ForMonth narrows the filter to one calendar month.
func (f Filter) ForMonth(m Month) Filter {
	from, to := m.Start(), m.End()
	f.From, f.To = &from, &to
	return f
}

// Matches evaluates the filter in memory. The SQL store translates the same
// fields into a WHERE clause.
func (f Filter) Matches(e Entry) bool {
	if !f.IncludeInactive && !e.IsActive {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.PartyID != "" && e.PartyID != f.PartyID {
		return false
	}
	if f.From != nil && e.TransactionDate.Before(*f.From) {
		return false
	}
	if f.To != nil && e.TransactionDate.After(*f.To) {
		return false
	}
	switch f.Status {
	case StatusOutstanding:
		if !e.Balance.IsPositive() {
			return false
		}
	case StatusSettled:
		if e.Balance.IsPositive() {
			return false
		}
	}
	if f.OverdueAsOf != nil && !e.IsOverdue(*f.OverdueAsOf) {
		return false
	}
	return true
}
