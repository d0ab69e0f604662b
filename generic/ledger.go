/*
ledger.go - Balance ledger write path

PURPOSE:
  The Ledger owns every write to entries of one Kind. It snapshots the
  party, validates amounts, recomputes the balance, persists inside a store
  transaction and publishes an event once the transaction has committed.

CRITICAL INVARIANTS:
  1. Balance == Principal - Counter after every successful write
  2. 0 <= Counter <= Principal
  3. TransactionDate <= today (server clock)
  4. Advances: sum of the party's active advances in a calendar month
     never exceeds the party's monthly salary
  5. Validation completes before any mutation; a failed call leaves the
     stored entry untouched
  6. Hook failures never fail the write

CONCURRENCY:
  Updates are conditional on the entry version (optimistic). Advance writes
  additionally hold a per-party Locker key around the read-sum-insert so the
  monthly cap holds across concurrent writers.

EXAMPLE FLOW (advance, salary 15000):
  1. Create 10000 on 2024-01-05 -> ok, headroom 5000
  2. Create 6000 on 2024-01-20  -> LimitExceededError{Headroom: 5000}

SEE ALSO:
  - snapshot.go: Party resolution
  - aggregate.go: Read side
  - hooks.go: Event dispatch
*/
package generic

import (
	"context"

	"github.com/google/uuid"
)

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	Store   TxStore
	Parties PartyDirectory
	Rules   Rules
	Clock   Clock
	Locker  Locker
	Hooks   *Dispatcher
	NewID   func() EntryID
}

// NewLedger creates a ledger with a system clock, an in-process locker and
// UUID identifiers. Fields may be replaced before first use.
func NewLedger(store TxStore, parties PartyDirectory, rules Rules) *Ledger {
	return &Ledger{
		Store:   store,
		Parties: parties,
		Rules:   rules,
		Clock:   SystemClock{},
		Locker:  NewLocalLocker(),
		NewID:   func() EntryID { return EntryID(uuid.NewString()) },
	}
}

// CreateInput is the single constructor input for an entry.
type CreateInput struct {
	PartyID            PartyID
	Payee              Payee
	Principal          Money
	Counter            Money // optional amount already returned/paid
	TransactionDate    Date
	ExpectedReturnDate *Date
	Description        string
	ReceiptPath        string
	Actor              Actor
}

func (l *Ledger) today() Date { return DateOf(l.Clock.Now()) }

// =============================================================================
// CREATE
// =============================================================================

// Create validates in, snapshots the party and persists a new active entry.
func (l *Ledger) Create(ctx context.Context, in CreateInput) (*Entry, error) {
	if err := l.resolvePayee(&in); err != nil {
		return nil, err
	}
	if err := l.validateCreate(in); err != nil {
		return nil, err
	}

	snap, party, err := TakeSnapshot(ctx, l.Parties, in.PartyID)
	if err != nil {
		return nil, err
	}
	if !l.Rules.allowsParty(party.Kind) {
		return nil, &ReferenceError{PartyID: party.ID, Reason: "party kind " + string(party.Kind) + " not allowed for " + string(l.Rules.Kind)}
	}
	if !in.Payee.IsZero() && in.Payee.PartyKind() != party.Kind {
		return nil, invalid("payee", "payee kind %s does not match party kind %s", in.Payee.Kind, party.Kind)
	}

	now := l.Clock.Now()
	e := Entry{
		ID:                 l.NewID(),
		Kind:               l.Rules.Kind,
		PartyID:            party.ID,
		Payee:              in.Payee,
		Snapshot:           snap,
		Principal:          in.Principal,
		Counter:            in.Counter,
		TransactionDate:    in.TransactionDate,
		ExpectedReturnDate: in.ExpectedReturnDate,
		Description:        in.Description,
		ReceiptPath:        in.ReceiptPath,
		IsActive:           true,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
		CreatedBy:          in.Actor.ID,
	}
	e.recompute()

	err = l.withPartyLock(ctx, party.ID, func() error {
		return l.Store.WithTx(ctx, func(s Store) error {
			if l.Rules.Cap == CapMonthlySalary {
				if err := l.checkMonthlyCap(ctx, s, party, e.TransactionDate.Month(), e.Principal, ""); err != nil {
					return err
				}
			}
			return Persist("insert entry", s.Insert(ctx, e))
		})
	})
	if err != nil {
		return nil, err
	}

	l.publish(ctx, EventCreated, e, in.Actor, e.Principal)
	return &e, nil
}

func (l *Ledger) resolvePayee(in *CreateInput) error {
	if in.Payee.IsZero() {
		if l.Rules.RequirePayee {
			return invalid("payee", "payee is required")
		}
		return nil
	}
	if !l.Rules.RequirePayee {
		return invalid("payee", "payee not supported for %s entries", l.Rules.Kind)
	}
	if err := in.Payee.Validate(); err != nil {
		return err
	}
	if in.PartyID == "" {
		in.PartyID = in.Payee.ID
	} else if in.PartyID != in.Payee.ID {
		return invalid("payee", "payee id %s does not match party id %s", in.Payee.ID, in.PartyID)
	}
	return nil
}

func (l *Ledger) validateCreate(in CreateInput) error {
	if err := l.validatePrincipal(in.Principal); err != nil {
		return err
	}
	if in.TransactionDate.IsZero() {
		return invalid("transaction_date", "transaction date is required")
	}
	if in.TransactionDate.After(l.today()) {
		return invalid("transaction_date", "transaction date %s is in the future", in.TransactionDate)
	}
	if in.ExpectedReturnDate != nil {
		if l.Rules.Kind != KindReceivable {
			return invalid("expected_return_date", "only receivables have an expected return date")
		}
		if in.ExpectedReturnDate.Before(in.TransactionDate) {
			return invalid("expected_return_date", "expected return date %s is before transaction date %s",
				in.ExpectedReturnDate, in.TransactionDate)
		}
	}
	if in.Counter.IsNegative() {
		return invalid("counter", "counter amount cannot be negative")
	}
	if in.Counter.GreaterThan(in.Principal) {
		return invalid("counter", "counter amount %s exceeds principal %s", in.Counter, in.Principal)
	}
	return nil
}

func (l *Ledger) validatePrincipal(p Money) error {
	if !p.IsPositive() {
		return invalid("principal", "amount must be greater than zero")
	}
	if ceiling := l.Rules.maxPrincipal(); p.GreaterThan(ceiling) {
		return invalid("principal", "amount %s exceeds maximum %s", p, ceiling)
	}
	return nil
}

// =============================================================================
// COUNTER PAYMENTS
// =============================================================================

// RecordCounterPayment adds amount to the entry's counter and returns the new
// balance. The entry is unchanged when the call fails.
func (l *Ledger) RecordCounterPayment(ctx context.Context, id EntryID, amount Money, actor Actor) (Money, error) {
	if !amount.IsPositive() {
		return ZeroMoney, invalid("amount", "amount must be greater than zero")
	}

	var updated Entry
	err := l.Store.WithTx(ctx, func(s Store) error {
		e, err := l.load(ctx, s, id)
		if err != nil {
			return err
		}
		if !e.IsActive {
			return invalid("entry", "entry %s is inactive", id)
		}
		if amount.GreaterThan(e.Balance) {
			return invalid("amount", "amount %s exceeds remaining balance %s", amount, e.Balance)
		}
		e.Counter = e.Counter.Add(amount)
		updated, err = l.save(ctx, s, *e)
		return err
	})
	if err != nil {
		return ZeroMoney, err
	}

	l.publish(ctx, EventCounterRecorded, updated, actor, amount)
	return updated.Balance, nil
}

// UpdatePrincipal changes the principal, re-validating every constraint.
func (l *Ledger) UpdatePrincipal(ctx context.Context, id EntryID, principal Money, actor Actor) (*Entry, error) {
	if err := l.validatePrincipal(principal); err != nil {
		return nil, err
	}

	current, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated Entry
	err = l.withPartyLock(ctx, current.PartyID, func() error {
		party, err := l.capParty(ctx, current.PartyID)
		if err != nil {
			return err
		}
		return l.Store.WithTx(ctx, func(s Store) error {
			e, err := l.load(ctx, s, id)
			if err != nil {
				return err
			}
			if !e.IsActive {
				return invalid("entry", "entry %s is inactive", id)
			}
			if principal.LessThan(e.Counter) {
				return invalid("principal", "amount %s is below the %s already recorded", principal, e.Counter)
			}
			if party != nil {
				if err := l.checkMonthlyCap(ctx, s, party, e.TransactionDate.Month(), principal, e.ID); err != nil {
					return err
				}
			}
			e.Principal = principal
			updated, err = l.save(ctx, s, *e)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	l.publish(ctx, EventPrincipalUpdated, updated, actor, principal)
	return &updated, nil
}

// =============================================================================
// SOFT DELETE LIFECYCLE
// =============================================================================

// SoftDelete marks the entry inactive. It stays in storage.
func (l *Ledger) SoftDelete(ctx context.Context, id EntryID, actor Actor) (*Entry, error) {
	return l.setActive(ctx, id, false, actor)
}

// Restore reactivates a soft-deleted entry. Restoring an advance re-checks
// the monthly cap, since other advances may have been given meanwhile.
func (l *Ledger) Restore(ctx context.Context, id EntryID, actor Actor) (*Entry, error) {
	return l.setActive(ctx, id, true, actor)
}

func (l *Ledger) setActive(ctx context.Context, id EntryID, active bool, actor Actor) (*Entry, error) {
	current, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated Entry
	err = l.withPartyLock(ctx, current.PartyID, func() error {
		var party *Party
		if active && !current.IsActive {
			p, err := l.capParty(ctx, current.PartyID)
			if err != nil {
				return err
			}
			party = p
		}
		return l.Store.WithTx(ctx, func(s Store) error {
			e, err := l.load(ctx, s, id)
			if err != nil {
				return err
			}
			if e.IsActive == active {
				return &AlreadyInStateError{EntryID: id, IsActive: active}
			}
			if active && party != nil {
				if err := l.checkMonthlyCap(ctx, s, party, e.TransactionDate.Month(), e.Principal, e.ID); err != nil {
					return err
				}
			}
			e.IsActive = active
			updated, err = l.save(ctx, s, *e)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	ev := EventSoftDeleted
	if active {
		ev = EventRestored
	}
	l.publish(ctx, ev, updated, actor, ZeroMoney)
	return &updated, nil
}

// HardDelete removes an entry permanently. Only administrators may call it
// and only on ledgers whose rules allow it.
func (l *Ledger) HardDelete(ctx context.Context, actor Actor, id EntryID) error {
	if !l.Rules.AllowHardDelete {
		return ErrForbidden
	}
	if !actor.IsAdmin {
		return ErrForbidden
	}

	var deleted Entry
	err := l.Store.WithTx(ctx, func(s Store) error {
		e, err := l.load(ctx, s, id)
		if err != nil {
			return err
		}
		deleted = *e
		return Persist("delete entry", s.Delete(ctx, id))
	})
	if err != nil {
		return err
	}

	l.publish(ctx, EventHardDeleted, deleted, actor, ZeroMoney)
	return nil
}

// =============================================================================
// READS
// =============================================================================

// Get returns an entry of this ledger's kind, active or not.
func (l *Ledger) Get(ctx context.Context, id EntryID) (*Entry, error) {
	return l.load(ctx, l.Store, id)
}

// Headroom is how much more the party may receive as advances in month.
func (l *Ledger) Headroom(ctx context.Context, partyID PartyID, month Month) (Money, error) {
	party, err := l.resolveParty(ctx, partyID)
	if err != nil {
		return ZeroMoney, err
	}
	if party.MonthlySalary == nil {
		return ZeroMoney, &ReferenceError{PartyID: partyID, Reason: "no monthly salary on record"}
	}
	used, err := l.monthUsed(ctx, l.Store, partyID, month, "")
	if err != nil {
		return ZeroMoney, err
	}
	return nonNegative(party.MonthlySalary.Sub(used)), nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func (l *Ledger) load(ctx context.Context, s Store, id EntryID) (*Entry, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, Persist("get entry", err)
	}
	if e.Kind != l.Rules.Kind {
		return nil, ErrEntryNotFound
	}
	return e, nil
}

// save recomputes the balance and writes e conditionally on its version.
func (l *Ledger) save(ctx context.Context, s Store, e Entry) (Entry, error) {
	prev := e.Version
	e.recompute()
	e.Version = prev + 1
	e.UpdatedAt = l.Clock.Now()
	if err := s.Update(ctx, e, prev); err != nil {
		return Entry{}, Persist("update entry", err)
	}
	return e, nil
}

func (l *Ledger) resolveParty(ctx context.Context, id PartyID) (*Party, error) {
	_, party, err := TakeSnapshot(ctx, l.Parties, id)
	return party, err
}

// capParty resolves the party whose salary caps this ledger, or returns nil
// when the ledger has no monthly cap. Parties are resolved before the store
// transaction opens so directory reads never wait on it.
func (l *Ledger) capParty(ctx context.Context, id PartyID) (*Party, error) {
	if l.Rules.Cap != CapMonthlySalary {
		return nil, nil
	}
	return l.resolveParty(ctx, id)
}

func (l *Ledger) checkMonthlyCap(ctx context.Context, s Store, party *Party, month Month, amount Money, exclude EntryID) error {
	if party.MonthlySalary == nil || !party.MonthlySalary.IsPositive() {
		return &ReferenceError{PartyID: party.ID, Reason: "no monthly salary on record"}
	}
	used, err := l.monthUsed(ctx, s, party.ID, month, exclude)
	if err != nil {
		return err
	}
	limit := *party.MonthlySalary
	if used.Add(amount).GreaterThan(limit) {
		return &LimitExceededError{
			PartyID:   party.ID,
			Month:     month,
			Limit:     limit,
			Used:      used,
			Requested: amount,
			Headroom:  nonNegative(limit.Sub(used)),
		}
	}
	return nil
}

func (l *Ledger) monthUsed(ctx context.Context, s Store, party PartyID, month Month, exclude EntryID) (Money, error) {
	entries, err := s.List(ctx, Filter{Kind: l.Rules.Kind, PartyID: party}.ForMonth(month))
	if err != nil {
		return ZeroMoney, Persist("list entries", err)
	}
	used := ZeroMoney
	for _, e := range entries {
		if e.ID != exclude {
			used = used.Add(e.Principal)
		}
	}
	return used, nil
}

func (l *Ledger) withPartyLock(ctx context.Context, party PartyID, fn func() error) error {
	if l.Rules.Cap != CapMonthlySalary || l.Locker == nil {
		return fn()
	}
	unlock, err := l.Locker.Lock(ctx, PartyLockKey(l.Rules.Kind, party))
	if err != nil {
		return Persist("lock party", err)
	}
	defer unlock()
	return fn()
}

func (l *Ledger) publish(ctx context.Context, t EventType, e Entry, actor Actor, amount Money) {
	l.Hooks.Publish(ctx, Event{
		Type:   t,
		Entry:  e,
		Actor:  actor,
		At:     l.Clock.Now(),
		Amount: amount,
		Large:  l.Rules.IsLarge(e.Principal),
	})
}

func nonNegative(m Money) Money {
	if m.IsNegative() {
		return ZeroMoney
	}
	return m
}
