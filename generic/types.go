/*
Package generic provides the core balance ledger engine.

PURPOSE:
  This package contains the domain-agnostic types and rules for money
  entries that carry a running balance. Whether tracking a salary advance
  given to a tailor, money lent to a debtor, or a payment owed to a
  vendor, the same engine snapshots the counterparty, validates amounts,
  recomputes the balance and notifies subscribers.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A fixed-point amount rounded to two decimal places
  - Kind: Which ledger an entry belongs to (advance, receivable, payment)
  - Entry/Party IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal, never float64 accumulation
  2. Derived balance: Balance is recomputed on every write, never trusted as input
  3. Snapshots: Party data is copied at write time and never re-synced
  4. Soft delete: Entries are deactivated, not removed

USAGE:
  amount := generic.NewMoney(10000)
  entry, err := ledger.Create(ctx, generic.CreateInput{
      PartyID:         "labor-7",
      Principal:       amount,
      TransactionDate: generic.NewDate(2024, time.January, 5),
  })

SEE ALSO:
  - ledger.go: Create, counter payments, lifecycle
  - aggregate.go: Read-side reporting
  - hooks.go: Post-commit side effects
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fixed-point currency amount
// =============================================================================

// MoneyPlaces is the number of decimal places every amount is rounded to.
const MoneyPlaces = 2

// Money is a currency amount. The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

func NewMoney(units int64) Money               { return Money{d: decimal.NewFromInt(units)} }
func MoneyFromDecimal(d decimal.Decimal) Money { return Money{d: d.Round(MoneyPlaces)} }

// ParseMoney parses a decimal string such as "1500.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return MoneyFromDecimal(d), nil
}

// ParseMoneyExact is ParseMoney without rounding: amounts with more than
// two decimal places are rejected.
func ParseMoneyExact(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	if !d.Equal(d.Round(MoneyPlaces)) {
		return Money{}, fmt.Errorf("amount %s has more than %d decimal places", s, MoneyPlaces)
	}
	return MoneyFromDecimal(d), nil
}

// MustParseMoney is ParseMoney for literals in tests and defaults.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

var ZeroMoney = Money{}

func (m Money) Decimal() decimal.Decimal        { return m.d }
func (m Money) Add(o Money) Money               { return MoneyFromDecimal(m.d.Add(o.d)) }
func (m Money) Sub(o Money) Money               { return MoneyFromDecimal(m.d.Sub(o.d)) }
func (m Money) IsZero() bool                    { return m.d.IsZero() }
func (m Money) IsPositive() bool                { return m.d.IsPositive() }
func (m Money) IsNegative() bool                { return m.d.IsNegative() }
func (m Money) Equal(o Money) bool              { return m.d.Equal(o.d) }
func (m Money) GreaterThan(o Money) bool        { return m.d.GreaterThan(o.d) }
func (m Money) GreaterThanOrEqual(o Money) bool { return m.d.GreaterThanOrEqual(o.d) }
func (m Money) LessThan(o Money) bool           { return m.d.LessThan(o.d) }
func (m Money) Cmp(o Money) int                 { return m.d.Cmp(o.d) }

// DivInt divides by n and rounds. Used for averages.
func (m Money) DivInt(n int) Money {
	if n == 0 {
		return ZeroMoney
	}
	return MoneyFromDecimal(m.d.Div(decimal.NewFromInt(int64(n))))
}

// String renders the amount with exactly two decimal places.
func (m Money) String() string { return m.d.StringFixed(MoneyPlaces) }

func (m Money) MarshalJSON() ([]byte, error) { return []byte(`"` + m.String() + `"`), nil }

func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*m = MoneyFromDecimal(d)
	return nil
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntryID string
type PartyID string

// =============================================================================
// KIND - Which ledger an entry lives in
// =============================================================================

type Kind string

const (
	KindAdvance    Kind = "advance"    // Salary advance given to labor
	KindReceivable Kind = "receivable" // Money lent to a debtor
	KindPayment    Kind = "payment"    // Money owed to labor, vendor, order or sale
)

func (k Kind) Valid() bool {
	switch k {
	case KindAdvance, KindReceivable, KindPayment:
		return true
	}
	return false
}

// =============================================================================
// ACTOR - Who performs a write
// =============================================================================

// Actor identifies the caller. IsAdmin gates irreversible operations.
type Actor struct {
	ID      string
	IsAdmin bool
}

// SystemActor is used by background jobs.
var SystemActor = Actor{ID: "system"}
