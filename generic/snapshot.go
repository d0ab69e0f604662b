/*
snapshot.go - Point-in-time copy of the counterparty

PURPOSE:
  A ledger entry records who the money went to as that party looked on the
  day of the transaction. If a tailor is later renamed or changes phone
  number, old advance slips must still show the original details.

CONTRACT:
  - TakeSnapshot resolves the party through the PartyDirectory port
  - Missing or inactive parties fail closed with a ReferenceError
  - The snapshot is written once at Create and never re-synced

SEE ALSO:
  - ledger.go: Create is the only caller
  - store/sqlite/sqlite.go: SQLite-backed PartyDirectory
*/
package generic

import (
	"context"
	"errors"
	"strings"

	"github.com/ttacon/libphonenumber"
)

// =============================================================================
// PARTY - Live counterparty record (owned by the party directory)
// =============================================================================

type PartyKind string

const (
	PartyLabor  PartyKind = "labor"
	PartyDebtor PartyKind = "debtor"
	PartyVendor PartyKind = "vendor"
	PartyOrder  PartyKind = "order"
	PartySale   PartyKind = "sale"
)

func (k PartyKind) Valid() bool {
	switch k {
	case PartyLabor, PartyDebtor, PartyVendor, PartyOrder, PartySale:
		return true
	}
	return false
}

type Party struct {
	ID            PartyID
	Kind          PartyKind
	Name          string
	Phone         string
	Role          string // designation for labor, business type for vendors
	MonthlySalary *Money // labor only
	IsActive      bool
}

// PartyDirectory resolves parties. Implementations return ErrPartyNotFound
// (possibly wrapped) when the ID is unknown.
type PartyDirectory interface {
	Resolve(ctx context.Context, id PartyID) (*Party, error)
}

// =============================================================================
// SNAPSHOT
// =============================================================================

type Snapshot struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

// DefaultPhoneRegion is used to normalise phone numbers without a country code.
var DefaultPhoneRegion = "IN"

// TakeSnapshot resolves partyID and copies its display fields.
func TakeSnapshot(ctx context.Context, dir PartyDirectory, partyID PartyID) (Snapshot, *Party, error) {
	if partyID == "" {
		return Snapshot{}, nil, &ReferenceError{PartyID: partyID, Reason: "party id is required"}
	}

	party, err := dir.Resolve(ctx, partyID)
	if errors.Is(err, ErrPartyNotFound) || (err == nil && party == nil) {
		return Snapshot{}, nil, &ReferenceError{PartyID: partyID, Reason: "not found"}
	}
	if err != nil {
		return Snapshot{}, nil, Persist("resolve party", err)
	}
	if !party.IsActive {
		return Snapshot{}, nil, &ReferenceError{PartyID: partyID, Reason: "inactive"}
	}

	return Snapshot{
		Name:  strings.TrimSpace(party.Name),
		Phone: NormalizePhone(party.Phone),
		Role:  strings.TrimSpace(party.Role),
	}, party, nil
}

// NormalizePhone formats phone as E.164. Numbers that do not parse are
// returned trimmed but otherwise untouched.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	num, err := libphonenumber.Parse(phone, DefaultPhoneRegion)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return phone
	}
	return libphonenumber.Format(num, libphonenumber.E164)
}
