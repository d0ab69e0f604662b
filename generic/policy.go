package generic

// =============================================================================
// RULES - Per-kind validation configuration
// =============================================================================

// CapMode selects the ceiling applied on top of the principal ceiling.
type CapMode int

const (
	// CapPrincipal bounds Counter by Principal (receivables, payments).
	CapPrincipal CapMode = iota

	// CapMonthlySalary bounds the sum of a party's active principals in a
	// calendar month by the party's monthly salary (advances).
	CapMonthlySalary
)

// Rules configure a Ledger for one entry kind.
type Rules struct {
	Kind Kind

	// MaxPrincipal is a fixed ceiling on a single entry's principal.
	MaxPrincipal Money

	Cap CapMode

	// PartyKinds lists the directory kinds this ledger may reference.
	PartyKinds []PartyKind

	// RequirePayee makes the Payee variant mandatory (payments).
	RequirePayee bool

	// AllowHardDelete permits the admin-only irreversible delete.
	AllowHardDelete bool

	// AlertThreshold marks entries whose principal is large enough to alert on.
	// Zero disables alerts.
	AlertThreshold Money
}

// DefaultMaxPrincipal is the ceiling used when Rules.MaxPrincipal is zero.
var DefaultMaxPrincipal = NewMoney(1_000_000)

func (r Rules) maxPrincipal() Money {
	if r.MaxPrincipal.IsZero() {
		return DefaultMaxPrincipal
	}
	return r.MaxPrincipal
}

func (r Rules) allowsParty(k PartyKind) bool {
	if len(r.PartyKinds) == 0 {
		return true
	}
	for _, allowed := range r.PartyKinds {
		if allowed == k {
			return true
		}
	}
	return false
}

// IsLarge reports whether amount reaches the alert threshold.
func (r Rules) IsLarge(amount Money) bool {
	return r.AlertThreshold.IsPositive() && amount.GreaterThanOrEqual(r.AlertThreshold)
}
