package generic

import "fmt"

// =============================================================================
// PAYEE - Who a payment entry pays (exactly one variant)
// =============================================================================

// PayeeKind tags the populated variant of a Payee.
type PayeeKind string

const (
	PayeeLabor  PayeeKind = "labor"
	PayeeVendor PayeeKind = "vendor"
	PayeeOrder  PayeeKind = "order"
	PayeeSale   PayeeKind = "sale"
)

// Payee replaces four nullable references with one tagged value.
// The zero Payee is "no payee" and is only valid on non-payment entries.
type Payee struct {
	Kind PayeeKind `json:"kind"`
	ID   PartyID   `json:"id"`
}

func LaborPayee(id PartyID) Payee  { return Payee{Kind: PayeeLabor, ID: id} }
func VendorPayee(id PartyID) Payee { return Payee{Kind: PayeeVendor, ID: id} }
func OrderPayee(id PartyID) Payee  { return Payee{Kind: PayeeOrder, ID: id} }
func SalePayee(id PartyID) Payee   { return Payee{Kind: PayeeSale, ID: id} }

func (p Payee) IsZero() bool { return p.Kind == "" && p.ID == "" }

func (p Payee) Validate() error {
	switch p.Kind {
	case PayeeLabor, PayeeVendor, PayeeOrder, PayeeSale:
	case "":
		return invalid("payee", "payee kind is required")
	default:
		return invalid("payee", "unknown payee kind %q", p.Kind)
	}
	if p.ID == "" {
		return invalid("payee", "%s id is required", p.Kind)
	}
	return nil
}

// PartyKind is the directory kind the variant must resolve to.
func (p Payee) PartyKind() PartyKind { return PartyKind(p.Kind) }

func (p Payee) String() string { return fmt.Sprintf("%s:%s", p.Kind, p.ID) }
