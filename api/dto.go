/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator tags for shape checks
  (required fields, formats, lengths, at most two decimal places on
  amounts via the "money" tag). Business rules (ceilings, monthly
  cap, counter <= principal) are enforced by the ledger, never here.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/shop-ledger/generic"
)

// =============================================================================
// PARTIES
// =============================================================================

type PartyDTO struct {
	ID            string         `json:"id"`
	Kind          string         `json:"kind"`
	Name          string         `json:"name"`
	Phone         string         `json:"phone,omitempty"`
	Role          string         `json:"role,omitempty"`
	MonthlySalary *generic.Money `json:"monthly_salary,omitempty"`
	IsActive      bool           `json:"is_active"`
}

type CreatePartyRequest struct {
	ID            string `json:"id" validate:"omitempty,max=64"`
	Kind          string `json:"kind" validate:"required,oneof=labor debtor vendor order sale"`
	Name          string `json:"name" validate:"required,max=120"`
	Phone         string `json:"phone" validate:"omitempty,max=20"`
	Role          string `json:"role" validate:"omitempty,max=80"`
	MonthlySalary string `json:"monthly_salary" validate:"omitempty,numeric,money"`
}

type HeadroomDTO struct {
	PartyID  string        `json:"party_id"`
	Month    string        `json:"month"`
	Headroom generic.Money `json:"headroom"`
}

// =============================================================================
// ENTRIES
// =============================================================================

type EntryDTO struct {
	ID                 string           `json:"id"`
	Kind               string           `json:"kind"`
	PartyID            string           `json:"party_id"`
	Payee              *PayeeDTO        `json:"payee,omitempty"`
	Snapshot           generic.Snapshot `json:"snapshot"`
	Principal          generic.Money    `json:"principal"`
	Counter            generic.Money    `json:"counter"`
	Balance            generic.Money    `json:"balance"`
	TransactionDate    generic.Date     `json:"transaction_date"`
	ExpectedReturnDate *generic.Date    `json:"expected_return_date,omitempty"`
	Description        string           `json:"description,omitempty"`
	ReceiptPath        string           `json:"receipt_path,omitempty"`
	IsActive           bool             `json:"is_active"`
	Version            int64            `json:"version"`
	CreatedAt          string           `json:"created_at"`
	UpdatedAt          string           `json:"updated_at"`
	CreatedBy          string           `json:"created_by,omitempty"`
}

type PayeeDTO struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// CreateEntryRequest creates an advance, a receivable or a payment. Payments
// also name the payee kind; the payee ID is PartyID.
type CreateEntryRequest struct {
	PartyID            string `json:"party_id" validate:"required,max=64"`
	PayeeKind          string `json:"payee_kind" validate:"omitempty,oneof=labor vendor order sale"`
	Principal          string `json:"principal" validate:"required,numeric,money"`
	Counter            string `json:"counter" validate:"omitempty,numeric,money"`
	TransactionDate    string `json:"transaction_date" validate:"required,datetime=2006-01-02"`
	ExpectedReturnDate string `json:"expected_return_date" validate:"omitempty,datetime=2006-01-02"`
	Description        string `json:"description" validate:"max=500"`
	ReceiptPath        string `json:"receipt_path" validate:"max=255"`
}

type AmountRequest struct {
	Amount string `json:"amount" validate:"required,numeric,money"`
}

type CounterPaymentDTO struct {
	EntryID string        `json:"entry_id"`
	Amount  generic.Money `json:"amount"`
	Balance generic.Money `json:"balance"`
}

type TotalsDTO struct {
	Kind    string         `json:"kind"`
	PartyID string         `json:"party_id"`
	Month   string         `json:"month,omitempty"`
	Totals  generic.Totals `json:"totals"`
}

type OverdueScanDTO struct {
	AsOf      generic.Date `json:"as_of"`
	Published int          `json:"published"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error    string         `json:"error"`
	Details  string         `json:"details,omitempty"`
	Field    string         `json:"field,omitempty"`
	Headroom *generic.Money `json:"headroom,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toPartyDTO(p generic.Party) PartyDTO {
	return PartyDTO{
		ID:            string(p.ID),
		Kind:          string(p.Kind),
		Name:          p.Name,
		Phone:         p.Phone,
		Role:          p.Role,
		MonthlySalary: p.MonthlySalary,
		IsActive:      p.IsActive,
	}
}

func toEntryDTO(e generic.Entry) EntryDTO {
	dto := EntryDTO{
		ID:                 string(e.ID),
		Kind:               string(e.Kind),
		PartyID:            string(e.PartyID),
		Snapshot:           e.Snapshot,
		Principal:          e.Principal,
		Counter:            e.Counter,
		Balance:            e.Balance,
		TransactionDate:    e.TransactionDate,
		ExpectedReturnDate: e.ExpectedReturnDate,
		Description:        e.Description,
		ReceiptPath:        e.ReceiptPath,
		IsActive:           e.IsActive,
		Version:            e.Version,
		CreatedAt:          e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          e.UpdatedAt.Format(time.RFC3339),
		CreatedBy:          e.CreatedBy,
	}
	if !e.Payee.IsZero() {
		dto.Payee = &PayeeDTO{Kind: string(e.Payee.Kind), ID: string(e.Payee.ID)}
	}
	return dto
}

func toEntryDTOs(entries []generic.Entry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}
