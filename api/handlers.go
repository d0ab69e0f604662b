/*
handlers.go - HTTP API handlers for the shop ledgers

PURPOSE:
  Exposes the advance, receivable and payment ledgers via REST API. Handles
  HTTP request/response, JSON serialization and request shape validation,
  and delegates every business rule to the ledger.

ENDPOINTS:
  Parties:
    GET    /api/parties                      List parties (?kind=&include_inactive=)
    POST   /api/parties                      Create or update a party
    GET    /api/parties/{id}                 Get party
    POST   /api/parties/{id}/deactivate      Soft-delete party
    POST   /api/parties/{id}/activate        Restore party
    GET    /api/parties/{id}/headroom        Advance headroom (?month=YYYY-MM)

  Ledgers ({kind} is advances, receivables or payments):
    GET    /api/{kind}                       List entries
    POST   /api/{kind}                       Create entry
    GET    /api/{kind}/overdue               Overdue entries (?as_of=)
    GET    /api/{kind}/top                   Top recipients (?limit=)
    GET    /api/{kind}/totals/{partyID}      Party totals (?month=), Redis cached
    GET    /api/{kind}/{id}                  Get entry
    POST   /api/{kind}/{id}/payments         Record counter payment
    PUT    /api/{kind}/{id}/principal        Update principal
    DELETE /api/{kind}/{id}                  Soft delete
    POST   /api/{kind}/{id}/restore          Restore
    POST   /api/payments/{id}/settle         Pay off the remaining balance
    DELETE /api/{kind}/{id}/permanent        Hard delete (admin)

  Admin:
    POST   /api/admin/overdue-scan           Publish overdue events now (admin)

  Scenarios:
    GET    /api/scenarios                    List demo scenarios
    GET    /api/scenarios/current            Currently loaded scenario
    POST   /api/scenarios/load               Reset and load a scenario (admin)

CALLER IDENTITY:
  X-Actor names the caller for the audit trail. X-Admin: true marks an
  administrator. Authentication happens in front of this service.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 403: Forbidden (hard delete without admin)
  - 404: Entry or party not found
  - 409: Already in requested state, concurrent modification (Retry-After: 1),
         party kind change
  - 422: Monthly limit exceeded (body carries headroom), bad party reference
  - 500: Persistence errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Overdue scheduler
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/shop-ledger/advances"
	"github.com/warp/shop-ledger/cache"
	"github.com/warp/shop-ledger/generic"
	"github.com/warp/shop-ledger/payments"
	"github.com/warp/shop-ledger/receivables"
	"github.com/warp/shop-ledger/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       *sqlite.Store
	Cache       *cache.Redis // nil disables the totals cache
	Advances    *advances.Ledger
	Receivables *receivables.Ledger
	Payments    *payments.Ledger
	Scheduler   *OverdueScheduler // nil disables the manual scan endpoint
	Log         logrus.FieldLogger

	validate *validator.Validate

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over the three ledgers.
func NewHandler(store *sqlite.Store, adv *advances.Ledger, rec *receivables.Ledger, pay *payments.Ledger, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		Store:       store,
		Advances:    adv,
		Receivables: rec,
		Payments:    pay,
		Log:         log,
		validate:    newValidator(),
	}
}

// newValidator adds the "money" tag: a decimal amount with at most two
// decimal places. Amounts are never rounded on the way in.
func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		_, err := generic.ParseMoneyExact(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

// ledger resolves the {kind} route segment.
func (h *Handler) ledger(r *http.Request) (*generic.Ledger, bool) {
	switch chi.URLParam(r, "kind") {
	case "advances":
		return h.Advances.Ledger, true
	case "receivables":
		return h.Receivables.Ledger, true
	case "payments":
		return h.Payments.Ledger, true
	}
	return nil, false
}

func actorFrom(r *http.Request) generic.Actor {
	admin, _ := strconv.ParseBool(r.Header.Get("X-Admin"))
	return generic.Actor{ID: r.Header.Get("X-Actor"), IsAdmin: admin}
}

// =============================================================================
// PARTY HANDLERS
// =============================================================================

// ListParties returns parties, optionally of one kind.
func (h *Handler) ListParties(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includeInactive, _ := strconv.ParseBool(q.Get("include_inactive"))

	parties, err := h.Store.ListParties(r.Context(), generic.PartyKind(q.Get("kind")), includeInactive)
	if err != nil {
		h.writeLedgerError(w, "ListParties", generic.Persist("list parties", err))
		return
	}

	dtos := make([]PartyDTO, len(parties))
	for i, p := range parties {
		dtos[i] = toPartyDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetParty returns a single party, active or not.
func (h *Handler) GetParty(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.Resolve(r.Context(), generic.PartyID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeLedgerError(w, "GetParty", err)
		return
	}
	writeJSON(w, http.StatusOK, toPartyDTO(*p))
}

// CreateParty inserts a party (201) or updates an existing one (200).
// Updates cannot change the kind, keep the salary when it is omitted and
// keep the active flag. Updating a party never changes the snapshots
// already taken on its entries.
func (h *Handler) CreateParty(w http.ResponseWriter, r *http.Request) {
	var req CreatePartyRequest
	if !h.decode(w, r, &req) {
		return
	}

	p := generic.Party{
		ID:       generic.PartyID(req.ID),
		Kind:     generic.PartyKind(req.Kind),
		Name:     strings.TrimSpace(req.Name),
		Phone:    generic.NormalizePhone(req.Phone),
		Role:     strings.TrimSpace(req.Role),
		IsActive: true,
	}
	if p.ID == "" {
		p.ID = generic.PartyID(uuid.NewString())
	}
	if req.MonthlySalary != "" {
		if p.Kind != generic.PartyLabor {
			writeError(w, http.StatusBadRequest, "monthly_salary applies to labor only", nil)
			return
		}
		salary, err := generic.ParseMoney(req.MonthlySalary)
		if err != nil || !salary.IsPositive() {
			writeError(w, http.StatusBadRequest, "monthly_salary must be a positive amount", err)
			return
		}
		p.MonthlySalary = &salary
	}

	status := http.StatusCreated
	if req.ID != "" {
		existing, err := h.Store.Resolve(r.Context(), p.ID)
		switch {
		case err == nil:
			if existing.Kind != p.Kind {
				writeError(w, http.StatusConflict,
					fmt.Sprintf("party %s is a %s; kind cannot change", existing.ID, existing.Kind), nil)
				return
			}
			// An update keeps the salary unless given and never reactivates.
			if p.MonthlySalary == nil {
				p.MonthlySalary = existing.MonthlySalary
			}
			p.IsActive = existing.IsActive
			status = http.StatusOK
		case !errors.Is(err, generic.ErrPartyNotFound):
			h.writeLedgerError(w, "CreateParty", generic.Persist("resolve party", err))
			return
		}
	}

	if err := h.Store.SaveParty(r.Context(), p); err != nil {
		h.writeLedgerError(w, "CreateParty", generic.Persist("save party", err))
		return
	}
	writeJSON(w, status, toPartyDTO(p))
}

// DeactivateParty hides a party from new entries. Existing entries keep
// their snapshot.
func (h *Handler) DeactivateParty(w http.ResponseWriter, r *http.Request) {
	h.setPartyActive(w, r, false)
}

func (h *Handler) ActivateParty(w http.ResponseWriter, r *http.Request) {
	h.setPartyActive(w, r, true)
}

func (h *Handler) setPartyActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := generic.PartyID(chi.URLParam(r, "id"))
	if err := h.Store.SetPartyActive(r.Context(), id, active); err != nil {
		h.writeLedgerError(w, "setPartyActive", err)
		return
	}
	p, err := h.Store.Resolve(r.Context(), id)
	if err != nil {
		h.writeLedgerError(w, "setPartyActive", err)
		return
	}
	writeJSON(w, http.StatusOK, toPartyDTO(*p))
}

// GetHeadroom returns how much more a worker may draw as advances.
// GET /api/parties/{id}/headroom?month=YYYY-MM (default: current month)
func (h *Handler) GetHeadroom(w http.ResponseWriter, r *http.Request) {
	month, ok := h.monthParam(w, r)
	if !ok {
		return
	}
	if month == nil {
		m := generic.DateOf(h.Advances.Clock.Now()).Month()
		month = &m
	}

	id := generic.PartyID(chi.URLParam(r, "id"))
	headroom, err := h.Advances.MonthlyHeadroom(r.Context(), id, *month)
	if err != nil {
		h.writeLedgerError(w, "GetHeadroom", err)
		return
	}
	writeJSON(w, http.StatusOK, HeadroomDTO{PartyID: string(id), Month: month.String(), Headroom: headroom})
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// ListEntries returns entries of one kind.
// Query: party_id, from, to, status (outstanding|settled), include_inactive
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown ledger", nil)
		return
	}

	q := r.URL.Query()
	f := generic.Filter{
		PartyID: generic.PartyID(q.Get("party_id")),
		Status:  generic.Status(q.Get("status")),
	}
	f.IncludeInactive, _ = strconv.ParseBool(q.Get("include_inactive"))
	switch f.Status {
	case generic.StatusAny, generic.StatusOutstanding, generic.StatusSettled:
	default:
		writeError(w, http.StatusBadRequest, "status must be outstanding or settled", nil)
		return
	}
	var valid bool
	if f.From, valid = dateParam(w, r, "from"); !valid {
		return
	}
	if f.To, valid = dateParam(w, r, "to"); !valid {
		return
	}

	entries, err := l.List(r.Context(), f)
	if err != nil {
		h.writeLedgerError(w, "ListEntries", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// CreateEntry records a new advance, receivable or payment.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown ledger", nil)
		return
	}

	var req CreateEntryRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := generic.CreateInput{
		PartyID:     generic.PartyID(req.PartyID),
		Description: strings.TrimSpace(req.Description),
		ReceiptPath: req.ReceiptPath,
		Actor:       actorFrom(r),
	}
	if req.PayeeKind != "" {
		in.Payee = generic.Payee{Kind: generic.PayeeKind(req.PayeeKind), ID: in.PartyID}
	}

	// The validator has already checked the formats.
	in.Principal, _ = generic.ParseMoney(req.Principal)
	if req.Counter != "" {
		in.Counter, _ = generic.ParseMoney(req.Counter)
	}
	in.TransactionDate, _ = generic.ParseDate(req.TransactionDate)
	if req.ExpectedReturnDate != "" {
		d, _ := generic.ParseDate(req.ExpectedReturnDate)
		in.ExpectedReturnDate = &d
	}

	e, err := l.Create(r.Context(), in)
	if err != nil {
		h.writeLedgerError(w, "CreateEntry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(*e))
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown ledger", nil)
		return
	}
	e, err := l.Get(r.Context(), generic.EntryID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeLedgerError(w, "GetEntry", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*e))
}

// RecordCounterPayment books a return, deduction or payment against an entry.
func (h *Handler) RecordCounterPayment(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown ledger", nil)
		return
	}
	var req AmountRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, _ := generic.ParseMoney(req.Amount)

	id := generic.EntryID(chi.URLParam(r, "id"))
	balance, err := l.RecordCounterPayment(r.Context(), id, amount, actorFrom(r))
	if err != nil {
		h.writeLedgerError(w, "RecordCounterPayment", err)
		return
	}
	writeJSON(w, http.StatusOK, CounterPaymentDTO{EntryID: string(id), Amount: amount, Balance: balance})
}

// UpdatePrincipal corrects the principal of an active entry.
func (h *Handler) UpdatePrincipal(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown ledger", nil)
		return
	}
	var req AmountRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, _ := generic.ParseMoney(req.Amount)

	e, err := l.UpdatePrincipal(r.Context(), generic.EntryID(chi.URLParam(r, "id")), amount, actorFrom(r))
	if err != nil {
		h.writeLedgerError(w, "UpdatePrincipal", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*e))
}

func (h *Handler) SoftDelete(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown ledger", nil)
		return
	}
	e, err := l.SoftDelete(r.Context(), generic.EntryID(chi.URLParam(r, "id")), actorFrom(r))
	if err != nil {
		h.writeLedgerError(w, "SoftDelete", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*e))
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown ledger", nil)
		return
	}
	e, err := l.Restore(r.Context(), generic.EntryID(chi.URLParam(r, "id")), actorFrom(r))
	if err != nil {
		h.writeLedgerError(w, "Restore", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*e))
}

// HardDelete permanently removes an entry. Requires X-Admin: true.
func (h *Handler) HardDelete(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown ledger", nil)
		return
	}
	if err := l.HardDelete(r.Context(), actorFrom(r), generic.EntryID(chi.URLParam(r, "id"))); err != nil {
		h.writeLedgerError(w, "HardDelete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SettlePayment pays off the remaining balance of a payment.
func (h *Handler) SettlePayment(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "kind") != "payments" {
		writeError(w, http.StatusNotFound, "Only payments can be settled", nil)
		return
	}
	e, err := h.Payments.Settle(r.Context(), generic.EntryID(chi.URLParam(r, "id")), actorFrom(r))
	if err != nil {
		h.writeLedgerError(w, "SettlePayment", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*e))
}

// =============================================================================
// AGGREGATION HANDLERS
// =============================================================================

// GetTotals returns a party's totals, served from Redis when cached.
// GET /api/{kind}/totals/{partyID}?month=YYYY-MM
func (h *Handler) GetTotals(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown ledger", nil)
		return
	}
	month, ok := h.monthParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	party := generic.PartyID(chi.URLParam(r, "partyID"))
	logFields := logrus.Fields{"module": "api", "funcName": "GetTotals"}

	// The generation is read before computing, so totals computed before a
	// concurrent write land under a generation that is never read again.
	key, err := h.Cache.VersionedKey(ctx, generic.TotalsCacheKey(l.Rules.Kind, party, month))
	cacheable := err == nil
	if err != nil {
		h.Log.WithFields(logFields).WithField("key", key).Warn(err.Error())
	}

	var dto TotalsDTO
	if cacheable {
		found, err := h.Cache.GetObject(ctx, key, &dto)
		if err != nil {
			h.Log.WithFields(logFields).WithField("key", key).Warn(err.Error())
		}
		if found {
			w.Header().Set("X-Cache", "HIT")
			writeJSON(w, http.StatusOK, dto)
			return
		}
	}

	totals, err := l.TotalsByParty(ctx, party, month)
	if err != nil {
		h.writeLedgerError(w, "GetTotals", err)
		return
	}
	dto = TotalsDTO{Kind: string(l.Rules.Kind), PartyID: string(party), Totals: totals}
	if month != nil {
		dto.Month = month.String()
	}
	if cacheable {
		if err := h.Cache.SetObject(ctx, key, dto); err != nil {
			h.Log.WithFields(logFields).WithField("key", key).Warn(err.Error())
		}
	}
	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, http.StatusOK, dto)
}

// GetOverdue returns overdue entries as of ?as_of (default today).
func (h *Handler) GetOverdue(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown ledger", nil)
		return
	}
	asOf, ok := dateParam(w, r, "as_of")
	if !ok {
		return
	}
	if asOf == nil {
		today := generic.DateOf(l.Clock.Now())
		asOf = &today
	}

	entries, err := l.Overdue(r.Context(), *asOf)
	if err != nil {
		h.writeLedgerError(w, "GetOverdue", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// GetTopRecipients ranks parties by total principal. ?limit defaults to 10.
func (h *Handler) GetTopRecipients(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown ledger", nil)
		return
	}
	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer", err)
			return
		}
		limit = n
	}

	top, err := l.TopRecipients(r.Context(), limit)
	if err != nil {
		h.writeLedgerError(w, "GetTopRecipients", err)
		return
	}
	writeJSON(w, http.StatusOK, top)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ScanOverdue publishes overdue events immediately instead of waiting for
// the scheduler tick.
func (h *Handler) ScanOverdue(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusNotFound, "Overdue scheduler not configured", nil)
		return
	}
	if !actorFrom(r).IsAdmin {
		writeError(w, http.StatusForbidden, "Admin only", generic.ErrForbidden)
		return
	}
	asOf, n, err := h.Scheduler.CheckNow(r.Context())
	if err != nil {
		h.writeLedgerError(w, "ScanOverdue", err)
		return
	}
	writeJSON(w, http.StatusOK, OverdueScanDTO{AsOf: asOf, Published: n})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads and validates a JSON body. It writes the error response and
// returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		resp := ErrorResponse{Error: "Validation failed", Details: err.Error()}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			resp.Field = verrs[0].Field()
			resp.Details = fmt.Sprintf("%s failed on %s", verrs[0].Field(), verrs[0].Tag())
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return false
	}
	return true
}

func (h *Handler) monthParam(w http.ResponseWriter, r *http.Request) (*generic.Month, bool) {
	s := r.URL.Query().Get("month")
	if s == "" {
		return nil, true
	}
	m, err := generic.ParseMonth(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", err)
		return nil, false
	}
	return &m, true
}

func dateParam(w http.ResponseWriter, r *http.Request, name string) (*generic.Date, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, true
	}
	d, err := generic.ParseDate(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s format (use YYYY-MM-DD)", name), err)
		return nil, false
	}
	return &d, true
}

// statusFor maps the ledger error taxonomy to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, generic.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, generic.ErrForbidden):
		return http.StatusForbidden
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, generic.ErrAlreadyInState), errors.Is(err, generic.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, generic.ErrLimitExceeded), errors.Is(err, generic.ErrReference):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeLedgerError(w http.ResponseWriter, funcName string, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: http.StatusText(status), Details: err.Error()}

	var verr *generic.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	var lerr *generic.LimitExceededError
	if errors.As(err, &lerr) {
		headroom := lerr.Headroom
		resp.Headroom = &headroom
	}

	fields := logrus.Fields{"module": "api", "funcName": funcName}
	switch {
	case status == http.StatusInternalServerError:
		h.Log.WithFields(fields).Error(err.Error())
		resp.Details = ""
	case generic.IsClientError(err):
		h.Log.WithFields(fields).Debug(err.Error())
	}
	if generic.IsRetryable(err) {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
