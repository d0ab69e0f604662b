/*
handlers_test.go - HTTP tests for the ledger API

Tests for:
- Advance monthly cap (422 with headroom)
- Receivable returns and counter rejections
- Soft delete, restore and admin-only hard delete
- Request validation and error mapping
- Totals, overdue and top recipients
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shop-ledger/advances"
	"github.com/warp/shop-ledger/cache"
	"github.com/warp/shop-ledger/generic"
	"github.com/warp/shop-ledger/notify"
	"github.com/warp/shop-ledger/payments"
	"github.com/warp/shop-ledger/receivables"
	"github.com/warp/shop-ledger/store/sqlite"
)

var testNow = time.Date(2024, time.January, 31, 10, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []generic.Event
}

func (r *recorder) Handle(_ context.Context, ev generic.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []generic.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]generic.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type testServer struct {
	t       *testing.T
	handler *Handler
	router  http.Handler
	events  *recorder
	hooks   *generic.Dispatcher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	events := &recorder{}
	hooks := generic.NewDispatcher(nil, events)
	clock := generic.FixedClock{At: testNow}

	adv := advances.NewLedger(store, store)
	rec := receivables.NewLedger(store, store)
	pay := payments.NewLedger(store, store)
	for _, l := range []*generic.Ledger{adv.Ledger, rec.Ledger, pay.Ledger} {
		l.Clock = clock
		l.Hooks = hooks
	}

	h := NewHandler(store, adv, rec, pay, nil)
	h.Scheduler = NewOverdueScheduler(rec.Ledger, hooks, nil)

	return &testServer{t: t, handler: h, router: NewRouter(h, nil), events: events, hooks: hooks}
}

// newCachedTestServer runs hooks asynchronously, as the server does, with
// totals cached in miniredis and invalidated by the cache hook.
func newCachedTestServer(t *testing.T) *testServer {
	t.Helper()
	s := newTestServer(t)
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedis(context.Background(), mr.Addr(), "", 0, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })

	s.handler.Cache = rc
	s.hooks.Async()
	s.hooks.Register(notify.CacheHook{Cache: rc})
	t.Cleanup(s.hooks.Wait)
	return s
}

func (s *testServer) totals(path, wantCache string) generic.Totals {
	s.t.Helper()
	w := s.do(http.MethodGet, path, nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(s.t, wantCache, w.Header().Get("X-Cache"), path)
	return decodeBody[TotalsDTO](s.t, w).Totals
}

func (s *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor", "clerk")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) party(id, kind, name, salary string) {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/parties", CreatePartyRequest{ID: id, Kind: kind, Name: name, MonthlySalary: salary})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
}

func (s *testServer) create(kind string, req CreateEntryRequest) EntryDTO {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/"+kind, req)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var e EntryDTO
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// =============================================================================
// ADVANCES
// =============================================================================

func TestAPI_AdvanceMonthlyCap(t *testing.T) {
	// GIVEN: A tailor earning 15000 with 10000 advanced this month
	// WHEN: Asking for another 6000
	// THEN: 422 with the 5000 headroom, and nothing is recorded
	s := newTestServer(t)
	s.party("ravi", "labor", "Ravi", "15000")

	first := s.create("advances", CreateEntryRequest{PartyID: "ravi", Principal: "10000", TransactionDate: "2024-01-05"})
	assert.Equal(t, "10000.00", first.Balance.String())
	assert.Equal(t, "Ravi", first.Snapshot.Name)
	assert.Equal(t, "clerk", first.CreatedBy)

	w := s.do(http.MethodPost, "/api/advances", CreateEntryRequest{PartyID: "ravi", Principal: "6000", TransactionDate: "2024-01-20"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeBody[ErrorResponse](t, w)
	require.NotNil(t, resp.Headroom)
	assert.Equal(t, "5000.00", resp.Headroom.String())

	w = s.do(http.MethodGet, "/api/parties/ravi/headroom?month=2024-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5000.00", decodeBody[HeadroomDTO](t, w).Headroom.String())

	w = s.do(http.MethodGet, "/api/parties/ravi/headroom", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-01", decodeBody[HeadroomDTO](t, w).Month, "defaults to the current month")

	w = s.do(http.MethodGet, "/api/advances?party_id=ravi", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]EntryDTO](t, w), 1)
}

func TestAPI_PartyValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/parties", CreatePartyRequest{Kind: "wizard", Name: "Merlin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Kind", decodeBody[ErrorResponse](t, w).Field)

	w = s.do(http.MethodPost, "/api/parties", CreatePartyRequest{Kind: "debtor", Name: "Anil", MonthlySalary: "5000"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "salary is for labor only")

	w = s.do(http.MethodPost, "/api/parties", CreatePartyRequest{Kind: "labor", Name: "Ravi", MonthlySalary: "-5"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/parties", CreatePartyRequest{Kind: "labor", Name: "Ravi", Phone: "98765 43210"})
	require.Equal(t, http.StatusCreated, w.Code)
	p := decodeBody[PartyDTO](t, w)
	assert.NotEmpty(t, p.ID, "an ID is generated")
	assert.Equal(t, "+919876543210", p.Phone)

	w = s.do(http.MethodGet, "/api/parties/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_PartyDeactivation(t *testing.T) {
	s := newTestServer(t)
	s.party("anil", "debtor", "Anil", "")

	w := s.do(http.MethodPost, "/api/parties/anil/deactivate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeBody[PartyDTO](t, w).IsActive)

	w = s.do(http.MethodGet, "/api/parties?kind=debtor", nil)
	assert.Empty(t, decodeBody[[]PartyDTO](t, w))
	w = s.do(http.MethodGet, "/api/parties?kind=debtor&include_inactive=true", nil)
	assert.Len(t, decodeBody[[]PartyDTO](t, w), 1)

	w = s.do(http.MethodPost, "/api/receivables", CreateEntryRequest{PartyID: "anil", Principal: "100", TransactionDate: "2024-01-05"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "inactive party cannot be referenced")

	w = s.do(http.MethodPost, "/api/parties/anil/activate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	s.create("receivables", CreateEntryRequest{PartyID: "anil", Principal: "100", TransactionDate: "2024-01-05"})
}

// =============================================================================
// RECEIVABLES
// =============================================================================

func TestAPI_ReceivableReturns(t *testing.T) {
	// GIVEN: A 10000 loan
	// WHEN: 3000 is returned, then 8000
	// THEN: Balance 7000; the 8000 return fails and changes nothing
	s := newTestServer(t)
	s.party("anil", "debtor", "Anil", "")
	loan := s.create("receivables", CreateEntryRequest{PartyID: "anil", Principal: "10000", TransactionDate: "2024-01-05", ExpectedReturnDate: "2024-01-25"})

	w := s.do(http.MethodPost, "/api/receivables/"+loan.ID+"/payments", AmountRequest{Amount: "3000"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "7000.00", decodeBody[CounterPaymentDTO](t, w).Balance.String())

	w = s.do(http.MethodPost, "/api/receivables/"+loan.ID+"/payments", AmountRequest{Amount: "8000"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "amount", decodeBody[ErrorResponse](t, w).Field)

	w = s.do(http.MethodGet, "/api/receivables/"+loan.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody[EntryDTO](t, w)
	assert.Equal(t, "3000.00", got.Counter.String())
	assert.Equal(t, "7000.00", got.Balance.String())
	assert.Equal(t, int64(2), got.Version)
}

func TestAPI_ReceivableDateValidation(t *testing.T) {
	s := newTestServer(t)
	s.party("anil", "debtor", "Anil", "")

	w := s.do(http.MethodPost, "/api/receivables", CreateEntryRequest{PartyID: "anil", Principal: "1000", TransactionDate: "2024-01-10", ExpectedReturnDate: "2024-01-05"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "expected_return_date", decodeBody[ErrorResponse](t, w).Field)

	w = s.do(http.MethodPost, "/api/receivables", CreateEntryRequest{PartyID: "anil", Principal: "1000", TransactionDate: "10/01/2024"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "TransactionDate", decodeBody[ErrorResponse](t, w).Field)

	w = s.do(http.MethodPost, "/api/receivables", CreateEntryRequest{PartyID: "anil", Principal: "lots", TransactionDate: "2024-01-10"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/receivables", CreateEntryRequest{PartyID: "anil", Principal: "1000", Counter: "2000", TransactionDate: "2024-01-10"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "counter", decodeBody[ErrorResponse](t, w).Field)

	w = s.do(http.MethodPost, "/api/receivables", CreateEntryRequest{PartyID: "ghost", Principal: "1000", TransactionDate: "2024-01-10"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/receivables", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestAPI_SoftDeleteRestore(t *testing.T) {
	s := newTestServer(t)
	s.party("anil", "debtor", "Anil", "")
	loan := s.create("receivables", CreateEntryRequest{PartyID: "anil", Principal: "500", TransactionDate: "2024-01-05"})

	w := s.do(http.MethodDelete, "/api/receivables/"+loan.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeBody[EntryDTO](t, w).IsActive)

	w = s.do(http.MethodDelete, "/api/receivables/"+loan.ID, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "already inactive")

	w = s.do(http.MethodGet, "/api/receivables", nil)
	assert.Empty(t, decodeBody[[]EntryDTO](t, w))
	w = s.do(http.MethodGet, "/api/receivables?include_inactive=true", nil)
	assert.Len(t, decodeBody[[]EntryDTO](t, w), 1)

	w = s.do(http.MethodPost, "/api/receivables/"+loan.ID+"/payments", AmountRequest{Amount: "100"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "no counter payments on inactive entries")

	w = s.do(http.MethodPost, "/api/receivables/"+loan.ID+"/restore", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeBody[EntryDTO](t, w).IsActive)

	w = s.do(http.MethodPost, "/api/receivables/"+loan.ID+"/restore", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	assert.Equal(t, []generic.EventType{
		generic.EventCreated, generic.EventSoftDeleted, generic.EventRestored,
	}, s.events.types())
}

func TestAPI_HardDelete(t *testing.T) {
	s := newTestServer(t)
	s.party("cloth", "vendor", "Cloth House", "")
	s.party("ravi", "labor", "Ravi", "15000")
	bill := s.create("payments", CreateEntryRequest{PartyID: "cloth", PayeeKind: "vendor", Principal: "2400", TransactionDate: "2024-01-05"})
	adv := s.create("advances", CreateEntryRequest{PartyID: "ravi", Principal: "1000", TransactionDate: "2024-01-05"})

	w := s.do(http.MethodDelete, "/api/payments/"+bill.ID+"/permanent", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodDelete, "/api/advances/"+adv.ID+"/permanent", nil, "X-Admin", "true")
	assert.Equal(t, http.StatusForbidden, w.Code, "advances are never hard deleted")

	w = s.do(http.MethodDelete, "/api/payments/"+bill.ID+"/permanent", nil, "X-Admin", "true")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/api/payments/"+bill.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_PaymentsAndSettle(t *testing.T) {
	s := newTestServer(t)
	s.party("cloth", "vendor", "Cloth House", "")
	s.party("anil", "debtor", "Anil", "")

	w := s.do(http.MethodPost, "/api/payments", CreateEntryRequest{PartyID: "cloth", Principal: "100", TransactionDate: "2024-01-05"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "payee kind is required")

	w = s.do(http.MethodPost, "/api/payments", CreateEntryRequest{PartyID: "anil", PayeeKind: "vendor", Principal: "100", TransactionDate: "2024-01-05"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "debtors are not payees")

	bill := s.create("payments", CreateEntryRequest{PartyID: "cloth", PayeeKind: "vendor", Principal: "2400", Counter: "400", TransactionDate: "2024-01-05"})
	require.NotNil(t, bill.Payee)
	assert.Equal(t, "vendor", bill.Payee.Kind)
	assert.Equal(t, "2000.00", bill.Balance.String())

	w = s.do(http.MethodPost, "/api/payments/"+bill.ID+"/settle", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decodeBody[EntryDTO](t, w).Balance.IsZero())

	w = s.do(http.MethodPost, "/api/payments/"+bill.ID+"/settle", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "nothing left to settle")

	w = s.do(http.MethodPost, "/api/receivables/"+bill.ID+"/settle", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_UpdatePrincipal(t *testing.T) {
	s := newTestServer(t)
	s.party("ravi", "labor", "Ravi", "15000")
	adv := s.create("advances", CreateEntryRequest{PartyID: "ravi", Principal: "10000", TransactionDate: "2024-01-05"})

	w := s.do(http.MethodPut, "/api/advances/"+adv.ID+"/principal", AmountRequest{Amount: "16000"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPut, "/api/advances/"+adv.ID+"/principal", AmountRequest{Amount: "12000"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "12000.00", decodeBody[EntryDTO](t, w).Principal.String())
}

// =============================================================================
// AGGREGATIONS
// =============================================================================

func TestAPI_TotalsOverdueTop(t *testing.T) {
	s := newTestServer(t)
	s.party("anil", "debtor", "Anil", "")
	s.party("meena", "debtor", "Meena", "")

	loan := s.create("receivables", CreateEntryRequest{PartyID: "anil", Principal: "10000", TransactionDate: "2024-01-02", ExpectedReturnDate: "2024-01-20"})
	s.create("receivables", CreateEntryRequest{PartyID: "anil", Principal: "2000", TransactionDate: "2024-01-10"})
	s.create("receivables", CreateEntryRequest{PartyID: "meena", Principal: "4000", TransactionDate: "2024-01-03", ExpectedReturnDate: "2024-02-15"})
	s.do(http.MethodPost, "/api/receivables/"+loan.ID+"/payments", AmountRequest{Amount: "3000"})

	w := s.do(http.MethodGet, "/api/receivables/totals/anil", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"), "no cache configured")
	totals := decodeBody[TotalsDTO](t, w)
	assert.Equal(t, 2, totals.Totals.Count)
	assert.Equal(t, "12000.00", totals.Totals.Principal.String())
	assert.Equal(t, "9000.00", totals.Totals.Balance.String())

	w = s.do(http.MethodGet, "/api/receivables/totals/anil?month=2023-13", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/receivables/overdue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	overdue := decodeBody[[]EntryDTO](t, w)
	require.Len(t, overdue, 1)
	assert.Equal(t, loan.ID, overdue[0].ID)

	w = s.do(http.MethodGet, "/api/receivables/overdue?as_of=2024-02-16", nil)
	assert.Len(t, decodeBody[[]EntryDTO](t, w), 2)

	w = s.do(http.MethodGet, "/api/receivables/top?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	top := decodeBody[[]generic.Recipient](t, w)
	require.Len(t, top, 1)
	assert.Equal(t, generic.PartyID("anil"), top[0].PartyID)
	assert.Equal(t, 2, top[0].Count)

	w = s.do(http.MethodGet, "/api/receivables/top?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/expenses", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_TotalsCache_CounterPaymentInvalidates(t *testing.T) {
	// GIVEN: Cached totals for a 10000 loan
	// WHEN: A 3000 return is recorded
	// THEN: The next read misses and shows the new balance
	s := newCachedTestServer(t)
	s.party("anil", "debtor", "Anil", "")
	loan := s.create("receivables", CreateEntryRequest{PartyID: "anil", Principal: "10000", TransactionDate: "2024-01-02"})
	s.hooks.Wait()

	path := "/api/receivables/totals/anil"
	assert.Equal(t, "10000.00", s.totals(path, "MISS").Balance.String())
	assert.Equal(t, "10000.00", s.totals(path, "HIT").Balance.String())

	w := s.do(http.MethodPost, "/api/receivables/"+loan.ID+"/payments", AmountRequest{Amount: "3000"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	s.hooks.Wait()

	after := s.totals(path, "MISS")
	assert.Equal(t, "3000.00", after.Counter.String())
	assert.Equal(t, "7000.00", after.Balance.String())
	assert.Equal(t, "7000.00", s.totals(path, "HIT").Balance.String())
}

func TestAPI_UpsertParty(t *testing.T) {
	s := newTestServer(t)
	s.party("ravi", "labor", "Ravi", "15000")

	w := s.do(http.MethodPost, "/api/parties", CreatePartyRequest{ID: "ravi", Kind: "vendor", Name: "Ravi Traders"})
	assert.Equal(t, http.StatusConflict, w.Code, "kind cannot change")

	w = s.do(http.MethodPost, "/api/parties/ravi/deactivate", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/parties", CreatePartyRequest{ID: "ravi", Kind: "labor", Name: "Ravi Kumar", Role: "Tailor"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	p := decodeBody[PartyDTO](t, w)
	assert.Equal(t, "Ravi Kumar", p.Name)
	assert.False(t, p.IsActive, "an update does not reactivate")
	require.NotNil(t, p.MonthlySalary, "salary is kept when omitted")
	assert.Equal(t, "15000.00", p.MonthlySalary.String())
}

func TestAPI_RejectsSubCentAmounts(t *testing.T) {
	s := newTestServer(t)
	s.party("anil", "debtor", "Anil", "")

	w := s.do(http.MethodPost, "/api/receivables", CreateEntryRequest{PartyID: "anil", Principal: "0.005", TransactionDate: "2024-01-05"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Principal", decodeBody[ErrorResponse](t, w).Field)

	loan := s.create("receivables", CreateEntryRequest{PartyID: "anil", Principal: "100.50", TransactionDate: "2024-01-05"})
	w = s.do(http.MethodPost, "/api/receivables/"+loan.ID+"/payments", AmountRequest{Amount: "10.001"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Amount", decodeBody[ErrorResponse](t, w).Field)

	w = s.do(http.MethodPost, "/api/parties", CreatePartyRequest{Kind: "labor", Name: "Ravi", MonthlySalary: "15000.999"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWriteLedgerError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	h := NewHandler(nil, nil, nil, nil, logger)

	rec := httptest.NewRecorder()
	h.writeLedgerError(rec, "UpdateEntry", generic.ErrConcurrentModification)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	h.writeLedgerError(rec, "CreateEntry", &generic.ValidationError{Field: "principal", Message: "must be positive"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)

	rec = httptest.NewRecorder()
	h.writeLedgerError(rec, "CreateEntry", generic.Persist("insert entry", assert.AnError))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, decodeBody[ErrorResponse](t, rec).Details, "internal details are hidden")
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestAPI_ScanOverdue(t *testing.T) {
	s := newTestServer(t)
	s.party("anil", "debtor", "Anil", "")
	s.create("receivables", CreateEntryRequest{PartyID: "anil", Principal: "1000", TransactionDate: "2024-01-02", ExpectedReturnDate: "2024-01-20"})

	w := s.do(http.MethodPost, "/api/admin/overdue-scan", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/admin/overdue-scan", nil, "X-Admin", "true")
	require.Equal(t, http.StatusOK, w.Code)
	scan := decodeBody[OverdueScanDTO](t, w)
	assert.Equal(t, "2024-01-31", scan.AsOf.String())
	assert.Equal(t, 1, scan.Published)
	assert.Equal(t, []generic.EventType{generic.EventCreated, generic.EventOverdue}, s.events.types())
}
