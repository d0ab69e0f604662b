/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	shop data for demos and manual testing. Each scenario creates parties
	and then books entries through the ledgers, so every business rule
	(monthly cap, counter <= principal, snapshots) applies as in production.

AVAILABLE SCENARIOS:

	salary-advances:  Tailor on 15000/month with 10000 already advanced
	receivables:      Loan of 10000 with a 3000 return, one overdue loan
	vendor-payments:  Cloth vendor bills, one settled, one part paid
	renamed-worker:   Worker renamed after an advance; the entry keeps the old name

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create parties
 3. Book entries and counter payments through the ledgers

Dates are relative to the ledger clock so that the current month always
has data and overdue loans stay overdue.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "salary-advances"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ledger handlers
  - store/sqlite/sqlite.go: Reset
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/warp/shop-ledger/advances"
	"github.com/warp/shop-ledger/config"
	"github.com/warp/shop-ledger/generic"
	"github.com/warp/shop-ledger/payments"
	"github.com/warp/shop-ledger/receivables"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "salary-advances",
		Name:        "Salary Advances",
		Description: "Tailor on 15000/month with 10000 advanced; 5000 headroom left",
		Category:    "advances",
	},
	{
		ID:          "receivables",
		Name:        "Receivables",
		Description: "Loan of 10000 with a 3000 return, plus one overdue loan",
		Category:    "receivables",
	},
	{
		ID:          "vendor-payments",
		Name:        "Vendor Payments",
		Description: "Cloth vendor bills, one settled and one part paid",
		Category:    "payments",
	},
	{
		ID:          "renamed-worker",
		Name:        "Renamed Worker",
		Description: "Worker renamed after an advance; the entry keeps the name it was given under",
		Category:    "advances",
	},
}

var scenarioLoaders = map[string]func(h *Handler, ctx context.Context) error{
	"salary-advances": (*Handler).loadSalaryAdvancesScenario,
	"receivables":     (*Handler).loadReceivablesScenario,
	"vendor-payments": (*Handler).loadVendorPaymentsScenario,
	"renamed-worker":  (*Handler).loadRenamedWorkerScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
// Requires X-Admin: true.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r).IsAdmin {
		writeError(w, http.StatusForbidden, "Admin only", generic.ErrForbidden)
		return
	}
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		h.writeLedgerError(w, "LoadScenario", generic.Persist("reset database", err))
		return
	}
	h.currentScenario = ""

	// A reset publishes no entry events, so cached totals are dropped here.
	if err := h.Cache.InvalidatePrefix(ctx, generic.TotalsCachePrefix); err != nil {
		config.LogError(h.Log, "api", "LoadScenario", "invalidate cached totals", generic.TotalsCachePrefix, err)
	}

	if err := load(h, ctx); err != nil {
		h.writeLedgerError(w, "LoadScenario", fmt.Errorf("load scenario %s: %w", req.ScenarioID, err))
		return
	}
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

var scenarioActor = generic.Actor{ID: "scenario"}

func (h *Handler) today() generic.Date {
	return generic.DateOf(h.Advances.Clock.Now())
}

func (h *Handler) saveParties(ctx context.Context, parties ...generic.Party) error {
	for _, p := range parties {
		p.Phone = generic.NormalizePhone(p.Phone)
		p.IsActive = true
		if err := h.Store.SaveParty(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadSalaryAdvancesScenario(ctx context.Context) error {
	salary := generic.NewMoney(15000)
	helperSalary := generic.NewMoney(9000)
	if err := h.saveParties(ctx,
		generic.Party{ID: "ravi", Kind: generic.PartyLabor, Name: "Ravi Kumar", Phone: "98765 43210", Role: "Tailor", MonthlySalary: &salary},
		generic.Party{ID: "sunita", Kind: generic.PartyLabor, Name: "Sunita Devi", Phone: "98111 22233", Role: "Helper", MonthlySalary: &helperSalary},
	); err != nil {
		return err
	}

	monthStart := h.today().Month().Start()
	if _, err := h.Advances.Give(ctx, advances.Advance{
		LaborID: "ravi", Amount: generic.NewMoney(10000), Date: monthStart,
		Description: "Festival advance", Actor: scenarioActor,
	}); err != nil {
		return err
	}
	_, err := h.Advances.Give(ctx, advances.Advance{
		LaborID: "sunita", Amount: generic.NewMoney(2500), Date: monthStart,
		Description: "Rent", Actor: scenarioActor,
	})
	return err
}

func (h *Handler) loadReceivablesScenario(ctx context.Context) error {
	if err := h.saveParties(ctx,
		generic.Party{ID: "anil", Kind: generic.PartyDebtor, Name: "Anil Sharma", Phone: "99887 76655"},
		generic.Party{ID: "meena", Kind: generic.PartyDebtor, Name: "Meena Joshi", Phone: "97654 32100"},
	); err != nil {
		return err
	}

	today := h.today()
	due := today.AddDays(30)
	loan, err := h.Receivables.Lend(ctx, receivables.Loan{
		DebtorID: "anil", Amount: generic.NewMoney(10000), DateLent: today,
		ExpectedReturn: &due, Description: "Shop renovation", Actor: scenarioActor,
	})
	if err != nil {
		return err
	}
	if _, err := h.Receivables.RecordReturn(ctx, loan.ID, generic.NewMoney(3000), scenarioActor); err != nil {
		return err
	}

	overdue := today.AddDays(-10)
	_, err = h.Receivables.Lend(ctx, receivables.Loan{
		DebtorID: "meena", Amount: generic.NewMoney(4000), DateLent: today.AddDays(-40),
		ExpectedReturn: &overdue, Description: "Medical", Actor: scenarioActor,
	})
	return err
}

func (h *Handler) loadVendorPaymentsScenario(ctx context.Context) error {
	if err := h.saveParties(ctx,
		generic.Party{ID: "cloth-house", Kind: generic.PartyVendor, Name: "Cloth House", Phone: "022 2345 6789"},
		generic.Party{ID: "button-mart", Kind: generic.PartyVendor, Name: "Button Mart"},
	); err != nil {
		return err
	}

	today := h.today()
	bill, err := h.Payments.Record(ctx, payments.Payment{
		Payee:      generic.Payee{Kind: generic.PayeeVendor, ID: "cloth-house"},
		AmountOwed: generic.NewMoney(24000), Date: today.AddDays(-7),
		Description: "Cotton, 120m", Actor: scenarioActor,
	})
	if err != nil {
		return err
	}
	if _, err := h.Payments.Settle(ctx, bill.ID, scenarioActor); err != nil {
		return err
	}

	_, err = h.Payments.Record(ctx, payments.Payment{
		Payee:      generic.Payee{Kind: generic.PayeeVendor, ID: "button-mart"},
		AmountOwed: generic.NewMoney(3500), AmountPaid: generic.NewMoney(1500), Date: today,
		Description: "Buttons and zips", Actor: scenarioActor,
	})
	return err
}

func (h *Handler) loadRenamedWorkerScenario(ctx context.Context) error {
	salary := generic.NewMoney(12000)
	worker := generic.Party{ID: "farhan", Kind: generic.PartyLabor, Name: "Farhan", Phone: "98222 33344", Role: "Cutter", MonthlySalary: &salary}
	if err := h.saveParties(ctx, worker); err != nil {
		return err
	}
	if _, err := h.Advances.Give(ctx, advances.Advance{
		LaborID: "farhan", Amount: generic.NewMoney(2000), Date: h.today(), Actor: scenarioActor,
	}); err != nil {
		return err
	}

	worker.Name = "Farhan Ali"
	worker.Role = "Master Cutter"
	return h.saveParties(ctx, worker)
}
