/*
scenarios.go - Demo scenario loaders

PURPOSE:
  Populate the database with small, realistic datasets that exercise one
  ledger feature each. Dates are relative to the handler clock's today so
  a scenario looks the same whenever it is loaded.

AVAILABLE SCENARIOS:
  expiry-first:    Two overlapping grants; a request drains the one that
                   expires first
  approval-chain:  Special leave waiting on a two-level manager chain
  yearly-schedule: REPEAT policies issued by the daily grant schedule

HOW SCENARIOS WORK:
 1. Reset database (clear all ledger data, keep holidays)
 2. Define the preset policies (timeoff.DefaultPolicies)
 3. Create employees and their manager links
 4. Issue grants, assign policies, file requests through the service

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "expiry-first"}

NOTE:
  Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - timeoff/policies.go: Policy presets
  - scheduler.go: RunSchedule used by yearly-schedule
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/warp/leave-ledger/ledger"
	"github.com/warp/leave-ledger/store/sqlite"
	"github.com/warp/leave-ledger/timeoff"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	load func(h *Handler, ctx context.Context, today ledger.Date) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "expiry-first",
			Name:        "Expiry First",
			Description: "Two annual grants; a 4 day request drains the earlier-expiring grant first",
		},
		load: (*Handler).loadExpiryFirstScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "approval-chain",
			Name:        "Approval Chain",
			Description: "Special leave pending on the requester's manager and skip-level manager",
		},
		load: (*Handler).loadApprovalChainScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "yearly-schedule",
			Name:        "Yearly Schedule",
			Description: "Annual and monthly REPEAT policies issued by the daily grant schedule",
		},
		load: (*Handler).loadYearlyScheduleScenario,
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, 0, len(scenarios))
	for _, s := range scenarios {
		dtos = append(dtos, s.ScenarioDTO)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	s, ok := findScenario(current)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, s.ScenarioDTO)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		h.writeLedgerError(w, r, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := s.load(h, ctx, ledger.Today(h.Clock)); err != nil {
		h.writeLedgerError(w, r, fmt.Sprintf("Failed to load scenario %s", s.ID), err)
		return
	}
	h.currentScenario = s.ID
	h.logger.Info("scenario loaded", zap.String("scenario", s.ID))

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": s.ID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) installPresets(ctx context.Context, employees ...sqlite.Employee) error {
	for _, p := range timeoff.DefaultPolicies() {
		if _, err := h.Service.DefinePolicy(ctx, p); err != nil {
			return err
		}
	}
	for _, e := range employees {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = h.Clock.Now()
		}
		if err := h.Store.SaveEmployee(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// loadExpiryFirstScenario: alice holds 3 days expiring in two months and
// 5 days expiring in ten; a 4 day request takes all 3 + 1.
func (h *Handler) loadExpiryFirstScenario(ctx context.Context, today ledger.Date) error {
	alice := sqlite.Employee{ID: "alice", Name: "Alice Martin", Email: "alice@example.com", HireDate: today.AddYears(-2)}
	if err := h.installPresets(ctx, alice); err != nil {
		return err
	}

	grants := []ledger.ManualGrantInput{
		{Amount: ledger.Days(3), ValidFrom: today.AddDays(-30), ValidTo: today.AddMonths(2), Reason: "Carried over"},
		{Amount: ledger.Days(5), ValidFrom: today.AddDays(-30), ValidTo: today.AddMonths(10), Reason: "Signing bonus"},
	}
	for _, g := range grants {
		g.OwnerID = alice.ID
		g.LeaveType = timeoff.Annual
		if _, err := h.Service.CreateManualGrant(ctx, g); err != nil {
			return err
		}
	}

	window, err := ledger.NewWindow(today.AddDays(7), today.AddDays(10))
	if err != nil {
		return err
	}
	_, err = h.Service.RequestUsage(ctx, ledger.UsageInput{
		OwnerID:   alice.ID,
		LeaveType: timeoff.Annual,
		Amount:    ledger.Days(4),
		Window:    window,
		Reason:    "Family trip",
	})
	return err
}

// loadApprovalChainScenario: carol reports to dave, who reports to erin.
// Special leave needs two approvals, so the request waits on dave first.
func (h *Handler) loadApprovalChainScenario(ctx context.Context, today ledger.Date) error {
	employees := []sqlite.Employee{
		{ID: "erin", Name: "Erin Walsh", Email: "erin@example.com"},
		{ID: "dave", Name: "Dave Chen", Email: "dave@example.com", ManagerID: "erin"},
		{ID: "carol", Name: "Carol Diaz", Email: "carol@example.com", ManagerID: "dave"},
	}
	if err := h.installPresets(ctx, employees...); err != nil {
		return err
	}

	window, err := ledger.NewWindow(today.AddDays(14), today.AddDays(14))
	if err != nil {
		return err
	}
	_, err = h.Service.RequestUsage(ctx, ledger.UsageInput{
		OwnerID:  "carol",
		PolicyID: "special",
		Amount:   ledger.Days(1),
		Window:   window,
		Reason:   "Wedding",
	})
	return err
}

// loadYearlyScheduleScenario: frank is assigned the annual and monthly
// policies; the schedule run issues his first grants today.
func (h *Handler) loadYearlyScheduleScenario(ctx context.Context, today ledger.Date) error {
	frank := sqlite.Employee{ID: "frank", Name: "Frank Okafor", Email: "frank@example.com", HireDate: today}
	if err := h.installPresets(ctx, frank); err != nil {
		return err
	}

	for _, policyID := range []ledger.PolicyID{"annual", "monthly"} {
		if _, err := h.Service.AssignPolicy(ctx, ledger.AssignmentInput{
			OwnerID:       frank.ID,
			PolicyID:      policyID,
			EffectiveFrom: today,
		}); err != nil {
			return err
		}
	}

	_, err := h.Scheduler.RunSchedule(ctx, today)
	return err
}
