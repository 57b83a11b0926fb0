/*
handlers_test.go - HTTP tests against an in-memory SQLite ledger

Tests for:
- Leave requests, expiry-first allocation and balances
- Approval chains and decisions
- Error mapping (422 / 403 / 404 / 400)
- Policy definition
- Manual schedule and sweep triggers, run log, metrics
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warp/leave-ledger/ledger"
	"github.com/warp/leave-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testEnv struct {
	h      *Handler
	router http.Handler
	clock  *ledger.FixedClock
	ctx    context.Context
}

// newTestEnv starts on Monday 2025-05-05 with the preset policies installed.
func newTestEnv(t *testing.T, employees ...sqlite.Employee) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	clock := ledger.NewFixedClockOn(ledger.MustParseDate("2025-05-05"))
	store, err := sqlite.New(":memory:", sqlite.WithClock(clock), sqlite.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := ledger.NewService(store, store, clock, ledger.WithLogger(logger), ledger.WithCalendar(store))
	metrics := NewMetrics(prometheus.NewRegistry())
	scheduler := NewGrantScheduler(svc, store, metrics, clock, logger)
	h := NewHandler(svc, store, scheduler, metrics, clock, logger)

	env := &testEnv{h: h, router: NewRouter(h, []string{"*"}), clock: clock, ctx: context.Background()}
	require.NoError(t, h.installPresets(env.ctx, employees...))
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) grant(t *testing.T, req CreateGrantRequest) GrantDTO {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/grants", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[GrantDTO](t, rec)
}

// =============================================================================
// REQUESTS AND BALANCES
// =============================================================================

func TestSubmitRequest_DrawsEarliestExpiringGrantFirst(t *testing.T) {
	// GIVEN: Alice holds 3 days expiring June 30 and 5 days expiring Dec 31
	env := newTestEnv(t, sqlite.Employee{ID: "alice", Name: "Alice"})
	early := env.grant(t, CreateGrantRequest{EmployeeID: "alice", LeaveType: "annual", Amount: 3,
		ValidFrom: "2025-01-01", ValidTo: "2025-06-30"})
	late := env.grant(t, CreateGrantRequest{EmployeeID: "alice", LeaveType: "annual", Amount: 5,
		ValidFrom: "2025-01-01", ValidTo: "2025-12-31"})

	// WHEN: She requests Monday to Thursday (4 working days)
	rec := env.do(t, http.MethodPost, "/api/employees/alice/requests", SubmitRequestDTO{
		LeaveType: "annual", From: "2025-05-12", To: "2025-05-15",
	})

	// THEN: The request is active and takes all 3 early days plus 1 late day
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	usage := decodeBody[UsageDetailDTO](t, rec)
	assert.Equal(t, "ACTIVE", usage.Status)
	assert.Equal(t, 4.0, usage.Amount)

	drawn := make(map[string]float64)
	for _, d := range usage.Deductions {
		drawn[d.GrantID] = d.Amount
	}
	assert.Equal(t, map[string]float64{early.ID: 3, late.ID: 1}, drawn)

	// AND: The balance shows 4 available and 4 used
	rec = env.do(t, http.MethodGet, "/api/employees/alice/balance?as_of=2025-05-05", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balance := decodeBody[BalanceResponse](t, rec)
	require.Len(t, balance.Lines, 1)
	assert.Equal(t, "ANNUAL", balance.Lines[0].LeaveType)
	assert.Equal(t, 8.0, balance.Lines[0].Granted)
	assert.Equal(t, 4.0, balance.Lines[0].Available)
	assert.Equal(t, 4.0, balance.Lines[0].Used)
}

func TestSubmitRequest_InsufficientBalance(t *testing.T) {
	// GIVEN: Alice holds a single day
	env := newTestEnv(t, sqlite.Employee{ID: "alice", Name: "Alice"})
	env.grant(t, CreateGrantRequest{EmployeeID: "alice", LeaveType: "annual", Amount: 1,
		ValidFrom: "2025-01-01", ValidTo: "2025-12-31"})

	// WHEN: She asks for three
	rec := env.do(t, http.MethodPost, "/api/employees/alice/requests", SubmitRequestDTO{
		LeaveType: "annual", From: "2025-05-12", Days: 3,
	})

	// THEN: 422 with the shortfall, and nothing was written
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "INSUFFICIENT_BALANCE", resp.Code)
	details, ok := resp.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2.0, details["shortfall"])

	rec = env.do(t, http.MethodGet, "/api/employees/alice/usages", nil)
	assert.Empty(t, decodeBody[[]UsageDTO](t, rec))
}

func TestSubmitRequest_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"missing from", SubmitRequestDTO{LeaveType: "annual"}, "from"},
		{"bad date", SubmitRequestDTO{LeaveType: "annual", From: "05/12/2025"}, "from"},
		{"bad portion", SubmitRequestDTO{LeaveType: "annual", From: "2025-05-12", Portion: "EVENING"}, "portion"},
		{"negative days", SubmitRequestDTO{LeaveType: "annual", From: "2025-05-12", Days: -1}, "days"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/employees/alice/requests", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, "INVALID_INPUT", resp.Code)
			assert.Contains(t, resp.Details, tt.field)
		})
	}

	// Unknown leave types are a domain error, not a validation error
	rec := env.do(t, http.MethodPost, "/api/employees/alice/requests", SubmitRequestDTO{LeaveType: "sabbatical", From: "2025-05-12"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewAllocation_WritesNothing(t *testing.T) {
	env := newTestEnv(t)
	g := env.grant(t, CreateGrantRequest{EmployeeID: "alice", LeaveType: "annual", Amount: 2,
		ValidFrom: "2025-01-01", ValidTo: "2025-12-31"})

	rec := env.do(t, http.MethodPost, "/api/employees/alice/preview", PreviewRequest{LeaveType: "annual", Amount: 3, Date: "2025-05-12"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	plan := decodeBody[PreviewDTO](t, rec)
	assert.False(t, plan.Satisfiable)
	assert.Equal(t, 2.0, plan.Covered)
	assert.Equal(t, 1.0, plan.Shortfall)
	require.Len(t, plan.Draws, 1)
	assert.Equal(t, g.ID, plan.Draws[0].GrantID)

	rec = env.do(t, http.MethodGet, "/api/employees/alice/grants", nil)
	grants := decodeBody[[]GrantDTO](t, rec)
	require.Len(t, grants, 1)
	assert.Equal(t, 2.0, grants[0].Remaining)
}

// =============================================================================
// APPROVALS
// =============================================================================

func TestApprovalChain_DecideInOrderThenCancel(t *testing.T) {
	// GIVEN: carol -> dave -> erin, and special leave needs two approvals
	env := newTestEnv(t,
		sqlite.Employee{ID: "erin", Name: "Erin"},
		sqlite.Employee{ID: "dave", Name: "Dave", ManagerID: "erin"},
		sqlite.Employee{ID: "carol", Name: "Carol", ManagerID: "dave"},
	)

	// WHEN: Carol requests a day of special leave
	rec := env.do(t, http.MethodPost, "/api/employees/carol/requests", SubmitRequestDTO{
		PolicyID: "special", From: "2025-05-20", Days: 1, Reason: "Wedding",
	})

	// THEN: It waits on dave
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	usage := decodeBody[UsageDetailDTO](t, rec)
	assert.Equal(t, "PENDING_APPROVAL", usage.Status)
	assert.Equal(t, "SPECIAL", usage.LeaveType)
	require.Len(t, usage.Steps, 2)
	require.NotNil(t, usage.CurrentStep)
	assert.Equal(t, "dave", usage.CurrentStep.ApproverID)

	decide := func(approver, decision string) *httptest.ResponseRecorder {
		return env.do(t, http.MethodPost, "/api/usages/"+usage.ID+"/decision",
			DecisionRequest{ApproverID: approver, Decision: decision})
	}

	// Erin may not skip ahead
	rec = decide("erin", "APPROVED")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "NOT_CURRENT_APPROVER", decodeBody[ErrorResponse](t, rec).Code)

	rec = decide("dave", "APPROVED")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	usage = decodeBody[UsageDetailDTO](t, rec)
	assert.Equal(t, "PENDING_APPROVAL", usage.Status)
	require.NotNil(t, usage.CurrentStep)
	assert.Equal(t, "erin", usage.CurrentStep.ApproverID)

	rec = env.do(t, http.MethodGet, "/api/approvals/pending?approver_id=erin", nil)
	pending := decodeBody[[]PendingApprovalDTO](t, rec)
	require.Len(t, pending, 1)
	assert.Equal(t, usage.ID, pending[0].Usage.ID)

	rec = decide("erin", "APPROVED")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	usage = decodeBody[UsageDetailDTO](t, rec)
	assert.Equal(t, "ACTIVE", usage.Status)
	require.Len(t, usage.Deductions, 1)
	assert.Equal(t, 1.0, usage.Deductions[0].Amount)
	assert.Nil(t, usage.CurrentStep)

	// A decided usage takes no more decisions
	rec = decide("erin", "REJECTED")
	assert.Equal(t, http.StatusConflict, rec.Code)

	// WHEN: Carol cancels
	rec = env.do(t, http.MethodDelete, "/api/usages/"+usage.ID, nil)

	// THEN: The usage is cancelled and its deductions are gone
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	usage = decodeBody[UsageDetailDTO](t, rec)
	assert.Equal(t, "CANCELLED", usage.Status)
	assert.Empty(t, usage.Deductions)

	rec = env.do(t, http.MethodGet, "/api/employees/carol/audit", nil)
	assert.Equal(t, true, decodeBody[map[string]any](t, rec)["ok"])
}

func TestPendingApprovals_RequiresApprover(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/approvals/pending", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUsage_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/usages/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "USAGE_NOT_FOUND", decodeBody[ErrorResponse](t, rec).Code)
}

// =============================================================================
// POLICIES
// =============================================================================

func TestCreatePolicy(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/policies", map[string]any{
		"id":                      "study",
		"name":                    "Study leave",
		"leave_type":              "special",
		"method":                  "on_request",
		"approval_required_count": 1,
		"expiration":              map[string]any{"kind": "never"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/policies/study", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	policy := decodeBody[PolicyDTO](t, rec)
	assert.Equal(t, "ON_REQUEST", policy.Method)
	assert.Equal(t, "SPECIAL", policy.LeaveType)
	assert.Equal(t, 1, policy.ApprovalRequiredCount)

	rec = env.do(t, http.MethodPost, "/api/policies", map[string]any{
		"id": "weekly", "leave_type": "annual", "method": "weekly", "expiration": map[string]any{"kind": "never"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/policies/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePolicy_ImmutableOnceReferenced(t *testing.T) {
	env := newTestEnv(t)
	env.grant(t, CreateGrantRequest{EmployeeID: "alice", PolicyID: "compensatory", Amount: 8, ValidFrom: "2025-05-01"})

	rec := env.do(t, http.MethodPost, "/api/policies", map[string]any{
		"id": "compensatory", "leave_type": "compensatory", "method": "manual",
		"expiration": map[string]any{"kind": "days_after", "n": 30},
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "POLICY_IMMUTABLE", decodeBody[ErrorResponse](t, rec).Code)
}

// =============================================================================
// GRANTS
// =============================================================================

func TestCreateGrant_WindowFromPolicy(t *testing.T) {
	env := newTestEnv(t)

	// Compensatory leave is hour-counted and expires 90 days after issue
	g := env.grant(t, CreateGrantRequest{EmployeeID: "alice", PolicyID: "compensatory", Amount: 6, ValidFrom: "2025-05-01"})
	assert.Equal(t, "COMPENSATORY", g.LeaveType)
	assert.Equal(t, "hours", g.Unit)
	assert.Equal(t, "2025-07-29", g.ValidTo)

	rec := env.do(t, http.MethodPost, "/api/grants", CreateGrantRequest{EmployeeID: "alice", PolicyID: "annual", Amount: 1, ValidFrom: "2025-05-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "POLICY_METHOD_MISMATCH", decodeBody[ErrorResponse](t, rec).Code)
}

func TestRevokeGrant(t *testing.T) {
	env := newTestEnv(t)
	g := env.grant(t, CreateGrantRequest{EmployeeID: "alice", LeaveType: "annual", Amount: 2,
		ValidFrom: "2025-01-01", ValidTo: "2025-12-31"})

	rec := env.do(t, http.MethodPost, "/api/grants/"+g.ID+"/revoke", RevokeGrantRequest{Reason: "issued twice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "REVOKED", decodeBody[GrantDTO](t, rec).Status)

	rec = env.do(t, http.MethodPost, "/api/grants/"+g.ID+"/revoke", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// SCHEDULE, SWEEP, RUNS, METRICS
// =============================================================================

func TestTriggerSchedule_IsIdempotentPerDay(t *testing.T) {
	// GIVEN: Frank is assigned the annual policy from today
	env := newTestEnv(t, sqlite.Employee{ID: "frank", Name: "Frank"})
	rec := env.do(t, http.MethodPost, "/api/admin/assignments", CreateAssignmentRequest{EmployeeID: "frank", PolicyID: "annual"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN: The schedule runs twice on the same day
	rec = env.do(t, http.MethodPost, "/api/admin/schedule?date=2025-05-05", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decodeBody[JobResultDTO](t, rec)
	rec = env.do(t, http.MethodPost, "/api/admin/schedule?date=2025-05-05", nil)
	second := decodeBody[JobResultDTO](t, rec)

	// THEN: One grant, valid to the end of the year
	assert.Equal(t, 1, first.Affected)
	assert.Equal(t, 0, second.Affected)

	rec = env.do(t, http.MethodGet, "/api/employees/frank/grants", nil)
	grants := decodeBody[[]GrantDTO](t, rec)
	require.Len(t, grants, 1)
	assert.Equal(t, 15.0, grants[0].Total)
	assert.Equal(t, "2025-12-31", grants[0].ValidTo)

	rec = env.do(t, http.MethodGet, "/api/employees/frank/assignments", nil)
	assignments := decodeBody[[]AssignmentDTO](t, rec)
	require.Len(t, assignments, 1)
	require.NotNil(t, assignments[0].NextGrantDate)
	assert.Equal(t, "2026-05-05", *assignments[0].NextGrantDate)

	// AND: Both runs are logged and counted
	rec = env.do(t, http.MethodGet, "/api/admin/runs", nil)
	runs := decodeBody[[]RunDTO](t, rec)
	require.Len(t, runs, 2)
	for _, run := range runs {
		assert.Equal(t, "GRANT_SCHEDULE", run.Kind)
		assert.Equal(t, "SUCCEEDED", run.Status)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(env.h.Metrics.grantsIssued.WithLabelValues("schedule")))
	assert.Equal(t, 2.0, testutil.ToFloat64(env.h.Metrics.jobRuns.WithLabelValues("GRANT_SCHEDULE", "success")))
}

func TestTriggerSweep_ExpiresClosedGrants(t *testing.T) {
	env := newTestEnv(t)
	old := env.grant(t, CreateGrantRequest{EmployeeID: "alice", LeaveType: "annual", Amount: 2,
		ValidFrom: "2025-01-01", ValidTo: "2025-04-30"})
	env.grant(t, CreateGrantRequest{EmployeeID: "alice", LeaveType: "annual", Amount: 2,
		ValidFrom: "2025-01-01", ValidTo: "2025-12-31"})

	rec := env.do(t, http.MethodPost, "/api/admin/sweep?date=2025-05-05", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decodeBody[JobResultDTO](t, rec).Affected)

	rec = env.do(t, http.MethodGet, "/api/employees/alice/grants", nil)
	for _, g := range decodeBody[[]GrantDTO](t, rec) {
		if g.ID == old.ID {
			assert.Equal(t, "EXPIRED", g.Status)
		} else {
			assert.Equal(t, "ACTIVE", g.Status)
		}
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(env.h.Metrics.grantsExpired))

	rec = env.do(t, http.MethodPost, "/api/admin/sweep?date=not-a-date", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSchedulerRunDaily(t *testing.T) {
	env := newTestEnv(t, sqlite.Employee{ID: "frank", Name: "Frank"})
	rec := env.do(t, http.MethodPost, "/api/admin/assignments", CreateAssignmentRequest{
		EmployeeID: "frank", PolicyID: "monthly", EffectiveFrom: "2025-01-01", NextGrantDate: "2025-03-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// March, April and May are due on May 5
	result, err := env.h.Scheduler.RunDaily(env.ctx, ledger.MustParseDate("2025-05-05"))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Issued)
	assert.Equal(t, 0, result.Expired)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/policies", nil)

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "leave_ledger_http_requests_total{"), body)
	assert.True(t, strings.Contains(body, `status="200"`), body)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// HOLIDAYS AND LEAVE TYPES
// =============================================================================

func TestHolidaysReduceCountedDays(t *testing.T) {
	env := newTestEnv(t)
	env.grant(t, CreateGrantRequest{EmployeeID: "alice", LeaveType: "annual", Amount: 10,
		ValidFrom: "2025-01-01", ValidTo: "2025-12-31"})

	rec := env.do(t, http.MethodPost, "/api/holidays/defaults", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Apr 28 - May 2 is five weekdays, one of them Labour Day
	rec = env.do(t, http.MethodPost, "/api/employees/alice/requests", SubmitRequestDTO{
		LeaveType: "annual", From: "2025-04-28", To: "2025-05-02",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 4.0, decodeBody[UsageDetailDTO](t, rec).Amount)
}

func TestListLeaveTypes(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/leave-types", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	codes := make(map[string]string)
	for _, lt := range decodeBody[[]LeaveTypeDTO](t, rec) {
		codes[lt.Code] = lt.Unit
	}
	assert.Equal(t, "days", codes["ANNUAL"])
	assert.Equal(t, "hours", codes["COMPENSATORY"])
}
