/*
handlers.go - HTTP request handlers

PURPOSE:
  Implements all REST API endpoints. Handlers decode and validate the
  request, call the ledger service, and map results and errors to JSON.
  No ledger rules live here.

ENDPOINT GROUPS:
  Employees:   CRUD plus balance, grants, usages, requests, preview, audit
  Grants:      Manual issuance, revocation, correction
  Usages:      Detail, cancellation, approval decisions
  Policies:    Definition and lookup
  Admin:       Assignments, schedule/sweep triggers, run history
  Holidays:    Business day calendar
  Scenarios:   Demo data (scenarios.go)

ERROR HANDLING:
  Ledger errors go through writeLedgerError (errors.go), which picks the
  status from the error kind:
    422 - Insufficient balance (with a shortfall breakdown)
    403 - Not the current approver
    404 - Resource not found
    409 - State conflict
    400 - Invalid input
    500 - Everything else (logged, not echoed)

SEE ALSO:
  - server.go: Route definitions
  - dto.go: Request/response types
  - ledger/service.go: Operations called from here
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
	"go.uber.org/zap"

	"github.com/warp/leave-ledger/factory"
	"github.com/warp/leave-ledger/ledger"
	"github.com/warp/leave-ledger/store/sqlite"
	"github.com/warp/leave-ledger/timeoff"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service       *ledger.Service
	Store         *sqlite.Store
	PolicyFactory *factory.PolicyFactory
	Scheduler     *GrantScheduler
	Metrics       *Metrics
	Clock         ledger.Clock

	validate *validator.Validate
	logger   *zap.Logger

	// Track currently loaded scenario
	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a handler. The scheduler backs the manual job triggers.
func NewHandler(svc *ledger.Service, store *sqlite.Store, scheduler *GrantScheduler, metrics *Metrics, clock ledger.Clock, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Handler{
		Service:       svc,
		Store:         store,
		PolicyFactory: factory.NewPolicyFactory(),
		Scheduler:     scheduler,
		Metrics:       metrics,
		Clock:         clock,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        logger.Named("api"),
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, 0, len(employees))
	for _, e := range employees {
		dtos = append(dtos, toEmployeeDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.GetEmployee(r.Context(), ownerParam(r))
	if err != nil {
		h.writeLedgerError(w, r, "Employee not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// CreateEmployee creates or updates an employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}

	emp := sqlite.Employee{
		ID:        ledger.OwnerID(req.ID),
		Name:      req.Name,
		Email:     req.Email,
		ManagerID: ledger.OwnerID(req.ManagerID),
		CreatedAt: h.Clock.Now(),
	}
	if req.HireDate != "" {
		emp.HireDate = ledger.MustParseDate(req.HireDate)
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		h.writeLedgerError(w, r, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// GetBalance returns the employee's balance per leave type.
// Query: as_of=YYYY-MM-DD (default today).
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	owner := ownerParam(r)
	asOf, err := h.queryDate(r, "as_of")
	if err != nil {
		h.writeLedgerError(w, r, "Invalid as_of date", err)
		return
	}

	lines, err := h.Service.Balance(r.Context(), owner, asOf)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to compute balance", err)
		return
	}

	resp := BalanceResponse{
		EmployeeID: string(owner),
		AsOf:       asOf.String(),
		Lines:      make([]BalanceLineDTO, 0, len(lines)),
	}
	for _, line := range lines {
		resp.Lines = append(resp.Lines, toBalanceLineDTO(line))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetGrants returns the employee's grants in creation order.
func (h *Handler) GetGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := h.Service.ListGrants(r.Context(), ownerParam(r))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list grants", err)
		return
	}

	dtos := make([]GrantDTO, 0, len(grants))
	for _, g := range grants {
		dtos = append(dtos, toGrantDTO(g))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUsages returns the employee's usage requests.
func (h *Handler) GetUsages(w http.ResponseWriter, r *http.Request) {
	usages, err := h.Service.ListUsages(r.Context(), ownerParam(r))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list usages", err)
		return
	}

	dtos := make([]UsageDTO, 0, len(usages))
	for _, u := range usages {
		dtos = append(dtos, toUsageDTO(u))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAssignments returns the employee's policy assignments.
func (h *Handler) GetAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.Service.ListAssignments(r.Context(), ownerParam(r))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list assignments", err)
		return
	}

	dtos := make([]AssignmentDTO, 0, len(assignments))
	for _, a := range assignments {
		dtos = append(dtos, toAssignmentDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SubmitRequest files a leave request. Without required approval the
// balance is deducted immediately; otherwise the request waits on its
// approval chain.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	leaveType, err := h.resolveLeaveType(r, req.LeaveType, req.PolicyID)
	if err != nil {
		h.writeLedgerError(w, r, "Invalid leave type", err)
		return
	}

	request := timeoff.Request{
		OwnerID:   ownerParam(r),
		LeaveType: leaveType,
		PolicyID:  ledger.PolicyID(req.PolicyID),
		From:      ledger.MustParseDate(req.From),
		Portion:   timeoff.Portion(req.Portion),
		Days:      req.Days,
		Hours:     req.Hours,
		Reason:    req.Reason,
	}
	if req.To != "" {
		request.To = ledger.MustParseDate(req.To)
	}

	input, err := request.UsageInput(h.Store)
	if err != nil {
		h.writeLedgerError(w, r, "Invalid request", err)
		return
	}
	usage, err := h.Service.RequestUsage(ctx, input)
	if err != nil {
		h.writeLedgerError(w, r, "Request refused", err)
		return
	}
	h.Metrics.RecordUsage(string(usage.Status))

	view, err := h.Service.UsageDetail(ctx, usage.ID)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to load request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUsageDetailDTO(view))
}

// PreviewAllocation shows which grants a request would draw from.
func (h *Handler) PreviewAllocation(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !h.decode(w, r, &req) {
		return
	}

	leaveType, err := timeoff.ParseLeaveType(req.LeaveType)
	if err != nil {
		h.writeLedgerError(w, r, "Invalid leave type", err)
		return
	}
	unit := timeoff.UnitOf(leaveType)
	if req.Unit != "" {
		unit = ledger.Unit(req.Unit)
	}

	plan, err := h.Service.PreviewAllocation(r.Context(), ledger.AllocationRequest{
		OwnerID:   ownerParam(r),
		LeaveType: leaveType,
		Amount:    ledger.NewAmount(req.Amount, unit),
		UsageDate: ledger.MustParseDate(req.Date),
	})
	if err != nil {
		h.writeLedgerError(w, r, "Failed to preview allocation", err)
		return
	}
	writeJSON(w, http.StatusOK, toPreviewDTO(plan))
}

// AuditEmployee checks the employee's ledger invariants.
func (h *Handler) AuditEmployee(w http.ResponseWriter, r *http.Request) {
	owner := ownerParam(r)
	err := h.Service.Audit(r.Context(), owner)

	var ce *ledger.ConservationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"employee_id": owner, "ok": true})
	case errors.As(err, &ce):
		writeJSON(w, http.StatusOK, map[string]any{"employee_id": owner, "ok": false, "violations": ce.Violations})
	default:
		h.writeLedgerError(w, r, "Audit failed", err)
	}
}

// =============================================================================
// GRANT HANDLERS
// =============================================================================

// CreateGrant issues a manual grant. valid_to may be omitted when policy_id
// names a MANUAL policy with an expiration rule.
func (h *Handler) CreateGrant(w http.ResponseWriter, r *http.Request) {
	var req CreateGrantRequest
	if !h.decode(w, r, &req) {
		return
	}

	leaveType, err := h.resolveLeaveType(r, req.LeaveType, req.PolicyID)
	if err != nil {
		h.writeLedgerError(w, r, "Invalid leave type", err)
		return
	}
	unit := timeoff.UnitOf(leaveType)
	if req.Unit != "" {
		unit = ledger.Unit(req.Unit)
	}

	in := ledger.ManualGrantInput{
		OwnerID:   ledger.OwnerID(req.EmployeeID),
		LeaveType: leaveType,
		Amount:    ledger.NewAmount(req.Amount, unit),
		ValidFrom: ledger.MustParseDate(req.ValidFrom),
		PolicyID:  ledger.PolicyID(req.PolicyID),
		Reason:    req.Reason,
	}
	if req.ValidTo != "" {
		in.ValidTo = ledger.MustParseDate(req.ValidTo)
	}

	grant, err := h.Service.CreateManualGrant(r.Context(), in)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to create grant", err)
		return
	}
	h.Metrics.RecordGrantIssued("manual", 1)
	writeJSON(w, http.StatusCreated, toGrantDTO(grant))
}

// RevokeGrant administratively cancels a grant.
func (h *Handler) RevokeGrant(w http.ResponseWriter, r *http.Request) {
	var req RevokeGrantRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	grant, err := h.Service.RevokeGrant(r.Context(), ledger.GrantID(chi.URLParam(r, "id")), req.Reason)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to revoke grant", err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantDTO(grant))
}

// CorrectGrant soft-deletes a grant issued by mistake.
func (h *Handler) CorrectGrant(w http.ResponseWriter, r *http.Request) {
	grant, err := h.Service.CorrectGrant(r.Context(), ledger.GrantID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to correct grant", err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantDTO(grant))
}

// =============================================================================
// USAGE HANDLERS
// =============================================================================

// GetUsage returns a usage with its deductions and approval chain.
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.UsageDetail(r.Context(), ledger.UsageID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeLedgerError(w, r, "Usage not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toUsageDetailDTO(view))
}

// CancelUsage cancels a pending or active usage and restores its deductions.
func (h *Handler) CancelUsage(w http.ResponseWriter, r *http.Request) {
	id := ledger.UsageID(chi.URLParam(r, "id"))
	if err := h.Service.CancelUsage(r.Context(), id); err != nil {
		h.writeLedgerError(w, r, "Failed to cancel usage", err)
		return
	}

	view, err := h.Service.UsageDetail(r.Context(), id)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to load usage", err)
		return
	}
	writeJSON(w, http.StatusOK, toUsageDetailDTO(view))
}

// DecideUsage records an approver's decision on the usage's current step.
func (h *Handler) DecideUsage(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if !h.decode(w, r, &req) {
		return
	}
	decision, err := ledger.ParseDecision(req.Decision)
	if err != nil {
		h.writeLedgerError(w, r, "Invalid decision", err)
		return
	}

	id := ledger.UsageID(chi.URLParam(r, "id"))
	usage, err := h.Service.DecideApproval(r.Context(), id, ledger.OwnerID(req.ApproverID), decision)
	if err != nil {
		h.writeLedgerError(w, r, "Decision refused", err)
		return
	}
	if usage.Status != ledger.UsagePendingApproval {
		h.Metrics.RecordUsage(string(usage.Status))
	}

	view, err := h.Service.UsageDetail(r.Context(), id)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to load usage", err)
		return
	}
	writeJSON(w, http.StatusOK, toUsageDetailDTO(view))
}

// ListPendingApprovals returns usages waiting on the given approver.
// Query: approver_id (required).
func (h *Handler) ListPendingApprovals(w http.ResponseWriter, r *http.Request) {
	approver := r.URL.Query().Get("approver_id")
	if approver == "" {
		writeError(w, http.StatusBadRequest, "approver_id is required", nil)
		return
	}

	pending, err := h.Service.PendingApprovals(r.Context(), ledger.OwnerID(approver))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list approvals", err)
		return
	}

	dtos := make([]PendingApprovalDTO, 0, len(pending))
	for _, p := range pending {
		dtos = append(dtos, PendingApprovalDTO{Usage: toUsageDTO(p.Usage), Step: toStepDTO(p.Step)})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// ListPolicies returns all policies.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Service.ListPolicies(r.Context())
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list policies", err)
		return
	}

	dtos := make([]PolicyDTO, 0, len(policies))
	for _, p := range policies {
		dtos = append(dtos, h.toPolicyDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePolicy defines a policy from its JSON schema.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req factory.PolicyJSON
	if !h.decode(w, r, &req) {
		return
	}

	policy, err := h.PolicyFactory.FromJSON(req)
	if err != nil {
		h.writeLedgerError(w, r, "Invalid policy", err)
		return
	}
	policy, err = h.Service.DefinePolicy(r.Context(), *policy)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to save policy", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toPolicyDTO(*policy))
}

// GetPolicy returns a single policy.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := h.Service.GetPolicy(r.Context(), ledger.PolicyID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeLedgerError(w, r, "Policy not found", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toPolicyDTO(*policy))
}

func (h *Handler) toPolicyDTO(p ledger.Policy) PolicyDTO {
	dto := PolicyDTO{PolicyJSON: h.PolicyFactory.ToJSON(p)}
	if !p.CreatedAt.IsZero() {
		dto.CreatedAt = formatTimestamp(p.CreatedAt)
	}
	return dto
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// CreateAssignment assigns a policy to an employee.
func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req CreateAssignmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := ledger.AssignmentInput{
		OwnerID:  ledger.OwnerID(req.EmployeeID),
		PolicyID: ledger.PolicyID(req.PolicyID),
	}
	if req.EffectiveFrom != "" {
		in.EffectiveFrom = ledger.MustParseDate(req.EffectiveFrom)
	}
	if req.EffectiveTo != "" {
		d := ledger.MustParseDate(req.EffectiveTo)
		in.EffectiveTo = &d
	}
	if req.NextGrantDate != "" {
		d := ledger.MustParseDate(req.NextGrantDate)
		in.NextGrantDate = &d
	}

	assignment, err := h.Service.AssignPolicy(r.Context(), in)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to create assignment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentDTO(*assignment))
}

// TriggerSchedule runs the daily grant schedule. Query: date (default today).
func (h *Handler) TriggerSchedule(w http.ResponseWriter, r *http.Request) {
	day, err := h.queryDate(r, "date")
	if err != nil {
		h.writeLedgerError(w, r, "Invalid date", err)
		return
	}
	n, err := h.Scheduler.RunSchedule(r.Context(), day)
	if err != nil {
		h.writeLedgerError(w, r, "Grant schedule failed", err)
		return
	}
	writeJSON(w, http.StatusOK, JobResultDTO{Kind: string(sqlite.RunGrantSchedule), Date: day.String(), Affected: n})
}

// TriggerSweep runs the expiration sweep. Query: date (default today).
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	day, err := h.queryDate(r, "date")
	if err != nil {
		h.writeLedgerError(w, r, "Invalid date", err)
		return
	}
	n, err := h.Scheduler.RunSweep(r.Context(), day)
	if err != nil {
		h.writeLedgerError(w, r, "Expiration sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, JobResultDTO{Kind: string(sqlite.RunExpirationSweep), Date: day.String(), Affected: n})
}

// ListRuns returns recent scheduler and sweeper runs. Query: limit.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := h.Store.ListRuns(r.Context(), limit)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list runs", err)
		return
	}
	dtos := make([]RunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toRunDTO(run))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListLeaveTypes returns the registered leave types.
func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	types := ledger.ListLeaveTypes()
	dtos := make([]LeaveTypeDTO, 0, len(types))
	for _, t := range types {
		dtos = append(dtos, LeaveTypeDTO{Code: string(t.Code), Name: t.Name, Unit: string(t.Unit), Paid: t.Paid})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Healthz reports whether the database is reachable.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns all holidays.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.ListHolidays(r.Context())
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list holidays", err)
		return
	}
	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, hol := range holidays {
		dtos = append(dtos, toHolidayDTO(hol))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday adds a holiday.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if !h.decode(w, r, &req) {
		return
	}

	holiday := ledger.Holiday{
		ID:        uuid.NewString(),
		Date:      ledger.MustParseDate(req.Date),
		Name:      req.Name,
		Recurring: req.Recurring,
	}
	if err := h.Store.SaveHoliday(r.Context(), holiday); err != nil {
		h.writeLedgerError(w, r, "Failed to create holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(holiday))
}

// AddDefaultHolidays installs the fixed-date public holidays.
func (h *Handler) AddDefaultHolidays(w http.ResponseWriter, r *http.Request) {
	defaults := timeoff.DefaultHolidays()
	for _, hol := range defaults {
		if err := h.Store.SaveHoliday(r.Context(), hol); err != nil {
			h.writeLedgerError(w, r, "Failed to add holidays", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": len(defaults)})
}

// DeleteHoliday removes a holiday.
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeLedgerError(w, r, "Failed to delete holiday", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

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

// decode reads a JSON body into v and validates it. On failure it writes
// a 400 and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[jsonFieldName(fe)] = validationMessage(fe)
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Validation failed",
			Code:    errorCode(ledger.ErrInvalidInput),
			Details: fields,
		})
		return false
	}
	return true
}

// jsonFieldName turns "SubmitRequestDTO.From" into "from".
func jsonFieldName(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return toSnake(ns)
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && s[i-1] != '.' {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "datetime":
		return "must be a date (YYYY-MM-DD)"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt", "gte", "lte", "max":
		return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
	}
	return "is invalid (" + fe.Tag() + ")"
}

// queryDate parses a YYYY-MM-DD query parameter, defaulting to today.
func (h *Handler) queryDate(r *http.Request, name string) (ledger.Date, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return ledger.Today(h.Clock), nil
	}
	return ledger.ParseDate(s)
}

// resolveLeaveType parses the leave type, falling back to the policy's
// type when only a policy is given.
func (h *Handler) resolveLeaveType(r *http.Request, leaveType, policyID string) (ledger.LeaveType, error) {
	if leaveType == "" && policyID != "" {
		policy, err := h.Service.GetPolicy(r.Context(), ledger.PolicyID(policyID))
		if err != nil {
			return "", err
		}
		return policy.LeaveType, nil
	}
	return timeoff.ParseLeaveType(leaveType)
}

func ownerParam(r *http.Request) ledger.OwnerID {
	return ledger.OwnerID(chi.URLParam(r, "id"))
}
