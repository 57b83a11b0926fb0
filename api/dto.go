/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the ledger's
  domain types from the external contract. Amounts travel as float64 plus a
  unit; dates as YYYY-MM-DD strings.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator tags. Handlers call
  h.decode, which decodes and validates in one step; domain rules are
  still enforced by the ledger.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyJSON type
*/
package api

import (
	"time"

	"github.com/warp/leave-ledger/factory"
	"github.com/warp/leave-ledger/ledger"
	"github.com/warp/leave-ledger/store/sqlite"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

type EmployeeDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	ManagerID string `json:"manager_id,omitempty"`
	HireDate  string `json:"hire_date,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateEmployeeRequest struct {
	ID        string `json:"id" validate:"required,max=64"`
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email"`
	ManagerID string `json:"manager_id" validate:"omitempty,nefield=ID"`
	HireDate  string `json:"hire_date" validate:"omitempty,datetime=2006-01-02"`
}

// =============================================================================
// POLICIES AND ASSIGNMENTS
// =============================================================================

// PolicyDTO is a policy in its file/wire schema plus bookkeeping fields.
type PolicyDTO struct {
	factory.PolicyJSON
	CreatedAt string `json:"created_at,omitempty"`
}

type AssignmentDTO struct {
	ID            string  `json:"id"`
	EmployeeID    string  `json:"employee_id"`
	PolicyID      string  `json:"policy_id"`
	EffectiveFrom string  `json:"effective_from"`
	EffectiveTo   *string `json:"effective_to,omitempty"`
	NextGrantDate *string `json:"next_grant_date,omitempty"`
}

type CreateAssignmentRequest struct {
	EmployeeID    string `json:"employee_id" validate:"required"`
	PolicyID      string `json:"policy_id" validate:"required"`
	EffectiveFrom string `json:"effective_from" validate:"omitempty,datetime=2006-01-02"`
	EffectiveTo   string `json:"effective_to" validate:"omitempty,datetime=2006-01-02"`
	NextGrantDate string `json:"next_grant_date" validate:"omitempty,datetime=2006-01-02"`
}

// =============================================================================
// GRANTS
// =============================================================================

type GrantDTO struct {
	ID            string  `json:"id"`
	EmployeeID    string  `json:"employee_id"`
	LeaveType     string  `json:"leave_type"`
	PolicyID      string  `json:"policy_id,omitempty"`
	Total         float64 `json:"total"`
	Remaining     float64 `json:"remaining"`
	Unit          string  `json:"unit"`
	ValidFrom     string  `json:"valid_from"`
	ValidTo       string  `json:"valid_to"`
	Status        string  `json:"status"`
	RequestedFrom string  `json:"requested_from,omitempty"`
	RequestedTo   string  `json:"requested_to,omitempty"`
	Reason        string  `json:"reason,omitempty"`
	Version       int64   `json:"version"`
	CreatedAt     string  `json:"created_at"`
}

type CreateGrantRequest struct {
	EmployeeID string  `json:"employee_id" validate:"required"`
	LeaveType  string  `json:"leave_type"`
	PolicyID   string  `json:"policy_id"`
	Amount     float64 `json:"amount" validate:"gt=0"`
	Unit       string  `json:"unit" validate:"omitempty,oneof=days hours"`
	ValidFrom  string  `json:"valid_from" validate:"required,datetime=2006-01-02"`
	ValidTo    string  `json:"valid_to" validate:"omitempty,datetime=2006-01-02"`
	Reason     string  `json:"reason"`
}

type RevokeGrantRequest struct {
	Reason string `json:"reason"`
}

// =============================================================================
// USAGES AND APPROVALS
// =============================================================================

// SubmitRequestDTO is an employee's leave request.
type SubmitRequestDTO struct {
	LeaveType string  `json:"leave_type"`
	PolicyID  string  `json:"policy_id"`
	From      string  `json:"from" validate:"required,datetime=2006-01-02"`
	To        string  `json:"to" validate:"omitempty,datetime=2006-01-02"`
	Portion   string  `json:"portion" validate:"omitempty,oneof=FULL AM PM"`
	Days      float64 `json:"days" validate:"gte=0"`
	Hours     float64 `json:"hours" validate:"gte=0"`
	Reason    string  `json:"reason" validate:"max=500"`
}

type UsageDTO struct {
	ID         string  `json:"id"`
	EmployeeID string  `json:"employee_id"`
	LeaveType  string  `json:"leave_type"`
	PolicyID   string  `json:"policy_id,omitempty"`
	Amount     float64 `json:"amount"`
	Unit       string  `json:"unit"`
	From       string  `json:"from"`
	To         string  `json:"to"`
	Status     string  `json:"status"`
	Reason     string  `json:"reason,omitempty"`
	GrantID    string  `json:"grant_id,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

type DeductionDTO struct {
	ID      string  `json:"id"`
	GrantID string  `json:"grant_id"`
	Amount  float64 `json:"amount"`
	Unit    string  `json:"unit"`
}

type ApprovalStepDTO struct {
	ID         string  `json:"id"`
	Sequence   int     `json:"sequence"`
	ApproverID string  `json:"approver_id"`
	Decision   string  `json:"decision"`
	DecidedAt  *string `json:"decided_at,omitempty"`
}

// UsageDetailDTO is a usage with its deductions and approval chain.
type UsageDetailDTO struct {
	UsageDTO
	Deductions  []DeductionDTO    `json:"deductions"`
	Steps       []ApprovalStepDTO `json:"approval_steps"`
	CurrentStep *ApprovalStepDTO  `json:"current_step,omitempty"`
}

type DecisionRequest struct {
	ApproverID string `json:"approver_id" validate:"required"`
	Decision   string `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
}

type PendingApprovalDTO struct {
	Usage UsageDTO        `json:"usage"`
	Step  ApprovalStepDTO `json:"step"`
}

// =============================================================================
// BALANCE AND PREVIEW
// =============================================================================

type BalanceLineDTO struct {
	LeaveType string  `json:"leave_type"`
	Unit      string  `json:"unit"`
	Granted   float64 `json:"granted"`
	Available float64 `json:"available"`
	Upcoming  float64 `json:"upcoming"`
	Used      float64 `json:"used"`
	Expired   float64 `json:"expired"`
	Pending   float64 `json:"pending"`
}

type BalanceResponse struct {
	EmployeeID string           `json:"employee_id"`
	AsOf       string           `json:"as_of"`
	Lines      []BalanceLineDTO `json:"lines"`
}

type PreviewRequest struct {
	LeaveType string  `json:"leave_type"`
	Amount    float64 `json:"amount" validate:"gt=0"`
	Unit      string  `json:"unit" validate:"omitempty,oneof=days hours"`
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
}

type DrawDTO struct {
	GrantID        string  `json:"grant_id"`
	Amount         float64 `json:"amount"`
	RemainingAfter float64 `json:"remaining_after"`
}

type PreviewDTO struct {
	Satisfiable bool      `json:"satisfiable"`
	Unit        string    `json:"unit"`
	Covered     float64   `json:"covered"`
	Shortfall   float64   `json:"shortfall"`
	Draws       []DrawDTO `json:"draws"`
}

// =============================================================================
// HOLIDAYS, LEAVE TYPES, RUNS, SCENARIOS
// =============================================================================

type HolidayDTO struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

type CreateHolidayRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Name      string `json:"name" validate:"required"`
	Recurring bool   `json:"recurring"`
}

type LeaveTypeDTO struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Unit string `json:"unit"`
	Paid bool   `json:"paid"`
}

type RunDTO struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	RunDate     string  `json:"run_date"`
	Status      string  `json:"status"`
	Affected    int     `json:"affected"`
	Error       string  `json:"error,omitempty"`
	StartedAt   string  `json:"started_at"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// JobResultDTO is the response of a manually triggered job.
type JobResultDTO struct {
	Kind     string `json:"kind"`
	Date     string `json:"date"`
	Affected int    `json:"affected"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func amountValue(a ledger.Amount) float64 {
	f, _ := a.Value.Float64()
	return f
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func optionalDate(d *ledger.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func toEmployeeDTO(e sqlite.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:        string(e.ID),
		Name:      e.Name,
		Email:     e.Email,
		ManagerID: string(e.ManagerID),
		CreatedAt: formatTimestamp(e.CreatedAt),
	}
	if !e.HireDate.IsZero() {
		dto.HireDate = e.HireDate.String()
	}
	return dto
}

func toAssignmentDTO(a ledger.Assignment) AssignmentDTO {
	return AssignmentDTO{
		ID:            string(a.ID),
		EmployeeID:    string(a.OwnerID),
		PolicyID:      string(a.PolicyID),
		EffectiveFrom: a.EffectiveFrom.String(),
		EffectiveTo:   optionalDate(a.EffectiveTo),
		NextGrantDate: optionalDate(a.NextGrantDate),
	}
}

func toGrantDTO(g *ledger.Grant) GrantDTO {
	dto := GrantDTO{
		ID:         string(g.ID),
		EmployeeID: string(g.OwnerID),
		LeaveType:  string(g.LeaveType),
		PolicyID:   string(g.PolicyID),
		Total:      amountValue(g.Total),
		Remaining:  amountValue(g.Remaining),
		Unit:       string(g.Total.Unit),
		ValidFrom:  g.Window.From.String(),
		ValidTo:    g.Window.To.String(),
		Status:     string(g.Status),
		Reason:     g.Reason,
		Version:    g.Version,
		CreatedAt:  formatTimestamp(g.CreatedAt),
	}
	if g.RequestedWindow != nil {
		dto.RequestedFrom = g.RequestedWindow.From.String()
		dto.RequestedTo = g.RequestedWindow.To.String()
	}
	return dto
}

func toUsageDTO(u *ledger.UsageRequest) UsageDTO {
	return UsageDTO{
		ID:         string(u.ID),
		EmployeeID: string(u.OwnerID),
		LeaveType:  string(u.LeaveType),
		PolicyID:   string(u.PolicyID),
		Amount:     amountValue(u.Amount),
		Unit:       string(u.Amount.Unit),
		From:       u.Window.From.String(),
		To:         u.Window.To.String(),
		Status:     string(u.Status),
		Reason:     u.Reason,
		GrantID:    string(u.GrantID),
		CreatedAt:  formatTimestamp(u.CreatedAt),
	}
}

func toStepDTO(s ledger.ApprovalStep) ApprovalStepDTO {
	dto := ApprovalStepDTO{
		ID:         string(s.ID),
		Sequence:   s.Sequence,
		ApproverID: string(s.ApproverID),
		Decision:   string(s.Decision),
	}
	if s.DecidedAt != nil {
		at := formatTimestamp(*s.DecidedAt)
		dto.DecidedAt = &at
	}
	return dto
}

func toUsageDetailDTO(v *ledger.UsageView) UsageDetailDTO {
	dto := UsageDetailDTO{
		UsageDTO:   toUsageDTO(v.Usage),
		Deductions: make([]DeductionDTO, 0, len(v.Deductions)),
		Steps:      make([]ApprovalStepDTO, 0, len(v.Steps)),
	}
	for _, d := range v.Deductions {
		dto.Deductions = append(dto.Deductions, DeductionDTO{
			ID:      string(d.ID),
			GrantID: string(d.GrantID),
			Amount:  amountValue(d.Amount),
			Unit:    string(d.Amount.Unit),
		})
	}
	for _, s := range v.Steps {
		dto.Steps = append(dto.Steps, toStepDTO(s))
	}
	if v.CurrentStep != nil {
		current := toStepDTO(*v.CurrentStep)
		dto.CurrentStep = &current
	}
	return dto
}

func toBalanceLineDTO(b ledger.BalanceLine) BalanceLineDTO {
	return BalanceLineDTO{
		LeaveType: string(b.LeaveType),
		Unit:      string(b.Unit),
		Granted:   amountValue(b.Granted),
		Available: amountValue(b.Available),
		Upcoming:  amountValue(b.Upcoming),
		Used:      amountValue(b.Used),
		Expired:   amountValue(b.Expired),
		Pending:   amountValue(b.Pending),
	}
}

func toPreviewDTO(p ledger.AllocationPlan) PreviewDTO {
	dto := PreviewDTO{
		Satisfiable: p.Satisfiable(),
		Unit:        string(p.Request.Amount.Unit),
		Covered:     amountValue(p.Covered),
		Shortfall:   amountValue(p.Shortfall),
		Draws:       make([]DrawDTO, 0, len(p.Draws)),
	}
	for _, d := range p.Draws {
		dto.Draws = append(dto.Draws, DrawDTO{
			GrantID:        string(d.GrantID),
			Amount:         amountValue(d.Amount),
			RemainingAfter: amountValue(d.RemainingAfter),
		})
	}
	return dto
}

func toHolidayDTO(h ledger.Holiday) HolidayDTO {
	return HolidayDTO{ID: h.ID, Date: h.Date.String(), Name: h.Name, Recurring: h.Recurring}
}

func toRunDTO(r sqlite.ScheduleRun) RunDTO {
	dto := RunDTO{
		ID:        r.ID,
		Kind:      string(r.Kind),
		RunDate:   r.RunDate,
		Status:    string(r.Status),
		Affected:  r.Affected,
		Error:     r.Error,
		StartedAt: formatTimestamp(r.StartedAt),
	}
	if r.CompletedAt != nil {
		at := formatTimestamp(*r.CompletedAt)
		dto.CompletedAt = &at
	}
	return dto
}
