// Package store provides an in-memory ledger.Store for tests and local runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/leave-ledger/ledger"
)

// ErrReadOnly is returned by writes attempted inside View.
var ErrReadOnly = errors.New("write attempted in read-only view")

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps all tables in maps. WithTx works on a copy of the tables and
// swaps it in only when fn succeeds, so a failed unit of work leaves
// nothing behind.
type Memory struct {
	mu   sync.RWMutex
	data *state
}

func NewMemory() *Memory {
	return &Memory{data: newState()}
}

func (m *Memory) WithTx(_ context.Context, fn func(ledger.Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.data.clone()
	if err := fn(work); err != nil {
		return err
	}
	m.data = work
	return nil
}

func (m *Memory) View(_ context.Context, fn func(ledger.Repository) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	view := *m.data
	view.readOnly = true
	return fn(&view)
}

// =============================================================================
// STATE - One snapshot of every table
// =============================================================================

type state struct {
	readOnly bool

	policies    map[ledger.PolicyID]ledger.Policy
	assignments map[ledger.AssignmentID]ledger.Assignment
	grants      map[ledger.GrantID]ledger.Grant
	usages      map[ledger.UsageID]ledger.UsageRequest
	deductions  map[ledger.DeductionID]ledger.DeductionRecord
	steps       map[ledger.StepID]ledger.ApprovalStep
}

func newState() *state {
	return &state{
		policies:    make(map[ledger.PolicyID]ledger.Policy),
		assignments: make(map[ledger.AssignmentID]ledger.Assignment),
		grants:      make(map[ledger.GrantID]ledger.Grant),
		usages:      make(map[ledger.UsageID]ledger.UsageRequest),
		deductions:  make(map[ledger.DeductionID]ledger.DeductionRecord),
		steps:       make(map[ledger.StepID]ledger.ApprovalStep),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.policies {
		c.policies[k] = v
	}
	for k, v := range s.assignments {
		c.assignments[k] = v
	}
	for k, v := range s.grants {
		c.grants[k] = v
	}
	for k, v := range s.usages {
		c.usages[k] = v
	}
	for k, v := range s.deductions {
		c.deductions[k] = v
	}
	for k, v := range s.steps {
		c.steps[k] = v
	}
	return c
}

func (s *state) writable() error {
	if s.readOnly {
		return ErrReadOnly
	}
	return nil
}

// =============================================================================
// POLICIES & ASSIGNMENTS
// =============================================================================

func (s *state) SavePolicy(_ context.Context, p ledger.Policy) error {
	if err := s.writable(); err != nil {
		return err
	}
	s.policies[p.ID] = p
	return nil
}

func (s *state) GetPolicy(_ context.Context, id ledger.PolicyID) (*ledger.Policy, error) {
	p, ok := s.policies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrPolicyNotFound, id)
	}
	return &p, nil
}

func (s *state) ListPolicies(_ context.Context) ([]ledger.Policy, error) {
	result := make([]ledger.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *state) CountGrantsByPolicy(_ context.Context, id ledger.PolicyID) (int, error) {
	n := 0
	for _, g := range s.grants {
		if g.PolicyID == id {
			n++
		}
	}
	return n, nil
}

func (s *state) SaveAssignment(_ context.Context, a ledger.Assignment) error {
	if err := s.writable(); err != nil {
		return err
	}
	s.assignments[a.ID] = a
	return nil
}

func (s *state) GetAssignment(_ context.Context, id ledger.AssignmentID) (*ledger.Assignment, error) {
	a, ok := s.assignments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAssignmentNotFound, id)
	}
	return &a, nil
}

func (s *state) ListAssignmentsByOwner(_ context.Context, owner ledger.OwnerID) ([]ledger.Assignment, error) {
	var result []ledger.Assignment
	for _, a := range s.assignments {
		if a.OwnerID == owner {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *state) ListDueAssignments(_ context.Context, today ledger.Date) ([]ledger.Assignment, error) {
	var result []ledger.Assignment
	for _, a := range s.assignments {
		if a.NextGrantDate == nil || a.NextGrantDate.BeforeOrEqual(today) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *state) AdvanceAssignment(_ context.Context, id ledger.AssignmentID, expected *ledger.Date, next ledger.Date) error {
	if err := s.writable(); err != nil {
		return err
	}
	a, ok := s.assignments[id]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrAssignmentNotFound, id)
	}
	if !sameDate(a.NextGrantDate, expected) {
		return fmt.Errorf("%w: assignment %s", ledger.ErrDuplicateGrantSchedule, id)
	}
	a.NextGrantDate = &next
	s.assignments[id] = a
	return nil
}

func sameDate(a, b *ledger.Date) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// =============================================================================
// GRANTS
// =============================================================================

func (s *state) InsertGrant(_ context.Context, g *ledger.Grant) error {
	if err := s.writable(); err != nil {
		return err
	}
	if _, exists := s.grants[g.ID]; exists {
		return fmt.Errorf("grant %s already exists", g.ID)
	}
	g.Version = 1
	s.grants[g.ID] = *g
	return nil
}

func (s *state) UpdateGrant(_ context.Context, g *ledger.Grant) error {
	if err := s.writable(); err != nil {
		return err
	}
	stored, ok := s.grants[g.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrGrantNotFound, g.ID)
	}
	if stored.Version != g.Version {
		return fmt.Errorf("%w: grant %s", ledger.ErrConcurrentModification, g.ID)
	}
	g.Version++
	s.grants[g.ID] = *g
	return nil
}

func (s *state) GetGrant(_ context.Context, id ledger.GrantID) (*ledger.Grant, error) {
	g, ok := s.grants[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrGrantNotFound, id)
	}
	return &g, nil
}

func (s *state) ListGrantsByOwner(_ context.Context, owner ledger.OwnerID) ([]*ledger.Grant, error) {
	var result []*ledger.Grant
	for _, g := range s.grants {
		if g.OwnerID == owner && !g.Deleted {
			g := g
			result = append(result, &g)
		}
	}
	sortGrants(result)
	return result, nil
}

func (s *state) ListActiveGrantsEndingBefore(_ context.Context, d ledger.Date) ([]*ledger.Grant, error) {
	var result []*ledger.Grant
	for _, g := range s.grants {
		if g.Status == ledger.GrantActive && g.Window.To.Before(d) {
			g := g
			result = append(result, &g)
		}
	}
	sortGrants(result)
	return result, nil
}

func sortGrants(grants []*ledger.Grant) {
	sort.Slice(grants, func(i, j int) bool {
		if !grants[i].CreatedAt.Equal(grants[j].CreatedAt) {
			return grants[i].CreatedAt.Before(grants[j].CreatedAt)
		}
		return grants[i].ID < grants[j].ID
	})
}

// =============================================================================
// USAGES & DEDUCTIONS
// =============================================================================

func (s *state) InsertUsage(_ context.Context, u *ledger.UsageRequest) error {
	if err := s.writable(); err != nil {
		return err
	}
	if _, exists := s.usages[u.ID]; exists {
		return fmt.Errorf("usage %s already exists", u.ID)
	}
	u.Version = 1
	s.usages[u.ID] = *u
	return nil
}

func (s *state) UpdateUsage(_ context.Context, u *ledger.UsageRequest) error {
	if err := s.writable(); err != nil {
		return err
	}
	stored, ok := s.usages[u.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrUsageNotFound, u.ID)
	}
	if stored.Version != u.Version {
		return fmt.Errorf("%w: usage %s", ledger.ErrConcurrentModification, u.ID)
	}
	u.Version++
	s.usages[u.ID] = *u
	return nil
}

func (s *state) GetUsage(_ context.Context, id ledger.UsageID) (*ledger.UsageRequest, error) {
	u, ok := s.usages[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrUsageNotFound, id)
	}
	return &u, nil
}

func (s *state) ListUsagesByOwner(_ context.Context, owner ledger.OwnerID) ([]*ledger.UsageRequest, error) {
	var result []*ledger.UsageRequest
	for _, u := range s.usages {
		if u.OwnerID == owner {
			u := u
			result = append(result, &u)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *state) InsertDeductions(_ context.Context, ds []ledger.DeductionRecord) error {
	if err := s.writable(); err != nil {
		return err
	}
	for _, d := range ds {
		if !d.Amount.IsPositive() {
			return fmt.Errorf("%w: deduction %s", ledger.ErrInvalidAmount, d.ID)
		}
		if _, ok := s.usages[d.UsageID]; !ok {
			return fmt.Errorf("%w: %s", ledger.ErrUsageNotFound, d.UsageID)
		}
		if _, ok := s.grants[d.GrantID]; !ok {
			return fmt.Errorf("%w: %s", ledger.ErrGrantNotFound, d.GrantID)
		}
		s.deductions[d.ID] = d
	}
	return nil
}

func (s *state) ListDeductionsByUsage(_ context.Context, id ledger.UsageID) ([]ledger.DeductionRecord, error) {
	return s.filterDeductions(func(d ledger.DeductionRecord) bool { return d.UsageID == id }), nil
}

func (s *state) ListDeductionsByGrant(_ context.Context, id ledger.GrantID) ([]ledger.DeductionRecord, error) {
	return s.filterDeductions(func(d ledger.DeductionRecord) bool { return d.GrantID == id }), nil
}

func (s *state) filterDeductions(keep func(ledger.DeductionRecord) bool) []ledger.DeductionRecord {
	var result []ledger.DeductionRecord
	for _, d := range s.deductions {
		if keep(d) {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (s *state) DeleteDeductionsByUsage(_ context.Context, id ledger.UsageID) error {
	if err := s.writable(); err != nil {
		return err
	}
	for k, d := range s.deductions {
		if d.UsageID == id {
			delete(s.deductions, k)
		}
	}
	return nil
}

// =============================================================================
// APPROVAL STEPS
// =============================================================================

func (s *state) InsertApprovalSteps(_ context.Context, steps []ledger.ApprovalStep) error {
	if err := s.writable(); err != nil {
		return err
	}
	for _, step := range steps {
		s.steps[step.ID] = step
	}
	return nil
}

func (s *state) ListApprovalSteps(_ context.Context, id ledger.UsageID) ([]ledger.ApprovalStep, error) {
	var result []ledger.ApprovalStep
	for _, step := range s.steps {
		if step.UsageID == id {
			result = append(result, step)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Sequence < result[j].Sequence })
	return result, nil
}

func (s *state) DecideApprovalStep(_ context.Context, id ledger.StepID, d ledger.Decision, at time.Time) error {
	if err := s.writable(); err != nil {
		return err
	}
	step, ok := s.steps[id]
	if !ok || step.Decision != ledger.DecisionPending {
		return fmt.Errorf("%w: step %s", ledger.ErrApprovalNotPending, id)
	}
	step.Decision = d
	step.DecidedAt = &at
	s.steps[id] = step
	return nil
}

func (s *state) ListPendingStepsByApprover(_ context.Context, approver ledger.OwnerID) ([]ledger.ApprovalStep, error) {
	var result []ledger.ApprovalStep
	for _, step := range s.steps {
		if step.ApproverID == approver && step.Decision == ledger.DecisionPending {
			result = append(result, step)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UsageID != result[j].UsageID {
			return result[i].UsageID < result[j].UsageID
		}
		return result[i].Sequence < result[j].Sequence
	})
	return result, nil
}
