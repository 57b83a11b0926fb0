/*
service.go - Ledger service: construction, grants and policies

PURPOSE:
  Service is the in-process API of the ledger. Every exposed operation
  locks the affected owner, opens one store transaction, and either
  commits all of its writes or none.

OPERATIONS (by file):
  service.go:   CreateManualGrant, RevokeGrant, CorrectGrant, DefinePolicy, AssignPolicy
  workflow.go:  RequestUsage, DecideApproval, CancelUsage
  scheduler.go: RunDailyGrantSchedule
  sweeper.go:   RunExpirationSweep
  balance.go:   Balance, ListGrants, ListUsages, UsageDetail, PendingApprovals, PreviewAllocation
  audit.go:     Audit

USAGE:
  svc := ledger.NewService(store, directory, ledger.SystemClock{},
      ledger.WithLogger(logger),
      ledger.WithCalendar(calendar),
  )
*/
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service runs ledger operations against a Store.
type Service struct {
	store     Store
	directory Directory
	clock     Clock
	calendar  HolidayCalendar
	logger    *zap.Logger
	newID     func() string
	locks     ownerLocks
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l.Named("ledger.service")
		}
	}
}

// WithCalendar sets the holiday calendar used for business-day amounts.
func WithCalendar(c HolidayCalendar) Option {
	return func(s *Service) {
		if c != nil {
			s.calendar = c
		}
	}
}

// WithIDGenerator replaces uuid generation, for deterministic tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func NewService(store Store, directory Directory, clock Clock, opts ...Option) *Service {
	s := &Service{
		store:     store,
		directory: directory,
		clock:     clock,
		calendar:  NoHolidays{},
		logger:    zap.L().Named("ledger.service"),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.directory == nil {
		s.directory = StaticDirectory{}
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	return s
}

func (s *Service) today() Date {
	return Today(s.clock)
}

// =============================================================================
// MANUAL GRANTS
// =============================================================================

type ManualGrantInput struct {
	OwnerID   OwnerID
	LeaveType LeaveType
	Amount    Amount
	ValidFrom Date
	ValidTo   Date

	// PolicyID optionally ties the grant to a MANUAL policy.
	PolicyID PolicyID
	Reason   string
}

// CreateManualGrant issues one ACTIVE grant with an explicit amount and window.
func (s *Service) CreateManualGrant(ctx context.Context, in ManualGrantInput) (*Grant, error) {
	l := s.logger.With(zap.String("owner_id", string(in.OwnerID)))
	l.Debug("create manual grant", zap.String("leave_type", string(in.LeaveType)))

	if in.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: grant amount must be positive", ErrInvalidAmount)
	}
	// A policy-backed grant may leave ValidTo open; the policy's
	// expiration rule closes it.
	derive := in.PolicyID != "" && in.ValidTo.IsZero() && !in.ValidFrom.IsZero()
	window := Window{From: in.ValidFrom, To: in.ValidTo}
	if !derive {
		if err := window.Validate(); err != nil {
			return nil, err
		}
	}

	unlock := s.locks.lock(in.OwnerID)
	defer unlock()

	now := s.clock.Now()
	grant := &Grant{
		ID:        GrantID(s.newID()),
		OwnerID:   in.OwnerID,
		LeaveType: in.LeaveType,
		PolicyID:  in.PolicyID,
		Total:     in.Amount,
		Remaining: in.Amount,
		Window:    window,
		Status:    GrantActive,
		Reason:    in.Reason,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.store.WithTx(ctx, func(repo Repository) error {
		if in.PolicyID != "" {
			policy, err := repo.GetPolicy(ctx, in.PolicyID)
			if err != nil {
				return err
			}
			if policy.Method != IssueManual {
				return fmt.Errorf("%w: %s is %s", ErrPolicyMethodMismatch, policy.ID, policy.Method)
			}
			if grant.LeaveType == AnyLeaveType {
				grant.LeaveType = policy.LeaveType
			}
			if grant.LeaveType != policy.LeaveType {
				return fmt.Errorf("%w: policy %s covers %s", ErrPolicyMethodMismatch, policy.ID, policy.LeaveType)
			}
			if derive {
				grant.Window = policy.IssueWindow(in.ValidFrom)
			}
		}
		return repo.InsertGrant(ctx, grant)
	})
	if err != nil {
		l.Warn("manual grant refused", zap.Error(err))
		return nil, err
	}

	l.Info("manual grant created", zap.String("grant_id", string(grant.ID)), zap.String("amount", grant.Total.String()))
	return grant, nil
}

// RevokeGrant administratively cancels a grant. Existing deductions stay.
// A PENDING grant backs a usage awaiting approval; it is retired by
// rejecting or cancelling that usage instead.
func (s *Service) RevokeGrant(ctx context.Context, id GrantID, reason string) (*Grant, error) {
	return s.mutateGrant(ctx, id, func(repo Repository, g *Grant) error {
		if g.Status == GrantPending {
			return fmt.Errorf("%w: %s awaits approval", ErrGrantInUse, g.ID)
		}
		if err := g.transition(GrantRevoked, s.clock.Now()); err != nil {
			return err
		}
		if reason != "" {
			g.Reason = reason
		}
		return nil
	})
}

// CorrectGrant flags a grant entered in error as deleted. Lifecycle status
// is not touched. A grant that has been drawn on, or that backs a pending
// usage, cannot be corrected.
func (s *Service) CorrectGrant(ctx context.Context, id GrantID) (*Grant, error) {
	return s.mutateGrant(ctx, id, func(repo Repository, g *Grant) error {
		if g.Deleted {
			return nil
		}
		if g.Status == GrantPending {
			return fmt.Errorf("%w: %s awaits approval", ErrGrantInUse, g.ID)
		}
		deductions, err := repo.ListDeductionsByGrant(ctx, g.ID)
		if err != nil {
			return err
		}
		if len(deductions) > 0 {
			return fmt.Errorf("%w: %s has %d deductions", ErrGrantInUse, g.ID, len(deductions))
		}
		g.Deleted = true
		g.UpdatedAt = s.clock.Now()
		return nil
	})
}

func (s *Service) mutateGrant(ctx context.Context, id GrantID, fn func(Repository, *Grant) error) (*Grant, error) {
	var owner OwnerID
	err := s.store.View(ctx, func(repo Repository) error {
		g, err := repo.GetGrant(ctx, id)
		if err != nil {
			return err
		}
		owner = g.OwnerID
		return nil
	})
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(owner)
	defer unlock()

	var result *Grant
	err = s.store.WithTx(ctx, func(repo Repository) error {
		g, err := repo.GetGrant(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(repo, g); err != nil {
			return err
		}
		if err := repo.UpdateGrant(ctx, g); err != nil {
			return err
		}
		result = g
		return nil
	})
	if err != nil {
		s.logger.Warn("grant update refused", zap.String("grant_id", string(id)), zap.Error(err))
		return nil, err
	}
	s.logger.Info("grant updated",
		zap.String("grant_id", string(id)),
		zap.String("status", string(result.Status)),
		zap.Bool("deleted", result.Deleted))
	return result, nil
}

// =============================================================================
// POLICIES
// =============================================================================

// DefinePolicy validates and stores a policy. Redefining a policy that
// grants already reference fails with ErrPolicyImmutable.
func (s *Service) DefinePolicy(ctx context.Context, p Policy) (*Policy, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Effective.Kind == "" {
		p.Effective.Kind = EffectiveImmediate
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.clock.Now()
	}

	err := s.store.WithTx(ctx, func(repo Repository) error {
		existing, err := repo.GetPolicy(ctx, p.ID)
		switch {
		case errors.Is(err, ErrPolicyNotFound):
		case err != nil:
			return err
		default:
			n, err := repo.CountGrantsByPolicy(ctx, p.ID)
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: %s has %d grants", ErrPolicyImmutable, p.ID, n)
			}
			p.CreatedAt = existing.CreatedAt
		}
		return repo.SavePolicy(ctx, p)
	})
	if err != nil {
		s.logger.Warn("policy refused", zap.String("policy_id", string(p.ID)), zap.Error(err))
		return nil, err
	}
	s.logger.Info("policy defined", zap.String("policy_id", string(p.ID)), zap.String("method", string(p.Method)))
	return &p, nil
}

type AssignmentInput struct {
	OwnerID       OwnerID
	PolicyID      PolicyID
	EffectiveFrom Date
	EffectiveTo   *Date
	NextGrantDate *Date
}

// ListAssignments returns the owner's policy assignments.
func (s *Service) ListAssignments(ctx context.Context, owner OwnerID) ([]Assignment, error) {
	var result []Assignment
	err := s.store.View(ctx, func(repo Repository) error {
		var err error
		result, err = repo.ListAssignmentsByOwner(ctx, owner)
		return err
	})
	return result, err
}

// ListPolicies returns every defined policy ordered by id.
func (s *Service) ListPolicies(ctx context.Context) ([]Policy, error) {
	var result []Policy
	err := s.store.View(ctx, func(repo Repository) error {
		var err error
		result, err = repo.ListPolicies(ctx)
		return err
	})
	return result, err
}

func (s *Service) GetPolicy(ctx context.Context, id PolicyID) (*Policy, error) {
	var result *Policy
	err := s.store.View(ctx, func(repo Repository) error {
		var err error
		result, err = repo.GetPolicy(ctx, id)
		return err
	})
	return result, err
}

// AssignPolicy links an owner to a policy. For REPEAT policies the
// assignment is what the daily schedule iterates.
func (s *Service) AssignPolicy(ctx context.Context, in AssignmentInput) (*Assignment, error) {
	if in.OwnerID == "" || in.PolicyID == "" {
		return nil, fmt.Errorf("%w: owner and policy are required", ErrInvalidInput)
	}
	if in.EffectiveFrom.IsZero() {
		in.EffectiveFrom = s.today()
	}
	if in.EffectiveTo != nil && in.EffectiveTo.Before(in.EffectiveFrom) {
		return nil, fmt.Errorf("%w: assignment ends before it starts", ErrInvalidDateRange)
	}
	if in.NextGrantDate != nil && in.NextGrantDate.Before(in.EffectiveFrom) {
		first := in.EffectiveFrom
		in.NextGrantDate = &first
	}

	a := Assignment{
		ID:            AssignmentID(s.newID()),
		OwnerID:       in.OwnerID,
		PolicyID:      in.PolicyID,
		EffectiveFrom: in.EffectiveFrom,
		EffectiveTo:   in.EffectiveTo,
		NextGrantDate: in.NextGrantDate,
		CreatedAt:     s.clock.Now(),
	}
	err := s.store.WithTx(ctx, func(repo Repository) error {
		if _, err := repo.GetPolicy(ctx, in.PolicyID); err != nil {
			return err
		}
		existing, err := repo.ListAssignmentsByOwner(ctx, in.OwnerID)
		if err != nil {
			return err
		}
		// One assignment per (owner, policy): reassigning updates it in place.
		for _, e := range existing {
			if e.PolicyID != in.PolicyID {
				continue
			}
			a.ID, a.CreatedAt = e.ID, e.CreatedAt
			if a.NextGrantDate == nil {
				a.NextGrantDate = e.NextGrantDate
			}
		}
		return repo.SaveAssignment(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("policy assigned",
		zap.String("owner_id", string(a.OwnerID)),
		zap.String("policy_id", string(a.PolicyID)),
		zap.String("assignment_id", string(a.ID)))
	return &a, nil
}
