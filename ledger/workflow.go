/*
workflow.go - Usage requests, approval decisions and cancellation

REQUEST FLOW:
  RequestUsage
    │
    ├─ governing policy requires approval?
    │     no  ──▶ allocate now ──▶ usage ACTIVE
    │     yes ──▶ usage PENDING_APPROVAL + approval chain
    │             (ON_REQUEST: backing grant PENDING)
    │
  DecideApproval (current step's approver only)
    ├─ REJECTED ──▶ usage REJECTED, backing grant REJECTED, chain closed
    └─ APPROVED on last step ──▶ backing grant ACTIVE, allocate, usage ACTIVE

  CancelUsage
    ├─ PENDING_APPROVAL ──▶ CANCELLED, backing grant REVOKED
    └─ ACTIVE ──▶ reverse deductions, CANCELLED, backing grant REVOKED

GOVERNING POLICY:
  Explicit PolicyID, else the first policy (by id) for the leave type.
  AnyLeaveType requests have no governing policy: no approval, and they
  draw from every leave type.

BACKING GRANTS:
  An ON_REQUEST policy creates a grant sized and windowed exactly like the
  usage. Such a usage draws only from its own backing grant.
*/
package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type UsageInput struct {
	OwnerID   OwnerID
	LeaveType LeaveType
	PolicyID  PolicyID

	// Amount defaults to the number of working days in Window when zero.
	Amount Amount
	Window Window
	Reason string
}

// RequestUsage records a request to spend leave. Without required approval
// it allocates immediately; otherwise it opens an approval chain.
func (s *Service) RequestUsage(ctx context.Context, in UsageInput) (*UsageRequest, error) {
	l := s.logger.With(zap.String("owner_id", string(in.OwnerID)), zap.String("leave_type", string(in.LeaveType)))
	l.Debug("request usage", zap.String("window", in.Window.String()))

	if in.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if err := in.Window.Validate(); err != nil {
		return nil, err
	}
	amount, err := s.usageAmount(in)
	if err != nil {
		return nil, err
	}

	var policy *Policy
	err = s.store.View(ctx, func(repo Repository) error {
		policy, err = resolvePolicy(ctx, repo, in.PolicyID, in.LeaveType)
		return err
	})
	if err != nil {
		return nil, err
	}

	var approvers []OwnerID
	if policy != nil && policy.RequiresApproval() {
		approvers, err = s.directory.ApproverChain(ctx, in.OwnerID, policy.ApprovalRequiredCount)
		if err != nil {
			l.Warn("approver chain unavailable", zap.Error(err))
			return nil, err
		}
		if len(approvers) != policy.ApprovalRequiredCount {
			return nil, fmt.Errorf("%w: got %d approvers, need %d",
				ErrApproverChainIncomplete, len(approvers), policy.ApprovalRequiredCount)
		}
	}

	unlock := s.locks.lock(in.OwnerID)
	defer unlock()

	now := s.clock.Now()
	usage := &UsageRequest{
		ID:        UsageID(s.newID()),
		OwnerID:   in.OwnerID,
		LeaveType: in.LeaveType,
		Amount:    amount,
		Window:    in.Window,
		Status:    UsageActive,
		Reason:    in.Reason,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if policy != nil {
		usage.PolicyID = policy.ID
		usage.LeaveType = policy.LeaveType
	}
	gated := len(approvers) > 0
	if gated {
		usage.Status = UsagePendingApproval
	}

	err = s.store.WithTx(ctx, func(repo Repository) error {
		if policy != nil && policy.Method == IssueOnRequest {
			backing := s.backingGrant(usage, policy, gated)
			if err := repo.InsertGrant(ctx, backing); err != nil {
				return err
			}
			usage.GrantID = backing.ID
		}

		if gated && usage.GrantID == "" {
			grants, err := repo.ListGrantsByOwner(ctx, usage.OwnerID)
			if err != nil {
				return err
			}
			if plan := planAllocation(grants, allocationRequestFor(usage)); !plan.Satisfiable() {
				return plan.insufficient()
			}
		}

		if err := repo.InsertUsage(ctx, usage); err != nil {
			return err
		}
		if gated {
			return repo.InsertApprovalSteps(ctx, BuildApprovalChain(usage, approvers, s.newID))
		}
		_, err := allocate(ctx, repo, usage, s.newID, now)
		return err
	})
	if err != nil {
		l.Warn("usage refused", zap.Error(err))
		return nil, err
	}

	l.Info("usage recorded",
		zap.String("usage_id", string(usage.ID)),
		zap.String("status", string(usage.Status)),
		zap.String("amount", usage.Amount.String()))
	return usage, nil
}

// DecideApproval applies one approver's decision to the usage's current step.
func (s *Service) DecideApproval(ctx context.Context, usageID UsageID, approverID OwnerID, decision Decision) (*UsageRequest, error) {
	l := s.logger.With(zap.String("usage_id", string(usageID)), zap.String("approver_id", string(approverID)))
	if decision != DecisionApproved && decision != DecisionRejected {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	owner, err := s.usageOwner(ctx, usageID)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.lock(owner)
	defer unlock()

	var usage *UsageRequest
	err = s.store.WithTx(ctx, func(repo Repository) error {
		usage, err = repo.GetUsage(ctx, usageID)
		if err != nil {
			return err
		}
		if usage.Status != UsagePendingApproval {
			return fmt.Errorf("%w: usage %s is %s", ErrApprovalNotPending, usage.ID, usage.Status)
		}
		steps, err := repo.ListApprovalSteps(ctx, usage.ID)
		if err != nil {
			return err
		}
		current, ok := CurrentStep(steps)
		if !ok {
			return fmt.Errorf("%w: usage %s has no open step", ErrApprovalNotPending, usage.ID)
		}
		if current.ApproverID != approverID {
			// Deciding one's own step a second time is not a seat mismatch.
			for _, step := range steps {
				if step.ApproverID == approverID && step.IsDecided() {
					return fmt.Errorf("%w: step %d already %s", ErrApprovalNotPending, step.Sequence, step.Decision)
				}
			}
			return fmt.Errorf("%w: step %d belongs to %s", ErrNotCurrentApprover, current.Sequence, current.ApproverID)
		}

		now := s.clock.Now()
		if err := repo.DecideApprovalStep(ctx, current.ID, decision, now); err != nil {
			return err
		}

		switch {
		case decision == DecisionRejected:
			if err := usage.transition(UsageRejected, now); err != nil {
				return err
			}
			if err := s.transitionBackingGrant(ctx, repo, usage, GrantRejected); err != nil {
				return err
			}
		case IsLastStep(steps, current):
			if err := s.transitionBackingGrant(ctx, repo, usage, GrantActive); err != nil {
				return err
			}
			if err := usage.transition(UsageActive, now); err != nil {
				return err
			}
			if _, err := allocate(ctx, repo, usage, s.newID, now); err != nil {
				return err
			}
		default:
			return nil
		}
		return repo.UpdateUsage(ctx, usage)
	})
	if err != nil {
		l.Warn("decision refused", zap.Error(err))
		return nil, err
	}

	l.Info("approval decided", zap.String("decision", string(decision)), zap.String("usage_status", string(usage.Status)))
	return usage, nil
}

// CancelUsage cancels a pending or active usage. An active usage's
// deductions are reversed in the same transaction.
func (s *Service) CancelUsage(ctx context.Context, usageID UsageID) error {
	l := s.logger.With(zap.String("usage_id", string(usageID)))

	owner, err := s.usageOwner(ctx, usageID)
	if err != nil {
		return err
	}
	unlock := s.locks.lock(owner)
	defer unlock()

	var reversed []DeductionRecord
	err = s.store.WithTx(ctx, func(repo Repository) error {
		usage, err := repo.GetUsage(ctx, usageID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		wasActive := usage.Status == UsageActive
		if err := usage.transition(UsageCancelled, now); err != nil {
			return err
		}
		if wasActive {
			if reversed, err = reverse(ctx, repo, usage.ID, s.today(), now); err != nil {
				return err
			}
		}
		if err := s.revokeBackingGrant(ctx, repo, usage); err != nil {
			return err
		}
		return repo.UpdateUsage(ctx, usage)
	})
	if err != nil {
		l.Warn("cancel refused", zap.Error(err))
		return err
	}
	l.Info("usage cancelled", zap.Int("deductions_reversed", len(reversed)))
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) usageAmount(in UsageInput) (Amount, error) {
	if in.Amount.IsNegative() {
		return Amount{}, fmt.Errorf("%w: %s", ErrInvalidAmount, in.Amount)
	}
	if in.Amount.IsPositive() {
		if in.Amount.Unit == "" {
			in.Amount.Unit = UnitDays
		}
		return in.Amount, nil
	}
	n := in.Window.Workdays(s.calendar)
	if n == 0 {
		return Amount{}, fmt.Errorf("%w: %s contains no working days", ErrInvalidAmount, in.Window)
	}
	return Days(float64(n)), nil
}

func (s *Service) usageOwner(ctx context.Context, id UsageID) (OwnerID, error) {
	var owner OwnerID
	err := s.store.View(ctx, func(repo Repository) error {
		u, err := repo.GetUsage(ctx, id)
		if err != nil {
			return err
		}
		owner = u.OwnerID
		return nil
	})
	return owner, err
}

func (s *Service) backingGrant(u *UsageRequest, p *Policy, gated bool) *Grant {
	status := GrantActive
	if gated {
		status = GrantPending
	}
	requested := u.Window
	return &Grant{
		ID:              GrantID(s.newID()),
		OwnerID:         u.OwnerID,
		LeaveType:       u.LeaveType,
		PolicyID:        p.ID,
		Total:           u.Amount,
		Remaining:       u.Amount,
		Window:          u.Window,
		Status:          status,
		RequestedWindow: &requested,
		Reason:          u.Reason,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.CreatedAt,
	}
}

func (s *Service) transitionBackingGrant(ctx context.Context, repo Repository, u *UsageRequest, to GrantStatus) error {
	if u.GrantID == "" {
		return nil
	}
	g, err := repo.GetGrant(ctx, u.GrantID)
	if err != nil {
		return err
	}
	if to == GrantRejected && g.Status == GrantRevoked {
		return nil
	}
	if err := g.transition(to, s.clock.Now()); err != nil {
		return err
	}
	return repo.UpdateGrant(ctx, g)
}

// revokeBackingGrant retires the usage's backing grant unless it already
// reached a terminal status (e.g. EXPIRED).
func (s *Service) revokeBackingGrant(ctx context.Context, repo Repository, u *UsageRequest) error {
	if u.GrantID == "" {
		return nil
	}
	g, err := repo.GetGrant(ctx, u.GrantID)
	if err != nil {
		return err
	}
	if !g.Status.CanTransition(GrantRevoked) {
		return nil
	}
	if err := g.transition(GrantRevoked, s.clock.Now()); err != nil {
		return err
	}
	return repo.UpdateGrant(ctx, g)
}

// resolvePolicy finds the policy governing a usage, or nil when none does.
func resolvePolicy(ctx context.Context, repo Repository, id PolicyID, leaveType LeaveType) (*Policy, error) {
	if id != "" {
		p, err := repo.GetPolicy(ctx, id)
		if err != nil {
			return nil, err
		}
		if leaveType != AnyLeaveType && p.LeaveType != leaveType {
			return nil, fmt.Errorf("%w: policy %s covers %s, not %s", ErrPolicyMethodMismatch, p.ID, p.LeaveType, leaveType)
		}
		return p, nil
	}
	if leaveType == AnyLeaveType {
		return nil, nil
	}
	policies, err := repo.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}
	for i := range policies {
		if policies[i].LeaveType == leaveType {
			return &policies[i], nil
		}
	}
	return nil, nil
}
