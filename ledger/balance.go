/*
balance.go - Read models

PURPOSE:
  Answers "how much leave does this person have?" and the related list
  queries. Every figure is derived from grant status through the same
  predicates the write paths use (Grant.Eligible, GrantStatus); nothing
  here re-derives spendability from raw fields.

BALANCE COMPONENTS (per leave type and unit):
  Granted:   total of grants that ever became spendable (ACTIVE, EXHAUSTED, EXPIRED)
  Available: remaining of ACTIVE grants whose window covers asOf
  Upcoming:  remaining of ACTIVE grants whose window starts after asOf
  Used:      deductions of ACTIVE usages
  Expired:   remaining forfeited by EXPIRED grants
  Pending:   amount of usages awaiting approval
*/
package ledger

import (
	"context"
	"sort"
)

type BalanceLine struct {
	LeaveType LeaveType
	Unit      Unit
	Granted   Amount
	Available Amount
	Upcoming  Amount
	Used      Amount
	Expired   Amount
	Pending   Amount
}

type balanceKey struct {
	leaveType LeaveType
	unit      Unit
}

// Balance summarizes the owner's grants and usages as of a day.
func (s *Service) Balance(ctx context.Context, owner OwnerID, asOf Date) ([]BalanceLine, error) {
	lines := make(map[balanceKey]*BalanceLine)
	line := func(lt LeaveType, unit Unit) *BalanceLine {
		k := balanceKey{lt, unit}
		if b, ok := lines[k]; ok {
			return b
		}
		zero := Amount{Unit: unit}
		b := &BalanceLine{LeaveType: lt, Unit: unit,
			Granted: zero, Available: zero, Upcoming: zero, Used: zero, Expired: zero, Pending: zero}
		lines[k] = b
		return b
	}

	err := s.store.View(ctx, func(repo Repository) error {
		grants, err := repo.ListGrantsByOwner(ctx, owner)
		if err != nil {
			return err
		}
		grantType := make(map[GrantID]LeaveType, len(grants))
		for _, g := range grants {
			grantType[g.ID] = g.LeaveType
			b := line(g.LeaveType, g.Total.Unit)
			switch g.Status {
			case GrantActive:
				b.Granted = b.Granted.Add(g.Total)
				if g.Window.Contains(asOf) {
					b.Available = b.Available.Add(g.Remaining)
				} else if g.Window.From.After(asOf) {
					b.Upcoming = b.Upcoming.Add(g.Remaining)
				}
			case GrantExhausted:
				b.Granted = b.Granted.Add(g.Total)
			case GrantExpired:
				b.Granted = b.Granted.Add(g.Total)
				b.Expired = b.Expired.Add(g.Remaining)
			}
		}

		usages, err := repo.ListUsagesByOwner(ctx, owner)
		if err != nil {
			return err
		}
		for _, u := range usages {
			switch u.Status {
			case UsagePendingApproval:
				b := line(u.LeaveType, u.Amount.Unit)
				b.Pending = b.Pending.Add(u.Amount)
			case UsageActive:
				deductions, err := repo.ListDeductionsByUsage(ctx, u.ID)
				if err != nil {
					return err
				}
				for _, d := range deductions {
					lt, ok := grantType[d.GrantID]
					if !ok {
						lt = u.LeaveType
					}
					b := line(lt, d.Amount.Unit)
					b.Used = b.Used.Add(d.Amount)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := make([]BalanceLine, 0, len(lines))
	for _, b := range lines {
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].LeaveType != result[j].LeaveType {
			return result[i].LeaveType < result[j].LeaveType
		}
		return result[i].Unit < result[j].Unit
	})
	return result, nil
}

// ListGrants returns the owner's grants, soonest to expire first.
func (s *Service) ListGrants(ctx context.Context, owner OwnerID) ([]*Grant, error) {
	var grants []*Grant
	err := s.store.View(ctx, func(repo Repository) error {
		var err error
		grants, err = repo.ListGrantsByOwner(ctx, owner)
		return err
	})
	if err != nil {
		return nil, err
	}
	sortByExpiry(grants)
	return grants, nil
}

// ListUsages returns the owner's usage requests, oldest first.
func (s *Service) ListUsages(ctx context.Context, owner OwnerID) ([]*UsageRequest, error) {
	var usages []*UsageRequest
	err := s.store.View(ctx, func(repo Repository) error {
		var err error
		usages, err = repo.ListUsagesByOwner(ctx, owner)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(usages, func(i, j int) bool { return usages[i].CreatedAt.Before(usages[j].CreatedAt) })
	return usages, nil
}

// UsageView is a usage with its deductions and approval chain.
type UsageView struct {
	Usage       *UsageRequest
	Deductions  []DeductionRecord
	Steps       []ApprovalStep
	CurrentStep *ApprovalStep
}

func (s *Service) UsageDetail(ctx context.Context, id UsageID) (*UsageView, error) {
	view := &UsageView{}
	err := s.store.View(ctx, func(repo Repository) error {
		var err error
		if view.Usage, err = repo.GetUsage(ctx, id); err != nil {
			return err
		}
		if view.Deductions, err = repo.ListDeductionsByUsage(ctx, id); err != nil {
			return err
		}
		if view.Steps, err = repo.ListApprovalSteps(ctx, id); err != nil {
			return err
		}
		view.Steps = sortedSteps(view.Steps)
		if view.Usage.Status == UsagePendingApproval {
			if current, ok := CurrentStep(view.Steps); ok {
				view.CurrentStep = &current
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// PendingApproval is one usage waiting on a given approver.
type PendingApproval struct {
	Usage *UsageRequest
	Step  ApprovalStep
}

// PendingApprovals lists usages whose current step belongs to approver.
func (s *Service) PendingApprovals(ctx context.Context, approver OwnerID) ([]PendingApproval, error) {
	var result []PendingApproval
	err := s.store.View(ctx, func(repo Repository) error {
		steps, err := repo.ListPendingStepsByApprover(ctx, approver)
		if err != nil {
			return err
		}
		for _, step := range steps {
			usage, err := repo.GetUsage(ctx, step.UsageID)
			if err != nil {
				return err
			}
			if usage.Status != UsagePendingApproval {
				continue
			}
			chain, err := repo.ListApprovalSteps(ctx, usage.ID)
			if err != nil {
				return err
			}
			if current, ok := CurrentStep(chain); ok && current.ID == step.ID {
				result = append(result, PendingApproval{Usage: usage, Step: step})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PreviewAllocation returns the plan an allocation would execute, without
// writing anything.
func (s *Service) PreviewAllocation(ctx context.Context, req AllocationRequest) (AllocationPlan, error) {
	if !req.Amount.IsPositive() {
		return AllocationPlan{}, ErrInvalidAmount
	}
	var plan AllocationPlan
	err := s.store.View(ctx, func(repo Repository) error {
		grants, err := repo.ListGrantsByOwner(ctx, req.OwnerID)
		if err != nil {
			return err
		}
		plan = planAllocation(grants, req)
		return nil
	})
	return plan, err
}
