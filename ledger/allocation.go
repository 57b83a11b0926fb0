/*
allocation.go - Expiry-first allocation and exact reversal

PURPOSE:
  Converts a requested amount into deductions against an owner's grants,
  or fails without mutating anything.

ALGORITHM:
  1. Candidates: grants where Grant.Eligible(req) holds
  2. Order: validTo ascending, then validFrom ascending (soonest to expire first)
  3. Walk: draw min(remaining, stillNeeded) from each until nothing is needed
  4. Shortfall > 0 after the walk: InsufficientBalance, nothing written
  5. Otherwise: one DeductionRecord per grant touched; drained grants EXHAUSTED

  The plan is computed in full before the first write, so the only way a
  write sequence stops half way is a store failure, which rolls back the
  enclosing transaction.

EXAMPLE:
  A: remaining 2, validTo 2025-06-30
  B: remaining 5, validTo 2025-12-31
  Allocate 3 on 2025-05-01 -> 2 from A (EXHAUSTED), 1 from B (4 left)

SEE ALSO:
  - grant.go: draw/restore and the EXHAUSTED transitions
  - service.go: Locks the owner and opens the transaction
*/
package ledger

import (
	"context"
	"fmt"
	"time"
)

// AllocationRequest describes one draw against an owner's balance.
type AllocationRequest struct {
	OwnerID   OwnerID
	LeaveType LeaveType // AnyLeaveType draws across all types
	Amount    Amount
	UsageDate Date

	// GrantID restricts the draw to a single backing grant.
	GrantID GrantID
}

// Draw is one planned deduction from one grant.
type Draw struct {
	GrantID        GrantID
	Amount         Amount
	RemainingAfter Amount
}

// AllocationPlan is what Allocate would do for a request.
type AllocationPlan struct {
	Request   AllocationRequest
	Draws     []Draw
	Covered   Amount
	Shortfall Amount
}

// Satisfiable reports whether the plan covers the full request.
func (p AllocationPlan) Satisfiable() bool {
	return p.Shortfall.IsZero()
}

func (p AllocationPlan) insufficient() error {
	return &InsufficientBalanceError{
		OwnerID:   p.Request.OwnerID,
		LeaveType: p.Request.LeaveType,
		Available: p.Covered,
		Requested: p.Request.Amount,
		Shortfall: p.Shortfall,
	}
}

// planAllocation filters and orders grants, then walks them. It never
// mutates the grants it is given.
func planAllocation(grants []*Grant, req AllocationRequest) AllocationPlan {
	candidates := make([]*Grant, 0, len(grants))
	for _, g := range grants {
		if g.Eligible(req) {
			candidates = append(candidates, g)
		}
	}
	sortByExpiry(candidates)

	plan := AllocationPlan{Request: req, Covered: req.Amount.Zero()}
	needed := req.Amount
	for _, g := range candidates {
		if !needed.IsPositive() {
			break
		}
		take := g.Remaining.Min(needed)
		plan.Draws = append(plan.Draws, Draw{
			GrantID:        g.ID,
			Amount:         take,
			RemainingAfter: g.Remaining.Sub(take),
		})
		plan.Covered = plan.Covered.Add(take)
		needed = needed.Sub(take)
	}
	plan.Shortfall = needed
	return plan
}

// allocate draws usage.Amount from the owner's grants and records the
// deductions. Must run inside a transaction with the owner locked.
func allocate(ctx context.Context, repo Repository, usage *UsageRequest, newID func() string, at time.Time) ([]DeductionRecord, error) {
	if !usage.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, usage.Amount)
	}

	grants, err := repo.ListGrantsByOwner(ctx, usage.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load grants: %w", err)
	}
	byID := make(map[GrantID]*Grant, len(grants))
	for _, g := range grants {
		byID[g.ID] = g
	}

	plan := planAllocation(grants, allocationRequestFor(usage))
	if !plan.Satisfiable() {
		return nil, plan.insufficient()
	}

	deductions := make([]DeductionRecord, 0, len(plan.Draws))
	for _, d := range plan.Draws {
		g := byID[d.GrantID]
		if err := g.draw(d.Amount, at); err != nil {
			return nil, err
		}
		if err := repo.UpdateGrant(ctx, g); err != nil {
			return nil, fmt.Errorf("failed to update grant %s: %w", g.ID, err)
		}
		deductions = append(deductions, DeductionRecord{
			ID:        DeductionID(newID()),
			UsageID:   usage.ID,
			GrantID:   g.ID,
			Amount:    d.Amount,
			CreatedAt: at,
		})
	}
	if err := repo.InsertDeductions(ctx, deductions); err != nil {
		return nil, fmt.Errorf("failed to record deductions: %w", err)
	}
	return deductions, nil
}

// reverse restores every deduction of the usage to its grant and deletes
// the deductions. Must run inside the same transaction as the usage's
// transition to CANCELLED.
func reverse(ctx context.Context, repo Repository, usageID UsageID, today Date, at time.Time) ([]DeductionRecord, error) {
	deductions, err := repo.ListDeductionsByUsage(ctx, usageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load deductions: %w", err)
	}
	for _, d := range deductions {
		g, err := repo.GetGrant(ctx, d.GrantID)
		if err != nil {
			return nil, err
		}
		if err := g.restore(d.Amount, today, at); err != nil {
			return nil, err
		}
		if err := repo.UpdateGrant(ctx, g); err != nil {
			return nil, fmt.Errorf("failed to update grant %s: %w", g.ID, err)
		}
	}
	if err := repo.DeleteDeductionsByUsage(ctx, usageID); err != nil {
		return nil, fmt.Errorf("failed to delete deductions: %w", err)
	}
	return deductions, nil
}

// allocationRequestFor builds the draw for a usage. A usage with a backing
// grant draws only from that grant.
func allocationRequestFor(u *UsageRequest) AllocationRequest {
	return AllocationRequest{
		OwnerID:   u.OwnerID,
		LeaveType: u.LeaveType,
		Amount:    u.Amount,
		UsageDate: u.UsageDate(),
		GrantID:   u.GrantID,
	}
}
