package ledger

import (
	"context"
	"fmt"
)

// Audit re-checks the ledger invariants for one owner against stored data:
//
//	every ACTIVE/EXHAUSTED grant: remaining + deductions = total
//	every grant: 0 <= remaining <= total
//	every ACTIVE usage: deductions = requested amount
//	every other usage: no deductions
//	every approval chain: contiguous, decided in order
//
// It returns a *ConservationError listing all violations, or nil.
func (s *Service) Audit(ctx context.Context, owner OwnerID) error {
	var violations []string
	err := s.store.View(ctx, func(repo Repository) error {
		grants, err := repo.ListGrantsByOwner(ctx, owner)
		if err != nil {
			return err
		}
		for _, g := range grants {
			if g.Remaining.IsNegative() || g.Remaining.GreaterThan(g.Total) {
				violations = append(violations, fmt.Sprintf("grant %s: remaining %s outside [0, %s]", g.ID, g.Remaining, g.Total))
			}
			if !g.Status.HoldsBalance() {
				continue
			}
			deductions, err := repo.ListDeductionsByGrant(ctx, g.ID)
			if err != nil {
				return err
			}
			if sum := g.Remaining.Add(SumDeductions(g.Total.Unit, deductions)); !sum.Equal(g.Total) {
				violations = append(violations, fmt.Sprintf("grant %s: remaining + deducted = %s, total %s", g.ID, sum, g.Total))
			}
		}

		usages, err := repo.ListUsagesByOwner(ctx, owner)
		if err != nil {
			return err
		}
		for _, u := range usages {
			deductions, err := repo.ListDeductionsByUsage(ctx, u.ID)
			if err != nil {
				return err
			}
			sum := SumDeductions(u.Amount.Unit, deductions)
			switch {
			case u.Status == UsageActive && !sum.Equal(u.Amount):
				violations = append(violations, fmt.Sprintf("usage %s: deducted %s, requested %s", u.ID, sum, u.Amount))
			case u.Status != UsageActive && len(deductions) > 0:
				violations = append(violations, fmt.Sprintf("usage %s: %s with %d deductions", u.ID, u.Status, len(deductions)))
			}

			steps, err := repo.ListApprovalSteps(ctx, u.ID)
			if err != nil {
				return err
			}
			if err := ValidateChain(steps); err != nil {
				violations = append(violations, fmt.Sprintf("usage %s: %v", u.ID, err))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return &ConservationError{OwnerID: owner, Violations: violations}
	}
	return nil
}
