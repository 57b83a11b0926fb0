/*
scheduler.go - Scheduled (REPEAT) grant issuance

PURPOSE:
  RunDailyGrantSchedule(today) issues one ACTIVE grant for every
  (owner, REPEAT policy) assignment whose nextGrantDate is null or on/before
  today, then advances nextGrantDate by the policy's recurrence.

IDEMPOTENCE:
  The due check, the grant insert and the nextGrantDate advance happen in
  one transaction. The advance is a compare-and-set against the date read
  at the start of that transaction, so a concurrent run that already moved
  the cursor makes ours roll back with ErrDuplicateGrantSchedule, which is
  treated as a skip. Running twice for the same day issues nothing new.

CATCH-UP:
  A cursor several periods behind issues one grant per missed period in
  the same run, each in its own transaction. Grants whose window already
  closed are issued ACTIVE and left for the expiration sweep.

FAILURES:
  One pair failing does not stop the others. Failures are logged and
  joined into the returned error; the next run catches up.
*/
package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// maxCatchUp bounds issuance per assignment per run.
const maxCatchUp = 400

// RunDailyGrantSchedule issues due REPEAT grants and returns how many were issued.
func (s *Service) RunDailyGrantSchedule(ctx context.Context, today Date) (int, error) {
	l := s.logger.With(zap.String("today", today.String()))
	l.Debug("grant schedule started")

	var due []Assignment
	policies := make(map[PolicyID]Policy)
	err := s.store.View(ctx, func(repo Repository) error {
		var err error
		if due, err = repo.ListDueAssignments(ctx, today); err != nil {
			return err
		}
		all, err := repo.ListPolicies(ctx)
		if err != nil {
			return err
		}
		for _, p := range all {
			policies[p.ID] = p
		}
		return nil
	})
	if err != nil {
		l.Error("failed to load due assignments", zap.Error(err))
		return 0, fmt.Errorf("failed to load due assignments: %w", err)
	}

	issued := 0
	var errs []error
	for _, a := range due {
		p, ok := policies[a.PolicyID]
		if !ok || p.Method != IssueRepeat {
			continue
		}
		for i := 0; i < maxCatchUp; i++ {
			grant, err := s.issueScheduledGrant(ctx, a.ID, today)
			if errors.Is(err, ErrDuplicateGrantSchedule) {
				l.Debug("schedule already advanced", zap.String("assignment_id", string(a.ID)))
				break
			}
			if err != nil {
				l.Error("scheduled issuance failed",
					zap.String("assignment_id", string(a.ID)),
					zap.String("owner_id", string(a.OwnerID)),
					zap.Error(err))
				errs = append(errs, fmt.Errorf("assignment %s: %w", a.ID, err))
				break
			}
			if grant == nil {
				break
			}
			issued++
		}
	}

	l.Info("grant schedule finished", zap.Int("issued", issued), zap.Int("failed", len(errs)))
	return issued, errors.Join(errs...)
}

// issueScheduledGrant issues at most one grant for the assignment. It
// returns nil, nil when the assignment is not due.
func (s *Service) issueScheduledGrant(ctx context.Context, id AssignmentID, today Date) (*Grant, error) {
	var owner OwnerID
	err := s.store.View(ctx, func(repo Repository) error {
		a, err := repo.GetAssignment(ctx, id)
		if err != nil {
			return err
		}
		owner = a.OwnerID
		return nil
	})
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(owner)
	defer unlock()

	var grant *Grant
	err = s.store.WithTx(ctx, func(repo Repository) error {
		a, err := repo.GetAssignment(ctx, id)
		if err != nil {
			return err
		}
		issueDate, due := a.DueOn(today)
		if !due {
			return nil
		}
		policy, err := repo.GetPolicy(ctx, a.PolicyID)
		if err != nil {
			return err
		}
		if policy.Recurrence == nil {
			return fmt.Errorf("%w: %s has no recurrence", ErrInvalidPolicy, policy.ID)
		}

		now := s.clock.Now()
		g := &Grant{
			ID:        GrantID(s.newID()),
			OwnerID:   a.OwnerID,
			LeaveType: policy.LeaveType,
			PolicyID:  policy.ID,
			Total:     policy.Amount,
			Remaining: policy.Amount,
			Window:    policy.IssueWindow(issueDate),
			Status:    GrantActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.InsertGrant(ctx, g); err != nil {
			return err
		}
		if err := repo.AdvanceAssignment(ctx, a.ID, a.NextGrantDate, policy.Recurrence.Next(issueDate)); err != nil {
			return err
		}
		grant = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	if grant != nil {
		s.logger.Info("scheduled grant issued",
			zap.String("grant_id", string(grant.ID)),
			zap.String("owner_id", string(grant.OwnerID)),
			zap.String("policy_id", string(grant.PolicyID)),
			zap.String("window", grant.Window.String()))
	}
	return grant, nil
}
