package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// RunExpirationSweep moves every ACTIVE grant with validTo < now to EXPIRED
// and returns how many moved. EXHAUSTED grants are left alone and
// remaining is never touched.
func (s *Service) RunExpirationSweep(ctx context.Context, now Date) (int, error) {
	l := s.logger.With(zap.String("now", now.String()))

	var candidates []*Grant
	err := s.store.View(ctx, func(repo Repository) error {
		var err error
		candidates, err = repo.ListActiveGrantsEndingBefore(ctx, now)
		return err
	})
	if err != nil {
		l.Error("failed to load expiring grants", zap.Error(err))
		return 0, fmt.Errorf("failed to load expiring grants: %w", err)
	}

	expired := 0
	var errs []error
	for _, c := range candidates {
		ok, err := s.expireGrant(ctx, c.OwnerID, c.ID, now)
		if err != nil {
			l.Error("failed to expire grant", zap.String("grant_id", string(c.ID)), zap.Error(err))
			errs = append(errs, fmt.Errorf("grant %s: %w", c.ID, err))
			continue
		}
		if ok {
			expired++
		}
	}

	l.Info("expiration sweep finished", zap.Int("expired", expired), zap.Int("failed", len(errs)))
	return expired, errors.Join(errs...)
}

func (s *Service) expireGrant(ctx context.Context, owner OwnerID, id GrantID, now Date) (bool, error) {
	unlock := s.locks.lock(owner)
	defer unlock()

	expired := false
	err := s.store.WithTx(ctx, func(repo Repository) error {
		g, err := repo.GetGrant(ctx, id)
		if err != nil {
			return err
		}
		// Re-check: an allocation may have exhausted it since the scan.
		if g.Status != GrantActive || !g.Window.ClosedBy(now) {
			return nil
		}
		if err := g.transition(GrantExpired, s.clock.Now()); err != nil {
			return err
		}
		expired = true
		return repo.UpdateGrant(ctx, g)
	})
	return expired, err
}
