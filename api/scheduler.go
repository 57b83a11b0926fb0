/*
scheduler.go - Background grant schedule and expiration sweep

PURPOSE:
  Periodically runs the two daily jobs against "today":
    1. RunDailyGrantSchedule - issue due REPEAT grants
    2. RunExpirationSweep    - expire grants whose window has closed

  Both are idempotent for a given day, so ticking more often than daily
  is harmless: reruns report zero affected rows.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start
  - Records every job in schedule_runs for audit and the admin API
  - One job at a time: manual triggers and ticks share runMu

USAGE:
  s := NewGrantScheduler(svc, store, metrics, clock, logger)
  s.Start()
  // ... later
  s.Stop()

SEE ALSO:
  - ledger/scheduler.go: RunDailyGrantSchedule
  - ledger/sweeper.go: RunExpirationSweep
  - handlers.go: TriggerSchedule / TriggerSweep endpoints
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/leave-ledger/ledger"
	"github.com/warp/leave-ledger/store/sqlite"
)

// GrantScheduler drives the daily ledger jobs.
type GrantScheduler struct {
	Service       *ledger.Service
	Store         *sqlite.Store
	Metrics       *Metrics
	Clock         ledger.Clock
	CheckInterval time.Duration
	Enabled       bool

	logger *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	runMu  sync.Mutex
}

// NewGrantScheduler creates a scheduler with a one hour check interval.
func NewGrantScheduler(svc *ledger.Service, store *sqlite.Store, metrics *Metrics, clock ledger.Clock, logger *zap.Logger) *GrantScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &GrantScheduler{
		Service:       svc,
		Store:         store,
		Metrics:       metrics,
		Clock:         clock,
		CheckInterval: time.Hour,
		Enabled:       true,
		logger:        logger.Named("scheduler"),
	}
}

// Start begins the scheduler.
func (s *GrantScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.logger.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run()

	s.logger.Info("started", zap.Duration("interval", s.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (s *GrantScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.logger.Info("stopped")
}

func (s *GrantScheduler) run() {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	// Run immediately on start
	s.tick(ctx)

	for {
		select {
		case <-s.ticker.C:
			s.tick(ctx)
		case <-s.stop:
			return
		}
	}
}

func (s *GrantScheduler) tick(ctx context.Context) {
	if _, err := s.RunDaily(ctx, ledger.Today(s.Clock)); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("daily run failed", zap.Error(err))
	}
}

// DailyResult reports both jobs of one daily run.
type DailyResult struct {
	Issued  int
	Expired int
}

// RunDaily runs the grant schedule and then the expiration sweep for day.
// The sweep runs even when the schedule fails; both errors are returned.
func (s *GrantScheduler) RunDaily(ctx context.Context, day ledger.Date) (DailyResult, error) {
	issued, scheduleErr := s.RunSchedule(ctx, day)
	expired, sweepErr := s.RunSweep(ctx, day)
	return DailyResult{Issued: issued, Expired: expired}, errors.Join(scheduleErr, sweepErr)
}

// RunSchedule issues every REPEAT grant due on or before day.
func (s *GrantScheduler) RunSchedule(ctx context.Context, day ledger.Date) (int, error) {
	n, err := s.runJob(ctx, sqlite.RunGrantSchedule, day, s.Service.RunDailyGrantSchedule)
	s.Metrics.RecordGrantIssued("schedule", n)
	return n, err
}

// RunSweep expires every ACTIVE grant whose window closed before day.
func (s *GrantScheduler) RunSweep(ctx context.Context, day ledger.Date) (int, error) {
	n, err := s.runJob(ctx, sqlite.RunExpirationSweep, day, s.Service.RunExpirationSweep)
	s.Metrics.RecordGrantsExpired(n)
	return n, err
}

func (s *GrantScheduler) runJob(ctx context.Context, kind sqlite.RunKind, day ledger.Date, job func(context.Context, ledger.Date) (int, error)) (int, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	l := s.logger.With(zap.String("kind", string(kind)), zap.String("date", day.String()))
	run := sqlite.ScheduleRun{
		ID:        uuid.NewString(),
		Kind:      kind,
		RunDate:   day.String(),
		StartedAt: s.Clock.Now(),
	}
	if err := s.Store.StartRun(ctx, run); err != nil {
		return 0, err
	}

	start := time.Now()
	affected, jobErr := job(ctx, day)
	s.Metrics.RecordJob(string(kind), jobErr, time.Since(start))

	if err := s.Store.FinishRun(ctx, run.ID, affected, jobErr, s.Clock.Now()); err != nil {
		l.Warn("failed to record run outcome", zap.Error(err))
	}
	if jobErr != nil {
		l.Error("job failed", zap.Int("affected", affected), zap.Error(jobErr))
		return affected, jobErr
	}
	l.Info("job completed", zap.Int("affected", affected), zap.Duration("took", time.Since(start)))
	return affected, nil
}
