package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// =============================================================================
// SCHEDULE RUNS - Audit of scheduler and sweeper executions
// =============================================================================

type RunKind string

const (
	RunGrantSchedule   RunKind = "GRANT_SCHEDULE"
	RunExpirationSweep RunKind = "EXPIRATION_SWEEP"
)

type RunStatus string

const (
	RunStarted   RunStatus = "STARTED"
	RunSucceeded RunStatus = "SUCCEEDED"
	RunFailed    RunStatus = "FAILED"
)

// ScheduleRun is one execution of a background job for a given date.
type ScheduleRun struct {
	ID          string
	Kind        RunKind
	RunDate     string
	Status      RunStatus
	Affected    int
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// StartRun records the beginning of a run.
func (s *Store) StartRun(ctx context.Context, run ScheduleRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedule_runs (id, kind, run_date, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Kind, run.RunDate, RunStarted, formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("failed to start run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun records the outcome of a run started with StartRun.
func (s *Store) FinishRun(ctx context.Context, id string, affected int, runErr error, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, msg := RunSucceeded, ""
	if runErr != nil {
		status, msg = RunFailed, runErr.Error()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE schedule_runs SET status = ?, affected = ?, error = ?, completed_at = ?
		WHERE id = ?
	`, status, affected, msg, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]ScheduleRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, run_date, status, affected, error, started_at, completed_at
		FROM schedule_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ScheduleRun
	for rows.Next() {
		var (
			run         ScheduleRun
			startedAt   string
			completedAt sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Kind, &run.RunDate, &run.Status, &run.Affected,
			&run.Error, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		run.StartedAt = parseTime(startedAt)
		if completedAt.Valid {
			t := parseTime(completedAt.String)
			run.CompletedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
