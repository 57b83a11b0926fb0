/*
Package sqlite provides a SQLite-backed ledger.Store.

PURPOSE:
  Implements ledger.Store (and through it ledger.Repository) on SQLite,
  together with the collaborators the ledger consumes from outside:
  the approver Directory (employees with manager links), the holiday
  calendar, and the scheduler run log.

KEY TABLES:
  policies:        Issuance policies (one row per policy, flat columns)
  assignments:     Owner-to-policy links with the nextGrantDate cursor
  grants:          Grant records; never physically deleted
  usages:          Usage requests
  deductions:      Usage-to-grant draws; deleted on reversal
  approval_steps:  Approval chains, UNIQUE(usage_id, sequence)
  employees:       Directory entries with manager_id
  holidays:        Fixed and recurring holidays
  schedule_runs:   Audit of schedule/sweep executions

STORAGE FORMATS:
  Dates (validity windows, cursors) are TEXT "YYYY-MM-DD" so range
  predicates compare lexicographically. Amounts are TEXT decimals.
  Timestamps are fixed-width UTC TEXT.

CONCURRENCY:
  sync.RWMutex around units of work: WithTx takes the write lock, View the
  read lock. The pool is capped at one connection so ":memory:" databases
  are shared by every statement. Optimistic version columns on grants and
  usages, the nextGrantDate compare-and-set and the PENDING guard on
  approval steps make each write safe even without the mutex.

USAGE:
  store, err := sqlite.New("./data/ledger.db", sqlite.WithLogger(logger))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := ledger.NewService(store, store, ledger.SystemClock{}, ledger.WithCalendar(store))

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/warp/leave-ledger/ledger"
)

// Store implements ledger.Store, ledger.Directory and ledger.HolidayCalendar.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	clock  ledger.Clock
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for created_at/updated_at stamps.
func WithClock(c ledger.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the store's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := NewWithDB(db, opts...)
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// NewWithDB wraps an already opened database without migrating it.
func NewWithDB(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, clock: ledger.SystemClock{}, logger: zap.L()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Reset deletes all ledger data, children first. Holidays are kept.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"approval_steps", "deductions", "usages", "grants", "assignments", "policies", "employees", "schedule_runs"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS policies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		leave_type TEXT NOT NULL,
		method TEXT NOT NULL,
		amount_value TEXT NOT NULL DEFAULT '0',
		amount_unit TEXT NOT NULL DEFAULT 'days',
		approval_required_count INTEGER NOT NULL DEFAULT 0,
		recurrence_unit TEXT,
		recurrence_interval INTEGER,
		expiration_kind TEXT NOT NULL,
		expiration_n INTEGER NOT NULL DEFAULT 0,
		effective_kind TEXT NOT NULL DEFAULT 'IMMEDIATE',
		effective_delay_days INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_policies_leave_type ON policies(leave_type);

	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		policy_id TEXT NOT NULL REFERENCES policies(id),
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		next_grant_date TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(owner_id, policy_id)
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_next_grant ON assignments(next_grant_date);

	CREATE TABLE IF NOT EXISTS grants (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		policy_id TEXT REFERENCES policies(id),
		total_value TEXT NOT NULL,
		remaining_value TEXT NOT NULL,
		unit TEXT NOT NULL,
		valid_from TEXT NOT NULL,
		valid_to TEXT NOT NULL,
		status TEXT NOT NULL,
		requested_from TEXT,
		requested_to TEXT,
		reason TEXT NOT NULL DEFAULT '',
		deleted BOOLEAN NOT NULL DEFAULT FALSE,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (valid_to >= valid_from)
	);

	CREATE INDEX IF NOT EXISTS idx_grants_owner ON grants(owner_id, valid_to, valid_from);
	CREATE INDEX IF NOT EXISTS idx_grants_status_valid_to ON grants(status, valid_to);
	CREATE INDEX IF NOT EXISTS idx_grants_policy ON grants(policy_id) WHERE policy_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS usages (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		leave_type TEXT NOT NULL DEFAULT '',
		policy_id TEXT REFERENCES policies(id),
		amount_value TEXT NOT NULL,
		unit TEXT NOT NULL,
		window_from TEXT NOT NULL,
		window_to TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		grant_id TEXT REFERENCES grants(id),
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_usages_owner ON usages(owner_id, created_at);

	CREATE TABLE IF NOT EXISTS deductions (
		id TEXT PRIMARY KEY,
		usage_id TEXT NOT NULL REFERENCES usages(id),
		grant_id TEXT NOT NULL REFERENCES grants(id),
		amount_value TEXT NOT NULL,
		unit TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deductions_usage ON deductions(usage_id);
	CREATE INDEX IF NOT EXISTS idx_deductions_grant ON deductions(grant_id);

	CREATE TABLE IF NOT EXISTS approval_steps (
		id TEXT PRIMARY KEY,
		usage_id TEXT NOT NULL REFERENCES usages(id),
		grant_id TEXT,
		sequence INTEGER NOT NULL,
		approver_id TEXT NOT NULL,
		decision TEXT NOT NULL DEFAULT 'PENDING',
		decided_at TEXT,
		UNIQUE(usage_id, sequence)
	);

	CREATE INDEX IF NOT EXISTS idx_approval_steps_approver ON approval_steps(approver_id, decision);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		manager_id TEXT,
		hire_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique ON holidays(date, name);

	CREATE TABLE IF NOT EXISTS schedule_runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		run_date TEXT NOT NULL,
		status TEXT NOT NULL,
		affected INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_schedule_runs_started ON schedule_runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// UNITS OF WORK (ledger.Store)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&repo{q: sqlTx, now: s.clock.Now}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// View runs fn against the database under the read lock.
func (s *Store) View(ctx context.Context, fn func(ledger.Repository) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&repo{q: s.db, now: s.clock.Now})
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// HELPERS
// =============================================================================

const (
	dateLayout = "2006-01-02"
	// Fixed width so ORDER BY created_at sorts chronologically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func formatDate(d ledger.Date) string {
	return d.Time.Format(dateLayout)
}

func parseDate(s string) (ledger.Date, error) {
	return ledger.ParseDate(s)
}

func nullDate(d *ledger.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(*d), Valid: true}
}

func datePtr(ns sql.NullString) (*ledger.Date, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := parseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseAmount(value, unit string) (ledger.Amount, error) {
	return ledger.ParseAmount(value, ledger.Unit(unit))
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
