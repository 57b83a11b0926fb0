package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/warp/leave-ledger/ledger"
	"github.com/warp/leave-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func date(s string) ledger.Date {
	return ledger.MustParseDate(s)
}

var createdAt = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func annualPolicy() ledger.Policy {
	return ledger.Policy{
		ID:         "annual-yearly",
		Name:       "Annual leave",
		LeaveType:  "ANNUAL",
		Method:     ledger.IssueRepeat,
		Amount:     ledger.Days(15),
		Recurrence: &ledger.Recurrence{Unit: ledger.RecurYear, Interval: 1},
		Expiration: ledger.ExpirationRule{Kind: ledger.ExpireEndOfYear},
		Effective:  ledger.EffectiveRule{Kind: ledger.EffectiveImmediate},
		CreatedAt:  createdAt,
	}
}

func activeGrant(id ledger.GrantID, owner ledger.OwnerID, days float64, from, to string) *ledger.Grant {
	return &ledger.Grant{
		ID:        id,
		OwnerID:   owner,
		LeaveType: "ANNUAL",
		Total:     ledger.Days(days),
		Remaining: ledger.Days(days),
		Window:    ledger.Window{From: date(from), To: date(to)},
		Status:    ledger.GrantActive,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// =============================================================================
// REPOSITORY ROUND TRIPS
// =============================================================================

func TestStore_PolicyRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(repo ledger.Repository) error {
		return repo.SavePolicy(ctx, annualPolicy())
	})
	require.NoError(t, err)

	err = store.View(ctx, func(repo ledger.Repository) error {
		p, err := repo.GetPolicy(ctx, "annual-yearly")
		require.NoError(t, err)
		assert.Equal(t, ledger.IssueRepeat, p.Method)
		assert.True(t, p.Amount.Equal(ledger.Days(15)))
		require.NotNil(t, p.Recurrence)
		assert.Equal(t, ledger.RecurYear, p.Recurrence.Unit)
		assert.Equal(t, 1, p.Recurrence.Interval)
		assert.Equal(t, ledger.ExpireEndOfYear, p.Expiration.Kind)
		assert.True(t, p.CreatedAt.Equal(createdAt))

		_, err = repo.GetPolicy(ctx, "missing")
		assert.ErrorIs(t, err, ledger.ErrPolicyNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_GrantVersionCheck(t *testing.T) {
	// GIVEN: A stored grant read twice
	// WHEN: Both copies are updated
	// THEN: The second update is a concurrent modification

	store := newStore(t)
	ctx := context.Background()

	g := activeGrant("g1", "emp-1", 5, "2025-01-01", "2025-12-31")
	require.NoError(t, store.WithTx(ctx, func(repo ledger.Repository) error {
		return repo.InsertGrant(ctx, g)
	}))
	assert.Equal(t, int64(1), g.Version)

	var first, second *ledger.Grant
	require.NoError(t, store.View(ctx, func(repo ledger.Repository) error {
		var err error
		if first, err = repo.GetGrant(ctx, "g1"); err != nil {
			return err
		}
		second, err = repo.GetGrant(ctx, "g1")
		return err
	}))

	first.Remaining = ledger.Days(3)
	require.NoError(t, store.WithTx(ctx, func(repo ledger.Repository) error {
		return repo.UpdateGrant(ctx, first)
	}))
	assert.Equal(t, int64(2), first.Version)

	second.Remaining = ledger.Days(1)
	err := store.WithTx(ctx, func(repo ledger.Repository) error {
		return repo.UpdateGrant(ctx, second)
	})
	assert.ErrorIs(t, err, ledger.ErrConcurrentModification)

	missing := activeGrant("nope", "emp-1", 1, "2025-01-01", "2025-12-31")
	err = store.WithTx(ctx, func(repo ledger.Repository) error {
		return repo.UpdateGrant(ctx, missing)
	})
	assert.ErrorIs(t, err, ledger.ErrGrantNotFound)
}

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(repo ledger.Repository) error {
		if err := repo.InsertGrant(ctx, activeGrant("g1", "emp-1", 5, "2025-01-01", "2025-12-31")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = store.View(ctx, func(repo ledger.Repository) error {
		_, err := repo.GetGrant(ctx, "g1")
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrGrantNotFound)
}

func TestStore_ListGrantsSkipsDeletedAndFiltersActiveEndingBefore(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	deleted := activeGrant("g-deleted", "emp-1", 1, "2025-01-01", "2025-12-31")
	deleted.Deleted = true
	exhausted := activeGrant("g-exhausted", "emp-1", 1, "2024-01-01", "2024-12-31")
	exhausted.Status = ledger.GrantExhausted
	exhausted.Remaining = ledger.Days(0)

	require.NoError(t, store.WithTx(ctx, func(repo ledger.Repository) error {
		for _, g := range []*ledger.Grant{
			activeGrant("g-old", "emp-1", 2, "2024-01-01", "2024-12-31"),
			activeGrant("g-new", "emp-1", 2, "2025-01-01", "2025-12-31"),
			activeGrant("g-other", "emp-2", 2, "2024-01-01", "2024-06-30"),
			deleted,
			exhausted,
		} {
			if err := repo.InsertGrant(ctx, g); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, store.View(ctx, func(repo ledger.Repository) error {
		grants, err := repo.ListGrantsByOwner(ctx, "emp-1")
		require.NoError(t, err)
		ids := make([]ledger.GrantID, 0, len(grants))
		for _, g := range grants {
			ids = append(ids, g.ID)
		}
		assert.ElementsMatch(t, []ledger.GrantID{"g-old", "g-new", "g-exhausted"}, ids)

		expiring, err := repo.ListActiveGrantsEndingBefore(ctx, date("2025-01-01"))
		require.NoError(t, err)
		ids = ids[:0]
		for _, g := range expiring {
			ids = append(ids, g.ID)
		}
		assert.ElementsMatch(t, []ledger.GrantID{"g-old", "g-other"}, ids)
		return nil
	}))
}

func TestStore_AdvanceAssignmentIsCompareAndSet(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.WithTx(ctx, func(repo ledger.Repository) error {
		if err := repo.SavePolicy(ctx, annualPolicy()); err != nil {
			return err
		}
		return repo.SaveAssignment(ctx, ledger.Assignment{
			ID: "a1", OwnerID: "emp-1", PolicyID: "annual-yearly",
			EffectiveFrom: date("2025-01-01"), CreatedAt: createdAt,
		})
	}))

	advance := func(expected *ledger.Date, next string) error {
		return store.WithTx(ctx, func(repo ledger.Repository) error {
			return repo.AdvanceAssignment(ctx, "a1", expected, date(next))
		})
	}

	require.NoError(t, advance(nil, "2026-01-01"))
	assert.ErrorIs(t, advance(nil, "2026-01-01"), ledger.ErrDuplicateGrantSchedule)

	stale := date("2025-01-01")
	assert.ErrorIs(t, advance(&stale, "2026-01-01"), ledger.ErrDuplicateGrantSchedule)

	current := date("2026-01-01")
	require.NoError(t, advance(&current, "2027-01-01"))

	require.NoError(t, store.View(ctx, func(repo ledger.Repository) error {
		due, err := repo.ListDueAssignments(ctx, date("2026-12-31"))
		require.NoError(t, err)
		assert.Empty(t, due)

		due, err = repo.ListDueAssignments(ctx, date("2027-01-01"))
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, "2027-01-01", due[0].NextGrantDate.String())
		return nil
	}))

	err := store.WithTx(ctx, func(repo ledger.Repository) error {
		return repo.AdvanceAssignment(ctx, "missing", nil, date("2026-01-01"))
	})
	assert.ErrorIs(t, err, ledger.ErrAssignmentNotFound)
}

func TestStore_DecideApprovalStepOnlyOnce(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	usage := &ledger.UsageRequest{
		ID:        "u1",
		OwnerID:   "emp-1",
		LeaveType: "ANNUAL",
		Amount:    ledger.Days(1),
		Window:    ledger.Window{From: date("2025-05-05"), To: date("2025-05-05")},
		Status:    ledger.UsagePendingApproval,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	require.NoError(t, store.WithTx(ctx, func(repo ledger.Repository) error {
		if err := repo.InsertUsage(ctx, usage); err != nil {
			return err
		}
		return repo.InsertApprovalSteps(ctx, []ledger.ApprovalStep{
			{ID: "s1", UsageID: "u1", Sequence: 1, ApproverID: "mgr-1", Decision: ledger.DecisionPending},
			{ID: "s2", UsageID: "u1", Sequence: 2, ApproverID: "mgr-2", Decision: ledger.DecisionPending},
		})
	}))

	decide := func() error {
		return store.WithTx(ctx, func(repo ledger.Repository) error {
			return repo.DecideApprovalStep(ctx, "s1", ledger.DecisionApproved, createdAt)
		})
	}
	require.NoError(t, decide())
	assert.ErrorIs(t, decide(), ledger.ErrApprovalNotPending)

	require.NoError(t, store.View(ctx, func(repo ledger.Repository) error {
		steps, err := repo.ListApprovalSteps(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, steps, 2)
		assert.Equal(t, ledger.DecisionApproved, steps[0].Decision)
		require.NotNil(t, steps[0].DecidedAt)
		assert.Nil(t, steps[1].DecidedAt)

		pending, err := repo.ListPendingStepsByApprover(ctx, "mgr-2")
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, ledger.StepID("s2"), pending[0].ID)
		return nil
	}))
}

// =============================================================================
// SERVICE ON SQLITE
// =============================================================================

func TestStore_ServiceAllocateCancelAndAudit(t *testing.T) {
	// GIVEN: Two grants A (2d, ends 2025-06-30) and B (5d, ends 2025-12-31)
	// WHEN: A 3-day usage is requested, then cancelled
	// THEN: A is exhausted and B has 4 left, then both are fully restored

	store := newStore(t)
	ctx := context.Background()
	clock := ledger.NewFixedClockOn(date("2025-05-01"))
	svc := ledger.NewService(store, store, clock,
		ledger.WithLogger(zaptest.NewLogger(t)), ledger.WithCalendar(store))

	a, err := svc.CreateManualGrant(ctx, ledger.ManualGrantInput{
		OwnerID: "emp-1", LeaveType: "ANNUAL", Amount: ledger.Days(2),
		ValidFrom: date("2025-01-01"), ValidTo: date("2025-06-30"),
	})
	require.NoError(t, err)
	b, err := svc.CreateManualGrant(ctx, ledger.ManualGrantInput{
		OwnerID: "emp-1", LeaveType: "ANNUAL", Amount: ledger.Days(5),
		ValidFrom: date("2025-01-01"), ValidTo: date("2025-12-31"),
	})
	require.NoError(t, err)

	usage, err := svc.RequestUsage(ctx, ledger.UsageInput{
		OwnerID: "emp-1", LeaveType: "ANNUAL", Amount: ledger.Days(3),
		Window: ledger.Window{From: date("2025-05-05"), To: date("2025-05-07")},
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.UsageActive, usage.Status)

	view, err := svc.UsageDetail(ctx, usage.ID)
	require.NoError(t, err)
	require.Len(t, view.Deductions, 2)
	drawn := map[ledger.GrantID]ledger.Amount{}
	for _, d := range view.Deductions {
		drawn[d.GrantID] = d.Amount
	}
	assert.True(t, drawn[a.ID].Equal(ledger.Days(2)))
	assert.True(t, drawn[b.ID].Equal(ledger.Days(1)))
	require.NoError(t, svc.Audit(ctx, "emp-1"))

	require.NoError(t, svc.CancelUsage(ctx, usage.ID))

	grants, err := svc.ListGrants(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, grants, 2)
	for _, g := range grants {
		assert.True(t, g.Remaining.Equal(g.Total), "grant %s restored", g.ID)
		assert.Equal(t, ledger.GrantActive, g.Status)
	}
	require.NoError(t, svc.Audit(ctx, "emp-1"))
}

func TestStore_ServiceApprovalChainFromDirectory(t *testing.T) {
	// GIVEN: emp-1 reports to mgr-1 who reports to mgr-2, and a
	//        2-approval ON_REQUEST policy
	// WHEN: Both managers approve in order
	// THEN: The backing grant is active and fully drawn by the usage

	store := newStore(t)
	ctx := context.Background()
	for _, e := range []sqlite.Employee{
		{ID: "mgr-2", Name: "Director", HireDate: date("2015-01-01")},
		{ID: "mgr-1", Name: "Manager", ManagerID: "mgr-2", HireDate: date("2018-01-01")},
		{ID: "emp-1", Name: "Alice", ManagerID: "mgr-1", HireDate: date("2022-01-01")},
	} {
		require.NoError(t, store.SaveEmployee(ctx, e))
	}

	clock := ledger.NewFixedClockOn(date("2025-05-01"))
	svc := ledger.NewService(store, store, clock, ledger.WithLogger(zaptest.NewLogger(t)))
	_, err := svc.DefinePolicy(ctx, ledger.Policy{
		ID:                    "special",
		LeaveType:             "SPECIAL",
		Method:                ledger.IssueOnRequest,
		ApprovalRequiredCount: 2,
		Expiration:            ledger.ExpirationRule{Kind: ledger.ExpireNever},
	})
	require.NoError(t, err)

	usage, err := svc.RequestUsage(ctx, ledger.UsageInput{
		OwnerID: "emp-1", LeaveType: "SPECIAL", Amount: ledger.Days(2),
		Window: ledger.Window{From: date("2025-05-05"), To: date("2025-05-06")},
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.UsagePendingApproval, usage.Status)

	_, err = svc.DecideApproval(ctx, usage.ID, "mgr-2", ledger.DecisionApproved)
	assert.ErrorIs(t, err, ledger.ErrNotCurrentApprover)

	_, err = svc.DecideApproval(ctx, usage.ID, "mgr-1", ledger.DecisionApproved)
	require.NoError(t, err)
	usage, err = svc.DecideApproval(ctx, usage.ID, "mgr-2", ledger.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, ledger.UsageActive, usage.Status)

	grants, err := svc.ListGrants(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, ledger.GrantExhausted, grants[0].Status)
	require.NoError(t, svc.Audit(ctx, "emp-1"))
}

func TestStore_ServiceScheduleAndSweep(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	clock := ledger.NewFixedClockOn(date("2025-01-01"))
	svc := ledger.NewService(store, store, clock, ledger.WithLogger(zaptest.NewLogger(t)))

	_, err := svc.DefinePolicy(ctx, annualPolicy())
	require.NoError(t, err)
	_, err = svc.AssignPolicy(ctx, ledger.AssignmentInput{
		OwnerID: "emp-1", PolicyID: "annual-yearly", EffectiveFrom: date("2025-01-01"),
	})
	require.NoError(t, err)

	issued, err := svc.RunDailyGrantSchedule(ctx, date("2025-01-01"))
	require.NoError(t, err)
	assert.Equal(t, 1, issued)
	issued, err = svc.RunDailyGrantSchedule(ctx, date("2025-01-01"))
	require.NoError(t, err)
	assert.Equal(t, 0, issued)

	expired, err := svc.RunExpirationSweep(ctx, date("2026-01-01"))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	grants, err := svc.ListGrants(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, ledger.GrantExpired, grants[0].Status)
	assert.True(t, grants[0].Remaining.Equal(ledger.Days(15)))
}

// =============================================================================
// DIRECTORY, HOLIDAYS, RUNS
// =============================================================================

func TestStore_ApproverChain(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployee(ctx, sqlite.Employee{ID: "a", Name: "A", ManagerID: "b", HireDate: date("2020-01-01")}))
	require.NoError(t, store.SaveEmployee(ctx, sqlite.Employee{ID: "b", Name: "B", ManagerID: "a", HireDate: date("2020-01-01")}))
	require.NoError(t, store.SaveEmployee(ctx, sqlite.Employee{ID: "c", Name: "C", ManagerID: "b", HireDate: date("2020-01-01")}))

	chain, err := store.ApproverChain(ctx, "c", 2)
	require.NoError(t, err)
	assert.Equal(t, []ledger.OwnerID{"b", "a"}, chain)

	// a -> b -> a is a cycle, so a has only one distinct approver.
	_, err = store.ApproverChain(ctx, "a", 2)
	assert.ErrorIs(t, err, ledger.ErrApproverChainIncomplete)

	_, err = store.ApproverChain(ctx, "ghost", 1)
	assert.ErrorIs(t, err, ledger.ErrApproverChainIncomplete)

	employees, err := store.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Len(t, employees, 3)
}

func TestStore_IsHoliday(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveHoliday(ctx, ledger.Holiday{ID: "newyear", Date: date("2020-01-01"), Name: "New Year", Recurring: true}))
	require.NoError(t, store.SaveHoliday(ctx, ledger.Holiday{ID: "bridge", Date: date("2025-05-02"), Name: "Bridge day"}))

	assert.True(t, store.IsHoliday(date("2026-01-01")))
	assert.True(t, store.IsHoliday(date("2025-05-02")))
	assert.False(t, store.IsHoliday(date("2026-05-02")))

	w := ledger.Window{From: date("2025-04-28"), To: date("2025-05-04")}
	assert.Equal(t, 4, w.Workdays(store))

	require.NoError(t, store.DeleteHoliday(ctx, "bridge"))
	holidays, err := store.ListHolidays(ctx)
	require.NoError(t, err)
	require.Len(t, holidays, 1)
	assert.Equal(t, "New Year", holidays[0].Name)
}

func TestStore_RunLog(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.StartRun(ctx, sqlite.ScheduleRun{
		ID: "r1", Kind: sqlite.RunGrantSchedule, RunDate: "2025-01-01", StartedAt: createdAt,
	}))
	require.NoError(t, store.StartRun(ctx, sqlite.ScheduleRun{
		ID: "r2", Kind: sqlite.RunExpirationSweep, RunDate: "2025-01-01", StartedAt: createdAt.Add(time.Minute),
	}))
	require.NoError(t, store.FinishRun(ctx, "r1", 3, nil, createdAt.Add(time.Second)))
	require.NoError(t, store.FinishRun(ctx, "r2", 0, errors.New("disk full"), createdAt.Add(2*time.Minute)))
	assert.Error(t, store.FinishRun(ctx, "missing", 0, nil, createdAt))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)
	assert.Equal(t, sqlite.RunFailed, runs[0].Status)
	assert.Equal(t, "disk full", runs[0].Error)
	assert.Equal(t, sqlite.RunSucceeded, runs[1].Status)
	assert.Equal(t, 3, runs[1].Affected)
	require.NotNil(t, runs[1].CompletedAt)
}

// =============================================================================
// FAILURE PATHS (sqlmock)
// =============================================================================

func TestStore_WithTxBeginFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	store := sqlite.NewWithDB(db)
	called := false
	err = store.WithTx(context.Background(), func(ledger.Repository) error {
		called = true
		return nil
	})
	assert.ErrorContains(t, err, "failed to begin transaction")
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithTxRollsBackOnStatementFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO grants").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	store := sqlite.NewWithDB(db)
	err = store.WithTx(context.Background(), func(repo ledger.Repository) error {
		return repo.InsertGrant(context.Background(), activeGrant("g1", "emp-1", 1, "2025-01-01", "2025-12-31"))
	})
	assert.ErrorContains(t, err, "failed to insert grant g1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateGrantZeroRowsIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE grants SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COUNT").WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	store := sqlite.NewWithDB(db)
	g := activeGrant("g1", "emp-1", 1, "2025-01-01", "2025-12-31")
	g.Version = 7
	err = store.WithTx(context.Background(), func(repo ledger.Repository) error {
		return repo.UpdateGrant(context.Background(), g)
	})
	assert.ErrorIs(t, err, ledger.ErrConcurrentModification)
	assert.Equal(t, int64(7), g.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_IsHolidayQueryFailureIsLoggedWorkday(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("no such table: holidays"))

	core, logs := observer.New(zap.ErrorLevel)
	store := sqlite.NewWithDB(db, sqlite.WithLogger(zap.New(core)))
	assert.False(t, store.IsHoliday(date("2025-12-25")))
	assert.NoError(t, mock.ExpectationsWereMet())

	entries := logs.FilterMessage("holiday lookup failed, treating as working day").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "2025-12-25", entries[0].ContextMap()["date"])
}

func TestStore_TimestampsFollowInjectedClock(t *testing.T) {
	// GIVEN: A store whose clock is fixed to 2024-02-03 10:30 UTC
	// WHEN: Records are saved without their own timestamps
	// THEN: created_at is the clock's time, not the wall clock

	stamp := time.Date(2024, 2, 3, 10, 30, 0, 0, time.UTC)
	store, err := sqlite.New(":memory:", sqlite.WithClock(ledger.NewFixedClock(stamp)))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	require.NoError(t, store.SaveEmployee(ctx, sqlite.Employee{ID: "emp-1", Name: "Ada", HireDate: date("2020-01-01")}))
	e, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.True(t, e.CreatedAt.Equal(stamp), "employee created_at = %s", e.CreatedAt)

	policy := annualPolicy()
	policy.CreatedAt = time.Time{}
	err = store.WithTx(ctx, func(repo ledger.Repository) error {
		if err := repo.SavePolicy(ctx, policy); err != nil {
			return err
		}
		return repo.SaveAssignment(ctx, ledger.Assignment{
			ID: "a1", OwnerID: "emp-1", PolicyID: policy.ID, EffectiveFrom: date("2024-01-01"),
		})
	})
	require.NoError(t, err)

	err = store.View(ctx, func(repo ledger.Repository) error {
		p, err := repo.GetPolicy(ctx, policy.ID)
		require.NoError(t, err)
		assert.True(t, p.CreatedAt.Equal(stamp), "policy created_at = %s", p.CreatedAt)

		a, err := repo.GetAssignment(ctx, "a1")
		require.NoError(t, err)
		assert.True(t, a.CreatedAt.Equal(stamp), "assignment created_at = %s", a.CreatedAt)
		return nil
	})
	require.NoError(t, err)
}
