package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func activeGrant(id string, remaining float64, from, to string) *Grant {
	return &Grant{
		ID:        GrantID(id),
		OwnerID:   "emp-1",
		LeaveType: "ANNUAL",
		Total:     Days(remaining),
		Remaining: Days(remaining),
		Window:    Window{From: MustParseDate(from), To: MustParseDate(to)},
		Status:    GrantActive,
	}
}

func annualRequest(amount float64, on string) AllocationRequest {
	return AllocationRequest{
		OwnerID:   "emp-1",
		LeaveType: "ANNUAL",
		Amount:    Days(amount),
		UsageDate: MustParseDate(on),
	}
}

// =============================================================================
// PLANNING
// =============================================================================

func TestPlanAllocation_SpansGrantsInExpiryOrder(t *testing.T) {
	// GIVEN: A (2 days, ends June) and B (5 days, ends December)
	// WHEN: Planning 3 days on May 1
	// THEN: 2 from A, then 1 from B

	a := activeGrant("A", 2, "2025-01-01", "2025-06-30")
	b := activeGrant("B", 5, "2025-01-01", "2025-12-31")

	plan := planAllocation([]*Grant{b, a}, annualRequest(3, "2025-05-01"))

	require.True(t, plan.Satisfiable())
	require.Len(t, plan.Draws, 2)
	assert.Equal(t, GrantID("A"), plan.Draws[0].GrantID)
	assert.True(t, plan.Draws[0].Amount.Equal(Days(2)))
	assert.True(t, plan.Draws[0].RemainingAfter.IsZero())
	assert.Equal(t, GrantID("B"), plan.Draws[1].GrantID)
	assert.True(t, plan.Draws[1].Amount.Equal(Days(1)))
	assert.True(t, plan.Draws[1].RemainingAfter.Equal(Days(4)))
}

func TestPlanAllocation_ShortfallLeavesGrantsUntouched(t *testing.T) {
	a := activeGrant("A", 2, "2025-01-01", "2025-06-30")
	b := activeGrant("B", 5, "2025-01-01", "2025-12-31")

	plan := planAllocation([]*Grant{a, b}, annualRequest(8, "2025-05-01"))

	assert.False(t, plan.Satisfiable())
	assert.True(t, plan.Shortfall.Equal(Days(1)))
	assert.True(t, plan.Covered.Equal(Days(7)))
	assert.True(t, a.Remaining.Equal(Days(2)))
	assert.True(t, b.Remaining.Equal(Days(5)))

	var ib *InsufficientBalanceError
	require.ErrorAs(t, plan.insufficient(), &ib)
	assert.ErrorIs(t, ib, ErrInsufficientBalance)
	assert.True(t, ib.Requested.Equal(Days(8)))
}

func TestPlanAllocation_TieOnValidToUsesValidFrom(t *testing.T) {
	late := activeGrant("late", 5, "2025-03-01", "2025-12-31")
	early := activeGrant("early", 5, "2025-01-01", "2025-12-31")

	plan := planAllocation([]*Grant{late, early}, annualRequest(1, "2025-05-01"))

	require.Len(t, plan.Draws, 1)
	assert.Equal(t, GrantID("early"), plan.Draws[0].GrantID)
}

func TestPlanAllocation_SkipsIneligibleGrants(t *testing.T) {
	notYet := activeGrant("future", 5, "2025-06-01", "2025-12-31")
	pending := activeGrant("pending", 5, "2025-01-01", "2025-12-31")
	pending.Status = GrantPending
	deleted := activeGrant("deleted", 5, "2025-01-01", "2025-12-31")
	deleted.Deleted = true
	sick := activeGrant("sick", 5, "2025-01-01", "2025-12-31")
	sick.LeaveType = "SICK"
	hours := activeGrant("hours", 5, "2025-01-01", "2025-12-31")
	hours.Total, hours.Remaining = Hours(5), Hours(5)
	other := activeGrant("other", 5, "2025-01-01", "2025-12-31")
	other.OwnerID = "emp-2"

	plan := planAllocation([]*Grant{notYet, pending, deleted, sick, hours, other}, annualRequest(1, "2025-05-01"))

	assert.Empty(t, plan.Draws)
	assert.False(t, plan.Satisfiable())
}

func TestPlanAllocation_AnyLeaveTypeDrawsAcrossTypes(t *testing.T) {
	sick := activeGrant("sick", 1, "2025-01-01", "2025-05-31")
	sick.LeaveType = "SICK"
	annual := activeGrant("annual", 5, "2025-01-01", "2025-12-31")

	req := annualRequest(2, "2025-05-01")
	req.LeaveType = AnyLeaveType
	plan := planAllocation([]*Grant{annual, sick}, req)

	require.True(t, plan.Satisfiable())
	require.Len(t, plan.Draws, 2)
	assert.Equal(t, GrantID("sick"), plan.Draws[0].GrantID)
}

func TestPlanAllocation_RestrictedToBackingGrant(t *testing.T) {
	pool := activeGrant("pool", 5, "2025-01-01", "2025-06-30")
	backing := activeGrant("backing", 2, "2025-05-01", "2025-05-02")

	req := annualRequest(2, "2025-05-01")
	req.GrantID = "backing"
	plan := planAllocation([]*Grant{pool, backing}, req)

	require.Len(t, plan.Draws, 1)
	assert.Equal(t, GrantID("backing"), plan.Draws[0].GrantID)
}

func TestPlanAllocation_FractionalAmounts(t *testing.T) {
	a := activeGrant("A", 0.5, "2025-01-01", "2025-06-30")
	b := activeGrant("B", 1, "2025-01-01", "2025-12-31")

	plan := planAllocation([]*Grant{a, b}, annualRequest(1.25, "2025-05-01"))

	require.True(t, plan.Satisfiable())
	assert.True(t, plan.Draws[0].Amount.Equal(Days(0.5)))
	assert.True(t, plan.Draws[1].Amount.Equal(Days(0.75)))
}

// =============================================================================
// GRANT STATUS MACHINE
// =============================================================================

func TestGrant_DrawToZeroExhausts(t *testing.T) {
	g := activeGrant("A", 2, "2025-01-01", "2025-06-30")
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, g.draw(Days(2), now))

	assert.Equal(t, GrantExhausted, g.Status)
	assert.True(t, g.Remaining.IsZero())
}

func TestGrant_DrawMoreThanRemainingFails(t *testing.T) {
	g := activeGrant("A", 2, "2025-01-01", "2025-06-30")

	err := g.draw(Days(3), time.Now())

	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.True(t, g.Remaining.Equal(Days(2)))
}

func TestGrant_RestoreReactivatesOrExpires(t *testing.T) {
	now := time.Now()

	open := activeGrant("open", 2, "2025-01-01", "2025-06-30")
	require.NoError(t, open.draw(Days(2), now))
	require.NoError(t, open.restore(Days(2), MustParseDate("2025-06-30"), now))
	assert.Equal(t, GrantActive, open.Status)

	closed := activeGrant("closed", 2, "2025-01-01", "2025-06-30")
	require.NoError(t, closed.draw(Days(2), now))
	require.NoError(t, closed.restore(Days(2), MustParseDate("2025-07-01"), now))
	assert.Equal(t, GrantExpired, closed.Status)
	assert.True(t, closed.Remaining.Equal(Days(2)))
}

func TestGrant_RestoreKeepsTerminalStatus(t *testing.T) {
	now := time.Now()
	for _, status := range []GrantStatus{GrantExpired, GrantRevoked} {
		g := activeGrant("g", 5, "2025-01-01", "2025-06-30")
		require.NoError(t, g.draw(Days(2), now))
		g.Status = status

		require.NoError(t, g.restore(Days(2), MustParseDate("2025-05-01"), now))

		assert.Equal(t, status, g.Status)
		assert.True(t, g.Remaining.Equal(Days(5)))
	}
}

func TestGrant_RestoreBeyondTotalFails(t *testing.T) {
	g := activeGrant("g", 5, "2025-01-01", "2025-06-30")

	err := g.restore(Days(1), MustParseDate("2025-05-01"), time.Now())

	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestGrantStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to GrantStatus
		allowed  bool
	}{
		{GrantPending, GrantActive, true},
		{GrantPending, GrantRejected, true},
		{GrantPending, GrantExhausted, false},
		{GrantActive, GrantExhausted, true},
		{GrantActive, GrantExpired, true},
		{GrantActive, GrantRejected, false},
		{GrantExhausted, GrantActive, true},
		{GrantExhausted, GrantExpired, true},
		{GrantExpired, GrantActive, false},
		{GrantRevoked, GrantActive, false},
		{GrantRejected, GrantActive, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to))
		})
	}

	g := activeGrant("g", 1, "2025-01-01", "2025-06-30")
	err := g.transition(GrantPending, time.Now())
	var te *InvalidTransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "ACTIVE", te.From)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
