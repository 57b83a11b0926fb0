/*
grant.go - Grant records and their status machine

PURPOSE:
  A Grant is one issuance of leave to one owner. It carries its own
  validity window and remaining amount. Status changes only through
  Grant.transition, which consults grantTransitions; no other code infers
  spendability from raw field combinations.

STATUS MACHINE:
  PENDING   ──▶ ACTIVE | REJECTED | REVOKED
  ACTIVE    ──▶ EXHAUSTED | EXPIRED | REVOKED
  EXHAUSTED ──▶ ACTIVE (reversal, window open) | EXPIRED (reversal, window closed) | REVOKED
  EXPIRED, REVOKED, REJECTED are terminal.

DELETED FLAG:
  Deleted marks an out-of-band data-entry correction. It is orthogonal to
  Status and never expresses a lifecycle transition. Deleted grants are
  invisible to allocation and balances.

SEE ALSO:
  - allocation.go: The only code that changes Remaining (draw/restore)
  - sweeper.go: ACTIVE -> EXPIRED
*/
package ledger

import (
	"fmt"
	"sort"
	"time"
)

// GrantStatus is the lifecycle state of a grant.
type GrantStatus string

const (
	GrantPending   GrantStatus = "PENDING"
	GrantActive    GrantStatus = "ACTIVE"
	GrantExhausted GrantStatus = "EXHAUSTED"
	GrantExpired   GrantStatus = "EXPIRED"
	GrantRevoked   GrantStatus = "REVOKED"
	GrantRejected  GrantStatus = "REJECTED"
)

var grantTransitions = map[GrantStatus][]GrantStatus{
	GrantPending:   {GrantActive, GrantRejected, GrantRevoked},
	GrantActive:    {GrantExhausted, GrantExpired, GrantRevoked},
	GrantExhausted: {GrantActive, GrantExpired, GrantRevoked},
}

// CanTransition reports whether the grant status machine allows from -> to.
func (s GrantStatus) CanTransition(to GrantStatus) bool {
	for _, allowed := range grantTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s GrantStatus) IsTerminal() bool {
	return len(grantTransitions[s]) == 0
}

// Valid reports whether s is a known status.
func (s GrantStatus) Valid() bool {
	switch s {
	case GrantPending, GrantActive, GrantExhausted, GrantExpired, GrantRevoked, GrantRejected:
		return true
	}
	return false
}

// HoldsBalance reports whether deductions against a grant in this status
// count toward conservation.
func (s GrantStatus) HoldsBalance() bool {
	return s == GrantActive || s == GrantExhausted
}

// =============================================================================
// GRANT
// =============================================================================

type Grant struct {
	ID        GrantID
	OwnerID   OwnerID
	LeaveType LeaveType
	PolicyID  PolicyID // empty for manual grants with no policy

	Total     Amount
	Remaining Amount
	Window    Window
	Status    GrantStatus

	// Request metadata, set for grants issued on request.
	RequestedWindow *Window
	Reason          string

	Deleted   bool
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Eligible reports whether the grant may be drawn for req. This is the
// single eligibility predicate used by allocation, previews and balances.
func (g *Grant) Eligible(req AllocationRequest) bool {
	if g.Deleted || g.Status != GrantActive || !g.Remaining.IsPositive() {
		return false
	}
	if g.OwnerID != req.OwnerID || g.Remaining.Unit != req.Amount.Unit {
		return false
	}
	if req.GrantID != "" && g.ID != req.GrantID {
		return false
	}
	if req.LeaveType != AnyLeaveType && g.LeaveType != req.LeaveType {
		return false
	}
	return g.Window.Contains(req.UsageDate)
}

func (g *Grant) transition(to GrantStatus, at time.Time) error {
	if !g.Status.CanTransition(to) {
		return &InvalidTransitionError{Subject: "grant", ID: string(g.ID), From: string(g.Status), To: string(to)}
	}
	g.Status = to
	g.UpdatedAt = at
	return nil
}

// draw removes amount from Remaining and exhausts the grant when it reaches zero.
func (g *Grant) draw(amount Amount, at time.Time) error {
	if !amount.IsPositive() || amount.GreaterThan(g.Remaining) {
		return fmt.Errorf("%w: cannot draw %s from grant %s with %s remaining",
			ErrInvalidAmount, amount, g.ID, g.Remaining)
	}
	g.Remaining = g.Remaining.Sub(amount)
	g.UpdatedAt = at
	if g.Remaining.IsZero() {
		return g.transition(GrantExhausted, at)
	}
	return nil
}

// restore returns amount to Remaining. An EXHAUSTED grant becomes ACTIVE
// if its window still covers today, otherwise EXPIRED. EXPIRED and REVOKED
// grants keep their status; only the number moves.
func (g *Grant) restore(amount Amount, today Date, at time.Time) error {
	restored := g.Remaining.Add(amount)
	if restored.GreaterThan(g.Total) {
		return fmt.Errorf("%w: restoring %s to grant %s exceeds total %s",
			ErrInvalidAmount, amount, g.ID, g.Total)
	}
	g.Remaining = restored
	g.UpdatedAt = at
	if g.Status != GrantExhausted {
		return nil
	}
	if g.Window.ClosedBy(today) {
		return g.transition(GrantExpired, at)
	}
	return g.transition(GrantActive, at)
}

// sortByExpiry orders grants by validTo, then validFrom, then id.
func sortByExpiry(grants []*Grant) {
	sort.SliceStable(grants, func(i, j int) bool {
		a, b := grants[i], grants[j]
		if !a.Window.To.Equal(b.Window.To) {
			return a.Window.To.Before(b.Window.To)
		}
		if !a.Window.From.Equal(b.Window.From) {
			return a.Window.From.Before(b.Window.From)
		}
		return a.ID < b.ID
	})
}
