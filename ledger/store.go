/*
store.go - Persistence contracts for the ledger

PURPOSE:
  Defines the interface between ledger logic and the database. Every read
  the ledger needs has exactly one method here, implemented once per
  backend. Eligibility and ordering of grants are decided in the ledger
  (Grant.Eligible, sortByExpiry), never re-derived by a store query.

KEY INTERFACES:
  Store:      Opens read-write (WithTx) and read-only (View) units of work
  Repository: The operations available inside a unit of work
  Directory:  Resolves approver chains (external org directory)

ATOMICITY:
  Everything done through the Repository passed to WithTx commits or rolls
  back together. The ledger relies on this for all-or-nothing allocation,
  reversal with its usage transition, and scheduler issuance together with
  the nextGrantDate advance.

CONCURRENCY GUARDS:
  UpdateGrant / UpdateUsage: optimistic version check (ErrConcurrentModification)
  AdvanceAssignment:         compare-and-set on nextGrantDate (ErrDuplicateGrantSchedule)
  DecideApprovalStep:        only a PENDING step can be decided (ErrApprovalNotPending)

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory, for tests
  - store/sqlite/sqlite.go: SQLite
*/
package ledger

import (
	"context"
	"fmt"
	"time"
)

// Store opens units of work against the ledger tables.
type Store interface {
	// WithTx runs fn atomically. Any error from fn rolls back every write.
	WithTx(ctx context.Context, fn func(Repository) error) error

	// View runs fn against a consistent read-only view.
	View(ctx context.Context, fn func(Repository) error) error
}

// Repository is the set of reads and writes available inside a unit of work.
type Repository interface {
	// Policies
	SavePolicy(ctx context.Context, p Policy) error
	GetPolicy(ctx context.Context, id PolicyID) (*Policy, error)
	ListPolicies(ctx context.Context) ([]Policy, error)
	CountGrantsByPolicy(ctx context.Context, id PolicyID) (int, error)

	// Assignments
	SaveAssignment(ctx context.Context, a Assignment) error
	GetAssignment(ctx context.Context, id AssignmentID) (*Assignment, error)
	ListAssignmentsByOwner(ctx context.Context, owner OwnerID) ([]Assignment, error)
	// ListDueAssignments returns assignments whose NextGrantDate is nil or <= today.
	ListDueAssignments(ctx context.Context, today Date) ([]Assignment, error)
	// AdvanceAssignment sets NextGrantDate to next only if it still equals expected.
	AdvanceAssignment(ctx context.Context, id AssignmentID, expected *Date, next Date) error

	// Grants
	InsertGrant(ctx context.Context, g *Grant) error
	// UpdateGrant persists g if the stored version equals g.Version, then bumps it.
	UpdateGrant(ctx context.Context, g *Grant) error
	GetGrant(ctx context.Context, id GrantID) (*Grant, error)
	// ListGrantsByOwner returns the owner's grants that are not flagged deleted.
	ListGrantsByOwner(ctx context.Context, owner OwnerID) ([]*Grant, error)
	// ListActiveGrantsEndingBefore returns ACTIVE grants with validTo < d.
	ListActiveGrantsEndingBefore(ctx context.Context, d Date) ([]*Grant, error)

	// Usages
	InsertUsage(ctx context.Context, u *UsageRequest) error
	UpdateUsage(ctx context.Context, u *UsageRequest) error
	GetUsage(ctx context.Context, id UsageID) (*UsageRequest, error)
	ListUsagesByOwner(ctx context.Context, owner OwnerID) ([]*UsageRequest, error)

	// Deductions
	InsertDeductions(ctx context.Context, ds []DeductionRecord) error
	ListDeductionsByUsage(ctx context.Context, id UsageID) ([]DeductionRecord, error)
	ListDeductionsByGrant(ctx context.Context, id GrantID) ([]DeductionRecord, error)
	DeleteDeductionsByUsage(ctx context.Context, id UsageID) error

	// Approval steps
	InsertApprovalSteps(ctx context.Context, steps []ApprovalStep) error
	ListApprovalSteps(ctx context.Context, id UsageID) ([]ApprovalStep, error)
	DecideApprovalStep(ctx context.Context, id StepID, d Decision, at time.Time) error
	ListPendingStepsByApprover(ctx context.Context, approver OwnerID) ([]ApprovalStep, error)
}

// =============================================================================
// DIRECTORY - Approver resolution
// =============================================================================

// Directory resolves the ordered approvers for an owner's usage request.
type Directory interface {
	// ApproverChain returns exactly n approver ids, nearest first.
	ApproverChain(ctx context.Context, owner OwnerID, n int) ([]OwnerID, error)
}

// StaticDirectory is a fixed owner -> approvers map.
type StaticDirectory map[OwnerID][]OwnerID

func (d StaticDirectory) ApproverChain(_ context.Context, owner OwnerID, n int) ([]OwnerID, error) {
	chain := d[owner]
	if len(chain) < n {
		return nil, fmt.Errorf("%w: %s has %d approvers, need %d", ErrApproverChainIncomplete, owner, len(chain), n)
	}
	return append([]OwnerID(nil), chain[:n]...), nil
}
