/*
approval.go - Approval chains for usage requests

PURPOSE:
  A usage whose policy requires N approvals carries an ordered chain of N
  ApprovalSteps. The current step is the lowest-sequence step still
  PENDING. Steps are decided strictly in order; a rejection closes the
  chain and later steps stay PENDING forever with no way to reach them.

CHAIN RULES:
  - Sequences are contiguous, starting at 1
  - A step is decided at most once
  - Only the current step's approver may decide it

SEE ALSO:
  - service.go: DecideApproval drives the usage and grant transitions
  - store.go: Directory resolves approver ids
*/
package ledger

import (
	"fmt"
	"sort"
	"time"
)

// Decision is the outcome recorded on one approval step.
type Decision string

const (
	DecisionPending  Decision = "PENDING"
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// ParseDecision accepts APPROVED or REJECTED; PENDING is not a decision.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(s); d {
	case DecisionApproved, DecisionRejected:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDecision, s)
}

// ApprovalStep is one seat in a usage's approval chain.
type ApprovalStep struct {
	ID         StepID
	UsageID    UsageID
	GrantID    GrantID
	Sequence   int
	ApproverID OwnerID
	Decision   Decision
	DecidedAt  *time.Time
}

// IsDecided reports whether the step has left PENDING.
func (s ApprovalStep) IsDecided() bool {
	return s.Decision != DecisionPending
}

// BuildApprovalChain creates one PENDING step per approver, in order.
func BuildApprovalChain(usage *UsageRequest, approvers []OwnerID, newID func() string) []ApprovalStep {
	steps := make([]ApprovalStep, len(approvers))
	for i, approver := range approvers {
		steps[i] = ApprovalStep{
			ID:         StepID(newID()),
			UsageID:    usage.ID,
			GrantID:    usage.GrantID,
			Sequence:   i + 1,
			ApproverID: approver,
			Decision:   DecisionPending,
		}
	}
	return steps
}

// CurrentStep returns the lowest-sequence PENDING step of an open chain.
// A chain with any REJECTED step is closed and has no current step.
func CurrentStep(steps []ApprovalStep) (ApprovalStep, bool) {
	ordered := sortedSteps(steps)
	for _, s := range ordered {
		switch s.Decision {
		case DecisionRejected:
			return ApprovalStep{}, false
		case DecisionPending:
			return s, true
		}
	}
	return ApprovalStep{}, false
}

// IsLastStep reports whether step is the final seat in the chain.
func IsLastStep(steps []ApprovalStep, step ApprovalStep) bool {
	for _, s := range steps {
		if s.Sequence > step.Sequence {
			return false
		}
	}
	return true
}

// ValidateChain checks contiguity and ordering of decisions: no decided
// step may follow a pending one, and nothing is decided after a rejection.
func ValidateChain(steps []ApprovalStep) error {
	ordered := sortedSteps(steps)
	seenPending, seenRejected := false, false
	for i, s := range ordered {
		if s.Sequence != i+1 {
			return fmt.Errorf("approval chain not contiguous: expected sequence %d, got %d", i+1, s.Sequence)
		}
		if s.IsDecided() && (seenPending || seenRejected) {
			return fmt.Errorf("approval step %d decided out of order", s.Sequence)
		}
		seenPending = seenPending || s.Decision == DecisionPending
		seenRejected = seenRejected || s.Decision == DecisionRejected
	}
	return nil
}

func sortedSteps(steps []ApprovalStep) []ApprovalStep {
	ordered := make([]ApprovalStep, len(steps))
	copy(ordered, steps)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })
	return ordered
}
