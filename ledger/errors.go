/*
errors.go - Error taxonomy for the ledger

PURPOSE:
  All error kinds in one place. Every ledger error is a local validation
  failure: the caller corrects input and retries, the ledger never retries
  on its own.

ERROR CATEGORIES:
  1. Balance errors - InsufficientBalance
  2. Lookup errors - Policy/Grant/Usage/Assignment not found
  3. Input errors - InvalidDateRange, InvalidAmount, InvalidDecision
  4. Workflow errors - NotCurrentApprover, ApprovalNotPending, InvalidTransition
  5. Concurrency errors - ConcurrentModification, DuplicateGrantSchedule

USAGE:
  if errors.Is(err, ledger.ErrInsufficientBalance) {
      var ib *ledger.InsufficientBalanceError
      if errors.As(err, &ib) {
          fmt.Println("short by", ib.Shortfall)
      }
  }
*/
package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientBalance is returned when eligible grants cannot cover a request.
	ErrInsufficientBalance = errors.New("insufficient balance")

	ErrPolicyNotFound     = errors.New("policy not found")
	ErrGrantNotFound      = errors.New("grant not found")
	ErrUsageNotFound      = errors.New("usage not found")
	ErrAssignmentNotFound = errors.New("assignment not found")

	// ErrInvalidDateRange is returned for inverted or malformed windows.
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrInvalidAmount is returned for non-positive or malformed amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNotCurrentApprover is returned when someone other than the current
	// step's approver submits a decision.
	ErrNotCurrentApprover = errors.New("not the current approver")

	// ErrApprovalNotPending is returned when the usage or step is not awaiting a decision.
	ErrApprovalNotPending = errors.New("approval not pending")

	ErrInvalidDecision = errors.New("invalid approval decision")

	// ErrInvalidTransition is returned when a status change is not in the transition table.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDuplicateGrantSchedule is the scheduler's internal race guard: another
	// run already advanced the (owner, policy) pair. Callers treat it as a skip.
	ErrDuplicateGrantSchedule = errors.New("grant schedule already advanced")

	// ErrConcurrentModification is returned when an optimistic version check fails.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	ErrApproverChainIncomplete = errors.New("approver chain shorter than required")
	ErrPolicyMethodMismatch    = errors.New("policy issuance method does not allow this operation")
	ErrPolicyImmutable         = errors.New("policy is referenced by grants and cannot change")
	ErrGrantInUse              = errors.New("grant has deductions")
	ErrInvalidPolicy           = errors.New("invalid policy")
	ErrInvalidInput            = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	OwnerID   OwnerID
	LeaveType LeaveType
	Available Amount
	Requested Amount
	Shortfall Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %v, requested %v, shortfall %v",
		e.Available.Value, e.Requested.Value, e.Shortfall.Value)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// InvalidTransitionError names the rejected status change.
type InvalidTransitionError struct {
	Subject string // "grant" or "usage"
	ID      string
	From    string
	To      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %s: cannot move from %s to %s", e.Subject, e.ID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ConservationError lists ledger invariant violations found by Audit.
type ConservationError struct {
	OwnerID    OwnerID
	Violations []string
}

func (e *ConservationError) Error() string {
	return fmt.Sprintf("ledger audit failed for %s: %s", e.OwnerID, strings.Join(e.Violations, "; "))
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPolicyNotFound) ||
		errors.Is(err, ErrGrantNotFound) ||
		errors.Is(err, ErrUsageNotFound) ||
		errors.Is(err, ErrAssignmentNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidDecision) ||
		errors.Is(err, ErrInvalidPolicy) ||
		errors.Is(err, ErrPolicyMethodMismatch) ||
		errors.Is(err, ErrApproverChainIncomplete)
}

// IsConflict returns true if the request clashes with current ledger state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrApprovalNotPending) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrPolicyImmutable) ||
		errors.Is(err, ErrGrantInUse)
}
