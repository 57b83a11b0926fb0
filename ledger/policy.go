/*
policy.go - Issuance policies

PURPOSE:
  A Policy says how an owner acquires grants of one leave type: by explicit
  administrative action (MANUAL), together with a usage request
  (ON_REQUEST), or on a recurring cadence (REPEAT). It also says how many
  approvals a usage needs and how each issued grant's window is computed.

WINDOW RULES:
  validFrom = issue date, plus DelayDays when the effective rule is DEFERRED
  validTo   =
    END_OF_YEAR       Dec 31 of validFrom's year
    MONTHS_AFTER n    validFrom + n months - 1 day
    DAYS_AFTER n      validFrom + n days - 1 day
    UNTIL_NEXT_GRANT  the day before the next recurrence (REPEAT only)
    NEVER             9999-12-31

IMMUTABILITY:
  A policy referenced by any grant cannot be redefined (ErrPolicyImmutable).
  Changing rules means defining a new policy and reassigning owners.

EXAMPLE:
  annual := ledger.Policy{
      ID:         "annual-2025",
      LeaveType:  "ANNUAL",
      Method:     ledger.IssueRepeat,
      Amount:     ledger.Days(15),
      Recurrence: &ledger.Recurrence{Unit: ledger.RecurYear, Interval: 1},
      Expiration: ledger.ExpirationRule{Kind: ledger.ExpireEndOfYear},
  }
*/
package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// ISSUANCE
// =============================================================================

type IssuanceMethod string

const (
	IssueManual    IssuanceMethod = "MANUAL"
	IssueOnRequest IssuanceMethod = "ON_REQUEST"
	IssueRepeat    IssuanceMethod = "REPEAT"
)

// RecurrenceUnit is the calendar step of a REPEAT policy.
type RecurrenceUnit string

const (
	RecurDay   RecurrenceUnit = "DAY"
	RecurWeek  RecurrenceUnit = "WEEK"
	RecurMonth RecurrenceUnit = "MONTH"
	RecurYear  RecurrenceUnit = "YEAR"
)

type Recurrence struct {
	Unit     RecurrenceUnit
	Interval int
}

// Next returns the issue date following d.
func (r Recurrence) Next(d Date) Date {
	switch r.Unit {
	case RecurDay:
		return d.AddDays(r.Interval)
	case RecurWeek:
		return d.AddDays(7 * r.Interval)
	case RecurMonth:
		return d.AddMonths(r.Interval)
	default:
		return d.AddYears(r.Interval)
	}
}

func (r Recurrence) validate() error {
	switch r.Unit {
	case RecurDay, RecurWeek, RecurMonth, RecurYear:
	default:
		return fmt.Errorf("%w: unknown recurrence unit %q", ErrInvalidPolicy, r.Unit)
	}
	if r.Interval <= 0 {
		return fmt.Errorf("%w: recurrence interval must be positive", ErrInvalidPolicy)
	}
	return nil
}

// =============================================================================
// EXPIRATION / EFFECTIVE RULES
// =============================================================================

type ExpirationKind string

const (
	ExpireEndOfYear      ExpirationKind = "END_OF_YEAR"
	ExpireMonthsAfter    ExpirationKind = "MONTHS_AFTER"
	ExpireDaysAfter      ExpirationKind = "DAYS_AFTER"
	ExpireUntilNextGrant ExpirationKind = "UNTIL_NEXT_GRANT"
	ExpireNever          ExpirationKind = "NEVER"
)

type ExpirationRule struct {
	Kind ExpirationKind
	N    int
}

type EffectiveKind string

const (
	EffectiveImmediate EffectiveKind = "IMMEDIATE"
	EffectiveDeferred  EffectiveKind = "DEFERRED"
)

type EffectiveRule struct {
	Kind      EffectiveKind
	DelayDays int
}

// =============================================================================
// POLICY
// =============================================================================

type Policy struct {
	ID        PolicyID
	Name      string
	LeaveType LeaveType
	Method    IssuanceMethod

	// Amount issued per REPEAT occurrence. Ignored for MANUAL and ON_REQUEST,
	// where the caller supplies the amount.
	Amount Amount

	ApprovalRequiredCount int
	Recurrence            *Recurrence
	Expiration            ExpirationRule
	Effective             EffectiveRule

	CreatedAt time.Time
}

// RequiresApproval reports whether usages governed by this policy start
// in PENDING_APPROVAL.
func (p Policy) RequiresApproval() bool {
	return p.ApprovalRequiredCount > 0
}

// Validate checks that the policy is internally consistent.
func (p Policy) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidPolicy)
	}
	if p.LeaveType == AnyLeaveType {
		return fmt.Errorf("%w: leave type is required", ErrInvalidPolicy)
	}
	if p.ApprovalRequiredCount < 0 {
		return fmt.Errorf("%w: approval count cannot be negative", ErrInvalidPolicy)
	}

	switch p.Method {
	case IssueManual, IssueOnRequest:
	case IssueRepeat:
		if p.Recurrence == nil {
			return fmt.Errorf("%w: REPEAT policy needs a recurrence", ErrInvalidPolicy)
		}
		if err := p.Recurrence.validate(); err != nil {
			return err
		}
		if !p.Amount.IsPositive() {
			return fmt.Errorf("%w: REPEAT policy needs a positive amount", ErrInvalidPolicy)
		}
	default:
		return fmt.Errorf("%w: unknown issuance method %q", ErrInvalidPolicy, p.Method)
	}

	switch p.Expiration.Kind {
	case ExpireEndOfYear, ExpireNever:
	case ExpireMonthsAfter, ExpireDaysAfter:
		if p.Expiration.N <= 0 {
			return fmt.Errorf("%w: %s needs a positive N", ErrInvalidPolicy, p.Expiration.Kind)
		}
	case ExpireUntilNextGrant:
		if p.Method != IssueRepeat {
			return fmt.Errorf("%w: UNTIL_NEXT_GRANT only applies to REPEAT policies", ErrInvalidPolicy)
		}
	default:
		return fmt.Errorf("%w: unknown expiration rule %q", ErrInvalidPolicy, p.Expiration.Kind)
	}

	switch p.Effective.Kind {
	case EffectiveImmediate, "":
	case EffectiveDeferred:
		if p.Effective.DelayDays < 0 {
			return fmt.Errorf("%w: deferral cannot be negative", ErrInvalidPolicy)
		}
	default:
		return fmt.Errorf("%w: unknown effective rule %q", ErrInvalidPolicy, p.Effective.Kind)
	}
	return nil
}

// IssueWindow computes the validity window of a grant issued on issueDate.
func (p Policy) IssueWindow(issueDate Date) Window {
	from := issueDate
	if p.Effective.Kind == EffectiveDeferred {
		from = from.AddDays(p.Effective.DelayDays)
	}

	var to Date
	switch p.Expiration.Kind {
	case ExpireEndOfYear:
		to = EndOfYear(from.Year())
	case ExpireMonthsAfter:
		to = from.AddMonths(p.Expiration.N).AddDays(-1)
	case ExpireDaysAfter:
		to = from.AddDays(p.Expiration.N - 1)
	case ExpireUntilNextGrant:
		if p.Recurrence != nil {
			to = p.Recurrence.Next(issueDate).AddDays(-1)
		}
	}
	if to.IsZero() || to.Before(from) {
		to = MaxDate
	}
	return Window{From: from, To: to}
}

// =============================================================================
// ASSIGNMENT - Owner to policy link
// =============================================================================

// Assignment links an owner to a policy. For REPEAT policies it carries
// the scheduler cursor NextGrantDate; nil means "due now".
type Assignment struct {
	ID            AssignmentID
	OwnerID       OwnerID
	PolicyID      PolicyID
	EffectiveFrom Date
	EffectiveTo   *Date
	NextGrantDate *Date
	CreatedAt     time.Time
}

// IsActive reports whether the assignment covers d.
func (a Assignment) IsActive(d Date) bool {
	if d.Before(a.EffectiveFrom) {
		return false
	}
	return a.EffectiveTo == nil || d.BeforeOrEqual(*a.EffectiveTo)
}

// DueOn returns the issue date the scheduler should use for today, if any.
// A cursor left before EffectiveFrom issues on EffectiveFrom.
func (a Assignment) DueOn(today Date) (Date, bool) {
	issue := today
	if a.NextGrantDate != nil {
		if a.NextGrantDate.After(today) {
			return Date{}, false
		}
		issue = *a.NextGrantDate
	}
	if issue.Before(a.EffectiveFrom) {
		issue = a.EffectiveFrom
		if issue.After(today) {
			return Date{}, false
		}
	}
	if !a.IsActive(issue) {
		return Date{}, false
	}
	return issue, true
}
