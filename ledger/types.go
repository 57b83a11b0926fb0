/*
Package ledger provides the vacation entitlement ledger.

PURPOSE:
  Tracks how much paid leave each person has been granted, which grants a
  leave request draws from, how that draw is reversed on cancellation, and
  how multi-step approval gates a request before it may draw anything.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A decimal quantity of leave with a unit (days, hours)
  - Identifiers: Type-safe ids for owners, grants, usages, policies, steps
  - LeaveType: The kind of leave (ANNUAL, SICK, ...)

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, never float64 arithmetic
  2. Single authority: grant and usage status change only through the
     transition tables in grant.go and usage.go
  3. Conservation: remaining + deducted = total for every live grant
  4. Injected time: nothing in this package calls time.Now directly

USAGE:
  svc := ledger.NewService(store, directory, ledger.SystemClock{}, ledger.WithLogger(logger))
  usage, err := svc.RequestUsage(ctx, ledger.UsageInput{
      OwnerID:   "emp-1",
      LeaveType: "ANNUAL",
      Amount:    ledger.Days(3),
      Window:    ledger.Window{From: may1, To: may3},
  })

SEE ALSO:
  - grant.go: Grant status machine
  - allocation.go: Expiry-first allocation and reversal
  - approval.go: Approval chains
  - scheduler.go / sweeper.go: Scheduled issuance and expiration
*/
package ledger

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity of leave with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitDays  Unit = "days"
	UnitHours Unit = "hours"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromDecimal(value decimal.Decimal, unit Unit) Amount {
	return Amount{Value: value, Unit: unit}
}

// Days is shorthand for NewAmount(n, UnitDays).
func Days(n float64) Amount { return NewAmount(n, UnitDays) }

// Hours is shorthand for NewAmount(n, UnitHours).
func Hours(n float64) Amount { return NewAmount(n, UnitHours) }

// ParseAmount parses a decimal string such as "1.5".
func ParseAmount(s string, unit Unit) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, ErrInvalidAmount
	}
	return Amount{Value: d, Unit: unit}, nil
}

func (a Amount) Zero() Amount { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Neg() Amount { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool { return a.Value.IsNegative() }
func (a Amount) IsZero() bool { return a.Value.IsZero() }
func (a Amount) IsPositive() bool { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool { return a.Unit == b.Unit && a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool { return a.Value.LessThan(b.Value) }
func (a Amount) String() string { return a.Value.String() + " " + string(a.Unit) }

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OwnerID string
type GrantID string
type UsageID string
type PolicyID string
type StepID string
type DeductionID string
type AssignmentID string

// LeaveType identifies the kind of leave a grant or usage is for.
// Concrete codes are registered by the vacation package.
type LeaveType string

// AnyLeaveType marks an undifferentiated request that may draw from grants
// of every leave type.
const AnyLeaveType LeaveType = ""
