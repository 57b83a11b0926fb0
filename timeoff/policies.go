/*
policies.go - Pre-built leave policies

PURPOSE:
  Ready-to-use ledger policies for the leave types in types.go, following
  common HR patterns. The server installs DefaultPolicies when no policy
  file is configured.

AVAILABLE POLICIES:
  AnnualLeavePolicy:     REPEAT yearly, expires at year end
  MonthlyLeavePolicy:    REPEAT monthly for first-year staff, 12 month expiry
  SickLeavePolicy:       ON_REQUEST, one approval, valid for the request only
  SpecialLeavePolicy:    ON_REQUEST, manager + director approval
  CompensatoryPolicy:    MANUAL (overtime credited by HR), expires after 90 days
  ParentalLeavePolicy:   ON_REQUEST, one approval
  BereavementPolicy:     ON_REQUEST, one approval

EXAMPLE:
  policy := timeoff.AnnualLeavePolicy("annual-15", 15)
  policy.Effective = ledger.EffectiveRule{Kind: ledger.EffectiveDeferred, DelayDays: 30}
  _, err := svc.DefinePolicy(ctx, policy)

SEE ALSO:
  - ledger/policy.go: Policy type and issuance windows
  - factory/policy.go: File-based policy definitions
*/
package timeoff

import "github.com/warp/leave-ledger/ledger"

// =============================================================================
// RECURRING POLICIES
// =============================================================================

// AnnualLeavePolicy issues days every January 1st (or on the assignment's
// nextGrantDate), valid to the end of that year.
func AnnualLeavePolicy(id ledger.PolicyID, days float64) ledger.Policy {
	return ledger.Policy{
		ID:         id,
		Name:       "Annual leave",
		LeaveType:  Annual,
		Method:     ledger.IssueRepeat,
		Amount:     ledger.Days(days),
		Recurrence: &ledger.Recurrence{Unit: ledger.RecurYear, Interval: 1},
		Expiration: ledger.ExpirationRule{Kind: ledger.ExpireEndOfYear},
		Effective:  ledger.EffectiveRule{Kind: ledger.EffectiveImmediate},
	}
}

// MonthlyLeavePolicy issues one day per month worked, each valid for a
// year. Assign it with EffectiveTo set to the first work anniversary.
func MonthlyLeavePolicy(id ledger.PolicyID) ledger.Policy {
	return ledger.Policy{
		ID:         id,
		Name:       "Monthly leave",
		LeaveType:  Monthly,
		Method:     ledger.IssueRepeat,
		Amount:     ledger.Days(1),
		Recurrence: &ledger.Recurrence{Unit: ledger.RecurMonth, Interval: 1},
		Expiration: ledger.ExpirationRule{Kind: ledger.ExpireMonthsAfter, N: 12},
		Effective:  ledger.EffectiveRule{Kind: ledger.EffectiveImmediate},
	}
}

// =============================================================================
// ON-REQUEST POLICIES
// =============================================================================

func SickLeavePolicy(id ledger.PolicyID) ledger.Policy {
	return onRequest(id, "Sick leave", Sick, 1)
}

// SpecialLeavePolicy needs the manager and the manager's manager.
func SpecialLeavePolicy(id ledger.PolicyID) ledger.Policy {
	return onRequest(id, "Special leave", Special, 2)
}

func ParentalLeavePolicy(id ledger.PolicyID) ledger.Policy {
	return onRequest(id, "Parental leave", Parental, 1)
}

func BereavementPolicy(id ledger.PolicyID) ledger.Policy {
	return onRequest(id, "Bereavement leave", Bereavement, 1)
}

func onRequest(id ledger.PolicyID, name string, t ledger.LeaveType, approvals int) ledger.Policy {
	return ledger.Policy{
		ID:                    id,
		Name:                  name,
		LeaveType:             t,
		Method:                ledger.IssueOnRequest,
		ApprovalRequiredCount: approvals,
		Expiration:            ledger.ExpirationRule{Kind: ledger.ExpireNever},
		Effective:             ledger.EffectiveRule{Kind: ledger.EffectiveImmediate},
	}
}

// =============================================================================
// MANUAL POLICIES
// =============================================================================

// CompensatoryPolicy governs overtime credited by HR in hours.
func CompensatoryPolicy(id ledger.PolicyID) ledger.Policy {
	return ledger.Policy{
		ID:         id,
		Name:       "Compensatory leave",
		LeaveType:  Compensatory,
		Method:     ledger.IssueManual,
		Amount:     ledger.Hours(0),
		Expiration: ledger.ExpirationRule{Kind: ledger.ExpireDaysAfter, N: 90},
		Effective:  ledger.EffectiveRule{Kind: ledger.EffectiveImmediate},
	}
}

// DefaultPolicies is the starter set installed on an empty database.
func DefaultPolicies() []ledger.Policy {
	return []ledger.Policy{
		AnnualLeavePolicy("annual", 15),
		MonthlyLeavePolicy("monthly"),
		SickLeavePolicy("sick"),
		SpecialLeavePolicy("special"),
		CompensatoryPolicy("compensatory"),
		ParentalLeavePolicy("parental"),
		BereavementPolicy("bereavement"),
	}
}
