// Package timeoff defines the concrete leave types, preset policies and
// holidays of the vacation ledger, and turns employee-facing requests
// (full days, half days, hours) into ledger usage input.
package timeoff

import (
	"fmt"
	"strings"

	"github.com/warp/leave-ledger/ledger"
)

// =============================================================================
// LEAVE TYPES
// =============================================================================

const (
	Annual       ledger.LeaveType = "ANNUAL"
	Monthly      ledger.LeaveType = "MONTHLY" // first-year monthly accrual
	Sick         ledger.LeaveType = "SICK"
	Special      ledger.LeaveType = "SPECIAL" // weddings, family events
	Compensatory ledger.LeaveType = "COMPENSATORY"
	Parental     ledger.LeaveType = "PARENTAL"
	Bereavement  ledger.LeaveType = "BEREAVEMENT"
)

var leaveTypes = []ledger.LeaveTypeInfo{
	{Code: Annual, Name: "Annual leave", Unit: ledger.UnitDays, Paid: true},
	{Code: Monthly, Name: "Monthly leave", Unit: ledger.UnitDays, Paid: true},
	{Code: Sick, Name: "Sick leave", Unit: ledger.UnitDays, Paid: true},
	{Code: Special, Name: "Special leave", Unit: ledger.UnitDays, Paid: true},
	{Code: Compensatory, Name: "Compensatory leave", Unit: ledger.UnitHours, Paid: true},
	{Code: Parental, Name: "Parental leave", Unit: ledger.UnitDays, Paid: false},
	{Code: Bereavement, Name: "Bereavement leave", Unit: ledger.UnitDays, Paid: true},
}

// Register all leave types with the ledger registry
func init() {
	for _, info := range leaveTypes {
		ledger.RegisterLeaveType(info)
	}
}

// ParseLeaveType resolves a case-insensitive code to a registered leave
// type. The empty string is ledger.AnyLeaveType.
func ParseLeaveType(s string) (ledger.LeaveType, error) {
	code := ledger.LeaveType(strings.ToUpper(strings.TrimSpace(s)))
	if code == ledger.AnyLeaveType {
		return ledger.AnyLeaveType, nil
	}
	if _, ok := ledger.LookupLeaveType(code); !ok {
		return "", fmt.Errorf("%w: unknown leave type %q", ledger.ErrInvalidInput, s)
	}
	return code, nil
}

// UnitOf returns the unit a leave type is counted in, days by default.
func UnitOf(t ledger.LeaveType) ledger.Unit {
	if info, ok := ledger.LookupLeaveType(t); ok && info.Unit != "" {
		return info.Unit
	}
	return ledger.UnitDays
}
