package timeoff

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-ledger/ledger"
)

// =============================================================================
// REQUEST - Employee-facing leave request
// =============================================================================

// HoursPerDay converts between day- and hour-counted leave.
const HoursPerDay = 8

type Portion string

const (
	FullDay       Portion = "FULL"
	MorningHalf   Portion = "AM"
	AfternoonHalf Portion = "PM"
)

func (p Portion) IsHalf() bool { return p == MorningHalf || p == AfternoonHalf }

// Request is what an employee submits: a date range, optionally a half day
// or an explicit quantity. UsageInput turns it into the ledger's terms.
type Request struct {
	OwnerID   ledger.OwnerID
	LeaveType ledger.LeaveType
	PolicyID  ledger.PolicyID
	From      ledger.Date
	To        ledger.Date // defaults to From
	Portion   Portion

	// At most one of Days and Hours. Both zero means every working day
	// in [From, To].
	Days  float64
	Hours float64

	Reason string
}

// UsageInput resolves the request's amount in the leave type's unit.
func (r Request) UsageInput(calendar ledger.HolidayCalendar) (ledger.UsageInput, error) {
	to := r.To
	if to.IsZero() {
		to = r.From
	}
	window, err := ledger.NewWindow(r.From, to)
	if err != nil {
		return ledger.UsageInput{}, err
	}
	if r.Days < 0 || r.Hours < 0 {
		return ledger.UsageInput{}, fmt.Errorf("%w: negative quantity", ledger.ErrInvalidAmount)
	}
	if r.Days > 0 && r.Hours > 0 {
		return ledger.UsageInput{}, fmt.Errorf("%w: give days or hours, not both", ledger.ErrInvalidInput)
	}

	unit := UnitOf(r.LeaveType)
	var days decimal.Decimal
	switch {
	case r.Portion.IsHalf():
		if !window.From.Equal(window.To) {
			return ledger.UsageInput{}, fmt.Errorf("%w: a half day covers a single date", ledger.ErrInvalidInput)
		}
		if !ledger.IsWorkday(window.From, calendar) {
			return ledger.UsageInput{}, fmt.Errorf("%w: %s is not a working day", ledger.ErrInvalidAmount, window.From)
		}
		days = decimal.NewFromFloat(0.5)
	case r.Hours > 0:
		days = decimal.NewFromFloat(r.Hours).Div(decimal.NewFromInt(HoursPerDay))
	case r.Days > 0:
		days = decimal.NewFromFloat(r.Days)
	case unit == ledger.UnitDays:
		// The ledger counts working days itself.
		return r.input(window, ledger.Amount{Unit: ledger.UnitDays}), nil
	default:
		days = decimal.NewFromInt(int64(window.Workdays(calendar)))
		if days.IsZero() {
			return ledger.UsageInput{}, fmt.Errorf("%w: no working days in %s", ledger.ErrInvalidAmount, window)
		}
	}

	amount := ledger.NewAmountFromDecimal(days, ledger.UnitDays)
	if unit == ledger.UnitHours {
		amount = ledger.NewAmountFromDecimal(days.Mul(decimal.NewFromInt(HoursPerDay)), ledger.UnitHours)
	}
	return r.input(window, amount), nil
}

func (r Request) input(window ledger.Window, amount ledger.Amount) ledger.UsageInput {
	return ledger.UsageInput{
		OwnerID:   r.OwnerID,
		LeaveType: r.LeaveType,
		PolicyID:  r.PolicyID,
		Amount:    amount,
		Window:    window,
		Reason:    r.Reason,
	}
}
