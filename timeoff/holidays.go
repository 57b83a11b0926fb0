package timeoff

import (
	"time"

	"github.com/warp/leave-ledger/ledger"
)

// DefaultHolidays returns the fixed-date public holidays that recur every
// year. Movable holidays must be added per year by an administrator.
func DefaultHolidays() []ledger.Holiday {
	fixed := []struct {
		id    string
		month time.Month
		day   int
		name  string
	}{
		{"new-year", time.January, 1, "New Year's Day"},
		{"labour-day", time.May, 1, "Labour Day"},
		{"christmas", time.December, 25, "Christmas Day"},
	}

	holidays := make([]ledger.Holiday, 0, len(fixed))
	for _, f := range fixed {
		holidays = append(holidays, ledger.Holiday{
			ID:        f.id,
			Date:      ledger.NewDate(2000, f.month, f.day),
			Name:      f.name,
			Recurring: true,
		})
	}
	return holidays
}
