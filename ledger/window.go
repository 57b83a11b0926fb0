package ledger

import "fmt"

// =============================================================================
// WINDOW - Inclusive date range
// =============================================================================

// Window is an inclusive [From, To] range of days. Grants use it as their
// validity window; usages use it as the requested time range.
type Window struct {
	From Date
	To   Date
}

// NewWindow returns a validated window.
func NewWindow(from, to Date) (Window, error) {
	w := Window{From: from, To: to}
	return w, w.Validate()
}

// Validate rejects empty or inverted windows.
func (w Window) Validate() error {
	if w.From.IsZero() || w.To.IsZero() {
		return fmt.Errorf("%w: window bounds are required", ErrInvalidDateRange)
	}
	if w.To.Before(w.From) {
		return fmt.Errorf("%w: %s ends before it starts", ErrInvalidDateRange, w)
	}
	return nil
}

// Contains returns true if d is within [From, To].
func (w Window) Contains(d Date) bool {
	return d.AfterOrEqual(w.From) && d.BeforeOrEqual(w.To)
}

// ClosedBy reports whether the window ended strictly before d.
func (w Window) ClosedBy(d Date) bool {
	return w.To.Before(d)
}

// Days returns every day in the window.
func (w Window) Days() []Date {
	var days []Date
	for current := w.From; current.BeforeOrEqual(w.To); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Workdays counts the days in the window that are working days.
func (w Window) Workdays(calendar HolidayCalendar) int {
	n := 0
	for _, d := range w.Days() {
		if IsWorkday(d, calendar) {
			n++
		}
	}
	return n
}

func (w Window) String() string {
	return "[" + w.From.String() + ", " + w.To.String() + "]"
}
