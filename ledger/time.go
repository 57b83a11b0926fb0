package ledger

import (
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// DATE - Calendar day (the ledger's time granularity)
// =============================================================================

// Date is a calendar day in UTC. Validity windows, usage dates and grant
// schedules are all day-granular.
type Date struct {
	Time time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q is not YYYY-MM-DD", ErrInvalidDateRange, s)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for constants and tests.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool { return !d.Before(o) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) AddYears(n int) Date { return d.AddMonths(12 * n) }

// AddMonths moves n calendar months, clamping to the last day of the
// target month (Jan 31 + 1 month = Feb 28).
func (d Date) AddMonths(n int) Date {
	first := NewDate(d.Year(), d.Month(), 1).Time.AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	day := d.Day()
	if day > last {
		day = last
	}
	return NewDate(first.Year(), first.Month(), day)
}

// Properties
func (d Date) Year() int { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int { return d.Time.Day() }
func (d Date) Weekday() time.Weekday { return d.Time.Weekday() }
func (d Date) IsZero() bool { return d.Time.IsZero() }
func (d Date) String() string { return d.Time.Format(dateLayout) }

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func EndOfYear(year int) Date { return NewDate(year, time.December, 31) }

// MaxDate stands in for "never expires".
var MaxDate = NewDate(9999, time.December, 31)

// =============================================================================
// CLOCK - Injected source of "now"
// =============================================================================

// Clock provides the current time.
// Scheduler and expiry behaviour depend on it, so tests inject FixedClock.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock returns a settable instant. Safe for concurrent use.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t}
}

// NewFixedClockOn returns a FixedClock at noon UTC on d.
func NewFixedClockOn(d Date) *FixedClock {
	return NewFixedClock(d.Time.Add(12 * time.Hour))
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Today returns the clock's current calendar day in UTC.
func Today(c Clock) Date {
	return DateOf(c.Now().UTC())
}

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// Holiday is a day that does not count as a working day.
type Holiday struct {
	ID        string
	Date      Date
	Name      string
	Recurring bool // same month/day every year
}

// HolidayCalendar answers business-day questions.
type HolidayCalendar interface {
	IsHoliday(date Date) bool
}

// NoHolidays is a calendar with weekends only.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(Date) bool { return false }

// HolidayList is a calendar backed by a fixed set of holidays.
type HolidayList []Holiday

func (l HolidayList) IsHoliday(d Date) bool {
	for _, h := range l {
		if h.Date.Equal(d) {
			return true
		}
		if h.Recurring && h.Date.Month() == d.Month() && h.Date.Day() == d.Day() {
			return true
		}
	}
	return false
}

// IsWorkday reports whether d is neither a weekend nor a holiday.
func IsWorkday(d Date, calendar HolidayCalendar) bool {
	if d.IsWeekend() {
		return false
	}
	return calendar == nil || !calendar.IsHoliday(d)
}
