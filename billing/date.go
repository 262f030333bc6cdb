package billing

import (
	"time"
)

// =============================================================================
// DATE - Day-granular calendar date (UTC, midnight)
// =============================================================================

// Date is a calendar date with no time-of-day component. All billing math is
// day-granular: attendance is recorded per day and rates prorate per day.
type Date struct {
	Time time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO-8601 YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t.UTC()}, nil
}

func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// Comparison
func (d Date) Before(other Date) bool        { return d.normalize().Before(other.normalize()) }
func (d Date) Equal(other Date) bool         { return d.normalize().Equal(other.normalize()) }
func (d Date) After(other Date) bool         { return d.normalize().After(other.normalize()) }
func (d Date) BeforeOrEqual(other Date) bool { return d.Before(other) || d.Equal(other) }
func (d Date) AfterOrEqual(other Date) bool  { return d.After(other) || d.Equal(other) }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Key returns the normalized form usable as a map key. Dates built through the
// package constructors are already normalized; Key guards dates deserialized
// from stores or JSON.
func (d Date) Key() Date { return Date{Time: d.normalize()} }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{Time: d.normalize().AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{Time: d.normalize().AddDate(0, n, 0)} }

// Properties
func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }
func (d Date) IsZero() bool      { return d.Time.IsZero() }

func (d Date) String() string { return d.Time.Format("2006-01-02") }

// MonthLabel returns the "January 2024" form used on invoice lines.
func (d Date) MonthLabel() string { return d.Time.Format("January 2006") }

// =============================================================================
// CALENDAR UTILITIES
// =============================================================================

// DaysBetween returns the number of whole days from one date to another.
func DaysBetween(from, to Date) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

// DaysInMonth returns the calendar length of a month. This is the divisor for
// the daily rate: monthlyRate / daysInMonth.
func DaysInMonth(year int, month time.Month) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1).Day()
}

func StartOfMonth(year int, month time.Month) Date { return NewDate(year, month, 1) }

func EndOfMonth(year int, month time.Month) Date {
	return NewDate(year, month, DaysInMonth(year, month))
}

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is an inclusive [Start, End] date range. Construct through NewPeriod
// so the end-before-start invariant holds everywhere downstream.
type Period struct {
	Start Date
	End   Date
}

// NewPeriod validates and builds a period. End before start is the one
// malformed shape callers can hand us, and it fails here rather than deep in
// the calculator.
func NewPeriod(start, end Date) (Period, error) {
	if end.Before(start) {
		return Period{}, &InvalidRangeError{Start: start, End: end}
	}
	return Period{Start: start, End: end}, nil
}

// Contains returns true if the date falls within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days returns every day in the period, in order.
func (p Period) Days() []Date {
	var days []Date
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// TotalDays returns the inclusive day count: (End - Start) + 1.
func (p Period) TotalDays() int { return DaysBetween(p.Start, p.End) + 1 }

// Overlap clamps the period to another range. The second return is false when
// the two ranges do not intersect.
func (p Period) Overlap(other Period) (Period, bool) {
	start := p.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := p.End
	if other.End.Before(end) {
		end = other.End
	}
	if end.Before(start) {
		return Period{}, false
	}
	return Period{Start: start, End: end}, true
}

// SplitByMonth splits the period at calendar month boundaries. Each sub-period
// stays within a single month so the caller can apply that month's own day
// count. A period already inside one month comes back unchanged.
func (p Period) SplitByMonth() []Period {
	var subs []Period
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		monthEnd := EndOfMonth(current.Year(), current.Month())
		end := monthEnd
		if p.End.Before(monthEnd) {
			end = p.End
		}
		subs = append(subs, Period{Start: current, End: end})
		current = end.AddDays(1)
	}
	return subs
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
