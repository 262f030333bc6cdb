/*
Package billing contains the fleet billing computation core.

PURPOSE:
  This package holds the pure business-rule logic for period-based vehicle
  payments and customer invoices: resolving day-by-day attendance over a date
  range, prorating a monthly rate across attendance days, and aggregating
  computed line items into invoice totals with tax and rounding rules.

KEY CONCEPTS IN THIS FILE (types.go):
  - Assignment: a vehicle bound to a project at a monthly rate
  - AttendanceRecord: a vehicle's per-day operational status
  - AttendanceStatus: present/off/standby/maintenance (+ unrecorded)
  - PaymentResult: the computed output of a period payment calculation

DESIGN PRINCIPLES:
  1. Purity: every function here computes over supplied data. No I/O, no
     clocks, no ambient state. Callable from HTTP handlers, batch jobs, tests.
  2. Precision: uses decimal.Decimal for all currency math. Rounding happens
     once, at the boundary of each computed figure, never accumulated.
  3. Explicit attendance: a day with no record is "unrecorded" and never
     billable. Attendance must be written down to be charged.

SEE ALSO:
  - date.go: Date and Period types, month-boundary splitting
  - window.go: attendance window resolution
  - calculator.go: period payment proration
  - invoice.go: invoice aggregation
  - errors.go: sentinel and structured errors
*/
package billing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// ATTENDANCE
// =============================================================================

type AttendanceStatus string

const (
	StatusPresent     AttendanceStatus = "present"
	StatusOff         AttendanceStatus = "off"
	StatusStandby     AttendanceStatus = "standby"
	StatusMaintenance AttendanceStatus = "maintenance"

	// StatusUnrecorded is the resolved status of a day with no attendance
	// record. It is never stored, only produced by window resolution.
	StatusUnrecorded AttendanceStatus = "unrecorded"
)

// Billable reports whether a day in this status counts toward the prorated
// amount. Standby bills at full rate, same as present.
func (s AttendanceStatus) Billable() bool {
	return s == StatusPresent || s == StatusStandby
}

// Valid reports whether the status is one a record may carry.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusOff, StatusStandby, StatusMaintenance:
		return true
	}
	return false
}

// AttendanceRecord is one vehicle's status on one calendar day. At most one
// record exists per (vehicle, date); the stores enforce that invariant.
type AttendanceRecord struct {
	VehicleID string
	ProjectID string // empty = not tied to a specific project stint
	Date      Date
	Status    AttendanceStatus
	Note      string
}

// =============================================================================
// ASSIGNMENT
// =============================================================================

type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "active"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentCancelled AssignmentStatus = "cancelled"
)

// Assignment binds one vehicle to one project for a date range at a monthly
// rate. EndDate nil means ongoing.
type Assignment struct {
	ID          string
	VehicleID   string
	ProjectID   string
	MonthlyRate decimal.Decimal
	StartDate   Date
	EndDate     *Date
	Status      AssignmentStatus
}

// ActiveWindow returns the assignment's billable range as a period. For
// ongoing assignments the end is open; the second return is false.
func (a Assignment) ActiveWindow() (Period, bool) {
	if a.EndDate == nil {
		return Period{Start: a.StartDate}, false
	}
	return Period{Start: a.StartDate, End: *a.EndDate}, true
}

// =============================================================================
// PAYMENT RESULT - Computed, never persisted directly
// =============================================================================

// SubPeriod is one month-bounded slice of a payment calculation. The period
// never crosses a month boundary, so DailyRate uses that month's own length.
type SubPeriod struct {
	Period      Period
	DaysInMonth int
	DailyRate   decimal.Decimal // monthlyRate / DaysInMonth, rounded for display
	PresentDays int
	Amount      decimal.Decimal // dailyRate x presentDays, rounded for display
}

// PaymentResult is the output of a period payment calculation. It is
// ephemeral: the caller either discards it or converts it into a persisted
// payment.
type PaymentResult struct {
	AssignmentID string
	Period       Period
	DailyRate    decimal.Decimal // first sub-period's rate, for display
	TotalDays    int             // calendar days in the period
	PresentDays  int             // billable days (present + standby)
	Amount       decimal.Decimal // final amount, rounded once at the end
	SubPeriods   []SubPeriod
}

// =============================================================================
// MONEY HELPERS
// =============================================================================

// Round2 rounds a currency amount to 2 decimal places, half away from zero.
// Every externally visible figure passes through here exactly once.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// Money formats a currency amount with exactly 2 fractional digits, the wire
// representation used across all external boundaries.
func Money(d decimal.Decimal) string { return d.StringFixed(2) }

// MustParseDecimal parses a decimal string, returning zero on malformed input.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
