/*
errors.go - Centralized error types for the billing core

PURPOSE:
  All error kinds in one place for consistency and discoverability. Callers
  match sentinels with errors.Is() and pull details with errors.As().

ERROR CATEGORIES:
  1. Range errors - malformed or out-of-bounds periods
  2. Invoice errors - aggregation policy violations
  3. Store errors - raised by the persistence collaborators, defined here so
     every layer matches against the same values

USAGE:
    if errors.Is(err, billing.ErrPeriodOutOfBounds) {
        // reject the request with an explanatory message
    }

SEE ALSO:
  - calculator.go: period bounds validation
  - invoice.go: empty invoice policy
  - fleet package: store collaborators raising ErrDuplicatePayment/ErrNotFound
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRange is returned when a period's end precedes its start.
	ErrInvalidRange = errors.New("invalid range: end before start")

	// ErrPeriodOutOfBounds is returned when a requested period falls outside
	// the assignment's active window.
	ErrPeriodOutOfBounds = errors.New("period outside assignment window")

	// ErrEmptyInvoice is returned when an invoice build produces no line
	// items and the caller disallows empty invoices. The aggregator itself
	// tolerates empty input and returns zero totals.
	ErrEmptyInvoice = errors.New("invoice has no line items")

	// ErrDuplicatePayment is returned by payment stores when a payment
	// already exists for the same (assignment, period start, period end).
	ErrDuplicatePayment = errors.New("duplicate payment for assignment and period")

	// ErrNotFound is returned by stores when a referenced record doesn't exist.
	ErrNotFound = errors.New("record not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidRangeError reports the offending pair of dates.
type InvalidRangeError struct {
	Start Date
	End   Date
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range: end %s before start %s", e.End, e.Start)
}

func (e *InvalidRangeError) Unwrap() error { return ErrInvalidRange }

// PeriodOutOfBoundsError reports how a requested period misses the
// assignment's active window.
type PeriodOutOfBoundsError struct {
	AssignmentID    string
	Period          Period
	AssignmentStart Date
	AssignmentEnd   *Date // nil = ongoing
}

func (e *PeriodOutOfBoundsError) Error() string {
	end := "ongoing"
	if e.AssignmentEnd != nil {
		end = e.AssignmentEnd.String()
	}
	return fmt.Sprintf("period %s outside assignment %s window [%s, %s]",
		e.Period, e.AssignmentID, e.AssignmentStart, end)
}

func (e *PeriodOutOfBoundsError) Unwrap() error { return ErrPeriodOutOfBounds }

// DuplicatePaymentError identifies the existing payment that blocked a create.
type DuplicatePaymentError struct {
	AssignmentID string
	PeriodStart  Date
	PeriodEnd    Date
}

func (e *DuplicatePaymentError) Error() string {
	return fmt.Sprintf("payment already exists for assignment %s period [%s, %s]",
		e.AssignmentID, e.PeriodStart, e.PeriodEnd)
}

func (e *DuplicatePaymentError) Unwrap() error { return ErrDuplicatePayment }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrPeriodOutOfBounds) ||
		errors.Is(err, ErrEmptyInvoice) ||
		errors.Is(err, ErrDuplicatePayment)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
