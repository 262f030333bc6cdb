/*
calculator.go - Period payment proration

PURPOSE:
  Computes the prorated payment for an assignment over a date range, weighted
  by billable attendance days. This is the one place with real arithmetic
  precision rules; everything here is pinned by tests.

PRORATION POLICY:
  dailyRate = monthlyRate / daysInMonth. A period spanning multiple months is
  split at month boundaries and each sub-period uses its own month's length.
  Applying a single month length across the whole range systematically over-
  or under-charges between 28- and 31-day months.

ROUNDING POLICY:
  Sub-period amounts are summed UNROUNDED and rounded once at the end.
  Summing independently rounded terms accumulates off-by-cent drift.
  The per-sub-period figures on the result are rounded for display only.

SEE ALSO:
  - window.go: produces the resolved window consumed here
  - invoice.go: turns results into invoice line items
*/
package billing

import (
	"github.com/shopspring/decimal"
)

// Calculate computes the prorated payment for an assignment over a period,
// given the resolved attendance window. Pure and deterministic: identical
// inputs always produce identical results.
//
// Zero billable days is not an error; the result carries a zero amount and
// the caller decides whether a zero-value payment is worth persisting.
func Calculate(a Assignment, period Period, w Window) (PaymentResult, error) {
	if err := validateBounds(a, period); err != nil {
		return PaymentResult{}, err
	}

	var (
		subs  []SubPeriod
		total decimal.Decimal
	)

	for _, sub := range period.SplitByMonth() {
		monthDays := DaysInMonth(sub.Start.Year(), sub.Start.Month())
		dailyRate := a.MonthlyRate.Div(decimal.NewFromInt(int64(monthDays)))
		presentDays := w.BillableDaysIn(sub)

		gross := dailyRate.Mul(decimal.NewFromInt(int64(presentDays)))
		total = total.Add(gross)

		subs = append(subs, SubPeriod{
			Period:      sub,
			DaysInMonth: monthDays,
			DailyRate:   Round2(dailyRate),
			PresentDays: presentDays,
			Amount:      Round2(gross),
		})
	}

	presentDays := 0
	for _, sub := range subs {
		presentDays += sub.PresentDays
	}

	return PaymentResult{
		AssignmentID: a.ID,
		Period:       period,
		DailyRate:    subs[0].DailyRate,
		TotalDays:    period.TotalDays(),
		PresentDays:  presentDays,
		Amount:       Round2(total),
		SubPeriods:   subs,
	}, nil
}

// validateBounds checks the period against the assignment's active window:
// the period may not start before the assignment does, and for finished
// assignments may not extend past the end date.
func validateBounds(a Assignment, period Period) error {
	outOfBounds := period.Start.Before(a.StartDate)
	if a.EndDate != nil && period.End.After(*a.EndDate) {
		outOfBounds = true
	}
	if outOfBounds {
		return &PeriodOutOfBoundsError{
			AssignmentID:    a.ID,
			Period:          period,
			AssignmentStart: a.StartDate,
			AssignmentEnd:   a.EndDate,
		}
	}
	return nil
}
