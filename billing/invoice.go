/*
invoice.go - Customer invoice aggregation

PURPOSE:
  Aggregates per-vehicle, per-month line items into invoice totals with sales
  tax and deterministic rounding.

ROUNDING POLICY:
  Tax is computed at two granularities: per line (for display on the itemized
  invoice) and once on the subtotal (for the invoice totals). The two don't
  always agree to the cent when lines round independently, so the invoice
  level is FIXED to the subtotal-based figure - a single rounding point.

MOB/DIMOB:
  Mobilization and demobilization are opaque pass-through amounts supplied by
  the caller and added into the line amount. No formula derives them here.

SEE ALSO:
  - calculator.go: produces the per-period figures behind each line
  - errors.go: ErrEmptyInvoice for callers that disallow empty invoices
*/
package billing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// LINE ITEMS
// =============================================================================

// InvoiceLine is one vehicle-month row on a customer invoice.
type InvoiceLine struct {
	VehicleID   string
	Label       string // e.g. "January 2024"
	MonthlyRate decimal.Decimal
	PresentDays int
	DailyRate   decimal.Decimal

	// Pass-through one-off charges, supplied by the caller.
	Mobilization   decimal.Decimal
	Demobilization decimal.Decimal

	Amount decimal.Decimal // prorated amount + mobilization + demobilization

	// Computed by Aggregate at line granularity.
	SalesTaxAmount decimal.Decimal
	TotalAmount    decimal.Decimal
}

// NewInvoiceLine builds a line from a payment calculation plus pass-through
// charges. The line amount is rounded here; it is an externally visible
// figure in its own right.
func NewInvoiceLine(result PaymentResult, vehicleID string, monthlyRate, mob, demob decimal.Decimal) InvoiceLine {
	return InvoiceLine{
		VehicleID:      vehicleID,
		Label:          result.Period.Start.MonthLabel(),
		MonthlyRate:    monthlyRate,
		PresentDays:    result.PresentDays,
		DailyRate:      result.DailyRate,
		Mobilization:   mob,
		Demobilization: demob,
		Amount:         Round2(result.Amount.Add(mob).Add(demob)),
	}
}

// =============================================================================
// AGGREGATION
// =============================================================================

// InvoiceTotals is the computed money summary of a customer invoice.
// Invariant: Total = Subtotal + Adjustment + SalesTaxAmount, each rounded to
// 2 decimal places.
type InvoiceTotals struct {
	Subtotal       decimal.Decimal
	SalesTaxRate   decimal.Decimal // percent
	SalesTaxAmount decimal.Decimal
	Adjustment     decimal.Decimal
	Total          decimal.Decimal
	Lines          []InvoiceLine
}

// Aggregate computes invoice totals from line items. Each line also gets its
// own tax and total filled in at line granularity. Empty input is tolerated
// and yields zero totals; callers that require at least one line enforce
// that themselves (see ErrEmptyInvoice).
func Aggregate(lines []InvoiceLine, salesTaxRatePercent, adjustment decimal.Decimal) InvoiceTotals {
	hundred := decimal.NewFromInt(100)

	out := make([]InvoiceLine, len(lines))
	var subtotal decimal.Decimal
	for i, line := range lines {
		line.SalesTaxAmount = Round2(line.Amount.Mul(salesTaxRatePercent).Div(hundred))
		line.TotalAmount = Round2(line.Amount.Add(line.SalesTaxAmount))
		out[i] = line
		subtotal = subtotal.Add(line.Amount)
	}

	subtotal = Round2(subtotal)
	// Invoice-level tax derives from the subtotal, not the sum of per-line
	// taxes. One rounding point keeps Total = Subtotal + Adjustment + Tax
	// exact to the cent.
	taxAmount := Round2(subtotal.Mul(salesTaxRatePercent).Div(hundred))
	total := Round2(subtotal.Add(adjustment).Add(taxAmount))

	return InvoiceTotals{
		Subtotal:       subtotal,
		SalesTaxRate:   salesTaxRatePercent,
		SalesTaxAmount: taxAmount,
		Adjustment:     adjustment,
		Total:          total,
		Lines:          out,
	}
}
