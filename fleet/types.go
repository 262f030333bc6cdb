/*
Package fleet holds the fleet-management domain model and orchestration.

PURPOSE:
  Entities for owners, vehicles, projects, customers, maintenance, payments,
  and invoices, plus the service layer that wires the stores to the pure
  billing core: fetch assignment and attendance, resolve the window, run the
  calculation, persist the outcome.

KEY CONCEPTS IN THIS FILE (types.go):
  - Directory entities: Owner, Vehicle, Project, Customer
  - PeriodPayment: a persisted pro-rated payment for an assignment period
  - CustomerInvoice + InvoiceLine: a billing run's immutable output
  - MaintenanceRecord: a vehicle's service history entry

LIFECYCLES:
  Payments and invoices are created once and never edited; the only mutation
  is the pending -> paid status transition. Corrections mean voiding and
  re-issuing, not updating in place.

SEE ALSO:
  - stores.go: persistence interfaces
  - service.go: orchestration over the billing core
  - billing package: Assignment and AttendanceRecord live there, next to the
    calculation that consumes them
*/
package fleet

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fleetyard/fleet-billing/billing"
)

// =============================================================================
// DIRECTORY ENTITIES
// =============================================================================

type Owner struct {
	ID        string
	Name      string
	Phone     string
	Email     string
	CreatedAt time.Time
}

type Vehicle struct {
	ID          string
	OwnerID     string
	PlateNumber string
	Make        string
	Model       string
	Year        int
	Kind        string // e.g. "excavator", "dump truck", "crane"
	CreatedAt   time.Time
}

type Project struct {
	ID         string
	CustomerID string
	Name       string
	Location   string
	StartDate  billing.Date
	EndDate    *billing.Date
	CreatedAt  time.Time
}

type Customer struct {
	ID          string
	Name        string
	ContactName string
	Phone       string
	Email       string
	TaxNumber   string
	CreatedAt   time.Time
}

type MaintenanceRecord struct {
	ID          string
	VehicleID   string
	Date        billing.Date
	Description string
	Cost        decimal.Decimal
	CreatedAt   time.Time
}

// =============================================================================
// PAYMENTS
// =============================================================================

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// PeriodPayment is a persisted payment computed by prorating an assignment's
// monthly rate over a period. The computed figures are frozen at creation
// time; recalculating later against edited attendance is a new payment.
type PeriodPayment struct {
	ID            string
	AssignmentID  string
	PeriodStart   billing.Date
	PeriodEnd     billing.Date
	DueDate       billing.Date
	Status        PaymentStatus
	PaidDate      *billing.Date
	InvoiceNumber string

	DailyRate   decimal.Decimal
	TotalDays   int
	PresentDays int
	Amount      decimal.Decimal

	CreatedAt time.Time
}

// =============================================================================
// INVOICES
// =============================================================================

type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "pending"
	InvoicePaid    InvoiceStatus = "paid"
)

// InvoiceLine is one persisted vehicle-month row of a customer invoice.
// Owned by exactly one invoice.
type InvoiceLine struct {
	ID             string
	InvoiceID      string
	VehicleID      string
	Label          string // "January 2024"
	MonthlyRate    decimal.Decimal
	PresentDays    int
	DailyRate      decimal.Decimal
	Mobilization   decimal.Decimal
	Demobilization decimal.Decimal
	Amount         decimal.Decimal
	SalesTaxAmount decimal.Decimal
	TotalAmount    decimal.Decimal
}

// CustomerInvoice is the persisted output of one billing run.
// Invariant: Total = Subtotal + Adjustment + SalesTaxAmount, all at 2 decimal
// places, with the tax derived from the subtotal in a single rounding step.
type CustomerInvoice struct {
	ID          string
	CustomerID  string
	ProjectID   string
	PeriodStart billing.Date
	PeriodEnd   billing.Date
	DueDate     billing.Date
	Status      InvoiceStatus
	PaidDate    *billing.Date

	Subtotal       decimal.Decimal
	Adjustment     decimal.Decimal
	SalesTaxRate   decimal.Decimal // percent
	SalesTaxAmount decimal.Decimal
	Total          decimal.Decimal

	Lines []InvoiceLine

	CreatedAt time.Time
}
