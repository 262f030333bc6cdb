/*
stores.go - Persistence interfaces for the fleet domain

PURPOSE:
  Defines the contract between the service layer and the database. The
  billing core never touches these; it computes over data the service has
  already fetched. Implementations: store/sqlite (production) and
  store/memory (tests).

UNIQUENESS CONTRACTS:
  - Attendance: at most one record per (vehicle, date); SaveAttendance
    upserts on that key.
  - Payments: at most one payment per (assignment, period start, period
    end); CreatePayment returns billing.ErrDuplicatePayment on conflict.

IMMUTABILITY:
  Payments and invoices have no update methods beyond the pending -> paid
  transition. There is deliberately no way to edit a persisted amount.

SEE ALSO:
  - service.go: the only consumer of these interfaces
  - store/sqlite/sqlite.go, store/memory/memory.go: implementations
*/
package fleet

import (
	"context"
	"errors"

	"github.com/fleetyard/fleet-billing/billing"
)

// ErrNotPending is returned when a paid-status transition targets a payment
// or invoice that is not pending.
var ErrNotPending = errors.New("record is not pending")

// =============================================================================
// DIRECTORY STORE - CRUD for fleet entities
// =============================================================================

type DirectoryStore interface {
	SaveOwner(ctx context.Context, o Owner) error
	GetOwner(ctx context.Context, id string) (*Owner, error)
	ListOwners(ctx context.Context) ([]Owner, error)
	DeleteOwner(ctx context.Context, id string) error

	SaveVehicle(ctx context.Context, v Vehicle) error
	GetVehicle(ctx context.Context, id string) (*Vehicle, error)
	ListVehicles(ctx context.Context) ([]Vehicle, error)
	DeleteVehicle(ctx context.Context, id string) error

	SaveProject(ctx context.Context, p Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]Project, error)
	DeleteProject(ctx context.Context, id string) error

	SaveCustomer(ctx context.Context, c Customer) error
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
	DeleteCustomer(ctx context.Context, id string) error

	SaveMaintenance(ctx context.Context, m MaintenanceRecord) error
	ListMaintenance(ctx context.Context, vehicleID string) ([]MaintenanceRecord, error)
}

// =============================================================================
// BILLING STORE - Assignments, attendance, payments, invoices
// =============================================================================

type BillingStore interface {
	SaveAssignment(ctx context.Context, a billing.Assignment) error
	GetAssignment(ctx context.Context, id string) (*billing.Assignment, error)
	ListAssignments(ctx context.Context) ([]billing.Assignment, error)
	ListAssignmentsByProject(ctx context.Context, projectID string) ([]billing.Assignment, error)

	// SaveAttendance upserts on (vehicle, date): recording a day twice
	// replaces the earlier status rather than duplicating the day.
	SaveAttendance(ctx context.Context, rec billing.AttendanceRecord) error
	GetAttendance(ctx context.Context, vehicleID string, from, to billing.Date) ([]billing.AttendanceRecord, error)

	// CreatePayment persists a computed payment. Returns
	// billing.ErrDuplicatePayment if one already exists for the same
	// (assignment, period start, period end).
	CreatePayment(ctx context.Context, p PeriodPayment) error
	GetPayment(ctx context.Context, id string) (*PeriodPayment, error)
	// ListPayments returns payments for an assignment, or all when
	// assignmentID is empty.
	ListPayments(ctx context.Context, assignmentID string) ([]PeriodPayment, error)
	// MarkPaymentPaid transitions pending -> paid. billing.ErrNotFound if
	// the payment doesn't exist, ErrNotPending if it isn't pending.
	MarkPaymentPaid(ctx context.Context, id string, paidDate billing.Date) error

	// CreateInvoice persists an invoice and its lines atomically.
	CreateInvoice(ctx context.Context, inv CustomerInvoice) error
	GetInvoice(ctx context.Context, id string) (*CustomerInvoice, error)
	// ListInvoices returns invoices for a customer, or all when customerID
	// is empty. Lines are not loaded; fetch a single invoice for those.
	ListInvoices(ctx context.Context, customerID string) ([]CustomerInvoice, error)
	MarkInvoicePaid(ctx context.Context, id string, paidDate billing.Date) error
}

// Store is the full persistence surface the service runs against.
type Store interface {
	DirectoryStore
	BillingStore
}
