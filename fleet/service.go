/*
service.go - Orchestration between the stores and the billing core

PURPOSE:
  One fetch round trip per request, then pure computation. The service loads
  the assignment and its attendance, hands them to the billing package, and
  either returns the result (preview) or persists it (payment / invoice).
  Nothing partial is ever written: a failed calculation persists nothing, and
  invoice creation is atomic across the invoice and its lines.

SEE ALSO:
  - billing/calculator.go, billing/invoice.go: the computations
  - stores.go: the persistence contracts consumed here
*/
package fleet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetyard/fleet-billing/billing"
)

// ErrUnmatchedExtra is returned when a billing run request carries
// mobilization or demobilization charges for a vehicle that ends up with no
// line in the run. Dropping caller-supplied money silently is not an option.
var ErrUnmatchedExtra = errors.New("extra charges match no line in the billing run")

// Service orchestrates billing operations over a Store.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// =============================================================================
// PERIOD PAYMENTS
// =============================================================================

// PaymentRequest asks for a pro-rated payment over a period of an assignment.
type PaymentRequest struct {
	AssignmentID  string
	PeriodStart   billing.Date
	PeriodEnd     billing.Date
	DueDate       billing.Date
	InvoiceNumber string

	// Status and PaidDate let a caller import a payment that was already
	// settled outside the system, in one step. Empty Status means pending;
	// PaidDate is required for (and only meaningful with) PaymentPaid.
	Status   PaymentStatus
	PaidDate *billing.Date
}

// CalculatePeriodPayment computes a payment preview. Read-only: nothing is
// persisted, and calling it twice with the same inputs yields the same
// result.
func (s *Service) CalculatePeriodPayment(ctx context.Context, req PaymentRequest) (billing.PaymentResult, error) {
	period, err := billing.NewPeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return billing.PaymentResult{}, err
	}

	a, err := s.store.GetAssignment(ctx, req.AssignmentID)
	if err != nil {
		return billing.PaymentResult{}, fmt.Errorf("load assignment %s: %w", req.AssignmentID, err)
	}

	records, err := s.store.GetAttendance(ctx, a.VehicleID, period.Start, period.End)
	if err != nil {
		return billing.PaymentResult{}, fmt.Errorf("load attendance for %s: %w", a.VehicleID, err)
	}

	window, err := billing.ResolveWindow(a.VehicleID, a.ProjectID, period.Start, period.End, records)
	if err != nil {
		return billing.PaymentResult{}, err
	}

	return billing.Calculate(*a, period, window)
}

// CreatePeriodPayment computes and persists a payment. The store's
// (assignment, period) uniqueness guard makes concurrent duplicate requests
// race safely: one wins, the rest get billing.ErrDuplicatePayment.
func (s *Service) CreatePeriodPayment(ctx context.Context, req PaymentRequest) (*PeriodPayment, error) {
	status := req.Status
	if status == "" {
		status = PaymentPending
	}
	if status != PaymentPending && status != PaymentPaid {
		return nil, fmt.Errorf("invalid payment status %q: %w", status, billing.ErrInvalidRange)
	}
	if status == PaymentPaid && req.PaidDate == nil {
		return nil, fmt.Errorf("importing a paid payment requires a paid date: %w", billing.ErrInvalidRange)
	}

	result, err := s.CalculatePeriodPayment(ctx, req)
	if err != nil {
		return nil, err
	}

	payment := PeriodPayment{
		ID:            uuid.NewString(),
		AssignmentID:  req.AssignmentID,
		PeriodStart:   req.PeriodStart,
		PeriodEnd:     req.PeriodEnd,
		DueDate:       req.DueDate,
		Status:        status,
		InvoiceNumber: req.InvoiceNumber,
		DailyRate:     result.DailyRate,
		TotalDays:     result.TotalDays,
		PresentDays:   result.PresentDays,
		Amount:        result.Amount,
		CreatedAt:     time.Now().UTC(),
	}
	if status == PaymentPaid {
		payment.PaidDate = req.PaidDate
	}

	if err := s.store.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkPaymentPaid transitions a pending payment to paid.
func (s *Service) MarkPaymentPaid(ctx context.Context, id string, paidDate billing.Date) error {
	return s.store.MarkPaymentPaid(ctx, id, paidDate)
}

// =============================================================================
// INVOICES
// =============================================================================

// LineExtra carries the opaque MOB/DIMOB pass-through charges for one
// vehicle in a billing run. They attach to the vehicle's first line.
type LineExtra struct {
	VehicleID      string
	Mobilization   decimal.Decimal
	Demobilization decimal.Decimal
}

// InvoiceRequest describes one billing run: all of a project's vehicles over
// a period, one line per vehicle per month.
type InvoiceRequest struct {
	CustomerID   string
	ProjectID    string
	PeriodStart  billing.Date
	PeriodEnd    billing.Date
	DueDate      billing.Date
	SalesTaxRate decimal.Decimal // percent
	Adjustment   decimal.Decimal
	Extras       []LineExtra
}

// BuildInvoice runs a billing run and persists the resulting invoice.
// Returns billing.ErrEmptyInvoice when the run produces no billable lines,
// and ErrUnmatchedExtra when requested MOB/DIMOB charges found no line to
// attach to; nothing is persisted in either case.
func (s *Service) BuildInvoice(ctx context.Context, req InvoiceRequest) (*CustomerInvoice, error) {
	period, err := billing.NewPeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, err
	}

	customer, err := s.store.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("load customer %s: %w", req.CustomerID, err)
	}
	project, err := s.store.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", req.ProjectID, err)
	}
	if project.CustomerID != customer.ID {
		return nil, fmt.Errorf("project %s does not belong to customer %s: %w",
			project.ID, customer.ID, billing.ErrNotFound)
	}

	assignments, err := s.store.ListAssignmentsByProject(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load assignments for project %s: %w", req.ProjectID, err)
	}

	extras := make(map[string]LineExtra, len(req.Extras))
	for _, e := range req.Extras {
		extras[e.VehicleID] = e
	}

	var lines []billing.InvoiceLine
	for _, a := range assignments {
		if a.Status == billing.AssignmentCancelled {
			continue
		}

		vehicleLines, err := s.vehicleLines(ctx, a, period, extras)
		if err != nil {
			return nil, err
		}
		lines = append(lines, vehicleLines...)
	}

	// vehicleLines consumes extras as it attaches them; anything still in the
	// map with a nonzero amount never found a line to live on.
	for vehicleID, extra := range extras {
		if !extra.Mobilization.IsZero() || !extra.Demobilization.IsZero() {
			return nil, fmt.Errorf("vehicle %s: %w", vehicleID, ErrUnmatchedExtra)
		}
	}

	if len(lines) == 0 {
		return nil, billing.ErrEmptyInvoice
	}

	totals := billing.Aggregate(lines, req.SalesTaxRate, req.Adjustment)

	invoice := CustomerInvoice{
		ID:             uuid.NewString(),
		CustomerID:     req.CustomerID,
		ProjectID:      req.ProjectID,
		PeriodStart:    req.PeriodStart,
		PeriodEnd:      req.PeriodEnd,
		DueDate:        req.DueDate,
		Status:         InvoicePending,
		Subtotal:       totals.Subtotal,
		Adjustment:     totals.Adjustment,
		SalesTaxRate:   totals.SalesTaxRate,
		SalesTaxAmount: totals.SalesTaxAmount,
		Total:          totals.Total,
		CreatedAt:      time.Now().UTC(),
	}
	for _, line := range totals.Lines {
		invoice.Lines = append(invoice.Lines, InvoiceLine{
			ID:             uuid.NewString(),
			InvoiceID:      invoice.ID,
			VehicleID:      line.VehicleID,
			Label:          line.Label,
			MonthlyRate:    line.MonthlyRate,
			PresentDays:    line.PresentDays,
			DailyRate:      line.DailyRate,
			Mobilization:   line.Mobilization,
			Demobilization: line.Demobilization,
			Amount:         line.Amount,
			SalesTaxAmount: line.SalesTaxAmount,
			TotalAmount:    line.TotalAmount,
		})
	}

	if err := s.store.CreateInvoice(ctx, invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// vehicleLines computes the per-month lines for one assignment within the
// invoice period. Months with no billable days produce no line unless the
// vehicle carries MOB/DIMOB charges. Extras attach to the vehicle's first
// line in the whole run and are deleted from the map once attached, so a
// vehicle with several assignment stints is still charged them exactly once.
func (s *Service) vehicleLines(ctx context.Context, a billing.Assignment, period billing.Period, extras map[string]LineExtra) ([]billing.InvoiceLine, error) {
	window, bounded := a.ActiveWindow()
	if !bounded {
		window.End = period.End
	}
	clamped, ok := period.Overlap(window)
	if !ok {
		return nil, nil
	}

	records, err := s.store.GetAttendance(ctx, a.VehicleID, clamped.Start, clamped.End)
	if err != nil {
		return nil, fmt.Errorf("load attendance for %s: %w", a.VehicleID, err)
	}
	resolved, err := billing.ResolveWindow(a.VehicleID, a.ProjectID, clamped.Start, clamped.End, records)
	if err != nil {
		return nil, err
	}

	var lines []billing.InvoiceLine
	for _, sub := range clamped.SplitByMonth() {
		result, err := billing.Calculate(a, sub, resolved)
		if err != nil {
			return nil, err
		}

		mob, demob := decimal.Zero, decimal.Zero
		extra, hasExtra := extras[a.VehicleID]
		if hasExtra {
			mob, demob = extra.Mobilization, extra.Demobilization
		}

		if result.PresentDays == 0 && mob.IsZero() && demob.IsZero() {
			continue
		}
		if hasExtra {
			delete(extras, a.VehicleID)
		}
		lines = append(lines, billing.NewInvoiceLine(result, a.VehicleID, a.MonthlyRate, mob, demob))
	}
	return lines, nil
}

// MarkInvoicePaid transitions a pending invoice to paid.
func (s *Service) MarkInvoicePaid(ctx context.Context, id string, paidDate billing.Date) error {
	return s.store.MarkInvoicePaid(ctx, id, paidDate)
}
