/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  All currency fields cross the wire as strings, fixed to 2 decimal places
  in responses ("30000.00") and parsed as decimal strings in requests.
  Never float64: clients doing arithmetic on floats is their problem, the
  API contract itself must not lose cents.

DATES:
  Calendar dates are "YYYY-MM-DD" strings; timestamps are RFC3339.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/fleetyard/fleet-billing/billing"
	"github.com/fleetyard/fleet-billing/fleet"
)

// =============================================================================
// DIRECTORY TYPES
// =============================================================================

type OwnerDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type SaveOwnerRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type VehicleDTO struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id,omitempty"`
	PlateNumber string `json:"plate_number"`
	Make        string `json:"make,omitempty"`
	Model       string `json:"model,omitempty"`
	Year        int    `json:"year,omitempty"`
	Kind        string `json:"kind,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type SaveVehicleRequest struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	PlateNumber string `json:"plate_number"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	Year        int    `json:"year"`
	Kind        string `json:"kind"`
}

type ProjectDTO struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	Location   string `json:"location,omitempty"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

type SaveProjectRequest struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	Location   string `json:"location"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"` // empty = open-ended
}

type CustomerDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContactName string `json:"contact_name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	TaxNumber   string `json:"tax_number,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type SaveCustomerRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContactName string `json:"contact_name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	TaxNumber   string `json:"tax_number"`
}

type MaintenanceDTO struct {
	ID          string `json:"id"`
	VehicleID   string `json:"vehicle_id"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
	Cost        string `json:"cost"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type SaveMaintenanceRequest struct {
	VehicleID   string `json:"vehicle_id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Cost        string `json:"cost"`
}

// =============================================================================
// ASSIGNMENTS AND ATTENDANCE
// =============================================================================

type AssignmentDTO struct {
	ID          string `json:"id"`
	VehicleID   string `json:"vehicle_id"`
	ProjectID   string `json:"project_id"`
	MonthlyRate string `json:"monthly_rate"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date,omitempty"`
	Status      string `json:"status"`
}

type SaveAssignmentRequest struct {
	ID          string `json:"id"`
	VehicleID   string `json:"vehicle_id"`
	ProjectID   string `json:"project_id"`
	MonthlyRate string `json:"monthly_rate"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"` // empty = ongoing
	Status      string `json:"status"`   // empty = active
}

type AttendanceDTO struct {
	VehicleID string `json:"vehicle_id"`
	ProjectID string `json:"project_id,omitempty"`
	Date      string `json:"date"`
	Status    string `json:"status"`
	Note      string `json:"note,omitempty"`
}

type RecordAttendanceRequest struct {
	VehicleID string `json:"vehicle_id"`
	ProjectID string `json:"project_id"`
	Date      string `json:"date"`
	Status    string `json:"status"`
	Note      string `json:"note"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

// CalculatePaymentRequest asks for a read-only payment preview.
type CalculatePaymentRequest struct {
	AssignmentID string `json:"assignment_id"`
	PeriodStart  string `json:"period_start"`
	PeriodEnd    string `json:"period_end"`
}

// CreatePaymentRequest computes and persists a payment. Status and PaidDate
// are optional: "paid" plus a paid_date imports an already-settled payment in
// one call instead of create-then-pay.
type CreatePaymentRequest struct {
	AssignmentID  string `json:"assignment_id"`
	PeriodStart   string `json:"period_start"`
	PeriodEnd     string `json:"period_end"`
	DueDate       string `json:"due_date"`
	InvoiceNumber string `json:"invoice_number"`
	Status        string `json:"status"`
	PaidDate      string `json:"paid_date"`
}

type SubPeriodDTO struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	DaysInMonth int    `json:"days_in_month"`
	DailyRate   string `json:"daily_rate"`
	PresentDays int    `json:"present_days"`
	Amount      string `json:"amount"`
}

// PaymentResultDTO is the calculation preview: the figures a payment would
// be created with, without persisting anything.
type PaymentResultDTO struct {
	AssignmentID string         `json:"assignment_id"`
	PeriodStart  string         `json:"period_start"`
	PeriodEnd    string         `json:"period_end"`
	DailyRate    string         `json:"daily_rate"`
	TotalDays    int            `json:"total_days"`
	PresentDays  int            `json:"present_days"`
	Amount       string         `json:"amount"`
	SubPeriods   []SubPeriodDTO `json:"sub_periods"`
}

type PaymentDTO struct {
	ID            string `json:"id"`
	AssignmentID  string `json:"assignment_id"`
	PeriodStart   string `json:"period_start"`
	PeriodEnd     string `json:"period_end"`
	DueDate       string `json:"due_date"`
	Status        string `json:"status"`
	PaidDate      string `json:"paid_date,omitempty"`
	InvoiceNumber string `json:"invoice_number,omitempty"`
	DailyRate     string `json:"daily_rate"`
	TotalDays     int    `json:"total_days"`
	PresentDays   int    `json:"present_days"`
	Amount        string `json:"amount"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// MarkPaidRequest records the date a payment or invoice was settled.
type MarkPaidRequest struct {
	PaidDate string `json:"paid_date"`
}

// =============================================================================
// INVOICES
// =============================================================================

// LineExtraDTO carries per-vehicle mobilization/demobilization pass-through
// charges for a billing run.
type LineExtraDTO struct {
	VehicleID      string `json:"vehicle_id"`
	Mobilization   string `json:"mobilization"`
	Demobilization string `json:"demobilization"`
}

// BuildInvoiceRequest triggers one billing run for a customer's project.
type BuildInvoiceRequest struct {
	CustomerID   string         `json:"customer_id"`
	ProjectID    string         `json:"project_id"`
	PeriodStart  string         `json:"period_start"`
	PeriodEnd    string         `json:"period_end"`
	DueDate      string         `json:"due_date"`
	SalesTaxRate string         `json:"sales_tax_rate"` // percent
	Adjustment   string         `json:"adjustment"`
	Extras       []LineExtraDTO `json:"extras"`
}

type InvoiceLineDTO struct {
	ID             string `json:"id"`
	VehicleID      string `json:"vehicle_id"`
	Label          string `json:"label"`
	MonthlyRate    string `json:"monthly_rate"`
	PresentDays    int    `json:"present_days"`
	DailyRate      string `json:"daily_rate"`
	Mobilization   string `json:"mobilization"`
	Demobilization string `json:"demobilization"`
	Amount         string `json:"amount"`
	SalesTaxAmount string `json:"sales_tax_amount"`
	TotalAmount    string `json:"total_amount"`
}

type InvoiceDTO struct {
	ID             string           `json:"id"`
	CustomerID     string           `json:"customer_id"`
	ProjectID      string           `json:"project_id"`
	PeriodStart    string           `json:"period_start"`
	PeriodEnd      string           `json:"period_end"`
	DueDate        string           `json:"due_date"`
	Status         string           `json:"status"`
	PaidDate       string           `json:"paid_date,omitempty"`
	Subtotal       string           `json:"subtotal"`
	Adjustment     string           `json:"adjustment"`
	SalesTaxRate   string           `json:"sales_tax_rate"`
	SalesTaxAmount string           `json:"sales_tax_amount"`
	Total          string           `json:"total"`
	Lines          []InvoiceLineDTO `json:"lines,omitempty"`
	CreatedAt      string           `json:"created_at,omitempty"`
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// DOMAIN -> DTO CONVERSIONS
// =============================================================================

func toPaymentResultDTO(r billing.PaymentResult) PaymentResultDTO {
	dto := PaymentResultDTO{
		AssignmentID: r.AssignmentID,
		PeriodStart:  r.Period.Start.String(),
		PeriodEnd:    r.Period.End.String(),
		DailyRate:    billing.Money(r.DailyRate),
		TotalDays:    r.TotalDays,
		PresentDays:  r.PresentDays,
		Amount:       billing.Money(r.Amount),
	}
	for _, sub := range r.SubPeriods {
		dto.SubPeriods = append(dto.SubPeriods, SubPeriodDTO{
			Start:       sub.Period.Start.String(),
			End:         sub.Period.End.String(),
			DaysInMonth: sub.DaysInMonth,
			DailyRate:   billing.Money(sub.DailyRate),
			PresentDays: sub.PresentDays,
			Amount:      billing.Money(sub.Amount),
		})
	}
	return dto
}

func toPaymentDTO(p fleet.PeriodPayment) PaymentDTO {
	return PaymentDTO{
		ID:            p.ID,
		AssignmentID:  p.AssignmentID,
		PeriodStart:   p.PeriodStart.String(),
		PeriodEnd:     p.PeriodEnd.String(),
		DueDate:       p.DueDate.String(),
		Status:        string(p.Status),
		PaidDate:      optDate(p.PaidDate),
		InvoiceNumber: p.InvoiceNumber,
		DailyRate:     billing.Money(p.DailyRate),
		TotalDays:     p.TotalDays,
		PresentDays:   p.PresentDays,
		Amount:        billing.Money(p.Amount),
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
}

func toInvoiceDTO(inv fleet.CustomerInvoice) InvoiceDTO {
	dto := InvoiceDTO{
		ID:             inv.ID,
		CustomerID:     inv.CustomerID,
		ProjectID:      inv.ProjectID,
		PeriodStart:    inv.PeriodStart.String(),
		PeriodEnd:      inv.PeriodEnd.String(),
		DueDate:        inv.DueDate.String(),
		Status:         string(inv.Status),
		PaidDate:       optDate(inv.PaidDate),
		Subtotal:       billing.Money(inv.Subtotal),
		Adjustment:     billing.Money(inv.Adjustment),
		SalesTaxRate:   inv.SalesTaxRate.String(),
		SalesTaxAmount: billing.Money(inv.SalesTaxAmount),
		Total:          billing.Money(inv.Total),
		CreatedAt:      inv.CreatedAt.Format(time.RFC3339),
	}
	for _, line := range inv.Lines {
		dto.Lines = append(dto.Lines, InvoiceLineDTO{
			ID:             line.ID,
			VehicleID:      line.VehicleID,
			Label:          line.Label,
			MonthlyRate:    billing.Money(line.MonthlyRate),
			PresentDays:    line.PresentDays,
			DailyRate:      billing.Money(line.DailyRate),
			Mobilization:   billing.Money(line.Mobilization),
			Demobilization: billing.Money(line.Demobilization),
			Amount:         billing.Money(line.Amount),
			SalesTaxAmount: billing.Money(line.SalesTaxAmount),
			TotalAmount:    billing.Money(line.TotalAmount),
		})
	}
	return dto
}

func toAssignmentDTO(a billing.Assignment) AssignmentDTO {
	return AssignmentDTO{
		ID:          a.ID,
		VehicleID:   a.VehicleID,
		ProjectID:   a.ProjectID,
		MonthlyRate: a.MonthlyRate.String(),
		StartDate:   a.StartDate.String(),
		EndDate:     optDate(a.EndDate),
		Status:      string(a.Status),
	}
}

func toAttendanceDTO(rec billing.AttendanceRecord) AttendanceDTO {
	return AttendanceDTO{
		VehicleID: rec.VehicleID,
		ProjectID: rec.ProjectID,
		Date:      rec.Date.String(),
		Status:    string(rec.Status),
		Note:      rec.Note,
	}
}

func optDate(d *billing.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}
