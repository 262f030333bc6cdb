/*
handlers.go - HTTP API handlers for the fleet billing service

PURPOSE:
  Exposes the fleet directory and the billing operations via REST. Handles
  HTTP request/response, JSON serialization, and delegates to the service
  and store layers.

ENDPOINTS:
  Directory:
    GET/POST       /api/owners, /api/vehicles, /api/projects, /api/customers
    GET/DELETE     /api/{entity}/{id}
    GET/POST       /api/vehicles/{id}/maintenance
    GET            /api/vehicles/{id}/attendance?from=&to=
    POST           /api/attendance

  Assignments:
    GET/POST       /api/assignments
    GET            /api/assignments/{id}

  Payments:
    POST /api/payments/calculate   Read-only preview, persists nothing
    POST /api/payments             Compute and persist (409 on duplicate)
    GET  /api/payments?assignment_id=
    GET  /api/payments/{id}
    POST /api/payments/{id}/pay

  Invoices:
    POST /api/invoices             Run billing for a customer/project period
    GET  /api/invoices?customer_id=
    GET  /api/invoices/{id}        Includes lines
    POST /api/invoices/{id}/pay

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed input, invalid date range
  - 404: Resource not found
  - 409: Duplicate payment, paid-transition on a non-pending record
  - 422: Period outside assignment bounds, empty billing run
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetyard/fleet-billing/billing"
	"github.com/fleetyard/fleet-billing/fleet"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   fleet.Store
	Service *fleet.Service
}

// NewHandler creates a new handler over the given store.
func NewHandler(store fleet.Store) *Handler {
	return &Handler{
		Store:   store,
		Service: fleet.NewService(store),
	}
}

// =============================================================================
// OWNER HANDLERS
// =============================================================================

func (h *Handler) ListOwners(w http.ResponseWriter, r *http.Request) {
	owners, err := h.Store.ListOwners(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list owners", err)
		return
	}

	dtos := make([]OwnerDTO, len(owners))
	for i, o := range owners {
		dtos[i] = OwnerDTO{
			ID: o.ID, Name: o.Name, Phone: o.Phone, Email: o.Email,
			CreatedAt: o.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SaveOwner(w http.ResponseWriter, r *http.Request) {
	var req SaveOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Owner name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	owner := fleet.Owner{ID: req.ID, Name: req.Name, Phone: req.Phone, Email: req.Email}
	if err := h.Store.SaveOwner(r.Context(), owner); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save owner", err)
		return
	}
	writeJSON(w, http.StatusCreated, OwnerDTO{ID: owner.ID, Name: owner.Name, Phone: owner.Phone, Email: owner.Email})
}

func (h *Handler) GetOwner(w http.ResponseWriter, r *http.Request) {
	o, err := h.Store.GetOwner(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get owner", err)
		return
	}
	writeJSON(w, http.StatusOK, OwnerDTO{
		ID: o.ID, Name: o.Name, Phone: o.Phone, Email: o.Email,
		CreatedAt: o.CreatedAt.Format(time.RFC3339),
	})
}

func (h *Handler) DeleteOwner(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteOwner(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete owner", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// VEHICLE HANDLERS
// =============================================================================

func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.Store.ListVehicles(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list vehicles", err)
		return
	}

	dtos := make([]VehicleDTO, len(vehicles))
	for i, v := range vehicles {
		dtos[i] = toVehicleDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SaveVehicle(w http.ResponseWriter, r *http.Request) {
	var req SaveVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PlateNumber == "" {
		writeError(w, http.StatusBadRequest, "Plate number is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	v := fleet.Vehicle{
		ID: req.ID, OwnerID: req.OwnerID, PlateNumber: req.PlateNumber,
		Make: req.Make, Model: req.Model, Year: req.Year, Kind: req.Kind,
	}
	if err := h.Store.SaveVehicle(r.Context(), v); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save vehicle", err)
		return
	}
	writeJSON(w, http.StatusCreated, toVehicleDTO(v))
}

func (h *Handler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := h.Store.GetVehicle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get vehicle", err)
		return
	}
	writeJSON(w, http.StatusOK, toVehicleDTO(*v))
}

func (h *Handler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteVehicle(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete vehicle", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toVehicleDTO(v fleet.Vehicle) VehicleDTO {
	dto := VehicleDTO{
		ID: v.ID, OwnerID: v.OwnerID, PlateNumber: v.PlateNumber,
		Make: v.Make, Model: v.Model, Year: v.Year, Kind: v.Kind,
	}
	if !v.CreatedAt.IsZero() {
		dto.CreatedAt = v.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// PROJECT HANDLERS
// =============================================================================

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list projects", err)
		return
	}

	dtos := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		dtos[i] = toProjectDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SaveProject(w http.ResponseWriter, r *http.Request) {
	var req SaveProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" || req.CustomerID == "" {
		writeError(w, http.StatusBadRequest, "Project name and customer_id are required", nil)
		return
	}
	start, err := billing.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return
	}
	var end *billing.Date
	if req.EndDate != "" {
		d, err := billing.ParseDate(req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date", err)
			return
		}
		end = &d
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	p := fleet.Project{
		ID: req.ID, CustomerID: req.CustomerID, Name: req.Name,
		Location: req.Location, StartDate: start, EndDate: end,
	}
	if err := h.Store.SaveProject(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save project", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectDTO(p))
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get project", err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDTO(*p))
}

func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toProjectDTO(p fleet.Project) ProjectDTO {
	dto := ProjectDTO{
		ID: p.ID, CustomerID: p.CustomerID, Name: p.Name, Location: p.Location,
		StartDate: p.StartDate.String(), EndDate: optDate(p.EndDate),
	}
	if !p.CreatedAt.IsZero() {
		dto.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Store.ListCustomers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list customers", err)
		return
	}

	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SaveCustomer(w http.ResponseWriter, r *http.Request) {
	var req SaveCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Customer name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	c := fleet.Customer{
		ID: req.ID, Name: req.Name, ContactName: req.ContactName,
		Phone: req.Phone, Email: req.Email, TaxNumber: req.TaxNumber,
	}
	if err := h.Store.SaveCustomer(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(c))
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get customer", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(*c))
}

func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteCustomer(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete customer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toCustomerDTO(c fleet.Customer) CustomerDTO {
	dto := CustomerDTO{
		ID: c.ID, Name: c.Name, ContactName: c.ContactName,
		Phone: c.Phone, Email: c.Email, TaxNumber: c.TaxNumber,
	}
	if !c.CreatedAt.IsZero() {
		dto.CreatedAt = c.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// MAINTENANCE HANDLERS
// =============================================================================

func (h *Handler) ListMaintenance(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")
	records, err := h.Store.ListMaintenance(r.Context(), vehicleID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list maintenance", err)
		return
	}

	dtos := make([]MaintenanceDTO, len(records))
	for i, m := range records {
		dtos[i] = MaintenanceDTO{
			ID: m.ID, VehicleID: m.VehicleID, Date: m.Date.String(),
			Description: m.Description, Cost: billing.Money(m.Cost),
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SaveMaintenance(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")

	var req SaveMaintenanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	day, err := billing.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	cost := decimal.Zero
	if req.Cost != "" {
		cost, err = decimal.NewFromString(req.Cost)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid cost", err)
			return
		}
	}

	m := fleet.MaintenanceRecord{
		ID: uuid.NewString(), VehicleID: vehicleID, Date: day,
		Description: req.Description, Cost: cost,
	}
	if err := h.Store.SaveMaintenance(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save maintenance record", err)
		return
	}
	writeJSON(w, http.StatusCreated, MaintenanceDTO{
		ID: m.ID, VehicleID: m.VehicleID, Date: m.Date.String(),
		Description: m.Description, Cost: billing.Money(m.Cost),
	})
}

// =============================================================================
// ASSIGNMENT HANDLERS
// =============================================================================

func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	var (
		assignments []billing.Assignment
		err         error
	)
	if projectID := r.URL.Query().Get("project_id"); projectID != "" {
		assignments, err = h.Store.ListAssignmentsByProject(r.Context(), projectID)
	} else {
		assignments, err = h.Store.ListAssignments(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list assignments", err)
		return
	}

	dtos := make([]AssignmentDTO, len(assignments))
	for i, a := range assignments {
		dtos[i] = toAssignmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SaveAssignment(w http.ResponseWriter, r *http.Request) {
	var req SaveAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.VehicleID == "" || req.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "vehicle_id and project_id are required", nil)
		return
	}
	rate, err := decimal.NewFromString(req.MonthlyRate)
	if err != nil || rate.IsNegative() {
		writeError(w, http.StatusBadRequest, "Invalid monthly_rate", err)
		return
	}
	start, err := billing.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return
	}
	var end *billing.Date
	if req.EndDate != "" {
		d, err := billing.ParseDate(req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date", err)
			return
		}
		if d.Before(start) {
			writeError(w, http.StatusBadRequest, "end_date precedes start_date", billing.ErrInvalidRange)
			return
		}
		end = &d
	}
	status := billing.AssignmentStatus(req.Status)
	if req.Status == "" {
		status = billing.AssignmentActive
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	a := billing.Assignment{
		ID: req.ID, VehicleID: req.VehicleID, ProjectID: req.ProjectID,
		MonthlyRate: rate, StartDate: start, EndDate: end, Status: status,
	}
	if err := h.Store.SaveAssignment(r.Context(), a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save assignment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentDTO(a))
}

func (h *Handler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	a, err := h.Store.GetAssignment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get assignment", err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(*a))
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// RecordAttendance upserts one day's status for a vehicle.
func (h *Handler) RecordAttendance(w http.ResponseWriter, r *http.Request) {
	var req RecordAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.VehicleID == "" {
		writeError(w, http.StatusBadRequest, "vehicle_id is required", nil)
		return
	}
	day, err := billing.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	status := billing.AttendanceStatus(req.Status)
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid attendance status", nil)
		return
	}

	rec := billing.AttendanceRecord{
		VehicleID: req.VehicleID, ProjectID: req.ProjectID,
		Date: day, Status: status, Note: req.Note,
	}
	if err := h.Store.SaveAttendance(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save attendance", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAttendanceDTO(rec))
}

// GetAttendance returns a vehicle's records for ?from=&to= (dates inclusive).
func (h *Handler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")
	from, err := billing.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return
	}
	to, err := billing.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date", err)
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "Invalid range", billing.ErrInvalidRange)
		return
	}

	records, err := h.Store.GetAttendance(r.Context(), vehicleID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get attendance", err)
		return
	}

	dtos := make([]AttendanceDTO, len(records))
	for i, rec := range records {
		dtos[i] = toAttendanceDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// CalculatePayment returns a payment preview without persisting anything.
func (h *Handler) CalculatePayment(w http.ResponseWriter, r *http.Request) {
	var req CalculatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, end, ok := parsePeriod(w, req.PeriodStart, req.PeriodEnd)
	if !ok {
		return
	}

	result, err := h.Service.CalculatePeriodPayment(r.Context(), fleet.PaymentRequest{
		AssignmentID: req.AssignmentID,
		PeriodStart:  start,
		PeriodEnd:    end,
	})
	if err != nil {
		writeDomainError(w, "Failed to calculate payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResultDTO(result))
}

// CreatePayment computes and persists a payment for an assignment period.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, end, ok := parsePeriod(w, req.PeriodStart, req.PeriodEnd)
	if !ok {
		return
	}
	due, err := billing.ParseDate(req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid due_date", err)
		return
	}

	var paidDate *billing.Date
	status := fleet.PaymentStatus(req.Status)
	switch status {
	case "", fleet.PaymentPending:
		status = fleet.PaymentPending
		if req.PaidDate != "" {
			writeError(w, http.StatusBadRequest, `paid_date requires status "paid"`, nil)
			return
		}
	case fleet.PaymentPaid:
		if req.PaidDate == "" {
			writeError(w, http.StatusBadRequest, `status "paid" requires a paid_date`, nil)
			return
		}
		d, err := billing.ParseDate(req.PaidDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid paid_date", err)
			return
		}
		paidDate = &d
	default:
		writeError(w, http.StatusBadRequest, "Invalid payment status", nil)
		return
	}

	payment, err := h.Service.CreatePeriodPayment(r.Context(), fleet.PaymentRequest{
		AssignmentID:  req.AssignmentID,
		PeriodStart:   start,
		PeriodEnd:     end,
		DueDate:       due,
		InvoiceNumber: req.InvoiceNumber,
		Status:        status,
		PaidDate:      paidDate,
	})
	if err != nil {
		writeDomainError(w, "Failed to create payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(*payment))
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Store.ListPayments(r.Context(), r.URL.Query().Get("assignment_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(*p))
}

// MarkPaymentPaid transitions a pending payment to paid.
func (h *Handler) MarkPaymentPaid(w http.ResponseWriter, r *http.Request) {
	paidDate, ok := parsePaidDate(w, r)
	if !ok {
		return
	}
	if err := h.Service.MarkPaymentPaid(r.Context(), chi.URLParam(r, "id"), paidDate); err != nil {
		writeDomainError(w, "Failed to mark payment paid", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// BuildInvoice runs billing for a customer's project over a period and
// persists the resulting invoice.
func (h *Handler) BuildInvoice(w http.ResponseWriter, r *http.Request) {
	var req BuildInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, end, ok := parsePeriod(w, req.PeriodStart, req.PeriodEnd)
	if !ok {
		return
	}
	due, err := billing.ParseDate(req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid due_date", err)
		return
	}
	taxRate, err := parseOptionalDecimal(req.SalesTaxRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sales_tax_rate", err)
		return
	}
	adjustment, err := parseOptionalDecimal(req.Adjustment)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid adjustment", err)
		return
	}

	var extras []fleet.LineExtra
	for _, e := range req.Extras {
		mob, err := parseOptionalDecimal(e.Mobilization)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid mobilization", err)
			return
		}
		demob, err := parseOptionalDecimal(e.Demobilization)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid demobilization", err)
			return
		}
		extras = append(extras, fleet.LineExtra{
			VehicleID:      e.VehicleID,
			Mobilization:   mob,
			Demobilization: demob,
		})
	}

	invoice, err := h.Service.BuildInvoice(r.Context(), fleet.InvoiceRequest{
		CustomerID:   req.CustomerID,
		ProjectID:    req.ProjectID,
		PeriodStart:  start,
		PeriodEnd:    end,
		DueDate:      due,
		SalesTaxRate: taxRate,
		Adjustment:   adjustment,
		Extras:       extras,
	})
	if err != nil {
		writeDomainError(w, "Failed to build invoice", err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceDTO(*invoice))
}

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.Store.ListInvoices(r.Context(), r.URL.Query().Get("customer_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}

	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Store.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(*inv))
}

// MarkInvoicePaid transitions a pending invoice to paid.
func (h *Handler) MarkInvoicePaid(w http.ResponseWriter, r *http.Request) {
	paidDate, ok := parsePaidDate(w, r)
	if !ok {
		return
	}
	if err := h.Service.MarkInvoicePaid(r.Context(), chi.URLParam(r, "id"), paidDate); err != nil {
		writeDomainError(w, "Failed to mark invoice paid", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func parsePeriod(w http.ResponseWriter, startStr, endStr string) (billing.Date, billing.Date, bool) {
	start, err := billing.ParseDate(startStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_start", err)
		return billing.Date{}, billing.Date{}, false
	}
	end, err := billing.ParseDate(endStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_end", err)
		return billing.Date{}, billing.Date{}, false
	}
	return start, end, true
}

// parsePaidDate reads the paid date from the body, defaulting to today when
// the body is empty.
func parsePaidDate(w http.ResponseWriter, r *http.Request) (billing.Date, bool) {
	var req MarkPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return billing.Date{}, false
	}
	if req.PaidDate == "" {
		return billing.Today(), true
	}
	d, err := billing.ParseDate(req.PaidDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paid_date", err)
		return billing.Date{}, false
	}
	return d, true
}

func parseOptionalDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// writeDomainError maps domain errors onto HTTP statuses:
// 400 invalid range, 404 not found, 409 duplicate / non-pending transition,
// 422 period out of assignment bounds, empty billing run, or extra charges
// with no line to attach to, 500 otherwise.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, billing.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, billing.ErrNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, billing.ErrDuplicatePayment), errors.Is(err, fleet.ErrNotPending):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, billing.ErrPeriodOutOfBounds), errors.Is(err, billing.ErrEmptyInvoice),
		errors.Is(err, fleet.ErrUnmatchedExtra):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
