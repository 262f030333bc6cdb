// Package memory provides an in-memory fleet.Store for testing and dev.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fleetyard/fleet-billing/billing"
	"github.com/fleetyard/fleet-billing/fleet"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu sync.RWMutex

	owners      map[string]fleet.Owner
	vehicles    map[string]fleet.Vehicle
	projects    map[string]fleet.Project
	customers   map[string]fleet.Customer
	maintenance map[string][]fleet.MaintenanceRecord // keyed by vehicle ID

	assignments map[string]billing.Assignment
	attendance  map[attendanceKey]billing.AttendanceRecord
	payments    map[string]fleet.PeriodPayment
	paymentKeys map[paymentKey]string // uniqueness guard -> payment ID
	invoices    map[string]fleet.CustomerInvoice
}

type attendanceKey struct {
	VehicleID string
	Date      billing.Date
}

type paymentKey struct {
	AssignmentID string
	PeriodStart  billing.Date
	PeriodEnd    billing.Date
}

func New() *Store {
	return &Store{
		owners:      make(map[string]fleet.Owner),
		vehicles:    make(map[string]fleet.Vehicle),
		projects:    make(map[string]fleet.Project),
		customers:   make(map[string]fleet.Customer),
		maintenance: make(map[string][]fleet.MaintenanceRecord),
		assignments: make(map[string]billing.Assignment),
		attendance:  make(map[attendanceKey]billing.AttendanceRecord),
		payments:    make(map[string]fleet.PeriodPayment),
		paymentKeys: make(map[paymentKey]string),
		invoices:    make(map[string]fleet.CustomerInvoice),
	}
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (s *Store) SaveOwner(_ context.Context, o fleet.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[o.ID] = o
	return nil
}

func (s *Store) GetOwner(_ context.Context, id string) (*fleet.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.owners[id]
	if !ok {
		return nil, billing.ErrNotFound
	}
	return &o, nil
}

func (s *Store) ListOwners(_ context.Context) ([]fleet.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fleet.Owner, 0, len(s.owners))
	for _, o := range s.owners {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteOwner(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[id]; !ok {
		return billing.ErrNotFound
	}
	delete(s.owners, id)
	return nil
}

func (s *Store) SaveVehicle(_ context.Context, v fleet.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicles[v.ID] = v
	return nil
}

func (s *Store) GetVehicle(_ context.Context, id string) (*fleet.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[id]
	if !ok {
		return nil, billing.ErrNotFound
	}
	return &v, nil
}

func (s *Store) ListVehicles(_ context.Context) ([]fleet.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fleet.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteVehicle(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vehicles[id]; !ok {
		return billing.ErrNotFound
	}
	delete(s.vehicles, id)
	return nil
}

func (s *Store) SaveProject(_ context.Context, p fleet.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
	return nil
}

func (s *Store) GetProject(_ context.Context, id string) (*fleet.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, billing.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListProjects(_ context.Context) ([]fleet.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fleet.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return billing.ErrNotFound
	}
	delete(s.projects, id)
	return nil
}

func (s *Store) SaveCustomer(_ context.Context, c fleet.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
	return nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*fleet.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, billing.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]fleet.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fleet.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return billing.ErrNotFound
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) SaveMaintenance(_ context.Context, m fleet.MaintenanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maintenance[m.VehicleID] = append(s.maintenance[m.VehicleID], m)
	return nil
}

func (s *Store) ListMaintenance(_ context.Context, vehicleID string) ([]fleet.MaintenanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fleet.MaintenanceRecord, len(s.maintenance[vehicleID]))
	copy(out, s.maintenance[vehicleID])
	return out, nil
}

// =============================================================================
// ASSIGNMENTS + ATTENDANCE
// =============================================================================

func (s *Store) SaveAssignment(_ context.Context, a billing.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[a.ID] = a
	return nil
}

func (s *Store) GetAssignment(_ context.Context, id string) (*billing.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[id]
	if !ok {
		return nil, billing.ErrNotFound
	}
	return &a, nil
}

func (s *Store) ListAssignments(_ context.Context) ([]billing.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]billing.Assignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListAssignmentsByProject(_ context.Context, projectID string) ([]billing.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []billing.Assignment
	for _, a := range s.assignments {
		if a.ProjectID == projectID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveAttendance upserts on (vehicle, date).
func (s *Store) SaveAttendance(_ context.Context, rec billing.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attendance[attendanceKey{VehicleID: rec.VehicleID, Date: rec.Date.Key()}] = rec
	return nil
}

func (s *Store) GetAttendance(_ context.Context, vehicleID string, from, to billing.Date) ([]billing.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []billing.AttendanceRecord
	for k, rec := range s.attendance {
		if k.VehicleID != vehicleID {
			continue
		}
		if k.Date.AfterOrEqual(from) && k.Date.BeforeOrEqual(to) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) CreatePayment(_ context.Context, p fleet.PeriodPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := paymentKey{
		AssignmentID: p.AssignmentID,
		PeriodStart:  p.PeriodStart.Key(),
		PeriodEnd:    p.PeriodEnd.Key(),
	}
	if _, exists := s.paymentKeys[k]; exists {
		return &billing.DuplicatePaymentError{
			AssignmentID: p.AssignmentID,
			PeriodStart:  p.PeriodStart,
			PeriodEnd:    p.PeriodEnd,
		}
	}

	s.payments[p.ID] = p
	s.paymentKeys[k] = p.ID
	return nil
}

func (s *Store) GetPayment(_ context.Context, id string) (*fleet.PeriodPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, billing.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListPayments(_ context.Context, assignmentID string) ([]fleet.PeriodPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []fleet.PeriodPayment
	for _, p := range s.payments {
		if assignmentID == "" || p.AssignmentID == assignmentID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) MarkPaymentPaid(_ context.Context, id string, paidDate billing.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return billing.ErrNotFound
	}
	if p.Status != fleet.PaymentPending {
		return fleet.ErrNotPending
	}
	p.Status = fleet.PaymentPaid
	p.PaidDate = &paidDate
	s.payments[id] = p
	return nil
}

// =============================================================================
// INVOICES
// =============================================================================

func (s *Store) CreateInvoice(_ context.Context, inv fleet.CustomerInvoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]fleet.InvoiceLine, len(inv.Lines))
	copy(lines, inv.Lines)
	inv.Lines = lines
	s.invoices[inv.ID] = inv
	return nil
}

func (s *Store) GetInvoice(_ context.Context, id string) (*fleet.CustomerInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, billing.ErrNotFound
	}
	lines := make([]fleet.InvoiceLine, len(inv.Lines))
	copy(lines, inv.Lines)
	inv.Lines = lines
	return &inv, nil
}

func (s *Store) ListInvoices(_ context.Context, customerID string) ([]fleet.CustomerInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []fleet.CustomerInvoice
	for _, inv := range s.invoices {
		if customerID == "" || inv.CustomerID == customerID {
			inv.Lines = nil
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) MarkInvoicePaid(_ context.Context, id string, paidDate billing.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return billing.ErrNotFound
	}
	if inv.Status != fleet.InvoicePending {
		return fleet.ErrNotPending
	}
	inv.Status = fleet.InvoicePaid
	inv.PaidDate = &paidDate
	s.invoices[id] = inv
	return nil
}
