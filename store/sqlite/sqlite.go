/*
Package sqlite provides the SQLite-backed implementation of fleet.Store.

PURPOSE:
  Persists the full fleet domain - directory entities, assignments,
  attendance, payments, invoices - behind the interfaces in fleet/stores.go.
  The same patterns apply to PostgreSQL; only minor SQL dialect differences.

KEY TABLES:
  owners, vehicles, projects, customers: directory CRUD
  assignments:   vehicle-to-project bindings at a monthly rate
  attendance:    one row per (vehicle, date), upserted
  payments:      computed period payments, UNIQUE per (assignment, period)
  invoices:      billing run output; invoice_lines owned via FK CASCADE
  maintenance:   vehicle service history

UNIQUENESS ENFORCEMENT:
  Two invariants live in the schema, not in application code:
  - idx_attendance_vehicle_date: one attendance row per vehicle+date
  - idx_payments_assignment_period: no duplicate payment for the same
    assignment and period, so concurrent create requests can't race past an
    application-level check

STORAGE CONVENTIONS:
  Dates as TEXT YYYY-MM-DD, timestamps as TEXT RFC3339, currency amounts as
  TEXT decimal strings (never REAL - floats drift).

WAL MODE:
  SQLite is opened with WAL and foreign keys on. Multiple readers don't
  block; a single writer at a time.

SEE ALSO:
  - fleet/stores.go: interface definitions
  - store/memory/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fleetyard/fleet-billing/billing"
	"github.com/fleetyard/fleet-billing/fleet"
)

// Store implements fleet.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS owners (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		email TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS vehicles (
		id TEXT PRIMARY KEY,
		owner_id TEXT,
		plate_number TEXT NOT NULL,
		make TEXT,
		model TEXT,
		year INTEGER,
		kind TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_vehicles_owner ON vehicles(owner_id);

	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		contact_name TEXT,
		phone TEXT,
		email TEXT,
		tax_number TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		name TEXT NOT NULL,
		location TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_projects_customer ON projects(customer_id);

	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		monthly_rate TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_project ON assignments(project_id);
	CREATE INDEX IF NOT EXISTS idx_assignments_vehicle ON assignments(vehicle_id);

	CREATE TABLE IF NOT EXISTS attendance (
		vehicle_id TEXT NOT NULL,
		project_id TEXT,
		date TEXT NOT NULL,
		status TEXT NOT NULL,
		note TEXT,
		created_at TEXT NOT NULL
	);

	-- One attendance row per vehicle per day. Re-recording a day replaces
	-- the earlier status via upsert on this index.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_vehicle_date
		ON attendance(vehicle_id, date);

	CREATE TABLE IF NOT EXISTS maintenance (
		id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL,
		date TEXT NOT NULL,
		description TEXT,
		cost TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_maintenance_vehicle ON maintenance(vehicle_id);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		assignment_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		due_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		paid_date TEXT,
		invoice_number TEXT,
		daily_rate TEXT NOT NULL,
		total_days INTEGER NOT NULL,
		present_days INTEGER NOT NULL,
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: no duplicate payment for the same assignment and period.
	-- Concurrent create requests for the same period cannot both commit.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_assignment_period
		ON payments(assignment_id, period_start, period_end);

	CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		due_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		paid_date TEXT,
		subtotal TEXT NOT NULL,
		adjustment TEXT NOT NULL DEFAULT '0',
		sales_tax_rate TEXT NOT NULL DEFAULT '0',
		sales_tax_amount TEXT NOT NULL DEFAULT '0',
		total TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_customer ON invoices(customer_id);
	CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(status);

	CREATE TABLE IF NOT EXISTS invoice_lines (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		vehicle_id TEXT NOT NULL,
		label TEXT NOT NULL,
		monthly_rate TEXT NOT NULL,
		present_days INTEGER NOT NULL,
		daily_rate TEXT NOT NULL,
		mobilization TEXT NOT NULL DEFAULT '0',
		demobilization TEXT NOT NULL DEFAULT '0',
		amount TEXT NOT NULL,
		sales_tax_amount TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		line_order INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_invoice_lines_invoice ON invoice_lines(invoice_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// OWNERS
// =============================================================================

func (s *Store) SaveOwner(ctx context.Context, o fleet.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO owners (id, name, phone, email, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, phone=excluded.phone, email=excluded.email
	`, o.ID, o.Name, o.Phone, o.Email, createdAt(o.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save owner: %w", err)
	}
	return nil
}

func (s *Store) GetOwner(ctx context.Context, id string) (*fleet.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var o fleet.Owner
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, phone, email, created_at FROM owners WHERE id = ?`, id,
	).Scan(&o.ID, &o.Name, &o.Phone, &o.Email, &created)
	if err == sql.ErrNoRows {
		return nil, billing.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get owner: %w", err)
	}
	o.CreatedAt = parseTimestamp(created)
	return &o, nil
}

func (s *Store) ListOwners(ctx context.Context) ([]fleet.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, phone, email, created_at FROM owners ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	defer rows.Close()

	var out []fleet.Owner
	for rows.Next() {
		var o fleet.Owner
		var created string
		if err := rows.Scan(&o.ID, &o.Name, &o.Phone, &o.Email, &created); err != nil {
			return nil, err
		}
		o.CreatedAt = parseTimestamp(created)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) DeleteOwner(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "owners", id)
}

// =============================================================================
// VEHICLES
// =============================================================================

func (s *Store) SaveVehicle(ctx context.Context, v fleet.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vehicles (id, owner_id, plate_number, make, model, year, kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id=excluded.owner_id, plate_number=excluded.plate_number,
			make=excluded.make, model=excluded.model, year=excluded.year, kind=excluded.kind
	`, v.ID, v.OwnerID, v.PlateNumber, v.Make, v.Model, v.Year, v.Kind, createdAt(v.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save vehicle: %w", err)
	}
	return nil
}

func (s *Store) GetVehicle(ctx context.Context, id string) (*fleet.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v fleet.Vehicle
	var created string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, plate_number, make, model, year, kind, created_at
		FROM vehicles WHERE id = ?`, id,
	).Scan(&v.ID, &v.OwnerID, &v.PlateNumber, &v.Make, &v.Model, &v.Year, &v.Kind, &created)
	if err == sql.ErrNoRows {
		return nil, billing.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}
	v.CreatedAt = parseTimestamp(created)
	return &v, nil
}

func (s *Store) ListVehicles(ctx context.Context) ([]fleet.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, plate_number, make, model, year, kind, created_at
		FROM vehicles ORDER BY plate_number`)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	defer rows.Close()

	var out []fleet.Vehicle
	for rows.Next() {
		var v fleet.Vehicle
		var created string
		if err := rows.Scan(&v.ID, &v.OwnerID, &v.PlateNumber, &v.Make, &v.Model, &v.Year, &v.Kind, &created); err != nil {
			return nil, err
		}
		v.CreatedAt = parseTimestamp(created)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) DeleteVehicle(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "vehicles", id)
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (s *Store) SaveCustomer(ctx context.Context, c fleet.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, contact_name, phone, email, tax_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, contact_name=excluded.contact_name,
			phone=excluded.phone, email=excluded.email, tax_number=excluded.tax_number
	`, c.ID, c.Name, c.ContactName, c.Phone, c.Email, c.TaxNumber, createdAt(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*fleet.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c fleet.Customer
	var created string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, contact_name, phone, email, tax_number, created_at
		FROM customers WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.ContactName, &c.Phone, &c.Email, &c.TaxNumber, &created)
	if err == sql.ErrNoRows {
		return nil, billing.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	c.CreatedAt = parseTimestamp(created)
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]fleet.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, contact_name, phone, email, tax_number, created_at
		FROM customers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var out []fleet.Customer
	for rows.Next() {
		var c fleet.Customer
		var created string
		if err := rows.Scan(&c.ID, &c.Name, &c.ContactName, &c.Phone, &c.Email, &c.TaxNumber, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTimestamp(created)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "customers", id)
}

// =============================================================================
// PROJECTS
// =============================================================================

func (s *Store) SaveProject(ctx context.Context, p fleet.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, customer_id, name, location, start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer_id=excluded.customer_id, name=excluded.name,
			location=excluded.location, start_date=excluded.start_date, end_date=excluded.end_date
	`, p.ID, p.CustomerID, p.Name, p.Location, p.StartDate.String(), nullDate(p.EndDate), createdAt(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*fleet.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p fleet.Project
	var start, created string
	var end sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, name, location, start_date, end_date, created_at
		FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.CustomerID, &p.Name, &p.Location, &start, &end, &created)
	if err == sql.ErrNoRows {
		return nil, billing.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	p.StartDate = parseDate(start)
	p.EndDate = parseNullDate(end)
	p.CreatedAt = parseTimestamp(created)
	return &p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]fleet.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, name, location, start_date, end_date, created_at
		FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []fleet.Project
	for rows.Next() {
		var p fleet.Project
		var start, created string
		var end sql.NullString
		if err := rows.Scan(&p.ID, &p.CustomerID, &p.Name, &p.Location, &start, &end, &created); err != nil {
			return nil, err
		}
		p.StartDate = parseDate(start)
		p.EndDate = parseNullDate(end)
		p.CreatedAt = parseTimestamp(created)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "projects", id)
}

// =============================================================================
// MAINTENANCE
// =============================================================================

func (s *Store) SaveMaintenance(ctx context.Context, m fleet.MaintenanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO maintenance (id, vehicle_id, date, description, cost, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date=excluded.date, description=excluded.description, cost=excluded.cost
	`, m.ID, m.VehicleID, m.Date.String(), m.Description, m.Cost.String(), createdAt(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save maintenance record: %w", err)
	}
	return nil
}

func (s *Store) ListMaintenance(ctx context.Context, vehicleID string) ([]fleet.MaintenanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vehicle_id, date, description, cost, created_at
		FROM maintenance WHERE vehicle_id = ? ORDER BY date`, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list maintenance: %w", err)
	}
	defer rows.Close()

	var out []fleet.MaintenanceRecord
	for rows.Next() {
		var m fleet.MaintenanceRecord
		var day, cost, created string
		if err := rows.Scan(&m.ID, &m.VehicleID, &day, &m.Description, &cost, &created); err != nil {
			return nil, err
		}
		m.Date = parseDate(day)
		m.Cost = billing.MustParseDecimal(cost)
		m.CreatedAt = parseTimestamp(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

func (s *Store) SaveAssignment(ctx context.Context, a billing.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assignments (id, vehicle_id, project_id, monthly_rate, start_date, end_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vehicle_id=excluded.vehicle_id, project_id=excluded.project_id,
			monthly_rate=excluded.monthly_rate, start_date=excluded.start_date,
			end_date=excluded.end_date, status=excluded.status
	`, a.ID, a.VehicleID, a.ProjectID, a.MonthlyRate.String(),
		a.StartDate.String(), nullDate(a.EndDate), string(a.Status),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save assignment: %w", err)
	}
	return nil
}

func (s *Store) GetAssignment(ctx context.Context, id string) (*billing.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, vehicle_id, project_id, monthly_rate, start_date, end_date, status
		FROM assignments WHERE id = ?`, id)

	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, billing.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

func (s *Store) ListAssignments(ctx context.Context) ([]billing.Assignment, error) {
	return s.queryAssignments(ctx, `
		SELECT id, vehicle_id, project_id, monthly_rate, start_date, end_date, status
		FROM assignments ORDER BY start_date`)
}

func (s *Store) ListAssignmentsByProject(ctx context.Context, projectID string) ([]billing.Assignment, error) {
	return s.queryAssignments(ctx, `
		SELECT id, vehicle_id, project_id, monthly_rate, start_date, end_date, status
		FROM assignments WHERE project_id = ? ORDER BY start_date`, projectID)
}

func (s *Store) queryAssignments(ctx context.Context, query string, args ...any) ([]billing.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var out []billing.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (*billing.Assignment, error) {
	var a billing.Assignment
	var monthlyRate, start, status string
	var end sql.NullString
	if err := row.Scan(&a.ID, &a.VehicleID, &a.ProjectID, &monthlyRate, &start, &end, &status); err != nil {
		return nil, err
	}
	a.MonthlyRate = billing.MustParseDecimal(monthlyRate)
	a.StartDate = parseDate(start)
	a.EndDate = parseNullDate(end)
	a.Status = billing.AssignmentStatus(status)
	return &a, nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// SaveAttendance upserts on (vehicle, date); the day-uniqueness invariant
// lives in idx_attendance_vehicle_date.
func (s *Store) SaveAttendance(ctx context.Context, rec billing.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance (vehicle_id, project_id, date, status, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(vehicle_id, date) DO UPDATE SET
			project_id=excluded.project_id, status=excluded.status, note=excluded.note
	`, rec.VehicleID, rec.ProjectID, rec.Date.String(), string(rec.Status), rec.Note,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save attendance: %w", err)
	}
	return nil
}

func (s *Store) GetAttendance(ctx context.Context, vehicleID string, from, to billing.Date) ([]billing.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT vehicle_id, project_id, date, status, note
		FROM attendance
		WHERE vehicle_id = ? AND date >= ? AND date <= ?
		ORDER BY date`, vehicleID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var out []billing.AttendanceRecord
	for rows.Next() {
		var rec billing.AttendanceRecord
		var day, status string
		if err := rows.Scan(&rec.VehicleID, &rec.ProjectID, &day, &status, &rec.Note); err != nil {
			return nil, err
		}
		rec.Date = parseDate(day)
		rec.Status = billing.AttendanceStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) CreatePayment(ctx context.Context, p fleet.PeriodPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments
		(id, assignment_id, period_start, period_end, due_date, status, paid_date,
		 invoice_number, daily_rate, total_days, present_days, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.AssignmentID, p.PeriodStart.String(), p.PeriodEnd.String(),
		p.DueDate.String(), string(p.Status), nullDate(p.PaidDate),
		nullString(p.InvoiceNumber), p.DailyRate.String(), p.TotalDays, p.PresentDays,
		p.Amount.String(), createdAt(p.CreatedAt))

	if err != nil {
		if isUniqueConstraintError(err) {
			return &billing.DuplicatePaymentError{
				AssignmentID: p.AssignmentID,
				PeriodStart:  p.PeriodStart,
				PeriodEnd:    p.PeriodEnd,
			}
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id string) (*fleet.PeriodPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, assignment_id, period_start, period_end, due_date, status, paid_date,
		       invoice_number, daily_rate, total_days, present_days, amount, created_at
		FROM payments WHERE id = ?`, id)

	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, billing.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

func (s *Store) ListPayments(ctx context.Context, assignmentID string) ([]fleet.PeriodPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, assignment_id, period_start, period_end, due_date, status, paid_date,
		       invoice_number, daily_rate, total_days, present_days, amount, created_at
		FROM payments`
	var args []any
	if assignmentID != "" {
		query += ` WHERE assignment_id = ?`
		args = append(args, assignmentID)
	}
	query += ` ORDER BY period_start`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var out []fleet.PeriodPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPayment(row rowScanner) (*fleet.PeriodPayment, error) {
	var p fleet.PeriodPayment
	var start, end, due, status, dailyRate, amount, created string
	var paid, invoiceNumber sql.NullString
	if err := row.Scan(&p.ID, &p.AssignmentID, &start, &end, &due, &status, &paid,
		&invoiceNumber, &dailyRate, &p.TotalDays, &p.PresentDays, &amount, &created); err != nil {
		return nil, err
	}
	p.PeriodStart = parseDate(start)
	p.PeriodEnd = parseDate(end)
	p.DueDate = parseDate(due)
	p.Status = fleet.PaymentStatus(status)
	p.PaidDate = parseNullDate(paid)
	p.InvoiceNumber = invoiceNumber.String
	p.DailyRate = billing.MustParseDecimal(dailyRate)
	p.Amount = billing.MustParseDecimal(amount)
	p.CreatedAt = parseTimestamp(created)
	return &p, nil
}

func (s *Store) MarkPaymentPaid(ctx context.Context, id string, paidDate billing.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markPaid(ctx, "payments", id, paidDate)
}

// =============================================================================
// INVOICES
// =============================================================================

// CreateInvoice writes the invoice and all its lines in one transaction.
func (s *Store) CreateInvoice(ctx context.Context, inv fleet.CustomerInvoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO invoices
		(id, customer_id, project_id, period_start, period_end, due_date, status, paid_date,
		 subtotal, adjustment, sales_tax_rate, sales_tax_amount, total, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, inv.ID, inv.CustomerID, inv.ProjectID, inv.PeriodStart.String(), inv.PeriodEnd.String(),
		inv.DueDate.String(), string(inv.Status), nullDate(inv.PaidDate),
		inv.Subtotal.String(), inv.Adjustment.String(), inv.SalesTaxRate.String(),
		inv.SalesTaxAmount.String(), inv.Total.String(), createdAt(inv.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	for i, line := range inv.Lines {
		_, err = sqlTx.ExecContext(ctx, `
			INSERT INTO invoice_lines
			(id, invoice_id, vehicle_id, label, monthly_rate, present_days, daily_rate,
			 mobilization, demobilization, amount, sales_tax_amount, total_amount, line_order)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, line.ID, inv.ID, line.VehicleID, line.Label, line.MonthlyRate.String(),
			line.PresentDays, line.DailyRate.String(), line.Mobilization.String(),
			line.Demobilization.String(), line.Amount.String(),
			line.SalesTaxAmount.String(), line.TotalAmount.String(), i)
		if err != nil {
			return fmt.Errorf("failed to create invoice line: %w", err)
		}
	}

	return sqlTx.Commit()
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*fleet.CustomerInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, project_id, period_start, period_end, due_date, status, paid_date,
		       subtotal, adjustment, sales_tax_rate, sales_tax_amount, total, created_at
		FROM invoices WHERE id = ?`, id)

	inv, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, billing.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_id, vehicle_id, label, monthly_rate, present_days, daily_rate,
		       mobilization, demobilization, amount, sales_tax_amount, total_amount
		FROM invoice_lines WHERE invoice_id = ? ORDER BY line_order`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line fleet.InvoiceLine
		var monthlyRate, dailyRate, mob, demob, amount, tax, total string
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.VehicleID, &line.Label,
			&monthlyRate, &line.PresentDays, &dailyRate, &mob, &demob,
			&amount, &tax, &total); err != nil {
			return nil, err
		}
		line.MonthlyRate = billing.MustParseDecimal(monthlyRate)
		line.DailyRate = billing.MustParseDecimal(dailyRate)
		line.Mobilization = billing.MustParseDecimal(mob)
		line.Demobilization = billing.MustParseDecimal(demob)
		line.Amount = billing.MustParseDecimal(amount)
		line.SalesTaxAmount = billing.MustParseDecimal(tax)
		line.TotalAmount = billing.MustParseDecimal(total)
		inv.Lines = append(inv.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, customerID string) ([]fleet.CustomerInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, customer_id, project_id, period_start, period_end, due_date, status, paid_date,
		       subtotal, adjustment, sales_tax_rate, sales_tax_amount, total, created_at
		FROM invoices`
	var args []any
	if customerID != "" {
		query += ` WHERE customer_id = ?`
		args = append(args, customerID)
	}
	query += ` ORDER BY period_start`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var out []fleet.CustomerInvoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func scanInvoice(row rowScanner) (*fleet.CustomerInvoice, error) {
	var inv fleet.CustomerInvoice
	var start, end, due, status, created string
	var paid sql.NullString
	var subtotal, adjustment, taxRate, taxAmount, total string
	if err := row.Scan(&inv.ID, &inv.CustomerID, &inv.ProjectID, &start, &end, &due,
		&status, &paid, &subtotal, &adjustment, &taxRate, &taxAmount, &total, &created); err != nil {
		return nil, err
	}
	inv.PeriodStart = parseDate(start)
	inv.PeriodEnd = parseDate(end)
	inv.DueDate = parseDate(due)
	inv.Status = fleet.InvoiceStatus(status)
	inv.PaidDate = parseNullDate(paid)
	inv.Subtotal = billing.MustParseDecimal(subtotal)
	inv.Adjustment = billing.MustParseDecimal(adjustment)
	inv.SalesTaxRate = billing.MustParseDecimal(taxRate)
	inv.SalesTaxAmount = billing.MustParseDecimal(taxAmount)
	inv.Total = billing.MustParseDecimal(total)
	inv.CreatedAt = parseTimestamp(created)
	return &inv, nil
}

func (s *Store) MarkInvoicePaid(ctx context.Context, id string, paidDate billing.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markPaid(ctx, "invoices", id, paidDate)
}

// =============================================================================
// HELPERS
// =============================================================================

// markPaid transitions pending -> paid. The WHERE status clause makes the
// transition atomic; zero rows affected means missing or not pending.
func (s *Store) markPaid(ctx context.Context, table, id string, paidDate billing.Date) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE `+table+` SET status = 'paid', paid_date = ? WHERE id = ? AND status = 'pending'`,
		paidDate.String(), id)
	if err != nil {
		return fmt.Errorf("failed to mark paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var count int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id).Scan(&count); err != nil {
			return err
		}
		if count == 0 {
			return billing.ErrNotFound
		}
		return fleet.ErrNotPending
	}
	return nil
}

func (s *Store) deleteByID(ctx context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return billing.ErrNotFound
	}
	return nil
}

func createdAt(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTimestamp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseDate(s string) billing.Date {
	d, _ := billing.ParseDate(s)
	return d
}

func nullDate(d *billing.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDate(ns sql.NullString) *billing.Date {
	if !ns.Valid {
		return nil
	}
	d := parseDate(ns.String)
	return &d
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
