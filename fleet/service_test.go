package fleet_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetyard/fleet-billing/billing"
	"github.com/fleetyard/fleet-billing/fleet"
	"github.com/fleetyard/fleet-billing/store/memory"
)

// =============================================================================
// TEST FIXTURE
// =============================================================================

func date(year int, month time.Month, day int) billing.Date {
	return billing.NewDate(year, month, day)
}

type fixture struct {
	store   *memory.Store
	service *fleet.Service
}

// newFixture seeds a customer, project, vehicle, and an active assignment at
// 30000/month starting 2024-01-01.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	require.NoError(t, store.SaveCustomer(ctx, fleet.Customer{ID: "cust-1", Name: "Acme Mining"}))
	require.NoError(t, store.SaveProject(ctx, fleet.Project{
		ID: "proj-1", CustomerID: "cust-1", Name: "North Quarry",
		StartDate: date(2024, time.January, 1),
	}))
	require.NoError(t, store.SaveVehicle(ctx, fleet.Vehicle{
		ID: "veh-1", OwnerID: "own-1", PlateNumber: "FL-001", Kind: "excavator",
	}))
	require.NoError(t, store.SaveAssignment(ctx, billing.Assignment{
		ID: "asg-1", VehicleID: "veh-1", ProjectID: "proj-1",
		MonthlyRate: billing.MustParseDecimal("30000"),
		StartDate:   date(2024, time.January, 1),
		Status:      billing.AssignmentActive,
	}))

	return &fixture{store: store, service: fleet.NewService(store)}
}

// recordPresent marks the vehicle present on every day of [start, end].
func (f *fixture) recordPresent(t *testing.T, vehicleID string, start, end billing.Date) {
	t.Helper()
	ctx := context.Background()
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		require.NoError(t, f.store.SaveAttendance(ctx, billing.AttendanceRecord{
			VehicleID: vehicleID, ProjectID: "proj-1", Date: d, Status: billing.StatusPresent,
		}))
	}
}

func janPayment() fleet.PaymentRequest {
	return fleet.PaymentRequest{
		AssignmentID: "asg-1",
		PeriodStart:  date(2024, time.January, 1),
		PeriodEnd:    date(2024, time.January, 31),
		DueDate:      date(2024, time.February, 10),
	}
}

// =============================================================================
// PERIOD PAYMENT ORCHESTRATION
// =============================================================================

func TestCalculatePeriodPayment_FullJanuary(t *testing.T) {
	f := newFixture(t)
	f.recordPresent(t, "veh-1", date(2024, time.January, 1), date(2024, time.January, 31))

	result, err := f.service.CalculatePeriodPayment(context.Background(), janPayment())
	require.NoError(t, err)

	assert.Equal(t, "30000.00", billing.Money(result.Amount))
	assert.Equal(t, 31, result.PresentDays)
}

func TestCalculatePeriodPayment_ReadOnly(t *testing.T) {
	f := newFixture(t)
	f.recordPresent(t, "veh-1", date(2024, time.January, 1), date(2024, time.January, 31))
	ctx := context.Background()

	_, err := f.service.CalculatePeriodPayment(ctx, janPayment())
	require.NoError(t, err)

	payments, err := f.store.ListPayments(ctx, "asg-1")
	require.NoError(t, err)
	assert.Empty(t, payments, "calculation must not persist anything")
}

func TestCalculatePeriodPayment_UnknownAssignment(t *testing.T) {
	f := newFixture(t)

	req := janPayment()
	req.AssignmentID = "asg-missing"
	_, err := f.service.CalculatePeriodPayment(context.Background(), req)
	assert.ErrorIs(t, err, billing.ErrNotFound)
}

func TestCalculatePeriodPayment_InvalidRange(t *testing.T) {
	f := newFixture(t)

	req := janPayment()
	req.PeriodStart, req.PeriodEnd = req.PeriodEnd, req.PeriodStart
	_, err := f.service.CalculatePeriodPayment(context.Background(), req)
	assert.ErrorIs(t, err, billing.ErrInvalidRange)
}

func TestCreatePeriodPayment_PersistsPendingPayment(t *testing.T) {
	f := newFixture(t)
	f.recordPresent(t, "veh-1", date(2024, time.January, 1), date(2024, time.January, 31))
	ctx := context.Background()

	payment, err := f.service.CreatePeriodPayment(ctx, janPayment())
	require.NoError(t, err)

	assert.NotEmpty(t, payment.ID)
	assert.Equal(t, fleet.PaymentPending, payment.Status)
	assert.Equal(t, "30000.00", billing.Money(payment.Amount))

	stored, err := f.store.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, 31, stored.PresentDays)
}

func TestCreatePeriodPayment_DuplicatePeriodRejected(t *testing.T) {
	// GIVEN: A payment already created for January
	f := newFixture(t)
	f.recordPresent(t, "veh-1", date(2024, time.January, 1), date(2024, time.January, 31))
	ctx := context.Background()

	_, err := f.service.CreatePeriodPayment(ctx, janPayment())
	require.NoError(t, err)

	// WHEN: Creating the same assignment+period again
	_, err = f.service.CreatePeriodPayment(ctx, janPayment())

	// THEN: The store's uniqueness guard rejects it
	require.Error(t, err)
	assert.ErrorIs(t, err, billing.ErrDuplicatePayment)

	payments, err := f.store.ListPayments(ctx, "asg-1")
	require.NoError(t, err)
	assert.Len(t, payments, 1, "no partial state from the rejected request")
}

func TestCreatePeriodPayment_ImportsSettledPayment(t *testing.T) {
	// GIVEN: A payment that was already settled outside the system
	f := newFixture(t)
	f.recordPresent(t, "veh-1", date(2024, time.January, 1), date(2024, time.January, 31))
	ctx := context.Background()

	paidOn := date(2024, time.February, 3)
	req := janPayment()
	req.Status = fleet.PaymentPaid
	req.PaidDate = &paidOn

	// WHEN: Importing it in one step
	payment, err := f.service.CreatePeriodPayment(ctx, req)
	require.NoError(t, err)

	// THEN: It is persisted already paid, and cannot be paid again
	stored, err := f.store.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, fleet.PaymentPaid, stored.Status)
	require.NotNil(t, stored.PaidDate)
	assert.True(t, stored.PaidDate.Equal(paidOn))

	err = f.service.MarkPaymentPaid(ctx, payment.ID, paidOn)
	assert.ErrorIs(t, err, fleet.ErrNotPending)
}

func TestCreatePeriodPayment_PaidImportRequiresPaidDate(t *testing.T) {
	f := newFixture(t)
	f.recordPresent(t, "veh-1", date(2024, time.January, 1), date(2024, time.January, 31))
	ctx := context.Background()

	req := janPayment()
	req.Status = fleet.PaymentPaid

	_, err := f.service.CreatePeriodPayment(ctx, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, billing.ErrInvalidRange)

	payments, listErr := f.store.ListPayments(ctx, "asg-1")
	require.NoError(t, listErr)
	assert.Empty(t, payments)
}

func TestMarkPaymentPaid_Transition(t *testing.T) {
	f := newFixture(t)
	f.recordPresent(t, "veh-1", date(2024, time.January, 1), date(2024, time.January, 31))
	ctx := context.Background()

	payment, err := f.service.CreatePeriodPayment(ctx, janPayment())
	require.NoError(t, err)

	paidOn := date(2024, time.February, 5)
	require.NoError(t, f.service.MarkPaymentPaid(ctx, payment.ID, paidOn))

	stored, err := f.store.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, fleet.PaymentPaid, stored.Status)
	require.NotNil(t, stored.PaidDate)
	assert.True(t, stored.PaidDate.Equal(paidOn))

	// Paying twice is rejected
	err = f.service.MarkPaymentPaid(ctx, payment.ID, paidOn)
	assert.ErrorIs(t, err, fleet.ErrNotPending)
}

// =============================================================================
// INVOICE BUILDS
// =============================================================================

func janFebInvoice() fleet.InvoiceRequest {
	return fleet.InvoiceRequest{
		CustomerID:   "cust-1",
		ProjectID:    "proj-1",
		PeriodStart:  date(2024, time.January, 1),
		PeriodEnd:    date(2024, time.February, 29),
		DueDate:      date(2024, time.March, 15),
		SalesTaxRate: billing.MustParseDecimal("17"),
		Adjustment:   decimal.Zero,
	}
}

func TestBuildInvoice_OneLinePerVehicleMonth(t *testing.T) {
	// GIVEN: One vehicle present through January and February 2024
	f := newFixture(t)
	f.recordPresent(t, "veh-1", date(2024, time.January, 1), date(2024, time.February, 29))
	ctx := context.Background()

	// WHEN: Building the two-month invoice
	invoice, err := f.service.BuildInvoice(ctx, janFebInvoice())
	require.NoError(t, err)

	// THEN: Two lines (one per month), each a full monthly rate
	require.Len(t, invoice.Lines, 2)
	assert.Equal(t, "January 2024", invoice.Lines[0].Label)
	assert.Equal(t, "February 2024", invoice.Lines[1].Label)
	assert.Equal(t, "30000.00", billing.Money(invoice.Lines[0].Amount))
	assert.Equal(t, "30000.00", billing.Money(invoice.Lines[1].Amount))

	assert.Equal(t, "60000.00", billing.Money(invoice.Subtotal))
	assert.Equal(t, "10200.00", billing.Money(invoice.SalesTaxAmount))
	assert.Equal(t, "70200.00", billing.Money(invoice.Total))
	assert.Equal(t, fleet.InvoicePending, invoice.Status)
}

func TestBuildInvoice_TotalsInvariant(t *testing.T) {
	f := newFixture(t)
	f.recordPresent(t, "veh-1", date(2024, time.January, 1), date(2024, time.February, 29))
	ctx := context.Background()

	req := janFebInvoice()
	req.Adjustment = billing.MustParseDecimal("-500")
	invoice, err := f.service.BuildInvoice(ctx, req)
	require.NoError(t, err)

	sum := invoice.Subtotal.Add(invoice.Adjustment).Add(invoice.SalesTaxAmount)
	assert.True(t, invoice.Total.Equal(sum))
}

func TestBuildInvoice_ExtrasAttachToFirstLine(t *testing.T) {
	f := newFixture(t)
	f.recordPresent(t, "veh-1", date(2024, time.January, 1), date(2024, time.February, 29))
	ctx := context.Background()

	req := janFebInvoice()
	req.Extras = []fleet.LineExtra{{
		VehicleID:      "veh-1",
		Mobilization:   billing.MustParseDecimal("1200"),
		Demobilization: billing.MustParseDecimal("800"),
	}}

	invoice, err := f.service.BuildInvoice(ctx, req)
	require.NoError(t, err)

	require.Len(t, invoice.Lines, 2)
	assert.Equal(t, "32000.00", billing.Money(invoice.Lines[0].Amount),
		"January carries the MOB/DIMOB charges")
	assert.Equal(t, "30000.00", billing.Money(invoice.Lines[1].Amount))
}

func TestBuildInvoice_ExtrasChargedOncePerVehicleAcrossStints(t *testing.T) {
	// GIVEN: The same vehicle assigned to the project in two separate
	// stints inside the invoice period
	f := newFixture(t)
	ctx := context.Background()
	janEnd := date(2024, time.January, 31)
	require.NoError(t, f.store.SaveAssignment(ctx, billing.Assignment{
		ID: "asg-1", VehicleID: "veh-1", ProjectID: "proj-1",
		MonthlyRate: billing.MustParseDecimal("30000"),
		StartDate:   date(2024, time.January, 1),
		EndDate:     &janEnd,
		Status:      billing.AssignmentCompleted,
	}))
	require.NoError(t, f.store.SaveAssignment(ctx, billing.Assignment{
		ID: "asg-2", VehicleID: "veh-1", ProjectID: "proj-1",
		MonthlyRate: billing.MustParseDecimal("30000"),
		StartDate:   date(2024, time.February, 1),
		Status:      billing.AssignmentActive,
	}))
	f.recordPresent(t, "veh-1", date(2024, time.January, 1), date(2024, time.February, 29))

	req := janFebInvoice()
	req.Extras = []fleet.LineExtra{{
		VehicleID:    "veh-1",
		Mobilization: billing.MustParseDecimal("1000"),
	}}

	// WHEN: Building the invoice across both stints
	invoice, err := f.service.BuildInvoice(ctx, req)
	require.NoError(t, err)

	// THEN: Mobilization lands on exactly one line, not once per stint
	require.Len(t, invoice.Lines, 2)
	total := decimal.Zero
	for _, line := range invoice.Lines {
		total = total.Add(line.Mobilization)
	}
	assert.Equal(t, "1000.00", billing.Money(total),
		"MOB must be charged once per vehicle per run")
}

func TestBuildInvoice_UnmatchedExtrasRejected(t *testing.T) {
	// GIVEN: Extras for a vehicle with no assignment on the project
	f := newFixture(t)
	f.recordPresent(t, "veh-1", date(2024, time.January, 1), date(2024, time.February, 29))
	ctx := context.Background()

	req := janFebInvoice()
	req.Extras = []fleet.LineExtra{{
		VehicleID:    "veh-ghost",
		Mobilization: billing.MustParseDecimal("500"),
	}}

	// WHEN/THEN: The run is rejected rather than silently dropping money
	_, err := f.service.BuildInvoice(ctx, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, fleet.ErrUnmatchedExtra)

	invoices, listErr := f.store.ListInvoices(ctx, "cust-1")
	require.NoError(t, listErr)
	assert.Empty(t, invoices, "nothing persisted on failure")
}

func TestBuildInvoice_ZeroValueUnmatchedExtrasTolerated(t *testing.T) {
	f := newFixture(t)
	f.recordPresent(t, "veh-1", date(2024, time.January, 1), date(2024, time.February, 29))
	ctx := context.Background()

	// All-zero extras carry no money, so nothing is lost by ignoring them.
	req := janFebInvoice()
	req.Extras = []fleet.LineExtra{{
		VehicleID:      "veh-ghost",
		Mobilization:   decimal.Zero,
		Demobilization: decimal.Zero,
	}}

	_, err := f.service.BuildInvoice(ctx, req)
	require.NoError(t, err)
}

func TestBuildInvoice_NoBillableDays_EmptyInvoiceError(t *testing.T) {
	// GIVEN: No attendance recorded at all
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.BuildInvoice(ctx, janFebInvoice())

	require.Error(t, err)
	assert.ErrorIs(t, err, billing.ErrEmptyInvoice)

	invoices, listErr := f.store.ListInvoices(ctx, "cust-1")
	require.NoError(t, listErr)
	assert.Empty(t, invoices, "nothing persisted on failure")
}

func TestBuildInvoice_CancelledAssignmentExcluded(t *testing.T) {
	f := newFixture(t)
	f.recordPresent(t, "veh-1", date(2024, time.January, 1), date(2024, time.January, 31))
	ctx := context.Background()

	// A second, cancelled assignment on the same project
	require.NoError(t, f.store.SaveVehicle(ctx, fleet.Vehicle{ID: "veh-2", PlateNumber: "FL-002"}))
	require.NoError(t, f.store.SaveAssignment(ctx, billing.Assignment{
		ID: "asg-2", VehicleID: "veh-2", ProjectID: "proj-1",
		MonthlyRate: billing.MustParseDecimal("20000"),
		StartDate:   date(2024, time.January, 1),
		Status:      billing.AssignmentCancelled,
	}))
	f.recordPresent(t, "veh-2", date(2024, time.January, 1), date(2024, time.January, 31))

	req := janFebInvoice()
	invoice, err := f.service.BuildInvoice(ctx, req)
	require.NoError(t, err)

	for _, line := range invoice.Lines {
		assert.NotEqual(t, "veh-2", line.VehicleID, "cancelled assignment must not bill")
	}
}

func TestBuildInvoice_ClampsToAssignmentWindow(t *testing.T) {
	// GIVEN: Assignment ends January 20 but the invoice period runs to
	// the end of February
	f := newFixture(t)
	ctx := context.Background()
	end := date(2024, time.January, 20)
	require.NoError(t, f.store.SaveAssignment(ctx, billing.Assignment{
		ID: "asg-1", VehicleID: "veh-1", ProjectID: "proj-1",
		MonthlyRate: billing.MustParseDecimal("30000"),
		StartDate:   date(2024, time.January, 1),
		EndDate:     &end,
		Status:      billing.AssignmentCompleted,
	}))
	f.recordPresent(t, "veh-1", date(2024, time.January, 1), date(2024, time.January, 31))

	invoice, err := f.service.BuildInvoice(ctx, janFebInvoice())
	require.NoError(t, err)

	// Only Jan 1-20 bills: 20 days at 30000/31
	require.Len(t, invoice.Lines, 1)
	assert.Equal(t, 20, invoice.Lines[0].PresentDays)
	assert.Equal(t, "19354.84", billing.Money(invoice.Lines[0].Amount))
}

func TestBuildInvoice_ProjectCustomerMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveCustomer(ctx, fleet.Customer{ID: "cust-2", Name: "Other"}))

	req := janFebInvoice()
	req.CustomerID = "cust-2"
	_, err := f.service.BuildInvoice(ctx, req)
	assert.ErrorIs(t, err, billing.ErrNotFound)
}

func TestMarkInvoicePaid_Transition(t *testing.T) {
	f := newFixture(t)
	f.recordPresent(t, "veh-1", date(2024, time.January, 1), date(2024, time.February, 29))
	ctx := context.Background()

	invoice, err := f.service.BuildInvoice(ctx, janFebInvoice())
	require.NoError(t, err)

	paidOn := date(2024, time.March, 1)
	require.NoError(t, f.service.MarkInvoicePaid(ctx, invoice.ID, paidOn))

	stored, err := f.store.GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, fleet.InvoicePaid, stored.Status)

	assert.ErrorIs(t, f.service.MarkInvoicePaid(ctx, invoice.ID, paidOn), fleet.ErrNotPending)
}
