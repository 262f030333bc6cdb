/*
handlers_test.go - HTTP-level tests for the billing API

Tests run the chi router against the in-memory store: full request decode,
domain call, error mapping, and response encode per endpoint.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetyard/fleet-billing/billing"
	"github.com/fleetyard/fleet-billing/fleet"
	"github.com/fleetyard/fleet-billing/store/memory"
)

func newTestAPI(t *testing.T) (*chiTestClient, fleet.Store) {
	t.Helper()
	store := memory.New()
	router := NewRouter(NewHandler(store))
	return &chiTestClient{t: t, router: router}, store
}

type chiTestClient struct {
	t      *testing.T
	router http.Handler
}

func (c *chiTestClient) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func mustDate(t *testing.T, s string) billing.Date {
	t.Helper()
	d, err := billing.ParseDate(s)
	require.NoError(t, err)
	return d
}

// seedBillingFixture sets up one customer, project, vehicle, and an active
// assignment at 30000/month starting 2024-01-01, with January fully present.
func seedBillingFixture(t *testing.T, store fleet.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.SaveCustomer(ctx, fleet.Customer{ID: "cust-1", Name: "Granite Works"}))
	require.NoError(t, store.SaveProject(ctx, fleet.Project{
		ID: "proj-1", CustomerID: "cust-1", Name: "North Quarry",
		StartDate: mustDate(t, "2024-01-01"),
	}))
	require.NoError(t, store.SaveVehicle(ctx, fleet.Vehicle{ID: "veh-1", PlateNumber: "TRK-1"}))
	require.NoError(t, store.SaveAssignment(ctx, billing.Assignment{
		ID: "asg-1", VehicleID: "veh-1", ProjectID: "proj-1",
		MonthlyRate: billing.MustParseDecimal("30000"),
		StartDate:   mustDate(t, "2024-01-01"),
		Status:      billing.AssignmentActive,
	}))

	day := mustDate(t, "2024-01-01")
	for i := 0; i < 31; i++ {
		require.NoError(t, store.SaveAttendance(ctx, billing.AttendanceRecord{
			VehicleID: "veh-1", ProjectID: "proj-1",
			Date: day.AddDays(i), Status: billing.StatusPresent,
		}))
	}
}

// =============================================================================
// DIRECTORY
// =============================================================================

func TestOwnerEndpoints(t *testing.T) {
	client, _ := newTestAPI(t)

	// WHEN creating an owner without an ID
	rec := client.do("POST", "/api/owners", SaveOwnerRequest{Name: "Hauler Co"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[OwnerDTO](t, rec)
	assert.NotEmpty(t, created.ID)

	// THEN it is retrievable
	rec = client.do("GET", "/api/owners/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hauler Co", decode[OwnerDTO](t, rec).Name)

	// AND a missing ID maps to 404
	rec = client.do("GET", "/api/owners/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// AND a nameless owner is rejected
	rec = client.do("POST", "/api/owners", SaveOwnerRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordAttendanceValidation(t *testing.T) {
	client, _ := newTestAPI(t)

	rec := client.do("POST", "/api/attendance", RecordAttendanceRequest{
		VehicleID: "veh-1", Date: "2024-01-10", Status: "present",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	// unknown status
	rec = client.do("POST", "/api/attendance", RecordAttendanceRequest{
		VehicleID: "veh-1", Date: "2024-01-11", Status: "vacation",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// malformed date
	rec = client.do("POST", "/api/attendance", RecordAttendanceRequest{
		VehicleID: "veh-1", Date: "11/01/2024", Status: "present",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAttendanceRange(t *testing.T) {
	client, store := newTestAPI(t)
	seedBillingFixture(t, store)

	rec := client.do("GET", "/api/vehicles/veh-1/attendance?from=2024-01-01&to=2024-01-10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records := decode[[]AttendanceDTO](t, rec)
	assert.Len(t, records, 10)

	// reversed range
	rec = client.do("GET", "/api/vehicles/veh-1/attendance?from=2024-01-10&to=2024-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestCalculatePaymentPreview(t *testing.T) {
	client, store := newTestAPI(t)
	seedBillingFixture(t, store)

	// GIVEN a fully present January
	// WHEN previewing the payment
	rec := client.do("POST", "/api/payments/calculate", CalculatePaymentRequest{
		AssignmentID: "asg-1", PeriodStart: "2024-01-01", PeriodEnd: "2024-01-31",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	result := decode[PaymentResultDTO](t, rec)
	assert.Equal(t, "30000.00", result.Amount)
	assert.Equal(t, "967.74", result.DailyRate)
	assert.Equal(t, 31, result.PresentDays)
	require.Len(t, result.SubPeriods, 1)

	// AND nothing was persisted
	payments, err := store.ListPayments(context.Background(), "asg-1")
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestCalculatePaymentErrors(t *testing.T) {
	client, store := newTestAPI(t)
	seedBillingFixture(t, store)

	// unknown assignment
	rec := client.do("POST", "/api/payments/calculate", CalculatePaymentRequest{
		AssignmentID: "missing", PeriodStart: "2024-01-01", PeriodEnd: "2024-01-31",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// reversed period
	rec = client.do("POST", "/api/payments/calculate", CalculatePaymentRequest{
		AssignmentID: "asg-1", PeriodStart: "2024-01-31", PeriodEnd: "2024-01-01",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// period before the assignment starts
	rec = client.do("POST", "/api/payments/calculate", CalculatePaymentRequest{
		AssignmentID: "asg-1", PeriodStart: "2023-12-01", PeriodEnd: "2023-12-31",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPaymentLifecycle(t *testing.T) {
	client, store := newTestAPI(t)
	seedBillingFixture(t, store)

	create := CreatePaymentRequest{
		AssignmentID: "asg-1",
		PeriodStart:  "2024-01-01", PeriodEnd: "2024-01-31",
		DueDate: "2024-02-10", InvoiceNumber: "INV-001",
	}

	// WHEN creating the payment
	rec := client.do("POST", "/api/payments", create)
	require.Equal(t, http.StatusCreated, rec.Code)
	payment := decode[PaymentDTO](t, rec)
	assert.Equal(t, "30000.00", payment.Amount)
	assert.Equal(t, "pending", payment.Status)

	// THEN a second create for the same period conflicts
	rec = client.do("POST", "/api/payments", create)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// AND marking it paid succeeds exactly once
	rec = client.do("POST", "/api/payments/"+payment.ID+"/pay", MarkPaidRequest{PaidDate: "2024-02-08"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = client.do("POST", "/api/payments/"+payment.ID+"/pay", MarkPaidRequest{PaidDate: "2024-02-09"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = client.do("GET", "/api/payments/"+payment.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[PaymentDTO](t, rec)
	assert.Equal(t, "paid", got.Status)
	assert.Equal(t, "2024-02-08", got.PaidDate)

	// AND the list filter works
	rec = client.do("GET", "/api/payments?assignment_id=asg-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]PaymentDTO](t, rec), 1)
}

func TestCreatePaymentImportsSettled(t *testing.T) {
	client, store := newTestAPI(t)
	seedBillingFixture(t, store)

	// GIVEN a payment settled outside the system
	// WHEN importing it with status "paid" in one call
	rec := client.do("POST", "/api/payments", CreatePaymentRequest{
		AssignmentID: "asg-1",
		PeriodStart:  "2024-01-01", PeriodEnd: "2024-01-31",
		DueDate: "2024-02-10",
		Status:  "paid", PaidDate: "2024-02-03",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	payment := decode[PaymentDTO](t, rec)
	assert.Equal(t, "paid", payment.Status)
	assert.Equal(t, "2024-02-03", payment.PaidDate)

	// THEN it cannot be paid a second time
	rec = client.do("POST", "/api/payments/"+payment.ID+"/pay", MarkPaidRequest{PaidDate: "2024-02-04"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreatePaymentStatusValidation(t *testing.T) {
	client, store := newTestAPI(t)
	seedBillingFixture(t, store)

	base := CreatePaymentRequest{
		AssignmentID: "asg-1",
		PeriodStart:  "2024-01-01", PeriodEnd: "2024-01-31",
		DueDate: "2024-02-10",
	}

	// paid without a paid_date
	req := base
	req.Status = "paid"
	rec := client.do("POST", "/api/payments", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// paid_date without status "paid"
	req = base
	req.PaidDate = "2024-02-03"
	rec = client.do("POST", "/api/payments", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// unknown status
	req = base
	req.Status = "settled"
	rec = client.do("POST", "/api/payments", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// nothing persisted by the rejected requests
	payments, err := store.ListPayments(context.Background(), "asg-1")
	require.NoError(t, err)
	assert.Empty(t, payments)
}

// =============================================================================
// INVOICES
// =============================================================================

func TestBuildInvoiceEndpoint(t *testing.T) {
	client, store := newTestAPI(t)
	seedBillingFixture(t, store)

	rec := client.do("POST", "/api/invoices", BuildInvoiceRequest{
		CustomerID: "cust-1", ProjectID: "proj-1",
		PeriodStart: "2024-01-01", PeriodEnd: "2024-01-31",
		DueDate:      "2024-02-15",
		SalesTaxRate: "17",
		Adjustment:   "-500",
		Extras: []LineExtraDTO{
			{VehicleID: "veh-1", Mobilization: "1200", Demobilization: "800"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	inv := decode[InvoiceDTO](t, rec)
	// 30000 + 1200 + 800 = 32000 subtotal; tax 5440; total 32000 - 500 + 5440
	assert.Equal(t, "32000.00", inv.Subtotal)
	assert.Equal(t, "5440.00", inv.SalesTaxAmount)
	assert.Equal(t, "36940.00", inv.Total)
	require.Len(t, inv.Lines, 1)
	assert.Equal(t, "January 2024", inv.Lines[0].Label)
	assert.Equal(t, "1200.00", inv.Lines[0].Mobilization)

	// GET returns the persisted invoice with its lines
	rec = client.do("GET", "/api/invoices/"+inv.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[InvoiceDTO](t, rec)
	assert.Len(t, got.Lines, 1)
	assert.Equal(t, inv.Total, got.Total)

	// pay transition
	rec = client.do("POST", "/api/invoices/"+inv.ID+"/pay", MarkPaidRequest{PaidDate: "2024-02-20"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = client.do("POST", "/api/invoices/"+inv.ID+"/pay", MarkPaidRequest{PaidDate: "2024-02-21"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBuildInvoiceEmptyRun(t *testing.T) {
	client, store := newTestAPI(t)
	seedBillingFixture(t, store)

	// A period with no attendance and no extras yields no lines.
	rec := client.do("POST", "/api/invoices", BuildInvoiceRequest{
		CustomerID: "cust-1", ProjectID: "proj-1",
		PeriodStart: "2024-03-01", PeriodEnd: "2024-03-31",
		DueDate: "2024-04-15",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	invoices, err := store.ListInvoices(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

func TestBuildInvoiceUnmatchedExtras(t *testing.T) {
	client, store := newTestAPI(t)
	seedBillingFixture(t, store)

	// Extras for a vehicle with no line in the run must fail the request.
	rec := client.do("POST", "/api/invoices", BuildInvoiceRequest{
		CustomerID: "cust-1", ProjectID: "proj-1",
		PeriodStart: "2024-01-01", PeriodEnd: "2024-01-31",
		DueDate: "2024-02-15",
		Extras: []LineExtraDTO{
			{VehicleID: "veh-ghost", Mobilization: "500"},
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBuildInvoiceUnknownCustomer(t *testing.T) {
	client, store := newTestAPI(t)
	seedBillingFixture(t, store)

	rec := client.do("POST", "/api/invoices", BuildInvoiceRequest{
		CustomerID: "cust-missing", ProjectID: "proj-1",
		PeriodStart: "2024-01-01", PeriodEnd: "2024-01-31",
		DueDate: "2024-02-15",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
