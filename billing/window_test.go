package billing_test

import (
	"errors"
	"testing"
	"time"

	"github.com/fleetyard/fleet-billing/billing"
)

// =============================================================================
// WINDOW RESOLUTION TESTS
// =============================================================================

func attendance(vehicleID, projectID string, d billing.Date, status billing.AttendanceStatus) billing.AttendanceRecord {
	return billing.AttendanceRecord{
		VehicleID: vehicleID,
		ProjectID: projectID,
		Date:      d,
		Status:    status,
	}
}

func TestResolveWindow_InvalidRange_Fails(t *testing.T) {
	_, err := billing.ResolveWindow("veh-1", "",
		date(2024, time.March, 10), date(2024, time.March, 1), nil)
	if !errors.Is(err, billing.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestResolveWindow_UnrecordedDaysAreNotBillable(t *testing.T) {
	// GIVEN: Attendance recorded for only 2 of 5 days
	records := []billing.AttendanceRecord{
		attendance("veh-1", "", date(2024, time.March, 1), billing.StatusPresent),
		attendance("veh-1", "", date(2024, time.March, 3), billing.StatusPresent),
	}

	// WHEN: Resolving the full 5-day window
	w, err := billing.ResolveWindow("veh-1", "",
		date(2024, time.March, 1), date(2024, time.March, 5), records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// THEN: Unrecorded days resolve to unrecorded and are excluded from billing
	if got := w.StatusOn(date(2024, time.March, 2)); got != billing.StatusUnrecorded {
		t.Errorf("expected unrecorded for March 2, got %s", got)
	}
	if got := w.BillableDays(); got != 2 {
		t.Errorf("expected 2 billable days, got %d", got)
	}
	if len(w.Statuses) != 5 {
		t.Errorf("expected a status for every day in range, got %d", len(w.Statuses))
	}
}

func TestResolveWindow_StandbyIsBillable_OffAndMaintenanceAreNot(t *testing.T) {
	records := []billing.AttendanceRecord{
		attendance("veh-1", "", date(2024, time.March, 1), billing.StatusPresent),
		attendance("veh-1", "", date(2024, time.March, 2), billing.StatusStandby),
		attendance("veh-1", "", date(2024, time.March, 3), billing.StatusOff),
		attendance("veh-1", "", date(2024, time.March, 4), billing.StatusMaintenance),
	}

	w, err := billing.ResolveWindow("veh-1", "",
		date(2024, time.March, 1), date(2024, time.March, 4), records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := w.BillableDays(); got != 2 {
		t.Errorf("expected 2 billable days (present + standby), got %d", got)
	}
}

func TestResolveWindow_OtherProjectRecordsExcluded(t *testing.T) {
	// GIVEN: The vehicle worked project A on day 1, project B on day 2,
	// and an unstamped day 3
	records := []billing.AttendanceRecord{
		attendance("veh-1", "proj-a", date(2024, time.March, 1), billing.StatusPresent),
		attendance("veh-1", "proj-b", date(2024, time.March, 2), billing.StatusPresent),
		attendance("veh-1", "", date(2024, time.March, 3), billing.StatusPresent),
	}

	// WHEN: Resolving for project A
	w, err := billing.ResolveWindow("veh-1", "proj-a",
		date(2024, time.March, 1), date(2024, time.March, 3), records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// THEN: The project-B day is excluded; the unstamped day applies
	if got := w.StatusOn(date(2024, time.March, 2)); got != billing.StatusUnrecorded {
		t.Errorf("expected project-B day to resolve unrecorded, got %s", got)
	}
	if got := w.BillableDays(); got != 2 {
		t.Errorf("expected 2 billable days, got %d", got)
	}
}

func TestResolveWindow_NoProjectFilter_AcceptsAllStints(t *testing.T) {
	records := []billing.AttendanceRecord{
		attendance("veh-1", "proj-a", date(2024, time.March, 1), billing.StatusPresent),
		attendance("veh-1", "proj-b", date(2024, time.March, 2), billing.StatusPresent),
	}

	w, err := billing.ResolveWindow("veh-1", "",
		date(2024, time.March, 1), date(2024, time.March, 2), records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := w.BillableDays(); got != 2 {
		t.Errorf("expected 2 billable days without project filter, got %d", got)
	}
}

func TestResolveWindow_OtherVehicleRecordsIgnored(t *testing.T) {
	records := []billing.AttendanceRecord{
		attendance("veh-2", "", date(2024, time.March, 1), billing.StatusPresent),
	}

	w, err := billing.ResolveWindow("veh-1", "",
		date(2024, time.March, 1), date(2024, time.March, 1), records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := w.BillableDays(); got != 0 {
		t.Errorf("expected 0 billable days, got %d", got)
	}
}

func TestWindow_BillableDaysIn_SubRange(t *testing.T) {
	var records []billing.AttendanceRecord
	for day := 1; day <= 10; day++ {
		records = append(records,
			attendance("veh-1", "", date(2024, time.March, day), billing.StatusPresent))
	}

	w, err := billing.ResolveWindow("veh-1", "",
		date(2024, time.March, 1), date(2024, time.March, 10), records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub := mustPeriod(t, date(2024, time.March, 4), date(2024, time.March, 6))
	if got := w.BillableDaysIn(sub); got != 3 {
		t.Errorf("expected 3 billable days in sub-range, got %d", got)
	}
}
