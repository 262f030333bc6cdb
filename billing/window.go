/*
window.go - Attendance window resolution

PURPOSE:
  Resolves which calendar days in a period count as present, off, standby,
  maintenance, or unrecorded for one vehicle, from a day-keyed attendance log.
  The resolved window is the input to the period payment calculator.

POLICY:
  A day with no attendance record is "unrecorded", NOT defaulted to present.
  Attendance must be explicitly recorded to be billable. When a project is
  supplied, records stamped with a different non-empty project belong to
  another stint and are excluded.

SEE ALSO:
  - calculator.go: consumes the resolved window
  - types.go: AttendanceStatus and billability
*/
package billing

// Window maps each day of a period to its resolved attendance status.
type Window struct {
	VehicleID string
	ProjectID string
	Period    Period
	Statuses  map[Date]AttendanceStatus
}

// ResolveWindow resolves the attendance status of every day in [start, end]
// for a vehicle. projectID may be empty to accept records from any stint.
// Pure function over the supplied records; fetching them is the store's job.
func ResolveWindow(vehicleID, projectID string, start, end Date, records []AttendanceRecord) (Window, error) {
	period, err := NewPeriod(start, end)
	if err != nil {
		return Window{}, err
	}

	byDate := make(map[Date]AttendanceStatus, len(records))
	for _, rec := range records {
		if rec.VehicleID != vehicleID {
			continue
		}
		// A record stamped with a different project belongs to another
		// stint. Records with no project apply regardless.
		if projectID != "" && rec.ProjectID != "" && rec.ProjectID != projectID {
			continue
		}
		byDate[rec.Date.Key()] = rec.Status
	}

	statuses := make(map[Date]AttendanceStatus, period.TotalDays())
	for _, day := range period.Days() {
		status, ok := byDate[day]
		if !ok {
			status = StatusUnrecorded
		}
		statuses[day] = status
	}

	return Window{
		VehicleID: vehicleID,
		ProjectID: projectID,
		Period:    period,
		Statuses:  statuses,
	}, nil
}

// StatusOn returns the resolved status for a day. Days outside the window
// resolve to unrecorded.
func (w Window) StatusOn(d Date) AttendanceStatus {
	status, ok := w.Statuses[d.Key()]
	if !ok {
		return StatusUnrecorded
	}
	return status
}

// BillableDays counts present + standby days in the whole window.
func (w Window) BillableDays() int {
	return w.BillableDaysIn(w.Period)
}

// BillableDaysIn counts present + standby days within a sub-range of the
// window. Days outside the window contribute nothing.
func (w Window) BillableDaysIn(p Period) int {
	count := 0
	for _, day := range p.Days() {
		if w.StatusOn(day).Billable() {
			count++
		}
	}
	return count
}
