package timesheet

import (
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
)

func newEntryResponse(e timesheet.Entry) timesheet.EntryResponse {
	return timesheet.EntryResponse{
		ID:          e.ID,
		TimesheetID: e.TimesheetID,
		EmployeeID:  e.EmployeeID,
		Date:        e.Date.Format(timesheet.DateLayout),
		StartTime:   e.StartTime.String(),
		EndTime:     e.EndTime.String(),
		Hours:       e.Hours(),
		EntryType:   e.EntryType.String(),
		Status:      string(e.Status),
		Source:      string(e.Source),
		Verified:    e.Verified,
		CompanyID:   e.CompanyID,
		CompanyName: e.CompanyName,
		Notes:       e.Notes,
		Location:    e.Location,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   e.UpdatedAt.Format(time.RFC3339),
	}
}

func newTimesheetResponse(ts timesheet.Timesheet, entries []timesheet.Entry, withEntries bool) timesheet.TimesheetResponse {
	resp := timesheet.TimesheetResponse{
		ID:           ts.ID,
		EmployeeID:   ts.EmployeeID,
		WeekStarting: ts.WeekStarting.Format(timesheet.DateLayout),
		WeekEnding:   ts.WeekEnding.Format(timesheet.DateLayout),
		Status:       string(ts.Status),
		AutoCreated:  ts.AutoCreated,
		EntryCount:   len(entries),
		CreatedAt:    ts.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    ts.UpdatedAt.Format(time.RFC3339),
	}
	for _, e := range entries {
		resp.TotalHours += e.Hours()
	}
	if withEntries {
		resp.Entries = make([]timesheet.EntryResponse, 0, len(entries))
		for _, e := range entries {
			resp.Entries = append(resp.Entries, newEntryResponse(e))
		}
	}
	return resp
}
