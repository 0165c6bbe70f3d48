package timesheet

import (
	"time"
)

type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusSubmitted Status = "SUBMITTED"
	StatusApproved  Status = "APPROVED"
	StatusLocked    Status = "LOCKED"
)

// Valid reports whether s is part of the status vocabulary.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusSubmitted, StatusApproved, StatusLocked:
		return true
	}
	return false
}

type Source string

const (
	SourceLocal    Source = "LOCAL"
	SourceExternal Source = "EXTERNAL"
)

// Timesheet is a 7-day container of entries owned by one employee.
// Entries are not held here; they are looked up by TimesheetID.
type Timesheet struct {
	ID           string
	EmployeeID   string
	WeekStarting time.Time
	WeekEnding   time.Time
	Status       Status
	AutoCreated  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Window returns the inclusive date window of the timesheet.
func (t Timesheet) Window() Window {
	return Window{Start: t.WeekStarting, End: t.WeekEnding}
}

type Entry struct {
	ID          string
	TimesheetID string
	Date        time.Time
	StartTime   ClockTime
	EndTime     ClockTime
	EntryType   EntryType
	Status      Status
	Source      Source
	Verified    bool
	CompanyID   string
	CompanyName string
	Notes       *string
	Location    *string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Join
	EmployeeID string
}

// Hours is the derived duration of the entry.
func (e Entry) Hours() float64 {
	return float64(e.EndTime.Minutes()-e.StartTime.Minutes()) / 60.0
}

// Signature identifies an entry for duplicate detection across sources.
type Signature struct {
	EmployeeID string
	Date       string
	Start      ClockTime
	End        ClockTime
	CompanyID  string
}

func (e Entry) Signature() Signature {
	return Signature{
		EmployeeID: e.EmployeeID,
		Date:       e.Date.Format(DateLayout),
		Start:      e.StartTime,
		End:        e.EndTime,
		CompanyID:  e.CompanyID,
	}
}

// Window is an inclusive range of calendar dates.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the calendar date of d lies within the window.
func (w Window) Contains(d time.Time) bool {
	day := TruncateDate(d)
	return !day.Before(TruncateDate(w.Start)) && !day.After(TruncateDate(w.End))
}
