package employee

import (
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
)

// DefaultMaxDailyHours applies when an employee has no explicit cap.
const DefaultMaxDailyHours = 16.0

// Employee is the read-only view of an employee the timesheet engine needs.
// Employee records are owned by the HR system.
type Employee struct {
	ID               string
	EmployeeCode     string
	FullName         string
	MaxDailyHours    *float64
	MorningWindow    TimeWindow
	AfternoonWindow  TimeWindow
	EmploymentStatus EmploymentStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DailyCap returns the employee's cap, falling back to fallback (or the
// package default when fallback is not positive).
func (e Employee) DailyCap(fallback float64) float64 {
	if e.MaxDailyHours != nil && *e.MaxDailyHours > 0 {
		return *e.MaxDailyHours
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultMaxDailyHours
}

// Window returns the named default window ("morning" or "afternoon").
func (e Employee) Window(name string) (TimeWindow, bool) {
	switch name {
	case WindowMorning:
		return e.MorningWindow, true
	case WindowAfternoon:
		return e.AfternoonWindow, true
	}
	return TimeWindow{}, false
}

const (
	WindowMorning   = "morning"
	WindowAfternoon = "afternoon"
)

// TimeWindow is a default start/end pair used to prefill new entries.
type TimeWindow struct {
	Start timesheet.ClockTime
	End   timesheet.ClockTime
}

var (
	DefaultMorningWindow   = TimeWindow{Start: timesheet.NewClockTime(8, 0), End: timesheet.NewClockTime(12, 0)}
	DefaultAfternoonWindow = TimeWindow{Start: timesheet.NewClockTime(13, 0), End: timesheet.NewClockTime(17, 0)}
)

type EmploymentStatus string

const (
	EmploymentStatusActive     EmploymentStatus = "active"
	EmploymentStatusResigned   EmploymentStatus = "resigned"
	EmploymentStatusTerminated EmploymentStatus = "terminated"
)
