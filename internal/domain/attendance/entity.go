package attendance

import (
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
)

// Record is one attendance interval reported by the external provider.
// Employees are identified by their HR employee code.
type Record struct {
	ExternalID   string
	EmployeeCode string
	Date         time.Time
	StartTime    timesheet.ClockTime
	EndTime      timesheet.ClockTime
	EntryType    timesheet.EntryType
	CompanyID    string
	CompanyName  string
}

// Key identifies the record in progress messages and failure lists.
func (r Record) Key() string {
	if r.ExternalID != "" {
		return r.ExternalID
	}
	return r.EmployeeCode + "@" + r.Date.Format(timesheet.DateLayout) + " " + timesheet.FormatRange(r.StartTime, r.EndTime)
}

// CheckInterval verifies the basic shape of the interval before it is stored.
func (r Record) CheckInterval() error {
	switch {
	case r.EmployeeCode == "":
		return ErrMissingEmployeeCode
	case r.CompanyID == "":
		return ErrMissingCompany
	case !r.StartTime.Valid() || !r.EndTime.Valid() || r.EndTime <= r.StartTime:
		return ErrInvalidInterval
	}
	return nil
}
