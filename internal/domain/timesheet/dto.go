package timesheet

import (
	"strings"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/validator"
)

// ========================================
// TIMESHEET DTOs
// ========================================

type CreateTimesheetRequest struct {
	EmployeeID   string `json:"employee_id"`
	WeekStarting string `json:"week_starting"`
}

func (r *CreateTimesheetRequest) Validate() error {
	var errs validator.ValidationErrors

	if date, valid := validator.IsValidDate(r.WeekStarting); !valid {
		errs = append(errs, validator.ValidationError{
			Field:   "week_starting",
			Message: "week_starting must be in YYYY-MM-DD format",
		})
	} else if date.Weekday() != time.Monday {
		errs = append(errs, validator.ValidationError{
			Field:   "week_starting",
			Message: "week_starting must be a Monday",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type TimesheetFilter struct {
	EmployeeID *string `json:"employee_id,omitempty"`
	Status     *string `json:"status,omitempty"`
	WeekFrom   *string `json:"week_from,omitempty"` // YYYY-MM-DD
	WeekTo     *string `json:"week_to,omitempty"`   // YYYY-MM-DD

	// Pagination
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (f *TimesheetFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Page < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "page",
			Message: "page must be a positive number",
		})
	}
	if f.Page == 0 {
		f.Page = 1
	}

	if f.Limit < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must be a positive number",
		})
	}
	if f.Limit == 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must not exceed 100",
		})
	}

	if f.Status != nil && !Status(strings.ToUpper(*f.Status)).Valid() {
		errs = append(errs, validator.ValidationError{
			Field:   "status",
			Message: "status must be one of: OPEN, SUBMITTED, APPROVED, LOCKED",
		})
	}

	if f.WeekFrom != nil && *f.WeekFrom != "" {
		if _, valid := validator.IsValidDate(*f.WeekFrom); !valid {
			errs = append(errs, validator.ValidationError{
				Field:   "week_from",
				Message: "week_from must be in YYYY-MM-DD format",
			})
		}
	}
	if f.WeekTo != nil && *f.WeekTo != "" {
		if _, valid := validator.IsValidDate(*f.WeekTo); !valid {
			errs = append(errs, validator.ValidationError{
				Field:   "week_to",
				Message: "week_to must be in YYYY-MM-DD format",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type TimesheetResponse struct {
	ID           string          `json:"id"`
	EmployeeID   string          `json:"employee_id"`
	WeekStarting string          `json:"week_starting"`
	WeekEnding   string          `json:"week_ending"`
	Status       string          `json:"status"`
	AutoCreated  bool            `json:"auto_created"`
	EntryCount   int             `json:"entry_count"`
	TotalHours   float64         `json:"total_hours"`
	Entries      []EntryResponse `json:"entries,omitempty"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

type ListTimesheetResponse struct {
	Timesheets []TimesheetResponse `json:"timesheets"`
	Total      int64               `json:"total"`
	Page       int                 `json:"page"`
	Limit      int                 `json:"limit"`
}

type AutoCreateResponse struct {
	EmployeeID string              `json:"employee_id"`
	Created    []TimesheetResponse `json:"created"`
	Existing   int                 `json:"existing"`
}

// ========================================
// ENTRY DTOs
// ========================================

type CreateEntryRequest struct {
	TimesheetID     string  `json:"-"`
	Date            string  `json:"date"`
	StartTime       *string `json:"start_time,omitempty"`
	EndTime         *string `json:"end_time,omitempty"`
	DefaultWindow   string  `json:"default_window,omitempty"` // morning, afternoon
	EntryType       string  `json:"entry_type,omitempty"`
	CompanyID       string  `json:"company_id"`
	CompanyName     string  `json:"company_name"`
	Notes           *string `json:"notes,omitempty"`
	Location        *string `json:"location,omitempty"`
	ConfirmWarnings bool    `json:"confirm_warnings"`
}

func (r *CreateEntryRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.TimesheetID) {
		errs = append(errs, validator.ValidationError{
			Field:   "timesheet_id",
			Message: "timesheet_id is required",
		})
	}
	if _, valid := validator.IsValidDate(r.Date); !valid {
		errs = append(errs, validator.ValidationError{
			Field:   "date",
			Message: "date must be in YYYY-MM-DD format",
		})
	}
	errs = appendClockErrors(errs, "start_time", r.StartTime)
	errs = appendClockErrors(errs, "end_time", r.EndTime)

	if r.DefaultWindow != "" && !validator.IsInSlice(r.DefaultWindow, []string{"morning", "afternoon"}) {
		errs = append(errs, validator.ValidationError{
			Field:   "default_window",
			Message: "default_window must be one of: morning, afternoon",
		})
	}
	if validator.IsEmpty(r.CompanyID) {
		errs = append(errs, validator.ValidationError{
			Field:   "company_id",
			Message: "company_id is required",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// UpdateEntryRequest only changes fields that are present.
type UpdateEntryRequest struct {
	ID              string  `json:"-"`
	Date            *string `json:"date,omitempty"`
	StartTime       *string `json:"start_time,omitempty"`
	EndTime         *string `json:"end_time,omitempty"`
	EntryType       *string `json:"entry_type,omitempty"`
	CompanyID       *string `json:"company_id,omitempty"`
	CompanyName     *string `json:"company_name,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	Location        *string `json:"location,omitempty"`
	ConfirmWarnings bool    `json:"confirm_warnings"`
}

func (r *UpdateEntryRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.ID) {
		errs = append(errs, validator.ValidationError{
			Field:   "id",
			Message: "id is required",
		})
	}
	if r.Date != nil {
		if _, valid := validator.IsValidDate(*r.Date); !valid {
			errs = append(errs, validator.ValidationError{
				Field:   "date",
				Message: "date must be in YYYY-MM-DD format",
			})
		}
	}
	errs = appendClockErrors(errs, "start_time", r.StartTime)
	errs = appendClockErrors(errs, "end_time", r.EndTime)

	if r.CompanyID != nil && validator.IsEmpty(*r.CompanyID) {
		errs = append(errs, validator.ValidationError{
			Field:   "company_id",
			Message: "company_id must not be empty",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateEntryRequest runs the rules without writing anything. EntryID
// names the entry being edited so it is not compared with itself.
type ValidateEntryRequest struct {
	TimesheetID string  `json:"timesheet_id"`
	EntryID     *string `json:"entry_id,omitempty"`
	Date        string  `json:"date"`
	StartTime   *string `json:"start_time,omitempty"`
	EndTime     *string `json:"end_time,omitempty"`
	CompanyID   string  `json:"company_id"`
	CompanyName string  `json:"company_name"`
}

func (r *ValidateEntryRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.TimesheetID) {
		errs = append(errs, validator.ValidationError{
			Field:   "timesheet_id",
			Message: "timesheet_id is required",
		})
	} else if !validator.IsValidUUID(r.TimesheetID) {
		errs = append(errs, validator.ValidationError{
			Field:   "timesheet_id",
			Message: "timesheet_id must be a valid UUID",
		})
	}
	if r.EntryID != nil && !validator.IsEmpty(*r.EntryID) && !validator.IsValidUUID(*r.EntryID) {
		errs = append(errs, validator.ValidationError{
			Field:   "entry_id",
			Message: "entry_id must be a valid UUID",
		})
	}
	if _, valid := validator.IsValidDate(r.Date); !valid {
		errs = append(errs, validator.ValidationError{
			Field:   "date",
			Message: "date must be in YYYY-MM-DD format",
		})
	}
	errs = appendClockErrors(errs, "start_time", r.StartTime)
	errs = appendClockErrors(errs, "end_time", r.EndTime)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type EntryResponse struct {
	ID          string  `json:"id"`
	TimesheetID string  `json:"timesheet_id"`
	EmployeeID  string  `json:"employee_id"`
	Date        string  `json:"date"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	Hours       float64 `json:"hours"`
	EntryType   string  `json:"entry_type"`
	Status      string  `json:"status"`
	Source      string  `json:"source"`
	Verified    bool    `json:"verified"`
	CompanyID   string  `json:"company_id"`
	CompanyName string  `json:"company_name"`
	Notes       *string `json:"notes,omitempty"`
	Location    *string `json:"location,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type EntryMutationResponse struct {
	Entry    EntryResponse `json:"entry"`
	Warnings []string      `json:"warnings,omitempty"`
}

func appendClockErrors(errs validator.ValidationErrors, field string, value *string) validator.ValidationErrors {
	if value == nil {
		return errs
	}
	if _, err := ParseClockTime(*value); err != nil {
		errs = append(errs, validator.ValidationError{
			Field:   field,
			Message: field + " must be in HH:MM format",
		})
	}
	return errs
}
