package timesheet

import "time"

// Candidate is a proposed entry as seen by the validation rules. Nil times
// mean the caller did not provide them.
type Candidate struct {
	Date        time.Time
	StartTime   *ClockTime
	EndTime     *ClockTime
	CompanyID   string
	CompanyName string
}

// ValidationResult is the outcome of checking a Candidate. Warnings never
// make a result invalid.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Err converts the result into the error a write path should return, or
// nil when the write may proceed. confirmed acknowledges warnings.
func (r ValidationResult) Err(confirmed bool) error {
	if !r.Valid {
		return &EntryValidationError{Errors: r.Errors, Warnings: r.Warnings}
	}
	if len(r.Warnings) > 0 && !confirmed {
		return &EntryValidationError{Warnings: r.Warnings}
	}
	return nil
}
