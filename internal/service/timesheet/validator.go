package timesheet

import (
	"fmt"
	"sort"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
)

var latestStart = timesheet.NewClockTime(23, 0)

const (
	maxEntryMinutes = 12 * 60
	minBreakMinutes = 30
)

// EntryValidator decides whether a candidate entry may be saved. It only
// looks at what the caller passes in.
type EntryValidator struct{}

func NewEntryValidator() EntryValidator {
	return EntryValidator{}
}

// Validate checks candidate against its same-day siblings, the timesheet
// window and the employee's daily cap. The sibling whose id equals
// excludeEntryID is the entry being edited and is ignored.
func (EntryValidator) Validate(candidate timesheet.Candidate, siblings []timesheet.Entry, window timesheet.Window, dailyCap float64, excludeEntryID string) timesheet.ValidationResult {
	result := timesheet.ValidationResult{
		Errors:   make([]string, 0),
		Warnings: make([]string, 0),
	}

	if candidate.StartTime == nil || candidate.EndTime == nil {
		result.Errors = append(result.Errors, "start time and end time are required")
		return result
	}
	start, end := *candidate.StartTime, *candidate.EndTime

	if end <= start {
		result.Errors = append(result.Errors, "end time must be after start time; entries cannot cross midnight")
	}
	if start >= latestStart {
		result.Errors = append(result.Errors, fmt.Sprintf("start time must be earlier than %s", latestStart))
	}
	if len(result.Errors) > 0 {
		return result
	}

	if end.Minutes()-start.Minutes() > maxEntryMinutes {
		result.Errors = append(result.Errors, fmt.Sprintf(
			"entry of %.2f hours exceeds the %d hour limit per entry",
			hours(end.Minutes()-start.Minutes()), maxEntryMinutes/60,
		))
	}

	date := timesheet.TruncateDate(candidate.Date)
	if !window.Contains(date) {
		result.Errors = append(result.Errors, fmt.Sprintf(
			"date %s is outside the timesheet week %s to %s",
			date.Format(timesheet.DateLayout),
			window.Start.Format(timesheet.DateLayout),
			window.End.Format(timesheet.DateLayout),
		))
	}

	if timesheet.IsWeekend(date) {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"%s is a %s; weekend work may need additional justification",
			date.Format(timesheet.DateLayout), date.Weekday(),
		))
	}

	sameDay := make([]timesheet.Entry, 0, len(siblings))
	for _, s := range siblings {
		if s.ID != "" && s.ID == excludeEntryID {
			continue
		}
		if !timesheet.TruncateDate(s.Date).Equal(date) {
			continue
		}
		sameDay = append(sameDay, s)
	}

	for _, other := range sameDay {
		if start < other.EndTime && other.StartTime < end {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"%s overlaps existing entry %s for %s",
				timesheet.FormatRange(start, end),
				timesheet.FormatRange(other.StartTime, other.EndTime),
				companyLabel(other),
			))
		}
	}

	if len(sameDay) > 0 && !hasBreak(start, end, sameDay) {
		result.Errors = append(result.Errors, fmt.Sprintf(
			"at least one break of %d minutes is required between entries on %s",
			minBreakMinutes, date.Format(timesheet.DateLayout),
		))
	}

	total := end.Minutes() - start.Minutes()
	for _, other := range sameDay {
		total += other.EndTime.Minutes() - other.StartTime.Minutes()
	}
	if hours(total) > dailyCap {
		result.Errors = append(result.Errors, fmt.Sprintf(
			"daily total of %.2f hours would exceed the limit of %.2f hours",
			hours(total), dailyCap,
		))
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// hasBreak reports whether the day's intervals, sorted by start, contain a
// gap of at least minBreakMinutes between one interval and the next.
func hasBreak(start, end timesheet.ClockTime, others []timesheet.Entry) bool {
	type interval struct{ start, end int }

	intervals := make([]interval, 0, len(others)+1)
	intervals = append(intervals, interval{start.Minutes(), end.Minutes()})
	for _, o := range others {
		intervals = append(intervals, interval{o.StartTime.Minutes(), o.EndTime.Minutes()})
	}
	sort.Slice(intervals, func(i, j int) bool {
		if intervals[i].start == intervals[j].start {
			return intervals[i].end < intervals[j].end
		}
		return intervals[i].start < intervals[j].start
	})

	reach := intervals[0].end
	for _, iv := range intervals[1:] {
		if iv.start-reach >= minBreakMinutes {
			return true
		}
		if iv.end > reach {
			reach = iv.end
		}
	}
	return false
}

func companyLabel(e timesheet.Entry) string {
	if e.CompanyName != "" {
		return e.CompanyName
	}
	return e.CompanyID
}

func hours(minutes int) float64 {
	return float64(minutes) / 60.0
}
