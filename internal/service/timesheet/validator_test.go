package timesheet

import (
	"fmt"
	"testing"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testMonday = time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC)
	testWeek   = timesheet.Window{Start: testMonday, End: timesheet.WeekEnd(testMonday)}
	wednesday  = testMonday.AddDate(0, 0, 2)
)

func clock(s string) *timesheet.ClockTime {
	ct, err := timesheet.ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return &ct
}

func candidate(date time.Time, start, end string) timesheet.Candidate {
	return timesheet.Candidate{
		Date:        date,
		StartTime:   clock(start),
		EndTime:     clock(end),
		CompanyID:   "acme",
		CompanyName: "Acme Corp",
	}
}

func sibling(id string, date time.Time, start, end string) timesheet.Entry {
	return timesheet.Entry{
		ID:          id,
		Date:        date,
		StartTime:   *clock(start),
		EndTime:     *clock(end),
		CompanyID:   "globex",
		CompanyName: "Globex",
	}
}

func TestEntryValidator_MissingTimes(t *testing.T) {
	c := timesheet.Candidate{Date: wednesday, StartTime: clock("09:00")}

	result := NewEntryValidator().Validate(c, nil, testWeek, 16, "")
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"start time and end time are required"}, result.Errors)
}

func TestEntryValidator_RejectsNonPositiveInterval(t *testing.T) {
	v := NewEntryValidator()
	for _, tc := range []struct{ start, end string }{
		{"09:00", "09:00"},
		{"17:00", "09:00"},
		{"22:00", "01:00"},
		{"00:30", "00:00"},
	} {
		// Out-of-window dates and siblings never rescue an inverted interval.
		result := v.Validate(
			candidate(testMonday.AddDate(0, 0, 20), tc.start, tc.end),
			[]timesheet.Entry{sibling("x", wednesday, "08:00", "08:30")},
			testWeek, 24, "",
		)
		assert.False(t, result.Valid, "%s-%s", tc.start, tc.end)
		require.Len(t, result.Errors, 1, "%s-%s stops at the interval check", tc.start, tc.end)
		assert.Contains(t, result.Errors[0], "end time must be after start time")
	}
}

func TestEntryValidator_LatestStart(t *testing.T) {
	result := NewEntryValidator().Validate(candidate(wednesday, "23:00", "23:30"), nil, testWeek, 16, "")
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "earlier than 23:00")

	result = NewEntryValidator().Validate(candidate(wednesday, "22:59", "23:30"), nil, testWeek, 16, "")
	assert.True(t, result.Valid, result.Errors)
}

func TestEntryValidator_MaxEntryDuration(t *testing.T) {
	v := NewEntryValidator()

	assert.True(t, v.Validate(candidate(wednesday, "06:00", "18:00"), nil, testWeek, 16, "").Valid)

	result := v.Validate(candidate(wednesday, "06:00", "18:01"), nil, testWeek, 16, "")
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "exceeds the 12 hour limit")
}

func TestEntryValidator_OutsideWindow(t *testing.T) {
	result := NewEntryValidator().Validate(candidate(testMonday.AddDate(0, 0, 7), "09:00", "12:00"), nil, testWeek, 16, "")
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "outside the timesheet week 2026-10-12 to 2026-10-18")
}

func TestEntryValidator_WeekendIsWarningOnly(t *testing.T) {
	saturday := testMonday.AddDate(0, 0, 5)

	result := NewEntryValidator().Validate(candidate(saturday, "09:00", "12:00"), nil, testWeek, 16, "")
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "Saturday")
}

func TestEntryValidator_OverlapNamesConflictingWindow(t *testing.T) {
	siblings := []timesheet.Entry{sibling("e1", wednesday, "09:00", "12:00")}

	result := NewEntryValidator().Validate(candidate(wednesday, "11:30", "13:00"), siblings, testWeek, 16, "")
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "11:30-13:00")
	assert.Contains(t, result.Errors[0], "09:00-12:00")
	assert.Contains(t, result.Errors[0], "Globex")
}

func TestEntryValidator_TouchingIntervalsDoNotOverlap(t *testing.T) {
	siblings := []timesheet.Entry{sibling("e1", wednesday, "09:00", "12:00")}

	result := NewEntryValidator().Validate(candidate(wednesday, "12:30", "14:00"), siblings, testWeek, 16, "")
	assert.True(t, result.Valid, result.Errors)
}

func TestEntryValidator_BreakRule(t *testing.T) {
	v := NewEntryValidator()
	// For any pair of disjoint intervals, the second saves only when the
	// gap is at least 30 minutes.
	for gap := 0; gap <= 60; gap += 5 {
		first := sibling("e1", wednesday, "08:00", "10:00")
		startMin := 10*60 + gap
		start := fmt.Sprintf("%02d:%02d", startMin/60, startMin%60)

		result := v.Validate(candidate(wednesday, start, "15:00"), []timesheet.Entry{first}, testWeek, 16, "")
		if gap >= 30 {
			assert.True(t, result.Valid, "gap %d: %v", gap, result.Errors)
		} else {
			assert.False(t, result.Valid, "gap %d", gap)
			assert.Contains(t, result.Errors[len(result.Errors)-1], "break of 30 minutes")
		}
	}
}

func TestEntryValidator_BreakAnywhereInDay(t *testing.T) {
	siblings := []timesheet.Entry{
		sibling("e1", wednesday, "08:00", "10:00"),
		sibling("e2", wednesday, "10:00", "12:00"),
	}

	// 12:00-13:00 is the only gap and it is long enough.
	result := NewEntryValidator().Validate(candidate(wednesday, "13:00", "15:00"), siblings, testWeek, 16, "")
	assert.True(t, result.Valid, result.Errors)

	// Back to back all day: no gap at all.
	result = NewEntryValidator().Validate(candidate(wednesday, "12:00", "14:00"), siblings, testWeek, 16, "")
	assert.False(t, result.Valid)
}

func TestEntryValidator_DailyCap(t *testing.T) {
	v := NewEntryValidator()
	morning := []timesheet.Entry{sibling("e1", wednesday, "08:00", "12:30")}

	over := v.Validate(candidate(wednesday, "13:00", "17:30"), morning, testWeek, 8, "")
	assert.False(t, over.Valid)
	assert.Contains(t, over.Errors[0], "daily total of 9.00 hours would exceed the limit of 8.00 hours")

	fourHours := []timesheet.Entry{sibling("e1", wednesday, "08:00", "12:00")}
	within := v.Validate(candidate(wednesday, "13:00", "17:00"), fourHours, testWeek, 8, "")
	assert.True(t, within.Valid, within.Errors)
}

func TestEntryValidator_ExcludesEditedEntry(t *testing.T) {
	siblings := []timesheet.Entry{
		sibling("e1", wednesday, "09:00", "12:00"),
		sibling("e2", wednesday.AddDate(0, 0, 1), "09:00", "12:00"),
	}

	// Moving e1 by an hour must not collide with its own old position.
	result := NewEntryValidator().Validate(candidate(wednesday, "10:00", "13:00"), siblings, testWeek, 16, "e1")
	assert.True(t, result.Valid, result.Errors)
	assert.Empty(t, result.Warnings)
}
