package timesheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntryType(t *testing.T) {
	label := "Client workshop"

	assert.Equal(t, EntryTypeGeneral, ParseEntryType("", nil))
	assert.Equal(t, EntryTypeGeneral, ParseEntryType("general", nil))
	assert.Equal(t, EntryTypeTravel, ParseEntryType("TRAVEL", nil))

	other := ParseEntryType("OTHER", &label)
	assert.True(t, other.IsOther())
	assert.Equal(t, "OTHER", other.Code())
	require.NotNil(t, other.Label())
	assert.Equal(t, label, *other.Label())

	// Unknown codes are kept as an Other label.
	legacy := ParseEntryType("Training", nil)
	assert.True(t, legacy.IsOther())
	assert.Equal(t, "Training", legacy.String())
}

func TestOtherEntryType_FoldsKnownLabels(t *testing.T) {
	assert.Equal(t, EntryTypeTravel, OtherEntryType(" travel "))
	assert.Equal(t, EntryTypeGeneral, OtherEntryType(""))
	assert.Nil(t, EntryTypeGeneral.Label())
}

func TestEntryType_Text(t *testing.T) {
	var et EntryType
	require.NoError(t, et.UnmarshalText([]byte("On-call")))
	assert.True(t, et.IsOther())

	text, err := et.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "On-call", string(text))
}

func TestEntry_HoursAndSignature(t *testing.T) {
	date, _ := ParseDate("2026-10-14")
	e := Entry{
		EmployeeID: "emp-1",
		Date:       date,
		StartTime:  NewClockTime(8, 0),
		EndTime:    NewClockTime(12, 30),
		CompanyID:  "acme",
	}

	assert.InDelta(t, 4.5, e.Hours(), 1e-9)
	assert.Equal(t, Signature{
		EmployeeID: "emp-1",
		Date:       "2026-10-14",
		Start:      NewClockTime(8, 0),
		End:        NewClockTime(12, 30),
		CompanyID:  "acme",
	}, e.Signature())
}

func TestValidationResult_Err(t *testing.T) {
	assert.NoError(t, ValidationResult{Valid: true}.Err(false))

	warned := ValidationResult{Valid: true, Warnings: []string{"long day"}}
	assert.NoError(t, warned.Err(true))

	err := warned.Err(false)
	var ve *EntryValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.NeedsConfirmation())

	err = ValidationResult{Valid: false, Errors: []string{"overlap"}, Warnings: []string{"long day"}}.Err(true)
	require.ErrorAs(t, err, &ve)
	assert.False(t, ve.NeedsConfirmation())
	assert.Contains(t, ve.Error(), "overlap")
}
