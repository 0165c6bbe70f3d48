package externalsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/syncjob"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	reconciliationService "github.com/cmlabs-hris/timesheet-backend-go/internal/service/reconciliation"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	records  []attendance.Record
	err      error
	from, to time.Time
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Fetch(ctx context.Context, from, to time.Time) ([]attendance.Record, error) {
	p.from, p.to = from, to
	return p.records, p.err
}

var monday = time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC)

func record(id, code string, day, start, end int) attendance.Record {
	return attendance.Record{
		ExternalID:   id,
		EmployeeCode: code,
		Date:         monday.AddDate(0, 0, day),
		StartTime:    timesheet.NewClockTime(start, 0),
		EndTime:      timesheet.NewClockTime(end, 0),
		EntryType:    timesheet.EntryTypeGeneral,
		CompanyID:    "acme",
		CompanyName:  "Acme Corp",
	}
}

func newTestService(t *testing.T, provider attendance.Provider) (*Service, *testutil.Store) {
	t.Helper()
	store := testutil.NewStore()
	store.AddEmployee(employee.Employee{ID: "emp-1", EmployeeCode: "E001"})

	tx := store.Transactor()
	recon := reconciliationService.NewReconciliationService(tx, store.TimesheetRepository(), store.EntryRepository(), store.EmployeeRepository())
	svc := NewService(tx, provider, store.TimesheetRepository(), store.EntryRepository(), store.EmployeeRepository(), recon, 7)
	svc.now = store.Clock.Now
	return svc, store
}

func collect(lines *[]string) syncjob.ProgressFunc {
	return func(_ context.Context, msg string) {
		*lines = append(*lines, msg)
	}
}

func TestRun_ImportsRecords(t *testing.T) {
	provider := &fakeProvider{records: []attendance.Record{
		record("r1", "E001", 0, 8, 12),
		record("r2", "E001", 1, 8, 12),
		record("r3", "E001", 0, 8, 12), // same interval as r1
		record("r4", "E404", 0, 8, 12),
		record("r5", "E001", 2, 12, 9),
	}}
	svc, store := newTestService(t, provider)

	var lines []string
	out, err := svc.Run(context.Background(), syncjob.Params{}, collect(&lines))
	require.NoError(t, err)

	result, ok := out.(attendance.SyncResult)
	require.True(t, ok)
	assert.Equal(t, "fake", result.Provider)
	assert.Equal(t, 5, result.Fetched)
	assert.Equal(t, 2, result.Saved)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 1, result.TimesheetsCreated)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, "r4", result.Failures[0].Record)
	assert.Contains(t, result.Failures[0].Reason, `unknown employee code "E404"`)
	assert.Equal(t, attendance.ErrInvalidInterval.Error(), result.Failures[1].Reason)

	var steps []string
	for _, s := range result.Steps {
		steps = append(steps, s.Name)
	}
	assert.Equal(t, []string{"fetch", "save", "skip", "fail", "timesheets", "cleanup", "merge"}, steps)
	assert.Contains(t, lines, "Fetched 5 records")
	assert.Contains(t, lines, "Saved 2 entries")
	assert.Contains(t, lines, "Skipped 1 duplicates")

	entries := store.Entries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, timesheet.SourceExternal, e.Source)
		assert.Equal(t, "emp-1", e.EmployeeID)
		assert.Equal(t, timesheet.StatusOpen, e.Status)
	}
	require.Len(t, store.Timesheets(), 1)
	assert.True(t, store.Timesheets()[0].AutoCreated)
}

func TestRun_IsIdempotent(t *testing.T) {
	provider := &fakeProvider{records: []attendance.Record{
		record("r1", "E001", 0, 8, 12),
		record("r2", "E001", 1, 8, 12),
	}}
	svc, store := newTestService(t, provider)

	_, err := svc.Run(context.Background(), syncjob.Params{}, func(context.Context, string) {})
	require.NoError(t, err)

	out, err := svc.Run(context.Background(), syncjob.Params{}, func(context.Context, string) {})
	require.NoError(t, err)
	result := out.(attendance.SyncResult)
	assert.Zero(t, result.Saved)
	assert.Equal(t, 2, result.Skipped)
	assert.Zero(t, result.TimesheetsCreated)
	assert.Len(t, store.Entries(), 2)
}

func TestRun_VerifiesMatchingLocalEntries(t *testing.T) {
	provider := &fakeProvider{records: []attendance.Record{record("r1", "E001", 0, 8, 12)}}
	svc, store := newTestService(t, provider)

	ts := store.AddTimesheet(timesheet.Timesheet{EmployeeID: "emp-1", WeekStarting: monday, Status: timesheet.StatusSubmitted})
	local := store.AddEntry(timesheet.Entry{
		TimesheetID: ts.ID,
		Date:        monday,
		StartTime:   timesheet.NewClockTime(8, 0),
		EndTime:     timesheet.NewClockTime(12, 0),
		Status:      timesheet.StatusSubmitted,
		CompanyID:   "acme",
	})

	out, err := svc.Run(context.Background(), syncjob.Params{}, func(context.Context, string) {})
	require.NoError(t, err)
	result := out.(attendance.SyncResult)
	assert.Equal(t, 1, result.Cleanup.EntriesVerified)

	stored, err := store.EntryRepository().GetByID(context.Background(), local.ID)
	require.NoError(t, err)
	assert.True(t, stored.Verified)

	for _, e := range store.Entries() {
		if e.Source == timesheet.SourceExternal {
			assert.Equal(t, ts.ID, e.TimesheetID, "imports land in the existing timesheet")
			assert.Equal(t, timesheet.StatusSubmitted, e.Status)
		}
	}
}

func TestRun_ProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: &attendance.ExternalServiceError{Op: "fetch attendance", StatusCode: 503, Err: errors.New("unavailable")}}
	svc, store := newTestService(t, provider)

	var lines []string
	_, err := svc.Run(context.Background(), syncjob.Params{}, collect(&lines))
	var extErr *attendance.ExternalServiceError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, 503, extErr.StatusCode)
	assert.Len(t, lines, 1, "only the fetch announcement was logged")
	assert.Empty(t, store.Entries())
}

func TestRun_WithoutProvider(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Run(context.Background(), syncjob.Params{}, func(context.Context, string) {})
	assert.ErrorIs(t, err, attendance.ErrProviderNotConfigured)
}

func TestWindow(t *testing.T) {
	provider := &fakeProvider{}
	svc, _ := newTestService(t, provider)

	from, to := svc.Window(syncjob.Params{})
	assert.Equal(t, "2026-10-07", from.Format(timesheet.DateLayout))
	assert.Equal(t, "2026-10-18", to.Format(timesheet.DateLayout))

	start := time.Date(2026, time.September, 1, 15, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.September, 30, 0, 0, 0, 0, time.UTC)
	from, to = svc.Window(syncjob.Params{From: &start, To: &end})
	assert.Equal(t, "2026-09-01", from.Format(timesheet.DateLayout))
	assert.Equal(t, "2026-09-30", to.Format(timesheet.DateLayout))

	_, err := svc.Run(context.Background(), syncjob.Params{From: &start, To: &end}, func(context.Context, string) {})
	require.NoError(t, err)
	assert.Equal(t, from, provider.from)
	assert.Equal(t, to, provider.to)
}
