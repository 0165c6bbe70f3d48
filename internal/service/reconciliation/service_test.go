package reconciliation

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/reconciliation"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/syncjob"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monday = time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*ReconciliationServiceImpl, *testutil.Store) {
	t.Helper()
	store := testutil.NewStore()
	store.AddEmployee(employee.Employee{ID: "emp-1", EmployeeCode: "E001"})
	svc := NewReconciliationService(store.Transactor(), store.TimesheetRepository(), store.EntryRepository(), store.EmployeeRepository())
	svc.now = store.Clock.Now
	return svc, store
}

func entry(timesheetID string, day int, start, end int, source timesheet.Source) timesheet.Entry {
	return timesheet.Entry{
		TimesheetID: timesheetID,
		Date:        monday.AddDate(0, 0, day),
		StartTime:   timesheet.NewClockTime(start, 0),
		EndTime:     timesheet.NewClockTime(end, 0),
		Status:      timesheet.StatusOpen,
		Source:      source,
		CompanyID:   "acme",
		CompanyName: "Acme Corp",
	}
}

func countByTimesheet(store *testutil.Store, id string) int {
	n := 0
	for _, e := range store.Entries() {
		if e.TimesheetID == id {
			n++
		}
	}
	return n
}

func TestCleanupDuplicates(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	ts := store.AddTimesheet(timesheet.Timesheet{EmployeeID: "emp-1", WeekStarting: monday})

	kept := store.AddEntry(entry(ts.ID, 0, 8, 12, timesheet.SourceExternal))
	store.AddEntry(entry(ts.ID, 0, 8, 12, timesheet.SourceExternal))
	store.AddEntry(entry(ts.ID, 0, 8, 12, timesheet.SourceExternal))
	store.AddEntry(entry(ts.ID, 1, 8, 12, timesheet.SourceExternal))

	local := entry(ts.ID, 0, 8, 12, timesheet.SourceLocal)
	notes := "client visit"
	local.Notes = &notes
	local = store.AddEntry(local)
	unmatched := store.AddEntry(entry(ts.ID, 2, 9, 11, timesheet.SourceLocal))

	summary, err := svc.CleanupDuplicates(ctx)
	require.NoError(t, err)
	assert.Equal(t, reconciliation.CleanupSummary{GroupsScanned: 2, DuplicatesRemoved: 2, EntriesVerified: 1}, summary)

	remaining := map[string]timesheet.Entry{}
	for _, e := range store.Entries() {
		remaining[e.ID] = e
	}
	assert.Len(t, remaining, 4)
	assert.Contains(t, remaining, kept.ID, "earliest external entry survives")
	require.Contains(t, remaining, local.ID)
	assert.True(t, remaining[local.ID].Verified)
	assert.Equal(t, "client visit", *remaining[local.ID].Notes)
	assert.False(t, remaining[unmatched.ID].Verified)

	again, err := svc.CleanupDuplicates(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.DuplicatesRemoved)
	assert.Zero(t, again.EntriesVerified)
	assert.Len(t, store.Entries(), 4)
}

func TestCleanupDuplicates_DifferentEmployeesAreNotDuplicates(t *testing.T) {
	svc, store := newTestService(t)
	store.AddEmployee(employee.Employee{ID: "emp-2", EmployeeCode: "E002"})
	a := store.AddTimesheet(timesheet.Timesheet{EmployeeID: "emp-1", WeekStarting: monday})
	b := store.AddTimesheet(timesheet.Timesheet{EmployeeID: "emp-2", WeekStarting: monday})
	store.AddEntry(entry(a.ID, 0, 8, 12, timesheet.SourceExternal))
	store.AddEntry(entry(b.ID, 0, 8, 12, timesheet.SourceExternal))

	summary, err := svc.CleanupDuplicates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.GroupsScanned)
	assert.Zero(t, summary.DuplicatesRemoved)
}

func TestMergeDuplicateTimesheets(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	canonical := store.AddTimesheet(timesheet.Timesheet{EmployeeID: "emp-1", WeekStarting: monday, Status: timesheet.StatusSubmitted})
	duplicate := store.AddTimesheet(timesheet.Timesheet{EmployeeID: "emp-1", WeekStarting: monday})
	for day := 0; day < 3; day++ {
		e := entry(canonical.ID, day, 8, 12, timesheet.SourceLocal)
		e.Status = timesheet.StatusSubmitted
		store.AddEntry(e)
	}
	store.AddEntry(entry(duplicate.ID, 3, 8, 12, timesheet.SourceExternal))

	summary, err := svc.MergeDuplicateTimesheets(ctx)
	require.NoError(t, err)
	assert.Equal(t, reconciliation.MergeSummary{GroupsScanned: 1, TimesheetsMerged: 1, EntriesMoved: 1}, summary)

	all := store.Timesheets()
	require.Len(t, all, 1)
	assert.Equal(t, canonical.ID, all[0].ID)
	assert.Equal(t, 4, countByTimesheet(store, canonical.ID))
	for _, e := range store.Entries() {
		assert.Equal(t, timesheet.StatusSubmitted, e.Status)
	}

	_, err = store.TimesheetRepository().GetByID(ctx, duplicate.ID)
	assert.ErrorIs(t, err, timesheet.ErrTimesheetNotFound)

	again, err := svc.MergeDuplicateTimesheets(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.TimesheetsMerged)
	assert.Zero(t, again.EntriesMoved)
}

func TestMergeDuplicateTimesheets_TieBreaksOnLowestID(t *testing.T) {
	svc, store := newTestService(t)
	created := store.Clock.Now()

	store.AddTimesheet(timesheet.Timesheet{ID: "ts-b", EmployeeID: "emp-1", WeekStarting: monday, CreatedAt: created})
	store.AddTimesheet(timesheet.Timesheet{ID: "ts-a", EmployeeID: "emp-1", WeekStarting: monday, CreatedAt: created})
	store.AddTimesheet(timesheet.Timesheet{ID: "ts-c", EmployeeID: "emp-1", WeekStarting: monday, CreatedAt: created})
	store.AddEntry(entry("ts-b", 0, 8, 12, timesheet.SourceLocal))
	store.AddEntry(entry("ts-c", 1, 8, 12, timesheet.SourceLocal))

	summary, err := svc.MergeDuplicateTimesheets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TimesheetsMerged)
	assert.Equal(t, 2, summary.EntriesMoved)

	all := store.Timesheets()
	require.Len(t, all, 1)
	assert.Equal(t, "ts-a", all[0].ID)
	assert.Equal(t, 2, countByTimesheet(store, "ts-a"))
}

func TestRepairStatusInconsistencies(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	locked := store.AddTimesheet(timesheet.Timesheet{EmployeeID: "emp-1", WeekStarting: monday, Status: timesheet.StatusLocked})
	drifted := entry(locked.ID, 0, 8, 12, timesheet.SourceExternal)
	store.AddEntry(drifted)
	store.AddEntry(entry(locked.ID, 1, 8, 12, timesheet.SourceExternal))
	inSync := entry(locked.ID, 2, 8, 12, timesheet.SourceLocal)
	inSync.Status = timesheet.StatusLocked
	store.AddEntry(inSync)

	open := store.AddTimesheet(timesheet.Timesheet{EmployeeID: "emp-1", WeekStarting: monday.AddDate(0, 0, 7)})
	stray := entry(open.ID, 7, 8, 12, timesheet.SourceLocal)
	stray.Status = timesheet.StatusApproved
	store.AddEntry(stray)

	summary, err := svc.RepairStatusInconsistencies(ctx)
	require.NoError(t, err)
	assert.Equal(t, reconciliation.RepairSummary{TimesheetsChecked: 1, TimesheetsFixed: 1, EntriesUpdated: 2}, summary)

	for _, e := range store.Entries() {
		if e.TimesheetID == locked.ID {
			assert.Equal(t, timesheet.StatusLocked, e.Status)
		}
	}

	again, err := svc.RepairStatusInconsistencies(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.TimesheetsFixed)
	assert.Zero(t, again.EntriesUpdated)
}

func TestRemoveWeekendEntries(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	ts := store.AddTimesheet(timesheet.Timesheet{EmployeeID: "emp-1", WeekStarting: monday})

	store.AddEntry(entry(ts.ID, 5, 8, 12, timesheet.SourceExternal)) // Saturday
	store.AddEntry(entry(ts.ID, 6, 8, 12, timesheet.SourceExternal)) // Sunday
	localSunday := store.AddEntry(entry(ts.ID, 6, 13, 15, timesheet.SourceLocal))
	weekday := store.AddEntry(entry(ts.ID, 4, 8, 12, timesheet.SourceExternal))

	summary, err := svc.RemoveWeekendEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, reconciliation.WeekendSummary{WeekendEntriesRemoved: 2, TimesheetsTouched: 1}, summary)

	var ids []string
	for _, e := range store.Entries() {
		ids = append(ids, e.ID)
	}
	assert.ElementsMatch(t, []string{localSunday.ID, weekday.ID}, ids)

	again, err := svc.RemoveWeekendEntries(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.WeekendEntriesRemoved)
}

func TestAutoCreateTimesheets(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.AddTimesheet(timesheet.Timesheet{EmployeeID: "emp-1", WeekStarting: monday})

	summary, err := svc.AutoCreateTimesheets(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.AlreadyExist)
	require.Len(t, summary.Created, 1)

	created, err := store.TimesheetRepository().GetByID(ctx, summary.Created[0])
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", created.WeekStarting.Format(timesheet.DateLayout))
	assert.Equal(t, "2026-10-25", created.WeekEnding.Format(timesheet.DateLayout))
	assert.True(t, created.AutoCreated)
	assert.Equal(t, timesheet.StatusOpen, created.Status)

	again, err := svc.AutoCreateTimesheets(ctx, "emp-1")
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	assert.Equal(t, 2, again.AlreadyExist)
}

func TestAutoCreateTimesheets_InactiveEmployee(t *testing.T) {
	svc, store := newTestService(t)
	store.AddEmployee(employee.Employee{ID: "emp-9", EmploymentStatus: employee.EmploymentStatusResigned})

	_, err := svc.AutoCreateTimesheets(context.Background(), "emp-9")
	assert.ErrorIs(t, err, employee.ErrEmployeeInactive)

	_, err = svc.AutoCreateTimesheets(context.Background(), "emp-404")
	assert.ErrorIs(t, err, employee.ErrEmployeeNotFound)
}

func TestAutoCreateForActiveEmployees(t *testing.T) {
	svc, store := newTestService(t)
	store.AddEmployee(employee.Employee{ID: "emp-2"})
	store.AddEmployee(employee.Employee{ID: "emp-3", EmploymentStatus: employee.EmploymentStatusTerminated})

	summary, err := svc.AutoCreateForActiveEmployees(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.EmployeesChecked)
	assert.Equal(t, 4, summary.TimesheetsCreated)
	assert.Empty(t, summary.Failures)
}

func TestSortByCreation_UnorderableMember(t *testing.T) {
	group := []timesheet.Entry{
		{ID: "a", CreatedAt: time.Now()},
		{ID: "b"},
	}

	err := sortByCreation(group, "cleanupDuplicates", "emp-1/2026-10-12")
	var conflict *reconciliation.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "cleanupDuplicates", conflict.Operation)
}

func TestRunners_ReportProgress(t *testing.T) {
	svc, store := newTestService(t)
	ts := store.AddTimesheet(timesheet.Timesheet{EmployeeID: "emp-1", WeekStarting: monday})
	store.AddEntry(entry(ts.ID, 0, 8, 12, timesheet.SourceExternal))
	store.AddEntry(entry(ts.ID, 0, 8, 12, timesheet.SourceExternal))

	runners := svc.Runners()
	assert.Len(t, runners, 4)
	assert.NotContains(t, runners, syncjob.KindExternalSync)

	var lines []string
	result, err := runners[syncjob.KindCleanupDuplicates].Run(context.Background(), syncjob.Params{}, func(_ context.Context, msg string) {
		lines = append(lines, msg)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Scanning external entries for duplicates",
		"Removed 1 duplicate entries",
		"Verified 0 local entries",
	}, lines)
	assert.Equal(t, reconciliation.CleanupSummary{GroupsScanned: 1, DuplicatesRemoved: 1}, result)
}
