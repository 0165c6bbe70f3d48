package timesheet

import (
	"context"
	"errors"
	"testing"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/validator"
	reconciliationService "github.com/cmlabs-hris/timesheet-backend-go/internal/service/reconciliation"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store      *testutil.Store
	timesheets *TimesheetServiceImpl
	entries    *EntryServiceImpl
	emp        employee.Employee
	owner      context.Context
	other      context.Context
	admin      context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore()
	emp := store.AddEmployee(employee.Employee{ID: "emp-1", EmployeeCode: "E001", FullName: "Ada Lovelace"})
	store.AddEmployee(employee.Employee{ID: "emp-2", EmployeeCode: "E002", FullName: "Grace Hopper"})

	tx := store.Transactor()
	recon := reconciliationService.NewReconciliationService(tx, store.TimesheetRepository(), store.EntryRepository(), store.EmployeeRepository())

	return &fixture{
		store: store,
		timesheets: &TimesheetServiceImpl{
			tx:                    tx,
			TimesheetRepository:   store.TimesheetRepository(),
			EntryRepository:       store.EntryRepository(),
			EmployeeRepository:    store.EmployeeRepository(),
			reconciliationService: recon,
			now:                   store.Clock.Now,
		},
		entries: &EntryServiceImpl{
			tx:                  tx,
			TimesheetRepository: store.TimesheetRepository(),
			EntryRepository:     store.EntryRepository(),
			EmployeeRepository:  store.EmployeeRepository(),
			validator:           NewEntryValidator(),
			defaultDailyCap:     employee.DefaultMaxDailyHours,
		},
		emp:   emp,
		owner: testutil.ActorContext(t, testutil.EmployeeActor("emp-1")),
		other: testutil.ActorContext(t, testutil.EmployeeActor("emp-2")),
		admin: testutil.ActorContext(t, testutil.Admin()),
	}
}

// seed stores a timesheet for emp-1 in the test week with n weekday entries.
func (f *fixture) seed(status timesheet.Status, n int) timesheet.Timesheet {
	ts := f.store.AddTimesheet(timesheet.Timesheet{
		EmployeeID:   f.emp.ID,
		WeekStarting: testMonday,
		Status:       status,
	})
	for i := 0; i < n; i++ {
		f.store.AddEntry(timesheet.Entry{
			TimesheetID: ts.ID,
			Date:        testMonday.AddDate(0, 0, i%5),
			StartTime:   timesheet.NewClockTime(8+4*(i/5), 0),
			EndTime:     timesheet.NewClockTime(11+4*(i/5), 0),
			Status:      status,
			CompanyID:   "acme",
			CompanyName: "Acme Corp",
		})
	}
	return ts
}

func (f *fixture) entryStatuses(timesheetID string) []timesheet.Status {
	var out []timesheet.Status
	for _, e := range f.store.Entries() {
		if e.TimesheetID == timesheetID {
			out = append(out, e.Status)
		}
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func TestCreateTimesheet(t *testing.T) {
	f := newFixture(t)

	resp, err := f.timesheets.CreateTimesheet(f.owner, timesheet.CreateTimesheetRequest{WeekStarting: "2026-10-12"})
	require.NoError(t, err)
	assert.Equal(t, "emp-1", resp.EmployeeID)
	assert.Equal(t, "2026-10-18", resp.WeekEnding)
	assert.Equal(t, "OPEN", resp.Status)
	assert.False(t, resp.AutoCreated)

	_, err = f.timesheets.CreateTimesheet(f.owner, timesheet.CreateTimesheetRequest{WeekStarting: "2026-10-12"})
	assert.ErrorIs(t, err, timesheet.ErrTimesheetExists)
}

func TestCreateTimesheet_WeekMustStartOnMonday(t *testing.T) {
	f := newFixture(t)

	_, err := f.timesheets.CreateTimesheet(f.owner, timesheet.CreateTimesheetRequest{WeekStarting: "2026-10-14"})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "week_starting", verrs[0].Field)
	assert.Empty(t, f.store.Timesheets())
}

func TestCreateTimesheet_Ownership(t *testing.T) {
	f := newFixture(t)

	_, err := f.timesheets.CreateTimesheet(f.other, timesheet.CreateTimesheetRequest{EmployeeID: "emp-1", WeekStarting: "2026-10-12"})
	assert.ErrorIs(t, err, timesheet.ErrNotOwner)

	_, err = f.timesheets.CreateTimesheet(f.admin, timesheet.CreateTimesheetRequest{WeekStarting: "2026-10-12"})
	assert.ErrorIs(t, err, timesheet.ErrEmployeeContextMissing)

	resp, err := f.timesheets.CreateTimesheet(f.admin, timesheet.CreateTimesheetRequest{EmployeeID: "emp-1", WeekStarting: "2026-10-12"})
	require.NoError(t, err)
	assert.Equal(t, "emp-1", resp.EmployeeID)

	_, err = f.timesheets.CreateTimesheet(f.admin, timesheet.CreateTimesheetRequest{EmployeeID: "emp-404", WeekStarting: "2026-10-12"})
	assert.ErrorIs(t, err, employee.ErrEmployeeNotFound)
}

func TestCreateTimesheet_RequiresToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.timesheets.CreateTimesheet(context.Background(), timesheet.CreateTimesheetRequest{WeekStarting: "2026-10-12"})
	assert.Error(t, err)
	assert.Empty(t, f.store.Timesheets())
}

func TestCreateTimesheet_WeekLockFailure(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn("timesheets.LockWeek", errors.New("lock timeout"))

	_, err := f.timesheets.CreateTimesheet(f.owner, timesheet.CreateTimesheetRequest{WeekStarting: "2026-10-12"})
	assert.EqualError(t, err, "lock timeout")
	assert.Empty(t, f.store.Timesheets())

	f.store.FailOn("timesheets.LockWeek", nil)
	_, err = f.timesheets.CreateTimesheet(f.owner, timesheet.CreateTimesheetRequest{WeekStarting: "2026-10-12"})
	require.NoError(t, err)
	assert.Len(t, f.store.Timesheets(), 1)
}

func TestSubmitTimesheet_EmptyIsRejected(t *testing.T) {
	f := newFixture(t)
	ts := f.seed(timesheet.StatusOpen, 0)

	_, err := f.timesheets.SubmitTimesheet(f.owner, ts.ID)
	assert.ErrorIs(t, err, timesheet.ErrEmptyTimesheet)

	stored, err := f.store.TimesheetRepository().GetByID(context.Background(), ts.ID)
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusOpen, stored.Status)
}

func TestSubmitTimesheet_OnlyOwner(t *testing.T) {
	f := newFixture(t)
	ts := f.seed(timesheet.StatusOpen, 2)

	_, err := f.timesheets.SubmitTimesheet(f.other, ts.ID)
	assert.ErrorIs(t, err, timesheet.ErrNotOwner)

	_, err = f.timesheets.SubmitTimesheet(f.admin, ts.ID)
	assert.ErrorIs(t, err, timesheet.ErrNotOwner, "admins approve, they do not submit")
}

func TestTimesheetLifecycle_CascadesToEntries(t *testing.T) {
	f := newFixture(t)
	ts := f.seed(timesheet.StatusOpen, 3)

	resp, err := f.timesheets.SubmitTimesheet(f.owner, ts.ID)
	require.NoError(t, err)
	assert.Equal(t, "SUBMITTED", resp.Status)
	assert.Len(t, resp.Entries, 3)
	for _, e := range resp.Entries {
		assert.Equal(t, "SUBMITTED", e.Status)
	}

	_, err = f.timesheets.ApproveTimesheet(f.owner, ts.ID)
	assert.ErrorIs(t, err, timesheet.ErrAdminRequired)

	_, err = f.timesheets.LockTimesheet(f.admin, ts.ID)
	var stErr *timesheet.StateTransitionError
	require.ErrorAs(t, err, &stErr)
	assert.Equal(t, timesheet.StatusSubmitted, stErr.Current)
	assert.Equal(t, timesheet.ActionLock, stErr.Action)

	resp, err = f.timesheets.ApproveTimesheet(f.admin, ts.ID)
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", resp.Status)

	resp, err = f.timesheets.LockTimesheet(f.admin, ts.ID)
	require.NoError(t, err)
	assert.Equal(t, "LOCKED", resp.Status)
	assert.Equal(t, []timesheet.Status{timesheet.StatusLocked, timesheet.StatusLocked, timesheet.StatusLocked}, f.entryStatuses(ts.ID))

	_, err = f.timesheets.ApproveTimesheet(f.admin, ts.ID)
	assert.ErrorAs(t, err, &stErr)
}

func TestUnlockTimesheet_ReopensAllEntries(t *testing.T) {
	f := newFixture(t)
	ts := f.seed(timesheet.StatusLocked, 5)

	resp, err := f.timesheets.UnlockTimesheet(f.admin, ts.ID)
	require.NoError(t, err)
	assert.Equal(t, "OPEN", resp.Status)

	statuses := f.entryStatuses(ts.ID)
	require.Len(t, statuses, 5)
	for _, s := range statuses {
		assert.Equal(t, timesheet.StatusOpen, s)
	}
}

func TestUnlockTimesheet_FailedCascadeRollsBack(t *testing.T) {
	f := newFixture(t)
	ts := f.seed(timesheet.StatusLocked, 5)
	f.store.FailOn("entries.SyncStatusWithTimesheet", errors.New("connection reset"))

	_, err := f.timesheets.UnlockTimesheet(f.admin, ts.ID)
	require.Error(t, err)

	stored, err := f.store.TimesheetRepository().GetByID(context.Background(), ts.ID)
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusLocked, stored.Status, "parent status must not change without its entries")
	for _, s := range f.entryStatuses(ts.ID) {
		assert.Equal(t, timesheet.StatusLocked, s)
	}
}

func TestUnlockTimesheet_OpenHasNoEdge(t *testing.T) {
	f := newFixture(t)
	ts := f.seed(timesheet.StatusOpen, 1)

	_, err := f.timesheets.UnlockTimesheet(f.admin, ts.ID)
	var stErr *timesheet.StateTransitionError
	assert.ErrorAs(t, err, &stErr)
}

func TestDeleteTimesheet(t *testing.T) {
	f := newFixture(t)
	ts := f.seed(timesheet.StatusLocked, 4)

	err := f.timesheets.DeleteTimesheet(f.owner, ts.ID)
	assert.ErrorIs(t, err, timesheet.ErrAdminRequired)

	require.NoError(t, f.timesheets.DeleteTimesheet(f.admin, ts.ID))
	assert.Empty(t, f.store.Timesheets())
	assert.Empty(t, f.store.Entries())

	err = f.timesheets.DeleteTimesheet(f.admin, ts.ID)
	assert.ErrorIs(t, err, timesheet.ErrTimesheetNotFound)
}

func TestGetTimesheet(t *testing.T) {
	f := newFixture(t)
	ts := f.seed(timesheet.StatusOpen, 2)

	resp, err := f.timesheets.GetTimesheet(f.owner, ts.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.EntryCount)
	assert.InDelta(t, 6.0, resp.TotalHours, 1e-9)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "emp-1", resp.Entries[0].EmployeeID)

	_, err = f.timesheets.GetTimesheet(f.other, ts.ID)
	assert.ErrorIs(t, err, timesheet.ErrNotOwner)

	_, err = f.timesheets.GetTimesheet(f.admin, "missing")
	assert.ErrorIs(t, err, timesheet.ErrTimesheetNotFound)
}

func TestListTimesheets_ScopedToCaller(t *testing.T) {
	f := newFixture(t)
	f.seed(timesheet.StatusOpen, 1)
	f.store.AddTimesheet(timesheet.Timesheet{EmployeeID: "emp-2", WeekStarting: testMonday, Status: timesheet.StatusSubmitted})

	own, err := f.timesheets.ListTimesheets(f.owner, timesheet.TimesheetFilter{EmployeeID: ptr("emp-2")})
	require.NoError(t, err)
	require.Len(t, own.Timesheets, 1)
	assert.Equal(t, "emp-1", own.Timesheets[0].EmployeeID)
	assert.Equal(t, 1, own.Timesheets[0].EntryCount)
	assert.Nil(t, own.Timesheets[0].Entries)

	all, err := f.timesheets.ListTimesheets(f.admin, timesheet.TimesheetFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.Total)
	assert.Equal(t, 1, all.Page)
	assert.Equal(t, 20, all.Limit)

	submitted, err := f.timesheets.ListTimesheets(f.admin, timesheet.TimesheetFilter{Status: ptr("submitted")})
	require.NoError(t, err)
	require.Len(t, submitted.Timesheets, 1)
	assert.Equal(t, "emp-2", submitted.Timesheets[0].EmployeeID)
}

func TestAutoCreateTimesheets_Idempotent(t *testing.T) {
	f := newFixture(t)

	first, err := f.timesheets.AutoCreateTimesheets(f.owner, "")
	require.NoError(t, err)
	require.Len(t, first.Created, 2)
	assert.Equal(t, 0, first.Existing)
	for _, ts := range first.Created {
		assert.True(t, ts.AutoCreated)
	}

	second, err := f.timesheets.AutoCreateTimesheets(f.owner, "")
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Equal(t, 2, second.Existing)
	assert.Len(t, f.store.Timesheets(), 2)

	_, err = f.timesheets.AutoCreateTimesheets(f.other, "emp-1")
	assert.ErrorIs(t, err, timesheet.ErrNotOwner)
}
