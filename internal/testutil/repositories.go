package testutil

import (
	"context"
	"encoding/json"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/syncjob"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
)

func sortTimesheets(ts []timesheet.Timesheet) {
	sort.SliceStable(ts, func(i, j int) bool {
		a, b := ts[i], ts[j]
		if a.EmployeeID != b.EmployeeID {
			return a.EmployeeID < b.EmployeeID
		}
		if !a.WeekStarting.Equal(b.WeekStarting) {
			return a.WeekStarting.Before(b.WeekStarting)
		}
		return createdBefore(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})
}

func sortEntriesByCreation(es []timesheet.Entry) {
	sort.SliceStable(es, func(i, j int) bool {
		return createdBefore(es[i].CreatedAt, es[i].ID, es[j].CreatedAt, es[j].ID)
	})
}

func sortEntriesByDay(es []timesheet.Entry) {
	sort.SliceStable(es, func(i, j int) bool {
		a, b := es[i], es[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return createdBefore(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})
}

func createdBefore(at time.Time, id string, bt time.Time, bid string) bool {
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	return id < bid
}

// ========================================
// TIMESHEETS
// ========================================

type TimesheetRepository struct {
	store *Store
}

func (s *Store) TimesheetRepository() *TimesheetRepository {
	return &TimesheetRepository{store: s}
}

func (r *TimesheetRepository) Create(ctx context.Context, ts timesheet.Timesheet) (timesheet.Timesheet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("timesheets.Create"); err != nil {
		return timesheet.Timesheet{}, err
	}
	return r.store.insertTimesheet(ts), nil
}

func (r *TimesheetRepository) CreateIfNotExists(ctx context.Context, ts timesheet.Timesheet) (timesheet.Timesheet, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("timesheets.CreateIfNotExists"); err != nil {
		return timesheet.Timesheet{}, false, err
	}
	if existing := r.store.canonical(ts.EmployeeID, ts.WeekStarting); existing != nil {
		return *existing, false, nil
	}
	return r.store.insertTimesheet(ts), true, nil
}

// LockWeek only honours FailOn; the store mutex already serializes writes.
func (r *TimesheetRepository) LockWeek(ctx context.Context, employeeID string, weekStarting time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.failure("timesheets.LockWeek")
}

func (r *TimesheetRepository) GetByID(ctx context.Context, id string) (timesheet.Timesheet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ts, ok := r.store.timesheets[id]
	if !ok {
		return timesheet.Timesheet{}, timesheet.ErrTimesheetNotFound
	}
	return ts, nil
}

func (r *TimesheetRepository) GetByIDForUpdate(ctx context.Context, id string) (timesheet.Timesheet, error) {
	return r.GetByID(ctx, id)
}

func (r *TimesheetRepository) GetByEmployeeAndWeek(ctx context.Context, employeeID string, weekStarting time.Time) (*timesheet.Timesheet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.canonical(employeeID, weekStarting), nil
}

func (s *Store) canonical(employeeID string, weekStarting time.Time) *timesheet.Timesheet {
	week := timesheet.TruncateDate(weekStarting)
	var found *timesheet.Timesheet
	for _, ts := range s.timesheets {
		if ts.EmployeeID != employeeID || !ts.WeekStarting.Equal(week) {
			continue
		}
		if found == nil || createdBefore(ts.CreatedAt, ts.ID, found.CreatedAt, found.ID) {
			found = &ts
		}
	}
	return found
}

func (r *TimesheetRepository) List(ctx context.Context, filter timesheet.TimesheetFilter) ([]timesheet.Timesheet, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var from, to *time.Time
	if filter.WeekFrom != nil && *filter.WeekFrom != "" {
		d, err := timesheet.ParseDate(*filter.WeekFrom)
		if err != nil {
			return nil, 0, err
		}
		from = &d
	}
	if filter.WeekTo != nil && *filter.WeekTo != "" {
		d, err := timesheet.ParseDate(*filter.WeekTo)
		if err != nil {
			return nil, 0, err
		}
		to = &d
	}

	var matched []timesheet.Timesheet
	for _, ts := range r.store.timesheets {
		if filter.EmployeeID != nil && *filter.EmployeeID != "" && ts.EmployeeID != *filter.EmployeeID {
			continue
		}
		if filter.Status != nil && *filter.Status != "" && string(ts.Status) != strings.ToUpper(*filter.Status) {
			continue
		}
		if from != nil && ts.WeekStarting.Before(*from) {
			continue
		}
		if to != nil && ts.WeekStarting.After(*to) {
			continue
		}
		matched = append(matched, ts)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.WeekStarting.Equal(b.WeekStarting) {
			return a.WeekStarting.After(b.WeekStarting)
		}
		return createdBefore(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})

	limit := filter.Limit
	if limit == 0 {
		limit = 20
	}
	page := filter.Page
	if page == 0 {
		page = 1
	}
	total := int64(len(matched))
	start := min((page-1)*limit, len(matched))
	end := min(start+limit, len(matched))
	return matched[start:end], total, nil
}

func (r *TimesheetRepository) ListAll(ctx context.Context) ([]timesheet.Timesheet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]timesheet.Timesheet, 0, len(r.store.timesheets))
	for _, ts := range r.store.timesheets {
		out = append(out, ts)
	}
	sortTimesheets(out)
	return out, nil
}

func (r *TimesheetRepository) UpdateStatus(ctx context.Context, id string, status timesheet.Status) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("timesheets.UpdateStatus"); err != nil {
		return err
	}
	ts, ok := r.store.timesheets[id]
	if !ok {
		return timesheet.ErrTimesheetNotFound
	}
	ts.Status = status
	ts.UpdatedAt = r.store.Clock.Tick()
	r.store.timesheets[id] = ts
	return nil
}

func (r *TimesheetRepository) Touch(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if ts, ok := r.store.timesheets[id]; ok {
		ts.UpdatedAt = r.store.Clock.Tick()
		r.store.timesheets[id] = ts
	}
	return nil
}

func (r *TimesheetRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("timesheets.Delete"); err != nil {
		return err
	}
	if _, ok := r.store.timesheets[id]; !ok {
		return timesheet.ErrTimesheetNotFound
	}
	delete(r.store.timesheets, id)
	for entryID, e := range r.store.entries {
		if e.TimesheetID == id {
			delete(r.store.entries, entryID)
		}
	}
	return nil
}

// ========================================
// ENTRIES
// ========================================

type EntryRepository struct {
	store *Store
}

func (s *Store) EntryRepository() *EntryRepository {
	return &EntryRepository{store: s}
}

func (r *EntryRepository) Create(ctx context.Context, entry timesheet.Entry) (timesheet.Entry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("entries.Create"); err != nil {
		return timesheet.Entry{}, err
	}
	if _, ok := r.store.timesheets[entry.TimesheetID]; !ok {
		return timesheet.Entry{}, timesheet.ErrTimesheetNotFound
	}
	return r.store.insertEntry(entry), nil
}

func (r *EntryRepository) Update(ctx context.Context, entry timesheet.Entry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("entries.Update"); err != nil {
		return err
	}
	existing, ok := r.store.entries[entry.ID]
	if !ok {
		return timesheet.ErrEntryNotFound
	}
	entry.CreatedAt = existing.CreatedAt
	entry.UpdatedAt = r.store.Clock.Tick()
	entry.Date = timesheet.TruncateDate(entry.Date)
	entry.EmployeeID = ""
	r.store.entries[entry.ID] = entry
	return nil
}

func (r *EntryRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.entries[id]; !ok {
		return timesheet.ErrEntryNotFound
	}
	delete(r.store.entries, id)
	return nil
}

func (r *EntryRepository) GetByID(ctx context.Context, id string) (timesheet.Entry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e, ok := r.store.entries[id]
	if !ok {
		return timesheet.Entry{}, timesheet.ErrEntryNotFound
	}
	return r.store.join(e), nil
}

func (r *EntryRepository) filter(keep func(timesheet.Entry) bool) []timesheet.Entry {
	var out []timesheet.Entry
	for _, e := range r.store.entries {
		e = r.store.join(e)
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (r *EntryRepository) ListByTimesheet(ctx context.Context, timesheetID string) ([]timesheet.Entry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := r.filter(func(e timesheet.Entry) bool { return e.TimesheetID == timesheetID })
	sortEntriesByDay(out)
	return out, nil
}

func (r *EntryRepository) ListByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) ([]timesheet.Entry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	day := timesheet.TruncateDate(date)
	out := r.filter(func(e timesheet.Entry) bool {
		return e.EmployeeID == employeeID && e.Date.Equal(day)
	})
	sortEntriesByDay(out)
	return out, nil
}

func (r *EntryRepository) ListBySource(ctx context.Context, source timesheet.Source) ([]timesheet.Entry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := r.filter(func(e timesheet.Entry) bool { return e.Source == source })
	sortEntriesByCreation(out)
	return out, nil
}

func (r *EntryRepository) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("entries.DeleteMany"); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range ids {
		if _, ok := r.store.entries[id]; ok {
			delete(r.store.entries, id)
			n++
		}
	}
	return n, nil
}

func (r *EntryRepository) MarkVerified(ctx context.Context, ids []string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var n int64
	for _, id := range ids {
		e, ok := r.store.entries[id]
		if !ok || e.Verified {
			continue
		}
		e.Verified = true
		e.UpdatedAt = r.store.Clock.Tick()
		r.store.entries[id] = e
		n++
	}
	return n, nil
}

func (r *EntryRepository) SyncStatusWithTimesheet(ctx context.Context, timesheetID string, status timesheet.Status) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("entries.SyncStatusWithTimesheet"); err != nil {
		return 0, err
	}
	var n int64
	for id, e := range r.store.entries {
		if e.TimesheetID != timesheetID || e.Status == status {
			continue
		}
		e.Status = status
		e.UpdatedAt = r.store.Clock.Tick()
		r.store.entries[id] = e
		n++
	}
	return n, nil
}

func (r *EntryRepository) MoveToTimesheet(ctx context.Context, from, to string, status timesheet.Status) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("entries.MoveToTimesheet"); err != nil {
		return 0, err
	}
	var n int64
	for id, e := range r.store.entries {
		if e.TimesheetID != from {
			continue
		}
		e.TimesheetID = to
		e.Status = status
		e.UpdatedAt = r.store.Clock.Tick()
		r.store.entries[id] = e
		n++
	}
	return n, nil
}

func (r *EntryRepository) CountByTimesheet(ctx context.Context, timesheetID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n := 0
	for _, e := range r.store.entries {
		if e.TimesheetID == timesheetID {
			n++
		}
	}
	return n, nil
}

// ========================================
// EMPLOYEES
// ========================================

type EmployeeRepository struct {
	store *Store
}

func (s *Store) EmployeeRepository() *EmployeeRepository {
	return &EmployeeRepository{store: s}
}

func (r *EmployeeRepository) GetByID(ctx context.Context, id string) (employee.Employee, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	emp, ok := r.store.employees[id]
	if !ok {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return emp, nil
}

func (r *EmployeeRepository) GetByEmployeeCode(ctx context.Context, employeeCode string) (employee.Employee, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, emp := range r.store.employees {
		if emp.EmployeeCode == employeeCode {
			return emp, nil
		}
	}
	return employee.Employee{}, employee.ErrEmployeeNotFound
}

func (r *EmployeeRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var ids []string
	for id, emp := range r.store.employees {
		if emp.EmploymentStatus == employee.EmploymentStatusActive {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// ========================================
// SYNC JOBS
// ========================================

type SyncJobRepository struct {
	store *Store
}

func (s *Store) SyncJobRepository() *SyncJobRepository {
	return &SyncJobRepository{store: s}
}

// Job returns a stored job by id.
func (s *Store) Job(id string) (syncjob.SyncJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if ok {
		job.Progress = slices.Clone(job.Progress)
	}
	return job, ok
}

func (r *SyncJobRepository) Create(ctx context.Context, job syncjob.SyncJob) (syncjob.SyncJob, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.jobs {
		if existing.Kind == job.Kind && !existing.Status.IsTerminal() {
			return syncjob.SyncJob{}, syncjob.ErrJobAlreadyRunning
		}
	}
	if job.ID == "" {
		job.ID = r.store.nextID()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = r.store.Clock.Tick()
	}
	job.Progress = nil
	r.store.jobs[job.ID] = job
	return job, nil
}

func (r *SyncJobRepository) GetByID(ctx context.Context, id string) (syncjob.SyncJob, error) {
	job, ok := r.store.Job(id)
	if !ok {
		return syncjob.SyncJob{}, syncjob.ErrJobNotFound
	}
	return job, nil
}

func (r *SyncJobRepository) List(ctx context.Context, filter syncjob.JobFilter) ([]syncjob.SyncJob, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []syncjob.SyncJob
	for _, job := range r.store.jobs {
		if filter.Kind != nil && *filter.Kind != "" && string(job.Kind) != *filter.Kind {
			continue
		}
		job.Progress = slices.Clone(job.Progress)
		out = append(out, job)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	limit := filter.Limit
	if limit == 0 {
		limit = 20
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SyncJobRepository) FindActiveByKind(ctx context.Context, kind syncjob.Kind) (*syncjob.SyncJob, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, job := range r.store.jobs {
		if job.Kind == kind && !job.Status.IsTerminal() {
			return &job, nil
		}
	}
	return nil, nil
}

func (r *SyncJobRepository) MarkRunning(ctx context.Context, id string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	job, ok := r.store.jobs[id]
	if !ok || job.Status != syncjob.StatusPending {
		return syncjob.ErrJobTerminal
	}
	job.Status = syncjob.StatusRunning
	job.StartedAt = &at
	r.store.jobs[id] = job
	return nil
}

func (r *SyncJobRepository) AppendProgress(ctx context.Context, id string, message string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	job, ok := r.store.jobs[id]
	if !ok {
		return syncjob.ErrJobNotFound
	}
	seq := 1
	if n := len(job.Progress); n > 0 {
		seq = job.Progress[n-1].Seq + 1
	}
	job.Progress = append(slices.Clone(job.Progress), syncjob.ProgressEntry{Seq: seq, At: at, Message: message})
	r.store.jobs[id] = job
	return nil
}

func (r *SyncJobRepository) Complete(ctx context.Context, id string, result json.RawMessage, at time.Time) error {
	return r.finish(id, syncjob.StatusCompleted, result, nil, at)
}

func (r *SyncJobRepository) Fail(ctx context.Context, id string, message string, at time.Time) error {
	return r.finish(id, syncjob.StatusFailed, nil, &message, at)
}

func (r *SyncJobRepository) finish(id string, status syncjob.Status, result json.RawMessage, message *string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	job, ok := r.store.jobs[id]
	if !ok {
		return syncjob.ErrJobNotFound
	}
	if job.Status.IsTerminal() {
		return syncjob.ErrJobTerminal
	}
	job.Status = status
	job.Result = result
	job.ErrorMessage = message
	job.FinishedAt = &at
	r.store.jobs[id] = job
	return nil
}

func (r *SyncJobRepository) FailInterrupted(ctx context.Context, message string, at time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var n int64
	for id, job := range r.store.jobs {
		if job.Status.IsTerminal() {
			continue
		}
		msg := message
		job.Status = syncjob.StatusFailed
		job.ErrorMessage = &msg
		job.FinishedAt = &at
		r.store.jobs[id] = job
		n++
	}
	return n, nil
}

// SeedJob stores a job as-is, for tests that need a pre-existing state.
func (s *Store) SeedJob(job syncjob.SyncJob) syncjob.SyncJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID == "" {
		job.ID = s.nextID()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.Clock.Tick()
	}
	s.jobs[job.ID] = job
	return job
}

var (
	_ timesheet.TimesheetRepository = (*TimesheetRepository)(nil)
	_ timesheet.EntryRepository     = (*EntryRepository)(nil)
	_ employee.EmployeeRepository   = (*EmployeeRepository)(nil)
	_ syncjob.SyncJobRepository     = (*SyncJobRepository)(nil)
)
