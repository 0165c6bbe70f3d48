// Package testutil provides in-memory repositories and helpers for service
// and handler tests.
package testutil

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/syncjob"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/google/uuid"
)

// Epoch is the fixed "now" every Store starts from: Wednesday 2026-10-14.
var Epoch = time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)

// Clock is a manually advanced clock. Tick returns the current time and
// moves it forward by Step so consecutive writes get distinct timestamps.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start, Step: time.Millisecond}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Tick() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.Step)
	return t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Store is the shared state behind the in-memory repositories. Deleting a
// timesheet removes its entries, like the foreign key does.
type Store struct {
	mu sync.Mutex

	Clock *Clock

	timesheets map[string]timesheet.Timesheet
	entries    map[string]timesheet.Entry
	employees  map[string]employee.Employee
	jobs       map[string]syncjob.SyncJob

	failures map[string]error
}

func NewStore() *Store {
	return &Store{
		Clock:      NewClock(Epoch),
		timesheets: make(map[string]timesheet.Timesheet),
		entries:    make(map[string]timesheet.Entry),
		employees:  make(map[string]employee.Employee),
		jobs:       make(map[string]syncjob.SyncJob),
		failures:   make(map[string]error),
	}
}

// FailOn makes the named repository operation (e.g. "entries.SyncStatusWithTimesheet")
// return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) failure(op string) error {
	return s.failures[op]
}

// nextID returns a UUIDv7 like the PostgreSQL repositories mint. Version 7
// ids from one process sort in creation order.
func (s *Store) nextID() string {
	return uuid.Must(uuid.NewV7()).String()
}

type txKey struct{}

// Transactor snapshots the store and restores it when fn fails. Nested
// calls join the outer transaction.
type Transactor struct {
	store *Store
}

func (s *Store) Transactor() *Transactor {
	return &Transactor{store: s}
}

func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	snap := t.store.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	timesheets map[string]timesheet.Timesheet
	entries    map[string]timesheet.Entry
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		timesheets: maps.Clone(s.timesheets),
		entries:    maps.Clone(s.entries),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timesheets = snap.timesheets
	s.entries = snap.entries
}

// AddEmployee seeds an employee. Missing windows fall back to the defaults.
func (s *Store) AddEmployee(emp employee.Employee) employee.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()

	if emp.ID == "" {
		emp.ID = s.nextID()
	}
	if emp.EmployeeCode == "" {
		emp.EmployeeCode = "EMP-" + emp.ID
	}
	if emp.EmploymentStatus == "" {
		emp.EmploymentStatus = employee.EmploymentStatusActive
	}
	if emp.MorningWindow == (employee.TimeWindow{}) {
		emp.MorningWindow = employee.DefaultMorningWindow
	}
	if emp.AfternoonWindow == (employee.TimeWindow{}) {
		emp.AfternoonWindow = employee.DefaultAfternoonWindow
	}
	if emp.CreatedAt.IsZero() {
		emp.CreatedAt = s.Clock.Tick()
		emp.UpdatedAt = emp.CreatedAt
	}
	s.employees[emp.ID] = emp
	return emp
}

// AddTimesheet seeds a timesheet directly, bypassing any existence check.
func (s *Store) AddTimesheet(ts timesheet.Timesheet) timesheet.Timesheet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertTimesheet(ts)
}

// AddEntry seeds an entry directly, bypassing validation.
func (s *Store) AddEntry(e timesheet.Entry) timesheet.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertEntry(e)
}

// Timesheets returns every stored timesheet.
func (s *Store) Timesheets() []timesheet.Timesheet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]timesheet.Timesheet, 0, len(s.timesheets))
	for _, ts := range s.timesheets {
		out = append(out, ts)
	}
	sortTimesheets(out)
	return out
}

// Entries returns every stored entry with its employee joined.
func (s *Store) Entries() []timesheet.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]timesheet.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, s.join(e))
	}
	sortEntriesByCreation(out)
	return out
}

func (s *Store) insertTimesheet(ts timesheet.Timesheet) timesheet.Timesheet {
	if ts.ID == "" {
		ts.ID = s.nextID()
	}
	ts.WeekStarting = timesheet.TruncateDate(ts.WeekStarting)
	if ts.WeekEnding.IsZero() {
		ts.WeekEnding = timesheet.WeekEnd(ts.WeekStarting)
	}
	if ts.Status == "" {
		ts.Status = timesheet.StatusOpen
	}
	if ts.CreatedAt.IsZero() {
		ts.CreatedAt = s.Clock.Tick()
	}
	if ts.UpdatedAt.IsZero() {
		ts.UpdatedAt = ts.CreatedAt
	}
	s.timesheets[ts.ID] = ts
	return ts
}

func (s *Store) insertEntry(e timesheet.Entry) timesheet.Entry {
	if e.ID == "" {
		e.ID = s.nextID()
	}
	e.Date = timesheet.TruncateDate(e.Date)
	if e.Status == "" {
		e.Status = timesheet.StatusOpen
	}
	if e.Source == "" {
		e.Source = timesheet.SourceLocal
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.Clock.Tick()
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}
	e.EmployeeID = ""
	s.entries[e.ID] = e
	return s.join(e)
}

func (s *Store) join(e timesheet.Entry) timesheet.Entry {
	if ts, ok := s.timesheets[e.TimesheetID]; ok {
		e.EmployeeID = ts.EmployeeID
	}
	return e
}
