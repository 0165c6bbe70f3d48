package reconciliation

// CleanupSummary counts the outcome of duplicate cleanup.
type CleanupSummary struct {
	GroupsScanned     int `json:"groups_scanned"`
	DuplicatesRemoved int `json:"duplicates_removed"`
	EntriesVerified   int `json:"entries_verified"`
}

type MergeSummary struct {
	GroupsScanned    int `json:"groups_scanned"`
	TimesheetsMerged int `json:"timesheets_merged"`
	EntriesMoved     int `json:"entries_moved"`
}

type RepairSummary struct {
	TimesheetsChecked int `json:"timesheets_checked"`
	TimesheetsFixed   int `json:"timesheets_fixed"`
	EntriesUpdated    int `json:"entries_updated"`
}

type WeekendSummary struct {
	WeekendEntriesRemoved int `json:"weekend_entries_removed"`
	TimesheetsTouched     int `json:"timesheets_touched"`
}

type AutoCreateSummary struct {
	EmployeeID   string   `json:"employee_id"`
	Created      []string `json:"created"`
	AlreadyExist int      `json:"already_exist"`
}

// BatchAutoCreateSummary aggregates auto-creation over many employees.
type BatchAutoCreateSummary struct {
	EmployeesChecked  int      `json:"employees_checked"`
	TimesheetsCreated int      `json:"timesheets_created"`
	Failures          []string `json:"failures,omitempty"`
}
