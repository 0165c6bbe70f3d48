package attendance

import (
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/reconciliation"
)

// SyncStep is one line of the step-by-step breakdown of an import.
type SyncStep struct {
	Name    string `json:"name"`
	Count   int    `json:"count"`
	Message string `json:"message"`
}

// RecordFailure names a record that could not be imported and why.
type RecordFailure struct {
	Record string `json:"record"`
	Reason string `json:"reason"`
}

// SyncResult is stored as the result of an external-sync job.
type SyncResult struct {
	Provider          string                        `json:"provider"`
	From              string                        `json:"from"`
	To                string                        `json:"to"`
	Fetched           int                           `json:"fetched"`
	Saved             int                           `json:"saved"`
	Skipped           int                           `json:"skipped"`
	Failed            int                           `json:"failed"`
	TimesheetsCreated int                           `json:"timesheets_created"`
	Cleanup           reconciliation.CleanupSummary `json:"cleanup"`
	Merge             reconciliation.MergeSummary   `json:"merge"`
	Steps             []SyncStep                    `json:"steps"`
	Failures          []RecordFailure               `json:"failures,omitempty"`
}
