package syncjob

import (
	"encoding/json"
	"time"
)

type Kind string

const (
	KindCleanupDuplicates           Kind = "cleanup-duplicates"
	KindMergeDuplicateTimesheets    Kind = "merge-duplicate-timesheets"
	KindRepairStatusInconsistencies Kind = "repair-status-inconsistencies"
	KindRemoveWeekendEntries        Kind = "remove-weekend-entries"
	KindExternalSync                Kind = "external-sync"
)

// Kinds lists every job kind in the order they are documented to operators.
func Kinds() []Kind {
	return []Kind{
		KindCleanupDuplicates,
		KindMergeDuplicateTimesheets,
		KindRepairStatusInconsistencies,
		KindRemoveWeekendEntries,
		KindExternalSync,
	}
}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", ErrUnknownKind
}

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ProgressEntry is one line of the append-only progress log.
type ProgressEntry struct {
	Seq     int
	At      time.Time
	Message string
}

type SyncJob struct {
	ID           string
	Kind         Kind
	Status       Status
	Params       Params
	Progress     []ProgressEntry
	Result       json.RawMessage
	ErrorMessage *string
	RequestedBy  *string
	CreatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// Params are the optional inputs of a job. Only external-sync reads the
// date range.
type Params struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// PollPolicy bounds how long a caller keeps asking for a job's status.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

var DefaultPollPolicy = PollPolicy{Interval: 2 * time.Second, MaxAttempts: 120}
