package syncjob

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/validator"
)

type StartJobRequest struct {
	Kind string  `json:"kind"`
	From *string `json:"from,omitempty"` // YYYY-MM-DD, external-sync only
	To   *string `json:"to,omitempty"`   // YYYY-MM-DD, external-sync only
}

func (r *StartJobRequest) Validate() error {
	var errs validator.ValidationErrors

	if _, err := ParseKind(r.Kind); err != nil {
		names := make([]string, 0, len(Kinds()))
		for _, k := range Kinds() {
			names = append(names, string(k))
		}
		errs = append(errs, validator.ValidationError{
			Field:   "kind",
			Message: "kind must be one of: " + strings.Join(names, ", "),
		})
	}

	from, fromOK := parseOptionalDate(r.From)
	if !fromOK {
		errs = append(errs, validator.ValidationError{
			Field:   "from",
			Message: "from must be in YYYY-MM-DD format",
		})
	}
	to, toOK := parseOptionalDate(r.To)
	if !toOK {
		errs = append(errs, validator.ValidationError{
			Field:   "to",
			Message: "to must be in YYYY-MM-DD format",
		})
	}
	if from != nil && to != nil && to.Before(*from) {
		errs = append(errs, validator.ValidationError{
			Field:   "to",
			Message: "to must not be before from",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Params converts the validated request into job parameters.
func (r *StartJobRequest) Params() Params {
	from, _ := parseOptionalDate(r.From)
	to, _ := parseOptionalDate(r.To)
	return Params{From: from, To: to}
}

func parseOptionalDate(s *string) (*time.Time, bool) {
	if s == nil || *s == "" {
		return nil, true
	}
	d, ok := validator.IsValidDate(*s)
	if !ok {
		return nil, false
	}
	return &d, true
}

type JobFilter struct {
	Kind  *string `json:"kind,omitempty"`
	Limit int     `json:"limit"`
}

func (f *JobFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Kind != nil && *f.Kind != "" {
		if _, err := ParseKind(*f.Kind); err != nil {
			errs = append(errs, validator.ValidationError{
				Field:   "kind",
				Message: "unknown job kind",
			})
		}
	}
	if f.Limit < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must be a positive number",
		})
	}
	if f.Limit == 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must not exceed 100",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ProgressResponse struct {
	At      string `json:"at" yaml:"at"`
	Message string `json:"message" yaml:"message"`
}

type JobResponse struct {
	ID           string             `json:"id" yaml:"id"`
	Kind         string             `json:"kind" yaml:"kind"`
	Status       string             `json:"status" yaml:"status"`
	Progress     []ProgressResponse `json:"progress" yaml:"progress"`
	Result       json.RawMessage    `json:"result,omitempty" yaml:"-"`
	ErrorMessage *string            `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	RequestedBy  *string            `json:"requested_by,omitempty" yaml:"requested_by,omitempty"`
	CreatedAt    string             `json:"created_at" yaml:"created_at"`
	StartedAt    *string            `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	FinishedAt   *string            `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// IsTerminal reports whether the job can no longer change.
func (r JobResponse) IsTerminal() bool {
	return Status(r.Status).IsTerminal()
}

// PollResult is what a bounded poll observed. StillRunning means the
// attempt budget ran out first; it is not an error.
type PollResult struct {
	Job          JobResponse `json:"job" yaml:"job"`
	Attempts     int         `json:"attempts" yaml:"attempts"`
	StillRunning bool        `json:"still_running" yaml:"still_running"`
}

// NewJobResponse renders a job for API consumers.
func NewJobResponse(job SyncJob) JobResponse {
	resp := JobResponse{
		ID:           job.ID,
		Kind:         string(job.Kind),
		Status:       string(job.Status),
		Progress:     make([]ProgressResponse, 0, len(job.Progress)),
		Result:       job.Result,
		ErrorMessage: job.ErrorMessage,
		RequestedBy:  job.RequestedBy,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
	}
	for _, p := range job.Progress {
		resp.Progress = append(resp.Progress, ProgressResponse{
			At:      p.At.Format(time.RFC3339),
			Message: p.Message,
		})
	}
	if job.StartedAt != nil {
		s := job.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &s
	}
	if job.FinishedAt != nil {
		s := job.FinishedAt.Format(time.RFC3339)
		resp.FinishedAt = &s
	}
	return resp
}
