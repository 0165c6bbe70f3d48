package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/syncjob"
	"gopkg.in/yaml.v3"
)

// yamlJob carries the result as a decoded value so it renders as YAML
// rather than an embedded JSON string.
type yamlJob struct {
	syncjob.JobResponse `yaml:",inline"`
	Result              any `yaml:"result,omitempty"`
}

type yamlPoll struct {
	Job          yamlJob `yaml:"job"`
	Attempts     int     `yaml:"attempts"`
	StillRunning bool    `yaml:"still_running"`
}

func toYAMLJob(job syncjob.JobResponse) (yamlJob, error) {
	out := yamlJob{JobResponse: job}
	if len(job.Result) > 0 {
		if err := json.Unmarshal(job.Result, &out.Result); err != nil {
			return yamlJob{}, fmt.Errorf("decoding job result: %w", err)
		}
	}
	return out, nil
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = w.Write(append(data, '\n'))
		return err
	}
}

func renderJob(w io.Writer, format string, job syncjob.JobResponse) error {
	switch format {
	case "json":
		return encode(w, format, job)
	case "yaml":
		y, err := toYAMLJob(job)
		if err != nil {
			return err
		}
		return encode(w, format, y)
	}
	return writeJobText(w, job)
}

func renderJobs(w io.Writer, format string, jobs []syncjob.JobResponse) error {
	switch format {
	case "json":
		return encode(w, format, jobs)
	case "yaml":
		out := make([]yamlJob, 0, len(jobs))
		for _, job := range jobs {
			y, err := toYAMLJob(job)
			if err != nil {
				return err
			}
			out = append(out, y)
		}
		return encode(w, format, out)
	}

	if len(jobs) == 0 {
		_, err := fmt.Fprintln(w, "No jobs found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tCREATED\tFINISHED")
	for _, job := range jobs {
		finished := "-"
		if job.FinishedAt != nil {
			finished = *job.FinishedAt
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", job.ID, job.Kind, job.Status, job.CreatedAt, finished)
	}
	return tw.Flush()
}

func renderPoll(w io.Writer, format string, result syncjob.PollResult) error {
	switch format {
	case "json":
		return encode(w, format, result)
	case "yaml":
		y, err := toYAMLJob(result.Job)
		if err != nil {
			return err
		}
		return encode(w, format, yamlPoll{Job: y, Attempts: result.Attempts, StillRunning: result.StillRunning})
	}

	if err := writeJobText(w, result.Job); err != nil {
		return err
	}
	if result.StillRunning {
		_, err := fmt.Fprintf(w, "\nStill running, check later (%d attempts): timesheetctl jobs status %s\n", result.Attempts, result.Job.ID)
		return err
	}
	return nil
}

func writeJobText(w io.Writer, job syncjob.JobResponse) error {
	var b strings.Builder
	field := func(label, value string) {
		fmt.Fprintf(&b, "%-11s%s\n", label+":", value)
	}

	field("ID", job.ID)
	field("Kind", job.Kind)
	field("Status", job.Status)
	if job.RequestedBy != nil {
		field("Requested", *job.RequestedBy)
	}
	field("Created", job.CreatedAt)
	if job.StartedAt != nil {
		field("Started", *job.StartedAt)
	}
	if job.FinishedAt != nil {
		field("Finished", *job.FinishedAt)
	}
	if job.ErrorMessage != nil {
		field("Error", *job.ErrorMessage)
	}

	if len(job.Progress) == 0 {
		field("Progress", "(none)")
	} else {
		b.WriteString("Progress:\n")
		for _, p := range job.Progress {
			fmt.Fprintf(&b, "  %s  %s\n", p.At, p.Message)
		}
	}

	if len(job.Result) > 0 {
		var indented bytes.Buffer
		if err := json.Indent(&indented, job.Result, "  ", "  "); err != nil {
			return fmt.Errorf("formatting job result: %w", err)
		}
		b.WriteString("Result:\n  ")
		b.Write(indented.Bytes())
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
