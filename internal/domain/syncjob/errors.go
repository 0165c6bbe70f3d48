package syncjob

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound       = errors.New("sync job not found")
	ErrJobAlreadyRunning = errors.New("a job of this kind is already pending or running")
	ErrJobTerminal       = errors.New("sync job is already finished")
	ErrUnknownKind       = errors.New("unknown sync job kind")
	ErrNoRunner          = errors.New("no runner registered for this job kind")
)

// ActiveJobError names the job that keeps a new job of the same kind from
// starting. It matches ErrJobAlreadyRunning with errors.Is.
type ActiveJobError struct {
	Kind  Kind
	JobID string
}

func (e *ActiveJobError) Error() string {
	return fmt.Sprintf("a %s job is already pending or running: %s", e.Kind, e.JobID)
}

func (e *ActiveJobError) Is(target error) bool {
	return target == ErrJobAlreadyRunning
}
