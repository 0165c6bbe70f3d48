package attendance

import (
	"errors"
	"fmt"
)

var (
	ErrMissingEmployeeCode   = errors.New("record has no employee code")
	ErrMissingCompany        = errors.New("record has no company")
	ErrInvalidInterval       = errors.New("record end time must be after start time")
	ErrProviderNotConfigured = errors.New("attendance provider is not configured")
)

// ExternalServiceError wraps a network, auth or protocol failure talking to
// the attendance provider.
type ExternalServiceError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("attendance provider %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("attendance provider %s: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}
