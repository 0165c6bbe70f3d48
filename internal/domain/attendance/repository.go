package attendance

import (
	"context"
	"time"
)

// Provider pulls attendance records from the authoritative external system
// for the inclusive date range [from, to].
type Provider interface {
	Name() string
	Fetch(ctx context.Context, from, to time.Time) ([]Record, error)
}
