package correlation

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAlreadyExists is returned when registering a job id that is still live
	ErrAlreadyExists = errors.New("job id already registered")

	// ErrNotFound is returned when a job id is not (or no longer) in the store
	ErrNotFound = errors.New("job id not found")
)

// Record holds the routing information for one in-flight job.
type Record struct {
	JobID       string
	Destination string
	CreatedAt   time.Time
}

// Store maps a job id to the destination its result must be delivered to.
// A record is live from Register until ResolveAndRemove, Remove, or TTL
// expiry. Implementations must be safe for concurrent use; ResolveAndRemove
// must be atomic per job id so that exactly one of N concurrent callers
// observes the destination.
type Store interface {
	// Register adds a live record. Returns ErrAlreadyExists if the id is
	// already live.
	Register(ctx context.Context, jobID, destination string) error

	// ResolveAndRemove retires the record and returns its destination.
	// Returns ErrNotFound if the id is not live.
	ResolveAndRemove(ctx context.Context, jobID string) (string, error)

	// Remove retires the record without resolving it. Used to roll back a
	// registration after a failed submission. Returns ErrNotFound if the id
	// is not live.
	Remove(ctx context.Context, jobID string) error
}
