package submitter

import (
	"errors"
	"fmt"
)

// ErrIDGenerationExhausted is returned when every generated job id collided
// with a live record. Should never happen in practice; surfaced to the user
// only as a generic failure.
var ErrIDGenerationExhausted = errors.New("job id generation exhausted")

// UpstreamError reports a failed job-start call. The debited credit has
// already been refunded and the registration rolled back when this is
// returned.
type UpstreamError struct {
	// Status is the HTTP status code, or 0 for a transport failure.
	Status int
	// Body holds an excerpt of the response body.
	Body string
	Err  error
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("upstream job start failed: status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("upstream job start failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
