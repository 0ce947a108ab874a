package render

import (
	"context"
	"time"

	"github.com/phrazzld/revive-api/internal/domain"
)

// JobState is the client-side state of one in-flight provider job.
type JobState string

// Job states. Created is entered on a successful submit response; Polling is
// entered before the first status check and re-entered after each
// non-terminal poll. The remaining four states are terminal. TimedOut is
// client-side only: the provider may independently reach any other terminal
// state after the client gives up.
const (
	JobStateCreated   JobState = "created"
	JobStatePolling   JobState = "polling"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateCanceled  JobState = "canceled"
	JobStateTimedOut  JobState = "timed_out"
)

// Terminal reports whether no further transitions leave the state.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateSucceeded, JobStateFailed, JobStateCanceled, JobStateTimedOut:
		return true
	}
	return false
}

// Job represents one in-flight provider request. It is owned exclusively by
// the provider client that created it for the duration of one
// submit-and-await cycle and must not be shared across calls.
type Job struct {
	ProviderJobID string
	State         JobState
	PollURL       string
	CreatedAt     time.Time
}

// Animator is the interface the orchestrator uses to talk to an animation
// provider. It serves as the boundary between the application core and the
// external job API, so the orchestrator can be tested without the network.
type Animator interface {
	// Submit issues one submission call for the request and returns the
	// created job. Errors are drawn from this package's taxonomy:
	// ErrInvalidConfig, ErrAuth, ErrProviderQuota, *ValidationError or
	// ErrTransient.
	Submit(ctx context.Context, req domain.RenderRequest) (*Job, error)

	// Await polls the job until a terminal state is observed or timeout
	// elapses, and returns the extracted artifact URL on success. On
	// ErrTimeout the provider job may still be running provider-side; the
	// caller must not assume provider-side cancellation.
	Await(ctx context.Context, job *Job, timeout time.Duration) (string, error)
}
