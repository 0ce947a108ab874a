// Package task provides the in-process render job queue: accepted render
// requests are tracked in a registry and executed by a bounded worker pool.
package task

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/revive-api/internal/domain"
)

// JobStatus represents the current state of a queued render job.
type JobStatus string

// Possible job status values.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// RenderJob is one accepted render request and, once finished, its outcome.
type RenderJob struct {
	ID       uuid.UUID
	UserID   int64
	ImageURL string
	Prompt   string

	Status      JobStatus
	Outcome     *domain.RenderOutcome
	SubmittedAt time.Time
	UpdatedAt   time.Time
}

// Registry tracks render jobs for the lifetime of the process. Jobs are not
// durable: a job lost to a crash was never charged and is simply
// re-requested by the user.
type Registry struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*RenderJob
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[uuid.UUID]*RenderJob),
	}
}

// add stores a new job.
func (r *Registry) add(job *RenderJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
}

// setStatus transitions a job's status, attaching the outcome when present.
func (r *Registry) setStatus(id uuid.UUID, status JobStatus, outcome *domain.RenderOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return
	}
	job.Status = status
	job.UpdatedAt = time.Now().UTC()
	if outcome != nil {
		job.Outcome = outcome
	}
}

// Get returns a snapshot of the job with the given id.
func (r *Registry) Get(id uuid.UUID) (RenderJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return RenderJob{}, false
	}
	snapshot := *job
	return snapshot, true
}
