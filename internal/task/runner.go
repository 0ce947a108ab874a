package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/revive-api/internal/domain"
	"github.com/phrazzld/revive-api/internal/platform/logger"
)

// ErrQueueFull is returned by Submit when the job queue is at capacity.
var ErrQueueFull = errors.New("render queue is full")

// Renderer executes one render attempt. Implemented by service.RenderService.
type Renderer interface {
	Render(ctx context.Context, userID int64, imageURL, prompt string) domain.RenderOutcome
}

// RunnerConfig holds configuration for the render job runner.
type RunnerConfig struct {
	// WorkerCount determines how many concurrent workers process jobs.
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory job queue.
	QueueSize int
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount: 4,
		QueueSize:   100,
	}
}

// Runner manages background render job processing.
type Runner struct {
	renderer   Renderer
	registry   *Registry
	jobChan    chan *RenderJob
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     RunnerConfig
	logger     *slog.Logger
}

// NewRunner creates a new Runner.
func NewRunner(renderer Renderer, registry *Registry, config RunnerConfig, logger *slog.Logger) (*Runner, error) {
	if renderer == nil {
		return nil, errors.New("renderer cannot be nil")
	}
	if registry == nil {
		return nil, errors.New("registry cannot be nil")
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultRunnerConfig().WorkerCount
		logger.Warn("invalid worker count specified, using default",
			"default_count", config.WorkerCount)
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultRunnerConfig().QueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		renderer:   renderer,
		registry:   registry,
		jobChan:    make(chan *RenderJob, config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
	}, nil
}

// Submit accepts a render request, registers it, and queues it for
// processing. Returns the job id, or ErrQueueFull when the queue is at
// capacity.
func (r *Runner) Submit(userID int64, imageURL, prompt string) (uuid.UUID, error) {
	job := &RenderJob{
		ID:          uuid.New(),
		UserID:      userID,
		ImageURL:    imageURL,
		Prompt:      prompt,
		Status:      JobStatusPending,
		SubmittedAt: time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	r.registry.add(job)

	select {
	case r.jobChan <- job:
		r.logger.Debug("render job enqueued",
			"job_id", job.ID,
			"user_id", userID,
			"queue_len", len(r.jobChan),
			"queue_cap", cap(r.jobChan))
		return job.ID, nil
	default:
		r.registry.setStatus(job.ID, JobStatusFailed, &domain.RenderOutcome{
			ErrorKind: domain.ErrorKindTransient,
			Detail:    ErrQueueFull.Error(),
		})
		return uuid.Nil, fmt.Errorf("%w: capacity %d reached", ErrQueueFull, cap(r.jobChan))
	}
}

// Job returns a snapshot of the job with the given id.
func (r *Runner) Job(id uuid.UUID) (RenderJob, bool) {
	return r.registry.Get(id)
}

// Start launches the worker goroutines.
func (r *Runner) Start() {
	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
}

// Stop gracefully shuts down the runner, waiting for in-flight jobs.
func (r *Runner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
}

// worker processes jobs from the queue.
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting render worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping render worker", "worker_id", id)
			return

		case job, ok := <-r.jobChan:
			if !ok {
				return
			}
			r.processJob(job, id)
		}
	}
}

// processJob handles execution of a single render job.
func (r *Runner) processJob(job *RenderJob, workerID int) {
	log := r.logger.With(
		"job_id", job.ID,
		"user_id", job.UserID,
		"worker_id", workerID,
	)
	ctx := logger.WithLogger(r.ctx, log)

	r.registry.setStatus(job.ID, JobStatusProcessing, nil)
	log.Info("processing render job")

	outcome := r.renderer.Render(ctx, job.UserID, job.ImageURL, job.Prompt)

	if outcome.OK {
		r.registry.setStatus(job.ID, JobStatusCompleted, &outcome)
		log.Info("render job completed", "artifact_path", outcome.ArtifactPath)
	} else {
		r.registry.setStatus(job.ID, JobStatusFailed, &outcome)
		log.Warn("render job failed",
			"error_kind", outcome.ErrorKind,
			"detail", outcome.Detail)
	}
}
