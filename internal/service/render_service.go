// Package service composes the entitlement ledger, job scheduler, provider
// client, and artifact fetcher into the single public render operation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/revive-api/internal/domain"
	"github.com/phrazzld/revive-api/internal/fetch"
	"github.com/phrazzld/revive-api/internal/ledger"
	"github.com/phrazzld/revive-api/internal/render"
	"github.com/phrazzld/revive-api/internal/scheduler"
)

// ArtifactFetcher downloads a finished artifact to local storage.
type ArtifactFetcher interface {
	Fetch(ctx context.Context, url, destination string) error
}

// Config holds the orchestration settings for the render service.
type Config struct {
	// Model is the primary model id for submissions.
	Model string

	// FallbackModel, when non-empty, is tried once if the provider reports
	// its balance exhausted for the primary model. This is the only
	// automatic retry the orchestrator performs.
	FallbackModel string

	// DefaultPrompt replaces an empty user prompt.
	DefaultPrompt string

	// PollTimeout bounds the poll phase of one provider job. Separate from
	// the fetcher's own download timeout.
	PollTimeout time.Duration

	// TempDir is where fetched artifacts are staged. The caller of Render
	// owns deleting the artifact after delivery.
	TempDir string
}

// RenderService implements "render photo for user U with prompt P".
type RenderService struct {
	ledger    *ledger.Ledger
	scheduler *scheduler.Scheduler
	animator  render.Animator
	fetcher   ArtifactFetcher
	config    Config
	logger    *slog.Logger
}

// NewRenderService creates a RenderService with the provided dependencies.
func NewRenderService(
	entitlements *ledger.Ledger,
	slots *scheduler.Scheduler,
	animator render.Animator,
	fetcher ArtifactFetcher,
	cfg Config,
	logger *slog.Logger,
) (*RenderService, error) {
	if entitlements == nil {
		return nil, errors.New("ledger cannot be nil")
	}
	if slots == nil {
		return nil, errors.New("scheduler cannot be nil")
	}
	if animator == nil {
		return nil, errors.New("animator cannot be nil")
	}
	if fetcher == nil {
		return nil, errors.New("fetcher cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model cannot be empty", render.ErrInvalidConfig)
	}
	if cfg.PollTimeout <= 0 {
		return nil, fmt.Errorf("%w: poll timeout must be positive", render.ErrInvalidConfig)
	}
	if cfg.TempDir == "" {
		return nil, fmt.Errorf("%w: temp dir cannot be empty", render.ErrInvalidConfig)
	}

	return &RenderService{
		ledger:    entitlements,
		scheduler: slots,
		animator:  animator,
		fetcher:   fetcher,
		config:    cfg,
		logger:    logger,
	}, nil
}

// Render runs one complete render attempt for userID: admission, scheduling,
// provider submission with the single fallback-model retry, polling,
// artifact fetch, and ledger settlement. The ledger is settled exactly once
// per admission, as a success only when the artifact was fetched. The caller
// owns deleting the returned artifact after delivery.
func (s *RenderService) Render(ctx context.Context, userID int64, imageURL, prompt string) domain.RenderOutcome {
	log := s.logger.With("user_id", userID)

	admission, err := s.ledger.TryAdmit(ctx, userID)
	if err != nil {
		if errors.Is(err, ledger.ErrQuotaExhausted) {
			log.InfoContext(ctx, "render denied, no entitlement")
			return domain.FailureOutcome(domain.ErrorKindQuotaExhausted, err.Error())
		}
		log.ErrorContext(ctx, "admission check failed", "error", err)
		return domain.FailureOutcome(domain.ErrorKindTransient, err.Error())
	}

	outcome := s.renderAdmitted(ctx, log, userID, imageURL, prompt)

	if err := s.ledger.Settle(ctx, admission, outcome.OK); err != nil {
		// The render itself is done; a failed debit is an accounting
		// problem for the operator, not a reason to withhold the artifact.
		log.ErrorContext(ctx, "failed to settle admission",
			"source", admission.Source,
			"success", outcome.OK,
			"error", err)
	}

	return outcome
}

// renderAdmitted performs everything between admission and settlement. It
// never touches the ledger; settlement is the caller's job so it happens
// exactly once on every path out of this function.
func (s *RenderService) renderAdmitted(
	ctx context.Context,
	log *slog.Logger,
	userID int64,
	imageURL, prompt string,
) domain.RenderOutcome {
	permit, err := s.scheduler.Acquire(ctx)
	if err != nil {
		log.InfoContext(ctx, "abandoned while waiting for render slot", "error", err)
		return domain.FailureOutcome(domain.ErrorKindCanceled, err.Error())
	}
	defer permit.Release()

	if prompt == "" {
		prompt = s.config.DefaultPrompt
	}

	req, err := domain.NewRenderRequest(userID, imageURL, prompt, s.config.Model)
	if err != nil {
		return domain.FailureOutcome(domain.ErrorKindValidation, err.Error())
	}

	job, err := s.submitWithFallback(ctx, log, req)
	if err != nil {
		return domain.FailureOutcome(classify(err), err.Error())
	}

	artifactURL, err := s.animator.Await(ctx, job, s.config.PollTimeout)
	if err != nil {
		log.WarnContext(ctx, "render job did not produce an artifact",
			"provider_job_id", job.ProviderJobID,
			"job_state", job.State,
			"error", err)
		return domain.FailureOutcome(classify(err), err.Error())
	}

	destination := filepath.Join(s.config.TempDir, fmt.Sprintf("render-%s.mp4", uuid.NewString()))
	if err := s.fetcher.Fetch(ctx, artifactURL, destination); err != nil {
		// The provider succeeded but the artifact is unusable; the overall
		// outcome is a failure and the ledger is never charged.
		log.ErrorContext(ctx, "failed to fetch artifact",
			"artifact_url", artifactURL,
			"error", err)
		return domain.FailureOutcome(classify(err), err.Error())
	}

	log.InfoContext(ctx, "render completed",
		"provider_job_id", job.ProviderJobID,
		"artifact_path", destination)

	return domain.SuccessOutcome(artifactURL, destination)
}

// submitWithFallback submits the request, retrying once with the fallback
// model if the provider reports its balance exhausted. All other submit
// errors are terminal for the attempt.
func (s *RenderService) submitWithFallback(
	ctx context.Context,
	log *slog.Logger,
	req domain.RenderRequest,
) (*render.Job, error) {
	job, err := s.animator.Submit(ctx, req)
	if err == nil {
		return job, nil
	}

	if !errors.Is(err, render.ErrProviderQuota) || s.config.FallbackModel == "" {
		return nil, err
	}

	log.WarnContext(ctx, "provider balance exhausted, retrying with fallback model",
		"primary_model", req.ModelID,
		"fallback_model", s.config.FallbackModel)

	return s.animator.Submit(ctx, req.WithModel(s.config.FallbackModel))
}

// classify maps an attempt error onto the outcome error kinds surfaced to
// the transport layer.
func classify(err error) domain.ErrorKind {
	switch {
	case errors.Is(err, ledger.ErrQuotaExhausted):
		return domain.ErrorKindQuotaExhausted
	case errors.Is(err, render.ErrInvalidConfig):
		return domain.ErrorKindConfig
	case errors.Is(err, render.ErrAuth):
		return domain.ErrorKindAuth
	case errors.Is(err, render.ErrProviderQuota):
		return domain.ErrorKindProviderQuota
	case render.IsValidationError(err), errors.Is(err, domain.ErrValidation):
		return domain.ErrorKindValidation
	case errors.Is(err, render.ErrTimeout):
		return domain.ErrorKindTimeout
	case errors.Is(err, render.ErrNoOutput):
		return domain.ErrorKindNoOutput
	case errors.Is(err, render.ErrJobFailed):
		return domain.ErrorKindJobFailed
	case errors.Is(err, render.ErrJobCanceled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return domain.ErrorKindCanceled
	case errors.Is(err, fetch.ErrNetwork), errors.Is(err, fetch.ErrWrite):
		return domain.ErrorKindFetchFailed
	default:
		return domain.ErrorKindTransient
	}
}
