package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/revive-api/internal/config"
	"github.com/phrazzld/revive-api/internal/domain"
	"github.com/phrazzld/revive-api/internal/render"
)

// Client implements the render.Animator interface against an asynchronous
// predictions API.
type Client struct {
	// logger is used for structured logging
	logger *slog.Logger

	// config contains provider-specific configuration
	config config.ProviderConfig

	// httpClient is used for all provider calls
	httpClient *http.Client

	// pollInterval is the fixed interval between job status polls
	pollInterval time.Duration
}

// statically assert the interface is satisfied
var _ render.Animator = (*Client)(nil)

// NewClient creates a new provider client with the provided dependencies.
// Missing credentials or model configuration fail fast with
// render.ErrInvalidConfig before any network call is made.
func NewClient(logger *slog.Logger, cfg config.ProviderConfig) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("%w: API token cannot be empty", render.ErrInvalidConfig)
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint cannot be empty", render.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model cannot be empty", render.ErrInvalidConfig)
	}
	if cfg.PollIntervalSeconds <= 0 {
		return nil, fmt.Errorf("%w: poll interval must be positive", render.ErrInvalidConfig)
	}

	return &Client{
		logger:       logger,
		config:       cfg,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
	}, nil
}

// submitRequest is the provider's submission payload.
type submitRequest struct {
	Version string         `json:"version"`
	Input   map[string]any `json:"input"`
}

// submitResponse is the provider's response to a successful submission.
type submitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

// pollResponse is the provider's response to a status poll.
type pollResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

// buildInput assembles the model input payload from the request plus the
// configured passthrough knobs.
func (c *Client) buildInput(req domain.RenderRequest) map[string]any {
	input := map[string]any{
		"image": req.SourceImageURL,
	}
	if req.Prompt != "" {
		input["prompt"] = req.Prompt
	}
	if c.config.Resolution != "" {
		input["resolution"] = c.config.Resolution
	}
	if c.config.Duration > 0 {
		input["duration"] = c.config.Duration
	}
	if c.config.Seed != 0 {
		input["seed"] = c.config.Seed
	}
	return input
}

// Submit issues one submission call for the request and returns the created
// job. HTTP statuses map onto the render error taxonomy: 402 to
// ErrProviderQuota, 401/403 to ErrAuth, 422 to ValidationError with a
// best-effort field list, anything else non-2xx to ErrTransient.
func (c *Client) Submit(ctx context.Context, req domain.RenderRequest) (*render.Job, error) {
	payload := submitRequest{
		Version: req.ModelID,
		Input:   c.buildInput(req),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submission payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create submission request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIToken)
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.DebugContext(ctx, "submitting render job",
		"model", req.ModelID,
		"user_id", req.UserID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: submission call failed: %v", render.ErrTransient, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read submission response: %v", render.ErrTransient, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.mapSubmitError(ctx, resp.StatusCode, respBody)
	}

	var parsed submitResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed submission response: %v", render.ErrTransient, err)
	}
	if parsed.ID == "" {
		return nil, fmt.Errorf("%w: submission response missing job id", render.ErrTransient)
	}

	pollURL := parsed.URLs.Get
	if pollURL == "" {
		pollURL = c.config.Endpoint + "/" + parsed.ID
	}

	job := &render.Job{
		ProviderJobID: parsed.ID,
		State:         render.JobStateCreated,
		PollURL:       pollURL,
		CreatedAt:     time.Now().UTC(),
	}

	c.logger.InfoContext(ctx, "render job submitted",
		"provider_job_id", job.ProviderJobID,
		"model", req.ModelID,
		"user_id", req.UserID)

	return job, nil
}

// mapSubmitError maps a non-2xx submission response onto the error taxonomy.
func (c *Client) mapSubmitError(ctx context.Context, status int, body []byte) error {
	detail := errorDetail(body)

	c.logger.WarnContext(ctx, "provider rejected submission",
		"status_code", status,
		"detail", detail)

	switch {
	case status == http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s", render.ErrProviderQuota, detail)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", render.ErrAuth, detail)
	case status == http.StatusUnprocessableEntity:
		return &render.ValidationError{
			Fields: scrapeInvalidFields(body),
			Detail: detail,
		}
	default:
		return fmt.Errorf("%w: unexpected status %d: %s", render.ErrTransient, status, detail)
	}
}

// Await polls the job's status endpoint on a fixed interval until a terminal
// state is observed or timeout elapses. Each wait is a cooperative suspension
// on the ticker or the caller's context, never a bare sleep. On timeout the
// job is marked TimedOut on the client side only; the provider job may still
// be running and the caller must not assume provider-side cancellation.
func (c *Client) Await(ctx context.Context, job *render.Job, timeout time.Duration) (string, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		job.State = render.JobStatePolling

		artifactURL, done, err := c.pollOnce(ctx, job)
		if done {
			return artifactURL, err
		}

		select {
		case <-ctx.Done():
			// Client-side abandon: the provider job's true final state is
			// unknown from here on.
			job.State = render.JobStateTimedOut
			return "", fmt.Errorf("awaiting animation job %s: %w", job.ProviderJobID, ctx.Err())
		case <-deadline.C:
			job.State = render.JobStateTimedOut
			c.logger.WarnContext(ctx, "gave up waiting for render job; it may still be running provider-side",
				"provider_job_id", job.ProviderJobID,
				"timeout", timeout.String())
			return "", fmt.Errorf("%w: job %s exceeded %s; it may still be running provider-side",
				render.ErrTimeout, job.ProviderJobID, timeout)
		case <-ticker.C:
		}
	}
}

// pollOnce performs a single status check. done is true when a terminal
// state was observed; a failed poll call is not terminal and is retried on
// the next tick, bounded by the overall await deadline.
func (c *Client) pollOnce(ctx context.Context, job *render.Job) (string, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, job.PollURL, nil)
	if err != nil {
		return "", true, fmt.Errorf("failed to create poll request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			// Let the caller's select observe the cancellation.
			return "", false, nil
		}
		c.logger.WarnContext(ctx, "poll call failed, will retry on next tick",
			"provider_job_id", job.ProviderJobID,
			"error", err)
		return "", false, nil
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.logger.WarnContext(ctx, "failed to read poll response, will retry on next tick",
			"provider_job_id", job.ProviderJobID,
			"error", err)
		return "", false, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WarnContext(ctx, "poll returned unexpected status, will retry on next tick",
			"provider_job_id", job.ProviderJobID,
			"status_code", resp.StatusCode)
		return "", false, nil
	}

	var parsed pollResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.WarnContext(ctx, "malformed poll response, will retry on next tick",
			"provider_job_id", job.ProviderJobID,
			"error", err)
		return "", false, nil
	}

	switch parsed.Status {
	case "succeeded":
		job.State = render.JobStateSucceeded
		artifactURL, ok := extractArtifactURL(parsed.Output)
		if !ok {
			return "", true, fmt.Errorf("%w: job %s", render.ErrNoOutput, job.ProviderJobID)
		}
		c.logger.InfoContext(ctx, "render job succeeded",
			"provider_job_id", job.ProviderJobID,
			"artifact_url", artifactURL)
		return artifactURL, true, nil
	case "failed":
		job.State = render.JobStateFailed
		return "", true, fmt.Errorf("%w: job %s: %s", render.ErrJobFailed, job.ProviderJobID, parsed.Error)
	case "canceled":
		job.State = render.JobStateCanceled
		return "", true, fmt.Errorf("%w: job %s", render.ErrJobCanceled, job.ProviderJobID)
	default:
		// starting, processing, or anything the provider adds later:
		// keep polling.
		return "", false, nil
	}
}
