package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/revive-api/internal/task"
)

// RenderHandler serves the render submission and status endpoints.
type RenderHandler struct {
	runner *task.Runner
	logger *slog.Logger
}

// NewRenderHandler creates a RenderHandler.
func NewRenderHandler(runner *task.Runner, logger *slog.Logger) *RenderHandler {
	return &RenderHandler{
		runner: runner,
		logger: logger,
	}
}

// CreateRender accepts a render request and queues it for processing.
// Responds 202 with the job id; the client polls GetRender for the outcome.
func (h *RenderHandler) CreateRender(w http.ResponseWriter, r *http.Request) {
	var req CreateRenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.UserID <= 0 {
		RespondWithError(w, r, http.StatusBadRequest, "user_id must be positive")
		return
	}
	if req.ImageURL == "" {
		RespondWithError(w, r, http.StatusBadRequest, "image_url is required")
		return
	}

	jobID, err := h.runner.Submit(req.UserID, req.ImageURL, req.Prompt)
	if err != nil {
		h.logger.Warn("failed to queue render",
			"user_id", req.UserID,
			"error", err)
		RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	RespondWithJSON(w, r, http.StatusAccepted, CreateRenderResponse{
		JobID: jobID.String(),
	})
}

// GetRender reports the status and, once finished, the outcome of a render.
func (h *RenderHandler) GetRender(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid job id")
		return
	}

	job, ok := h.runner.Job(jobID)
	if !ok {
		RespondWithError(w, r, http.StatusNotFound, "Render job not found")
		return
	}

	resp := RenderJobResponse{
		JobID:       job.ID.String(),
		Status:      string(job.Status),
		SubmittedAt: job.SubmittedAt,
		UpdatedAt:   job.UpdatedAt,
	}
	if job.Outcome != nil {
		resp.Outcome = &RenderOutcomeResponse{
			OK:           job.Outcome.OK,
			ArtifactURL:  job.Outcome.ArtifactURL,
			ArtifactPath: job.Outcome.ArtifactPath,
			ErrorKind:    string(job.Outcome.ErrorKind),
			Detail:       job.Outcome.Detail,
		}
	}

	RespondWithJSON(w, r, http.StatusOK, resp)
}
