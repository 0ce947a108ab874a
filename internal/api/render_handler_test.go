package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/revive-api/internal/domain"
	"github.com/phrazzld/revive-api/internal/task"
)

// stubRenderer implements task.Renderer with a function field.
type stubRenderer struct {
	RenderFn func(ctx context.Context, userID int64, imageURL, prompt string) domain.RenderOutcome
}

func (s *stubRenderer) Render(ctx context.Context, userID int64, imageURL, prompt string) domain.RenderOutcome {
	return s.RenderFn(ctx, userID, imageURL, prompt)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// newRenderRouter wires a RenderHandler over a runner backed by the given
// renderer. The runner is started and stopped with the test.
func newRenderRouter(t *testing.T, renderer task.Renderer) (*chi.Mux, *task.Runner) {
	t.Helper()

	runner, err := task.NewRunner(renderer, task.NewRegistry(), task.RunnerConfig{WorkerCount: 1, QueueSize: 5}, testLogger())
	require.NoError(t, err)
	runner.Start()
	t.Cleanup(runner.Stop)

	handler := NewRenderHandler(runner, testLogger())

	router := chi.NewRouter()
	router.Post("/api/renders", handler.CreateRender)
	router.Get("/api/renders/{id}", handler.GetRender)
	return router, runner
}

func TestCreateRender(t *testing.T) {
	t.Parallel()

	okRenderer := &stubRenderer{
		RenderFn: func(ctx context.Context, userID int64, imageURL, prompt string) domain.RenderOutcome {
			return domain.SuccessOutcome("https://cdn.example.com/out.mp4", "/tmp/out.mp4")
		},
	}

	t.Run("accepts a valid request with 202 and a job id", func(t *testing.T) {
		router, _ := newRenderRouter(t, okRenderer)

		body := `{"user_id":42,"image_url":"https://example.com/photo.jpg","prompt":"smile"}`
		req := httptest.NewRequest(http.MethodPost, "/api/renders", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)

		var resp CreateRenderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		_, err := uuid.Parse(resp.JobID)
		assert.NoError(t, err)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		router, _ := newRenderRouter(t, okRenderer)

		req := httptest.NewRequest(http.MethodPost, "/api/renders", strings.NewReader(`{not json`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects non-positive user id", func(t *testing.T) {
		router, _ := newRenderRouter(t, okRenderer)

		body := `{"user_id":0,"image_url":"https://example.com/photo.jpg"}`
		req := httptest.NewRequest(http.MethodPost, "/api/renders", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects missing image url", func(t *testing.T) {
		router, _ := newRenderRouter(t, okRenderer)

		body := `{"user_id":42}`
		req := httptest.NewRequest(http.MethodPost, "/api/renders", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetRender(t *testing.T) {
	t.Parallel()

	t.Run("reports a completed render with its outcome", func(t *testing.T) {
		renderer := &stubRenderer{
			RenderFn: func(ctx context.Context, userID int64, imageURL, prompt string) domain.RenderOutcome {
				return domain.SuccessOutcome("https://cdn.example.com/out.mp4", "/tmp/out.mp4")
			},
		}
		router, runner := newRenderRouter(t, renderer)

		jobID, err := runner.Submit(42, "https://example.com/photo.jpg", "")
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			job, ok := runner.Job(jobID)
			return ok && job.Status == task.JobStatusCompleted
		}, 2*time.Second, 5*time.Millisecond)

		req := httptest.NewRequest(http.MethodGet, "/api/renders/"+jobID.String(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp RenderJobResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, jobID.String(), resp.JobID)
		assert.Equal(t, string(task.JobStatusCompleted), resp.Status)
		require.NotNil(t, resp.Outcome)
		assert.True(t, resp.Outcome.OK)
		assert.Equal(t, "/tmp/out.mp4", resp.Outcome.ArtifactPath)
	})

	t.Run("reports a failed render with its error kind", func(t *testing.T) {
		renderer := &stubRenderer{
			RenderFn: func(ctx context.Context, userID int64, imageURL, prompt string) domain.RenderOutcome {
				return domain.FailureOutcome(domain.ErrorKindTimeout, "timed out waiting for animation job")
			},
		}
		router, runner := newRenderRouter(t, renderer)

		jobID, err := runner.Submit(42, "https://example.com/photo.jpg", "")
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			job, ok := runner.Job(jobID)
			return ok && job.Status == task.JobStatusFailed
		}, 2*time.Second, 5*time.Millisecond)

		req := httptest.NewRequest(http.MethodGet, "/api/renders/"+jobID.String(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp RenderJobResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Outcome)
		assert.False(t, resp.Outcome.OK)
		assert.Equal(t, string(domain.ErrorKindTimeout), resp.Outcome.ErrorKind)
	})

	t.Run("unknown job id is 404", func(t *testing.T) {
		renderer := &stubRenderer{
			RenderFn: func(ctx context.Context, userID int64, imageURL, prompt string) domain.RenderOutcome {
				return domain.SuccessOutcome("", "")
			},
		}
		router, _ := newRenderRouter(t, renderer)

		req := httptest.NewRequest(http.MethodGet, "/api/renders/"+uuid.NewString(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed job id is 400", func(t *testing.T) {
		renderer := &stubRenderer{
			RenderFn: func(ctx context.Context, userID int64, imageURL, prompt string) domain.RenderOutcome {
				return domain.SuccessOutcome("", "")
			},
		}
		router, _ := newRenderRouter(t, renderer)

		req := httptest.NewRequest(http.MethodGet, "/api/renders/not-a-uuid", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
