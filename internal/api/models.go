package api

import "time"

// CreateRenderRequest is the request body for submitting a render.
type CreateRenderRequest struct {
	UserID   int64  `json:"user_id"`
	ImageURL string `json:"image_url"`
	Prompt   string `json:"prompt,omitempty"`
}

// CreateRenderResponse is returned when a render is accepted.
type CreateRenderResponse struct {
	JobID string `json:"job_id"`
}

// RenderOutcomeResponse reports the result of a finished render.
type RenderOutcomeResponse struct {
	OK           bool   `json:"ok"`
	ArtifactURL  string `json:"artifact_url,omitempty"`
	ArtifactPath string `json:"artifact_path,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
	Detail       string `json:"detail,omitempty"`
}

// RenderJobResponse is the representation of a queued or finished render.
type RenderJobResponse struct {
	JobID       string                 `json:"job_id"`
	Status      string                 `json:"status"`
	SubmittedAt time.Time              `json:"submitted_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Outcome     *RenderOutcomeResponse `json:"outcome,omitempty"`
}

// BalanceResponse reports an account's entitlement state.
type BalanceResponse struct {
	UserID        int64      `json:"user_id"`
	PaidCredits   int        `json:"paid_credits"`
	FreeRemaining int        `json:"free_remaining"`
	Unlimited     bool       `json:"unlimited"`
	UnlimitedTill *time.Time `json:"unlimited_until,omitempty"`
}

// AddCreditsRequest is the request body for the post-payment credit grant.
type AddCreditsRequest struct {
	Credits    int `json:"credits"`
	PaidAmount int `json:"paid_amount"`
}

// GrantUnlimitedRequest is the request body for granting an unlimited window.
type GrantUnlimitedRequest struct {
	Hours int `json:"hours"`
}

// StatsResponse reports process-local usage counters.
type StatsResponse struct {
	AccountsSeen  int   `json:"accounts_seen"`
	RenderedTotal int64 `json:"rendered_total"`
}
