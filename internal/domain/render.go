package domain

import "fmt"

// RenderRequest describes one attempt to animate a source image. It is an
// immutable value created per attempt and never mutated; retrying with a
// different model produces a new request.
type RenderRequest struct {
	UserID         int64
	SourceImageURL string
	Prompt         string
	ModelID        string
}

// NewRenderRequest creates a validated RenderRequest.
func NewRenderRequest(userID int64, sourceImageURL, prompt, modelID string) (RenderRequest, error) {
	if userID <= 0 {
		return RenderRequest{}, fmt.Errorf("%w: user ID must be positive", ErrInvalidUserID)
	}
	if sourceImageURL == "" {
		return RenderRequest{}, fmt.Errorf("%w: %v", ErrValidation, ErrEmptyImageURL)
	}
	if modelID == "" {
		return RenderRequest{}, fmt.Errorf("%w: %v", ErrValidation, ErrEmptyModel)
	}

	return RenderRequest{
		UserID:         userID,
		SourceImageURL: sourceImageURL,
		Prompt:         prompt,
		ModelID:        modelID,
	}, nil
}

// WithModel returns a copy of the request targeting a different model.
// Used for the single fallback-model retry.
func (r RenderRequest) WithModel(modelID string) RenderRequest {
	r.ModelID = modelID
	return r
}

// ErrorKind classifies render failures for callers that cannot (or should
// not) inspect wrapped Go errors, such as the transport layer.
type ErrorKind string

const (
	ErrorKindNone           ErrorKind = ""
	ErrorKindConfig         ErrorKind = "config"
	ErrorKindAuth           ErrorKind = "auth"
	ErrorKindProviderQuota  ErrorKind = "provider_quota"
	ErrorKindValidation     ErrorKind = "validation"
	ErrorKindTransient      ErrorKind = "transient"
	ErrorKindTimeout        ErrorKind = "timeout"
	ErrorKindNoOutput       ErrorKind = "no_output"
	ErrorKindJobFailed      ErrorKind = "job_failed"
	ErrorKindCanceled       ErrorKind = "canceled"
	ErrorKindFetchFailed    ErrorKind = "fetch_failed"
	ErrorKindQuotaExhausted ErrorKind = "quota_exhausted"
)

// RenderOutcome is the result of one render attempt. It is constructed once
// per attempt and immutable afterwards: either OK with the artifact location,
// or a classified failure.
type RenderOutcome struct {
	OK           bool
	ArtifactURL  string
	ArtifactPath string
	ErrorKind    ErrorKind
	Detail       string
}

// SuccessOutcome builds the outcome for a render whose artifact was fetched.
func SuccessOutcome(artifactURL, artifactPath string) RenderOutcome {
	return RenderOutcome{
		OK:           true,
		ArtifactURL:  artifactURL,
		ArtifactPath: artifactPath,
	}
}

// FailureOutcome builds the outcome for a failed render attempt.
func FailureOutcome(kind ErrorKind, detail string) RenderOutcome {
	return RenderOutcome{
		OK:        false,
		ErrorKind: kind,
		Detail:    detail,
	}
}
