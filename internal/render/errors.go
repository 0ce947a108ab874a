package render

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by animation providers.
var (
	// ErrInvalidConfig is returned when the provider client configuration is
	// invalid. Detected before any network call.
	ErrInvalidConfig = errors.New("invalid animation provider configuration")

	// ErrAuth is returned when the provider rejects the configured
	// credentials. Flagged for operator attention, never retried.
	ErrAuth = errors.New("animation provider rejected credentials")

	// ErrProviderQuota is returned when the provider-side balance is
	// exhausted. Distinct from the ledger's quota exhaustion; triggers the
	// single fallback-model retry when one is configured.
	ErrProviderQuota = errors.New("animation provider balance exhausted")

	// ErrTransient is returned for failures that might resolve on a later
	// attempt, including unexpected HTTP statuses and network errors.
	ErrTransient = errors.New("transient animation provider failure")

	// ErrTimeout is returned when the client gave up waiting for a terminal
	// job state. The provider job may still be running on its side.
	ErrTimeout = errors.New("timed out waiting for animation job")

	// ErrNoOutput is returned when the provider reported success but no
	// usable artifact URL could be extracted from the output.
	ErrNoOutput = errors.New("animation job succeeded without usable output")

	// ErrJobFailed is returned when the provider reports the job failed.
	ErrJobFailed = errors.New("animation job failed")

	// ErrJobCanceled is returned when the provider reports the job canceled.
	ErrJobCanceled = errors.New("animation job canceled")
)

// ValidationError is returned when the provider rejects the request shape.
// Fields holds the best-effort list of missing or invalid input field names
// scraped from the provider's error body. The parsing is heuristic and may
// legitimately produce an empty list; an empty list means "unspecified
// validation failure", never success.
type ValidationError struct {
	Fields []string
	Detail string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "animation provider rejected request: unspecified validation failure"
	}
	return fmt.Sprintf("animation provider rejected request: invalid fields: %s",
		strings.Join(e.Fields, ", "))
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
