package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/revive-api/internal/domain"
	"github.com/phrazzld/revive-api/internal/ledger"
	"github.com/phrazzld/revive-api/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, ledger.ErrQuotaExhausted):
		return http.StatusPaymentRequired

	case errors.Is(err, task.ErrQueueFull):
		return http.StatusServiceUnavailable

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidUserID):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"

	case errors.Is(err, ledger.ErrQuotaExhausted):
		return "No renders available; purchase credits to continue"

	case errors.Is(err, task.ErrQueueFull):
		return "Render queue is full, try again later"

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidUserID):
		return "Invalid request"

	default:
		return "An unexpected error occurred"
	}
}
