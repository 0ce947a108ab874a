package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/revive-api/internal/ledger"
)

// AccountHandler serves balance inquiries and the operator-side entitlement
// grants called after a confirmed payment.
type AccountHandler struct {
	ledger *ledger.Ledger
	logger *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(entitlements *ledger.Ledger, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		ledger: entitlements,
		logger: logger,
	}
}

func userIDParam(r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return userID, err == nil && userID > 0
}

// GetBalance reports the entitlement state of one account.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid user id")
		return
	}

	account, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load balance",
			"user_id", userID,
			"error", err)
		RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	now := time.Now().UTC()
	resp := BalanceResponse{
		UserID:        account.UserID,
		PaidCredits:   account.PaidCredits,
		FreeRemaining: max(h.ledger.FreeQuota()-account.FreeUsed, 0),
		Unlimited:     account.HasUnlimited(now),
	}
	if !account.UnlimitedUntil.IsZero() {
		until := account.UnlimitedUntil
		resp.UnlimitedTill = &until
	}

	RespondWithJSON(w, r, http.StatusOK, resp)
}

// AddCredits grants purchased credits to an account. Called by the payment
// confirmation hook; protected by the admin key middleware.
func (h *AccountHandler) AddCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid user id")
		return
	}

	var req AddCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Credits <= 0 {
		RespondWithError(w, r, http.StatusBadRequest, "credits must be positive")
		return
	}

	account, err := h.ledger.AddCredits(r.Context(), userID, req.Credits, req.PaidAmount)
	if err != nil {
		h.logger.Error("failed to add credits",
			"user_id", userID,
			"credits", req.Credits,
			"error", err)
		RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	RespondWithJSON(w, r, http.StatusOK, BalanceResponse{
		UserID:        account.UserID,
		PaidCredits:   account.PaidCredits,
		FreeRemaining: max(h.ledger.FreeQuota()-account.FreeUsed, 0),
		Unlimited:     account.HasUnlimited(time.Now().UTC()),
	})
}

// GrantUnlimited opens an unlimited-usage window for an account. Called by
// the payment confirmation hook; protected by the admin key middleware.
func (h *AccountHandler) GrantUnlimited(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid user id")
		return
	}

	var req GrantUnlimitedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Hours <= 0 {
		RespondWithError(w, r, http.StatusBadRequest, "hours must be positive")
		return
	}

	account, err := h.ledger.GrantUnlimited(r.Context(), userID, time.Duration(req.Hours)*time.Hour)
	if err != nil {
		h.logger.Error("failed to grant unlimited window",
			"user_id", userID,
			"hours", req.Hours,
			"error", err)
		RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	until := account.UnlimitedUntil
	RespondWithJSON(w, r, http.StatusOK, BalanceResponse{
		UserID:        account.UserID,
		PaidCredits:   account.PaidCredits,
		FreeRemaining: max(h.ledger.FreeQuota()-account.FreeUsed, 0),
		Unlimited:     account.HasUnlimited(time.Now().UTC()),
		UnlimitedTill: &until,
	})
}

// GetStats reports process-local usage counters for the operator.
func (h *AccountHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := h.ledger.UsageStats()
	RespondWithJSON(w, r, http.StatusOK, StatsResponse{
		AccountsSeen:  stats.AccountsSeen,
		RenderedTotal: stats.RenderedTotal,
	})
}
