package store

import (
	"context"
	"errors"

	"github.com/phrazzld/revive-api/internal/domain"
)

// Common store errors used across all store implementations.
var (
	// ErrUpdateFailed is returned when an account update could not be
	// applied, for example because the backing transaction failed.
	ErrUpdateFailed = errors.New("account update failed")
)

// AccountStore is the persistence interface for entitlement accounts.
// Accounts are created implicitly: reading an unknown user yields a zero
// account rather than an error, matching the "first contact creates the
// account" behavior of the ledger.
//
// Implementations must provide per-key atomic updates: two concurrent
// Update calls for the same user must serialize, and the mutate function
// must observe the state left by the other. The backing technology
// (in-memory map, SQL table, key-value store) is interchangeable without
// changing callers.
type AccountStore interface {
	// Get returns the account for userID, or a zero account if none exists.
	Get(ctx context.Context, userID int64) (*domain.Account, error)

	// Update atomically loads (or creates) the account for userID, applies
	// mutate to it, persists the result, and returns the updated account.
	// If mutate returns an error the account is left unchanged and the
	// error is returned unwrapped.
	Update(ctx context.Context, userID int64, mutate func(*domain.Account) error) (*domain.Account, error)
}
