// Package memorystore provides an in-memory store.AccountStore for tests
// and storage-less deployments.
package memorystore

import (
	"context"
	"sync"
	"time"

	"github.com/phrazzld/revive-api/internal/domain"
	"github.com/phrazzld/revive-api/internal/store"
)

// AccountStore keeps accounts in a mutex-guarded map. Updates for all keys
// serialize on one lock; per-key atomicity follows trivially.
type AccountStore struct {
	mu       sync.Mutex
	accounts map[int64]domain.Account
}

var _ store.AccountStore = (*AccountStore)(nil)

// New creates an empty in-memory account store.
func New() *AccountStore {
	return &AccountStore{
		accounts: make(map[int64]domain.Account),
	}
}

// Get returns a copy of the account for userID, or a zero account if none
// exists yet.
func (s *AccountStore) Get(ctx context.Context, userID int64) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account := s.accounts[userID]
	account.UserID = userID
	return &account, nil
}

// Update atomically applies mutate to the account for userID and persists
// the result.
func (s *AccountStore) Update(
	ctx context.Context,
	userID int64,
	mutate func(*domain.Account) error,
) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account := s.accounts[userID]
	account.UserID = userID

	if err := mutate(&account); err != nil {
		return nil, err
	}

	account.UpdatedAt = time.Now().UTC()
	s.accounts[userID] = account

	updated := account
	return &updated, nil
}
