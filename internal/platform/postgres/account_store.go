package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/revive-api/internal/domain"
	"github.com/phrazzld/revive-api/internal/platform/logger"
	"github.com/phrazzld/revive-api/internal/store"
)

// AccountStore implements the store.AccountStore interface using PostgreSQL.
// Per-key atomicity comes from running every update in a transaction with
// SELECT ... FOR UPDATE on the account row.
type AccountStore struct {
	db *sql.DB
}

var _ store.AccountStore = (*AccountStore)(nil)

// NewAccountStore creates a new AccountStore.
func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{
		db: db,
	}
}

// Get returns the account for userID, or a zero account if none exists.
func (s *AccountStore) Get(ctx context.Context, userID int64) (*domain.Account, error) {
	query := `
		SELECT user_id, free_used, paid_credits, topup_total, unlimited_until, updated_at
		FROM accounts
		WHERE user_id = $1
	`

	account, err := queryAccount(ctx, s.db, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.Account{UserID: userID}, nil
	}
	if err != nil {
		logger.FromContext(ctx).Error("failed to load account",
			"user_id", userID,
			"error", err)
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	return account, nil
}

// Update atomically loads (or creates) the account row, applies mutate under
// a row lock, and persists the result.
func (s *AccountStore) Update(
	ctx context.Context,
	userID int64,
	mutate func(*domain.Account) error,
) (*domain.Account, error) {
	log := logger.FromContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %v", store.ErrUpdateFailed, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Ensure the row exists so FOR UPDATE has something to lock.
	insert := `
		INSERT INTO accounts (user_id, free_used, paid_credits, topup_total, unlimited_until, updated_at)
		VALUES ($1, 0, 0, 0, NULL, $2)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, insert, userID, time.Now().UTC()); err != nil {
		log.Error("failed to ensure account row",
			"user_id", userID,
			"error", err)
		return nil, fmt.Errorf("%w: failed to ensure account row: %v", store.ErrUpdateFailed, err)
	}

	selectForUpdate := `
		SELECT user_id, free_used, paid_credits, topup_total, unlimited_until, updated_at
		FROM accounts
		WHERE user_id = $1
		FOR UPDATE
	`
	account, err := queryAccount(ctx, tx, selectForUpdate, userID)
	if err != nil {
		log.Error("failed to lock account row",
			"user_id", userID,
			"error", err)
		return nil, fmt.Errorf("%w: failed to lock account row: %v", store.ErrUpdateFailed, err)
	}

	if err := mutate(account); err != nil {
		return nil, err
	}

	var unlimitedUntil any
	if !account.UnlimitedUntil.IsZero() {
		unlimitedUntil = account.UnlimitedUntil
	}

	update := `
		UPDATE accounts
		SET free_used = $1, paid_credits = $2, topup_total = $3, unlimited_until = $4, updated_at = $5
		WHERE user_id = $6
	`
	account.UpdatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx, update,
		account.FreeUsed,
		account.PaidCredits,
		account.TopUpTotal,
		unlimitedUntil,
		account.UpdatedAt,
		userID,
	); err != nil {
		log.Error("failed to persist account",
			"user_id", userID,
			"error", err)
		return nil, fmt.Errorf("%w: failed to persist account: %v", store.ErrUpdateFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit account update: %v", store.ErrUpdateFailed, err)
	}

	return account, nil
}

// queryAccount scans one account row through a store.DBTX, so the same query
// helper serves both the pooled connection and an open transaction.
func queryAccount(ctx context.Context, q store.DBTX, query string, userID int64) (*domain.Account, error) {
	var account domain.Account
	var unlimitedUntil sql.NullTime

	if err := q.QueryRowContext(ctx, query, userID).Scan(
		&account.UserID,
		&account.FreeUsed,
		&account.PaidCredits,
		&account.TopUpTotal,
		&unlimitedUntil,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if unlimitedUntil.Valid {
		account.UnlimitedUntil = unlimitedUntil.Time
	}

	return &account, nil
}
