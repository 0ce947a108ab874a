package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/phrazzld/revive-api/internal/domain"
)

// AddCredits grants purchased render credits to userID. paidAmount is the
// raw payment amount, accumulated for auditing only. Called by the transport
// layer once a payment is confirmed; the checkout flow itself lives outside
// this core.
func (l *Ledger) AddCredits(ctx context.Context, userID int64, credits, paidAmount int) (*domain.Account, error) {
	if credits <= 0 {
		return nil, fmt.Errorf("credits must be positive, got %d", credits)
	}

	st := l.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	account, err := l.store.Update(ctx, userID, func(account *domain.Account) error {
		account.PaidCredits += credits
		account.TopUpTotal += paidAmount
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add credits for user %d: %w", userID, err)
	}

	l.logger.InfoContext(ctx, "credits added",
		"user_id", userID,
		"credits", credits,
		"paid_amount", paidAmount,
		"balance", account.PaidCredits)

	return account, nil
}

// GrantUnlimited opens (or extends) an unlimited-usage window for userID.
func (l *Ledger) GrantUnlimited(ctx context.Context, userID int64, duration time.Duration) (*domain.Account, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("unlimited duration must be positive, got %s", duration)
	}

	st := l.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	until := time.Now().UTC().Add(duration)
	account, err := l.store.Update(ctx, userID, func(account *domain.Account) error {
		if until.After(account.UnlimitedUntil) {
			account.UnlimitedUntil = until
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to grant unlimited window for user %d: %w", userID, err)
	}

	l.logger.InfoContext(ctx, "unlimited window granted",
		"user_id", userID,
		"until", account.UnlimitedUntil)

	return account, nil
}

// Balance returns the current account state for userID.
func (l *Ledger) Balance(ctx context.Context, userID int64) (*domain.Account, error) {
	return l.store.Get(ctx, userID)
}

// Stats are process-local usage counters for the operator.
type Stats struct {
	// AccountsSeen is the number of distinct accounts touched since start.
	AccountsSeen int

	// RenderedTotal is the number of successfully settled renders.
	RenderedTotal int64
}

// UsageStats returns the current usage counters.
func (l *Ledger) UsageStats() Stats {
	l.mu.Lock()
	seen := len(l.states)
	l.mu.Unlock()

	return Stats{
		AccountsSeen:  seen,
		RenderedTotal: l.settledRenders.Load(),
	}
}
