// Package ledger implements the entitlement ledger: per-user balances of
// free, paid, and time-bounded unlimited render entitlements, with admission
// control and exactly-once settle-on-success debits.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phrazzld/revive-api/internal/domain"
	"github.com/phrazzld/revive-api/internal/store"
)

// ErrQuotaExhausted is returned by TryAdmit when the user has no admissible
// funding source. Distinct from the provider's balance exhaustion.
var ErrQuotaExhausted = errors.New("no entitlement available")

// ErrNilAdmission is returned by Settle when no admission is provided.
var ErrNilAdmission = errors.New("admission cannot be nil")

// FundingSource identifies which entitlement funds a render.
type FundingSource string

const (
	SourceFree      FundingSource = "free"
	SourcePaid      FundingSource = "paid"
	SourceUnlimited FundingSource = "unlimited"
)

// Admission is a capability issued by TryAdmit. It records which funding
// source will be charged so the later debit hits the same source that
// granted admission, even if the account changes in between (for example
// when the user buys credits mid-flight). An admission reserves a
// capability; it is not a charge.
type Admission struct {
	UserID int64
	Source FundingSource

	// settled flips on first Settle; guarded by the account's lock.
	settled bool
}

// accountState carries the per-account lock and in-flight reservations.
// Reservations exist only in memory: an admission lost to a crash charges
// nothing, which is the safe direction under settle-on-success.
type accountState struct {
	mu           sync.Mutex
	reservedPaid int
	reservedFree int
}

// Ledger decides render admission and performs the exactly-once debit tied
// to confirmed success. All operations on one account are linearized by a
// per-account mutex.
type Ledger struct {
	store     store.AccountStore
	freeQuota int
	logger    *slog.Logger

	mu     sync.Mutex
	states map[int64]*accountState

	settledRenders atomic.Int64
}

// New creates a Ledger over the given account store. freeQuota is the
// number of renders each account may consume for free.
func New(accounts store.AccountStore, freeQuota int, logger *slog.Logger) (*Ledger, error) {
	if accounts == nil {
		return nil, errors.New("account store cannot be nil")
	}
	if freeQuota < 0 {
		return nil, fmt.Errorf("free quota cannot be negative, got %d", freeQuota)
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Ledger{
		store:     accounts,
		freeQuota: freeQuota,
		logger:    logger,
		states:    make(map[int64]*accountState),
	}, nil
}

// state returns the lock-and-reservation record for userID, creating it on
// first contact.
func (l *Ledger) state(userID int64) *accountState {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.states[userID]
	if !ok {
		st = &accountState{}
		l.states[userID] = st
	}
	return st
}

// TryAdmit decides whether userID may start a render and, if so, which
// funding source the eventual debit will hit. Priority: an active unlimited
// window, then paid credits, then the free quota. Paid and free admissions
// reserve their unit so concurrent admissions cannot oversubscribe the last
// credit; the reservation is returned by Settle regardless of outcome.
func (l *Ledger) TryAdmit(ctx context.Context, userID int64) (*Admission, error) {
	st := l.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	account, err := l.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %d: %w", userID, err)
	}

	now := time.Now().UTC()

	switch {
	case account.HasUnlimited(now):
		l.logger.DebugContext(ctx, "admission granted",
			"user_id", userID,
			"source", SourceUnlimited)
		return &Admission{UserID: userID, Source: SourceUnlimited}, nil

	case account.PaidCredits-st.reservedPaid > 0:
		st.reservedPaid++
		l.logger.DebugContext(ctx, "admission granted",
			"user_id", userID,
			"source", SourcePaid,
			"reserved_paid", st.reservedPaid)
		return &Admission{UserID: userID, Source: SourcePaid}, nil

	case account.FreeUsed+st.reservedFree < l.freeQuota:
		st.reservedFree++
		l.logger.DebugContext(ctx, "admission granted",
			"user_id", userID,
			"source", SourceFree,
			"reserved_free", st.reservedFree)
		return &Admission{UserID: userID, Source: SourceFree}, nil

	default:
		return nil, fmt.Errorf("%w: user %d", ErrQuotaExhausted, userID)
	}
}

// Settle completes an admission. On success the funding source recorded at
// admission time is debited exactly once: paid credits decrement by one
// (clamped at zero), the free quota is marked consumed, an unlimited window
// is never charged. On failure the account is left bit-for-bit unchanged:
// a failed render never consumes a credit or the free allowance. Calling
// Settle again on the same admission is a no-op.
func (l *Ledger) Settle(ctx context.Context, admission *Admission, success bool) error {
	if admission == nil {
		return ErrNilAdmission
	}

	st := l.state(admission.UserID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if admission.settled {
		return nil
	}
	admission.settled = true

	// Return the reservation taken at admission time.
	switch admission.Source {
	case SourcePaid:
		if st.reservedPaid > 0 {
			st.reservedPaid--
		}
	case SourceFree:
		if st.reservedFree > 0 {
			st.reservedFree--
		}
	}

	if !success {
		l.logger.DebugContext(ctx, "admission released without charge",
			"user_id", admission.UserID,
			"source", admission.Source)
		return nil
	}

	switch admission.Source {
	case SourceUnlimited:
		// No debit ever.
	case SourcePaid:
		if _, err := l.store.Update(ctx, admission.UserID, func(account *domain.Account) error {
			if account.PaidCredits > 0 {
				account.PaidCredits--
			}
			return nil
		}); err != nil {
			return fmt.Errorf("failed to debit paid credit for user %d: %w", admission.UserID, err)
		}
	case SourceFree:
		if _, err := l.store.Update(ctx, admission.UserID, func(account *domain.Account) error {
			account.FreeUsed++
			return nil
		}); err != nil {
			return fmt.Errorf("failed to consume free quota for user %d: %w", admission.UserID, err)
		}
	default:
		return fmt.Errorf("unknown funding source %q", admission.Source)
	}

	l.settledRenders.Add(1)
	l.logger.InfoContext(ctx, "render settled",
		"user_id", admission.UserID,
		"source", admission.Source)

	return nil
}

// FreeQuota returns the configured free quota size.
func (l *Ledger) FreeQuota() int {
	return l.freeQuota
}
