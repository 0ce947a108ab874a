package ledger

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/revive-api/internal/domain"
	"github.com/phrazzld/revive-api/internal/memorystore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func newTestLedger(t *testing.T, freeQuota int) (*Ledger, *memorystore.AccountStore) {
	t.Helper()
	accounts := memorystore.New()
	l, err := New(accounts, freeQuota, testLogger())
	require.NoError(t, err)
	return l, accounts
}

func addPaid(t *testing.T, l *Ledger, userID int64, credits int) {
	t.Helper()
	_, err := l.AddCredits(context.Background(), userID, credits, credits*50)
	require.NoError(t, err)
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("rejects nil store", func(t *testing.T) {
		_, err := New(nil, 1, testLogger())
		assert.Error(t, err)
	})

	t.Run("rejects negative free quota", func(t *testing.T) {
		_, err := New(memorystore.New(), -1, testLogger())
		assert.Error(t, err)
	})

	t.Run("rejects nil logger", func(t *testing.T) {
		_, err := New(memorystore.New(), 1, nil)
		assert.Error(t, err)
	})
}

func TestTryAdmit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("fresh account is admitted on free quota", func(t *testing.T) {
		l, _ := newTestLedger(t, 1)

		admission, err := l.TryAdmit(ctx, 42)

		require.NoError(t, err)
		assert.Equal(t, SourceFree, admission.Source)
	})

	t.Run("free quota exhausted without credits is rejected", func(t *testing.T) {
		l, _ := newTestLedger(t, 1)

		admission, err := l.TryAdmit(ctx, 42)
		require.NoError(t, err)
		require.NoError(t, l.Settle(ctx, admission, true))

		_, err = l.TryAdmit(ctx, 42)

		assert.ErrorIs(t, err, ErrQuotaExhausted)
	})

	t.Run("paid credits take priority over remaining free quota", func(t *testing.T) {
		l, _ := newTestLedger(t, 1)
		addPaid(t, l, 42, 1)

		admission, err := l.TryAdmit(ctx, 42)

		require.NoError(t, err)
		assert.Equal(t, SourcePaid, admission.Source)
	})

	t.Run("active unlimited window takes priority over paid credits", func(t *testing.T) {
		l, _ := newTestLedger(t, 1)
		addPaid(t, l, 42, 3)
		_, err := l.GrantUnlimited(ctx, 42, time.Hour)
		require.NoError(t, err)

		admission, err := l.TryAdmit(ctx, 42)

		require.NoError(t, err)
		assert.Equal(t, SourceUnlimited, admission.Source)
	})

	t.Run("expired unlimited window falls through to other sources", func(t *testing.T) {
		l, accounts := newTestLedger(t, 0)
		_, err := accounts.Update(ctx, 42, func(a *domain.Account) error {
			a.UnlimitedUntil = time.Now().UTC().Add(-time.Minute)
			a.PaidCredits = 1
			return nil
		})
		require.NoError(t, err)

		admission, err := l.TryAdmit(ctx, 42)

		require.NoError(t, err)
		assert.Equal(t, SourcePaid, admission.Source)
	})

	t.Run("admission does not charge the account", func(t *testing.T) {
		l, _ := newTestLedger(t, 1)
		addPaid(t, l, 42, 2)

		_, err := l.TryAdmit(ctx, 42)
		require.NoError(t, err)

		account, err := l.Balance(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, 2, account.PaidCredits)
		assert.Equal(t, 0, account.FreeUsed)
	})

	t.Run("in-flight admissions reserve their unit", func(t *testing.T) {
		l, _ := newTestLedger(t, 0)
		addPaid(t, l, 42, 1)

		first, err := l.TryAdmit(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, SourcePaid, first.Source)

		// The single credit is tied up until the first render settles.
		_, err = l.TryAdmit(ctx, 42)
		assert.ErrorIs(t, err, ErrQuotaExhausted)

		require.NoError(t, l.Settle(ctx, first, false))

		second, err := l.TryAdmit(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, SourcePaid, second.Source)
	})

	t.Run("concurrent admissions never oversubscribe credits", func(t *testing.T) {
		const credits = 3
		const attempts = 10

		l, _ := newTestLedger(t, 0)
		addPaid(t, l, 42, credits)

		var admitted, rejected atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := l.TryAdmit(ctx, 42); err != nil {
					rejected.Add(1)
					return
				}
				admitted.Add(1)
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(credits), admitted.Load())
		assert.Equal(t, int64(attempts-credits), rejected.Load())
	})
}

func TestSettle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("nil admission", func(t *testing.T) {
		l, _ := newTestLedger(t, 1)
		assert.ErrorIs(t, l.Settle(ctx, nil, true), ErrNilAdmission)
	})

	t.Run("success debits one paid credit", func(t *testing.T) {
		l, _ := newTestLedger(t, 0)
		addPaid(t, l, 42, 2)

		admission, err := l.TryAdmit(ctx, 42)
		require.NoError(t, err)
		require.NoError(t, l.Settle(ctx, admission, true))

		account, err := l.Balance(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, 1, account.PaidCredits)
	})

	t.Run("success consumes the free quota", func(t *testing.T) {
		l, _ := newTestLedger(t, 2)

		admission, err := l.TryAdmit(ctx, 42)
		require.NoError(t, err)
		require.NoError(t, l.Settle(ctx, admission, true))

		account, err := l.Balance(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, 1, account.FreeUsed)
	})

	t.Run("unlimited renders are never charged", func(t *testing.T) {
		l, _ := newTestLedger(t, 1)
		addPaid(t, l, 42, 2)
		_, err := l.GrantUnlimited(ctx, 42, time.Hour)
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			admission, err := l.TryAdmit(ctx, 42)
			require.NoError(t, err)
			require.NoError(t, l.Settle(ctx, admission, true))
		}

		account, err := l.Balance(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, 2, account.PaidCredits)
		assert.Equal(t, 0, account.FreeUsed)
	})

	t.Run("failure leaves the account unchanged", func(t *testing.T) {
		l, _ := newTestLedger(t, 1)
		addPaid(t, l, 42, 2)

		admission, err := l.TryAdmit(ctx, 42)
		require.NoError(t, err)
		require.NoError(t, l.Settle(ctx, admission, false))

		account, err := l.Balance(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, 2, account.PaidCredits)
		assert.Equal(t, 0, account.FreeUsed)
	})

	t.Run("settle is idempotent", func(t *testing.T) {
		l, _ := newTestLedger(t, 0)
		addPaid(t, l, 42, 2)

		admission, err := l.TryAdmit(ctx, 42)
		require.NoError(t, err)
		require.NoError(t, l.Settle(ctx, admission, true))
		require.NoError(t, l.Settle(ctx, admission, true))
		require.NoError(t, l.Settle(ctx, admission, false))

		account, err := l.Balance(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, 1, account.PaidCredits)
	})

	t.Run("debit hits the admission-time source even after a mid-flight topup", func(t *testing.T) {
		l, _ := newTestLedger(t, 1)

		// Admitted on the free quota with an empty paid balance.
		admission, err := l.TryAdmit(ctx, 42)
		require.NoError(t, err)
		require.Equal(t, SourceFree, admission.Source)

		// User buys credits while the render is in flight.
		addPaid(t, l, 42, 5)

		require.NoError(t, l.Settle(ctx, admission, true))

		account, err := l.Balance(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, 5, account.PaidCredits)
		assert.Equal(t, 1, account.FreeUsed)
	})

	t.Run("paid credits never go negative", func(t *testing.T) {
		l, accounts := newTestLedger(t, 0)
		addPaid(t, l, 42, 1)

		admission, err := l.TryAdmit(ctx, 42)
		require.NoError(t, err)

		// Balance drained out-of-band while the render is in flight.
		_, err = accounts.Update(ctx, 42, func(a *domain.Account) error {
			a.PaidCredits = 0
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, l.Settle(ctx, admission, true))

		account, err := l.Balance(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, 0, account.PaidCredits)
	})
}

func TestAddCredits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("rejects non-positive credits", func(t *testing.T) {
		l, _ := newTestLedger(t, 1)
		_, err := l.AddCredits(ctx, 42, 0, 0)
		assert.Error(t, err)
	})

	t.Run("accumulates credits and topup total", func(t *testing.T) {
		l, _ := newTestLedger(t, 1)

		_, err := l.AddCredits(ctx, 42, 3, 150)
		require.NoError(t, err)
		account, err := l.AddCredits(ctx, 42, 2, 100)
		require.NoError(t, err)

		assert.Equal(t, 5, account.PaidCredits)
		assert.Equal(t, 250, account.TopUpTotal)
	})
}

func TestGrantUnlimited(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("rejects non-positive duration", func(t *testing.T) {
		l, _ := newTestLedger(t, 1)
		_, err := l.GrantUnlimited(ctx, 42, 0)
		assert.Error(t, err)
	})

	t.Run("opens a window", func(t *testing.T) {
		l, _ := newTestLedger(t, 1)

		account, err := l.GrantUnlimited(ctx, 42, time.Hour)

		require.NoError(t, err)
		assert.True(t, account.HasUnlimited(time.Now().UTC()))
	})

	t.Run("never shortens an existing window", func(t *testing.T) {
		l, _ := newTestLedger(t, 1)

		long, err := l.GrantUnlimited(ctx, 42, 24*time.Hour)
		require.NoError(t, err)
		short, err := l.GrantUnlimited(ctx, 42, time.Minute)
		require.NoError(t, err)

		assert.Equal(t, long.UnlimitedUntil, short.UnlimitedUntil)
	})
}

func TestUsageStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	l, _ := newTestLedger(t, 1)

	first, err := l.TryAdmit(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, l.Settle(ctx, first, true))

	second, err := l.TryAdmit(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, l.Settle(ctx, second, false))

	stats := l.UsageStats()

	assert.Equal(t, 2, stats.AccountsSeen)
	assert.Equal(t, int64(1), stats.RenderedTotal)
}
