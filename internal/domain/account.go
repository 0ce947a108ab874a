package domain

import "time"

// Account is the entitlement ledger entity for one user. It records how many
// free renders the user has consumed, their purchased credit balance, the
// lifetime total of paid top-ups, and an optional unlimited-usage window.
//
// Accounts are mutated only by the entitlement ledger, under per-account
// mutual exclusion. PaidCredits never goes negative.
type Account struct {
	UserID      int64
	FreeUsed    int
	PaidCredits int

	// TopUpTotal accumulates the raw payment amounts of all credit
	// purchases. It is an audit counter and plays no part in admission.
	TopUpTotal int

	// UnlimitedUntil is the end of a purchased unlimited-usage window.
	// The zero value means no window was ever granted.
	UnlimitedUntil time.Time

	UpdatedAt time.Time
}

// HasUnlimited reports whether the account's unlimited window covers now.
func (a *Account) HasUnlimited(now time.Time) bool {
	return !a.UnlimitedUntil.IsZero() && now.Before(a.UnlimitedUntil)
}
