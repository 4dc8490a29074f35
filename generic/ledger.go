/*
ledger.go - Append-only loyalty ledger types and the balance fold

PURPOSE:
  The ledger is the immutable source of truth for loyalty points. Every
  accrual (booking, purchase, rental, referral) and every negative
  adjustment is an Entry. The running total on an Account is derived:
  it is always recomputed from the full entry set, never incremented from
  a cached value.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: Entries are never updated, reordered or deleted
  2. DERIVED TOTAL: total == max(0, sum(amount of included entries))
  3. EXPIRY IS A FILTER: an entry whose expiry is at or before "now" is
     excluded from the fold whether or not the sweeper has stamped it yet

WHY A FILTERED FOLD?
  - Concurrent appends cannot be lost: the fold sees every committed entry
  - Re-running the sweeper cannot double-deduct: nothing is subtracted
  - History is preserved for audit

SEE ALSO:
  - store.go: LedgerStore interface
  - rewards/service.go: Posting, re-classification and the sweeper
*/
package generic

import "time"

// =============================================================================
// ENTRY
// =============================================================================

type EntryCategory string

const (
	CategoryBooking  EntryCategory = "booking"
	CategoryPurchase EntryCategory = "purchase"
	CategoryRental   EntryCategory = "rental"
	CategoryReferral EntryCategory = "referral"
	CategoryOther    EntryCategory = "other"
)

func (c EntryCategory) Valid() bool {
	switch c {
	case CategoryBooking, CategoryPurchase, CategoryRental, CategoryReferral, CategoryOther:
		return true
	}
	return false
}

// Entry is one immutable ledger line.
type Entry struct {
	ID          EntryID
	AccountID   AccountID
	Amount      int64 // positive = accrual
	Category    EntryCategory
	Description string
	ReferenceID string // originating reservation/order, optional
	CreatedAt   time.Time
	ExpiresAt   *time.Time // nil = never expires

	// ExcludedAt is stamped by the expiry sweeper. It never changes Amount.
	ExcludedAt *time.Time
}

// Included reports whether the entry counts toward the balance at now.
func (e Entry) Included(now time.Time) bool {
	if e.ExcludedAt != nil {
		return false
	}
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}

// Expired reports whether the entry's expiry has passed at now.
func (e Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}

// =============================================================================
// ACCOUNT
// =============================================================================

// Account is the per-requester summary. Total and Tier are derived values
// kept for fast reads; they are rewritten on every balance-changing event.
type Account struct {
	ID            AccountID
	Total         int64
	Tier          string
	ConfigVersion int // reward config version Tier was classified under
	UpdatedAt     time.Time
}

// =============================================================================
// BALANCE FOLD
// =============================================================================

// RunningTotal sums the included entries at now, clamped to zero.
func RunningTotal(entries []Entry, now time.Time) int64 {
	var sum int64
	for _, e := range entries {
		if e.Included(now) {
			sum += e.Amount
		}
	}
	if sum < 0 {
		return 0
	}
	return sum
}

// ExpiredPending returns ids of entries that have expired at now but are
// not yet stamped as excluded.
func ExpiredPending(entries []Entry, now time.Time) []EntryID {
	var ids []EntryID
	for _, e := range entries {
		if e.ExcludedAt == nil && e.Expired(now) {
			ids = append(ids, e.ID)
		}
	}
	return ids
}
