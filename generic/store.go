/*
store.go - Persistence interfaces for resources, reservations and the ledger

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  BookingStore:  Resources and reservations (+ WithTx for atomic admission)
  LedgerStore:   Accounts and ledger entries (+ WithTx per account update)
  ConfigStore:   The single versioned reward configuration record

MISSING RECORDS:
  Get* methods return (nil, nil) when the record does not exist. The
  services translate that into a NotFoundError.

ATOMIC SCOPES:
  WithTx() runs fn against a transactional view. If fn returns an error
  nothing it wrote is kept. Admission control runs its read-check-write
  inside one WithTx, under the per-resource lock. Ledger postings do the
  same per account.

APPEND-ONLY LEDGER:
  AppendEntry() is the only way to add points. Entries are never updated
  or deleted; MarkExcluded() only stamps the time the expiry sweeper took
  them out of the balance.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Durable SQLite store
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Entry, Account and the balance fold
  - lock.go: Per-key mutual exclusion
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// BOOKING STORE
// =============================================================================

// ReservationFilter narrows ListReservations. Zero values match everything.
type ReservationFilter struct {
	ResourceID    ResourceID
	RequesterID   AccountID
	Kind          string
	Status        ReservationStatus
	PaymentStatus PaymentStatus
}

// Matches reports whether r passes the filter.
func (f ReservationFilter) Matches(r Reservation) bool {
	if f.ResourceID != "" && r.ResourceID != f.ResourceID {
		return false
	}
	if f.RequesterID != "" && r.RequesterID != f.RequesterID {
		return false
	}
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.PaymentStatus != "" && r.PaymentStatus != f.PaymentStatus {
		return false
	}
	return true
}

type BookingStore interface {
	// SaveResource inserts or updates a resource.
	SaveResource(ctx context.Context, r Resource) error

	// GetResource returns nil when the resource does not exist.
	GetResource(ctx context.Context, id ResourceID) (*Resource, error)

	// ListResources returns all resources ordered by name.
	ListResources(ctx context.Context) ([]Resource, error)

	// SaveReservation inserts or updates a reservation. Reservations are never deleted.
	SaveReservation(ctx context.Context, r Reservation) error

	// GetReservation returns nil when the reservation does not exist.
	GetReservation(ctx context.Context, id ReservationID) (*Reservation, error)

	// ListActiveReservations returns pending/confirmed reservations of one
	// resource, ordered by start.
	ListActiveReservations(ctx context.Context, resourceID ResourceID) ([]Reservation, error)

	// ListReservations returns reservations matching the filter, newest first.
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
}

// TxBookingStore wraps BookingStore with transaction support.
type TxBookingStore interface {
	BookingStore

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(BookingStore) error) error
}

// =============================================================================
// LEDGER STORE
// =============================================================================

type LedgerStore interface {
	// AppendEntry persists a new entry. This is the only write to entries.
	AppendEntry(ctx context.Context, e Entry) error

	// LoadEntries returns all entries of an account in creation order,
	// including expired and excluded ones.
	LoadEntries(ctx context.Context, accountID AccountID) ([]Entry, error)

	// MarkExcluded stamps entries as removed from the balance by the sweeper.
	// Entries already excluded keep their original stamp.
	MarkExcluded(ctx context.Context, accountID AccountID, ids []EntryID, at time.Time) error

	// GetAccount returns nil when the account does not exist.
	GetAccount(ctx context.Context, id AccountID) (*Account, error)

	// SaveAccount inserts or updates the derived account summary.
	SaveAccount(ctx context.Context, a Account) error

	// ListAccounts returns every account id.
	ListAccounts(ctx context.Context) ([]AccountID, error)

	// AccountsWithExpired returns accounts holding at least one entry whose
	// expiry is at or before now and that is not yet excluded.
	AccountsWithExpired(ctx context.Context, now time.Time) ([]AccountID, error)
}

// TxLedgerStore wraps LedgerStore with transaction support.
type TxLedgerStore interface {
	LedgerStore

	WithTx(ctx context.Context, fn func(LedgerStore) error) error
}

// =============================================================================
// CONFIG STORE - The single reward configuration record
// =============================================================================

// ConfigRecord is the stored reward configuration with its JSON body.
type ConfigRecord struct {
	Version    int
	ConfigJSON string
	UpdatedAt  time.Time
	UpdatedBy  AccountID
}

type ConfigStore interface {
	// GetRewardConfig returns nil when no configuration has been stored yet.
	GetRewardConfig(ctx context.Context) (*ConfigRecord, error)

	// SaveRewardConfig writes rec if the stored version equals
	// rec.Version-1 (0 when nothing is stored). Otherwise it returns
	// ErrConcurrentModification.
	SaveRewardConfig(ctx context.Context, rec ConfigRecord) error
}
