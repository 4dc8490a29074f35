/*
Package generic provides the core reservation and ledger engine.

PURPOSE:
  This package contains domain-agnostic types and algorithms for handing out
  time-bounded access to shared resources. Whether the resource is a practice
  room booked by the hour or an instrument rented by the day, the same engine
  handles range validation, overlap detection, calendar views and error
  classification.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A currency amount backed by decimal.Decimal
  - Identifiers: Type-safe ids for resources, reservations, accounts, entries
  - Actor: Who is asking for a state change (requester or admin)
  - Clock: Injectable "now" so fee and expiry rules are testable

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for rates, prices and fees
  2. Type Safety: Strong typing for IDs prevents mixing resource/reservation IDs
  3. Explicit time: Every rule that depends on "now" takes a Clock

SEE ALSO:
  - time.go: TimePoint and Granularity
  - period.go: Reserved intervals and the overlap detector
  - calendar.go: Per-resource committed ranges and availability views
*/
package generic

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// Money is a currency amount. Rates, prices and fees all use it.
type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money      { return Money{Value: decimal.NewFromFloat(value)} }
func NewMoneyFromInt(value int64) Money { return Money{Value: decimal.NewFromInt(value)} }
func ZeroMoney() Money                  { return Money{Value: decimal.Zero} }

// ParseMoney parses a decimal string such as "35.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Value: d}, nil
}

func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroMoney()
	}
	return Money{Value: d}
}

func (m Money) Add(o Money) Money           { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money           { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) MulInt(n int) Money          { return Money{Value: m.Value.Mul(decimal.NewFromInt(int64(n)))} }
func (m Money) Mul(f decimal.Decimal) Money { return Money{Value: m.Value.Mul(f)} }
func (m Money) Round() Money                { return Money{Value: m.Value.Round(2)} }
func (m Money) IsZero() bool                { return m.Value.IsZero() }
func (m Money) IsNegative() bool            { return m.Value.IsNegative() }
func (m Money) Equal(o Money) bool          { return m.Value.Equal(o.Value) }
func (m Money) String() string              { return m.Value.StringFixed(2) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ResourceID string
type ReservationID string
type AccountID string
type EntryID string

// NewReservationID returns a random reservation id.
func NewReservationID() ReservationID { return ReservationID(uuid.NewString()) }

// NewEntryID returns a random ledger entry id.
func NewEntryID() EntryID { return EntryID(uuid.NewString()) }

// NewResourceID returns a random resource id.
func NewResourceID() ResourceID { return ResourceID(uuid.NewString()) }

// =============================================================================
// ACTOR - Who is performing an operation
// =============================================================================

type Role string

const (
	RoleStandard Role = "standard"
	RoleAdmin    Role = "admin"
)

// Actor identifies the caller of a state-changing operation.
// Authentication happens upstream; the engine only checks rights.
type Actor struct {
	ID   AccountID
	Role Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Admin returns an administrative actor, used by the console and the scheduler.
func Admin(id AccountID) Actor { return Actor{ID: id, Role: RoleAdmin} }

// Requester returns a standard actor.
func Requester(id AccountID) Actor { return Actor{ID: id, Role: RoleStandard} }

// =============================================================================
// CLOCK
// =============================================================================

// Clock returns the current time. Production code uses SystemClock.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant. Tests advance it by assignment.
type FixedClock struct {
	At time.Time
}

func (c *FixedClock) Now() time.Time          { return c.At }
func (c *FixedClock) Advance(d time.Duration) { c.At = c.At.Add(d) }
