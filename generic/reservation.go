/*
reservation.go - Reservation entity and lifecycle state machine

PURPOSE:
  A Reservation is one booking (room) or rental (item) and its lifecycle.
  Reservations are never deleted; cancelling or completing one releases
  its interval for new admissions while keeping the record for history.

LIFECYCLE:
  ┌──────────────────────────────────────────────────────────────┐
  │                                                              │
  │   admitted ──▶ pending ──▶ confirmed ──▶ completed           │
  │                   │            │                             │
  │                   └─────┬──────┘                             │
  │                         ▼                                    │
  │                     cancelled                                │
  │                                                              │
  └──────────────────────────────────────────────────────────────┘

  Rooms start in pending, items start in confirmed (see ResourceKind).
  No state is reachable in reverse.

PAYMENT:
  pending ──▶ paid ──▶ refunded    (admin only)

SEE ALSO:
  - booking/engine.go: Admission control and transitions
  - booking/cancellation.go: Fee applied on * → cancelled
*/
package generic

import (
	"time"
)

// =============================================================================
// STATUS
// =============================================================================

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusCompleted ReservationStatus = "completed"
)

// IsActive reports whether the reservation still holds its interval.
func (s ReservationStatus) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

// IsTerminal reports whether no further lifecycle transition is possible.
func (s ReservationStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// ActiveStatuses are the states that participate in overlap checks.
var ActiveStatuses = []ReservationStatus{StatusPending, StatusConfirmed}

// lifecycle lists the allowed forward moves.
var lifecycle = map[ReservationStatus][]ReservationStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from → to is a legal lifecycle move.
func CanTransition(from, to ReservationStatus) bool {
	for _, next := range lifecycle[from] {
		if next == to {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentRefunded:
		return true
	}
	return false
}

var paymentFlow = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentPaid},
	PaymentPaid:    {PaymentRefunded},
}

// CanTransitionPayment reports whether from → to is a legal payment move.
func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, next := range paymentFlow[from] {
		if next == to {
			return true
		}
	}
	return false
}

// =============================================================================
// RESERVATION
// =============================================================================

// Reservation represents one committed booking or rental.
type Reservation struct {
	ID          ReservationID
	ResourceID  ResourceID
	Kind        string // kind id of the resource at admission time
	RequesterID AccountID

	// Period bounds are in the resource's granularity.
	Period Period
	Units  int // hours for rooms, inclusive days for items

	Status        ReservationStatus
	PaymentStatus PaymentStatus

	Price           Money
	CancellationFee *Money
	Notes           string

	CreatedAt time.Time
	UpdatedAt time.Time

	// Set once on * → cancelled
	CancelReason string
	CancelledBy  AccountID
	CancelledAt  *time.Time
}

// IsActive reports whether the reservation still blocks its interval.
func (r Reservation) IsActive() bool { return r.Status.IsActive() }

// OwnedBy reports whether actor is the original requester.
func (r Reservation) OwnedBy(actor Actor) bool { return r.RequesterID == actor.ID }
