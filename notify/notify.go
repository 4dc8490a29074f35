/*
Package notify publishes reservation lifecycle events.

PURPOSE:
  Downstream consumers (email, calendar sync, the front desk screen) learn
  about admitted and cancelled reservations from a RabbitMQ queue. Event
  delivery is best effort: a failed publish is logged and never rolls back
  the reservation.

EVENTS:
  reservation.created     A reservation was admitted
  reservation.cancelled   A reservation moved to cancelled (fee attached)
  reservation.status      Any other status change

SEE ALSO:
  - api/handlers.go: publishes after each successful write
*/
package notify

import (
	"context"
	"time"

	"github.com/warp/studio-engine/generic"
)

// EventType names a lifecycle event and doubles as the routing key.
type EventType string

const (
	EventReservationCreated   EventType = "reservation.created"
	EventReservationCancelled EventType = "reservation.cancelled"
	EventReservationStatus    EventType = "reservation.status"
)

// Event is the message body.
type Event struct {
	Type            EventType  `json:"type"`
	ReservationID   string     `json:"reservationId"`
	ResourceID      string     `json:"resourceId"`
	RequesterID     string     `json:"requesterId"`
	Status          string     `json:"status"`
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	Price           string     `json:"price"`
	CancellationFee *string    `json:"cancellationFee,omitempty"`
	CancelReason    string     `json:"cancelReason,omitempty"`
	OccurredAt      time.Time  `json:"occurredAt"`
	CancelledAt     *time.Time `json:"cancelledAt,omitempty"`
}

// EventFor builds the event for a reservation after a write.
func EventFor(t EventType, r generic.Reservation, at time.Time) Event {
	ev := Event{
		Type:          t,
		ReservationID: string(r.ID),
		ResourceID:    string(r.ResourceID),
		RequesterID:   string(r.RequesterID),
		Status:        string(r.Status),
		Start:         r.Period.Start.Time,
		End:           r.Period.End.Time,
		Price:         r.Price.String(),
		CancelReason:  r.CancelReason,
		OccurredAt:    at,
		CancelledAt:   r.CancelledAt,
	}
	if r.CancellationFee != nil {
		fee := r.CancellationFee.String()
		ev.CancellationFee = &fee
	}
	return ev
}

// Publisher sends events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
