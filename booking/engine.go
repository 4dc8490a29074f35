/*
engine.go - Reservation Engine: admission control and lifecycle transitions

ADMISSION (Reserve):
  1. Resource exists and is active                → NotFound / ResourceUnavailable
  2. Range is aligned and start precedes end      → InvalidRange
  3. Lock the resource key
  4. In one store transaction:
       load active reservations of the resource
       run the overlap detector                   → SlotUnavailable
       price = units × rate
       persist in the kind's initial status
  5. Unlock

  Step 4's read-check-write runs under the per-resource lock, so two
  overlapping requests for the same resource cannot both see "no conflict".
  Requests for different resources take different keys and run in parallel.

TRANSITIONS (UpdateStatus):
  ┌──────────────────────────┬──────────────────────────────────────────┐
  │ Who                      │ May do                                   │
  ├──────────────────────────┼──────────────────────────────────────────┤
  │ requester (owner)        │ cancel                                   │
  │ admin                    │ cancel, confirm, complete, payment moves │
  │ anyone else              │ nothing → Unauthorized                   │
  └──────────────────────────┴──────────────────────────────────────────┘

  cancelled → cancelled   AlreadyCancelled
  completed → cancelled   InvalidTransition
  other illegal moves     InvalidTransition

SEE ALSO:
  - cancellation.go: Fee on * → cancelled
  - generic/period.go: Overlap detector
  - generic/lock.go: Locker
*/
package booking

import (
	"context"
	"time"

	"github.com/warp/studio-engine/generic"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine admits and transitions reservations.
type Engine struct {
	store  generic.TxBookingStore
	locker generic.Locker
	clock  generic.Clock
}

// NewEngine creates a reservation engine. A nil locker means an in-process
// KeyedMutex; a nil clock means the system clock.
func NewEngine(store generic.TxBookingStore, locker generic.Locker, clock generic.Clock) *Engine {
	if locker == nil {
		locker = generic.NewKeyedMutex()
	}
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Engine{store: store, locker: locker, clock: clock}
}

// ReserveInput is a validated booking or rental request from the intake layer.
type ReserveInput struct {
	ResourceID  generic.ResourceID
	RequesterID generic.AccountID
	Start       time.Time
	End         time.Time // exclusive for rooms, inclusive for items
	Notes       string
}

// Reserve admits a new reservation or returns a typed rejection.
func (e *Engine) Reserve(ctx context.Context, in ReserveInput) (*generic.Reservation, error) {
	resource, err := e.resource(ctx, e.store, in.ResourceID)
	if err != nil {
		return nil, err
	}
	if !resource.Active {
		return nil, generic.ErrResourceUnavailable
	}

	quote, err := Quote(*resource, in.Start, in.End)
	if err != nil {
		return nil, err
	}

	unlock, err := e.locker.Lock(ctx, generic.ResourceLockKey(resource.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var admitted generic.Reservation
	err = e.store.WithTx(ctx, func(tx generic.BookingStore) error {
		// Re-read under the lock: the resource may have been deactivated
		// since the check above.
		current, err := e.resource(ctx, tx, resource.ID)
		if err != nil {
			return err
		}
		if !current.Active {
			return generic.ErrResourceUnavailable
		}

		active, err := tx.ListActiveReservations(ctx, resource.ID)
		if err != nil {
			return generic.Storage("list active reservations", err)
		}

		if conflicts := generic.FindConflicts(resource.Rule(), resource.ID, quote.Period, active); len(conflicts) > 0 {
			ids := make([]generic.ReservationID, len(conflicts))
			for i, c := range conflicts {
				ids[i] = c.ID
			}
			return &generic.SlotUnavailableError{ResourceID: resource.ID, Period: quote.Period, Conflicts: ids}
		}

		now := e.clock.Now()
		admitted = generic.Reservation{
			ID:            generic.NewReservationID(),
			ResourceID:    resource.ID,
			Kind:          resource.Kind.KindID(),
			RequesterID:   in.RequesterID,
			Period:        quote.Period,
			Units:         quote.Units,
			Status:        resource.Kind.InitialStatus(),
			PaymentStatus: generic.PaymentPending,
			Price:         quote.Price,
			Notes:         in.Notes,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return generic.Storage("save reservation", tx.SaveReservation(ctx, admitted))
	})
	if err != nil {
		return nil, err
	}
	return &admitted, nil
}

// UpdateStatus moves a reservation along its lifecycle. reason is only
// used when the target is cancelled.
func (e *Engine) UpdateStatus(ctx context.Context, id generic.ReservationID, to generic.ReservationStatus, actor generic.Actor, reason string) (*generic.Reservation, error) {
	if !to.Valid() {
		return nil, generic.NewTransitionError(id, "", string(to))
	}

	var updated generic.Reservation
	err := e.mutate(ctx, id, func(r *generic.Reservation) error {
		if err := authorizeTransition(*r, to, actor); err != nil {
			return err
		}

		now := e.clock.Now()
		if to == generic.StatusCancelled {
			applyCancellation(r, actor, reason, now)
		} else {
			r.Status = to
			r.UpdatedAt = now
		}
		updated = *r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Cancel is UpdateStatus(id, cancelled).
func (e *Engine) Cancel(ctx context.Context, id generic.ReservationID, actor generic.Actor, reason string) (*generic.Reservation, error) {
	return e.UpdateStatus(ctx, id, generic.StatusCancelled, actor, reason)
}

// UpdatePaymentStatus moves the payment status. Admin only.
func (e *Engine) UpdatePaymentStatus(ctx context.Context, id generic.ReservationID, to generic.PaymentStatus, actor generic.Actor) (*generic.Reservation, error) {
	var updated generic.Reservation
	err := e.mutate(ctx, id, func(r *generic.Reservation) error {
		if !actor.IsAdmin() {
			return generic.ErrUnauthorized
		}
		if !to.Valid() || !generic.CanTransitionPayment(r.PaymentStatus, to) {
			return generic.NewTransitionError(r.ID, string(r.PaymentStatus), string(to))
		}
		r.PaymentStatus = to
		r.UpdatedAt = e.clock.Now()
		updated = *r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// authorizeTransition checks rights first, then the state machine.
func authorizeTransition(r generic.Reservation, to generic.ReservationStatus, actor generic.Actor) error {
	if !actor.IsAdmin() && !r.OwnedBy(actor) {
		return generic.ErrUnauthorized
	}

	if to == generic.StatusCancelled {
		switch r.Status {
		case generic.StatusCancelled:
			return generic.NewAlreadyCancelledError(r.ID)
		case generic.StatusCompleted:
			return generic.NewTransitionError(r.ID, string(r.Status), string(to))
		}
		return nil
	}

	if !actor.IsAdmin() {
		return generic.ErrUnauthorized
	}
	if !generic.CanTransition(r.Status, to) {
		return generic.NewTransitionError(r.ID, string(r.Status), string(to))
	}
	return nil
}

// mutate loads a reservation under its resource lock and saves fn's changes
// in one transaction.
func (e *Engine) mutate(ctx context.Context, id generic.ReservationID, fn func(*generic.Reservation) error) error {
	current, err := e.reservation(ctx, e.store, id)
	if err != nil {
		return err
	}

	unlock, err := e.locker.Lock(ctx, generic.ResourceLockKey(current.ResourceID))
	if err != nil {
		return err
	}
	defer unlock()

	return e.store.WithTx(ctx, func(tx generic.BookingStore) error {
		r, err := e.reservation(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
		return generic.Storage("save reservation", tx.SaveReservation(ctx, *r))
	})
}

// =============================================================================
// READS
// =============================================================================

// Get returns one reservation. Owners and admins only.
func (e *Engine) Get(ctx context.Context, id generic.ReservationID, actor generic.Actor) (*generic.Reservation, error) {
	r, err := e.reservation(ctx, e.store, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !r.OwnedBy(actor) {
		return nil, generic.ErrUnauthorized
	}
	return r, nil
}

// ListByRequester returns the requester's reservations, newest first.
func (e *Engine) ListByRequester(ctx context.Context, requester generic.AccountID) ([]generic.Reservation, error) {
	list, err := e.store.ListReservations(ctx, generic.ReservationFilter{RequesterID: requester})
	return list, generic.Storage("list reservations", err)
}

// ListByResource returns all reservations of one resource, newest first.
func (e *Engine) ListByResource(ctx context.Context, resourceID generic.ResourceID) ([]generic.Reservation, error) {
	if _, err := e.resource(ctx, e.store, resourceID); err != nil {
		return nil, err
	}
	list, err := e.store.ListReservations(ctx, generic.ReservationFilter{ResourceID: resourceID})
	return list, generic.Storage("list reservations", err)
}

// List returns reservations matching filter. Admin only.
func (e *Engine) List(ctx context.Context, filter generic.ReservationFilter, actor generic.Actor) ([]generic.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, generic.ErrUnauthorized
	}
	list, err := e.store.ListReservations(ctx, filter)
	return list, generic.Storage("list reservations", err)
}

func (e *Engine) resource(ctx context.Context, s generic.BookingStore, id generic.ResourceID) (*generic.Resource, error) {
	r, err := s.GetResource(ctx, id)
	if err != nil {
		return nil, generic.Storage("get resource", err)
	}
	if r == nil {
		return nil, &generic.NotFoundError{What: "resource", ID: string(id)}
	}
	return r, nil
}

func (e *Engine) reservation(ctx context.Context, s generic.BookingStore, id generic.ReservationID) (*generic.Reservation, error) {
	r, err := s.GetReservation(ctx, id)
	if err != nil {
		return nil, generic.Storage("get reservation", err)
	}
	if r == nil {
		return nil, &generic.NotFoundError{What: "reservation", ID: string(id)}
	}
	return r, nil
}
