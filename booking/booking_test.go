package booking_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/studio-engine/booking"
	"github.com/warp/studio-engine/generic"
	"github.com/warp/studio-engine/generic/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	admin = generic.Admin("admin-1")
	alice = generic.Requester("alice")
	bob   = generic.Requester("bob")
)

type fixture struct {
	engine *booking.Engine
	clock  *generic.FixedClock
	room   *generic.Resource
	item   *generic.Resource
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &generic.FixedClock{At: time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)}
	engine := booking.NewEngine(store.NewTxMemory(), generic.NewKeyedMutex(), clock)
	ctx := context.Background()

	room, err := engine.AddResource(ctx, booking.ResourceInput{
		ID: "room-a", Kind: "room", Name: "Room A", Rate: generic.NewMoneyFromInt(20), Capacity: 4, Active: true,
	}, admin)
	require.NoError(t, err)

	item, err := engine.AddResource(ctx, booking.ResourceInput{
		ID: "guitar", Kind: "item", Name: "Stratocaster", Rate: generic.NewMoneyFromInt(15), Active: true,
	}, admin)
	require.NoError(t, err)

	return &fixture{engine: engine, clock: clock, room: room, item: item}
}

func at(day, hour int) time.Time {
	return time.Date(2025, time.March, day, hour, 0, 0, 0, time.UTC)
}

func jan(day int) time.Time {
	return time.Date(2026, time.January, day, 0, 0, 0, 0, time.UTC)
}

func (f *fixture) reserveRoom(t *testing.T, who generic.Actor, day, from, to int) (*generic.Reservation, error) {
	t.Helper()
	return f.engine.Reserve(context.Background(), booking.ReserveInput{
		ResourceID: f.room.ID, RequesterID: who.ID, Start: at(day, from), End: at(day, to),
	})
}

// =============================================================================
// ADMISSION
// =============================================================================

func TestReserve_Room_BoundaryAndPrice(t *testing.T) {
	// GIVEN: Room with hourlyRate=20 and a confirmed booking 10:00-12:00
	// WHEN: Requesting 11:00-13:00 and then 12:00-14:00
	// THEN: The first is SlotUnavailable, the second is admitted at 40
	f := newFixture(t)
	ctx := context.Background()

	existing, err := f.reserveRoom(t, alice, 10, 10, 12)
	require.NoError(t, err)
	_, err = f.engine.UpdateStatus(ctx, existing.ID, generic.StatusConfirmed, admin, "")
	require.NoError(t, err)

	_, err = f.reserveRoom(t, bob, 10, 11, 13)
	require.Error(t, err)
	var slotErr *generic.SlotUnavailableError
	require.ErrorAs(t, err, &slotErr)
	assert.Equal(t, []generic.ReservationID{existing.ID}, slotErr.Conflicts)
	assert.True(t, errors.Is(err, generic.ErrSlotUnavailable))

	res, err := f.reserveRoom(t, bob, 10, 12, 14)
	require.NoError(t, err)
	assert.Equal(t, "40.00", res.Price.String())
	assert.Equal(t, 2, res.Units)
	assert.Equal(t, generic.StatusPending, res.Status, "rooms start pending")
	assert.Equal(t, generic.PaymentPending, res.PaymentStatus)
}

func TestReserve_Item_InclusiveDays(t *testing.T) {
	// GIVEN: Item with dailyRate=15
	// WHEN: Renting Jan 1-3, then Jan 3-5, then Jan 4-5
	// THEN: 45 for 3 days, overlap rejected, next day admitted
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.Reserve(ctx, booking.ReserveInput{ResourceID: f.item.ID, RequesterID: alice.ID, Start: jan(1), End: jan(3)})
	require.NoError(t, err)
	assert.Equal(t, "45.00", first.Price.String())
	assert.Equal(t, 3, first.Units)
	assert.Equal(t, generic.StatusConfirmed, first.Status, "items start confirmed")

	_, err = f.engine.Reserve(ctx, booking.ReserveInput{ResourceID: f.item.ID, RequesterID: bob.ID, Start: jan(3), End: jan(5)})
	assert.ErrorIs(t, err, generic.ErrSlotUnavailable)

	second, err := f.engine.Reserve(ctx, booking.ReserveInput{ResourceID: f.item.ID, RequesterID: bob.ID, Start: jan(4), End: jan(5)})
	require.NoError(t, err)
	assert.Equal(t, "30.00", second.Price.String())
}

func TestReserve_Item_SingleDay(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.Reserve(context.Background(), booking.ReserveInput{ResourceID: f.item.ID, RequesterID: alice.ID, Start: jan(7), End: jan(7)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Units)
	assert.Equal(t, "15.00", res.Price.String())
}

func TestReserve_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("end not after start", func(t *testing.T) {
		_, err := f.reserveRoom(t, alice, 10, 12, 12)
		assert.ErrorIs(t, err, generic.ErrInvalidRange)
	})

	t.Run("misaligned start", func(t *testing.T) {
		_, err := f.engine.Reserve(ctx, booking.ReserveInput{
			ResourceID: f.room.ID, RequesterID: alice.ID,
			Start: at(10, 10).Add(15 * time.Minute), End: at(10, 12),
		})
		assert.ErrorIs(t, err, generic.ErrInvalidRange)
	})

	t.Run("unknown resource", func(t *testing.T) {
		_, err := f.engine.Reserve(ctx, booking.ReserveInput{ResourceID: "nope", RequesterID: alice.ID, Start: at(10, 10), End: at(10, 11)})
		assert.ErrorIs(t, err, generic.ErrNotFound)
	})

	t.Run("inactive resource", func(t *testing.T) {
		_, err := f.engine.SetResourceActive(ctx, f.room.ID, false, admin)
		require.NoError(t, err)
		defer f.engine.SetResourceActive(ctx, f.room.ID, true, admin)

		_, err = f.reserveRoom(t, alice, 10, 10, 11)
		assert.ErrorIs(t, err, generic.ErrResourceUnavailable)
	})
}

// deactivatingLocker switches a resource off the first time its lock is
// requested, before handing the lock out.
type deactivatingLocker struct {
	generic.Locker
	engine *booking.Engine
	id     generic.ResourceID
	armed  atomic.Bool
}

func (l *deactivatingLocker) Lock(ctx context.Context, key string) (func(), error) {
	if key == generic.ResourceLockKey(l.id) && l.armed.CompareAndSwap(true, false) {
		if _, err := l.engine.SetResourceActive(ctx, l.id, false, admin); err != nil {
			return nil, err
		}
	}
	return l.Locker.Lock(ctx, key)
}

func TestReserve_DeactivatedWhileWaitingForLock(t *testing.T) {
	// GIVEN: An active room
	// WHEN: An admin deactivates it after Reserve checked it but before the lock
	// THEN: The reservation is rejected and nothing is stored
	ctx := context.Background()
	locker := &deactivatingLocker{Locker: generic.NewKeyedMutex(), id: "room-z"}
	clock := &generic.FixedClock{At: time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)}
	engine := booking.NewEngine(store.NewTxMemory(), locker, clock)
	locker.engine = engine

	_, err := engine.AddResource(ctx, booking.ResourceInput{
		ID: "room-z", Kind: "room", Name: "Room Z", Rate: generic.NewMoneyFromInt(20), Active: true,
	}, admin)
	require.NoError(t, err)

	locker.armed.Store(true)
	_, err = engine.Reserve(ctx, booking.ReserveInput{ResourceID: "room-z", RequesterID: alice.ID, Start: at(10, 10), End: at(10, 12)})
	assert.ErrorIs(t, err, generic.ErrResourceUnavailable)

	list, err := engine.ListByResource(ctx, "room-z")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReserve_CancelledSlotIsReleased(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.reserveRoom(t, alice, 12, 10, 12)
	require.NoError(t, err)
	_, err = f.engine.Cancel(ctx, res.ID, alice, "")
	require.NoError(t, err)

	_, err = f.reserveRoom(t, bob, 12, 10, 12)
	assert.NoError(t, err, "cancelled reservation must not block the slot")
}

func TestReserve_ConcurrentSameSlot_OnlyOneWins(t *testing.T) {
	// GIVEN: 20 requesters racing for the same room slot
	// WHEN: All call Reserve at once
	// THEN: Exactly one is admitted, the rest get SlotUnavailable
	f := newFixture(t)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		rejected int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			who := generic.Requester(generic.AccountID("user-" + string(rune('a'+i))))
			_, err := f.reserveRoom(t, who, 15, 9, 11)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, generic.ErrSlotUnavailable):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
	assert.Equal(t, 19, rejected)

	list, err := f.engine.ListByResource(context.Background(), f.room.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func TestUpdateStatus_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.reserveRoom(t, alice, 20, 10, 11)
	require.NoError(t, err)

	_, err = f.engine.Cancel(ctx, res.ID, bob, "")
	assert.ErrorIs(t, err, generic.ErrUnauthorized, "strangers cannot cancel")

	_, err = f.engine.UpdateStatus(ctx, res.ID, generic.StatusConfirmed, alice, "")
	assert.ErrorIs(t, err, generic.ErrUnauthorized, "owners cannot confirm")

	confirmed, err := f.engine.UpdateStatus(ctx, res.ID, generic.StatusConfirmed, admin, "")
	require.NoError(t, err)
	assert.Equal(t, generic.StatusConfirmed, confirmed.Status)

	_, err = f.engine.UpdateStatus(ctx, res.ID, generic.StatusPending, admin, "")
	assert.ErrorIs(t, err, generic.ErrInvalidTransition, "no reverse moves")

	_, err = f.engine.UpdateStatus(ctx, "missing", generic.StatusCancelled, admin, "")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestUpdateStatus_CancelTerminalStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	done, err := f.reserveRoom(t, alice, 21, 10, 11)
	require.NoError(t, err)
	_, err = f.engine.UpdateStatus(ctx, done.ID, generic.StatusConfirmed, admin, "")
	require.NoError(t, err)
	_, err = f.engine.UpdateStatus(ctx, done.ID, generic.StatusCompleted, admin, "")
	require.NoError(t, err)

	_, err = f.engine.Cancel(ctx, done.ID, alice, "")
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)

	gone, err := f.reserveRoom(t, alice, 21, 12, 13)
	require.NoError(t, err)
	_, err = f.engine.Cancel(ctx, gone.ID, alice, "")
	require.NoError(t, err)

	_, err = f.engine.Cancel(ctx, gone.ID, alice, "")
	assert.ErrorIs(t, err, generic.ErrAlreadyCancelled)
	assert.Equal(t, "already_cancelled", generic.Kind(err))
}

func TestUpdatePaymentStatus_AdminOnlyForwardFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.reserveRoom(t, alice, 22, 10, 11)
	require.NoError(t, err)

	_, err = f.engine.UpdatePaymentStatus(ctx, res.ID, generic.PaymentPaid, alice)
	assert.ErrorIs(t, err, generic.ErrUnauthorized)

	_, err = f.engine.UpdatePaymentStatus(ctx, res.ID, generic.PaymentRefunded, admin)
	assert.ErrorIs(t, err, generic.ErrInvalidTransition, "refund requires paid")

	paid, err := f.engine.UpdatePaymentStatus(ctx, res.ID, generic.PaymentPaid, admin)
	require.NoError(t, err)
	assert.Equal(t, generic.PaymentPaid, paid.PaymentStatus)

	refunded, err := f.engine.UpdatePaymentStatus(ctx, res.ID, generic.PaymentRefunded, admin)
	require.NoError(t, err)
	assert.Equal(t, generic.PaymentRefunded, refunded.PaymentStatus)
}

// =============================================================================
// CANCELLATION FEE
// =============================================================================

func TestCancel_FeeWindow(t *testing.T) {
	// GIVEN: Confirmed room bookings at 20/h for 2 hours (price 40)
	// WHEN: Cancelled 3h before start, and 48h before start
	// THEN: Fee is 20 and 0
	f := newFixture(t)
	ctx := context.Background()

	late, err := f.reserveRoom(t, alice, 2, 10, 12)
	require.NoError(t, err)
	early, err := f.reserveRoom(t, alice, 4, 10, 12)
	require.NoError(t, err)

	f.clock.At = at(2, 7)

	cancelledLate, err := f.engine.Cancel(ctx, late.ID, alice, "sick")
	require.NoError(t, err)
	require.NotNil(t, cancelledLate.CancellationFee)
	assert.Equal(t, "20.00", cancelledLate.CancellationFee.String())
	assert.Equal(t, "sick", cancelledLate.CancelReason)
	assert.Equal(t, alice.ID, cancelledLate.CancelledBy)
	assert.Equal(t, at(2, 7), *cancelledLate.CancelledAt)

	cancelledEarly, err := f.engine.Cancel(ctx, early.ID, alice, "")
	require.NoError(t, err)
	assert.True(t, cancelledEarly.CancellationFee.IsZero())
}

func TestCancellationFee_Boundaries(t *testing.T) {
	start := at(10, 10)
	res := generic.Reservation{
		Period: generic.Period{Start: generic.At(start, generic.GranularityHour)},
		Price:  generic.MustParseMoney("35.50"),
	}

	assert.True(t, booking.CancellationFee(res, start.Add(-24*time.Hour)).IsZero(), "exactly 24h is outside the window")
	assert.Equal(t, "17.75", booking.CancellationFee(res, start.Add(-23*time.Hour)).String())
	assert.Equal(t, "17.75", booking.CancellationFee(res, start.Add(time.Hour)).String(), "past start still charges")
}

func TestCancel_AdminDefaultReason(t *testing.T) {
	f := newFixture(t)
	res, err := f.reserveRoom(t, alice, 25, 10, 11)
	require.NoError(t, err)

	cancelled, err := f.engine.Cancel(context.Background(), res.ID, admin, "")
	require.NoError(t, err)
	assert.Equal(t, booking.DefaultAdminCancelReason, cancelled.CancelReason)
	assert.Equal(t, admin.ID, cancelled.CancelledBy)
}

// =============================================================================
// AVAILABILITY & LISTINGS
// =============================================================================

func TestDayAvailability_Room(t *testing.T) {
	f := newFixture(t)
	res, err := f.reserveRoom(t, alice, 10, 10, 12)
	require.NoError(t, err)

	view, err := f.engine.DayAvailability(context.Background(), f.room.ID, at(10, 15))
	require.NoError(t, err)
	require.Len(t, view.Slots, 24)
	assert.False(t, view.Slots[10].Available)
	assert.Equal(t, res.ID, view.Slots[11].ReservationID)
	assert.True(t, view.Slots[12].Available)
}

func TestRangeAvailability_Item(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.engine.Reserve(ctx, booking.ReserveInput{ResourceID: f.item.ID, RequesterID: alice.ID, Start: jan(1), End: jan(3)})
	require.NoError(t, err)

	view, err := f.engine.RangeAvailability(ctx, f.item.ID, jan(3), jan(5))
	require.NoError(t, err)
	assert.False(t, view.IsAvailable)
	require.Len(t, view.Overlapping, 1)
	assert.Equal(t, res.ID, view.Overlapping[0].ID)

	view, err = f.engine.RangeAvailability(ctx, f.item.ID, jan(4), jan(5))
	require.NoError(t, err)
	assert.True(t, view.IsAvailable)
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.reserveRoom(t, alice, 10, 8, 9)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.reserveRoom(t, alice, 10, 9, 10)
	require.NoError(t, err)
	_, err = f.reserveRoom(t, bob, 10, 10, 11)
	require.NoError(t, err)

	mine, err := f.engine.ListByRequester(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID, "newest first")

	_, err = f.engine.List(ctx, generic.ReservationFilter{}, alice)
	assert.ErrorIs(t, err, generic.ErrUnauthorized)

	pending, err := f.engine.List(ctx, generic.ReservationFilter{Status: generic.StatusPending, Kind: "room"}, admin)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	_, err = f.engine.Get(ctx, second.ID, bob)
	assert.ErrorIs(t, err, generic.ErrUnauthorized)
}
