/*
Package booking provides the studio domain on top of the generic engine:
practice rooms booked by the hour and instruments rented by the day.

PURPOSE:
  Rooms and items share one reservation contract. What differs between
  them is captured by their ResourceKind:

  KIND   UNIT   BOUNDARY     INITIAL STATUS   PRICE
  room   hour   [start,end)  pending          (endHour - startHour) × hourlyRate
  item   day    [start,end]  confirmed        inclusive day count × dailyRate

  The engine never branches on the kind; it asks the kind for its rule.

EXAMPLE FLOW:
  1. Room "A" (20/h) has a confirmed booking 10:00-12:00
  2. Request 11:00-13:00 → SlotUnavailable
  3. Request 12:00-14:00 → admitted as pending, price 40
  4. Cancel 3h before start → fee 20 recorded on the reservation

SEE ALSO:
  - engine.go: Admission control and transitions
  - cancellation.go: Fee rule
  - availability.go: Calendar views
*/
package booking

import (
	"github.com/warp/studio-engine/generic"
)

// =============================================================================
// RESOURCE KINDS
// =============================================================================

// Kind implements generic.ResourceKind for the studio domain.
type Kind struct {
	id      string
	rule    generic.GranularityRule
	initial generic.ReservationStatus
}

func (k Kind) KindID() string                           { return k.id }
func (k Kind) Rule() generic.GranularityRule            { return k.rule }
func (k Kind) InitialStatus() generic.ReservationStatus { return k.initial }
func (k Kind) String() string                           { return k.id }

var (
	// KindRoom is a studio or practice room booked in whole hours.
	KindRoom = Kind{id: "room", rule: generic.HourlyRule, initial: generic.StatusPending}

	// KindItem is a rentable instrument rented in whole days.
	KindItem = Kind{id: "item", rule: generic.DailyRule, initial: generic.StatusConfirmed}
)

// Compile-time check that Kind implements generic.ResourceKind
var _ generic.ResourceKind = Kind{}

// Register studio kinds with the generic registry
func init() {
	generic.RegisterKind(KindRoom)
	generic.RegisterKind(KindItem)
}

// AccrualCategory is the ledger category a reservation of kind earns under.
func AccrualCategory(kindID string) generic.EntryCategory {
	if kindID == KindItem.id {
		return generic.CategoryRental
	}
	return generic.CategoryBooking
}
