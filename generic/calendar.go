/*
calendar.go - Per-resource availability views

PURPOSE:
  Turns the committed reservations of one resource into a slot grid the
  caller can render: hourly slots for a room day, daily slots for an item
  range. The grid is computed with the same GranularityRule the admission
  control uses, so a slot shown as free is a slot Reserve would accept.

EXAMPLE (room, 2025-03-10, booking 10:00-12:00):
  09:00 free | 10:00 taken(res-1) | 11:00 taken(res-1) | 12:00 free

SEE ALSO:
  - period.go: GranularityRule.Contains
  - booking/availability.go: Service-level views
*/
package generic

// Slot is one unit of a resource's calendar.
type Slot struct {
	Start         TimePoint
	Available     bool
	ReservationID ReservationID // set when taken
}

// Calendar lists the committed ranges of one resource.
type Calendar struct {
	ResourceID ResourceID
	Rule       GranularityRule
	Committed  []Reservation // only active ones are kept
}

// NewCalendar keeps the active reservations of resourceID.
func NewCalendar(resourceID ResourceID, rule GranularityRule, reservations []Reservation) Calendar {
	cal := Calendar{ResourceID: resourceID, Rule: rule}
	for _, r := range reservations {
		if r.ResourceID == resourceID && r.Status.IsActive() {
			cal.Committed = append(cal.Committed, r)
		}
	}
	return cal
}

// Slots returns one slot per unit in window. For half-open rules the
// window end is excluded, for inclusive rules it is included.
func (c Calendar) Slots(window Period) []Slot {
	window = c.Rule.Normalize(window)
	start := window.Start.Truncate()
	n := c.Rule.Units(Period{Start: start, End: window.End.Truncate()})

	slots := make([]Slot, 0, n)
	for i := 0; i < n; i++ {
		t := start.AddUnits(i)
		slot := Slot{Start: t, Available: true}
		for _, r := range c.Committed {
			if c.Rule.Contains(r.Period, t) {
				slot.Available = false
				slot.ReservationID = r.ID
				break
			}
		}
		slots = append(slots, slot)
	}
	return slots
}

// Conflicts returns the committed reservations overlapping window.
func (c Calendar) Conflicts(window Period) []Reservation {
	return FindConflicts(c.Rule, c.ResourceID, window, c.Committed)
}

// IsFree reports whether window can be admitted.
func (c Calendar) IsFree(window Period) bool {
	return len(c.Conflicts(window)) == 0
}

// DayWindow is the 24 hourly slots of the UTC day containing t.
func DayWindow(t TimePoint) Period {
	day := StartOfDay(t.Time)
	return Period{
		Start: At(day.Time, GranularityHour),
		End:   At(day.Time.AddDate(0, 0, 1), GranularityHour),
	}
}
