package generic

import (
	"fmt"
)

// =============================================================================
// PERIOD - A reserved interval on one resource
// =============================================================================

// Period is the interval a reservation holds. Whether End is included
// depends on the BoundaryRule of the resource's granularity rule:
//
//   - Rooms (hour, half-open):  [Start, End)  10:00-12:00 frees the room at 12:00
//   - Items (day, inclusive):   [Start, End]  Jan 1-Jan 3 blocks Jan 3 as well
type Period struct {
	Start TimePoint
	End   TimePoint
}

func NewPeriod(start, end TimePoint) Period { return Period{Start: start, End: end} }

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// BoundaryRule decides whether the end point belongs to the period.
type BoundaryRule int

const (
	BoundaryHalfOpen BoundaryRule = iota
	BoundaryInclusive
)

// =============================================================================
// GRANULARITY RULE - Unit, boundary semantics, validation, overlap, duration
// =============================================================================

// GranularityRule bundles everything that differs between resource kinds.
// The overlap detector and the price formula are selected through it, so a
// new kind only has to pick a rule.
type GranularityRule struct {
	Granularity Granularity
	Boundary    BoundaryRule
}

var (
	// HourlyRule is used by rooms: whole hours, end exclusive.
	HourlyRule = GranularityRule{Granularity: GranularityHour, Boundary: BoundaryHalfOpen}

	// DailyRule is used by items: whole days, both ends inclusive.
	DailyRule = GranularityRule{Granularity: GranularityDay, Boundary: BoundaryInclusive}
)

// Normalize stamps both ends with the rule's granularity.
func (r GranularityRule) Normalize(p Period) Period {
	return Period{
		Start: TimePoint{Time: p.Start.Time.UTC(), Granularity: r.Granularity},
		End:   TimePoint{Time: p.End.Time.UTC(), Granularity: r.Granularity},
	}
}

// Validate rejects zero, misaligned and inverted periods.
//
// Half-open rules need End > Start. Inclusive rules accept End == Start
// (a one-day rental).
func (r GranularityRule) Validate(p Period) error {
	p = r.Normalize(p)
	if p.Start.IsZero() || p.End.IsZero() {
		return &InvalidRangeError{Period: p, Reason: "start and end are required"}
	}
	if !p.Start.IsAligned() || !p.End.IsAligned() {
		return &InvalidRangeError{Period: p, Reason: fmt.Sprintf("bounds must be whole %ss", r.Granularity)}
	}
	switch r.Boundary {
	case BoundaryHalfOpen:
		if !p.End.After(p.Start) {
			return &InvalidRangeError{Period: p, Reason: "end must be after start"}
		}
	case BoundaryInclusive:
		if p.End.Before(p.Start) {
			return &InvalidRangeError{Period: p, Reason: "end must not be before start"}
		}
	}
	return nil
}

// Units returns the billable duration in units of the rule's granularity.
// Rooms: end - start hours. Items: inclusive day count.
func (r GranularityRule) Units(p Period) int {
	n := UnitsBetween(p.Start, p.End, r.Granularity)
	if r.Boundary == BoundaryInclusive {
		n++
	}
	return n
}

// Overlaps reports whether two periods intersect under the rule.
//
//	half-open:  s1 <  e2 && s2 <  e1
//	inclusive:  s1 <= e2 && s2 <= e1
//
// A room candidate starting exactly when another booking ends does not
// overlap; an item candidate starting on another rental's last day does.
func (r GranularityRule) Overlaps(a, b Period) bool {
	a, b = r.Normalize(a), r.Normalize(b)
	if r.Boundary == BoundaryInclusive {
		return a.Start.BeforeOrEqual(b.End) && b.Start.BeforeOrEqual(a.End)
	}
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Contains reports whether the single unit starting at t is held by p.
func (r GranularityRule) Contains(p Period, t TimePoint) bool {
	unit := Period{Start: t, End: t}
	if r.Boundary == BoundaryHalfOpen {
		unit.End = t.AddUnits(1)
	}
	return r.Overlaps(p, unit)
}

// =============================================================================
// OVERLAP DETECTOR
// =============================================================================

// FindConflicts returns the committed reservations the candidate collides
// with. Only reservations on the same resource in an active state
// (pending, confirmed) take part; cancelled and completed ones have
// released their interval.
//
// The candidate is assumed valid; callers reject bad ranges first.
func FindConflicts(rule GranularityRule, resourceID ResourceID, candidate Period, committed []Reservation) []Reservation {
	var conflicts []Reservation
	for _, res := range committed {
		if res.ResourceID != resourceID || !res.Status.IsActive() {
			continue
		}
		if rule.Overlaps(candidate, res.Period) {
			conflicts = append(conflicts, res)
		}
	}
	return conflicts
}

// Overlaps is the boolean form of FindConflicts.
func Overlaps(rule GranularityRule, resourceID ResourceID, candidate Period, committed []Reservation) bool {
	return len(FindConflicts(rule, resourceID, candidate, committed)) > 0
}
