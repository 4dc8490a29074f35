package generic_test

import (
	"errors"
	"testing"
	"time"

	"github.com/warp/studio-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func hour(day, h int) generic.TimePoint {
	return generic.NewTimePointWithHour(2025, time.March, day, h)
}

func day(d int) generic.TimePoint {
	return generic.NewTimePoint(2025, time.March, d)
}

func hours(day, from, to int) generic.Period {
	return generic.Period{Start: hour(day, from), End: hour(day, to)}
}

func days(from, to int) generic.Period {
	return generic.Period{Start: day(from), End: day(to)}
}

func committed(id string, resource generic.ResourceID, p generic.Period, status generic.ReservationStatus) generic.Reservation {
	return generic.Reservation{
		ID:         generic.ReservationID(id),
		ResourceID: resource,
		Period:     p,
		Status:     status,
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestHourlyRule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		period  generic.Period
		wantErr bool
	}{
		{"two hours", hours(10, 10, 12), false},
		{"end equals start", hours(10, 10, 10), true},
		{"end before start", hours(10, 12, 10), true},
		{"zero start", generic.Period{End: hour(10, 12)}, true},
		{"misaligned start", generic.Period{
			Start: generic.At(time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC), generic.GranularityHour),
			End:   hour(10, 12),
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := generic.HourlyRule.Validate(tt.period)
			if tt.wantErr {
				if !errors.Is(err, generic.ErrInvalidRange) {
					t.Errorf("expected ErrInvalidRange, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDailyRule_Validate_SingleDayAllowed(t *testing.T) {
	if err := generic.DailyRule.Validate(days(5, 5)); err != nil {
		t.Errorf("one-day rental should be valid: %v", err)
	}
	if err := generic.DailyRule.Validate(days(5, 4)); !errors.Is(err, generic.ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
}

func TestRule_Units(t *testing.T) {
	if got := generic.HourlyRule.Units(hours(10, 10, 12)); got != 2 {
		t.Errorf("expected 2 hours, got %d", got)
	}
	if got := generic.DailyRule.Units(days(1, 3)); got != 3 {
		t.Errorf("expected 3 inclusive days, got %d", got)
	}
	if got := generic.DailyRule.Units(days(7, 7)); got != 1 {
		t.Errorf("expected 1 day, got %d", got)
	}
}

// =============================================================================
// OVERLAP
// =============================================================================

func TestHourlyRule_Overlaps(t *testing.T) {
	existing := hours(10, 10, 12)

	tests := []struct {
		name      string
		candidate generic.Period
		want      bool
	}{
		{"back to back after", hours(10, 12, 14), false},
		{"back to back before", hours(10, 8, 10), false},
		{"starts inside", hours(10, 11, 13), true},
		{"ends inside", hours(10, 9, 11), true},
		{"contains", hours(10, 9, 13), true},
		{"contained", hours(10, 10, 11), true},
		{"identical", hours(10, 10, 12), true},
		{"other day", hours(11, 10, 12), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := generic.HourlyRule.Overlaps(tt.candidate, existing); got != tt.want {
				t.Errorf("Overlaps(%s, %s) = %v, want %v", tt.candidate, existing, got, tt.want)
			}
			if got := generic.HourlyRule.Overlaps(existing, tt.candidate); got != tt.want {
				t.Errorf("overlap should be symmetric for %s", tt.name)
			}
		})
	}
}

func TestDailyRule_Overlaps_SharedEndDayConflicts(t *testing.T) {
	// GIVEN: A rental Jan 1-3 (inclusive)
	// WHEN: A candidate starts on Jan 3
	// THEN: It conflicts, while Jan 4-5 does not
	existing := days(1, 3)

	if !generic.DailyRule.Overlaps(days(3, 5), existing) {
		t.Error("candidate starting on the last rented day must overlap")
	}
	if generic.DailyRule.Overlaps(days(4, 5), existing) {
		t.Error("candidate starting the day after must not overlap")
	}
}

func TestFindConflicts_IgnoresInactiveAndOtherResources(t *testing.T) {
	list := []generic.Reservation{
		committed("r-pending", "room-a", hours(10, 10, 12), generic.StatusPending),
		committed("r-cancelled", "room-a", hours(10, 10, 12), generic.StatusCancelled),
		committed("r-completed", "room-a", hours(10, 10, 12), generic.StatusCompleted),
		committed("r-other", "room-b", hours(10, 10, 12), generic.StatusConfirmed),
	}

	conflicts := generic.FindConflicts(generic.HourlyRule, "room-a", hours(10, 11, 12), list)
	if len(conflicts) != 1 || conflicts[0].ID != "r-pending" {
		t.Errorf("expected only r-pending, got %v", conflicts)
	}

	if generic.Overlaps(generic.HourlyRule, "room-a", hours(10, 12, 13), list) {
		t.Error("back-to-back candidate should be free")
	}
}

// =============================================================================
// CALENDAR
// =============================================================================

func TestCalendar_DaySlots(t *testing.T) {
	list := []generic.Reservation{
		committed("res-1", "room-a", hours(10, 10, 12), generic.StatusConfirmed),
		committed("res-2", "room-a", hours(10, 15, 16), generic.StatusCancelled),
	}
	cal := generic.NewCalendar("room-a", generic.HourlyRule, list)

	slots := cal.Slots(generic.DayWindow(hour(10, 0)))
	if len(slots) != 24 {
		t.Fatalf("expected 24 hourly slots, got %d", len(slots))
	}
	for _, s := range slots {
		taken := s.Start.Hour() == 10 || s.Start.Hour() == 11
		if s.Available == taken {
			t.Errorf("slot %s: available=%v", s.Start, s.Available)
		}
		if taken && s.ReservationID != "res-1" {
			t.Errorf("slot %s should point at res-1, got %q", s.Start, s.ReservationID)
		}
	}
}

func TestCalendar_ItemRange(t *testing.T) {
	cal := generic.NewCalendar("guitar", generic.DailyRule, []generic.Reservation{
		committed("rent-1", "guitar", days(3, 4), generic.StatusConfirmed),
	})

	slots := cal.Slots(days(1, 5))
	if len(slots) != 5 {
		t.Fatalf("expected 5 daily slots, got %d", len(slots))
	}
	want := []bool{true, true, false, false, true}
	for i, s := range slots {
		if s.Available != want[i] {
			t.Errorf("day %s: available=%v, want %v", s.Start, s.Available, want[i])
		}
	}
	if cal.IsFree(days(4, 6)) {
		t.Error("range touching rent-1's last day should not be free")
	}
}
