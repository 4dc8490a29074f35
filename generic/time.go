package generic

import (
	"time"
)

// =============================================================================
// TIME POINT - Instant aligned to a reservation granularity
// =============================================================================

type TimePoint struct {
	Time        time.Time
	Granularity Granularity
}

// Granularity is the unit a resource is reserved in.
type Granularity int

const (
	GranularityDay Granularity = iota
	GranularityHour
)

func (g Granularity) String() string {
	switch g {
	case GranularityHour:
		return "hour"
	default:
		return "day"
	}
}

// Step is the length of one granularity unit.
func (g Granularity) Step() time.Duration {
	if g == GranularityHour {
		return time.Hour
	}
	return 24 * time.Hour
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Granularity: GranularityDay}
}

func NewTimePointWithHour(year int, month time.Month, day, hour int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, hour, 0, 0, 0, time.UTC), Granularity: GranularityHour}
}

// At wraps t with the given granularity without truncating it.
func At(t time.Time, g Granularity) TimePoint {
	return TimePoint{Time: t.UTC(), Granularity: g}
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return tp.Before(other) || tp.Equal(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return tp.After(other) || tp.Equal(other) }

func (tp TimePoint) normalize() time.Time {
	t := tp.Time.UTC()
	switch tp.Granularity {
	case GranularityDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case GranularityHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	default:
		return t
	}
}

// Truncate returns the point snapped down to its granularity.
func (tp TimePoint) Truncate() TimePoint {
	return TimePoint{Time: tp.normalize(), Granularity: tp.Granularity}
}

// IsAligned reports whether the point already sits on a unit boundary.
func (tp TimePoint) IsAligned() bool {
	return tp.Time.UTC().Equal(tp.normalize())
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint {
	return TimePoint{Time: tp.Time.AddDate(0, 0, n), Granularity: tp.Granularity}
}

func (tp TimePoint) AddHours(n int) TimePoint {
	return TimePoint{Time: tp.Time.Add(time.Duration(n) * time.Hour), Granularity: tp.Granularity}
}

// AddUnits moves the point by n units of its own granularity.
func (tp TimePoint) AddUnits(n int) TimePoint {
	if tp.Granularity == GranularityHour {
		return tp.AddHours(n)
	}
	return tp.AddDays(n)
}

// Properties
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }
func (tp TimePoint) Hour() int         { return tp.Time.Hour() }
func (tp TimePoint) IsZero() bool      { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	switch tp.Granularity {
	case GranularityDay:
		return tp.Time.Format("2006-01-02")
	case GranularityHour:
		return tp.Time.Format("2006-01-02 15:00")
	default:
		return tp.Time.Format(time.RFC3339)
	}
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// UnitsBetween counts whole units of g from -> to after normalization.
func UnitsBetween(from, to TimePoint, g Granularity) int {
	f := TimePoint{Time: from.Time, Granularity: g}.normalize()
	t := TimePoint{Time: to.Time, Granularity: g}.normalize()
	return int(t.Sub(f) / g.Step())
}

func DaysBetween(from, to TimePoint) int { return UnitsBetween(from, to, GranularityDay) }

func StartOfDay(t time.Time) TimePoint {
	u := t.UTC()
	return NewTimePoint(u.Year(), u.Month(), u.Day())
}
