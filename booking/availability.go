package booking

import (
	"context"
	"time"

	"github.com/warp/studio-engine/generic"
)

// =============================================================================
// AVAILABILITY VIEWS
// =============================================================================

// DayView is the slot grid of one resource for one UTC day.
// Rooms get 24 hourly slots; items get a single daily slot.
type DayView struct {
	ResourceID generic.ResourceID
	Date       generic.TimePoint
	Slots      []generic.Slot
}

// RangeView answers "can this range be reserved" and shows why not.
type RangeView struct {
	ResourceID  generic.ResourceID
	Period      generic.Period
	IsAvailable bool
	Slots       []generic.Slot
	Overlapping []generic.Reservation
}

// DayAvailability returns the slot grid of the day containing date.
func (e *Engine) DayAvailability(ctx context.Context, id generic.ResourceID, date time.Time) (*DayView, error) {
	resource, cal, err := e.calendar(ctx, id)
	if err != nil {
		return nil, err
	}

	day := generic.StartOfDay(date)
	window := generic.DayWindow(day)
	if resource.Rule().Granularity == generic.GranularityDay {
		window = generic.Period{Start: day, End: day}
	}
	return &DayView{ResourceID: id, Date: day, Slots: cal.Slots(window)}, nil
}

// RangeAvailability checks [from, to] under the resource's rule.
// Bounds are interpreted exactly as Reserve would interpret them.
func (e *Engine) RangeAvailability(ctx context.Context, id generic.ResourceID, from, to time.Time) (*RangeView, error) {
	resource, cal, err := e.calendar(ctx, id)
	if err != nil {
		return nil, err
	}

	quote, err := Quote(*resource, from, to)
	if err != nil {
		return nil, err
	}

	overlapping := cal.Conflicts(quote.Period)
	return &RangeView{
		ResourceID:  id,
		Period:      quote.Period,
		IsAvailable: resource.Active && len(overlapping) == 0,
		Slots:       cal.Slots(quote.Period),
		Overlapping: overlapping,
	}, nil
}

func (e *Engine) calendar(ctx context.Context, id generic.ResourceID) (*generic.Resource, generic.Calendar, error) {
	resource, err := e.resource(ctx, e.store, id)
	if err != nil {
		return nil, generic.Calendar{}, err
	}
	active, err := e.store.ListActiveReservations(ctx, id)
	if err != nil {
		return nil, generic.Calendar{}, generic.Storage("list active reservations", err)
	}
	return resource, generic.NewCalendar(id, resource.Rule(), active), nil
}
