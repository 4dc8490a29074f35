package booking

import (
	"context"
	"fmt"

	"github.com/warp/studio-engine/generic"
)

// =============================================================================
// RESOURCE MAINTENANCE
// =============================================================================

// ResourceInput describes a room or item to register.
type ResourceInput struct {
	ID       generic.ResourceID // optional, generated when empty
	Kind     string             // "room" or "item"
	Name     string
	Rate     generic.Money
	Capacity int
	Active   bool
}

// AddResource registers a resource. Admin only.
func (e *Engine) AddResource(ctx context.Context, in ResourceInput, actor generic.Actor) (*generic.Resource, error) {
	if !actor.IsAdmin() {
		return nil, generic.ErrUnauthorized
	}
	kind := generic.LookupKind(in.Kind)
	if kind == nil {
		return nil, fmt.Errorf("%w: unknown resource kind %q", generic.ErrInvalidInput, in.Kind)
	}
	if in.Rate.IsNegative() {
		return nil, fmt.Errorf("%w: rate must not be negative: %s", generic.ErrInvalidInput, in.Rate)
	}

	now := e.clock.Now()
	r := generic.Resource{
		ID:        in.ID,
		Kind:      kind,
		Name:      in.Name,
		Rate:      in.Rate,
		Capacity:  in.Capacity,
		Active:    in.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if r.ID == "" {
		r.ID = generic.NewResourceID()
	}
	if err := e.store.SaveResource(ctx, r); err != nil {
		return nil, generic.Storage("save resource", err)
	}
	return &r, nil
}

// SetResourceActive toggles whether a resource accepts new reservations.
// Existing reservations are untouched. Admin only.
func (e *Engine) SetResourceActive(ctx context.Context, id generic.ResourceID, active bool, actor generic.Actor) (*generic.Resource, error) {
	if !actor.IsAdmin() {
		return nil, generic.ErrUnauthorized
	}

	unlock, err := e.locker.Lock(ctx, generic.ResourceLockKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	r, err := e.resource(ctx, e.store, id)
	if err != nil {
		return nil, err
	}
	r.Active = active
	r.UpdatedAt = e.clock.Now()
	if err := e.store.SaveResource(ctx, *r); err != nil {
		return nil, generic.Storage("save resource", err)
	}
	return r, nil
}

// GetResource returns one resource.
func (e *Engine) GetResource(ctx context.Context, id generic.ResourceID) (*generic.Resource, error) {
	return e.resource(ctx, e.store, id)
}

// ListResources returns every resource, optionally restricted to one kind.
func (e *Engine) ListResources(ctx context.Context, kind string) ([]generic.Resource, error) {
	all, err := e.store.ListResources(ctx)
	if err != nil {
		return nil, generic.Storage("list resources", err)
	}
	if kind == "" {
		return all, nil
	}
	var result []generic.Resource
	for _, r := range all {
		if r.Kind.KindID() == kind {
			result = append(result, r)
		}
	}
	return result, nil
}
