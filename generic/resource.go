/*
resource.go - Resources and the resource-kind registry

PURPOSE:
  A Resource is anything that can be reserved for a time range: a studio
  room booked by the hour, an instrument rented by the day. The engine only
  sees a Resource through its Kind, which supplies the granularity rule
  (unit, boundary semantics) and the initial reservation state.

HOW IT WORKS:
  1. Domain packages define their ResourceKind implementations
  2. Domain packages register them on init()
  3. Storage uses the registry to turn a stored kind id back into a kind

USAGE:
  // In booking/kinds.go
  func init() {
      generic.RegisterKind(KindRoom)
      generic.RegisterKind(KindItem)
  }

  kind := generic.LookupKind("room")  // returns booking.KindRoom

SEE ALSO:
  - period.go: GranularityRule
  - booking/kinds.go: Room and Item kinds
*/
package generic

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// =============================================================================
// RESOURCE KIND
// =============================================================================

// ResourceKind is implemented by domain packages. The generic package has
// no knowledge of rooms or items.
type ResourceKind interface {
	// KindID returns the unique identifier stored alongside resources.
	KindID() string

	// Rule returns the granularity rule used for validation, overlap and pricing.
	Rule() GranularityRule

	// InitialStatus is the lifecycle state of a freshly admitted reservation.
	InitialStatus() ReservationStatus
}

// =============================================================================
// RESOURCE
// =============================================================================

// Resource is a bookable or rentable thing.
type Resource struct {
	ID       ResourceID
	Kind     ResourceKind
	Name     string
	Rate     Money // per unit of Kind.Rule().Granularity
	Capacity int   // rooms only; 0 when not applicable
	Active   bool  // inactive/unavailable resources reject new reservations

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Rule is shorthand for r.Kind.Rule().
func (r Resource) Rule() GranularityRule { return r.Kind.Rule() }

// =============================================================================
// KIND REGISTRY
// =============================================================================

var (
	kindRegistry = make(map[string]ResourceKind)
	registryMu   sync.RWMutex
)

// RegisterKind adds a resource kind to the global registry.
// Call this from domain package init() functions.
func RegisterKind(k ResourceKind) {
	registryMu.Lock()
	defer registryMu.Unlock()
	kindRegistry[k.KindID()] = k
}

// LookupKind finds a registered kind by id. Returns nil if not found.
func LookupKind(id string) ResourceKind {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return kindRegistry[id]
}

// MustLookupKind finds a registered kind or panics.
func MustLookupKind(id string) ResourceKind {
	k := LookupKind(id)
	if k == nil {
		panic(fmt.Sprintf("resource kind not registered: %s", id))
	}
	return k
}

// ListKinds returns all registered kinds ordered by id.
func ListKinds() []ResourceKind {
	registryMu.RLock()
	defer registryMu.RUnlock()
	result := make([]ResourceKind, 0, len(kindRegistry))
	for _, k := range kindRegistry {
		result = append(result, k)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].KindID() < result[j].KindID() })
	return result
}
