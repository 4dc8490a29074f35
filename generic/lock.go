package generic

import (
	"context"
	"sync"
)

// =============================================================================
// LOCKER - Per-key mutual exclusion
// =============================================================================

// Locker serializes work on one key (a resource id, an account id).
// Different keys never block each other.
//
// The in-process KeyedMutex is enough for a single server; the Redis
// implementation in store/redislock covers several instances sharing one
// database.
type Locker interface {
	// Lock blocks until the key is held or ctx is done. The returned
	// function releases the key and is safe to call once.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// ResourceLockKey is the key admission control locks for a resource.
func ResourceLockKey(id ResourceID) string { return "resource:" + string(id) }

// AccountLockKey is the key ledger updates lock for an account.
func AccountLockKey(id AccountID) string { return "account:" + string(id) }

// KeyedMutex is an in-process Locker. Each key gets a one-slot channel that
// is dropped once nobody holds or waits for it.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*keySlot
}

type keySlot struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*keySlot)}
}

func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	slot, ok := m.slots[key]
	if !ok {
		slot = &keySlot{ch: make(chan struct{}, 1)}
		m.slots[key] = slot
	}
	slot.refs++
	m.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			m.release(key, slot)
		})
	}, nil
}

func (m *KeyedMutex) release(key string, slot *keySlot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(m.slots, key)
	}
}
