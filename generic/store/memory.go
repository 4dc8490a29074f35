// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/studio-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements TxBookingStore, TxLedgerStore and ConfigStore.
type Memory struct {
	mu           sync.RWMutex
	resources    map[generic.ResourceID]generic.Resource
	reservations map[generic.ReservationID]generic.Reservation
	entries      map[generic.AccountID][]generic.Entry
	accounts     map[generic.AccountID]generic.Account
	config       *generic.ConfigRecord
}

func NewMemory() *Memory {
	return &Memory{
		resources:    make(map[generic.ResourceID]generic.Resource),
		reservations: make(map[generic.ReservationID]generic.Reservation),
		entries:      make(map[generic.AccountID][]generic.Entry),
		accounts:     make(map[generic.AccountID]generic.Account),
	}
}

// =============================================================================
// RESOURCES & RESERVATIONS
// =============================================================================

func (m *Memory) SaveResource(_ context.Context, r generic.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[r.ID] = r
	return nil
}

func (m *Memory) GetResource(_ context.Context, id generic.ResourceID) (*generic.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getResourceLocked(id), nil
}

func (m *Memory) ListResources(_ context.Context) ([]generic.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listResourcesLocked(), nil
}

func (m *Memory) SaveReservation(_ context.Context, r generic.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations[r.ID] = r
	return nil
}

func (m *Memory) GetReservation(_ context.Context, id generic.ReservationID) (*generic.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getReservationLocked(id), nil
}

func (m *Memory) ListActiveReservations(_ context.Context, resourceID generic.ResourceID) ([]generic.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listActiveLocked(resourceID), nil
}

func (m *Memory) ListReservations(_ context.Context, filter generic.ReservationFilter) ([]generic.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listReservationsLocked(filter), nil
}

func (m *Memory) getResourceLocked(id generic.ResourceID) *generic.Resource {
	r, ok := m.resources[id]
	if !ok {
		return nil
	}
	return &r
}

func (m *Memory) listResourcesLocked() []generic.Resource {
	result := make([]generic.Resource, 0, len(m.resources))
	for _, r := range m.resources {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func (m *Memory) getReservationLocked(id generic.ReservationID) *generic.Reservation {
	r, ok := m.reservations[id]
	if !ok {
		return nil
	}
	return &r
}

func (m *Memory) listActiveLocked(resourceID generic.ResourceID) []generic.Reservation {
	var result []generic.Reservation
	for _, r := range m.reservations {
		if r.ResourceID == resourceID && r.IsActive() {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Period.Start.Before(result[j].Period.Start) })
	return result
}

func (m *Memory) listReservationsLocked(filter generic.ReservationFilter) []generic.Reservation {
	var result []generic.Reservation
	for _, r := range m.reservations {
		if filter.Matches(r) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// =============================================================================
// LEDGER
// =============================================================================

// AppendEntry adds a single entry. Append-only.
func (m *Memory) AppendEntry(_ context.Context, e generic.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(e)
	return nil
}

func (m *Memory) LoadEntries(_ context.Context, accountID generic.AccountID) ([]generic.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadEntriesLocked(accountID), nil
}

func (m *Memory) MarkExcluded(_ context.Context, accountID generic.AccountID, ids []generic.EntryID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markExcludedLocked(accountID, ids, at)
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id generic.AccountID) (*generic.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAccountLocked(id), nil
}

func (m *Memory) SaveAccount(_ context.Context, a generic.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = a
	return nil
}

func (m *Memory) ListAccounts(_ context.Context) ([]generic.AccountID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listAccountsLocked(), nil
}

func (m *Memory) AccountsWithExpired(_ context.Context, now time.Time) ([]generic.AccountID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accountsWithExpiredLocked(now), nil
}

func (m *Memory) appendLocked(e generic.Entry) {
	entries := m.entries[e.AccountID]

	// Keep creation order; equal timestamps stay in arrival order.
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].CreatedAt.After(e.CreatedAt)
	})
	entries = append(entries, generic.Entry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = e
	m.entries[e.AccountID] = entries
}

func (m *Memory) loadEntriesLocked(accountID generic.AccountID) []generic.Entry {
	result := make([]generic.Entry, len(m.entries[accountID]))
	copy(result, m.entries[accountID])
	return result
}

func (m *Memory) markExcludedLocked(accountID generic.AccountID, ids []generic.EntryID, at time.Time) {
	want := make(map[generic.EntryID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	entries := m.entries[accountID]
	for i := range entries {
		if want[entries[i].ID] && entries[i].ExcludedAt == nil {
			stamp := at
			entries[i].ExcludedAt = &stamp
		}
	}
}

func (m *Memory) getAccountLocked(id generic.AccountID) *generic.Account {
	a, ok := m.accounts[id]
	if !ok {
		return nil
	}
	return &a
}

func (m *Memory) listAccountsLocked() []generic.AccountID {
	result := make([]generic.AccountID, 0, len(m.accounts))
	for id := range m.accounts {
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

func (m *Memory) accountsWithExpiredLocked(now time.Time) []generic.AccountID {
	var result []generic.AccountID
	for id, entries := range m.entries {
		if len(generic.ExpiredPending(entries, now)) > 0 {
			result = append(result, id)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// =============================================================================
// REWARD CONFIG
// =============================================================================

func (m *Memory) GetRewardConfig(_ context.Context) (*generic.ConfigRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return nil, nil
	}
	rec := *m.config
	return &rec, nil
}

func (m *Memory) SaveRewardConfig(_ context.Context, rec generic.ConfigRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := 0
	if m.config != nil {
		current = m.config.Version
	}
	if rec.Version != current+1 {
		return generic.ErrConcurrentModification
	}
	m.config = &rec
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a booking transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(generic.BookingStore) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

// Ledger returns the ledger-facing transactional view of the same store.
func (tm *TxMemory) Ledger() *TxLedgerMemory {
	return &TxLedgerMemory{Memory: tm.Memory}
}

// TxLedgerMemory exposes Memory as a TxLedgerStore.
type TxLedgerMemory struct {
	*Memory
}

// WithTx executes fn within a ledger transaction.
func (tl *TxLedgerMemory) WithTx(ctx context.Context, fn func(generic.LedgerStore) error) error {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	snapshot := tl.snapshot()
	if err := fn(&txMemoryView{parent: tl.Memory}); err != nil {
		tl.restore(snapshot)
		return err
	}
	return nil
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		resources:    make(map[generic.ResourceID]generic.Resource, len(m.resources)),
		reservations: make(map[generic.ReservationID]generic.Reservation, len(m.reservations)),
		entries:      make(map[generic.AccountID][]generic.Entry, len(m.entries)),
		accounts:     make(map[generic.AccountID]generic.Account, len(m.accounts)),
	}
	for k, v := range m.resources {
		s.resources[k] = v
	}
	for k, v := range m.reservations {
		s.reservations[k] = v
	}
	for k, v := range m.entries {
		s.entries[k] = append([]generic.Entry{}, v...)
	}
	for k, v := range m.accounts {
		s.accounts[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.resources = s.resources
	m.reservations = s.reservations
	m.entries = s.entries
	m.accounts = s.accounts
}

type memorySnapshot struct {
	resources    map[generic.ResourceID]generic.Resource
	reservations map[generic.ReservationID]generic.Reservation
	entries      map[generic.AccountID][]generic.Entry
	accounts     map[generic.AccountID]generic.Account
}

// txMemoryView runs with the parent's write lock already held.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) SaveResource(_ context.Context, r generic.Resource) error {
	tv.parent.resources[r.ID] = r
	return nil
}

func (tv *txMemoryView) GetResource(_ context.Context, id generic.ResourceID) (*generic.Resource, error) {
	return tv.parent.getResourceLocked(id), nil
}

func (tv *txMemoryView) ListResources(_ context.Context) ([]generic.Resource, error) {
	return tv.parent.listResourcesLocked(), nil
}

func (tv *txMemoryView) SaveReservation(_ context.Context, r generic.Reservation) error {
	tv.parent.reservations[r.ID] = r
	return nil
}

func (tv *txMemoryView) GetReservation(_ context.Context, id generic.ReservationID) (*generic.Reservation, error) {
	return tv.parent.getReservationLocked(id), nil
}

func (tv *txMemoryView) ListActiveReservations(_ context.Context, resourceID generic.ResourceID) ([]generic.Reservation, error) {
	return tv.parent.listActiveLocked(resourceID), nil
}

func (tv *txMemoryView) ListReservations(_ context.Context, filter generic.ReservationFilter) ([]generic.Reservation, error) {
	return tv.parent.listReservationsLocked(filter), nil
}

func (tv *txMemoryView) AppendEntry(_ context.Context, e generic.Entry) error {
	tv.parent.appendLocked(e)
	return nil
}

func (tv *txMemoryView) LoadEntries(_ context.Context, accountID generic.AccountID) ([]generic.Entry, error) {
	return tv.parent.loadEntriesLocked(accountID), nil
}

func (tv *txMemoryView) MarkExcluded(_ context.Context, accountID generic.AccountID, ids []generic.EntryID, at time.Time) error {
	tv.parent.markExcludedLocked(accountID, ids, at)
	return nil
}

func (tv *txMemoryView) GetAccount(_ context.Context, id generic.AccountID) (*generic.Account, error) {
	return tv.parent.getAccountLocked(id), nil
}

func (tv *txMemoryView) SaveAccount(_ context.Context, a generic.Account) error {
	tv.parent.accounts[a.ID] = a
	return nil
}

func (tv *txMemoryView) ListAccounts(_ context.Context) ([]generic.AccountID, error) {
	return tv.parent.listAccountsLocked(), nil
}

func (tv *txMemoryView) AccountsWithExpired(_ context.Context, now time.Time) ([]generic.AccountID, error) {
	return tv.parent.accountsWithExpiredLocked(now), nil
}

var (
	_ generic.TxBookingStore = (*TxMemory)(nil)
	_ generic.TxLedgerStore  = (*TxLedgerMemory)(nil)
	_ generic.ConfigStore    = (*Memory)(nil)
)
