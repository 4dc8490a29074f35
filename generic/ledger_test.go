package generic_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/warp/studio-engine/generic"
	"github.com/warp/studio-engine/generic/store"
)

var t0 = time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)

func entry(id string, amount int64, created time.Time, expires *time.Time) generic.Entry {
	return generic.Entry{
		ID:        generic.EntryID(id),
		AccountID: "acct-1",
		Amount:    amount,
		Category:  generic.CategoryBooking,
		CreatedAt: created,
		ExpiresAt: expires,
	}
}

func ptr(t time.Time) *time.Time { return &t }

// =============================================================================
// BALANCE FOLD
// =============================================================================

func TestRunningTotal_SumsIncludedEntries(t *testing.T) {
	entries := []generic.Entry{
		entry("e1", 90, t0, nil),
		entry("e2", 15, t0.Add(time.Hour), nil),
	}
	if got := generic.RunningTotal(entries, t0.Add(2*time.Hour)); got != 105 {
		t.Errorf("expected 105, got %d", got)
	}
}

func TestRunningTotal_ClampsAtZero(t *testing.T) {
	entries := []generic.Entry{
		entry("e1", 10, t0, nil),
		entry("e2", -40, t0.Add(time.Hour), nil),
	}
	if got := generic.RunningTotal(entries, t0.Add(2*time.Hour)); got != 0 {
		t.Errorf("expected clamped 0, got %d", got)
	}
}

func TestRunningTotal_ExpiredEntriesDropOut(t *testing.T) {
	// GIVEN: 20 points that expire at t0+24h and 5 that never do
	// WHEN: The balance is read after the expiry, before any sweep ran
	// THEN: Only the 5 count
	entries := []generic.Entry{
		entry("e1", 20, t0, ptr(t0.Add(24*time.Hour))),
		entry("e2", 5, t0, nil),
	}
	if got := generic.RunningTotal(entries, t0.Add(23*time.Hour)); got != 25 {
		t.Errorf("before expiry expected 25, got %d", got)
	}
	if got := generic.RunningTotal(entries, t0.Add(24*time.Hour)); got != 5 {
		t.Errorf("at expiry expected 5, got %d", got)
	}
}

func TestExpiredPending_SkipsStampedEntries(t *testing.T) {
	stamped := entry("e1", 20, t0, ptr(t0.Add(time.Hour)))
	stamped.ExcludedAt = ptr(t0.Add(2 * time.Hour))
	entries := []generic.Entry{
		stamped,
		entry("e2", 5, t0, ptr(t0.Add(time.Hour))),
		entry("e3", 5, t0, nil),
	}
	ids := generic.ExpiredPending(entries, t0.Add(3*time.Hour))
	if len(ids) != 1 || ids[0] != "e2" {
		t.Errorf("expected [e2], got %v", ids)
	}
}

// =============================================================================
// MEMORY STORE
// =============================================================================

func TestMemoryLedger_WithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	ledger := store.NewTxMemory().Ledger()

	boom := errors.New("boom")
	err := ledger.WithTx(ctx, func(tx generic.LedgerStore) error {
		if err := tx.AppendEntry(ctx, entry("e1", 10, t0, nil)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	entries, _ := ledger.LoadEntries(ctx, "acct-1")
	if len(entries) != 0 {
		t.Errorf("rolled back append should not be visible, got %d entries", len(entries))
	}
}

func TestMemoryLedger_MarkExcluded_KeepsFirstStamp(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_ = mem.AppendEntry(ctx, entry("e1", 10, t0, ptr(t0.Add(time.Hour))))

	first := t0.Add(2 * time.Hour)
	_ = mem.MarkExcluded(ctx, "acct-1", []generic.EntryID{"e1"}, first)
	_ = mem.MarkExcluded(ctx, "acct-1", []generic.EntryID{"e1"}, first.Add(time.Hour))

	entries, _ := mem.LoadEntries(ctx, "acct-1")
	if entries[0].ExcludedAt == nil || !entries[0].ExcludedAt.Equal(first) {
		t.Errorf("expected first stamp %v, got %v", first, entries[0].ExcludedAt)
	}
	if entries[0].Amount != 10 {
		t.Error("exclusion must not change the amount")
	}

	accounts, _ := mem.AccountsWithExpired(ctx, t0.Add(5*time.Hour))
	if len(accounts) != 0 {
		t.Errorf("stamped account should not be listed again, got %v", accounts)
	}
}

func TestMemoryConfig_VersionCheck(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	if err := mem.SaveRewardConfig(ctx, generic.ConfigRecord{Version: 1, ConfigJSON: "{}"}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	err := mem.SaveRewardConfig(ctx, generic.ConfigRecord{Version: 1, ConfigJSON: "{}"})
	if !errors.Is(err, generic.ErrConcurrentModification) {
		t.Errorf("expected ErrConcurrentModification, got %v", err)
	}
}

// =============================================================================
// LOCKER
// =============================================================================

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	ctx := context.Background()
	locks := generic.NewKeyedMutex()

	var (
		wg      sync.WaitGroup
		counter int
		maxSeen int
		inside  int
		mu      sync.Mutex
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locks.Lock(ctx, "resource:room-a")
			if err != nil {
				t.Error(err)
				return
			}
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			counter++

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if counter != 20 {
		t.Errorf("expected 20 increments, got %d", counter)
	}
	if maxSeen != 1 {
		t.Errorf("expected at most one holder, saw %d", maxSeen)
	}
}

func TestKeyedMutex_ContextCancelled(t *testing.T) {
	locks := generic.NewKeyedMutex()
	unlock, _ := locks.Lock(context.Background(), "k")
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := locks.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	// Other keys are unaffected.
	other, err := locks.Lock(context.Background(), "other")
	if err != nil {
		t.Fatalf("other key: %v", err)
	}
	other()
}

// =============================================================================
// ERRORS
// =============================================================================

func TestErrorKinds(t *testing.T) {
	storage := generic.Storage("save reservation", errors.New("disk full"))
	if !generic.IsStorageFault(storage) || generic.IsBusinessError(storage) {
		t.Error("storage error must not look like a business error")
	}
	if generic.Kind(storage) != "internal" {
		t.Errorf("expected internal, got %s", generic.Kind(storage))
	}

	slot := &generic.SlotUnavailableError{ResourceID: "room-a", Conflicts: []generic.ReservationID{"r1"}}
	if generic.Kind(slot) != "slot_unavailable" || generic.IsStorageFault(slot) {
		t.Error("slot error misclassified")
	}
	if generic.Storage("op", slot) != error(slot) {
		t.Error("Storage() must pass business errors through")
	}

	if generic.Kind(generic.NewAlreadyCancelledError("r1")) != "already_cancelled" {
		t.Error("already cancelled misclassified")
	}
	if !generic.IsNotFound(&generic.NotFoundError{What: "reservation", ID: "x"}) {
		t.Error("not found misclassified")
	}
}
