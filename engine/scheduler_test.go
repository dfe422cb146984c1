package engine_test

import (
	"testing"
	"time"

	"notesync/engine"
	"notesync/models"
)

func TestEnableSyncsImmediately(t *testing.T) {
	store := openTestStore(t)
	eng, ft, _ := newTestEngine(t, nil, store)

	eng.SetToken("tok")
	waitFor(t, func() bool { return ft.callCount() == 1 }, "initial sync")

	if !eng.Enabled() {
		t.Error("engine should be enabled after SetToken")
	}
	st := eng.Status()
	if st.LastSync == nil {
		t.Error("successful sync should record a last-sync time")
	}
}

func TestDebounceBatchesEdits(t *testing.T) {
	store := openTestStore(t)
	eng, ft, clk := newTestEngine(t, nil, store)

	eng.SetToken("tok")
	waitFor(t, func() bool { return ft.callCount() == 1 }, "initial sync")
	clk.BlockUntil(1)

	// Three edits ten seconds apart; each pushes the deadline out, so the
	// batch ships sixty seconds after the LAST edit, not the first.
	id, _ := eng.CreateItem() // t=0, deadline t=60
	clk.Advance(10 * time.Second)
	eng.UpdateItem(id, "a") // t=10, deadline t=70
	clk.Advance(10 * time.Second)
	eng.UpdateItem(id, "ab") // t=20, deadline t=80

	clk.Advance(40 * time.Second) // t=60: scheduler wakes, not yet due
	if ft.callCount() != 1 {
		t.Fatalf("sync fired before the debounce deadline (calls=%d)", ft.callCount())
	}

	clk.BlockUntil(1)
	clk.Advance(20 * time.Second) // t=80: due
	waitFor(t, func() bool { return ft.callCount() == 2 }, "debounced sync")

	// One batch carries the accumulated edit
	batch := ft.lastBatch()
	if len(batch) != 1 {
		t.Fatalf("expected one payload, got %d", len(batch))
	}
	if batch[0].Version != 2 || batch[0].Value == nil || *batch[0].Value != "ab" {
		t.Errorf("batched payload mismatch: %+v", batch[0])
	}
}

func TestIdleCeilingSyncsPeriodically(t *testing.T) {
	store := openTestStore(t)
	eng, ft, clk := newTestEngine(t, nil, store)

	eng.SetToken("tok")
	waitFor(t, func() bool { return ft.callCount() == 1 }, "initial sync")

	// No edits at all: the scheduler wakes every poll granularity and fires
	// again once the idle ceiling elapses.
	for i := 0; i < 9; i++ {
		clk.BlockUntil(1)
		clk.Advance(60 * time.Second)
	}
	if ft.callCount() != 1 {
		t.Fatalf("sync fired before the idle ceiling (calls=%d)", ft.callCount())
	}

	clk.BlockUntil(1)
	clk.Advance(60 * time.Second) // t=600
	waitFor(t, func() bool { return ft.callCount() == 2 }, "idle sync")
}

func TestRateGuardSkipsEarlyAttempt(t *testing.T) {
	store := openTestStore(t)
	eng, ft, clk := newTestEngine(t, nil, store)

	eng.SetToken("tok")
	waitFor(t, func() bool { return ft.callCount() == 1 }, "initial sync")

	clk.Advance(5 * time.Second)
	if err := eng.SyncNow(); err != nil {
		t.Fatalf("sync-now failed: %v", err)
	}

	// Inside the minimum interval: skipped with a notice, no round trip
	if ft.callCount() != 1 {
		t.Errorf("rate guard should have skipped the attempt (calls=%d)", ft.callCount())
	}
	if eng.Notices().Current() != engine.NoticeRateLimited {
		t.Errorf("expected rate-limit notice, got %q", eng.Notices().Current())
	}

	clk.Advance(15 * time.Second)
	if err := eng.SyncNow(); err != nil {
		t.Fatalf("sync-now failed: %v", err)
	}
	if ft.callCount() != 2 {
		t.Errorf("attempt past the minimum interval should proceed (calls=%d)", ft.callCount())
	}
}

func TestDisableStopsScheduling(t *testing.T) {
	store := openTestStore(t)
	eng, ft, clk := newTestEngine(t, nil, store)

	eng.SetToken("tok")
	waitFor(t, func() bool { return ft.callCount() == 1 }, "initial sync")
	clk.BlockUntil(1)

	eng.Disable()
	if eng.Enabled() {
		t.Fatal("engine should report disabled")
	}
	if err := eng.SyncNow(); err == nil {
		t.Error("sync-now should fail while disabled")
	}

	for i := 0; i < 20; i++ {
		clk.Advance(60 * time.Second)
	}
	if ft.callCount() != 1 {
		t.Errorf("no attempts should fire after disable (calls=%d)", ft.callCount())
	}
}

func TestDisableDuringFlightDiscardsResponse(t *testing.T) {
	store := openTestStore(t)
	ft := &fakeTransport{block: make(chan struct{})}
	ft.setRecords([]models.SyncRecord{{ID: "R1", Version: 2, Value: strPtr("late")}})

	clk := newFakeClock()
	eng, err := engine.NewSyncEngine(testConfig(), store, ft, clk)
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	t.Cleanup(eng.Close)

	eng.SetToken("tok")
	waitFor(t, func() bool { return ft.callCount() == 1 }, "attempt to reach the transport")

	// Session ends while the round trip is parked in the transport. The
	// attempt is not aborted, but its response is stale truth for a session
	// that no longer exists.
	eng.Disable()
	close(ft.block)
	waitFor(t, func() bool { return !eng.Status().Syncing }, "attempt to finish")

	if snap, _ := models.LoadRemote(store, "R1"); snap != nil {
		t.Error("discarded response should not have persisted records")
	}
	ids, _ := models.LoadList(store)
	if len(ids) != 0 {
		t.Errorf("discarded response should not have changed the list: %v", ids)
	}
	if eng.Status().LastSync != nil {
		t.Error("a discarded cycle should not count as a successful sync")
	}
}
