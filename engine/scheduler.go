package engine

import (
	"context"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Sync Scheduler
//
// A single loop decides when to attempt a sync. Three mechanisms interact:
//
//   - Debounce: every local mutation pushes the deadline out by the debounce
//     window, batching rapid edits into one round trip.
//   - Idle ceiling: when an attempt fires, the deadline is reset to the idle
//     ceiling *before* the attempt resolves, guaranteeing a periodic sync
//     even with no edits — and measuring the ceiling from attempt start.
//   - Rate guard: independent of the deadlines, an attempt inside the
//     minimum interval since the last success is skipped with a notice.
//
// Policy note: Op has no upper bound — continuous editing can postpone the
// deadline indefinitely, and the only ceiling is the one armed when the
// previous attempt started. That is deliberate: while the user is actively
// typing there is nothing stable worth shipping.
// ============================================================================

// Enable turns scheduling on and forces an immediate attempt. Idempotent.
func (e *SyncEngine) Enable() {
	e.mu.Lock()
	if e.enabled {
		e.mu.Unlock()
		return
	}
	e.enabled = true
	e.next = time.Time{} // already due
	ctx, cancel := context.WithCancel(context.Background())
	e.loopCancel = cancel
	e.mu.Unlock()

	go e.loop(ctx)
	logger.Info("Sync scheduling enabled")
}

// Disable stops scheduling. An attempt already in flight completes and its
// results are discarded at apply time.
func (e *SyncEngine) Disable() {
	e.mu.Lock()
	if !e.enabled {
		e.mu.Unlock()
		return
	}
	e.enabled = false
	cancel := e.loopCancel
	e.loopCancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	logger.Info("Sync scheduling disabled")
}

// Enabled reports whether scheduling is active.
func (e *SyncEngine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// Op signals a local mutation: the next attempt is pushed out by the
// debounce window.
func (e *SyncEngine) Op() {
	e.mu.Lock()
	if e.enabled {
		e.next = e.clock.Now().Add(e.cfg.Debounce)
	}
	e.mu.Unlock()
}

// SyncNow triggers an immediate attempt, bypassing the debounce but not the
// rate guard. Returns an error when scheduling is off or an attempt is
// already in flight.
func (e *SyncEngine) SyncNow() error {
	e.mu.Lock()
	enabled := e.enabled
	e.mu.Unlock()
	if !enabled {
		return serr.New("sync is disabled")
	}
	if e.status.Syncing() {
		return serr.New("sync already in progress")
	}
	e.attempt(context.Background())
	return nil
}

// loop re-evaluates the deadline, fires attempts when due, and sleeps at
// most one poll granularity so Enable/Op changes are noticed within one
// window.
func (e *SyncEngine) loop(ctx context.Context) {
	for {
		e.mu.Lock()
		if !e.enabled {
			e.mu.Unlock()
			return
		}
		now := e.clock.Now()
		due := !now.Before(e.next)
		if due {
			e.next = now.Add(e.cfg.IdleCeiling)
		}
		e.mu.Unlock()

		if due {
			// Not the loop context: disabling stops scheduling but never
			// aborts an attempt already in flight. The transport timeout
			// bounds the attempt instead.
			e.attempt(context.Background())
		}

		e.mu.Lock()
		wait := e.next.Sub(e.clock.Now())
		e.mu.Unlock()
		if wait > e.cfg.PollGranularity {
			wait = e.cfg.PollGranularity
		}
		if wait < 0 {
			wait = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-e.clock.After(wait):
		}
	}
}

// attempt runs the pre-flight checks and, if they pass, one sync cycle.
// The checks mirror the protocol: no token means scheduling should stop;
// an expired token is a foregone auth failure; the rate guard protects the
// server; the in-flight lock keeps attempts serial.
func (e *SyncEngine) attempt(ctx context.Context) {
	e.mu.Lock()
	token := e.token
	e.mu.Unlock()

	if token == "" {
		e.Disable()
		return
	}
	if tokenExpired(token, e.clock.Now()) {
		logger.Info("Bearer token expired; dropping session")
		e.ClearToken()
		return
	}

	if e.clock.Now().Before(e.status.LastSync().Add(e.cfg.MinSyncInterval)) {
		e.notices.Set(NoticeRateLimited)
		return
	}

	if !e.syncMu.TryLock() {
		return // an attempt is already in flight
	}
	defer e.syncMu.Unlock()

	e.status.SetSyncing(true)
	defer e.status.SetSyncing(false)

	e.runCycle(ctx, token)
}
