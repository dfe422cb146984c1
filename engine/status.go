package engine

import (
	"sync"
	"time"
)

// ============================================================================
// Status and Notices
//
// Status tracks the last successful sync and the in-flight flag; the rate
// guard reads the former and the single-attempt invariant rests on the
// latter. Notices hold the one transient user-facing message the UI shows,
// auto-clearing after a fixed display time.
// ============================================================================

// Message keys surfaced to the UI. The web layer passes them through; a
// localized front end resolves them to text.
const (
	NoticeRateLimited = "list.error.limit.sync.message"
	NoticeOverlength  = "list.error.overlength.message"
)

// noticeDisplayTime is how long a notice stays visible before auto-clearing.
const noticeDisplayTime = 10 * time.Second

// Status is the sync-state collaborator consulted by the rate guard and
// exposed through the control surface.
type Status struct {
	clock Clock

	mu       sync.Mutex
	lastSync time.Time // last successful cycle; zero if never
	syncing  bool
	failures int // consecutive failed cycles, reset on success
}

// NewStatus builds a Status on the given clock.
func NewStatus(clock Clock) *Status {
	return &Status{clock: clock}
}

// LastSync returns the completion time of the last successful sync cycle,
// zero if none has succeeded yet.
func (s *Status) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

// Syncing reports whether a sync attempt is in flight.
func (s *Status) Syncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

// SetSyncing flips the in-flight flag.
func (s *Status) SetSyncing(v bool) {
	s.mu.Lock()
	s.syncing = v
	s.mu.Unlock()
}

// OnSync records the outcome of a completed cycle. Success advances the
// timestamp the rate guard gates on.
func (s *Status) OnSync(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if success {
		s.lastSync = s.clock.Now()
		s.failures = 0
		return
	}
	s.failures++
}

// Failures returns the count of consecutive failed cycles.
func (s *Status) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// Notices shows at most one transient message at a time. Setting a new
// notice restarts the display window.
type Notices struct {
	clock Clock
	ttl   time.Duration

	mu  sync.Mutex
	key string
	gen int // invalidates auto-clears scheduled for superseded notices
}

// NewNotices builds a Notices display with the given time-to-live.
func NewNotices(clock Clock, ttl time.Duration) *Notices {
	return &Notices{clock: clock, ttl: ttl}
}

// Set shows a message key, replacing any current one. The notice clears
// itself after the display time unless superseded first.
func (n *Notices) Set(key string) {
	n.mu.Lock()
	n.key = key
	n.gen++
	gen := n.gen
	n.mu.Unlock()

	if key == "" {
		return
	}
	go func() {
		<-n.clock.After(n.ttl)
		n.mu.Lock()
		if n.gen == gen {
			n.key = ""
		}
		n.mu.Unlock()
	}()
}

// Clear removes the current notice.
func (n *Notices) Clear() {
	n.Set("")
}

// Current returns the visible message key, empty when none.
func (n *Notices) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.key
}
