package engine

import "time"

// Clock is the engine's time source. The scheduler's debounce and idle
// behavior are specified in wall-clock terms, so tests substitute a manual
// clock to drive the loop deterministically.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// NewClock returns the wall clock.
func NewClock() Clock { return realClock{} }
