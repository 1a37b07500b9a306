package periodic

import (
	"sync"
	"time"
)

// Latch is a one-shot signal. Once set it stays set; any number of
// goroutines may wait on it.
type Latch struct {
	once sync.Once
	ch   chan struct{}
}

// NewLatch returns an unset latch.
func NewLatch() *Latch {
	return &Latch{ch: make(chan struct{})}
}

// Set fires the latch. Calls after the first have no effect.
func (l *Latch) Set() {
	l.once.Do(func() { close(l.ch) })
}

// Done returns a channel that is closed once the latch is set.
func (l *Latch) Done() <-chan struct{} {
	return l.ch
}

// IsSet reports whether Set has been called.
func (l *Latch) IsSet() bool {
	select {
	case <-l.ch:
		return true
	default:
		return false
	}
}

// Clock is the source of wait timers for a Transmitter.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// After implements Clock using time.After.
func (SystemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
