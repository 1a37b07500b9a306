// Package sink provides writers that can be shared between transmitters.
package sink

import (
	"io"
	"sync"
	"sync/atomic"
)

// Locked serializes writes to an underlying writer. Each Write call is
// passed through whole while holding the lock, so frames from different
// transmitters never interleave.
type Locked struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLocked wraps w.
func NewLocked(w io.Writer) *Locked {
	return &Locked{w: w}
}

// Write writes p to the underlying writer under the lock.
func (l *Locked) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// Counting counts the bytes and write calls that pass through it.
type Counting struct {
	w      io.Writer
	bytes  atomic.Uint64
	writes atomic.Uint64
}

// NewCounting wraps w.
func NewCounting(w io.Writer) *Counting {
	return &Counting{w: w}
}

// Write forwards p and records what was written.
func (c *Counting) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.bytes.Add(uint64(n))
	if err == nil {
		c.writes.Add(1)
	}
	return n, err
}

// Bytes returns the number of bytes written so far.
func (c *Counting) Bytes() uint64 { return c.bytes.Load() }

// Writes returns the number of successful Write calls.
func (c *Counting) Writes() uint64 { return c.writes.Load() }
