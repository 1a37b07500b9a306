package periodic

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifican/internal/logging"
	"github.com/muurk/wifican/internal/protocol"
)

var (
	// ErrInvalidPeriod is returned by New for a zero or negative period
	ErrInvalidPeriod = errors.New("period must be greater than zero")
	// ErrAlreadyStarted is returned by Start on a running transmitter
	ErrAlreadyStarted = errors.New("transmitter already started")
	// ErrStopped is returned by Start once the transmitter has been stopped
	ErrStopped = errors.New("transmitter stopped")
)

// State is the lifecycle state of a Transmitter.
type State int32

const (
	StateStopped State = iota
	StateRunning
	StateTerminated
)

// String returns a human-readable name for the state
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// Option configures a Transmitter.
type Option func(*Transmitter)

// WithClock replaces the wall clock, typically with a fake in tests.
func WithClock(c Clock) Option {
	return func(t *Transmitter) { t.clock = c }
}

// WithLatch supplies the stop latch instead of a private one. Setting the
// latch has the same effect as calling Stop.
func WithLatch(l *Latch) Option {
	return func(t *Transmitter) {
		t.stop = l
		t.shared = true
	}
}

// WithName sets the name used in logs and errors.
func WithName(name string) Option {
	return func(t *Transmitter) { t.name = name }
}

// WithOnSend registers a callback invoked after every successful write
// with the number of bytes written. It runs on the transmitter goroutine.
func WithOnSend(fn func(n int)) Option {
	return func(t *Transmitter) { t.onSend = fn }
}

// Transmitter writes one encoded message to a sink every period until
// stopped.
type Transmitter struct {
	name   string
	msg    *protocol.Message
	period time.Duration
	sink   io.Writer
	clock  Clock
	stop   *Latch
	shared bool
	onSend func(n int)

	mu    sync.Mutex
	state State
	err   error
	done  chan struct{}

	sent atomic.Uint64
}

// New creates a stopped transmitter for msg. The message is shared, not
// copied; it must not be modified while the transmitter runs.
func New(msg *protocol.Message, period time.Duration, sink io.Writer, opts ...Option) (*Transmitter, error) {
	if msg == nil {
		return nil, errors.New("message is required")
	}
	if sink == nil {
		return nil, errors.New("sink is required")
	}
	if period <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPeriod, period)
	}

	t := &Transmitter{
		name:   fmt.Sprintf("0x%X", msg.ID),
		msg:    msg,
		period: period,
		sink:   sink,
		clock:  SystemClock{},
		stop:   NewLatch(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.shared {
		go t.watchLatch()
	}
	return t, nil
}

// watchLatch terminates a transmitter that was never started once its
// shared latch is set. A running loop observes the latch itself.
func (t *Transmitter) watchLatch() {
	select {
	case <-t.stop.Done():
	case <-t.done:
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateStopped {
		t.terminateLocked()
	}
}

// Name returns the transmitter name.
func (t *Transmitter) Name() string { return t.name }

// Message returns the message being transmitted.
func (t *Transmitter) Message() *protocol.Message { return t.msg }

// Period returns the configured wait between writes.
func (t *Transmitter) Period() time.Duration { return t.period }

// Start launches the transmit loop and returns immediately.
func (t *Transmitter) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case StateRunning:
		return ErrAlreadyStarted
	case StateTerminated:
		return ErrStopped
	}

	if t.stop.IsSet() {
		t.terminateLocked()
		return ErrStopped
	}

	t.state = StateRunning
	logging.LogTransmitter(t.name, "started",
		zap.Duration("period", t.period),
		zap.String("frame", t.msg.String()),
	)
	go t.run()
	return nil
}

// Stop requests termination. It does not wait for the loop to exit; use
// Done for that. Stop is safe to call any number of times, before or
// after Start.
func (t *Transmitter) Stop() {
	t.stop.Set()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateStopped {
		t.terminateLocked()
	}
}

// Done returns a channel closed once the transmitter has terminated.
func (t *Transmitter) Done() <-chan struct{} {
	return t.done
}

// Err returns the write error that terminated the loop, or nil when it
// was stopped normally or is still running.
func (t *Transmitter) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// State returns the current lifecycle state.
func (t *Transmitter) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Sent returns the number of frames written successfully.
func (t *Transmitter) Sent() uint64 {
	return t.sent.Load()
}

func (t *Transmitter) run() {
	var err error
	defer func() { t.finish(err) }()

	buf := make([]byte, 0, protocol.EncodedLen(*t.msg))
	for {
		select {
		case <-t.stop.Done():
			return
		case <-t.clock.After(t.period):
		}

		// Both cases may be ready at once; stop wins.
		if t.stop.IsSet() {
			return
		}

		buf = protocol.AppendEncode(buf[:0], *t.msg)
		n, werr := t.sink.Write(buf)
		if werr != nil {
			err = fmt.Errorf("transmitter %s: write frame: %w", t.name, werr)
			return
		}

		t.sent.Add(1)
		logging.LogFrame("sent", t.name, buf)
		if t.onSend != nil {
			t.onSend(n)
		}
	}
}

func (t *Transmitter) finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.err = err
	t.terminateLocked()

	if err != nil {
		logging.Warn("Transmitter terminated by write error",
			zap.String("transmitter", t.name),
			zap.Uint64("sent", t.sent.Load()),
			zap.Error(err),
		)
		return
	}
	logging.LogTransmitter(t.name, "stopped", zap.Uint64("sent", t.sent.Load()))
}

func (t *Transmitter) terminateLocked() {
	if t.state == StateTerminated {
		return
	}
	t.state = StateTerminated
	close(t.done)
}
