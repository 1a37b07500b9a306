package periodic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/muurk/wifican/internal/protocol"
)

func TestGroup_StartStopWait(t *testing.T) {
	std := protocol.Message{ID: 0x456, Data: []byte{8, 6, 4, 2, 0}}
	ext := protocol.Message{ID: 0x56789A, Extended: true, Data: []byte{5, 3, 7, 9}}
	clock := newFakeClock()
	sink := newRecordingSink()

	a, _ := New(&std, 10*time.Millisecond, sink, WithClock(clock))
	b, _ := New(&ext, 100*time.Millisecond, sink, WithClock(clock))
	g := NewGroup(a)
	g.Add(b)

	if err := g.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(g.Transmitters()) != 2 {
		t.Fatalf("Transmitters() = %d, want 2", len(g.Transmitters()))
	}

	// Fire both initial waits.
	clock.next(t).fire()
	clock.next(t).fire()
	sink.waitWrite(t)
	sink.waitWrite(t)

	g.StopAll()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if g.Sent() != 2 {
		t.Errorf("Sent() = %d, want 2", g.Sent())
	}

	got := map[string]bool{}
	for _, w := range sink.Writes() {
		got[string(w)] = true
	}
	if !got[":S456N0806040200;"] || !got[":X56789AN05030709;"] {
		t.Errorf("writes = %q", sink.Writes())
	}
}

func TestGroup_StartFailureStopsStarted(t *testing.T) {
	msg := protocol.Message{ID: 1}
	a, _ := New(&msg, time.Hour, newRecordingSink())
	b, _ := New(&msg, time.Hour, newRecordingSink())
	b.Stop()

	g := NewGroup(a, b)
	if err := g.Start(); !errors.Is(err, ErrStopped) {
		t.Fatalf("Start() error = %v, want ErrStopped", err)
	}
	waitDone(t, a)
}

func TestGroup_WaitContext(t *testing.T) {
	msg := protocol.Message{ID: 1}
	a, _ := New(&msg, time.Hour, newRecordingSink())
	g := NewGroup(a)
	_ = g.Start()
	defer g.StopAll()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := g.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
}

func TestGroup_FirstFailure(t *testing.T) {
	msg := protocol.Message{ID: 1}
	clock := newFakeClock()
	good := newRecordingSink()
	bad := newRecordingSink()
	bad.err = errors.New("broken pipe")

	a, _ := New(&msg, time.Millisecond, good, WithClock(clock), WithName("good"))
	b, _ := New(&msg, time.Hour, bad, WithClock(clock), WithName("bad"))
	g := NewGroup(a, b)
	failures := g.FirstFailure()
	_ = g.Start()
	defer g.StopAll()

	// Fire whichever waits are pending until the bad transmitter writes.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case err := <-failures:
			if err == nil || !errors.Is(err, bad.err) {
				t.Fatalf("FirstFailure() = %v, want %v", err, bad.err)
			}
			return
		case timer := <-clock.requests:
			timer.fire()
		case <-good.wrote:
		case <-deadline:
			t.Fatal("no failure reported")
		}
	}
}

func TestGroup_FirstFailureClosesOnCleanStop(t *testing.T) {
	msg := protocol.Message{ID: 1}
	a, _ := New(&msg, time.Hour, newRecordingSink())
	g := NewGroup(a)
	failures := g.FirstFailure()
	_ = g.Start()
	g.StopAll()

	select {
	case err, ok := <-failures:
		if ok {
			t.Errorf("FirstFailure() yielded %v, want closed channel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("FirstFailure() channel not closed")
	}
}
