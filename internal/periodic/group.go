package periodic

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Group manages a set of transmitters that share a sink.
type Group struct {
	transmitters []*Transmitter
}

// NewGroup returns a group holding txs.
func NewGroup(txs ...*Transmitter) *Group {
	return &Group{transmitters: txs}
}

// Add appends a transmitter to the group. It is not started.
func (g *Group) Add(t *Transmitter) {
	g.transmitters = append(g.transmitters, t)
}

// Transmitters returns the transmitters in the group.
func (g *Group) Transmitters() []*Transmitter {
	return g.transmitters
}

// Start starts every transmitter. If one fails to start, the ones already
// running are stopped and the error is returned.
func (g *Group) Start() error {
	for i, t := range g.transmitters {
		if err := t.Start(); err != nil {
			for _, started := range g.transmitters[:i] {
				started.Stop()
			}
			return fmt.Errorf("start %s: %w", t.Name(), err)
		}
	}
	return nil
}

// StopAll signals every transmitter to stop without waiting.
func (g *Group) StopAll() {
	for _, t := range g.transmitters {
		t.Stop()
	}
}

// Wait blocks until every transmitter has terminated or ctx is done. It
// returns the first transmitter write error, or ctx.Err() if the context
// ended first.
func (g *Group) Wait(ctx context.Context) error {
	eg := new(errgroup.Group)
	for _, t := range g.transmitters {
		t := t
		eg.Go(func() error {
			select {
			case <-t.Done():
				return t.Err()
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	return eg.Wait()
}

// FirstFailure returns a channel that yields the first transmitter write
// error. It is closed without a value once every transmitter has
// terminated cleanly.
func (g *Group) FirstFailure() <-chan error {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		eg, ctx := errgroup.WithContext(context.Background())
		for _, t := range g.transmitters {
			t := t
			eg.Go(func() error {
				select {
				case <-t.Done():
					return t.Err()
				case <-ctx.Done():
					return nil
				}
			})
		}
		if err := eg.Wait(); err != nil {
			ch <- err
		}
	}()
	return ch
}

// Sent returns the total number of frames written by the group.
func (g *Group) Sent() uint64 {
	var total uint64
	for _, t := range g.transmitters {
		total += t.Sent()
	}
	return total
}
