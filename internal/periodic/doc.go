// Package periodic repeatedly sends one CAN message to a shared sink at a
// fixed cadence.
//
// A Transmitter owns a message, a period and a one-shot stop Latch. Once
// started it runs on its own goroutine:
//
//  1. wait up to one period for the stop latch
//  2. if the latch fired, exit
//  3. otherwise encode the message and write it to the sink in a single
//     Write call, then go back to 1
//
// The wait is measured from the end of the previous write, so the real
// interval is the period plus encode and write time. The schedule drifts;
// it is not a fixed-rate clock.
//
// # Lifecycle
//
//	Stopped --Start()--> Running --Stop()/write error--> Terminated
//
// A transmitter is single-use. Stop is idempotent, never blocks and may be
// called before Start; a stopped transmitter cannot be started again.
//
// # Sinks
//
// Transmitters sharing one connection must be given a sink that delivers
// each Write whole, such as sink.Locked. A write error terminates the
// transmitter that hit it and is reported through Err; it is never
// retried.
//
// # Testing
//
// The Clock interface lets tests drive ticks by hand instead of sleeping:
//
//	tx, _ := periodic.New(&msg, 10*time.Millisecond, &buf, periodic.WithClock(fake))
package periodic
