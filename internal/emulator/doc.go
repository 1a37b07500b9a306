// Package emulator implements a software stand-in for the WiFi CAN gateway.
//
// The emulator listens on TCP and behaves like the gateway firmware with
// no physical bus attached:
//
//   - up to MaxClients clients may be connected at once; further
//     connections are closed immediately
//   - every complete frame a client sends is relayed to all other
//     clients, and back to the sender too when Echo is set
//   - a heartbeat frame (:X1FFFFF22N010000; by default) is broadcast to
//     every client each HeartbeatPeriod
//   - optional Traffic messages are broadcast on their own periods to
//     simulate a busy bus
//
// Frames are split on ':' and ';' the way the firmware does: bytes
// outside a frame are ignored and a new ':' restarts the frame. Frames
// that do not decode are counted and logged but still relayed.
//
// Frames the emulator originates (heartbeat and traffic) use the
// uppercase hex of protocol.Encode. The firmware prints its own frames
// in lowercase, so a real gateway announces itself as
// ":X1fffff22N010000;". Clients must accept either case; protocol.Decode
// does. Relayed frames are forwarded byte for byte.
//
// # Usage Example
//
//	srv, err := emulator.New(emulator.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.ListenAndServe(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Point a session at it with "wifican run --host 127.0.0.1".
package emulator
