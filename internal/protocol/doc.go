// Package protocol implements the ASCII frame encoding spoken by the
// WiFi CAN gateway.
//
// The gateway bridges a physical CAN bus to TCP clients. Every CAN frame,
// in either direction, travels as a short run of printable ASCII delimited
// by a colon and a semicolon.
//
// # Wire Format
//
//	":" <type> <id> "N" <payload-hex> ";"
//
//   - type: 'S' for an 11-bit standard identifier, 'X' for a 29-bit
//     extended identifier
//   - id: uppercase hexadecimal, zero padded to at least three digits
//   - 'N': fixed separator between identifier and payload
//   - payload-hex: two uppercase hex digits per data byte, in order,
//     empty when the frame carries no data
//   - ';': frame terminator
//
// The identifier width is a minimum, not a maximum. Extended identifiers
// are written with as many digits as they need, which matches what the
// gateway firmware itself emits:
//
//	Message{ID: 0x456, Data: []byte{8, 6, 4, 2, 0}}           -> :S456N0806040200;
//	Message{ID: 0x56789A, Data: []byte{5, 3, 7, 9}, Extended: true} -> :X56789AN05030709;
//
// # Usage Example
//
//	msg := protocol.Message{ID: 0x456, Data: []byte{8, 6, 4, 2, 0}}
//	if err := msg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	_, err := conn.Write(protocol.Encode(msg))
//
// # Validation
//
// Encode is permissive: it formats whatever it is given and never fails.
// Messages coming from configuration or the command line should be passed
// through Message.Validate first, which rejects identifiers outside the
// 11/29-bit range and payloads longer than eight bytes. Validation is
// delegated to the go.einride.tech/can frame model.
//
// # Decoding
//
// Decode and SplitFrames read frames back. They serve the gateway
// emulator, which has to relay and inspect frames the way the firmware
// does. The diagnostic client never decodes what it receives; it prints
// the bytes verbatim.
//
// # Thread Safety
//
// Encode and AppendEncode are pure functions and safe for concurrent use.
// A Message must not be mutated while a transmitter is encoding it.
package protocol
