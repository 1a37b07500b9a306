package protocol

import (
	"errors"
	"fmt"

	"go.einride.tech/can"
)

// ErrInvalidMessage is returned (wrapped) when a message cannot be
// represented as a CAN frame.
var ErrInvalidMessage = errors.New("invalid CAN message")

// Message describes a single CAN frame to be sent to the gateway.
// It is constructed once and treated as read-only afterwards.
type Message struct {
	ID       uint32 // 11-bit (standard) or 29-bit (extended) identifier
	Extended bool   // Selects extended identifier framing
	Data     []byte // Payload, 0-8 bytes; its length is the DLC
}

// DLC returns the data length code, the number of payload bytes.
func (m Message) DLC() int {
	return len(m.Data)
}

// String returns the message in its wire encoding.
func (m Message) String() string {
	return string(Encode(m))
}

// Frame converts the message to an einride CAN frame.
// The frame is validated before it is returned.
func (m Message) Frame() (can.Frame, error) {
	if len(m.Data) > can.MaxDataLength {
		return can.Frame{}, fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrInvalidMessage, len(m.Data), can.MaxDataLength)
	}

	f := can.Frame{
		ID:         m.ID,
		Length:     uint8(len(m.Data)),
		IsExtended: m.Extended,
	}
	copy(f.Data[:], m.Data)

	if err := f.Validate(); err != nil {
		return can.Frame{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return f, nil
}

// Validate reports whether the message fits a CAN frame: the identifier
// must fit 11 bits (standard) or 29 bits (extended) and the payload must
// not exceed eight bytes.
func (m Message) Validate() error {
	_, err := m.Frame()
	return err
}

// FromFrame builds a Message from an einride CAN frame.
// Remote frames carry no payload on this gateway and are encoded as data
// frames with an empty payload.
func FromFrame(f can.Frame) Message {
	n := int(f.Length)
	if n > can.MaxDataLength {
		n = can.MaxDataLength
	}

	m := Message{
		ID:       f.ID,
		Extended: f.IsExtended,
		Data:     make([]byte, 0, n),
	}
	if !f.IsRemote {
		m.Data = append(m.Data, f.Data[:n]...)
	}
	return m
}
