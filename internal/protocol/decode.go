package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// MaxFrameLen is the longest valid frame: an extended identifier and a
// full eight byte payload.
const MaxFrameLen = 4 + 8 + 2*8

// MaxPending bounds the bytes SplitFrames holds for one unterminated
// frame. A longer run is discarded up to the next ':'.
const MaxPending = 1024

// ErrMalformedFrame is returned (wrapped) by Decode for input that is not
// a frame.
var ErrMalformedFrame = errors.New("malformed frame")

// Decode parses one complete frame such as ":S456N0806040200;". Letters
// are accepted in either case, as the gateway firmware does. The decoded
// message is validated.
func Decode(frame []byte) (Message, error) {
	if len(frame) < 4 || frame[0] != FrameStart || frame[len(frame)-1] != FrameEnd {
		return Message{}, fmt.Errorf("%w: %q is not delimited by %q and %q", ErrMalformedFrame, frame, FrameStart, FrameEnd)
	}
	body := frame[1 : len(frame)-1]

	var m Message
	switch upper(body[0]) {
	case TypeStandard:
	case TypeExtended:
		m.Extended = true
	default:
		return Message{}, fmt.Errorf("%w: unknown frame type %q", ErrMalformedFrame, body[0])
	}

	sep := bytes.IndexAny(body, "Nn")
	if sep < 0 {
		return Message{}, fmt.Errorf("%w: missing %q separator", ErrMalformedFrame, FrameSeparator)
	}
	idText := body[1:sep]
	if len(idText) == 0 {
		return Message{}, fmt.Errorf("%w: empty identifier", ErrMalformedFrame)
	}
	id, err := strconv.ParseUint(string(idText), 16, 32)
	if err != nil {
		return Message{}, fmt.Errorf("%w: identifier %q: %v", ErrMalformedFrame, idText, err)
	}
	m.ID = uint32(id)

	payload := body[sep+1:]
	if len(payload)%2 != 0 {
		return Message{}, fmt.Errorf("%w: payload %q has an odd number of hex digits", ErrMalformedFrame, payload)
	}
	m.Data = make([]byte, len(payload)/2)
	for i := range m.Data {
		hi, ok1 := fromHex(payload[2*i])
		lo, ok2 := fromHex(payload[2*i+1])
		if !ok1 || !ok2 {
			return Message{}, fmt.Errorf("%w: payload %q is not hexadecimal", ErrMalformedFrame, payload)
		}
		m.Data[i] = hi<<4 | lo
	}

	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// SplitFrames is a bufio.SplitFunc that yields one frame per token,
// delimiters included. Bytes outside a frame are dropped and a new ':'
// restarts the frame being collected. A frame longer than MaxPending is
// dropped without failing the scan, so a scanner buffer larger than
// MaxPending never overflows.
func SplitFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if len(data) == 0 {
		return 0, nil, nil
	}

	start := bytes.IndexByte(data, FrameStart)
	if start < 0 {
		return len(data), nil, nil
	}

	end := bytes.IndexByte(data[start:], FrameEnd)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Only the last ':' can still begin a frame.
		last := bytes.LastIndexByte(data, FrameStart)
		if len(data)-last > MaxPending {
			return len(data), nil, nil
		}
		return last, nil, nil
	}

	frame := data[start : start+end+1]
	if i := bytes.LastIndexByte(frame, FrameStart); i > 0 {
		frame = frame[i:]
	}
	if len(frame) > MaxPending {
		return start + end + 1, nil, nil
	}
	return start + end + 1, frame, nil
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

func fromHex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
