package protocol

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"go.einride.tech/can"
)

// ParseID parses a hexadecimal CAN identifier. A leading "0x" or "0X"
// is optional.
func ParseID(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, fmt.Errorf("empty identifier")
	}

	id, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid identifier %q: %w", s, err)
	}
	return uint32(id), nil
}

// ParsePayload parses a hex payload such as "0806040200". Spaces, colons,
// dashes and dots between bytes are ignored, so "08 06 04" and
// "08:06:04" are accepted too.
func ParsePayload(s string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', ':', '-', '.':
			return -1
		}
		return r
	}, s)

	if len(cleaned)%2 != 0 {
		return nil, fmt.Errorf("payload %q has an odd number of hex digits", s)
	}

	data, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid payload %q: %w", s, err)
	}
	return data, nil
}

// ParseMessageFields builds a validated Message from its textual parts.
func ParseMessageFields(id, data string, extended bool) (Message, error) {
	parsedID, err := ParseID(id)
	if err != nil {
		return Message{}, err
	}

	payload, err := ParsePayload(data)
	if err != nil {
		return Message{}, err
	}

	m := Message{ID: parsedID, Extended: extended, Data: payload}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// ParseCandump parses candump notation such as "456#0806040200". An
// eight digit identifier marks an extended frame. Remote frames ("456#R")
// become messages with an empty payload.
func ParseCandump(s string) (Message, error) {
	var f can.Frame
	if err := f.UnmarshalString(strings.TrimSpace(s)); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	m := FromFrame(f)
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Candump renders the message in candump notation.
func Candump(m Message) (string, error) {
	f, err := m.Frame()
	if err != nil {
		return "", err
	}
	return f.String(), nil
}
