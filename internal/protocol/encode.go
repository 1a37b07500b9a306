package protocol

import "strconv"

// Frame delimiters and markers
const (
	FrameStart     = ':'
	FrameEnd       = ';'
	FrameSeparator = 'N'
	TypeStandard   = 'S'
	TypeExtended   = 'X'

	// MinIDDigits is the minimum number of hex digits used for the identifier
	MinIDDigits = 3
)

const hexDigits = "0123456789ABCDEF"

// Encode returns the wire encoding of m.
func Encode(m Message) []byte {
	return AppendEncode(make([]byte, 0, EncodedLen(m)), m)
}

// AppendEncode appends the wire encoding of m to dst and returns the
// extended buffer.
func AppendEncode(dst []byte, m Message) []byte {
	dst = append(dst, FrameStart)
	if m.Extended {
		dst = append(dst, TypeExtended)
	} else {
		dst = append(dst, TypeStandard)
	}

	dst = appendID(dst, m.ID)
	dst = append(dst, FrameSeparator)

	for _, b := range m.Data {
		dst = append(dst, hexDigits[b>>4], hexDigits[b&0x0F])
	}

	return append(dst, FrameEnd)
}

// EncodedLen returns the number of bytes Encode produces for m.
func EncodedLen(m Message) int {
	return 4 + idDigits(m.ID) + 2*len(m.Data)
}

func appendID(dst []byte, id uint32) []byte {
	for n := idDigits(id) - hexLen(id); n > 0; n-- {
		dst = append(dst, '0')
	}
	if id == 0 {
		return dst
	}

	start := len(dst)
	dst = strconv.AppendUint(dst, uint64(id), 16)
	for i := start; i < len(dst); i++ {
		if c := dst[i]; c >= 'a' && c <= 'f' {
			dst[i] = c - 'a' + 'A'
		}
	}
	return dst
}

func idDigits(id uint32) int {
	if n := hexLen(id); n > MinIDDigits {
		return n
	}
	return MinIDDigits
}

// hexLen is the number of significant hex digits in v (0 for v == 0).
func hexLen(v uint32) int {
	n := 0
	for ; v != 0; v >>= 4 {
		n++
	}
	return n
}
