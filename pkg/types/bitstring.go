package types

import (
	"strings"

	pgerr "github.com/pgsqlite/pgsqlite/pkg/errors"
)

// BitString is pgsqlite's representation of bit(n)/varbit(n): stored in
// SQLite as the literal '0'/'1' character sequence (), but
// carried here as a packed byte form for the binary wire encoding.
type BitString struct {
	Bits int
	Packed []byte // MSB-first packed bits, ceil(Bits/8) bytes
}

// ParseBitString validates a '0'/'1' character string and packs it.
func ParseBitString(text string) (BitString, error) {
	n := len(text)
	packed := make([]byte, (n+7)/8)
	for i, c := range text {
		switch c {
		case '0':
		case '1':
			packed[i/8] |= 1 << uint(7-i%8)
		default:
			return BitString{}, pgerr.InvalidTextRepresentation("bit varying", text).Err()
		}
	}
	return BitString{Bits: n, Packed: packed}, nil
}

// String unpacks back into the canonical '0'/'1' text form.
func (b BitString) String() string {
	var sb strings.Builder
	sb.Grow(b.Bits)
	for i := 0; i < b.Bits; i++ {
		if b.Packed[i/8]&(1<<uint(7-i%8)) != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// EncodeBinary produces the wire layout: i32 bit-length then the packed
// bytes, MSB first.
func (b BitString) EncodeBinary() []byte {
	buf := make([]byte, 4+len(b.Packed))
	buf[0] = byte(b.Bits >> 24)
	buf[1] = byte(b.Bits >> 16)
	buf[2] = byte(b.Bits >> 8)
	buf[3] = byte(b.Bits)
	copy(buf[4:], b.Packed)
	return buf
}

// DecodeBitStringBinary parses the wire layout back into a BitString.
func DecodeBitStringBinary(data []byte) (BitString, error) {
	if len(data) < 4 {
		return BitString{}, pgerr.InvalidTextRepresentation("bit varying", "<short buffer>").Err()
	}
	bits := int(data[0])<<24 | int(data[1])<<16 | int(data[2])<<8 | int(data[3])
	expected := (bits + 7) / 8
	if len(data) != 4+expected {
		return BitString{}, pgerr.InvalidTextRepresentation("bit varying", "<length mismatch>").Err()
	}
	packed := make([]byte, expected)
	copy(packed, data[4:])
	return BitString{Bits: bits, Packed: packed}, nil
}
