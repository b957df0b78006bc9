package types

import (
	"encoding/binary"
	"strings"

	pgerr "github.com/pgsqlite/pgsqlite/pkg/errors"
)

// Range flag bits binary layout table.
const (
rangeEmpty byte = 0x01
rangeLBInc byte = 0x02
rangeUBInc byte = 0x04
rangeLBInf byte = 0x08
rangeUBInf byte = 0x10
)

// Range is pgsqlite's representation of a range value (int4range, numrange,
// tsrange, tstzrange, daterange, int8range). Bounds are carried as the
// already-encoded text or binary form of the element type, decided by the
// caller, so the range codec stays element-type agnostic.
type Range struct {
	Empty bool
	LowerInc bool
	UpperInc bool
	LowerInf bool
	UpperInf bool
	LowerBytes []byte // nil when LowerInf or Empty
	UpperBytes []byte // nil when UpperInf or Empty
}

// EmptyRange returns the canonical empty range.
func EmptyRange() Range {
	return Range{Empty: true}
}

// FormatText renders the canonical Postgres text form, given the already
// textual rendering of each finite bound.
func (r Range) FormatText(lowerText, upperText string) string {
	if r.Empty {
		return "empty"
	}
	var sb strings.Builder
	if r.LowerInc {
		sb.WriteByte('[')
	} else {
		sb.WriteByte('(')
	}
	if !r.LowerInf {
		sb.WriteString(lowerText)
	}
	sb.WriteByte(',')
	if !r.UpperInf {
		sb.WriteString(upperText)
	}
	if r.UpperInc {
		sb.WriteByte(']')
	} else {
		sb.WriteByte(')')
	}
	return sb.String()
}

// ParseRangeText splits the canonical text form into its bound text
// substrings and inclusivity/infinity flags; the caller parses each bound
// with the element type's own parser.
func ParseRangeText(text string) (r Range, lowerText, upperText string, err error) {
	trimmed := strings.TrimSpace(text)
	if strings.EqualFold(trimmed, "empty") {
		return EmptyRange(), "", "", nil
	}
	if len(trimmed) < 3 {
		return Range{}, "", "", pgerr.InvalidTextRepresentation("range", text).Err()
	}

	lowerInc := trimmed[0] == '['
	if !lowerInc && trimmed[0] != '(' {
		return Range{}, "", "", pgerr.InvalidTextRepresentation("range", text).Err()
	}
	last := trimmed[len(trimmed)-1]
	upperInc := last == ']'
	if !upperInc && last != ')' {
		return Range{}, "", "", pgerr.InvalidTextRepresentation("range", text).Err()
	}

	inner := trimmed[1 : len(trimmed)-1]
	idx := strings.IndexByte(inner, ',')
	if idx < 0 {
		return Range{}, "", "", pgerr.InvalidTextRepresentation("range", text).Err()
	}
	lowerText = strings.TrimSpace(inner[:idx])
	upperText = strings.TrimSpace(inner[idx+1:])

	r = Range{
		LowerInc: lowerInc && lowerText != "",
		UpperInc: upperInc && upperText != "",
		LowerInf: lowerText == "",
		UpperInf: upperText == "",
	}
	return r, lowerText, upperText, nil
}

// EncodeBinary produces the flags byte followed by each finite bound as
// i32 length + the bound's own binary form.
func (r Range) EncodeBinary() []byte {
	if r.Empty {
		return []byte{rangeEmpty}
	}
	flags := byte(0)
	if r.LowerInc {
		flags |= rangeLBInc
	}
	if r.UpperInc {
		flags |= rangeUBInc
	}
	if r.LowerInf {
		flags |= rangeLBInf
	}
	if r.UpperInf {
		flags |= rangeUBInf
	}

	buf := []byte{flags}
	if !r.LowerInf {
		lenBuf := make([]byte, 4)
		binary.BigEndian.PutUint32(lenBuf, uint32(len(r.LowerBytes)))
		buf = append(buf, lenBuf...)
		buf = append(buf, r.LowerBytes...)
	}
	if !r.UpperInf {
		lenBuf := make([]byte, 4)
		binary.BigEndian.PutUint32(lenBuf, uint32(len(r.UpperBytes)))
		buf = append(buf, lenBuf...)
		buf = append(buf, r.UpperBytes...)
	}
	return buf
}

// DecodeRangeBinary parses the flags byte and finite-bound raw bytes,
// leaving element-specific decoding to the caller.
func DecodeRangeBinary(data []byte) (Range, error) {
	if len(data) < 1 {
		return Range{}, pgerr.InvalidTextRepresentation("range", "<empty buffer>").Err()
	}
	flags := data[0]
	if flags&rangeEmpty != 0 {
		return EmptyRange(), nil
	}
	r := Range{
		LowerInc: flags&rangeLBInc != 0,
		UpperInc: flags&rangeUBInc != 0,
		LowerInf: flags&rangeLBInf != 0,
		UpperInf: flags&rangeUBInf != 0,
	}
	offset := 1
	if !r.LowerInf {
		if offset+4 > len(data) {
			return Range{}, pgerr.InvalidTextRepresentation("range", "<truncated lower bound>").Err()
		}
		l := int(binary.BigEndian.Uint32(data[offset:]))
		offset += 4
		if offset+l > len(data) {
			return Range{}, pgerr.InvalidTextRepresentation("range", "<truncated lower bound>").Err()
		}
		r.LowerBytes = data[offset : offset+l]
		offset += l
	}
	if !r.UpperInf {
		if offset+4 > len(data) {
			return Range{}, pgerr.InvalidTextRepresentation("range", "<truncated upper bound>").Err()
		}
		l := int(binary.BigEndian.Uint32(data[offset:]))
		offset += 4
		if offset+l > len(data) {
			return Range{}, pgerr.InvalidTextRepresentation("range", "<truncated upper bound>").Err()
		}
		r.UpperBytes = data[offset : offset+l]
		offset += l
	}
	return r, nil
}
