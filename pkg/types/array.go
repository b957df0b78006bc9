package types

import (
	"encoding/binary"
	"encoding/json"
	"strings"

	pgerr "github.com/pgsqlite/pgsqlite/pkg/errors"
)

// Array is pgsqlite's in-memory representation of a one-dimensional
// Postgres array. Storage in SQLite is a JSON array ; NULL
// elements round-trip as JSON null.
type Array struct {
	Elem ElementOIDHolder
	// Values holds each element's already-encoded text form, or nil for
	// a SQL NULL element.
	Values []*string
}

// ElementOIDHolder avoids importing a cyclic element encoder: callers pass
// the element OID, the array codec only needs it for Postgres-style
// quoting decisions (whether an element needs double-quoting).
type ElementOIDHolder = OID

// ToJSON renders the array as the JSON text SQLite stores it as.
func (a Array) ToJSON() (string, error) {
	raw := make([]interface{}, len(a.Values))
	for i, v := range a.Values {
		if v == nil {
			raw[i] = nil
		} else {
			raw[i] = *v
		}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return "", pgerr.Internal("failed to encode array to JSON").WithCause(err).Err()
	}
	return string(data), nil
}

// ArrayFromJSON parses the JSON-stored form back into element text values.
func ArrayFromJSON(jsonText string) ([]*string, error) {
	var raw []interface{}
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		return nil, pgerr.Internal("corrupt array JSON in storage").WithCause(err).Err()
	}
	out := make([]*string, len(raw))
	for i, v := range raw {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			// Numbers/bools decode via json as float64/bool; format
			// generically rather than failing the whole array.
			b, _ := json.Marshal(v)
			s = string(b)
		}
		sv := s
		out[i] = &sv
	}
	return out, nil
}

// FormatArrayText renders the canonical `{a,b,c}` text form with
// Postgres-style quoting: any element containing a comma, brace, quote,
// backslash, or whitespace, or the literal NULL, is double-quoted.
func FormatArrayText(values []*string) string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(',')
		}
		if v == nil {
			sb.WriteString("NULL")
			continue
		}
		if needsArrayQuoting(*v) {
			sb.WriteByte('"')
			sb.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(*v))
			sb.WriteByte('"')
		} else {
			sb.WriteString(*v)
		}
	}
	sb.WriteByte('}')
	return sb.String()
}

func needsArrayQuoting(s string) bool {
	if s == "" || strings.EqualFold(s, "NULL") {
		return true
	}
	return strings.ContainsAny(s, ",{}\"\\ \t\n")
}

// ParseArrayText parses the canonical `{a,b,c}` literal text form into
// element text values (nil for unquoted NULL), honouring double-quoted
// elements with backslash escapes.
func ParseArrayText(text string) ([]*string, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 2 || trimmed[0] != '{' || trimmed[len(trimmed)-1] != '}' {
		return nil, pgerr.InvalidTextRepresentation("array", text).Err()
	}
	inner := trimmed[1 : len(trimmed)-1]
	if inner == "" {
		return nil, nil
	}

	var out []*string
	var cur strings.Builder
	inQuotes := false
	escaped := false
	for _, c := range inner {
		switch {
		case escaped:
			cur.WriteRune(c)
			escaped = false
		case c == '\\' && inQuotes:
			escaped = true
		case c == '"':
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			out = append(out, finishArrayElement(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	out = append(out, finishArrayElement(cur.String()))
	return out, nil
}

func finishArrayElement(s string) *string {
	if strings.EqualFold(s, "NULL") {
		return nil
	}
	v := s
	return &v
}

// EncodeArrayBinary produces the wire layout for a 1-dimensional array:
// i32 ndim, i32 hasnull, i32 element OID, then (i32 length, i32 lbound=1),
// then each element as i32 length + binary form (-1 for NULL).
func EncodeArrayBinary(elemOID OID, elementsBinary [][]byte) []byte {
	hasNull := int32(0)
	for _, e := range elementsBinary {
		if e == nil {
			hasNull = 1
			break
		}
	}

	buf := make([]byte, 0, 20+len(elementsBinary)*8)
	header := make([]byte, 20)
	binary.BigEndian.PutUint32(header[0:], 1) // ndim
	binary.BigEndian.PutUint32(header[4:], uint32(hasNull))
	binary.BigEndian.PutUint32(header[8:], uint32(elemOID))
	binary.BigEndian.PutUint32(header[12:], uint32(len(elementsBinary)))
	binary.BigEndian.PutUint32(header[16:], 1) // lbound
	buf = append(buf, header...)

	for _, e := range elementsBinary {
		lenBuf := make([]byte, 4)
		if e == nil {
			binary.BigEndian.PutUint32(lenBuf, uint32(int32(-1)))
			buf = append(buf, lenBuf...)
			continue
		}
		binary.BigEndian.PutUint32(lenBuf, uint32(int32(len(e))))
		buf = append(buf, lenBuf...)
		buf = append(buf, e...)
	}
	return buf
}

// DecodeArrayBinary parses the wire layout back into per-element raw
// binary slices (nil for NULL elements) and the element OID.
func DecodeArrayBinary(data []byte) (elemOID OID, elements [][]byte, err error) {
	if len(data) < 12 {
		return 0, nil, pgerr.InvalidTextRepresentation("array", "<short buffer>").Err()
	}
	ndim := binary.BigEndian.Uint32(data[0:])
	elemOID = OID(binary.BigEndian.Uint32(data[8:]))
	if ndim == 0 {
		return elemOID, nil, nil
	}
	if ndim != 1 {
		return 0, nil, pgerr.FeatureNotSupported("multi-dimensional arrays").Err()
	}
	if len(data) < 20 {
		return 0, nil, pgerr.InvalidTextRepresentation("array", "<short buffer>").Err()
	}
	count := int(binary.BigEndian.Uint32(data[12:]))

	offset := 20
	out := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		if offset+4 > len(data) {
			return 0, nil, pgerr.InvalidTextRepresentation("array", "<truncated>").Err()
		}
		l := int32(binary.BigEndian.Uint32(data[offset:]))
		offset += 4
		if l < 0 {
			out = append(out, nil)
			continue
		}
		if offset+int(l) > len(data) {
			return 0, nil, pgerr.InvalidTextRepresentation("array", "<truncated element>").Err()
		}
		out = append(out, data[offset:offset+int(l)])
		offset += int(l)
	}
	return elemOID, out, nil
}
