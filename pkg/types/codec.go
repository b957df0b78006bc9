package types

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	pgerr "github.com/pgsqlite/pgsqlite/pkg/errors"
)

// FormatCode is the Postgres wire format selector: 0 for text, 1 for
// binary.
type FormatCode int16

const (
	FormatText   FormatCode = 0
	FormatBinary FormatCode = 1
)

// EncodeText renders a SQLite-scalar Go value (int64, float64, string,
// []byte, nil) as the canonical Postgres text form for oid. Types whose
// SQLite storage is already their canonical text form (numeric, inet,
// money, bit, arrays, ranges, enums) are expected to arrive pre-rendered
// as a string and pass through unchanged except for boolean remapping.
func EncodeText(oid OID, value interface{}) (string, bool, error) {
	if value == nil {
		return "", true, nil
	}

	switch oid {
	case BoolOID:
		b, err := asInt64(value)
		if err != nil {
			return "", false, err
		}
		if b != 0 {
			return "t", false, nil
		}
		return "f", false, nil

	case Int2OID, Int4OID, Int8OID, OIDOID:
		n, err := asInt64(value)
		if err != nil {
			return "", false, err
		}
		return strconv.FormatInt(n, 10), false, nil

	case Float4OID, Float8OID:
		f, err := asFloat64(value)
		if err != nil {
			return "", false, err
		}
		return formatFloat(f), false, nil

	case ByteaOID:
		b, err := asBytes(value)
		if err != nil {
			return "", false, err
		}
		return `\x` + strings.ToLower(fmt.Sprintf("%x", b)), false, nil

	default:
		// text, varchar, bpchar, json, jsonb, numeric, uuid, inet, cidr,
		// macaddr, money, bit/varbit, arrays, ranges, enums: all stored
		// as (or already normalised to) their canonical text form.
		s, err := asString(value)
		if err != nil {
			return "", false, err
		}
		return s, false, nil
	}
}

// EncodeBinaryValue renders value as oid's binary wire form.
func EncodeBinaryValue(oid OID, value interface{}) ([]byte, bool, error) {
	if value == nil {
		return nil, true, nil
	}

	switch oid {
	case BoolOID:
		n, err := asInt64(value)
		if err != nil {
			return nil, false, err
		}
		if n != 0 {
			return []byte{1}, false, nil
		}
		return []byte{0}, false, nil

	case Int2OID:
		n, err := asInt64(value)
		if err != nil {
			return nil, false, err
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(int16(n)))
		return buf, false, nil

	case Int4OID, OIDOID:
		n, err := asInt64(value)
		if err != nil {
			return nil, false, err
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(int32(n)))
		return buf, false, nil

	case Int8OID:
		n, err := asInt64(value)
		if err != nil {
			return nil, false, err
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(n))
		return buf, false, nil

	case Float4OID:
		f, err := asFloat64(value)
		if err != nil {
			return nil, false, err
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, math.Float32bits(float32(f)))
		return buf, false, nil

	case Float8OID:
		f, err := asFloat64(value)
		if err != nil {
			return nil, false, err
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(f))
		return buf, false, nil

	case ByteaOID:
		b, err := asBytes(value)
		if err != nil {
			return nil, false, err
		}
		return b, false, nil

	case JSONBOID:
		s, err := asString(value)
		if err != nil {
			return nil, false, err
		}
		return append([]byte{1}, []byte(s)...), false, nil

	default:
		// text, json, varchar, bpchar, uuid text fallback, etc: UTF-8
		// bytes. Types with dedicated binary layouts (numeric, date,
		// time, timestamp, inet, bit, array, range) also land here and
		// are returned as their text bytes: neither this function nor its
		// caller in pkg/wire (encodeDataRow) converts them to that layout.
		s, err := asString(value)
		if err != nil {
			return nil, false, err
		}
		return []byte(s), false, nil
	}
}

// DecodeText parses wire text into the Go value SQLite storage expects
// for oid (int64 for integers/bool, float64 for reals, string otherwise).
// Type-specific validation (numeric precision, datetime parsing, etc.) is
// layered on top by the translator using the dedicated parsers in this
// package; this function covers the scalar types with no extra context.
func DecodeText(oid OID, text string) (interface{}, error) {
	switch oid {
	case BoolOID:
		return decodeBoolText(text)
	case Int2OID, Int4OID, Int8OID, OIDOID:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, pgerr.InvalidTextRepresentation("integer", text).Err()
		}
		return n, nil
	case Float4OID, Float8OID:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, pgerr.InvalidTextRepresentation("double precision", text).Err()
		}
		return f, nil
	case ByteaOID:
		return decodeByteaText(text)
	default:
		return text, nil
	}
}

// DecodeBinary parses the binary wire form for scalar types with no extra
// context requirement.
func DecodeBinary(oid OID, data []byte) (interface{}, error) {
	switch oid {
	case BoolOID:
		if len(data) != 1 {
			return nil, pgerr.InvalidTextRepresentation("bool", "<malformed binary>").Err()
		}
		if data[0] != 0 {
			return int64(1), nil
		}
		return int64(0), nil
	case Int2OID:
		if len(data) != 2 {
			return nil, pgerr.InvalidTextRepresentation("int2", "<malformed binary>").Err()
		}
		return int64(int16(binary.BigEndian.Uint16(data))), nil
	case Int4OID, OIDOID:
		if len(data) != 4 {
			return nil, pgerr.InvalidTextRepresentation("int4", "<malformed binary>").Err()
		}
		return int64(int32(binary.BigEndian.Uint32(data))), nil
	case Int8OID:
		if len(data) != 8 {
			return nil, pgerr.InvalidTextRepresentation("int8", "<malformed binary>").Err()
		}
		return int64(binary.BigEndian.Uint64(data)), nil
	case Float4OID:
		if len(data) != 4 {
			return nil, pgerr.InvalidTextRepresentation("float4", "<malformed binary>").Err()
		}
		return float64(math.Float32frombits(binary.BigEndian.Uint32(data))), nil
	case Float8OID:
		if len(data) != 8 {
			return nil, pgerr.InvalidTextRepresentation("float8", "<malformed binary>").Err()
		}
		return math.Float64frombits(binary.BigEndian.Uint64(data)), nil
	case ByteaOID:
		return data, nil
	case NumericOID:
		n, err := DecodeNumericBinary(data)
		if err != nil {
			return nil, err
		}
		return n.CanonicalText(0, false), nil
	default:
		return string(data), nil
	}
}

func decodeBoolText(text string) (int64, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "t", "true", "y", "yes", "on", "1":
		return 1, nil
	case "f", "false", "n", "no", "off", "0":
		return 0, nil
	default:
		return 0, pgerr.InvalidTextRepresentation("boolean", text).Err()
	}
}

func decodeByteaText(text string) ([]byte, error) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, `\x`) {
		hexPart := trimmed[2:]
		out := make([]byte, len(hexPart)/2)
		for i := 0; i < len(out); i++ {
			b, err := strconv.ParseUint(hexPart[2*i:2*i+2], 16, 8)
			if err != nil {
				return nil, pgerr.InvalidTextRepresentation("bytea", text).Err()
			}
			out[i] = byte(b)
		}
		return out, nil
	}
	// Legacy escape format: octal \NNN and \\ for a literal backslash.
	var out []byte
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] != '\\' {
			out = append(out, trimmed[i])
			continue
		}
		if i+1 < len(trimmed) && trimmed[i+1] == '\\' {
			out = append(out, '\\')
			i++
			continue
		}
		if i+3 < len(trimmed) {
			v, err := strconv.ParseUint(trimmed[i+1:i+4], 8, 8)
			if err == nil {
				out = append(out, byte(v))
				i += 3
				continue
			}
		}
		return nil, pgerr.InvalidTextRepresentation("bytea", text).Err()
	}
	return out, nil
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

func asInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, pgerr.InvalidTextRepresentation("integer", n).Err()
		}
		return parsed, nil
	default:
		return 0, pgerr.Internal(fmt.Sprintf("cannot encode %T as integer", v)).Err()
	}
}

func asFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, pgerr.InvalidTextRepresentation("double precision", n).Err()
		}
		return parsed, nil
	default:
		return 0, pgerr.Internal(fmt.Sprintf("cannot encode %T as float", v)).Err()
	}
}

func asBytes(v interface{}) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return nil, pgerr.Internal(fmt.Sprintf("cannot encode %T as bytea", v)).Err()
	}
}

func asString(v interface{}) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case int64:
		return strconv.FormatInt(s, 10), nil
	case float64:
		return formatFloat(s), nil
	default:
		return fmt.Sprint(v), nil
	}
}
