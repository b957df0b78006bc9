package types

import (
	"encoding/binary"
	"strings"

	"github.com/shopspring/decimal"

	pgerr "github.com/pgsqlite/pgsqlite/pkg/errors"
)

// nbase is the base Postgres NUMERIC digits are grouped in on the wire;
// each "digit" is actually a base-10000 group of four decimal digits.
const nbase = 10000

const (
	numericPos = 0x0000
	numericNeg = 0x4000
	numericNaN = 0xC000
)

// Numeric is pgsqlite's in-memory representation of a NUMERIC/DECIMAL
// value: a decimal.Decimal, or NaN. The column's declared (precision,
// scale) is not stored here; see NumericConstraint.
type Numeric struct {
	Value decimal.Decimal
	NaN   bool
}

// NumericConstraint is a column's declared (precision, scale), attached to
// a bound parameter that targets the column so the extended-query path can
// validate the value before splicing it into dispatched SQL text.
type NumericConstraint struct {
	Precision int
	Scale     int
}

// ParseNumeric performs the two-phase validation original_source's
// numeric_validator carries out: a parse phase (22P02 on failure) followed
// by a distinct range/scale check phase (22003 on failure) when the column
// declares (precision, scale).
func ParseNumeric(text string, precision, scale int, hasConstraint bool) (Numeric, error) {
	trimmed := strings.TrimSpace(text)
	if strings.EqualFold(trimmed, "nan") {
		return Numeric{NaN: true}, nil
	}

	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return Numeric{}, pgerr.InvalidTextRepresentation("numeric", text).Err()
	}

	n := Numeric{Value: d}
	if hasConstraint {
		if err := n.checkConstraint(precision, scale); err != nil {
			return Numeric{}, err
		}
		n.Value = n.Value.Round(int32(scale))
	}
	return n, nil
}

// checkConstraint validates the value fits (precision, scale): the
// fractional part must not carry more digits than scale allows (rejected
// rather than rounded away, matching the numeric validator this mirrors),
// and the number of digits left of the decimal point plus scale must not
// exceed precision, mirroring Postgres's NUMERIC(p,s) overflow rule.
func (n Numeric) checkConstraint(precision, scale int) error {
	fracDigits := int(-n.Value.Exponent())
	if fracDigits < 0 {
		fracDigits = 0
	}
	if fracDigits > scale {
		return pgerr.NumericOutOfRange("numeric").
			WithDetailf("a field with precision %d, scale %d cannot hold %s", precision, scale, n.Value.String()).
			Err()
	}

	coeff := n.Value.Coefficient()
	digits := len(strings.TrimLeft(coeff.Abs().String(), "0"))
	if digits == 0 {
		digits = 1
	}
	intDigits := digits - fracDigits
	if intDigits < 0 {
		intDigits = 0
	}
	if intDigits > precision-scale {
		return pgerr.NumericOutOfRange("numeric").
			WithDetailf("a field with precision %d, scale %d cannot hold %s", precision, scale, n.Value.String()).
			Err()
	}
	return nil
}

// CanonicalText renders the canonical Postgres text form: trailing zeros
// padded to scale when scale is known, otherwise the value's natural
// string form.
func (n Numeric) CanonicalText(scale int, scaleKnown bool) string {
	if n.NaN {
		return "NaN"
	}
	if scaleKnown {
		return n.Value.StringFixed(int32(scale))
	}
	return n.Value.String()
}

// EncodeBinary produces the Postgres NBASE-10000 wire layout:
// int16 ndigits, int16 weight, uint16 sign, int16 dscale, then
// ndigits×int16 base-10000 digit groups, most significant first.
func (n Numeric) EncodeBinary() []byte {
	if n.NaN {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint16(buf[4:], numericNaN)
		return buf
	}

	sign := uint16(numericPos)
	abs := n.Value
	if abs.Sign() < 0 {
		sign = numericNeg
		abs = abs.Neg()
	}

	scale := -abs.Exponent()
	if scale < 0 {
		scale = 0
	}
	dscale := int16(scale)

	digits, weight := toBase10000(abs)

	buf := make([]byte, 8+2*len(digits))
	binary.BigEndian.PutUint16(buf[0:], uint16(len(digits)))
	binary.BigEndian.PutUint16(buf[2:], uint16(weight))
	binary.BigEndian.PutUint16(buf[4:], sign)
	binary.BigEndian.PutUint16(buf[6:], uint16(dscale))
	for i, d := range digits {
		binary.BigEndian.PutUint16(buf[8+2*i:], uint16(d))
	}
	return buf
}

// toBase10000 splits abs's decimal digit string into NBASE-10000 groups
// aligned on the decimal point, the way Postgres's numeric.c does, and
// returns the weight of the most significant group (in units of 4 digits,
// counted from the decimal point).
func toBase10000(abs decimal.Decimal) ([]int16, int16) {
	coeffStr := abs.Coefficient().Abs().String()
	exp := int(abs.Exponent())

	// Build the full digit string with the decimal point exp places from
	// the right, then pad so the integer part's length is a multiple of 4.
	if exp > 0 {
		coeffStr += strings.Repeat("0", exp)
		exp = 0
	}
	intLen := len(coeffStr) + exp
	if intLen < 0 {
		coeffStr = strings.Repeat("0", -intLen) + coeffStr
		intLen = 0
	}
	padLeft := (4 - intLen%4) % 4
	digitsStr := strings.Repeat("0", padLeft) + coeffStr
	intLen += padLeft

	fracLen := -exp
	if fracLen < 0 {
		fracLen = 0
	}
	padRight := (4 - fracLen%4) % 4
	digitsStr += strings.Repeat("0", padRight)

	if len(digitsStr) == 0 {
		return nil, 0
	}

	var groups []int16
	for i := 0; i < len(digitsStr); i += 4 {
		chunk := digitsStr[i : i+4]
		v := 0
		for _, c := range chunk {
			v = v*10 + int(c-'0')
		}
		groups = append(groups, int16(v))
	}

	// Trim trailing all-zero groups (fractional tail) and leading
	// all-zero groups (weight adjusts accordingly), keeping at least one.
	weight := int16(intLen/4 - 1)
	start := 0
	for start < len(groups)-1 && groups[start] == 0 && start < intLen/4 {
		start++
		weight--
	}
	end := len(groups)
	for end > start+1 && groups[end-1] == 0 {
		end--
	}
	groups = groups[start:end]
	if len(groups) == 1 && groups[0] == 0 {
		return nil, 0
	}
	return groups, weight
}

// DecodeNumericBinary parses the NBASE-10000 wire layout back into a
// Numeric, raising 22P02 on malformed input.
func DecodeNumericBinary(data []byte) (Numeric, error) {
	if len(data) < 8 {
		return Numeric{}, pgerr.InvalidTextRepresentation("numeric", "<short buffer>").Err()
	}
	ndigits := binary.BigEndian.Uint16(data[0:])
	weight := int16(binary.BigEndian.Uint16(data[2:]))
	sign := binary.BigEndian.Uint16(data[4:])
	dscale := int16(binary.BigEndian.Uint16(data[6:]))

	if sign == numericNaN {
		return Numeric{NaN: true}, nil
	}
	if len(data) < 8+int(ndigits)*2 {
		return Numeric{}, pgerr.InvalidTextRepresentation("numeric", "<truncated digits>").Err()
	}

	var sb strings.Builder
	if sign == numericNeg {
		sb.WriteByte('-')
	}

	if ndigits == 0 {
		sb.WriteByte('0')
	}
	for i := int16(0); ndigits > 0 && i < weight+1; i++ {
		var d uint16 // groups past ndigits are trailing zero groups
		if i < int16(ndigits) {
			d = binary.BigEndian.Uint16(data[8+2*i:])
		}
		if i == 0 {
			sb.WriteString(trimLeadingZerosKeepOne(d))
		} else {
			sb.WriteString(pad4(d))
		}
	}
	if weight < 0 {
		sb.WriteByte('0')
	}

	fracDigits := int(ndigits) - int(weight) - 1
	if fracDigits > 0 || dscale > 0 {
		sb.WriteByte('.')
		written := 0
		for i := weight + 1; i < int16(ndigits); i++ {
			d := binary.BigEndian.Uint16(data[8+2*i:])
			sb.WriteString(pad4(d))
			written += 4
		}
		for written < int(dscale) {
			sb.WriteByte('0')
			written++
		}
	}

	d, err := decimal.NewFromString(sb.String())
	if err != nil {
		return Numeric{}, pgerr.InvalidTextRepresentation("numeric", sb.String()).WithCause(err).Err()
	}
	return Numeric{Value: d}, nil
}

func pad4(v uint16) string {
	s := itoa(v)
	return strings.Repeat("0", 4-len(s)) + s
}

func trimLeadingZerosKeepOne(v uint16) string {
	s := itoa(v)
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

func itoa(v uint16) string {
	if v == 0 {
		return "0"
	}
	var buf [5]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
