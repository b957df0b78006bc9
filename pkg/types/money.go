package types

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	pgerr "github.com/pgsqlite/pgsqlite/pkg/errors"
)

// ParseMoney parses money text (optionally "$"-prefixed, comma-grouped)
// into integer cents for SQLite storage.
func ParseMoney(text string) (int64, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "$")
	trimmed = strings.ReplaceAll(trimmed, ",", "")

	neg := false
	if strings.HasPrefix(trimmed, "(") && strings.HasSuffix(trimmed, ")") {
		neg = true
		trimmed = strings.TrimSuffix(strings.TrimPrefix(trimmed, "("), ")")
	}

	parts := strings.SplitN(trimmed, ".", 2)
	whole, err := strconv.ParseInt(strings.TrimPrefix(parts[0], "-"), 10, 64)
	if err != nil {
		return 0, pgerr.InvalidTextRepresentation("money", text).Err()
	}
	cents := int64(0)
	if len(parts) == 2 {
		frac := parts[1]
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		c, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, pgerr.InvalidTextRepresentation("money", text).Err()
		}
		cents = c
	}

	total := whole*100 + cents
	if strings.HasPrefix(parts[0], "-") {
		total = -total
	}
	if neg {
		total = -total
	}
	return total, nil
}

// FormatMoney renders the canonical `$N.NN` text form.
func FormatMoney(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := cents / 100
	frac := cents % 100
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s$%d.%02d", sign, whole, frac)
}

// EncodeMoneyBinary encodes cents as a big-endian i64.
func EncodeMoneyBinary(cents int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(cents))
	return buf
}

// DecodeMoneyBinary decodes a big-endian i64 cents value.
func DecodeMoneyBinary(data []byte) (int64, error) {
	if len(data) != 8 {
		return 0, pgerr.InvalidTextRepresentation("money", "<malformed binary>").Err()
	}
	return int64(binary.BigEndian.Uint64(data)), nil
}
