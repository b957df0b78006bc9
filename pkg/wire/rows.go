package wire

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/pgsqlite/pgsqlite/pkg/types"
)

// valueToOID infers a column's wire type from a sample Go value, the
// fallback kqlite's encodeRowsNew/db.ValueToOID use when no static schema
// entry is available — true here for catalog-emulated and fast-path rows,
// which carry no declared Postgres type of their own.
func valueToOID(v interface{}) types.OID {
	switch v.(type) {
	case nil:
		return types.TextOID
	case int64, int, int32:
		return types.Int8OID
	case float64, float32:
		return types.Float8OID
	case bool:
		return types.BoolOID
	case []byte:
		return types.ByteaOID
	default:
		return types.TextOID
	}
}

// inferOIDs derives one OID per column by scanning rows for the first
// non-nil value in each position, falling back to TextOID for an
// all-nil/empty column.
func inferOIDs(columns []string, rows [][]interface{}) []types.OID {
	oids := make([]types.OID, len(columns))
	for i := range oids {
		oids[i] = types.TextOID
	}
	for _, row := range rows {
		remaining := len(columns)
		for i, v := range row {
			if i >= len(oids) {
				break
			}
			if oids[i] != types.TextOID {
				remaining--
				continue
			}
			if v != nil {
				oids[i] = valueToOID(v)
				remaining--
			}
		}
		if remaining == 0 {
			break
		}
	}
	return oids
}

// buildRowDescription renders one RowDescription message for a result set,
// applying formatCodes per column (one code applies to every column; none
// means text, which is what Simple Query passes, per the protocol).
func buildRowDescription(columns []string, oids []types.OID, formatCodes []int16) *pgproto3.RowDescription {
	fields := make([]pgproto3.FieldDescription, len(columns))
	for i, name := range columns {
		oid := types.TextOID
		if i < len(oids) {
			oid = oids[i]
		}
		format := int16(0)
		if i < len(formatCodes) {
			format = formatCodes[i]
		} else if len(formatCodes) == 1 {
			format = formatCodes[0]
		}
		fields[i] = pgproto3.FieldDescription{
			Name: []byte(name),
			TableOID: 0,
			TableAttributeNumber: 0,
			DataTypeOID: uint32(oid),
			DataTypeSize: types.FixedBinarySize(oid),
			TypeModifier: -1,
			Format: format,
		}
	}
	return &pgproto3.RowDescription{Fields: fields}
}

// encodeDataRow renders one result row in the requested per-column format,
// using pkg/types' OID-keyed codec .
func encodeDataRow(row []interface{}, oids []types.OID, formatCodes []int16) (*pgproto3.DataRow, error) {
	values := make([][]byte, len(row))
	for i, v := range row {
		if v == nil {
			values[i] = nil
			continue
		}
		oid := types.TextOID
		if i < len(oids) {
			oid = oids[i]
		}
		format := int16(0)
		if i < len(formatCodes) {
			format = formatCodes[i]
		} else if len(formatCodes) == 1 {
			format = formatCodes[0]
		}

		if format == 1 {
			buf, _, err := types.EncodeBinaryValue(oid, v)
			if err != nil {
				return nil, fmt.Errorf("encoding column %d: %w", i, err)
			}
			values[i] = buf
			continue
		}
		text, _, err := types.EncodeText(oid, v)
		if err != nil {
			return nil, fmt.Errorf("encoding column %d: %w", i, err)
		}
		values[i] = []byte(text)
	}
	return &pgproto3.DataRow{Values: values}, nil
}
