package types

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	pgerr "github.com/pgsqlite/pgsqlite/pkg/errors"
)

// pgEpoch is the Postgres binary-protocol epoch (2000-01-01), distinct
// from the Unix epoch (1970-01-01) that SQLite storage uses. The 30-year
// offset below is expressed in the two units the wire protocol actually
// cares about: whole days (for date) and microseconds (for timestamps).
var pgEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

const daysUnixToPg = 10957         // days between 1970-01-01 and 2000-01-01
const microsUnixToPg = daysUnixToPg * 86400 * 1_000_000

// Sentinels for the special date/timestamp values Postgres preserves
// through both text and binary forms.
const (
	infinityDays    int32 = 1 << 31 - 1
	negInfinityDays int32 = -(1 << 31)
	infinityMicros  int64 = 1<<63 - 1
	negInfinityMic  int64 = -(1 << 63)
)

// DaysUnixToDate converts SQLite's stored days-since-1970 into a time.Time
// at UTC midnight.
func DaysUnixToDate(days int64) time.Time {
	return time.Unix(0, 0).UTC().AddDate(0, 0, int(days))
}

// DateToDaysUnix converts a date into days-since-1970 for SQLite storage.
func DateToDaysUnix(t time.Time) int64 {
	t = t.UTC()
	unixDay := t.Unix() / 86400
	return unixDay
}

// FormatDate renders the canonical `YYYY-MM-DD` text form, honoring the
// infinity sentinels.
func FormatDate(daysUnix int64, isInfinity, isNegInfinity bool) string {
	if isInfinity {
		return "infinity"
	}
	if isNegInfinity {
		return "-infinity"
	}
	return DaysUnixToDate(daysUnix).Format("2006-01-02")
}

// ParseDate parses text into days-since-1970, or the infinity sentinels.
func ParseDate(text string) (days int64, isInf, isNegInf bool, err error) {
	trimmed := strings.TrimSpace(text)
	switch strings.ToLower(trimmed) {
	case "infinity":
		return 0, true, false, nil
	case "-infinity":
		return 0, false, true, nil
	}
	t, parseErr := time.Parse("2006-01-02", trimmed)
	if parseErr != nil {
		return 0, false, false, pgerr.InvalidTextRepresentation("date", text).WithCause(parseErr).Err()
	}
	return DateToDaysUnix(t), false, false, nil
}

// EncodeDateBinary converts days-since-1970 into the wire's i32
// days-since-2000-01-01 form.
func EncodeDateBinary(daysUnix int64, isInf, isNegInf bool) []byte {
	buf := make([]byte, 4)
	var v int32
	switch {
	case isInf:
		v = infinityDays
	case isNegInf:
		v = negInfinityDays
	default:
		v = int32(daysUnix - daysUnixToPg)
	}
	binary.BigEndian.PutUint32(buf, uint32(v))
	return buf
}

// DecodeDateBinary converts the wire's i32 days-since-2000 into
// days-since-1970 storage, plus the infinity sentinels.
func DecodeDateBinary(data []byte) (daysUnix int64, isInf, isNegInf bool, err error) {
	if len(data) != 4 {
		return 0, false, false, pgerr.InvalidTextRepresentation("date", "<malformed binary>").Err()
	}
	v := int32(binary.BigEndian.Uint32(data))
	switch v {
	case infinityDays:
		return 0, true, false, nil
	case negInfinityDays:
		return 0, false, true, nil
	default:
		return int64(v) + daysUnixToPg, false, false, nil
	}
}

// FormatTime renders `HH:MM:SS[.ffffff]` from microseconds-since-midnight.
func FormatTime(microsSinceMidnight int64) string {
	d := time.Duration(microsSinceMidnight) * time.Microsecond
	h := int(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m := int(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	micros := int(d / time.Microsecond)
	if micros == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%06d", h, m, s, micros)
}

// ParseTime parses `HH:MM:SS[.ffffff]` into microseconds-since-midnight.
func ParseTime(text string) (int64, error) {
	trimmed := strings.TrimSpace(text)
	layouts := []string{"15:04:05.999999", "15:04:05"}
	for _, layout := range layouts {
		t, err := time.Parse(layout, trimmed)
		if err == nil {
			micros := int64(t.Hour())*3600_000_000 +
				int64(t.Minute())*60_000_000 +
				int64(t.Second())*1_000_000 +
				int64(t.Nanosecond())/1000
			return micros, nil
		}
	}
	return 0, pgerr.InvalidTextRepresentation("time", text).Err()
}

// EncodeTimeBinary encodes microseconds-since-midnight as an i64.
func EncodeTimeBinary(micros int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(micros))
	return buf
}

// DecodeTimeBinary decodes an i64 microseconds-since-midnight value.
func DecodeTimeBinary(data []byte) (int64, error) {
	if len(data) != 8 {
		return 0, pgerr.InvalidTextRepresentation("time", "<malformed binary>").Err()
	}
	return int64(binary.BigEndian.Uint64(data)), nil
}

// EncodeTimetzBinary appends an i32 UTC offset in seconds after the i64
// microseconds-since-midnight value, per the wire format for timetz.
func EncodeTimetzBinary(micros int64, offsetSeconds int32) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint64(buf[0:], uint64(micros))
	binary.BigEndian.PutUint32(buf[8:], uint32(offsetSeconds))
	return buf
}

// TimestampUnixMicrosToPg converts microseconds-since-1970 (SQLite
// storage) to microseconds-since-2000 (wire binary form).
func TimestampUnixMicrosToPg(unixMicros int64, isInf, isNegInf bool) int64 {
	if isInf {
		return infinityMicros
	}
	if isNegInf {
		return negInfinityMic
	}
	return unixMicros - microsUnixToPg
}

// TimestampPgMicrosToUnix converts the wire's microseconds-since-2000 back
// to microseconds-since-1970 for storage.
func TimestampPgMicrosToUnix(pgMicros int64) (unixMicros int64, isInf, isNegInf bool) {
	switch pgMicros {
	case infinityMicros:
		return 0, true, false
	case negInfinityMic:
		return 0, false, true
	default:
		return pgMicros + microsUnixToPg, false, false
	}
}

// EncodeTimestampBinary encodes an i64 microseconds-since-2000 value.
func EncodeTimestampBinary(unixMicros int64, isInf, isNegInf bool) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(TimestampUnixMicrosToPg(unixMicros, isInf, isNegInf)))
	return buf
}

// DecodeTimestampBinary decodes an i64 microseconds-since-2000 value back
// into microseconds-since-1970 storage form.
func DecodeTimestampBinary(data []byte) (unixMicros int64, isInf, isNegInf bool, err error) {
	if len(data) != 8 {
		return 0, false, false, pgerr.InvalidTextRepresentation("timestamp", "<malformed binary>").Err()
	}
	v := int64(binary.BigEndian.Uint64(data))
	u, inf, neg := TimestampPgMicrosToUnix(v)
	return u, inf, neg, nil
}

// FormatTimestamp renders `YYYY-MM-DD HH:MM:SS[.ffffff]`, appending `+00`
// when withTZ is set (timestamptz), or the infinity sentinels.
func FormatTimestamp(unixMicros int64, isInf, isNegInf, withTZ bool) string {
	if isInf {
		return "infinity"
	}
	if isNegInf {
		return "-infinity"
	}
	t := time.Unix(unixMicros/1_000_000, (unixMicros%1_000_000)*1000).UTC()
	micros := unixMicros % 1_000_000
	if micros < 0 {
		micros += 1_000_000
	}
	base := t.Format("2006-01-02 15:04:05")
	if micros != 0 {
		base = fmt.Sprintf("%s.%06d", base, micros)
	}
	if withTZ {
		base += "+00"
	}
	return base
}

// ParseTimestamp parses `YYYY-MM-DD HH:MM:SS[.ffffff][+TZ]` text into
// microseconds-since-1970, honoring the infinity sentinels. The timezone
// suffix is accepted but pgsqlite normalises all storage to UTC.
func ParseTimestamp(text string) (unixMicros int64, isInf, isNegInf bool, err error) {
	trimmed := strings.TrimSpace(text)
	switch strings.ToLower(trimmed) {
	case "infinity":
		return 0, true, false, nil
	case "-infinity":
		return 0, false, true, nil
	}

	layouts := []string{
		"2006-01-02 15:04:05.999999Z07",
		"2006-01-02 15:04:05.999999Z07:00",
		"2006-01-02 15:04:05.999999",
		"2006-01-02 15:04:05Z07",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05.999999Z07:00",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		t, parseErr := time.Parse(layout, trimmed)
		if parseErr == nil {
			u := t.UTC()
			micros := u.Unix()*1_000_000 + int64(u.Nanosecond())/1000
			return micros, false, false, nil
		}
	}
	return 0, false, false, pgerr.InvalidTextRepresentation("timestamp", text).Err()
}
