package types

import (
	"github.com/google/uuid"

	pgerr "github.com/pgsqlite/pgsqlite/pkg/errors"
)

// ParseUUID parses canonical 8-4-4-4-12 text (or any form google/uuid
// accepts) into 16 raw bytes for storage/comparison.
func ParseUUID(text string) ([16]byte, error) {
	id, err := uuid.Parse(text)
	if err != nil {
		return [16]byte{}, pgerr.InvalidTextRepresentation("uuid", text).WithCause(err).Err()
	}
	return id, nil
}

// FormatUUID renders the canonical lowercase 8-4-4-4-12 text form.
func FormatUUID(raw [16]byte) string {
	return uuid.UUID(raw).String()
}

// DecodeUUIDBinary validates a 16-byte wire value.
func DecodeUUIDBinary(data []byte) ([16]byte, error) {
	if len(data) != 16 {
		return [16]byte{}, pgerr.InvalidTextRepresentation("uuid", "<malformed binary>").Err()
	}
	var out [16]byte
	copy(out[:], data)
	return out, nil
}
