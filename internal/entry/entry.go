// Package entry defines the on-disk record wrapping every value written to
// the durable store: an opaque byte payload plus the two timestamps the
// visibility gate and write-rate limiter depend on.
package entry

import (
	"encoding/binary"
	"fmt"
)

// Entry is the persisted wrapper around a stored value. VisibleAt is a
// millisecond UNIX timestamp; UpdatedAt is a second UNIX timestamp. The two
// units are intentionally different and must not be collapsed: visibility
// comparisons need millisecond resolution, the rate limiter only needs
// second resolution and is defined in terms of it.
type Entry struct {
	Value     []byte
	VisibleAt uint64
	UpdatedAt uint64
}

// New wraps value with VisibleAt and UpdatedAt both zero, used for entries
// that do not go through the visibility gate (ADB writes).
func New(value []byte) Entry {
	return Entry{Value: value}
}

// Visible reports whether the entry is visible at the given millisecond
// UNIX timestamp.
func (e Entry) Visible(nowMillis uint64) bool {
	return e.VisibleAt <= nowMillis
}

// encoding: [visible_at uint64 BE][updated_at uint64 BE][value_len uint64 BE][value bytes]
//
// Field order and widths are the on-disk format; changing them requires a
// migration. Keeping VisibleAt and UpdatedAt as fixed-width integers (rather
// than a self-describing format) lets Encode avoid any allocation beyond
// the final buffer.
const headerSize = 8 + 8 + 8

// Encode serializes e into its stable on-disk representation.
func Encode(e Entry) []byte {
	buf := make([]byte, headerSize+len(e.Value))
	binary.BigEndian.PutUint64(buf[0:8], e.VisibleAt)
	binary.BigEndian.PutUint64(buf[8:16], e.UpdatedAt)
	binary.BigEndian.PutUint64(buf[16:24], uint64(len(e.Value)))
	copy(buf[headerSize:], e.Value)
	return buf
}

// Decode parses the stable on-disk representation produced by Encode. A
// malformed buffer is always reported as an error; it is never silently
// dropped or truncated.
func Decode(buf []byte) (Entry, error) {
	if len(buf) < headerSize {
		return Entry{}, fmt.Errorf("entry: buffer too short: got %d bytes, need at least %d", len(buf), headerSize)
	}
	visibleAt := binary.BigEndian.Uint64(buf[0:8])
	updatedAt := binary.BigEndian.Uint64(buf[8:16])
	valueLen := binary.BigEndian.Uint64(buf[16:24])
	rest := buf[headerSize:]
	if uint64(len(rest)) != valueLen {
		return Entry{}, fmt.Errorf("entry: value length mismatch: header says %d, buffer has %d", valueLen, len(rest))
	}
	value := make([]byte, valueLen)
	copy(value, rest)
	return Entry{Value: value, VisibleAt: visibleAt, UpdatedAt: updatedAt}, nil
}
