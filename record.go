package sawitdb

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Record is an unordered mapping from field name to Value.
// A Record carries no position information of its own; recordRef attaches
// the non-persistent page hint used by index-assisted delete/update.
type Record map[string]Value

// Clone returns a shallow copy -- sufficient since Value is an immutable
// value type, not a pointer.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Equal reports structural (value-based, not address-based) equality, the
// contract DISTINCT relies on.
func (r Record) Equal(other Record) bool {
	if len(r) != len(other) {
		return false
	}
	for k, v := range r {
		ov, ok := other[k]
		if !ok || !equalValues(v, ov) {
			return false
		}
	}
	return true
}

// recordRef is an index bucket entry: the record contents plus a
// non-persistent page hint locating the heap page the record was last
// seen on.
type recordRef struct {
	record Record
	pageID uint32
}

// encodeRecord serializes r to the on-disk record format: plain UTF-8 JSON
// object. encoding/json sorts map keys, which gives same-shaped records a
// stable byte encoding -- the property updateMatching's in-place rewrite
// depends on for idempotent length checks across re-serializations.
func encodeRecord(r Record) ([]byte, error) {
	plain := make(map[string]Value, len(r))
	for k, v := range r {
		plain[k] = v
	}
	return json.Marshal(plain)
}

// decodeRecord is the inverse of encodeRecord. A malformed payload returns
// ErrCorruptRecord; callers scanning a heap page skip the record and keep
// going.
func decodeRecord(data []byte) (Record, error) {
	var raw map[string]Value
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return Record(raw), nil
}

// putRecordLengthPrefixed appends a u16-LE length prefix followed by the
// encoded record to buf, matching the heap-page record layout.
func putRecordLengthPrefixed(buf []byte, encoded []byte) []byte {
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(encoded)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, encoded...)
	return buf
}
