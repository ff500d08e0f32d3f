package sawitdb

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// walOpKind identifies the logical operation a WAL record describes.
type walOpKind uint8

const (
	walInsert walOpKind = iota + 1
	walUpdate
	walDelete
	walCreateTable
	walDropTable
	walCreateIndex
)

// walRecord is one logical operation recovered from (or about to be
// appended to) the log.
type walRecord struct {
	seq     uint64
	kind    walOpKind
	table   string
	payload []byte
}

// WAL is the append-only operation log co-located with the database file
// at "<path>.wal".
type WAL struct {
	path   string
	file   *os.File
	seq    uint64
	policy WALSyncPolicy
	logger zerolog.Logger
}

// openWAL opens or creates the sibling WAL file.
func openWAL(path string, policy WALSyncPolicy, logger zerolog.Logger) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("sawitdb: opening WAL: %w", err)
	}
	return &WAL{path: path, file: f, seq: 1, policy: policy, logger: logger}, nil
}

func (w *WAL) close() error {
	return w.file.Close()
}

// append encodes and writes one logical operation. Frame layout:
//
//	u32 length            -- length of the body below
//	u64 sequence
//	u8  op-kind
//	u16 table-name length
//	    table-name bytes
//	u32 payload length
//	    payload
//	u32 CRC32 of the body (everything after the length field)
func (w *WAL) append(kind walOpKind, table string, payload []byte) error {
	seq := w.seq
	w.seq++

	body := make([]byte, 0, 8+1+2+len(table)+4+len(payload))
	var tmp8 [8]byte
	binary.LittleEndian.PutUint64(tmp8[:], seq)
	body = append(body, tmp8[:]...)
	body = append(body, byte(kind))
	var tmp2 [2]byte
	binary.LittleEndian.PutUint16(tmp2[:], uint16(len(table)))
	body = append(body, tmp2[:]...)
	body = append(body, table...)
	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], uint32(len(payload)))
	body = append(body, tmp4[:]...)
	body = append(body, payload...)

	frame := make([]byte, 0, 4+len(body)+4)
	binary.LittleEndian.PutUint32(tmp4[:], uint32(len(body)))
	frame = append(frame, tmp4[:]...)
	frame = append(frame, body...)
	binary.LittleEndian.PutUint32(tmp4[:], crc32.ChecksumIEEE(body))
	frame = append(frame, tmp4[:]...)

	if _, err := w.file.Write(frame); err != nil {
		return fmt.Errorf("sawitdb: appending WAL record: %w", err)
	}
	if w.policy == WALSyncFull {
		if err := w.file.Sync(); err != nil {
			w.logger.Warn().Err(err).Msg("WAL fsync failed (non-fatal)")
		}
	}
	return nil
}

// flush syncs the WAL file; called once per committed Query call under
// WALSyncNormal.
func (w *WAL) flush() error {
	if w.policy == WALSyncOff {
		return nil
	}
	if err := w.file.Sync(); err != nil {
		w.logger.Warn().Err(err).Msg("WAL fsync failed (non-fatal)")
	}
	return nil
}

// recover replays every well-framed record from the start of the log,
// calling apply in order. It stops at the first truncated or
// checksum-invalid frame -- recovery applies everything before it and
// discards the rest. On success the log is truncated to zero length and
// the sequence counter resumes after the highest replayed sequence
// number.
func (w *WAL) recover(apply func(rec walRecord) error) error {
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("sawitdb: seeking WAL: %w", err)
	}

	var lenBuf [4]byte
	var maxSeq uint64
	applied := 0
	for {
		if _, err := io.ReadFull(w.file, lenBuf[:]); err != nil {
			break // clean EOF or truncated length prefix: stop
		}
		bodyLen := binary.LittleEndian.Uint32(lenBuf[:])
		body := make([]byte, bodyLen)
		if _, err := io.ReadFull(w.file, body); err != nil {
			w.logger.Warn().Msg("WAL: truncated record body, stopping recovery")
			break
		}
		var crcBuf [4]byte
		if _, err := io.ReadFull(w.file, crcBuf[:]); err != nil {
			w.logger.Warn().Msg("WAL: truncated record checksum, stopping recovery")
			break
		}
		if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(crcBuf[:]) {
			w.logger.Warn().Msg("WAL: checksum mismatch, stopping recovery")
			break
		}

		rec, err := decodeWALBody(body)
		if err != nil {
			w.logger.Warn().Err(err).Msg("WAL: malformed record body, stopping recovery")
			break
		}
		if err := apply(rec); err != nil {
			return fmt.Errorf("sawitdb: replaying WAL record %d: %w", rec.seq, err)
		}
		if rec.seq > maxSeq {
			maxSeq = rec.seq
		}
		applied++
	}

	w.logger.Info().Int("applied", applied).Msg("WAL recovery complete")

	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("sawitdb: truncating WAL after recovery: %w", err)
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("sawitdb: rewinding WAL after recovery: %w", err)
	}
	if maxSeq+1 > w.seq {
		w.seq = maxSeq + 1
	}
	return nil
}

func decodeWALBody(body []byte) (walRecord, error) {
	if len(body) < 8+1+2 {
		return walRecord{}, fmt.Errorf("%w: body too short", ErrWALCorrupt)
	}
	seq := binary.LittleEndian.Uint64(body[0:8])
	kind := walOpKind(body[8])
	tableLen := int(binary.LittleEndian.Uint16(body[9:11]))
	pos := 11
	if pos+tableLen+4 > len(body) {
		return walRecord{}, fmt.Errorf("%w: truncated table name/payload length", ErrWALCorrupt)
	}
	table := string(body[pos : pos+tableLen])
	pos += tableLen
	payloadLen := int(binary.LittleEndian.Uint32(body[pos : pos+4]))
	pos += 4
	if pos+payloadLen != len(body) {
		return walRecord{}, fmt.Errorf("%w: payload length mismatch", ErrWALCorrupt)
	}
	payload := body[pos : pos+payloadLen]
	return walRecord{seq: seq, kind: kind, table: table, payload: payload}, nil
}

// encodeUpdatePayload frames an UPDATE record's pre-image and post-image
// as a u32 length prefix for the old record followed by both JSON blobs.
func encodeUpdatePayload(oldEncoded, newEncoded []byte) []byte {
	out := make([]byte, 4+len(oldEncoded)+len(newEncoded))
	binary.LittleEndian.PutUint32(out[:4], uint32(len(oldEncoded)))
	copy(out[4:], oldEncoded)
	copy(out[4+len(oldEncoded):], newEncoded)
	return out
}

func decodeUpdatePayload(payload []byte) (oldEncoded, newEncoded []byte, err error) {
	if len(payload) < 4 {
		return nil, nil, fmt.Errorf("%w: update payload too short", ErrWALCorrupt)
	}
	oldLen := int(binary.LittleEndian.Uint32(payload[:4]))
	if 4+oldLen > len(payload) {
		return nil, nil, fmt.Errorf("%w: update payload old-record length mismatch", ErrWALCorrupt)
	}
	return payload[4 : 4+oldLen], payload[4+oldLen:], nil
}
