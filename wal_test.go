package sawitdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func statFile(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func truncateFile(path string, size int64) error {
	return os.Truncate(path, size)
}

func TestWALAppendAndRecoverReplaysInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := openWAL(path, WALSyncNormal, zerolog.Nop())
	if err != nil {
		t.Fatalf("openWAL: %v", err)
	}
	defer w.close()

	if err := w.append(walCreateTable, "users", nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	rec, _ := encodeRecord(Record{"id": Int64(1)})
	if err := w.append(walInsert, "users", rec); err != nil {
		t.Fatalf("append: %v", err)
	}

	var replayed []walRecord
	err = w.recover(func(r walRecord) error {
		replayed = append(replayed, r)
		return nil
	})
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if len(replayed) != 2 {
		t.Fatalf("expected 2 replayed records, got %d", len(replayed))
	}
	if replayed[0].kind != walCreateTable || replayed[1].kind != walInsert {
		t.Errorf("unexpected replay order/kinds: %+v", replayed)
	}
	if replayed[0].seq >= replayed[1].seq {
		t.Errorf("expected increasing sequence numbers, got %d then %d", replayed[0].seq, replayed[1].seq)
	}
}

func TestWALRecoverTruncatesLogAndResumesSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, _ := openWAL(path, WALSyncNormal, zerolog.Nop())
	defer w.close()

	w.append(walCreateTable, "users", nil)
	w.append(walCreateTable, "orders", nil)
	if err := w.recover(func(walRecord) error { return nil }); err != nil {
		t.Fatalf("recover: %v", err)
	}

	var secondPass []walRecord
	err := w.recover(func(r walRecord) error {
		secondPass = append(secondPass, r)
		return nil
	})
	if err != nil {
		t.Fatalf("second recover: %v", err)
	}
	if len(secondPass) != 0 {
		t.Fatalf("expected the log to be truncated after recovery, got %d records", len(secondPass))
	}

	if err := w.append(walCreateTable, "again", nil); err != nil {
		t.Fatalf("append after recovery: %v", err)
	}
	var thirdPass []walRecord
	w.recover(func(r walRecord) error {
		thirdPass = append(thirdPass, r)
		return nil
	})
	if len(thirdPass) != 1 || thirdPass[0].seq <= 2 {
		t.Errorf("expected the sequence counter to resume above the previously replayed max, got %+v", thirdPass)
	}
}

func TestWALRecoverStopsAtTruncatedTrailingRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, _ := openWAL(path, WALSyncNormal, zerolog.Nop())
	w.append(walCreateTable, "users", nil)
	w.append(walCreateTable, "orders", nil)
	w.close()

	info, err := statFile(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if err := truncateFile(path, info-3); err != nil {
		t.Fatalf("truncating WAL file: %v", err)
	}

	w2, err := openWAL(path, WALSyncNormal, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopening WAL: %v", err)
	}
	defer w2.close()

	var applied []walRecord
	if err := w2.recover(func(r walRecord) error {
		applied = append(applied, r)
		return nil
	}); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if len(applied) != 1 {
		t.Fatalf("expected recovery to stop before the truncated trailing record, got %d applied", len(applied))
	}
}

func TestEncodeDecodeUpdatePayloadRoundTrip(t *testing.T) {
	oldEnc, _ := encodeRecord(Record{"a": Int64(1)})
	newEnc, _ := encodeRecord(Record{"a": Int64(2)})
	payload := encodeUpdatePayload(oldEnc, newEnc)

	gotOld, gotNew, err := decodeUpdatePayload(payload)
	if err != nil {
		t.Fatalf("decodeUpdatePayload: %v", err)
	}
	if string(gotOld) != string(oldEnc) || string(gotNew) != string(newEnc) {
		t.Errorf("round trip mismatch: old=%s new=%s", gotOld, gotNew)
	}
}

func TestDecodeWALBodyRejectsShortBody(t *testing.T) {
	if _, err := decodeWALBody([]byte{1, 2, 3}); err == nil {
		t.Errorf("expected a too-short WAL body to be rejected")
	}
}
