package sawitdb

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// newTestHeap builds a heap file over a fresh on-disk database with one
// table created and ready for records.
func newTestHeap(t *testing.T, table string) (*heapFile, *Catalog, *indexSet, CatalogEntry) {
	t.Helper()
	pager, err := openPager(filepath.Join(t.TempDir(), "test.db"), 64, zerolog.Nop())
	if err != nil {
		t.Fatalf("openPager: %v", err)
	}
	t.Cleanup(func() { pager.close() })

	catalog := newCatalog(pager)
	entry, err := catalog.createTable(table)
	if err != nil {
		t.Fatalf("createTable: %v", err)
	}
	indexes := newIndexSet()
	heap := newHeapFile(pager, catalog, indexes, nil, zerolog.Nop())
	return heap, catalog, indexes, entry
}

func TestHeapInsertManyAndScan(t *testing.T) {
	heap, _, _, entry := newTestHeap(t, "users")
	recs := []Record{
		{"id": Int64(1), "name": String("Alice")},
		{"id": Int64(2), "name": String("Bob")},
		{"id": Int64(3), "name": String("Cara")},
	}
	entry, err := heap.insertMany(entry, recs)
	if err != nil {
		t.Fatalf("insertMany: %v", err)
	}

	got, err := heap.scan(entry, nil, 0, false)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
}

func TestHeapInsertManyOverflowsAcrossPages(t *testing.T) {
	heap, _, _, entry := newTestHeap(t, "users")
	big := strings.Repeat("x", 1024)
	var recs []Record
	for i := 0; i < 10; i++ {
		recs = append(recs, Record{"id": Int64(int64(i)), "blob": String(big)})
	}
	entry, err := heap.insertMany(entry, recs)
	if err != nil {
		t.Fatalf("insertMany: %v", err)
	}

	ids, err := heap.pageIDs(entry)
	if err != nil {
		t.Fatalf("pageIDs: %v", err)
	}
	if len(ids) < 2 {
		t.Fatalf("expected records to overflow onto at least 2 pages, got %d", len(ids))
	}

	got, err := heap.scan(entry, nil, 0, false)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("expected all 10 records across pages, got %d", len(got))
	}
}

func TestHeapInsertManyRejectsOversizedRecord(t *testing.T) {
	heap, _, _, entry := newTestHeap(t, "users")
	huge := Record{"blob": String(string(make([]byte, PageSize*2)))}
	if _, err := heap.insertMany(entry, []Record{huge}); err == nil {
		t.Errorf("expected an oversized record to be rejected")
	}
}

func TestHeapScanAppliesCriteriaAndLimit(t *testing.T) {
	heap, _, _, entry := newTestHeap(t, "users")
	recs := []Record{
		{"id": Int64(1), "age": Int64(30)},
		{"id": Int64(2), "age": Int64(40)},
		{"id": Int64(3), "age": Int64(40)},
	}
	entry, _ = heap.insertMany(entry, recs)

	crit := Criteria{Key: "age", Op: OpEq, Val: 40}
	got, err := heap.scan(entry, &crit, 0, false)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}

	limited, err := heap.scan(entry, &crit, 1, false)
	if err != nil {
		t.Fatalf("scan with limit: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected limit=1 to cap the result, got %d", len(limited))
	}
}

func TestHeapScanReturnRawAttachesPageID(t *testing.T) {
	heap, _, _, entry := newTestHeap(t, "users")
	entry, _ = heap.insertMany(entry, []Record{{"id": Int64(1)}})
	got, err := heap.scan(entry, nil, 0, true)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, ok := got[0]["_pageId"]; !ok {
		t.Errorf("expected returnRaw=true to attach a _pageId field")
	}
}

func TestHeapDeleteMatching(t *testing.T) {
	heap, _, _, entry := newTestHeap(t, "users")
	entry, _ = heap.insertMany(entry, []Record{
		{"id": Int64(1), "age": Int64(30)},
		{"id": Int64(2), "age": Int64(40)},
	})

	crit := Criteria{Key: "age", Op: OpEq, Val: 40}
	deleted, err := heap.deleteMatching(entry, &crit)
	if err != nil {
		t.Fatalf("deleteMatching: %v", err)
	}
	if len(deleted) != 1 || deleted[0]["id"].Raw() != int64(2) {
		t.Fatalf("unexpected deleted set: %v", deleted)
	}

	remaining, err := heap.scan(entry, nil, 0, false)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(remaining) != 1 || remaining[0]["id"].Raw() != int64(1) {
		t.Errorf("expected only id=1 to remain, got %v", remaining)
	}
}

func TestHeapUpdateMatchingInPlaceWhenShrinking(t *testing.T) {
	heap, _, _, entry := newTestHeap(t, "users")
	entry, _ = heap.insertMany(entry, []Record{{"id": Int64(1), "name": String("Alice Longname")}})

	crit := Criteria{Key: "id", Op: OpEq, Val: 1}
	updated, err := heap.updateMatching(entry, Record{"name": String("Al")}, &crit)
	if err != nil {
		t.Fatalf("updateMatching: %v", err)
	}
	if len(updated) != 1 || updated[0]["name"].Raw() != "Al" {
		t.Fatalf("unexpected update result: %v", updated)
	}

	ids, _ := heap.pageIDs(entry)
	if len(ids) != 1 {
		t.Fatalf("expected the in-place shrink to stay on a single page, got %d pages", len(ids))
	}
}

func TestHeapUpdateMatchingOverflowsToNewRecord(t *testing.T) {
	heap, _, _, entry := newTestHeap(t, "users")
	entry, _ = heap.insertMany(entry, []Record{{"id": Int64(1), "name": String("A")}})

	crit := Criteria{Key: "id", Op: OpEq, Val: 1}
	bigName := strings.Repeat("x", 1024)
	updated, err := heap.updateMatching(entry, Record{"name": String(bigName)}, &crit)
	if err != nil {
		t.Fatalf("updateMatching: %v", err)
	}
	if len(updated) != 1 {
		t.Fatalf("expected 1 updated record, got %d", len(updated))
	}

	fresh, ok, err := newCatalog(heap.pager).findTable(entry.Name)
	if err != nil || !ok {
		t.Fatalf("findTable after overflow update: ok=%v err=%v", ok, err)
	}
	got, err := heap.scan(fresh, nil, 0, false)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 row to survive the overflow update, got %d", len(got))
	}
	if got[0]["name"].Raw() != bigName {
		t.Errorf("expected the post-image to carry the new oversized name")
	}
}

func TestHeapUpdateMatchingOnlyTouchesCriteriaMatches(t *testing.T) {
	heap, _, _, entry := newTestHeap(t, "users")
	entry, _ = heap.insertMany(entry, []Record{
		{"id": Int64(1), "age": Int64(10)},
		{"id": Int64(2), "age": Int64(20)},
	})

	crit := Criteria{Key: "id", Op: OpEq, Val: 1}
	_, err := heap.updateMatching(entry, Record{"age": Int64(999)}, &crit)
	if err != nil {
		t.Fatalf("updateMatching: %v", err)
	}

	rows, err := heap.scan(entry, nil, 0, false)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	for _, r := range rows {
		if r["id"].Raw() == int64(2) && r["age"].Raw() != int64(20) {
			t.Errorf("expected the non-matching row to be left untouched, got age=%v", r["age"].Raw())
		}
	}
}

func TestHeapIndexHintedDeleteFallsBackOnStaleHint(t *testing.T) {
	heap, _, indexes, entry := newTestHeap(t, "users")
	entry, _ = heap.insertMany(entry, []Record{{"id": Int64(1), "age": Int64(30)}})

	// a stale/empty index claims age=30 has no entries, even though the
	// table has a real matching row -- the fallback must still find it.
	indexes.getOrCreate("users", "age")

	crit := Criteria{Key: "age", Op: OpEq, Val: 30}
	deleted, err := heap.deleteMatching(entry, &crit)
	if err != nil {
		t.Fatalf("deleteMatching: %v", err)
	}
	if len(deleted) != 1 {
		t.Fatalf("expected the stale-hint fallback to still find and delete the row, got %d deleted", len(deleted))
	}
}

func TestHeapContainsRecord(t *testing.T) {
	heap, _, _, entry := newTestHeap(t, "users")
	entry, _ = heap.insertMany(entry, []Record{{"id": Int64(1), "name": String("Alice")}})

	ok, err := heap.containsRecord(entry, Record{"id": Int64(1), "name": String("Alice")})
	if err != nil || !ok {
		t.Fatalf("expected containsRecord to find the existing row: ok=%v err=%v", ok, err)
	}
	ok, err = heap.containsRecord(entry, Record{"id": Int64(99)})
	if err != nil || ok {
		t.Fatalf("expected containsRecord to report false for an absent row: ok=%v err=%v", ok, err)
	}
}

func TestHeapReplayInsertIsIdempotent(t *testing.T) {
	heap, _, _, entry := newTestHeap(t, "users")
	rec := Record{"id": Int64(1), "name": String("Alice")}

	entry, err := heap.replayInsert(entry, rec)
	if err != nil {
		t.Fatalf("replayInsert (first): %v", err)
	}
	entry, err = heap.replayInsert(entry, rec)
	if err != nil {
		t.Fatalf("replayInsert (second): %v", err)
	}

	rows, err := heap.scan(entry, nil, 0, false)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected replaying the same insert twice to leave exactly 1 row, got %d", len(rows))
	}
}

func TestHeapReplayDeleteIsIdempotent(t *testing.T) {
	heap, _, _, entry := newTestHeap(t, "users")
	rec := Record{"id": Int64(1), "name": String("Alice")}
	entry, _ = heap.insertMany(entry, []Record{rec})

	if err := heap.replayDelete(entry, rec); err != nil {
		t.Fatalf("replayDelete (first): %v", err)
	}
	if err := heap.replayDelete(entry, rec); err != nil {
		t.Fatalf("replayDelete (second, already gone): %v", err)
	}

	rows, err := heap.scan(entry, nil, 0, false)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected the record to be gone after replay, got %d rows", len(rows))
	}
}

func TestHeapReplayUpdateAppliesOncePreImagePresent(t *testing.T) {
	heap, _, _, entry := newTestHeap(t, "users")
	oldRec := Record{"id": Int64(1), "name": String("Alice")}
	newRec := Record{"id": Int64(1), "name": String("Alicia")}
	entry, _ = heap.insertMany(entry, []Record{oldRec})

	entry, err := heap.replayUpdate(entry, oldRec, newRec)
	if err != nil {
		t.Fatalf("replayUpdate: %v", err)
	}
	rows, err := heap.scan(entry, nil, 0, false)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"].Raw() != "Alicia" {
		t.Fatalf("expected the post-image to be present, got %v", rows)
	}
}

func TestHeapReplayUpdateNoOpWhenPostImageAlreadyPresent(t *testing.T) {
	heap, _, _, entry := newTestHeap(t, "users")
	oldRec := Record{"id": Int64(1), "name": String("Alice")}
	newRec := Record{"id": Int64(1), "name": String("Alicia")}
	entry, _ = heap.insertMany(entry, []Record{newRec}) // the page write already landed

	entry, err := heap.replayUpdate(entry, oldRec, newRec)
	if err != nil {
		t.Fatalf("replayUpdate: %v", err)
	}
	rows, err := heap.scan(entry, nil, 0, false)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected replay to be a no-op, got %d rows", len(rows))
	}
}

func TestHeapReplayUpdateNoOpWhenNeitherImagePresent(t *testing.T) {
	heap, _, _, entry := newTestHeap(t, "users")
	oldRec := Record{"id": Int64(1), "name": String("Alice")}
	newRec := Record{"id": Int64(1), "name": String("Alicia")}
	// table is empty: some other route already moved past this operation.

	entry, err := heap.replayUpdate(entry, oldRec, newRec)
	if err != nil {
		t.Fatalf("replayUpdate: %v", err)
	}
	rows, err := heap.scan(entry, nil, 0, false)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows to materialize when neither image is present, got %d", len(rows))
	}
}
