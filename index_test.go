package sawitdb

import "testing"

func TestIndexInsertSearchDelete(t *testing.T) {
	idx := newIndex("users", "age")
	rec1 := Record{"id": Int64(1), "age": Int64(30)}
	rec2 := Record{"id": Int64(2), "age": Int64(30)}
	idx.insert(Int64(30), recordRef{record: rec1, pageID: 1})
	idx.insert(Int64(30), recordRef{record: rec2, pageID: 2})

	hits := idx.search(Int64(30))
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits for age=30, got %d", len(hits))
	}

	if !idx.delete(Int64(30), rec1) {
		t.Fatalf("expected delete to find rec1")
	}
	hits = idx.search(Int64(30))
	if len(hits) != 1 || !hits[0].record.Equal(rec2) {
		t.Fatalf("expected only rec2 to remain, got %v", hits)
	}

	if idx.delete(Int64(30), rec1) {
		t.Errorf("expected a second delete of an already-removed record to report false")
	}
}

func TestIndexCanonicalKeySeparatesKindsWithSameText(t *testing.T) {
	idx := newIndex("t", "f")
	idx.insert(Int64(5), recordRef{record: Record{"f": Int64(5)}})
	idx.insert(String("5"), recordRef{record: Record{"f": String("5")}})
	if len(idx.search(Int64(5))) != 1 {
		t.Errorf("expected exactly one hit for the numeric key 5")
	}
	if len(idx.search(String("5"))) != 1 {
		t.Errorf("expected exactly one hit for the string key \"5\"")
	}
}

func TestIndexHintedPagesDistinct(t *testing.T) {
	idx := newIndex("t", "f")
	idx.insert(Int64(1), recordRef{record: Record{"f": Int64(1)}, pageID: 7})
	idx.insert(Int64(1), recordRef{record: Record{"f": Int64(1), "x": Int64(2)}, pageID: 7})
	idx.insert(Int64(1), recordRef{record: Record{"f": Int64(1), "x": Int64(3)}, pageID: 9})
	pages := idx.hintedPages(Int64(1))
	if len(pages) != 2 {
		t.Fatalf("expected 2 distinct pages, got %v", pages)
	}
}

func TestIndexStats(t *testing.T) {
	idx := newIndex("users", "age")
	idx.insert(Int64(1), recordRef{record: Record{"age": Int64(1)}})
	idx.insert(Int64(2), recordRef{record: Record{"age": Int64(2)}})
	stats := idx.stats()
	if stats.Size != 2 || stats.KeyField != "age" || stats.Name != "idx_users_age" {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestIndexSetOnInsertOnDeleteOnUpdate(t *testing.T) {
	set := newIndexSet()
	idx := set.getOrCreate("users", "age")

	rec := Record{"id": Int64(1), "age": Int64(20)}
	set.onInsert("users", rec, 3)
	if len(idx.search(Int64(20))) != 1 {
		t.Fatalf("expected onInsert to populate the index")
	}

	updated := Record{"id": Int64(1), "age": Int64(21)}
	set.onUpdate("users", rec, updated, 3)
	if len(idx.search(Int64(20))) != 0 {
		t.Errorf("expected the pre-image key to be removed on update")
	}
	if len(idx.search(Int64(21))) != 1 {
		t.Errorf("expected the post-image key to be inserted on update")
	}

	set.onDelete("users", updated)
	if len(idx.search(Int64(21))) != 0 {
		t.Errorf("expected onDelete to remove the record")
	}
}

func TestIndexSetOnUpdateSkipsUnchangedField(t *testing.T) {
	set := newIndexSet()
	idx := set.getOrCreate("users", "age")
	rec := Record{"id": Int64(1), "age": Int64(20)}
	set.onInsert("users", rec, 1)

	updated := Record{"id": Int64(1), "age": Int64(20), "name": String("Bob")}
	set.onUpdate("users", rec, updated, 1)
	hits := idx.search(Int64(20))
	if len(hits) != 1 {
		t.Errorf("expected the unchanged indexed field to keep a single bucket entry, got %d", len(hits))
	}
}

func TestIndexSetDropTablePurgesIndexes(t *testing.T) {
	set := newIndexSet()
	set.getOrCreate("users", "age")
	set.dropTable("users")
	if _, ok := set.get("users", "age"); ok {
		t.Errorf("expected dropTable to purge every index on the table")
	}
}

func TestIndexSetForTable(t *testing.T) {
	set := newIndexSet()
	set.getOrCreate("users", "age")
	set.getOrCreate("users", "name")
	set.getOrCreate("orders", "total")
	if len(set.forTable("users")) != 2 {
		t.Errorf("expected 2 indexes on users")
	}
	if len(set.forTable("missing")) != 0 {
		t.Errorf("expected no indexes on an unknown table")
	}
}
