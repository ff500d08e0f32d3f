package sawitdb

import "testing"

func TestSortRowsAscendingAndDescending(t *testing.T) {
	rows := []Record{
		{"age": Int64(30)},
		{"age": Int64(10)},
		{"age": Int64(20)},
	}
	sortRows(rows, &Sort{Key: "age", Dir: SortAsc})
	if rows[0]["age"].Raw() != int64(10) || rows[2]["age"].Raw() != int64(30) {
		t.Fatalf("expected ascending order, got %v", rows)
	}

	sortRows(rows, &Sort{Key: "age", Dir: SortDesc})
	if rows[0]["age"].Raw() != int64(30) || rows[2]["age"].Raw() != int64(10) {
		t.Fatalf("expected descending order, got %v", rows)
	}
}

func TestSortRowsStableOnEqualKeys(t *testing.T) {
	rows := []Record{
		{"k": Int64(1), "tag": String("first")},
		{"k": Int64(1), "tag": String("second")},
	}
	sortRows(rows, &Sort{Key: "k", Dir: SortAsc})
	if rows[0]["tag"].Raw() != "first" || rows[1]["tag"].Raw() != "second" {
		t.Errorf("expected a stable sort to preserve input order on ties, got %v", rows)
	}
}

func TestApplyOffsetLimit(t *testing.T) {
	rows := make([]Record, 5)
	for i := range rows {
		rows[i] = Record{"i": Int64(int64(i))}
	}

	limit := 2
	offset := 1
	out := applyOffsetLimit(rows, &offset, &limit)
	if len(out) != 2 || out[0]["i"].Raw() != int64(1) {
		t.Fatalf("expected rows[1:3], got %v", out)
	}
}

func TestApplyOffsetLimitClampsBeyondBounds(t *testing.T) {
	rows := make([]Record, 3)
	for i := range rows {
		rows[i] = Record{"i": Int64(int64(i))}
	}
	offset := 10
	out := applyOffsetLimit(rows, &offset, nil)
	if len(out) != 0 {
		t.Errorf("expected an offset beyond the slice to yield zero rows, got %d", len(out))
	}

	limit := 100
	out = applyOffsetLimit(rows, nil, &limit)
	if len(out) != 3 {
		t.Errorf("expected a limit beyond the slice to be clamped to all rows, got %d", len(out))
	}
}

func TestProjectRowsStarReturnsUnchanged(t *testing.T) {
	rows := []Record{{"a": Int64(1), "b": Int64(2)}}
	out := projectRows(rows, nil)
	if len(out[0]) != 2 {
		t.Errorf("expected an empty column list to leave rows unchanged")
	}
	out = projectRows(rows, []string{"*"})
	if len(out[0]) != 2 {
		t.Errorf("expected \"*\" to leave rows unchanged")
	}
}

func TestProjectRowsNamedColumnsFillsNullForMissing(t *testing.T) {
	rows := []Record{{"a": Int64(1)}}
	out := projectRows(rows, []string{"a", "missing"})
	if len(out[0]) != 2 {
		t.Fatalf("expected exactly the requested columns, got %v", out[0])
	}
	if !out[0]["missing"].IsNull() {
		t.Errorf("expected a missing column to project as null")
	}
}

func TestDistinctRowsPreservesFirstOccurrence(t *testing.T) {
	rows := []Record{
		{"a": Int64(1)},
		{"a": Int64(2)},
		{"a": Int64(1)},
	}
	out := distinctRows(rows)
	if len(out) != 2 {
		t.Fatalf("expected 2 distinct rows, got %d", len(out))
	}
	if out[0]["a"].Raw() != int64(1) || out[1]["a"].Raw() != int64(2) {
		t.Errorf("expected first-occurrence order to be preserved, got %v", out)
	}
}
