package sawitdb

import "sort"

// sortRows stably reorders rows by spec.Key, ascending or descending.
func sortRows(rows []Record, spec *Sort) {
	sort.SliceStable(rows, func(i, j int) bool {
		cmp := compareValues(fieldValue(rows[i], spec.Key), fieldValue(rows[j], spec.Key))
		if spec.Dir == SortDesc {
			return cmp > 0
		}
		return cmp < 0
	})
}

// applyOffsetLimit slices rows per offset/limit, clamping both to the
// slice bounds.
func applyOffsetLimit(rows []Record, offset, limit *int) []Record {
	start := 0
	if offset != nil && *offset > 0 {
		start = *offset
	}
	if start > len(rows) {
		start = len(rows)
	}
	end := len(rows)
	if limit != nil {
		end = start + *limit
		if end > len(rows) {
			end = len(rows)
		}
		if end < start {
			end = start
		}
	}
	return rows[start:end]
}

// projectRows applies column projection: "*" or an empty column list
// returns the row unchanged, otherwise only the named columns survive,
// filled with null where a row lacks one.
func projectRows(rows []Record, cols []string) []Record {
	if len(cols) == 0 || (len(cols) == 1 && cols[0] == "*") {
		return rows
	}
	out := make([]Record, len(rows))
	for i, row := range rows {
		projected := make(Record, len(cols))
		for _, c := range cols {
			projected[c] = fieldValue(row, c)
		}
		out[i] = projected
	}
	return out
}

// distinctRows removes rows that are structurally equal to an earlier row
// in the slice, preserving the first occurrence's position.
func distinctRows(rows []Record) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		dup := false
		for _, kept := range out {
			if r.Equal(kept) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, r)
		}
	}
	return out
}
