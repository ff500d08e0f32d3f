package sawitdb

import "fmt"

// qualifyRow duplicates every field of row under both its bare name and
// "table.name", so WHERE and ON clauses can reference either form.
func qualifyRow(row Record, table string) Record {
	out := make(Record, len(row)*2)
	for k, v := range row {
		out[k] = v
		out[table+"."+k] = v
	}
	return out
}

func qualifyAll(rows []Record, table string) []Record {
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = qualifyRow(r, table)
	}
	return out
}

// mergeRows combines two already-qualified rows; the right row's fields
// win on a bare-name collision.
func mergeRows(left, right Record) Record {
	merged := make(Record, len(left)+len(right))
	for k, v := range left {
		merged[k] = v
	}
	for k, v := range right {
		merged[k] = v
	}
	return merged
}

// mergeWithNulls fills have with a null for every key in otherKeys it is
// missing, used to emit the NULL-side row of an outer join.
func mergeWithNulls(have Record, otherKeys []string) Record {
	merged := have.Clone()
	for _, k := range otherKeys {
		if _, ok := merged[k]; !ok {
			merged[k] = Null
		}
	}
	return merged
}

func collectKeys(rows []Record) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// matchesOn evaluates a join's ON condition between two already-qualified
// rows. Either side being NULL never matches.
func matchesOn(left, right Record, on JoinOn) bool {
	lv := fieldValue(left, on.Left)
	rv := fieldValue(right, on.Right)
	if lv.IsNull() || rv.IsNull() {
		return false
	}
	switch on.Op {
	case OpEq:
		return equalValues(lv, rv)
	case OpNeq, OpNeqAlt:
		return !equalValues(lv, rv)
	case OpLt:
		return compareValues(lv, rv) < 0
	case OpGt:
		return compareValues(lv, rv) > 0
	case OpLte:
		return compareValues(lv, rv) <= 0
	case OpGte:
		return compareValues(lv, rv) >= 0
	default:
		return false
	}
}

// executeJoin applies one JOIN clause to the rows accumulated so far,
// returning the next relation in the left-fold. left and right must
// already carry both bare and qualified column names.
func executeJoin(left, right []Record, join Join) ([]Record, error) {
	switch join.Type {
	case JoinCross:
		return crossJoin(left, right), nil
	case JoinInner:
		return innerJoin(left, right, join.On), nil
	case JoinLeft:
		return leftJoin(left, right, join.On), nil
	case JoinRight:
		return rightJoin(left, right, join.On), nil
	case JoinFull:
		return fullJoin(left, right, join.On), nil
	default:
		return nil, fmt.Errorf("sawitdb: unsupported join type %q", join.Type)
	}
}

func crossJoin(left, right []Record) []Record {
	out := make([]Record, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			out = append(out, mergeRows(l, r))
		}
	}
	return out
}

// innerJoin uses a hash join when on.Op is equality, probing a hash map
// built on the right's join column, falling back to a nested loop for
// every other comparison operator.
func innerJoin(left, right []Record, on JoinOn) []Record {
	var out []Record
	if on.Op == OpEq {
		buckets := bucketRows(right, on.Right)
		for _, l := range left {
			lv := fieldValue(l, on.Left)
			if lv.IsNull() {
				continue
			}
			for _, r := range buckets[canonicalKey(lv)] {
				out = append(out, mergeRows(l, r))
			}
		}
		return out
	}
	for _, l := range left {
		for _, r := range right {
			if matchesOn(l, r, on) {
				out = append(out, mergeRows(l, r))
			}
		}
	}
	return out
}

func leftJoin(left, right []Record, on JoinOn) []Record {
	rightKeys := collectKeys(right)
	var out []Record
	useHash := on.Op == OpEq
	var buckets map[string][]Record
	if useHash {
		buckets = bucketRows(right, on.Right)
	}
	for _, l := range left {
		matched := false
		if useHash {
			lv := fieldValue(l, on.Left)
			if !lv.IsNull() {
				for _, r := range buckets[canonicalKey(lv)] {
					out = append(out, mergeRows(l, r))
					matched = true
				}
			}
		} else {
			for _, r := range right {
				if matchesOn(l, r, on) {
					out = append(out, mergeRows(l, r))
					matched = true
				}
			}
		}
		if !matched {
			out = append(out, mergeWithNulls(l, rightKeys))
		}
	}
	return out
}

// rightJoin mirrors leftJoin, hashing the left side when the ON clause is
// an equality.
func rightJoin(left, right []Record, on JoinOn) []Record {
	leftKeys := collectKeys(left)
	var out []Record
	useHash := on.Op == OpEq
	var buckets map[string][]Record
	if useHash {
		buckets = bucketRows(left, on.Left)
	}
	for _, r := range right {
		matched := false
		if useHash {
			rv := fieldValue(r, on.Right)
			if !rv.IsNull() {
				for _, l := range buckets[canonicalKey(rv)] {
					out = append(out, mergeRows(l, r))
					matched = true
				}
			}
		} else {
			for _, l := range left {
				if matchesOn(l, r, on) {
					out = append(out, mergeRows(l, r))
					matched = true
				}
			}
		}
		if !matched {
			out = append(out, mergeWithNulls(r, leftKeys))
		}
	}
	return out
}

// fullJoin emits every matched pair, unmatched left rows with right-side
// NULLs, and unmatched right rows with left-side NULLs. Like the other
// non-CROSS joins it hashes on the right side when the ON clause is an
// equality, falling back to a nested loop otherwise.
func fullJoin(left, right []Record, on JoinOn) []Record {
	rightKeys := collectKeys(right)
	leftKeys := collectKeys(left)
	rightMatched := make([]bool, len(right))
	var out []Record

	useHash := on.Op == OpEq
	var buckets map[string][]int
	if useHash {
		buckets = bucketRowIndices(right, on.Right)
	}

	for _, l := range left {
		matched := false
		if useHash {
			lv := fieldValue(l, on.Left)
			if !lv.IsNull() {
				for _, i := range buckets[canonicalKey(lv)] {
					out = append(out, mergeRows(l, right[i]))
					rightMatched[i] = true
					matched = true
				}
			}
		} else {
			for i, r := range right {
				if matchesOn(l, r, on) {
					out = append(out, mergeRows(l, r))
					rightMatched[i] = true
					matched = true
				}
			}
		}
		if !matched {
			out = append(out, mergeWithNulls(l, rightKeys))
		}
	}
	for i, r := range right {
		if !rightMatched[i] {
			out = append(out, mergeWithNulls(r, leftKeys))
		}
	}
	return out
}

// bucketRows groups rows by the canonical key of their field-column
// value, the hash side of a hash join.
func bucketRows(rows []Record, field string) map[string][]Record {
	buckets := make(map[string][]Record)
	for _, r := range rows {
		v := fieldValue(r, field)
		if v.IsNull() {
			continue
		}
		k := canonicalKey(v)
		buckets[k] = append(buckets[k], r)
	}
	return buckets
}

// bucketRowIndices is bucketRows but keyed to each row's position in rows,
// letting fullJoin mark right-side matches by index for its second pass.
func bucketRowIndices(rows []Record, field string) map[string][]int {
	buckets := make(map[string][]int)
	for i, r := range rows {
		v := fieldValue(r, field)
		if v.IsNull() {
			continue
		}
		k := canonicalKey(v)
		buckets[k] = append(buckets[k], i)
	}
	return buckets
}
