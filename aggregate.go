package sawitdb

import "strings"

// computeAggregate folds rows down to a single Value for fn over field.
// COUNT(*) (field == "" or "*") counts every
// row; every other function skips rows where field is absent or null.
// Non-numeric strings contribute 0 and booleans 1 or 0 to SUM/AVG via
// Value.Float64Value's coercion. An empty input returns 0 for COUNT/SUM and null for
// AVG/MIN/MAX.
func computeAggregate(rows []Record, fn AggFunc, field string) Value {
	switch fn {
	case AggCount:
		if field == "" || field == "*" {
			return Int64(int64(len(rows)))
		}
		n := int64(0)
		for _, row := range rows {
			if v := fieldValue(row, field); !v.IsNull() {
				n++
			}
		}
		return Int64(n)

	case AggSum:
		sum := 0.0
		for _, row := range rows {
			if v := fieldValue(row, field); !v.IsNull() {
				sum += v.Float64Value()
			}
		}
		return Float64(sum)

	case AggAvg:
		sum, count := 0.0, 0
		for _, row := range rows {
			v := fieldValue(row, field)
			if v.IsNull() {
				continue
			}
			sum += v.Float64Value()
			count++
		}
		if count == 0 {
			return Null
		}
		return Float64(sum / float64(count))

	case AggMin, AggMax:
		var best Value
		have := false
		for _, row := range rows {
			v := fieldValue(row, field)
			if v.IsNull() {
				continue
			}
			if !have {
				best, have = v, true
				continue
			}
			cmp := compareValues(v, best)
			if (fn == AggMin && cmp < 0) || (fn == AggMax && cmp > 0) {
				best = v
			}
		}
		if !have {
			return Null
		}
		return best

	default:
		return Null
	}
}

// aggResultKey is the field name the aggregate's value is reported under,
// one of count|sum|avg|min|max.
func aggResultKey(fn AggFunc) string {
	return strings.ToLower(string(fn))
}

// executeAggregate runs AGGREGATE over rows (already criteria-filtered).
// With no GROUP BY it returns a single bare Record (or nil if HAVING
// excludes it); with GROUP BY it returns []Record, one per distinct group
// key, with HAVING applied per group. GROUP BY buckets by the stringified
// group key, and result order follows each key's first appearance in rows.
func executeAggregate(rows []Record, fn AggFunc, field, groupBy string, having *Criteria) interface{} {
	if groupBy == "" {
		result := Record{aggResultKey(fn): computeAggregate(rows, fn, field)}
		if having != nil && !matchesCriteria(result, having) {
			return nil
		}
		return result
	}

	var order []string
	groups := make(map[string][]Record)
	groupVals := make(map[string]Value)
	for _, row := range rows {
		gv := fieldValue(row, groupBy)
		k := gv.String()
		if _, ok := groups[k]; !ok {
			order = append(order, k)
			groupVals[k] = gv
		}
		groups[k] = append(groups[k], row)
	}

	out := make([]Record, 0, len(order))
	for _, k := range order {
		result := Record{
			groupBy:          groupVals[k],
			aggResultKey(fn): computeAggregate(groups[k], fn, field),
		}
		if having != nil && !matchesCriteria(result, having) {
			continue
		}
		out = append(out, result)
	}
	return out
}
