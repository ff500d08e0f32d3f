package sawitdb

import (
	"fmt"
	"regexp"
	"strings"
)

// fieldValue looks up key in row, returning Null if it is absent -- a
// joined row's unqualified and qualified names (§4.7 "Row composition")
// both resolve through this helper.
func fieldValue(row Record, key string) Value {
	if v, ok := row[key]; ok {
		return v
	}
	return Null
}

// matchesCriteria evaluates a (possibly compound) criteria tree against a
// row. A nil criteria matches every row.
func matchesCriteria(row Record, c *Criteria) bool {
	if c == nil {
		return true
	}
	if c.Compound {
		switch c.Logic {
		case LogicOr:
			for _, sub := range c.Conditions {
				sub := sub
				if matchesCriteria(row, &sub) {
					return true
				}
			}
			return false
		default: // LogicAnd
			for _, sub := range c.Conditions {
				sub := sub
				if !matchesCriteria(row, &sub) {
					return false
				}
			}
			return true
		}
	}
	return matchesLeaf(row, c)
}

func matchesLeaf(row Record, c *Criteria) bool {
	left := fieldValue(row, c.Key)

	switch c.Op {
	case OpIsNull:
		return left.IsNull()
	case OpIsNotNull:
		return !left.IsNull()
	case OpIn, OpNotIn:
		list, _ := c.Val.([]interface{})
		found := false
		for _, item := range list {
			if equalValues(left, FromAny(item)) {
				found = true
				break
			}
		}
		if c.Op == OpIn {
			return found
		}
		return !found
	case OpBetween:
		bounds, _ := c.Val.([]interface{})
		if len(bounds) != 2 {
			return false
		}
		lo, hi := FromAny(bounds[0]), FromAny(bounds[1])
		return compareValues(left, lo) >= 0 && compareValues(left, hi) <= 0
	case OpLike:
		pattern, _ := c.Val.(string)
		re, err := likeToRegexp(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(left.String())
	case OpEq:
		return equalValues(left, FromAny(c.Val))
	case OpNeq, OpNeqAlt:
		return !equalValues(left, FromAny(c.Val))
	case OpLt:
		return compareValues(left, FromAny(c.Val)) < 0
	case OpGt:
		return compareValues(left, FromAny(c.Val)) > 0
	case OpLte:
		return compareValues(left, FromAny(c.Val)) <= 0
	case OpGte:
		return compareValues(left, FromAny(c.Val)) >= 0
	default:
		return false
	}
}

// likeToRegexp compiles a SQL LIKE pattern into a case-insensitive,
// fully-anchored regular expression: "%" becomes ".*", "_" becomes ".",
// and every other regex metacharacter is escaped.
func likeToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("sawitdb: compiling LIKE pattern %q: %w", pattern, err)
	}
	return re, nil
}

// equalityKey reports the field name and literal value of criteria iff it
// is a single top-level equality leaf -- the shape index probing and
// index-assisted delete/update look for.
func equalityKey(c *Criteria) (field string, val Value, ok bool) {
	if c == nil || c.Compound || c.Op != OpEq {
		return "", Value{}, false
	}
	return c.Key, FromAny(c.Val), true
}
