package sawitdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindString
)

// Value is the tagged-value variant backing every field of a Record.
// Record values are typed as produced by the (external) parser; equality
// comparisons are type-aware, with numeric coercion when either side of a
// comparison is numeric.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

// Null is the null Value; Bool, Int64, Float64 and String construct the
// other variants.
var Null = Value{kind: KindNull}

func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func Int64(i int64) Value {
	return Value{kind: KindInt64, i: i}
}

func Float64(f float64) Value {
	return Value{kind: KindFloat64, f: f}
}

func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// FromAny wraps a Go-native value (as produced by an external parser
// decoding a literal, or by encoding/json unmarshaling a number as
// float64) into a Value. It never panics: unrecognized types become the
// string produced by fmt.Sprintf("%v", v).
func FromAny(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Null
	case Value:
		return t
	case bool:
		return Bool(t)
	case int:
		return Int64(int64(t))
	case int64:
		return Int64(t)
	case float64:
		return Float64(t)
	case float32:
		return Float64(float64(t))
	case string:
		return String(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int64(i)
		}
		f, _ := t.Float64()
		return Float64(f)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// Kind reports the variant held.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null variant.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsNumeric reports whether v is Int64 or Float64.
func (v Value) IsNumeric() bool { return v.kind == KindInt64 || v.kind == KindFloat64 }

// Float64Value coerces any numeric or numeric-looking string to float64.
// Bool coerces to 1 (true) or 0 (false); null and non-numeric strings
// coerce to 0, which is what SUM/AVG expect from a non-numeric field.
func (v Value) Float64Value() float64 {
	switch v.kind {
	case KindInt64:
		return float64(v.i)
	case KindFloat64:
		return v.f
	case KindString:
		f, err := strconv.ParseFloat(v.s, 64)
		if err != nil {
			return 0
		}
		return f
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// String renders v the way it should appear in LIKE matching, GROUP BY
// bucket keys, and human-readable output.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindFloat64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	}
	return ""
}

// Raw returns the Go-native representation (nil, bool, int64, float64 or
// string), the shape callers outside this package (the CLI, the HTTP
// server, hooks) expect to consume.
func (v Value) Raw() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt64:
		return v.i
	case KindFloat64:
		return v.f
	case KindString:
		return v.s
	}
	return nil
}

// MarshalJSON renders v as a plain JSON null/bool/number/string so the
// on-disk record codec is ordinary UTF-8 JSON.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindInt64:
		return json.Marshal(v.i)
	case KindFloat64:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	}
	return []byte("null"), nil
}

// UnmarshalJSON recovers a Value from its plain JSON rendering, preferring
// an integral Kind when a JSON number has no fractional part so that
// round-tripping an inserted int64 does not silently promote it to float.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Null
	case bool:
		*v = Bool(t)
	case string:
		*v = String(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			*v = Int64(i)
		} else {
			f, err := t.Float64()
			if err != nil {
				return fmt.Errorf("sawitdb: decoding numeric field: %w", err)
			}
			*v = Float64(f)
		}
	default:
		return fmt.Errorf("sawitdb: unsupported JSON value %T", raw)
	}
	return nil
}

// compareValues orders two Values with a total order: numbers
// numerically, strings lexicographically, and a deterministic cross-type
// order (number < string < bool) so that sorting and range comparisons
// never panic on mixed-type values.
func compareValues(a, b Value) int {
	ra, rb := valueRank(a), valueRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindNull:
		return 0
	case KindBool:
		if a.b == b.b {
			return 0
		}
		if !a.b {
			return -1
		}
		return 1
	case KindInt64, KindFloat64:
		af, bf := a.Float64Value(), b.Float64Value()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	case KindString:
		switch {
		case a.s < b.s:
			return -1
		case a.s > b.s:
			return 1
		default:
			return 0
		}
	}
	return 0
}

// valueRank assigns the cross-type ordering bucket: number < string < bool,
// with null sorting first of all.
func valueRank(v Value) int {
	switch v.kind {
	case KindNull:
		return 0
	case KindInt64, KindFloat64:
		return 1
	case KindString:
		return 2
	case KindBool:
		return 3
	}
	return 4
}

// equalValues is type-aware equality: numeric coercion applies if either
// operand is numeric, otherwise values must share a kind and compare
// equal.
func equalValues(a, b Value) bool {
	if a.IsNumeric() || b.IsNumeric() {
		if a.kind == KindString && !isNumericString(a.s) && b.IsNumeric() {
			return false
		}
		if b.kind == KindString && !isNumericString(b.s) && a.IsNumeric() {
			return false
		}
		return a.Float64Value() == b.Float64Value()
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindString:
		return a.s == b.s
	}
	return false
}

func isNumericString(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
