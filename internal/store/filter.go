package store

import (
	"fmt"
	"strings"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "="
	OpGt  Op = ">"
	OpLt  Op = "<"
	OpGte Op = ">="
	OpLte Op = "<="
	OpIn  Op = "IN"
)

// Cond is a single predicate on a document field. Field may be a dotted
// path into nested objects, e.g. "stats.hp.base".
type Cond struct {
	Field  string
	Op     Op
	Value  interface{}   // operand for all operators except IN
	Values []interface{} // operands for IN
}

// Filter is a conjunction of conditions. An empty filter matches every
// document.
type Filter []Cond

// Eq builds an equality condition.
func Eq(field string, value interface{}) Cond {
	return Cond{Field: field, Op: OpEq, Value: value}
}

// Gt builds a strictly-greater-than condition.
func Gt(field string, value interface{}) Cond {
	return Cond{Field: field, Op: OpGt, Value: value}
}

// Lt builds a strictly-less-than condition.
func Lt(field string, value interface{}) Cond {
	return Cond{Field: field, Op: OpLt, Value: value}
}

// Gte builds a greater-or-equal condition.
func Gte(field string, value interface{}) Cond {
	return Cond{Field: field, Op: OpGte, Value: value}
}

// Lte builds a less-or-equal condition.
func Lte(field string, value interface{}) Cond {
	return Cond{Field: field, Op: OpLte, Value: value}
}

// In builds a membership condition.
func In(field string, values ...interface{}) Cond {
	return Cond{Field: field, Op: OpIn, Values: values}
}

// Matches reports whether the document satisfies every condition.
func (f Filter) Matches(doc Document) bool {
	for _, c := range f {
		if !c.matches(doc) {
			return false
		}
	}
	return true
}

// Fields returns the distinct field paths referenced by the filter.
func (f Filter) Fields() []string {
	seen := make(map[string]bool, len(f))
	var fields []string
	for _, c := range f {
		if !seen[c.Field] {
			seen[c.Field] = true
			fields = append(fields, c.Field)
		}
	}
	return fields
}

func (c Cond) matches(doc Document) bool {
	val, ok := lookupPath(doc, c.Field)
	if !ok {
		return false
	}

	switch c.Op {
	case OpEq:
		return valuesEqual(val, c.Value)
	case OpGt:
		cmp, ok := compareValues(val, c.Value)
		return ok && cmp > 0
	case OpLt:
		cmp, ok := compareValues(val, c.Value)
		return ok && cmp < 0
	case OpGte:
		cmp, ok := compareValues(val, c.Value)
		return ok && cmp >= 0
	case OpLte:
		cmp, ok := compareValues(val, c.Value)
		return ok && cmp <= 0
	case OpIn:
		for _, v := range c.Values {
			if valuesEqual(val, v) {
				return true
			}
		}
		return false
	}
	return false
}

// lookupPath resolves a dotted path inside a document. It returns the value
// and whether the full path exists. Intermediate path segments must resolve
// to nested objects.
func lookupPath(doc Document, path string) (interface{}, bool) {
	segments := strings.Split(path, ".")
	var cur interface{} = map[string]interface{}(doc)
	for _, seg := range segments {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setPath writes a value at a dotted path, creating intermediate objects as
// needed. Existing non-object intermediates are replaced.
func setPath(doc Document, path string, value interface{}) {
	segments := strings.Split(path, ".")
	m := map[string]interface{}(doc)
	for _, seg := range segments[:len(segments)-1] {
		next, ok := m[seg].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			m[seg] = next
		}
		m = next
	}
	m[segments[len(segments)-1]] = value
}

// valuesEqual compares two values for equality, treating all numeric types
// as equivalent (JSON decoding yields float64 for every number).
func valuesEqual(a, b interface{}) bool {
	if fa, aOk := toFloat(a); aOk {
		fb, bOk := toFloat(b)
		return bOk && fa == fb
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		return ok && sa == sb
	}
	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ba == bb
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// compareValues orders two values. The second return is false when the
// values are not comparable (mixed non-numeric types).
func compareValues(a, b interface{}) (int, bool) {
	fa, aOk := toFloat(a)
	fb, bOk := toFloat(b)
	if aOk && bOk {
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}

	sa, aStr := a.(string)
	sb, bStr := b.(string)
	if aStr && bStr {
		switch {
		case sa < sb:
			return -1, true
		case sa > sb:
			return 1, true
		}
		return 0, true
	}

	return 0, false
}

// toFloat converts any numeric value to float64 for comparison.
func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	}
	return 0, false
}
