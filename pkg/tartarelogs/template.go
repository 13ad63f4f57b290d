package tartarelogs

import (
	"fmt"
	"reflect"
	"regexp"
)

// ExistsValue is the type of the Exists sentinel.
type ExistsValue struct{}

// Exists is the template sentinel for an existence probe: the field
// matches as long as the record contains it, whatever its value.
var Exists ExistsValue

// Template is a declarative match criterion over records. Each field
// maps to one of:
//
//   - a *regexp.Regexp, matched against the stringified field value;
//   - the Exists sentinel, matching any present value;
//   - any other value, compared by value equality against the record's
//     native value (numerically tolerant, so a template literal 3
//     matches a decoded JSON number 3).
//
// A nil or empty template matches every record.
type Template map[string]any

// Matches reports whether rec satisfies every field of the template.
// A field absent from the record never matches.
func (t Template) Matches(rec Record) bool {
	for field, want := range t {
		got, ok := rec[field]
		if !ok {
			return false
		}
		switch w := want.(type) {
		case ExistsValue:
			// present is enough
		case *regexp.Regexp:
			if !w.MatchString(stringify(got)) {
				return false
			}
		default:
			if !equalValues(got, w) {
				return false
			}
		}
	}
	return true
}

// stringify renders a field value for regular-expression matching.
// Strings pass through untouched; other types use their natural
// formatting (a JSON number 3 stringifies as "3").
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if f, ok := toFloat(v); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(v)
}

// equalValues compares a record value with a template literal.
// Numeric values compare by magnitude across int/float kinds; anything
// else compares by deep equality on the native values.
func equalValues(got, want any) bool {
	if gf, ok := toFloat(got); ok {
		if wf, ok := toFloat(want); ok {
			return gf == wf
		}
		return false
	}
	return reflect.DeepEqual(got, want)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
