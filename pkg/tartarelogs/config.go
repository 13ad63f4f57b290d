package tartarelogs

import "regexp"

// Record is a parsed log entry: a mapping from field name to field
// value. Pattern-mode values are the captured strings; structured-mode
// values carry whatever types the document decoded to; custom-mode
// values are whatever the caller's function produced. A capture group
// that did not participate in a match yields no entry at all, never an
// empty string.
type Record map[string]any

// ParseFunc is a caller-supplied parsing strategy. Returning a nil
// Record with a nil error means "ignore this line". An error is
// surfaced as a parse error notification.
type ParseFunc func(line string) (Record, error)

// Config selects exactly one of the three parsing strategies. Setting
// none, or more than one, fails construction with ErrUnsupportedMethod.
type Config struct {
	// Pattern plus FieldNames selects pattern mode: each line is
	// trimmed and matched; capture i populates FieldNames[i]. The
	// expression must have exactly len(FieldNames) capture groups.
	Pattern    *regexp.Regexp
	FieldNames []string

	// JSON selects structured-document mode: each line is decoded as a
	// JSON object. Schema, if set, is a JSON Schema the decoded value
	// must additionally satisfy; it may be a raw schema document
	// (string or []byte) or any JSON-marshalable Go value. Schema
	// compilation failures are construction-time errors.
	JSON   bool
	Schema any

	// Fn selects custom mode.
	Fn ParseFunc
}

// method returns which strategy the config selects, or "" when the
// selection is absent or ambiguous.
func (c Config) method() string {
	var methods []string
	if c.Pattern != nil || len(c.FieldNames) > 0 {
		methods = append(methods, "pattern")
	}
	if c.JSON {
		methods = append(methods, "json")
	}
	if c.Fn != nil {
		methods = append(methods, "custom")
	}
	if len(methods) != 1 {
		return ""
	}
	return methods[0]
}
