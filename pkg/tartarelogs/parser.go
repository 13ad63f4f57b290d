package tartarelogs

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// lineParser is the uniform contract behind the three strategies:
// one complete line in, a record or a parse error out. A nil record
// with a nil error means the line is to be ignored.
type lineParser interface {
	parseLine(line string) (Record, error)
}

// newParser validates the config once and yields the concrete strategy.
func newParser(cfg Config) (lineParser, error) {
	switch cfg.method() {
	case "pattern":
		return newPatternParser(cfg.Pattern, cfg.FieldNames)
	case "json":
		return newJSONParser(cfg.Schema)
	case "custom":
		return customParser{fn: cfg.Fn}, nil
	default:
		return nil, ErrUnsupportedMethod
	}
}

// patternParser matches lines against a regular expression and builds
// records from its capture groups.
type patternParser struct {
	re     *regexp.Regexp
	fields []string
}

func newPatternParser(re *regexp.Regexp, fields []string) (*patternParser, error) {
	if re == nil || len(fields) == 0 {
		return nil, fmt.Errorf("%w: pattern mode needs both a pattern and field names", ErrUnsupportedMethod)
	}
	if re.NumSubexp() != len(fields) {
		return nil, fmt.Errorf("pattern has %d capture groups but %d field names were given",
			re.NumSubexp(), len(fields))
	}
	return &patternParser{re: re, fields: fields}, nil
}

func (p *patternParser) parseLine(line string) (Record, error) {
	line = strings.TrimSpace(line)

	// Index pairs distinguish a group that captured an empty string
	// from one that did not participate at all; only the latter leaves
	// its field absent.
	idx := p.re.FindStringSubmatchIndex(line)
	if idx == nil {
		return nil, &ParseError{
			Kind:    PatternViolation,
			Line:    line,
			Message: "line does not match the configured pattern",
		}
	}

	rec := make(Record, len(p.fields))
	for i, name := range p.fields {
		lo, hi := idx[2*(i+1)], idx[2*(i+1)+1]
		if lo < 0 {
			continue
		}
		rec[name] = line[lo:hi]
	}
	return rec, nil
}

// lastField is the field pattern violations are aggregated onto when
// AllowPatternViolations is enabled.
func (p *patternParser) lastField() string {
	return p.fields[len(p.fields)-1]
}

// jsonParser decodes each line as a JSON object, optionally validating
// it against a compiled schema.
type jsonParser struct {
	schema *gojsonschema.Schema
}

func newJSONParser(schema any) (*jsonParser, error) {
	p := &jsonParser{}
	if schema == nil {
		return p, nil
	}

	var loader gojsonschema.JSONLoader
	switch s := schema.(type) {
	case string:
		loader = gojsonschema.NewStringLoader(s)
	case []byte:
		loader = gojsonschema.NewBytesLoader(s)
	default:
		loader = gojsonschema.NewGoLoader(s)
	}
	compiled, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	p.schema = compiled
	return p, nil
}

func (p *jsonParser) parseLine(line string) (Record, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(line), &doc); err != nil {
		return nil, &ParseError{
			Kind:    MalformedDocument,
			Line:    line,
			Message: err.Error(),
			Cause:   err,
		}
	}

	if p.schema != nil {
		result, err := p.schema.Validate(gojsonschema.NewGoLoader(doc))
		if err != nil {
			return nil, &ParseError{
				Kind:    MalformedDocument,
				Line:    line,
				Message: err.Error(),
				Cause:   err,
			}
		}
		if !result.Valid() {
			details := make([]string, 0, len(result.Errors()))
			for _, d := range result.Errors() {
				details = append(details, d.String())
			}
			return nil, &ParseError{
				Kind:    SchemaViolation,
				Line:    line,
				Message: "document does not satisfy the configured schema",
				Details: details,
			}
		}
	}

	return Record(doc), nil
}

// customParser defers to a caller-supplied function.
type customParser struct {
	fn ParseFunc
}

func (p customParser) parseLine(line string) (Record, error) {
	rec, err := p.fn(line)
	if err != nil {
		return nil, &ParseError{
			Kind:    CustomParse,
			Line:    line,
			Message: err.Error(),
			Cause:   err,
		}
	}
	if len(rec) == 0 {
		// nil or empty means "ignore this line".
		return nil, nil
	}
	return rec, nil
}
