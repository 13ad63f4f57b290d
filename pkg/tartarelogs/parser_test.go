package tartarelogs

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParser_MethodSelection(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "pattern",
			cfg: Config{
				Pattern:    regexp.MustCompile(`^(\w+)$`),
				FieldNames: []string{"word"},
			},
		},
		{name: "json", cfg: Config{JSON: true}},
		{name: "custom", cfg: Config{Fn: func(string) (Record, error) { return nil, nil }}},
		{name: "none", cfg: Config{}, wantErr: true},
		{
			name: "pattern and json",
			cfg: Config{
				Pattern:    regexp.MustCompile(`^(\w+)$`),
				FieldNames: []string{"word"},
				JSON:       true,
			},
			wantErr: true,
		},
		{
			name:    "json and custom",
			cfg:     Config{JSON: true, Fn: func(string) (Record, error) { return nil, nil }},
			wantErr: true,
		},
		{
			name:    "field names without pattern",
			cfg:     Config{FieldNames: []string{"word"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newParser(tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedMethod)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewParser_PatternGroupCountMismatch(t *testing.T) {
	_, err := newParser(Config{
		Pattern:    regexp.MustCompile(`^(\w+) (\w+)$`),
		FieldNames: []string{"only"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 capture groups")
}

func TestPatternParser_ParseLine(t *testing.T) {
	p, err := newPatternParser(
		regexp.MustCompile(`^time=(\S+) \| msg=(.+) \| foo=(\d+)$`),
		[]string{"time", "msg", "foo"},
	)
	require.NoError(t, err)

	rec, err := p.parseLine("time=2015-06-18T11:47:46.983Z | msg=Lorem ipsum | foo=3")
	require.NoError(t, err)
	assert.Equal(t, Record{
		"time": "2015-06-18T11:47:46.983Z",
		"msg":  "Lorem ipsum",
		"foo":  "3",
	}, rec)
}

func TestPatternParser_TrimsWhitespace(t *testing.T) {
	p, err := newPatternParser(regexp.MustCompile(`^level=(\w+)$`), []string{"level"})
	require.NoError(t, err)

	rec, err := p.parseLine("  level=info \t")
	require.NoError(t, err)
	assert.Equal(t, Record{"level": "info"}, rec)
}

func TestPatternParser_AbsentCaptureOmitsField(t *testing.T) {
	p, err := newPatternParser(
		regexp.MustCompile(`^msg=(\w+)(?: id=(\d+))?$`),
		[]string{"msg", "id"},
	)
	require.NoError(t, err)

	rec, err := p.parseLine("msg=hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", rec["msg"])
	_, present := rec["id"]
	assert.False(t, present, "non-participating capture must leave the field absent")

	rec, err = p.parseLine("msg=hello id=7")
	require.NoError(t, err)
	assert.Equal(t, "7", rec["id"])
}

func TestPatternParser_Violation(t *testing.T) {
	p, err := newPatternParser(regexp.MustCompile(`^msg=(\w+)$`), []string{"msg"})
	require.NoError(t, err)

	_, err = p.parseLine("not a log line")
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, PatternViolation, pe.Kind)
	assert.Equal(t, "not a log line", pe.Line)
}

func TestJSONParser_ParseLine(t *testing.T) {
	p, err := newJSONParser(nil)
	require.NoError(t, err)

	rec, err := p.parseLine(`{"msg": "hello", "foo": 3, "nested": {"a": true}}`)
	require.NoError(t, err)
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, float64(3), rec["foo"])
	assert.Equal(t, map[string]any{"a": true}, rec["nested"])
}

func TestJSONParser_Malformed(t *testing.T) {
	p, err := newJSONParser(nil)
	require.NoError(t, err)

	for _, line := range []string{"not json", `[1, 2, 3]`, `"just a string"`} {
		_, err := p.parseLine(line)
		var pe *ParseError
		require.True(t, errors.As(err, &pe), "line %q", line)
		assert.Equal(t, MalformedDocument, pe.Kind)
	}
}

func TestJSONParser_SchemaViolation(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"foo"},
		"properties": map[string]any{
			"foo": map[string]any{"type": "number"},
		},
	}
	p, err := newJSONParser(schema)
	require.NoError(t, err)

	rec, err := p.parseLine(`{"foo": 42}`)
	require.NoError(t, err)
	assert.Equal(t, float64(42), rec["foo"])

	_, err = p.parseLine(`{"foo": "not-a-number"}`)
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, SchemaViolation, pe.Kind)
	assert.NotEmpty(t, pe.Details)
}

func TestJSONParser_SchemaAsRawDocument(t *testing.T) {
	p, err := newJSONParser(`{"type": "object", "required": ["msg"]}`)
	require.NoError(t, err)

	_, err = p.parseLine(`{"other": 1}`)
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, SchemaViolation, pe.Kind)
}

func TestJSONParser_BadSchemaFailsConstruction(t *testing.T) {
	_, err := newJSONParser(`{"type": ["not", 42, `)
	require.Error(t, err)
}

func TestCustomParser_SkipAndError(t *testing.T) {
	boom := errors.New("cannot cope")
	p := customParser{fn: func(line string) (Record, error) {
		switch line {
		case "skip":
			return nil, nil
		case "fail":
			return nil, boom
		default:
			return Record{"line": line}, nil
		}
	}}

	rec, err := p.parseLine("skip")
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = p.parseLine("fail")
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, CustomParse, pe.Kind)
	assert.ErrorIs(t, err, boom)

	rec, err = p.parseLine("keep")
	require.NoError(t, err)
	assert.Equal(t, Record{"line": "keep"}, rec)
}
