package tartarelogs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedMethod is returned by the constructors when the Config
// selects zero or more than one parsing strategy.
var ErrUnsupportedMethod = errors.New("unsupported parse method")

// ParseKind classifies a parse failure.
type ParseKind string

const (
	// PatternViolation is a pattern-mode line that did not match the
	// configured expression.
	PatternViolation ParseKind = "pattern violation"

	// MalformedDocument is a structured-mode line that could not be
	// decoded as a JSON object.
	MalformedDocument ParseKind = "malformed document"

	// SchemaViolation is a structured-mode document the configured
	// schema rejected. Details carries the validator's findings.
	SchemaViolation ParseKind = "schema violation"

	// CustomParse is a failure reported by a caller-supplied parse
	// function.
	CustomParse ParseKind = "custom parse failure"
)

// ParseError describes a line the configured strategy could not turn
// into a record. Parse errors are surfaced as error notifications and
// never abort the watcher.
type ParseError struct {
	Kind    ParseKind
	Line    string // the offending raw line
	Message string
	Details []string // diagnostic detail, e.g. schema-validator findings
	Cause   error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s: %s (line: %q)", e.Kind, e.Message, e.Line)
	if len(e.Details) > 0 {
		msg += "\n" + strings.Join(e.Details, "\n")
	}
	return msg
}

// Unwrap returns the underlying cause, enabling errors.Is/As.
func (e *ParseError) Unwrap() error { return e.Cause }

// WatchOp identifies the watcher operation that failed.
type WatchOp string

const (
	// WatchOpStart covers failures installing the source at Start time.
	WatchOpStart WatchOp = "start"
	// WatchOpSource covers stat/read/watch/stream failures while running.
	WatchOpSource WatchOp = "source"
)

// WatchError is an I/O failure from the source adapter. A missing file
// is never a WatchError; the file is merely absent.
type WatchError struct {
	Op   WatchOp
	Path string
	Err  error
}

func (e *WatchError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("watch %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("watch %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying system error.
func (e *WatchError) Unwrap() error { return e.Err }

// TimeoutError reports that no matching record arrived within a
// waiter's deadline. Records is the snapshot of everything the reader
// had observed at expiry, for diagnosis.
type TimeoutError struct {
	Template Template
	Records  []Record
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no record matched within the deadline (%d records observed)", len(e.Records))
}

// UnexpectedRecordError reports a strict-mode waiter observing a record
// that does not satisfy its template.
type UnexpectedRecordError struct {
	Record Record
}

func (e *UnexpectedRecordError) Error() string {
	return fmt.Sprintf("unexpected record: %v", e.Record)
}

// UpstreamError aggregates the parse and I/O errors that surfaced
// before or during a wait. The message joins every underlying message
// with a line terminator.
type UpstreamError struct {
	Errs []error
}

func (e *UpstreamError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "\n")
}

// Unwrap returns the aggregated errors, enabling errors.Is/As over all
// of them.
func (e *UpstreamError) Unwrap() []error { return e.Errs }
