// Package logassert bridges the log observation core into Go tests:
// waiting for a record that never arrives becomes a test failure that
// renders everything the SUT actually logged.
package logassert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/telefonicaid/tartare-logs/pkg/tartarelogs"
)

// Match waits for a record satisfying tmpl and returns it. On timeout
// the test fails with the snapshot of observed records; any other wait
// error fails the test with that error.
func Match(tb testing.TB, r *tartarelogs.Reader, tmpl tartarelogs.Template, opts ...tartarelogs.WaitOption) tartarelogs.Record {
	tb.Helper()

	rec, err := r.WaitForMatch(context.Background(), tmpl, opts...)
	if err == nil {
		return rec
	}

	var timeout *tartarelogs.TimeoutError
	if errors.As(err, &timeout) {
		tb.Fatalf("no log record matched the template within the timeout\nobserved records:\n%s",
			renderRecords(timeout.Records))
		return nil
	}
	tb.Fatalf("waiting for log record: %v", err)
	return nil
}

// NoMatch asserts that no record satisfying tmpl arrives within the
// wait deadline. Anything the SUT should never log — secrets, panics,
// misrouted output — is asserted absent this way.
func NoMatch(tb testing.TB, r *tartarelogs.Reader, tmpl tartarelogs.Template, opts ...tartarelogs.WaitOption) {
	tb.Helper()

	rec, err := r.WaitForMatch(context.Background(), tmpl, opts...)
	if err == nil {
		tb.Fatalf("a record matched the forbidden template: %s", renderRecord(rec))
		return
	}

	var timeout *tartarelogs.TimeoutError
	if !errors.As(err, &timeout) {
		tb.Fatalf("waiting for absence of log record: %v", err)
	}
}

func renderRecords(records []tartarelogs.Record) string {
	if len(records) == 0 {
		return "  (none)"
	}
	lines := make([]string, 0, len(records))
	for i, rec := range records {
		lines = append(lines, fmt.Sprintf("  %d. %s", i+1, renderRecord(rec)))
	}
	return strings.Join(lines, "\n")
}

func renderRecord(rec tartarelogs.Record) string {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Sprint(rec)
	}
	return string(data)
}
