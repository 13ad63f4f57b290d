// Package linebuf reassembles complete lines from a stream of byte chunks.
//
// Sources deliver bytes in arbitrarily sized chunks that need not align
// with line boundaries. Buffer accumulates the trailing incomplete
// fragment of each chunk and prepends it to the next one, so callers
// only ever observe lines that ended at a terminator in the source.
package linebuf

import (
	"bytes"
	"strings"
)

// Buffer splits incoming chunks into complete lines, carrying an
// incomplete trailing fragment across any number of deliveries.
//
// Buffer is not safe for concurrent use; it is owned by the single
// pipeline goroutine of a watcher.
type Buffer struct {
	partial []byte
}

// Lines appends chunk to the buffered fragment and returns every
// complete line it now holds, in source order. A trailing piece with no
// terminator is retained for the next call, never emitted. Lines that
// are empty or pure whitespace are skipped. A trailing CR is stripped
// so CRLF input behaves like LF input.
func (b *Buffer) Lines(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}

	data := chunk
	if len(b.partial) > 0 {
		data = append(b.partial, chunk...)
		b.partial = nil
	}

	var lines []string
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimSuffix(data[:i], []byte{'\r'}))
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
		data = data[i+1:]
	}

	if len(data) > 0 {
		// Copy: chunk is owned by the source and may be reused.
		b.partial = append([]byte(nil), data...)
	}
	return lines
}

// Pending reports whether an incomplete fragment is currently held.
func (b *Buffer) Pending() bool {
	return len(b.partial) > 0
}

// Reset discards any buffered fragment. The watcher does not call it: a
// restart starts from a fresh Buffer, and a file truncation leaves the
// buffered fragment in place.
func (b *Buffer) Reset() {
	b.partial = nil
}
