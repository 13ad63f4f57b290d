// Package source turns a log source — a file path or a byte stream —
// into a sequence of appended byte chunks delivered over a channel.
//
// A file source only reads bytes appended after Start; content already
// present is skipped. The file need not exist at Start time: in
// change-notification mode the parent directory is watched, so the
// file is picked up on creation.
package source

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
)

// Source delivers appended byte ranges from a log source.
type Source interface {
	// Start begins delivery of chunks and errors. Setup failures
	// (e.g. installing the directory watch) are returned synchronously;
	// afterwards a goroutine owns both channels and closes them when
	// ctx is cancelled or the source ends. Each delivered chunk is
	// owned by the receiver.
	Start(ctx context.Context, chunks chan<- []byte, errs chan<- error) error
}

// sendChunk delivers a chunk, giving up if the context is cancelled.
func sendChunk(ctx context.Context, chunks chan<- []byte, chunk []byte) bool {
	select {
	case chunks <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// sendErr delivers an error, giving up if the context is cancelled.
func sendErr(ctx context.Context, errs chan<- error, err error) {
	if err == nil {
		return
	}
	select {
	case errs <- err:
	case <-ctx.Done():
	}
}

// notExist reports whether err means the target file is merely absent,
// which is never an error for a source.
func notExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// discardLogger is used when the caller supplied none.
var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
