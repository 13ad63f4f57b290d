package source

import (
	"context"
	"io"
	"log/slog"
)

// streamChunkSize bounds a single delivery from a byte stream.
const streamChunkSize = 32 * 1024

// Stream adapts a readable byte stream (typically a child process's
// stdout or stderr) into a Source. Deliveries preserve the stream's
// own chunking; there is no seeking and no size tracking.
type Stream struct {
	R   io.Reader
	Log *slog.Logger
}

// Start implements Source.
func (s *Stream) Start(ctx context.Context, chunks chan<- []byte, errs chan<- error) error {
	if s.Log == nil {
		s.Log = discardLogger
	}
	go s.readLoop(ctx, chunks, errs)
	return nil
}

func (s *Stream) readLoop(ctx context.Context, chunks chan<- []byte, errs chan<- error) {
	defer close(chunks)
	defer close(errs)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// A fresh buffer per read: the receiver owns delivered chunks.
		buf := make([]byte, streamChunkSize)
		n, err := s.R.Read(buf)
		if n > 0 {
			if !sendChunk(ctx, chunks, buf[:n]) {
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				sendErr(ctx, errs, err)
			} else {
				s.Log.Debug("stream ended")
			}
			return
		}
	}
}
