package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// File watches a file on disk and delivers byte ranges appended after
// Start. Two strategies:
//
//   - change-notification (default): an fsnotify watch on the parent
//     directory, non-recursive. Watching the directory rather than the
//     file means a file created after Start is still detected. Every
//     directory event triggers a re-stat of the target.
//   - polling: re-stat the target every Interval. For filesystems with
//     unreliable or missing event delivery (network mounts).
//
// Either way, new bytes are read as the range [prevSize, currSize) in a
// single open/read/close per event; no descriptor is held between
// events.
type File struct {
	Path     string
	Polling  bool
	Interval time.Duration
	Log      *slog.Logger

	prevSize     int64
	lastObserved int64
}

// Start implements Source.
func (s *File) Start(ctx context.Context, chunks chan<- []byte, errs chan<- error) error {
	if s.Log == nil {
		s.Log = discardLogger
	}

	// Historical content is never read: the start point is the file's
	// size right now, or zero if it does not exist yet.
	s.prevSize = 0
	if info, err := os.Stat(s.Path); err == nil {
		s.prevSize = info.Size()
	} else if !notExist(err) {
		return fmt.Errorf("stat %s: %w", s.Path, err)
	}
	s.lastObserved = s.prevSize

	if s.Polling {
		go s.pollLoop(ctx, chunks, errs)
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watch: %w", err)
	}
	if err := w.Add(filepath.Dir(s.Path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(s.Path), err)
	}
	go s.watchLoop(ctx, w, chunks, errs)
	return nil
}

func (s *File) watchLoop(ctx context.Context, w *fsnotify.Watcher, chunks chan<- []byte, errs chan<- error) {
	defer close(chunks)
	defer close(errs)
	defer func() { _ = w.Close() }()

	s.Log.Debug("watching directory", "dir", filepath.Dir(s.Path), "target", s.Path)

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-w.Events:
			if !ok {
				return
			}
			// Any event in the directory: re-stat the target. The
			// event may concern another file; the size check below
			// makes spurious wakeups free.
			s.readNew(ctx, chunks, errs)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			sendErr(ctx, errs, err)
		}
	}
}

func (s *File) pollLoop(ctx context.Context, chunks chan<- []byte, errs chan<- error) {
	defer close(chunks)
	defer close(errs)

	s.Log.Debug("polling", "target", s.Path, "interval", s.Interval)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.readNew(ctx, chunks, errs)
		}
	}
}

// readNew stats the target and delivers any newly appended range.
func (s *File) readNew(ctx context.Context, chunks chan<- []byte, errs chan<- error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		if !notExist(err) {
			sendErr(ctx, errs, err)
		}
		return
	}
	curr := info.Size()

	// A size below the high-water mark means the file was truncated or
	// rotated in place: restart from the top of the new content.
	if curr < s.lastObserved {
		s.Log.Debug("file shrank, resetting offsets", "target", s.Path, "size", curr)
		s.prevSize = 0
		s.lastObserved = 0
	}

	// The watch layer may report duplicate or overlapping ranges;
	// clamping to the high-water mark keeps reads monotonic.
	if s.prevSize < s.lastObserved {
		s.prevSize = s.lastObserved
	}
	if curr <= s.prevSize {
		return
	}

	f, err := os.Open(s.Path)
	if err != nil {
		if !notExist(err) {
			sendErr(ctx, errs, err)
		}
		return
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, curr-s.prevSize)
	n, err := f.ReadAt(buf, s.prevSize)
	if err != nil && err != io.EOF {
		sendErr(ctx, errs, err)
		return
	}
	if n == 0 {
		return
	}

	if !sendChunk(ctx, chunks, buf[:n]) {
		return
	}
	s.prevSize += int64(n)
	if s.lastObserved < s.prevSize {
		s.lastObserved = s.prevSize
	}
	s.Log.Debug("read appended range", "target", s.Path, "bytes", n, "offset", s.prevSize)
}
