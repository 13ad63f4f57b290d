package tartarelogs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/telefonicaid/tartare-logs/internal/linebuf"
	"github.com/telefonicaid/tartare-logs/internal/source"
)

// errBuffer is the buffer size for the error channel. A small buffer
// prevents error loss during brief moments when the consumer is busy,
// while keeping memory usage minimal.
const errBuffer = 16

// chunkBuffer decouples the source goroutine from the parsing pipeline
// without letting unread bytes pile up unboundedly.
const chunkBuffer = 16

// discardLogger is used when the caller supplied none.
var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Watcher tails a log source, parses each complete line into a Record
// and delivers records and errors over channels.
//
// The pipeline is strictly serial per watcher: one goroutine reads the
// source, a second owns line reassembly, parsing and retention. In
// pattern mode the most recent record is held back for the retained-log
// timeout so continuation lines (stack traces, dumped configuration)
// can still be folded into it; records before the last are emitted
// immediately.
type Watcher struct {
	cfg     Config
	opts    *options
	parser  lineParser
	pattern *patternParser // non-nil only in pattern mode
	log     *slog.Logger

	// source descriptor; exactly one is set.
	path   string
	stream io.Reader

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	records chan Record
	errs    chan error
}

// NewFileWatcher creates a watcher over a file on disk. The file need
// not exist yet; only bytes appended after Start are observed.
func NewFileWatcher(path string, cfg Config, opts ...Option) (*Watcher, error) {
	return newWatcher(path, nil, cfg, opts)
}

// NewStreamWatcher creates a watcher over a readable byte stream, such
// as a child process's stdout or stderr.
func NewStreamWatcher(r io.Reader, cfg Config, opts ...Option) (*Watcher, error) {
	return newWatcher("", r, cfg, opts)
}

func newWatcher(path string, stream io.Reader, cfg Config, opts []Option) (*Watcher, error) {
	o := applyOptions(opts)
	if err := o.validate(); err != nil {
		return nil, err
	}

	p, err := newParser(cfg)
	if err != nil {
		return nil, err
	}

	log := o.logger
	if log == nil {
		log = discardLogger
	}

	w := &Watcher{
		cfg:    cfg,
		opts:   o,
		parser: p,
		log:    log,
		path:   path,
		stream: stream,
	}
	if pp, ok := p.(*patternParser); ok {
		w.pattern = pp
	}

	if o.autoStart {
		if err := w.Start(); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Start begins watching. It is idempotent: calling Start on a running
// watcher is a no-op. After a Stop, Start begins a fresh run with
// cleared reassembly and retention state and fresh channels.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	var src source.Source
	if w.stream != nil {
		src = &source.Stream{R: w.stream, Log: w.log}
	} else {
		src = &source.File{
			Path:     w.path,
			Polling:  w.opts.polling,
			Interval: w.opts.interval,
			Log:      w.log,
		}
	}

	chunks := make(chan []byte, chunkBuffer)
	srcErrs := make(chan error, errBuffer)
	if err := src.Start(ctx, chunks, srcErrs); err != nil {
		cancel()
		return &WatchError{Op: WatchOpStart, Path: w.path, Err: err}
	}

	w.records = make(chan Record)
	w.errs = make(chan error, errBuffer)
	w.done = make(chan struct{})
	w.cancel = cancel
	w.running = true

	w.log.Debug("watcher started", "path", w.path)
	go w.run(ctx, chunks, srcErrs, w.records, w.errs, w.done)
	return nil
}

// Stop cancels the retention timer, detaches the source and waits for
// the pipeline to exit. Safe to call multiple times. A record still
// retained at Stop time is flushed with a non-blocking send before the
// record channel closes.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	<-done
	w.log.Debug("watcher stopped", "path", w.path)
	return nil
}

// Records returns the channel records are delivered on. Valid after
// Start; each Start allocates a fresh channel, closed when the run
// ends.
func (w *Watcher) Records() <-chan Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records
}

// Errors returns the channel parse and I/O errors are delivered on.
// Valid after Start, closed when the run ends. Errors never abort the
// watcher.
func (w *Watcher) Errors() <-chan error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errs
}

// run owns reassembly, parsing, retention and emission for one Start.
func (w *Watcher) run(ctx context.Context, chunks <-chan []byte, srcErrs <-chan error, records chan<- Record, errs chan<- error, done chan struct{}) {
	defer close(done)
	defer close(records)
	defer close(errs)

	var (
		buf         linebuf.Buffer
		retained    []Record
		retainTimer *time.Timer
		retainC     <-chan time.Time
	)

	stopRetain := func() {
		if retainTimer != nil {
			retainTimer.Stop()
			retainTimer = nil
			retainC = nil
		}
	}
	armRetain := func() {
		stopRetain()
		retainTimer = time.NewTimer(w.opts.retainedLogTimeout)
		retainC = retainTimer.C
	}

	emit := func(rec Record) bool {
		select {
		case records <- rec:
			return true
		case <-ctx.Done():
			return false
		}
	}

	handleLine := func(line string) bool {
		rec, err := w.parser.parseLine(line)
		if err != nil {
			var pe *ParseError
			if w.opts.allowPatternViolations && errors.As(err, &pe) &&
				pe.Kind == PatternViolation && len(retained) > 0 {
				// Fold the violating line into the retained record's
				// last field. Once the buffer has been flushed there is
				// nothing to aggregate onto and the violation surfaces
				// as an error like any other.
				appendToField(retained[len(retained)-1], w.pattern.lastField(), line)
				return true
			}
			sendError(ctx, errs, err)
			return true
		}
		if rec == nil {
			return true
		}
		if w.pattern == nil {
			// Non-pattern strategies emit immediately; nothing is
			// retained.
			return emit(rec)
		}
		retained = append(retained, rec)
		for _, r := range retained[:len(retained)-1] {
			if !emit(r) {
				return false
			}
		}
		last := retained[len(retained)-1]
		retained = append(retained[:0], last)
		return true
	}

	for {
		if chunks == nil && srcErrs == nil && retainC == nil {
			// Source drained and nothing pending: the run is over.
			return
		}

		select {
		case <-ctx.Done():
			// Shutdown flush: deliver retained records if anyone is
			// still draining, drop them otherwise.
			stopRetain()
			for _, r := range retained {
				select {
				case records <- r:
				default:
				}
			}
			return

		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			// New bytes extend the retention window even when they do
			// not complete a record.
			stopRetain()
			for _, line := range buf.Lines(chunk) {
				if !handleLine(line) {
					return
				}
			}
			if len(retained) > 0 {
				armRetain()
			}

		case err, ok := <-srcErrs:
			if !ok {
				srcErrs = nil
				continue
			}
			sendError(ctx, errs, &WatchError{Op: WatchOpSource, Path: w.path, Err: err})

		case <-retainC:
			retainTimer = nil
			retainC = nil
			w.log.Debug("retention timer expired", "retained", len(retained))
			for _, r := range retained {
				if !emit(r) {
					return
				}
			}
			retained = retained[:0]
		}
	}
}

// appendToField concatenates line onto the record's field, separated by
// a line terminator.
func appendToField(rec Record, field, line string) {
	if prev, ok := rec[field].(string); ok {
		rec[field] = prev + "\n" + line
		return
	}
	if _, exists := rec[field]; !exists {
		rec[field] = line
	}
}

// sendError delivers an error notification. With a buffered channel an
// error is only dropped if the buffer is full; the context case keeps
// shutdown from blocking.
func sendError(ctx context.Context, errs chan<- error, err error) {
	if err == nil {
		return
	}
	select {
	case errs <- err:
	case <-ctx.Done():
	default:
	}
}
