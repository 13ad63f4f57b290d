package tartarelogs

import (
	"context"
	"io"
	"sync"
	"time"
)

// Reader wraps a Watcher one-to-one, accumulates every record and
// error it produces, and lets callers wait for a record matching a
// template.
type Reader struct {
	watcher *Watcher

	mu      sync.Mutex
	running bool
	records []Record
	errs    []error
	waiters map[*waiter]struct{}
	done    chan struct{}
}

// waiter is one in-flight WaitForMatch. Completion is single-shot: the
// dispatcher removes the waiter from the set before sending on its
// buffered channel, so exactly one outcome is ever delivered.
type waiter struct {
	tmpl   Template
	strict bool
	ch     chan waitOutcome
}

type waitOutcome struct {
	rec Record
	err error
}

// NewFileReader creates a reader over a file on disk.
func NewFileReader(path string, cfg Config, opts ...Option) (*Reader, error) {
	o := append([]Option(nil), opts...)
	autoStart := applyOptions(o).autoStart
	w, err := newWatcher(path, nil, cfg, stripAutoStart(o))
	if err != nil {
		return nil, err
	}
	return finishReader(w, autoStart)
}

// NewStreamReader creates a reader over a readable byte stream.
func NewStreamReader(r io.Reader, cfg Config, opts ...Option) (*Reader, error) {
	o := append([]Option(nil), opts...)
	autoStart := applyOptions(o).autoStart
	w, err := newWatcher("", r, cfg, stripAutoStart(o))
	if err != nil {
		return nil, err
	}
	return finishReader(w, autoStart)
}

// stripAutoStart keeps the watcher from starting before the reader has
// subscribed; the reader honours the option itself in finishReader.
func stripAutoStart(opts []Option) []Option {
	out := append(opts, func(o *options) { o.autoStart = false })
	return out
}

func finishReader(w *Watcher, autoStart bool) (*Reader, error) {
	r := &Reader{
		watcher: w,
		waiters: make(map[*waiter]struct{}),
	}
	if autoStart {
		if err := r.Start(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Start stops any previous run, clears the record and error buffers,
// starts the underlying watcher and begins accumulating its output.
func (r *Reader) Start() error {
	_ = r.Stop()

	r.mu.Lock()
	r.records = nil
	r.errs = nil
	r.mu.Unlock()

	if err := r.watcher.Start(); err != nil {
		return err
	}
	records := r.watcher.Records()
	errs := r.watcher.Errors()

	r.mu.Lock()
	r.running = true
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go r.dispatch(records, errs, done)
	return nil
}

// Stop detaches from the watcher and stops it. Idempotent. Waiters
// already armed stay armed and report a timeout at their own deadline.
func (r *Reader) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	done := r.done
	r.mu.Unlock()

	err := r.watcher.Stop()
	<-done
	return err
}

// dispatch drains the watcher's channels until both close, appending
// to the buffers and completing waiters.
func (r *Reader) dispatch(records <-chan Record, errs <-chan error, done chan struct{}) {
	defer close(done)
	for records != nil || errs != nil {
		select {
		case rec, ok := <-records:
			if !ok {
				records = nil
				continue
			}
			r.onRecord(rec)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			r.onError(err)
		}
	}
}

func (r *Reader) onRecord(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, rec)
	for w := range r.waiters {
		switch {
		case w.tmpl.Matches(rec):
			r.completeLocked(w, waitOutcome{rec: rec})
		case w.strict:
			r.completeLocked(w, waitOutcome{err: &UnexpectedRecordError{Record: rec}})
		}
	}
}

func (r *Reader) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errs = append(r.errs, err)
	for w := range r.waiters {
		r.completeLocked(w, waitOutcome{err: &UpstreamError{Errs: []error{err}}})
	}
}

// completeLocked removes the waiter and delivers its single outcome.
// The channel has capacity one, so the send never blocks.
func (r *Reader) completeLocked(w *waiter, out waitOutcome) {
	delete(r.waiters, w)
	w.ch <- out
}

// Records returns a snapshot of every record observed since Start.
func (r *Reader) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

// Errors returns a snapshot of every parse and I/O error observed
// since Start.
func (r *Reader) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// WaitForMatch waits until a record satisfying tmpl arrives, honouring
// a deadline (default 3 s, see WaitTimeout) and strict mode (see
// Strict). A nil or empty template matches any record.
//
// Outcomes:
//
//   - If errors were already observed, it fails immediately with an
//     UpstreamError aggregating all of them; records are not consulted.
//   - A buffered or future matching record is returned. In strict mode
//     the first record decides: if it does not match, the wait fails
//     with UnexpectedRecordError carrying it.
//   - A future parse or I/O error fails the wait with an UpstreamError
//     carrying it.
//   - At the deadline the wait fails with a TimeoutError carrying a
//     snapshot of the records observed so far.
//
// Whichever outcome fires first wins; the completion is delivered
// exactly once, with the deadline timer and subscription released
// before it is returned. Cancelling ctx releases the waiter and
// returns ctx.Err().
func (r *Reader) WaitForMatch(ctx context.Context, tmpl Template, opts ...WaitOption) (Record, error) {
	o := applyWaitOptions(opts)

	r.mu.Lock()
	if len(r.errs) > 0 {
		errs := append([]error(nil), r.errs...)
		r.mu.Unlock()
		return nil, &UpstreamError{Errs: errs}
	}
	if o.strict && len(r.records) > 0 {
		first := r.records[0]
		r.mu.Unlock()
		if tmpl.Matches(first) {
			return first, nil
		}
		return nil, &UnexpectedRecordError{Record: first}
	}
	if !o.strict {
		for _, rec := range r.records {
			if tmpl.Matches(rec) {
				r.mu.Unlock()
				return rec, nil
			}
		}
	}
	w := &waiter{tmpl: tmpl, strict: o.strict, ch: make(chan waitOutcome, 1)}
	r.waiters[w] = struct{}{}
	r.mu.Unlock()

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	select {
	case out := <-w.ch:
		return out.rec, out.err
	case <-timer.C:
		r.mu.Lock()
		if _, armed := r.waiters[w]; armed {
			delete(r.waiters, w)
			// Snapshot under the same lock so it reflects exactly the
			// records present at expiry.
			snap := append([]Record(nil), r.records...)
			r.mu.Unlock()
			return nil, &TimeoutError{Template: tmpl, Records: snap}
		}
		r.mu.Unlock()
		// An outcome raced the deadline; the outcome wins.
		out := <-w.ch
		return out.rec, out.err
	case <-ctx.Done():
		if out, delivered := r.withdraw(w); delivered {
			return out.rec, out.err
		}
		return nil, ctx.Err()
	}
}

// withdraw removes a waiter that timed out or was cancelled. If the
// dispatcher completed it concurrently, the pending outcome is
// returned instead.
func (r *Reader) withdraw(w *waiter) (waitOutcome, bool) {
	r.mu.Lock()
	_, armed := r.waiters[w]
	if armed {
		delete(r.waiters, w)
	}
	r.mu.Unlock()

	if armed {
		return waitOutcome{}, false
	}
	return <-w.ch, true
}
