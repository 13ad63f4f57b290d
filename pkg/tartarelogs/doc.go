// Package tartarelogs observes what a system under test writes to its
// logs.
//
// A [Watcher] tails a log source — a file that may not exist yet, or a
// byte stream such as a child process's stdout — parses each appended
// line into a [Record] using one of three strategies (regular
// expression with named fields, JSON documents with optional schema
// validation, or a custom function) and delivers records and parse
// errors over channels. Only bytes appended after Start are observed.
//
// A [Reader] wraps a watcher, buffers everything it produces and adds
// [Reader.WaitForMatch]: block until a record satisfying a [Template]
// arrives, with a deadline and an optional strict mode that fails on
// the first non-matching record.
//
// # Watching a file
//
//	cfg := tartarelogs.Config{
//	    Pattern:    regexp.MustCompile(`^time=(\S+) \| msg=(.+) \| foo=(\d+)$`),
//	    FieldNames: []string{"time", "msg", "foo"},
//	}
//	w, err := tartarelogs.NewFileWatcher("/var/log/sut.log", cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := w.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
//	for {
//	    select {
//	    case rec, ok := <-w.Records():
//	        if !ok {
//	            return
//	        }
//	        fmt.Println(rec["msg"])
//	    case err, ok := <-w.Errors():
//	        if !ok {
//	            return
//	        }
//	        log.Println(err)
//	    }
//	}
//
// # Waiting for a match
//
//	r, err := tartarelogs.NewFileReader("/var/log/sut.log", cfg,
//	    tartarelogs.WithAutoStart())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Stop()
//
//	rec, err := r.WaitForMatch(ctx, tartarelogs.Template{
//	    "msg": regexp.MustCompile(`Lorem`),
//	    "foo": tartarelogs.Exists,
//	})
//
// In pattern mode the most recent record is retained for a short
// window (default 300 ms) so multi-line entries such as stack traces
// can complete before it is emitted; see [WithRetainedLogTimeout] and
// [WithAllowPatternViolations].
package tartarelogs
