package tartarelogs

import (
	"fmt"
	"log/slog"
	"time"
)

// DefaultPollInterval is the file-mode polling period.
const DefaultPollInterval = 100 * time.Millisecond

// DefaultRetainedLogTimeout bounds how long the last pattern-mode
// record is held back waiting for multi-line completion.
const DefaultRetainedLogTimeout = 300 * time.Millisecond

// DefaultWaitTimeout is the deadline for WaitForMatch when no
// WaitTimeout option is given.
const DefaultWaitTimeout = 3 * time.Second

// Option configures a Watcher or Reader using the functional options
// pattern.
type Option func(*options)

// options holds internal configuration (immutable after construction).
type options struct {
	autoStart              bool
	polling                bool
	interval               time.Duration
	allowPatternViolations bool
	retainedLogTimeout     time.Duration
	logger                 *slog.Logger
}

func defaultOptions() *options {
	return &options{
		interval:           DefaultPollInterval,
		retainedLogTimeout: DefaultRetainedLogTimeout,
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

func (o *options) validate() error {
	if o.interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", o.interval)
	}
	if o.retainedLogTimeout <= 0 {
		return fmt.Errorf("retained log timeout must be positive, got %v", o.retainedLogTimeout)
	}
	return nil
}

// WithAutoStart starts the watcher from the constructor. A start
// failure is returned by the constructor itself.
func WithAutoStart() Option {
	return func(o *options) { o.autoStart = true }
}

// WithPolling selects file-mode polling instead of change
// notifications. Use it on filesystems with unreliable or unsupported
// event delivery (e.g. network mounts). Has no effect on stream
// sources.
func WithPolling() Option {
	return func(o *options) { o.polling = true }
}

// WithPollInterval sets the polling period. Default: 100 ms.
func WithPollInterval(interval time.Duration) Option {
	return func(o *options) { o.interval = interval }
}

// WithAllowPatternViolations makes pattern mode append a non-matching
// line to the last field of the retained record instead of surfacing a
// pattern-violation error, as long as a retained record exists. This
// lets multi-line entries such as stack traces ride along with the
// record that produced them.
func WithAllowPatternViolations() Option {
	return func(o *options) { o.allowPatternViolations = true }
}

// WithRetainedLogTimeout sets how long the last pattern-mode record is
// held back for multi-line completion before being emitted. Default:
// 300 ms.
func WithRetainedLogTimeout(d time.Duration) Option {
	return func(o *options) { o.retainedLogTimeout = d }
}

// WithLogger sets a logger for debug output. If not set, logging is
// disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WaitOption configures a single WaitForMatch call.
type WaitOption func(*waitOptions)

type waitOptions struct {
	timeout time.Duration
	strict  bool
}

func applyWaitOptions(opts []WaitOption) waitOptions {
	o := waitOptions{timeout: DefaultWaitTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WaitTimeout sets the wait deadline. Default: 3 s.
func WaitTimeout(d time.Duration) WaitOption {
	return func(o *waitOptions) { o.timeout = d }
}

// Strict makes the first observed record decide the wait: if it does
// not satisfy the template the wait fails with UnexpectedRecordError
// instead of continuing to look.
func Strict() WaitOption {
	return func(o *waitOptions) { o.strict = true }
}
