// Package profile loads declarative watch profiles from YAML files.
// A profile bundles a parsing configuration and watcher options, so
// test harnesses can describe how a SUT's log is to be observed
// without code.
package profile

import (
	"fmt"
	"regexp"
	"time"

	"github.com/telefonicaid/tartare-logs/pkg/tartarelogs"
)

// Profile represents the structure of a YAML watch-profile file.
//
// Example file:
//
//	version: 1
//	method: pattern
//	pattern: '^time=(\S+) \| msg=(.+) \| foo=(\d+)$'
//	fields: [time, msg, foo]
//	options:
//	  allow_pattern_violations: true
//	  retained_log_timeout_ms: 300
//
// Or for structured logs:
//
//	version: 1
//	method: json
//	schema:
//	  type: object
//	  required: [level, msg]
type Profile struct {
	// Version is the profile file format version. Currently only
	// version 1 is supported.
	Version int `yaml:"version"`

	// Method selects the parsing strategy: "pattern" or "json".
	// Custom functions cannot be expressed in a file.
	Method string `yaml:"method"`

	// Pattern is the regular expression for pattern mode. Its capture
	// groups populate Fields positionally.
	Pattern string `yaml:"pattern"`

	// Fields names the capture groups of Pattern, in order.
	Fields []string `yaml:"fields"`

	// Schema is an optional JSON Schema for json mode, written inline
	// as YAML.
	Schema map[string]any `yaml:"schema"`

	// Options tunes the watcher.
	Options Options `yaml:"options"`
}

// Options mirrors the watcher options expressible in a profile file.
// Durations are milliseconds; zero means "use the default".
type Options struct {
	Polling                bool `yaml:"polling"`
	IntervalMillis         int  `yaml:"interval_ms"`
	AllowPatternViolations bool `yaml:"allow_pattern_violations"`
	RetainedLogTimeoutMs   int  `yaml:"retained_log_timeout_ms"`
}

// Config builds the parsing configuration the profile describes.
// Pattern compilation failures and unknown methods are reported here.
func (p *Profile) Config() (tartarelogs.Config, error) {
	switch p.Method {
	case "pattern":
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return tartarelogs.Config{}, &ValidationError{
				Field:   "pattern",
				Message: fmt.Sprintf("invalid regular expression: %v", err),
			}
		}
		return tartarelogs.Config{Pattern: re, FieldNames: p.Fields}, nil
	case "json":
		cfg := tartarelogs.Config{JSON: true}
		if p.Schema != nil {
			cfg.Schema = p.Schema
		}
		return cfg, nil
	default:
		return tartarelogs.Config{}, &ValidationError{
			Field:   "method",
			Message: fmt.Sprintf("unknown method %q (want pattern or json)", p.Method),
		}
	}
}

// WatchOptions translates the profile's options block into functional
// options for the watcher or reader.
func (p *Profile) WatchOptions() []tartarelogs.Option {
	var opts []tartarelogs.Option
	if p.Options.Polling {
		opts = append(opts, tartarelogs.WithPolling())
	}
	if p.Options.IntervalMillis > 0 {
		opts = append(opts, tartarelogs.WithPollInterval(
			time.Duration(p.Options.IntervalMillis)*time.Millisecond))
	}
	if p.Options.AllowPatternViolations {
		opts = append(opts, tartarelogs.WithAllowPatternViolations())
	}
	if p.Options.RetainedLogTimeoutMs > 0 {
		opts = append(opts, tartarelogs.WithRetainedLogTimeout(
			time.Duration(p.Options.RetainedLogTimeoutMs)*time.Millisecond))
	}
	return opts
}
