package main

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/telefonicaid/tartare-logs/pkg/tartarelogs"
	"github.com/telefonicaid/tartare-logs/pkg/tartarelogs/profile"
)

// shared flags for tail and wait
var (
	profilePath     string
	patternFlag     string
	fieldsFlag      []string
	jsonFlag        bool
	schemaFlag      string
	pollingFlag     bool
	intervalFlag    time.Duration
	allowViolations bool
	retainTimeout   time.Duration
)

// buildConfig resolves the parsing configuration and watcher options
// from the flags, with --profile taking precedence over inline flags.
func buildConfig() (tartarelogs.Config, []tartarelogs.Option, error) {
	if profilePath != "" {
		p, err := profile.Load(profilePath)
		if err != nil {
			return tartarelogs.Config{}, nil, err
		}
		cfg, err := p.Config()
		if err != nil {
			return tartarelogs.Config{}, nil, err
		}
		return cfg, p.WatchOptions(), nil
	}

	var cfg tartarelogs.Config
	switch {
	case patternFlag != "":
		re, err := regexp.Compile(patternFlag)
		if err != nil {
			return cfg, nil, fmt.Errorf("invalid --pattern: %w", err)
		}
		if len(fieldsFlag) == 0 {
			return cfg, nil, fmt.Errorf("--pattern requires --fields")
		}
		cfg.Pattern = re
		cfg.FieldNames = fieldsFlag
	case jsonFlag:
		cfg.JSON = true
		if schemaFlag != "" {
			cfg.Schema = schemaFlag
		}
	default:
		return cfg, nil, fmt.Errorf("one of --pattern or --json is required (or use --profile)")
	}

	var opts []tartarelogs.Option
	if pollingFlag {
		opts = append(opts, tartarelogs.WithPolling())
	}
	if intervalFlag > 0 {
		opts = append(opts, tartarelogs.WithPollInterval(intervalFlag))
	}
	if allowViolations {
		opts = append(opts, tartarelogs.WithAllowPatternViolations())
	}
	if retainTimeout > 0 {
		opts = append(opts, tartarelogs.WithRetainedLogTimeout(retainTimeout))
	}
	return cfg, opts, nil
}

// parseTemplate turns k=v and k=/regex/ pairs into a Template. A bare
// field name is an existence probe.
func parseTemplate(pairs []string) (tartarelogs.Template, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	tmpl := make(tartarelogs.Template, len(pairs))
	for _, pair := range pairs {
		field, value, found := strings.Cut(pair, "=")
		if field == "" {
			return nil, fmt.Errorf("invalid match %q", pair)
		}
		switch {
		case !found:
			tmpl[field] = tartarelogs.Exists
		case len(value) >= 2 && strings.HasPrefix(value, "/") && strings.HasSuffix(value, "/"):
			re, err := regexp.Compile(value[1 : len(value)-1])
			if err != nil {
				return nil, fmt.Errorf("invalid match expression for %s: %w", field, err)
			}
			tmpl[field] = re
		default:
			tmpl[field] = value
		}
	}
	return tmpl, nil
}
