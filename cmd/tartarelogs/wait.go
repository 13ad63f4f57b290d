package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/telefonicaid/tartare-logs/pkg/tartarelogs"
)

var (
	waitMatches []string
	waitTimeout time.Duration
	waitStrict  bool
)

var waitCmd = &cobra.Command{
	Use:   "wait [file]",
	Short: "Wait until a record matching a template arrives",
	Long: `Wait until the log source produces a record matching the given
template, then print it and exit 0. On timeout, exit 1 and print every
record observed so far to stderr.

Match values are literals by default; wrap in slashes for a regular
expression, or give a bare field name to only require presence.

Examples:
  tartarelogs wait sut.log --profile watch.yaml \
    --match 'msg=/server listening/' --match foo --timeout 10s

  tartarelogs wait sut.log --profile watch.yaml --strict \
    --match 'level=info'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWait,
}

func init() {
	addConfigFlags(waitCmd)
	waitCmd.Flags().StringArrayVar(&waitMatches, "match", nil,
		"field=value, field=/regex/ or bare field (repeatable)")
	waitCmd.Flags().DurationVar(&waitTimeout, "timeout", tartarelogs.DefaultWaitTimeout,
		"How long to wait for a match")
	waitCmd.Flags().BoolVar(&waitStrict, "strict", false,
		"Fail on the first record that does not match")
}

func runWait(cmd *cobra.Command, args []string) error {
	cfg, opts, err := buildConfig()
	if err != nil {
		return err
	}
	tmpl, err := parseTemplate(waitMatches)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var r *tartarelogs.Reader
	if len(args) == 1 {
		r, err = tartarelogs.NewFileReader(args[0], cfg, opts...)
	} else {
		r, err = tartarelogs.NewStreamReader(os.Stdin, cfg, opts...)
	}
	if err != nil {
		return err
	}
	if err := r.Start(); err != nil {
		return err
	}
	defer func() { _ = r.Stop() }()

	waitOpts := []tartarelogs.WaitOption{tartarelogs.WaitTimeout(waitTimeout)}
	if waitStrict {
		waitOpts = append(waitOpts, tartarelogs.Strict())
	}

	rec, err := r.WaitForMatch(ctx, tmpl, waitOpts...)
	if err != nil {
		var timeout *tartarelogs.TimeoutError
		if errors.As(err, &timeout) {
			fmt.Fprintf(os.Stderr, "timed out; %d records observed:\n", len(timeout.Records))
			for _, observed := range timeout.Records {
				if data, merr := json.Marshal(observed); merr == nil {
					fmt.Fprintln(os.Stderr, string(data))
				}
			}
		}
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
