package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/telefonicaid/tartare-logs/pkg/tartarelogs"
)

var tailFormat string

var tailCmd = &cobra.Command{
	Use:   "tail [file]",
	Short: "Tail a log source and print parsed records",
	Long: `Tail a log file (or stdin when no file is given), parse each
appended line and print the resulting records.

Records are output as JSON Lines by default (one JSON object per
line), which makes it easy to process with tools like jq.

Examples:
  # Key=value style logs
  tartarelogs tail sut.log \
    --pattern '^time=(\S+) \| msg=(.+) \| foo=(\d+)$' \
    --fields time,msg,foo

  # JSON logs with schema validation, from stdin
  my-sut 2>&1 | tartarelogs tail --json --schema "$(cat schema.json)"

  # Everything declared in a profile file
  tartarelogs tail sut.log --profile watch.yaml

  # Human-readable output
  tartarelogs tail sut.log --profile watch.yaml --format pretty`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTail,
}

func init() {
	addConfigFlags(tailCmd)
	tailCmd.Flags().StringVarP(&tailFormat, "format", "f", "jsonl",
		"Output format: jsonl, pretty")
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&profilePath, "profile", "", "YAML watch profile (overrides inline flags)")
	cmd.Flags().StringVar(&patternFlag, "pattern", "", "Regular expression with one capture group per field")
	cmd.Flags().StringSliceVar(&fieldsFlag, "fields", nil, "Field names for the pattern's capture groups")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Parse each line as a JSON object")
	cmd.Flags().StringVar(&schemaFlag, "schema", "", "JSON Schema the documents must satisfy")
	cmd.Flags().BoolVar(&pollingFlag, "polling", false, "Poll the file instead of using change notifications")
	cmd.Flags().DurationVar(&intervalFlag, "interval", 0, "Polling period (default 100ms)")
	cmd.Flags().BoolVar(&allowViolations, "allow-pattern-violations", false,
		"Fold non-matching lines into the previous record's last field")
	cmd.Flags().DurationVar(&retainTimeout, "retain-timeout", 0,
		"How long the last record is held for multi-line completion (default 300ms)")
}

func runTail(cmd *cobra.Command, args []string) error {
	cfg, opts, err := buildConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var w *tartarelogs.Watcher
	if len(args) == 1 {
		w, err = tartarelogs.NewFileWatcher(args[0], cfg, opts...)
	} else {
		w, err = tartarelogs.NewStreamWatcher(os.Stdin, cfg, opts...)
	}
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	records, errs := w.Records(), w.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case rec, ok := <-records:
			if !ok {
				return nil
			}
			printRecord(rec)
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func printRecord(rec tartarelogs.Record) {
	switch tailFormat {
	case "pretty":
		fields := make([]string, 0, len(rec))
		for k := range rec {
			fields = append(fields, k)
		}
		sort.Strings(fields)
		for i, k := range fields {
			if i > 0 {
				fmt.Print("  ")
			}
			fmt.Printf("%s=%v", k, rec[k])
		}
		fmt.Println()
	default:
		data, err := json.Marshal(rec)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		fmt.Println(string(data))
	}
}
