// Command tartarelogs tails a SUT's log from the command line using
// the same pipeline the library exposes to test harnesses.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set via -ldflags at build time.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "tartarelogs",
	Short: "Observe and assert on SUT log output",
	Long: `tartarelogs tails a log file (or stdin), parses each line into a
structured record and prints the records, or waits until a record
matching a template shows up.

Only bytes appended after startup are observed; historical content is
skipped.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(waitCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
