// Command repeat runs an integration test command many times and records
// how often it fails.
package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/deixis/repeat"
)

var (
	jsonOutput bool
	verbose    bool
	storeDir   string
)

var rootCmd = &cobra.Command{
	Use:   "repeat",
	Short: "Run a test command repeatedly and count failures",
	Long: `repeat runs an integration test command N times, concurrently or one at a time,
and writes a "TEST RAN N TIMES. FAILED: K" summary with the captured output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(repeat.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output batch results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&storeDir, "store", filepath.Join(os.TempDir(), "repeat-batches"), "directory for stored batch records")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("repeat: ")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

// newLogger returns the progress logger. Logs go to stderr so stdout stays
// clean for --json and the MCP stdio transport.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
