package runner

import "time"

// Result holds the output of one child process.
type Result struct {
	RunID     string        // unique identifier for this invocation
	ExitCode  int           // process exit code
	Stdout    []byte        // captured stdout (may be truncated)
	Stderr    []byte        // captured stderr (may be truncated)
	Truncated bool          // true if either stream exceeded the size cap
	Duration  time.Duration // wall time from start to exit
}
