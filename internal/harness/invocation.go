package harness

import (
	"time"

	"github.com/deixis/repeat/internal/report"
)

// Block delimiters used in results.txt and resultsSync.txt.
const (
	blockOpen       = "\n v v v v v \n"
	blockClose      = "\n ^ ^ ^ ^ ^ \n"
	streamGap       = "\n\n"
	stderrSeparator = "\n - - - - \n"
)

// Invocation is the outcome of one spawn-wait-record cycle.
type Invocation struct {
	Index     int
	RunID     string
	ExitCode  int
	Stdout    []byte
	Stderr    []byte
	Duration  time.Duration
	Truncated bool
	Failed    bool
}

// Block formats the invocation for results.txt: a marker line, stdout,
// a blank line, stderr, and a closing marker line.
func (inv *Invocation) Block() string {
	b := make([]byte, 0, len(blockOpen)+len(inv.Stdout)+len(streamGap)+len(inv.Stderr)+len(blockClose))
	b = append(b, blockOpen...)
	b = append(b, inv.Stdout...)
	b = append(b, streamGap...)
	b = append(b, inv.Stderr...)
	b = append(b, blockClose...)
	return string(b)
}

// FailureBlock formats the invocation for resultsSync.txt: stdout, then
// the separator and stderr when stderr is non-empty.
func (inv *Invocation) FailureBlock() string {
	s := string(inv.Stdout)
	if len(inv.Stderr) > 0 {
		s += stderrSeparator + string(inv.Stderr)
	}
	return s
}

func (inv *Invocation) record() report.Invocation {
	return report.Invocation{
		Index:     inv.Index,
		RunID:     inv.RunID,
		ExitCode:  inv.ExitCode,
		Failed:    inv.Failed,
		Duration:  inv.Duration,
		Stdout:    string(inv.Stdout),
		Stderr:    string(inv.Stderr),
		Truncated: inv.Truncated,
	}
}
