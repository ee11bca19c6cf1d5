package report

import (
	"fmt"
	"os"
	"strings"
)

// WriteResults replaces path with header on the first line followed by
// every block in the given order.
func WriteResults(path, header string, blocks []string) error {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for _, block := range blocks {
		b.WriteString(block)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing results %s: %w", path, err)
	}
	return nil
}

// FailureLog appends failure blocks to a file as they happen. Each write
// opens the file in append mode, so earlier content is never truncated
// and a crash mid-batch keeps every failure recorded so far.
type FailureLog struct {
	Path string
}

// Append writes block to the end of the log.
func (l *FailureLog) Append(block string) error {
	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening log %s: %w", l.Path, err)
	}
	if _, err := f.WriteString(block); err != nil {
		f.Close()
		return fmt.Errorf("appending to log %s: %w", l.Path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing log %s: %w", l.Path, err)
	}
	return nil
}

// AppendSummary writes the trailing summary line.
func (l *FailureLog) AppendSummary(header string) error {
	return l.Append(header + "\n")
}
