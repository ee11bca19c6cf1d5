package report

import (
	"fmt"
	"strings"
)

// FormatBatch lists the invocations of a batch, one per line.
func FormatBatch(batch *Batch, failedOnly bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Batch: %s (%s, policy %s)\n", batch.ID, batch.Kind, batch.Policy)
	fmt.Fprintf(&b, "Command: %s\n", strings.Join(batch.Command, " "))
	fmt.Fprintln(&b, batch.Header())
	fmt.Fprintln(&b)

	invs := batch.Invocations
	if failedOnly {
		invs = batch.Failures()
		if len(invs) == 0 {
			fmt.Fprintln(&b, "No failed invocations.")
			return b.String()
		}
	}
	for _, inv := range invs {
		status := "pass"
		if inv.Failed {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "  #%-3d %-4s exit=%d %s run=%s\n", inv.Index, status, inv.ExitCode, inv.Duration, inv.RunID)
	}
	return b.String()
}

// FormatInvocation prints one invocation with its captured output.
func FormatInvocation(batch *Batch, inv *Invocation) string {
	var b strings.Builder

	status := "pass"
	if inv.Failed {
		status = "FAIL"
	}
	fmt.Fprintf(&b, "Batch: %s (%s)\n", batch.ID, batch.Kind)
	fmt.Fprintf(&b, "Invocation %d: %s (exit %d, %s)\n", inv.Index, status, inv.ExitCode, inv.Duration)
	fmt.Fprintf(&b, "Run: %s\n", inv.RunID)
	if inv.Truncated {
		fmt.Fprintln(&b, "Output was truncated at the configured max_output.")
	}

	writeStream(&b, "Stdout", inv.Stdout)
	writeStream(&b, "Stderr", inv.Stderr)
	return b.String()
}

func writeStream(b *strings.Builder, name, s string) {
	fmt.Fprintln(b)
	if s == "" {
		fmt.Fprintf(b, "%s: (empty)\n", name)
		return
	}
	fmt.Fprintf(b, "%s:\n", name)
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		fmt.Fprintf(b, "    %s\n", line)
	}
}
