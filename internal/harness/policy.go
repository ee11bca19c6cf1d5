package harness

import "fmt"

// FailurePolicy decides which exit codes count as a failed invocation.
type FailurePolicy int

const (
	// ExitOne counts only exit code 1 as a failure. Other non-zero codes
	// are tallied as passes, matching the historical harness output.
	ExitOne FailurePolicy = iota
	// NonZero counts every exit code other than 0 as a failure.
	NonZero
)

// ParsePolicy maps a config or flag value to a FailurePolicy.
func ParsePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "exit1":
		return ExitOne, nil
	case "nonzero":
		return NonZero, nil
	}
	return ExitOne, fmt.Errorf("unknown failure policy %q (want exit1 or nonzero)", s)
}

// Failed reports whether code is a failure under p.
func (p FailurePolicy) Failed(code int) bool {
	if p == NonZero {
		return code != 0
	}
	return code == 1
}

func (p FailurePolicy) String() string {
	if p == NonZero {
		return "nonzero"
	}
	return "exit1"
}
