package harness

import (
	"sort"
	"time"

	"github.com/deixis/repeat/internal/report"
)

// Summary accumulates the outcome of a batch.
type Summary struct {
	ID       string
	Kind     report.Kind
	Command  []string
	Policy   FailurePolicy
	Total    int
	Failed   int
	Started  time.Time
	Duration time.Duration

	// Blocks holds every result block in completion order for concurrent
	// batches, and only failure blocks in index order for sequential ones.
	Blocks []string
	// Failures holds the blocks of failed invocations.
	Failures    []string
	Invocations []Invocation
}

// Header returns the "TEST RAN N TIMES. FAILED: K" line.
func (s *Summary) Header() string {
	return report.Header(s.Total, s.Failed)
}

// Batch converts the summary into its stored form. Invocations are
// ordered by index.
func (s *Summary) Batch() *report.Batch {
	invs := make([]report.Invocation, 0, len(s.Invocations))
	for i := range s.Invocations {
		invs = append(invs, s.Invocations[i].record())
	}
	sort.Slice(invs, func(i, j int) bool { return invs[i].Index < invs[j].Index })

	return &report.Batch{
		ID:          s.ID,
		Kind:        s.Kind,
		Command:     s.Command,
		Policy:      s.Policy.String(),
		Total:       s.Total,
		Failed:      s.Failed,
		Started:     s.Started,
		Duration:    s.Duration,
		Invocations: invs,
	}
}

func (s *Summary) finish() {
	s.Duration = time.Since(s.Started)
}
