// Package report persists batch results and writes the text artifacts
// produced by a batch. Batches are stored as typed records and can be
// queried by invocation index.
package report

import (
	"fmt"
	"time"
)

// Kind identifies how a batch was executed.
type Kind string

const (
	// Concurrent is a batch whose invocations all ran at once.
	Concurrent Kind = "concurrent"
	// Sequential is a batch whose invocations ran one after another.
	Sequential Kind = "sequential"
)

// Store persists and retrieves batch records.
type Store interface {
	Save(batch *Batch) error
	Load(batchID string) (*Batch, error)
}

// Batch holds the structured outcome of one harness run.
type Batch struct {
	ID          string        `json:"id"`
	Kind        Kind          `json:"kind"`
	Command     []string      `json:"command"`
	Policy      string        `json:"policy"`
	Total       int           `json:"total"`
	Failed      int           `json:"failed"`
	Started     time.Time     `json:"started"`
	Duration    time.Duration `json:"duration"`
	Invocations []Invocation  `json:"invocations,omitempty"`
}

// Invocation is the stored form of one spawn-wait-record cycle.
type Invocation struct {
	Index     int           `json:"index"`
	RunID     string        `json:"run_id"`
	ExitCode  int           `json:"exit_code"`
	Failed    bool          `json:"failed"`
	Duration  time.Duration `json:"duration"`
	Stdout    string        `json:"stdout,omitempty"`
	Stderr    string        `json:"stderr,omitempty"`
	Truncated bool          `json:"truncated,omitempty"`
}

// Header formats the summary line written at the top of results.txt and
// at the end of resultsSync.txt.
func Header(total, failed int) string {
	return fmt.Sprintf("TEST RAN %d TIMES. FAILED: %d", total, failed)
}

// Header returns the summary line for the batch.
func (b *Batch) Header() string {
	return Header(b.Total, b.Failed)
}

// Expect returns an error if the batch's Kind does not match want.
func (b *Batch) Expect(want Kind) error {
	if b.Kind != want {
		return fmt.Errorf("batch %s is a %s batch, not a %s batch", b.ID, b.Kind, want)
	}
	return nil
}

// Invocation returns the invocation with the given index.
func (b *Batch) Invocation(index int) (*Invocation, error) {
	for i := range b.Invocations {
		if b.Invocations[i].Index == index {
			return &b.Invocations[i], nil
		}
	}
	return nil, fmt.Errorf("batch %s has no invocation %d", b.ID, index)
}

// Failures returns the failed invocations in stored order.
func (b *Batch) Failures() []Invocation {
	var out []Invocation
	for _, inv := range b.Invocations {
		if inv.Failed {
			out = append(out, inv)
		}
	}
	return out
}
