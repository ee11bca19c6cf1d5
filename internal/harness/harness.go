// Package harness runs an external test command repeatedly, either all at
// once or one at a time, and tallies how many invocations failed.
package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/google/uuid"

	"github.com/deixis/repeat/internal/config"
	"github.com/deixis/repeat/internal/metrics"
	"github.com/deixis/repeat/internal/report"
	"github.com/deixis/repeat/internal/runner"
)

// CommandRunner executes commands within a workspace.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, cwd string) (*runner.Result, error)
}

// Harness holds the settings shared by every invocation of a batch.
type Harness struct {
	Runner      CommandRunner
	Command     []string
	Count       int
	Concurrency int // concurrent batches only; 0 spawns all invocations at once
	Policy      FailurePolicy
	StripANSI   bool
	Logger      *slog.Logger
	Metrics     *metrics.Recorder
}

// FromConfig builds a Harness from a loaded configuration.
func FromConfig(cfg *config.Config, r CommandRunner) (*Harness, error) {
	policy, err := ParsePolicy(cfg.Policy())
	if err != nil {
		return nil, err
	}
	return &Harness{
		Runner:      r,
		Command:     cfg.Command(),
		Count:       cfg.Count(),
		Concurrency: cfg.Concurrency,
		Policy:      policy,
		StripANSI:   cfg.StripANSI,
	}, nil
}

// RunOne spawns the command once and waits for it to exit. A process that
// exits non-zero is returned as data; a process that cannot be started is
// an error.
func (h *Harness) RunOne(ctx context.Context, index int) (Invocation, error) {
	log := h.logger().With("index", index)
	log.Info("running test")

	res, err := h.Runner.Run(ctx, h.Command, "")
	if err != nil {
		return Invocation{}, fmt.Errorf("invocation %d: %w", index, err)
	}

	inv := Invocation{
		Index:     index,
		RunID:     res.RunID,
		ExitCode:  res.ExitCode,
		Stdout:    res.Stdout,
		Stderr:    res.Stderr,
		Duration:  res.Duration,
		Truncated: res.Truncated,
		Failed:    h.Policy.Failed(res.ExitCode),
	}
	if h.StripANSI {
		inv.Stdout = []byte(stripansi.Strip(string(inv.Stdout)))
		inv.Stderr = []byte(stripansi.Strip(string(inv.Stderr)))
	}

	log.Info("exited", "run_id", inv.RunID, "exit_code", inv.ExitCode, "failed", inv.Failed, "duration", inv.Duration)
	log.Debug("captured output", "stdout_bytes", len(inv.Stdout), "stderr_bytes", len(inv.Stderr), "truncated", inv.Truncated)
	return inv, nil
}

func (h *Harness) newSummary(kind report.Kind) *Summary {
	return &Summary{
		ID:      uuid.New().String(),
		Kind:    kind,
		Command: h.Command,
		Policy:  h.Policy,
		Total:   h.Count,
		Started: time.Now(),
	}
}

func (h *Harness) observe(kind report.Kind, inv Invocation) {
	h.Metrics.RecordInvocation(string(kind), inv.Failed, inv.Duration.Seconds())
}

func (h *Harness) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
