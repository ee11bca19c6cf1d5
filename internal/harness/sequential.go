package harness

import (
	"context"
	"fmt"

	"github.com/deixis/repeat/internal/report"
)

// Sequential runs Count invocations strictly one after another. Each
// failure is appended to failures as soon as its process exits, and the
// summary line is appended once the batch is complete. A nil failures
// log records nothing on disk.
func (h *Harness) Sequential(ctx context.Context, failures *report.FailureLog) (*Summary, error) {
	const kind = report.Sequential
	s := h.newSummary(kind)
	log := h.logger().With("batch", s.ID, "mode", kind)

	for i := 0; i < h.Count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("sequential batch: %w", err)
		}
		inv, block, err := h.runLogged(ctx, i, failures)
		if err != nil {
			return nil, fmt.Errorf("sequential batch: %w", err)
		}
		log.Info("finished command", "index", i)

		s.Invocations = append(s.Invocations, inv)
		if block != nil {
			s.Blocks = append(s.Blocks, *block)
			s.Failures = append(s.Failures, *block)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sequential batch: %w", err)
	}

	// Failed is the number of invocations that produced a block.
	s.Failed = len(s.Failures)
	s.finish()
	h.Metrics.RecordBatch(string(kind), s.Failed)
	log.Info("batch finished", "total", s.Total, "failed", s.Failed, "duration", s.Duration)

	if failures != nil {
		if err := failures.AppendSummary(s.Header()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// runLogged is one sequential step. It returns the failure block, or nil
// when the invocation passed.
func (h *Harness) runLogged(ctx context.Context, index int, failures *report.FailureLog) (Invocation, *string, error) {
	inv, err := h.RunOne(ctx, index)
	if err != nil {
		h.Metrics.RecordSpawnError(string(report.Sequential))
		return Invocation{}, nil, err
	}
	// A child killed because the batch was cancelled is not a result.
	if err := ctx.Err(); err != nil {
		return Invocation{}, nil, err
	}
	h.observe(report.Sequential, inv)

	if !inv.Failed {
		return inv, nil, nil
	}
	block := inv.FailureBlock()
	if failures != nil {
		if err := failures.Append(block); err != nil {
			return Invocation{}, nil, err
		}
	}
	return inv, &block, nil
}
