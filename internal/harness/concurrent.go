package harness

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/deixis/repeat/internal/report"
)

// Concurrent starts Count invocations at once (or Concurrency at a time
// when set) and waits for all of them. Result blocks are accumulated in
// completion order.
//
// If any invocation cannot be spawned the batch is aborted: the shared
// context is cancelled, which kills invocations still in flight, and the
// spawn error is returned.
func (h *Harness) Concurrent(ctx context.Context) (*Summary, error) {
	const kind = report.Concurrent
	s := h.newSummary(kind)
	log := h.logger().With("batch", s.ID, "mode", kind)

	g, gctx := errgroup.WithContext(ctx)
	if h.Concurrency > 0 {
		g.SetLimit(h.Concurrency)
	}

	var mu sync.Mutex
	for i := 0; i < h.Count; i++ {
		log.Debug("creating task", "index", i)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			inv, err := h.RunOne(gctx, i)
			if err != nil {
				h.Metrics.RecordSpawnError(string(kind))
				return err
			}
			h.observe(kind, inv)

			block := inv.Block()
			mu.Lock()
			defer mu.Unlock()
			s.Invocations = append(s.Invocations, inv)
			s.Blocks = append(s.Blocks, block)
			if inv.Failed {
				s.Failures = append(s.Failures, block)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("concurrent batch: %w", err)
	}
	// Interrupted children exit by signal and look like ordinary results.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("concurrent batch: %w", err)
	}

	s.Failed = len(s.Failures)
	s.finish()
	h.Metrics.RecordBatch(string(kind), s.Failed)
	log.Info("batch finished", "total", s.Total, "failed", s.Failed, "duration", s.Duration)
	return s, nil
}

// RunAll runs a concurrent batch and replaces the file at path with the
// summary header followed by every result block.
func (h *Harness) RunAll(ctx context.Context, path string) (*Summary, error) {
	s, err := h.Concurrent(ctx)
	if err != nil {
		return nil, err
	}
	if err := report.WriteResults(path, s.Header(), s.Blocks); err != nil {
		return nil, err
	}
	return s, nil
}
