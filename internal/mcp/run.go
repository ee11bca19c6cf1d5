package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/repeat/internal/harness"
	"github.com/deixis/repeat/internal/report"
	"github.com/deixis/repeat/internal/runner"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type runParams struct {
	Mode        string `json:"mode,omitempty" jsonschema:"concurrent (default) or sequential"`
	Count       *int   `json:"count,omitempty" jsonschema:"number of invocations; defaults to the configured count (20)"`
	Concurrency *int   `json:"concurrency,omitempty" jsonschema:"maximum invocations in flight for concurrent mode; 0 starts all at once"`
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	kind := report.Concurrent
	switch params.Mode {
	case "", string(report.Concurrent):
	case string(report.Sequential):
		kind = report.Sequential
	default:
		return errorResult(fmt.Sprintf("unknown mode %q (want concurrent or sequential)", params.Mode))
	}

	loaded := h.current()
	cfg := loaded.Config

	r := &runner.Runner{
		Workspace: loaded.Root,
		Timeout:   cfg.Timeout(),
		MaxOutput: cfg.MaxOutputBytes(),
		Env:       cfg.Env(),
	}
	hn, err := harness.FromConfig(cfg, r)
	if err != nil {
		return errorResult(fmt.Sprintf("invalid configuration: %v", err))
	}
	if params.Count != nil {
		if *params.Count < 0 {
			return errorResult("count must be >= 0")
		}
		hn.Count = *params.Count
	}
	if params.Concurrency != nil {
		if *params.Concurrency < 0 {
			return errorResult("concurrency must be >= 0")
		}
		hn.Concurrency = *params.Concurrency
	}
	hn.Logger = h.logger
	hn.Metrics = h.metrics

	var (
		summary *harness.Summary
		output  string
	)
	if kind == report.Concurrent {
		output = loaded.Resolve(cfg.ResultsFile())
		summary, err = hn.RunAll(ctx, output)
	} else {
		output = loaded.Resolve(cfg.LogFile())
		summary, err = hn.Sequential(ctx, &report.FailureLog{Path: output})
	}
	if err != nil {
		return errorResult(fmt.Sprintf("%s batch failed: %v", kind, err))
	}

	batch := summary.Batch()
	// Save results for repeat_inspect.
	stored := true
	if err := h.store.Save(batch); err != nil {
		h.logger.Warn("batch not stored", "batch", batch.ID, "error", err)
		stored = false
	}
	if err := h.metrics.WriteTextfile(loaded.Resolve(cfg.Output.Metrics)); err != nil {
		h.logger.Warn("metrics not written", "error", err)
	}

	return textResult(formatRun(batch, output, stored))
}

func formatRun(batch *report.Batch, output string, stored bool) string {
	var b strings.Builder

	fmt.Fprintln(&b, batch.Header())
	fmt.Fprintf(&b, "Batch: %s\n", batch.ID)
	fmt.Fprintf(&b, "Mode: %s\n", batch.Kind)
	fmt.Fprintf(&b, "Policy: %s\n", batch.Policy)
	fmt.Fprintf(&b, "Output: %s\n", output)
	fmt.Fprintln(&b)

	failures := batch.Failures()
	if len(failures) == 0 {
		fmt.Fprintln(&b, "No failed invocations.")
		return b.String()
	}

	idx := make([]string, 0, len(failures))
	for _, f := range failures {
		idx = append(idx, fmt.Sprintf("%d (exit %d)", f.Index, f.ExitCode))
	}
	fmt.Fprintf(&b, "Failed invocations: %s\n", strings.Join(idx, ", "))
	if !stored {
		fmt.Fprintln(&b, "The batch could not be stored; repeat_inspect is unavailable for it.")
		return b.String()
	}
	fmt.Fprintf(&b, "Inspect with repeat_inspect(batch_id=%q, index=<n>).\n", batch.ID)
	return b.String()
}
