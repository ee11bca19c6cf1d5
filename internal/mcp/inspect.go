package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/repeat/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type inspectParams struct {
	BatchID    string `json:"batch_id" jsonschema:"the batch ID from a repeat_run result"`
	Index      *int   `json:"index,omitempty" jsonschema:"invocation index to show in full; omit to list invocations"`
	FailedOnly bool   `json:"failed_only,omitempty" jsonschema:"when listing, show only failed invocations"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.BatchID == "" {
		return errorResult("batch_id is required")
	}

	batch, err := h.store.Load(params.BatchID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load batch %s: %v", params.BatchID, err))
	}

	if params.Index != nil {
		inv, err := batch.Invocation(*params.Index)
		if err != nil {
			return errorResult(err.Error())
		}
		return textResult(report.FormatInvocation(batch, inv))
	}
	return textResult(report.FormatBatch(batch, params.FailedOnly))
}

// batchHistory is implemented by stores that keep recent batches in memory.
type batchHistory interface {
	Recent() []*report.Batch
}

type historyParams struct{}

func (h *handler) historyHandler(ctx context.Context, req *mcp.CallToolRequest, params historyParams) (*mcp.CallToolResult, any, error) {
	hist, ok := h.store.(batchHistory)
	if !ok {
		return textResult("No batch history is kept by this server.")
	}
	batches := hist.Recent()
	if len(batches) == 0 {
		return textResult("No batches yet. Run one with repeat_run.")
	}

	var b strings.Builder
	for _, batch := range batches {
		fmt.Fprintf(&b, "%s  %-10s  %s\n", batch.ID, batch.Kind, batch.Header())
	}
	return textResult(b.String())
}
