// Package mcp provides the repeat MCP server, registering the batch tools
// and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/deixis/repeat"
	"github.com/deixis/repeat/internal/config"
	"github.com/deixis/repeat/internal/metrics"
	"github.com/deixis/repeat/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	mu      sync.Mutex
	loaded  *config.LoadResult // replaced when the client reports roots
	store   report.Store
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewServer creates an MCP server with all repeat tools registered.
func NewServer(loaded *config.LoadResult, store report.Store, opts ...ServerOption) *mcp.Server {
	var so serverOptions
	for _, o := range opts {
		o(&so)
	}
	h := &handler{
		loaded:  loaded,
		store:   store,
		logger:  so.logger,
		metrics: so.metrics,
	}
	if h.logger == nil {
		h.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "repeat", Version: repeat.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "repeat_config",
		Description: "Show the resolved harness configuration: command, count, concurrency, failure policy, environment overrides and output files.",
	}, h.configHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "repeat_run",
		Description: `Run the configured test command many times and report how often it failed.

mode=concurrent (default) starts every invocation at once and overwrites the results file.
mode=sequential runs them one after another and appends failures to the log file.
Results are stored for drill-down via repeat_inspect.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "repeat_inspect",
		Description: `Drill into a batch from repeat_run.

Without index, lists every invocation (or only failures with failed_only=true).
With index, prints that invocation's exit code, stdout and stderr.`,
	}, h.inspectHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "repeat_history",
		Description: "List the batches run or inspected in this session, most recent first.",
	}, h.historyHandler)

	return s
}

// ServerOption configures the repeat MCP server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// WithLogger routes per-invocation progress logs to logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.logger = logger
	}
}

// WithMetrics records batch metrics into rec.
func WithMetrics(rec *metrics.Recorder) ServerOption {
	return func(o *serverOptions) {
		o.metrics = rec
	}
}

func (h *handler) current() *config.LoadResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded
}

// updateWorkspaceFromRoots queries the client for MCP roots and reloads
// the configuration from the first file root.
// This is called during session initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return
	}
	if len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}

	loaded, err := config.Load(u.Path)
	if err != nil {
		h.logger.Warn("ignoring workspace root", "root", u.Path, "error", err)
		return
	}

	h.mu.Lock()
	h.loaded = loaded
	h.mu.Unlock()
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
