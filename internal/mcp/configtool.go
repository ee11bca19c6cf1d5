package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/repeat/internal/config"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type configParams struct{}

func (h *handler) configHandler(ctx context.Context, req *sdkmcp.CallToolRequest, _ configParams) (*sdkmcp.CallToolResult, any, error) {
	return textResult(FormatConfig(h.current()))
}

// FormatConfig describes the effective configuration after defaults.
func FormatConfig(loaded *config.LoadResult) string {
	cfg := loaded.Config
	var b strings.Builder

	fmt.Fprintf(&b, "Root: %s\n", loaded.Root)
	fmt.Fprintf(&b, "Command: %s\n", strings.Join(cfg.Command(), " "))
	fmt.Fprintf(&b, "Count: %d\n", cfg.Count())
	if cfg.Concurrency > 0 {
		fmt.Fprintf(&b, "Concurrency: %d\n", cfg.Concurrency)
	} else {
		fmt.Fprintln(&b, "Concurrency: unbounded")
	}
	if t := cfg.Timeout(); t > 0 {
		fmt.Fprintf(&b, "Timeout: %s\n", t)
	} else {
		fmt.Fprintln(&b, "Timeout: none")
	}
	fmt.Fprintf(&b, "Failure policy: %s\n", cfg.Policy())
	if cfg.StripANSI {
		fmt.Fprintln(&b, "Strip ANSI: yes")
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Environment overrides:")
	env := cfg.Env()
	for _, k := range cfg.EnvKeys() {
		fmt.Fprintf(&b, "  %s=%s\n", k, env[k])
	}

	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Results file (concurrent): %s\n", loaded.Resolve(cfg.ResultsFile()))
	fmt.Fprintf(&b, "Log file (sequential): %s\n", loaded.Resolve(cfg.LogFile()))
	if cfg.Output.Metrics != "" {
		fmt.Fprintf(&b, "Metrics file: %s\n", loaded.Resolve(cfg.Output.Metrics))
	}
	return b.String()
}
