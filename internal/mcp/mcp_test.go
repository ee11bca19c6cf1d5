package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deixis/repeat/internal/config"
	"github.com/deixis/repeat/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// setup creates a full repeat MCP server + client over in-memory transports.
func setup(t *testing.T, cfg *config.Config) (*mcp.ClientSession, string) {
	t.Helper()
	return setupWithStore(t, cfg, func(dir string) report.Store {
		return report.NewLRUStore(5, report.NewDiskStore(filepath.Join(dir, ".batches")))
	})
}

func setupWithStore(t *testing.T, cfg *config.Config, newStore func(dir string) report.Store) (*mcp.ClientSession, string) {
	t.Helper()
	ctx := context.Background()

	dir := t.TempDir()
	loaded := &config.LoadResult{Config: cfg, Root: dir}

	server := NewServer(loaded, newStore(dir))

	ct, st := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}

	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})

	return cs, dir
}

func shellConfig(script string, count int) *config.Config {
	cfg := &config.Config{RawCommand: []string{"sh", "-c", script}}
	cfg.SetCount(count)
	return cfg
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return res
}

func resultText(r *mcp.CallToolResult) string {
	var parts []string
	for _, c := range r.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func batchID(t *testing.T, text string) string {
	t.Helper()
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "Batch: ") {
			return strings.TrimPrefix(line, "Batch: ")
		}
	}
	t.Fatalf("no Batch ID found in output:\n%s", text)
	return ""
}

// --- repeat_config ---

func TestRepeatConfig_Defaults(t *testing.T) {
	cs, dir := setup(t, &config.Config{})
	res := callTool(t, cs, "repeat_config", nil)
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	for _, want := range []string{
		"Command: node lib/integrationTests/run.js",
		"Count: 20",
		"Concurrency: unbounded",
		"Failure policy: exit1",
		"DEBUG=waggle*,nectar:test*",
		filepath.Join(dir, "results.txt"),
		filepath.Join(dir, "resultsSync.txt"),
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got:\n%s", want, text)
		}
	}
}

// --- repeat_run ---

func TestRepeatRun_Concurrent(t *testing.T) {
	cs, dir := setup(t, shellConfig("echo hi; exit 1", 3))
	res := callTool(t, cs, "repeat_run", nil)
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.HasPrefix(text, "TEST RAN 3 TIMES. FAILED: 3") {
		t.Errorf("expected header, got:\n%s", text)
	}
	if !strings.Contains(text, "repeat_inspect") {
		t.Errorf("expected repeat_inspect hint, got:\n%s", text)
	}

	data, err := os.ReadFile(filepath.Join(dir, "results.txt"))
	if err != nil {
		t.Fatalf("reading results.txt: %v", err)
	}
	if !strings.HasPrefix(string(data), "TEST RAN 3 TIMES. FAILED: 3\n") {
		t.Errorf("results.txt = %q", data)
	}
}

func TestRepeatRun_SequentialWithOverrides(t *testing.T) {
	cs, dir := setup(t, shellConfig("echo fine", 20))
	res := callTool(t, cs, "repeat_run", map[string]any{"mode": "sequential", "count": 2})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.HasPrefix(text, "TEST RAN 2 TIMES. FAILED: 0") {
		t.Errorf("expected header, got:\n%s", text)
	}
	if !strings.Contains(text, "No failed invocations.") {
		t.Errorf("expected no failures, got:\n%s", text)
	}

	data, err := os.ReadFile(filepath.Join(dir, "resultsSync.txt"))
	if err != nil {
		t.Fatalf("reading resultsSync.txt: %v", err)
	}
	if string(data) != "TEST RAN 2 TIMES. FAILED: 0\n" {
		t.Errorf("resultsSync.txt = %q", data)
	}
}

func TestRepeatRun_UnknownMode(t *testing.T) {
	cs, _ := setup(t, shellConfig("true", 1))
	res := callTool(t, cs, "repeat_run", map[string]any{"mode": "parallel"})
	if !res.IsError {
		t.Error("expected IsError for unknown mode")
	}
}

func TestRepeatRun_SpawnFailure(t *testing.T) {
	cfg := &config.Config{RawCommand: []string{"nonexistent-binary-xyz-123"}}
	cfg.SetCount(2)
	cs, dir := setup(t, cfg)
	res := callTool(t, cs, "repeat_run", nil)
	if !res.IsError {
		t.Fatalf("expected IsError for spawn failure, got:\n%s", resultText(res))
	}
	if _, err := os.Stat(filepath.Join(dir, "results.txt")); !os.IsNotExist(err) {
		t.Errorf("results.txt should not exist after an aborted batch, stat err = %v", err)
	}
}

// brokenStore fails every Save.
type brokenStore struct{}

func (brokenStore) Save(*report.Batch) error { return errors.New("disk full") }

func (brokenStore) Load(id string) (*report.Batch, error) {
	return nil, fmt.Errorf("no batch %s", id)
}

func TestRepeatRun_StoreFailure(t *testing.T) {
	cs, _ := setupWithStore(t, shellConfig("exit 1", 1), func(string) report.Store { return brokenStore{} })
	res := callTool(t, cs, "repeat_run", nil)
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.HasPrefix(text, "TEST RAN 1 TIMES. FAILED: 1") {
		t.Errorf("expected header, got:\n%s", text)
	}
	if !strings.Contains(text, "could not be stored") {
		t.Errorf("expected a storage warning, got:\n%s", text)
	}
	if strings.Contains(text, "repeat_inspect(") {
		t.Errorf("inspect hint offered for an unstored batch:\n%s", text)
	}
}

// --- repeat_history ---

func TestRepeatHistory_Empty(t *testing.T) {
	cs, _ := setup(t, shellConfig("true", 1))
	text := resultText(callTool(t, cs, "repeat_history", nil))
	if !strings.Contains(text, "No batches yet") {
		t.Errorf("expected empty history, got:\n%s", text)
	}
}

func TestRepeatHistory_MostRecentFirst(t *testing.T) {
	cs, _ := setup(t, shellConfig("true", 1))
	first := batchID(t, resultText(callTool(t, cs, "repeat_run", nil)))
	second := batchID(t, resultText(callTool(t, cs, "repeat_run", map[string]any{"mode": "sequential"})))

	res := callTool(t, cs, "repeat_history", nil)
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 batches, got:\n%s", text)
	}
	if !strings.HasPrefix(lines[0], second) || !strings.HasPrefix(lines[1], first) {
		t.Errorf("expected %s then %s, got:\n%s", second, first, text)
	}
	if !strings.Contains(lines[0], "sequential") {
		t.Errorf("expected the sequential batch first, got:\n%s", text)
	}
}

func TestRepeatHistory_StoreWithoutHistory(t *testing.T) {
	cs, _ := setupWithStore(t, shellConfig("true", 1), func(string) report.Store { return brokenStore{} })
	text := resultText(callTool(t, cs, "repeat_history", nil))
	if !strings.Contains(text, "No batch history") {
		t.Errorf("expected no-history message, got:\n%s", text)
	}
}

// --- repeat_inspect ---

func TestRepeatInspect_MissingBatchID(t *testing.T) {
	cs, _ := setup(t, &config.Config{})
	_, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "repeat_inspect",
		Arguments: map[string]any{"index": 0},
	})
	if err == nil {
		t.Error("expected error for missing batch_id")
	}
}

func TestRepeatInspect_InvalidBatchID(t *testing.T) {
	cs, _ := setup(t, &config.Config{})
	res := callTool(t, cs, "repeat_inspect", map[string]any{"batch_id": "nonexistent-id"})
	if !res.IsError {
		t.Error("expected IsError for invalid batch_id")
	}
}

func TestRepeatInspect_AfterRun(t *testing.T) {
	cs, _ := setup(t, shellConfig("echo visible-stdout; echo visible-stderr >&2; exit 1", 2))
	runText := resultText(callTool(t, cs, "repeat_run", map[string]any{"mode": "sequential"}))
	id := batchID(t, runText)

	list := callTool(t, cs, "repeat_inspect", map[string]any{"batch_id": id, "failed_only": true})
	listText := resultText(list)
	if list.IsError {
		t.Fatalf("unexpected error: %s", listText)
	}
	if strings.Count(listText, "FAIL exit=") != 2 {
		t.Errorf("expected 2 failed invocations, got:\n%s", listText)
	}

	one := callTool(t, cs, "repeat_inspect", map[string]any{"batch_id": id, "index": 1})
	oneText := resultText(one)
	if one.IsError {
		t.Fatalf("unexpected error: %s", oneText)
	}
	for _, want := range []string{"Invocation 1: FAIL (exit 1", "visible-stdout", "visible-stderr"} {
		if !strings.Contains(oneText, want) {
			t.Errorf("expected %q in output, got:\n%s", want, oneText)
		}
	}

	missing := callTool(t, cs, "repeat_inspect", map[string]any{"batch_id": id, "index": 9})
	if !missing.IsError {
		t.Error("expected IsError for out-of-range index")
	}
}
