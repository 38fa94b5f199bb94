package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/fme/internal/noteservice"
	"github.com/starford/fme/internal/testutil"
)

const tagged = "---\ntags:\n  - a\n---\nbody\n"

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir, store := testutil.TestNotes(t, map[string]string{
		"a.md":     tagged,
		"b.md":     "no header\n",
		"sub/c.md": tagged,
	})
	svc := noteservice.NewService(store,
		noteservice.WithJournal(testutil.TestJournal(t)),
		noteservice.WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))))
	return New(svc, "test"), dir
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process call helper, so dispatch to the handlers directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "read_frontmatter":
		result, err = srv.readFrontmatter(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "preview_operation":
		result, err = srv.previewOperation(ctx, req)
	case "apply_operation":
		result, err = srv.applyOperation(ctx, req)
	case "list_runs":
		result, err = srv.listRuns(ctx, req)
	case "undo_run":
		result, err = srv.undoRun(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestReadFrontmatter(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "read_frontmatter", map[string]any{"path": "a.md"})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	var fm noteservice.NoteFrontmatter
	if err := json.Unmarshal([]byte(resultText(r)), &fm); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !fm.HasFrontmatter || len(fm.Tags) != 1 || fm.Tags[0] != "a" {
		t.Errorf("frontmatter = %+v", fm)
	}

	r = callTool(t, srv, "read_frontmatter", map[string]any{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestListNotes(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_notes", map[string]any{})
	if got := resultText(r); got != "a.md\nb.md" {
		t.Errorf("flat list = %q", got)
	}
	r = callTool(t, srv, "list_notes", map[string]any{"recursive": true})
	if got := resultText(r); got != "a.md\nb.md\nsub/c.md" {
		t.Errorf("recursive list = %q", got)
	}
}

func TestPreviewOperation(t *testing.T) {
	srv, dir := testServer(t)

	r := callTool(t, srv, "preview_operation", map[string]any{
		"op":      "replace",
		"args":    []any{"a", "z"},
		"content": tagged,
	})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	if got := resultText(r); got != "---\ntags:\n  - z\n---\nbody\n" {
		t.Errorf("preview = %q", got)
	}
	if got := testutil.ReadNote(t, dir, "a.md"); got != tagged {
		t.Errorf("preview wrote a.md: %q", got)
	}

	r = callTool(t, srv, "preview_operation", map[string]any{"op": "replace", "args": []any{"a"}, "content": tagged})
	if !r.IsError {
		t.Error("expected error for wrong arity")
	}
	r = callTool(t, srv, "preview_operation", map[string]any{"op": "rename", "content": tagged})
	if !r.IsError {
		t.Error("expected error for unknown operation")
	}
}

func TestApplyAndUndo(t *testing.T) {
	srv, dir := testServer(t)

	r := callTool(t, srv, "apply_operation", map[string]any{
		"op":        "add",
		"args":      []any{"b"},
		"recursive": true,
	})
	if r.IsError {
		t.Fatalf("apply error: %s", resultText(r))
	}
	var report noteservice.Report
	if err := json.Unmarshal([]byte(resultText(r)), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(report.Updated) != 3 || report.RunID == "" {
		t.Fatalf("report = %+v", report)
	}
	if got := testutil.ReadNote(t, dir, "b.md"); !strings.HasPrefix(got, "---\nid: \"\"\naliases: []\ntags:\n  - b\n---\n") {
		t.Errorf("b.md = %q", got)
	}

	r = callTool(t, srv, "list_runs", map[string]any{"limit": float64(5)})
	if !strings.Contains(resultText(r), report.RunID) {
		t.Errorf("list_runs missing run %s: %s", report.RunID, resultText(r))
	}

	r = callTool(t, srv, "undo_run", map[string]any{})
	if r.IsError {
		t.Fatalf("undo error: %s", resultText(r))
	}
	if got := testutil.ReadNote(t, dir, "b.md"); got != "no header\n" {
		t.Errorf("b.md after undo = %q", got)
	}

	r = callTool(t, srv, "undo_run", map[string]any{"run_id": report.RunID})
	if !r.IsError {
		t.Error("expected error when undoing twice")
	}
}

func TestOperationsResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readOperationsResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	text := contents[0].(mcp.TextResourceContents).Text
	for _, op := range []string{"add", "remove", "replace", "clear", "remove-aliases", "remove-id"} {
		if !strings.Contains(text, "`"+op+"`") {
			t.Errorf("guide missing %s", op)
		}
	}
}
