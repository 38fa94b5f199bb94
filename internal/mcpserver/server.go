// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the frontmatter operations as tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/fme/internal/noteservice"
	"github.com/starford/fme/internal/transform"
)

// Server wraps the MCP server with the fme tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"fme",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	opDesc := "Operation name: " + strings.Join(transform.Names(), ", ")

	s.mcp.AddTool(mcp.NewTool("read_frontmatter",
		mcp.WithDescription("Read the decoded YAML frontmatter (id, aliases, tags and other keys) of a note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readFrontmatter)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List the Markdown notes an operation would visit."),
		mcp.WithBoolean("recursive", mcp.Description("Include subdirectories")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("preview_operation",
		mcp.WithDescription("Apply an operation to the given document text and return the result. Nothing is written. "+
			"Read the fme://operations resource for the operation reference."),
		mcp.WithString("op", mcp.Required(), mcp.Description(opDesc)),
		mcp.WithArray("args", mcp.Description("Operation arguments (tags, or from and to for replace)"), mcp.WithStringItems()),
		mcp.WithString("content", mcp.Required(), mcp.Description("Full document text including frontmatter")),
	), s.previewOperation)

	s.mcp.AddTool(mcp.NewTool("apply_operation",
		mcp.WithDescription("Apply an operation to every note in the served directory and return the report."),
		mcp.WithString("op", mcp.Required(), mcp.Description(opDesc)),
		mcp.WithArray("args", mcp.Description("Operation arguments (tags, or from and to for replace)"), mcp.WithStringItems()),
		mcp.WithBoolean("recursive", mcp.Description("Include subdirectories")),
		mcp.WithBoolean("dry_run", mcp.Description("Report what would change without writing")),
	), s.applyOperation)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recent runs recorded in the change journal, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 20)")),
	), s.listRuns)

	s.mcp.AddTool(mcp.NewTool("undo_run",
		mcp.WithDescription("Restore the files changed by a run. Files edited after the run are left alone."),
		mcp.WithString("run_id", mcp.Description("Run ID; the latest run when omitted")),
	), s.undoRun)

	s.mcp.AddResource(
		mcp.NewResource(operationsURI, "Frontmatter Operations",
			mcp.WithResourceDescription("Reference of the supported frontmatter operations and their rules."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readOperationsResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) readFrontmatter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fm, err := s.svc.Frontmatter(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(fm), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metas, err := s.svc.List(ctx, boolArg(req, "recursive"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(metas) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	paths := make([]string, len(metas))
	for i, m := range metas {
		paths[i] = m.Path
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) previewOperation(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	op, errResult := operationArg(req)
	if errResult != nil {
		return errResult, nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _, err := noteservice.Preview(op, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) applyOperation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	op, errResult := operationArg(req)
	if errResult != nil {
		return errResult, nil
	}
	report, err := s.svc.Apply(ctx, noteservice.Request{
		Op:        op,
		Recursive: boolArg(req, "recursive"),
		DryRun:    boolArg(req, "dry_run"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(report), nil
}

func (s *Server) listRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := 0
	if v, ok := req.GetArguments()["limit"].(float64); ok {
		limit = int(v)
	}
	runs, err := s.svc.Runs(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(runs), nil
}

func (s *Server) undoRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := req.GetArguments()["run_id"].(string)
	report, err := s.svc.Undo(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(report), nil
}

func (s *Server) readOperationsResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      operationsURI,
			MIMEType: "text/markdown",
			Text:     OperationsGuide(),
		},
	}, nil
}

// operationArg builds the operation named by the "op" and "args" arguments.
func operationArg(req mcp.CallToolRequest) (transform.Operation, *mcp.CallToolResult) {
	name, err := req.RequireString("op")
	if err != nil {
		return transform.Operation{}, mcp.NewToolResultError(err.Error())
	}
	var args []string
	if raw, ok := req.GetArguments()["args"].([]any); ok {
		for _, a := range raw {
			str, ok := a.(string)
			if !ok {
				return transform.Operation{}, mcp.NewToolResultError(fmt.Sprintf("args: expected strings, got %T", a))
			}
			args = append(args, str)
		}
	}
	op, err := transform.New(name, args)
	if err != nil {
		return transform.Operation{}, mcp.NewToolResultError(err.Error())
	}
	return op, nil
}

func boolArg(req mcp.CallToolRequest, key string) bool {
	v, _ := req.GetArguments()[key].(bool)
	return v
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}
