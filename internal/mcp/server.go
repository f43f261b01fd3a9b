package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/joescharf/codespace/internal/models"
	"github.com/joescharf/codespace/internal/mutation"
	"github.com/joescharf/codespace/internal/pathcodec"
	"github.com/joescharf/codespace/internal/runsession"
	"github.com/joescharf/codespace/internal/workspace"
)

// Backend is everything the tools need from the service client.
type Backend interface {
	mutation.Backend
	workspace.Fetcher
	runsession.Runner
	ListProjects(ctx context.Context) ([]*models.Project, error)
}

// Server exposes a codespace backend as MCP tools.
type Server struct {
	client  Backend
	log     *zap.Logger
	version string
}

// NewServer creates the MCP server wrapper.
func NewServer(client Backend, version string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if version == "" {
		version = "dev"
	}
	return &Server{client: client, log: log, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("codespace", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listProjectsTool())
	srv.AddTool(s.treeTool())
	srv.AddTool(s.readFileTool())
	srv.AddTool(s.createEntryTool())
	srv.AddTool(s.deleteEntryTool())
	srv.AddTool(s.runFileTool())
	srv.AddTool(s.buildTool())
	srv.AddTool(s.execTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

func (s *Server) listProjectsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("codespace_list_projects",
		mcp.WithDescription("List all projects. Returns a JSON array with id, name, description and build_command."),
	)
	return tool, s.handleListProjects
}

func (s *Server) handleListProjects(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.client.ListProjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list projects: %v", err)), nil
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	return jsonResult(projects)
}

func (s *Server) treeTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("codespace_tree",
		mcp.WithDescription("List every folder and file of a project as a flat JSON array in tree order. Each item has id, kind, path and depth."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or ID")),
	)
	return tool, s.handleTree
}

type treeItem struct {
	ID    string           `json:"id"`
	Kind  models.EntryKind `json:"kind"`
	Path  string           `json:"path"`
	Depth int              `json:"depth"`
}

func (s *Server) handleTree(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, errResult := s.openView(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	items := []treeItem{}
	workspace.Walk(view.Tree(), func(n *workspace.Node) bool {
		items = append(items, treeItem{ID: n.ID, Kind: n.Kind, Path: n.FullPath(), Depth: n.Depth})
		return true
	})
	return jsonResult(items)
}

func (s *Server) readFileTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("codespace_read_file",
		mcp.WithDescription("Return the content of a file addressed by its full path, e.g. src/main.py."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or ID")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Full path of the file")),
	)
	return tool, s.handleReadFile
}

func (s *Server) handleReadFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, errResult := s.openView(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	f, errResult := fileAt(view, request)
	if errResult != nil {
		return errResult, nil
	}
	return mcp.NewToolResultText(f.Content), nil
}

func (s *Server) createEntryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("codespace_create_entry",
		mcp.WithDescription("Create a file or folder inside an existing folder."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or ID")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Name of the new entry")),
		mcp.WithString("kind", mcp.Description("Entry kind"), mcp.Enum("file", "folder")),
		mcp.WithString("parent_path", mcp.Description("Folder to create the entry in (default /)")),
		mcp.WithString("content", mcp.Description("Initial file content")),
		mcp.WithString("language", mcp.Description("File language; detected from the name when omitted")),
	)
	return tool, s.handleCreateEntry
}

func (s *Server) handleCreateEntry(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: name"), nil
	}
	view, errResult := s.openView(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	gw := mutation.New(s.client, view, s.log)
	entry, err := gw.CreateEntry(ctx, mutation.CreateRequest{
		Kind:       models.EntryKind(request.GetString("kind", string(models.KindFile))),
		Name:       name,
		ParentPath: request.GetString("parent_path", "/"),
		Content:    request.GetString("content", ""),
		Language:   request.GetString("language", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create entry: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"id":   entry.ID(),
		"kind": entry.Kind,
		"path": entry.Path(),
		"name": entry.Name(),
	})
}

func (s *Server) deleteEntryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("codespace_delete_entry",
		mcp.WithDescription("Delete a file, or a folder with everything under it. Requires confirm=true."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or ID")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Full path of the entry")),
		mcp.WithBoolean("confirm", mcp.Description("Must be true to delete")),
	)
	return tool, s.handleDeleteEntry
}

func (s *Server) handleDeleteEntry(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	full, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: path"), nil
	}
	view, errResult := s.openView(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	entry, ok := view.Index().Lookup(full)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no entry at %s", full)), nil
	}

	confirmed := request.GetBool("confirm", false)
	gw := mutation.New(s.client, view, s.log)
	err = gw.DeleteEntry(ctx, entry.ID(), func(models.Entry) bool { return confirmed })
	if errors.Is(err, mutation.ErrCancelled) {
		return mcp.NewToolResultError(fmt.Sprintf("refusing to delete %s without confirm=true", full)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete entry: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted %s", full)), nil
}

func (s *Server) runFileTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("codespace_run_file",
		mcp.WithDescription("Run a file and return the transcript of the run."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or ID")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Full path of the file to run")),
	)
	return tool, s.handleRunFile
}

func (s *Server) handleRunFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, errResult := s.openView(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	f, errResult := fileAt(view, request)
	if errResult != nil {
		return errResult, nil
	}
	rs := runsession.New(s.client, staticFile{f}, view.ProjectID(), s.log)
	if err := rs.RunCurrentFile(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return transcriptResult(rs), nil
}

func (s *Server) buildTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("codespace_build",
		mcp.WithDescription("Run the project's build command and return the transcript."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or ID")),
	)
	return tool, s.handleBuild
}

func (s *Server) handleBuild(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errResult := s.project(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	rs := runsession.New(s.client, nil, p.ID, s.log)
	rs.BuildProject(ctx)
	return transcriptResult(rs), nil
}

func (s *Server) execTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("codespace_exec",
		mcp.WithDescription("Run a shell command in the project's workspace and return the transcript."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or ID")),
		mcp.WithString("command", mcp.Required(), mcp.Description("Command line to run")),
	)
	return tool, s.handleExec
}

func (s *Server) handleExec(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command, err := request.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: command"), nil
	}
	p, errResult := s.project(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	rs := runsession.New(s.client, nil, p.ID, s.log)
	rs.ExecuteCommand(ctx, command)
	return transcriptResult(rs), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// resolveProject finds a project by name first, then by ID.
func (s *Server) resolveProject(ctx context.Context, ref string) (*models.Project, error) {
	projects, err := s.client.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if p.Name == ref {
			return p, nil
		}
	}
	for _, p := range projects {
		if p.ID == ref {
			return p, nil
		}
	}
	return nil, fmt.Errorf("project not found: %s", ref)
}

func (s *Server) project(ctx context.Context, request mcp.CallToolRequest) (*models.Project, *mcp.CallToolResult) {
	ref, err := request.RequireString("project")
	if err != nil {
		return nil, mcp.NewToolResultError("missing required parameter: project")
	}
	p, err := s.resolveProject(ctx, ref)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return p, nil
}

// openView resolves the project and loads a fresh workspace snapshot.
func (s *Server) openView(ctx context.Context, request mcp.CallToolRequest) (*workspace.View, *mcp.CallToolResult) {
	p, errResult := s.project(ctx, request)
	if errResult != nil {
		return nil, errResult
	}
	view := workspace.NewView(s.client, p.ID, s.log)
	if err := view.Refresh(ctx); err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return view, nil
}

func fileAt(view *workspace.View, request mcp.CallToolRequest) (models.File, *mcp.CallToolResult) {
	full, err := request.RequireString("path")
	if err != nil {
		return models.File{}, mcp.NewToolResultError("missing required parameter: path")
	}
	f, ok := view.Index().FileAt(pathcodec.Split(full))
	if !ok {
		return models.File{}, mcp.NewToolResultError(fmt.Sprintf("no file at %s", full))
	}
	return f, nil
}

type staticFile struct{ f models.File }

func (s staticFile) Current() (models.File, bool) { return s.f, true }
func (s staticFile) Buffer() string               { return s.f.Content }

func transcriptResult(rs *runsession.Session) *mcp.CallToolResult {
	return mcp.NewToolResultText(strings.Join(rs.Transcript().Lines(), "\n"))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
