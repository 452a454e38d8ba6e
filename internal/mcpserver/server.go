// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the Scrivener importer to LLM and editor integrations via
// stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/scrivex/internal"
	"github.com/starford/scrivex/internal/catalog"
	"github.com/starford/scrivex/internal/codex"
	"github.com/starford/scrivex/internal/models"
	"github.com/starford/scrivex/internal/rtf"
	"github.com/starford/scrivex/internal/scrivx"
)

// Server wraps the MCP server with importer tools.
type Server struct {
	mcp    *server.MCPServer
	cfg    *internal.Config
	logger *slog.Logger
}

// New creates an MCP server with all importer tools registered. cfg
// supplies the defaults tools fall back to when a call omits options.
func New(cfg *internal.Config) *Server {
	s := &Server{
		cfg: cfg,
		// Tool handlers must not touch stdout: it carries the protocol.
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	s.mcp = server.NewMCPServer(
		"Scrivex",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("preview_import",
		mcp.WithDescription("List the files an import would create, without writing anything."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Path to the .scriv package")),
		mcp.WithString("format", mcp.Description("Output format: markdown, yaml, or json")),
		mcp.WithString("index_depth", mcp.Description("Levels that get their own index document")),
	), s.previewImport)

	s.mcp.AddTool(mcp.NewTool("import_project",
		mcp.WithDescription("Convert a Scrivener project to a Codex content tree on disk."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Path to the .scriv package")),
		mcp.WithString("output", mcp.Required(), mcp.Description("Output directory")),
		mcp.WithString("format", mcp.Description("Output format: markdown, yaml, or json")),
		mcp.WithString("index_depth", mcp.Description("Levels that get their own index document")),
	), s.importProject)

	s.mcp.AddTool(mcp.NewTool("project_structure",
		mcp.WithDescription("Show the binder outline of a Scrivener project: titles, kinds, labels, statuses."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Path to the .scriv package")),
	), s.projectStructure)

	s.mcp.AddTool(mcp.NewTool("last_run",
		mcp.WithDescription("Show the most recent import recorded in the run catalog, with its files."),
	), s.lastRun)

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

// callOptions extracts per-call overrides, falling back to the server
// configuration.
func (s *Server) callOptions(req mcp.CallToolRequest) (codex.Format, int, error) {
	formatName := s.cfg.Import.Format
	if f, err := req.RequireString("format"); err == nil && f != "" {
		formatName = f
	}
	format, err := codex.ParseFormat(formatName)
	if err != nil {
		return "", 0, err
	}

	depth := s.cfg.Import.IndexDepth
	if d, err := req.RequireString("index_depth"); err == nil && d != "" {
		n, convErr := strconv.Atoi(d)
		if convErr != nil || n < 0 {
			return "", 0, fmt.Errorf("invalid index_depth %q", d)
		}
		depth = n
	}
	return format, depth, nil
}

// load parses and resolves the source package.
func (s *Server) load(source string) (*models.Project, error) {
	if err := scrivx.ValidatePackage(source); err != nil {
		return nil, err
	}
	parser, err := scrivx.NewParser(source)
	if err != nil {
		return nil, err
	}
	project, err := parser.Parse()
	if err != nil {
		return nil, err
	}
	scrivx.ResolveMetadata(project)
	return project, nil
}

// project runs the writer over a loaded project.
func (s *Server) project(ctx context.Context, p *models.Project, outputDir string, format codex.Format, depth int, dryRun bool) models.WriteResult {
	if !dryRun {
		method, _ := rtf.ParseMethod(s.cfg.RTF.Method)
		conv := rtf.NewConverter(method, rtf.Options{
			Timeout: time.Duration(s.cfg.RTF.TimeoutSeconds) * time.Second,
			Logger:  s.logger,
		})
		p.WalkText(func(n *models.BinderNode) {
			if n.HasContent() {
				n.ConvertedBody = conv.Convert(ctx, n.ContentPath)
			}
		})
	}

	writer := codex.NewWriter(codex.WriterOptions{
		OutputDir:  outputDir,
		Format:     format,
		DryRun:     dryRun,
		IndexDepth: depth,
		Types:      codex.TypeSetsFromLists(s.cfg.Import.Containers, s.cfg.Import.Content),
		Logger:     s.logger,
	})
	return writer.WriteNested(p)
}

func (s *Server) previewImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, depth, err := s.callOptions(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	p, err := s.load(source)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := s.project(ctx, p, ".", format, depth, true)
	out, _ := json.MarshalIndent(map[string]any{
		"files":     result.Paths,
		"fileCount": len(result.Paths),
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) importProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	output, err := req.RequireString("output")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, depth, err := s.callOptions(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	p, err := s.load(source)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := s.project(ctx, p, output, format, depth, false)
	out, _ := json.MarshalIndent(map[string]any{
		"success":        len(result.Errors) == 0,
		"outputDir":      output,
		"filesGenerated": result.FilesWritten,
		"errors":         result.Errors,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) projectStructure(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.load(source)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", p.Meta.Title)
	writeOutline(&b, p.Items, 0)
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) lastRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.cfg.Catalog.Path == "" {
		return mcp.NewToolResultError("no run catalog configured"), nil
	}

	db, err := catalog.Open(s.cfg.Catalog.Path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer db.Close()

	run, err := db.LastRun()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if run == nil {
		return mcp.NewToolResultText("no runs recorded"), nil
	}
	files, err := db.FilesForRun(run.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	out, _ := json.MarshalIndent(map[string]any{
		"source":       run.Source,
		"output":       run.Output,
		"format":       run.Format,
		"mode":         run.Mode,
		"filesWritten": run.FilesWritten,
		"errorCount":   run.ErrorCount,
		"finishedAt":   run.FinishedAt,
		"files":        paths,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func writeOutline(b *strings.Builder, items []*models.BinderNode, indent int) {
	for _, it := range items {
		b.WriteString(strings.Repeat("  ", indent))
		fmt.Fprintf(b, "- %s (%s)", it.Title, it.Kind)
		if it.Label != "" {
			fmt.Fprintf(b, " (%s)", it.Label)
		}
		if it.Status != "" {
			fmt.Fprintf(b, " [%s]", it.Status)
		}
		b.WriteString("\n")
		writeOutline(b, it.Children, indent+1)
	}
}
