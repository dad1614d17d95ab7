// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes keyline tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/keyline/internal/docservice"
	"github.com/starford/keyline/internal/models"
)

const formatURI = "keyline://document-format"

// Server wraps the MCP server with keyline tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all keyline tools registered.
func New(svc *docservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"keyline",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Full-text search through document names, track names, selectors and trigger scripts."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read a saved timeline document as JSON."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document (e.g. scenes/walk.am.json)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List documents in the library with their length and track count."),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
		mcp.WithString("sort", mcp.Description("Sort field"), mcp.Enum("updated", "name", "path", "length")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("get_targets",
		mcp.WithDescription("Find all documents that animate the given CSS selector."),
		mcp.WithString("selector", mcp.Required(), mcp.Description("CSS selector, e.g. #head")),
	), s.getTargets)

	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create a new timeline document at the specified path. "+
			"The document MUST follow the keyline document format. Read the contract first via "+
			"the get_document_contract tool or the "+formatURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new document (.am.json is appended when missing)")),
		mcp.WithString("document", mcp.Required(), mcp.Description("Document JSON following the keyline format contract")),
	), s.createDocument)

	s.mcp.AddTool(mcp.NewTool("move_document",
		mcp.WithDescription("Move a document to a new library path. Fails when the target exists."),
		mcp.WithString("from", mcp.Required(), mcp.Description("Current document path")),
		mcp.WithString("to", mcp.Required(), mcp.Description("New document path")),
	), s.moveDocument)

	s.mcp.AddTool(mcp.NewTool("import_document",
		mcp.WithDescription("Import a document from an http(s) URL or a base64 data URI into the library."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:application/json;base64,... URI")),
		mcp.WithString("path", mcp.Description("Target path; derived from the URL when empty")),
	), s.importDocument)

	s.mcp.AddTool(mcp.NewTool("get_document_contract",
		mcp.WithDescription("Returns the keyline document format contract. "+
			"Call this before creating or editing documents to ensure correct structure."),
	), s.getDocumentContract)

	s.mcp.AddTool(mcp.NewTool("add_track",
		mcp.WithDescription("Append a CSS track that animates the given selectors."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path")),
		mcp.WithArray("selectors", mcp.Required(), mcp.Description("CSS selectors"), mcp.WithStringItems()),
		mcp.WithString("name", mcp.Description("Track name")),
	), s.addTrack)

	s.mcp.AddTool(mcp.NewTool("add_key",
		mcp.WithDescription("Insert a keyframe into a track parameter."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path")),
		mcp.WithNumber("track", mcp.Required(), mcp.Description("Track index")),
		mcp.WithString("param", mcp.Required(), mcp.Description("Parameter name, e.g. transform")),
		mcp.WithNumber("time", mcp.Required(), mcp.Description("Key time in milliseconds")),
		mcp.WithString("value", mcp.Required(), mcp.Description(`Value JSON: a transform object such as {"tx":10} or a quoted CSS string`)),
		mcp.WithString("ease", mcp.Description("Ease id (default linear)")),
	), s.addKey)

	s.mcp.AddTool(mcp.NewTool("set_trigger",
		mcp.WithDescription("Add or replace a trigger script."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Trigger id")),
		mcp.WithNumber("time", mcp.Required(), mcp.Description("Trigger time in milliseconds")),
		mcp.WithString("script", mcp.Required(), mcp.Description("JavaScript to run")),
	), s.setTrigger)

	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the last edit made to a document in this server."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path")),
	), s.undo)

	s.mcp.AddTool(mcp.NewTool("compile_document",
		mcp.WithDescription("Compile a document into its JavaScript playback module."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path")),
		mcp.WithString("module", mcp.Description("Page-script key of the module")),
	), s.compileDocument)

	s.mcp.AddTool(mcp.NewTool("export_document",
		mcp.WithDescription("Compile a document and write the module to the exports directory."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path")),
		mcp.WithString("module", mcp.Description("Page-script key of the module")),
	), s.exportDocument)

	// Resource: document format contract.
	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Document Format Contract",
			mcp.WithResourceDescription("Saved timeline format that all documents must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.GetDocument(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return jsonResult(doc.Document), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.svc.ListDocuments(ctx, req.GetInt("limit", 0), req.GetInt("offset", 0), req.GetString("sort", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"documents": items, "total": total}), nil
}

func (s *Server) getTargets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sel, err := req.RequireString("selector")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	docs, err := s.svc.Targeting(ctx, strings.TrimSpace(sel))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(docs) == 0 {
		return mcp.NewToolResultText("no documents target " + sel), nil
	}
	return mcp.NewToolResultText(strings.Join(docs, "\n")), nil
}

func (s *Server) createDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.CreateDocument(ctx, path, []byte(content))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", doc.Path)), nil
}

func (s *Server) moveDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.MoveDocument(ctx, from, to)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("moved: %s", doc.Path)), nil
}

func (s *Server) getDocumentContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormatContract), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}

func (s *Server) addTrack(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	selectors, err := req.RequireStringSlice("selectors")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.AddTrack(ctx, path, docservice.TrackInput{
		Name:      req.GetString("name", ""),
		Selectors: selectors,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("added track %d to %s", len(res.Document.Sequences)-1, res.Path)), nil
}

func (s *Server) addKey(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	idx, err := req.RequireInt("track")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	param, err := req.RequireString("param")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	at, err := req.RequireFloat("time")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var v models.Value
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid value: %v", err)), nil
	}
	key := models.Key{Value: v, Time: at, Ease: req.GetString("ease", "")}
	res, err := s.svc.AddKey(ctx, path, idx, param, key)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", res.Step, res.Path)), nil
}

func (s *Server) setTrigger(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	at, err := req.RequireFloat("time")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	script, err := req.RequireString("script")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.SetTrigger(ctx, path, id, models.TriggerDef{Time: at, Script: script})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("trigger %s set: %s", id, res.Path)), nil
}

func (s *Server) undo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Undo(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("undone %s: %s", res.Step, res.Path)), nil
}

func (s *Server) compileDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.svc.Compile(ctx, path, req.GetString("module", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if out.HasErrors() {
		return jsonResult(out), nil
	}
	return mcp.NewToolResultText(out.Script), nil
}

func (s *Server) exportDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.svc.Export(ctx, path, req.GetString("module", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"file":        out.File,
		"size":        out.Size,
		"module":      out.ModuleName,
		"diagnostics": out.Diagnostics,
	}), nil
}
