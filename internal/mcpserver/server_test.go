package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/keyline/internal/docservice"
	"github.com/starford/keyline/internal/models"
	"github.com/starford/keyline/internal/testutil"
)

func testServer(t *testing.T) (*Server, *docservice.Service) {
	t.Helper()
	_, store := testutil.TestLibrary(t)
	_, exports := testutil.TestExports(t)
	svc := docservice.NewService(store, testutil.TestDB(t), docservice.Options{Exports: exports})
	t.Cleanup(svc.Close)
	return New(svc, "test"), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct call helper, so the handlers are invoked directly.
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"search_documents":      srv.searchDocuments,
		"read_document":         srv.readDocument,
		"list_documents":        srv.listDocuments,
		"get_targets":           srv.getTargets,
		"create_document":       srv.createDocument,
		"move_document":         srv.moveDocument,
		"import_document":       srv.importDocument,
		"get_document_contract": srv.getDocumentContract,
		"add_track":             srv.addTrack,
		"add_key":               srv.addKey,
		"set_trigger":           srv.setTrigger,
		"undo":                  srv.undo,
		"compile_document":      srv.compileDocument,
		"export_document":       srv.exportDocument,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
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

func create(t *testing.T, srv *Server, path string, selectors ...string) {
	t.Helper()
	r := callTool(t, srv, "create_document", map[string]any{
		"path":     path,
		"document": string(testutil.Document(selectors...)),
	})
	if r.IsError {
		t.Fatalf("create %s: %s", path, resultText(r))
	}
}

func TestCreateAndReadDocument(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_document", map[string]any{
		"path":     "scenes/walk",
		"document": string(testutil.Document("#head")),
	})
	if text := resultText(r); text != "created: scenes/walk.am.json" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "read_document", map[string]any{"path": "scenes/walk.am.json"})
	if r.IsError {
		t.Fatalf("read: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"#head"`) {
		t.Errorf("read result = %q", resultText(r))
	}
}

func TestCreateDocument_Malformed(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_document", map[string]any{"path": "bad", "document": `{"sequences":"x"}`})
	if !r.IsError {
		t.Error("expected error for malformed document")
	}
}

func TestReadDocumentMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_document", map[string]any{"path": "nope.am.json"})
	if !r.IsError {
		t.Error("expected error for missing document")
	}
}

func TestMoveDocument(t *testing.T) {
	srv, _ := testServer(t)
	create(t, srv, "a", "#a")
	create(t, srv, "b", "#b")

	r := callTool(t, srv, "move_document", map[string]any{"from": "a", "to": "old/a"})
	if text := resultText(r); text != "moved: old/a.am.json" {
		t.Errorf("move result = %q", text)
	}
	r = callTool(t, srv, "move_document", map[string]any{"from": "b", "to": "old/a"})
	if !r.IsError {
		t.Error("expected error moving onto an existing document")
	}
	r = callTool(t, srv, "move_document", map[string]any{"from": "b"})
	if !r.IsError {
		t.Error("expected error without target")
	}
}

func TestListAndSearch(t *testing.T) {
	srv, _ := testServer(t)
	create(t, srv, "a", "#alpha")
	create(t, srv, "b", "#beta")

	r := callTool(t, srv, "list_documents", map[string]any{"sort": "path"})
	var list struct {
		Documents []struct {
			Path string `json:"path"`
		} `json:"documents"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &list); err != nil {
		t.Fatalf("list result: %v", err)
	}
	if list.Total != 2 || list.Documents[0].Path != "a.am.json" {
		t.Errorf("list = %+v", list)
	}

	r = callTool(t, srv, "search_documents", map[string]any{"query": "beta"})
	if !strings.Contains(resultText(r), "b.am.json") || strings.Contains(resultText(r), "a.am.json") {
		t.Errorf("search = %s", resultText(r))
	}
}

func TestGetTargets(t *testing.T) {
	srv, _ := testServer(t)
	create(t, srv, "a", "#head")
	create(t, srv, "b", "#head", "#arm")

	r := callTool(t, srv, "get_targets", map[string]any{"selector": "#head"})
	if text := resultText(r); text != "a.am.json\nb.am.json" {
		t.Errorf("targets = %q", text)
	}
	r = callTool(t, srv, "get_targets", map[string]any{"selector": "#leg"})
	if !strings.HasPrefix(resultText(r), "no documents") {
		t.Errorf("empty targets = %q", resultText(r))
	}
}

func TestEditTools(t *testing.T) {
	srv, svc := testServer(t)
	create(t, srv, "e", "#a")

	r := callTool(t, srv, "add_track", map[string]any{"path": "e", "selectors": []any{"#b"}, "name": "b"})
	if r.IsError || resultText(r) != "added track 1 to e.am.json" {
		t.Fatalf("add_track = %q", resultText(r))
	}

	r = callTool(t, srv, "add_key", map[string]any{
		"path":  "e",
		"track": 1,
		"param": "transform",
		"time":  250,
		"value": `{"tx":5}`,
	})
	if r.IsError {
		t.Fatalf("add_key: %s", resultText(r))
	}

	r = callTool(t, srv, "add_key", map[string]any{
		"path": "e", "track": 1, "param": "transform", "time": 300, "value": "{",
	})
	if !r.IsError {
		t.Error("expected error for invalid value")
	}

	r = callTool(t, srv, "set_trigger", map[string]any{"path": "e", "id": "go", "time": 100, "script": "go()"})
	if r.IsError {
		t.Fatalf("set_trigger: %s", resultText(r))
	}

	r = callTool(t, srv, "undo", map[string]any{"path": "e"})
	if r.IsError {
		t.Fatalf("undo: %s", resultText(r))
	}
	detail, err := svc.GetDocument(context.Background(), "e")
	if err != nil {
		t.Fatal(err)
	}
	if models.Count(detail.Document.TriggerMap) != 0 {
		t.Errorf("trigger survived undo")
	}
	if len(detail.Document.Sequences) != 2 {
		t.Errorf("tracks = %d, want 2", len(detail.Document.Sequences))
	}
}

func TestCompileAndExport(t *testing.T) {
	srv, _ := testServer(t)
	create(t, srv, "c", "#a")

	r := callTool(t, srv, "compile_document", map[string]any{"path": "c", "module": "demo"})
	if r.IsError || !strings.Contains(resultText(r), "root.am.pageScripts['demo']") {
		t.Errorf("compile = %s", resultText(r))
	}

	r = callTool(t, srv, "export_document", map[string]any{"path": "c"})
	if r.IsError || !strings.Contains(resultText(r), `"file": "c.am.js"`) {
		t.Errorf("export = %s", resultText(r))
	}
}

func TestImportDocument_DataURI(t *testing.T) {
	srv, svc := testServer(t)
	uri := "data:application/json;base64," + base64.StdEncoding.EncodeToString(testutil.Document("#x"))

	r := callTool(t, srv, "import_document", map[string]any{"url": uri, "path": "in/one.am.json"})
	if r.IsError {
		t.Fatalf("import: %s", resultText(r))
	}
	var res importResult
	_ = json.Unmarshal([]byte(resultText(r)), &res)
	if res.Path != "in/one.am.json" || res.Tracks != 1 {
		t.Errorf("import result = %+v", res)
	}

	r = callTool(t, srv, "import_document", map[string]any{"url": uri})
	if r.IsError {
		t.Fatalf("import without path: %s", resultText(r))
	}
	_ = json.Unmarshal([]byte(resultText(r)), &res)
	if !strings.HasPrefix(res.Path, "imports/") {
		t.Errorf("generated path = %q", res.Path)
	}
	if _, err := svc.GetDocument(context.Background(), res.Path); err != nil {
		t.Errorf("imported document missing: %v", err)
	}
}

func TestImportDocument_Rejects(t *testing.T) {
	srv, _ := testServer(t)
	for name, uri := range map[string]string{
		"not base64":   "data:application/json,{}",
		"wrong mime":   "data:image/png;base64,AAAA",
		"not json":     "data:application/json;base64," + base64.StdEncoding.EncodeToString([]byte("nope")),
		"loopback":     "http://127.0.0.1/doc.am.json",
		"metadata":     "http://169.254.169.254/latest",
		"bad scheme":   "ftp://example.com/doc.am.json",
		"no separator": "data:application/json;base64",
	} {
		r := callTool(t, srv, "import_document", map[string]any{"url": uri})
		if !r.IsError {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestFilenameFromURL(t *testing.T) {
	if got := filenameFromURL("https://cdn.example.com/anim/walk.am.json?v=2"); got != "walk.am.json" {
		t.Errorf("filename = %q", got)
	}
	if got := filenameFromURL("https://cdn.example.com/anim/"); !strings.HasSuffix(got, ".am.json") || len(got) < 36 {
		t.Errorf("fallback filename = %q", got)
	}
	if got := sanitizeFilename(`..\..\evil name.am.json`); got != "evil_name.am.json" {
		t.Errorf("sanitized = %q", got)
	}
}

func TestDocumentContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_document_contract", nil)
	if !strings.Contains(resultText(r), "css_sequ_type") {
		t.Error("contract missing track type")
	}

	contents, err := srv.readFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != formatURI {
		t.Errorf("resource contents = %+v", contents[0])
	}
}
