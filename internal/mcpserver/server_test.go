package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/sm/internal/pkgservice"
	"github.com/starford/sm/internal/resolve"
	"github.com/starford/sm/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	w := testutil.TestWorkspace(t)
	svc := pkgservice.NewService(testutil.TestStore(t, w), testutil.TestDB(t), nil)
	if err := svc.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	return New(svc, "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "resolve_package":
		result, err = srv.resolvePackage(ctx, req)
	case "list_packages":
		result, err = srv.listPackages(ctx, req)
	case "search_packages":
		result, err = srv.searchPackages(ctx, req)
	case "read_descriptor":
		result, err = srv.readDescriptor(ctx, req)
	case "get_identifier_contract":
		result, err = srv.getIdentifierContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) == 0 {
		return ""
	}
	if tc, ok := r.Content[0].(mcp.TextContent); ok {
		return tc.Text
	}
	return ""
}

func TestResolvePackage(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "resolve_package", map[string]interface{}{
		"from":       testutil.CallerFile,
		"identifier": "org.pinf.lib",
		"module":     "component",
	})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	var res resolve.Result
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Found.Package != "../../../../../node_modules/org.pinf.lib" {
		t.Errorf("package = %q", res.Found.Package)
	}
	if res.Found.Module != "lib/component.js" {
		t.Errorf("module = %q", res.Found.Module)
	}
}

func TestResolvePackage_Deps(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "resolve_package", map[string]interface{}{
		"from":       testutil.CallerFile,
		"identifier": "github.com~pinf~org.pinf.lib~0/source/installed/master",
	})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"package": "../../../../github.com~pinf~org.pinf.lib~0/source/installed/master"`) {
		t.Errorf("result = %s", resultText(r))
	}
}

func TestResolvePackage_NotFoundListsProbed(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "resolve_package", map[string]interface{}{
		"from":       testutil.CallerFile,
		"identifier": "org.nonexistent.pkg",
	})
	if !r.IsError {
		t.Fatal("expected error for missing package")
	}
	if !strings.Contains(resultText(r), "probed:") || !strings.Contains(resultText(r), "node_modules") {
		t.Errorf("error text = %q", resultText(r))
	}
}

func TestResolvePackage_MissingArgs(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "resolve_package", map[string]interface{}{"from": testutil.CallerFile})
	if !r.IsError {
		t.Error("expected error when identifier is missing")
	}
}

func TestListPackages(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "list_packages", map[string]interface{}{"area": "flat"})
	if text := resultText(r); text != testutil.FlatPackage+"\t0.1.4" {
		t.Errorf("flat list = %q", text)
	}

	r = callTool(t, srv, "list_packages", map[string]interface{}{"key": "github.com~pinf~org.pinf.lib"})
	if text := resultText(r); text != testutil.DepsPackage+"\t0.1.4" {
		t.Errorf("installs = %q", text)
	}

	r = callTool(t, srv, "list_packages", map[string]interface{}{"key": "org.unknown"})
	if text := resultText(r); text != "no packages found" {
		t.Errorf("empty list = %q", text)
	}

	r = callTool(t, srv, "list_packages", map[string]interface{}{"area": "vendor"})
	if !r.IsError {
		t.Error("expected error for unknown area")
	}
}

func TestSearchPackages(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "search_packages", map[string]interface{}{"query": "pinf"})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), testutil.FlatPackage) {
		t.Errorf("search result missing flat install: %s", resultText(r))
	}
}

func TestReadDescriptor(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "read_descriptor", map[string]interface{}{"path": testutil.FlatPackage})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "0.1.4") {
		t.Errorf("descriptor = %s", resultText(r))
	}

	r = callTool(t, srv, "read_descriptor", map[string]interface{}{"path": "node_modules/nope"})
	if !r.IsError {
		t.Error("expected error for missing descriptor")
	}
}

func TestGetIdentifierContract(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "get_identifier_contract", nil)
	text := resultText(r)
	if text != IdentifierContract {
		t.Error("contract text mismatch")
	}
	for _, want := range []string{"node_modules", ".deps", "lib/component.js"} {
		if !strings.Contains(text, want) {
			t.Errorf("contract missing %q", want)
		}
	}
}

func TestContractResource(t *testing.T) {
	srv := testServer(t)

	contents, err := srv.readContractResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != contractURI || tc.MIMEType != "text/markdown" {
		t.Errorf("resource = %+v", contents[0])
	}
}
