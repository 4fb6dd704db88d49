// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes sm tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/sm/internal/models"
	"github.com/starford/sm/internal/pkgservice"
	"github.com/starford/sm/internal/resolve"
)

const contractURI = "sm://identifier-format"

// Server wraps the MCP server with sm tools.
type Server struct {
	mcp *server.MCPServer
	svc *pkgservice.Service
}

// New creates a new MCP server with all sm tools registered.
func New(svc *pkgservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"sm",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("resolve_package",
		mcp.WithDescription("Resolve a package identifier (and optional module) from a calling file. "+
			"Returns the package directory relative to the caller. Read the notation contract via "+
			"get_identifier_contract or the "+contractURI+" resource first."),
		mcp.WithString("from", mcp.Required(), mcp.Description("Calling file, relative to the workspace root")),
		mcp.WithString("identifier", mcp.Required(), mcp.Description("Package identifier, e.g. org.pinf.lib or github.com/pinf/org.pinf.lib/0.1.4")),
		mcp.WithString("module", mcp.Description("Optional module inside the package, e.g. component")),
	), s.resolvePackage)

	s.mcp.AddTool(mcp.NewTool("list_packages",
		mcp.WithDescription("List installed packages from the inventory."),
		mcp.WithString("area", mcp.Description("Optional install area: flat or deps")),
		mcp.WithString("key", mcp.Description("Optional canonical key; lists every install of that package")),
	), s.listPackages)

	s.mcp.AddTool(mcp.NewTool("search_packages",
		mcp.WithDescription("Search installed packages by name, description and keywords."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchPackages)

	s.mcp.AddTool(mcp.NewTool("read_descriptor",
		mcp.WithDescription("Read the package.json (or package.yaml) of an installed package."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Package directory relative to the workspace root (e.g. node_modules/org.pinf.lib)")),
	), s.readDescriptor)

	s.mcp.AddTool(mcp.NewTool("get_identifier_contract",
		mcp.WithDescription("Returns the package identifier notation contract. "+
			"Call this before composing identifiers for resolve_package."),
	), s.getIdentifierContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Package Identifier Contract",
			mcp.WithResourceDescription("Identifier notations, version hints and module normalisation accepted by resolve_package."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
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

func (s *Server) resolvePackage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("identifier")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Resolve(ctx, from, id, req.GetString("module", ""))
	if err != nil {
		var nf *resolve.NotFoundError
		if errors.As(err, &nf) {
			return mcp.NewToolResultError(fmt.Sprintf("%s\nprobed:\n%s", err, strings.Join(nf.Probed, "\n"))), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) listPackages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if key := req.GetString("key", ""); key != "" {
		items, err := s.svc.Installs(ctx, key)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return listText(len(items), func(i int) string { return items[i].Path + "\t" + items[i].Version }), nil
	}

	area := models.Area(req.GetString("area", ""))
	if area != "" && !area.Valid() {
		return mcp.NewToolResultError("area must be flat or deps"), nil
	}
	items, _, err := s.svc.ListPackages(ctx, 500, 0, area)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return listText(len(items), func(i int) string { return items[i].Path + "\t" + items[i].Version }), nil
}

func (s *Server) searchPackages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) readDescriptor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.ReadDescriptor(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("no descriptor at %s: %v", path, err)), nil
	}
	return jsonResult(d)
}

func (s *Server) getIdentifierContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(IdentifierContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     IdentifierContract,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func listText(n int, line func(int) string) *mcp.CallToolResult {
	if n == 0 {
		return mcp.NewToolResultText("no packages found")
	}
	lines := make([]string, n)
	for i := range lines {
		lines[i] = line(i)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n"))
}
