package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server and registers the fixture analysis tools.
type Server struct {
	server *mcp.Server
}

// NewServer creates a new MCP server with all fixgraph tools registered.
func NewServer(version string) *Server {
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "fixgraph",
			Version: version,
		},
		nil,
	)

	s := &Server{server: server}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// registerTools adds the fixture tools to the server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_fixtures",
		Description: describeAnalyzeFixtures(),
	}, handleAnalyzeFixtures)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "fixture_graph",
		Description: describeFixtureGraph(),
	}, handleFixtureGraph)
}
