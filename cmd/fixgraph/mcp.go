package main

import (
	"context"
	"fmt"

	"github.com/panbanda/fixgraph/internal/mcpserver"
	"github.com/urfave/cli/v2"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes the fixture analysis
as tools that LLMs can invoke.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "fixgraph": {
        "command": "fixgraph",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - analyze_fixtures  Fixture graph checks (cycles, scope, depth, unused)
  - fixture_graph     Fixture dependency graph as DOT or Mermaid`,
		Subcommands: []*cli.Command{
			{
				Name:   "manifest",
				Usage:  "Print the MCP registry server manifest",
				Action: runMCPManifest,
			},
		},
		Action: runMCPCmd,
	}
}

func runMCPCmd(c *cli.Context) error {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return mcpserver.NewServer(version).Run(ctx)
}

func runMCPManifest(c *cli.Context) error {
	data, err := mcpserver.GenerateManifest(version)
	if err != nil {
		return fmt.Errorf("failed to generate manifest: %w", err)
	}
	fmt.Fprintln(c.App.Writer, string(data))
	return nil
}
