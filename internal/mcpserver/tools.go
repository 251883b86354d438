package mcpserver

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/panbanda/fixgraph/internal/output"
	"github.com/panbanda/fixgraph/internal/render"
	"github.com/panbanda/fixgraph/internal/service/analysis"
)

// AnalyzeInput is the base input for all tools.
type AnalyzeInput struct {
	Paths  []string `json:"paths,omitempty" jsonschema:"Test files or directories to analyze. Defaults to current directory if empty."`
	Format string   `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// AnalyzeFixturesInput adds analysis options.
type AnalyzeFixturesInput struct {
	AnalyzeInput
	MaxDepth      int  `json:"max_depth,omitempty" jsonschema:"Depth above which a fixture is reported as deeply nested. Default 3."`
	IncludeUnused bool `json:"include_unused,omitempty" jsonschema:"Also report fixtures that no test requests."`
	Verbose       bool `json:"verbose,omitempty" jsonschema:"Include per-fixture dependencies and setup order (markdown only)."`
}

// FixtureGraphInput selects the graph syntax.
type FixtureGraphInput struct {
	Paths  []string `json:"paths,omitempty" jsonschema:"Test files or directories to analyze. Defaults to current directory if empty."`
	Syntax string   `json:"syntax,omitempty" jsonschema:"Graph syntax: dot (default) or mermaid."`
}

// Helper functions

func getPaths(paths []string) []string {
	if len(paths) == 0 {
		return []string{"."}
	}
	return paths
}

func getFormat(input AnalyzeInput) output.Format {
	switch input.Format {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func getGraphFormat(syntax string) output.Format {
	if output.ParseFormat(syntax) == output.FormatMermaid {
		return output.FormatMermaid
	}
	return output.FormatDOT
}

func formatOutput(data any, format output.Format) (string, error) {
	var sb strings.Builder
	if err := output.NewWriterFormatter(format, &sb, false).Output(data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

// runAnalysis scans paths and analyzes the files found. The returned
// message is non-empty when the tool should report an error.
func runAnalysis(ctx context.Context, paths []string, configure func(*analysis.Options)) (*analysis.Result, string) {
	svc := analysis.New()

	files, err := svc.Scan(getPaths(paths))
	if err != nil {
		return nil, err.Error()
	}
	if len(files) == 0 {
		return nil, "no test files or conftest.py found"
	}

	opts := svc.DefaultOptions()
	if configure != nil {
		configure(&opts)
	}
	res, err := svc.AnalyzeFiles(ctx, files, opts)
	if err != nil {
		return nil, err.Error()
	}
	return res, ""
}

// Tool handlers

func handleAnalyzeFixtures(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeFixturesInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.AnalyzeInput)

	res, msg := runAnalysis(ctx, input.Paths, func(opts *analysis.Options) {
		if input.MaxDepth > 0 {
			opts.MaxDepth = input.MaxDepth
		}
		if input.IncludeUnused {
			opts.IncludeUnused = true
		}
	})
	if msg != "" {
		return toolError(msg)
	}

	report := render.NewReport(res.Analysis,
		render.WithVerbose(input.Verbose),
		render.WithFileCount(len(res.Files)),
	)
	return toolResult(report, format)
}

func handleFixtureGraph(ctx context.Context, req *mcp.CallToolRequest, input FixtureGraphInput) (*mcp.CallToolResult, any, error) {
	res, msg := runAnalysis(ctx, input.Paths, nil)
	if msg != "" {
		return toolError(msg)
	}
	return toolResult(render.NewReport(res.Analysis), getGraphFormat(input.Syntax))
}
