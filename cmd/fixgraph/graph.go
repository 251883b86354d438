package main

import (
	"github.com/panbanda/fixgraph/internal/output"
	"github.com/panbanda/fixgraph/internal/render"
	"github.com/urfave/cli/v2"
)

func graphCmd() *cli.Command {
	return &cli.Command{
		Name:      "graph",
		Aliases:   []string{"g"},
		Usage:     "Print the fixture dependency graph",
		ArgsUsage: "[path...]",
		Description: `Prints the fixture dependency graph as Graphviz DOT, or as a Mermaid
flowchart with --mermaid. Nodes are colored by scope.

Examples:
  fixgraph graph tests/ | dot -Tsvg > fixtures.svg
  fixgraph graph --mermaid -o fixtures.mmd .`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "mermaid",
				Usage: "Emit a Mermaid flowchart instead of DOT",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
		},
		Action: runGraph,
	}
}

func runGraph(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	opts, err := analyzeOptions(c, cfg)
	if err != nil {
		return err
	}

	res, err := runFixtureAnalysis(c, cfg, getPaths(c), opts, true)
	if err != nil {
		return err
	}

	format := output.FormatDOT
	if getTrailingBool(c, "mermaid", "") {
		format = output.FormatMermaid
	}
	formatter, err := newFormatter(c, cfg, string(format))
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(render.NewReport(res.Analysis))
}
