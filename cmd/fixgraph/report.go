package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/panbanda/fixgraph/internal/report"
	"github.com/urfave/cli/v2"
)

func reportCmd() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Generate an HTML fixture report",
		ArgsUsage: "[path...]",
		Description: `Analyzes the given paths and writes a standalone HTML report with the
summary, issues, deepest fixtures and a Mermaid dependency graph.

With --data, the report is rendered from a record saved earlier with
"fixgraph analyze -f json" instead of analyzing the paths.

Examples:
  fixgraph report tests/
  fixgraph analyze -f json -o fixtures.json tests/ && fixgraph report --data fixtures.json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "fixgraph-report.html",
				Usage:   "Output HTML file",
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Render from a JSON analysis record",
			},
			&cli.IntFlag{
				Name:  "max-depth",
				Usage: "Depth above which a fixture is reported as deeply nested (default from config, 3)",
			},
			&cli.BoolFlag{
				Name:  "unused",
				Usage: "Also report fixtures that no test requests",
			},
		},
		Action: runReport,
	}
}

func runReport(c *cli.Context) error {
	renderer, err := report.NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to load report template: %w", err)
	}

	meta := report.Metadata{
		GeneratedAt:     time.Now(),
		FixgraphVersion: version,
	}

	var data *report.RenderData
	if path := c.String("data"); path != "" {
		rec, err := report.LoadRecord(path)
		if err != nil {
			return err
		}
		meta.Source = path
		if data, err = report.NewRenderDataFromRecord(meta, rec); err != nil {
			return err
		}
	} else {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		opts, err := analyzeOptions(c, cfg)
		if err != nil {
			return err
		}
		paths := getPaths(c)
		res, err := runFixtureAnalysis(c, cfg, paths, opts, false)
		if err != nil {
			return err
		}
		meta.Paths = paths
		if data, err = report.NewRenderData(meta, res.Analysis); err != nil {
			return err
		}
	}

	outputPath := getTrailingFlag(c, "output", "o", c.String("output"))
	if err := renderer.RenderToFile(data, outputPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	color.New(color.FgGreen).Fprintf(c.App.Writer, "Report written to %s\n", outputPath)
	return nil
}
