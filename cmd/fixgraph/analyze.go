package main

import (
	"context"
	"fmt"

	"github.com/panbanda/fixgraph/internal/output"
	"github.com/panbanda/fixgraph/internal/progress"
	"github.com/panbanda/fixgraph/internal/render"
	"github.com/panbanda/fixgraph/internal/service/analysis"
	"github.com/panbanda/fixgraph/pkg/config"
	"github.com/urfave/cli/v2"
)

func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Aliases:   []string{"a"},
		Usage:     "Analyze fixture dependencies and report issues",
		ArgsUsage: "[path...]",
		Description: `Scans test modules and conftest.py files, builds the fixture dependency
graph and reports circular dependencies (error), scope mismatches and deep
nesting (warning) and, with --unused, fixtures no test requests (info).

Exits with status 1 when an error-severity issue is found.

Examples:
  fixgraph analyze tests/
  fixgraph analyze --max-depth 4 --unused .
  fixgraph analyze -f json -o fixtures.json tests/`,
		Flags: append(outputFlags(),
			&cli.IntFlag{
				Name:  "max-depth",
				Usage: "Depth above which a fixture is reported as deeply nested (default from config, 3)",
			},
			&cli.BoolFlag{
				Name:  "unused",
				Usage: "Also report fixtures that no test requests",
			},
			&cli.BoolFlag{
				Name:  "graph",
				Usage: "Print the dependency graph as DOT (same as --format dot)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Show per-fixture dependencies and setup order",
			},
			&cli.StringFlag{
				Name:  "consumer-prefix",
				Usage: "Function name prefix that marks a test (default from config, test_)",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Do not draw a progress bar",
			},
		),
		Action: runAnalyze,
	}
}

func runAnalyze(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	opts, err := analyzeOptions(c, cfg)
	if err != nil {
		return err
	}

	format := getTrailingFlag(c, "format", "f", "")
	if getTrailingBool(c, "graph", "") {
		format = string(output.FormatDOT)
	}
	verbose := cfg.Output.Verbose || getTrailingBool(c, "verbose", "v")
	quiet := getTrailingBool(c, "quiet", "q")

	res, err := runFixtureAnalysis(c, cfg, getPaths(c), opts, quiet)
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, cfg, format)
	if err != nil {
		return err
	}
	defer formatter.Close()

	report := render.NewReport(res.Analysis,
		render.WithVerbose(verbose),
		render.WithFileCount(len(res.Files)),
	)
	if err := formatter.Output(report); err != nil {
		return err
	}

	if res.Analysis.HasErrors() {
		return errAlreadyReported
	}
	return nil
}

// analyzeOptions merges command flags over the configured defaults.
func analyzeOptions(c *cli.Context, cfg *config.Config) (analysis.Options, error) {
	opts := analysis.New(analysis.WithConfig(cfg)).DefaultOptions()

	maxDepth, err := getTrailingInt(c, "max-depth")
	if err != nil {
		return opts, err
	}
	if c.IsSet("max-depth") || maxDepth != 0 {
		opts.MaxDepth = maxDepth
	}
	if opts.MaxDepth < 1 {
		return opts, fmt.Errorf("--max-depth must be a positive integer (got %d)", opts.MaxDepth)
	}
	if getTrailingBool(c, "unused", "") {
		opts.IncludeUnused = true
	}
	if prefix := getTrailingFlag(c, "consumer-prefix", "", ""); prefix != "" {
		opts.ConsumerPrefix = prefix
	}
	return opts, nil
}

// runFixtureAnalysis scans paths and analyzes the files found, drawing a
// progress bar and reporting skipped files on the error writer. Remote
// references are cloned for the duration of the run.
func runFixtureAnalysis(c *cli.Context, cfg *config.Config, paths []string, opts analysis.Options, quiet bool) (*analysis.Result, error) {
	svc := analysis.New(analysis.WithConfig(cfg))

	paths, cleanup, err := resolvePaths(c, paths, quiet)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	files, err := svc.Scan(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		warnf(c, "no test files or conftest.py found in %v", paths)
	}

	tracker := progress.ForFiles(len(files), quiet)
	opts.OnProgress = tracker.Tick

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := svc.AnalyzeFiles(ctx, files, opts)
	if err != nil {
		tracker.FinishError(err)
		return nil, err
	}
	tracker.FinishSuccess()

	for _, fe := range res.FileErrors {
		warnf(c, "could not parse %s: %v", fe.Path, fe.Err)
	}
	return res, nil
}
