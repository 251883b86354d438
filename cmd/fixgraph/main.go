package main

import (
	"errors"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	app := newApp(os.Stdout, os.Stderr)

	if err := app.Run(os.Args); err != nil {
		if !errors.Is(err, errAlreadyReported) {
			color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:    "fixgraph",
		Usage:   "Pytest fixture dependency analyzer",
		Version: version + " (" + commit + ", " + date + ")",
		Description: `fixgraph builds the dependency graph of the pytest fixtures in a test suite
and reports circular dependencies, scope mismatches, deeply nested fixtures
and unused fixtures.`,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (default: search fixgraph.toml, .fixgraph/...)",
				EnvVars: []string{"FIXGRAPH_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			analyzeCmd(),
			graphCmd(),
			reportCmd(),
			watchCmd(),
			configCmd(),
			mcpCmd(),
		},
	}
}
