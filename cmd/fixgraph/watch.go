package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/panbanda/fixgraph/internal/render"
	"github.com/panbanda/fixgraph/pkg/watch"
	"github.com/urfave/cli/v2"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Aliases:   []string{"w"},
		Usage:     "Re-run the fixture analysis when Python files change",
		ArgsUsage: "[path]",
		Description: `Runs the analysis once, then watches the directory tree for changes to .py
files and re-runs it. Changes are debounced and files whose content did not
change are ignored.`,
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
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Show per-fixture dependencies and setup order",
			},
			&cli.StringFlag{
				Name:  "consumer-prefix",
				Usage: "Function name prefix that marks a test (default from config, test_)",
			},
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "Quiet period before re-running (default from config, 300ms)",
			},
		),
		Action: runWatch,
	}
}

func runWatch(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	opts, err := analyzeOptions(c, cfg)
	if err != nil {
		return err
	}
	root := getPaths(c)[0]
	verbose := cfg.Output.Verbose || getTrailingBool(c, "verbose", "v")
	format := getTrailingFlag(c, "format", "f", "")

	analyze := func() {
		res, err := runFixtureAnalysis(c, cfg, []string{root}, opts, true)
		if err != nil {
			warnf(c, "%v", err)
			return
		}
		formatter, err := newFormatter(c, cfg, format)
		if err != nil {
			warnf(c, "%v", err)
			return
		}
		defer formatter.Close()

		report := render.NewReport(res.Analysis,
			render.WithVerbose(verbose),
			render.WithFileCount(len(res.Files)),
		)
		if err := formatter.Output(report); err != nil {
			warnf(c, "%v", err)
		}
	}

	debounce, err := getTrailingDuration(c, "debounce")
	if err != nil {
		return err
	}
	w, err := watch.NewWatcher(root, cfg, debounce)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()
	w.SetOutput(c.App.ErrWriter)
	w.SetCallback(func([]string) { analyze() })

	analyze()

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	err = w.Start(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintf(c.App.ErrWriter, "\nStopped watching after %s\n", time.Since(start).Round(time.Second))
		return nil
	}
	return err
}
