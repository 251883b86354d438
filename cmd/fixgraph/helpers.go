package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/panbanda/fixgraph/internal/output"
	"github.com/panbanda/fixgraph/internal/remote"
	"github.com/panbanda/fixgraph/pkg/config"
	"github.com/urfave/cli/v2"
)

// errAlreadyReported makes the process exit with status 1 without printing
// an additional error line. Returned when the output already explains the
// failure, e.g. a report listing circular dependencies.
var errAlreadyReported = errors.New("failure already reported")

// valueFlags are the flags that consume the following argument.
var valueFlags = map[string]bool{
	"format":          true,
	"f":               true,
	"output":          true,
	"o":               true,
	"config":          true,
	"c":               true,
	"max-depth":       true,
	"consumer-prefix": true,
	"debounce":        true,
	"data":            true,
	"d":               true,
}

// outputFlags are shared by every command that renders a report.
func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, json, markdown, toon, dot, mermaid",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write output to file",
		},
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "Disable colored output",
		},
	}
}

// getPaths returns the positional arguments, skipping flags that urfave/cli
// left unparsed because they came after a path. Defaults to ["."].
func getPaths(c *cli.Context) []string {
	args := c.Args().Slice()
	var paths []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") && arg != "-" {
			name := strings.TrimLeft(arg, "-")
			if !strings.Contains(name, "=") && valueFlags[name] {
				i++
			}
			continue
		}
		paths = append(paths, arg)
	}
	if len(paths) == 0 {
		return []string{"."}
	}
	return paths
}

// trailingValue looks for --name/-short among the positional arguments.
func trailingValue(c *cli.Context, name, short string) (string, bool) {
	args := c.Args().Slice()
	for i, arg := range args {
		for _, prefix := range []string{"--" + name, "-" + short} {
			if prefix == "-" {
				continue
			}
			if arg == prefix && i+1 < len(args) {
				return args[i+1], true
			}
			if v, ok := strings.CutPrefix(arg, prefix+"="); ok {
				return v, true
			}
		}
	}
	return "", false
}

// getTrailingFlag returns a string flag, honoring it after positional args.
func getTrailingFlag(c *cli.Context, name, short, defaultValue string) string {
	if v, ok := trailingValue(c, name, short); ok {
		return v
	}
	if v := c.String(name); v != "" {
		return v
	}
	return defaultValue
}

// getTrailingBool returns a bool flag, honoring it after positional args.
func getTrailingBool(c *cli.Context, name, short string) bool {
	if c.Bool(name) {
		return true
	}
	for _, arg := range c.Args().Slice() {
		if arg == "--"+name || (short != "" && arg == "-"+short) {
			return true
		}
	}
	return false
}

// getTrailingInt returns an int flag, honoring it after positional args.
func getTrailingInt(c *cli.Context, name string) (int, error) {
	v, ok := trailingValue(c, name, "")
	if !ok {
		return c.Int(name), nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q for --%s: %w", v, name, err)
	}
	return n, nil
}

// getTrailingDuration returns a duration flag, honoring it after positional args.
func getTrailingDuration(c *cli.Context, name string) (time.Duration, error) {
	v, ok := trailingValue(c, name, "")
	if !ok {
		return c.Duration(name), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q for --%s: %w", v, name, err)
	}
	return d, nil
}

// loadConfig loads the file named by --config, or searches the standard
// locations. Unlike the library default, a broken config is an error here.
func loadConfig(c *cli.Context) (*config.Config, error) {
	result, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return result.Config, nil
}

// newFormatter builds the formatter for a command. An empty format falls
// back to output.format from the config.
func newFormatter(c *cli.Context, cfg *config.Config, format string) (*output.Formatter, error) {
	if format == "" {
		format = cfg.Output.Format
	}
	colored := cfg.Output.Color && !getTrailingBool(c, "no-color", "")
	if !colored {
		color.NoColor = true
	}

	path := getTrailingFlag(c, "output", "o", "")
	if path == "" {
		return output.NewWriterFormatter(output.ParseFormat(format), c.App.Writer, colored), nil
	}
	return output.NewFormatter(output.ParseFormat(format), path, colored)
}

// warnf prints a yellow diagnostic to the error writer.
func warnf(c *cli.Context, format string, args ...any) {
	color.New(color.FgYellow).Fprintf(c.App.ErrWriter, "Warning: "+format+"\n", args...)
}

// resolvePaths replaces remote references (owner/repo@ref, git URLs) with
// shallow clones. The returned cleanup removes the clones.
func resolvePaths(c *cli.Context, paths []string, quiet bool) ([]string, func(), error) {
	var sources []*remote.Source
	cleanup := func() {
		for _, src := range sources {
			src.Cleanup()
		}
	}

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	var progressOut io.Writer = c.App.ErrWriter
	if quiet {
		progressOut = io.Discard
	}

	resolved := make([]string, 0, len(paths))
	for _, path := range paths {
		src, err := remote.Parse(path)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if src == nil {
			resolved = append(resolved, path)
			continue
		}

		color.New(color.FgCyan).Fprintf(c.App.ErrWriter, "Cloning %s...\n", src.URL)
		if err := src.Clone(ctx, progressOut, true); err != nil {
			cleanup()
			return nil, nil, err
		}
		sources = append(sources, src)
		resolved = append(resolved, src.CloneDir)
	}
	return resolved, cleanup, nil
}
