// Package collector extracts pytest fixture declarations and usage sites
// from Python test files.
package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/panbanda/fixgraph/internal/fileproc"
	"github.com/panbanda/fixgraph/pkg/analyzer/fixtures"
	"github.com/panbanda/fixgraph/pkg/parser"
)

// DefaultConsumerPrefix marks the functions whose parameters are fixture
// requests.
const DefaultConsumerPrefix = "test_"

// ErrSyntax is returned for files tree-sitter could not parse cleanly.
var ErrSyntax = errors.New("syntax error")

// FileResult holds what was found in a single file.
type FileResult struct {
	Path     string
	Fixtures []fixtures.Node
	Usages   []fixtures.Usage
}

// Result is the merged output of a collection run.
type Result struct {
	Fixtures []fixtures.Node
	Usages   []fixtures.Usage
	// Files lists the files that were collected successfully, in scan order.
	Files  []string
	Errors *fileproc.ProcessingErrors
}

// Collector parses files in parallel and merges results in scan order.
type Collector struct {
	consumerPrefix string
	workers        int
	onProgress     fileproc.ProgressFunc
	onError        fileproc.ErrorFunc
}

// Option is a functional option for configuring Collector.
type Option func(*Collector)

// WithConsumerPrefix sets the function-name prefix identifying tests.
func WithConsumerPrefix(prefix string) Option {
	return func(c *Collector) {
		c.consumerPrefix = prefix
	}
}

// WithWorkers bounds the number of files parsed concurrently.
func WithWorkers(n int) Option {
	return func(c *Collector) {
		c.workers = n
	}
}

// WithProgress sets a callback invoked once per processed file.
func WithProgress(fn fileproc.ProgressFunc) Option {
	return func(c *Collector) {
		c.onProgress = fn
	}
}

// WithErrorHandler sets a callback invoked for each file that fails.
func WithErrorHandler(fn fileproc.ErrorFunc) Option {
	return func(c *Collector) {
		c.onError = fn
	}
}

// New creates a new collector.
func New(opts ...Option) *Collector {
	c := &Collector{
		consumerPrefix: DefaultConsumerPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CollectFiles parses every file and merges the declarations and usages in
// the order of files. Files that fail to read or parse are skipped and
// reported in Result.Errors. An error is returned only when ctx is done.
func (c *Collector) CollectFiles(ctx context.Context, files []string) (*Result, error) {
	perFile, errs := fileproc.MapFiles(ctx, files, fileproc.Options{
		Workers:    c.workers,
		OnProgress: c.onProgress,
		OnError:    c.onError,
	}, func(ctx context.Context, psr *parser.Parser, path string) (*FileResult, error) {
		return c.collectFile(ctx, psr, path)
	})

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("collection cancelled: %w", err)
	}

	res := &Result{
		Fixtures: make([]fixtures.Node, 0),
		Usages:   make([]fixtures.Usage, 0),
		Files:    make([]string, 0, len(perFile)),
		Errors:   errs,
	}
	for _, fr := range perFile {
		res.Fixtures = append(res.Fixtures, fr.Fixtures...)
		res.Usages = append(res.Usages, fr.Usages...)
		res.Files = append(res.Files, fr.Path)
	}
	return res, nil
}

func (c *Collector) collectFile(ctx context.Context, psr *parser.Parser, path string) (*FileResult, error) {
	result, err := psr.ParseFile(ctx, path)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	if root := result.Root(); root == nil || root.HasError() {
		return nil, ErrSyntax
	}
	return Extract(result, c.consumerPrefix), nil
}
