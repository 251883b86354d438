package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/panbanda/fixgraph/internal/fileproc"
	"github.com/panbanda/fixgraph/internal/scanner"
	"github.com/panbanda/fixgraph/pkg/analyzer/fixtures"
	"github.com/panbanda/fixgraph/pkg/collector"
	"github.com/panbanda/fixgraph/pkg/config"
)

// Service orchestrates fixture analysis: scanning, collection and the
// graph checks.
type Service struct {
	config *config.Config
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// New creates a new analysis service.
func New(opts ...Option) *Service {
	s := &Service{}
	for _, opt := range opts {
		opt(s)
	}
	if s.config == nil {
		s.config = config.LoadOrDefault()
	}
	return s
}

// Config returns the configuration the service runs with.
func (s *Service) Config() *config.Config {
	return s.config
}

// Options configures a fixture analysis run.
type Options struct {
	MaxDepth       int
	IncludeUnused  bool
	ConsumerPrefix string
	Builtins       []string
	Workers        int
	OnProgress     func()
	OnFileError    func(path string, err error)
}

// DefaultOptions returns run options taken from the configuration.
func (s *Service) DefaultOptions() Options {
	a := s.config.Analysis
	return Options{
		MaxDepth:       a.MaxDepth,
		IncludeUnused:  a.IncludeUnused,
		ConsumerPrefix: a.ConsumerPrefix,
		Builtins:       a.BuiltinFixtures,
		Workers:        a.Workers,
	}
}

// Result is the outcome of a run.
type Result struct {
	Analysis *fixtures.Analysis
	// Files are the files that were collected, in scan order.
	Files []string
	// FileErrors are the files that were skipped.
	FileErrors []fileproc.ProcessingError
}

// Scan resolves paths to the test modules and conftest files to analyze.
func (s *Service) Scan(paths []string) ([]string, error) {
	return scanner.NewScanner(s.config).Scan(paths)
}

// AnalyzePaths scans paths and analyzes the files found.
func (s *Service) AnalyzePaths(ctx context.Context, paths []string, opts Options) (*Result, error) {
	files, err := s.Scan(paths)
	if err != nil {
		return nil, err
	}
	return s.AnalyzeFiles(ctx, files, opts)
}

// AnalyzeFiles collects fixtures from files, in order, and runs every
// check. Files that cannot be parsed are skipped and listed in
// Result.FileErrors.
func (s *Service) AnalyzeFiles(ctx context.Context, files []string, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	prefix := opts.ConsumerPrefix
	if prefix == "" {
		prefix = collector.DefaultConsumerPrefix
	}
	col := collector.New(
		collector.WithConsumerPrefix(prefix),
		collector.WithWorkers(opts.Workers),
		collector.WithProgress(opts.OnProgress),
		collector.WithErrorHandler(opts.OnFileError),
	)
	collected, err := col.CollectFiles(ctx, files)
	if err != nil {
		return nil, err
	}

	analyzerOpts := []fixtures.Option{
		fixtures.WithUnused(opts.IncludeUnused),
		fixtures.WithBuiltins(opts.Builtins...),
	}
	if opts.MaxDepth > 0 {
		analyzerOpts = append(analyzerOpts, fixtures.WithMaxDepth(opts.MaxDepth))
	}

	res := &Result{
		Analysis: fixtures.New(analyzerOpts...).Analyze(collected.Fixtures, collected.Usages),
		Files:    collected.Files,
	}
	if collected.Errors != nil && collected.Errors.HasErrors() {
		res.FileErrors = collected.Errors.Errors
	}
	return res, nil
}

func (o Options) validate() error {
	if o.MaxDepth < 0 {
		return &OptionError{Option: "max-depth", Err: fmt.Errorf("must be at least 1, got %d", o.MaxDepth)}
	}
	if o.Workers < 0 {
		return &OptionError{Option: "workers", Err: errors.New("must not be negative")}
	}
	return nil
}

// OptionError indicates an invalid run option.
type OptionError struct {
	Option string
	Err    error
}

func (e *OptionError) Error() string {
	return "invalid " + e.Option + ": " + e.Err.Error()
}

func (e *OptionError) Unwrap() error {
	return e.Err
}
