package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	koanfjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Config holds all configuration options for fixgraph.
type Config struct {
	// Analysis settings
	Analysis AnalysisConfig `koanf:"analysis" toml:"analysis" yaml:"analysis"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude" yaml:"exclude"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output" yaml:"output"`

	// Watch mode settings
	Watch WatchConfig `koanf:"watch" toml:"watch" yaml:"watch"`
}

// AnalysisConfig controls the fixture checks.
type AnalysisConfig struct {
	MaxDepth        int      `koanf:"max_depth" toml:"max_depth" yaml:"max_depth"`
	IncludeUnused   bool     `koanf:"include_unused" toml:"include_unused" yaml:"include_unused"`
	ConsumerPrefix  string   `koanf:"consumer_prefix" toml:"consumer_prefix" yaml:"consumer_prefix"`
	BuiltinFixtures []string `koanf:"builtin_fixtures" toml:"builtin_fixtures" yaml:"builtin_fixtures"` // always treated as used
	Workers         int      `koanf:"workers" toml:"workers" yaml:"workers"`                            // 0 = 2x NumCPU
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns" toml:"patterns" yaml:"patterns"`
	Dirs      []string `koanf:"dirs" toml:"dirs" yaml:"dirs"`
	Gitignore bool     `koanf:"gitignore" toml:"gitignore" yaml:"gitignore"`
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format" toml:"format" yaml:"format"` // text, json, markdown, toon, dot, mermaid
	Color   bool   `koanf:"color" toml:"color" yaml:"color"`
	Verbose bool   `koanf:"verbose" toml:"verbose" yaml:"verbose"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	DebounceMS int `koanf:"debounce_ms" toml:"debounce_ms" yaml:"debounce_ms"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			MaxDepth:       3,
			IncludeUnused:  false,
			ConsumerPrefix: "test_",
		},
		Exclude: ExcludeConfig{
			Dirs: []string{
				"node_modules",
				"venv",
				"site-packages",
				"build",
				"dist",
			},
			Gitignore: true,
		},
		Output: OutputConfig{
			Format:  "text",
			Color:   true,
			Verbose: false,
		},
		Watch: WatchConfig{
			DebounceMS: 300,
		},
	}
}

// ConfigNames are the file names searched by LoadConfig, in order.
var ConfigNames = []string{
	"fixgraph.toml",
	"fixgraph.yaml",
	"fixgraph.yml",
	"fixgraph.json",
	".fixgraph.toml",
	".fixgraph.yaml",
	".fixgraph.yml",
	".fixgraph.json",
}

// SearchDirs are the directories searched by LoadConfig, in order.
var SearchDirs = []string{".", ".fixgraph"}

// ValidationError reports a configuration that is well-formed but invalid.
type ValidationError struct {
	Source   string
	Problems []string
}

func (e *ValidationError) Error() string {
	where := e.Source
	if where == "" {
		where = "config"
	}
	if len(e.Problems) == 1 {
		return fmt.Sprintf("invalid %s: %s", where, e.Problems[0])
	}
	return fmt.Sprintf("invalid %s:\n  - %s", where, strings.Join(e.Problems, "\n  - "))
}

// LoadResult is a loaded config plus where it came from.
type LoadResult struct {
	Config *Config
	// Source is the file the config was read from, empty for defaults.
	Source string
}

//go:embed schema.json
var schemaJSON []byte

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("schema.json")
})

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	case ".json":
		return koanfjson.Parser()
	default:
		return toml.Parser()
	}
}

// Load loads configuration from a file. Keys not set in the file keep
// their defaults. The file is checked against the config schema before
// it is applied.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := validateRaw(k.Raw(), path); err != nil {
		return nil, err
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.Source = path
		}
		return nil, err
	}

	return cfg, nil
}

// validateRaw checks the parsed file against the embedded JSON schema.
func validateRaw(raw map[string]any, source string) error {
	schema, err := compileSchema()
	if err != nil {
		return fmt.Errorf("config schema: %w", err)
	}

	// Round-trip through JSON so parser-specific types (TOML dates, int64)
	// become the plain values the validator expects.
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode config %s: %w", source, err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to encode config %s: %w", source, err)
	}

	if err := schema.Validate(inst); err != nil {
		var sverr *jsonschema.ValidationError
		if !errors.As(err, &sverr) {
			return err
		}
		return &ValidationError{Source: source, Problems: schemaProblems(sverr)}
	}
	return nil
}

// schemaProblems flattens the validator's tree-shaped message into one
// line per failing location.
func schemaProblems(err *jsonschema.ValidationError) []string {
	var problems []string
	for _, line := range strings.Split(err.Error(), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		problems = append(problems, strings.TrimPrefix(line, "- "))
	}
	if len(problems) == 0 {
		problems = append(problems, err.Error())
	}
	return problems
}

// Validate checks semantic constraints the schema cannot express.
func (c *Config) Validate() error {
	var problems []string
	if c.Analysis.MaxDepth < 1 {
		problems = append(problems, fmt.Sprintf("analysis.max_depth must be at least 1, got %d", c.Analysis.MaxDepth))
	}
	if strings.TrimSpace(c.Analysis.ConsumerPrefix) == "" {
		problems = append(problems, "analysis.consumer_prefix must not be empty")
	}
	if c.Analysis.Workers < 0 {
		problems = append(problems, fmt.Sprintf("analysis.workers must not be negative, got %d", c.Analysis.Workers))
	}
	if c.Watch.DebounceMS < 0 {
		problems = append(problems, fmt.Sprintf("watch.debounce_ms must not be negative, got %d", c.Watch.DebounceMS))
	}
	switch c.Output.Format {
	case "text", "json", "markdown", "toon", "dot", "mermaid":
	default:
		problems = append(problems, fmt.Sprintf("output.format %q is not supported", c.Output.Format))
	}
	for _, pattern := range c.Exclude.Patterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			problems = append(problems, fmt.Sprintf("exclude.patterns: %q: %v", pattern, err))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// FindConfig returns the first config file found in the search locations,
// or an empty string.
func FindConfig() string {
	for _, dir := range SearchDirs {
		for _, name := range ConfigNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path
			}
		}
	}
	return ""
}

// LoadConfig loads the config at path, or searches the standard locations
// when path is empty. Defaults are returned when nothing is found. Unlike
// LoadOrDefault, a file that exists but fails to load is an error.
func LoadConfig(path string) (*LoadResult, error) {
	if path == "" {
		path = FindConfig()
	}
	if path == "" {
		return &LoadResult{Config: DefaultConfig()}, nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &LoadResult{Config: cfg, Source: path}, nil
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	if path := FindConfig(); path != "" {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	return DefaultConfig()
}

// ShouldExclude checks if a path should be excluded from analysis.
// Directory names match any path component; patterns match the base name.
func (c *Config) ShouldExclude(path string) bool {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(path)), "/")

	for _, dir := range c.Exclude.Dirs {
		for _, part := range parts[:len(parts)-1] {
			if part == dir {
				return true
			}
		}
	}

	base := parts[len(parts)-1]
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}
