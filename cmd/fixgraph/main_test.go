package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/panbanda/fixgraph/internal/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// TestGetPaths verifies path handling from CLI arguments.
func TestGetPaths(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "no args defaults to current dir",
			args:     []string{},
			expected: []string{"."},
		},
		{
			name:     "single path",
			args:     []string{"/foo/bar"},
			expected: []string{"/foo/bar"},
		},
		{
			name:     "multiple paths",
			args:     []string{"/foo", "/bar"},
			expected: []string{"/foo", "/bar"},
		},
		{
			name:     "filters out flags",
			args:     []string{"/foo", "-f", "json", "/bar"},
			expected: []string{"/foo", "/bar"},
		},
		{
			name:     "filters out format flag",
			args:     []string{"/foo", "--format", "json"},
			expected: []string{"/foo"},
		},
		{
			name:     "filters out bool flags",
			args:     []string{"/foo", "--unused", "-v"},
			expected: []string{"/foo"},
		},
		{
			name:     "filters out flags with equals",
			args:     []string{"/foo", "--max-depth=4", "/bar"},
			expected: []string{"/foo", "/bar"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result []string
			app := &cli.App{
				Action: func(c *cli.Context) error {
					result = getPaths(c)
					return nil
				},
			}
			// "--" stops flag parsing so every arg reaches the action.
			require.NoError(t, app.Run(append([]string{"test", "--"}, tt.args...)))
			assert.Equal(t, tt.expected, result)
		})
	}
}

// TestGetTrailingFlag verifies flags placed after positional arguments.
func TestGetTrailingFlag(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"long flag", []string{"--", "/foo", "--format", "json"}, "json"},
		{"short flag", []string{"--", "/foo", "-f", "markdown"}, "markdown"},
		{"long flag with equals", []string{"--", "/foo", "--format=toon"}, "toon"},
		{"short flag with equals", []string{"--", "/foo", "-f=json"}, "json"},
		{"parsed flag", []string{"--format", "dot", "/foo"}, "dot"},
		{"default", []string{"/foo"}, "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result string
			app := &cli.App{
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}},
				},
				Action: func(c *cli.Context) error {
					result = getTrailingFlag(c, "format", "f", "text")
					return nil
				},
			}
			require.NoError(t, app.Run(append([]string{"test"}, tt.args...)))
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestGetTrailingInt(t *testing.T) {
	var got int
	var gotErr error
	app := &cli.App{
		Flags: []cli.Flag{&cli.IntFlag{Name: "max-depth"}},
		Action: func(c *cli.Context) error {
			got, gotErr = getTrailingInt(c, "max-depth")
			return nil
		},
	}

	require.NoError(t, app.Run([]string{"test", "--", "/foo", "--max-depth", "5"}))
	require.NoError(t, gotErr)
	assert.Equal(t, 5, got)

	require.NoError(t, app.Run([]string{"test", "--", "/foo", "--max-depth=deep"}))
	assert.Error(t, gotErr)
}

func TestGetTrailingDuration(t *testing.T) {
	var got time.Duration
	var gotErr error
	app := &cli.App{
		Flags: []cli.Flag{&cli.DurationFlag{Name: "debounce"}},
		Action: func(c *cli.Context) error {
			got, gotErr = getTrailingDuration(c, "debounce")
			return nil
		},
	}

	require.NoError(t, app.Run([]string{"test", "--debounce", "2s", "/foo"}))
	require.NoError(t, gotErr)
	assert.Equal(t, 2*time.Second, got)

	require.NoError(t, app.Run([]string{"test", "--", "/foo", "--debounce", "750ms"}))
	require.NoError(t, gotErr)
	assert.Equal(t, 750*time.Millisecond, got)

	require.NoError(t, app.Run([]string{"test", "--", "/foo", "--debounce=soon"}))
	assert.Error(t, gotErr)
}

const cleanConftest = `import pytest

@pytest.fixture(scope="session")
def engine():
    return object()

@pytest.fixture
def db(engine):
    return engine
`

const cyclicConftest = `import pytest

@pytest.fixture
def x(y):
    pass

@pytest.fixture
def y(x):
    pass
`

const mismatchConftest = `import pytest

@pytest.fixture
def request_id():
    return 1

@pytest.fixture(scope="session")
def client(request_id):
    return request_id
`

func writeSuite(t *testing.T, conftest string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, scanner.ConftestName), []byte(conftest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "test_app.py"), []byte("def test_app(db):\n    assert db\n"), 0o644))
	return root
}

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp(&stdout, &stderr)
	err := app.Run(append([]string{"fixgraph"}, args...))
	return stdout.String(), stderr.String(), err
}

func TestAnalyzeClean(t *testing.T) {
	root := writeSuite(t, cleanConftest)

	out, _, err := runApp(t, "analyze", "--no-color", "-q", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Fixture Analysis Report")
	assert.Contains(t, out, "No issues found!")
}

func TestAnalyzeCycleExitsWithError(t *testing.T) {
	root := writeSuite(t, cyclicConftest)

	out, _, err := runApp(t, "analyze", "--no-color", "-q", root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errAlreadyReported))
	assert.Contains(t, out, "CIRCULAR (1)")
}

func TestAnalyzeWarningsDoNotFail(t *testing.T) {
	root := writeSuite(t, mismatchConftest)

	out, _, err := runApp(t, "analyze", "--no-color", "-q", "--unused", root)
	require.NoError(t, err)
	assert.Contains(t, out, "SCOPE_MISMATCH (1)")
	assert.Contains(t, out, "UNUSED")
}

func TestAnalyzeJSONWithTrailingFlags(t *testing.T) {
	root := writeSuite(t, cleanConftest)

	out, _, err := runApp(t, "analyze", "-q", root, "--format", "json", "--max-depth", "1")
	require.NoError(t, err)

	var rec struct {
		Summary struct {
			TotalFixtures int `json:"total_fixtures"`
			Warnings      int `json:"warnings"`
			Threshold     int `json:"threshold"`
		} `json:"summary"`
		Fixtures []struct {
			Name  string `json:"name"`
			Depth int    `json:"depth"`
		} `json:"fixtures"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, 2, rec.Summary.TotalFixtures)
	assert.Equal(t, 1, rec.Summary.Threshold)
	assert.Equal(t, 1, rec.Summary.Warnings, "db has depth 2, above the threshold of 1")
}

func TestAnalyzeGraphShortcut(t *testing.T) {
	root := writeSuite(t, cleanConftest)

	out, _, err := runApp(t, "analyze", "--graph", "-q", root)
	require.NoError(t, err)
	assert.Contains(t, out, "digraph fixtures {")
	assert.Contains(t, out, "db -> engine")
}

func TestAnalyzeOutputFile(t *testing.T) {
	root := writeSuite(t, cleanConftest)
	path := filepath.Join(t.TempDir(), "report.md")

	out, _, err := runApp(t, "analyze", "-q", "-f", "markdown", "-o", path, root)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Fixture Analysis Report")
}

func TestAnalyzeMissingPath(t *testing.T) {
	_, _, err := runApp(t, "analyze", "-q", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	var pathErr *scanner.PathError
	assert.True(t, errors.As(err, &pathErr))
	assert.False(t, errors.Is(err, errAlreadyReported))
}

func TestAnalyzeMissingRelativePath(t *testing.T) {
	t.Chdir(t.TempDir())

	_, stderr, err := runApp(t, "analyze", "-q", "missing/dir")
	require.Error(t, err)

	var pathErr *scanner.PathError
	assert.True(t, errors.As(err, &pathErr))
	assert.NotContains(t, stderr, "Cloning")
}

func TestAnalyzeInvalidMaxDepth(t *testing.T) {
	root := writeSuite(t, cleanConftest)

	_, _, err := runApp(t, "analyze", "-q", "--max-depth", "0", root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--max-depth")
}

func TestAnalyzeBrokenFileWarns(t *testing.T) {
	root := writeSuite(t, cleanConftest)
	require.NoError(t, os.WriteFile(filepath.Join(root, "test_broken.py"), []byte("def test_x(:\n"), 0o644))

	_, stderr, err := runApp(t, "analyze", "--no-color", "-q", root)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Warning: could not parse")
	assert.Contains(t, stderr, "test_broken.py")
}

func TestGraphMermaid(t *testing.T) {
	root := writeSuite(t, cleanConftest)

	out, _, err := runApp(t, "graph", "--mermaid", root)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph LR"))
	assert.Contains(t, out, "classDef session")
}

func TestGraphCycleDoesNotFail(t *testing.T) {
	root := writeSuite(t, cyclicConftest)

	out, _, err := runApp(t, "graph", root)
	require.NoError(t, err)
	assert.Contains(t, out, "x -> y")
	assert.Contains(t, out, "y -> x")
}

func TestReport(t *testing.T) {
	root := writeSuite(t, cyclicConftest)
	out := filepath.Join(t.TempDir(), "report.html")

	stdout, _, err := runApp(t, "report", "-o", out, root)
	require.NoError(t, err, "report does not fail on error issues")
	assert.Contains(t, stdout, "Report written to "+out)

	html, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Circular (1)")
}

func TestReportFromData(t *testing.T) {
	root := writeSuite(t, cleanConftest)
	dir := t.TempDir()
	record := filepath.Join(dir, "fixtures.json")
	out := filepath.Join(dir, "report.html")

	_, _, err := runApp(t, "analyze", "-q", "-f", "json", "-o", record, root)
	require.NoError(t, err)

	_, _, err = runApp(t, "report", "--data", record, "-o", out)
	require.NoError(t, err)

	html, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(html), "from "+record)
	assert.Contains(t, string(html), "No issues found!")
}

func TestConfigShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixgraph.toml")
	require.NoError(t, os.WriteFile(path, []byte("[analysis]\nmax_depth = 5\n"), 0o644))

	out, _, err := runApp(t, "-c", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# Configuration from: "+path)
	assert.Contains(t, out, "max_depth = 5")

	out, _, err = runApp(t, "-c", path, "config", "show", "--yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "max_depth: 5")
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.toml")
	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(good, []byte("[analysis]\nmax_depth = 4\n"), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("[analysis]\nmax_depth = 0\n"), 0o644))

	out, _, err := runApp(t, "-c", good, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid: "+good)

	out, _, err = runApp(t, "-c", bad, "config", "validate")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errAlreadyReported))
	assert.Contains(t, out, "Configuration validation failed:")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".fixgraph", "fixgraph.toml")

	out, _, err := runApp(t, "config", "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "max_depth = 3")

	_, _, err = runApp(t, "config", "init", "-o", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = runApp(t, "config", "init", "-o", path, "--force")
	require.NoError(t, err)
}

func TestMCPManifest(t *testing.T) {
	out, _, err := runApp(t, "mcp", "manifest")
	require.NoError(t, err)

	var manifest map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &manifest))
	assert.Equal(t, "io.github.panbanda/fixgraph", manifest["name"])
}
