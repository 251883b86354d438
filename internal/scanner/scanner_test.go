package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/panbanda/fixgraph/pkg/config"
)

func createFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file %s: %v", name, err)
		}
	}
}

func relAll(t *testing.T, root string, files []string) []string {
	t.Helper()
	out := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			t.Fatalf("Rel(%s): %v", f, err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestNewScanner(t *testing.T) {
	s := NewScanner(nil)
	if s == nil {
		t.Fatal("NewScanner(nil) returned nil")
	}
	if s.config == nil {
		t.Error("scanner.config should not be nil when passing nil")
	}

	cfg := config.DefaultConfig()
	s = NewScanner(cfg)
	if s.config != cfg {
		t.Error("scanner.config should be the provided config")
	}
}

func TestIsTestFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"test_api.py", true},
		{"conftest.py", true},
		{"api_test.py", false},
		{"helpers.py", false},
		{"test_data.json", false},
		{"conftest.pyc", false},
		{"test_.py", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTestFile(tt.name); got != tt.want {
				t.Errorf("IsTestFile(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestScanDir(t *testing.T) {
	tmpDir := t.TempDir()
	createFiles(t, tmpDir, map[string]string{
		"conftest.py":                     "",
		"test_root.py":                    "",
		"helpers.py":                      "",
		"api/test_users.py":               "",
		"api/conftest.py":                 "",
		"api/test_auth.py":                "",
		"api/v2/conftest.py":              "",
		"api/README.md":                   "",
		"db/test_models.py":               "",
		".venv/lib/test_hidden.py":        "",
		"api/__pycache__/test_cached.py":  "",
		"api/.hidden/conftest.py":         "",
		"node_modules/pkg/test_vendor.py": "",
	})

	s := NewScanner(nil)
	result, err := s.ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}

	want := []string{
		"conftest.py",
		"test_root.py",
		"api/conftest.py",
		"api/test_auth.py",
		"api/test_users.py",
		"db/test_models.py",
		"api/v2/conftest.py",
	}
	if got := relAll(t, tmpDir, result); !reflect.DeepEqual(got, want) {
		t.Errorf("ScanDir() =\n  %v\nwant\n  %v", got, want)
	}
}

func TestScanDirExcludesPatterns(t *testing.T) {
	tmpDir := t.TempDir()
	createFiles(t, tmpDir, map[string]string{
		"test_api.py":              "",
		"test_generated_models.py": "",
		"legacy/test_old.py":       "",
	})

	cfg := config.DefaultConfig()
	cfg.Exclude.Patterns = []string{"test_generated_*.py"}
	cfg.Exclude.Dirs = append(cfg.Exclude.Dirs, "legacy")

	result, err := NewScanner(cfg).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}

	if got := relAll(t, tmpDir, result); !reflect.DeepEqual(got, []string{"test_api.py"}) {
		t.Errorf("ScanDir() = %v, want [test_api.py]", got)
	}
}

func TestScanDirWithGitignore(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(tmpDir, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	createFiles(t, tmpDir, map[string]string{
		".gitignore":                "generated/\n",
		"tests/test_a.py":           "",
		"tests/generated/test_b.py": "",
	})

	cfg := config.DefaultConfig()
	cfg.Exclude.Gitignore = true

	// Scan a subdirectory: .gitignore rules are relative to the git root.
	result, err := NewScanner(cfg).ScanDir(filepath.Join(tmpDir, "tests"))
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	if got := relAll(t, tmpDir, result); !reflect.DeepEqual(got, []string{"tests/test_a.py"}) {
		t.Errorf("ScanDir() = %v, want [tests/test_a.py]", got)
	}

	cfg.Exclude.Gitignore = false
	result, err = NewScanner(cfg).ScanDir(filepath.Join(tmpDir, "tests"))
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("ScanDir() with gitignore disabled found %d files, want 2", len(result))
	}
}

func TestScanDirEmptyDirectory(t *testing.T) {
	result, err := NewScanner(nil).ScanDir(t.TempDir())
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("ScanDir() on empty dir found %d files", len(result))
	}
}

func TestScanFile(t *testing.T) {
	tmpDir := t.TempDir()
	createFiles(t, tmpDir, map[string]string{
		"helpers.py": "",
		"notes.txt":  "",
	})

	s := NewScanner(nil)

	ok, err := s.ScanFile(filepath.Join(tmpDir, "helpers.py"))
	if err != nil || !ok {
		t.Errorf("ScanFile(helpers.py) = %v, %v; want true, nil", ok, err)
	}

	ok, err = s.ScanFile(filepath.Join(tmpDir, "notes.txt"))
	if err != nil || ok {
		t.Errorf("ScanFile(notes.txt) = %v, %v; want false, nil", ok, err)
	}

	ok, err = s.ScanFile(tmpDir)
	if err != nil || ok {
		t.Errorf("ScanFile(dir) = %v, %v; want false, nil", ok, err)
	}
}

func TestScanNonExistentPath(t *testing.T) {
	_, err := NewScanner(nil).Scan([]string{"/nonexistent/path/tests"})
	if err == nil {
		t.Fatal("Scan() should return error for non-existent path")
	}

	var perr *PathError
	if !errors.As(err, &perr) {
		t.Fatalf("error type = %T, want *PathError", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("error should wrap os.ErrNotExist")
	}
	if perr.Error() != "path '/nonexistent/path/tests' does not exist" {
		t.Errorf("Error() = %q", perr.Error())
	}
}

func TestScanMixedArguments(t *testing.T) {
	tmpDir := t.TempDir()
	createFiles(t, tmpDir, map[string]string{
		"suite/conftest.py": "",
		"suite/test_one.py": "",
		"standalone.py":     "",
		"notes.txt":         "",
	})

	args := []string{
		filepath.Join(tmpDir, "standalone.py"),
		filepath.Join(tmpDir, "suite"),
		filepath.Join(tmpDir, "suite", "test_one.py"),
		filepath.Join(tmpDir, "notes.txt"),
	}
	result, err := NewScanner(nil).Scan(args)
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}

	want := []string{"standalone.py", "suite/conftest.py", "suite/test_one.py"}
	if got := relAll(t, tmpDir, result); !reflect.DeepEqual(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}
}

func TestSortScanOrder(t *testing.T) {
	files := []string{
		"tests/unit/test_b.py",
		"tests/unit/conftest.py",
		"tests/test_z.py",
		"conftest.py",
		"tests/conftest.py",
		"tests/unit/test_a.py",
		"tests/api/test_x.py",
	}
	SortScanOrder(files)

	want := []string{
		"conftest.py",
		"tests/conftest.py",
		"tests/test_z.py",
		"tests/api/test_x.py",
		"tests/unit/conftest.py",
		"tests/unit/test_a.py",
		"tests/unit/test_b.py",
	}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("SortScanOrder() =\n  %v\nwant\n  %v", files, want)
	}
}

func TestIsWithinRoot(t *testing.T) {
	tests := []struct {
		name string
		path string
		root string
		want bool
	}{
		{"same directory", "/project", "/project", true},
		{"child file", "/project/tests/test_a.py", "/project", true},
		{"sibling with shared prefix", "/project2/test_a.py", "/project", false},
		{"parent", "/", "/project", false},
		{"dot-dot escape", "/project/../etc/passwd", "/project", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isWithinRoot(tt.path, tt.root); got != tt.want {
				t.Errorf("isWithinRoot(%q, %q) = %v, want %v", tt.path, tt.root, got, tt.want)
			}
		})
	}
}

func TestFindGitRoot(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(tmpDir, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(tmpDir, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	if got := findGitRoot(sub); got != tmpDir {
		t.Errorf("findGitRoot() from subdir = %q, want %q", got, tmpDir)
	}
}

func TestScanDirWithSymlinkDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	createFiles(t, tmpDir, map[string]string{"real/test_real.py": ""})

	outsideDir := t.TempDir()
	createFiles(t, outsideDir, map[string]string{"test_outside.py": ""})

	if err := os.Symlink(outsideDir, filepath.Join(tmpDir, "linked")); err != nil {
		t.Skip("Symlinks not supported on this system")
	}

	result, err := NewScanner(nil).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	for _, f := range result {
		if filepath.Base(f) == "test_outside.py" {
			t.Error("ScanDir() should not follow symlinks outside the root directory")
		}
	}
}

func TestScanDirWithUnresolvableSymlink(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.Symlink("/nonexistent/path/test_gone.py", filepath.Join(tmpDir, "test_gone.py")); err != nil {
		t.Skip("Symlinks not supported on this system")
	}
	createFiles(t, tmpDir, map[string]string{"test_real.py": ""})

	result, err := NewScanner(nil).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	if len(result) != 1 {
		t.Errorf("ScanDir() should skip the dangling symlink, got %d files", len(result))
	}
}
