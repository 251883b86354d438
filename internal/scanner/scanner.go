package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/panbanda/fixgraph/pkg/config"
	"github.com/panbanda/fixgraph/pkg/parser"
)

// ConftestName is the file pytest loads shared fixtures from.
const ConftestName = "conftest.py"

// PathError reports a path argument that cannot be scanned.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("path '%s' does not exist", e.Path)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// Scanner finds pytest files in a directory tree.
type Scanner struct {
	config *config.Config

	// patterns from config, matched relative to the scan root
	configMatcher gitignore.Matcher
	// patterns from .gitignore files, matched relative to the git root
	gitMatcher gitignore.Matcher
	gitRoot    string
}

// NewScanner creates a new file scanner.
func NewScanner(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Scanner{config: cfg}
}

// IsTestFile reports whether a file name is collected when walking a
// directory: test modules and conftest files.
func IsTestFile(name string) bool {
	if !strings.HasSuffix(name, ".py") {
		return false
	}
	return strings.HasPrefix(name, "test_") || name == ConftestName
}

// findGitRoot finds the root of the git repository by looking for .git directory.
// Returns empty string if not in a git repository.
func findGitRoot(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return ""
	}
	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadExcludePatterns loads exclusion patterns from both config and .gitignore files.
// Config patterns are parsed as gitignore patterns.
func (s *Scanner) loadExcludePatterns(root string) {
	s.configMatcher, s.gitMatcher, s.gitRoot = nil, nil, ""

	var patterns []gitignore.Pattern
	for _, pattern := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(pattern, nil))
	}
	if len(patterns) > 0 {
		s.configMatcher = gitignore.NewMatcher(patterns)
	}

	if !s.config.Exclude.Gitignore {
		return
	}
	gitRoot := findGitRoot(root)
	if gitRoot == "" {
		return
	}
	// ReadPatterns reads every .gitignore below the git root.
	gitPatterns, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil)
	if err != nil || len(gitPatterns) == 0 {
		return
	}
	s.gitMatcher = gitignore.NewMatcher(gitPatterns)
	s.gitRoot = gitRoot
}

// isExcluded checks a path, relative to the scan root, against config
// exclusions and .gitignore rules.
func (s *Scanner) isExcluded(absRoot, relPath string, isDir bool) bool {
	parts := strings.Split(filepath.ToSlash(relPath), "/")

	if isDir {
		for _, dir := range s.config.Exclude.Dirs {
			if parts[len(parts)-1] == dir {
				return true
			}
		}
	}

	if s.configMatcher != nil && s.configMatcher.Match(parts, isDir) {
		return true
	}

	if s.gitMatcher != nil {
		gitRel, err := filepath.Rel(s.gitRoot, filepath.Join(absRoot, relPath))
		if err == nil && !strings.HasPrefix(gitRel, "..") {
			if s.gitMatcher.Match(strings.Split(filepath.ToSlash(gitRel), "/"), isDir) {
				return true
			}
		}
	}
	return false
}

// skipName reports names that are never walked into or collected.
func skipName(name string) bool {
	return strings.HasPrefix(name, ".") || name == "__pycache__"
}

// Scan resolves path arguments to the files to analyze. A file argument
// is kept if it is a Python file; a directory is walked with ScanDir.
// Duplicates are dropped, keeping the first occurrence.
func (s *Scanner) Scan(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	add := func(f string) {
		key := f
		if abs, err := filepath.Abs(f); err == nil {
			key = abs
		}
		if seen[key] {
			return
		}
		seen[key] = true
		files = append(files, f)
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, &PathError{Path: p, Err: err}
		}

		if !info.IsDir() {
			ok, err := s.ScanFile(p)
			if err != nil {
				return nil, err
			}
			if ok {
				add(p)
			}
			continue
		}

		dirFiles, err := s.ScanDir(p)
		if err != nil {
			return nil, err
		}
		for _, f := range dirFiles {
			add(f)
		}
	}
	return files, nil
}

// ScanDir recursively scans a directory for test modules and conftest
// files, in scan order (see SortScanOrder).
// Validates that all paths stay within the root directory to prevent traversal attacks.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	files := make([]string, 0, 256)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, &PathError{Path: root, Err: err}
	}

	s.loadExcludePatterns(absRoot)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == root {
			return nil
		}

		relPath, _ := filepath.Rel(root, path)

		// Security: validate path stays within root (prevent symlink traversal)
		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if d.IsDir() {
			if skipName(d.Name()) || s.isExcluded(absRoot, relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if skipName(d.Name()) || !IsTestFile(d.Name()) {
			return nil
		}
		if s.isExcluded(absRoot, relPath, false) {
			return nil
		}
		files = append(files, path)
		return nil
	})

	SortScanOrder(files)
	return files, walkErr
}

// isWithinRoot checks if a path is contained within the root directory.
// Returns false if the path escapes via symlinks or relative paths.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)

	// Add separator to prevent "/root2" matching "/root"
	return strings.HasPrefix(absPath, root+string(filepath.Separator)) || absPath == root
}

// ScanFile checks if a single file argument should be analyzed. Unlike
// ScanDir, any Python file qualifies, not just test modules.
func (s *Scanner) ScanFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, &PathError{Path: path, Err: err}
	}
	if info.IsDir() {
		return false, nil
	}
	if parser.DetectLanguage(path) != parser.LangPython {
		return false, nil
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return false, err
	}
	s.loadExcludePatterns(dir)

	return !s.isExcluded(dir, filepath.Base(path), false), nil
}

// SortScanOrder orders files so that broader definitions are read first:
// shallower directories before deeper ones, and within a directory
// conftest.py before the test modules, which follow lexically. With
// last-declaration-wins this lets nested conftest files override their
// parents.
func SortScanOrder(files []string) {
	type key struct {
		depth    int
		dir      string
		conftest bool
		base     string
	}
	keys := make(map[string]key, len(files))
	for _, f := range files {
		dir := filepath.ToSlash(filepath.Dir(filepath.Clean(f)))
		depth := 0
		if dir != "." {
			depth = strings.Count(dir, "/") + 1
		}
		keys[f] = key{
			depth:    depth,
			dir:      dir,
			conftest: filepath.Base(f) == ConftestName,
			base:     filepath.Base(f),
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		a, b := keys[files[i]], keys[files[j]]
		if a.depth != b.depth {
			return a.depth < b.depth
		}
		if a.dir != b.dir {
			return a.dir < b.dir
		}
		if a.conftest != b.conftest {
			return a.conftest
		}
		return a.base < b.base
	})
}
