package remote

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func TestParse_LocalPath(t *testing.T) {
	dir := t.TempDir()

	src, err := Parse(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src != nil {
		t.Errorf("expected nil for local path, got %+v", src)
	}
}

func TestParse_NotRemote(t *testing.T) {
	for _, input := range []string{"missing", "/abs/missing/tests", "a/b/c", "tests/unit", "pytest-dev/pytest"} {
		src, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", input, err)
		}
		if src != nil {
			t.Errorf("Parse(%q) = %+v, want nil", input, src)
		}
	}
}

func TestParse_GitHubShorthand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantURL string
		wantRef string
	}{
		{
			name:    "with ref suffix",
			input:   "pytest-dev/pytest@8.3.0",
			wantURL: "https://github.com/pytest-dev/pytest",
			wantRef: "8.3.0",
		},
		{
			name:    "with branch ref",
			input:   "owner/repo@feature-branch",
			wantURL: "https://github.com/owner/repo",
			wantRef: "feature-branch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if src == nil {
				t.Fatal("expected Source, got nil")
			}
			if src.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", src.URL, tt.wantURL)
			}
			if src.Ref != tt.wantRef {
				t.Errorf("Ref = %q, want %q", src.Ref, tt.wantRef)
			}
		})
	}
}

func TestParse_FullURLs(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantURL string
		wantRef string
	}{
		{
			name:    "github.com without scheme",
			input:   "github.com/pallets/flask",
			wantURL: "https://github.com/pallets/flask",
			wantRef: "",
		},
		{
			name:    "https URL",
			input:   "https://github.com/psf/requests",
			wantURL: "https://github.com/psf/requests",
			wantRef: "",
		},
		{
			name:    "gitlab URL",
			input:   "https://gitlab.com/group/project",
			wantURL: "https://gitlab.com/group/project",
			wantRef: "",
		},
		{
			name:    "SSH URL",
			input:   "git@github.com:owner/repo.git",
			wantURL: "git@github.com:owner/repo.git",
			wantRef: "",
		},
		{
			name:    "SSH URL with ref",
			input:   "git@github.com:owner/repo.git@main",
			wantURL: "git@github.com:owner/repo.git",
			wantRef: "main",
		},
		{
			name:    "URL with ref",
			input:   "github.com/pallets/flask@3.0.0",
			wantURL: "https://github.com/pallets/flask",
			wantRef: "3.0.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if src == nil {
				t.Fatal("expected Source, got nil")
			}
			if src.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", src.URL, tt.wantURL)
			}
			if src.Ref != tt.wantRef {
				t.Errorf("Ref = %q, want %q", src.Ref, tt.wantRef)
			}
		})
	}
}

func TestParse_EmptyRef(t *testing.T) {
	if _, err := Parse("owner/repo@"); err == nil {
		t.Error("expected error for empty ref")
	}
}

// initRepo creates a repository with one commit on master and a tag v1.
func initRepo(t *testing.T) (string, plumbing.Hash) {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "conftest.py"), []byte("import pytest\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("conftest.py"); err != nil {
		t.Fatal(err)
	}
	hash, err := wt.Commit("add conftest", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := repo.CreateTag("v1", hash, nil); err != nil {
		t.Fatalf("tag: %v", err)
	}
	return dir, hash
}

func TestSource_Clone(t *testing.T) {
	origin, _ := initRepo(t)
	src := &Source{URL: origin}

	if err := src.Clone(context.Background(), io.Discard, false); err != nil {
		t.Fatalf("Clone failed: %v", err)
	}
	defer src.Cleanup()

	if src.CloneDir == "" {
		t.Fatal("CloneDir not set")
	}
	if _, err := os.Stat(filepath.Join(src.CloneDir, "conftest.py")); err != nil {
		t.Errorf("conftest.py not checked out: %v", err)
	}
}

func TestSource_Clone_WithRef(t *testing.T) {
	origin, _ := initRepo(t)

	tests := []struct {
		ref      string
		isBranch bool
	}{
		{ref: "master", isBranch: true},
		{ref: "v1", isBranch: false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			src := &Source{URL: origin, Ref: tt.ref}
			if err := src.Clone(context.Background(), io.Discard, false); err != nil {
				t.Fatalf("Clone failed: %v", err)
			}
			defer src.Cleanup()

			repo, err := git.PlainOpen(src.CloneDir)
			if err != nil {
				t.Fatalf("open cloned repo: %v", err)
			}
			head, err := repo.Head()
			if err != nil {
				t.Fatalf("get HEAD: %v", err)
			}
			if tt.isBranch && (!head.Name().IsBranch() || head.Name().Short() != tt.ref) {
				t.Errorf("expected branch %s, got %s", tt.ref, head.Name())
			}
		})
	}
}

func TestSource_Clone_AtCommit(t *testing.T) {
	origin, hash := initRepo(t)
	src := &Source{URL: origin, Ref: hash.String()}

	if err := src.Clone(context.Background(), io.Discard, true); err != nil {
		t.Fatalf("Clone failed: %v", err)
	}
	defer src.Cleanup()

	repo, err := git.PlainOpen(src.CloneDir)
	if err != nil {
		t.Fatalf("open cloned repo: %v", err)
	}
	head, err := repo.Head()
	if err != nil {
		t.Fatalf("get HEAD: %v", err)
	}
	if head.Hash() != hash {
		t.Errorf("HEAD = %s, want %s", head.Hash(), hash)
	}
}

func TestSource_Clone_UnknownRef(t *testing.T) {
	origin, _ := initRepo(t)
	src := &Source{URL: origin, Ref: "no-such-branch"}

	if err := src.Clone(context.Background(), io.Discard, false); err == nil {
		src.Cleanup()
		t.Fatal("expected error for unknown ref")
	}
	if src.CloneDir != "" {
		t.Errorf("CloneDir should be cleaned up, got %s", src.CloneDir)
	}
}

func TestSource_Cleanup(t *testing.T) {
	dir := t.TempDir()
	src := &Source{CloneDir: filepath.Join(dir, "clone")}
	if err := os.MkdirAll(src.CloneDir, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := src.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "clone")); !os.IsNotExist(err) {
		t.Error("clone directory still exists")
	}
	if err := src.Cleanup(); err != nil {
		t.Errorf("second Cleanup() error: %v", err)
	}
}
