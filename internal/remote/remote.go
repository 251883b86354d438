// Package remote resolves repository references like owner/repo@ref to
// temporary clones so their test suites can be analyzed.
package remote

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Source represents a remote repository to analyze.
type Source struct {
	URL      string // normalized git URL
	Ref      string // branch, tag, or SHA (empty = default branch)
	CloneDir string // temp directory after clone
}

// Parse detects if a path is a remote reference.
// Returns nil if path exists on filesystem (local path takes precedence).
// A bare owner/repo is only remote with an explicit @ref, so a mistyped
// relative directory like tests/unit is never cloned.
func Parse(path string) (*Source, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, nil
	}

	// path@ref, where the @ is past the last separator so git@host: is kept
	ref := ""
	if idx := strings.LastIndex(path, "@"); idx != -1 && idx > strings.LastIndexAny(path, "/:") {
		ref = path[idx+1:]
		path = path[:idx]
		if ref == "" {
			return nil, fmt.Errorf("empty ref in %q", path+"@")
		}
	}

	switch {
	case strings.HasPrefix(path, "https://"), strings.HasPrefix(path, "http://"),
		strings.HasPrefix(path, "ssh://"), strings.HasPrefix(path, "git@"):
		return &Source{URL: path, Ref: ref}, nil
	case isHostPath(path):
		return &Source{URL: "https://" + path, Ref: ref}, nil
	case ref != "" && isGitHubShorthand(path):
		return &Source{URL: "https://github.com/" + path, Ref: ref}, nil
	}
	return nil, nil
}

// isHostPath returns true for host/owner/repo, e.g. github.com/golang/go.
func isHostPath(path string) bool {
	parts := strings.Split(path, "/")
	if len(parts) < 3 || !strings.Contains(parts[0], ".") {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

// isGitHubShorthand returns true if path matches owner/repo pattern.
func isGitHubShorthand(path string) bool {
	slashIdx := strings.Index(path, "/")
	if slashIdx == -1 {
		return false
	}
	// Must have exactly one slash
	if strings.Count(path, "/") != 1 {
		return false
	}
	// No dots before the slash (would indicate a domain)
	if strings.Contains(path[:slashIdx], ".") {
		return false
	}
	// Both parts must be non-empty
	return slashIdx > 0 && slashIdx < len(path)-1
}

// Clone clones the repository into a new temporary directory and checks out
// Ref. A shallow clone fetches only the tip commit; it is ignored when Ref
// is a commit SHA.
func (s *Source) Clone(ctx context.Context, progress io.Writer, shallow bool) error {
	dir, err := os.MkdirTemp("", "fixgraph-clone-*")
	if err != nil {
		return fmt.Errorf("failed to create clone directory: %w", err)
	}
	s.CloneDir = dir

	opts := &git.CloneOptions{
		URL:      s.URL,
		Progress: progress,
	}
	if shallow {
		opts.Depth = 1
	}

	switch {
	case s.Ref == "":
		_, err = git.PlainCloneContext(ctx, dir, false, opts)
	case isCommitHash(s.Ref):
		err = s.cloneAtCommit(ctx, opts)
	default:
		err = s.cloneAtRef(ctx, opts)
	}
	if err != nil {
		s.Cleanup()
		return fmt.Errorf("failed to clone %s: %w", s.display(), err)
	}
	return nil
}

func (s *Source) cloneAtCommit(ctx context.Context, opts *git.CloneOptions) error {
	opts.Depth = 0
	repo, err := git.PlainCloneContext(ctx, s.CloneDir, false, opts)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	return wt.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(s.Ref)})
}

// cloneAtRef tries Ref as a branch, then as a tag.
func (s *Source) cloneAtRef(ctx context.Context, opts *git.CloneOptions) error {
	var err error
	for _, name := range []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(s.Ref),
		plumbing.NewTagReferenceName(s.Ref),
	} {
		o := *opts
		o.ReferenceName = name
		o.SingleBranch = true
		if _, err = git.PlainCloneContext(ctx, s.CloneDir, false, &o); err == nil {
			return nil
		}
		if resetErr := resetDir(s.CloneDir); resetErr != nil {
			return resetErr
		}
	}
	return err
}

// Cleanup removes the clone directory.
func (s *Source) Cleanup() error {
	if s.CloneDir == "" {
		return nil
	}
	err := os.RemoveAll(s.CloneDir)
	s.CloneDir = ""
	return err
}

func (s *Source) display() string {
	if s.Ref == "" {
		return s.URL
	}
	return s.URL + "@" + s.Ref
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

func isCommitHash(ref string) bool {
	if len(ref) != 40 {
		return false
	}
	_, err := hex.DecodeString(ref)
	return err == nil
}
