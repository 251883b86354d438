// Package watch re-runs fixture analysis when Python sources change.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/panbanda/fixgraph/pkg/config"
	"github.com/panbanda/fixgraph/pkg/parser"
	"github.com/zeebo/blake3"
)

// DefaultDebounce is used when neither the caller nor the configuration
// sets a quiet period.
const DefaultDebounce = 300 * time.Millisecond

// Watcher monitors a directory tree and reports batches of changed Python
// files once they have been quiet for the debounce period.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    *config.Config
	debounce  time.Duration
	path      string
	callback  func(changed []string)
	out       io.Writer

	mu      sync.Mutex
	pending map[string]time.Time
	hashes  map[string][32]byte

	// runMu keeps callbacks from overlapping.
	runMu sync.Mutex
}

// NewWatcher creates a new file watcher. A non-positive debounce falls
// back to the configured watch.debounce_ms.
func NewWatcher(path string, cfg *config.Config, debounce time.Duration) (*Watcher, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = time.Duration(cfg.Watch.DebounceMS) * time.Millisecond
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		config:    cfg,
		debounce:  debounce,
		path:      path,
		out:       os.Stdout,
		pending:   make(map[string]time.Time),
		hashes:    make(map[string][32]byte),
	}, nil
}

// SetCallback sets the function called with each batch of changed files.
func (w *Watcher) SetCallback(cb func(changed []string)) {
	w.callback = cb
}

// SetOutput redirects the watcher's status messages.
func (w *Watcher) SetOutput(out io.Writer) {
	w.out = out
}

// Debounce returns the quiet period applied to changes.
func (w *Watcher) Debounce() time.Duration {
	return w.debounce
}

func (w *Watcher) skipDir(path, name string) bool {
	if path == w.path {
		return false
	}
	if strings.HasPrefix(name, ".") || name == "__pycache__" {
		return true
	}
	return slices.Contains(w.config.Exclude.Dirs, name)
}

// addTree watches root and every directory below it. Python files found
// are either hashed as the baseline or, with queue set, marked pending
// because their create events happened before the directory was watched.
func (w *Watcher) addTree(root string, queue bool) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		if info.IsDir() {
			if w.skipDir(path, info.Name()) {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}

		if parser.DetectLanguage(path) != parser.LangPython || w.config.ShouldExclude(path) {
			return nil
		}
		if queue {
			w.mu.Lock()
			w.pending[path] = time.Now()
			w.mu.Unlock()
			return nil
		}
		if sum, ok := hashFile(path); ok {
			w.mu.Lock()
			w.hashes[path] = sum
			w.mu.Unlock()
		}
		return nil
	})
}

// Start watches for changes until ctx is done or the watcher is stopped.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.path, false); err != nil {
		return err
	}

	color.New(color.FgCyan).Fprintf(w.out, "Watching for fixture changes in %s...\n", w.path)
	color.New(color.FgCyan).Fprintln(w.out, "Press Ctrl+C to stop")
	fmt.Fprintln(w.out)

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			color.New(color.FgRed).Fprintf(w.out, "Watch error: %v\n", err)
		}
	}
}

// handleEvent records a change to a Python file. New directories are
// added to the watch so files created inside them are seen.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.skipDir(path, info.Name()) {
				_ = w.addTree(path, true)
			}
			return
		}
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if parser.DetectLanguage(path) != parser.LangPython {
		return
	}
	if w.config.ShouldExclude(path) {
		return
	}

	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// processDebounced processes pending changes after debounce period.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPending()
		}
	}
}

// processPending collects files that have been stable for the debounce
// period and whose content actually changed, and hands them to the
// callback as one batch.
func (w *Watcher) processPending() {
	w.mu.Lock()
	now := time.Now()
	var changed []string
	for path, lastMod := range w.pending {
		if now.Sub(lastMod) < w.debounce {
			continue
		}
		delete(w.pending, path)
		if w.contentChanged(path) {
			changed = append(changed, path)
		}
	}
	w.mu.Unlock()

	if len(changed) == 0 || w.callback == nil {
		return
	}
	slices.Sort(changed)
	go w.runCallback(changed)
}

// contentChanged updates the recorded hash of path and reports whether it
// differs from the previous one. A removed file counts as changed once.
// Callers must hold w.mu.
func (w *Watcher) contentChanged(path string) bool {
	prev, known := w.hashes[path]
	sum, ok := hashFile(path)
	if !ok {
		delete(w.hashes, path)
		return known
	}
	w.hashes[path] = sum
	return !known || prev != sum
}

func hashFile(path string) ([32]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return [32]byte{}, false
	}
	return blake3.Sum256(data), true
}

// runCallback executes the callback for a batch of changed files.
func (w *Watcher) runCallback(changed []string) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	rel := make([]string, len(changed))
	for i, path := range changed {
		r, err := filepath.Rel(w.path, path)
		if err != nil {
			r = path
		}
		rel[i] = r
	}

	color.New(color.FgYellow).Fprintf(w.out, "\nChanged: %s\n", strings.Join(rel, ", "))
	fmt.Fprintln(w.out, strings.Repeat("-", 40))

	w.callback(changed)

	fmt.Fprintln(w.out)
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedDirs returns the directories being watched.
func (w *Watcher) WatchedDirs() []string {
	return w.fsWatcher.WatchList()
}
