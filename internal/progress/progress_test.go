package progress

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestNewTracker(t *testing.T) {
	tests := []struct {
		name  string
		label string
		total int
	}{
		{"standard tracker", "Parsing test files", 100},
		{"zero total", "Nothing to parse", 0},
		{"single file", "Parsing conftest.py", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newTracker(&bytes.Buffer{}, tt.label, tt.total)
			if tracker.bar == nil {
				t.Error("tracker.bar should not be nil")
			}
			if tracker.label != tt.label {
				t.Errorf("tracker.label = %q, want %q", tracker.label, tt.label)
			}
		})
	}
}

func TestTrackerTickConcurrent(t *testing.T) {
	tracker := newTracker(&bytes.Buffer{}, "Parsing", 200)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				tracker.Tick()
			}
		}()
	}
	wg.Wait()

	if got := tracker.Ticks(); got != 200 {
		t.Errorf("Ticks() = %d, want 200", got)
	}
	tracker.FinishSuccess()
}

func TestTrackerFinishMessages(t *testing.T) {
	var buf bytes.Buffer
	tracker := newTracker(&buf, "Parsing test files", 3)
	tracker.Tick()
	tracker.FinishSkipped("no test files")
	if !strings.Contains(buf.String(), "Parsing test files skipped (no test files)") {
		t.Errorf("FinishSkipped() output = %q", buf.String())
	}

	buf.Reset()
	spinner := newSpinner(&buf, "Watching")
	spinner.FinishError(errors.New("watcher closed"))
	if !strings.Contains(buf.String(), "Watching error: watcher closed") {
		t.Errorf("FinishError() output = %q", buf.String())
	}
}

func TestTrackerNilSafety(t *testing.T) {
	var tracker *Tracker
	tracker.Tick()
	tracker.FinishSuccess()
	tracker.FinishSkipped("quiet")
	tracker.FinishError(errors.New("ignored"))
	if tracker.Ticks() != 0 {
		t.Error("nil tracker should report zero ticks")
	}
}

func TestForFilesQuiet(t *testing.T) {
	if ForFiles(10, true) != nil {
		t.Error("ForFiles() should return nil in quiet mode")
	}
	if ForFiles(0, false) != nil {
		t.Error("ForFiles() should return nil when there is nothing to parse")
	}
}
