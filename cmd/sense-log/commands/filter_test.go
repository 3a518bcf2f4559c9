package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sense-engine/sense-go/pkg/log"
)

func readAll(t *testing.T, path string) []log.Event {
	t.Helper()
	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()
	events, err := reader.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	return events
}

func TestRunFilterByCategory(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	out := filepath.Join(t.TempDir(), "faults.slog")

	var buf bytes.Buffer
	err := RunFilter(path, FilterOptions{Output: out, Category: "fault"}, &buf)
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Filtered 1 events") {
		t.Errorf("summary = %q", buf.String())
	}

	events := readAll(t, out)
	if len(events) != 1 || events[0].Fault == nil {
		t.Fatalf("filtered events = %+v", events)
	}
	if events[0].Fault.Stack == "" {
		t.Error("stack lost in filtering")
	}
}

func TestRunFilterBySourceAndTime(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	out := filepath.Join(t.TempDir(), "clock.slog")

	opts := FilterOptions{
		Output:     out,
		SourceName: "clock",
		Kind:       "sensor",
		TimeStart:  "2026-01-28T10:00:00Z",
		TimeEnd:    "2026-01-28T10:00:01Z",
	}
	if err := RunFilter(path, opts, &bytes.Buffer{}); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	events := readAll(t, out)
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	for _, e := range events {
		if e.SourceID != clockID {
			t.Errorf("unexpected source %s", e.SourceID)
		}
	}
}

func TestBuildFilterErrors(t *testing.T) {
	tests := []struct {
		name string
		opts FilterOptions
	}{
		{"bad kind", FilterOptions{Kind: "gps"}},
		{"bad category", FilterOptions{Category: "message"}},
		{"bad start", FilterOptions{TimeStart: "yesterday"}},
		{"bad end", FilterOptions{TimeEnd: "2026-13-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.opts.BuildFilter(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRunFilterRequiresOutput(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	if err := RunFilter(path, FilterOptions{}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error without output")
	}
}
