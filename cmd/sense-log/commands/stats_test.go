package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sense-engine/sense-go/pkg/log"
)

func TestCollectStats(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	stats, err := CollectStats(reader)
	if err != nil {
		t.Fatalf("CollectStats failed: %v", err)
	}

	if stats.TotalEvents != 6 {
		t.Errorf("TotalEvents = %d, want 6", stats.TotalEvents)
	}
	if got := stats.EventsByKind[log.KindSensor]; got != 4 {
		t.Errorf("sensor events = %d, want 4", got)
	}
	if got := stats.EventsByCategory[log.CategoryFault]; got != 1 {
		t.Errorf("fault events = %d, want 1", got)
	}
	if stats.Dropped != 3 {
		t.Errorf("Dropped = %d, want 3", stats.Dropped)
	}
	if got := stats.FaultsByPhase[log.PhaseListener]; got != 1 {
		t.Errorf("listener faults = %d, want 1", got)
	}

	clock := stats.Sources[clockID]
	if clock == nil {
		t.Fatal("missing clock source")
	}
	if clock.Name != "clock" || clock.Events != 4 {
		t.Errorf("clock = %+v", clock)
	}
	if clock.Activations != 1 {
		t.Errorf("clock activations = %d, want 1", clock.Activations)
	}
	// The failed deactivation is not counted.
	if clock.Deactivations != 0 {
		t.Errorf("clock deactivations = %d, want 0", clock.Deactivations)
	}
}

func TestRunStatsOutput(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"Total Events: 6",
		"SENSOR:",
		"SUBSCRIPTION:",
		"LIFECYCLE:",
		"Sources: 2",
		`[3f1c9a2e] SENSOR "clock"`,
		`[9b7d4e10] SUBSCRIPTION "readings"`,
		"Faults by Phase:",
		"LISTENER:",
		"Dropped Values: 3",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestRunStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "Time Range") {
		t.Error("empty file should not print a time range")
	}
}
