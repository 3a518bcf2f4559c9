package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sense-engine/sense-go/pkg/log"
)

const (
	clockID    = "3f1c9a2e-5b7d-4c1a-9e2f-0a1b2c3d4e5f"
	readingsID = "9b7d4e10-2c3a-4f5b-8d6e-7f8091a2b3c4"
)

var baseTime = time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)

// createTestLogFile writes events to a trace file in a temp dir.
func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test"+log.FileExtension)
	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

// sessionEvents is a short sensor session with one lossy subscription.
func sessionEvents() []log.Event {
	at := func(ms int) time.Time { return baseTime.Add(time.Duration(ms) * time.Millisecond) }
	return []log.Event{
		{
			Timestamp: at(0), SourceID: clockID, SourceName: "clock",
			Kind: log.KindSensor, Category: log.CategoryMembership,
			Membership: &log.MembershipEvent{Action: log.ActionSubscribe, Handle: 1, Count: 1},
		},
		{
			Timestamp: at(1), SourceID: clockID, SourceName: "clock",
			Kind: log.KindSensor, Category: log.CategoryLifecycle,
			Lifecycle: &log.LifecycleEvent{OldState: "IDLE", NewState: "ACTIVE"},
		},
		{
			Timestamp: at(2), SourceID: readingsID, SourceName: "readings",
			Kind: log.KindSubscription, Category: log.CategoryDelivery,
			Delivery: &log.DeliveryEvent{Recipients: 2, Dropped: 3},
		},
		{
			Timestamp: at(3), SourceID: readingsID, SourceName: "readings",
			Kind: log.KindSubscription, Category: log.CategoryFault,
			Fault: &log.FaultEvent{
				Phase:   log.PhaseListener,
				Handle:  2,
				Message: "listener panicked: boom",
				Stack:   "goroutine 7 [running]:\nmain.main()",
			},
		},
		{
			Timestamp: at(4), SourceID: clockID, SourceName: "clock",
			Kind: log.KindSensor, Category: log.CategoryMembership,
			Membership: &log.MembershipEvent{Action: log.ActionExpire, Handle: 1, Count: 0},
		},
		{
			Timestamp: at(5), SourceID: clockID, SourceName: "clock",
			Kind: log.KindSensor, Category: log.CategoryLifecycle,
			Lifecycle: &log.LifecycleEvent{OldState: "ACTIVE", NewState: "IDLE", Error: "deactivate: device busy"},
		},
	}
}
