package log

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// createTestLogFile writes events to a new trace file and returns its path.
func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test"+FileExtension)
	logger, err := NewFileLogger(path)
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

func sampleEvents(base time.Time) []Event {
	return []Event{
		{
			Timestamp: base, SourceID: "t-1", SourceName: "clock", Kind: KindTopic,
			Category:  CategoryLifecycle,
			Lifecycle: &LifecycleEvent{OldState: "IDLE", NewState: "ACTIVE"},
		},
		{
			Timestamp: base.Add(time.Second), SourceID: "s-1", Kind: KindSubscription,
			Category:   CategoryMembership,
			Membership: &MembershipEvent{Action: ActionSubscribe, Handle: 1, Count: 1},
		},
		{
			Timestamp: base.Add(2 * time.Second), SourceID: "s-1", Kind: KindSubscription,
			Category: CategoryDelivery,
			Delivery: &DeliveryEvent{Recipients: 1, Dropped: 2},
		},
		{
			Timestamp: base.Add(3 * time.Second), SourceID: "t-1", SourceName: "clock", Kind: KindTopic,
			Category: CategoryFault,
			Fault:    &FaultEvent{Phase: PhaseCallback, Handle: 4, Message: "boom"},
		},
	}
}

func TestFileLoggerRoundTrip(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	path := createTestLogFile(t, sampleEvents(base))

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	events, err := r.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("read %d events, want 4", len(events))
	}
	if !events[0].Timestamp.Equal(base) {
		t.Errorf("Timestamp = %v, want %v", events[0].Timestamp, base)
	}
	if events[2].Delivery == nil || events[2].Delivery.Dropped != 2 {
		t.Errorf("Delivery = %+v, want Dropped 2", events[2].Delivery)
	}
	if events[3].Fault == nil || events[3].Fault.Message != "boom" {
		t.Errorf("Fault = %+v, want boom", events[3].Fault)
	}
}

func TestFileLoggerAppends(t *testing.T) {
	base := time.Now()
	path := createTestLogFile(t, sampleEvents(base)[:1])

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Log(sampleEvents(base)[1])
	logger.Close()

	r, _ := NewReader(path)
	defer r.Close()
	events, _ := r.All()
	if len(events) != 2 {
		t.Errorf("read %d events, want 2", len(events))
	}
}

func TestFileLoggerCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.slog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	// Ignored after close.
	logger.Log(Event{SourceID: "late"})
	if logger.Written() != 0 {
		t.Errorf("Written() = %d, want 0", logger.Written())
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("file size = %d, want 0", info.Size())
	}
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.slog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				logger.Log(Event{Timestamp: time.Now(), SourceID: string(rune('a' + i))})
			}
		}()
	}
	wg.Wait()
	logger.Close()

	r, _ := NewReader(path)
	defer r.Close()
	events, err := r.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(events) != 200 {
		t.Errorf("read %d events, want 200", len(events))
	}
}

func TestFilteredReader(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, sampleEvents(base))

	kind := KindSubscription
	cat := CategoryFault
	start := base.Add(time.Second)
	end := base.Add(3 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"source id", Filter{SourceID: "t-1"}, 2},
		{"source name", Filter{SourceName: "clock"}, 2},
		{"kind", Filter{Kind: &kind}, 2},
		{"category", Filter{Category: &cat}, 1},
		{"time window", Filter{TimeStart: &start, TimeEnd: &end}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader failed: %v", err)
			}
			defer r.Close()
			events, err := r.All()
			if err != nil {
				t.Fatalf("All failed: %v", err)
			}
			if len(events) != tt.want {
				t.Errorf("got %d events, want %d", len(events), tt.want)
			}
		})
	}
}

func TestReaderNextEOF(t *testing.T) {
	r := NewStreamReader(bytes.NewReader(nil), Filter{})
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() = %v, want io.EOF", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.slog")); err == nil {
		t.Error("NewReader on missing file succeeded")
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	in := sampleEvents(time.Date(2026, 5, 5, 5, 5, 5, 5, time.UTC))[3]
	data, err := EncodeEvent(in)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	out, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if out.Fault == nil || out.Fault.Handle != 4 || out.Fault.Phase != PhaseCallback {
		t.Errorf("decoded Fault = %+v", out.Fault)
	}
	if out.Lifecycle != nil || out.Membership != nil || out.Delivery != nil {
		t.Error("decoded event has extra payloads")
	}
}

func TestDecodeEventRejectsMismatchedPayload(t *testing.T) {
	base := time.Date(2026, 5, 5, 5, 5, 5, 5, time.UTC)

	wrong := sampleEvents(base)[0]
	wrong.Category = CategoryFault
	extra := sampleEvents(base)[1]
	extra.Delivery = &DeliveryEvent{Recipients: 1}
	unknown := sampleEvents(base)[2]
	unknown.Category = 9

	for name, e := range map[string]Event{"wrong": wrong, "extra": extra, "unknown": unknown} {
		data, err := EncodeEvent(e)
		if err != nil {
			t.Fatalf("%s: EncodeEvent failed: %v", name, err)
		}
		if _, err := DecodeEvent(data); !errors.Is(err, ErrMalformedEvent) {
			t.Errorf("%s: DecodeEvent() = %v, want ErrMalformedEvent", name, err)
		}
	}
}

func TestEncodeEventKeepsNanoseconds(t *testing.T) {
	in := sampleEvents(time.Date(2026, 5, 5, 5, 5, 5, 123456789, time.UTC))[0]
	data, err := EncodeEvent(in)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	out, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if !out.Timestamp.Equal(in.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", out.Timestamp, in.Timestamp)
	}
}
