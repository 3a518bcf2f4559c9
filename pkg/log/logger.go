package log

import "slices"

// Logger receives engine trace events. Topics and subscriptions call Log on
// their publish and lifecycle paths, so implementations must be safe for
// concurrent use and should not block. A nil Logger disables tracing.
type Logger interface {
	Log(event Event)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(Event)

// Log calls f(event).
func (f LoggerFunc) Log(event Event) { f(event) }

// NoopLogger discards every event. The zero value is ready to use.
type NoopLogger struct{}

// Log does nothing.
func (NoopLogger) Log(Event) {}

// Filtered forwards to next only the events keep accepts.
func Filtered(next Logger, keep func(Event) bool) Logger {
	if next == nil {
		return NoopLogger{}
	}
	return LoggerFunc(func(e Event) {
		if keep(e) {
			next.Log(e)
		}
	})
}

// InCategories returns a predicate accepting events of the given categories.
// With no categories it accepts everything.
func InCategories(cats ...Category) func(Event) bool {
	cats = slices.Clone(cats)
	return func(e Event) bool {
		return len(cats) == 0 || slices.Contains(cats, e.Category)
	}
}

var (
	_ Logger = NoopLogger{}
	_ Logger = LoggerFunc(nil)
)
