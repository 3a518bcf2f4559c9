package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes engine events to an slog.Logger.
// Useful for development when you want to see engine activity in the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger. Faults are logged at Warn level,
// everything else at Debug.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("source_id", event.SourceID),
		slog.String("kind", event.Kind.String()),
		slog.String("category", event.Category.String()),
	}
	if event.SourceName != "" {
		attrs = append(attrs, slog.String("source", event.SourceName))
	}

	level := slog.LevelDebug
	switch {
	case event.Lifecycle != nil:
		attrs = append(attrs,
			slog.String("old_state", event.Lifecycle.OldState),
			slog.String("new_state", event.Lifecycle.NewState),
		)
		if event.Lifecycle.Error != "" {
			attrs = append(attrs, slog.String("error", event.Lifecycle.Error))
			level = slog.LevelWarn
		}
	case event.Membership != nil:
		attrs = append(attrs,
			slog.String("action", event.Membership.Action.String()),
			slog.Uint64("handle", event.Membership.Handle),
			slog.Int("count", event.Membership.Count),
		)
	case event.Delivery != nil:
		attrs = append(attrs,
			slog.Int("recipients", event.Delivery.Recipients),
			slog.Int("removed", event.Delivery.Removed),
			slog.Int("dropped", event.Delivery.Dropped),
		)
	case event.Fault != nil:
		attrs = append(attrs,
			slog.String("phase", event.Fault.Phase.String()),
			slog.Uint64("handle", event.Fault.Handle),
			slog.String("error", event.Fault.Message),
		)
		level = slog.LevelWarn
	}

	a.logger.LogAttrs(context.Background(), level, "engine", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
