package log

import "github.com/rs/zerolog"

// ZerologAdapter writes engine events to a zerolog.Logger.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a ZerologAdapter.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// Log writes the event. Levels match SlogAdapter.
func (a *ZerologAdapter) Log(event Event) {
	var e *zerolog.Event
	if event.Fault != nil || (event.Lifecycle != nil && event.Lifecycle.Error != "") {
		e = a.logger.Warn()
	} else {
		e = a.logger.Debug()
	}

	e = e.Str("source_id", event.SourceID).
		Str("kind", event.Kind.String()).
		Str("category", event.Category.String())
	if event.SourceName != "" {
		e = e.Str("source", event.SourceName)
	}

	switch {
	case event.Lifecycle != nil:
		e = e.Str("old_state", event.Lifecycle.OldState).
			Str("new_state", event.Lifecycle.NewState)
		if event.Lifecycle.Error != "" {
			e = e.Str("error", event.Lifecycle.Error)
		}
	case event.Membership != nil:
		e = e.Str("action", event.Membership.Action.String()).
			Uint64("handle", event.Membership.Handle).
			Int("count", event.Membership.Count)
	case event.Delivery != nil:
		e = e.Int("recipients", event.Delivery.Recipients).
			Int("removed", event.Delivery.Removed).
			Int("dropped", event.Delivery.Dropped)
	case event.Fault != nil:
		e = e.Str("phase", event.Fault.Phase.String()).
			Uint64("handle", event.Fault.Handle).
			Str("error", event.Fault.Message)
	}

	e.Time("at", event.Timestamp).Msg("engine")
}

// Compile-time interface satisfaction check.
var _ Logger = (*ZerologAdapter)(nil)
