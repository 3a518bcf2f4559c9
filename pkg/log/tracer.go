package log

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Tracer stamps events with a fixed source identity and forwards them to a
// Logger. Each topic and subscription owns one.
type Tracer struct {
	logger Logger
	id     string
	name   string
	kind   Kind
}

// NewTracer creates a tracer with a fresh UUID source ID. A nil logger
// disables tracing.
func NewTracer(logger Logger, kind Kind, name string) *Tracer {
	if logger == nil {
		logger = NoopLogger{}
	}
	return &Tracer{
		logger: logger,
		id:     uuid.NewString(),
		name:   name,
		kind:   kind,
	}
}

// ID returns the source ID.
func (t *Tracer) ID() string { return t.id }

// Name returns the source name.
func (t *Tracer) Name() string { return t.name }

// Enabled reports whether events go anywhere.
func (t *Tracer) Enabled() bool {
	_, noop := t.logger.(NoopLogger)
	return !noop
}

// Lifecycle records a state transition. err is set when a hook failed.
func (t *Tracer) Lifecycle(from, to string, err error) {
	ev := &LifecycleEvent{OldState: from, NewState: to}
	if err != nil {
		ev.Error = err.Error()
	}
	t.emit(CategoryLifecycle, func(e *Event) { e.Lifecycle = ev })
}

// Membership records a subscriber change.
func (t *Tracer) Membership(action Action, handle uint64, count int) {
	t.emit(CategoryMembership, func(e *Event) {
		e.Membership = &MembershipEvent{Action: action, Handle: handle, Count: count}
	})
}

// Delivery records a publish. Publishes that neither removed members nor
// dropped values are not recorded.
func (t *Tracer) Delivery(recipients, removed, dropped int) {
	if removed == 0 && dropped == 0 {
		return
	}
	t.emit(CategoryDelivery, func(e *Event) {
		e.Delivery = &DeliveryEvent{Recipients: recipients, Removed: removed, Dropped: dropped}
	})
}

// stackTracer is implemented by errors that carry a recovered stack.
type stackTracer interface {
	StackTrace() []byte
}

// Fault records a failure in user code.
func (t *Tracer) Fault(phase Phase, handle uint64, err error) {
	if err == nil {
		return
	}
	ev := &FaultEvent{Phase: phase, Handle: handle, Message: err.Error()}
	var st stackTracer
	if errors.As(err, &st) {
		ev.Stack = string(st.StackTrace())
	}
	t.emit(CategoryFault, func(e *Event) { e.Fault = ev })
}

func (t *Tracer) emit(category Category, fill func(*Event)) {
	if !t.Enabled() {
		return
	}
	e := Event{
		Timestamp:  time.Now(),
		SourceID:   t.id,
		SourceName: t.name,
		Kind:       t.kind,
		Category:   category,
	}
	fill(&e)
	t.logger.Log(e)
}
