package log

import (
	"strings"
	"time"
)

// Event is a single engine trace record.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SourceID identifies the emitting topic or subscription (UUID).
	SourceID string `cbor:"2,keyasint"`

	// SourceName is the optional human-readable name of the source.
	SourceName string `cbor:"3,keyasint,omitempty"`

	// Kind of source that emitted the event.
	Kind Kind `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Type-specific payload (one of these will be set).
	Lifecycle  *LifecycleEvent  `cbor:"10,keyasint,omitempty"`
	Membership *MembershipEvent `cbor:"11,keyasint,omitempty"`
	Delivery   *DeliveryEvent   `cbor:"12,keyasint,omitempty"`
	Fault      *FaultEvent      `cbor:"13,keyasint,omitempty"`
}

// Kind is the kind of engine primitive that emitted an event.
type Kind uint8

const (
	// KindTopic is a zero-payload topic.
	KindTopic Kind = 0
	// KindValue is a value-carrying topic.
	KindValue Kind = 1
	// KindSubscription is a buffered subscription.
	KindSubscription Kind = 2
	// KindSensor is a sensor built on a topic.
	KindSensor Kind = 3
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTopic:
		return "TOPIC"
	case KindValue:
		return "VALUE"
	case KindSubscription:
		return "SUBSCRIPTION"
	case KindSensor:
		return "SENSOR"
	default:
		return "UNKNOWN"
	}
}

// ParseKind parses a kind name, case-insensitively.
func ParseKind(s string) (Kind, bool) {
	for k := KindTopic; k <= KindSensor; k++ {
		if strings.EqualFold(s, k.String()) {
			return k, true
		}
	}
	return 0, false
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryLifecycle indicates an activation state transition.
	CategoryLifecycle Category = 0
	// CategoryMembership indicates a subscriber or listener change.
	CategoryMembership Category = 1
	// CategoryDelivery indicates a notable publish.
	CategoryDelivery Category = 2
	// CategoryFault indicates a panic or error raised by a callback.
	CategoryFault Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryLifecycle:
		return "LIFECYCLE"
	case CategoryMembership:
		return "MEMBERSHIP"
	case CategoryDelivery:
		return "DELIVERY"
	case CategoryFault:
		return "FAULT"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory parses a category name, case-insensitively.
func ParseCategory(s string) (Category, bool) {
	for c := CategoryLifecycle; c <= CategoryFault; c++ {
		if strings.EqualFold(s, c.String()) {
			return c, true
		}
	}
	return 0, false
}

// LifecycleEvent captures an IDLE/ACTIVE transition.
type LifecycleEvent struct {
	// OldState is the state before the transition.
	OldState string `cbor:"1,keyasint"`

	// NewState is the attempted new state.
	NewState string `cbor:"2,keyasint"`

	// Error is set when a hook failed. A failed activation leaves the
	// source in OldState.
	Error string `cbor:"3,keyasint,omitempty"`
}

// MembershipEvent captures a subscriber or listener change.
type MembershipEvent struct {
	// Action performed.
	Action Action `cbor:"1,keyasint"`

	// Handle of the affected subscriber (0 for bulk actions).
	Handle uint64 `cbor:"2,keyasint,omitempty"`

	// Count is the number of members after the change.
	Count int `cbor:"3,keyasint"`
}

// Action is a membership change.
type Action uint8

const (
	// ActionSubscribe indicates a member was added.
	ActionSubscribe Action = 0
	// ActionUnsubscribe indicates a member was removed by its owner.
	ActionUnsubscribe Action = 1
	// ActionUnsubscribeAll indicates every member was removed.
	ActionUnsubscribeAll Action = 2
	// ActionReplace indicates a listener was replaced under the same handle.
	ActionReplace Action = 3
	// ActionExpire indicates a member removed itself (returned false or failed).
	ActionExpire Action = 4
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionSubscribe:
		return "SUBSCRIBE"
	case ActionUnsubscribe:
		return "UNSUBSCRIBE"
	case ActionUnsubscribeAll:
		return "UNSUBSCRIBE_ALL"
	case ActionReplace:
		return "REPLACE"
	case ActionExpire:
		return "EXPIRE"
	default:
		return "UNKNOWN"
	}
}

// DeliveryEvent captures a publish that changed membership or lost values.
type DeliveryEvent struct {
	// Recipients is the number of members the value was offered to.
	Recipients int `cbor:"1,keyasint"`

	// Removed is the number of members that expired during delivery.
	Removed int `cbor:"2,keyasint,omitempty"`

	// Dropped is the number of buffered values discarded by overflow.
	Dropped int `cbor:"3,keyasint,omitempty"`
}

// FaultEvent captures a failure raised by user code.
type FaultEvent struct {
	// Phase in which the fault occurred.
	Phase Phase `cbor:"1,keyasint"`

	// Handle of the member whose callback failed (0 if not member-specific).
	Handle uint64 `cbor:"2,keyasint,omitempty"`

	// Message is the error message.
	Message string `cbor:"3,keyasint"`

	// Stack is the goroutine stack for recovered panics.
	Stack string `cbor:"4,keyasint,omitempty"`
}

// Phase indicates where a fault occurred.
type Phase uint8

const (
	// PhaseCallback is a topic subscriber callback.
	PhaseCallback Phase = 0
	// PhaseListener is a subscription listener.
	PhaseListener Phase = 1
	// PhaseTransform is a subscription transform.
	PhaseTransform Phase = 2
	// PhaseActivate is an activation hook.
	PhaseActivate Phase = 3
	// PhaseDeactivate is a deactivation hook.
	PhaseDeactivate Phase = 4
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseCallback:
		return "CALLBACK"
	case PhaseListener:
		return "LISTENER"
	case PhaseTransform:
		return "TRANSFORM"
	case PhaseActivate:
		return "ACTIVATE"
	case PhaseDeactivate:
		return "DEACTIVATE"
	default:
		return "UNKNOWN"
	}
}
