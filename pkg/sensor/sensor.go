package sensor

import (
	"context"

	"github.com/sense-engine/sense-go/pkg/lifecycle"
	"github.com/sense-engine/sense-go/pkg/log"
	"github.com/sense-engine/sense-go/pkg/topic"
)

// Quality is the sensor's own estimate of its reading accuracy.
type Quality uint8

const (
	QualityUnknown Quality = iota
	QualityPoor
	QualityModerate
	QualityGood
)

// String returns the quality name.
func (q Quality) String() string {
	switch q {
	case QualityUnknown:
		return "UNKNOWN"
	case QualityPoor:
		return "POOR"
	case QualityModerate:
		return "MODERATE"
	case QualityGood:
		return "GOOD"
	default:
		return "INVALID"
	}
}

// Sensor is a producer observed through start/stop listener registration.
type Sensor interface {
	Quality() Quality
	HasValidReading() bool

	// Start registers l. The first registration starts the producer.
	Start(l topic.Subscriber) (topic.Handle, error)

	// Stop removes the listener for h. Removing the last listener runs StopImpl,
// normally before Stop returns. If StartImpl or StopImpl is running on
// another goroutine, Stop returns without waiting and StopImpl runs there
// once it finishes; IsActive may report true until then. Removing the last one stops the
	// producer.
	Stop(h topic.Handle) bool

	// StopAll removes every listener.
	StopAll() int

	// Read waits for the next reading.
	Read(ctx context.Context) error
}

// Impl is the producer behind a Base.
type Impl interface {
	StartImpl() error
	StopImpl() error
}

// Base implements the listener bookkeeping of Sensor on top of a lazy
// topic. Embedders supply HasValidReading and may override Quality.
type Base struct {
	topic *topic.Topic
}

// NewBase creates a Base driving impl. Options are passed to the underlying
// topic; activation hooks given there are replaced by impl.
func NewBase(impl Impl, opts ...topic.Option) *Base {
	all := make([]topic.Option, 0, len(opts)+1)
	all = append(all, topic.WithKind(log.KindSensor))
	all = append(all, opts...)
	return &Base{topic: topic.Lazy(impl.StartImpl, impl.StopImpl, all...)}
}

// Quality returns QualityUnknown.
func (b *Base) Quality() Quality { return QualityUnknown }

// Start registers l. If l is the first listener, StartImpl runs before Start
// returns and its error is returned.
func (b *Base) Start(l topic.Subscriber) (topic.Handle, error) {
	return b.topic.Subscribe(l)
}

// Stop removes the listener for h.
func (b *Base) Stop(h topic.Handle) bool {
	return b.topic.Unsubscribe(h)
}

// StopAll removes every listener and returns how many there were. It waits
// for StopImpl under the same conditions as Stop.
func (b *Base) StopAll() int {
	return b.topic.UnsubscribeAll()
}

// Read starts the sensor if needed and waits for the next NotifyListeners
// call. The sensor stops again afterwards unless other listeners remain.
func (b *Base) Read(ctx context.Context) error {
	return b.topic.Read(ctx, nil)
}

// NotifyListeners tells every listener a new reading is available.
func (b *Base) NotifyListeners() {
	b.topic.Publish()
}

// IsActive reports whether the producer is running.
func (b *Base) IsActive() bool {
	return b.topic.State() == lifecycle.StateActive
}

// Count returns the number of listeners.
func (b *Base) Count() int {
	return b.topic.Count()
}

// Topic returns the underlying topic.
func (b *Base) Topic() *topic.Topic {
	return b.topic
}
