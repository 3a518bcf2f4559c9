package topic

import (
	"context"
	"sync"

	"github.com/sense-engine/sense-go/pkg/lifecycle"
	"github.com/sense-engine/sense-go/pkg/log"
)

// Subscriber is notified on every publish. Returning false unsubscribes it.
type Subscriber func() bool

// Topic is a reference-counted, zero-payload notification point.
type Topic struct {
	hub *hub[struct{}]
}

// New creates an idle topic.
func New(opts ...Option) *Topic {
	return &Topic{hub: newHub[struct{}](buildOptions(opts), log.KindTopic)}
}

// Lazy creates a topic whose producer is started by start on the first
// subscription and stopped by stop when the last subscriber leaves.
func Lazy(start func() error, stop func() error, opts ...Option) *Topic {
	return New(append([]Option{WithOnActivated(start), WithOnDeactivated(stop)}, opts...)...)
}

// ID returns the topic's trace source ID.
func (t *Topic) ID() string { return t.hub.tracer.ID() }

// Name returns the topic's name.
func (t *Topic) Name() string { return t.hub.tracer.Name() }

// Subscribe adds s. If s is the first subscriber, the activation hook runs
// before Subscribe returns; if it fails, s is not added and the error is
// returned.
func (t *Topic) Subscribe(s Subscriber) (Handle, error) {
	if s == nil {
		return 0, ErrNilSubscriber
	}
	return t.hub.subscribe(func(struct{}) bool { return s() })
}

// Unsubscribe removes the subscriber for h. It returns false if h is not
// subscribed. Removing the last subscriber deactivates the topic. Unsubscribe
// never waits for a lifecycle hook running on another goroutine; in that case
// it returns at once and the deactivation hook runs on that goroutine when
// its hook finishes, so State may still report Active right after return.
func (t *Topic) Unsubscribe(h Handle) bool {
	return t.hub.unsubscribe(h)
}

// UnsubscribeAll removes every subscriber and returns how many there were.
// Deactivation follows the same rules as Unsubscribe.
func (t *Topic) UnsubscribeAll() int {
	return t.hub.unsubscribeAll()
}

// Publish notifies the current subscribers.
func (t *Topic) Publish() {
	t.hub.publish(struct{}{})
}

// Read blocks until a publish for which pred returns true, or until ctx
// ends. A nil pred accepts the next publish. pred is evaluated on the
// publishing goroutine.
func (t *Topic) Read(ctx context.Context, pred func() bool) error {
	var p func(struct{}) bool
	if pred != nil {
		p = func(struct{}) bool { return pred() }
	}
	_, err := t.hub.read(ctx, p)
	return err
}

// Stream returns a channel that receives a value after publishes. Bursts
// are conflated: a slow receiver sees at least one value after the latest
// publish. The channel is closed once ctx ends.
func (t *Topic) Stream(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	var mu sync.Mutex
	closed := false

	h, err := t.Subscribe(func() bool {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return false
		}
		select {
		case ch <- struct{}{}:
		default:
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		t.Unsubscribe(h)
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()
	return ch, nil
}

// Count returns the number of subscribers.
func (t *Topic) Count() int {
	return t.hub.count()
}

// State returns the activation state.
func (t *Topic) State() lifecycle.State {
	return t.hub.lc.State()
}
