package topic

import (
	"context"
	"sync"

	"github.com/sense-engine/sense-go/pkg/lifecycle"
	"github.com/sense-engine/sense-go/pkg/log"
)

// Value is a topic that carries the latest published value.
type Value[T any] struct {
	hub *hub[T]

	mu    sync.RWMutex
	value T
	ok    bool
}

// NewValue creates an idle value topic with no value.
func NewValue[T any](opts ...Option) *Value[T] {
	return &Value[T]{hub: newHub[T](buildOptions(opts), log.KindValue)}
}

// NewValueWithDefault creates an idle value topic holding v.
func NewValueWithDefault[T any](v T, opts ...Option) *Value[T] {
	t := NewValue[T](opts...)
	t.set(v)
	return t
}

// ID returns the topic's trace source ID.
func (t *Value[T]) ID() string { return t.hub.tracer.ID() }

// Name returns the topic's name.
func (t *Value[T]) Name() string { return t.hub.tracer.Name() }

// Get returns the latest value and whether one has been set.
func (t *Value[T]) Get() (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.value, t.ok
}

func (t *Value[T]) set(v T) {
	t.mu.Lock()
	t.value = v
	t.ok = true
	t.mu.Unlock()
}

// Publish stores v and delivers it to the current subscribers.
func (t *Value[T]) Publish(v T) {
	t.set(v)
	t.hub.publish(v)
}

// Subscribe adds fn. Activation rules are those of Topic.Subscribe.
func (t *Value[T]) Subscribe(fn func(T) bool) (Handle, error) {
	if fn == nil {
		return 0, ErrNilSubscriber
	}
	return t.hub.subscribe(fn)
}

// Unsubscribe removes the subscriber for h. Like Topic.Unsubscribe it does
// not wait for a hook running on another goroutine.
func (t *Value[T]) Unsubscribe(h Handle) bool {
	return t.hub.unsubscribe(h)
}

// UnsubscribeAll removes every subscriber and returns how many there were.
func (t *Value[T]) UnsubscribeAll() int {
	return t.hub.unsubscribeAll()
}

// Read blocks until a value satisfying pred is published, or ctx ends.
// The current value is not considered; use Get for that.
func (t *Value[T]) Read(ctx context.Context, pred func(T) bool) (T, error) {
	return t.hub.read(ctx, pred)
}

// Stream returns a channel carrying the latest published values. A slow
// receiver loses intermediate values but always sees the newest one. The
// channel is closed once ctx ends.
func (t *Value[T]) Stream(ctx context.Context) (<-chan T, error) {
	ch := make(chan T, 1)
	var mu sync.Mutex
	closed := false

	h, err := t.Subscribe(func(v T) bool {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return false
		}
		// Replace any unread value with v.
		select {
		case <-ch:
		default:
		}
		ch <- v
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
func (t *Value[T]) Count() int {
	return t.hub.count()
}

// State returns the activation state.
func (t *Value[T]) State() lifecycle.State {
	return t.hub.lc.State()
}
