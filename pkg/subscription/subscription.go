package subscription

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/sense-engine/sense-go/pkg/executor"
	"github.com/sense-engine/sense-go/pkg/lifecycle"
	"github.com/sense-engine/sense-go/pkg/log"
)

// Subscription errors.
var (
	ErrNilListener   = errors.New("nil listener")
	ErrUnknownHandle = errors.New("unknown listener handle")
)

// Handle identifies a listener. The zero Handle is never issued.
type Handle uint64

// Listener consumes values. ctx is cancelled when the listener is
// unsubscribed or replaced; a listener blocked on slow work should honour it.
type Listener[T any] func(ctx context.Context, value T)

// Stats is a snapshot of delivery counters.
type Stats struct {
	// Listeners is the current number of listeners.
	Listeners int

	// Published is the number of Publish calls.
	Published uint64

	// Dropped is the number of values discarded by overflow, summed over
	// listeners.
	Dropped uint64

	// Failed is the number of listeners ended by a transform failure.
	Failed uint64
}

type task[T any] struct {
	handle    Handle
	listener  Listener[T]
	transform Transform[T]
	queue     *queue[T]
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}

	started bool // guarded by Subscription.mu
}

func (t *task[T]) stop() {
	t.cancel()
	t.queue.close()
}

func (t *task[T]) apply(v T) (out T, keep bool, err error) {
	if t.transform == nil {
		return v, true, nil
	}
	if ferr := executor.Guard(func() { out, keep, err = t.transform(v) }); ferr != nil {
		return v, false, ferr
	}
	return out, keep, err
}

// Subscription is a multi-listener buffered stream of T.
type Subscription[T any] struct {
	policy  Policy
	lc      *lifecycle.Machine
	tracer  *log.Tracer
	safe    *executor.Safe
	onError func(Handle, error)

	mu       sync.Mutex
	tasks    map[Handle]*task[T]
	running  map[*task[T]]struct{}
	history  []T
	next     Handle
	failures error

	published atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// New creates an idle subscription.
func New[T any](opts ...Option) (*Subscription[T], error) {
	o := options{policy: DefaultPolicy()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.policy.Validate(); err != nil {
		return nil, err
	}

	s := &Subscription[T]{
		policy:  o.policy,
		tracer:  log.NewTracer(o.logger, log.KindSubscription, o.name),
		safe:    executor.NewSafe(executor.Inline, o.onFault),
		onError: o.onError,
		tasks:   make(map[Handle]*task[T]),
		running: make(map[*task[T]]struct{}),
	}
	s.lc = lifecycle.New(s.empty, lifecycle.Hooks{
		OnActivated:   o.onActivated,
		OnDeactivated: o.onDeactivated,
		OnTransition:  s.transition,
	})
	return s, nil
}

func (s *Subscription[T]) transition(from, to lifecycle.State, err error) {
	s.tracer.Lifecycle(from.String(), to.String(), err)
	if err == nil {
		return
	}
	if to == lifecycle.StateActive {
		s.tracer.Fault(log.PhaseActivate, 0, err)
		return
	}
	s.tracer.Fault(log.PhaseDeactivate, 0, err)
	s.safe.Report(err)
}

func (s *Subscription[T]) empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks) == 0
}

// ID returns the trace source ID.
func (s *Subscription[T]) ID() string { return s.tracer.ID() }

// Name returns the subscription's name.
func (s *Subscription[T]) Name() string { return s.tracer.Name() }

// Policy returns the buffering policy.
func (s *Subscription[T]) Policy() Policy { return s.policy }

// newTaskLocked creates a task seeded with the replay history. s.mu must be
// held so that no publish slips between seeding and registration.
func (s *Subscription[T]) newTaskLocked(h Handle, l Listener[T], transforms []Transform[T]) *task[T] {
	ctx, cancel := context.WithCancel(context.Background())
	t := &task[T]{
		handle:    h,
		listener:  l,
		transform: Chain(transforms...),
		queue:     newQueue[T](s.policy.BufferSize(), s.policy.Overflow),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for _, v := range s.history {
		t.queue.seed(v)
	}
	return t
}

// Subscribe registers l with optional transforms. If l is the first
// listener, the activation hook runs first; if it fails, l is not registered
// and the error is returned. l starts consuming only after activation.
func (s *Subscription[T]) Subscribe(l Listener[T], transforms ...Transform[T]) (Handle, error) {
	t, err := s.subscribe(l, transforms)
	if err != nil {
		return 0, err
	}
	return t.handle, nil
}

func (s *Subscription[T]) subscribe(l Listener[T], transforms []Transform[T]) (*task[T], error) {
	if l == nil {
		return nil, ErrNilListener
	}

	var t *task[T]
	var n int
	err := s.lc.Attach(func() {
		s.mu.Lock()
		s.next++
		t = s.newTaskLocked(s.next, l, transforms)
		s.tasks[t.handle] = t
		n = len(s.tasks)
		s.mu.Unlock()
	}, func() {
		s.mu.Lock()
		delete(s.tasks, t.handle)
		s.mu.Unlock()
		t.stop()
	})
	if err != nil {
		return nil, err
	}

	s.start(t)
	s.tracer.Membership(log.ActionSubscribe, uint64(t.handle), n)
	return t, nil
}

// Replace swaps the listener registered under h. The previous listener's
// context is cancelled before the new one starts; the new listener receives
// the replay history like any new listener.
func (s *Subscription[T]) Replace(h Handle, l Listener[T], transforms ...Transform[T]) error {
	if l == nil {
		return ErrNilListener
	}

	s.mu.Lock()
	old, ok := s.tasks[h]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	t := s.newTaskLocked(h, l, transforms)
	s.tasks[h] = t
	n := len(s.tasks)
	s.mu.Unlock()

	old.stop()
	s.start(t)
	s.tracer.Membership(log.ActionReplace, uint64(h), n)
	return nil
}

// Unsubscribe cancels the listener for h. It does not wait for an in-flight
// callback to return. Removing the last listener runs the deactivation hook
// before Unsubscribe returns.
func (s *Subscription[T]) Unsubscribe(h Handle) bool {
	var t *task[T]
	var n int
	s.lc.Detach(func() {
		s.mu.Lock()
		t = s.tasks[h]
		delete(s.tasks, h)
		n = len(s.tasks)
		s.mu.Unlock()
		if t != nil {
			t.stop()
		}
	})
	if t == nil {
		return false
	}
	s.tracer.Membership(log.ActionUnsubscribe, uint64(h), n)
	return true
}

// UnsubscribeAll cancels every listener and returns how many there were.
func (s *Subscription[T]) UnsubscribeAll() int {
	var removed []*task[T]
	s.lc.Detach(func() {
		s.mu.Lock()
		for h, t := range s.tasks {
			removed = append(removed, t)
			delete(s.tasks, h)
		}
		s.mu.Unlock()
		for _, t := range removed {
			t.stop()
		}
	})
	if len(removed) > 0 {
		s.tracer.Membership(log.ActionUnsubscribeAll, 0, 0)
	}
	return len(removed)
}

// Publish offers v to every listener. It returns false if at least one
// listener rejected v (DropLatest with a full buffer). Under Block, Publish
// waits for slow listeners; use PublishContext to bound the wait. A listener
// that has not started consuming yet, as during the activation hook, never
// makes Publish wait: its full buffer drops the oldest value instead.
func (s *Subscription[T]) Publish(v T) bool {
	accepted, _ := s.deliver(context.Background(), v)
	return accepted
}

// PublishContext is Publish with a context for Block waits. If ctx ends
// while waiting, listeners not yet reached do not receive v.
func (s *Subscription[T]) PublishContext(ctx context.Context, v T) error {
	_, err := s.deliver(ctx, v)
	return err
}

func (s *Subscription[T]) deliver(ctx context.Context, v T) (bool, error) {
	s.mu.Lock()
	if s.policy.Replay > 0 {
		s.history = append(s.history, v)
		if len(s.history) > s.policy.Replay {
			s.history = slices.Delete(s.history, 0, len(s.history)-s.policy.Replay)
		}
	}
	targets := make([]*task[T], 0, len(s.tasks))
	waiting := make([]bool, 0, len(s.tasks))
	for _, t := range s.tasks {
		targets = append(targets, t)
		waiting = append(waiting, !t.started)
	}
	s.mu.Unlock()
	s.published.Add(1)

	accepted := true
	dropped := 0
	defer func() {
		if dropped > 0 {
			s.dropped.Add(uint64(dropped))
		}
		s.tracer.Delivery(len(targets), 0, dropped)
	}()

	for i, t := range targets {
		var ok bool
		var d int
		var err error
		if waiting[i] {
			// Not consuming yet, for example while the activation hook
			// publishes. Waiting for room here could never end.
			ok, d, err = t.queue.offer(v)
		} else {
			ok, d, err = t.queue.push(ctx, v)
		}
		dropped += d
		if errors.Is(err, errQueueClosed) {
			continue
		}
		if err != nil {
			return false, err
		}
		if !ok {
			accepted = false
		}
	}
	return accepted, nil
}

func (s *Subscription[T]) start(t *task[T]) {
	s.mu.Lock()
	t.started = true
	s.running[t] = struct{}{}
	s.mu.Unlock()
	go s.run(t)
}

func (s *Subscription[T]) run(t *task[T]) {
	defer func() {
		s.mu.Lock()
		delete(s.running, t)
		s.mu.Unlock()
		close(t.done)
	}()

	for {
		v, ok := t.queue.pop(t.ctx)
		if !ok || t.ctx.Err() != nil {
			return
		}
		out, keep, err := t.apply(v)
		if err != nil {
			s.fail(t, err)
			return
		}
		if !keep {
			continue
		}
		if ferr := s.safe.Run(func() { t.listener(t.ctx, out) }); ferr != nil {
			s.tracer.Fault(log.PhaseListener, uint64(t.handle), ferr)
		}
	}
}

// fail ends t after a transform failure.
func (s *Subscription[T]) fail(t *task[T], err error) {
	err = fmt.Errorf("listener %d: %w", t.handle, err)
	s.failed.Add(1)
	s.mu.Lock()
	s.failures = multierr.Append(s.failures, err)
	s.mu.Unlock()

	s.tracer.Fault(log.PhaseTransform, uint64(t.handle), err)
	if s.onError != nil {
		if herr := executor.Guard(func() { s.onError(t.handle, err) }); herr != nil {
			s.safe.Report(herr)
		}
	} else {
		s.safe.Report(err)
	}

	removed := false
	var n int
	s.lc.Detach(func() {
		s.mu.Lock()
		if cur, ok := s.tasks[t.handle]; ok && cur == t {
			delete(s.tasks, t.handle)
			removed = true
		}
		n = len(s.tasks)
		s.mu.Unlock()
		t.stop()
	})
	if removed {
		s.tracer.Membership(log.ActionExpire, uint64(t.handle), n)
	}
}

// Stream registers a listener that forwards values to the returned channel.
// The channel is unbuffered, so the subscription's policy governs what a slow
// reader loses. It is closed after ctx ends or the listener is removed.
func (s *Subscription[T]) Stream(ctx context.Context) (<-chan T, error) {
	out := make(chan T)
	t, err := s.subscribe(func(lctx context.Context, v T) {
		select {
		case out <- v:
		case <-lctx.Done():
		}
	}, nil)
	if err != nil {
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
			s.Unsubscribe(t.handle)
		case <-t.done:
		}
		<-t.done
		close(out)
	}()
	return out, nil
}

// Count returns the number of listeners.
func (s *Subscription[T]) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// State returns the activation state.
func (s *Subscription[T]) State() lifecycle.State {
	return s.lc.State()
}

// Stats returns delivery counters.
func (s *Subscription[T]) Stats() Stats {
	return Stats{
		Listeners: s.Count(),
		Published: s.published.Load(),
		Dropped:   s.dropped.Load(),
		Failed:    s.failed.Load(),
	}
}

// Err returns every listener failure so far, combined.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// Wait blocks until every listener goroutine started so far has exited, or
// ctx ends. Call it after UnsubscribeAll to join the listeners.
func (s *Subscription[T]) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		var done chan struct{}
		for t := range s.running {
			done = t.done
			break
		}
		s.mu.Unlock()

		if done == nil {
			return nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close unsubscribes every listener and waits for their goroutines to exit.
// It returns the combined listener failures, or ctx.Err() if the wait was cut
// short. The subscription remains usable.
func (s *Subscription[T]) Close(ctx context.Context) error {
	s.UnsubscribeAll()
	if err := s.Wait(ctx); err != nil {
		return err
	}
	return s.Err()
}
