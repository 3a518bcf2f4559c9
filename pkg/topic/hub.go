package topic

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/sense-engine/sense-go/pkg/bridge"
	"github.com/sense-engine/sense-go/pkg/executor"
	"github.com/sense-engine/sense-go/pkg/lifecycle"
	"github.com/sense-engine/sense-go/pkg/log"
)

// Topic errors.
var (
	ErrNilSubscriber = errors.New("nil subscriber")
)

// Handle identifies a subscription. The zero Handle is never issued.
type Handle uint64

type entry[T any] struct {
	fn      func(T) bool
	expired atomic.Bool

	mu      sync.Mutex
	pending bool // activation in progress
	held    []T
}

// hold keeps v for later if the entry is still pending.
func (e *entry[T]) hold(v T) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.pending {
		return false
	}
	e.held = append(e.held, v)
	return true
}

// takeHeld returns the held values. With none left the entry goes live.
func (e *entry[T]) takeHeld() []T {
	e.mu.Lock()
	defer e.mu.Unlock()
	held := e.held
	e.held = nil
	if len(held) == 0 {
		e.pending = false
	}
	return held
}

type member[T any] struct {
	handle Handle
	entry  *entry[T]
}

// hub is the subscriber set and lifecycle shared by Topic and Value.
type hub[T any] struct {
	lc     *lifecycle.Machine
	tracer *log.Tracer
	safe   *executor.Safe

	mu      sync.Mutex
	members []member[T]
	next    Handle
}

func newHub[T any](o options, kind log.Kind) *hub[T] {
	if o.kind != nil {
		kind = *o.kind
	}
	h := &hub[T]{
		tracer: log.NewTracer(o.logger, kind, o.name),
		safe:   executor.NewSafe(executor.Inline, o.onFault),
	}
	h.lc = lifecycle.New(h.empty, lifecycle.Hooks{
		OnActivated:   o.onActivated,
		OnDeactivated: o.onDeactivated,
		OnTransition:  h.transition,
	})
	return h
}

func (h *hub[T]) transition(from, to lifecycle.State, err error) {
	h.tracer.Lifecycle(from.String(), to.String(), err)
	if err == nil {
		return
	}
	if to == lifecycle.StateActive {
		// Returned to the subscriber.
		h.tracer.Fault(log.PhaseActivate, 0, err)
		return
	}
	h.tracer.Fault(log.PhaseDeactivate, 0, err)
	h.safe.Report(err)
}

func (h *hub[T]) empty() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.members) == 0
}

func (h *hub[T]) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.members)
}

// subscribe adds fn as a pending member. Publishes that reach it before
// activation succeeds, including those made by the activation hook, are
// held and delivered in order before subscribe returns. If activation fails
// they are discarded and fn is never called.
func (h *hub[T]) subscribe(fn func(T) bool) (Handle, error) {
	var m member[T]
	var handle Handle
	var n int
	err := h.lc.Attach(func() {
		h.mu.Lock()
		h.next++
		handle = h.next
		m = member[T]{handle: handle, entry: &entry[T]{fn: fn, pending: true}}
		h.members = append(h.members, m)
		n = len(h.members)
		h.mu.Unlock()
	}, func() {
		h.mu.Lock()
		h.removeLocked(handle)
		h.mu.Unlock()
	})
	if err != nil {
		return 0, err
	}
	h.tracer.Membership(log.ActionSubscribe, uint64(handle), n)
	h.goLive(m)
	return handle, nil
}

// goLive delivers the values m held during activation, then lets publishes
// reach it directly.
func (h *hub[T]) goLive(m member[T]) {
	for {
		held := m.entry.takeHeld()
		if len(held) == 0 {
			return
		}
		for _, v := range held {
			if m.entry.expired.Load() {
				continue
			}
			if !h.notify(m, v) && m.entry.expired.CompareAndSwap(false, true) {
				h.expire([]Handle{m.handle})
			}
		}
	}
}

// notify calls m's subscriber and reports whether it stays subscribed.
func (h *hub[T]) notify(m member[T], v T) bool {
	keep := false
	if err := h.safe.Run(func() { keep = m.entry.fn(v) }); err != nil {
		h.tracer.Fault(log.PhaseCallback, uint64(m.handle), err)
	}
	return keep
}

// expire removes members whose subscribers asked to leave or faulted.
func (h *hub[T]) expire(handles []Handle) {
	h.mu.Lock()
	for _, handle := range handles {
		h.removeLocked(handle)
	}
	n := len(h.members)
	h.mu.Unlock()

	for _, handle := range handles {
		h.tracer.Membership(log.ActionExpire, uint64(handle), n)
	}
	h.lc.Settle()
}

// removeLocked drops handle from the set and marks it expired so in-flight
// publishes skip it. h.mu must be held.
func (h *hub[T]) removeLocked(handle Handle) bool {
	i := slices.IndexFunc(h.members, func(m member[T]) bool { return m.handle == handle })
	if i < 0 {
		return false
	}
	h.members[i].entry.expired.Store(true)
	h.members = slices.Delete(h.members, i, i+1)
	return true
}

// unsubscribe never blocks on a running lifecycle hook. If a hook is in
// progress, deactivation happens when it completes.
func (h *hub[T]) unsubscribe(handle Handle) bool {
	h.mu.Lock()
	removed := h.removeLocked(handle)
	n := len(h.members)
	h.mu.Unlock()

	if !removed {
		return false
	}
	h.tracer.Membership(log.ActionUnsubscribe, uint64(handle), n)
	h.lc.Settle()
	return true
}

func (h *hub[T]) unsubscribeAll() int {
	h.mu.Lock()
	removed := h.members
	h.members = nil
	h.mu.Unlock()

	for _, m := range removed {
		m.entry.expired.Store(true)
	}
	if len(removed) > 0 {
		h.tracer.Membership(log.ActionUnsubscribeAll, 0, 0)
		h.lc.Settle()
	}
	return len(removed)
}

func (h *hub[T]) publish(v T) {
	h.mu.Lock()
	snapshot := slices.Clone(h.members)
	h.mu.Unlock()

	var expired []Handle
	for _, m := range snapshot {
		if m.entry.expired.Load() || m.entry.hold(v) {
			continue
		}
		if !h.notify(m, v) && m.entry.expired.CompareAndSwap(false, true) {
			expired = append(expired, m.handle)
		}
	}

	if len(expired) > 0 {
		h.expire(expired)
	}
	h.tracer.Delivery(len(snapshot), len(expired), 0)
}

// read subscribes a transient subscriber that completes a bridge on the first
// value satisfying pred, then waits on the bridge.
func (h *hub[T]) read(ctx context.Context, pred func(T) bool) (T, error) {
	return bridge.Suspend(ctx, func(b *bridge.Bridge[T]) error {
		var fired atomic.Bool
		handle, err := h.subscribe(func(v T) bool {
			if fired.Load() {
				return false
			}
			match := true
			if pred != nil {
				if ferr := executor.Guard(func() { match = pred(v) }); ferr != nil {
					if fired.CompareAndSwap(false, true) {
						_ = b.ResumeWithError(ferr)
					}
					return false
				}
			}
			if !match {
				return true
			}
			if fired.CompareAndSwap(false, true) {
				_ = b.Resume(v)
			}
			return false
		})
		if err != nil {
			return err
		}
		b.OnCancel(func() { h.unsubscribe(handle) })
		return nil
	})
}
