// Package lifecycle provides the reference-counted activation state machine
// shared by topics and subscriptions.
//
// A Machine is either Idle (no members) or Active (at least one member). The
// owner keeps its own member collection; the Machine decides, under a single
// transition lock, when the collection has crossed between empty and
// non-empty and runs the activation hooks exactly once per crossing.
//
// Members added or removed through Attach and Detach are reconciled while the
// lock is held. Members removed elsewhere (a publish that expires
// subscribers) call Settle, which never blocks: if the lock is busy, the
// holder reconciles on release.
package lifecycle

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sense-engine/sense-go/pkg/executor"
)

// State is the activation state.
type State uint8

const (
	// StateIdle means no members; the producer is stopped.
	StateIdle State = iota

	// StateActive means at least one member; the producer is running.
	StateActive
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateActive:
		return "ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// Hooks are the callbacks a Machine drives.
type Hooks struct {
	// OnActivated runs on the empty to non-empty transition. An error (or
	// panic) aborts the transition.
	OnActivated func() error

	// OnDeactivated runs on the non-empty to empty transition. The machine
	// is Idle regardless of the returned error.
	OnDeactivated func() error

	// OnTransition observes every transition attempt. to is the attempted
	// state; err is non-nil when a hook failed.
	OnTransition func(from, to State, err error)
}

// Machine serializes membership changes with activation hooks.
type Machine struct {
	mu      sync.Mutex
	state   State
	hooks   Hooks
	empty   func() bool
	pending atomic.Bool

	current       atomic.Uint32
	activations   atomic.Uint64
	deactivations atomic.Uint64
}

// New creates an Idle machine. empty reports whether the owner's collection is
// empty; it is only called with the transition lock held.
func New(empty func() bool, hooks Hooks) *Machine {
	return &Machine{hooks: hooks, empty: empty}
}

// State returns the current state. It does not take the transition lock and
// is safe to call from hooks.
func (m *Machine) State() State {
	return State(m.current.Load())
}

// Stats returns how many activations and deactivations have completed.
func (m *Machine) Stats() (activations, deactivations uint64) {
	return m.activations.Load(), m.deactivations.Load()
}

// Attach runs attach under the transition lock, then activates if the machine
// is Idle and the collection is no longer empty. If activation fails,
// rollback runs (still under the lock) and the error is returned.
func (m *Machine) Attach(attach func(), rollback func()) error {
	m.mu.Lock()
	defer m.release()

	attach()
	if m.state == StateActive || m.empty() {
		return nil
	}
	if err := m.activate(); err != nil {
		if rollback != nil {
			rollback()
		}
		return err
	}
	return nil
}

// Detach runs detach under the transition lock, then deactivates if the
// collection is now empty.
func (m *Machine) Detach(detach func()) {
	m.mu.Lock()
	defer m.release()

	detach()
	m.settleLocked()
}

// Settle reconciles the state with the collection without blocking. Call it
// after removing members outside Attach/Detach.
func (m *Machine) Settle() {
	m.pending.Store(true)
	m.drain()
}

func (m *Machine) release() {
	m.mu.Unlock()
	m.drain()
}

// drain settles while a request is pending and the lock can be taken. A
// failed TryLock means another goroutine holds the lock and will drain on
// release.
func (m *Machine) drain() {
	for m.pending.Load() {
		if !m.mu.TryLock() {
			return
		}
		m.pending.Store(false)
		m.settleLocked()
		m.mu.Unlock()
	}
}

func (m *Machine) settleLocked() {
	if m.state == StateActive && m.empty() {
		m.deactivate()
	}
}

func (m *Machine) activate() error {
	var err error
	if m.hooks.OnActivated != nil {
		if ferr := executor.Guard(func() { err = m.hooks.OnActivated() }); ferr != nil {
			err = ferr
		}
	}
	if err != nil {
		err = fmt.Errorf("activate: %w", err)
		m.observe(StateIdle, StateActive, err)
		return err
	}
	m.setState(StateActive)
	m.activations.Add(1)
	m.observe(StateIdle, StateActive, nil)
	return nil
}

func (m *Machine) deactivate() {
	m.setState(StateIdle)
	m.deactivations.Add(1)

	var err error
	if m.hooks.OnDeactivated != nil {
		if ferr := executor.Guard(func() { err = m.hooks.OnDeactivated() }); ferr != nil {
			err = ferr
		}
	}
	if err != nil {
		err = fmt.Errorf("deactivate: %w", err)
	}
	m.observe(StateActive, StateIdle, err)
}

func (m *Machine) setState(s State) {
	m.state = s
	m.current.Store(uint32(s))
}

func (m *Machine) observe(from, to State, err error) {
	if m.hooks.OnTransition != nil {
		m.hooks.OnTransition(from, to, err)
	}
}
