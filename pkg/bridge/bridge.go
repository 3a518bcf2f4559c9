// Package bridge adapts callback-style completion to a blocking, cancellable
// call that produces exactly one result.
//
// A Bridge starts Pending and moves to exactly one terminal state: Resumed
// (a value), Failed (an error) or Cancelled. The producer side completes it
// with Resume or ResumeWithError; the consumer side waits with Await. Cleanup
// registered with OnCancel runs only if cancellation wins the race against
// completion.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Bridge errors.
var (
	ErrAlreadyCompleted = errors.New("bridge already completed")
	ErrCancelled        = errors.New("bridge cancelled")
	ErrNilError         = errors.New("bridge resumed with nil error")
)

// State is the completion state of a Bridge.
type State uint8

const (
	// StatePending means no result yet.
	StatePending State = iota

	// StateResumed means completed with a value.
	StateResumed

	// StateFailed means completed with an error.
	StateFailed

	// StateCancelled means cancelled before completion.
	StateCancelled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateResumed:
		return "RESUMED"
	case StateFailed:
		return "FAILED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Bridge delivers a single result of type T.
type Bridge[T any] struct {
	mu       sync.Mutex
	state    State
	value    T
	err      error
	done     chan struct{}
	onCancel []func()
}

// New returns a pending Bridge.
func New[T any]() *Bridge[T] {
	return &Bridge[T]{done: make(chan struct{})}
}

// Resume completes the bridge with value.
//
// Resuming a bridge that was already resumed or failed returns
// ErrAlreadyCompleted. Resuming a cancelled bridge returns ErrCancelled; the
// value is discarded.
func (b *Bridge[T]) Resume(value T) error {
	return b.complete(StateResumed, value, nil)
}

// ResumeWithError completes the bridge with err. Same rules as Resume.
func (b *Bridge[T]) ResumeWithError(err error) error {
	if err == nil {
		return ErrNilError
	}
	var zero T
	return b.complete(StateFailed, zero, err)
}

func (b *Bridge[T]) complete(state State, value T, err error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StatePending:
	case StateCancelled:
		return ErrCancelled
	default:
		return fmt.Errorf("%w (state %s)", ErrAlreadyCompleted, b.state)
	}

	b.state = state
	b.value = value
	b.err = err
	b.onCancel = nil
	close(b.done)
	return nil
}

// Cancel cancels a pending bridge and runs the registered cancel handlers.
// It returns false if the bridge had already completed or been cancelled.
func (b *Bridge[T]) Cancel() bool {
	b.mu.Lock()
	if b.state != StatePending {
		b.mu.Unlock()
		return false
	}
	b.state = StateCancelled
	handlers := b.onCancel
	b.onCancel = nil
	close(b.done)
	b.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
	return true
}

// OnCancel registers fn to run if the bridge is cancelled before it
// completes. If the bridge is already cancelled, fn runs immediately; if it
// already completed, fn never runs.
func (b *Bridge[T]) OnCancel(fn func()) {
	b.mu.Lock()
	switch b.state {
	case StatePending:
		b.onCancel = append(b.onCancel, fn)
		b.mu.Unlock()
	case StateCancelled:
		b.mu.Unlock()
		fn()
	default:
		b.mu.Unlock()
	}
}

// Done is closed once the bridge leaves StatePending.
func (b *Bridge[T]) Done() <-chan struct{} {
	return b.done
}

// State returns the current state.
func (b *Bridge[T]) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Await blocks until the bridge completes or ctx ends. When ctx ends first the
// bridge is cancelled and ctx.Err() is returned. If the bridge was cancelled
// by someone else, ErrCancelled is returned.
func (b *Bridge[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-b.done:
		return b.result()
	case <-ctx.Done():
		if b.Cancel() {
			var zero T
			return zero, ctx.Err()
		}
		// Completion won the race.
		return b.result()
	}
}

func (b *Bridge[T]) result() (T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateResumed:
		return b.value, nil
	case StateFailed:
		return b.value, b.err
	default:
		var zero T
		return zero, ErrCancelled
	}
}

// Suspend creates a bridge, hands it to register, and waits for it. register
// typically subscribes somewhere that later calls Resume, and installs an
// OnCancel cleanup. If register fails, the bridge is cancelled and the error
// returned.
func Suspend[T any](ctx context.Context, register func(*Bridge[T]) error) (T, error) {
	b := New[T]()
	if err := register(b); err != nil {
		b.Cancel()
		var zero T
		return zero, err
	}
	return b.Await(ctx)
}
