package lifecycle

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/sense-engine/sense-go/pkg/executor"
)

// counter is a minimal owner collection.
type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) add(d int) {
	c.mu.Lock()
	c.n += d
	c.mu.Unlock()
}

func (c *counter) empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n == 0
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "IDLE"},
		{StateActive, "ACTIVE"},
		{State(9), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestAttachDetachRunsHooksOnce(t *testing.T) {
	var c counter
	var started, stopped int
	m := New(c.empty, Hooks{
		OnActivated:   func() error { started++; return nil },
		OnDeactivated: func() error { stopped++; return nil },
	})

	require.NoError(t, m.Attach(func() { c.add(1) }, nil))
	require.NoError(t, m.Attach(func() { c.add(1) }, nil))
	assert.Equal(t, StateActive, m.State())
	assert.Equal(t, 1, started)

	m.Detach(func() { c.add(-1) })
	assert.Equal(t, 0, stopped)
	m.Detach(func() { c.add(-1) })
	assert.Equal(t, 1, stopped)
	assert.Equal(t, StateIdle, m.State())

	a, d := m.Stats()
	assert.Equal(t, uint64(1), a)
	assert.Equal(t, uint64(1), d)
}

func TestAttachActivationFailureRollsBack(t *testing.T) {
	var c counter
	boom := errors.New("boom")
	var transitions []error
	m := New(c.empty, Hooks{
		OnActivated: func() error { return boom },
		OnTransition: func(from, to State, err error) {
			transitions = append(transitions, err)
		},
	})

	err := m.Attach(func() { c.add(1) }, func() { c.add(-1) })
	require.ErrorIs(t, err, boom)
	assert.True(t, c.empty())
	assert.Equal(t, StateIdle, m.State())
	require.Len(t, transitions, 1)
	assert.ErrorIs(t, transitions[0], boom)
}

func TestAttachActivationPanicBecomesFault(t *testing.T) {
	var c counter
	m := New(c.empty, Hooks{
		OnActivated: func() error { panic("start failed") },
	})

	err := m.Attach(func() { c.add(1) }, func() { c.add(-1) })
	require.Error(t, err)
	_, ok := executor.AsFault(err)
	assert.True(t, ok, "error %v should wrap a fault", err)
	assert.Equal(t, StateIdle, m.State())
}

func TestDeactivationErrorStillIdles(t *testing.T) {
	var c counter
	var reported error
	m := New(c.empty, Hooks{
		OnDeactivated: func() error { return errors.New("close failed") },
		OnTransition: func(from, to State, err error) {
			if to == StateIdle {
				reported = err
			}
		},
	})

	require.NoError(t, m.Attach(func() { c.add(1) }, nil))
	m.Detach(func() { c.add(-1) })
	assert.Equal(t, StateIdle, m.State())
	assert.Error(t, reported)
}

func TestSettleWhileLockHeld(t *testing.T) {
	var c counter
	var stopped atomic.Int32
	var m *Machine
	m = New(c.empty, Hooks{
		OnActivated: func() error {
			// A member disappears while activation still holds the lock.
			c.add(-1)
			m.Settle()
			return nil
		},
		OnDeactivated: func() error { stopped.Add(1); return nil },
	})

	require.NoError(t, m.Attach(func() { c.add(1) }, nil))
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, int32(1), stopped.Load())
}

func TestSettleWithoutContention(t *testing.T) {
	var c counter
	var stopped int
	m := New(c.empty, Hooks{
		OnDeactivated: func() error { stopped++; return nil },
	})

	require.NoError(t, m.Attach(func() { c.add(1) }, nil))
	c.add(-1)
	m.Settle()
	assert.Equal(t, 1, stopped)

	// Nothing left to do.
	m.Settle()
	assert.Equal(t, 1, stopped)
}

func TestConcurrentAttachDetach(t *testing.T) {
	var c counter
	var active, started, stopped atomic.Int32
	m := New(c.empty, Hooks{
		OnActivated: func() error {
			if active.Add(1) != 1 {
				t.Error("overlapping activation")
			}
			started.Add(1)
			return nil
		},
		OnDeactivated: func() error {
			active.Add(-1)
			stopped.Add(1)
			return nil
		},
	})

	var g errgroup.Group
	for range 32 {
		g.Go(func() error {
			for range 50 {
				if err := m.Attach(func() { c.add(1) }, nil); err != nil {
					return err
				}
				m.Detach(func() { c.add(-1) })
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, started.Load(), stopped.Load())
	assert.Equal(t, int32(0), active.Load())
}
