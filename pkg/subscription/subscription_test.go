package subscription

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/sense-engine/sense-go/pkg/lifecycle"
	"github.com/sense-engine/sense-go/pkg/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const waitTimeout = 2 * time.Second

// newTestSub creates a subscription that is torn down and joined at the end
// of the test.
func newTestSub[T any](t *testing.T, opts ...Option) *Subscription[T] {
	t.Helper()
	s, err := New[T](opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		s.UnsubscribeAll()
		assert.NoError(t, s.Wait(ctx))
	})
	return s
}

// sink returns a listener that forwards into a buffered channel.
func sink[T any]() (Listener[T], chan T) {
	ch := make(chan T, 64)
	return func(_ context.Context, v T) { ch <- v }, ch
}

func receive[T any](t *testing.T, ch <-chan T, n int) []T {
	t.Helper()
	out := make([]T, 0, n)
	for len(out) < n {
		select {
		case v := <-ch:
			out = append(out, v)
		case <-time.After(waitTimeout):
			t.Fatalf("received %d of %d values: %v", len(out), n, out)
		}
	}
	return out
}

func assertQuiet[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected value %v", v)
	case <-time.After(20 * time.Millisecond):
	}
}

// blockingSink blocks on the first value until release is closed.
func blockingSink(release <-chan struct{}) (Listener[int], chan int, chan struct{}) {
	got := make(chan int, 16)
	blocked := make(chan struct{})
	var once sync.Once
	return func(ctx context.Context, v int) {
		got <- v
		first := false
		once.Do(func() { first = true })
		if first {
			close(blocked)
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
	}, got, blocked
}

func TestDefaultPolicyDelivers(t *testing.T) {
	s := newTestSub[string](t)
	l, ch := sink[string]()

	_, err := s.Subscribe(l)
	require.NoError(t, err)

	s.Publish("a")
	assert.Equal(t, []string{"a"}, receive(t, ch, 1))
}

func TestReplayDeliversLatestToNewListener(t *testing.T) {
	s := newTestSub[string](t, WithPolicy(Policy{Replay: 1, Capacity: 1}))

	s.Publish("A")
	s.Publish("B")

	l, ch := sink[string]()
	_, err := s.Subscribe(l)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, receive(t, ch, 1))

	s.Publish("C")
	assert.Equal(t, []string{"C"}, receive(t, ch, 1))
}

func TestReplayHistoryIsBounded(t *testing.T) {
	s := newTestSub[int](t, WithPolicy(Policy{Replay: 3, Capacity: 1}))
	for i := range 10 {
		s.Publish(i)
	}

	l, ch := sink[int]()
	_, err := s.Subscribe(l)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 8, 9}, receive(t, ch, 3))
	assertQuiet(t, ch)
}

func TestDropOldest(t *testing.T) {
	s := newTestSub[int](t)
	release := make(chan struct{})
	l, got, blocked := blockingSink(release)

	_, err := s.Subscribe(l)
	require.NoError(t, err)

	assert.True(t, s.Publish(0))
	<-blocked
	assert.True(t, s.Publish(1))
	assert.True(t, s.Publish(2))
	close(release)

	assert.Equal(t, []int{0, 2}, receive(t, got, 2))
	assertQuiet(t, got)
	assert.Equal(t, uint64(1), s.Stats().Dropped)
}

func TestDropLatest(t *testing.T) {
	s := newTestSub[int](t, WithPolicy(Policy{Capacity: 1, Overflow: DropLatest}))
	release := make(chan struct{})
	l, got, blocked := blockingSink(release)

	_, err := s.Subscribe(l)
	require.NoError(t, err)

	assert.True(t, s.Publish(0))
	<-blocked
	assert.True(t, s.Publish(1))
	assert.False(t, s.Publish(2), "full buffer rejects the new value")
	close(release)

	assert.Equal(t, []int{0, 1}, receive(t, got, 2))
	assertQuiet(t, got)
	assert.Equal(t, uint64(1), s.Stats().Dropped)
}

func TestBlockWaitsForSpace(t *testing.T) {
	s := newTestSub[int](t, WithPolicy(Policy{Capacity: 1, Overflow: Block}))
	release := make(chan struct{})
	l, got, blocked := blockingSink(release)

	_, err := s.Subscribe(l)
	require.NoError(t, err)

	s.Publish(0)
	<-blocked
	s.Publish(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.PublishContext(ctx, 2), context.DeadlineExceeded)

	published := make(chan struct{})
	go func() {
		s.Publish(3)
		close(published)
	}()
	select {
	case <-published:
		t.Fatal("Publish did not block on a full buffer")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-published
	assert.Equal(t, []int{0, 1, 3}, receive(t, got, 3))
	assert.Equal(t, uint64(0), s.Stats().Dropped)
}

func TestBlockedPublisherReleasedByUnsubscribe(t *testing.T) {
	s := newTestSub[int](t, WithPolicy(Policy{Capacity: 1, Overflow: Block}))
	release := make(chan struct{})
	defer close(release)
	l, _, blocked := blockingSink(release)

	h, err := s.Subscribe(l)
	require.NoError(t, err)
	s.Publish(0)
	<-blocked
	s.Publish(1)

	published := make(chan struct{})
	go func() {
		s.Publish(2)
		close(published)
	}()
	time.Sleep(10 * time.Millisecond)
	s.Unsubscribe(h)

	select {
	case <-published:
	case <-time.After(waitTimeout):
		t.Fatal("publisher stayed blocked after unsubscribe")
	}
}

func TestPerListenerIsolation(t *testing.T) {
	s := newTestSub[int](t)
	release := make(chan struct{})
	slow, _, blocked := blockingSink(release)
	fast, fastCh := sink[int]()

	_, err := s.Subscribe(slow)
	require.NoError(t, err)
	_, err = s.Subscribe(fast)
	require.NoError(t, err)

	s.Publish(0)
	<-blocked
	assert.Equal(t, []int{0}, receive(t, fastCh, 1))
	for i := 1; i <= 5; i++ {
		s.Publish(i)
		assert.Equal(t, []int{i}, receive(t, fastCh, 1))
	}
	close(release)
}

func TestConcurrentSubscribersActivateOnce(t *testing.T) {
	var started, stopped atomic.Int32
	s := newTestSub[int](t,
		WithOnActivated(func() error {
			started.Add(1)
			time.Sleep(5 * time.Millisecond)
			return nil
		}),
		WithOnDeactivated(func() error { stopped.Add(1); return nil }),
	)

	handles := make([]Handle, 8)
	var g errgroup.Group
	for i := range handles {
		g.Go(func() error {
			h, err := s.Subscribe(func(context.Context, int) {})
			handles[i] = h
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), started.Load())
	assert.Equal(t, 8, s.Count())

	for _, h := range handles {
		g.Go(func() error {
			s.Unsubscribe(h)
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), stopped.Load())
	assert.Equal(t, lifecycle.StateIdle, s.State())
}

func TestActivationPrecedesConsumption(t *testing.T) {
	var active atomic.Bool
	s := newTestSub[int](t,
		WithPolicy(Policy{Replay: 1, Capacity: 1}),
		WithOnActivated(func() error {
			time.Sleep(10 * time.Millisecond)
			active.Store(true)
			return nil
		}),
		WithOnDeactivated(func() error {
			active.Store(false)
			return nil
		}),
	)
	s.Publish(1)

	sawActive := make(chan bool, 1)
	_, err := s.Subscribe(func(_ context.Context, _ int) { sawActive <- active.Load() })
	require.NoError(t, err)

	select {
	case ok := <-sawActive:
		assert.True(t, ok, "listener consumed before activation completed")
	case <-time.After(waitTimeout):
		t.Fatal("replayed value not delivered")
	}
}

// subscribeWithin runs Subscribe and fails the test if it does not return.
func subscribeWithin[T any](t *testing.T, s *Subscription[T], l Listener[T]) {
	t.Helper()
	errc := make(chan error, 1)
	go func() {
		_, err := s.Subscribe(l)
		errc <- err
	}()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Subscribe did not return")
	}
}

func TestActivationPublishUnderBlock(t *testing.T) {
	var s *Subscription[int]
	s = newTestSub[int](t,
		WithPolicy(Policy{Capacity: 1, Overflow: Block}),
		WithOnActivated(func() error {
			s.Publish(1)
			s.Publish(2)
			return nil
		}),
	)
	l, ch := sink[int]()

	subscribeWithin(t, s, l)
	assert.Equal(t, []int{2}, receive(t, ch, 1))
	assert.Equal(t, uint64(1), s.Stats().Dropped)

	// Once consuming, Block applies again.
	s.Publish(3)
	assert.Equal(t, []int{3}, receive(t, ch, 1))
}

func TestStickyPublishWithReplayUnderBlock(t *testing.T) {
	var s *Subscription[int]
	s = newTestSub[int](t,
		WithPolicy(Policy{Replay: 1, Overflow: Block}),
		WithOnActivated(func() error {
			s.Publish(42)
			return nil
		}),
	)
	s.Publish(7)
	l, ch := sink[int]()

	subscribeWithin(t, s, l)
	assert.Equal(t, []int{42}, receive(t, ch, 1))
	assertQuiet(t, ch)
}

func TestActivationFailure(t *testing.T) {
	boom := errors.New("hardware busy")
	s := newTestSub[int](t, WithOnActivated(func() error { return boom }))

	_, err := s.Subscribe(func(context.Context, int) {})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, lifecycle.StateIdle, s.State())
}

func TestUnsubscribeLastDeactivates(t *testing.T) {
	var stopped atomic.Int32
	s := newTestSub[int](t, WithOnDeactivated(func() error { stopped.Add(1); return nil }))

	h1, err := s.Subscribe(func(context.Context, int) {})
	require.NoError(t, err)
	h2, err := s.Subscribe(func(context.Context, int) {})
	require.NoError(t, err)

	assert.True(t, s.Unsubscribe(h1))
	assert.Equal(t, int32(0), stopped.Load())
	assert.True(t, s.Unsubscribe(h2))
	assert.Equal(t, int32(1), stopped.Load())
	assert.False(t, s.Unsubscribe(h2))
	assert.Equal(t, int32(1), stopped.Load())
}

func TestUnsubscribeCancelsListenerContext(t *testing.T) {
	s := newTestSub[int](t)
	entered := make(chan struct{})
	cancelled := make(chan struct{})

	h, err := s.Subscribe(func(ctx context.Context, _ int) {
		close(entered)
		<-ctx.Done()
		close(cancelled)
	})
	require.NoError(t, err)

	s.Publish(1)
	<-entered
	s.Unsubscribe(h)

	select {
	case <-cancelled:
	case <-time.After(waitTimeout):
		t.Fatal("listener context not cancelled")
	}
}

func TestReplace(t *testing.T) {
	s := newTestSub[int](t, WithPolicy(Policy{Capacity: 8}))
	first, firstCh := sink[int]()
	second, secondCh := sink[int]()

	h, err := s.Subscribe(first)
	require.NoError(t, err)
	s.Publish(1)
	assert.Equal(t, []int{1}, receive(t, firstCh, 1))

	require.NoError(t, s.Replace(h, second))
	assert.Equal(t, 1, s.Count())

	s.Publish(2)
	assert.Equal(t, []int{2}, receive(t, secondCh, 1))
	assertQuiet(t, firstCh)

	err = s.Replace(Handle(99), second)
	assert.ErrorIs(t, err, ErrUnknownHandle)
}

func TestTransforms(t *testing.T) {
	s := newTestSub[int](t, WithPolicy(Policy{Capacity: 16}))
	l, ch := sink[int]()

	_, err := s.Subscribe(l,
		Filter(func(n int) bool { return n%2 == 0 }),
		Map(func(n int) int { return n * 10 }),
	)
	require.NoError(t, err)

	for i := range 6 {
		s.Publish(i)
	}
	assert.Equal(t, []int{0, 20, 40}, receive(t, ch, 3))
}

func TestTransformFailureEndsOnlyThatListener(t *testing.T) {
	bad := errors.New("value out of range")
	var reported []Handle
	var mu sync.Mutex
	var stopped atomic.Int32

	s := newTestSub[int](t,
		WithPolicy(Policy{Capacity: 16}),
		WithErrorHandler(func(h Handle, err error) {
			mu.Lock()
			reported = append(reported, h)
			mu.Unlock()
		}),
		WithOnDeactivated(func() error { stopped.Add(1); return nil }),
	)

	healthy, healthyCh := sink[int]()
	fragile, fragileCh := sink[int]()

	_, err := s.Subscribe(healthy)
	require.NoError(t, err)
	hf, err := s.Subscribe(fragile, Validate(func(n int) error {
		if n == 2 {
			return bad
		}
		return nil
	}))
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		s.Publish(i)
	}

	assert.Equal(t, []int{1, 2, 3}, receive(t, healthyCh, 3))
	assert.Equal(t, []int{1}, receive(t, fragileCh, 1))
	require.Eventually(t, func() bool { return s.Count() == 1 }, waitTimeout, time.Millisecond)

	mu.Lock()
	assert.Equal(t, []Handle{hf}, reported)
	mu.Unlock()
	assert.ErrorIs(t, s.Err(), bad)
	assert.Equal(t, uint64(1), s.Stats().Failed)
	assert.Equal(t, int32(0), stopped.Load(), "remaining listener keeps the subscription active")
}

func TestTransformPanicFailsListener(t *testing.T) {
	var faults atomic.Int32
	s := newTestSub[int](t, WithFaultHandler(func(error) { faults.Add(1) }))

	_, err := s.Subscribe(func(context.Context, int) {}, Map(func(int) int { panic("bad map") }))
	require.NoError(t, err)
	s.Publish(1)

	require.Eventually(t, func() bool { return s.State() == lifecycle.StateIdle }, waitTimeout, time.Millisecond)
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, int32(1), faults.Load())
	assert.Error(t, s.Err())
}

func TestListenerPanicIsIsolated(t *testing.T) {
	var faults atomic.Int32
	s := newTestSub[int](t,
		WithPolicy(Policy{Capacity: 8}),
		WithFaultHandler(func(error) { faults.Add(1) }),
	)

	got := make(chan int, 8)
	_, err := s.Subscribe(func(_ context.Context, v int) {
		if v == 1 {
			panic("listener bug")
		}
		got <- v
	})
	require.NoError(t, err)

	s.Publish(1)
	s.Publish(2)
	assert.Equal(t, []int{2}, receive(t, got, 1))
	assert.Equal(t, int32(1), faults.Load())
	assert.Equal(t, 1, s.Count())
	assert.NoError(t, s.Err())
}

func TestStream(t *testing.T) {
	var stopped atomic.Int32
	s := newTestSub[string](t,
		WithPolicy(Policy{Capacity: 4}),
		WithOnDeactivated(func() error { stopped.Add(1); return nil }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.Stream(ctx)
	require.NoError(t, err)

	s.Publish("x")
	s.Publish("y")
	assert.Equal(t, "x", <-ch)
	assert.Equal(t, "y", <-ch)

	cancel()
	for range ch {
	}
	assert.Equal(t, int32(1), stopped.Load())
}

func TestCloseReturnsFailures(t *testing.T) {
	s, err := New[int]()
	require.NoError(t, err)

	_, err = s.Subscribe(func(context.Context, int) {}, Validate(func(int) error { return errors.New("nope") }))
	require.NoError(t, err)
	s.Publish(1)
	require.Eventually(t, func() bool { return s.Count() == 0 }, waitTimeout, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	err = s.Close(ctx)
	assert.ErrorContains(t, err, "nope")
}

func TestSubscribeNilListener(t *testing.T) {
	s := newTestSub[int](t)
	_, err := s.Subscribe(nil)
	assert.ErrorIs(t, err, ErrNilListener)
	assert.ErrorIs(t, s.Replace(1, nil), ErrNilListener)
}

func TestNewRejectsInvalidPolicy(t *testing.T) {
	_, err := New[int](WithPolicy(Policy{}))
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestTraceRecordsDrops(t *testing.T) {
	var mu sync.Mutex
	var events []log.Event
	logger := loggerFunc(func(e log.Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	s := newTestSub[int](t, WithLogger(logger), WithName("imu"))
	release := make(chan struct{})
	l, _, blocked := blockingSink(release)
	_, err := s.Subscribe(l)
	require.NoError(t, err)

	s.Publish(0)
	<-blocked
	s.Publish(1)
	s.Publish(2)
	close(release)

	mu.Lock()
	defer mu.Unlock()
	var drops int
	for _, e := range events {
		assert.Equal(t, s.ID(), e.SourceID)
		assert.Equal(t, log.KindSubscription, e.Kind)
		if e.Delivery != nil {
			drops += e.Delivery.Dropped
		}
	}
	assert.Equal(t, 1, drops)
}

type loggerFunc func(log.Event)

func (f loggerFunc) Log(e log.Event) { f(e) }
