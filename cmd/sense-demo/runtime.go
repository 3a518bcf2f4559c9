package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/sense-engine/sense-go/pkg/bridge"
	"github.com/sense-engine/sense-go/pkg/config"
	"github.com/sense-engine/sense-go/pkg/executor"
	"github.com/sense-engine/sense-go/pkg/lifecycle"
	"github.com/sense-engine/sense-go/pkg/log"
	"github.com/sense-engine/sense-go/pkg/sensor"
	"github.com/sense-engine/sense-go/pkg/source"
	"github.com/sense-engine/sense-go/pkg/subscription"
	"github.com/sense-engine/sense-go/pkg/topic"
)

// Runtime errors.
var (
	ErrUnknownSource   = errors.New("unknown source")
	ErrUnknownListener = errors.New("unknown listener")
)

// Reading is one value fanned out to a source's listeners.
type Reading struct {
	Source string
	Seq    uint64
	At     time.Time
	Detail string
	Manual bool
}

func (r Reading) String() string {
	tag := ""
	if r.Manual {
		tag = " (manual)"
	}
	return fmt.Sprintf("%s #%d %s %s%s", r.Source, r.Seq, r.At.Format("15:04:05.000"), r.Detail, tag)
}

// feed couples one configured producer with the subscription that fans its
// readings out. The producer is attached while the subscription is active.
type feed struct {
	cfg config.SourceConfig
	sub *subscription.Subscription[Reading]
	seq atomic.Uint64
	ctx context.Context

	// attach registers notify with the producer and returns the detach func.
	attach  func(notify func(detail string) bool) (func(), error)
	quality func() sensor.Quality
	active  func() bool

	detach func() // guarded by the subscription's lifecycle
}

func (f *feed) activate() error {
	detach, err := f.attach(f.emit)
	if err != nil {
		return err
	}
	f.detach = detach
	return nil
}

func (f *feed) deactivate() error {
	if f.detach != nil {
		f.detach()
		f.detach = nil
	}
	return nil
}

func (f *feed) emit(detail string) bool {
	r := Reading{Source: f.cfg.Name, Seq: f.seq.Add(1), At: time.Now(), Detail: detail}
	if err := f.sub.PublishContext(f.ctx, r); err != nil {
		return !errors.Is(err, context.Canceled)
	}
	return true
}

// binding is a console listener.
type binding struct {
	feed   *feed
	handle subscription.Handle
	filter string
}

// Runtime owns the configured sources and the console listeners.
type Runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	trace  log.Logger
	out    *executor.Worker
	w      io.Writer

	ctx    context.Context
	cancel context.CancelFunc

	feeds map[string]*feed
	order []string

	mu        sync.Mutex
	listeners map[int]*binding
	nextID    int
}

// NewRuntime builds every configured source. Nothing runs until a listener
// subscribes. Readings printed by listeners are written to w one at a time.
func NewRuntime(cfg *config.Config, w io.Writer, logger *slog.Logger, trace log.Logger) (*Runtime, error) {
	ctx, cancel := context.WithCancel(context.Background())
	onFault := executor.LogFaults(logger)
	rt := &Runtime{
		cfg:       cfg,
		logger:    logger,
		trace:     trace,
		out:       executor.NewWorker(cfg.Executor.QueueSize, onFault),
		w:         w,
		ctx:       ctx,
		cancel:    cancel,
		feeds:     make(map[string]*feed),
		listeners: make(map[int]*binding),
	}

	for _, sc := range cfg.Sources {
		f, err := rt.buildFeed(sc, onFault)
		if err != nil {
			rt.Close(context.Background())
			return nil, fmt.Errorf("source %s: %w", sc.Name, err)
		}
		rt.feeds[sc.Name] = f
		rt.order = append(rt.order, sc.Name)
	}
	return rt, nil
}

func (rt *Runtime) buildFeed(sc config.SourceConfig, onFault executor.FaultHandler) (*feed, error) {
	f := &feed{cfg: sc, ctx: rt.ctx}

	topicOpts := []topic.Option{
		topic.WithName(sc.Name),
		topic.WithLogger(rt.trace),
		topic.WithFaultHandler(onFault),
	}

	switch sc.Kind {
	case config.SourceInterval:
		s, err := source.NewInterval(sc.Interval, topicOpts...)
		if err != nil {
			return nil, err
		}
		f.attach = attachSensor(s, func() string { return fmt.Sprintf("tick %d", s.Ticks()) })
		f.quality, f.active = s.Quality, s.IsActive

	case config.SourceFileWatch:
		s, err := source.NewFileWatch(sc.Paths, topicOpts...)
		if err != nil {
			return nil, err
		}
		f.attach = attachSensor(s, func() string {
			ev, _ := s.LastEvent()
			return ev.String()
		})
		f.quality, f.active = s.Quality, s.IsActive

	case config.SourceSignals:
		sigs, err := config.ParseSignals(sc.Signals)
		if err != nil {
			return nil, err
		}
		s := source.NewSignals(sigs, topicOpts...)
		f.attach = func(notify func(string) bool) (func(), error) {
			h, err := s.Subscribe(func(sig os.Signal) bool { return notify(sig.String()) })
			if err != nil {
				return nil, err
			}
			return func() { s.Unsubscribe(h) }, nil
		}
		f.quality = func() sensor.Quality { return sensor.QualityUnknown }
		f.active = func() bool { return s.State() == lifecycle.StateActive }

	default:
		return nil, fmt.Errorf("unknown kind %q", sc.Kind)
	}

	sub, err := subscription.New[Reading](
		subscription.WithName(sc.Name),
		subscription.WithPolicy(rt.cfg.Policy(sc.Subscription)),
		subscription.WithLogger(rt.trace),
		subscription.WithFaultHandler(onFault),
		subscription.WithOnActivated(f.activate),
		subscription.WithOnDeactivated(f.deactivate),
	)
	if err != nil {
		return nil, err
	}
	f.sub = sub
	return f, nil
}

func attachSensor(s sensor.Sensor, detail func() string) func(func(string) bool) (func(), error) {
	return func(notify func(string) bool) (func(), error) {
		h, err := s.Start(func() bool { return notify(detail()) })
		if err != nil {
			return nil, err
		}
		return func() { s.Stop(h) }, nil
	}
}

func (rt *Runtime) feed(name string) (*feed, error) {
	f, ok := rt.feeds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	return f, nil
}

// Sources returns the configured source names in configuration order.
func (rt *Runtime) Sources() []string {
	return slices.Clone(rt.order)
}

// Subscribe prints every reading of the named source. With a non-empty
// filter only readings whose detail contains it are printed. It returns a
// listener ID for Unsubscribe.
func (rt *Runtime) Subscribe(name, filter string) (int, error) {
	f, err := rt.feed(name)
	if err != nil {
		return 0, err
	}

	rt.mu.Lock()
	rt.nextID++
	id := rt.nextID
	rt.mu.Unlock()

	var transforms []subscription.Transform[Reading]
	if filter != "" {
		transforms = append(transforms, subscription.Filter(func(r Reading) bool {
			return strings.Contains(r.Detail, filter)
		}))
	}

	h, err := f.sub.Subscribe(func(_ context.Context, r Reading) {
		rt.out.Execute(func() { fmt.Fprintf(rt.w, "[%d] %s\n", id, r) })
	}, transforms...)
	if err != nil {
		return 0, err
	}

	rt.mu.Lock()
	rt.listeners[id] = &binding{feed: f, handle: h, filter: filter}
	rt.mu.Unlock()

	rt.logger.Debug("listener added", "id", id, "source", name)
	return id, nil
}

// Unsubscribe removes a listener added by Subscribe.
func (rt *Runtime) Unsubscribe(id int) error {
	rt.mu.Lock()
	b, ok := rt.listeners[id]
	delete(rt.listeners, id)
	rt.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownListener, id)
	}
	b.feed.sub.Unsubscribe(b.handle)
	rt.logger.Debug("listener removed", "id", id, "source", b.feed.cfg.Name)
	return nil
}

// UnsubscribeAll removes every console listener and returns how many there
// were.
func (rt *Runtime) UnsubscribeAll() int {
	rt.mu.Lock()
	ids := make([]int, 0, len(rt.listeners))
	for id := range rt.listeners {
		ids = append(ids, id)
	}
	rt.mu.Unlock()

	for _, id := range ids {
		_ = rt.Unsubscribe(id)
	}
	return len(ids)
}

// Listeners returns the active listener IDs per source.
func (rt *Runtime) Listeners() map[string][]int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make(map[string][]int)
	for id, b := range rt.listeners {
		out[b.feed.cfg.Name] = append(out[b.feed.cfg.Name], id)
	}
	for _, ids := range out {
		slices.Sort(ids)
	}
	return out
}

// Read waits for the next reading of the named source, starting the
// producer if nobody else is listening.
func (rt *Runtime) Read(ctx context.Context, name string) (Reading, error) {
	f, err := rt.feed(name)
	if err != nil {
		return Reading{}, err
	}

	since := time.Now()
	fresh := subscription.Filter(func(r Reading) bool { return !r.At.Before(since) })

	var h subscription.Handle
	r, err := bridge.Suspend(ctx, func(b *bridge.Bridge[Reading]) error {
		var err error
		h, err = f.sub.Subscribe(func(_ context.Context, r Reading) { _ = b.Resume(r) }, fresh)
		if err != nil {
			return err
		}
		b.OnCancel(func() { f.sub.Unsubscribe(h) })
		return nil
	})
	if err == nil {
		f.sub.Unsubscribe(h)
	}
	return r, err
}

// Publish injects a manual reading into the named source's listeners.
func (rt *Runtime) Publish(name, detail string) (bool, error) {
	f, err := rt.feed(name)
	if err != nil {
		return false, err
	}
	r := Reading{Source: name, Seq: f.seq.Add(1), At: time.Now(), Detail: detail, Manual: true}
	return f.sub.Publish(r), nil
}

// SourceStatus describes one source.
type SourceStatus struct {
	Name      string
	Kind      config.SourceKind
	State     lifecycle.State
	Producing bool
	Quality   sensor.Quality
	Policy    subscription.Policy
	Stats     subscription.Stats
}

// Status reports every source in configuration order.
func (rt *Runtime) Status() []SourceStatus {
	out := make([]SourceStatus, 0, len(rt.order))
	for _, name := range rt.order {
		f := rt.feeds[name]
		out = append(out, SourceStatus{
			Name:      name,
			Kind:      f.cfg.Kind,
			State:     f.sub.State(),
			Producing: f.active(),
			Quality:   f.quality(),
			Policy:    f.sub.Policy(),
			Stats:     f.sub.Stats(),
		})
	}
	return out
}

// Flush waits until every reading queued for printing so far is written.
func (rt *Runtime) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if err := rt.out.Submit(func() { close(done) }); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops every listener and producer and drains the output worker.
// Listener failures are returned combined.
func (rt *Runtime) Close(ctx context.Context) error {
	rt.cancel()
	rt.mu.Lock()
	clear(rt.listeners)
	rt.mu.Unlock()

	var err error
	for _, name := range rt.order {
		if cerr := rt.feeds[name].sub.Close(ctx); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("source %s: %w", name, cerr))
		}
	}
	return multierr.Append(err, rt.out.Close(ctx))
}
