package topic

import (
	"github.com/sense-engine/sense-go/pkg/executor"
	"github.com/sense-engine/sense-go/pkg/log"
)

// Option configures a Topic or Value.
type Option func(*options)

type options struct {
	name          string
	kind          *log.Kind
	onActivated   func() error
	onDeactivated func() error
	logger        log.Logger
	onFault       executor.FaultHandler
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithName sets the name used in trace events.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithKind overrides the source kind reported in trace events. Sensors use
// log.KindSensor.
func WithKind(kind log.Kind) Option {
	return func(o *options) { o.kind = &kind }
}

// WithOnActivated sets the hook run when the first subscriber arrives.
// A returned error aborts the Subscribe that triggered it.
//
// The hook runs with the topic's transition lock held: it may Publish, but
// must not Subscribe to the same topic.
func WithOnActivated(fn func() error) Option {
	return func(o *options) { o.onActivated = fn }
}

// WithOnDeactivated sets the hook run when the last subscriber leaves.
// A returned error is reported to the fault handler.
func WithOnDeactivated(fn func() error) Option {
	return func(o *options) { o.onDeactivated = fn }
}

// WithLogger sets the engine trace logger.
func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithFaultHandler sets the handler for subscriber panics and deactivation
// errors. The default logs through slog.
func WithFaultHandler(h executor.FaultHandler) Option {
	return func(o *options) { o.onFault = h }
}
