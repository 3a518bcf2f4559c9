package subscription

import (
	"github.com/sense-engine/sense-go/pkg/executor"
	"github.com/sense-engine/sense-go/pkg/log"
)

// Option configures a Subscription.
type Option func(*options)

type options struct {
	policy        Policy
	name          string
	onActivated   func() error
	onDeactivated func() error
	logger        log.Logger
	onFault       executor.FaultHandler
	onError       func(Handle, error)
}

// WithPolicy sets the buffering policy. The default is DefaultPolicy().
func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithName sets the name used in trace events.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithOnActivated sets the hook run when the first listener subscribes.
// It completes before that listener starts consuming. A returned error
// aborts the Subscribe.
func WithOnActivated(fn func() error) Option {
	return func(o *options) { o.onActivated = fn }
}

// WithOnDeactivated sets the hook run when the last listener leaves.
func WithOnDeactivated(fn func() error) Option {
	return func(o *options) { o.onDeactivated = fn }
}

// WithLogger sets the engine trace logger.
func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithFaultHandler sets the handler for listener panics and hook errors.
// The default logs through slog.
func WithFaultHandler(h executor.FaultHandler) Option {
	return func(o *options) { o.onFault = h }
}

// WithErrorHandler sets the handler told when a listener ends because a
// transform failed. Without one, failures go to the fault handler.
func WithErrorHandler(fn func(Handle, error)) Option {
	return func(o *options) { o.onError = fn }
}
