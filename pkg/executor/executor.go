package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/panics"
)

// Executor runs tasks.
type Executor interface {
	Execute(task func())
}

// Func adapts a plain function to the Executor interface.
type Func func(task func())

// Execute calls f(task).
func (f Func) Execute(task func()) { f(task) }

var (
	// Inline runs the task on the calling goroutine.
	Inline Executor = Func(func(task func()) { task() })

	// Goroutine runs every task on its own goroutine.
	Goroutine Executor = Func(func(task func()) { go task() })
)

// Fault is the error produced when a guarded task panics.
type Fault struct {
	// Value is the value passed to panic.
	Value any

	// Stack is the stack trace captured at the point of recovery.
	Stack []byte
}

// Error implements error.
func (f *Fault) Error() string {
	return fmt.Sprintf("task panicked: %v", f.Value)
}

// Unwrap returns the panic value when it is itself an error.
func (f *Fault) Unwrap() error {
	if err, ok := f.Value.(error); ok {
		return err
	}
	return nil
}

// StackTrace returns the stack captured at recovery.
func (f *Fault) StackTrace() []byte { return f.Stack }

// Guard runs task on the calling goroutine and returns a *Fault if it panicked.
func Guard(task func()) error {
	var c panics.Catcher
	c.Try(task)
	if r := c.Recovered(); r != nil {
		return &Fault{Value: r.Value, Stack: r.Stack}
	}
	return nil
}

// AsFault reports whether err wraps a *Fault and returns it.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// FaultHandler receives faults from guarded tasks.
type FaultHandler func(err error)

// LogFaults returns a FaultHandler that logs each fault at ERROR level and
// otherwise ignores it. A nil logger means slog.Default().
func LogFaults(logger *slog.Logger) FaultHandler {
	return func(err error) {
		l := logger
		if l == nil {
			l = slog.Default()
		}
		attrs := []slog.Attr{slog.String("error", err.Error())}
		if f, ok := AsFault(err); ok && len(f.Stack) > 0 {
			attrs = append(attrs, slog.String("stack", string(f.Stack)))
		}
		l.LogAttrs(context.Background(), slog.LevelError, "unhandled fault in task", attrs...)
	}
}

// Safe runs tasks through a delegate Executor, isolating their panics.
type Safe struct {
	delegate Executor
	onFault  FaultHandler
}

// NewSafe wraps delegate. A nil delegate means Inline; a nil handler means
// LogFaults(nil).
func NewSafe(delegate Executor, onFault FaultHandler) *Safe {
	if delegate == nil {
		delegate = Inline
	}
	if onFault == nil {
		onFault = LogFaults(nil)
	}
	return &Safe{delegate: delegate, onFault: onFault}
}

// Execute submits task to the delegate. A panic inside task is reported to
// the fault handler.
func (s *Safe) Execute(task func()) {
	s.delegate.Execute(func() {
		_ = s.Run(task)
	})
}

// Run executes task on the calling goroutine. If it panics, the fault is
// reported to the handler and also returned.
func (s *Safe) Run(task func()) error {
	err := Guard(task)
	if err != nil {
		s.report(err)
	}
	return err
}

// Report hands err to the fault handler. The handler itself is guarded so a
// misbehaving handler cannot escape either.
func (s *Safe) Report(err error) {
	if err != nil {
		s.report(err)
	}
}

func (s *Safe) report(err error) {
	if herr := Guard(func() { s.onFault(err) }); herr != nil {
		LogFaults(nil)(fmt.Errorf("fault handler: %w", herr))
	}
}
