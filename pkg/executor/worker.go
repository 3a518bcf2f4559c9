package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned when submitting to a closed Worker.
var ErrClosed = errors.New("executor closed")

// DefaultQueueSize is the Worker queue size used when none is given.
const DefaultQueueSize = 64

// Worker runs tasks one at a time, in submission order, on a single
// background goroutine. Panics are isolated: a faulting task is reported and
// the worker moves on to the next one.
type Worker struct {
	safe  *Safe
	tasks chan func()

	mu      sync.RWMutex
	closed  bool
	quit    chan struct{} // closed by Close
	senders sync.WaitGroup

	done      chan struct{}
	completed atomic.Uint64
}

// NewWorker starts a worker with the given queue size. A nil handler means
// LogFaults(nil).
func NewWorker(queueSize int, onFault FaultHandler) *Worker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	w := &Worker{
		safe:  NewSafe(Inline, onFault),
		tasks: make(chan func(), queueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	defer close(w.done)
	for task := range w.tasks {
		_ = w.safe.Run(task)
		w.completed.Add(1)
	}
}

// Submit queues task, blocking while the queue is full. A Submit blocked on
// a full queue returns ErrClosed once Close is called, so a task may submit
// to its own worker without deadlocking Close.
func (w *Worker) Submit(task func()) error {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrClosed
	}
	w.senders.Add(1)
	w.mu.RUnlock()
	defer w.senders.Done()

	select {
	case w.tasks <- task:
		return nil
	case <-w.quit:
		return ErrClosed
	}
}

// Execute queues task. Tasks submitted after Close are discarded.
func (w *Worker) Execute(task func()) {
	_ = w.Submit(task)
}

// Completed returns the number of tasks that have finished, faulted or not.
func (w *Worker) Completed() uint64 {
	return w.completed.Load()
}

// Close stops accepting tasks and waits for the queue to drain. It returns
// ctx.Err() if ctx ends first; the worker still drains in the background.
func (w *Worker) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.quit)
		go func() {
			// Senders still in flight either queue their task or give up.
			w.senders.Wait()
			close(w.tasks)
		}()
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
