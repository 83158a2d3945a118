package worker

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"

	"github.com/aretw0/sight/internal/logging"
)

// Worker executes posted tasks one at a time, in posting order, on its own goroutine.
type Worker struct {
	id     string
	name   string
	logger *slog.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []func()
	stopping bool
	done     chan struct{}
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the logger used to report task panics.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New starts a worker goroutine.
func New(name string, opts ...Option) *Worker {
	w := &Worker{
		id:     uuid.NewString(),
		name:   name,
		logger: logging.NewNop(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.cond = sync.NewCond(&w.mu)
	go w.loop()
	return w
}

// ID uniquely identifies the worker instance.
func (w *Worker) ID() string { return w.id }

// Name is the name the worker was created with.
func (w *Worker) Name() string { return w.name }

// Post enqueues task. It never blocks.
func (w *Worker) Post(task func()) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopping {
		return ErrStopped
	}
	w.queue = append(w.queue, task)
	w.cond.Signal()
	return nil
}

// Pending returns the number of queued tasks not yet started.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Stop refuses new tasks, drains the queue and waits for the goroutine to exit.
// It must not be called from a task running on w.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.stopping {
		w.stopping = true
		w.cond.Broadcast()
	}
	w.mu.Unlock()
	<-w.done
}

// Stopped reports whether Stop was requested.
func (w *Worker) Stopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopping
}

func (w *Worker) loop() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.stopping {
			w.cond.Wait()
		}
		if len(w.queue) == 0 {
			w.mu.Unlock()
			return
		}
		task := w.queue[0]
		w.queue[0] = nil
		w.queue = w.queue[1:]
		w.mu.Unlock()

		w.exec(task)
	}
}

func (w *Worker) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker task panicked",
				"worker", w.name,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	task()
}

// Schedule posts fn to w and returns a future completed with its result.
// A panic inside fn fails the future with an error wrapping ErrTaskPanic.
// Posting to a stopped worker returns a future failed with ErrStopped.
func Schedule[T any](w *Worker, fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	err := w.Post(func() {
		var (
			v   T
			err error
		)
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("scheduled task panicked",
					"worker", w.name,
					"panic", r,
					"stack", string(debug.Stack()))
				var zero T
				f.complete(zero, fmt.Errorf("%w: %v", ErrTaskPanic, r))
				return
			}
			f.complete(v, err)
		}()
		v, err = fn()
	})
	if err != nil {
		var zero T
		f.complete(zero, err)
	}
	return f
}

// Run is Schedule for tasks without a result value.
func Run(w *Worker, fn func() error) *Future[struct{}] {
	return Schedule(w, func() (struct{}, error) {
		return struct{}{}, fn()
	})
}
