package worker

import "errors"

var (
	// ErrStopped is returned when a task is posted to a worker that has been stopped.
	ErrStopped = errors.New("worker is stopped")

	// ErrTaskPanic wraps the value recovered from a panicking task.
	ErrTaskPanic = errors.New("task panicked")
)
