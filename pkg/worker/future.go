package worker

import (
	"context"
	"errors"
)

// Future holds the eventual result of a scheduled task.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Waiter is the type-erased view of a Future.
type Waiter interface {
	Wait() error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns an already completed future.
func Resolved[T any](v T, err error) *Future[T] {
	f := newFuture[T]()
	f.complete(v, err)
	return f
}

// Failed returns an already completed future carrying err.
func Failed[T any](err error) *Future[T] {
	var zero T
	return Resolved(zero, err)
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the task completed and returns its result.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.val, f.err
}

// Wait blocks until the task completed and returns its error.
// A nil future is treated as completed.
func (f *Future[T]) Wait() error {
	if f == nil {
		return nil
	}
	<-f.done
	return f.err
}

// WaitContext is Wait bounded by ctx.
func (f *Future[T]) WaitContext(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Future[T]) complete(v T, err error) {
	f.val = v
	f.err = err
	close(f.done)
}

// WaitAll waits for every future in order and joins their errors.
func WaitAll[W Waiter](futures ...W) error {
	var errs []error
	for _, f := range futures {
		if err := f.Wait(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
