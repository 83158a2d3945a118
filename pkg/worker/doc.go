// Package worker provides single-goroutine task queues and the futures they complete.
//
// A Worker consumes an unbounded FIFO of tasks on one goroutine, so tasks posted to the same
// worker never run concurrently. Schedule posts a value-producing task and returns a Future
// the caller may wait on or ignore. A Registry names workers and lazily creates the default
// one.
package worker
