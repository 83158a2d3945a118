// Package com implements the signal/slot communication layer.
//
// A Slot wraps a Go func. A Signal is a typed multicast emitter declared by a func type,
// e.g. NewSignal[func(string, int)](). Connecting a signal to a slot checks, once, that the
// slot accepts a prefix of the signal's parameters; trailing arguments are dropped on emit.
//
// Slots run synchronously on the emitting goroutine (Emit, Run, Call) or asynchronously on
// the worker they are bound to (AsyncEmit, AsyncRun, AsyncCall).
//
// Signals and Slots are keyed registries objects embed to expose their endpoints. The Proxy
// routes named channels: every signal of a channel is connected to every slot of it.
package com
