package com

import "errors"

// Sentinel errors for the com package.
var (
	// ErrBadRun is returned when no prefix of the arguments matches the slot's parameters.
	ErrBadRun = errors.New("bad run: no matching slot signature")

	// ErrBadCall is returned when no prefix of the arguments matches the slot's parameters or
	// the slot cannot produce the requested result type.
	ErrBadCall = errors.New("bad call: no matching slot signature")

	// ErrBadSlot is returned when a slot is incompatible with a signal, or is not connected to it.
	ErrBadSlot = errors.New("bad slot")

	// ErrBadEmit is returned when emitted arguments do not match the signal's signature.
	ErrBadEmit = errors.New("bad emit: arguments do not match signal signature")

	// ErrAlreadyConnected is returned when a slot is connected twice to the same signal.
	ErrAlreadyConnected = errors.New("slot already connected")

	// ErrNoWorker is returned when an asynchronous operation targets a slot without worker.
	ErrNoWorker = errors.New("no worker set for slot")

	// ErrWorkerChanged fails a pending asynchronous task whose slot was moved to another worker.
	ErrWorkerChanged = errors.New("slot worker changed before task execution")

	// ErrExpired fails a pending asynchronous task whose slot was closed.
	ErrExpired = errors.New("slot expired before task execution")
)
