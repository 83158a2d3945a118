package service

import "errors"

var (
	// ErrInvalidState is returned when a lifecycle request does not fit the current state.
	ErrInvalidState = errors.New("invalid service state")

	// ErrServiceNotFound is returned when no service is registered under a uid.
	ErrServiceNotFound = errors.New("service not found")

	// ErrUnknownType is returned when no service constructor is registered for a type.
	ErrUnknownType = errors.New("unknown service type")
)
