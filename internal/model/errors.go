package model

import "errors"

var (
	// ErrNotFound is returned when a lookup by ID finds no row.
	ErrNotFound = errors.New("model: not found")

	// ErrConcurrentUpdate is returned when a conditional update affects
	// zero rows because another writer already moved the status.
	ErrConcurrentUpdate = errors.New("model: concurrent update conflict")

	// ErrNoActiveToken is returned when a user has no active credential
	// registered for a platform.
	ErrNoActiveToken = errors.New("model: no active token for platform")

	// ErrTerminalDestination is returned when a manual retry is attempted
	// on a destination already Sent or Cancelled.
	ErrTerminalDestination = errors.New("model: destination already in a terminal state")
)
