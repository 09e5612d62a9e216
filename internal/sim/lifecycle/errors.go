package lifecycle

import "errors"

var (
	// ErrEventNotAllowed is returned when the current state has no transition for an event
	ErrEventNotAllowed = errors.New("event not allowed in current state")

	// ErrInitFailed is returned when an Init entry listener fails and the machine returns to Idle
	ErrInitFailed = errors.New("initialization failed")

	// ErrTransition is returned when the underlying state machine refuses an edge
	ErrTransition = errors.New("state transition failed")
)
