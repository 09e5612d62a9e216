package simulator

import "errors"

var (
	// ErrBusy is returned when changing settings while a run is in progress
	ErrBusy = errors.New("simulation is running")

	// ErrInvalidSettings is returned for a non-positive step or an offline run without a duration
	ErrInvalidSettings = errors.New("invalid simulation settings")

	// ErrNotRunning is returned when a request is made after the worker stopped
	ErrNotRunning = errors.New("simulator is not running")

	// ErrAlreadyStarted is returned when Run is called a second time
	ErrAlreadyStarted = errors.New("simulator was already started")
)
