package module

import "errors"

var (
	// ErrLoad is returned when a module binary cannot be loaded
	ErrLoad = errors.New("failed to load module")

	// ErrMissingEntryPoint is returned when a module lacks one of the lifecycle entry points
	ErrMissingEntryPoint = errors.New("module is missing a lifecycle entry point")

	// ErrNoLoader is returned when no loader handles a module file
	ErrNoLoader = errors.New("no loader for module file")

	// ErrNotInInit is returned when a plugin binds a variable outside the Init state
	ErrNotInInit = errors.New("variables can only be bound during Init")

	// ErrDuplicateBinding is returned when a plugin binds the same memory twice
	ErrDuplicateBinding = errors.New("memory location is already bound")

	// ErrUnknownBinding is returned when on/off names memory the runner never bound
	ErrUnknownBinding = errors.New("memory location is not bound")

	// ErrPluginPanic is returned when a plugin entry point panics
	ErrPluginPanic = errors.New("plugin panicked")

	// ErrClosed is returned when using a runner after Close
	ErrClosed = errors.New("runner is closed")
)
