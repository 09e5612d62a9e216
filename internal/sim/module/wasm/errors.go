package wasm

import "errors"

var (
	// ErrCompile is returned when the bytes are not a valid WebAssembly module
	ErrCompile = errors.New("failed to compile module")

	// ErrInstantiate is returned when a compiled module cannot be instantiated, usually over an unknown import
	ErrInstantiate = errors.New("failed to instantiate module")

	// ErrNoMemory is returned when arguments cannot be placed in plugin memory
	ErrNoMemory = errors.New("module memory is not accessible")

	// ErrClosed is returned when loading through a closed Loader
	ErrClosed = errors.New("loader is closed")
)
