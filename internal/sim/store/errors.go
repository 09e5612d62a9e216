package store

import "errors"

var (
	// ErrUnknownVariable is returned when no slot of the requested name and type exists
	ErrUnknownVariable = errors.New("unknown variable")

	// ErrDuplicateVariable is returned when inserting a name that already has a slot
	ErrDuplicateVariable = errors.New("variable already exists")

	// ErrInvalidType is returned when inserting or binding an unsupported type
	ErrInvalidType = errors.New("invalid variable type")

	// ErrInvalidDirection is returned when binding with a direction other than Input, Output or InputOutput
	ErrInvalidDirection = errors.New("invalid transfer direction")

	// ErrNilLocation is returned when binding without plugin memory
	ErrNilLocation = errors.New("transfer location is nil")

	// ErrStaleTransfer is returned when a Transfer's slot was removed or the store was cleared
	ErrStaleTransfer = errors.New("transfer refers to a removed slot")

	// ErrLocationAccess is returned when the plugin memory behind a Transfer cannot be read or written
	ErrLocationAccess = errors.New("transfer location is not accessible")
)
