package variable

import "errors"

var (
	// ErrInvalidName is returned when a variable name does not match the identifier-path grammar
	ErrInvalidName = errors.New("invalid variable name")

	// ErrInvalidType is returned for a type outside double, float, int32 and uint32
	ErrInvalidType = errors.New("invalid variable type")

	// ErrEmptyModuleFile is returned when a module declaration has no file
	ErrEmptyModuleFile = errors.New("module file is empty")
)
