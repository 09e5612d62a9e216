package config

import "errors"

var (
	ErrFailedToLoadConfig     = errors.New("failed to load config")
	ErrFailedToValidateConfig = errors.New("failed to validate config")
	ErrUnsupportedConfigVer   = errors.New("unsupported config version")

	// ErrDuplicateName is returned when two variables share a name, or two modules a file
	ErrDuplicateName = errors.New("duplicate declaration")

	// ErrUnknownReference is returned when a log names an undeclared variable
	ErrUnknownReference = errors.New("unknown variable reference")

	// ErrInvalidSimulation is returned for unusable simulation settings
	ErrInvalidSimulation = errors.New("invalid simulation settings")
)
