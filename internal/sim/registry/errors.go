package registry

import "errors"

var (
	ErrDuplicateVariable = errors.New("variable already declared")
	ErrUnknownVariable   = errors.New("variable not declared")
	ErrInvalidModule     = errors.New("invalid module declaration")
	ErrDuplicateModule   = errors.New("module already declared")
	ErrUnknownModule     = errors.New("module not declared")
)
