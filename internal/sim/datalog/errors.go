package datalog

import "errors"

var (
	// ErrUnknownVariable is returned when logging a variable that is not declared
	ErrUnknownVariable = errors.New("unknown variable")

	// ErrDuplicateLog is returned when a variable is already logged
	ErrDuplicateLog = errors.New("variable already logged")

	// ErrSampleBudget is returned when a new series would exceed the configured sample budget
	ErrSampleBudget = errors.New("log sample budget exceeded")
)
