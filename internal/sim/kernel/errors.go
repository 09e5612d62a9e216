package kernel

import (
	"errors"

	"github.com/atlanticdynamic/simkernel/internal/sim/simulator"
)

var (
	// ErrBusy is returned when declarations are replaced outside Idle
	ErrBusy = simulator.ErrBusy

	// ErrNilConfig is returned when Declare is handed no document
	ErrNilConfig = errors.New("no declaration document")

	// ErrUnknownVariable is returned when reading a variable that is not declared
	ErrUnknownVariable = errors.New("unknown variable")
)
