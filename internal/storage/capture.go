package storage

import (
	"github.com/atlanticdynamic/simkernel/internal/config"
	"github.com/atlanticdynamic/simkernel/internal/sim/datalog"
	"github.com/atlanticdynamic/simkernel/internal/sim/simulator"
)

// Source is a kernel that has finished, or is between, runs.
type Source interface {
	Document() *config.Config
	Status() simulator.Status
	LastRunners() []simulator.RunnerInfo
	Snapshot() datalog.Snapshot
}

// Capture collects the run data of src for Save.
func Capture(src Source) Run {
	return Run{
		Config:   src.Document(),
		Status:   src.Status(),
		Runners:  src.LastRunners(),
		Snapshot: src.Snapshot(),
	}
}
