package config

import (
	"fmt"

	"github.com/atlanticdynamic/simkernel/internal/sim/datalog"
	"github.com/atlanticdynamic/simkernel/internal/sim/simulator"
	"github.com/atlanticdynamic/simkernel/internal/sim/timeseries"
)

// Simulation holds the run settings. Step and Duration are in seconds; Depth is
// the log depth exponent.
type Simulation struct {
	Mode     string  `toml:"mode"               yaml:"mode"               json:"mode"`
	Step     float64 `toml:"step"               yaml:"step"               json:"step"`
	Duration float64 `toml:"duration,omitempty" yaml:"duration,omitempty" json:"duration,omitempty"`
	Depth    int     `toml:"depth"              yaml:"depth"              json:"depth"`
}

func (s *Simulation) applyDefaults() {
	if s.Mode == "" {
		s.Mode = simulator.Realtime.String()
	}
	if s.Step == 0 {
		s.Step = simulator.DefaultSettings().Step
	}
	if s.Depth == 0 {
		s.Depth = datalog.DefaultDepth
	}
}

// Settings converts the section into simulator settings.
func (s Simulation) Settings() (simulator.Settings, error) {
	mode, err := simulator.ParseMode(s.Mode)
	if err != nil {
		return simulator.Settings{}, err
	}
	settings := simulator.Settings{Mode: mode, Step: s.Step, Duration: s.Duration}
	if err := settings.Validate(); err != nil {
		return simulator.Settings{}, err
	}
	return settings, nil
}

// Validate checks the mode, the step and the depth.
func (s Simulation) Validate() error {
	if _, err := s.Settings(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSimulation, err)
	}
	if s.Depth < 0 || s.Depth > timeseries.MaxDepth {
		return fmt.Errorf("%w: depth %d is outside 0..%d", ErrInvalidSimulation, s.Depth, timeseries.MaxDepth)
	}
	return nil
}
